package webtransport

type SessionVisitor interface {
	// OnSessionReady fires once the session is established and streams
	// may be opened.
	OnSessionReady()
	OnSessionClosed(code SessionErrorCode, reason string)

	// OnIncomingBidirectionalStreamAvailable fires when at least one
	// peer-initiated stream is waiting in AcceptIncomingBidirectionalStream.
	// It is edge-triggered: accept in a loop until nil.
	OnIncomingBidirectionalStreamAvailable()
	OnIncomingUnidirectionalStreamAvailable()

	OnDatagramReceived(datagram []byte)

	OnCanCreateNewOutgoingBidirectionalStream()
	OnCanCreateNewOutgoingUnidirectionalStream()
}

type StreamVisitor interface {
	// OnCanRead fires when unread data (or the FIN) is buffered.
	// Edge-triggered: drain with Read until it reports no progress.
	OnCanRead()
	// OnCanWrite fires when CanWrite transitions back to true.
	OnCanWrite()

	OnResetStreamReceived(errorCode StreamErrorCode)
	OnStopSendingReceived(errorCode StreamErrorCode)

	// OnDiscarded fires exactly once when the transport destroys the
	// stream state; no other callback follows it.
	OnDiscarded()
}

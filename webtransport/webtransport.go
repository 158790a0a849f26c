// Package webtransport declares the transport contract the moqt session
// engine is written against: a stream-multiplexed, datagram-capable
// connection that reports readiness through visitor callbacks instead of
// blocking calls. All callbacks on a session and on its streams are
// serialized; implementations must never invoke two of them concurrently.
package webtransport

type StreamID uint64

type SessionErrorCode uint32

type StreamErrorCode uint32

// SendGroupID groups streams for round-robin scheduling. Streams in the
// same group are ordered by SendOrder, highest first.
type SendGroupID uint64

type SendOrder int64

type StreamPriority struct {
	SendGroupID SendGroupID
	SendOrder   SendOrder
}

type Session interface {
	// SetVisitor installs the callback target. It must be called before
	// the first event is delivered.
	SetVisitor(visitor SessionVisitor)

	// OpenOutgoingBidirectionalStream returns nil when flow control does
	// not admit a new stream; OnCanCreateNewOutgoingBidirectionalStream
	// fires once it would succeed again.
	OpenOutgoingBidirectionalStream() Stream
	OpenOutgoingUnidirectionalStream() Stream

	// AcceptIncomingBidirectionalStream returns the next peer-initiated
	// stream, or nil when none is pending.
	AcceptIncomingBidirectionalStream() Stream
	AcceptIncomingUnidirectionalStream() Stream

	GetStreamByID(id StreamID) Stream

	CanOpenNextOutgoingBidirectionalStream() bool
	CanOpenNextOutgoingUnidirectionalStream() bool

	SendOrQueueDatagram(data []byte) error

	// CloseSession terminates the session. The visitor's OnSessionClosed
	// fires exactly once, for this call or for a peer/transport close,
	// whichever happens first.
	CloseSession(code SessionErrorCode, reason string) error
}

package webtransport

type Stream interface {
	StreamID() StreamID

	// Read drains buffered stream data without blocking. fin reports that
	// the final byte of the stream has been consumed.
	Read(p []byte) (n int, fin bool)
	ReadableBytes() int

	// CanWrite reports whether the stream accepts more data right now.
	// Once it returns false, OnCanWrite fires when writing is possible
	// again.
	CanWrite() bool
	Writev(data [][]byte, fin bool) error
	SendFin() bool

	ResetWithUserCode(code StreamErrorCode)
	SendStopSending(code StreamErrorCode)

	SetPriority(priority StreamPriority)

	SetVisitor(visitor StreamVisitor)
	Visitor() StreamVisitor
}

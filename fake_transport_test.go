package moqt

import (
	"github.com/quicmoq/moqt/webtransport"
)

// fakeTransport is an in-memory webtransport.Session whose callbacks run
// synchronously on the caller's goroutine. Tests script stream capacity
// through openableBidi and openableUni, hand peer-initiated streams to
// the session with deliverIncoming*, and inspect everything the session
// wrote afterwards.
type fakeTransport struct {
	visitor webtransport.SessionVisitor

	nextStreamID webtransport.StreamID
	streams      map[webtransport.StreamID]*fakeStream

	openableBidi int
	openableUni  int
	openedBidi   []*fakeStream
	openedUni    []*fakeStream

	pendingIncomingBidi []*fakeStream
	pendingIncomingUni  []*fakeStream

	datagrams   [][]byte
	datagramErr error

	closed      bool
	closeCode   webtransport.SessionErrorCode
	closeReason string
}

var _ webtransport.Session = (*fakeTransport)(nil)

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		streams:      make(map[webtransport.StreamID]*fakeStream),
		openableBidi: 1,
		openableUni:  100,
	}
}

func (t *fakeTransport) newStream() *fakeStream {
	stream := &fakeStream{transport: t, id: t.nextStreamID, canWrite: true}
	t.nextStreamID++
	t.streams[stream.id] = stream
	return stream
}

func (t *fakeTransport) SetVisitor(visitor webtransport.SessionVisitor) {
	t.visitor = visitor
}

func (t *fakeTransport) OpenOutgoingBidirectionalStream() webtransport.Stream {
	if t.openableBidi <= 0 {
		return nil
	}
	t.openableBidi--
	stream := t.newStream()
	t.openedBidi = append(t.openedBidi, stream)
	return stream
}

func (t *fakeTransport) OpenOutgoingUnidirectionalStream() webtransport.Stream {
	if t.openableUni <= 0 {
		return nil
	}
	t.openableUni--
	stream := t.newStream()
	t.openedUni = append(t.openedUni, stream)
	return stream
}

func (t *fakeTransport) AcceptIncomingBidirectionalStream() webtransport.Stream {
	if len(t.pendingIncomingBidi) == 0 {
		return nil
	}
	stream := t.pendingIncomingBidi[0]
	t.pendingIncomingBidi = t.pendingIncomingBidi[1:]
	return stream
}

func (t *fakeTransport) AcceptIncomingUnidirectionalStream() webtransport.Stream {
	if len(t.pendingIncomingUni) == 0 {
		return nil
	}
	stream := t.pendingIncomingUni[0]
	t.pendingIncomingUni = t.pendingIncomingUni[1:]
	return stream
}

func (t *fakeTransport) GetStreamByID(id webtransport.StreamID) webtransport.Stream {
	stream, ok := t.streams[id]
	if !ok {
		return nil
	}
	return stream
}

func (t *fakeTransport) CanOpenNextOutgoingBidirectionalStream() bool {
	return t.openableBidi > 0
}

func (t *fakeTransport) CanOpenNextOutgoingUnidirectionalStream() bool {
	return t.openableUni > 0
}

func (t *fakeTransport) SendOrQueueDatagram(data []byte) error {
	if t.datagramErr != nil {
		return t.datagramErr
	}
	t.datagrams = append(t.datagrams, append([]byte(nil), data...))
	return nil
}

func (t *fakeTransport) CloseSession(code webtransport.SessionErrorCode, reason string) error {
	if t.closed {
		return nil
	}
	t.closed = true
	t.closeCode = code
	t.closeReason = reason
	return nil
}

// deliverIncomingBidiStream hands a fresh peer-initiated bidirectional
// stream to the session under test and returns it for scripting.
func (t *fakeTransport) deliverIncomingBidiStream() *fakeStream {
	stream := t.newStream()
	t.pendingIncomingBidi = append(t.pendingIncomingBidi, stream)
	t.visitor.OnIncomingBidirectionalStreamAvailable()
	return stream
}

func (t *fakeTransport) deliverIncomingUniStream() *fakeStream {
	stream := t.newStream()
	t.pendingIncomingUni = append(t.pendingIncomingUni, stream)
	t.visitor.OnIncomingUnidirectionalStreamAvailable()
	return stream
}

// grantUniStreams raises the unidirectional stream budget and wakes the
// session's scheduler the way a transport would.
func (t *fakeTransport) grantUniStreams(n int) {
	t.openableUni += n
	t.visitor.OnCanCreateNewOutgoingUnidirectionalStream()
}

// lastOpenedUni returns the most recently opened outgoing unidirectional
// stream.
func (t *fakeTransport) lastOpenedUni() *fakeStream {
	if len(t.openedUni) == 0 {
		return nil
	}
	return t.openedUni[len(t.openedUni)-1]
}

// fakeStream buffers incoming bytes for the session to drain and records
// everything the session writes.
type fakeStream struct {
	transport *fakeTransport
	id        webtransport.StreamID
	visitor   webtransport.StreamVisitor

	priority    webtransport.StreamPriority
	prioritySet bool

	readBuf []byte
	readFin bool
	finRead bool

	written  []byte
	finSent  bool
	writeErr error
	canWrite bool

	resetCode *webtransport.StreamErrorCode
	stopCode  *webtransport.StreamErrorCode
}

var _ webtransport.Stream = (*fakeStream)(nil)

func (s *fakeStream) StreamID() webtransport.StreamID {
	return s.id
}

func (s *fakeStream) Read(p []byte) (int, bool) {
	n := copy(p, s.readBuf)
	s.readBuf = s.readBuf[n:]
	fin := s.readFin && len(s.readBuf) == 0 && !s.finRead
	if fin {
		s.finRead = true
	}
	return n, fin
}

func (s *fakeStream) ReadableBytes() int {
	return len(s.readBuf)
}

func (s *fakeStream) CanWrite() bool {
	return s.canWrite
}

func (s *fakeStream) Writev(data [][]byte, fin bool) error {
	if s.writeErr != nil {
		return s.writeErr
	}
	for _, chunk := range data {
		s.written = append(s.written, chunk...)
	}
	if fin {
		s.finSent = true
	}
	return nil
}

func (s *fakeStream) SendFin() bool {
	if s.writeErr != nil {
		return false
	}
	s.finSent = true
	return true
}

func (s *fakeStream) ResetWithUserCode(code webtransport.StreamErrorCode) {
	s.resetCode = &code
}

func (s *fakeStream) SendStopSending(code webtransport.StreamErrorCode) {
	s.stopCode = &code
}

func (s *fakeStream) SetPriority(priority webtransport.StreamPriority) {
	s.priority = priority
	s.prioritySet = true
}

func (s *fakeStream) SetVisitor(visitor webtransport.StreamVisitor) {
	s.visitor = visitor
}

func (s *fakeStream) Visitor() webtransport.StreamVisitor {
	return s.visitor
}

// receive buffers peer data and notifies the stream's visitor, the way a
// transport delivers incoming stream bytes.
func (s *fakeStream) receive(data []byte, fin bool) {
	s.readBuf = append(s.readBuf, data...)
	if fin {
		s.readFin = true
	}
	if s.visitor != nil {
		s.visitor.OnCanRead()
	}
}

// resetFromPeer simulates a RESET_STREAM frame from the peer.
func (s *fakeStream) resetFromPeer(code webtransport.StreamErrorCode) {
	if s.visitor != nil {
		s.visitor.OnResetStreamReceived(code)
	}
}

// stopSendingFromPeer simulates a STOP_SENDING frame from the peer.
func (s *fakeStream) stopSendingFromPeer(code webtransport.StreamErrorCode) {
	if s.visitor != nil {
		s.visitor.OnStopSendingReceived(code)
	}
}

// blockWrites makes CanWrite report false until unblockWrites runs.
func (s *fakeStream) blockWrites() {
	s.canWrite = false
}

// unblockWrites reopens write capacity and fires OnCanWrite.
func (s *fakeStream) unblockWrites() {
	s.canWrite = true
	if s.visitor != nil {
		s.visitor.OnCanWrite()
	}
}

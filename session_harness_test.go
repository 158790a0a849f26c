package moqt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/quicmoq/moqt/internal/message"
)

// controlCollector re-parses what a session wrote on its control stream so
// tests can assert on typed messages.
type controlCollector struct {
	messages    []any
	errored     bool
	errorReason string
}

var _ message.ControlParserVisitor = (*controlCollector)(nil)

func (c *controlCollector) OnClientSetupMessage(m message.ClientSetupMessage) {
	c.messages = append(c.messages, m)
}

func (c *controlCollector) OnServerSetupMessage(m message.ServerSetupMessage) {
	c.messages = append(c.messages, m)
}

func (c *controlCollector) OnSubscribeMessage(m message.SubscribeMessage) {
	c.messages = append(c.messages, m)
}

func (c *controlCollector) OnSubscribeOkMessage(m message.SubscribeOkMessage) {
	c.messages = append(c.messages, m)
}

func (c *controlCollector) OnSubscribeErrorMessage(m message.SubscribeErrorMessage) {
	c.messages = append(c.messages, m)
}

func (c *controlCollector) OnSubscribeUpdateMessage(m message.SubscribeUpdateMessage) {
	c.messages = append(c.messages, m)
}

func (c *controlCollector) OnUnsubscribeMessage(m message.UnsubscribeMessage) {
	c.messages = append(c.messages, m)
}

func (c *controlCollector) OnSubscribeDoneMessage(m message.SubscribeDoneMessage) {
	c.messages = append(c.messages, m)
}

func (c *controlCollector) OnAnnounceMessage(m message.AnnounceMessage) {
	c.messages = append(c.messages, m)
}

func (c *controlCollector) OnAnnounceOkMessage(m message.AnnounceOkMessage) {
	c.messages = append(c.messages, m)
}

func (c *controlCollector) OnAnnounceErrorMessage(m message.AnnounceErrorMessage) {
	c.messages = append(c.messages, m)
}

func (c *controlCollector) OnAnnounceCancelMessage(m message.AnnounceCancelMessage) {
	c.messages = append(c.messages, m)
}

func (c *controlCollector) OnMaxSubscribeIDMessage(m message.MaxSubscribeIDMessage) {
	c.messages = append(c.messages, m)
}

func (c *controlCollector) OnFetchMessage(m message.FetchMessage) {
	c.messages = append(c.messages, m)
}

func (c *controlCollector) OnFetchOkMessage(m message.FetchOkMessage) {
	c.messages = append(c.messages, m)
}

func (c *controlCollector) OnFetchErrorMessage(m message.FetchErrorMessage) {
	c.messages = append(c.messages, m)
}

func (c *controlCollector) OnObjectAckMessage(m message.ObjectAckMessage) {
	c.messages = append(c.messages, m)
}

func (c *controlCollector) OnParsingError(code message.ParseErrorCode, reason string) {
	c.errored = true
	c.errorReason = reason
}

// sentMessages parses everything the session wrote on the stream so far.
// The session always leads with a SETUP message, so a fresh parse of the
// full stream is valid at any point.
func sentMessages(t *testing.T, stream *fakeStream) []any {
	t.Helper()
	collector := &controlCollector{}
	parser := message.NewControlParser(collector)
	parser.ProcessData(stream.written, false)
	require.False(t, collector.errored, "session wrote a malformed control stream: %s", collector.errorReason)
	return collector.messages
}

// sentMessage returns the index-th control message the session wrote,
// requiring it to have the given type.
func sentMessage[T any](t *testing.T, stream *fakeStream, index int) T {
	t.Helper()
	messages := sentMessages(t, stream)
	require.Greater(t, len(messages), index, "session sent %d control messages", len(messages))
	m, ok := messages[index].(T)
	require.True(t, ok, "control message %d is %T", index, messages[index])
	return m
}

// lastSentMessage returns the most recent control message the session wrote,
// requiring it to have the given type.
func lastSentMessage[T any](t *testing.T, stream *fakeStream) T {
	t.Helper()
	messages := sentMessages(t, stream)
	require.NotEmpty(t, messages, "session sent no control messages")
	m, ok := messages[len(messages)-1].(T)
	require.True(t, ok, "last control message is %T", messages[len(messages)-1])
	return m
}

type replyRecord struct {
	name    FullTrackName
	largest *FullSequence
	err     error
}

type objectRecord struct {
	name         FullTrackName
	sequence     FullSequence
	priority     Priority
	status       ObjectStatus
	payload      []byte
	endOfMessage bool
}

type doneRecord struct {
	name   FullTrackName
	code   SubscribeDoneCode
	reason string
}

// trackVisitorRecorder captures every callback of one upstream track.
type trackVisitorRecorder struct {
	replies []replyRecord
	acks    []ObjectAckFunc
	objects []objectRecord
	dones   []doneRecord
}

var _ RemoteTrackVisitor = (*trackVisitorRecorder)(nil)

func (r *trackVisitorRecorder) OnReply(name FullTrackName, largest *FullSequence, err error) {
	record := replyRecord{name: name, err: err}
	if largest != nil {
		copied := *largest
		record.largest = &copied
	}
	r.replies = append(r.replies, record)
}

func (r *trackVisitorRecorder) OnCanAckObjects(ack ObjectAckFunc) {
	r.acks = append(r.acks, ack)
}

func (r *trackVisitorRecorder) OnObjectFragment(name FullTrackName, sequence FullSequence, publisherPriority Priority, status ObjectStatus, payload []byte, endOfMessage bool) {
	r.objects = append(r.objects, objectRecord{
		name:         name,
		sequence:     sequence,
		priority:     publisherPriority,
		status:       status,
		payload:      append([]byte(nil), payload...),
		endOfMessage: endOfMessage,
	})
}

func (r *trackVisitorRecorder) OnSubscribeDone(name FullTrackName, code SubscribeDoneCode, reason string) {
	r.dones = append(r.dones, doneRecord{name: name, code: code, reason: reason})
}

type ackRecord struct {
	group  uint64
	object uint64
	delta  time.Duration
}

// monitorRecorder captures delivery feedback for one published track.
type monitorRecorder struct {
	supported []bool
	acks      []ackRecord
}

var _ PublishMonitor = (*monitorRecorder)(nil)

func (m *monitorRecorder) OnObjectAckSupportKnown(supported bool) {
	m.supported = append(m.supported, supported)
}

func (m *monitorRecorder) OnObjectAckReceived(groupID, objectID uint64, deltaFromDeadline time.Duration) {
	m.acks = append(m.acks, ackRecord{group: groupID, object: objectID, delta: deltaFromDeadline})
}

// sessionHarness drives one Session over a fakeTransport.
type sessionHarness struct {
	t         *testing.T
	transport *fakeTransport
	session   *Session

	// control is the session's control stream once the handshake started:
	// opened by the session for clients, delivered by the harness for
	// servers.
	control *fakeStream

	established int
	terminated  []error
}

func newSessionHarness(t *testing.T, parameters SessionParameters, publisher Publisher, announce func(FullTrackName) error) *sessionHarness {
	t.Helper()
	h := &sessionHarness{t: t, transport: newFakeTransport()}
	h.session = NewSession(h.transport, parameters, SessionCallbacks{
		OnSessionEstablished: func() { h.established++ },
		OnSessionTerminated:  func(err error) { h.terminated = append(h.terminated, err) },
		OnIncomingAnnounce:   announce,
	}, publisher)
	return h
}

func clientParameters() SessionParameters {
	return SessionParameters{
		Perspective:       PerspectiveClient,
		Role:              RolePubSub,
		UsingWebTransport: true,
		MaxSubscribeID:    32,
	}
}

func serverParameters() SessionParameters {
	p := clientParameters()
	p.Perspective = PerspectiveServer
	return p
}

// startClient makes the transport ready, which sends CLIENT_SETUP on a
// fresh control stream.
func (h *sessionHarness) startClient() {
	h.t.Helper()
	h.session.OnSessionReady()
	require.NotEmpty(h.t, h.transport.openedBidi, "client did not open a control stream")
	h.control = h.transport.openedBidi[0]
}

// completeClientHandshake runs the full setup exchange for a client session
// against a peer with the given role.
func (h *sessionHarness) completeClientHandshake(peerRole Role, peerMaxSubscribeID uint64, peerSupportsAcks bool) {
	h.t.Helper()
	h.startClient()
	h.control.receive(message.SerializeServerSetup(message.ServerSetupMessage{
		SelectedVersion:   DefaultVersion,
		Role:              peerRole,
		HasMaxSubscribeID: true,
		MaxSubscribeID:    peerMaxSubscribeID,
		SupportsObjectAck: peerSupportsAcks,
	}), false)
	require.Equal(h.t, 1, h.established, "handshake did not complete")
}

// startServer makes the transport ready and delivers the peer's control
// stream, without any setup bytes yet.
func (h *sessionHarness) startServer() {
	h.t.Helper()
	h.session.OnSessionReady()
	h.control = h.transport.deliverIncomingBidiStream()
}

// completeServerHandshake runs the full setup exchange for a server session
// against a peer with the given role.
func (h *sessionHarness) completeServerHandshake(peerRole Role, peerMaxSubscribeID uint64, peerSupportsAcks bool) {
	h.t.Helper()
	h.startServer()
	h.control.receive(message.SerializeClientSetup(message.ClientSetupMessage{
		SupportedVersions: []Version{DefaultVersion},
		Role:              peerRole,
		HasMaxSubscribeID: true,
		MaxSubscribeID:    peerMaxSubscribeID,
		SupportsObjectAck: peerSupportsAcks,
	}), false)
	require.Equal(h.t, 1, h.established, "handshake did not complete")
}

// receiveControl feeds one serialized control message to the session.
func (h *sessionHarness) receiveControl(data []byte) {
	h.control.receive(data, false)
}

// requireViolation asserts that the session terminated the transport with
// the given code and reason.
func (h *sessionHarness) requireViolation(code SessionErrorCode, reason string) {
	h.t.Helper()
	require.True(h.t, h.transport.closed, "transport was not closed")
	require.Equal(h.t, uint32(code), uint32(h.transport.closeCode))
	require.Equal(h.t, reason, h.transport.closeReason)
	require.Len(h.t, h.terminated, 1)
	require.Error(h.t, h.terminated[0])
}

// requireAlive asserts that the session has not torn the transport down.
func (h *sessionHarness) requireAlive() {
	h.t.Helper()
	require.False(h.t, h.transport.closed, "transport was closed: %s", h.transport.closeReason)
	require.Empty(h.t, h.terminated)
}

// receivedDataObject is one object decoded from an outgoing data stream.
// The parser sees the whole stream at once here, so every object arrives
// in a single fragment.
type receivedDataObject struct {
	header  message.ObjectHeader
	payload []byte
}

type dataCollector struct {
	objects []receivedDataObject
	errored bool
	reason  string
}

var _ message.DataParserVisitor = (*dataCollector)(nil)

func (c *dataCollector) OnObjectMessage(header message.ObjectHeader, payload []byte, endOfMessage bool) {
	c.objects = append(c.objects, receivedDataObject{
		header:  header,
		payload: append([]byte(nil), payload...),
	})
}

func (c *dataCollector) OnParsingError(code message.ParseErrorCode, reason string) {
	c.errored = true
	c.reason = reason
}

// writtenBytesSource replays a stream's recorded output through the data
// stream parser.
type writtenBytesSource struct {
	data []byte
	fin  bool
}

var _ message.DataSource = (*writtenBytesSource)(nil)

func (s *writtenBytesSource) Read(p []byte) (int, bool) {
	n := copy(p, s.data)
	s.data = s.data[n:]
	return n, s.fin && len(s.data) == 0
}

func (s *writtenBytesSource) ReadableBytes() int {
	return len(s.data)
}

// parseDataStream decodes every object the session wrote on an outgoing
// data stream.
func parseDataStream(t *testing.T, stream *fakeStream) (message.DataStreamType, []receivedDataObject) {
	t.Helper()
	collector := &dataCollector{}
	parser := message.NewDataStreamParser(&writtenBytesSource{data: stream.written, fin: stream.finSent}, collector)
	parser.ReadAllData()
	require.False(t, collector.errored, "session wrote a malformed data stream: %s", collector.reason)
	typ, ok := parser.StreamType()
	require.True(t, ok, "data stream carried no stream type")
	return typ, collector.objects
}

package moqt

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/quicmoq/moqt/internal/message"
	"github.com/quicmoq/moqt/telemetry"
	"github.com/quicmoq/moqt/webtransport"
)

// livenessToken marks whether its session is still alive. Stream visitors
// keep a reference so they can tell a torn-down session apart from a live
// one when the transport discards streams late.
type livenessToken struct {
	dead bool
}

// queuedStreamEntry is one waiter in the cross-subscription queue of data
// streams that could not be opened yet.
type queuedStreamEntry struct {
	sendOrder   webtransport.SendOrder
	subscribeID uint64
}

func queuedEntryLess(a, b queuedStreamEntry) bool {
	if a.sendOrder != b.sendOrder {
		return a.sendOrder < b.sendOrder
	}
	return a.subscribeID < b.subscribeID
}

// AnnounceCallback reports the outcome of Session.Announce. err is nil on
// ANNOUNCE_OK and an *AnnounceRejectedError on ANNOUNCE_ERROR.
type AnnounceCallback func(namespace FullTrackName, err error)

// Session drives the protocol over one transport session: the setup
// handshake, the control stream, subscriptions in both directions, fetches
// and the scheduling of outgoing data streams.
//
// A Session is single-threaded. Every method must be called from the
// transport's event loop, the same context its visitor callbacks arrive on.
type Session struct {
	transport  webtransport.Session
	parameters SessionParameters
	callbacks  SessionCallbacks
	publisher  Publisher
	logger     *slog.Logger
	metrics    *telemetry.Metrics

	liveness *livenessToken

	control     *controlStream
	established bool
	sessionErr  *SessionError

	peerRole               Role
	peerSupportsObjectAcks bool
	peerMaxSubscribeID     uint64

	// Upstream state: tracks this endpoint subscribed to or fetches it
	// requested. The three maps are inserted into and torn down together;
	// fetches live only in upstreamByID.
	nextSubscribeID      uint64
	nextRemoteTrackAlias uint64
	upstreamByID         map[uint64]*remoteTrack
	upstreamByAlias      map[uint64]*remoteTrack
	upstreamByName       map[FullTrackName]*remoteTrack

	// Downstream state: subscriptions and fetches this endpoint serves.
	localMaxSubscribeID     uint64
	nextIncomingSubscribeID uint64
	publishedSubscriptions  map[uint64]*publishedSubscription
	subscribedTrackNames    map[FullTrackName]struct{}
	incomingFetches         map[uint64]*publishedFetch

	// Ascending by send order; drained from the back.
	queuedOutgoingDataStreams []queuedStreamEntry

	pendingOutgoingAnnounces map[FullTrackName]AnnounceCallback

	monitoringInterfaces map[FullTrackName]PublishMonitor
}

var _ webtransport.SessionVisitor = (*Session)(nil)

// NewSession wires a session onto a transport. The session installs itself
// as the transport's visitor; events must not be delivered before
// NewSession returns. A nil publisher rejects every incoming SUBSCRIBE and
// FETCH with "track does not exist".
func NewSession(transport webtransport.Session, parameters SessionParameters, callbacks SessionCallbacks, publisher Publisher) *Session {
	if publisher == nil {
		publisher = noPublisher{}
	}
	s := &Session{
		transport:  transport,
		parameters: parameters,
		callbacks:  callbacks,
		publisher:  publisher,
		logger: parameters.logger().With(
			"session_id", uuid.NewString(),
			"perspective", parameters.Perspective.String(),
		),
		metrics:  parameters.Metrics,
		liveness: &livenessToken{},

		// Until setup latches the peer's actual role, assume it can do
		// everything; the parser rejects non-setup messages first anyway.
		peerRole: RolePubSub,

		upstreamByID:    make(map[uint64]*remoteTrack),
		upstreamByAlias: make(map[uint64]*remoteTrack),
		upstreamByName:  make(map[FullTrackName]*remoteTrack),

		localMaxSubscribeID:    parameters.MaxSubscribeID,
		publishedSubscriptions: make(map[uint64]*publishedSubscription),
		subscribedTrackNames:   make(map[FullTrackName]struct{}),
		incomingFetches:        make(map[uint64]*publishedFetch),

		pendingOutgoingAnnounces: make(map[FullTrackName]AnnounceCallback),
		monitoringInterfaces:     make(map[FullTrackName]PublishMonitor),
	}
	transport.SetVisitor(s)
	return s
}

// Established reports whether the setup handshake has completed.
func (s *Session) Established() bool {
	return s.established
}

// SupportsObjectAcks reports whether both endpoints negotiated OBJECT_ACK.
func (s *Session) SupportsObjectAcks() bool {
	return s.parameters.SupportObjectAcks && s.peerSupportsObjectAcks
}

/*
 * Transport events
 */

func (s *Session) OnSessionReady() {
	if s.parameters.Perspective != PerspectiveClient {
		// The server side waits for the client's control stream.
		return
	}
	stream := s.transport.OpenOutgoingBidirectionalStream()
	if stream == nil {
		s.Error(InternalSessionErrorCode, "Failed to open a control stream")
		return
	}
	s.control = newControlStream(s, stream)

	setup := message.ClientSetupMessage{
		SupportedVersions: []Version{s.parameters.version()},
		Role:              s.parameters.role(),
		HasMaxSubscribeID: true,
		MaxSubscribeID:    s.parameters.MaxSubscribeID,
		SupportsObjectAck: s.parameters.SupportObjectAcks,
	}
	if !s.parameters.UsingWebTransport {
		setup.Path = s.parameters.Path
	}
	s.sendControlMessage(message.SerializeClientSetup(setup))
	s.logger.Debug("sent CLIENT_SETUP", "version", uint64(s.parameters.version()))
}

func (s *Session) OnSessionClosed(code webtransport.SessionErrorCode, reason string) {
	if s.sessionErr != nil {
		return
	}
	err := &SessionError{Code: SessionErrorCode(code), Reason: reason, Remote: true}
	s.sessionErr = err
	s.liveness.dead = true
	s.metrics.SessionClosed()
	s.logger.Info("session closed by peer", "error", err)
	if s.callbacks.OnSessionTerminated != nil {
		s.callbacks.OnSessionTerminated(err)
	}
}

func (s *Session) OnIncomingBidirectionalStreamAvailable() {
	for {
		stream := s.transport.AcceptIncomingBidirectionalStream()
		if stream == nil {
			return
		}
		if s.control != nil {
			s.Error(ProtocolViolationErrorCode, "Bidirectional stream already open")
			return
		}
		s.control = newControlStream(s, stream)
		s.control.OnCanRead()
	}
}

func (s *Session) OnIncomingUnidirectionalStreamAvailable() {
	for {
		stream := s.transport.AcceptIncomingUnidirectionalStream()
		if stream == nil {
			return
		}
		incoming := newIncomingDataStream(s, stream)
		incoming.OnCanRead()
	}
}

func (s *Session) OnDatagramReceived(datagram []byte) {
	header, payload, err := message.ParseDatagram(datagram)
	if err != nil {
		s.Error(ProtocolViolationErrorCode, "Malformed datagram received")
		return
	}
	track := s.upstreamByAlias[header.TrackAlias]
	if track == nil {
		return
	}
	if !track.CheckDataStreamType(message.StreamTypeDatagram) {
		s.Error(ProtocolViolationErrorCode, "Received DATAGRAM for non-datagram track")
		return
	}
	sequence := FullSequence{Group: header.Group, Object: header.ObjectID}
	if !track.InWindow(sequence) {
		return
	}
	track.OnObjectOrOK()
	s.metrics.ObjectReceived(len(payload))
	if track.visitor != nil {
		track.visitor.OnObjectFragment(track.name, sequence,
			Priority(header.PublisherPriority), header.Status, payload, true)
	}
}

func (s *Session) OnCanCreateNewOutgoingBidirectionalStream() {
	// The control stream is the only bidirectional stream and is opened
	// eagerly; its failure already terminated the session.
}

func (s *Session) OnCanCreateNewOutgoingUnidirectionalStream() {
	s.openQueuedOutgoingDataStreams()
}

/*
 * Termination
 */

// Error poisons the session: the transport is closed with the given code,
// the termination callback fires, and every later control send becomes a
// no-op. Only the first call has any effect.
func (s *Session) Error(code SessionErrorCode, reason string) {
	if s.sessionErr != nil {
		return
	}
	err := &SessionError{Code: code, Reason: reason}
	s.sessionErr = err
	s.liveness.dead = true
	s.logger.Error("closing session", "error", err)
	s.transport.CloseSession(webtransport.SessionErrorCode(code), reason)
	s.metrics.SessionClosed()
	if s.callbacks.OnSessionTerminated != nil {
		s.callbacks.OnSessionTerminated(err)
	}
}

// Close ends the session without an error code.
func (s *Session) Close() {
	if s.sessionErr != nil {
		return
	}
	s.sessionErr = &SessionError{Code: NoErrorCode}
	s.liveness.dead = true
	s.logger.Info("closing session")
	s.transport.CloseSession(webtransport.SessionErrorCode(NoErrorCode), "")
	s.metrics.SessionClosed()
	if s.callbacks.OnSessionTerminated != nil {
		s.callbacks.OnSessionTerminated(nil)
	}
}

// sendControlMessage queues one serialized control message. Nothing is
// sent once the session is poisoned.
func (s *Session) sendControlMessage(data []byte) {
	if s.sessionErr != nil || s.control == nil {
		return
	}
	s.control.sendOrBuffer(data)
	s.metrics.ControlMessageSent()
}

/*
 * Subscribing
 */

// SubscribeCurrentObject subscribes starting at the newest object the
// publisher has.
func (s *Session) SubscribeCurrentObject(name FullTrackName, visitor RemoteTrackVisitor) error {
	return s.subscribe(message.SubscribeMessage{
		TrackNamespace:     name.Namespace(),
		TrackName:          name.Name(),
		SubscriberPriority: uint8(DefaultSubscriberPriority),
		FilterType:         message.FilterLatestObject,
	}, visitor, false)
}

// SubscribeCurrentGroup subscribes starting at the beginning of the newest
// group.
func (s *Session) SubscribeCurrentGroup(name FullTrackName, visitor RemoteTrackVisitor) error {
	return s.subscribe(message.SubscribeMessage{
		TrackNamespace:     name.Namespace(),
		TrackName:          name.Name(),
		SubscriberPriority: uint8(DefaultSubscriberPriority),
		FilterType:         message.FilterLatestGroup,
	}, visitor, false)
}

// SubscribeAbsolute subscribes from a fixed position with no upper bound.
func (s *Session) SubscribeAbsolute(name FullTrackName, startGroup, startObject uint64, visitor RemoteTrackVisitor) error {
	return s.subscribe(message.SubscribeMessage{
		TrackNamespace:     name.Namespace(),
		TrackName:          name.Name(),
		SubscriberPriority: uint8(DefaultSubscriberPriority),
		FilterType:         message.FilterAbsoluteStart,
		StartGroup:         startGroup,
		StartObject:        startObject,
	}, visitor, false)
}

// SubscribeAbsoluteRange subscribes to a bounded range. A nil endObject
// leaves the final group unbounded.
func (s *Session) SubscribeAbsoluteRange(name FullTrackName, startGroup, startObject, endGroup uint64, endObject *uint64, visitor RemoteTrackVisitor) error {
	msg := message.SubscribeMessage{
		TrackNamespace:     name.Namespace(),
		TrackName:          name.Name(),
		SubscriberPriority: uint8(DefaultSubscriberPriority),
		FilterType:         message.FilterAbsoluteRange,
		StartGroup:         startGroup,
		StartObject:        startObject,
		EndGroup:           endGroup,
	}
	if endObject != nil {
		msg.HasEndObject = true
		msg.EndObject = *endObject
	}
	return s.subscribe(msg, visitor, false)
}

func (s *Session) subscribe(msg message.SubscribeMessage, visitor RemoteTrackVisitor, hasAlias bool) error {
	if s.sessionErr != nil {
		return ErrClosedSession
	}
	if !s.established {
		return ErrSessionNotEstablished
	}
	if s.peerRole == RoleSubscriber {
		return ErrPeerNotPublisher
	}
	if s.nextSubscribeID >= s.peerMaxSubscribeID {
		s.logger.Debug("subscribe refused by the peer's subscribe id limit",
			"next_subscribe_id", s.nextSubscribeID,
			"peer_max_subscribe_id", s.peerMaxSubscribeID)
		return ErrSubscribeLimit
	}
	name := trackNameFromParts(msg.TrackNamespace, msg.TrackName)
	if _, ok := s.upstreamByName[name]; ok {
		return ErrDuplicateSubscribe
	}
	if !hasAlias {
		msg.TrackAlias = s.nextRemoteTrackAlias
		s.nextRemoteTrackAlias++
	}
	if _, ok := s.upstreamByAlias[msg.TrackAlias]; ok {
		s.Error(DuplicateTrackAliasErrorCode, "Provided track alias already in use")
		return s.sessionErr
	}
	msg.SubscribeID = s.nextSubscribeID
	s.nextSubscribeID++

	track := &remoteTrack{
		name:        name,
		subscribeID: msg.SubscribeID,
		trackAlias:  msg.TrackAlias,
		visitor:     visitor,
		window:      subscribeMessageWindow(msg),
		subscribe:   msg,
	}
	s.upstreamByID[track.subscribeID] = track
	s.upstreamByAlias[track.trackAlias] = track
	s.upstreamByName[name] = track

	s.sendControlMessage(message.SerializeSubscribe(msg))
	s.logger.Debug("sent SUBSCRIBE",
		"track", name.String(),
		"subscribe_id", msg.SubscribeID,
		"track_alias", msg.TrackAlias)

	if s.SupportsObjectAcks() && visitor != nil {
		id := msg.SubscribeID
		visitor.OnCanAckObjects(func(groupID, objectID uint64, delta time.Duration) {
			s.SendObjectAck(id, groupID, objectID, delta)
		})
	}
	return nil
}

// Unsubscribe ends an upstream subscription. Unknown names are ignored.
func (s *Session) Unsubscribe(name FullTrackName) {
	if s.sessionErr != nil {
		return
	}
	track, ok := s.upstreamByName[name]
	if !ok {
		return
	}
	s.sendControlMessage(message.SerializeUnsubscribe(message.UnsubscribeMessage{
		SubscribeID: track.subscribeID,
	}))
	s.removeUpstreamTrack(track)
	s.logger.Debug("sent UNSUBSCRIBE", "track", name.String(), "subscribe_id", track.subscribeID)
}

func (s *Session) removeUpstreamTrack(track *remoteTrack) {
	delete(s.upstreamByID, track.subscribeID)
	if !track.isFetch {
		delete(s.upstreamByAlias, track.trackAlias)
		delete(s.upstreamByName, track.name)
	}
}

// Fetch requests a bounded replay of historical objects. A nil endObject
// leaves the final group unbounded. Replies and objects arrive on the
// visitor, like a subscription's.
func (s *Session) Fetch(name FullTrackName, startGroup, startObject, endGroup uint64, endObject *uint64, priority Priority, order DeliveryOrder, visitor RemoteTrackVisitor) error {
	if s.sessionErr != nil {
		return ErrClosedSession
	}
	if !s.established {
		return ErrSessionNotEstablished
	}
	if s.peerRole == RoleSubscriber {
		return ErrPeerNotPublisher
	}
	if s.nextSubscribeID >= s.peerMaxSubscribeID {
		return ErrSubscribeLimit
	}
	msg := message.FetchMessage{
		SubscribeID:        s.nextSubscribeID,
		TrackNamespace:     name.Namespace(),
		TrackName:          name.Name(),
		SubscriberPriority: uint8(priority),
		GroupOrder:         uint8(order),
		StartGroup:         startGroup,
		StartObject:        startObject,
		EndGroup:           endGroup,
	}
	if endObject != nil {
		msg.HasEndObject = true
		msg.EndObject = *endObject
	}
	s.nextSubscribeID++

	track := &remoteTrack{
		name:        name,
		subscribeID: msg.SubscribeID,
		isFetch:     true,
		visitor:     visitor,
		window:      fetchWindow(startGroup, startObject, endGroup, endObject),
	}
	s.upstreamByID[track.subscribeID] = track

	s.sendControlMessage(message.SerializeFetch(msg))
	s.logger.Debug("sent FETCH", "track", name.String(), "subscribe_id", msg.SubscribeID)
	return nil
}

/*
 * Announcing
 */

// Announce advertises a namespace to the peer. The callback fires once
// with the peer's answer.
func (s *Session) Announce(namespace FullTrackName, callback AnnounceCallback) error {
	if s.sessionErr != nil {
		return ErrClosedSession
	}
	if !s.established {
		return ErrSessionNotEstablished
	}
	if s.peerRole == RolePublisher {
		return ErrPeerNotSubscriber
	}
	if _, ok := s.pendingOutgoingAnnounces[namespace]; ok {
		return ErrDuplicateAnnounce
	}
	s.pendingOutgoingAnnounces[namespace] = callback
	s.sendControlMessage(message.SerializeAnnounce(message.AnnounceMessage{
		TrackNamespace: namespace.Tuple(),
	}))
	s.logger.Debug("sent ANNOUNCE", "namespace", namespace.String())
	return nil
}

/*
 * Publishing
 */

// GrantMoreSubscribes raises the number of subscribe ids the peer may use.
func (s *Session) GrantMoreSubscribes(count uint64) {
	if s.sessionErr != nil || count == 0 {
		return
	}
	s.localMaxSubscribeID += count
	s.sendControlMessage(message.SerializeMaxSubscribeID(message.MaxSubscribeIDMessage{
		SubscribeID: s.localMaxSubscribeID,
	}))
}

// SubscribeIsDone ends a downstream subscription: it sends SUBSCRIBE_DONE,
// removes the subscription, and resets every data stream still carrying it.
func (s *Session) SubscribeIsDone(subscribeID uint64, code SubscribeDoneCode, reason string) {
	subscription, ok := s.publishedSubscriptions[subscribeID]
	if !ok {
		return
	}
	// Snapshot the streams first; teardown mutates the map.
	streamsToReset := subscription.GetAllStreams()

	done := message.SubscribeDoneMessage{
		SubscribeID:  subscribeID,
		StatusCode:   uint64(code),
		ReasonPhrase: reason,
	}
	if largest := subscription.largestSent(); largest != nil {
		done.ContentExists = true
		done.FinalGroup = largest.Group
		done.FinalObject = largest.Object
	}
	s.sendControlMessage(message.SerializeSubscribeDone(done))

	subscription.destroy()
	delete(s.publishedSubscriptions, subscribeID)
	delete(s.subscribedTrackNames, subscription.trackPublisher.GetTrackName())
	s.metrics.SubscriptionEnded()

	for _, id := range streamsToReset {
		stream := s.transport.GetStreamByID(id)
		if stream == nil {
			continue
		}
		stream.ResetWithUserCode(ResetCodeSubscriptionGone)
	}
	s.logger.Debug("subscription done",
		"subscribe_id", subscribeID,
		"code", code.String(),
		"streams_reset", len(streamsToReset))
}

// SendObjectAck acknowledges one received object. It is a no-op unless
// both endpoints negotiated OBJECT_ACK support.
func (s *Session) SendObjectAck(subscribeID, groupID, objectID uint64, deltaFromDeadline time.Duration) {
	if !s.SupportsObjectAcks() {
		return
	}
	s.sendControlMessage(message.SerializeObjectAck(message.ObjectAckMessage{
		SubscribeID:       subscribeID,
		Group:             groupID,
		Object:            objectID,
		DeltaFromDeadline: deltaFromDeadline,
	}))
}

// SetMonitoringInterfaceForTrack attaches a delivery monitor to the next
// incoming subscription for the track. The monitor is claimed by that
// subscription; a later subscription needs a new call.
func (s *Session) SetMonitoringInterfaceForTrack(name FullTrackName, monitor PublishMonitor) {
	s.monitoringInterfaces[name] = monitor
}

/*
 * Outgoing data stream scheduling
 */

// openQueuedOutgoingDataStreams opens streams for the highest-send-order
// waiters while the transport has capacity.
func (s *Session) openQueuedOutgoingDataStreams() {
	for s.transport.CanOpenNextOutgoingUnidirectionalStream() && len(s.queuedOutgoingDataStreams) > 0 {
		entry := s.queuedOutgoingDataStreams[len(s.queuedOutgoingDataStreams)-1]
		subscription, ok := s.publishedSubscriptions[entry.subscribeID]
		if !ok {
			// A fetch, or a stale entry whose owner is gone.
			s.queuedOutgoingDataStreams = s.queuedOutgoingDataStreams[:len(s.queuedOutgoingDataStreams)-1]
			if fetch, live := s.incomingFetches[entry.subscribeID]; live {
				s.openDataStreamForFetch(fetch)
			}
			continue
		}
		sequence, ok := subscription.NextQueuedOutgoingDataStream()
		if !ok {
			s.updateQueuedSendOrder(entry.subscribeID, &entry.sendOrder, nil)
			continue
		}
		stream := s.openDataStream(subscription, sequence)
		if stream == nil {
			return
		}
		stream.Visitor().OnCanWrite()
	}
}

// openOrQueueDataStream starts delivery of a new mapping unit for a
// subscription, or queues it while the transport is out of streams.
func (s *Session) openOrQueueDataStream(subscribeID uint64, firstObject FullSequence) {
	subscription, ok := s.publishedSubscriptions[subscribeID]
	if !ok {
		return
	}
	if !s.transport.CanOpenNextOutgoingUnidirectionalStream() {
		subscription.AddQueuedOutgoingDataStream(firstObject)
		return
	}
	stream := s.openDataStream(subscription, firstObject)
	if stream == nil {
		subscription.AddQueuedOutgoingDataStream(firstObject)
		return
	}
	stream.Visitor().OnCanWrite()
}

func (s *Session) openDataStream(subscription *publishedSubscription, firstObject FullSequence) webtransport.Stream {
	stream := s.transport.OpenOutgoingUnidirectionalStream()
	if stream == nil {
		return nil
	}
	newOutgoingDataStream(s, stream, subscription, firstObject)
	subscription.OnDataStreamCreated(stream.StreamID(), firstObject)
	return stream
}

func (s *Session) openDataStreamForFetch(fetch *publishedFetch) {
	stream := s.transport.OpenOutgoingUnidirectionalStream()
	if stream == nil {
		s.logger.Warn("transport refused a fetch stream it promised", "subscribe_id", fetch.fetchID)
		return
	}
	newFetchStream(s, stream, fetch)
	stream.Visitor().OnCanWrite()
}

// updateQueuedSendOrder moves one subscription's entry in the
// cross-subscription queue when its highest queued send order changes.
// Either order may be nil to add or drop the entry.
func (s *Session) updateQueuedSendOrder(subscribeID uint64, oldOrder, newOrder *webtransport.SendOrder) {
	if oldOrder != nil && newOrder != nil && *oldOrder == *newOrder {
		return
	}
	if oldOrder != nil {
		s.removeQueuedStreamEntry(queuedStreamEntry{sendOrder: *oldOrder, subscribeID: subscribeID})
	}
	if newOrder != nil {
		s.insertQueuedStreamEntry(queuedStreamEntry{sendOrder: *newOrder, subscribeID: subscribeID})
	}
}

func (s *Session) insertQueuedStreamEntry(entry queuedStreamEntry) {
	q := s.queuedOutgoingDataStreams
	i := sort.Search(len(q), func(i int) bool {
		return queuedEntryLess(entry, q[i])
	})
	q = append(q, queuedStreamEntry{})
	copy(q[i+1:], q[i:])
	q[i] = entry
	s.queuedOutgoingDataStreams = q
}

func (s *Session) removeQueuedStreamEntry(entry queuedStreamEntry) {
	q := s.queuedOutgoingDataStreams
	i := sort.Search(len(q), func(i int) bool {
		return !queuedEntryLess(q[i], entry)
	})
	if i >= len(q) || q[i] != entry {
		return
	}
	s.queuedOutgoingDataStreams = append(q[:i], q[i+1:]...)
}

/*
 * Incoming control handlers shared with the control stream
 */

// validateIncomingSubscribeID enforces the subscribe id budget and strict
// monotonicity for incoming SUBSCRIBE and FETCH requests.
func (s *Session) validateIncomingSubscribeID(id uint64) bool {
	if id >= s.localMaxSubscribeID {
		s.Error(TooManySubscribesErrorCode, "Received SUBSCRIBE with too large ID")
		return false
	}
	if id < s.nextIncomingSubscribeID {
		s.Error(ProtocolViolationErrorCode, "Subscribe ID not monotonically increasing")
		return false
	}
	s.nextIncomingSubscribeID = id + 1
	return true
}

func (s *Session) sendSubscribeError(msg message.SubscribeMessage, code SubscribeErrorCode, reason string) {
	s.sendControlMessage(message.SerializeSubscribeError(message.SubscribeErrorMessage{
		SubscribeID:  msg.SubscribeID,
		ErrorCode:    uint64(code),
		ReasonPhrase: reason,
		TrackAlias:   msg.TrackAlias,
	}))
}

func (s *Session) sendFetchError(subscribeID uint64, code SubscribeErrorCode, reason string) {
	s.sendControlMessage(message.SerializeFetchError(message.FetchErrorMessage{
		SubscribeID:  subscribeID,
		ErrorCode:    uint64(code),
		ReasonPhrase: reason,
	}))
}

func versionMismatchReason(expected Version) string {
	return fmt.Sprintf("Version mismatch: expected 0x%x", uint64(expected))
}

func trackNameFromParts(namespace []string, name string) FullTrackName {
	parts := make([]string, 0, len(namespace)+1)
	parts = append(parts, namespace...)
	parts = append(parts, name)
	return NewFullTrackName(parts...)
}

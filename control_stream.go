package moqt

import (
	"errors"
	"fmt"
	"math"

	"github.com/quicmoq/moqt/internal/message"
	"github.com/quicmoq/moqt/webtransport"
)

// controlStream owns the session's single bidirectional stream. It feeds
// incoming bytes to the control parser and carries every handler that the
// parser dispatches into.
type controlStream struct {
	session *Session
	stream  webtransport.Stream
	parser  *message.ControlParser

	// Bytes handed to the transport while the stream reported itself
	// blocked. Rearms on the next writability notification.
	blockedBytes int
}

var (
	_ webtransport.StreamVisitor   = (*controlStream)(nil)
	_ message.ControlParserVisitor = (*controlStream)(nil)
)

func newControlStream(s *Session, stream webtransport.Stream) *controlStream {
	cs := &controlStream{session: s, stream: stream}
	cs.parser = message.NewControlParser(cs)
	stream.SetVisitor(cs)
	stream.SetPriority(webtransport.StreamPriority{
		SendGroupID: sendGroupID,
		SendOrder:   controlStreamSendOrder,
	})
	return cs
}

// sendOrBuffer writes one control message, relying on the transport to
// buffer whatever it cannot send immediately. Unacknowledged buffering is
// capped; a peer that stops reading control data kills the session instead
// of growing the buffer without bound.
func (cs *controlStream) sendOrBuffer(data []byte) {
	if !cs.stream.CanWrite() {
		cs.blockedBytes += len(data)
		if cs.blockedBytes > cs.session.parameters.maxBufferedControlBytes() {
			cs.session.Error(InternalSessionErrorCode, "Control stream write buffer overflow")
			return
		}
	}
	if err := cs.stream.Writev([][]byte{data}, false); err != nil {
		cs.session.Error(InternalSessionErrorCode, "Control stream write error")
	}
}

func (cs *controlStream) received(name string) {
	cs.session.metrics.ControlMessageReceived()
	cs.session.logger.Debug("received control message", "type", name)
}

/*
 * Stream events
 */

func (cs *controlStream) OnCanRead() {
	var chunk [4096]byte
	for {
		n, fin := cs.stream.Read(chunk[:])
		if n > 0 || fin {
			cs.parser.ProcessData(chunk[:n], fin)
		}
		if fin || n == 0 {
			return
		}
	}
}

func (cs *controlStream) OnCanWrite() {
	cs.blockedBytes = 0
}

func (cs *controlStream) OnResetStreamReceived(errorCode webtransport.StreamErrorCode) {
	cs.session.Error(ProtocolViolationErrorCode, "Control stream reset")
}

func (cs *controlStream) OnStopSendingReceived(errorCode webtransport.StreamErrorCode) {
	cs.session.Error(ProtocolViolationErrorCode, "Received STOP_SENDING on the control stream")
}

func (cs *controlStream) OnDiscarded() {}

/*
 * Setup
 */

func (cs *controlStream) OnClientSetupMessage(msg message.ClientSetupMessage) {
	cs.received("CLIENT_SETUP")
	s := cs.session
	if s.parameters.Perspective != PerspectiveServer {
		s.Error(ProtocolViolationErrorCode, "Received CLIENT_SETUP from server")
		return
	}
	version := s.parameters.version()
	supported := false
	for _, v := range msg.SupportedVersions {
		if v == version {
			supported = true
			break
		}
	}
	if !supported {
		s.Error(ProtocolViolationErrorCode, versionMismatchReason(version))
		return
	}
	if s.parameters.UsingWebTransport && msg.Path != "" {
		s.Error(ProtocolViolationErrorCode, "WebTransport connection is using PATH parameter")
		return
	}
	if !s.parameters.UsingWebTransport && msg.Path == "" {
		s.Error(ProtocolViolationErrorCode, "PATH parameter is missing")
		return
	}
	s.peerRole = msg.Role
	s.peerSupportsObjectAcks = msg.SupportsObjectAck
	if msg.HasMaxSubscribeID {
		s.peerMaxSubscribeID = msg.MaxSubscribeID
	}
	s.sendControlMessage(message.SerializeServerSetup(message.ServerSetupMessage{
		SelectedVersion:   version,
		Role:              s.parameters.role(),
		HasMaxSubscribeID: true,
		MaxSubscribeID:    s.parameters.MaxSubscribeID,
		SupportsObjectAck: s.parameters.SupportObjectAcks,
	}))
	s.handshakeComplete()
}

func (cs *controlStream) OnServerSetupMessage(msg message.ServerSetupMessage) {
	cs.received("SERVER_SETUP")
	s := cs.session
	if s.parameters.Perspective != PerspectiveClient {
		s.Error(ProtocolViolationErrorCode, "Received SERVER_SETUP from client")
		return
	}
	if msg.SelectedVersion != s.parameters.version() {
		s.Error(ProtocolViolationErrorCode, versionMismatchReason(s.parameters.version()))
		return
	}
	s.peerRole = msg.Role
	s.peerSupportsObjectAcks = msg.SupportsObjectAck
	if msg.HasMaxSubscribeID {
		s.peerMaxSubscribeID = msg.MaxSubscribeID
	}
	s.handshakeComplete()
}

/*
 * Subscriptions we serve
 */

func (cs *controlStream) OnSubscribeMessage(msg message.SubscribeMessage) {
	cs.received("SUBSCRIBE")
	s := cs.session
	if s.peerRole == RolePublisher {
		s.Error(ProtocolViolationErrorCode, "Received SUBSCRIBE from publisher")
		return
	}
	if !s.validateIncomingSubscribeID(msg.SubscribeID) {
		return
	}
	name := trackNameFromParts(msg.TrackNamespace, msg.TrackName)
	trackPublisher, err := s.publisher.GetTrack(name)
	if err != nil {
		s.logger.Debug("rejected SUBSCRIBE for unknown track", "track", name.String())
		s.sendSubscribeError(msg, TrackDoesNotExistErrorCode, err.Error())
		return
	}
	var largest *FullSequence
	if status, statusErr := trackPublisher.GetTrackStatus(); statusErr == nil && statusImpliesData(status) {
		seq := trackPublisher.GetLargestSequence()
		largest = &seq
	}
	absolute := msg.FilterType == message.FilterAbsoluteStart || msg.FilterType == message.FilterAbsoluteRange
	if largest != nil && absolute && msg.StartGroup < largest.Group {
		s.sendSubscribeError(msg, InvalidRangeErrorCode, "SUBSCRIBE starts in previous group")
		return
	}
	if _, ok := s.subscribedTrackNames[name]; ok {
		s.Error(ProtocolViolationErrorCode, "Duplicate subscribe for track")
		return
	}
	var monitor PublishMonitor
	if m, ok := s.monitoringInterfaces[name]; ok {
		monitor = m
		delete(s.monitoringInterfaces, name)
	}
	subscription := newPublishedSubscription(s, trackPublisher, msg, monitor)
	s.publishedSubscriptions[msg.SubscribeID] = subscription
	s.subscribedTrackNames[name] = struct{}{}
	s.metrics.SubscriptionStarted()

	response := message.SubscribeOkMessage{
		SubscribeID: msg.SubscribeID,
		GroupOrder:  uint8(subscription.DeliveryOrder()),
	}
	if largest != nil {
		response.ContentExists = true
		response.LargestGroup = largest.Group
		response.LargestObject = largest.Object
	}
	s.sendControlMessage(message.SerializeSubscribeOk(response))
	s.logger.Debug("accepted SUBSCRIBE",
		"track", name.String(),
		"subscribe_id", msg.SubscribeID,
		"track_alias", msg.TrackAlias)

	if largest != nil {
		subscription.Backfill()
	}
}

func (cs *controlStream) OnSubscribeUpdateMessage(msg message.SubscribeUpdateMessage) {
	cs.received("SUBSCRIBE_UPDATE")
	s := cs.session
	subscription, ok := s.publishedSubscriptions[msg.SubscribeID]
	if !ok {
		return
	}
	if msg.HasEndObject && !msg.HasEndGroup {
		s.Error(ProtocolViolationErrorCode, "SUBSCRIBE_UPDATE has an end object but no end group")
		return
	}
	start := FullSequence{Group: msg.StartGroup, Object: msg.StartObject}
	var end *FullSequence
	if msg.HasEndGroup {
		e := FullSequence{Group: msg.EndGroup, Object: math.MaxUint64}
		if msg.HasEndObject {
			e.Object = msg.EndObject
		}
		end = &e
	}
	subscription.Update(start, end, Priority(msg.SubscriberPriority))
}

func (cs *controlStream) OnUnsubscribeMessage(msg message.UnsubscribeMessage) {
	cs.received("UNSUBSCRIBE")
	cs.session.SubscribeIsDone(msg.SubscribeID, SubscribeDoneUnsubscribed, "")
}

/*
 * Subscriptions we requested
 */

func (cs *controlStream) OnSubscribeOkMessage(msg message.SubscribeOkMessage) {
	cs.received("SUBSCRIBE_OK")
	s := cs.session
	track := s.upstreamByID[msg.SubscribeID]
	if track == nil {
		s.Error(ProtocolViolationErrorCode, "Received SUBSCRIBE_OK for nonexistent subscribe")
		return
	}
	if track.isFetch {
		s.Error(ProtocolViolationErrorCode, "Received SUBSCRIBE_OK for a fetch")
		return
	}
	track.OnObjectOrOK()
	var largest *FullSequence
	if msg.ContentExists {
		largest = &FullSequence{Group: msg.LargestGroup, Object: msg.LargestObject}
	}
	if track.visitor != nil {
		track.visitor.OnReply(track.name, largest, nil)
	}
}

func (cs *controlStream) OnSubscribeErrorMessage(msg message.SubscribeErrorMessage) {
	cs.received("SUBSCRIBE_ERROR")
	s := cs.session
	track := s.upstreamByID[msg.SubscribeID]
	if track == nil {
		s.Error(ProtocolViolationErrorCode, "Received SUBSCRIBE_ERROR for nonexistent subscribe")
		return
	}
	if track.isFetch {
		s.Error(ProtocolViolationErrorCode, "Received SUBSCRIBE_ERROR for a fetch")
		return
	}
	if !track.ErrorIsAllowed() {
		s.Error(ProtocolViolationErrorCode, "Received SUBSCRIBE_ERROR after SUBSCRIBE_OK or objects")
		return
	}
	s.removeUpstreamTrack(track)

	if SubscribeErrorCode(msg.ErrorCode) == RetryTrackAliasErrorCode {
		// Resubscribe transparently with the alias the publisher suggested.
		retry := track.subscribe
		retry.TrackAlias = msg.TrackAlias
		if err := s.subscribe(retry, track.visitor, true); err != nil {
			s.logger.Warn("resubscribe with suggested alias failed",
				"track", track.name.String(), "error", err)
			if track.visitor != nil {
				track.visitor.OnReply(track.name, nil, &SubscribeRejectedError{
					Code:   RetryTrackAliasErrorCode,
					Reason: "resubscribe failed: " + err.Error(),
				})
			}
		}
		return
	}
	s.logger.Debug("subscribe rejected",
		"track", track.name.String(), "code", msg.ErrorCode, "reason", msg.ReasonPhrase)
	if track.visitor != nil {
		track.visitor.OnReply(track.name, nil, &SubscribeRejectedError{
			Code:   SubscribeErrorCode(msg.ErrorCode),
			Reason: msg.ReasonPhrase,
		})
	}
}

func (cs *controlStream) OnSubscribeDoneMessage(msg message.SubscribeDoneMessage) {
	cs.received("SUBSCRIBE_DONE")
	s := cs.session
	track := s.upstreamByID[msg.SubscribeID]
	if track == nil || track.isFetch {
		s.logger.Debug("ignoring SUBSCRIBE_DONE for unknown subscribe",
			"subscribe_id", msg.SubscribeID)
		return
	}
	s.removeUpstreamTrack(track)
	if track.visitor != nil {
		track.visitor.OnSubscribeDone(track.name, SubscribeDoneCode(msg.StatusCode), msg.ReasonPhrase)
	}
}

/*
 * Announces
 */

func (cs *controlStream) OnAnnounceMessage(msg message.AnnounceMessage) {
	cs.received("ANNOUNCE")
	s := cs.session
	if s.peerRole == RoleSubscriber {
		s.Error(ProtocolViolationErrorCode, "Received ANNOUNCE from subscriber")
		return
	}
	namespace := NewFullTrackName(msg.TrackNamespace...)
	var err error
	if s.callbacks.OnIncomingAnnounce != nil {
		err = s.callbacks.OnIncomingAnnounce(namespace)
	} else {
		err = &AnnounceRejectedError{
			Code:   AnnounceNotSupportedErrorCode,
			Reason: "ANNOUNCE not supported",
		}
	}
	if err == nil {
		s.sendControlMessage(message.SerializeAnnounceOk(message.AnnounceOkMessage{
			TrackNamespace: msg.TrackNamespace,
		}))
		return
	}
	rejected := &AnnounceRejectedError{}
	if !errors.As(err, &rejected) {
		rejected = &AnnounceRejectedError{Code: InternalAnnounceErrorCode, Reason: err.Error()}
	}
	s.sendControlMessage(message.SerializeAnnounceError(message.AnnounceErrorMessage{
		TrackNamespace: msg.TrackNamespace,
		ErrorCode:      uint64(rejected.Code),
		ReasonPhrase:   rejected.Reason,
	}))
}

func (cs *controlStream) OnAnnounceOkMessage(msg message.AnnounceOkMessage) {
	cs.received("ANNOUNCE_OK")
	s := cs.session
	namespace := NewFullTrackName(msg.TrackNamespace...)
	callback, ok := s.pendingOutgoingAnnounces[namespace]
	if !ok {
		s.Error(ProtocolViolationErrorCode, "Received ANNOUNCE_OK for nonexistent announce")
		return
	}
	delete(s.pendingOutgoingAnnounces, namespace)
	if callback != nil {
		callback(namespace, nil)
	}
}

func (cs *controlStream) OnAnnounceErrorMessage(msg message.AnnounceErrorMessage) {
	cs.received("ANNOUNCE_ERROR")
	s := cs.session
	namespace := NewFullTrackName(msg.TrackNamespace...)
	callback, ok := s.pendingOutgoingAnnounces[namespace]
	if !ok {
		s.Error(ProtocolViolationErrorCode, "Received ANNOUNCE_ERROR for nonexistent announce")
		return
	}
	delete(s.pendingOutgoingAnnounces, namespace)
	if callback != nil {
		callback(namespace, &AnnounceRejectedError{
			Code:   AnnounceErrorCode(msg.ErrorCode),
			Reason: msg.ReasonPhrase,
		})
	}
}

func (cs *controlStream) OnAnnounceCancelMessage(msg message.AnnounceCancelMessage) {
	cs.received("ANNOUNCE_CANCEL")
	// TODO: propagate the cancellation to the application once there is a
	// caller that keeps announcements alive past the initial response.
	cs.session.logger.Debug("received ANNOUNCE_CANCEL",
		"namespace", NewFullTrackName(msg.TrackNamespace...).String(),
		"code", msg.ErrorCode)
}

/*
 * Limits, fetches and acknowledgments
 */

func (cs *controlStream) OnMaxSubscribeIDMessage(msg message.MaxSubscribeIDMessage) {
	cs.received("MAX_SUBSCRIBE_ID")
	s := cs.session
	if s.peerRole == RoleSubscriber {
		s.Error(ProtocolViolationErrorCode, "Received MAX_SUBSCRIBE_ID from subscriber")
		return
	}
	if msg.SubscribeID < s.peerMaxSubscribeID {
		s.Error(ProtocolViolationErrorCode, "MAX_SUBSCRIBE_ID message has lower value than previous")
		return
	}
	s.peerMaxSubscribeID = msg.SubscribeID
}

func (cs *controlStream) OnFetchMessage(msg message.FetchMessage) {
	cs.received("FETCH")
	s := cs.session
	if s.peerRole == RolePublisher {
		s.Error(ProtocolViolationErrorCode, "Received FETCH from publisher")
		return
	}
	if !s.validateIncomingSubscribeID(msg.SubscribeID) {
		return
	}
	name := trackNameFromParts(msg.TrackNamespace, msg.TrackName)
	trackPublisher, err := s.publisher.GetTrack(name)
	if err != nil {
		s.sendFetchError(msg.SubscribeID, TrackDoesNotExistErrorCode, err.Error())
		return
	}
	order := DeliveryOrder(msg.GroupOrder)
	if order != DeliveryOrderAscending && order != DeliveryOrderDescending {
		order = trackPublisher.GetDeliveryOrder()
	}
	var endObject *uint64
	if msg.HasEndObject {
		endObject = &msg.EndObject
	}
	task := trackPublisher.Fetch(
		FullSequence{Group: msg.StartGroup, Object: msg.StartObject},
		msg.EndGroup, endObject, order)
	if taskErr := task.GetStatus(); taskErr != nil {
		s.sendFetchError(msg.SubscribeID, InvalidRangeErrorCode, taskErr.Error())
		return
	}
	fetch := &publishedFetch{
		fetchID:           msg.SubscribeID,
		session:           s,
		task:              task,
		publisherPriority: trackPublisher.GetPublisherPriority(),
		sendOrder: sendOrderForTrackStream(
			Priority(msg.SubscriberPriority),
			trackPublisher.GetPublisherPriority(),
			0, order),
	}
	s.incomingFetches[msg.SubscribeID] = fetch

	largest := task.GetLargestID()
	s.sendControlMessage(message.SerializeFetchOk(message.FetchOkMessage{
		SubscribeID:   msg.SubscribeID,
		GroupOrder:    uint8(order),
		LargestGroup:  largest.Group,
		LargestObject: largest.Object,
	}))
	s.logger.Debug("accepted FETCH", "track", name.String(), "subscribe_id", msg.SubscribeID)

	if s.transport.CanOpenNextOutgoingUnidirectionalStream() {
		s.openDataStreamForFetch(fetch)
	} else {
		s.insertQueuedStreamEntry(queuedStreamEntry{
			sendOrder:   fetch.sendOrder,
			subscribeID: fetch.fetchID,
		})
	}
}

func (cs *controlStream) OnFetchOkMessage(msg message.FetchOkMessage) {
	cs.received("FETCH_OK")
	s := cs.session
	track := s.upstreamByID[msg.SubscribeID]
	if track == nil {
		s.Error(ProtocolViolationErrorCode, "Received FETCH_OK for nonexistent fetch")
		return
	}
	if !track.isFetch {
		s.Error(ProtocolViolationErrorCode, "Received FETCH_OK for a subscribe")
		return
	}
	track.OnObjectOrOK()
	largest := &FullSequence{Group: msg.LargestGroup, Object: msg.LargestObject}
	if track.visitor != nil {
		track.visitor.OnReply(track.name, largest, nil)
	}
}

func (cs *controlStream) OnFetchErrorMessage(msg message.FetchErrorMessage) {
	cs.received("FETCH_ERROR")
	s := cs.session
	track := s.upstreamByID[msg.SubscribeID]
	if track == nil {
		s.Error(ProtocolViolationErrorCode, "Received FETCH_ERROR for nonexistent fetch")
		return
	}
	if !track.isFetch {
		s.Error(ProtocolViolationErrorCode, "Received FETCH_ERROR for a subscribe")
		return
	}
	s.removeUpstreamTrack(track)
	if track.visitor != nil {
		track.visitor.OnReply(track.name, nil, &SubscribeRejectedError{
			Code:   SubscribeErrorCode(msg.ErrorCode),
			Reason: msg.ReasonPhrase,
		})
	}
}

func (cs *controlStream) OnObjectAckMessage(msg message.ObjectAckMessage) {
	cs.received("OBJECT_ACK")
	s := cs.session
	if !s.parameters.SupportObjectAcks {
		s.Error(ProtocolViolationErrorCode, "Received OBJECT_ACK when not supported")
		return
	}
	subscription, ok := s.publishedSubscriptions[msg.SubscribeID]
	if !ok {
		return
	}
	subscription.OnObjectAckReceived(msg.Group, msg.Object, msg.DeltaFromDeadline)
}

func (cs *controlStream) OnParsingError(code message.ParseErrorCode, reason string) {
	cs.session.Error(SessionErrorCode(code), fmt.Sprintf("Parse error: %s", reason))
}

func (s *Session) handshakeComplete() {
	s.established = true
	s.metrics.SessionOpened()
	s.logger.Info("session established",
		"version", uint64(s.parameters.version()),
		"peer_role", s.peerRole.String())
	if s.callbacks.OnSessionEstablished != nil {
		s.callbacks.OnSessionEstablished()
	}
}

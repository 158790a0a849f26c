package moqt

import (
	"math"
	"sort"
	"time"

	"github.com/quicmoq/moqt/internal/message"
	"github.com/quicmoq/moqt/webtransport"
)

// queuedFirstObject is one mapping unit waiting for an outgoing stream.
// The send order is stored with the subscriber priority bits zeroed so the
// queue keeps its shape when the subscriber reprioritizes the subscription.
type queuedFirstObject struct {
	sendOrder webtransport.SendOrder
	sequence  FullSequence
}

// publishedSubscription is the state for one track the session serves to
// its peer. It listens on the track publisher and maps new objects onto
// outgoing data streams or datagrams.
type publishedSubscription struct {
	session        *Session
	trackPublisher TrackPublisher
	subscribeID    uint64
	trackAlias     uint64
	window         subscribeWindow

	subscriberPriority      Priority
	subscriberDeliveryOrder *DeliveryOrder

	// Open data streams, keyed by the mapping unit they carry.
	streams *sendStreamMap

	// Mapping units ready to open a stream, sorted by ascending send order.
	queuedStreams []queuedFirstObject

	largestSentSequence *FullSequence

	monitor PublishMonitor
}

var _ ObjectListener = (*publishedSubscription)(nil)

func newPublishedSubscription(s *Session, trackPublisher TrackPublisher, msg message.SubscribeMessage, monitor PublishMonitor) *publishedSubscription {
	largest := FullSequence{}
	if status, err := trackPublisher.GetTrackStatus(); err == nil && statusImpliesData(status) {
		largest = trackPublisher.GetLargestSequence()
	}
	subscription := &publishedSubscription{
		session:            s,
		trackPublisher:     trackPublisher,
		subscribeID:        msg.SubscribeID,
		trackAlias:         msg.TrackAlias,
		window:             windowForPublishedSubscribe(msg, largest),
		subscriberPriority: Priority(msg.SubscriberPriority),
		streams:            newSendStreamMap(trackPublisher.GetForwardingPreference()),
		monitor:            monitor,
	}
	if order := DeliveryOrder(msg.GroupOrder); order == DeliveryOrderAscending || order == DeliveryOrderDescending {
		subscription.subscriberDeliveryOrder = &order
	}
	trackPublisher.AddObjectListener(subscription)
	if monitor != nil {
		monitor.OnObjectAckSupportKnown(s.SupportsObjectAcks())
	}
	return subscription
}

// windowForPublishedSubscribe resolves the filter of an incoming SUBSCRIBE
// against the largest sequence the track has produced so far.
func windowForPublishedSubscribe(msg message.SubscribeMessage, largest FullSequence) subscribeWindow {
	switch msg.FilterType {
	case message.FilterLatestGroup:
		return newUnboundedWindow(FullSequence{Group: largest.Group})
	case message.FilterAbsoluteStart:
		return newUnboundedWindow(FullSequence{Group: msg.StartGroup, Object: msg.StartObject})
	case message.FilterAbsoluteRange:
		end := FullSequence{Group: msg.EndGroup, Object: math.MaxUint64}
		if msg.HasEndObject {
			end.Object = msg.EndObject
		}
		return newBoundedWindow(FullSequence{Group: msg.StartGroup, Object: msg.StartObject}, end)
	default:
		return newUnboundedWindow(largest)
	}
}

func (ps *publishedSubscription) destroy() {
	ps.trackPublisher.RemoveObjectListener(ps)
}

func (ps *publishedSubscription) DeliveryOrder() DeliveryOrder {
	if ps.subscriberDeliveryOrder != nil {
		return *ps.subscriberDeliveryOrder
	}
	return ps.trackPublisher.GetDeliveryOrder()
}

func (ps *publishedSubscription) largestSent() *FullSequence {
	return ps.largestSentSequence
}

// Update applies a SUBSCRIBE_UPDATE: narrow or move the window and adopt
// the new subscriber priority.
func (ps *publishedSubscription) Update(start FullSequence, end *FullSequence, priority Priority) {
	ps.window.UpdateStartEnd(start, end)
	ps.setSubscriberPriority(priority)
}

func (ps *publishedSubscription) setSubscriberPriority(priority Priority) {
	if priority == ps.subscriberPriority {
		return
	}
	if len(ps.queuedStreams) == 0 {
		ps.subscriberPriority = priority
		ps.updateOpenStreamPriorities()
		return
	}
	oldOrder := ps.finalizeSendOrder(ps.queuedStreams[len(ps.queuedStreams)-1].sendOrder)
	ps.subscriberPriority = priority
	newOrder := ps.finalizeSendOrder(ps.queuedStreams[len(ps.queuedStreams)-1].sendOrder)
	ps.session.updateQueuedSendOrder(ps.subscribeID, &oldOrder, &newOrder)
	ps.updateOpenStreamPriorities()
}

func (ps *publishedSubscription) updateOpenStreamPriorities() {
	for _, id := range ps.streams.GetAllStreams() {
		stream := ps.session.transport.GetStreamByID(id)
		if stream == nil {
			continue
		}
		if outgoing, ok := stream.Visitor().(*outgoingDataStream); ok {
			outgoing.updateSendOrder(ps)
		}
	}
}

/*
 * ObjectListener
 */

func (ps *publishedSubscription) OnNewObjectAvailable(sequence FullSequence) {
	if !ps.window.InWindow(sequence) {
		return
	}
	if ps.trackPublisher.GetForwardingPreference() == ForwardingPreferenceDatagram {
		ps.SendDatagram(sequence)
		return
	}
	if id, ok := ps.streams.GetStreamForSequence(sequence); ok {
		stream := ps.session.transport.GetStreamByID(id)
		if stream == nil {
			return
		}
		if outgoing, ok := stream.Visitor().(*outgoingDataStream); ok {
			outgoing.SendObjects(ps)
		}
		return
	}
	ps.session.openOrQueueDataStream(ps.subscribeID, sequence)
}

func (ps *publishedSubscription) OnNewFinAvailable(sequence FullSequence) {
	if !ps.window.InWindow(sequence) {
		return
	}
	if ps.trackPublisher.GetForwardingPreference() == ForwardingPreferenceDatagram {
		return
	}
	id, ok := ps.streams.GetStreamForSequence(sequence)
	if !ok {
		return
	}
	stream := ps.session.transport.GetStreamByID(id)
	if stream == nil {
		return
	}
	if outgoing, ok := stream.Visitor().(*outgoingDataStream); ok {
		outgoing.Fin(sequence)
	}
}

func (ps *publishedSubscription) OnGroupAbandoned(groupID uint64) {
	for _, id := range ps.streams.GetStreamsForGroup(groupID) {
		stream := ps.session.transport.GetStreamByID(id)
		if stream == nil {
			continue
		}
		stream.ResetWithUserCode(ResetCodeTimedOut)
	}
}

func (ps *publishedSubscription) OnTrackPublisherGone() {
	ps.session.SubscribeIsDone(ps.subscribeID, SubscribeDoneTrackEnded, "Publisher is gone")
}

// Backfill delivers the cached objects that were already published when the
// subscription arrived. Objects sharing a mapping unit ride the stream
// opened for the first of them.
func (ps *publishedSubscription) Backfill() {
	start := ps.window.start
	end := ps.trackPublisher.GetLargestSequence()
	preference := ps.trackPublisher.GetForwardingPreference()

	alreadyOpened := make(map[reducedSequenceIndex]struct{})
	for _, sequence := range ps.trackPublisher.GetCachedObjectsInRange(start, end) {
		index := reduceSequence(sequence, preference)
		if _, ok := alreadyOpened[index]; ok {
			continue
		}
		alreadyOpened[index] = struct{}{}
		if preference == ForwardingPreferenceDatagram {
			ps.SendDatagram(sequence)
			continue
		}
		ps.session.openOrQueueDataStream(ps.subscribeID, sequence)
	}
}

/*
 * Send orders and the per-subscription stream queue
 */

// GetSendOrder computes the send order a stream carrying the given sequence
// should use right now.
func (ps *publishedSubscription) GetSendOrder(sequence FullSequence) webtransport.SendOrder {
	publisherPriority := ps.trackPublisher.GetPublisherPriority()
	order := ps.DeliveryOrder()
	switch ps.trackPublisher.GetForwardingPreference() {
	case ForwardingPreferenceTrack:
		return sendOrderForTrackStream(ps.subscriberPriority, publisherPriority, sequence.Group, order)
	case ForwardingPreferenceSubgroup:
		return sendOrderForSubgroupStream(ps.subscriberPriority, publisherPriority, sequence.Group, sequence.Subgroup, order)
	default:
		return 0
	}
}

// finalizeSendOrder reapplies the current subscriber priority to a
// priority-neutral queue key.
func (ps *publishedSubscription) finalizeSendOrder(sendOrder webtransport.SendOrder) webtransport.SendOrder {
	return updateSendOrderForSubscriberPriority(sendOrder, ps.subscriberPriority)
}

// AddQueuedOutgoingDataStream queues a mapping unit until the transport can
// open another unidirectional stream, keeping the session-level queue entry
// at this subscription's highest send order.
func (ps *publishedSubscription) AddQueuedOutgoingDataStream(firstObject FullSequence) {
	var previousMax *webtransport.SendOrder
	if n := len(ps.queuedStreams); n > 0 {
		order := ps.finalizeSendOrder(ps.queuedStreams[n-1].sendOrder)
		previousMax = &order
	}
	sendOrder := updateSendOrderForSubscriberPriority(ps.GetSendOrder(firstObject), 0)
	i := sort.Search(len(ps.queuedStreams), func(i int) bool {
		return ps.queuedStreams[i].sendOrder > sendOrder
	})
	ps.queuedStreams = append(ps.queuedStreams, queuedFirstObject{})
	copy(ps.queuedStreams[i+1:], ps.queuedStreams[i:])
	ps.queuedStreams[i] = queuedFirstObject{sendOrder: sendOrder, sequence: firstObject}

	newMax := ps.finalizeSendOrder(ps.queuedStreams[len(ps.queuedStreams)-1].sendOrder)
	if previousMax == nil {
		ps.session.updateQueuedSendOrder(ps.subscribeID, nil, &newMax)
	} else if *previousMax < newMax {
		ps.session.updateQueuedSendOrder(ps.subscribeID, previousMax, &newMax)
	}
}

// NextQueuedOutgoingDataStream pops the queued mapping unit with the
// highest send order and moves or retires the session-level queue entry.
func (ps *publishedSubscription) NextQueuedOutgoingDataStream() (FullSequence, bool) {
	n := len(ps.queuedStreams)
	if n == 0 {
		return FullSequence{}, false
	}
	entry := ps.queuedStreams[n-1]
	oldOrder := ps.finalizeSendOrder(entry.sendOrder)
	ps.queuedStreams = ps.queuedStreams[:n-1]
	if len(ps.queuedStreams) == 0 {
		ps.session.updateQueuedSendOrder(ps.subscribeID, &oldOrder, nil)
	} else {
		newOrder := ps.finalizeSendOrder(ps.queuedStreams[len(ps.queuedStreams)-1].sendOrder)
		if oldOrder != newOrder {
			ps.session.updateQueuedSendOrder(ps.subscribeID, &oldOrder, &newOrder)
		}
	}
	return entry.sequence, true
}

/*
 * Stream bookkeeping
 */

func (ps *publishedSubscription) OnDataStreamCreated(id webtransport.StreamID, firstObject FullSequence) {
	ps.streams.AddStream(firstObject, id)
}

func (ps *publishedSubscription) OnDataStreamDestroyed(id webtransport.StreamID, lastObject FullSequence) {
	ps.streams.RemoveStream(lastObject, id)
}

func (ps *publishedSubscription) GetAllStreams() []webtransport.StreamID {
	return ps.streams.GetAllStreams()
}

func (ps *publishedSubscription) OnObjectSent(sequence FullSequence) {
	if ps.largestSentSequence == nil || ps.largestSentSequence.Less(sequence) {
		seq := sequence
		ps.largestSentSequence = &seq
	}
}

func (ps *publishedSubscription) OnObjectAckReceived(group, object uint64, deltaFromDeadline time.Duration) {
	if ps.monitor != nil {
		ps.monitor.OnObjectAckReceived(group, object, deltaFromDeadline)
	}
}

// SendDatagram sends one cached object as a datagram.
func (ps *publishedSubscription) SendDatagram(sequence FullSequence) {
	object, ok := ps.trackPublisher.GetCachedObject(sequence)
	if !ok {
		ps.session.logger.Warn("attempted to send an uncached object as a datagram",
			"sequence", sequence.String())
		return
	}
	header := message.ObjectHeader{
		TrackAlias:        ps.trackAlias,
		Group:             object.Sequence.Group,
		Subgroup:          object.Sequence.Subgroup,
		ObjectID:          object.Sequence.Object,
		PublisherPriority: uint8(ps.trackPublisher.GetPublisherPriority()),
		Status:            object.Status,
		PayloadLength:     uint64(len(object.Payload)),
	}
	ps.session.transport.SendOrQueueDatagram(message.SerializeObjectDatagram(header, object.Payload))
	ps.session.metrics.ObjectSent(len(object.Payload))
	ps.OnObjectSent(object.Sequence)
}

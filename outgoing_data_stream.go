package moqt

import (
	"github.com/quicmoq/moqt/internal/message"
	"github.com/quicmoq/moqt/webtransport"
)

// outgoingDataStream writes one mapping unit of a published subscription:
// a whole track, or a single subgroup, depending on the track's forwarding
// preference.
type outgoingDataStream struct {
	session     *Session
	stream      webtransport.Stream
	subscribeID uint64

	// The object the stream should send next. Advances strictly in object
	// order; a cache miss here pauses the stream until the object arrives.
	nextSequence FullSequence

	headerWritten bool

	liveness *livenessToken
}

var _ webtransport.StreamVisitor = (*outgoingDataStream)(nil)

func newOutgoingDataStream(s *Session, stream webtransport.Stream, subscription *publishedSubscription, firstObject FullSequence) *outgoingDataStream {
	ds := &outgoingDataStream{
		session:      s,
		stream:       stream,
		subscribeID:  subscription.subscribeID,
		nextSequence: firstObject,
		liveness:     s.liveness,
	}
	stream.SetVisitor(ds)
	ds.updateSendOrder(subscription)
	return ds
}

// getSubscriptionIfValid resolves the owning subscription, resetting the
// stream if the subscription is gone.
func (ds *outgoingDataStream) getSubscriptionIfValid() *publishedSubscription {
	subscription, ok := ds.session.publishedSubscriptions[ds.subscribeID]
	if !ok {
		ds.stream.ResetWithUserCode(ResetCodeSubscriptionGone)
		return nil
	}
	status, err := subscription.trackPublisher.GetTrackStatus()
	if err != nil {
		return nil
	}
	if !statusImpliesData(status) {
		ds.session.Error(InternalSessionErrorCode, "Invalid track state provided by application")
		return nil
	}
	return subscription
}

func (ds *outgoingDataStream) OnCanWrite() {
	subscription := ds.getSubscriptionIfValid()
	if subscription == nil {
		return
	}
	ds.SendObjects(subscription)
}

// SendObjects writes cached objects in order until the stream blocks or the
// next object is not cached yet.
func (ds *outgoingDataStream) SendObjects(subscription *publishedSubscription) {
	ds.updateSendOrder(subscription)
	for ds.stream.CanWrite() {
		object, ok := subscription.trackPublisher.GetCachedObject(ds.nextSequence)
		if !ok {
			return
		}
		// The publisher may skip ahead to a later object on this carrier.
		ds.nextSequence = object.Sequence
		if !subscription.window.InWindow(ds.nextSequence) {
			ds.stream.SendFin()
			return
		}
		ds.sendNextObject(subscription, object)
	}
}

func (ds *outgoingDataStream) sendNextObject(subscription *publishedSubscription, object PublishedObject) {
	streamType := message.StreamTypeSubgroup
	if subscription.trackPublisher.GetForwardingPreference() == ForwardingPreferenceTrack {
		streamType = message.StreamTypeTrack
	}
	header := message.ObjectHeader{
		TrackAlias:        subscription.trackAlias,
		Group:             object.Sequence.Group,
		Subgroup:          object.Sequence.Subgroup,
		ObjectID:          object.Sequence.Object,
		PublisherPriority: uint8(subscription.trackPublisher.GetPublisherPriority()),
		Status:            object.Status,
		PayloadLength:     uint64(len(object.Payload)),
	}
	data := message.SerializeObjectHeader(header, streamType, !ds.headerWritten)
	if err := ds.stream.Writev([][]byte{data, object.Payload}, object.FinAfterThis); err != nil {
		ds.session.Error(InternalSessionErrorCode, "Data stream write error")
		return
	}
	ds.headerWritten = true
	ds.session.metrics.ObjectSent(len(object.Payload))
	subscription.OnObjectSent(object.Sequence)
	ds.nextSequence = object.Sequence.Next()
	ds.updateSendOrder(subscription)
}

// Fin closes the stream once everything up to lastObject went out. When the
// last object is still pending, its FinAfterThis flag carries the FIN.
func (ds *outgoingDataStream) Fin(lastObject FullSequence) {
	if !lastObject.Less(ds.nextSequence) {
		return
	}
	ds.stream.SendFin()
}

func (ds *outgoingDataStream) updateSendOrder(subscription *publishedSubscription) {
	ds.stream.SetPriority(webtransport.StreamPriority{
		SendGroupID: sendGroupID,
		SendOrder:   subscription.GetSendOrder(ds.nextSequence),
	})
}

func (ds *outgoingDataStream) OnCanRead() {}

func (ds *outgoingDataStream) OnResetStreamReceived(errorCode webtransport.StreamErrorCode) {}

func (ds *outgoingDataStream) OnStopSendingReceived(errorCode webtransport.StreamErrorCode) {
	ds.stream.ResetWithUserCode(ResetCodeSubscriptionGone)
}

func (ds *outgoingDataStream) OnDiscarded() {
	if ds.liveness.dead {
		return
	}
	subscription, ok := ds.session.publishedSubscriptions[ds.subscribeID]
	if !ok {
		return
	}
	subscription.OnDataStreamDestroyed(ds.stream.StreamID(), ds.nextSequence)
}

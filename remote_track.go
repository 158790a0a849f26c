package moqt

import (
	"math"
	"time"

	"github.com/quicmoq/moqt/internal/message"
)

// ObjectAckFunc acknowledges a received object back to the publisher.
// A negative deltaFromDeadline reports a late arrival.
type ObjectAckFunc func(groupID, objectID uint64, deltaFromDeadline time.Duration)

// RemoteTrackVisitor is the application's receive surface for a single
// upstream subscription or fetch. All callbacks run on the session's
// event loop.
type RemoteTrackVisitor interface {
	// OnReply fires once when the publisher answers the request. On
	// acceptance err is nil and largest points at the newest sequence the
	// publisher reported, if any. On rejection err is a
	// *SubscribeRejectedError and the subscription is already gone.
	OnReply(name FullTrackName, largest *FullSequence, err error)

	// OnCanAckObjects hands over the acknowledgment function when both
	// endpoints negotiated OBJECT_ACK support.
	OnCanAckObjects(ack ObjectAckFunc)

	// OnObjectFragment delivers object data. Unless the session was
	// configured to deliver partial objects, payload is the full object
	// and endOfMessage is true.
	OnObjectFragment(name FullTrackName, sequence FullSequence, publisherPriority Priority, status ObjectStatus, payload []byte, endOfMessage bool)

	// OnSubscribeDone reports that the publisher finished the
	// subscription. The track's mappings are already removed.
	OnSubscribeDone(name FullTrackName, code SubscribeDoneCode, reason string)
}

// remoteTrack is the session-side state of one upstream subscription or
// fetch.
type remoteTrack struct {
	name        FullTrackName
	subscribeID uint64
	trackAlias  uint64
	isFetch     bool
	visitor     RemoteTrackVisitor
	window      subscribeWindow

	// The original request, kept so a RetryTrackAlias rejection can be
	// replayed with a fresh alias.
	subscribe message.SubscribeMessage

	// A SUBSCRIBE_ERROR is only legal before any SUBSCRIBE_OK or object.
	okOrObjectSeen bool

	streamType    message.DataStreamType
	hasStreamType bool
}

func (t *remoteTrack) OnObjectOrOK() {
	t.okOrObjectSeen = true
}

func (t *remoteTrack) ErrorIsAllowed() bool {
	return !t.okOrObjectSeen
}

// CheckDataStreamType latches the delivery mechanism of the track on first
// use and reports whether later data sticks to it.
func (t *remoteTrack) CheckDataStreamType(typ message.DataStreamType) bool {
	if !t.hasStreamType {
		t.streamType = typ
		t.hasStreamType = true
		return true
	}
	return t.streamType == typ
}

func (t *remoteTrack) InWindow(sequence FullSequence) bool {
	return t.window.InWindow(sequence)
}

// subscribeMessageWindow derives the admission window of an upstream
// subscription. Latest filters resolve against state only the publisher
// knows, so locally they admit everything from the beginning.
func subscribeMessageWindow(msg message.SubscribeMessage) subscribeWindow {
	switch msg.FilterType {
	case message.FilterAbsoluteStart:
		return newUnboundedWindow(FullSequence{Group: msg.StartGroup, Object: msg.StartObject})
	case message.FilterAbsoluteRange:
		end := FullSequence{Group: msg.EndGroup, Object: math.MaxUint64}
		if msg.HasEndObject {
			end.Object = msg.EndObject
		}
		return newBoundedWindow(FullSequence{Group: msg.StartGroup, Object: msg.StartObject}, end)
	default:
		return newUnboundedWindow(FullSequence{})
	}
}

func fetchWindow(startGroup, startObject, endGroup uint64, endObject *uint64) subscribeWindow {
	end := FullSequence{Group: endGroup, Object: math.MaxUint64}
	if endObject != nil {
		end.Object = *endObject
	}
	return newBoundedWindow(FullSequence{Group: startGroup, Object: startObject}, end)
}

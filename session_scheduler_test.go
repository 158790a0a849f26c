package moqt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quicmoq/moqt/internal/message"
)

// subscribeWithPriority installs a downstream subscription with the given
// subscriber priority on a track that has no content yet.
func subscribeWithPriority(h *sessionHarness, id, alias uint64, track *fakeTrackPublisher, priority Priority) {
	msg := incomingSubscribe(id, alias, track.name, message.FilterLatestGroup)
	msg.SubscriberPriority = uint8(priority)
	h.receiveControl(message.SerializeSubscribe(msg))
}

func TestQueuedStreamsOpenBySendOrder(t *testing.T) {
	trackA := newFakeTrack("ns", "a")
	trackB := newFakeTrack("ns", "b")
	h := publisherHarness(t, trackA, trackB)

	// A outranks B on the wire: lower priority values are more important.
	subscribeWithPriority(h, 0, 1, trackA, 0x10)
	subscribeWithPriority(h, 1, 2, trackB, 0x80)
	h.requireAlive()

	// Starve the transport, then let both subscriptions ask for a stream.
	h.transport.openableUni = 0
	trackA.publish(FullSequence{Group: 0, Object: 0}, "a0")
	trackB.publish(FullSequence{Group: 0, Object: 0}, "b0")

	assert.Empty(t, h.transport.openedUni)
	require.Len(t, h.session.queuedOutgoingDataStreams, 2)

	// One stream of capacity goes to A, the higher send order.
	h.transport.grantUniStreams(1)
	require.Len(t, h.transport.openedUni, 1)
	typ, objects := parseDataStream(t, h.transport.openedUni[0])
	assert.Equal(t, message.StreamTypeSubgroup, typ)
	require.Len(t, objects, 1)
	assert.Equal(t, uint64(1), objects[0].header.TrackAlias)
	assert.Equal(t, []byte("a0"), objects[0].payload)

	// The next grant drains B.
	h.transport.grantUniStreams(1)
	require.Len(t, h.transport.openedUni, 2)
	typ, objects = parseDataStream(t, h.transport.openedUni[1])
	assert.Equal(t, message.StreamTypeSubgroup, typ)
	require.Len(t, objects, 1)
	assert.Equal(t, uint64(2), objects[0].header.TrackAlias)
	assert.Equal(t, []byte("b0"), objects[0].payload)

	assert.Empty(t, h.session.queuedOutgoingDataStreams)
	streamA, streamB := h.transport.openedUni[0], h.transport.openedUni[1]
	assert.Greater(t, streamA.priority.SendOrder, streamB.priority.SendOrder)
}

func TestQueueSkipsStaleEntries(t *testing.T) {
	track := newFakeTrack("ns", "a")
	h := publisherHarness(t, track)

	h.receiveControl(message.SerializeSubscribe(incomingSubscribe(0, 1, track.name, message.FilterLatestGroup)))
	h.transport.openableUni = 0
	track.publish(FullSequence{Group: 0, Object: 0}, "o0")
	require.Len(t, h.session.queuedOutgoingDataStreams, 1)

	// Tearing the subscription down leaves its queue entry behind; the
	// scheduler drops it on the next pass instead of opening a stream.
	h.receiveControl(message.SerializeUnsubscribe(message.UnsubscribeMessage{SubscribeID: 0}))
	require.Len(t, h.session.queuedOutgoingDataStreams, 1)

	h.transport.grantUniStreams(1)
	h.requireAlive()
	assert.Empty(t, h.transport.openedUni)
	assert.Empty(t, h.session.queuedOutgoingDataStreams)
}

func TestSubscribeUpdateReordersQueue(t *testing.T) {
	trackA := newFakeTrack("ns", "a")
	trackB := newFakeTrack("ns", "b")
	h := publisherHarness(t, trackA, trackB)

	subscribeWithPriority(h, 0, 1, trackA, 0x80)
	subscribeWithPriority(h, 1, 2, trackB, 0x40)

	h.transport.openableUni = 0
	trackA.publish(FullSequence{Group: 0, Object: 0}, "a0")
	trackB.publish(FullSequence{Group: 0, Object: 0}, "b0")
	require.Len(t, h.session.queuedOutgoingDataStreams, 2)

	// B would win as queued; the update flips the ranking before any
	// capacity shows up.
	h.receiveControl(message.SerializeSubscribeUpdate(message.SubscribeUpdateMessage{
		SubscribeID:        0,
		SubscriberPriority: 0x10,
	}))
	h.requireAlive()

	h.transport.grantUniStreams(1)
	require.Len(t, h.transport.openedUni, 1)
	_, objects := parseDataStream(t, h.transport.openedUni[0])
	require.Len(t, objects, 1)
	assert.Equal(t, uint64(1), objects[0].header.TrackAlias)
	assert.Equal(t, []byte("a0"), objects[0].payload)

	h.transport.grantUniStreams(1)
	require.Len(t, h.transport.openedUni, 2)
	_, objects = parseDataStream(t, h.transport.openedUni[1])
	require.Len(t, objects, 1)
	assert.Equal(t, uint64(2), objects[0].header.TrackAlias)
}

func TestQueuedFetchOpensWhenCapacityReturns(t *testing.T) {
	track := newFakeTrack("ns", "a")
	track.addObject(FullSequence{Group: 0, Object: 0}, "f0")
	track.fetchTask = &fakeFetchTask{
		steps: []fetchStep{
			{result: FetchSuccess, object: PublishedObject{
				Sequence: FullSequence{Group: 0, Object: 0},
				Payload:  []byte("f0"),
			}},
		},
		largest: FullSequence{Group: 0, Object: 0},
	}
	h := publisherHarness(t, track)

	h.transport.openableUni = 0
	h.receiveControl(message.SerializeFetch(message.FetchMessage{
		SubscribeID:        0,
		TrackNamespace:     track.name.Namespace(),
		TrackName:          track.name.Name(),
		SubscriberPriority: uint8(DefaultSubscriberPriority),
		StartGroup:         0,
		StartObject:        0,
		EndGroup:           0,
	}))
	h.requireAlive()

	ok := sentMessage[message.FetchOkMessage](t, h.control, 1)
	assert.Equal(t, uint64(0), ok.SubscribeID)
	assert.Empty(t, h.transport.openedUni)
	require.Len(t, h.session.queuedOutgoingDataStreams, 1)

	h.transport.grantUniStreams(1)
	require.Len(t, h.transport.openedUni, 1)
	stream := h.transport.openedUni[0]
	typ, objects := parseDataStream(t, stream)
	assert.Equal(t, message.StreamTypeFetch, typ)
	require.Len(t, objects, 1)
	assert.Equal(t, []byte("f0"), objects[0].payload)
	assert.True(t, stream.finSent)
	assert.Empty(t, h.session.incomingFetches)
	assert.Empty(t, h.session.queuedOutgoingDataStreams)
}

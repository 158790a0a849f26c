package moqt

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeTrackPublisher is a scriptable TrackPublisher. Tests seed its cache
// with addObject, flip its status and preference fields directly, and drive
// its listeners through publish, markFin, abandonGroup and goAway.
type fakeTrackPublisher struct {
	name       FullTrackName
	status     TrackStatusCode
	largest    FullSequence
	preference ForwardingPreference
	order      DeliveryOrder
	priority   Priority

	objects map[FullSequence]PublishedObject

	fetchTask  FetchTask
	fetchCalls []fetchCall

	listeners map[ObjectListener]struct{}
}

type fetchCall struct {
	start     FullSequence
	endGroup  uint64
	endObject *uint64
	order     DeliveryOrder
}

var _ TrackPublisher = (*fakeTrackPublisher)(nil)

func newFakeTrack(elements ...string) *fakeTrackPublisher {
	return &fakeTrackPublisher{
		name:       NewFullTrackName(elements...),
		status:     TrackStatusNotYetBegun,
		preference: ForwardingPreferenceSubgroup,
		order:      DeliveryOrderAscending,
		priority:   DefaultPublisherPriority,
		objects:    make(map[FullSequence]PublishedObject),
		listeners:  make(map[ObjectListener]struct{}),
	}
}

// addObject caches an object without notifying listeners, the state a track
// is in when a subscription arrives after the fact.
func (f *fakeTrackPublisher) addObject(sequence FullSequence, payload string) {
	f.objects[sequence] = PublishedObject{
		Sequence: sequence,
		Payload:  []byte(payload),
	}
	f.status = TrackStatusInProgress
	f.largest = maxSequence(f.largest, sequence)
}

// publish caches an object and notifies listeners, the way a live publisher
// delivers new data.
func (f *fakeTrackPublisher) publish(sequence FullSequence, payload string) {
	f.addObject(sequence, payload)
	for listener := range f.listeners {
		listener.OnNewObjectAvailable(sequence)
	}
}

// markFin flags a cached object as the last one of its carrier and notifies
// listeners.
func (f *fakeTrackPublisher) markFin(sequence FullSequence) {
	object := f.objects[sequence]
	object.FinAfterThis = true
	f.objects[sequence] = object
	for listener := range f.listeners {
		listener.OnNewFinAvailable(sequence)
	}
}

func (f *fakeTrackPublisher) abandonGroup(groupID uint64) {
	for listener := range f.listeners {
		listener.OnGroupAbandoned(groupID)
	}
}

func (f *fakeTrackPublisher) goAway() {
	for listener := range f.listeners {
		listener.OnTrackPublisherGone()
	}
}

func (f *fakeTrackPublisher) GetTrackName() FullTrackName {
	return f.name
}

func (f *fakeTrackPublisher) GetTrackStatus() (TrackStatusCode, error) {
	return f.status, nil
}

func (f *fakeTrackPublisher) GetLargestSequence() FullSequence {
	return f.largest
}

func (f *fakeTrackPublisher) GetForwardingPreference() ForwardingPreference {
	return f.preference
}

func (f *fakeTrackPublisher) GetDeliveryOrder() DeliveryOrder {
	return f.order
}

func (f *fakeTrackPublisher) GetPublisherPriority() Priority {
	return f.priority
}

// GetCachedObject prefers an exact hit; failing that it returns the lowest
// cached object past the requested sequence that belongs to the same carrier.
func (f *fakeTrackPublisher) GetCachedObject(sequence FullSequence) (PublishedObject, bool) {
	if object, ok := f.objects[sequence]; ok {
		return object, true
	}
	carrier := reduceSequence(sequence, f.preference)
	var best PublishedObject
	found := false
	for cached, object := range f.objects {
		if cached.Less(sequence) || reduceSequence(cached, f.preference) != carrier {
			continue
		}
		if !found || cached.Less(best.Sequence) {
			best = object
			found = true
		}
	}
	return best, found
}

func (f *fakeTrackPublisher) GetCachedObjectsInRange(start, end FullSequence) []FullSequence {
	var sequences []FullSequence
	for sequence := range f.objects {
		if windowLess(sequence, start) || windowLess(end, sequence) {
			continue
		}
		sequences = append(sequences, sequence)
	}
	sort.Slice(sequences, func(i, j int) bool { return sequences[i].Less(sequences[j]) })
	return sequences
}

func (f *fakeTrackPublisher) Fetch(start FullSequence, endGroup uint64, endObject *uint64, order DeliveryOrder) FetchTask {
	f.fetchCalls = append(f.fetchCalls, fetchCall{
		start:     start,
		endGroup:  endGroup,
		endObject: endObject,
		order:     order,
	})
	if f.fetchTask != nil {
		return f.fetchTask
	}
	return &fakeFetchTask{largest: f.largest}
}

func (f *fakeTrackPublisher) AddObjectListener(listener ObjectListener) {
	f.listeners[listener] = struct{}{}
}

func (f *fakeTrackPublisher) RemoveObjectListener(listener ObjectListener) {
	delete(f.listeners, listener)
}

// registryWith builds a Publisher resolving exactly the given tracks.
func registryWith(t *testing.T, tracks ...*fakeTrackPublisher) *TrackRegistry {
	t.Helper()
	registry := NewTrackRegistry()
	for _, track := range tracks {
		require.NoError(t, registry.Add(track))
	}
	return registry
}

type fetchStep struct {
	result FetchResult
	object PublishedObject
}

// fakeFetchTask replays a scripted sequence of results, then reports EOF.
type fakeFetchTask struct {
	steps   []fetchStep
	err     error
	largest FullSequence
}

var _ FetchTask = (*fakeFetchTask)(nil)

func (t *fakeFetchTask) GetNextObject(object *PublishedObject) FetchResult {
	if len(t.steps) == 0 {
		return FetchEOF
	}
	step := t.steps[0]
	t.steps = t.steps[1:]
	*object = step.object
	return step.result
}

func (t *fakeFetchTask) GetStatus() error { return t.err }

func (t *fakeFetchTask) GetLargestID() FullSequence { return t.largest }

package moqt

import (
	"errors"
	"fmt"
	"math"
)

// maxQueuedGroups is how many recent groups the queue keeps for subscribers
// that join late.
const maxQueuedGroups = 3

// ErrFirstObjectNotKey is returned when the first object handed to an
// OutgoingQueue does not start a group.
var ErrFirstObjectNotKey = errors.New("moqt: the first published object must start a group")

type cachedObject struct {
	sequence FullSequence
	status   ObjectStatus
	payload  []byte
}

// OutgoingQueue is a TrackPublisher that numbers objects for the
// application. Objects flagged as keys open a new group; everything else
// joins the current one. The most recent groups stay cached so late
// subscribers can be backfilled, older ones are abandoned.
//
// The queue must only be used from the transport event loop of the sessions
// subscribed to it.
type OutgoingQueue struct {
	name       FullTrackName
	preference ForwardingPreference
	priority   Priority

	// queue[len-1] is the current group; queue[0] is group firstGroup().
	queue        [][]cachedObject
	currentGroup uint64
	started      bool

	listeners map[ObjectListener]struct{}
}

var _ TrackPublisher = (*OutgoingQueue)(nil)

func NewOutgoingQueue(name FullTrackName, preference ForwardingPreference) *OutgoingQueue {
	return &OutgoingQueue{
		name:       name,
		preference: preference,
		priority:   DefaultPublisherPriority,
		listeners:  make(map[ObjectListener]struct{}),
	}
}

// firstGroup is the id of the oldest group still cached.
func (q *OutgoingQueue) firstGroup() uint64 {
	return q.currentGroup - uint64(len(q.queue)) + 1
}

// AddObject appends one object to the track. A key object closes the
// current group and opens the next one.
func (q *OutgoingQueue) AddObject(payload []byte, key bool) error {
	if !q.started && !key {
		return ErrFirstObjectNotKey
	}
	if key {
		if !q.started {
			q.started = true
			q.queue = append(q.queue, nil)
		} else {
			q.closeCurrentGroup()
			if len(q.queue) == maxQueuedGroups {
				abandoned := q.firstGroup()
				q.queue = q.queue[1:]
				for listener := range q.listeners {
					listener.OnGroupAbandoned(abandoned)
				}
			}
			q.queue = append(q.queue, nil)
			q.currentGroup++
		}
	}
	q.addRawObject(ObjectStatusNormal, payload)
	return nil
}

func (q *OutgoingQueue) closeCurrentGroup() {
	group := q.queue[len(q.queue)-1]
	sequence := FullSequence{Group: q.currentGroup, Object: uint64(len(group))}
	q.queue[len(q.queue)-1] = append(group, cachedObject{
		sequence: sequence,
		status:   ObjectStatusEndOfGroup,
	})
	for listener := range q.listeners {
		listener.OnNewObjectAvailable(sequence)
		listener.OnNewFinAvailable(sequence)
	}
}

func (q *OutgoingQueue) addRawObject(status ObjectStatus, payload []byte) {
	group := q.queue[len(q.queue)-1]
	sequence := FullSequence{Group: q.currentGroup, Object: uint64(len(group))}
	q.queue[len(q.queue)-1] = append(group, cachedObject{
		sequence: sequence,
		status:   status,
		payload:  payload,
	})
	for listener := range q.listeners {
		listener.OnNewObjectAvailable(sequence)
	}
}

/*
 * TrackPublisher
 */

func (q *OutgoingQueue) GetTrackName() FullTrackName {
	return q.name
}

func (q *OutgoingQueue) GetTrackStatus() (TrackStatusCode, error) {
	if !q.started {
		return TrackStatusNotYetBegun, nil
	}
	return TrackStatusInProgress, nil
}

func (q *OutgoingQueue) GetLargestSequence() FullSequence {
	group := q.queue[len(q.queue)-1]
	return FullSequence{Group: q.currentGroup, Object: uint64(len(group)) - 1}
}

func (q *OutgoingQueue) GetForwardingPreference() ForwardingPreference {
	return q.preference
}

func (q *OutgoingQueue) GetDeliveryOrder() DeliveryOrder {
	return DeliveryOrderDescending
}

func (q *OutgoingQueue) GetPublisherPriority() Priority {
	return q.priority
}

func (q *OutgoingQueue) GetCachedObject(sequence FullSequence) (PublishedObject, bool) {
	if !q.started {
		return PublishedObject{}, false
	}
	if sequence.Group < q.firstGroup() {
		return PublishedObject{
			Sequence:     FullSequence{Group: sequence.Group, Object: sequence.Object},
			Status:       ObjectStatusGroupDoesNotExist,
			FinAfterThis: true,
		}, true
	}
	if sequence.Group > q.currentGroup {
		return PublishedObject{}, false
	}
	group := q.queue[sequence.Group-q.firstGroup()]
	if sequence.Object >= uint64(len(group)) {
		if sequence.Group == q.currentGroup {
			// Not produced yet.
			return PublishedObject{}, false
		}
		return PublishedObject{
			Sequence:     FullSequence{Group: sequence.Group, Object: sequence.Object},
			Status:       ObjectStatusObjectDoesNotExist,
			FinAfterThis: true,
		}, true
	}
	object := group[sequence.Object]
	return PublishedObject{
		Sequence:     object.sequence,
		Status:       object.status,
		Payload:      object.payload,
		FinAfterThis: object.status == ObjectStatusEndOfGroup,
	}, true
}

func (q *OutgoingQueue) GetCachedObjectsInRange(start, end FullSequence) []FullSequence {
	var sequences []FullSequence
	for _, group := range q.queue {
		for _, object := range group {
			if windowLess(object.sequence, start) || windowLess(end, object.sequence) {
				continue
			}
			sequences = append(sequences, object.sequence)
		}
	}
	return sequences
}

func (q *OutgoingQueue) AddObjectListener(listener ObjectListener) {
	q.listeners[listener] = struct{}{}
}

func (q *OutgoingQueue) RemoveObjectListener(listener ObjectListener) {
	delete(q.listeners, listener)
}

// Fetch snapshots the cached part of the requested range. Groups that have
// been abandoned are silently absent from the result.
func (q *OutgoingQueue) Fetch(start FullSequence, endGroup uint64, endObject *uint64, order DeliveryOrder) FetchTask {
	if !q.started {
		return &failedFetchTask{err: fmt.Errorf("moqt: track %s has no objects yet", q.name.String())}
	}
	end := FullSequence{Group: endGroup, Object: math.MaxUint64}
	if endObject != nil {
		end.Object = *endObject
	}
	largest := q.GetLargestSequence()
	if windowLess(end, start) {
		return &failedFetchTask{err: errors.New("moqt: fetch range is empty")}
	}
	if windowLess(largest, start) {
		return &failedFetchTask{err: errors.New("moqt: fetch range starts after the newest object")}
	}

	firstGroup := max(start.Group, q.firstGroup())
	lastGroup := min(endGroup, q.currentGroup)
	task := &queueFetchTask{largest: largest}
	if lastGroup < firstGroup {
		// The overlap with the cache is empty.
		return task
	}
	appendGroup := func(groupID uint64) {
		for _, object := range q.queue[groupID-q.firstGroup()] {
			if windowLess(object.sequence, start) || windowLess(end, object.sequence) {
				continue
			}
			task.objects = append(task.objects, PublishedObject{
				Sequence: object.sequence,
				Status:   object.status,
				Payload:  object.payload,
			})
		}
	}
	if order == DeliveryOrderAscending {
		for g := firstGroup; g <= lastGroup; g++ {
			appendGroup(g)
		}
	} else {
		for g := lastGroup; ; g-- {
			appendGroup(g)
			if g == firstGroup {
				break
			}
		}
	}
	return task
}

// queueFetchTask serves a fetch from a snapshot taken at FETCH time.
type queueFetchTask struct {
	objects []PublishedObject
	largest FullSequence
}

func (t *queueFetchTask) GetNextObject(object *PublishedObject) FetchResult {
	if len(t.objects) == 0 {
		return FetchEOF
	}
	*object = t.objects[0]
	t.objects = t.objects[1:]
	return FetchSuccess
}

func (t *queueFetchTask) GetStatus() error { return nil }

func (t *queueFetchTask) GetLargestID() FullSequence { return t.largest }

// failedFetchTask reports a fetch that could not start.
type failedFetchTask struct {
	err error
}

func (t *failedFetchTask) GetNextObject(object *PublishedObject) FetchResult {
	return FetchError
}

func (t *failedFetchTask) GetStatus() error { return t.err }

func (t *failedFetchTask) GetLargestID() FullSequence { return FullSequence{} }

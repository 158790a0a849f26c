package moqt

import (
	"time"

	"github.com/quicmoq/moqt/internal/message"
)

// ObjectStatus marks objects that exist only to signal the shape of a
// track: missing objects, ends of groups and so on.
type ObjectStatus = message.ObjectStatus

const (
	ObjectStatusNormal             = message.ObjectStatusNormal
	ObjectStatusObjectDoesNotExist = message.ObjectStatusObjectDoesNotExist
	ObjectStatusGroupDoesNotExist  = message.ObjectStatusGroupDoesNotExist
	ObjectStatusEndOfGroup         = message.ObjectStatusEndOfGroup
	ObjectStatusEndOfTrack         = message.ObjectStatusEndOfTrack
	ObjectStatusEndOfSubgroup      = message.ObjectStatusEndOfSubgroup
)

// ForwardingPreference is the per-track choice of carrier for its objects.
type ForwardingPreference uint8

const (
	ForwardingPreferenceTrack ForwardingPreference = iota
	ForwardingPreferenceSubgroup
	ForwardingPreferenceDatagram
)

func (p ForwardingPreference) String() string {
	switch p {
	case ForwardingPreferenceTrack:
		return "track"
	case ForwardingPreferenceSubgroup:
		return "subgroup"
	case ForwardingPreferenceDatagram:
		return "datagram"
	default:
		return "unknown"
	}
}

/*
 * Track Statuses
 */
const (
	TrackStatusInProgress         TrackStatusCode = 0x0
	TrackStatusDoesNotExist       TrackStatusCode = 0x1
	TrackStatusNotYetBegun        TrackStatusCode = 0x2
	TrackStatusFinished           TrackStatusCode = 0x3
	TrackStatusStatusNotAvailable TrackStatusCode = 0x4
)

var TrackStatusCodeTexts = map[TrackStatusCode]string{
	TrackStatusInProgress:         "moqt: track in progress",
	TrackStatusDoesNotExist:       "moqt: track does not exist",
	TrackStatusNotYetBegun:        "moqt: track not yet begun",
	TrackStatusFinished:           "moqt: track finished",
	TrackStatusStatusNotAvailable: "moqt: track status not available",
}

type TrackStatusCode uint64

func (code TrackStatusCode) String() string {
	return TrackStatusCodeTexts[code]
}

// statusImpliesData reports whether a track in the given status has objects
// that can be read from the cache.
func statusImpliesData(code TrackStatusCode) bool {
	return code == TrackStatusInProgress || code == TrackStatusFinished
}

// PublishedObject is a single cached object as handed out by a
// TrackPublisher. FinAfterThis marks the last object of its carrier, so
// the stream sending it can close in the same write.
type PublishedObject struct {
	Sequence     FullSequence
	Status       ObjectStatus
	Payload      []byte
	FinAfterThis bool
}

// ObjectListener receives change notifications from a TrackPublisher. All
// callbacks run on the session's event loop.
type ObjectListener interface {
	// OnNewObjectAvailable signals that the object at the given sequence
	// can now be fetched via GetCachedObject.
	OnNewObjectAvailable(sequence FullSequence)

	// OnNewFinAvailable signals that the object at the given sequence is
	// the final one of its carrier and a pending FIN may now be flushed.
	OnNewFinAvailable(sequence FullSequence)

	// OnGroupAbandoned signals that the publisher dropped the group from
	// its cache and delivery for it should stop.
	OnGroupAbandoned(groupID uint64)

	// OnTrackPublisherGone signals that no further objects will be
	// published and the subscription should wind down.
	OnTrackPublisherGone()
}

// FetchResult is the outcome of a single FetchTask.GetNextObject call.
type FetchResult uint8

const (
	FetchSuccess FetchResult = iota
	FetchPending
	FetchEOF
	FetchError
)

// FetchTask yields the objects of a single fetch in delivery order.
type FetchTask interface {
	// GetNextObject fills object and reports whether it did. FetchPending
	// means the task has nothing right now and the caller should retry on
	// its next write opportunity. FetchEOF means the range is exhausted.
	GetNextObject(object *PublishedObject) FetchResult

	// GetStatus returns nil while the task is usable. After FetchError,
	// or for a task that failed validation at construction, it describes
	// the failure.
	GetStatus() error

	// GetLargestID returns the largest sequence the fetch will deliver,
	// used to fill the FETCH_OK response.
	GetLargestID() FullSequence
}

// TrackPublisher supplies the objects of one track. Implementations must
// call listeners synchronously from the session's event loop.
type TrackPublisher interface {
	GetTrackName() FullTrackName
	GetTrackStatus() (TrackStatusCode, error)

	// GetLargestSequence is only meaningful while the track status implies
	// cached data.
	GetLargestSequence() FullSequence

	GetForwardingPreference() ForwardingPreference
	GetDeliveryOrder() DeliveryOrder
	GetPublisherPriority() Priority

	// GetCachedObject returns the cached object at the given sequence, or
	// a later cached object that the same stream should carry next. The
	// returned sequence must never be lower than the requested one.
	GetCachedObject(sequence FullSequence) (PublishedObject, bool)

	// GetCachedObjectsInRange lists the sequences cached in [start, end],
	// in ascending order.
	GetCachedObjectsInRange(start, end FullSequence) []FullSequence

	// Fetch builds a task that replays [start, (endGroup, endObject)].
	// A nil endObject leaves the final group unbounded.
	Fetch(start FullSequence, endGroup uint64, endObject *uint64, order DeliveryOrder) FetchTask

	AddObjectListener(listener ObjectListener)
	RemoveObjectListener(listener ObjectListener)
}

// Publisher resolves track names for incoming SUBSCRIBE and FETCH requests.
type Publisher interface {
	GetTrack(name FullTrackName) (TrackPublisher, error)
}

// PublishMonitor observes delivery feedback for one published track; see
// Session.SetMonitoringInterfaceForTrack.
type PublishMonitor interface {
	// OnObjectAckSupportKnown fires once, as soon as a subscription for
	// the monitored track exists and OBJECT_ACK support is settled.
	OnObjectAckSupportKnown(supported bool)

	// OnObjectAckReceived reports an OBJECT_ACK from the subscriber.
	// A negative delta means the object arrived past its deadline.
	OnObjectAckReceived(groupID, objectID uint64, deltaFromDeadline time.Duration)
}

// noPublisher serves sessions constructed without a publisher.
type noPublisher struct{}

func (noPublisher) GetTrack(name FullTrackName) (TrackPublisher, error) {
	return nil, ErrTrackDoesNotExist
}

package moqt

import "fmt"

// FullSequence locates a single object within a track.
// Sequences order lexicographically by (Group, Subgroup, Object).
type FullSequence struct {
	Group    uint64
	Subgroup uint64
	Object   uint64
}

func (s FullSequence) String() string {
	return fmt.Sprintf("(%d; %d; %d)", s.Group, s.Subgroup, s.Object)
}

// Less reports whether s precedes other in delivery order.
func (s FullSequence) Less(other FullSequence) bool {
	if s.Group != other.Group {
		return s.Group < other.Group
	}
	if s.Subgroup != other.Subgroup {
		return s.Subgroup < other.Subgroup
	}
	return s.Object < other.Object
}

// Next returns the sequence of the object that follows s on the same subgroup.
func (s FullSequence) Next() FullSequence {
	return FullSequence{Group: s.Group, Subgroup: s.Subgroup, Object: s.Object + 1}
}

func maxSequence(a, b FullSequence) FullSequence {
	if a.Less(b) {
		return b
	}
	return a
}

// reducedSequenceIndex is the coordinate subset that identifies the carrier
// of an object for a given forwarding preference. Objects with the same
// reduced index travel on the same data stream; for the datagram preference
// every object is its own carrier.
type reducedSequenceIndex struct {
	group    uint64
	subgroup uint64
	object   uint64
}

func reduceSequence(sequence FullSequence, preference ForwardingPreference) reducedSequenceIndex {
	switch preference {
	case ForwardingPreferenceTrack:
		return reducedSequenceIndex{}
	case ForwardingPreferenceSubgroup:
		return reducedSequenceIndex{group: sequence.Group, subgroup: sequence.Subgroup}
	case ForwardingPreferenceDatagram:
		return reducedSequenceIndex{group: sequence.Group, object: sequence.Object}
	default:
		return reducedSequenceIndex{}
	}
}

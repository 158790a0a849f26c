package moqt

import "github.com/quicmoq/moqt/webtransport"

// sendStreamMap tracks which outgoing data stream carries which part of a
// track. The unit of mapping depends on the forwarding preference: one
// stream per subgroup, or a single stream for the whole track.
type sendStreamMap struct {
	preference ForwardingPreference
	streams    map[reducedSequenceIndex]webtransport.StreamID
}

func newSendStreamMap(preference ForwardingPreference) *sendStreamMap {
	return &sendStreamMap{
		preference: preference,
		streams:    make(map[reducedSequenceIndex]webtransport.StreamID),
	}
}

func (m *sendStreamMap) AddStream(sequence FullSequence, id webtransport.StreamID) {
	m.streams[reduceSequence(sequence, m.preference)] = id
}

// RemoveStream drops the mapping for the stream that carried sequence. The
// id guards against a stale double removal after the unit was remapped.
func (m *sendStreamMap) RemoveStream(sequence FullSequence, id webtransport.StreamID) {
	index := reduceSequence(sequence, m.preference)
	if current, ok := m.streams[index]; ok && current == id {
		delete(m.streams, index)
	}
}

func (m *sendStreamMap) GetStreamForSequence(sequence FullSequence) (webtransport.StreamID, bool) {
	id, ok := m.streams[reduceSequence(sequence, m.preference)]
	return id, ok
}

func (m *sendStreamMap) GetStreamsForGroup(groupID uint64) []webtransport.StreamID {
	var ids []webtransport.StreamID
	for index, id := range m.streams {
		if index.group == groupID {
			ids = append(ids, id)
		}
	}
	return ids
}

func (m *sendStreamMap) GetAllStreams() []webtransport.StreamID {
	ids := make([]webtransport.StreamID, 0, len(m.streams))
	for _, id := range m.streams {
		ids = append(ids, id)
	}
	return ids
}

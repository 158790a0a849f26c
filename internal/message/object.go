package message

import (
	"errors"
	"fmt"

	"github.com/quic-go/quic-go/quicvarint"
)

type DataStreamType uint64

const (
	StreamTypeDatagram DataStreamType = 0x1
	StreamTypeTrack    DataStreamType = 0x2
	StreamTypeSubgroup DataStreamType = 0x4
	StreamTypeFetch    DataStreamType = 0x5
)

func (t DataStreamType) IsValid() bool {
	switch t {
	case StreamTypeDatagram, StreamTypeTrack, StreamTypeSubgroup, StreamTypeFetch:
		return true
	}
	return false
}

func (t DataStreamType) String() string {
	switch t {
	case StreamTypeDatagram:
		return "OBJECT_DATAGRAM"
	case StreamTypeTrack:
		return "STREAM_HEADER_TRACK"
	case StreamTypeSubgroup:
		return "STREAM_HEADER_SUBGROUP"
	case StreamTypeFetch:
		return "STREAM_HEADER_FETCH"
	default:
		return fmt.Sprintf("UNKNOWN(0x%x)", uint64(t))
	}
}

type ObjectStatus uint64

const (
	ObjectStatusNormal             ObjectStatus = 0x0
	ObjectStatusObjectDoesNotExist ObjectStatus = 0x1
	ObjectStatusGroupDoesNotExist  ObjectStatus = 0x2
	ObjectStatusEndOfGroup         ObjectStatus = 0x3
	ObjectStatusEndOfTrack         ObjectStatus = 0x4
	ObjectStatusEndOfSubgroup      ObjectStatus = 0x5
)

func (s ObjectStatus) IsValid() bool {
	return s <= ObjectStatusEndOfSubgroup
}

// ObjectHeader carries the metadata of one object as it appears on a data
// stream or in a datagram. On fetch streams the TrackAlias field holds the
// fetch's subscribe ID. Subgroup is zero when the stream type does not
// carry one. An explicit Status is only on the wire when PayloadLength is
// zero.
type ObjectHeader struct {
	TrackAlias        uint64
	Group             uint64
	Subgroup          uint64
	ObjectID          uint64
	PublisherPriority uint8
	Status            ObjectStatus
	PayloadLength     uint64
}

/*
* Subgroup Stream {
*   Stream Type (varint) = 0x4,
*   Track Alias (varint),
*   Group (varint),
*   Subgroup (varint),
*   Publisher Priority (8),
*   Object {
*     Object ID (varint),
*     Payload Length (varint),
*     [Object Status (varint)],
*     Payload (..),
*   } ...
* }
*
* Track Stream {
*   Stream Type (varint) = 0x2,
*   Track Alias (varint),
*   Publisher Priority (8),
*   Object { Group (varint), Object ID (varint), Payload Length (varint),
*            [Object Status (varint)], Payload (..) } ...
* }
*
* Fetch Stream {
*   Stream Type (varint) = 0x5,
*   Subscribe ID (varint),
*   Object { Group (varint), Subgroup (varint), Object ID (varint),
*            Publisher Priority (8), Payload Length (varint),
*            [Object Status (varint)], Payload (..) } ...
* }
*
* The Object Status field is present only when Payload Length is zero.
 */

// SerializeObjectHeader writes the metadata preceding an object's payload
// on a data stream. The stream type and per-stream header fields are
// included only for the first object on the stream. t must be a stream
// type, not the datagram type.
func SerializeObjectHeader(h ObjectHeader, t DataStreamType, firstInStream bool) []byte {
	b := make([]byte, 0, 32)
	if firstInStream {
		b = quicvarint.Append(b, uint64(t))
		switch t {
		case StreamTypeSubgroup:
			b = quicvarint.Append(b, h.TrackAlias)
			b = quicvarint.Append(b, h.Group)
			b = quicvarint.Append(b, h.Subgroup)
			b = append(b, h.PublisherPriority)
		case StreamTypeTrack:
			b = quicvarint.Append(b, h.TrackAlias)
			b = append(b, h.PublisherPriority)
		case StreamTypeFetch:
			b = quicvarint.Append(b, h.TrackAlias)
		}
	}
	switch t {
	case StreamTypeSubgroup:
		b = quicvarint.Append(b, h.ObjectID)
	case StreamTypeTrack:
		b = quicvarint.Append(b, h.Group)
		b = quicvarint.Append(b, h.ObjectID)
	case StreamTypeFetch:
		b = quicvarint.Append(b, h.Group)
		b = quicvarint.Append(b, h.Subgroup)
		b = quicvarint.Append(b, h.ObjectID)
		b = append(b, h.PublisherPriority)
	}
	b = quicvarint.Append(b, h.PayloadLength)
	if h.PayloadLength == 0 {
		b = quicvarint.Append(b, uint64(h.Status))
	}
	return b
}

/*
* Object Datagram {
*   Stream Type (varint) = 0x1,
*   Track Alias (varint),
*   Group (varint),
*   Object ID (varint),
*   Publisher Priority (8),
*   Payload Length (varint),
*   [Object Status (varint)],
*   Payload (..),
* }
 */
func SerializeObjectDatagram(h ObjectHeader, payload []byte) []byte {
	b := make([]byte, 0, 24+len(payload))
	b = quicvarint.Append(b, uint64(StreamTypeDatagram))
	b = quicvarint.Append(b, h.TrackAlias)
	b = quicvarint.Append(b, h.Group)
	b = quicvarint.Append(b, h.ObjectID)
	b = append(b, h.PublisherPriority)
	b = quicvarint.Append(b, uint64(len(payload)))
	if len(payload) == 0 {
		b = quicvarint.Append(b, uint64(h.Status))
	}
	return append(b, payload...)
}

// ParseDatagram decodes a full object datagram. The returned payload
// aliases data.
func ParseDatagram(data []byte) (ObjectHeader, []byte, error) {
	var h ObjectHeader
	r := payloadReader{data}

	t, err := r.varint()
	if err != nil {
		return h, nil, err
	}
	if DataStreamType(t) != StreamTypeDatagram {
		return h, nil, errors.New("datagram is not of type OBJECT_DATAGRAM")
	}
	if h.TrackAlias, err = r.varint(); err != nil {
		return h, nil, err
	}
	if h.Group, err = r.varint(); err != nil {
		return h, nil, err
	}
	if h.ObjectID, err = r.varint(); err != nil {
		return h, nil, err
	}
	if h.PublisherPriority, err = r.u8(); err != nil {
		return h, nil, err
	}
	if h.PayloadLength, err = r.varint(); err != nil {
		return h, nil, err
	}
	if h.PayloadLength == 0 {
		status, err := r.varint()
		if err != nil {
			return h, nil, err
		}
		h.Status = ObjectStatus(status)
		if !h.Status.IsValid() {
			return h, nil, errors.New("invalid object status")
		}
	}
	if uint64(len(r.b)) != h.PayloadLength {
		return h, nil, errors.New("datagram payload length mismatch")
	}
	return h, r.b, nil
}

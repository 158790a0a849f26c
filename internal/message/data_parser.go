package message

import (
	"fmt"

	"github.com/quic-go/quic-go/quicvarint"
)

type DataParserVisitor interface {
	// OnObjectMessage delivers an object's metadata together with the
	// next payload fragment. header.PayloadLength is the total payload
	// size; endOfMessage marks the fragment completing the object. The
	// payload slice is only valid during the call.
	OnObjectMessage(header ObjectHeader, payload []byte, endOfMessage bool)
	OnParsingError(code ParseErrorCode, reason string)
}

// DataSource is the slice of a transport stream the parser pulls from.
type DataSource interface {
	Read(p []byte) (n int, fin bool)
	ReadableBytes() int
}

// DataStreamParser incrementally decodes one unidirectional data stream.
// The stream type is latched from the first bytes; per-stream header
// fields are merged into every emitted ObjectHeader.
type DataStreamParser struct {
	source  DataSource
	visitor DataParserVisitor

	buf        []byte
	typ        DataStreamType
	hasType    bool
	headerDone bool
	header     ObjectHeader

	inObject         bool
	payloadRemaining uint64

	sawFin  bool
	errored bool
}

func NewDataStreamParser(source DataSource, visitor DataParserVisitor) *DataStreamParser {
	return &DataStreamParser{source: source, visitor: visitor}
}

// StreamType reports the latched stream type once the first varint of the
// stream has been read.
func (p *DataStreamParser) StreamType() (DataStreamType, bool) {
	return p.typ, p.hasType
}

// ReadAllData drains the source and emits callbacks for everything that
// became parseable. Call it from OnCanRead.
func (p *DataStreamParser) ReadAllData() {
	if p.errored {
		return
	}

	var chunk [4096]byte
	for !p.sawFin {
		n, fin := p.source.Read(chunk[:])
		if n > 0 {
			p.buf = append(p.buf, chunk[:n]...)
		}
		if fin {
			p.sawFin = true
		}
		if n == 0 {
			break
		}
	}

	p.process()
}

func (p *DataStreamParser) process() {
	for !p.errored {
		if p.inObject {
			if !p.deliverPayload() {
				break
			}
			continue
		}
		if !p.hasType {
			if !p.parseStreamType() {
				break
			}
			continue
		}
		if !p.parseObjectMetadata() {
			break
		}
	}

	if p.sawFin && !p.errored {
		if p.inObject || len(p.buf) > 0 {
			p.parseError(ParseErrorProtocolViolation, "FIN received at an unexpected point in the stream")
		} else if !p.hasType {
			p.parseError(ParseErrorProtocolViolation, "data stream closed with no data")
		}
	}
}

// deliverPayload hands buffered payload bytes to the visitor. Returns
// false when the object needs more data than is buffered.
func (p *DataStreamParser) deliverPayload() bool {
	if p.payloadRemaining > 0 && len(p.buf) == 0 {
		return false
	}
	take := p.payloadRemaining
	if take > uint64(len(p.buf)) {
		take = uint64(len(p.buf))
	}
	p.payloadRemaining -= take
	endOfMessage := p.payloadRemaining == 0
	p.visitor.OnObjectMessage(p.header, p.buf[:take], endOfMessage)
	p.buf = p.buf[take:]
	if endOfMessage {
		p.inObject = false
		return true
	}
	return false
}

func (p *DataStreamParser) parseStreamType() bool {
	cur := tentative{b: p.buf}
	t := DataStreamType(cur.varint())
	if cur.short {
		return false
	}
	if !t.IsValid() || t == StreamTypeDatagram {
		p.parseError(ParseErrorProtocolViolation, fmt.Sprintf("invalid data stream type 0x%x", uint64(t)))
		return false
	}
	p.typ = t
	p.hasType = true
	p.buf = p.buf[cur.n:]
	return true
}

// parseObjectMetadata consumes the stream header (first object only) and
// the next object's metadata. Returns false when more bytes are needed.
func (p *DataStreamParser) parseObjectMetadata() bool {
	cur := tentative{b: p.buf}
	h := p.header

	if !p.headerDone {
		switch p.typ {
		case StreamTypeSubgroup:
			h.TrackAlias = cur.varint()
			h.Group = cur.varint()
			h.Subgroup = cur.varint()
			h.PublisherPriority = cur.u8()
		case StreamTypeTrack:
			h.TrackAlias = cur.varint()
			h.PublisherPriority = cur.u8()
		case StreamTypeFetch:
			h.TrackAlias = cur.varint()
		}
		if cur.short {
			return false
		}
	}

	switch p.typ {
	case StreamTypeSubgroup:
		h.ObjectID = cur.varint()
	case StreamTypeTrack:
		h.Group = cur.varint()
		h.ObjectID = cur.varint()
	case StreamTypeFetch:
		h.Group = cur.varint()
		h.Subgroup = cur.varint()
		h.ObjectID = cur.varint()
		h.PublisherPriority = cur.u8()
	}
	h.PayloadLength = cur.varint()
	h.Status = ObjectStatusNormal
	if !cur.short && h.PayloadLength == 0 {
		h.Status = ObjectStatus(cur.varint())
	}
	if cur.short {
		return false
	}
	if !h.Status.IsValid() {
		p.parseError(ParseErrorProtocolViolation, "invalid object status")
		return false
	}

	p.headerDone = true
	p.header = h
	p.buf = p.buf[cur.n:]
	p.inObject = true
	p.payloadRemaining = h.PayloadLength
	return true
}

func (p *DataStreamParser) parseError(code ParseErrorCode, reason string) {
	if p.errored {
		return
	}
	p.errored = true
	p.buf = nil
	p.visitor.OnParsingError(code, reason)
}

// tentative parses fields without consuming the buffer, so a state can be
// retried untouched once more bytes arrive.
type tentative struct {
	b     []byte
	n     int
	short bool
}

func (t *tentative) varint() uint64 {
	if t.short {
		return 0
	}
	v, n, err := quicvarint.Parse(t.b[t.n:])
	if err != nil {
		t.short = true
		return 0
	}
	t.n += n
	return v
}

func (t *tentative) u8() byte {
	if t.short || t.n >= len(t.b) {
		t.short = true
		return 0
	}
	v := t.b[t.n]
	t.n++
	return v
}

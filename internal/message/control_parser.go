package message

import (
	"errors"
	"fmt"

	"github.com/quic-go/quic-go/quicvarint"
)

type ControlParserVisitor interface {
	OnClientSetupMessage(ClientSetupMessage)
	OnServerSetupMessage(ServerSetupMessage)
	OnSubscribeMessage(SubscribeMessage)
	OnSubscribeOkMessage(SubscribeOkMessage)
	OnSubscribeErrorMessage(SubscribeErrorMessage)
	OnSubscribeUpdateMessage(SubscribeUpdateMessage)
	OnUnsubscribeMessage(UnsubscribeMessage)
	OnSubscribeDoneMessage(SubscribeDoneMessage)
	OnAnnounceMessage(AnnounceMessage)
	OnAnnounceOkMessage(AnnounceOkMessage)
	OnAnnounceErrorMessage(AnnounceErrorMessage)
	OnAnnounceCancelMessage(AnnounceCancelMessage)
	OnMaxSubscribeIDMessage(MaxSubscribeIDMessage)
	OnFetchMessage(FetchMessage)
	OnFetchOkMessage(FetchOkMessage)
	OnFetchErrorMessage(FetchErrorMessage)
	OnObjectAckMessage(ObjectAckMessage)

	// OnParsingError fires at most once; the parser ignores all input
	// afterwards.
	OnParsingError(code ParseErrorCode, reason string)
}

// ControlParser incrementally decodes the control-stream byte sequence.
// Feed it whatever the transport has buffered; complete messages are
// dispatched to the visitor in order. The first message must be a SETUP
// message and no further SETUP message may follow.
type ControlParser struct {
	visitor ControlParserVisitor

	buf      []byte
	sawSetup bool
	sawFin   bool
	errored  bool
}

func NewControlParser(visitor ControlParserVisitor) *ControlParser {
	return &ControlParser{visitor: visitor}
}

func (p *ControlParser) ProcessData(data []byte, fin bool) {
	if p.errored {
		return
	}
	if p.sawFin {
		if len(data) > 0 {
			p.parseError(ParseErrorProtocolViolation, "data after the FIN of the control stream")
		}
		return
	}
	p.buf = append(p.buf, data...)
	p.sawFin = fin

	for !p.errored {
		t, n1, err := quicvarint.Parse(p.buf)
		if err != nil {
			break
		}
		length, n2, err := quicvarint.Parse(p.buf[n1:])
		if err != nil {
			break
		}
		if length > MaxControlMessageSize {
			p.parseError(ParseErrorProtocolViolation,
				fmt.Sprintf("cannot parse control messages of more than %d bytes", MaxControlMessageSize))
			return
		}
		if uint64(len(p.buf)-n1-n2) < length {
			break
		}
		payload := p.buf[n1+n2 : n1+n2+int(length)]
		p.buf = p.buf[n1+n2+int(length):]
		p.processMessage(MessageType(t), payload)
	}

	if p.sawFin && !p.errored && len(p.buf) > 0 {
		p.parseError(ParseErrorProtocolViolation, "FIN received in the middle of a message")
	}
}

func (p *ControlParser) processMessage(t MessageType, payload []byte) {
	isSetup := t == MessageTypeClientSetup || t == MessageTypeServerSetup
	if !p.sawSetup && !isSetup {
		p.parseError(ParseErrorProtocolViolation, "SETUP must be the first message on the control stream")
		return
	}
	if p.sawSetup && isSetup {
		p.parseError(ParseErrorProtocolViolation, "SETUP message received after the session is established")
		return
	}
	p.sawSetup = true

	var err error
	switch t {
	case MessageTypeClientSetup:
		var m ClientSetupMessage
		if m, err = parseClientSetup(payload); err == nil {
			p.visitor.OnClientSetupMessage(m)
		}
	case MessageTypeServerSetup:
		var m ServerSetupMessage
		if m, err = parseServerSetup(payload); err == nil {
			p.visitor.OnServerSetupMessage(m)
		}
	case MessageTypeSubscribe:
		var m SubscribeMessage
		if m, err = parseSubscribe(payload); err == nil {
			p.visitor.OnSubscribeMessage(m)
		}
	case MessageTypeSubscribeOk:
		var m SubscribeOkMessage
		if m, err = parseSubscribeOk(payload); err == nil {
			p.visitor.OnSubscribeOkMessage(m)
		}
	case MessageTypeSubscribeError:
		var m SubscribeErrorMessage
		if m, err = parseSubscribeError(payload); err == nil {
			p.visitor.OnSubscribeErrorMessage(m)
		}
	case MessageTypeSubscribeUpdate:
		var m SubscribeUpdateMessage
		if m, err = parseSubscribeUpdate(payload); err == nil {
			p.visitor.OnSubscribeUpdateMessage(m)
		}
	case MessageTypeUnsubscribe:
		var m UnsubscribeMessage
		if m, err = parseUnsubscribe(payload); err == nil {
			p.visitor.OnUnsubscribeMessage(m)
		}
	case MessageTypeSubscribeDone:
		var m SubscribeDoneMessage
		if m, err = parseSubscribeDone(payload); err == nil {
			p.visitor.OnSubscribeDoneMessage(m)
		}
	case MessageTypeAnnounce:
		var m AnnounceMessage
		if m, err = parseAnnounce(payload); err == nil {
			p.visitor.OnAnnounceMessage(m)
		}
	case MessageTypeAnnounceOk:
		var m AnnounceOkMessage
		if m, err = parseAnnounceOk(payload); err == nil {
			p.visitor.OnAnnounceOkMessage(m)
		}
	case MessageTypeAnnounceError:
		var m AnnounceErrorMessage
		if m, err = parseAnnounceError(payload); err == nil {
			p.visitor.OnAnnounceErrorMessage(m)
		}
	case MessageTypeAnnounceCancel:
		var m AnnounceCancelMessage
		if m, err = parseAnnounceCancel(payload); err == nil {
			p.visitor.OnAnnounceCancelMessage(m)
		}
	case MessageTypeMaxSubscribeID:
		var m MaxSubscribeIDMessage
		if m, err = parseMaxSubscribeID(payload); err == nil {
			p.visitor.OnMaxSubscribeIDMessage(m)
		}
	case MessageTypeFetch:
		var m FetchMessage
		if m, err = parseFetch(payload); err == nil {
			p.visitor.OnFetchMessage(m)
		}
	case MessageTypeFetchOk:
		var m FetchOkMessage
		if m, err = parseFetchOk(payload); err == nil {
			p.visitor.OnFetchOkMessage(m)
		}
	case MessageTypeFetchError:
		var m FetchErrorMessage
		if m, err = parseFetchError(payload); err == nil {
			p.visitor.OnFetchErrorMessage(m)
		}
	case MessageTypeObjectAck:
		var m ObjectAckMessage
		if m, err = parseObjectAck(payload); err == nil {
			p.visitor.OnObjectAckMessage(m)
		}
	default:
		p.parseError(ParseErrorProtocolViolation, fmt.Sprintf("unknown message type 0x%x", uint64(t)))
		return
	}

	if err != nil {
		code := ParseErrorProtocolViolation
		if errors.Is(err, errParameterLengthMismatch) {
			code = ParseErrorParameterLengthMismatch
		}
		p.parseError(code, err.Error())
	}
}

func (p *ControlParser) parseError(code ParseErrorCode, reason string) {
	if p.errored {
		return
	}
	p.errored = true
	p.buf = nil
	p.visitor.OnParsingError(code, reason)
}

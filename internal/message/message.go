// Package message implements the MoQT wire format: control-message
// framing and parsing, object headers for the data plane, and the
// datagram codec. Parsers are incremental and never block; they are fed
// whatever bytes the transport has buffered and emit visitor callbacks
// as complete messages become available.
package message

import (
	"errors"
	"fmt"

	"github.com/quic-go/quic-go/quicvarint"
)

type MessageType uint64

const (
	MessageTypeSubscribeUpdate MessageType = 0x02
	MessageTypeSubscribe       MessageType = 0x03
	MessageTypeSubscribeOk     MessageType = 0x04
	MessageTypeSubscribeError  MessageType = 0x05
	MessageTypeAnnounce        MessageType = 0x06
	MessageTypeAnnounceOk      MessageType = 0x07
	MessageTypeAnnounceError   MessageType = 0x08
	MessageTypeUnsubscribe     MessageType = 0x0a
	MessageTypeSubscribeDone   MessageType = 0x0b
	MessageTypeAnnounceCancel  MessageType = 0x0c
	MessageTypeMaxSubscribeID  MessageType = 0x15
	MessageTypeFetch           MessageType = 0x16
	MessageTypeFetchOk         MessageType = 0x18
	MessageTypeFetchError      MessageType = 0x19
	MessageTypeClientSetup     MessageType = 0x40
	MessageTypeServerSetup     MessageType = 0x41
	MessageTypeObjectAck       MessageType = 0x3184
)

func (t MessageType) String() string {
	switch t {
	case MessageTypeSubscribeUpdate:
		return "SUBSCRIBE_UPDATE"
	case MessageTypeSubscribe:
		return "SUBSCRIBE"
	case MessageTypeSubscribeOk:
		return "SUBSCRIBE_OK"
	case MessageTypeSubscribeError:
		return "SUBSCRIBE_ERROR"
	case MessageTypeAnnounce:
		return "ANNOUNCE"
	case MessageTypeAnnounceOk:
		return "ANNOUNCE_OK"
	case MessageTypeAnnounceError:
		return "ANNOUNCE_ERROR"
	case MessageTypeUnsubscribe:
		return "UNSUBSCRIBE"
	case MessageTypeSubscribeDone:
		return "SUBSCRIBE_DONE"
	case MessageTypeAnnounceCancel:
		return "ANNOUNCE_CANCEL"
	case MessageTypeMaxSubscribeID:
		return "MAX_SUBSCRIBE_ID"
	case MessageTypeFetch:
		return "FETCH"
	case MessageTypeFetchOk:
		return "FETCH_OK"
	case MessageTypeFetchError:
		return "FETCH_ERROR"
	case MessageTypeClientSetup:
		return "CLIENT_SETUP"
	case MessageTypeServerSetup:
		return "SERVER_SETUP"
	case MessageTypeObjectAck:
		return "OBJECT_ACK"
	default:
		return fmt.Sprintf("UNKNOWN(0x%x)", uint64(t))
	}
}

type Version uint64

const (
	Draft07 Version = 0xff000007

	DefaultVersion = Draft07
)

type Role uint64

const (
	RolePublisher  Role = 0x1
	RoleSubscriber Role = 0x2
	RolePubSub     Role = 0x3
)

func (r Role) IsValid() bool {
	return r >= RolePublisher && r <= RolePubSub
}

func (r Role) String() string {
	switch r {
	case RolePublisher:
		return "publisher"
	case RoleSubscriber:
		return "subscriber"
	case RolePubSub:
		return "pubsub"
	default:
		return "unknown"
	}
}

type FilterType uint64

const (
	FilterLatestGroup   FilterType = 0x1
	FilterLatestObject  FilterType = 0x2
	FilterAbsoluteStart FilterType = 0x3
	FilterAbsoluteRange FilterType = 0x4
)

// Setup parameter keys. Track-request parameters share the TLV shape but
// live in a separate key namespace.
const (
	ParamRole              uint64 = 0x00
	ParamPath              uint64 = 0x01
	ParamMaxSubscribeID    uint64 = 0x02
	ParamSupportObjectAcks uint64 = 0xbbf1438
)

// ParseErrorCode values match the session-level error codes so the
// session can relay them verbatim in a CloseSession.
type ParseErrorCode uint64

const (
	ParseErrorInternal                ParseErrorCode = 0x1
	ParseErrorProtocolViolation       ParseErrorCode = 0x3
	ParseErrorParameterLengthMismatch ParseErrorCode = 0x5
)

// Control messages larger than this are rejected before buffering the
// whole payload.
const MaxControlMessageSize = 1 << 20

var (
	ErrMessageTooShort         = errors.New("message: too few bytes")
	errTrailingBytes           = errors.New("message: trailing bytes after message")
	errParameterLengthMismatch = errors.New("parameter length does not match varint encoding")
)

/*
* Parameters {
*   Parameter Count (varint),
*   [Parameter Key (varint), Parameter Length (varint), Parameter Value (..)] ...
* }
 */
type Parameters map[uint64][]byte

func appendParameters(b []byte, params Parameters) []byte {
	b = quicvarint.Append(b, uint64(len(params)))
	for key, value := range params {
		b = quicvarint.Append(b, key)
		b = quicvarint.Append(b, uint64(len(value)))
		b = append(b, value...)
	}
	return b
}

func appendVarintParameter(b []byte, key uint64, value uint64) []byte {
	b = quicvarint.Append(b, key)
	b = quicvarint.Append(b, uint64(quicvarint.Len(value)))
	return quicvarint.Append(b, value)
}

func appendString(b []byte, s string) []byte {
	b = quicvarint.Append(b, uint64(len(s)))
	return append(b, s...)
}

func appendTuple(b []byte, tuple []string) []byte {
	b = quicvarint.Append(b, uint64(len(tuple)))
	for _, e := range tuple {
		b = appendString(b, e)
	}
	return b
}

// payloadReader walks a fully buffered message payload field by field.
type payloadReader struct {
	b []byte
}

func (r *payloadReader) varint() (uint64, error) {
	v, n, err := quicvarint.Parse(r.b)
	if err != nil {
		return 0, ErrMessageTooShort
	}
	r.b = r.b[n:]
	return v, nil
}

func (r *payloadReader) u8() (byte, error) {
	if len(r.b) < 1 {
		return 0, ErrMessageTooShort
	}
	v := r.b[0]
	r.b = r.b[1:]
	return v, nil
}

func (r *payloadReader) bytes() ([]byte, error) {
	n, err := r.varint()
	if err != nil {
		return nil, err
	}
	if uint64(len(r.b)) < n {
		return nil, ErrMessageTooShort
	}
	v := make([]byte, n)
	copy(v, r.b[:n])
	r.b = r.b[n:]
	return v, nil
}

func (r *payloadReader) string() (string, error) {
	b, err := r.bytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *payloadReader) tuple() ([]string, error) {
	count, err := r.varint()
	if err != nil {
		return nil, err
	}
	if count > uint64(len(r.b)) {
		return nil, ErrMessageTooShort
	}
	tuple := make([]string, count)
	for i := range tuple {
		s, err := r.string()
		if err != nil {
			return nil, err
		}
		tuple[i] = s
	}
	return tuple, nil
}

func (r *payloadReader) parameters() (Parameters, error) {
	count, err := r.varint()
	if err != nil {
		return nil, err
	}
	if count > uint64(len(r.b)) {
		return nil, ErrMessageTooShort
	}
	params := make(Parameters, count)
	for i := uint64(0); i < count; i++ {
		key, err := r.varint()
		if err != nil {
			return nil, err
		}
		value, err := r.bytes()
		if err != nil {
			return nil, err
		}
		params[key] = value
	}
	return params, nil
}

func (r *payloadReader) done() error {
	if len(r.b) != 0 {
		return errTrailingBytes
	}
	return nil
}

// parseVarintValue decodes a varint that must occupy the whole value,
// the encoding rule for integer-valued parameters.
func parseVarintValue(value []byte) (uint64, error) {
	v, n, err := quicvarint.Parse(value)
	if err != nil || n != len(value) {
		return 0, errParameterLengthMismatch
	}
	return v, nil
}

func zigzagEncode(v int64) uint64 {
	return uint64((v << 1) ^ (v >> 63))
}

func zigzagDecode(v uint64) int64 {
	return int64(v>>1) ^ -int64(v&1)
}

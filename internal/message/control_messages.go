package message

import (
	"errors"
	"time"

	"github.com/quic-go/quic-go/quicvarint"
)

/*
* CLIENT_SETUP Message Payload {
*   Supported Version Count (varint),
*   Supported Versions (varint) ...,
*   Setup Parameters (..),
* }
 */
type ClientSetupMessage struct {
	SupportedVersions []Version
	Role              Role
	Path              string
	HasMaxSubscribeID bool
	MaxSubscribeID    uint64
	SupportsObjectAck bool
}

func (m ClientSetupMessage) appendPayload(b []byte) []byte {
	b = quicvarint.Append(b, uint64(len(m.SupportedVersions)))
	for _, v := range m.SupportedVersions {
		b = quicvarint.Append(b, uint64(v))
	}
	return appendSetupParameters(b, m.Role, m.Path, m.HasMaxSubscribeID, m.MaxSubscribeID, m.SupportsObjectAck)
}

func parseClientSetup(payload []byte) (ClientSetupMessage, error) {
	var m ClientSetupMessage
	r := payloadReader{payload}

	count, err := r.varint()
	if err != nil {
		return m, err
	}
	if count > uint64(len(r.b)) {
		return m, ErrMessageTooShort
	}
	m.SupportedVersions = make([]Version, count)
	for i := range m.SupportedVersions {
		v, err := r.varint()
		if err != nil {
			return m, err
		}
		m.SupportedVersions[i] = Version(v)
	}

	params, err := r.parameters()
	if err != nil {
		return m, err
	}
	if err := r.done(); err != nil {
		return m, err
	}

	m.Role, m.Path, m.HasMaxSubscribeID, m.MaxSubscribeID, m.SupportsObjectAck, err = parseSetupParameters(params)
	return m, err
}

/*
* SERVER_SETUP Message Payload {
*   Selected Version (varint),
*   Setup Parameters (..),
* }
 */
type ServerSetupMessage struct {
	SelectedVersion   Version
	Role              Role
	HasMaxSubscribeID bool
	MaxSubscribeID    uint64
	SupportsObjectAck bool
}

func (m ServerSetupMessage) appendPayload(b []byte) []byte {
	b = quicvarint.Append(b, uint64(m.SelectedVersion))
	return appendSetupParameters(b, m.Role, "", m.HasMaxSubscribeID, m.MaxSubscribeID, m.SupportsObjectAck)
}

func parseServerSetup(payload []byte) (ServerSetupMessage, error) {
	var m ServerSetupMessage
	r := payloadReader{payload}

	v, err := r.varint()
	if err != nil {
		return m, err
	}
	m.SelectedVersion = Version(v)

	params, err := r.parameters()
	if err != nil {
		return m, err
	}
	if err := r.done(); err != nil {
		return m, err
	}
	if _, ok := params[ParamPath]; ok {
		return m, errors.New("PATH parameter in SERVER_SETUP")
	}

	var path string
	m.Role, path, m.HasMaxSubscribeID, m.MaxSubscribeID, m.SupportsObjectAck, err = parseSetupParameters(params)
	_ = path
	return m, err
}

func appendSetupParameters(b []byte, role Role, path string, hasMaxID bool, maxID uint64, supportsAck bool) []byte {
	count := uint64(1)
	if path != "" {
		count++
	}
	if hasMaxID {
		count++
	}
	if supportsAck {
		count++
	}
	b = quicvarint.Append(b, count)
	b = appendVarintParameter(b, ParamRole, uint64(role))
	if path != "" {
		b = quicvarint.Append(b, ParamPath)
		b = appendString(b, path)
	}
	if hasMaxID {
		b = appendVarintParameter(b, ParamMaxSubscribeID, maxID)
	}
	if supportsAck {
		b = appendVarintParameter(b, ParamSupportObjectAcks, 1)
	}
	return b
}

func parseSetupParameters(params Parameters) (role Role, path string, hasMaxID bool, maxID uint64, supportsAck bool, err error) {
	if value, ok := params[ParamRole]; ok {
		v, perr := parseVarintValue(value)
		if perr != nil {
			return role, path, hasMaxID, maxID, supportsAck, perr
		}
		role = Role(v)
		if !role.IsValid() {
			return role, path, hasMaxID, maxID, supportsAck, errors.New("invalid ROLE parameter")
		}
	} else {
		return role, path, hasMaxID, maxID, supportsAck, errors.New("ROLE parameter missing from SETUP message")
	}
	if value, ok := params[ParamPath]; ok {
		path = string(value)
	}
	if value, ok := params[ParamMaxSubscribeID]; ok {
		maxID, err = parseVarintValue(value)
		if err != nil {
			return role, path, hasMaxID, maxID, supportsAck, err
		}
		hasMaxID = true
	}
	if value, ok := params[ParamSupportObjectAcks]; ok {
		v, perr := parseVarintValue(value)
		if perr != nil {
			return role, path, hasMaxID, maxID, supportsAck, perr
		}
		supportsAck = v == 1
	}
	return role, path, hasMaxID, maxID, supportsAck, nil
}

/*
* SUBSCRIBE Message Payload {
*   Subscribe ID (varint),
*   Track Alias (varint),
*   Track Namespace (tuple),
*   Track Name (string),
*   Subscriber Priority (8),
*   Group Order (8),
*   Filter Type (varint),
*   [Start Group (varint), Start Object (varint)],
*   [End Group (varint), End Object (varint)],
*   Track Parameters (..),
* }
*
* End Object is encoded shifted by one; zero marks an absent field.
 */
type SubscribeMessage struct {
	SubscribeID        uint64
	TrackAlias         uint64
	TrackNamespace     []string
	TrackName          string
	SubscriberPriority uint8
	GroupOrder         uint8
	FilterType         FilterType
	StartGroup         uint64
	StartObject        uint64
	EndGroup           uint64
	HasEndObject       bool
	EndObject          uint64
	Parameters         Parameters
}

func (m SubscribeMessage) appendPayload(b []byte) []byte {
	b = quicvarint.Append(b, m.SubscribeID)
	b = quicvarint.Append(b, m.TrackAlias)
	b = appendTuple(b, m.TrackNamespace)
	b = appendString(b, m.TrackName)
	b = append(b, m.SubscriberPriority, m.GroupOrder)
	b = quicvarint.Append(b, uint64(m.FilterType))
	if m.FilterType == FilterAbsoluteStart || m.FilterType == FilterAbsoluteRange {
		b = quicvarint.Append(b, m.StartGroup)
		b = quicvarint.Append(b, m.StartObject)
	}
	if m.FilterType == FilterAbsoluteRange {
		b = quicvarint.Append(b, m.EndGroup)
		if m.HasEndObject {
			b = quicvarint.Append(b, m.EndObject+1)
		} else {
			b = quicvarint.Append(b, 0)
		}
	}
	return appendParameters(b, m.Parameters)
}

func parseSubscribe(payload []byte) (SubscribeMessage, error) {
	var m SubscribeMessage
	r := payloadReader{payload}
	var err error

	if m.SubscribeID, err = r.varint(); err != nil {
		return m, err
	}
	if m.TrackAlias, err = r.varint(); err != nil {
		return m, err
	}
	if m.TrackNamespace, err = r.tuple(); err != nil {
		return m, err
	}
	if m.TrackName, err = r.string(); err != nil {
		return m, err
	}
	if m.SubscriberPriority, err = r.u8(); err != nil {
		return m, err
	}
	if m.GroupOrder, err = r.u8(); err != nil {
		return m, err
	}
	if m.GroupOrder > 0x2 {
		return m, errors.New("invalid group order value")
	}
	filter, err := r.varint()
	if err != nil {
		return m, err
	}
	m.FilterType = FilterType(filter)
	switch m.FilterType {
	case FilterLatestGroup, FilterLatestObject:
	case FilterAbsoluteStart, FilterAbsoluteRange:
		if m.StartGroup, err = r.varint(); err != nil {
			return m, err
		}
		if m.StartObject, err = r.varint(); err != nil {
			return m, err
		}
		if m.FilterType == FilterAbsoluteRange {
			if m.EndGroup, err = r.varint(); err != nil {
				return m, err
			}
			endObject, err := r.varint()
			if err != nil {
				return m, err
			}
			if endObject > 0 {
				m.HasEndObject = true
				m.EndObject = endObject - 1
			}
		}
	default:
		return m, errors.New("invalid filter type")
	}
	if m.Parameters, err = r.parameters(); err != nil {
		return m, err
	}
	return m, r.done()
}

/*
* SUBSCRIBE_OK Message Payload {
*   Subscribe ID (varint),
*   Expires (varint, milliseconds),
*   Group Order (8),
*   Content Exists (8),
*   [Largest Group (varint), Largest Object (varint)],
*   Track Parameters (..),
* }
 */
type SubscribeOkMessage struct {
	SubscribeID   uint64
	Expires       time.Duration
	GroupOrder    uint8
	ContentExists bool
	LargestGroup  uint64
	LargestObject uint64
	Parameters    Parameters
}

func (m SubscribeOkMessage) appendPayload(b []byte) []byte {
	b = quicvarint.Append(b, m.SubscribeID)
	b = quicvarint.Append(b, uint64(m.Expires/time.Millisecond))
	b = append(b, m.GroupOrder, boolByte(m.ContentExists))
	if m.ContentExists {
		b = quicvarint.Append(b, m.LargestGroup)
		b = quicvarint.Append(b, m.LargestObject)
	}
	return appendParameters(b, m.Parameters)
}

func parseSubscribeOk(payload []byte) (SubscribeOkMessage, error) {
	var m SubscribeOkMessage
	r := payloadReader{payload}
	var err error

	if m.SubscribeID, err = r.varint(); err != nil {
		return m, err
	}
	expires, err := r.varint()
	if err != nil {
		return m, err
	}
	m.Expires = time.Duration(expires) * time.Millisecond
	if m.GroupOrder, err = r.u8(); err != nil {
		return m, err
	}
	if m.GroupOrder != 0x1 && m.GroupOrder != 0x2 {
		return m, errors.New("invalid group order value in SUBSCRIBE_OK")
	}
	exists, err := r.u8()
	if err != nil {
		return m, err
	}
	if exists > 1 {
		return m, errors.New("SUBSCRIBE_OK ContentExists has invalid value")
	}
	if exists == 1 {
		m.ContentExists = true
		if m.LargestGroup, err = r.varint(); err != nil {
			return m, err
		}
		if m.LargestObject, err = r.varint(); err != nil {
			return m, err
		}
	}
	if m.Parameters, err = r.parameters(); err != nil {
		return m, err
	}
	return m, r.done()
}

/*
* SUBSCRIBE_ERROR Message Payload {
*   Subscribe ID (varint),
*   Error Code (varint),
*   Reason Phrase (string),
*   Track Alias (varint),
* }
 */
type SubscribeErrorMessage struct {
	SubscribeID  uint64
	ErrorCode    uint64
	ReasonPhrase string
	TrackAlias   uint64
}

func (m SubscribeErrorMessage) appendPayload(b []byte) []byte {
	b = quicvarint.Append(b, m.SubscribeID)
	b = quicvarint.Append(b, m.ErrorCode)
	b = appendString(b, m.ReasonPhrase)
	return quicvarint.Append(b, m.TrackAlias)
}

func parseSubscribeError(payload []byte) (SubscribeErrorMessage, error) {
	var m SubscribeErrorMessage
	r := payloadReader{payload}
	var err error

	if m.SubscribeID, err = r.varint(); err != nil {
		return m, err
	}
	if m.ErrorCode, err = r.varint(); err != nil {
		return m, err
	}
	if m.ReasonPhrase, err = r.string(); err != nil {
		return m, err
	}
	if m.TrackAlias, err = r.varint(); err != nil {
		return m, err
	}
	return m, r.done()
}

/*
* SUBSCRIBE_UPDATE Message Payload {
*   Subscribe ID (varint),
*   Start Group (varint),
*   Start Object (varint),
*   End Group (varint),
*   End Object (varint),
*   Subscriber Priority (8),
*   Track Parameters (..),
* }
*
* End Group and End Object are encoded shifted by one; zero marks an
* absent field.
 */
type SubscribeUpdateMessage struct {
	SubscribeID        uint64
	StartGroup         uint64
	StartObject        uint64
	HasEndGroup        bool
	EndGroup           uint64
	HasEndObject       bool
	EndObject          uint64
	SubscriberPriority uint8
	Parameters         Parameters
}

func (m SubscribeUpdateMessage) appendPayload(b []byte) []byte {
	b = quicvarint.Append(b, m.SubscribeID)
	b = quicvarint.Append(b, m.StartGroup)
	b = quicvarint.Append(b, m.StartObject)
	b = appendShiftedOptional(b, m.HasEndGroup, m.EndGroup)
	b = appendShiftedOptional(b, m.HasEndObject, m.EndObject)
	b = append(b, m.SubscriberPriority)
	return appendParameters(b, m.Parameters)
}

func parseSubscribeUpdate(payload []byte) (SubscribeUpdateMessage, error) {
	var m SubscribeUpdateMessage
	r := payloadReader{payload}
	var err error

	if m.SubscribeID, err = r.varint(); err != nil {
		return m, err
	}
	if m.StartGroup, err = r.varint(); err != nil {
		return m, err
	}
	if m.StartObject, err = r.varint(); err != nil {
		return m, err
	}
	if m.HasEndGroup, m.EndGroup, err = parseShiftedOptional(&r); err != nil {
		return m, err
	}
	if m.HasEndObject, m.EndObject, err = parseShiftedOptional(&r); err != nil {
		return m, err
	}
	if m.SubscriberPriority, err = r.u8(); err != nil {
		return m, err
	}
	if m.Parameters, err = r.parameters(); err != nil {
		return m, err
	}
	return m, r.done()
}

/*
* UNSUBSCRIBE Message Payload {
*   Subscribe ID (varint),
* }
 */
type UnsubscribeMessage struct {
	SubscribeID uint64
}

func (m UnsubscribeMessage) appendPayload(b []byte) []byte {
	return quicvarint.Append(b, m.SubscribeID)
}

func parseUnsubscribe(payload []byte) (UnsubscribeMessage, error) {
	var m UnsubscribeMessage
	r := payloadReader{payload}
	var err error

	if m.SubscribeID, err = r.varint(); err != nil {
		return m, err
	}
	return m, r.done()
}

/*
* SUBSCRIBE_DONE Message Payload {
*   Subscribe ID (varint),
*   Status Code (varint),
*   Reason Phrase (string),
*   Content Exists (8),
*   [Final Group (varint), Final Object (varint)],
* }
 */
type SubscribeDoneMessage struct {
	SubscribeID   uint64
	StatusCode    uint64
	ReasonPhrase  string
	ContentExists bool
	FinalGroup    uint64
	FinalObject   uint64
}

func (m SubscribeDoneMessage) appendPayload(b []byte) []byte {
	b = quicvarint.Append(b, m.SubscribeID)
	b = quicvarint.Append(b, m.StatusCode)
	b = appendString(b, m.ReasonPhrase)
	b = append(b, boolByte(m.ContentExists))
	if m.ContentExists {
		b = quicvarint.Append(b, m.FinalGroup)
		b = quicvarint.Append(b, m.FinalObject)
	}
	return b
}

func parseSubscribeDone(payload []byte) (SubscribeDoneMessage, error) {
	var m SubscribeDoneMessage
	r := payloadReader{payload}
	var err error

	if m.SubscribeID, err = r.varint(); err != nil {
		return m, err
	}
	if m.StatusCode, err = r.varint(); err != nil {
		return m, err
	}
	if m.ReasonPhrase, err = r.string(); err != nil {
		return m, err
	}
	exists, err := r.u8()
	if err != nil {
		return m, err
	}
	if exists > 1 {
		return m, errors.New("SUBSCRIBE_DONE ContentExists has invalid value")
	}
	if exists == 1 {
		m.ContentExists = true
		if m.FinalGroup, err = r.varint(); err != nil {
			return m, err
		}
		if m.FinalObject, err = r.varint(); err != nil {
			return m, err
		}
	}
	return m, r.done()
}

/*
* ANNOUNCE Message Payload {
*   Track Namespace (tuple),
*   Parameters (..),
* }
 */
type AnnounceMessage struct {
	TrackNamespace []string
	Parameters     Parameters
}

func (m AnnounceMessage) appendPayload(b []byte) []byte {
	b = appendTuple(b, m.TrackNamespace)
	return appendParameters(b, m.Parameters)
}

func parseAnnounce(payload []byte) (AnnounceMessage, error) {
	var m AnnounceMessage
	r := payloadReader{payload}
	var err error

	if m.TrackNamespace, err = r.tuple(); err != nil {
		return m, err
	}
	if m.Parameters, err = r.parameters(); err != nil {
		return m, err
	}
	return m, r.done()
}

/*
* ANNOUNCE_OK Message Payload {
*   Track Namespace (tuple),
* }
 */
type AnnounceOkMessage struct {
	TrackNamespace []string
}

func (m AnnounceOkMessage) appendPayload(b []byte) []byte {
	return appendTuple(b, m.TrackNamespace)
}

func parseAnnounceOk(payload []byte) (AnnounceOkMessage, error) {
	var m AnnounceOkMessage
	r := payloadReader{payload}
	var err error

	if m.TrackNamespace, err = r.tuple(); err != nil {
		return m, err
	}
	return m, r.done()
}

/*
* ANNOUNCE_ERROR Message Payload {
*   Track Namespace (tuple),
*   Error Code (varint),
*   Reason Phrase (string),
* }
 */
type AnnounceErrorMessage struct {
	TrackNamespace []string
	ErrorCode      uint64
	ReasonPhrase   string
}

func (m AnnounceErrorMessage) appendPayload(b []byte) []byte {
	b = appendTuple(b, m.TrackNamespace)
	b = quicvarint.Append(b, m.ErrorCode)
	return appendString(b, m.ReasonPhrase)
}

func parseAnnounceError(payload []byte) (AnnounceErrorMessage, error) {
	var m AnnounceErrorMessage
	r := payloadReader{payload}
	var err error

	if m.TrackNamespace, err = r.tuple(); err != nil {
		return m, err
	}
	if m.ErrorCode, err = r.varint(); err != nil {
		return m, err
	}
	if m.ReasonPhrase, err = r.string(); err != nil {
		return m, err
	}
	return m, r.done()
}

/*
* ANNOUNCE_CANCEL Message Payload {
*   Track Namespace (tuple),
*   Error Code (varint),
*   Reason Phrase (string),
* }
 */
type AnnounceCancelMessage struct {
	TrackNamespace []string
	ErrorCode      uint64
	ReasonPhrase   string
}

func (m AnnounceCancelMessage) appendPayload(b []byte) []byte {
	b = appendTuple(b, m.TrackNamespace)
	b = quicvarint.Append(b, m.ErrorCode)
	return appendString(b, m.ReasonPhrase)
}

func parseAnnounceCancel(payload []byte) (AnnounceCancelMessage, error) {
	var m AnnounceCancelMessage
	r := payloadReader{payload}
	var err error

	if m.TrackNamespace, err = r.tuple(); err != nil {
		return m, err
	}
	if m.ErrorCode, err = r.varint(); err != nil {
		return m, err
	}
	if m.ReasonPhrase, err = r.string(); err != nil {
		return m, err
	}
	return m, r.done()
}

/*
* MAX_SUBSCRIBE_ID Message Payload {
*   Subscribe ID (varint),
* }
 */
type MaxSubscribeIDMessage struct {
	SubscribeID uint64
}

func (m MaxSubscribeIDMessage) appendPayload(b []byte) []byte {
	return quicvarint.Append(b, m.SubscribeID)
}

func parseMaxSubscribeID(payload []byte) (MaxSubscribeIDMessage, error) {
	var m MaxSubscribeIDMessage
	r := payloadReader{payload}
	var err error

	if m.SubscribeID, err = r.varint(); err != nil {
		return m, err
	}
	return m, r.done()
}

/*
* FETCH Message Payload {
*   Subscribe ID (varint),
*   Track Namespace (tuple),
*   Track Name (string),
*   Subscriber Priority (8),
*   Group Order (8),
*   Start Group (varint),
*   Start Object (varint),
*   End Group (varint),
*   End Object (varint),
*   Track Parameters (..),
* }
*
* End Object is encoded shifted by one; zero means the whole final group.
 */
type FetchMessage struct {
	SubscribeID        uint64
	TrackNamespace     []string
	TrackName          string
	SubscriberPriority uint8
	GroupOrder         uint8
	StartGroup         uint64
	StartObject        uint64
	EndGroup           uint64
	HasEndObject       bool
	EndObject          uint64
	Parameters         Parameters
}

func (m FetchMessage) appendPayload(b []byte) []byte {
	b = quicvarint.Append(b, m.SubscribeID)
	b = appendTuple(b, m.TrackNamespace)
	b = appendString(b, m.TrackName)
	b = append(b, m.SubscriberPriority, m.GroupOrder)
	b = quicvarint.Append(b, m.StartGroup)
	b = quicvarint.Append(b, m.StartObject)
	b = quicvarint.Append(b, m.EndGroup)
	b = appendShiftedOptional(b, m.HasEndObject, m.EndObject)
	return appendParameters(b, m.Parameters)
}

func parseFetch(payload []byte) (FetchMessage, error) {
	var m FetchMessage
	r := payloadReader{payload}
	var err error

	if m.SubscribeID, err = r.varint(); err != nil {
		return m, err
	}
	if m.TrackNamespace, err = r.tuple(); err != nil {
		return m, err
	}
	if m.TrackName, err = r.string(); err != nil {
		return m, err
	}
	if m.SubscriberPriority, err = r.u8(); err != nil {
		return m, err
	}
	if m.GroupOrder, err = r.u8(); err != nil {
		return m, err
	}
	if m.GroupOrder > 0x2 {
		return m, errors.New("invalid group order value")
	}
	if m.StartGroup, err = r.varint(); err != nil {
		return m, err
	}
	if m.StartObject, err = r.varint(); err != nil {
		return m, err
	}
	if m.EndGroup, err = r.varint(); err != nil {
		return m, err
	}
	if m.HasEndObject, m.EndObject, err = parseShiftedOptional(&r); err != nil {
		return m, err
	}
	if m.Parameters, err = r.parameters(); err != nil {
		return m, err
	}
	return m, r.done()
}

/*
* FETCH_OK Message Payload {
*   Subscribe ID (varint),
*   Group Order (8),
*   End Of Track (8),
*   Largest Group (varint),
*   Largest Object (varint),
*   Track Parameters (..),
* }
 */
type FetchOkMessage struct {
	SubscribeID   uint64
	GroupOrder    uint8
	EndOfTrack    bool
	LargestGroup  uint64
	LargestObject uint64
	Parameters    Parameters
}

func (m FetchOkMessage) appendPayload(b []byte) []byte {
	b = quicvarint.Append(b, m.SubscribeID)
	b = append(b, m.GroupOrder, boolByte(m.EndOfTrack))
	b = quicvarint.Append(b, m.LargestGroup)
	b = quicvarint.Append(b, m.LargestObject)
	return appendParameters(b, m.Parameters)
}

func parseFetchOk(payload []byte) (FetchOkMessage, error) {
	var m FetchOkMessage
	r := payloadReader{payload}
	var err error

	if m.SubscribeID, err = r.varint(); err != nil {
		return m, err
	}
	if m.GroupOrder, err = r.u8(); err != nil {
		return m, err
	}
	eot, err := r.u8()
	if err != nil {
		return m, err
	}
	if eot > 1 {
		return m, errors.New("FETCH_OK EndOfTrack has invalid value")
	}
	m.EndOfTrack = eot == 1
	if m.LargestGroup, err = r.varint(); err != nil {
		return m, err
	}
	if m.LargestObject, err = r.varint(); err != nil {
		return m, err
	}
	if m.Parameters, err = r.parameters(); err != nil {
		return m, err
	}
	return m, r.done()
}

/*
* FETCH_ERROR Message Payload {
*   Subscribe ID (varint),
*   Error Code (varint),
*   Reason Phrase (string),
* }
 */
type FetchErrorMessage struct {
	SubscribeID  uint64
	ErrorCode    uint64
	ReasonPhrase string
}

func (m FetchErrorMessage) appendPayload(b []byte) []byte {
	b = quicvarint.Append(b, m.SubscribeID)
	b = quicvarint.Append(b, m.ErrorCode)
	return appendString(b, m.ReasonPhrase)
}

func parseFetchError(payload []byte) (FetchErrorMessage, error) {
	var m FetchErrorMessage
	r := payloadReader{payload}
	var err error

	if m.SubscribeID, err = r.varint(); err != nil {
		return m, err
	}
	if m.ErrorCode, err = r.varint(); err != nil {
		return m, err
	}
	if m.ReasonPhrase, err = r.string(); err != nil {
		return m, err
	}
	return m, r.done()
}

/*
* OBJECT_ACK Message Payload {
*   Subscribe ID (varint),
*   Group (varint),
*   Object (varint),
*   Delta From Deadline (varint, zigzag microseconds),
* }
 */
type ObjectAckMessage struct {
	SubscribeID       uint64
	Group             uint64
	Object            uint64
	DeltaFromDeadline time.Duration
}

func (m ObjectAckMessage) appendPayload(b []byte) []byte {
	b = quicvarint.Append(b, m.SubscribeID)
	b = quicvarint.Append(b, m.Group)
	b = quicvarint.Append(b, m.Object)
	return quicvarint.Append(b, zigzagEncode(int64(m.DeltaFromDeadline/time.Microsecond)))
}

func parseObjectAck(payload []byte) (ObjectAckMessage, error) {
	var m ObjectAckMessage
	r := payloadReader{payload}
	var err error

	if m.SubscribeID, err = r.varint(); err != nil {
		return m, err
	}
	if m.Group, err = r.varint(); err != nil {
		return m, err
	}
	if m.Object, err = r.varint(); err != nil {
		return m, err
	}
	delta, err := r.varint()
	if err != nil {
		return m, err
	}
	m.DeltaFromDeadline = time.Duration(zigzagDecode(delta)) * time.Microsecond
	return m, r.done()
}

func boolByte(v bool) byte {
	if v {
		return 1
	}
	return 0
}

func appendShiftedOptional(b []byte, present bool, value uint64) []byte {
	if !present {
		return quicvarint.Append(b, 0)
	}
	return quicvarint.Append(b, value+1)
}

func parseShiftedOptional(r *payloadReader) (bool, uint64, error) {
	v, err := r.varint()
	if err != nil {
		return false, 0, err
	}
	if v == 0 {
		return false, 0, nil
	}
	return true, v - 1, nil
}

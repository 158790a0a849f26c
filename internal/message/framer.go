package message

import "github.com/quic-go/quic-go/quicvarint"

/*
* Control Message {
*   Message Type (varint),
*   Message Length (varint),
*   Message Payload (..),
* }
 */
func serializeControlMessage(t MessageType, appendPayload func([]byte) []byte) []byte {
	payload := appendPayload(make([]byte, 0, 64))
	b := make([]byte, 0, quicvarint.Len(uint64(t))+quicvarint.Len(uint64(len(payload)))+len(payload))
	b = quicvarint.Append(b, uint64(t))
	b = quicvarint.Append(b, uint64(len(payload)))
	return append(b, payload...)
}

func SerializeClientSetup(m ClientSetupMessage) []byte {
	return serializeControlMessage(MessageTypeClientSetup, m.appendPayload)
}

func SerializeServerSetup(m ServerSetupMessage) []byte {
	return serializeControlMessage(MessageTypeServerSetup, m.appendPayload)
}

func SerializeSubscribe(m SubscribeMessage) []byte {
	return serializeControlMessage(MessageTypeSubscribe, m.appendPayload)
}

func SerializeSubscribeOk(m SubscribeOkMessage) []byte {
	return serializeControlMessage(MessageTypeSubscribeOk, m.appendPayload)
}

func SerializeSubscribeError(m SubscribeErrorMessage) []byte {
	return serializeControlMessage(MessageTypeSubscribeError, m.appendPayload)
}

func SerializeSubscribeUpdate(m SubscribeUpdateMessage) []byte {
	return serializeControlMessage(MessageTypeSubscribeUpdate, m.appendPayload)
}

func SerializeUnsubscribe(m UnsubscribeMessage) []byte {
	return serializeControlMessage(MessageTypeUnsubscribe, m.appendPayload)
}

func SerializeSubscribeDone(m SubscribeDoneMessage) []byte {
	return serializeControlMessage(MessageTypeSubscribeDone, m.appendPayload)
}

func SerializeAnnounce(m AnnounceMessage) []byte {
	return serializeControlMessage(MessageTypeAnnounce, m.appendPayload)
}

func SerializeAnnounceOk(m AnnounceOkMessage) []byte {
	return serializeControlMessage(MessageTypeAnnounceOk, m.appendPayload)
}

func SerializeAnnounceError(m AnnounceErrorMessage) []byte {
	return serializeControlMessage(MessageTypeAnnounceError, m.appendPayload)
}

func SerializeAnnounceCancel(m AnnounceCancelMessage) []byte {
	return serializeControlMessage(MessageTypeAnnounceCancel, m.appendPayload)
}

func SerializeMaxSubscribeID(m MaxSubscribeIDMessage) []byte {
	return serializeControlMessage(MessageTypeMaxSubscribeID, m.appendPayload)
}

func SerializeFetch(m FetchMessage) []byte {
	return serializeControlMessage(MessageTypeFetch, m.appendPayload)
}

func SerializeFetchOk(m FetchOkMessage) []byte {
	return serializeControlMessage(MessageTypeFetchOk, m.appendPayload)
}

func SerializeFetchError(m FetchErrorMessage) []byte {
	return serializeControlMessage(MessageTypeFetchError, m.appendPayload)
}

func SerializeObjectAck(m ObjectAckMessage) []byte {
	return serializeControlMessage(MessageTypeObjectAck, m.appendPayload)
}

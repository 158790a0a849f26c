package moqt

import (
	"math"

	"github.com/quicmoq/moqt/webtransport"
)

// Priority is an eight-bit stream priority as carried on the wire.
// Lower values are more important.
type Priority uint8

// Defaults used when the application does not pick a priority.
const (
	DefaultSubscriberPriority Priority = 0x80
	DefaultPublisherPriority  Priority = 0x80
)

// DeliveryOrder selects which groups of a track win transport scheduling
// when bandwidth is scarce: the oldest ones or the newest ones.
type DeliveryOrder uint8

const (
	DeliveryOrderAscending  DeliveryOrder = 0x1
	DeliveryOrderDescending DeliveryOrder = 0x2
)

func (order DeliveryOrder) String() string {
	switch order {
	case DeliveryOrderAscending:
		return "ascending"
	case DeliveryOrderDescending:
		return "descending"
	default:
		return "unknown"
	}
}

// All streams of a session share a single send group; the send order value
// alone expresses the scheduling decision.
const sendGroupID webtransport.SendGroupID = 0

// controlStreamSendOrder outranks every data stream.
const controlStreamSendOrder webtransport.SendOrder = math.MaxInt64

// Send orders pack, from most significant to least significant: a zero sign
// bit, the flipped subscriber priority (8 bits), the flipped publisher
// priority (8 bits) and 47 bits of stream coordinates. Flipping maps the
// wire encoding, where lower is more important, onto send orders, where
// higher wins.

func flipBits(value uint64, bits uint) uint64 {
	return (uint64(1)<<bits - 1) - value
}

func lowestBits(value uint64, bits uint) uint64 {
	return value & (uint64(1)<<bits - 1)
}

func priorityBits(subscriberPriority, publisherPriority Priority) uint64 {
	return flipBits(uint64(subscriberPriority), 8)<<55 | flipBits(uint64(publisherPriority), 8)<<47
}

// sendOrderForTrackStream computes the send order of a stream that carries
// an entire track, or of a fetch stream. The group id is the first group
// carried on the stream.
func sendOrderForTrackStream(subscriberPriority, publisherPriority Priority, groupID uint64, deliveryOrder DeliveryOrder) webtransport.SendOrder {
	groupID = lowestBits(groupID, 47)
	if deliveryOrder == DeliveryOrderAscending {
		groupID = flipBits(groupID, 47)
	}
	return webtransport.SendOrder(priorityBits(subscriberPriority, publisherPriority) | groupID)
}

// sendOrderForSubgroupStream computes the send order of a stream that
// carries a single subgroup. Subgroups of a group always deliver in
// ascending subgroup order; the delivery order only affects groups.
func sendOrderForSubgroupStream(subscriberPriority, publisherPriority Priority, groupID, subgroupID uint64, deliveryOrder DeliveryOrder) webtransport.SendOrder {
	groupID = lowestBits(groupID, 27)
	subgroupID = lowestBits(subgroupID, 20)
	if deliveryOrder == DeliveryOrderAscending {
		groupID = flipBits(groupID, 27)
	}
	subgroupID = flipBits(subgroupID, 20)
	return webtransport.SendOrder(priorityBits(subscriberPriority, publisherPriority) | groupID<<20 | subgroupID)
}

// updateSendOrderForSubscriberPriority replaces the subscriber priority
// bits of an existing send order, leaving the rest intact. Keys computed
// with a fixed priority of zero stay stable when the real subscriber
// priority changes.
func updateSendOrderForSubscriberPriority(sendOrder webtransport.SendOrder, subscriberPriority Priority) webtransport.SendOrder {
	order := lowestBits(uint64(sendOrder), 55)
	order |= flipBits(uint64(subscriberPriority), 8) << 55
	return webtransport.SendOrder(order)
}

package moqt

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/quicmoq/moqt/webtransport"
)

func TestSendOrderRanking(t *testing.T) {
	tests := map[string]struct {
		higher webtransport.SendOrder
		lower  webtransport.SendOrder
	}{
		"lower subscriber priority value wins": {
			higher: sendOrderForTrackStream(0x10, 0x80, 0, DeliveryOrderAscending),
			lower:  sendOrderForTrackStream(0x80, 0x80, 0, DeliveryOrderAscending),
		},
		"subscriber priority outranks publisher priority": {
			higher: sendOrderForTrackStream(0x10, 0xff, 0, DeliveryOrderAscending),
			lower:  sendOrderForTrackStream(0x80, 0x00, 0, DeliveryOrderAscending),
		},
		"publisher priority breaks subscriber ties": {
			higher: sendOrderForTrackStream(0x80, 0x10, 0, DeliveryOrderAscending),
			lower:  sendOrderForTrackStream(0x80, 0x80, 0, DeliveryOrderAscending),
		},
		"ascending prefers the older group": {
			higher: sendOrderForTrackStream(0x80, 0x80, 2, DeliveryOrderAscending),
			lower:  sendOrderForTrackStream(0x80, 0x80, 7, DeliveryOrderAscending),
		},
		"descending prefers the newer group": {
			higher: sendOrderForTrackStream(0x80, 0x80, 7, DeliveryOrderDescending),
			lower:  sendOrderForTrackStream(0x80, 0x80, 2, DeliveryOrderDescending),
		},
		"priorities outrank group position": {
			higher: sendOrderForTrackStream(0x80, 0x7f, 1<<47-1, DeliveryOrderDescending),
			lower:  sendOrderForTrackStream(0x80, 0x80, 0, DeliveryOrderDescending),
		},
		"subgroup group order follows delivery order": {
			higher: sendOrderForSubgroupStream(0x80, 0x80, 5, 0, DeliveryOrderDescending),
			lower:  sendOrderForSubgroupStream(0x80, 0x80, 4, 0, DeliveryOrderDescending),
		},
		"subgroups deliver ascending under descending groups": {
			higher: sendOrderForSubgroupStream(0x80, 0x80, 5, 1, DeliveryOrderDescending),
			lower:  sendOrderForSubgroupStream(0x80, 0x80, 5, 2, DeliveryOrderDescending),
		},
		"subgroups deliver ascending under ascending groups": {
			higher: sendOrderForSubgroupStream(0x80, 0x80, 5, 1, DeliveryOrderAscending),
			lower:  sendOrderForSubgroupStream(0x80, 0x80, 5, 2, DeliveryOrderAscending),
		},
		"group outranks subgroup": {
			higher: sendOrderForSubgroupStream(0x80, 0x80, 6, 1<<20-1, DeliveryOrderDescending),
			lower:  sendOrderForSubgroupStream(0x80, 0x80, 5, 0, DeliveryOrderDescending),
		},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Greater(t, tt.higher, tt.lower)
		})
	}
}

func TestSendOrderBitLayout(t *testing.T) {
	// Most important on both axes, first group, descending: every priority
	// bit set, no coordinate bits.
	order := sendOrderForTrackStream(0x00, 0x00, 0, DeliveryOrderDescending)
	assert.Equal(t, webtransport.SendOrder(0x7fff_8000_0000_0000), order)

	// Least important on both axes, oldest-first: only coordinate bits.
	order = sendOrderForTrackStream(0xff, 0xff, 0, DeliveryOrderAscending)
	assert.Equal(t, webtransport.SendOrder(0x0000_7fff_ffff_ffff), order)

	// The sign bit stays clear even at the extremes.
	order = sendOrderForTrackStream(0x00, 0x00, 1<<47-1, DeliveryOrderDescending)
	assert.GreaterOrEqual(t, order, webtransport.SendOrder(0))
}

func TestSendOrderGroupWraparound(t *testing.T) {
	assert.Equal(t,
		sendOrderForTrackStream(0x80, 0x80, 5, DeliveryOrderDescending),
		sendOrderForTrackStream(0x80, 0x80, 1<<47+5, DeliveryOrderDescending))
	assert.Equal(t,
		sendOrderForSubgroupStream(0x80, 0x80, 5, 3, DeliveryOrderDescending),
		sendOrderForSubgroupStream(0x80, 0x80, 1<<27+5, 1<<20+3, DeliveryOrderDescending))
}

func TestUpdateSendOrderForSubscriberPriority(t *testing.T) {
	original := sendOrderForSubgroupStream(0x20, 0x40, 7, 3, DeliveryOrderAscending)

	// Zeroing the subscriber priority gives the neutral queue key.
	neutral := updateSendOrderForSubscriberPriority(original, 0)
	assert.Equal(t, sendOrderForSubgroupStream(0x00, 0x40, 7, 3, DeliveryOrderAscending), neutral)

	// Restoring the priority reproduces the original order exactly.
	assert.Equal(t, original, updateSendOrderForSubscriberPriority(neutral, 0x20))
}

func TestControlStreamOutranksDataStreams(t *testing.T) {
	assert.Greater(t, controlStreamSendOrder,
		sendOrderForSubgroupStream(DefaultSubscriberPriority, DefaultPublisherPriority, 0, 0, DeliveryOrderAscending))
	assert.Greater(t, controlStreamSendOrder,
		sendOrderForTrackStream(0x01, 0x01, 0, DeliveryOrderDescending))
}

package moqt

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/quicmoq/moqt/internal/message"
)

func TestUnboundedWindow(t *testing.T) {
	window := newUnboundedWindow(FullSequence{Group: 2, Object: 3})

	tests := map[string]struct {
		sequence FullSequence
		want     bool
	}{
		"before the start group":       {FullSequence{Group: 1, Object: 9}, false},
		"before the start object":      {FullSequence{Group: 2, Object: 2}, false},
		"the start itself":             {FullSequence{Group: 2, Object: 3}, true},
		"later in the start group":     {FullSequence{Group: 2, Object: 100}, true},
		"any object of a later group":  {FullSequence{Group: 3, Object: 0}, true},
		"far beyond the start":         {FullSequence{Group: 900, Object: 900}, true},
		"subgroups do not participate": {FullSequence{Group: 2, Subgroup: 99, Object: 3}, true},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, window.InWindow(tt.sequence))
		})
	}
}

func TestBoundedWindow(t *testing.T) {
	window := newBoundedWindow(FullSequence{Group: 2, Object: 3}, FullSequence{Group: 4, Object: 5})

	tests := map[string]struct {
		sequence FullSequence
		want     bool
	}{
		"before the start":         {FullSequence{Group: 2, Object: 2}, false},
		"the start itself":         {FullSequence{Group: 2, Object: 3}, true},
		"inside":                   {FullSequence{Group: 3, Object: 0}, true},
		"the inclusive end":        {FullSequence{Group: 4, Object: 5}, true},
		"past the end object":      {FullSequence{Group: 4, Object: 6}, false},
		"past the end group":       {FullSequence{Group: 5, Object: 0}, false},
		"early object of endgroup": {FullSequence{Group: 4, Object: 0}, true},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, window.InWindow(tt.sequence))
		})
	}
}

func TestWindowUpdateStartEnd(t *testing.T) {
	window := newBoundedWindow(FullSequence{Group: 2}, FullSequence{Group: 4, Object: 5})

	window.UpdateStartEnd(FullSequence{Group: 3}, nil)
	assert.True(t, window.InWindow(FullSequence{Group: 900}))
	assert.False(t, window.InWindow(FullSequence{Group: 2, Object: 9}))

	end := FullSequence{Group: 5, Object: 0}
	window.UpdateStartEnd(FullSequence{Group: 3}, &end)
	assert.True(t, window.InWindow(FullSequence{Group: 5, Object: 0}))
	assert.False(t, window.InWindow(FullSequence{Group: 5, Object: 1}))
}

func TestSubscribeMessageWindow(t *testing.T) {
	tests := map[string]struct {
		msg    message.SubscribeMessage
		inside []FullSequence
		outside []FullSequence
	}{
		"latest filters admit everything": {
			msg:    message.SubscribeMessage{FilterType: message.FilterLatestGroup},
			inside: []FullSequence{{}, {Group: 9, Object: 9}},
		},
		"absolute start bounds below": {
			msg: message.SubscribeMessage{
				FilterType: message.FilterAbsoluteStart,
				StartGroup: 2, StartObject: 1,
			},
			inside:  []FullSequence{{Group: 2, Object: 1}, {Group: 7}},
			outside: []FullSequence{{Group: 2, Object: 0}},
		},
		"absolute range without an end object spans the whole end group": {
			msg: message.SubscribeMessage{
				FilterType: message.FilterAbsoluteRange,
				StartGroup: 2, EndGroup: 3,
			},
			inside:  []FullSequence{{Group: 3, Object: 12345}},
			outside: []FullSequence{{Group: 4, Object: 0}},
		},
		"absolute range with an end object stops there": {
			msg: message.SubscribeMessage{
				FilterType: message.FilterAbsoluteRange,
				StartGroup: 2, EndGroup: 3,
				HasEndObject: true, EndObject: 4,
			},
			inside:  []FullSequence{{Group: 3, Object: 4}},
			outside: []FullSequence{{Group: 3, Object: 5}},
		},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			window := subscribeMessageWindow(tt.msg)
			for _, sequence := range tt.inside {
				assert.True(t, window.InWindow(sequence), "expected %s inside", sequence)
			}
			for _, sequence := range tt.outside {
				assert.False(t, window.InWindow(sequence), "expected %s outside", sequence)
			}
		})
	}
}

func TestFetchWindow(t *testing.T) {
	endObject := uint64(2)
	window := fetchWindow(1, 1, 3, &endObject)
	assert.False(t, window.InWindow(FullSequence{Group: 1, Object: 0}))
	assert.True(t, window.InWindow(FullSequence{Group: 1, Object: 1}))
	assert.True(t, window.InWindow(FullSequence{Group: 3, Object: 2}))
	assert.False(t, window.InWindow(FullSequence{Group: 3, Object: 3}))

	unbounded := fetchWindow(1, 1, 3, nil)
	assert.True(t, unbounded.InWindow(FullSequence{Group: 3, Object: 12345}))
	assert.False(t, unbounded.InWindow(FullSequence{Group: 4, Object: 0}))
}

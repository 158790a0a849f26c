package moqt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFullTrackNameTuple(t *testing.T) {
	tests := map[string]struct {
		elements []string
	}{
		"empty tuple":            {nil},
		"single element":         {[]string{"video"}},
		"namespace and name":     {[]string{"example.com", "meeting=123", "audio"}},
		"empty elements survive": {[]string{"", "track", ""}},
		"binary elements":        {[]string{"a\x00b", "\xff\xfe"}},
		"long element":           {[]string{strings.Repeat("x", 300), "name"}},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			full := NewFullTrackName(tt.elements...)
			if len(tt.elements) == 0 {
				assert.Nil(t, full.Tuple())
				return
			}
			assert.Equal(t, tt.elements, full.Tuple())
		})
	}
}

func TestFullTrackNameNamespaceAndName(t *testing.T) {
	full := NewFullTrackName("example.com", "meeting=123", "audio")
	assert.Equal(t, []string{"example.com", "meeting=123"}, full.Namespace())
	assert.Equal(t, "audio", full.Name())

	single := NewFullTrackName("audio")
	assert.Empty(t, single.Namespace())
	assert.Equal(t, "audio", single.Name())

	empty := FullTrackName{}
	assert.True(t, empty.IsEmpty())
	assert.Nil(t, empty.Namespace())
	assert.Equal(t, "", empty.Name())
}

func TestFullTrackNameComparability(t *testing.T) {
	a := NewFullTrackName("ns", "track")
	b := NewFullTrackName("ns", "track")
	assert.Equal(t, a, b)

	// Element boundaries matter, not just the concatenation.
	c := NewFullTrackName("nstrack")
	d := NewFullTrackName("ns", "track")
	assert.NotEqual(t, c, d)

	m := map[FullTrackName]int{a: 1}
	assert.Equal(t, 1, m[b])
}

func TestFullTrackNameString(t *testing.T) {
	assert.Equal(t, "ns/track", NewFullTrackName("ns", "track").String())
	assert.Equal(t, "", FullTrackName{}.String())
}

func TestTrackNameFromParts(t *testing.T) {
	assert.Equal(t,
		NewFullTrackName("example.com", "meeting=123", "audio"),
		trackNameFromParts([]string{"example.com", "meeting=123"}, "audio"))
	assert.Equal(t, NewFullTrackName("audio"), trackNameFromParts(nil, "audio"))
}

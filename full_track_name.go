package moqt

import "strings"

// FullTrackName is a namespace-qualified track identifier: an ordered tuple
// of byte strings. The zero value is the empty tuple. FullTrackName is
// comparable and usable as a map key; equality is element-wise.
type FullTrackName struct {
	// Elements are stored length-prefixed in a single string so that the
	// type stays comparable without losing element boundaries.
	encoded string
}

// NewFullTrackName builds a track name from its tuple elements. The last
// element is conventionally the track name and the preceding ones the
// namespace, but the session treats the tuple as opaque.
func NewFullTrackName(elements ...string) FullTrackName {
	var sb strings.Builder
	for _, element := range elements {
		appendTupleElement(&sb, element)
	}
	return FullTrackName{encoded: sb.String()}
}

func appendTupleElement(sb *strings.Builder, element string) {
	n := len(element)
	// Variable-length size prefix, seven bits per byte.
	for n >= 0x80 {
		sb.WriteByte(byte(n) | 0x80)
		n >>= 7
	}
	sb.WriteByte(byte(n))
	sb.WriteString(element)
}

// Tuple returns the elements of the track name in order.
func (n FullTrackName) Tuple() []string {
	var elements []string
	rest := n.encoded
	for len(rest) > 0 {
		size := 0
		shift := 0
		for {
			b := rest[0]
			rest = rest[1:]
			size |= int(b&0x7f) << shift
			if b < 0x80 {
				break
			}
			shift += 7
		}
		elements = append(elements, rest[:size])
		rest = rest[size:]
	}
	return elements
}

// Namespace returns every element except the final one.
func (n FullTrackName) Namespace() []string {
	tuple := n.Tuple()
	if len(tuple) == 0 {
		return nil
	}
	return tuple[:len(tuple)-1]
}

// Name returns the final tuple element, or "" for the empty tuple.
func (n FullTrackName) Name() string {
	tuple := n.Tuple()
	if len(tuple) == 0 {
		return ""
	}
	return tuple[len(tuple)-1]
}

func (n FullTrackName) IsEmpty() bool {
	return n.encoded == ""
}

func (n FullTrackName) String() string {
	return strings.Join(n.Tuple(), "/")
}

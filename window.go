package moqt

// subscribeWindow is the range of objects a subscription admits. The start
// bound is always present; the end bound is optional and, when present,
// inclusive. Only group and object take part in the comparison; subgroups
// are a property of the carrier, not of the window.
type subscribeWindow struct {
	start  FullSequence
	end    FullSequence
	hasEnd bool
}

func newUnboundedWindow(start FullSequence) subscribeWindow {
	return subscribeWindow{start: start}
}

func newBoundedWindow(start, end FullSequence) subscribeWindow {
	return subscribeWindow{start: start, end: end, hasEnd: true}
}

func windowLess(a, b FullSequence) bool {
	if a.Group != b.Group {
		return a.Group < b.Group
	}
	return a.Object < b.Object
}

func (w *subscribeWindow) InWindow(sequence FullSequence) bool {
	if windowLess(sequence, w.start) {
		return false
	}
	return !w.hasEnd || !windowLess(w.end, sequence)
}

func (w *subscribeWindow) UpdateStartEnd(start FullSequence, end *FullSequence) {
	w.start = start
	if end == nil {
		w.hasEnd = false
		return
	}
	w.end = *end
	w.hasEnd = true
}

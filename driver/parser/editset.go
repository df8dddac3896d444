package parser

import (
	"fmt"

	"github.com/tidwall/btree"

	verr "github.com/nihei9/reparse/error"
	"github.com/nihei9/reparse/tree"
)

// region is a maximal stretch of text an edit sequence replaced: [oldStart, oldEnd) of the old text became
// [newStart, newEnd) of the new one.
type region struct {
	oldStart int
	oldEnd   int
	newLen   int
	newStart int
	newEnd   int
}

// editSet composes a sequence of edits into disjoint regions in old-text coordinates.
type editSet struct {
	// regions are keyed by oldStart. Regions never overlap nor touch; touching ones are merged.
	regions btree.Map[int, region]
}

func newEditSet(oldLen int, edits []tree.Edit, newLen int) (*editSet, error) {
	s := &editSet{}
	curLen := oldLen
	for i, e := range edits {
		if e.StartByte < 0 || e.OldEndByte < e.StartByte || e.NewEndByte < e.StartByte {
			return nil, &verr.EditError{
				Index: i,
				Cause: fmt.Errorf("invalid range: %+v", e),
			}
		}
		if e.OldEndByte > curLen {
			return nil, &verr.EditError{
				Index: i,
				Cause: fmt.Errorf("the edit ends at %v past the end of the text at %v", e.OldEndByte, curLen),
			}
		}
		s.apply(e)
		curLen += (e.NewEndByte - e.OldEndByte)
	}
	if curLen != newLen {
		return nil, &verr.EditError{
			Index: -1,
			Cause: fmt.Errorf("the edits make a text of %v bytes, but the new text has %v bytes", curLen, newLen),
		}
	}
	s.finalize()
	return s, nil
}

// apply adds an edit expressed in the coordinates of the text the previous edits produced.
func (s *editSet) apply(e tree.Edit) {
	start, oldEnd, newEnd := e.StartByte, e.OldEndByte, e.NewEndByte

	// delta is the length change made by the regions before the merged ones, and deltaAfter the one made by
	// those up to the last merged one.
	run := 0
	delta := 0
	deltaAfter := 0
	var merged []region
	var firstNewStart, lastNewEnd int
	s.regions.Scan(func(_ int, r region) bool {
		rNewStart := r.oldStart + run
		rNewEnd := rNewStart + r.newLen
		if rNewEnd < start {
			run += r.newLen - (r.oldEnd - r.oldStart)
			delta = run
			return true
		}
		if rNewStart > oldEnd {
			return false
		}
		if len(merged) == 0 {
			firstNewStart = rNewStart
		}
		merged = append(merged, r)
		lastNewEnd = rNewEnd
		run += r.newLen - (r.oldEnd - r.oldStart)
		deltaAfter = run
		return true
	})

	var n region
	if len(merged) == 0 {
		n = region{
			oldStart: start - delta,
			oldEnd:   oldEnd - delta,
			newLen:   newEnd - start,
		}
	} else {
		first := merged[0]
		last := merged[len(merged)-1]
		if start < firstNewStart {
			n.oldStart = start - delta
		} else {
			n.oldStart = first.oldStart
		}
		if oldEnd > lastNewEnd {
			n.oldEnd = oldEnd - deltaAfter
		} else {
			n.oldEnd = last.oldEnd
		}
		curStart := min(start, firstNewStart)
		curEnd := max(oldEnd, lastNewEnd)
		n.newLen = curEnd - curStart + (newEnd - oldEnd)
		for _, r := range merged {
			s.regions.Delete(r.oldStart)
		}
	}
	s.regions.Set(n.oldStart, n)
}

func (s *editSet) finalize() {
	var rs []region
	delta := 0
	s.regions.Scan(func(_ int, r region) bool {
		r.newStart = r.oldStart + delta
		r.newEnd = r.newStart + r.newLen
		delta += r.newLen - (r.oldEnd - r.oldStart)
		rs = append(rs, r)
		return true
	})
	for _, r := range rs {
		s.regions.Set(r.oldStart, r)
	}
}

func (s *editSet) count() int {
	return s.regions.Len()
}

// damaged reports whether the old range [start, end) intersects a replaced region. A zero-width region, an
// insertion, intersects the ranges strictly containing its position.
func (s *editSet) damaged(start, end int) bool {
	found := false
	s.regions.Descend(end-1, func(_ int, r region) bool {
		found = start < r.oldEnd && end > r.oldStart
		return false
	})
	return found
}

// toNew maps an old offset to the new text. Offsets within a replaced region have no counterpart.
func (s *editSet) toNew(old int) (int, bool) {
	pos, ok := old, true
	s.regions.Descend(old, func(_ int, r region) bool {
		switch {
		case old >= r.oldEnd:
			pos = old + (r.newEnd - r.oldEnd)
		case old == r.oldStart:
			pos = r.newStart
		default:
			ok = false
		}
		return false
	})
	return pos, ok
}

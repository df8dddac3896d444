package parser

import (
	"github.com/tidwall/btree"
)

// rangeSet is a set of disjoint byte ranges [start, end]. Adding a range merges it with the ranges it
// overlaps or touches.
//
// A zero value is ready to use.
type rangeSet struct {
	// Keys are the ends of the ranges, values their starts.
	tree    btree.Map[int, int]
	pending []int
}

func (s *rangeSet) add(start, end int) {
	s.pending = s.pending[:0]
	iter := s.tree.Iter()
	for ok := iter.Seek(start); ok && iter.Value() <= end; ok = iter.Next() {
		start = min(start, iter.Value())
		end = max(end, iter.Key())
		s.pending = append(s.pending, iter.Key())
	}
	for _, k := range s.pending {
		s.tree.Delete(k)
	}
	s.tree.Set(end, start)
}

// touches reports whether [start, end] shares a point with a range of the set.
func (s *rangeSet) touches(start, end int) bool {
	iter := s.tree.Iter()
	if !iter.Seek(start) {
		return false
	}
	return iter.Value() <= end
}

func (s *rangeSet) len() int {
	return s.tree.Len()
}

package parser

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/nihei9/reparse/tree"
)

func TestEditSet(t *testing.T) {
	tests := []struct {
		caption string
		oldLen  int
		edits   []tree.Edit
		regions []region
	}{
		{
			caption: "a replacement",
			oldLen:  3,
			edits: []tree.Edit{
				{StartByte: 2, OldEndByte: 3, NewEndByte: 5},
			},
			regions: []region{
				{oldStart: 2, oldEnd: 3, newLen: 3, newStart: 2, newEnd: 5},
			},
		},
		{
			caption: "disjoint edits in ascending order",
			oldLen:  10,
			edits: []tree.Edit{
				{StartByte: 1, OldEndByte: 2, NewEndByte: 4},
				{StartByte: 8, OldEndByte: 9, NewEndByte: 8},
			},
			regions: []region{
				{oldStart: 1, oldEnd: 2, newLen: 3, newStart: 1, newEnd: 4},
				{oldStart: 6, oldEnd: 7, newLen: 0, newStart: 8, newEnd: 8},
			},
		},
		{
			caption: "disjoint edits in descending order",
			oldLen:  10,
			edits: []tree.Edit{
				{StartByte: 6, OldEndByte: 7, NewEndByte: 6},
				{StartByte: 1, OldEndByte: 2, NewEndByte: 4},
			},
			regions: []region{
				{oldStart: 1, oldEnd: 2, newLen: 3, newStart: 1, newEnd: 4},
				{oldStart: 6, oldEnd: 7, newLen: 0, newStart: 8, newEnd: 8},
			},
		},
		{
			caption: "an edit within the text of an earlier one",
			oldLen:  10,
			edits: []tree.Edit{
				{StartByte: 2, OldEndByte: 4, NewEndByte: 8},
				{StartByte: 3, OldEndByte: 5, NewEndByte: 4},
			},
			regions: []region{
				{oldStart: 2, oldEnd: 4, newLen: 5, newStart: 2, newEnd: 7},
			},
		},
		{
			caption: "an edit spanning two earlier ones",
			oldLen:  10,
			edits: []tree.Edit{
				{StartByte: 1, OldEndByte: 2, NewEndByte: 2},
				{StartByte: 6, OldEndByte: 7, NewEndByte: 7},
				{StartByte: 0, OldEndByte: 8, NewEndByte: 1},
			},
			regions: []region{
				{oldStart: 0, oldEnd: 8, newLen: 1, newStart: 0, newEnd: 1},
			},
		},
		{
			caption: "an insertion touching an earlier edit",
			oldLen:  5,
			edits: []tree.Edit{
				{StartByte: 1, OldEndByte: 2, NewEndByte: 3},
				{StartByte: 3, OldEndByte: 3, NewEndByte: 4},
			},
			regions: []region{
				{oldStart: 1, oldEnd: 2, newLen: 3, newStart: 1, newEnd: 4},
			},
		},
	}
	for i, tt := range tests {
		t.Run(fmt.Sprintf("#%v %v", i, tt.caption), func(t *testing.T) {
			newLen := tt.oldLen
			for _, e := range tt.edits {
				newLen += e.NewEndByte - e.OldEndByte
			}
			s, err := newEditSet(tt.oldLen, tt.edits, newLen)
			require.NoError(t, err)

			var regions []region
			s.regions.Scan(func(_ int, r region) bool {
				regions = append(regions, r)
				return true
			})
			if diff := cmp.Diff(tt.regions, regions, cmp.AllowUnexported(region{})); diff != "" {
				t.Fatalf("unexpected regions (-want +got):\n%v", diff)
			}
		})
	}
}

func TestEditSet_DamagedAndToNew(t *testing.T) {
	// "aaXbb" becomes "aaYYbb" and then "aaYYb".
	s, err := newEditSet(5, []tree.Edit{
		{StartByte: 2, OldEndByte: 3, NewEndByte: 4},
		{StartByte: 5, OldEndByte: 6, NewEndByte: 5},
	}, 5)
	require.NoError(t, err)

	damaged := []struct {
		start int
		end   int
		ok    bool
	}{
		{start: 0, end: 2, ok: false},
		{start: 0, end: 3, ok: true},
		{start: 2, end: 3, ok: true},
		{start: 3, end: 4, ok: false},
		{start: 3, end: 5, ok: true},
		{start: 4, end: 5, ok: true},
	}
	for _, tt := range damaged {
		if ok := s.damaged(tt.start, tt.end); ok != tt.ok {
			t.Errorf("damaged(%v, %v): want: %v, got: %v", tt.start, tt.end, tt.ok, ok)
		}
	}

	toNew := []struct {
		old int
		new int
		ok  bool
	}{
		{old: 0, new: 0, ok: true},
		{old: 2, new: 2, ok: true},
		{old: 3, new: 4, ok: true},
		{old: 4, new: 5, ok: true},
		{old: 5, new: 5, ok: true},
	}
	for _, tt := range toNew {
		n, ok := s.toNew(tt.old)
		if ok != tt.ok || (ok && n != tt.new) {
			t.Errorf("toNew(%v): want: %v %v, got: %v %v", tt.old, tt.new, tt.ok, n, ok)
		}
	}
}

func TestEditSet_Insertion(t *testing.T) {
	s, err := newEditSet(4, []tree.Edit{
		{StartByte: 2, OldEndByte: 2, NewEndByte: 5},
	}, 7)
	require.NoError(t, err)

	if !s.damaged(1, 3) {
		t.Error("a range containing the insertion point must be damaged")
	}
	if s.damaged(0, 2) || s.damaged(2, 4) {
		t.Error("ranges ending or beginning at the insertion point must not be damaged")
	}
	if n, ok := s.toNew(2); !ok || n != 5 {
		t.Errorf("the insertion point must map past the inserted text: %v %v", n, ok)
	}
}

func TestRangeSet(t *testing.T) {
	var s rangeSet
	s.add(10, 12)
	s.add(20, 20)
	s.add(0, 2)
	if s.len() != 3 {
		t.Fatalf("unexpected range count: %v", s.len())
	}
	s.add(2, 5)
	s.add(11, 20)
	if s.len() != 2 {
		t.Fatalf("unexpected range count: %v", s.len())
	}

	tests := []struct {
		start int
		end   int
		ok    bool
	}{
		{start: 0, end: 1, ok: true},
		{start: 5, end: 6, ok: true},
		{start: 6, end: 9, ok: false},
		{start: 6, end: 10, ok: true},
		{start: 21, end: 30, ok: false},
		{start: 20, end: 20, ok: true},
		{start: 15, end: 15, ok: true},
	}
	for _, tt := range tests {
		if ok := s.touches(tt.start, tt.end); ok != tt.ok {
			t.Errorf("touches(%v, %v): want: %v, got: %v", tt.start, tt.end, tt.ok, ok)
		}
	}
}

package tree

import (
	"bytes"

	"github.com/rivo/uniseg"
)

// Point is a position in text. Row and Column are counted from 0; Column counts grapheme clusters.
type Point struct {
	Row    int
	Column int
}

func PointAt(src []byte, offset int) Point {
	if offset > len(src) {
		offset = len(src)
	}
	head := src[:offset]
	row := bytes.Count(head, []byte{'\n'})
	lineStart := bytes.LastIndexByte(head, '\n') + 1
	return Point{
		Row:    row,
		Column: uniseg.GraphemeClusterCount(string(head[lineStart:])),
	}
}

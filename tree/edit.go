package tree

import (
	"fmt"
)

// Edit replaces [StartByte, OldEndByte) of a text with new text ending at NewEndByte. In a sequence of
// edits, each edit is expressed in the text the preceding edits produced.
type Edit struct {
	StartByte  int
	OldEndByte int
	NewEndByte int
}

// ApplyEdit replaces [start, oldEnd) of src with text and returns the new text with the edit describing
// the replacement. src is not modified.
func ApplyEdit(src []byte, start, oldEnd int, text []byte) ([]byte, Edit, error) {
	if start < 0 || oldEnd < start || oldEnd > len(src) {
		return nil, Edit{}, fmt.Errorf("invalid range [%v, %v) for a text of %v bytes", start, oldEnd, len(src))
	}
	dst := make([]byte, 0, len(src)-(oldEnd-start)+len(text))
	dst = append(dst, src[:start]...)
	dst = append(dst, text...)
	dst = append(dst, src[oldEnd:]...)
	return dst, Edit{
		StartByte:  start,
		OldEndByte: oldEnd,
		NewEndByte: start + len(text),
	}, nil
}

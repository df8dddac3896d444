package lexer

import (
	"sync"
	"unicode/utf8"
)

// ExternalScanner produces terminals the DFA can't express, such as indentation. Scan must be
// deterministic: the same text, position and valid set always give the same result. It returns the
// terminal it recognized, or false to let the DFA lex the position instead.
//
// Everything the scanner reads through the cursor is recorded, so a token depending on text beyond its
// end is invalidated when that text changes.
type ExternalScanner interface {
	Scan(c *Cursor, valid []bool) (int, bool)
}

// ScannerFunc adapts a function to ExternalScanner.
type ScannerFunc func(c *Cursor, valid []bool) (int, bool)

func (f ScannerFunc) Scan(c *Cursor, valid []bool) (int, bool) {
	return f(c, valid)
}

var (
	scannersMu sync.RWMutex
	scanners   = map[string]ExternalScanner{}
)

// RegisterScanner makes a scanner available to grammar tables naming it. Registering a name twice
// replaces the previous scanner.
func RegisterScanner(name string, s ExternalScanner) {
	scannersMu.Lock()
	defer scannersMu.Unlock()
	scanners[name] = s
}

func LookupScanner(name string) (ExternalScanner, bool) {
	scannersMu.RLock()
	defer scannersMu.RUnlock()
	s, ok := scanners[name]
	return s, ok
}

// Cursor walks the source text for an external scanner.
type Cursor struct {
	src      []byte
	pos      int
	start    int
	end      int
	furthest int
	advanced bool
}

func newCursor(src []byte, offset int) *Cursor {
	return &Cursor{
		src:      src,
		pos:      offset,
		start:    offset,
		end:      -1,
		furthest: offset,
	}
}

func (c *Cursor) touch(end int) {
	if end > c.furthest {
		c.furthest = end
	}
}

// Peek returns the rune at the cursor without consuming it. It returns utf8.RuneError for an invalid
// encoding and 0 at the end of the text.
func (c *Cursor) Peek() rune {
	if c.pos >= len(c.src) {
		c.touch(len(c.src) + 1)
		return 0
	}
	r, size := utf8.DecodeRune(c.src[c.pos:])
	c.touch(c.pos + size)
	return r
}

func (c *Cursor) step() {
	if c.pos >= len(c.src) {
		c.touch(len(c.src) + 1)
		return
	}
	_, size := utf8.DecodeRune(c.src[c.pos:])
	c.pos += size
	c.touch(c.pos)
}

// Advance consumes the rune at the cursor as part of the token.
func (c *Cursor) Advance() {
	c.step()
	c.advanced = true
}

// Skip consumes the rune at the cursor as padding. Skipping after Advance consumes the rune as part of
// the token.
func (c *Cursor) Skip() {
	c.step()
	if !c.advanced {
		c.start = c.pos
	}
}

// MarkEnd fixes the end of the token at the cursor. Without it the token ends where the cursor stops.
func (c *Cursor) MarkEnd() {
	c.end = c.pos
}

func (c *Cursor) Offset() int {
	return c.pos
}

func (c *Cursor) AtEOF() bool {
	if c.pos >= len(c.src) {
		c.touch(len(c.src) + 1)
		return true
	}
	return false
}

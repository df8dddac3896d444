package lexer

import (
	"fmt"
	"unicode/utf8"

	"github.com/tliron/commonlog"

	spec "github.com/nihei9/reparse/spec/grammar"
)

var log = commonlog.GetLogger("reparse.lexer")

// Token is a lexeme found at some offset. Offsets are byte positions in the source text.
//
// A token covers [PaddingStart, End): the skipped text before it and its own text [Start, End). The lexer
// read the text up to LookaheadEnd to decide the token, so any change within [PaddingStart, LookaheadEnd)
// can change the token. LookaheadEnd is len(src)+1 when the lexer hit the end of the text.
type Token struct {
	// Terminal is the terminal number of the token. It is 0 when Invalid is true.
	Terminal int

	PaddingStart int
	Start        int
	End          int
	LookaheadEnd int

	// EOF is true when the token is the end of the input.
	EOF bool

	// Invalid is true when the text [Start, End) matches no terminal. Consecutive unmatched characters form
	// one invalid token.
	Invalid bool

	// External is true when an external scanner produced the token.
	External bool
}

// Lexer turns source text into tokens on the parser's demand. It keeps no position: every call of Next
// starts at the given offset, which is what lets the parser resume lexing anywhere in an edited text.
type Lexer struct {
	spec           *lexSpec
	kindToTerminal []int
	skip           []bool
	stateModes     []int
	eof            int
	externals      []int
	isExternal     []bool
	scanner        ExternalScanner
}

type LexerOption func(l *Lexer) error

// WithScanner sets the external scanner instead of the one registered under the name the tables carry.
func WithScanner(s ExternalScanner) LexerOption {
	return func(l *Lexer) error {
		l.scanner = s
		return nil
	}
}

// NewLexer validates the lexical tables and makes a lexer reading them. terminalCount is the number of
// terminals the syntactic tables know; eof is the number of the end-of-input terminal.
func NewLexer(s *spec.LexicalSpec, terminalCount int, eof int, opts ...LexerOption) (*Lexer, error) {
	if s == nil {
		return nil, fmt.Errorf("lexical section is missing")
	}
	ls, err := newLexSpec(s.Maleeni)
	if err != nil {
		return nil, err
	}
	if len(s.KindToTerminal) != ls.KindCount() {
		return nil, fmt.Errorf("kind-to-terminal map has %v entries; want %v", len(s.KindToTerminal), ls.KindCount())
	}
	for kind, term := range s.KindToTerminal {
		if kind == 0 {
			continue
		}
		if term <= 0 || term >= terminalCount {
			return nil, fmt.Errorf("kind %v maps to an invalid terminal: %v", kind, term)
		}
	}
	if len(s.Skip) != ls.KindCount() {
		return nil, fmt.Errorf("skip table has %v entries; want %v", len(s.Skip), ls.KindCount())
	}
	skip := make([]bool, ls.KindCount())
	for kind, flag := range s.Skip {
		skip[kind] = flag != 0
	}
	for state, mode := range s.StateModes {
		if mode <= 0 || mode >= ls.ModeCount() {
			return nil, fmt.Errorf("state %v has an invalid lex mode: %v", state, mode)
		}
	}

	l := &Lexer{
		spec:           ls,
		kindToTerminal: s.KindToTerminal,
		skip:           skip,
		stateModes:     s.StateModes,
		eof:            eof,
		isExternal:     make([]bool, terminalCount),
	}
	if ext := s.External; ext != nil {
		for _, term := range ext.Terminals {
			if term <= 0 || term >= terminalCount {
				return nil, fmt.Errorf("invalid external terminal: %v", term)
			}
			l.isExternal[term] = true
		}
		l.externals = ext.Terminals
		if sc, ok := LookupScanner(ext.Scanner); ok {
			l.scanner = sc
		}
	}
	for _, opt := range opts {
		if err := opt(l); err != nil {
			return nil, err
		}
	}
	if len(l.externals) > 0 && l.scanner == nil {
		return nil, fmt.Errorf("external scanner is not registered: %v", s.External.Scanner)
	}

	log.Debugf("lexer: %v modes, %v kinds, %v external terminals", ls.ModeCount()-1, ls.KindCount()-1, len(l.externals))

	return l, nil
}

// Mode returns the lex mode a parser state lexes in.
func (l *Lexer) Mode(state int) int {
	return l.stateModes[state]
}

func (l *Lexer) ModeName(mode int) string {
	return l.spec.ModeName(mode)
}

// IsExternal reports whether a terminal comes from the external scanner.
func (l *Lexer) IsExternal(term int) bool {
	return term >= 0 && term < len(l.isExternal) && l.isExternal[term]
}

// Next finds the token starting at offset. Text matching a skip terminal becomes padding of the following
// token. valid tells the external scanner which terminals the parser accepts; passing nil disables the
// external scanner.
func (l *Lexer) Next(src []byte, offset int, mode int, valid []bool) Token {
	furthest := offset

	if l.scanner != nil && valid != nil && l.anyExternal(valid) {
		c := newCursor(src, offset)
		term, ok := l.scanner.Scan(c, valid)
		if c.furthest > furthest {
			furthest = c.furthest
		}
		if ok && l.IsExternal(term) && valid[term] {
			end := c.pos
			if c.end >= 0 {
				end = c.end
			}
			if end < c.start {
				end = c.start
			}
			return Token{
				Terminal:     term,
				PaddingStart: offset,
				Start:        c.start,
				End:          end,
				LookaheadEnd: furthest,
				External:     true,
			}
		}
	}

	pos := offset
	for {
		if pos >= len(src) {
			return Token{
				Terminal:     l.eof,
				PaddingStart: offset,
				Start:        len(src),
				End:          len(src),
				LookaheadEnd: len(src) + 1,
				EOF:          true,
			}
		}

		kind, end, examined := l.longestMatch(src, pos, mode)
		if examined > furthest {
			furthest = examined
		}
		if kind == 0 {
			start := pos
			pos += runeLen(src, pos)
			for pos < len(src) {
				k, _, ex := l.longestMatch(src, pos, mode)
				if ex > furthest {
					furthest = ex
				}
				if k != 0 {
					break
				}
				pos += runeLen(src, pos)
			}
			if pos > furthest {
				furthest = pos
			}
			return Token{
				PaddingStart: offset,
				Start:        start,
				End:          pos,
				LookaheadEnd: furthest,
				Invalid:      true,
			}
		}
		if l.skip[kind] {
			pos = end
			continue
		}
		return Token{
			Terminal:     l.kindToTerminal[kind],
			PaddingStart: offset,
			Start:        pos,
			End:          end,
			LookaheadEnd: furthest,
		}
	}
}

func (l *Lexer) anyExternal(valid []bool) bool {
	for _, term := range l.externals {
		if term < len(valid) && valid[term] {
			return true
		}
	}
	return false
}

// longestMatch runs the DFA from pos and returns the kind of the longest non-empty match, its end, and the
// end of the text examined. The kind is 0 when nothing matches.
func (l *Lexer) longestMatch(src []byte, pos int, mode int) (int, int, int) {
	state := l.spec.InitialState(mode)
	kind := 0
	end := pos
	examined := pos
	for i := pos; !l.spec.Dead(mode, state); i++ {
		if i >= len(src) {
			examined = len(src) + 1
			break
		}
		examined = i + 1
		next, ok := l.spec.NextState(mode, state, int(src[i]))
		if !ok {
			break
		}
		state = next
		if modeKind, ok := l.spec.Accept(mode, state); ok {
			kind = l.spec.Kind(mode, modeKind)
			end = i + 1
		}
	}
	return kind, end, examined
}

func runeLen(src []byte, pos int) int {
	_, size := utf8.DecodeRune(src[pos:])
	if size < 1 {
		return 1
	}
	return size
}

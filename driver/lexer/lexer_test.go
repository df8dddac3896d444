package lexer

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/nihei9/reparse/grammar"
	spec "github.com/nihei9/reparse/spec/grammar"
)

func compileGrammar(t *testing.T, b *grammar.Builder) *spec.CompiledGrammar {
	t.Helper()

	gram, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	cg, _, err := grammar.Compile(gram)
	if err != nil {
		t.Fatal(err)
	}
	return cg
}

func terminalNum(t *testing.T, cg *spec.CompiledGrammar, name string) int {
	t.Helper()

	for num, n := range cg.Syntactic.Terminals {
		if n == name {
			return num
		}
	}
	t.Fatalf("terminal was not found: %v", name)
	return 0
}

func newTestLexer(t *testing.T, cg *spec.CompiledGrammar, opts ...LexerOption) *Lexer {
	t.Helper()

	l, err := NewLexer(cg.Lexical, cg.Syntactic.TerminalCount, cg.Syntactic.EOFSymbol, opts...)
	if err != nil {
		t.Fatal(err)
	}
	return l
}

func itemsGrammar() *grammar.Builder {
	b := grammar.NewBuilder("items").
		Terminal("id", "[a-z]+").
		Terminal("num", "[0-9]+").
		Literal("+").
		Terminal("ws", "[ \t\n]+").
		Skip("ws")
	b.Rule("items", "items", "item")
	b.Rule("items", "item")
	b.Rule("item", "id")
	b.Rule("item", "num")
	b.Rule("item", "+")
	return b
}

func TestLexer_Next(t *testing.T) {
	cg := compileGrammar(t, itemsGrammar())
	l := newTestLexer(t, cg)
	mode := l.Mode(cg.Syntactic.InitialState)
	id := terminalNum(t, cg, "id")
	num := terminalNum(t, cg, "num")
	plus := terminalNum(t, cg, "+")
	eof := cg.Syntactic.EOFSymbol

	tests := []struct {
		caption string
		src     string
		tokens  []Token
	}{
		{
			caption: "padding belongs to the following token",
			src:     "ab 12+",
			tokens: []Token{
				{Terminal: id, PaddingStart: 0, Start: 0, End: 2, LookaheadEnd: 3},
				{Terminal: num, PaddingStart: 2, Start: 3, End: 5, LookaheadEnd: 6},
				{Terminal: plus, PaddingStart: 5, Start: 5, End: 6, LookaheadEnd: 6},
				{Terminal: eof, PaddingStart: 6, Start: 6, End: 6, LookaheadEnd: 7, EOF: true},
			},
		},
		{
			caption: "trailing padding belongs to the end of input",
			src:     "ab \n",
			tokens: []Token{
				{Terminal: id, PaddingStart: 0, Start: 0, End: 2, LookaheadEnd: 3},
				{Terminal: eof, PaddingStart: 2, Start: 4, End: 4, LookaheadEnd: 5, EOF: true},
			},
		},
		{
			caption: "the empty text contains only the end of input",
			src:     "",
			tokens: []Token{
				{Terminal: eof, PaddingStart: 0, Start: 0, End: 0, LookaheadEnd: 1, EOF: true},
			},
		},
		{
			caption: "consecutive unmatched characters form one invalid token",
			src:     "ab$$%12",
			tokens: []Token{
				{Terminal: id, PaddingStart: 0, Start: 0, End: 2, LookaheadEnd: 3},
				{PaddingStart: 2, Start: 2, End: 5, LookaheadEnd: 8, Invalid: true},
				{Terminal: num, PaddingStart: 5, Start: 5, End: 7, LookaheadEnd: 8},
				{Terminal: eof, PaddingStart: 7, Start: 7, End: 7, LookaheadEnd: 8, EOF: true},
			},
		},
		{
			caption: "an invalid token stops at padding",
			src:     "$ a",
			tokens: []Token{
				{PaddingStart: 0, Start: 0, End: 1, LookaheadEnd: 3, Invalid: true},
				{Terminal: id, PaddingStart: 1, Start: 2, End: 3, LookaheadEnd: 4},
				{Terminal: eof, PaddingStart: 3, Start: 3, End: 3, LookaheadEnd: 4, EOF: true},
			},
		},
		{
			caption: "an invalid token consists of whole code points",
			src:     "aé",
			tokens: []Token{
				{Terminal: id, PaddingStart: 0, Start: 0, End: 1, LookaheadEnd: 2},
				{PaddingStart: 1, Start: 1, End: 3, LookaheadEnd: 3, Invalid: true},
				{Terminal: eof, PaddingStart: 3, Start: 3, End: 3, LookaheadEnd: 4, EOF: true},
			},
		},
	}
	for i, tt := range tests {
		t.Run(fmt.Sprintf("#%v %v", i, tt.caption), func(t *testing.T) {
			src := []byte(tt.src)
			var actual []Token
			offset := 0
			for {
				tok := l.Next(src, offset, mode, nil)
				actual = append(actual, tok)
				if tok.EOF {
					break
				}
				if tok.End <= offset {
					t.Fatalf("the lexer didn't advance: %+v", tok)
				}
				offset = tok.End
			}
			if diff := cmp.Diff(tt.tokens, actual); diff != "" {
				t.Fatalf("unexpected tokens (-want +got):\n%v", diff)
			}
		})
	}
}

func TestLexer_Next_IsPure(t *testing.T) {
	cg := compileGrammar(t, itemsGrammar())
	l := newTestLexer(t, cg)
	mode := l.Mode(cg.Syntactic.InitialState)
	src := []byte("foo 12 + bar")

	first := l.Next(src, 4, mode, nil)
	l.Next(src, 0, mode, nil)
	second := l.Next(src, 4, mode, nil)
	require.Equal(t, first, second)
	require.Equal(t, Token{
		Terminal:     terminalNum(t, cg, "num"),
		PaddingStart: 4,
		Start:        4,
		End:          6,
		LookaheadEnd: 7,
	}, second)
}

func TestLexer_Next_LexModes(t *testing.T) {
	b := grammar.NewBuilder("str").
		Terminal("quote", `"`, "default", "str").
		Terminal("chars", `[^"]+`, "str").
		Terminal("id", "[a-z]+")
	b.Rule("s", "id")
	b.Rule("s", "quote", "chars", "quote")
	cg := compileGrammar(t, b)
	l := newTestLexer(t, cg)

	src := []byte(`"ab"`)
	initMode := l.Mode(cg.Syntactic.InitialState)
	require.Equal(t, "default", l.ModeName(initMode))

	tok := l.Next(src, 0, initMode, nil)
	require.Equal(t, terminalNum(t, cg, "quote"), tok.Terminal)

	var strMode int
	for mode := 1; mode < l.spec.ModeCount(); mode++ {
		if l.ModeName(mode) == "str" {
			strMode = mode
		}
	}
	require.NotZero(t, strMode)

	require.Equal(t, Token{
		Terminal:     terminalNum(t, cg, "chars"),
		PaddingStart: 1,
		Start:        1,
		End:          3,
		LookaheadEnd: 4,
	}, l.Next(src, 1, strMode, nil))
	require.Equal(t, Token{
		Terminal:     terminalNum(t, cg, "id"),
		PaddingStart: 1,
		Start:        1,
		End:          3,
		LookaheadEnd: 4,
	}, l.Next(src, 1, initMode, nil))
}

func indentGrammar(scanner string) *grammar.Builder {
	b := grammar.NewBuilder("indent").
		Terminal("id", "[a-z]+").
		Terminal("ws", " +").
		Skip("ws").
		External(scanner, "indent", "dedent")
	b.Rule("block", "indent", "id", "dedent")
	return b
}

// arrowScanner recognizes '>' as an indent. It skips leading spaces and peeks one rune past the token.
func arrowScanner(indent int) ExternalScanner {
	return ScannerFunc(func(c *Cursor, valid []bool) (int, bool) {
		if !valid[indent] {
			return 0, false
		}
		for c.Peek() == ' ' {
			c.Skip()
		}
		if c.Peek() != '>' {
			return 0, false
		}
		c.Advance()
		c.MarkEnd()
		c.Peek()
		return indent, true
	})
}

func TestLexer_Next_ExternalScanner(t *testing.T) {
	cg := compileGrammar(t, indentGrammar("arrow"))
	indent := terminalNum(t, cg, "indent")
	l := newTestLexer(t, cg, WithScanner(arrowScanner(indent)))
	mode := l.Mode(cg.Syntactic.InitialState)
	require.True(t, l.IsExternal(indent))
	require.False(t, l.IsExternal(terminalNum(t, cg, "id")))

	valid := make([]bool, cg.Syntactic.TerminalCount)
	valid[indent] = true

	tests := []struct {
		caption string
		src     string
		valid   []bool
		token   Token
	}{
		{
			caption: "the scanner produces a token",
			src:     ">ab",
			valid:   valid,
			token:   Token{Terminal: indent, PaddingStart: 0, Start: 0, End: 1, LookaheadEnd: 2, External: true},
		},
		{
			caption: "skipped runes become padding",
			src:     "  >ab",
			valid:   valid,
			token:   Token{Terminal: indent, PaddingStart: 0, Start: 2, End: 3, LookaheadEnd: 4, External: true},
		},
		{
			caption: "the DFA lexes what the scanner declines and keeps what the scanner read",
			src:     "ab",
			valid:   valid,
			token:   Token{Terminal: terminalNum(t, cg, "id"), PaddingStart: 0, Start: 0, End: 2, LookaheadEnd: 3},
		},
		{
			caption: "the scanner doesn't run without a valid set",
			src:     ">ab",
			valid:   nil,
			token:   Token{PaddingStart: 0, Start: 0, End: 1, LookaheadEnd: 4, Invalid: true},
		},
	}
	for i, tt := range tests {
		t.Run(fmt.Sprintf("#%v %v", i, tt.caption), func(t *testing.T) {
			actual := l.Next([]byte(tt.src), 0, mode, tt.valid)
			if diff := cmp.Diff(tt.token, actual); diff != "" {
				t.Fatalf("unexpected token (-want +got):\n%v", diff)
			}
		})
	}
}

func TestNewLexer_ScannerRegistry(t *testing.T) {
	cg := compileGrammar(t, indentGrammar("lexer-test-registered"))
	_, err := NewLexer(cg.Lexical, cg.Syntactic.TerminalCount, cg.Syntactic.EOFSymbol)
	require.Error(t, err)

	RegisterScanner("lexer-test-registered", arrowScanner(terminalNum(t, cg, "indent")))
	s, ok := LookupScanner("lexer-test-registered")
	require.True(t, ok)
	require.NotNil(t, s)

	l := newTestLexer(t, cg)
	valid := make([]bool, cg.Syntactic.TerminalCount)
	valid[terminalNum(t, cg, "indent")] = true
	tok := l.Next([]byte(">a"), 0, l.Mode(cg.Syntactic.InitialState), valid)
	require.True(t, tok.External)
}

func TestNewLexer_MalformedTables(t *testing.T) {
	tests := []struct {
		caption string
		corrupt func(lex *spec.LexicalSpec)
	}{
		{
			caption: "the lexical section is missing the DFA",
			corrupt: func(lex *spec.LexicalSpec) {
				lex.Maleeni = nil
			},
		},
		{
			caption: "the kind-to-terminal map is truncated",
			corrupt: func(lex *spec.LexicalSpec) {
				lex.KindToTerminal = lex.KindToTerminal[:1]
			},
		},
		{
			caption: "a kind maps to an unknown terminal",
			corrupt: func(lex *spec.LexicalSpec) {
				m := make([]int, len(lex.KindToTerminal))
				copy(m, lex.KindToTerminal)
				m[len(m)-1] = 1000
				lex.KindToTerminal = m
			},
		},
		{
			caption: "a state has the nil lex mode",
			corrupt: func(lex *spec.LexicalSpec) {
				modes := make([]int, len(lex.StateModes))
				lex.StateModes = modes
			},
		},
		{
			caption: "the skip table is shorter than the kind list",
			corrupt: func(lex *spec.LexicalSpec) {
				lex.Skip = []int{1000}
			},
		},
	}
	for i, tt := range tests {
		t.Run(fmt.Sprintf("#%v %v", i, tt.caption), func(t *testing.T) {
			cg := compileGrammar(t, itemsGrammar())
			lex := *cg.Lexical
			tt.corrupt(&lex)
			_, err := NewLexer(&lex, cg.Syntactic.TerminalCount, cg.Syntactic.EOFSymbol)
			require.Error(t, err)
		})
	}
}

package parser

import (
	"github.com/nihei9/reparse/driver/lexer"
	"github.com/nihei9/reparse/tree"
)

// lookahead is the token the parser decides its next action on. It comes either from the lexer or from a
// leaf of the old tree.
type lookahead struct {
	sym Symbol

	// start is where the padding of the token begins. end is where its text ends, and depEnd is one past the
	// furthest byte read to find it.
	start  int
	end    int
	depEnd int

	// tokStart is where the text of a lexed token begins.
	tokStart int

	lexState int
	eof      bool
	invalid  bool

	// leaf is set when the token is a reused leaf.
	leaf *tree.Subtree
}

// tokenStream lexes the source text on the parser's demand.
type tokenStream struct {
	gram *Grammar
	lex  *lexer.Lexer
	src  []byte

	// valid is scratch space for the terminals a state accepts.
	valid []bool

	// noExternalAt is an offset the external scanner must not be offered again, because a zero-width
	// external token found there was deleted. It is -1 when there is none.
	noExternalAt int

	lexed int
}

func newTokenStream(g *Grammar, src []byte) *tokenStream {
	return &tokenStream{
		gram:         g,
		lex:          g.Lexer(),
		src:          src,
		valid:        make([]bool, g.TerminalCount()),
		noExternalAt: -1,
	}
}

// next lexes the token at offset in the lex mode of a state.
func (s *tokenStream) next(offset int, state int) *lookahead {
	tok := s.lexAt(offset, state)
	s.lexed++
	return tokenToLookahead(tok, state, s.gram)
}

func (s *tokenStream) lexAt(offset int, state int) lexer.Token {
	var valid []bool
	if s.gram.HasExternalScanner() && offset != s.noExternalAt {
		clear(s.valid)
		for _, term := range s.gram.ExpectedTerminals(state) {
			s.valid[term] = true
		}
		valid = s.valid
	}
	return s.lex.Next(s.src, offset, s.gram.LexMode(state), valid)
}

func tokenToLookahead(tok lexer.Token, state int, g *Grammar) *lookahead {
	la := &lookahead{
		sym:      Symbol(tok.Terminal),
		start:    tok.PaddingStart,
		tokStart: tok.Start,
		end:      tok.End,
		depEnd:   tok.LookaheadEnd,
		lexState: state,
		eof:      tok.EOF,
		invalid:  tok.Invalid,
	}
	if tok.EOF {
		la.sym = g.EOF()
	}
	return la
}

// reusedLookahead turns a leaf of the old tree starting at offset into a lookahead.
func reusedLookahead(leaf *tree.Subtree, offset int) *lookahead {
	return &lookahead{
		sym:      leaf.Symbol(),
		start:    offset,
		tokStart: offset + leaf.Padding(),
		end:      offset + leaf.TotalSize(),
		depEnd:   offset + leaf.TotalSize() + leaf.Lookahead(),
		lexState: leaf.LexState(),
		leaf:     leaf,
	}
}

// toLeaf makes the leaf the lookahead becomes when the parser shifts it in preState.
func (la *lookahead) toLeaf(alloc *tree.Allocator, preState int, flags tree.Flags) *tree.Subtree {
	if la.leaf != nil && flags == 0 {
		return la.leaf
	}
	return alloc.NewLeaf(tree.LeafParams{
		Symbol:    la.sym,
		Padding:   la.tokStart - la.start,
		Size:      la.end - la.tokStart,
		Lookahead: la.depEnd - la.end,
		Flags:     flags,
		PreState:  preState,
		LexState:  la.lexState,
	})
}

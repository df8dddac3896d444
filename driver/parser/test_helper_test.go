package parser

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/nihei9/reparse/grammar"
	spec "github.com/nihei9/reparse/spec/grammar"
	"github.com/nihei9/reparse/tree"
)

func compileGrammar(t *testing.T, b *grammar.Builder, opts ...grammar.CompileOption) *spec.CompiledGrammar {
	t.Helper()

	gram, err := b.Build()
	require.NoError(t, err)
	cg, _, err := grammar.Compile(gram, opts...)
	require.NoError(t, err)
	return cg
}

func newTestGrammar(t *testing.T, b *grammar.Builder, opts ...GrammarOption) *Grammar {
	t.Helper()

	g, err := NewGrammar(compileGrammar(t, b), opts...)
	require.NoError(t, err)
	return g
}

// sumGrammar is Sum := Sum '+' Num | Num.
func sumGrammar() *grammar.Builder {
	b := grammar.NewBuilder("sum").
		Terminal("Num", "[0-9]+").
		Literal("+").
		Terminal("ws", "[ \t\n]+").
		Skip("ws")
	b.Rule("Sum", "Sum", "+", "Num")
	b.Rule("Sum", "Num")
	return b
}

// stmtGrammar is a small statement language with nesting, so random edits make all kinds of errors.
func stmtGrammar() *grammar.Builder {
	b := grammar.NewBuilder("stmt").
		Literal("+").
		Literal("*").
		Literal("(").
		Literal(")").
		Literal(";").
		Literal("=").
		Terminal("num", "[0-9]+").
		Terminal("id", "[a-z]+").
		Terminal("ws", "[ \n]+").
		Skip("ws").
		Left("+").
		Left("*")
	b.Rule("stmts", "stmts", "stmt")
	b.Rule("stmts", "stmt")
	b.Rule("stmt", "id", "=", "expr", ";")
	b.Rule("stmt", "expr", ";")
	b.Rule("expr", "expr", "+", "expr")
	b.Rule("expr", "expr", "*", "expr")
	b.Rule("expr", "(", "expr", ")")
	b.Rule("expr", "num")
	b.Rule("expr", "id")
	return b
}

func parseString(t *testing.T, p *Parser, src string) *tree.Tree {
	t.Helper()

	tr, err := p.Parse(context.Background(), []byte(src))
	require.NoError(t, err)
	return tr
}

// shape is the part of a node two parses of the same text must agree on.
type shape struct {
	Type     string
	Start    int
	End      int
	Error    bool
	Missing  bool
	Extra    bool
	HasError bool
	Children []*shape
}

func genShape(n tree.Node) *shape {
	s := &shape{
		Type:     n.Type(),
		Start:    n.StartByte(),
		End:      n.EndByte(),
		Error:    n.IsError(),
		Missing:  n.IsMissing(),
		Extra:    n.IsExtra(),
		HasError: n.HasError(),
	}
	for c := range n.AllChildren() {
		s.Children = append(s.Children, genShape(c))
	}
	return s
}

func (s *shape) writeTo(b *strings.Builder) {
	fmt.Fprintf(b, "(%v %v %v %v %v %v %v", s.Type, s.Start, s.End, s.Error, s.Missing, s.Extra, s.HasError)
	for _, c := range s.Children {
		b.WriteByte(' ')
		c.writeTo(b)
	}
	b.WriteByte(')')
}

func (s *shape) String() string {
	var b strings.Builder
	s.writeTo(&b)
	return b.String()
}

func testSameTree(t *testing.T, expected, actual *tree.Tree) {
	t.Helper()

	want := genShape(expected.Root())
	got := genShape(actual.Root())
	if want.String() != got.String() {
		t.Fatalf("the trees differ (-want +got):\n%v", cmp.Diff(want, got))
	}
	if expected.TrailingPadding() != actual.TrailingPadding() {
		t.Fatalf("unexpected trailing padding; want: %v, got: %v", expected.TrailingPadding(), actual.TrailingPadding())
	}
}

// testCoverage checks that the leaves of a tree cover the text from the beginning to the trailing padding
// without gaps or overlaps.
func testCoverage(t *testing.T, tr *tree.Tree) {
	t.Helper()

	pos := 0
	tr.Leaves(func(n tree.Node) bool {
		if n.Padding().Start != pos {
			t.Fatalf("a leaf %v begins at %v; want: %v", n.Type(), n.Padding().Start, pos)
		}
		pos = n.EndByte()
		return true
	})
	if pos+tr.TrailingPadding() != tr.Len() {
		t.Fatalf("the leaves end at %v with %v bytes of trailing padding; want: %v", pos, tr.TrailingPadding(), tr.Len())
	}
	root := tr.Root()
	if root.Padding().Start != 0 || root.EndByte() != pos {
		t.Fatalf("unexpected root range: %+v", root.Range())
	}
}

func leaves(tr *tree.Tree) []tree.Node {
	var ns []tree.Node
	tr.Leaves(func(n tree.Node) bool {
		ns = append(ns, n)
		return true
	})
	return ns
}

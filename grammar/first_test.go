package grammar

import (
	"fmt"
	"testing"
)

type first struct {
	lhs     string
	rhs     []string
	dot     int
	symbols []string
	empty   bool
}

func TestGenFirst(t *testing.T) {
	exprGrammar := func() *Builder {
		b := NewBuilder("test").
			Literal("+").
			Literal("*").
			Literal("(").
			Literal(")").
			Terminal("id", "[A-Za-z_][0-9A-Za-z_]*")
		b.Rule("expr", "expr", "+", "term")
		b.Rule("expr", "term")
		b.Rule("term", "term", "*", "factor")
		b.Rule("term", "factor")
		b.Rule("factor", "(", "expr", ")")
		b.Rule("factor", "id")
		return b
	}

	tests := []struct {
		caption string
		builder func() *Builder
		first   []first
	}{
		{
			caption: "productions contain only non-empty productions",
			builder: exprGrammar,
			first: []first{
				{lhs: "expr'", rhs: []string{"expr"}, dot: 0, symbols: []string{"(", "id"}},
				{lhs: "expr", rhs: []string{"expr", "+", "term"}, dot: 0, symbols: []string{"(", "id"}},
				{lhs: "expr", rhs: []string{"expr", "+", "term"}, dot: 1, symbols: []string{"+"}},
				{lhs: "expr", rhs: []string{"expr", "+", "term"}, dot: 2, symbols: []string{"(", "id"}},
				{lhs: "term", rhs: []string{"term", "*", "factor"}, dot: 1, symbols: []string{"*"}},
				{lhs: "factor", rhs: []string{"(", "expr", ")"}, dot: 0, symbols: []string{"("}},
				{lhs: "factor", rhs: []string{"(", "expr", ")"}, dot: 2, symbols: []string{")"}},
				{lhs: "factor", rhs: []string{"id"}, dot: 0, symbols: []string{"id"}},
			},
		},
		{
			caption: "productions contain the empty start production",
			builder: func() *Builder {
				b := NewBuilder("test").Terminal("ws", " +").Skip("ws")
				b.Rule("s")
				return b
			},
			first: []first{
				{lhs: "s'", rhs: []string{"s"}, dot: 0, symbols: []string{}, empty: true},
				{lhs: "s", rhs: []string{}, dot: 0, symbols: []string{}, empty: true},
			},
		},
		{
			caption: "a nullable non-terminal passes FIRST of what follows it",
			builder: func() *Builder {
				b := NewBuilder("test").
					Terminal("foo", "foo").
					Terminal("bar", "bar")
				b.Rule("s", "opt", "bar")
				b.Rule("opt", "foo")
				b.Rule("opt")
				return b
			},
			first: []first{
				{lhs: "s", rhs: []string{"opt", "bar"}, dot: 0, symbols: []string{"foo", "bar"}},
				{lhs: "opt", rhs: []string{"foo"}, dot: 1, symbols: []string{}, empty: true},
				{lhs: "opt", rhs: []string{}, dot: 0, symbols: []string{}, empty: true},
			},
		},
	}
	for i, tt := range tests {
		t.Run(fmt.Sprintf("#%v %v", i, tt.caption), func(t *testing.T) {
			gram := genGrammar(t, tt.builder())
			fst, err := genFirstSet(gram.productionSet)
			if err != nil {
				t.Fatal(err)
			}

			for _, ttFirst := range tt.first {
				prod := genProduction(t, gram, ttFirst.lhs, ttFirst.rhs...)
				actualFirst, err := fst.find(prod, ttFirst.dot)
				if err != nil {
					t.Fatalf("failed to get a FIRST set; LHS: %v, dot: %v, error: %v", ttFirst.lhs, ttFirst.dot, err)
				}

				expectedFirst := newFirstEntry()
				if ttFirst.empty {
					expectedFirst.addEmpty()
				}
				for _, text := range ttFirst.symbols {
					expectedFirst.add(genSymbol(t, gram, text))
				}

				testFirst(t, actualFirst, expectedFirst)
			}
		})
	}
}

func testFirst(t *testing.T, actual, expected *firstEntry) {
	t.Helper()

	if actual.empty != expected.empty {
		t.Errorf("empty is mismatched\nwant: %v\ngot: %v", expected.empty, actual.empty)
	}

	if len(actual.symbols) != len(expected.symbols) {
		t.Fatalf("invalid FIRST set\nwant: %+v\ngot: %+v", expected.symbols, actual.symbols)
	}

	for eSym := range expected.symbols {
		if _, ok := actual.symbols[eSym]; !ok {
			t.Fatalf("invalid FIRST set\nwant: %+v\ngot: %+v", expected.symbols, actual.symbols)
		}
	}
}

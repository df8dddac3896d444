package parser

import (
	"fmt"
	"testing"

	"github.com/nihei9/reparse/grammar"
	"github.com/nihei9/reparse/tree"
)

func TestParser_Conflicts(t *testing.T) {
	tests := []struct {
		caption string
		gram    func() *grammar.Builder
		src     string
		sexpr   string
	}{
		{
			caption: "when a shift/reduce conflict occurred, we prioritize the shift action",
			gram: func() *grammar.Builder {
				b := grammar.NewBuilder("test").
					Literal("=").
					Terminal("id", "[A-Za-z0-9_]+")
				b.Rule("expr", "expr", "=", "expr")
				b.Rule("expr", "id")
				return b
			},
			src:   `foo=bar=baz`,
			sexpr: `(expr (expr (id)) (=) (expr (expr (id)) (=) (expr (id))))`,
		},
		{
			caption: "when a reduce/reduce conflict occurred, we prioritize the production defined earlier in the grammar",
			gram: func() *grammar.Builder {
				b := grammar.NewBuilder("test").
					Terminal("id", "[A-Za-z0-9_]+")
				b.Rule("s", "a")
				b.Rule("s", "b")
				b.Rule("a", "id")
				b.Rule("b", "id")
				return b
			},
			src:   `foo`,
			sexpr: `(s (a (id)))`,
		},
		{
			caption: "left associativities declared later bind tighter",
			gram: func() *grammar.Builder {
				b := grammar.NewBuilder("test").
					Literal("+").
					Literal("*").
					Terminal("id", "[A-Za-z0-9_]+").
					Left("+").
					Left("*")
				b.Rule("expr", "expr", "+", "expr")
				b.Rule("expr", "expr", "*", "expr")
				b.Rule("expr", "id")
				return b
			},
			src:   `a+b*c*d+e`,
			sexpr: `(expr (expr (expr (id)) (+) (expr (expr (expr (id)) (*) (expr (id))) (*) (expr (id)))) (+) (expr (id)))`,
		},
		{
			caption: "left associativities declared at the same level have the same precedence",
			gram: func() *grammar.Builder {
				b := grammar.NewBuilder("test").
					Literal("+").
					Literal("-").
					Terminal("id", "[A-Za-z0-9_]+").
					Left("+", "-")
				b.Rule("expr", "expr", "+", "expr")
				b.Rule("expr", "expr", "-", "expr")
				b.Rule("expr", "id")
				return b
			},
			src:   `a-b+c`,
			sexpr: `(expr (expr (expr (id)) (-) (expr (id))) (+) (expr (id)))`,
		},
		{
			caption: "right associativities group to the right",
			gram: func() *grammar.Builder {
				b := grammar.NewBuilder("test").
					Literal("^").
					Terminal("id", "[A-Za-z0-9_]+").
					Terminal("ws", "[\u0009 ]+").
					Skip("ws").
					Right("^")
				b.Rule("expr", "expr", "^", "expr")
				b.Rule("expr", "id")
				return b
			},
			src:   `a ^ b ^ c`,
			sexpr: `(expr (expr (id)) (^) (expr (expr (id)) (^) (expr (id))))`,
		},
		{
			caption: "an else belongs to the closest if",
			gram: func() *grammar.Builder {
				b := grammar.NewBuilder("test").
					Literal("if").
					Literal("then").
					Literal("else").
					Terminal("id", "[a-z]+").
					Terminal("ws", "[\u0009 ]+").
					Skip("ws")
				b.Rule("expr", "if", "expr", "then", "expr")
				b.Rule("expr", "if", "expr", "then", "expr", "else", "expr")
				b.Rule("expr", "id")
				return b
			},
			src:   `if a then if b then c else d`,
			sexpr: `(expr (if) (expr (id)) (then) (expr (if) (expr (id)) (then) (expr (id)) (else) (expr (id))))`,
		},
	}
	for i, tt := range tests {
		t.Run(fmt.Sprintf("#%v %v", i, tt.caption), func(t *testing.T) {
			g := newTestGrammar(t, tt.gram())
			tr := parseString(t, NewParser(g), tt.src)
			defer tr.Release()

			if tr.Root().HasError() {
				t.Fatalf("unexpected syntax error: %v", tree.SExpr(tr.Root()))
			}
			if sexpr := tree.SExpr(tr.Root()); sexpr != tt.sexpr {
				t.Fatalf("unexpected tree; want: %v, got: %v", tt.sexpr, sexpr)
			}
		})
	}
}

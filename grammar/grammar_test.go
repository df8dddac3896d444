package grammar

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	verr "github.com/nihei9/reparse/error"
	spec "github.com/nihei9/reparse/spec/grammar"
	"github.com/stretchr/testify/require"
)

func TestBuilder_Errors(t *testing.T) {
	tests := []struct {
		caption string
		builder func() *Builder
		errs    []error
	}{
		{
			caption: "a grammar needs a name",
			builder: func() *Builder {
				b := NewBuilder("").Terminal("a", "a")
				b.Rule("s", "a")
				return b
			},
			errs: []error{semErrNoGrammarName},
		},
		{
			caption: "a grammar needs a production",
			builder: func() *Builder {
				return NewBuilder("test").Terminal("a", "a")
			},
			errs: []error{semErrNoProduction},
		},
		{
			caption: "an undefined symbol is an error",
			builder: func() *Builder {
				b := NewBuilder("test").Terminal("a", "a")
				b.Rule("s", "a", "b")
				return b
			},
			errs: []error{semErrUndefinedSym},
		},
		{
			caption: "a terminal not used in productions and not skipped is an error",
			builder: func() *Builder {
				b := NewBuilder("test").Terminal("a", "a").Terminal("b", "b")
				b.Rule("s", "a")
				return b
			},
			errs: []error{semErrUnusedTerminal},
		},
		{
			caption: "a non-terminal not reachable from the start symbol is an error",
			builder: func() *Builder {
				b := NewBuilder("test").Terminal("a", "a")
				b.Rule("s", "a")
				b.Rule("t", "a")
				return b
			},
			errs: []error{semErrUnusedProduction},
		},
		{
			caption: "a skipped terminal can't appear in productions",
			builder: func() *Builder {
				b := NewBuilder("test").Terminal("a", "a").Terminal("ws", " +").Skip("ws")
				b.Rule("s", "a", "ws")
				return b
			},
			errs: []error{semErrTermCannotBeSkipped},
		},
		{
			caption: "a production can't be defined twice",
			builder: func() *Builder {
				b := NewBuilder("test").Terminal("a", "a")
				b.Rule("s", "a")
				b.Rule("s", "a")
				return b
			},
			errs: []error{semErrDuplicateProduction},
		},
		{
			caption: "a terminal and a non-terminal can't share a name",
			builder: func() *Builder {
				b := NewBuilder("test").Terminal("a", "a")
				b.Rule("a", "a")
				return b
			},
			errs: []error{semErrDuplicateName},
		},
		{
			caption: "error is reserved",
			builder: func() *Builder {
				b := NewBuilder("test").Terminal("error", "e").Terminal("a", "a")
				b.Rule("s", "a")
				return b
			},
			errs: []error{semErrReservedName},
		},
		{
			caption: "the error terminal can't appear in productions",
			builder: func() *Builder {
				b := NewBuilder("test").Terminal("a", "a")
				b.Rule("s", "a", "error")
				return b
			},
			errs: []error{semErrUndefinedSym},
		},
		{
			caption: "precedence can be given only to terminals",
			builder: func() *Builder {
				b := NewBuilder("test").Terminal("a", "a").Left("s")
				b.Rule("s", "a")
				return b
			},
			errs: []error{semErrPrecNotTerminal},
		},
	}
	for i, tt := range tests {
		t.Run(fmt.Sprintf("#%v %v", i, tt.caption), func(t *testing.T) {
			_, err := tt.builder().Build()
			if err == nil {
				t.Fatal("an error was expected")
			}
			var specErrs verr.SpecErrors
			if !errors.As(err, &specErrs) {
				t.Fatalf("unexpected error type: %T: %v", err, err)
			}
			if len(specErrs) != len(tt.errs) {
				t.Fatalf("unexpected error count; want: %v, got: %v (%v)", len(tt.errs), len(specErrs), specErrs)
			}
			for j, e := range specErrs {
				if !errors.Is(e, tt.errs[j]) {
					t.Fatalf("unexpected error; want: %v, got: %v", tt.errs[j], e)
				}
			}
		})
	}
}

func TestCompile_LALR1(t *testing.T) {
	// This grammar belongs to LALR(1) class, not SLR(1).
	b := NewBuilder("test").
		Literal("=").
		Literal("*").
		Terminal("id", "[A-Za-z0-9_]+")
	b.Rule("S", "L", "=", "R")
	b.Rule("S", "R")
	b.Rule("L", "*", "R")
	b.Rule("L", "id")
	b.Rule("R", "L")

	cg, report, err := Compile(genGrammar(t, b), EnableReporting())
	require.NoError(t, err)
	require.Equal(t, spec.FormatVersion, cg.FormatVersion)

	for _, s := range report.States {
		if len(s.SRConflict) > 0 || len(s.RRConflict) > 0 {
			t.Fatalf("state %v has conflicts", s.Number)
		}
	}

	tests := []struct {
		input  []string
		accept bool
	}{
		{input: []string{"id"}, accept: true},
		{input: []string{"*", "id"}, accept: true},
		{input: []string{"id", "=", "id"}, accept: true},
		{input: []string{"*", "*", "id", "=", "*", "id"}, accept: true},
		{input: []string{}, accept: false},
		{input: []string{"id", "="}, accept: false},
		{input: []string{"=", "id"}, accept: false},
		{input: []string{"id", "=", "id", "=", "id"}, accept: false},
	}
	for i, tt := range tests {
		t.Run(fmt.Sprintf("#%v %v", i, strings.Join(tt.input, " ")), func(t *testing.T) {
			if accepts(t, cg, tt.input...) != tt.accept {
				t.Fatalf("unexpected result; want: %v", tt.accept)
			}
		})
	}
}

func TestCompile_Precedence(t *testing.T) {
	b := NewBuilder("test").
		Literal("+").
		Literal("*").
		Literal("-").
		Literal("^").
		Terminal("id", "[a-z]+").
		Left("+", "-").
		Left("*").
		Right("^")
	b.Rule("e", "e", "+", "e")
	b.Rule("e", "e", "*", "e")
	b.Rule("e", "e", "^", "e")
	b.Rule("e", "-", "e").Prec("^")
	b.Rule("e", "id")

	cg, report, err := Compile(genGrammar(t, b), EnableReporting())
	require.NoError(t, err)

	prodNum := map[string]int{}
	for _, p := range report.Productions[1:] {
		var rhs []string
		for _, sym := range p.RHS {
			if sym > 0 {
				rhs = append(rhs, report.Terminals[sym].Name)
			} else {
				rhs = append(rhs, report.NonTerminals[-sym].Name)
			}
		}
		prodNum[strings.Join(rhs, " ")] = p.Number
	}
	termNum := map[string]int{}
	for _, term := range report.Terminals[1:] {
		termNum[term.Name] = term.Number
	}

	// resolution maps (production, look-ahead) to the adopted action.
	resolution := map[[2]int]string{}
	for _, s := range report.States {
		for _, c := range s.SRConflict {
			adopted := "shift"
			if c.AdoptedProduction != nil {
				adopted = "reduce"
			}
			resolution[[2]int{c.Production, c.Symbol}] = adopted
		}
	}

	tests := []struct {
		prod      string
		lookAhead string
		adopted   string
	}{
		{prod: "e + e", lookAhead: "+", adopted: "reduce"},
		{prod: "e + e", lookAhead: "*", adopted: "shift"},
		{prod: "e * e", lookAhead: "+", adopted: "reduce"},
		{prod: "e * e", lookAhead: "*", adopted: "reduce"},
		{prod: "e ^ e", lookAhead: "^", adopted: "shift"},
		{prod: "e ^ e", lookAhead: "*", adopted: "reduce"},
		{prod: "- e", lookAhead: "+", adopted: "reduce"},
		{prod: "- e", lookAhead: "^", adopted: "shift"},
	}
	for i, tt := range tests {
		t.Run(fmt.Sprintf("#%v %v with %v", i, tt.prod, tt.lookAhead), func(t *testing.T) {
			adopted, ok := resolution[[2]int{prodNum[tt.prod], termNum[tt.lookAhead]}]
			if !ok {
				t.Fatal("no conflict was recorded")
			}
			if adopted != tt.adopted {
				t.Fatalf("unexpected resolution; want: %v, got: %v", tt.adopted, adopted)
			}
		})
	}

	if !accepts(t, cg, "id", "+", "-", "id", "^", "id", "*", "id") {
		t.Fatal("a valid sentence was rejected")
	}
}

func TestCompile_TableCompression(t *testing.T) {
	genBuilder := func() *Builder {
		b := NewBuilder("test").
			Literal("(").
			Literal(")").
			Literal(",").
			Terminal("id", "[a-z]+")
		b.Rule("list", "(", "items", ")")
		b.Rule("list", "(", ")")
		b.Rule("items", "items", ",", "item")
		b.Rule("items", "item")
		b.Rule("item", "id")
		b.Rule("item", "list")
		return b
	}

	var tables [][]int
	for _, level := range []int{spec.TableCompressionNone, spec.TableCompressionUniqueEntries, spec.TableCompressionRowDisplacement} {
		cg, _, err := Compile(genGrammar(t, genBuilder()), TableCompression(level))
		require.NoError(t, err)
		require.Equal(t, level, cg.Syntactic.Action.Compression)
		tables = append(tables, decompressTable(t, cg.Syntactic.Action))

		if !accepts(t, cg, "(", "id", ",", "(", ")", ",", "(", "id", ")", ")") {
			t.Fatalf("a valid sentence was rejected; level: %v", level)
		}
	}
	require.Equal(t, tables[0], tables[1])
	require.Equal(t, tables[0], tables[2])
}

func TestCompile_LexModes(t *testing.T) {
	b := NewBuilder("test").
		Terminal("quote", `"`, "default", "str").
		Terminal("chars", `[^"]+`, "str").
		Terminal("id", "[a-z]+")
	b.Rule("s", "id")
	b.Rule("s", "quote", "chars", "quote")

	cg, report, err := Compile(genGrammar(t, b), EnableReporting())
	require.NoError(t, err)
	require.Len(t, cg.Lexical.StateModes, cg.Syntactic.StateCount)

	var quote int
	for _, term := range report.Terminals[1:] {
		if term.Name == "quote" {
			quote = term.Number
		}
	}
	initial := report.States[cg.Syntactic.InitialState]
	require.Equal(t, "default", initial.LexMode)

	var afterQuote *spec.State
	for _, tr := range initial.Shift {
		if tr.Symbol == quote {
			afterQuote = report.States[tr.State]
		}
	}
	require.NotNil(t, afterQuote)
	require.Equal(t, "str", afterQuote.LexMode)
}

func TestCompile_AuxiliaryAndDynamicPrecedence(t *testing.T) {
	b := NewBuilder("test").
		Literal(",").
		Terminal("id", "[a-z]+")
	b.Rule("list", "_items")
	b.Rule("_items", "_items", ",", "id")
	b.Rule("_items", "id").DynamicPrecedence(2)

	cg, _, err := Compile(genGrammar(t, b))
	require.NoError(t, err)

	syn := cg.Syntactic
	for num, name := range syn.NonTerminals {
		want := 0
		if name == "_items" {
			want = 1
		}
		require.Equal(t, want, syn.AuxiliaryNonTerminals[num], name)
	}

	found := false
	for prod := range syn.LHSSymbols {
		if syn.DynamicPrecedences[prod] == 2 {
			require.Equal(t, "_items", syn.NonTerminals[syn.LHSSymbols[prod]])
			require.Equal(t, 1, syn.AlternativeSymbolCounts[prod])
			found = true
		}
	}
	require.True(t, found)
}

func TestCompile_External(t *testing.T) {
	b := NewBuilder("test").
		Terminal("id", "[a-z]+").
		External("indent", "indent", "dedent")
	b.Rule("block", "indent", "id", "dedent")

	cg, _, err := Compile(genGrammar(t, b))
	require.NoError(t, err)
	require.NotNil(t, cg.Lexical.External)
	require.Equal(t, "indent", cg.Lexical.External.Scanner)
	require.Len(t, cg.Lexical.External.Terminals, 2)
	for _, term := range cg.Lexical.External.Terminals {
		require.Equal(t, 0, cg.Lexical.TerminalToKind[term])
	}
	require.True(t, accepts(t, cg, "indent", "id", "dedent"))
}

func TestReadDescription(t *testing.T) {
	src := `
name: expr
terminals:
  - name: num
    pattern: "[0-9]+"
  - literal: "+"
  - name: ws
    pattern: "[ \t]+"
    skip: true
precedence:
  - left: ["+"]
rules:
  - lhs: sum
    rhs: [sum, "+", sum]
  - lhs: sum
    rhs: [num]
`
	b, err := ReadDescription(strings.NewReader(src), "expr.yaml")
	require.NoError(t, err)
	cg, _, err := Compile(genGrammar(t, b))
	require.NoError(t, err)
	require.Equal(t, "expr", cg.Name)
	require.True(t, accepts(t, cg, "num", "+", "num", "+", "num"))

	var skipped []int
	for kind, s := range cg.Lexical.Skip {
		if s == 1 {
			skipped = append(skipped, cg.Lexical.KindToTerminal[kind])
		}
	}
	require.Len(t, skipped, 1)
	require.Equal(t, "ws", cg.Syntactic.Terminals[skipped[0]])

	t.Run("errors carry line numbers", func(t *testing.T) {
		src := `
name: bad
terminals:
  - name: a
    pattern: a
rules:
  - lhs: s
    rhs: [a, b]
`
		b, err := ReadDescription(strings.NewReader(src), "bad.yaml")
		require.NoError(t, err)
		_, err = b.Build()
		var specErrs verr.SpecErrors
		require.ErrorAs(t, err, &specErrs)
		require.Len(t, specErrs, 1)
		require.Equal(t, 7, specErrs[0].Row)
		require.Equal(t, "bad.yaml", specErrs[0].SourceName)
	})

	t.Run("unknown fields are rejected", func(t *testing.T) {
		_, err := ReadDescription(strings.NewReader("name: x\nfoo: 1\n"), "x.yaml")
		require.Error(t, err)
	})
}

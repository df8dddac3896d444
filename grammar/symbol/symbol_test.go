package symbol

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSymbol(t *testing.T) {
	tab := NewSymbolTable()
	w := tab.Writer()
	_, _ = w.RegisterStartSymbol("expr'")
	_, _ = w.RegisterNonTerminalSymbol("expr")
	_, _ = w.RegisterNonTerminalSymbol("_terms")
	_, _ = w.RegisterNonTerminalSymbol("factor")
	_, _ = w.RegisterTerminalSymbol("id")
	_, _ = w.RegisterTerminalSymbol("add")
	_, _ = w.RegisterTerminalSymbol("l_paren")

	nonTermTexts := []string{
		"", // Nil
		"expr'",
		"expr",
		"_terms",
		"factor",
	}

	termTexts := []string{
		"", // Nil
		SymbolNameEOF,
		SymbolNameError,
		"id",
		"add",
		"l_paren",
	}

	tests := []struct {
		text          string
		isStart       bool
		isEOF         bool
		isNonTerminal bool
		isTerminal    bool
	}{
		{
			text:          "expr'",
			isStart:       true,
			isNonTerminal: true,
		},
		{
			text:          "expr",
			isNonTerminal: true,
		},
		{
			text:          "_terms",
			isNonTerminal: true,
		},
		{
			text:       "id",
			isTerminal: true,
		},
		{
			text:       "l_paren",
			isTerminal: true,
		},
		{
			text:       SymbolNameEOF,
			isEOF:      true,
			isTerminal: true,
		},
		{
			text:       SymbolNameError,
			isTerminal: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			r := tab.Reader()
			sym, ok := r.ToSymbol(tt.text)
			if !ok {
				t.Fatalf("symbol was not found")
			}
			testSymbolProperty(t, sym, false, tt.isStart, tt.isEOF, tt.isNonTerminal, tt.isTerminal)
			text, ok := r.ToText(sym)
			if !ok {
				t.Fatalf("text was not found")
			}
			if text != tt.text {
				t.Fatalf("unexpected text representation; want: %v, got: %v", tt.text, text)
			}
		})
	}

	t.Run("Nil", func(t *testing.T) {
		testSymbolProperty(t, SymbolNil, true, false, false, false, false)
	})

	t.Run("texts", func(t *testing.T) {
		r := tab.Reader()
		ts, err := r.NonTerminalTexts()
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(nonTermTexts, ts); diff != "" {
			t.Fatalf("unexpected non-terminals (-want +got):\n%v", diff)
		}
		if diff := cmp.Diff(termTexts, r.TerminalTexts()); diff != "" {
			t.Fatalf("unexpected terminals (-want +got):\n%v", diff)
		}
		if r.TerminalCount() != len(termTexts) || r.NonTerminalCount() != len(nonTermTexts) {
			t.Fatalf("unexpected counts: %v, %v", r.TerminalCount(), r.NonTerminalCount())
		}
	})

	t.Run("a name can't be both a terminal and a non-terminal", func(t *testing.T) {
		if _, err := w.RegisterTerminalSymbol("expr"); err == nil {
			t.Fatal("an error was expected")
		}
		if _, err := w.RegisterNonTerminalSymbol("id"); err == nil {
			t.Fatal("an error was expected")
		}
	})
}

func TestIsAuxiliaryName(t *testing.T) {
	if !IsAuxiliaryName("_terms") {
		t.Fatal("_terms must be auxiliary")
	}
	if IsAuxiliaryName("terms") {
		t.Fatal("terms must not be auxiliary")
	}
}

func testSymbolProperty(t *testing.T, sym Symbol, isNil, isStart, isEOF, isNonTerminal, isTerminal bool) {
	t.Helper()

	if v := sym.IsNil(); v != isNil {
		t.Fatalf("isNil property is mismatched; want: %v, got: %v", isNil, v)
	}
	if v := sym.IsStart(); v != isStart {
		t.Fatalf("isStart property is mismatched; want: %v, got: %v", isStart, v)
	}
	if v := sym.IsEOF(); v != isEOF {
		t.Fatalf("isEOF property is mismatched; want: %v, got: %v", isEOF, v)
	}
	if v := sym.IsNonTerminal(); v != isNonTerminal {
		t.Fatalf("isNonTerminal property is mismatched; want: %v, got: %v", isNonTerminal, v)
	}
	if v := sym.IsTerminal(); v != isTerminal {
		t.Fatalf("isTerminal property is mismatched; want: %v, got: %v", isTerminal, v)
	}
}

package grammar

import (
	"testing"

	"github.com/nihei9/reparse/compressor"
	"github.com/nihei9/reparse/grammar/symbol"
	spec "github.com/nihei9/reparse/spec/grammar"
)

func genGrammar(t *testing.T, b *Builder) *Grammar {
	t.Helper()

	gram, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	return gram
}

func genSymbol(t *testing.T, gram *Grammar, text string) symbol.Symbol {
	t.Helper()

	sym, ok := gram.symbolTable.ToSymbol(text)
	if !ok {
		t.Fatalf("symbol was not found: %v", text)
	}
	return sym
}

func genProduction(t *testing.T, gram *Grammar, lhs string, rhs ...string) *production {
	t.Helper()

	rhsSym := make([]symbol.Symbol, 0, len(rhs))
	for _, text := range rhs {
		rhsSym = append(rhsSym, genSymbol(t, gram, text))
	}
	p, err := newProduction(genSymbol(t, gram, lhs), rhsSym)
	if err != nil {
		t.Fatal(err)
	}
	found, ok := gram.productionSet.findByID(p.id)
	if !ok {
		t.Fatalf("production was not found: %v → %v", lhs, rhs)
	}
	return found
}

func decompressTable(t *testing.T, tab *spec.Table) []int {
	t.Helper()

	var c compressor.Compressor
	switch tab.Compression {
	case spec.TableCompressionNone:
		return tab.Entries
	case spec.TableCompressionUniqueEntries:
		c = tab.UniqueEntries
	case spec.TableCompressionRowDisplacement:
		c = tab.RowDisplacement
	}
	entries, err := compressor.Decompress(c)
	if err != nil {
		t.Fatal(err)
	}
	return entries
}

// accepts runs the compiled automaton over a sequence of terminal names and reports whether the sequence
// is a sentence of the grammar.
func accepts(t *testing.T, cg *spec.CompiledGrammar, terms ...string) bool {
	t.Helper()

	syn := cg.Syntactic
	action := decompressTable(t, syn.Action)
	goTo := decompressTable(t, syn.GoTo)
	termNum := map[string]int{}
	for i, name := range syn.Terminals {
		termNum[name] = i
	}
	input := make([]int, 0, len(terms)+1)
	for _, name := range terms {
		num, ok := termNum[name]
		if !ok {
			t.Fatalf("unknown terminal: %v", name)
		}
		input = append(input, num)
	}
	input = append(input, syn.EOFSymbol)

	stack := []int{syn.InitialState}
	for pos := 0; ; {
		act := action[stack[len(stack)-1]*syn.TerminalCount+input[pos]]
		switch {
		case act < 0:
			stack = append(stack, -act)
			pos++
		case act > 0:
			if act == syn.StartProduction {
				return true
			}
			stack = stack[:len(stack)-syn.AlternativeSymbolCounts[act]]
			next := goTo[stack[len(stack)-1]*syn.NonTerminalCount+syn.LHSSymbols[act]]
			if next == 0 {
				t.Fatalf("goto is missing; production: %v", act)
			}
			stack = append(stack, next)
		default:
			return false
		}
	}
}

package symbol

import (
	"fmt"
	"sort"
	"strings"
)

type SymbolNum uint16

func (n SymbolNum) Int() int {
	return int(n)
}

// Symbol packs a kind bit and a number into 16 bits. Terminals and non-terminals are numbered independently,
// so the same number may denote one symbol of each kind.
type Symbol uint16

const (
	maskTerminal   = uint16(0x8000) // 1000 0000 0000 0000
	maskNumberPart = uint16(0x7fff) // 0111 1111 1111 1111

	SymbolNil   = Symbol(0)
	SymbolStart = Symbol(0x0001)                // Non-terminal #1
	SymbolEOF   = Symbol(maskTerminal | 0x0001) // Terminal #1
	SymbolError = Symbol(maskTerminal | 0x0002) // Terminal #2

	// Reserved names contain `<` and `>` so they can't collide with user-defined symbols. `error` is the
	// exception; it is a keyword users may refer to in productions.
	SymbolNameEOF   = "<eof>"
	SymbolNameError = "error"

	nonTerminalNumMin = SymbolNum(2)
	terminalNumMin    = SymbolNum(3)
	symbolNumMax      = SymbolNum(maskNumberPart)
)

func (s Symbol) String() string {
	switch {
	case s.IsNil():
		return "nil"
	case s.IsTerminal():
		return fmt.Sprintf("t%v", s.Num())
	default:
		return fmt.Sprintf("n%v", s.Num())
	}
}

func (s Symbol) Num() SymbolNum {
	return SymbolNum(uint16(s) & maskNumberPart)
}

func (s Symbol) Byte() []byte {
	return []byte{byte(uint16(s) >> 8), byte(uint16(s) & 0x00ff)}
}

func (s Symbol) IsNil() bool {
	return s.Num() == 0
}

func (s Symbol) IsStart() bool {
	return s == SymbolStart
}

func (s Symbol) IsEOF() bool {
	return s == SymbolEOF
}

func (s Symbol) IsTerminal() bool {
	return !s.IsNil() && uint16(s)&maskTerminal != 0
}

func (s Symbol) IsNonTerminal() bool {
	return !s.IsNil() && uint16(s)&maskTerminal == 0
}

// IsAuxiliaryName reports whether a non-terminal named name is hidden from the visible tree.
func IsAuxiliaryName(name string) bool {
	return strings.HasPrefix(name, "_")
}

type SymbolTable struct {
	text2Sym     map[string]Symbol
	nonTermTexts []string
	termTexts    []string
}

type SymbolTableWriter struct {
	*SymbolTable
}

type SymbolTableReader struct {
	*SymbolTable
}

func NewSymbolTable() *SymbolTable {
	return &SymbolTable{
		text2Sym: map[string]Symbol{
			SymbolNameEOF:   SymbolEOF,
			SymbolNameError: SymbolError,
		},
		termTexts: []string{
			"",              // Nil
			SymbolNameEOF,   // EOF
			SymbolNameError, // error
		},
		nonTermTexts: []string{
			"", // Nil
			"", // Start Symbol
		},
	}
}

func (t *SymbolTable) Writer() *SymbolTableWriter {
	return &SymbolTableWriter{
		SymbolTable: t,
	}
}

func (t *SymbolTable) Reader() *SymbolTableReader {
	return &SymbolTableReader{
		SymbolTable: t,
	}
}

// RegisterStartSymbol names the augmented start symbol. The name must not be used by any other symbol.
func (w *SymbolTableWriter) RegisterStartSymbol(text string) (Symbol, error) {
	if sym, ok := w.text2Sym[text]; ok && sym != SymbolStart {
		return SymbolNil, fmt.Errorf("the start symbol name is already used: %v", text)
	}
	w.text2Sym[text] = SymbolStart
	w.nonTermTexts[SymbolStart.Num()] = text
	return SymbolStart, nil
}

func (w *SymbolTableWriter) RegisterNonTerminalSymbol(text string) (Symbol, error) {
	if sym, ok := w.text2Sym[text]; ok {
		if !sym.IsNonTerminal() {
			return SymbolNil, fmt.Errorf("%v is already registered as a terminal", text)
		}
		return sym, nil
	}
	num := SymbolNum(len(w.nonTermTexts))
	if num > symbolNumMax {
		return SymbolNil, fmt.Errorf("a symbol number exceeds the limit; limit: %v, passed: %v", symbolNumMax, num)
	}
	sym := Symbol(num)
	w.text2Sym[text] = sym
	w.nonTermTexts = append(w.nonTermTexts, text)
	return sym, nil
}

func (w *SymbolTableWriter) RegisterTerminalSymbol(text string) (Symbol, error) {
	if sym, ok := w.text2Sym[text]; ok {
		if !sym.IsTerminal() {
			return SymbolNil, fmt.Errorf("%v is already registered as a non-terminal", text)
		}
		return sym, nil
	}
	num := SymbolNum(len(w.termTexts))
	if num > symbolNumMax {
		return SymbolNil, fmt.Errorf("a symbol number exceeds the limit; limit: %v, passed: %v", symbolNumMax, num)
	}
	sym := Symbol(maskTerminal | uint16(num))
	w.text2Sym[text] = sym
	w.termTexts = append(w.termTexts, text)
	return sym, nil
}

func (r *SymbolTableReader) ToSymbol(text string) (Symbol, bool) {
	if sym, ok := r.text2Sym[text]; ok {
		return sym, true
	}
	return SymbolNil, false
}

func (r *SymbolTableReader) ToText(sym Symbol) (string, bool) {
	var texts []string
	switch {
	case sym.IsTerminal():
		texts = r.termTexts
	case sym.IsNonTerminal():
		texts = r.nonTermTexts
	default:
		return "", false
	}
	if sym.Num().Int() >= len(texts) {
		return "", false
	}
	return texts[sym.Num()], true
}

// TerminalSymbols returns all terminals including EOF and error in ascending order.
func (r *SymbolTableReader) TerminalSymbols() []Symbol {
	syms := make([]Symbol, 0, len(r.termTexts)-1)
	for num := 1; num < len(r.termTexts); num++ {
		syms = append(syms, Symbol(maskTerminal|uint16(num)))
	}
	return syms
}

func (r *SymbolTableReader) TerminalTexts() []string {
	return r.termTexts
}

func (r *SymbolTableReader) TerminalCount() int {
	return len(r.termTexts)
}

func (r *SymbolTableReader) NonTerminalSymbols() []Symbol {
	syms := make([]Symbol, 0, len(r.nonTermTexts)-1)
	for num := 1; num < len(r.nonTermTexts); num++ {
		syms = append(syms, Symbol(num))
	}
	sort.Slice(syms, func(i, j int) bool {
		return syms[i] < syms[j]
	})
	return syms
}

func (r *SymbolTableReader) NonTerminalTexts() ([]string, error) {
	if r.nonTermTexts[SymbolStart.Num()] == "" {
		return nil, fmt.Errorf("symbol table has no start symbol")
	}
	return r.nonTermTexts, nil
}

func (r *SymbolTableReader) NonTerminalCount() int {
	return len(r.nonTermTexts)
}

package parser

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/nihei9/reparse/compressor"
	"github.com/nihei9/reparse/driver/lexer"
	verr "github.com/nihei9/reparse/error"
	spec "github.com/nihei9/reparse/spec/grammar"
	"github.com/nihei9/reparse/tree"
)

// Symbol is a terminal or a non-terminal. Terminal t is t itself, and non-terminal n is TerminalCount+n.
type Symbol = tree.Symbol

type ActionKind int

const (
	ActionError ActionKind = iota
	ActionShift
	ActionReduce
	ActionAccept
)

func (k ActionKind) String() string {
	switch k {
	case ActionShift:
		return "shift"
	case ActionReduce:
		return "reduce"
	case ActionAccept:
		return "accept"
	}
	return "error"
}

type Action struct {
	Kind ActionKind

	// State is the state a shift moves to.
	State int

	// Production, Symbol, ChildCount and DynamicPrecedence describe the production a reduction uses.
	Production        int
	Symbol            Symbol
	ChildCount        int
	DynamicPrecedence int
}

type ProductionInfo struct {
	LHS               Symbol
	ChildCount        int
	DynamicPrecedence int
}

// Grammar gives read access to a loaded grammar table. It is immutable, and any number of parsers may
// share it.
type Grammar struct {
	name         string
	syn          *spec.SyntacticSpec
	action       []int
	goTo         []int
	termCount    int
	nonTermCount int
	stateCount   int
	names        []string
	visible      []bool
	expected     [][]Symbol
	lexer        *lexer.Lexer
	external     bool
}

type grammarConfig struct {
	scanner lexer.ExternalScanner
}

type GrammarOption func(config *grammarConfig)

// WithExternalScanner supplies the external scanner instead of the one registered under the name the table
// carries.
func WithExternalScanner(s lexer.ExternalScanner) GrammarOption {
	return func(config *grammarConfig) {
		config.scanner = s
	}
}

// ReadGrammar reads a JSON grammar table.
func ReadGrammar(r io.Reader, opts ...GrammarOption) (*Grammar, error) {
	var cg spec.CompiledGrammar
	if err := json.NewDecoder(r).Decode(&cg); err != nil {
		return nil, &verr.MalformedTableError{
			Cause: fmt.Errorf("cannot decode the table: %w", err),
		}
	}
	return NewGrammar(&cg, opts...)
}

func malformed(section string, format string, a ...any) error {
	return &verr.MalformedTableError{
		Section: section,
		Cause:   fmt.Errorf(format, a...),
	}
}

// NewGrammar validates a grammar table and prepares it for parsing. An inconsistent table is reported as a
// *verr.MalformedTableError.
func NewGrammar(cg *spec.CompiledGrammar, opts ...GrammarOption) (*Grammar, error) {
	config := &grammarConfig{}
	for _, opt := range opts {
		opt(config)
	}

	if cg == nil {
		return nil, malformed("", "the table is empty")
	}
	if cg.FormatVersion != spec.FormatVersion {
		return nil, &verr.MalformedTableError{
			Section: "format_version",
			Cause:   fmt.Errorf("%w: %v", verr.ErrUnsupportedVersion, cg.FormatVersion),
		}
	}
	if cg.Syntactic == nil {
		return nil, malformed("syntactic", "the section is missing")
	}
	if cg.Lexical == nil {
		return nil, malformed("lexical", "the section is missing")
	}

	syn := cg.Syntactic
	if syn.StateCount <= 0 || syn.TerminalCount < 3 || syn.NonTerminalCount < 2 {
		return nil, malformed("syntactic", "invalid table size: %v states, %v terminals, %v non-terminals", syn.StateCount, syn.TerminalCount, syn.NonTerminalCount)
	}
	if len(syn.Terminals) != syn.TerminalCount || len(syn.NonTerminals) != syn.NonTerminalCount {
		return nil, malformed("syntactic", "symbol name count mismatch")
	}
	if syn.InitialState < 0 || syn.InitialState >= syn.StateCount {
		return nil, malformed("syntactic", "invalid initial state: %v", syn.InitialState)
	}
	if syn.EOFSymbol <= 0 || syn.EOFSymbol >= syn.TerminalCount {
		return nil, malformed("syntactic", "invalid end-of-input symbol: %v", syn.EOFSymbol)
	}
	if syn.ErrorSymbol <= 0 || syn.ErrorSymbol >= syn.TerminalCount {
		return nil, malformed("syntactic", "invalid error symbol: %v", syn.ErrorSymbol)
	}

	prodCount := len(syn.LHSSymbols)
	if prodCount < 2 || len(syn.AlternativeSymbolCounts) != prodCount || len(syn.DynamicPrecedences) != prodCount {
		return nil, malformed("syntactic", "production array length mismatch")
	}
	if syn.StartProduction <= 0 || syn.StartProduction >= prodCount {
		return nil, malformed("syntactic", "invalid start production: %v", syn.StartProduction)
	}
	for prod := 1; prod < prodCount; prod++ {
		if lhs := syn.LHSSymbols[prod]; lhs <= 0 || lhs >= syn.NonTerminalCount {
			return nil, malformed("syntactic", "production %v has an invalid LHS: %v", prod, lhs)
		}
		if syn.AlternativeSymbolCounts[prod] < 0 {
			return nil, malformed("syntactic", "production %v has a negative length", prod)
		}
	}
	if syn.AuxiliaryNonTerminals != nil && len(syn.AuxiliaryNonTerminals) != syn.NonTerminalCount {
		return nil, malformed("syntactic", "auxiliary flag count mismatch")
	}

	action, err := expandTable(syn.Action, syn.StateCount, syn.TerminalCount)
	if err != nil {
		return nil, malformed("action", "%w", err)
	}
	for i, e := range action {
		switch {
		case e < 0 && -e >= syn.StateCount:
			return nil, malformed("action", "entry %v shifts to an invalid state: %v", i, -e)
		case e > 0 && e >= prodCount:
			return nil, malformed("action", "entry %v reduces by an invalid production: %v", i, e)
		}
	}
	goTo, err := expandTable(syn.GoTo, syn.StateCount, syn.NonTerminalCount)
	if err != nil {
		return nil, malformed("goto", "%w", err)
	}
	for i, e := range goTo {
		if e < 0 || e >= syn.StateCount {
			return nil, malformed("goto", "entry %v refers to an invalid state: %v", i, e)
		}
	}

	if err := checkReductions(syn, action, goTo); err != nil {
		return nil, err
	}

	if len(cg.Lexical.StateModes) != syn.StateCount {
		return nil, malformed("lexical", "lex mode count mismatch: want %v, got %v", syn.StateCount, len(cg.Lexical.StateModes))
	}
	var lexOpts []lexer.LexerOption
	if config.scanner != nil {
		lexOpts = append(lexOpts, lexer.WithScanner(config.scanner))
	}
	lex, err := lexer.NewLexer(cg.Lexical, syn.TerminalCount, syn.EOFSymbol, lexOpts...)
	if err != nil {
		return nil, malformed("lexical", "%w", err)
	}

	g := &Grammar{
		name:         cg.Name,
		syn:          syn,
		action:       action,
		goTo:         goTo,
		termCount:    syn.TerminalCount,
		nonTermCount: syn.NonTerminalCount,
		stateCount:   syn.StateCount,
		lexer:        lex,
	}
	g.names = make([]string, 0, g.termCount+g.nonTermCount)
	g.names = append(g.names, syn.Terminals...)
	g.names = append(g.names, syn.NonTerminals...)
	g.visible = make([]bool, len(g.names))
	for i := range g.visible {
		g.visible[i] = true
	}
	for nonTerm, aux := range syn.AuxiliaryNonTerminals {
		if aux != 0 {
			g.visible[g.termCount+nonTerm] = false
		}
	}
	for term := 1; term < g.termCount; term++ {
		if lex.IsExternal(term) {
			g.external = true
		}
	}
	g.expected = make([][]Symbol, g.stateCount)
	for state := 0; state < g.stateCount; state++ {
		for term := 1; term < g.termCount; term++ {
			if action[state*g.termCount+term] != 0 {
				g.expected[state] = append(g.expected[state], Symbol(term))
			}
		}
	}

	return g, nil
}

// checkReductions makes sure a reduction finds a goto entry in every state it can uncover. The states a
// reduction by a production of length k can uncover are the ones k transitions before the reducing state.
func checkReductions(syn *spec.SyntacticSpec, action, goTo []int) error {
	termCount := syn.TerminalCount
	nonTermCount := syn.NonTerminalCount
	stateCount := syn.StateCount

	hasGoTo := make([]bool, nonTermCount)
	preds := make([][]int, stateCount)
	seen := make(map[[2]int]struct{})
	addPred := func(from, to int) {
		if _, ok := seen[[2]int{from, to}]; ok {
			return
		}
		seen[[2]int{from, to}] = struct{}{}
		preds[to] = append(preds[to], from)
	}
	for state := 0; state < stateCount; state++ {
		for term := 1; term < termCount; term++ {
			if e := action[state*termCount+term]; e < 0 {
				addPred(state, -e)
			}
		}
		for nonTerm := 1; nonTerm < nonTermCount; nonTerm++ {
			if next := goTo[state*nonTermCount+nonTerm]; next != 0 {
				hasGoTo[nonTerm] = true
				addPred(state, next)
			}
		}
	}

	for state := 0; state < stateCount; state++ {
		var levels [][]int
		for term := 1; term < termCount; term++ {
			prod := action[state*termCount+term]
			if prod <= 0 || prod == syn.StartProduction {
				continue
			}
			lhs := syn.LHSSymbols[prod]
			if !hasGoTo[lhs] {
				return malformed("goto", "state %v reduces by production %v, but no state has a goto entry on non-terminal %v", state, prod, syn.NonTerminals[lhs])
			}
			k := syn.AlternativeSymbolCounts[prod]
			if levels == nil {
				levels = [][]int{{state}}
			}
			for len(levels) <= k {
				levels = append(levels, predecessors(preds, levels[len(levels)-1]))
			}
			for _, below := range levels[k] {
				if goTo[below*nonTermCount+lhs] == 0 {
					return malformed("goto", "state %v reduces by production %v, but state %v it may uncover has no goto entry on non-terminal %v", state, prod, below, syn.NonTerminals[lhs])
				}
			}
		}
	}
	return nil
}

func predecessors(preds [][]int, states []int) []int {
	seen := map[int]struct{}{}
	var ps []int
	for _, s := range states {
		for _, p := range preds[s] {
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			ps = append(ps, p)
		}
	}
	return ps
}

func expandTable(tab *spec.Table, rowCount, colCount int) ([]int, error) {
	if tab == nil {
		return nil, fmt.Errorf("the table is missing")
	}
	if tab.RowCount != rowCount || tab.ColCount != colCount {
		return nil, fmt.Errorf("invalid table size: want %vx%v, got %vx%v", rowCount, colCount, tab.RowCount, tab.ColCount)
	}

	var c compressor.Compressor
	switch tab.Compression {
	case spec.TableCompressionNone:
		if len(tab.Entries) != rowCount*colCount {
			return nil, fmt.Errorf("entry count mismatch: want %v, got %v", rowCount*colCount, len(tab.Entries))
		}
		return tab.Entries, nil
	case spec.TableCompressionUniqueEntries:
		if tab.UniqueEntries == nil {
			return nil, fmt.Errorf("the unique-entries table is missing")
		}
		c = tab.UniqueEntries
	case spec.TableCompressionRowDisplacement:
		if tab.RowDisplacement == nil {
			return nil, fmt.Errorf("the row displacement table is missing")
		}
		c = tab.RowDisplacement
	default:
		return nil, fmt.Errorf("unknown compression: %v", tab.Compression)
	}
	if r, col := c.OriginalTableSize(); r != rowCount || col != colCount {
		return nil, fmt.Errorf("invalid compressed table size: %vx%v", r, col)
	}
	return compressor.Decompress(c)
}

func (g *Grammar) Name() string {
	return g.name
}

// Action looks up the action of a state on a terminal.
func (g *Grammar) Action(state int, term Symbol) Action {
	if term < 0 || int(term) >= g.termCount {
		panic(fmt.Sprintf("not a terminal: %v", term))
	}
	e := g.action[state*g.termCount+int(term)]
	switch {
	case e < 0:
		return Action{
			Kind:  ActionShift,
			State: -e,
		}
	case e > 0:
		kind := ActionReduce
		if e == g.syn.StartProduction {
			kind = ActionAccept
		}
		return Action{
			Kind:              kind,
			Production:        e,
			Symbol:            g.lhs(e),
			ChildCount:        g.syn.AlternativeSymbolCounts[e],
			DynamicPrecedence: g.syn.DynamicPrecedences[e],
		}
	}
	return Action{}
}

// GoTo returns the state following a non-terminal, or -1 when there is none.
func (g *Grammar) GoTo(state int, nonTerm Symbol) int {
	n := int(nonTerm) - g.termCount
	if n <= 0 || n >= g.nonTermCount {
		panic(fmt.Sprintf("not a non-terminal: %v", nonTerm))
	}
	next := g.goTo[state*g.nonTermCount+n]
	if next == 0 {
		return -1
	}
	return next
}

func (g *Grammar) lhs(prod int) Symbol {
	return Symbol(g.termCount + g.syn.LHSSymbols[prod])
}

func (g *Grammar) Production(prod int) ProductionInfo {
	return ProductionInfo{
		LHS:               g.lhs(prod),
		ChildCount:        g.syn.AlternativeSymbolCounts[prod],
		DynamicPrecedence: g.syn.DynamicPrecedences[prod],
	}
}

func (g *Grammar) SymbolName(sym Symbol) string {
	return g.names[sym]
}

// SymbolByName finds a symbol. Terminal names shadow non-terminal ones.
func (g *Grammar) SymbolByName(name string) (Symbol, bool) {
	for sym, n := range g.names {
		if n == name && sym != 0 && sym != g.termCount {
			return Symbol(sym), true
		}
	}
	return SymbolNil, false
}

const SymbolNil = tree.SymbolNil

func (g *Grammar) IsTerminal(sym Symbol) bool {
	return sym >= 0 && int(sym) < g.termCount
}

// IsVisible reports whether nodes of a symbol appear in Children. Only auxiliary non-terminals are
// invisible.
func (g *Grammar) IsVisible(sym Symbol) bool {
	return g.visible[sym]
}

func (g *Grammar) IsAuxiliary(sym Symbol) bool {
	return !g.visible[sym]
}

// ExpectedTerminals returns the terminals a state has an action on, in ascending order.
func (g *Grammar) ExpectedTerminals(state int) []Symbol {
	return g.expected[state]
}

// LexMode returns the lex mode the lexer uses in a state.
func (g *Grammar) LexMode(state int) int {
	return g.lexer.Mode(state)
}

func (g *Grammar) StateCount() int {
	return g.stateCount
}

func (g *Grammar) TerminalCount() int {
	return g.termCount
}

func (g *Grammar) InitialState() int {
	return g.syn.InitialState
}

func (g *Grammar) EOF() Symbol {
	return Symbol(g.syn.EOFSymbol)
}

func (g *Grammar) ErrorSymbol() Symbol {
	return Symbol(g.syn.ErrorSymbol)
}

func (g *Grammar) Lexer() *lexer.Lexer {
	return g.lexer
}

// HasExternalScanner reports whether some terminals come from an external scanner.
func (g *Grammar) HasExternalScanner() bool {
	return g.external
}

func (g *Grammar) String() string {
	return fmt.Sprintf("%v: %v states, %v terminals, %v non-terminals", g.name, g.stateCount, g.termCount, g.nonTermCount)
}

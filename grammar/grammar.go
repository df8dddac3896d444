package grammar

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	mlcompiler "github.com/nihei9/maleeni/compiler"
	mlspec "github.com/nihei9/maleeni/spec"
	"github.com/nihei9/reparse/compressor"
	verr "github.com/nihei9/reparse/error"
	"github.com/nihei9/reparse/grammar/symbol"
	spec "github.com/nihei9/reparse/spec/grammar"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("reparse.grammar")

type assocType string

const (
	assocTypeNil   = assocType("")
	assocTypeLeft  = assocType("left")
	assocTypeRight = assocType("right")
)

func (a assocType) short() string {
	switch a {
	case assocTypeLeft:
		return "l"
	case assocTypeRight:
		return "r"
	}
	return ""
}

const (
	precNil = 0
	precMin = 1
)

// precAndAssoc represents precedence and associativities of terminal symbols and productions.
// We use the priority of the production to resolve shift/reduce conflicts.
type precAndAssoc struct {
	termPrec  map[symbol.SymbolNum]int
	termAssoc map[symbol.SymbolNum]assocType

	// prodPrec and prodAssoc are inherited from the right-most terminal symbols in the RHS of the
	// productions unless a production names its own terminal.
	prodPrec  map[productionNum]int
	prodAssoc map[productionNum]assocType
}

func (pa *precAndAssoc) terminalPrecedence(sym symbol.SymbolNum) int {
	return pa.termPrec[sym]
}

func (pa *precAndAssoc) terminalAssociativity(sym symbol.SymbolNum) assocType {
	return pa.termAssoc[sym]
}

func (pa *precAndAssoc) productionPrecedence(prod productionNum) int {
	return pa.prodPrec[prod]
}

func (pa *precAndAssoc) productionAssociativity(prod productionNum) assocType {
	return pa.prodAssoc[prod]
}

// defaultModeName is the lex mode of terminals that don't name any mode.
const defaultModeName = "default"

type terminal struct {
	name      string
	pattern   string
	modes     []string
	anonymous bool
	skip      bool
	external  bool
	row       int
}

type precLevel struct {
	assoc assocType
	terms []string
	row   int
}

// Rule is a production under construction. The methods return the receiver so calls can be chained.
type Rule struct {
	lhs     string
	rhs     []string
	prec    string
	dynPrec int
	row     int
}

// Prec makes the rule take the precedence of a terminal instead of its right-most terminal.
func (r *Rule) Prec(term string) *Rule {
	r.prec = term
	return r
}

// DynamicPrecedence is recorded on nodes reduced by the rule and favors the rule's derivations when the
// parser chooses between error repairs.
func (r *Rule) DynamicPrecedence(n int) *Rule {
	r.dynPrec = n
	return r
}

// Builder collects a grammar description. Errors are reported all at once by Build.
type Builder struct {
	name       string
	sourceName string
	terms      []*terminal
	rules      []*Rule
	precs      []*precLevel
	start      string
	scanner    string
}

func NewBuilder(name string) *Builder {
	return &Builder{
		name: name,
	}
}

// Terminal declares a terminal matching a maleeni regular expression. A terminal without modes belongs to
// the default mode.
func (b *Builder) Terminal(name, pattern string, modes ...string) *Builder {
	b.terms = append(b.terms, &terminal{
		name:    name,
		pattern: pattern,
		modes:   modes,
	})
	return b
}

// Literal declares a terminal named and matched by text.
func (b *Builder) Literal(text string, modes ...string) *Builder {
	b.terms = append(b.terms, &terminal{
		name:      text,
		pattern:   mlspec.EscapePattern(text),
		modes:     modes,
		anonymous: true,
	})
	return b
}

// Skip marks terminals as padding. They never reach the parser.
func (b *Builder) Skip(names ...string) *Builder {
	for _, name := range names {
		for _, t := range b.terms {
			if t.name == name {
				t.skip = true
			}
		}
	}
	return b
}

// External declares terminals produced by a scanner registered under the name scanner.
func (b *Builder) External(scanner string, names ...string) *Builder {
	b.scanner = scanner
	for _, name := range names {
		b.terms = append(b.terms, &terminal{
			name:     name,
			external: true,
		})
	}
	return b
}

// Left declares left-associative terminals. Each call of Left or Right opens a precedence level binding
// tighter than the previous ones.
func (b *Builder) Left(terms ...string) *Builder {
	b.precs = append(b.precs, &precLevel{assoc: assocTypeLeft, terms: terms})
	return b
}

func (b *Builder) Right(terms ...string) *Builder {
	b.precs = append(b.precs, &precLevel{assoc: assocTypeRight, terms: terms})
	return b
}

// Start sets the start symbol. The LHS of the first rule is used by default.
func (b *Builder) Start(name string) *Builder {
	b.start = name
	return b
}

// Rule adds a production. An empty rhs makes an empty production.
func (b *Builder) Rule(lhs string, rhs ...string) *Rule {
	r := &Rule{
		lhs: lhs,
		rhs: rhs,
	}
	b.rules = append(b.rules, r)
	return r
}

type Grammar struct {
	name                 string
	lexSpec              *mlspec.LexSpec
	terminals            map[symbol.Symbol]*terminal
	productionSet        *productionSet
	augmentedStartSymbol symbol.Symbol
	symbolTable          *symbol.SymbolTableReader
	precAndAssoc         *precAndAssoc
	scanner              string
}

func (b *Builder) specError(cause error, detail string, row int) *verr.SpecError {
	if detail != "" {
		cause = fmt.Errorf("%w: %v", cause, detail)
	}
	return &verr.SpecError{
		Cause:      cause,
		SourceName: b.sourceName,
		Row:        row,
	}
}

func (b *Builder) Build() (*Grammar, error) {
	var errs verr.SpecErrors
	if b.name == "" {
		errs = append(errs, b.specError(semErrNoGrammarName, "", 0))
	}
	if len(b.rules) == 0 {
		errs = append(errs, b.specError(semErrNoProduction, "", 0))
		return nil, errs
	}

	start := b.start
	if start == "" {
		start = b.rules[0].lhs
	}

	symTab := symbol.NewSymbolTable()
	w := symTab.Writer()
	if _, err := w.RegisterStartSymbol(start + "'"); err != nil {
		return nil, err
	}

	terms := map[symbol.Symbol]*terminal{}
	termByName := map[string]*terminal{}
	hasLexical := false
	for _, t := range b.terms {
		if t.name == symbol.SymbolNameError || t.name == symbol.SymbolNameEOF || strings.HasSuffix(t.name, "'") {
			errs = append(errs, b.specError(semErrReservedName, t.name, t.row))
			continue
		}
		if _, ok := termByName[t.name]; ok {
			errs = append(errs, b.specError(semErrDuplicateTerminal, t.name, t.row))
			continue
		}
		if !t.external && t.pattern == "" {
			errs = append(errs, b.specError(semErrEmptyPattern, t.name, t.row))
			continue
		}
		if t.external && (t.skip || len(t.modes) > 0) {
			errs = append(errs, b.specError(semErrExternalHasPattern, t.name, t.row))
			continue
		}
		sym, err := w.RegisterTerminalSymbol(t.name)
		if err != nil {
			return nil, err
		}
		terms[sym] = t
		termByName[t.name] = t
		if !t.external {
			hasLexical = true
		}
	}
	if !hasLexical {
		errs = append(errs, b.specError(semErrNoLexicalTerminal, "", 0))
	}

	for _, r := range b.rules {
		if _, ok := termByName[r.lhs]; ok || r.lhs == symbol.SymbolNameError {
			errs = append(errs, b.specError(semErrDuplicateName, r.lhs, r.row))
			continue
		}
		if _, err := w.RegisterNonTerminalSymbol(r.lhs); err != nil {
			errs = append(errs, b.specError(semErrDuplicateName, r.lhs, r.row))
		}
	}
	if len(errs) > 0 {
		return nil, errs
	}

	r := symTab.Reader()
	startSym, ok := r.ToSymbol(start)
	if !ok || !startSym.IsNonTerminal() {
		return nil, verr.SpecErrors{b.specError(semErrUndefinedSym, start, 0)}
	}

	prods := newProductionSet()
	{
		p, err := newProduction(symbol.SymbolStart, []symbol.Symbol{startSym})
		if err != nil {
			return nil, err
		}
		prods.append(p)
	}

	usedTerms := map[symbol.Symbol]struct{}{}
	for _, rule := range b.rules {
		lhs, _ := r.ToSymbol(rule.lhs)
		rhs := make([]symbol.Symbol, 0, len(rule.rhs))
		ok := true
		for _, e := range rule.rhs {
			sym, found := r.ToSymbol(e)
			if !found || sym == symbol.SymbolError || sym == symbol.SymbolEOF || sym.IsStart() {
				errs = append(errs, b.specError(semErrUndefinedSym, e, rule.row))
				ok = false
				continue
			}
			if sym.IsTerminal() {
				if terms[sym].skip {
					errs = append(errs, b.specError(semErrTermCannotBeSkipped, e, rule.row))
					ok = false
					continue
				}
				usedTerms[sym] = struct{}{}
			}
			rhs = append(rhs, sym)
		}
		if !ok {
			continue
		}

		p, err := newProduction(lhs, rhs)
		if err != nil {
			return nil, err
		}
		if rule.prec != "" {
			sym, found := r.ToSymbol(rule.prec)
			if !found || !sym.IsTerminal() {
				errs = append(errs, b.specError(semErrPrecNotTerminal, rule.prec, rule.row))
				continue
			}
			p.precSym = sym
		}
		p.dynPrec = rule.dynPrec
		if !prods.append(p) {
			errs = append(errs, b.specError(semErrDuplicateProduction, fmt.Sprintf("%v → %v", rule.lhs, strings.Join(rule.rhs, " ")), rule.row))
		}
	}

	for sym, t := range terms {
		if _, used := usedTerms[sym]; used || t.skip {
			continue
		}
		errs = append(errs, b.specError(semErrUnusedTerminal, t.name, t.row))
	}
	for _, nonTerm := range unreachableNonTerminals(prods, r) {
		name, _ := r.ToText(nonTerm)
		errs = append(errs, b.specError(semErrUnusedProduction, name, 0))
	}
	if len(errs) > 0 {
		sort.SliceStable(errs, func(i, j int) bool {
			return errs[i].Row < errs[j].Row
		})
		return nil, errs
	}

	pa, err := b.genPrecAndAssoc(r, prods)
	if err != nil {
		return nil, err
	}

	return &Grammar{
		name:                 b.name,
		lexSpec:              genLexSpec(b.name, r, terms),
		terminals:            terms,
		productionSet:        prods,
		augmentedStartSymbol: symbol.SymbolStart,
		symbolTable:          r,
		precAndAssoc:         pa,
		scanner:              b.scanner,
	}, nil
}

func unreachableNonTerminals(prods *productionSet, symTab *symbol.SymbolTableReader) []symbol.Symbol {
	reached := map[symbol.Symbol]struct{}{
		symbol.SymbolStart: {},
	}
	queue := []symbol.Symbol{symbol.SymbolStart}
	for len(queue) > 0 {
		sym := queue[0]
		queue = queue[1:]
		ps, _ := prods.findByLHS(sym)
		for _, p := range ps {
			for _, e := range p.rhs {
				if !e.IsNonTerminal() {
					continue
				}
				if _, ok := reached[e]; ok {
					continue
				}
				reached[e] = struct{}{}
				queue = append(queue, e)
			}
		}
	}

	var unreached []symbol.Symbol
	for _, sym := range symTab.NonTerminalSymbols() {
		if _, ok := reached[sym]; !ok {
			unreached = append(unreached, sym)
		}
	}
	return unreached
}

func (b *Builder) genPrecAndAssoc(symTab *symbol.SymbolTableReader, prods *productionSet) (*precAndAssoc, error) {
	termPrec := map[symbol.SymbolNum]int{}
	termAssoc := map[symbol.SymbolNum]assocType{}
	var errs verr.SpecErrors
	for i, level := range b.precs {
		for _, name := range level.terms {
			sym, ok := symTab.ToSymbol(name)
			if !ok || !sym.IsTerminal() {
				errs = append(errs, b.specError(semErrPrecNotTerminal, name, level.row))
				continue
			}
			if _, ok := termPrec[sym.Num()]; ok {
				errs = append(errs, b.specError(semErrDuplicatePrec, name, level.row))
				continue
			}
			termPrec[sym.Num()] = precMin + i
			termAssoc[sym.Num()] = level.assoc
		}
	}
	if len(errs) > 0 {
		return nil, errs
	}

	prodPrec := map[productionNum]int{}
	prodAssoc := map[productionNum]assocType{}
	for _, prod := range prods.getAllProductions() {
		precSym := prod.precSym
		if precSym.IsNil() {
			for i := len(prod.rhs) - 1; i >= 0; i-- {
				if prod.rhs[i].IsTerminal() {
					precSym = prod.rhs[i]
					break
				}
			}
		}
		if precSym.IsNil() {
			continue
		}
		if prec, ok := termPrec[precSym.Num()]; ok {
			prodPrec[prod.num] = prec
			prodAssoc[prod.num] = termAssoc[precSym.Num()]
		}
	}

	return &precAndAssoc{
		termPrec:  termPrec,
		termAssoc: termAssoc,
		prodPrec:  prodPrec,
		prodAssoc: prodAssoc,
	}, nil
}

// kindName names the lexical kind of a terminal. maleeni restricts the spelling of kind names, so the
// terminal number is used instead of the terminal name.
func kindName(sym symbol.Symbol) mlspec.LexKindName {
	return mlspec.LexKindName(fmt.Sprintf("t%v", sym.Num()))
}

func kindNameToTerminal(name string) (symbol.SymbolNum, bool) {
	if !strings.HasPrefix(name, "t") {
		return 0, false
	}
	n, err := strconv.Atoi(name[1:])
	if err != nil {
		return 0, false
	}
	return symbol.SymbolNum(n), true
}

func genLexSpec(name string, symTab *symbol.SymbolTableReader, terms map[symbol.Symbol]*terminal) *mlspec.LexSpec {
	var entries []*mlspec.LexEntry
	for _, sym := range symTab.TerminalSymbols() {
		t, ok := terms[sym]
		if !ok || t.external {
			continue
		}
		var modes []mlspec.LexModeName
		for _, m := range t.modes {
			modes = append(modes, mlspec.LexModeName(m))
		}
		entries = append(entries, &mlspec.LexEntry{
			Kind:    kindName(sym),
			Pattern: mlspec.LexPattern(t.pattern),
			Modes:   modes,
		})
	}
	return &mlspec.LexSpec{
		Name:    name,
		Entries: entries,
	}
}

type compileConfig struct {
	isReportingEnabled bool
	compressionLevel   int
}

type CompileOption func(config *compileConfig)

func EnableReporting() CompileOption {
	return func(config *compileConfig) {
		config.isReportingEnabled = true
	}
}

// TableCompression selects how the action and goto tables are stored. The default is the row displacement
// form.
func TableCompression(level int) CompileOption {
	return func(config *compileConfig) {
		config.compressionLevel = level
	}
}

func Compile(gram *Grammar, opts ...CompileOption) (*spec.CompiledGrammar, *spec.Report, error) {
	config := &compileConfig{
		compressionLevel: spec.TableCompressionRowDisplacement,
	}
	for _, opt := range opts {
		opt(config)
	}

	lexSpec, err, cErrs := mlcompiler.Compile(gram.lexSpec, mlcompiler.CompressionLevel(mlcompiler.CompressionLevelMax))
	if err != nil {
		if len(cErrs) > 0 {
			var errs verr.SpecErrors
			for _, cErr := range cErrs {
				errs = append(errs, gram.compileError(cErr))
			}
			return nil, nil, errs
		}
		return nil, nil, err
	}

	termCount := gram.symbolTable.TerminalCount()
	kind2Term := make([]int, len(lexSpec.KindNames))
	term2Kind := make([]int, termCount)
	skip := make([]int, len(lexSpec.KindNames))
	for i, k := range lexSpec.KindNames {
		if i == 0 {
			continue
		}
		num, ok := kindNameToTerminal(string(k))
		if !ok || num.Int() >= termCount {
			return nil, nil, fmt.Errorf("lexical kind '%v' doesn't denote a terminal", k)
		}
		kind2Term[i] = num.Int()
		term2Kind[num] = i
		if t := gram.terminalByNum(num); t != nil && t.skip {
			skip[i] = 1
		}
	}

	nonTerms, err := gram.symbolTable.NonTerminalTexts()
	if err != nil {
		return nil, nil, err
	}

	firstSet, err := genFirstSet(gram.productionSet)
	if err != nil {
		return nil, nil, err
	}

	lr0, err := genLR0Automaton(gram.productionSet, gram.augmentedStartSymbol)
	if err != nil {
		return nil, nil, err
	}

	lalr1, err := genLALR1Automaton(lr0, gram.productionSet, firstSet)
	if err != nil {
		return nil, nil, err
	}

	b := &lrTableBuilder{
		automaton:    lalr1.lr0Automaton,
		prods:        gram.productionSet,
		termCount:    termCount,
		nonTermCount: len(nonTerms),
		symTab:       gram.symbolTable,
		precAndAssoc: gram.precAndAssoc,
	}
	tab, err := b.build()
	if err != nil {
		return nil, nil, err
	}
	if len(b.conflicts) > 0 {
		log.Infof("%v: %v conflicts were resolved", gram.name, len(b.conflicts))
	}

	stateModes, stateModeNames := gram.genStateModes(tab, lexSpec)

	var report *spec.Report
	if config.isReportingEnabled {
		report, err = b.genReport(tab, gram, stateModeNames)
		if err != nil {
			return nil, nil, err
		}
	}

	action := make([]int, len(tab.actionTable))
	for i, e := range tab.actionTable {
		action[i] = int(e)
	}
	goTo := make([]int, len(tab.goToTable))
	for i, e := range tab.goToTable {
		goTo[i] = int(e)
	}
	actionTab, err := compressTable(action, tab.terminalCount, config.compressionLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to compress the action table: %w", err)
	}
	goToTab, err := compressTable(goTo, tab.nonTerminalCount, config.compressionLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to compress the goto table: %w", err)
	}

	prodCount := gram.productionSet.count()
	lhsSyms := make([]int, prodCount)
	altSymCounts := make([]int, prodCount)
	dynPrecs := make([]int, prodCount)
	for _, p := range gram.productionSet.getAllProductions() {
		lhsSyms[p.num] = p.lhs.Num().Int()
		altSymCounts[p.num] = p.rhsLen
		dynPrecs[p.num] = p.dynPrec
	}

	aux := make([]int, len(nonTerms))
	for i, name := range nonTerms {
		if symbol.IsAuxiliaryName(name) {
			aux[i] = 1
		}
	}

	var external *spec.ExternalSpec
	if gram.scanner != "" {
		external = &spec.ExternalSpec{
			Scanner: gram.scanner,
		}
		for _, sym := range gram.symbolTable.TerminalSymbols() {
			if t, ok := gram.terminals[sym]; ok && t.external {
				external.Terminals = append(external.Terminals, sym.Num().Int())
			}
		}
	}

	return &spec.CompiledGrammar{
		FormatVersion: spec.FormatVersion,
		Name:          gram.name,
		Lexical: &spec.LexicalSpec{
			Maleeni:        lexSpec,
			KindToTerminal: kind2Term,
			TerminalToKind: term2Kind,
			Skip:           skip,
			StateModes:     stateModes,
			External:       external,
		},
		Syntactic: &spec.SyntacticSpec{
			Action:                  actionTab,
			GoTo:                    goToTab,
			StateCount:              tab.stateCount,
			InitialState:            tab.InitialState.Int(),
			StartProduction:         productionNumStart.Int(),
			LHSSymbols:              lhsSyms,
			AlternativeSymbolCounts: altSymCounts,
			DynamicPrecedences:      dynPrecs,
			Terminals:               displayTerminalNames(gram.symbolTable),
			TerminalCount:           tab.terminalCount,
			NonTerminals:            nonTerms,
			NonTerminalCount:        tab.nonTerminalCount,
			AuxiliaryNonTerminals:   aux,
			EOFSymbol:               symbol.SymbolEOF.Num().Int(),
			ErrorSymbol:             symbol.SymbolError.Num().Int(),
		},
	}, report, nil
}

// displayTerminalNames returns the terminal names shown in trees. The reserved terminals get their bare
// names.
func displayTerminalNames(symTab *symbol.SymbolTableReader) []string {
	names := append([]string{}, symTab.TerminalTexts()...)
	names[symbol.SymbolEOF.Num()] = "end"
	names[symbol.SymbolError.Num()] = "ERROR"
	return names
}

func (g *Grammar) terminalByNum(num symbol.SymbolNum) *terminal {
	for sym, t := range g.terminals {
		if sym.Num() == num {
			return t
		}
	}
	return nil
}

// genStateModes picks a lex mode for each parse state: the lowest-numbered mode containing every terminal
// the state accepts. States whose terminals share no mode fall back to the default mode.
func (g *Grammar) genStateModes(tab *ParsingTable, lexSpec *mlspec.CompiledLexSpec) ([]int, []string) {
	modeIDs := map[string]int{}
	for id, name := range lexSpec.ModeNames {
		if id == 0 {
			continue
		}
		modeIDs[string(name)] = id
	}
	defaultMode := modeIDs[defaultModeName]

	termModes := map[symbol.SymbolNum][]int{}
	for sym, t := range g.terminals {
		if t.external {
			continue
		}
		if len(t.modes) == 0 {
			termModes[sym.Num()] = []int{defaultMode}
			continue
		}
		for _, m := range t.modes {
			termModes[sym.Num()] = append(termModes[sym.Num()], modeIDs[m])
		}
	}

	modes := make([]int, tab.stateCount)
	names := make([]string, tab.stateCount)
	for state := 0; state < tab.stateCount; state++ {
		var candidates map[int]struct{}
		for _, term := range tab.validTerminals(stateNum(state)) {
			ms, ok := termModes[term]
			if !ok {
				continue
			}
			next := map[int]struct{}{}
			for _, m := range ms {
				if _, ok := candidates[m]; candidates == nil || ok {
					next[m] = struct{}{}
				}
			}
			candidates = next
		}

		mode := defaultMode
		if len(candidates) > 0 {
			mode = -1
			for m := range candidates {
				if mode < 0 || m < mode {
					mode = m
				}
			}
		} else if candidates != nil {
			log.Warningf("%v: the terminals of state %v share no lex mode; the default mode is used", g.name, state)
		}
		modes[state] = mode
		names[state] = string(lexSpec.ModeNames[mode])
	}
	return modes, names
}

func compressTable(entries []int, colCount int, level int) (*spec.Table, error) {
	tab := &spec.Table{
		Compression: level,
		RowCount:    len(entries) / colCount,
		ColCount:    colCount,
	}
	switch level {
	case spec.TableCompressionNone:
		tab.Entries = entries
		return tab, nil
	case spec.TableCompressionUniqueEntries, spec.TableCompressionRowDisplacement:
	default:
		return nil, fmt.Errorf("unknown compression level: %v", level)
	}

	orig, err := compressor.NewOriginalTable(entries, colCount)
	if err != nil {
		return nil, err
	}
	if level == spec.TableCompressionUniqueEntries {
		ue := compressor.NewUniqueEntriesTable()
		if err := ue.Compress(orig); err != nil {
			return nil, err
		}
		tab.UniqueEntries = ue
		return tab, nil
	}
	rd := compressor.NewRowDisplacementTable(0)
	if err := rd.Compress(orig); err != nil {
		return nil, err
	}
	tab.RowDisplacement = rd
	return tab, nil
}

func (g *Grammar) compileError(cErr *mlcompiler.CompileError) *verr.SpecError {
	var b strings.Builder
	writeCompileError(&b, g, cErr)
	e := &verr.SpecError{
		Cause: fmt.Errorf("%v", b.String()),
	}
	if num, ok := kindNameToTerminal(string(cErr.Kind)); ok {
		if t := g.terminalByNum(num); t != nil {
			e.Row = t.row
		}
	}
	return e
}

func writeCompileError(w io.Writer, g *Grammar, cErr *mlcompiler.CompileError) {
	name := string(cErr.Kind)
	if num, ok := kindNameToTerminal(name); ok {
		if t := g.terminalByNum(num); t != nil {
			name = t.name
		}
	}
	if cErr.Fragment {
		fmt.Fprintf(w, "fragment ")
	}
	fmt.Fprintf(w, "%v: %v", name, cErr.Cause)
	if cErr.Detail != "" {
		fmt.Fprintf(w, ": %v", cErr.Detail)
	}
}

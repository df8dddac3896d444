package grammar

import (
	"fmt"
	"sort"

	"github.com/nihei9/reparse/grammar/symbol"
	spec "github.com/nihei9/reparse/spec/grammar"
)

type ActionType string

const (
	ActionTypeShift  = ActionType("shift")
	ActionTypeReduce = ActionType("reduce")
	ActionTypeError  = ActionType("error")
)

type actionEntry int

const actionEntryEmpty = actionEntry(0)

func newShiftActionEntry(state stateNum) actionEntry {
	return actionEntry(state * -1)
}

func newReduceActionEntry(prod productionNum) actionEntry {
	return actionEntry(prod)
}

func (e actionEntry) isEmpty() bool {
	return e == actionEntryEmpty
}

func (e actionEntry) describe() (ActionType, stateNum, productionNum) {
	if e == actionEntryEmpty {
		return ActionTypeError, stateNumInitial, productionNumNil
	}
	if e < 0 {
		return ActionTypeShift, stateNum(e * -1), productionNumNil
	}
	return ActionTypeReduce, stateNumInitial, productionNum(e)
}

type goToEntry uint

const goToEntryEmpty = goToEntry(0)

type conflict interface {
	conflict()
}

type shiftReduceConflict struct {
	state      stateNum
	sym        symbol.Symbol
	nextState  stateNum
	prodNum    productionNum
	resolvedBy string
}

func (c *shiftReduceConflict) conflict() {
}

type reduceReduceConflict struct {
	state      stateNum
	sym        symbol.Symbol
	prodNum1   productionNum
	prodNum2   productionNum
	resolvedBy string
}

func (c *reduceReduceConflict) conflict() {
}

var (
	_ conflict = &shiftReduceConflict{}
	_ conflict = &reduceReduceConflict{}
)

type ParsingTable struct {
	actionTable      []actionEntry
	goToTable        []goToEntry
	stateCount       int
	terminalCount    int
	nonTerminalCount int

	InitialState stateNum
}

func (t *ParsingTable) getAction(state stateNum, sym symbol.SymbolNum) (ActionType, stateNum, productionNum) {
	return t.actionTable[state.Int()*t.terminalCount+sym.Int()].describe()
}

func (t *ParsingTable) getGoTo(state stateNum, sym symbol.SymbolNum) (stateNum, bool) {
	e := t.goToTable[state.Int()*t.nonTerminalCount+sym.Int()]
	return stateNum(e), e != goToEntryEmpty
}

func (t *ParsingTable) readAction(state stateNum, sym symbol.Symbol) actionEntry {
	return t.actionTable[state.Int()*t.terminalCount+sym.Num().Int()]
}

func (t *ParsingTable) writeAction(state stateNum, sym symbol.Symbol, act actionEntry) {
	t.actionTable[state.Int()*t.terminalCount+sym.Num().Int()] = act
}

func (t *ParsingTable) writeGoTo(state stateNum, sym symbol.Symbol, nextState stateNum) {
	t.goToTable[state.Int()*t.nonTerminalCount+sym.Num().Int()] = goToEntry(nextState)
}

// validTerminals returns the terminals having a shift or reduce action in a state.
func (t *ParsingTable) validTerminals(state stateNum) []symbol.SymbolNum {
	var terms []symbol.SymbolNum
	for term := 1; term < t.terminalCount; term++ {
		if !t.actionTable[state.Int()*t.terminalCount+term].isEmpty() {
			terms = append(terms, symbol.SymbolNum(term))
		}
	}
	return terms
}

type lrTableBuilder struct {
	automaton    *lr0Automaton
	prods        *productionSet
	termCount    int
	nonTermCount int
	symTab       *symbol.SymbolTableReader
	precAndAssoc *precAndAssoc

	conflicts []conflict
}

func (b *lrTableBuilder) build() (*ParsingTable, error) {
	initialState := b.automaton.states[b.automaton.initialState]
	ptab := &ParsingTable{
		actionTable:      make([]actionEntry, len(b.automaton.states)*b.termCount),
		goToTable:        make([]goToEntry, len(b.automaton.states)*b.nonTermCount),
		stateCount:       len(b.automaton.states),
		terminalCount:    b.termCount,
		nonTerminalCount: b.nonTermCount,
		InitialState:     initialState.num,
	}

	for _, state := range b.automaton.orderedStates() {
		nextSyms := make([]symbol.Symbol, 0, len(state.next))
		for sym := range state.next {
			nextSyms = append(nextSyms, sym)
		}
		sort.Slice(nextSyms, func(i, j int) bool {
			return nextSyms[i] < nextSyms[j]
		})
		for _, sym := range nextSyms {
			nextState := b.automaton.states[state.next[sym]]
			if sym.IsTerminal() {
				b.writeShiftAction(ptab, state.num, sym, nextState.num)
			} else {
				ptab.writeGoTo(state.num, sym, nextState.num)
			}
		}

		// Reductions are written in production order so conflict reports don't depend on map iteration.
		for _, prod := range b.prods.getAllProductions() {
			if _, ok := state.reducible[prod.id]; !ok {
				continue
			}

			var reducibleItem *lrItem
			for _, item := range state.items {
				if item.prod == prod.id && item.reducible {
					reducibleItem = item
					break
				}
			}
			if reducibleItem == nil {
				for _, item := range state.emptyProdItems {
					if item.prod == prod.id {
						reducibleItem = item
						break
					}
				}
				if reducibleItem == nil {
					return nil, fmt.Errorf("reducible item not found; state: %v, production: %v", state.num, prod.num)
				}
			}

			lookAhead := make([]symbol.Symbol, 0, len(reducibleItem.lookAhead.symbols))
			for a := range reducibleItem.lookAhead.symbols {
				lookAhead = append(lookAhead, a)
			}
			sort.Slice(lookAhead, func(i, j int) bool {
				return lookAhead[i] < lookAhead[j]
			})
			for _, a := range lookAhead {
				b.writeReduceAction(ptab, state.num, a, prod.num)
			}
		}
	}

	return ptab, nil
}

// writeShiftAction writes a shift action to the parsing table. When a shift/reduce conflict occurred,
// precedence and associativity decide it, and the shift wins when they can't.
func (b *lrTableBuilder) writeShiftAction(tab *ParsingTable, state stateNum, sym symbol.Symbol, nextState stateNum) {
	act := tab.readAction(state, sym)
	if !act.isEmpty() {
		ty, _, p := act.describe()
		if ty == ActionTypeReduce {
			act, method := b.resolveSRConflict(sym.Num(), p)
			b.conflicts = append(b.conflicts, &shiftReduceConflict{
				state:      state,
				sym:        sym,
				nextState:  nextState,
				prodNum:    p,
				resolvedBy: method,
			})
			if act == ActionTypeShift {
				tab.writeAction(state, sym, newShiftActionEntry(nextState))
			}
			return
		}
	}
	tab.writeAction(state, sym, newShiftActionEntry(nextState))
}

// writeReduceAction writes a reduce action to the parsing table. A reduce/reduce conflict is resolved in
// favor of the production defined earlier.
func (b *lrTableBuilder) writeReduceAction(tab *ParsingTable, state stateNum, sym symbol.Symbol, prod productionNum) {
	act := tab.readAction(state, sym)
	if act.isEmpty() {
		tab.writeAction(state, sym, newReduceActionEntry(prod))
		return
	}

	ty, s, p := act.describe()
	switch ty {
	case ActionTypeReduce:
		if p == prod {
			return
		}

		b.conflicts = append(b.conflicts, &reduceReduceConflict{
			state:      state,
			sym:        sym,
			prodNum1:   p,
			prodNum2:   prod,
			resolvedBy: spec.ResolvedByProdOrder,
		})
		if prod < p {
			tab.writeAction(state, sym, newReduceActionEntry(prod))
		}
	case ActionTypeShift:
		act, method := b.resolveSRConflict(sym.Num(), prod)
		b.conflicts = append(b.conflicts, &shiftReduceConflict{
			state:      state,
			sym:        sym,
			nextState:  s,
			prodNum:    prod,
			resolvedBy: method,
		})
		if act == ActionTypeReduce {
			tab.writeAction(state, sym, newReduceActionEntry(prod))
		}
	}
}

// resolveSRConflict compares the precedence of a look-ahead terminal and a production. A greater
// precedence binds tighter.
func (b *lrTableBuilder) resolveSRConflict(sym symbol.SymbolNum, prod productionNum) (ActionType, string) {
	symPrec := b.precAndAssoc.terminalPrecedence(sym)
	prodPrec := b.precAndAssoc.productionPrecedence(prod)
	if symPrec == precNil || prodPrec == precNil {
		return ActionTypeShift, spec.ResolvedByShift
	}
	if symPrec == prodPrec {
		if b.precAndAssoc.productionAssociativity(prod) == assocTypeLeft {
			return ActionTypeReduce, spec.ResolvedByAssoc
		}
		return ActionTypeShift, spec.ResolvedByAssoc
	}
	if symPrec > prodPrec {
		return ActionTypeShift, spec.ResolvedByPrec
	}
	return ActionTypeReduce, spec.ResolvedByPrec
}

func (b *lrTableBuilder) genReport(tab *ParsingTable, gram *Grammar, lexModes []string) (*spec.Report, error) {
	terms := make([]*spec.Terminal, b.termCount)
	for _, sym := range b.symTab.TerminalSymbols() {
		name, ok := b.symTab.ToText(sym)
		if !ok {
			return nil, fmt.Errorf("failed to generate terminals: symbol not found: %v", sym)
		}

		term := &spec.Terminal{
			Number:     sym.Num().Int(),
			Name:       name,
			Precedence: b.precAndAssoc.terminalPrecedence(sym.Num()),
		}
		if t, ok := gram.terminals[sym]; ok {
			term.Anonymous = t.anonymous
			term.Pattern = t.pattern
			term.Skip = t.skip
			term.External = t.external
		}
		term.Associativity = b.precAndAssoc.terminalAssociativity(sym.Num()).short()

		terms[sym.Num()] = term
	}

	nonTerms := make([]*spec.NonTerminal, b.nonTermCount)
	for _, sym := range b.symTab.NonTerminalSymbols() {
		name, ok := b.symTab.ToText(sym)
		if !ok {
			return nil, fmt.Errorf("failed to generate non-terminals: symbol not found: %v", sym)
		}

		nonTerms[sym.Num()] = &spec.NonTerminal{
			Number:    sym.Num().Int(),
			Name:      name,
			Auxiliary: symbol.IsAuxiliaryName(name),
		}
	}

	prods := make([]*spec.Production, b.prods.count())
	for _, p := range b.prods.getAllProductions() {
		rhs := make([]int, len(p.rhs))
		for i, e := range p.rhs {
			if e.IsTerminal() {
				rhs[i] = e.Num().Int()
			} else {
				rhs[i] = e.Num().Int() * -1
			}
		}

		prods[p.num.Int()] = &spec.Production{
			Number:            p.num.Int(),
			LHS:               p.lhs.Num().Int(),
			RHS:               rhs,
			Precedence:        b.precAndAssoc.productionPrecedence(p.num),
			Associativity:     b.precAndAssoc.productionAssociativity(p.num).short(),
			DynamicPrecedence: p.dynPrec,
		}
	}

	srConflicts := map[stateNum][]*shiftReduceConflict{}
	rrConflicts := map[stateNum][]*reduceReduceConflict{}
	for _, con := range b.conflicts {
		switch c := con.(type) {
		case *shiftReduceConflict:
			srConflicts[c.state] = append(srConflicts[c.state], c)
		case *reduceReduceConflict:
			rrConflicts[c.state] = append(rrConflicts[c.state], c)
		}
	}

	states := make([]*spec.State, len(b.automaton.states))
	for _, s := range b.automaton.orderedStates() {
		kernel := make([]*spec.Item, len(s.items))
		for i, item := range s.items {
			p, ok := b.prods.findByID(item.prod)
			if !ok {
				return nil, fmt.Errorf("failed to generate states: production of kernel item not found: %v", item.prod)
			}

			kernel[i] = &spec.Item{
				Production: p.num.Int(),
				Dot:        item.dot,
			}
		}
		sort.Slice(kernel, func(i, j int) bool {
			if kernel[i].Production != kernel[j].Production {
				return kernel[i].Production < kernel[j].Production
			}
			return kernel[i].Dot < kernel[j].Dot
		})

		var shift []*spec.Transition
		var reduce []*spec.Reduce
		var goTo []*spec.Transition
	TERMINALS_LOOP:
		for _, t := range b.symTab.TerminalSymbols() {
			act, next, prod := tab.getAction(s.num, t.Num())
			switch act {
			case ActionTypeShift:
				shift = append(shift, &spec.Transition{
					Symbol: t.Num().Int(),
					State:  next.Int(),
				})
			case ActionTypeReduce:
				for _, r := range reduce {
					if r.Production == prod.Int() {
						r.LookAhead = append(r.LookAhead, t.Num().Int())
						continue TERMINALS_LOOP
					}
				}
				reduce = append(reduce, &spec.Reduce{
					LookAhead:  []int{t.Num().Int()},
					Production: prod.Int(),
				})
			}
		}
		for _, n := range b.symTab.NonTerminalSymbols() {
			if next, ok := tab.getGoTo(s.num, n.Num()); ok {
				goTo = append(goTo, &spec.Transition{
					Symbol: n.Num().Int(),
					State:  next.Int(),
				})
			}
		}
		sort.Slice(shift, func(i, j int) bool {
			return shift[i].State < shift[j].State
		})
		sort.Slice(reduce, func(i, j int) bool {
			return reduce[i].Production < reduce[j].Production
		})
		sort.Slice(goTo, func(i, j int) bool {
			return goTo[i].State < goTo[j].State
		})

		sr := []*spec.SRConflict{}
		for _, c := range srConflicts[s.num] {
			conflict := &spec.SRConflict{
				Symbol:     c.sym.Num().Int(),
				State:      c.nextState.Int(),
				Production: c.prodNum.Int(),
				ResolvedBy: c.resolvedBy,
			}
			ty, next, p := tab.getAction(s.num, c.sym.Num())
			switch ty {
			case ActionTypeShift:
				n := next.Int()
				conflict.AdoptedState = &n
			case ActionTypeReduce:
				n := p.Int()
				conflict.AdoptedProduction = &n
			}
			sr = append(sr, conflict)
		}
		sort.SliceStable(sr, func(i, j int) bool {
			return sr[i].Symbol < sr[j].Symbol
		})

		rr := []*spec.RRConflict{}
		for _, c := range rrConflicts[s.num] {
			_, _, p := tab.getAction(s.num, c.sym.Num())
			rr = append(rr, &spec.RRConflict{
				Symbol:            c.sym.Num().Int(),
				Production1:       c.prodNum1.Int(),
				Production2:       c.prodNum2.Int(),
				AdoptedProduction: p.Int(),
				ResolvedBy:        c.resolvedBy,
			})
		}
		sort.SliceStable(rr, func(i, j int) bool {
			return rr[i].Symbol < rr[j].Symbol
		})

		states[s.num.Int()] = &spec.State{
			Number:     s.num.Int(),
			LexMode:    lexModes[s.num.Int()],
			Kernel:     kernel,
			Shift:      shift,
			Reduce:     reduce,
			GoTo:       goTo,
			SRConflict: sr,
			RRConflict: rr,
		}
	}

	return &spec.Report{
		Name:         gram.name,
		Terminals:    terms,
		NonTerminals: nonTerms,
		Productions:  prods,
		States:       states,
	}, nil
}

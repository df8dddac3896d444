package parser

import (
	"container/heap"
	"fmt"
	"strings"
)

// maxSearchNodes bounds the number of candidate repairs one recovery examines.
const maxSearchNodes = 4096

// maxSimulationSteps bounds the actions simulating one candidate performs.
const maxSimulationSteps = 1024

type repairKind int

const (
	repairInsert repairKind = iota
	repairDelete
	repairUnwind
)

// repair is one edit of the parse error recovery makes. at is the number of tokens the simulation had
// consumed when the repair was made.
type repair struct {
	kind  repairKind
	at    int
	sym   Symbol
	depth int
}

func (r repair) String() string {
	switch r.kind {
	case repairInsert:
		return fmt.Sprintf("insert %v", r.sym)
	case repairDelete:
		return "delete"
	}
	return fmt.Sprintf("unwind %v", r.depth)
}

// candidate is a simulated parser configuration reached by a sequence of repairs.
type candidate struct {
	states   []int
	offset   int
	consumed int
	cost     int
	dynPrec  int
	repairs  []repair
	seq      int

	// pending is the token read but not consumed yet.
	pending *lookahead

	// noExternalAt mirrors tokenStream.noExternalAt.
	noExternalAt int
}

func (c *candidate) top() int {
	return c.states[len(c.states)-1]
}

func (c *candidate) derive(seq int) *candidate {
	d := *c
	d.states = append(make([]int, 0, len(c.states)+4), c.states...)
	d.repairs = append(make([]repair, 0, len(c.repairs)+1), c.repairs...)
	d.seq = seq
	return &d
}

type candidateHeap []*candidate

func (h candidateHeap) Len() int {
	return len(h)
}

func (h candidateHeap) Less(i, j int) bool {
	if h[i].cost != h[j].cost {
		return h[i].cost < h[j].cost
	}
	return h[i].seq < h[j].seq
}

func (h candidateHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
}

func (h *candidateHeap) Push(x any) {
	*h = append(*h, x.(*candidate))
}

func (h *candidateHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return x
}

// better reports whether candidate a is preferred over b. Both have the same cost.
func better(a, b *candidate) bool {
	for i := 0; i < len(a.repairs) && i < len(b.repairs); i++ {
		if a.repairs[i].kind != b.repairs[i].kind {
			return a.repairs[i].kind < b.repairs[i].kind
		}
	}
	if len(a.repairs) != len(b.repairs) {
		return len(a.repairs) < len(b.repairs)
	}
	if a.dynPrec != b.dynPrec {
		return a.dynPrec > b.dynPrec
	}
	// Repairs made further ahead keep more of the tokens next to the error.
	for i := range a.repairs {
		if a.repairs[i].at != b.repairs[i].at {
			return a.repairs[i].at > b.repairs[i].at
		}
	}
	for i := range a.repairs {
		ra, rb := a.repairs[i], b.repairs[i]
		if ra.sym != rb.sym {
			return ra.sym < rb.sym
		}
		if ra.depth != rb.depth {
			return ra.depth < rb.depth
		}
	}
	return a.seq < b.seq
}

type simResult int

const (
	simGoal simResult = iota
	simError
	simDead
)

// simulator runs the automaton over stack states only, without building subtrees.
type simulator struct {
	gram   *Grammar
	tokens *tokenStream
	window int
}

// lex returns the next token of a candidate. A token stays the lookahead until it is consumed, as it does
// for the parser.
func (s *simulator) lex(c *candidate) *lookahead {
	if c.pending != nil {
		return c.pending
	}
	saved := s.tokens.noExternalAt
	s.tokens.noExternalAt = c.noExternalAt
	tok := s.tokens.lexAt(c.offset, c.top())
	s.tokens.noExternalAt = saved
	c.pending = tokenToLookahead(tok, c.top(), s.gram)
	return c.pending
}

// run advances a candidate until it consumes the window, accepts, or hits an error. On an error it returns
// the offending token.
func (s *simulator) run(c *candidate) (simResult, *lookahead) {
	for step := 0; step < maxSimulationSteps; step++ {
		if c.consumed >= s.window {
			return simGoal, nil
		}
		la := s.lex(c)
		act := s.gram.Action(c.top(), la.sym)
		switch act.Kind {
		case ActionShift:
			c.states = append(c.states, act.State)
			c.offset = la.end
			c.consumed++
			c.pending = nil
		case ActionReduce:
			if !s.reduce(c, act) {
				return simDead, nil
			}
		case ActionAccept:
			return simGoal, nil
		default:
			return simError, la
		}
	}
	return simDead, nil
}

func (s *simulator) reduce(c *candidate, act Action) bool {
	if act.ChildCount >= len(c.states) {
		return false
	}
	c.states = c.states[:len(c.states)-act.ChildCount]
	next := s.gram.GoTo(c.top(), act.Symbol)
	if next < 0 {
		return false
	}
	c.states = append(c.states, next)
	c.dynPrec += act.DynamicPrecedence
	return true
}

// insert shifts a zero-width terminal, reducing as the terminal demands first.
func (s *simulator) insert(c *candidate, sym Symbol) bool {
	for step := 0; step < maxSimulationSteps; step++ {
		act := s.gram.Action(c.top(), sym)
		switch act.Kind {
		case ActionShift:
			c.states = append(c.states, act.State)
			return true
		case ActionReduce:
			if !s.reduce(c, act) {
				return false
			}
		default:
			return false
		}
	}
	return false
}

// searchRepair looks for the cheapest repair sequence letting the parser consume the next window of tokens
// from the error point. It returns false when no sequence within the cost limit works.
func (p *parse) searchRepair() ([]repair, bool) {
	sim := &simulator{
		gram:   p.gram,
		tokens: p.tokens,
		window: p.cfg.recoveryWindow,
	}

	init := &candidate{
		states:       make([]int, 0, len(p.stack)),
		offset:       p.la.start,
		pending:      p.la,
		noExternalAt: p.tokens.noExternalAt,
	}
	for _, e := range p.stack {
		if e.sub != nil && e.sub.IsExtra() {
			continue
		}
		init.states = append(init.states, e.state)
	}

	h := &candidateHeap{init}
	seq := 1
	var best *candidate
	for pops := 0; h.Len() > 0 && pops < maxSearchNodes; pops++ {
		c := heap.Pop(h).(*candidate)
		if best != nil && c.cost > best.cost {
			break
		}

		res, la := sim.run(c)
		switch res {
		case simGoal:
			if best == nil || better(c, best) {
				best = c
			}
			continue
		case simDead:
			continue
		}
		if c.cost+1 > p.cfg.maxRepairCost || best != nil {
			continue
		}

		for _, sym := range p.gram.ExpectedTerminals(c.top()) {
			if sym == p.gram.EOF() || sym == p.gram.ErrorSymbol() {
				continue
			}
			d := c.derive(seq)
			if !sim.insert(d, sym) {
				continue
			}
			seq++
			d.cost++
			d.repairs = append(d.repairs, repair{
				kind: repairInsert,
				at:   c.consumed,
				sym:  sym,
			})
			heap.Push(h, d)
		}

		if !la.eof {
			d := c.derive(seq)
			seq++
			d.cost++
			d.repairs = append(d.repairs, repair{
				kind: repairDelete,
				at:   c.consumed,
			})
			if la.end == la.start {
				d.noExternalAt = la.start
			}
			d.offset = la.end
			d.consumed++
			d.pending = nil
			heap.Push(h, d)
		}

		for k := 1; k < len(c.states); k++ {
			below := c.states[len(c.states)-1-k]
			if p.gram.Action(below, la.sym).Kind == ActionError {
				continue
			}
			d := c.derive(seq)
			seq++
			d.cost++
			d.states = d.states[:len(d.states)-k]
			d.repairs = append(d.repairs, repair{
				kind:  repairUnwind,
				at:    c.consumed,
				depth: k,
			})
			heap.Push(h, d)
		}
	}
	if best == nil {
		return nil, false
	}

	var committed []repair
	for _, r := range best.repairs {
		if r.at > 0 {
			break
		}
		committed = append(committed, r)
	}
	return committed, true
}

func formatRepairs(rs []repair) string {
	var b strings.Builder
	for i, r := range rs {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(r.String())
	}
	return b.String()
}

package parser

import (
	"context"
	"fmt"

	"github.com/tliron/commonlog"

	verr "github.com/nihei9/reparse/error"
	"github.com/nihei9/reparse/tree"
)

var log = commonlog.GetLogger("reparse.parser")

const (
	defaultRecoveryWindow = 3
	defaultMaxRepairCost  = 3
	defaultMaxRecoveries  = 64
)

type parserConfig struct {
	recoveryWindow int
	maxRepairCost  int
	maxRecoveries  int
	maxSteps       int
	log            commonlog.Logger
}

type ParserOption func(c *parserConfig)

// RecoveryWindow sets the number of tokens a repair must let the parser consume to be accepted.
func RecoveryWindow(n int) ParserOption {
	return func(c *parserConfig) {
		if n > 0 {
			c.recoveryWindow = n
		}
	}
}

// MaxRepairCost sets the number of insertions, deletions and unwindings one recovery may combine.
func MaxRepairCost(n int) ParserOption {
	return func(c *parserConfig) {
		if n > 0 {
			c.maxRepairCost = n
		}
	}
}

// MaxRecoveries sets the number of recoveries one parse may perform. Once they run out, the rest of the
// input becomes one error node.
func MaxRecoveries(n int) ParserOption {
	return func(c *parserConfig) {
		if n >= 0 {
			c.maxRecoveries = n
		}
	}
}

// MaxSteps limits the number of shifts and reductions one parse may perform. 0 means no limit.
func MaxSteps(n int) ParserOption {
	return func(c *parserConfig) {
		c.maxSteps = n
	}
}

func Logger(l commonlog.Logger) ParserOption {
	return func(c *parserConfig) {
		if l != nil {
			c.log = l
		}
	}
}

// Stats describes the last parse a parser performed.
type Stats struct {
	// Reused is the number of subtrees taken over from the old tree, and ReusedBytes the bytes they cover.
	Reused      int
	ReusedBytes int

	// Lexed is the number of tokens the lexer produced.
	Lexed int

	Recoveries int
	Steps      int
}

// Parser parses texts with one grammar. A parser must not be used by several goroutines at once; the
// grammar can be shared by any number of parsers.
type Parser struct {
	gram  *Grammar
	cfg   parserConfig
	stats Stats
}

func NewParser(g *Grammar, opts ...ParserOption) *Parser {
	p := &Parser{
		gram: g,
		cfg: parserConfig{
			recoveryWindow: defaultRecoveryWindow,
			maxRepairCost:  defaultMaxRepairCost,
			maxRecoveries:  defaultMaxRecoveries,
			log:            log,
		},
	}
	for _, opt := range opts {
		opt(&p.cfg)
	}
	return p
}

func (p *Parser) Grammar() *Grammar {
	return p.gram
}

// LastStats returns the statistics of the last Parse or Reparse.
func (p *Parser) LastStats() Stats {
	return p.stats
}

// Parse parses a text. Syntax errors are part of the tree. The error is non-nil only when ctx is done or
// the step budget runs out; the tree is then partial, with the unparsed rest of the text in one error node.
func (p *Parser) Parse(ctx context.Context, src []byte) (*tree.Tree, error) {
	return p.parse(ctx, src, nil, nil)
}

// Reparse parses a text made by applying edits to the text old was parsed from. Subtrees of old the edits
// do not affect become part of the new tree. old stays valid and must be released separately.
func (p *Parser) Reparse(ctx context.Context, old *tree.Tree, edits []tree.Edit, src []byte) (*tree.Tree, error) {
	if old == nil || old.RootSubtree() == nil {
		return p.Parse(ctx, src)
	}
	es, err := newEditSet(old.Len(), edits, len(src))
	if err != nil {
		return nil, err
	}
	if old.Len() == 0 || old.Language() != tree.Language(p.gram) {
		return p.Parse(ctx, src)
	}
	return p.parse(ctx, src, old, es)
}

func (p *Parser) parse(ctx context.Context, src []byte, old *tree.Tree, edits *editSet) (*tree.Tree, error) {
	alloc := tree.NewAllocator()
	ps := &parse{
		ctx:    ctx,
		cfg:    &p.cfg,
		gram:   p.gram,
		src:    src,
		alloc:  alloc,
		tokens: newTokenStream(p.gram, src),
	}
	if old != nil {
		ps.reuse = newReuseCursor(old, edits)
	}

	root, err := ps.run()

	p.stats = Stats{
		Reused:      ps.reused,
		ReusedBytes: ps.reusedBytes,
		Lexed:       ps.tokens.lexed,
		Recoveries:  ps.recoveries,
		Steps:       ps.steps,
	}
	if old != nil {
		p.cfg.log.Debugf("reparse: %v edit regions, %v subtrees (%v bytes) reused, %v tokens lexed", edits.count(), ps.reused, ps.reusedBytes, ps.tokens.lexed)
	} else {
		p.cfg.log.Debugf("parse: %v tokens lexed, %v recoveries", ps.tokens.lexed, ps.recoveries)
	}

	return tree.NewTree(root, len(src), p.gram, alloc), err
}

type stackEntry struct {
	state int
	sub   *tree.Subtree

	// end is the offset where the text of the subtree ends.
	end int
}

// parse is the state of one Parse or Reparse call.
type parse struct {
	ctx    context.Context
	cfg    *parserConfig
	gram   *Grammar
	src    []byte
	alloc  *tree.Allocator
	tokens *tokenStream
	reuse  *reuseCursor
	stack  []stackEntry
	la     *lookahead

	// recovering is true while repairs are applied. The nodes built meanwhile are fragile.
	recovering bool

	recoveries int
	steps      int

	reused      int
	reusedBytes int

	// reductions counts the reductions since the last push, and pushedHeight is the stack height the push
	// left.
	reductions   int
	pushedHeight int
}

func (p *parse) run() (*tree.Subtree, error) {
	p.stack = append(p.stack, stackEntry{
		state: p.gram.InitialState(),
	})
	p.pushedHeight = 1

ACTION_LOOP:
	for {
		if p.reuse != nil && p.reuseNode() {
			continue ACTION_LOOP
		}
		if p.la == nil {
			p.la = p.tokens.next(p.top().end, p.top().state)
		}

		act := p.gram.Action(p.top().state, p.la.sym)
		switch act.Kind {
		case ActionShift:
			if err := p.step(); err != nil {
				return p.abort(), err
			}
			p.shift(act.State)
		case ActionReduce:
			if err := p.step(); err != nil {
				return p.abort(), err
			}
			if !p.reduce(act) || p.reductions > p.gram.StateCount()*(p.pushedHeight+1) {
				p.cfg.log.Errorf("the table cannot go on in state %v on %v; the rest of the input becomes an error", p.top().state, p.gram.SymbolName(p.la.sym))
				return p.abort(), nil
			}
		case ActionAccept:
			return p.accept(), nil
		default:
			if root, done := p.recover(); done {
				return root, nil
			}
		}
	}
}

// step counts an action and checks whether the parse may go on.
func (p *parse) step() error {
	p.steps++
	if p.cfg.maxSteps > 0 && p.steps > p.cfg.maxSteps {
		return fmt.Errorf("%w: %v steps", verr.ErrStepBudgetExceeded, p.cfg.maxSteps)
	}
	return p.ctx.Err()
}

func (p *parse) top() stackEntry {
	return p.stack[len(p.stack)-1]
}

func (p *parse) push(state int, sub *tree.Subtree, end int) {
	p.reductions = 0
	p.pushedHeight = len(p.stack) + 1
	p.stack = append(p.stack, stackEntry{
		state: state,
		sub:   sub,
		end:   end,
	})
}

func (p *parse) shift(next int) {
	leaf := p.la.toLeaf(p.alloc, p.top().state, 0)
	p.push(next, leaf, p.la.end)
	p.la = nil
}

// reduce pops the children of a production, together with the extras among them, and pushes the node made
// of them. Extras on top of the stack stay above the new node. It returns false, leaving the stack as it is,
// when the table has no goto entry for the production.
func (p *parse) reduce(act Action) bool {
	i := len(p.stack)
	for i > 1 && p.stack[i-1].sub.IsExtra() {
		i--
	}
	j := i
	for n := act.ChildCount; n > 0 && j > 1; {
		j--
		if !p.stack[j].sub.IsExtra() {
			n--
		}
	}

	children := make([]*tree.Subtree, 0, i-j)
	for _, e := range p.stack[j:i] {
		children = append(children, e.sub)
	}
	below := p.stack[j-1]
	next := p.gram.GoTo(below.state, act.Symbol)
	if next < 0 {
		return false
	}
	end := below.end
	if i > j {
		end = p.stack[i-1].end
	}
	var flags tree.Flags
	if p.recovering {
		flags = tree.FlagFragile
	}
	node := p.alloc.NewNode(tree.NodeParams{
		Symbol:            act.Symbol,
		Production:        act.Production,
		Children:          children,
		Flags:             flags,
		PreState:          below.state,
		DynamicPrecedence: act.DynamicPrecedence,
		Lookahead:         p.la.depEnd - end,
	})
	trailing := append([]stackEntry(nil), p.stack[i:]...)
	p.stack = append(p.stack[:j], stackEntry{
		state: next,
		sub:   node,
		end:   end,
	})
	for _, e := range trailing {
		e.state = next
		p.stack = append(p.stack, e)
	}
	p.reductions++
	return true
}

// accept makes the root. Extras around the start symbol become children of the root.
func (p *parse) accept() *tree.Subtree {
	entries := p.stack[1:]
	var start *tree.Subtree
	count := 0
	for _, e := range entries {
		if !e.sub.IsExtra() {
			start = e.sub
			count++
		}
	}
	if count != 1 || start.IsLeaf() {
		return p.errorRoot()
	}
	if len(entries) == 1 {
		return start
	}

	var children []*tree.Subtree
	for _, e := range entries {
		if e.sub == start {
			children = append(children, start.Children()...)
			continue
		}
		children = append(children, e.sub)
	}
	dynPrec := start.DynamicPrecedence()
	for _, c := range start.Children() {
		dynPrec -= c.DynamicPrecedence()
	}
	return p.alloc.NewNode(tree.NodeParams{
		Symbol:            start.Symbol(),
		Production:        start.Production(),
		Children:          children,
		Flags:             start.Flags() & tree.FlagFragile,
		PreState:          start.PreState(),
		DynamicPrecedence: dynPrec,
		Lookahead:         p.la.depEnd - p.top().end,
	})
}

// errorRoot makes an error node of everything on the stack.
func (p *parse) errorRoot() *tree.Subtree {
	children := make([]*tree.Subtree, 0, len(p.stack)-1)
	for _, e := range p.stack[1:] {
		children = append(children, e.sub)
	}
	return p.alloc.NewNode(tree.NodeParams{
		Symbol:    p.gram.ErrorSymbol(),
		Children:  children,
		Flags:     tree.FlagError | tree.FlagFragile,
		PreState:  p.gram.InitialState(),
		Lookahead: len(p.src) + 1 - p.top().end,
	})
}

// abort ends the parse early, putting the text not parsed yet into one error node.
func (p *parse) abort() *tree.Subtree {
	p.skipRest()
	return p.errorRoot()
}

func (p *parse) skipRest() {
	top := p.top()
	if top.end >= len(p.src) {
		return
	}
	leaf := p.alloc.NewLeaf(tree.LeafParams{
		Symbol:   p.gram.ErrorSymbol(),
		Size:     len(p.src) - top.end,
		Flags:    tree.FlagError | tree.FlagExtra | tree.FlagFragile,
		PreState: top.state,
		LexState: -1,
	})
	p.push(top.state, leaf, len(p.src))
	p.la = nil
}

// recover repairs the input at a syntax error. It returns the root when the parse cannot go on.
func (p *parse) recover() (*tree.Subtree, bool) {
	if p.recoveries >= p.cfg.maxRecoveries {
		p.cfg.log.Debugf("recovery limit reached at %v", p.la.start)
		p.skipRest()
		return p.errorRoot(), true
	}
	p.recoveries++

	repairs, ok := p.searchRepair()
	if ok && len(repairs) > 0 {
		p.cfg.log.Debugf("syntax error at %v (state %v, %v): %v", p.la.tokStart, p.top().state, p.gram.SymbolName(p.la.sym), formatRepairs(repairs))
		p.recovering = true
		for _, r := range repairs {
			switch r.kind {
			case repairInsert:
				p.insertMissing(r.sym)
			case repairDelete:
				p.deleteToken()
			case repairUnwind:
				p.unwind(r.depth)
			}
		}
		p.recovering = false
		return nil, false
	}

	p.cfg.log.Debugf("syntax error at %v (state %v, %v): no repair found", p.la.tokStart, p.top().state, p.gram.SymbolName(p.la.sym))
	if p.la.eof {
		return p.errorRoot(), true
	}
	p.deleteToken()
	return nil, false
}

// insertMissing shifts a zero-width leaf standing for an absent terminal.
func (p *parse) insertMissing(sym Symbol) {
	saved := p.la
	pos := p.top().end
	p.la = &lookahead{
		sym:      sym,
		start:    pos,
		tokStart: pos,
		end:      pos,
		depEnd:   saved.depEnd,
		lexState: -1,
	}
	defer func() {
		p.la = saved
	}()

	for step := 0; step < maxSimulationSteps; step++ {
		act := p.gram.Action(p.top().state, sym)
		switch act.Kind {
		case ActionShift:
			leaf := p.alloc.NewLeaf(tree.LeafParams{
				Symbol:   sym,
				Flags:    tree.FlagMissing | tree.FlagFragile,
				PreState: p.top().state,
				LexState: -1,
			})
			p.push(act.State, leaf, pos)
			return
		case ActionReduce:
			if !p.reduce(act) {
				return
			}
		default:
			return
		}
	}
}

// deleteToken moves the lookahead into an error node the parser skips.
func (p *parse) deleteToken() {
	la := p.la
	state := p.top().state
	flags := tree.FlagError | tree.FlagExtra | tree.FlagFragile
	var sub *tree.Subtree
	if la.invalid {
		bad := *la
		bad.sym = p.gram.ErrorSymbol()
		bad.leaf = nil
		sub = bad.toLeaf(p.alloc, state, flags)
	} else {
		sub = p.alloc.NewNode(tree.NodeParams{
			Symbol:   p.gram.ErrorSymbol(),
			Children: []*tree.Subtree{la.toLeaf(p.alloc, state, 0)},
			Flags:    flags,
			PreState: state,
		})
	}
	if la.end == la.start {
		p.tokens.noExternalAt = la.start
	}
	p.push(state, sub, la.end)
	p.la = nil
}

// unwind pops depth entries, not counting extras, into an error node.
func (p *parse) unwind(depth int) {
	i := len(p.stack)
	for n := depth; n > 0 && i > 1; {
		i--
		if !p.stack[i].sub.IsExtra() {
			n--
		}
	}
	children := make([]*tree.Subtree, 0, len(p.stack)-i)
	for _, e := range p.stack[i:] {
		children = append(children, e.sub)
	}
	below := p.stack[i-1]
	end := p.top().end
	node := p.alloc.NewNode(tree.NodeParams{
		Symbol:   p.gram.ErrorSymbol(),
		Children: children,
		Flags:    tree.FlagError | tree.FlagExtra | tree.FlagFragile,
		PreState: below.state,
	})
	p.stack = append(p.stack[:i], stackEntry{
		state: below.state,
		sub:   node,
		end:   end,
	})
}

// reuseNode tries the old tree at the current offset. It pushes a whole subtree and returns true when one
// fits; otherwise it may still supply the lookahead from an old leaf.
func (p *parse) reuseNode() bool {
	pos := p.top().end
	state := p.top().state
	for {
		sub, oldOffset, ok := p.reuse.seek(pos)
		if !ok {
			return false
		}
		if !p.reuse.reusable(sub, oldOffset) {
			p.reuse.reject()
			continue
		}

		if sub.IsLeaf() {
			if p.la == nil && p.lexContextFits(sub.LexState(), state, pos) {
				p.la = reusedLookahead(sub, pos)
				p.countReuse(sub)
				p.reuse.advance()
			}
			return false
		}

		if sub.PreState() != state || !p.lexContextFits(sub.LexState(), state, pos) {
			if p.la == nil {
				if leaf := sub.FirstLeaf(); leaf != nil && p.lexContextFits(leaf.LexState(), state, pos) {
					p.la = reusedLookahead(leaf, pos)
					p.countReuse(leaf)
				}
			}
			return false
		}
		if p.la != nil && p.la.leaf != sub.FirstLeaf() {
			return false
		}
		next := p.gram.GoTo(state, sub.Symbol())
		if next < 0 {
			return false
		}

		if p.la != nil {
			p.uncountReuse(p.la.leaf)
			p.la = nil
		}
		p.push(next, sub, pos+sub.TotalSize())
		p.countReuse(sub)
		p.reuse.advance()
		return true
	}
}

// lexContextFits reports whether lexing at pos in state would find the same token as lexing in lexState did.
func (p *parse) lexContextFits(lexState int, state int, pos int) bool {
	if lexState < 0 {
		return false
	}
	if p.gram.HasExternalScanner() {
		return lexState == state && pos != p.tokens.noExternalAt
	}
	return p.gram.LexMode(lexState) == p.gram.LexMode(state)
}

func (p *parse) countReuse(sub *tree.Subtree) {
	p.reused++
	p.reusedBytes += sub.TotalSize()
}

func (p *parse) uncountReuse(sub *tree.Subtree) {
	p.reused--
	p.reusedBytes -= sub.TotalSize()
}

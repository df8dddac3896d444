package tree

// Symbol is a terminal or non-terminal of a grammar. Terminals and non-terminals share one number space.
type Symbol int

const SymbolNil = Symbol(0)

type Flags uint8

const (
	// FlagMissing marks a zero-width leaf error recovery inserted in place of an absent token.
	FlagMissing Flags = 1 << iota

	// FlagError marks an error node: text no production could derive.
	FlagError

	// FlagExtra marks a subtree that is not part of the derivation of its parent, such as a deleted token.
	FlagExtra

	// FlagHasError marks a subtree containing an error, missing or extra subtree, itself included.
	FlagHasError

	// FlagFragile marks a subtree built by error recovery. Such subtrees are never reused.
	FlagFragile
)

// Subtree is an immutable piece of a syntax tree. Its extents are relative, so one subtree can appear in
// several trees at different offsets.
//
// A subtree covers padding bytes followed by size bytes. Building it depended on lookahead more bytes past
// its end.
type Subtree struct {
	symbol     Symbol
	flags      Flags
	leaf       bool
	padding    int
	size       int
	lookahead  int
	preState   int
	lexState   int
	production int
	dynPrec    int
	errorCost  int
	children   []*Subtree

	// arena is the slab the subtree lives in.
	arena *arena
}

// LeafParams describes a leaf.
type LeafParams struct {
	Symbol    Symbol
	Padding   int
	Size      int
	Lookahead int
	Flags     Flags

	// PreState is the parse state the leaf was shifted from, and LexState the state it was lexed in.
	PreState int
	LexState int
}

// NewLeaf makes a leaf. Error, missing and extra leaves are marked as containing an error.
func (a *Allocator) NewLeaf(p LeafParams) *Subtree {
	s, ar := a.alloc()
	*s = Subtree{
		arena:     ar,
		symbol:    p.Symbol,
		flags:     p.Flags,
		leaf:      true,
		padding:   p.Padding,
		size:      p.Size,
		lookahead: p.Lookahead,
		preState:  p.PreState,
		lexState:  p.LexState,
	}
	if s.flags&(FlagError|FlagMissing|FlagExtra) != 0 {
		s.flags |= FlagHasError
		s.errorCost = 1
	}
	return s
}

// NodeParams describes an inner node.
type NodeParams struct {
	Symbol     Symbol
	Production int
	Children   []*Subtree
	Flags      Flags
	PreState   int

	// DynamicPrecedence is the precedence of the production. The node adds up the ones of its children.
	DynamicPrecedence int

	// Lookahead is how many bytes past the end of the node were read to decide to build it.
	Lookahead int
}

// NewNode makes an inner node over children. The node computes its extents from the children and inherits
// their error and fragile flags.
func (a *Allocator) NewNode(p NodeParams) *Subtree {
	s, ar := a.alloc()
	*s = Subtree{
		arena:      ar,
		symbol:     p.Symbol,
		flags:      p.Flags,
		preState:   p.PreState,
		lexState:   -1,
		production: p.Production,
		dynPrec:    p.DynamicPrecedence,
		children:   p.Children,
	}
	if s.flags&(FlagError|FlagMissing|FlagExtra) != 0 {
		s.flags |= FlagHasError
		s.errorCost = 1
	}

	depEnd := 0
	pos := 0
	inPadding := true
	for _, c := range p.Children {
		ar.dependOn(c.arena)
		if s.lexState < 0 {
			s.lexState = c.lexState
		}
		if inPadding {
			s.padding += c.padding
			inPadding = c.size == 0
		}
		pos += c.padding + c.size
		if e := pos + c.lookahead; e > depEnd {
			depEnd = e
		}
		s.dynPrec += c.dynPrec
		s.errorCost += c.errorCost
		s.flags |= c.flags & (FlagHasError | FlagFragile)
	}
	s.size = pos - s.padding
	if e := pos + p.Lookahead; e > depEnd {
		depEnd = e
	}
	s.lookahead = depEnd - pos
	return s
}

func (s *Subtree) Symbol() Symbol {
	return s.symbol
}

func (s *Subtree) Flags() Flags {
	return s.flags
}

func (s *Subtree) IsLeaf() bool {
	return s.leaf
}

func (s *Subtree) IsMissing() bool {
	return s.flags&FlagMissing != 0
}

func (s *Subtree) IsError() bool {
	return s.flags&FlagError != 0
}

func (s *Subtree) IsExtra() bool {
	return s.flags&FlagExtra != 0
}

func (s *Subtree) HasError() bool {
	return s.flags&FlagHasError != 0
}

func (s *Subtree) IsFragile() bool {
	return s.flags&FlagFragile != 0
}

// Padding is the number of bytes of skipped text before the subtree's own text.
func (s *Subtree) Padding() int {
	return s.padding
}

func (s *Subtree) Size() int {
	return s.size
}

// TotalSize is the size including the padding.
func (s *Subtree) TotalSize() int {
	return s.padding + s.size
}

// Lookahead is the number of bytes past the end the subtree depends on.
func (s *Subtree) Lookahead() int {
	return s.lookahead
}

// PreState is the parse state exposed below the subtree when it was pushed.
func (s *Subtree) PreState() int {
	return s.preState
}

// LexState is the parse state the first leaf of the subtree was lexed in, or -1 when the subtree has no
// leaf.
func (s *Subtree) LexState() int {
	return s.lexState
}

// Production is the production the node was reduced by. It is 0 for leaves and error nodes.
func (s *Subtree) Production() int {
	return s.production
}

func (s *Subtree) DynamicPrecedence() int {
	return s.dynPrec
}

// ErrorCost is the number of error, missing and extra subtrees within the subtree.
func (s *Subtree) ErrorCost() int {
	return s.errorCost
}

func (s *Subtree) ChildCount() int {
	return len(s.children)
}

func (s *Subtree) Child(i int) *Subtree {
	return s.children[i]
}

// Children returns the children. The slice must not be modified.
func (s *Subtree) Children() []*Subtree {
	return s.children
}

// FirstLeaf returns the leftmost leaf, or nil when the subtree contains none.
func (s *Subtree) FirstLeaf() *Subtree {
	if s == nil {
		return nil
	}
	if s.leaf {
		return s
	}
	for _, c := range s.children {
		if l := c.FirstLeaf(); l != nil {
			return l
		}
	}
	return nil
}

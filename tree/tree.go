package tree

import (
	"sync/atomic"
)

// Language names the symbols of a tree.
type Language interface {
	SymbolName(sym Symbol) string

	// IsVisible reports whether nodes of a symbol appear among the children of their parents. Nodes of
	// invisible symbols are replaced by their own children.
	IsVisible(sym Symbol) bool
}

// Tree is the result of one parse. It is immutable, and any number of goroutines may read it.
type Tree struct {
	root     *Subtree
	length   int
	lang     Language
	arenas   []*arena
	released atomic.Bool
}

// NewTree makes a tree over the text of length bytes. The tree takes over the slabs of alloc. Subtrees
// of other trees that root reaches stay alive for as long as the tree does.
func NewTree(root *Subtree, length int, lang Language, alloc *Allocator) *Tree {
	return &Tree{
		root:   root,
		length: length,
		lang:   lang,
		arenas: alloc.take(root),
	}
}

// Release gives the memory of the tree back. Nodes of the tree must not be used afterwards, except those a
// newer tree shares. Releasing a tree twice has no effect.
func (t *Tree) Release() {
	if t == nil || !t.released.CompareAndSwap(false, true) {
		return
	}
	for _, a := range t.arenas {
		a.release()
	}
}

func (t *Tree) Root() Node {
	return Node{
		tree: t,
		sub:  t.root,
	}
}

func (t *Tree) RootSubtree() *Subtree {
	return t.root
}

// Len returns the length of the text the tree was parsed from.
func (t *Tree) Len() int {
	return t.length
}

// TrailingPadding returns the number of skipped bytes after the last token.
func (t *Tree) TrailingPadding() int {
	return t.length - t.root.TotalSize()
}

func (t *Tree) Language() Language {
	return t.lang
}

// Path returns the visible nodes from the root down to n, both included. It returns nil when n is not a
// node of the tree.
func (t *Tree) Path(n Node) []Node {
	raw := t.rawPath(n)
	if raw == nil {
		return nil
	}
	path := make([]Node, 0, len(raw))
	for i, p := range raw {
		if i == 0 || i == len(raw)-1 || p.IsVisible() {
			path = append(path, p)
		}
	}
	return path
}

// ParentOf returns the closest visible ancestor of n.
func (t *Tree) ParentOf(n Node) (Node, bool) {
	path := t.Path(n)
	if len(path) < 2 {
		return Node{}, false
	}
	return path[len(path)-2], true
}

func (t *Tree) rawPath(target Node) []Node {
	if target.sub == nil {
		return nil
	}
	tStart := target.offset
	tEnd := target.offset + target.sub.TotalSize()

	var path []Node
	var find func(n Node) bool
	find = func(n Node) bool {
		path = append(path, n)
		if n.sub == target.sub && n.offset == target.offset {
			return true
		}
		pos := n.offset
		for _, c := range n.sub.children {
			cEnd := pos + c.TotalSize()
			if pos <= tStart && tEnd <= cEnd {
				if find(Node{tree: t, sub: c, offset: pos}) {
					return true
				}
			}
			pos = cEnd
		}
		path = path[:len(path)-1]
		return false
	}
	if !find(t.Root()) {
		return nil
	}
	return path
}

// Walk returns a cursor positioned at the root.
func (t *Tree) Walk() *Cursor {
	return &Cursor{
		stack: []cursorFrame{
			{
				siblings: []Node{t.Root()},
			},
		},
	}
}

// Leaves calls f for every leaf in text order. Leaves of invisible nodes are included.
func (t *Tree) Leaves(f func(n Node) bool) {
	var walk func(n Node) bool
	walk = func(n Node) bool {
		if n.sub.leaf {
			return f(n)
		}
		for c := range n.AllChildren() {
			if !walk(c) {
				return false
			}
		}
		return true
	}
	walk(t.Root())
}

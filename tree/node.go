package tree

import (
	"iter"
	"unsafe"
)

// Range is the byte range [Start, End).
type Range struct {
	Start int
	End   int
}

// Node is a subtree placed in a tree. Nodes are values; two nodes are the same when their subtrees and
// offsets are.
type Node struct {
	tree   *Tree
	sub    *Subtree
	offset int
}

func (n Node) IsNull() bool {
	return n.sub == nil
}

func (n Node) Tree() *Tree {
	return n.tree
}

func (n Node) Subtree() *Subtree {
	return n.sub
}

// ID identifies the subtree of the node. Nodes of two trees sharing a subtree have the same ID.
func (n Node) ID() uintptr {
	return uintptr(unsafe.Pointer(n.sub))
}

func (n Node) Symbol() Symbol {
	return n.sub.symbol
}

// Type returns the name of the symbol.
func (n Node) Type() string {
	return n.tree.lang.SymbolName(n.sub.symbol)
}

func (n Node) IsVisible() bool {
	return n.sub.leaf || n.sub.IsError() || n.tree.lang.IsVisible(n.sub.symbol)
}

// StartByte is the offset of the node's text, padding excluded.
func (n Node) StartByte() int {
	return n.offset + n.sub.padding
}

func (n Node) EndByte() int {
	return n.offset + n.sub.padding + n.sub.size
}

func (n Node) Range() Range {
	return Range{
		Start: n.StartByte(),
		End:   n.EndByte(),
	}
}

// Padding returns the range of skipped text before the node.
func (n Node) Padding() Range {
	return Range{
		Start: n.offset,
		End:   n.StartByte(),
	}
}

func (n Node) HasError() bool {
	return n.sub.HasError()
}

func (n Node) IsMissing() bool {
	return n.sub.IsMissing()
}

func (n Node) IsError() bool {
	return n.sub.IsError()
}

func (n Node) IsExtra() bool {
	return n.sub.IsExtra()
}

func (n Node) IsLeaf() bool {
	return n.sub.leaf
}

// Text returns the text of the node, padding excluded.
func (n Node) Text(src []byte) string {
	return string(src[n.StartByte():n.EndByte()])
}

// AllChildren yields the children including the nodes of invisible symbols.
func (n Node) AllChildren() iter.Seq[Node] {
	return func(yield func(Node) bool) {
		pos := n.offset
		for _, c := range n.sub.children {
			if !yield(Node{tree: n.tree, sub: c, offset: pos}) {
				return
			}
			pos += c.TotalSize()
		}
	}
}

// Children yields the visible children. The children of an invisible child take its place.
func (n Node) Children() iter.Seq[Node] {
	return func(yield func(Node) bool) {
		n.visibleChildren(yield)
	}
}

func (n Node) visibleChildren(yield func(Node) bool) bool {
	for c := range n.AllChildren() {
		if c.IsVisible() {
			if !yield(c) {
				return false
			}
			continue
		}
		if !c.visibleChildren(yield) {
			return false
		}
	}
	return true
}

func (n Node) ChildCount() int {
	count := 0
	for range n.Children() {
		count++
	}
	return count
}

// Child returns the i-th visible child, or a null node when there is none.
func (n Node) Child(i int) Node {
	if i < 0 {
		return Node{}
	}
	for c := range n.Children() {
		if i == 0 {
			return c
		}
		i--
	}
	return Node{}
}

package parser

import (
	"github.com/nihei9/reparse/tree"
)

// reuseFrame is a subtree of the old tree and its offset in the old text.
type reuseFrame struct {
	sub    *tree.Subtree
	offset int
	index  int
}

// reuseCursor walks the old tree forward, offering the subtrees that begin at the parser's position.
type reuseCursor struct {
	edits  *editSet
	errors rangeSet
	stack  []reuseFrame
}

func newReuseCursor(old *tree.Tree, edits *editSet) *reuseCursor {
	c := &reuseCursor{
		edits: edits,
	}
	root := old.RootSubtree()
	if root == nil {
		return c
	}
	c.stack = append(c.stack, reuseFrame{
		sub: root,
	})
	collectErrors(root, 0, &c.errors)
	return c
}

// collectErrors adds the ranges of the error, missing and extra subtrees to set.
func collectErrors(sub *tree.Subtree, offset int, set *rangeSet) {
	if !sub.HasError() {
		return
	}
	if sub.IsError() || sub.IsMissing() || sub.IsExtra() {
		set.add(offset, offset+sub.TotalSize())
		return
	}
	for _, c := range sub.Children() {
		collectErrors(c, offset, set)
		offset += c.TotalSize()
	}
}

// seek moves to the outermost subtree beginning at the new offset pos. It returns false when no subtree
// begins there; the cursor then rests on a subtree beginning after pos.
func (c *reuseCursor) seek(pos int) (*tree.Subtree, int, bool) {
	for len(c.stack) > 0 {
		f := c.stack[len(c.stack)-1]
		start, ok := c.edits.toNew(f.offset)
		if ok && start > pos {
			return nil, 0, false
		}
		if ok && start == pos {
			return f.sub, f.offset, true
		}
		if f.sub.ChildCount() > 0 && c.endsAfter(f.offset+f.sub.TotalSize(), pos) {
			c.descend()
			continue
		}
		c.advance()
	}
	return nil, 0, false
}

func (c *reuseCursor) endsAfter(oldEnd int, pos int) bool {
	end, ok := c.edits.toNew(oldEnd)
	return !ok || end > pos
}

// reject gives up the current subtree, moving to its first child or, for a leaf, past it.
func (c *reuseCursor) reject() {
	if f := c.stack[len(c.stack)-1]; f.sub.ChildCount() > 0 {
		c.descend()
		return
	}
	c.advance()
}

func (c *reuseCursor) descend() {
	f := c.stack[len(c.stack)-1]
	c.stack = append(c.stack, reuseFrame{
		sub:    f.sub.Child(0),
		offset: f.offset,
	})
}

// advance moves past the current subtree.
func (c *reuseCursor) advance() {
	for len(c.stack) > 0 {
		f := c.stack[len(c.stack)-1]
		c.stack = c.stack[:len(c.stack)-1]
		if len(c.stack) == 0 {
			return
		}
		parent := c.stack[len(c.stack)-1].sub
		if next := f.index + 1; next < parent.ChildCount() {
			c.stack = append(c.stack, reuseFrame{
				sub:    parent.Child(next),
				offset: f.offset + f.sub.TotalSize(),
				index:  next,
			})
			return
		}
	}
}

// reusable reports whether a subtree at an old offset is unaffected by the edits: nothing it covers or
// depends on changed, and it holds no trace of error recovery.
func (c *reuseCursor) reusable(sub *tree.Subtree, offset int) bool {
	if sub.TotalSize() == 0 || sub.HasError() || sub.IsFragile() {
		return false
	}
	end := offset + sub.TotalSize()
	if c.edits.damaged(offset, end+sub.Lookahead()) {
		return false
	}
	return !c.errors.touches(offset, end)
}

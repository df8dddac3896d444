package tree

type cursorFrame struct {
	siblings []Node
	index    int
}

// Cursor walks the visible nodes of a tree. It keeps the path from the root itself, so moving up needs no
// parent pointers.
type Cursor struct {
	stack []cursorFrame
}

func (c *Cursor) Node() Node {
	f := c.stack[len(c.stack)-1]
	return f.siblings[f.index]
}

// Depth is 0 at the root.
func (c *Cursor) Depth() int {
	return len(c.stack) - 1
}

func (c *Cursor) GotoFirstChild() bool {
	var children []Node
	for ch := range c.Node().Children() {
		children = append(children, ch)
	}
	if len(children) == 0 {
		return false
	}
	c.stack = append(c.stack, cursorFrame{
		siblings: children,
	})
	return true
}

func (c *Cursor) GotoNextSibling() bool {
	f := &c.stack[len(c.stack)-1]
	if f.index+1 >= len(f.siblings) {
		return false
	}
	f.index++
	return true
}

func (c *Cursor) GotoParent() bool {
	if len(c.stack) <= 1 {
		return false
	}
	c.stack = c.stack[:len(c.stack)-1]
	return true
}

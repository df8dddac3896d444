package test

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/nihei9/reparse/tree"
)

type TreeDiff struct {
	ExpectedPath string
	ActualPath   string
	Message      string
}

func newTreeDiff(expected, actual *Tree, message string) *TreeDiff {
	return &TreeDiff{
		ExpectedPath: expected.path(),
		ActualPath:   actual.path(),
		Message:      message,
	}
}

// Tree is the expected or actual shape of a syntax tree. Kind "_" in an expected tree matches any kind,
// and an empty Lexeme matches any text.
type Tree struct {
	Parent   *Tree
	Offset   int
	Kind     string
	Missing  bool
	Lexeme   string
	Children []*Tree
}

func NewNonTerminalTree(kind string, children ...*Tree) *Tree {
	return &Tree{
		Kind:     kind,
		Children: children,
	}
}

func NewTerminalNode(kind string, lexeme string) *Tree {
	return &Tree{
		Kind:   kind,
		Lexeme: lexeme,
	}
}

func NewMissingNode(kind string) *Tree {
	return &Tree{
		Kind:    kind,
		Missing: true,
	}
}

// FromSyntaxTree converts the visible part of a syntax tree. Leaves carry their text.
func FromSyntaxTree(n tree.Node, src []byte) *Tree {
	if n.IsMissing() {
		return NewMissingNode(n.Type())
	}
	if n.IsLeaf() {
		return NewTerminalNode(n.Type(), n.Text(src))
	}
	var children []*Tree
	for c := range n.Children() {
		children = append(children, FromSyntaxTree(c, src))
	}
	return NewNonTerminalTree(n.Type(), children...)
}

func (t *Tree) Fill() *Tree {
	for i, c := range t.Children {
		c.Parent = t
		c.Offset = i
		c.Fill()
	}
	return t
}

func (t *Tree) path() string {
	if t.Parent == nil {
		return t.Kind
	}
	return fmt.Sprintf("%v.[%v]%v", t.Parent.path(), t.Offset, t.Kind)
}

// Format writes the tree in the notation test cases use, one node per line.
func (t *Tree) Format() []byte {
	var b bytes.Buffer
	t.format(&b, 0)
	return b.Bytes()
}

func (t *Tree) format(buf *bytes.Buffer, depth int) {
	for i := 0; i < depth; i++ {
		buf.WriteString("    ")
	}
	buf.WriteString("(")
	if t.Missing {
		buf.WriteString("MISSING ")
	}
	buf.WriteString(t.Kind)
	if t.Lexeme != "" {
		buf.WriteString(" ")
		buf.WriteString(strconv.Quote(t.Lexeme))
	}
	if len(t.Children) > 0 {
		buf.WriteString("\n")
		for i, c := range t.Children {
			c.format(buf, depth+1)
			if i < len(t.Children)-1 {
				buf.WriteString("\n")
			}
		}
	}
	buf.WriteString(")")
}

func DiffTree(expected, actual *Tree) []*TreeDiff {
	if expected == nil && actual == nil {
		return nil
	}
	if expected.Kind != "_" && actual.Kind != expected.Kind {
		msg := fmt.Sprintf("unexpected kind: expected '%v' but got '%v'", expected.Kind, actual.Kind)
		return []*TreeDiff{
			newTreeDiff(expected, actual, msg),
		}
	}
	if expected.Missing != actual.Missing {
		msg := fmt.Sprintf("unexpected missing flag: expected %v but got %v", expected.Missing, actual.Missing)
		return []*TreeDiff{
			newTreeDiff(expected, actual, msg),
		}
	}
	if expected.Lexeme != "" && expected.Lexeme != actual.Lexeme {
		msg := fmt.Sprintf("unexpected lexeme: expected '%v' but got '%v'", expected.Lexeme, actual.Lexeme)
		return []*TreeDiff{
			newTreeDiff(expected, actual, msg),
		}
	}
	if len(actual.Children) != len(expected.Children) {
		msg := fmt.Sprintf("unexpected node count: expected %v but got %v", len(expected.Children), len(actual.Children))
		return []*TreeDiff{
			newTreeDiff(expected, actual, msg),
		}
	}
	var diffs []*TreeDiff
	for i, exp := range expected.Children {
		if ds := DiffTree(exp, actual.Children[i]); len(ds) > 0 {
			diffs = append(diffs, ds...)
		}
	}
	return diffs
}

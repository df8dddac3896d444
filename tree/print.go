package tree

import (
	"fmt"
	"io"
	"strings"
)

func PrintTree(w io.Writer, t *Tree, src []byte) {
	printTree(w, t.Root(), src, "", "")
}

func printTree(w io.Writer, node Node, src []byte, ruledLine string, childRuledLinePrefix string) {
	switch {
	case node.IsMissing():
		fmt.Fprintf(w, "%vMISSING %v\n", ruledLine, node.Type())
	case node.IsError() && node.IsLeaf():
		fmt.Fprintf(w, "%v!%v %#v\n", ruledLine, node.Type(), node.Text(src))
	case node.IsError():
		fmt.Fprintf(w, "%v!%v\n", ruledLine, node.Type())
	case node.IsLeaf():
		fmt.Fprintf(w, "%v%v %#v\n", ruledLine, node.Type(), node.Text(src))
	default:
		fmt.Fprintf(w, "%v%v\n", ruledLine, node.Type())
	}

	var children []Node
	for c := range node.Children() {
		children = append(children, c)
	}
	num := len(children)
	for i, child := range children {
		var line string
		if num > 1 && i < num-1 {
			line = "├─ "
		} else {
			line = "└─ "
		}

		var prefix string
		if i >= num-1 {
			prefix = "   "
		} else {
			prefix = "│  "
		}

		printTree(w, child, src, childRuledLinePrefix+line, childRuledLinePrefix+prefix)
	}
}

// SExpr writes a node as an S-expression of its visible nodes, such as (sum (sum (num)) (+) (num)).
func SExpr(n Node) string {
	var b strings.Builder
	writeSExpr(&b, n)
	return b.String()
}

func writeSExpr(b *strings.Builder, n Node) {
	b.WriteByte('(')
	if n.IsMissing() {
		b.WriteString("MISSING ")
	}
	b.WriteString(n.Type())
	for c := range n.Children() {
		b.WriteByte(' ')
		writeSExpr(b, c)
	}
	b.WriteByte(')')
}

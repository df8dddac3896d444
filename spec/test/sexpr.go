package test

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/nihei9/reparse/driver/parser"
	"github.com/nihei9/reparse/grammar"
	"github.com/nihei9/reparse/tree"
)

// The expected trees of test cases are S-expressions read by the engine itself.
//
//	(kind child...)    a node
//	(kind 'text')      a leaf with its text; "text" takes Go escapes
//	(MISSING kind)     a node inserted by error recovery
var (
	sexprOnce sync.Once
	sexprGram *parser.Grammar
	sexprErr  error
)

func sexprGrammar() (*parser.Grammar, error) {
	sexprOnce.Do(func() {
		b := grammar.NewBuilder("sexpr").
			Literal("(").
			Literal(")").
			Terminal("atom", "[^ \t\n\r()'\"]+").
			Terminal("raw_string", "'[^']*'").
			Terminal("string", "\"([^\"\\\\]|\\\\.)*\"").
			Terminal("ws", "[ \t\n\r]+").
			Skip("ws")
		b.Rule("list", "(", "_items", ")")
		b.Rule("_items", "_items", "_item")
		b.Rule("_items", "_item")
		b.Rule("_item", "list")
		b.Rule("_item", "atom")
		b.Rule("_item", "raw_string")
		b.Rule("_item", "string")

		gram, err := b.Build()
		if err != nil {
			sexprErr = err
			return
		}
		cg, _, err := grammar.Compile(gram)
		if err != nil {
			sexprErr = err
			return
		}
		sexprGram, sexprErr = parser.NewGrammar(cg)
	})
	return sexprGram, sexprErr
}

type treeParser struct {
	src        []byte
	lineOffset int
}

func parseTree(src []byte, lineOffset int) (*Tree, error) {
	g, err := sexprGrammar()
	if err != nil {
		return nil, fmt.Errorf("cannot build the tree notation parser: %w", err)
	}
	tr, err := parser.NewParser(g).Parse(context.Background(), src)
	if err != nil {
		return nil, err
	}
	defer tr.Release()

	tp := &treeParser{
		src:        src,
		lineOffset: lineOffset,
	}
	root := tr.Root()
	if root.HasError() {
		return nil, tp.syntaxError(root)
	}
	t, err := tp.genTree(root)
	if err != nil {
		return nil, err
	}
	return t.Fill(), nil
}

func (tp *treeParser) pos(n tree.Node) string {
	p := tree.PointAt(tp.src, n.StartByte())
	return fmt.Sprintf("%v:%v", tp.lineOffset+p.Row+1, p.Column+1)
}

func (tp *treeParser) syntaxError(root tree.Node) error {
	n, ok := firstError(root)
	switch {
	case !ok:
		return fmt.Errorf("%v: syntax error", tp.pos(root))
	case n.IsMissing():
		return fmt.Errorf("%v: syntax error: missing %v", tp.pos(n), n.Type())
	case n.EndByte() == n.StartByte():
		return fmt.Errorf("%v: syntax error: unexpected end of input", tp.pos(n))
	default:
		return fmt.Errorf("%v: syntax error: unexpected '%v'", tp.pos(n), n.Text(tp.src))
	}
}

func firstError(n tree.Node) (tree.Node, bool) {
	if n.IsMissing() || (n.IsError() && n.IsLeaf()) {
		return n, true
	}
	for c := range n.AllChildren() {
		if !c.HasError() && !c.IsMissing() && !c.IsError() {
			continue
		}
		if e, ok := firstError(c); ok {
			return e, true
		}
	}
	if n.IsError() {
		return n, true
	}
	return tree.Node{}, false
}

func (tp *treeParser) genTree(n tree.Node) (*Tree, error) {
	var items []tree.Node
	for c := range n.Children() {
		if c.Type() == "(" || c.Type() == ")" {
			continue
		}
		items = append(items, c)
	}
	if len(items) == 0 || items[0].Type() != "atom" {
		return nil, fmt.Errorf("%v: a tree must begin with a kind", tp.pos(n))
	}
	kind := items[0].Text(tp.src)
	rest := items[1:]

	if kind == "MISSING" {
		if len(rest) != 1 || rest[0].Type() != "atom" {
			return nil, fmt.Errorf("%v: MISSING takes just one kind", tp.pos(items[0]))
		}
		return NewMissingNode(rest[0].Text(tp.src)), nil
	}

	if len(rest) == 1 && rest[0].Type() != "list" && rest[0].Type() != "atom" {
		lexeme, err := tp.unquote(rest[0])
		if err != nil {
			return nil, err
		}
		return NewTerminalNode(kind, lexeme), nil
	}

	var children []*Tree
	for _, c := range rest {
		if c.Type() != "list" {
			return nil, fmt.Errorf("%v: unexpected '%v': a node takes either trees or one text", tp.pos(c), c.Text(tp.src))
		}
		child, err := tp.genTree(c)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	return NewNonTerminalTree(kind, children...), nil
}

func (tp *treeParser) unquote(n tree.Node) (string, error) {
	text := n.Text(tp.src)
	if n.Type() == "raw_string" {
		return text[1 : len(text)-1], nil
	}
	s, err := strconv.Unquote(text)
	if err != nil {
		return "", fmt.Errorf("%v: invalid string %v: %w", tp.pos(n), text, err)
	}
	return s, nil
}

package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/spf13/cobra"

	"github.com/nihei9/reparse/driver/parser"
	"github.com/nihei9/reparse/tree"
)

var reparseFlags = struct {
	table *string
	edits *[]string
	sexpr *bool
	quiet *bool
}{}

func init() {
	cmd := &cobra.Command{
		Use:   "reparse <source file path>",
		Short: "Edit a text and parse it again incrementally",
		Long: `reparse parses a file, applies edits to its text and parses the result again, reusing the
unaffected parts of the first tree. The incremental tree is checked against a parse from scratch.

An edit is start:end:text and replaces the bytes [start, end) with text. Each edit refers to the text
the preceding edits produced. A text in double quotes takes Go escapes.`,
		Example: `  reparse reparse -t grammar.json --edit 2:3:4 --edit '0:0:"x = 1;\n"' src.txt`,
		Args:    cobra.ExactArgs(1),
		RunE:    runReparse,
	}
	reparseFlags.table = cmd.Flags().StringP("table", "t", "", "compiled grammar file path")
	reparseFlags.edits = cmd.Flags().StringArrayP("edit", "e", nil, "edit as start:end:text (repeatable)")
	reparseFlags.sexpr = cmd.Flags().Bool("sexpr", false, "print the tree as an S-expression")
	reparseFlags.quiet = cmd.Flags().BoolP("quiet", "q", false, "don't print the tree")
	cmd.MarkFlagRequired("table")
	rootCmd.AddCommand(cmd)
}

func runReparse(cmd *cobra.Command, args []string) error {
	g, err := readTable(*reparseFlags.table)
	if err != nil {
		return err
	}
	src, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("Cannot read the source file %s: %w", args[0], err)
	}

	newSrc := src
	var edits []tree.Edit
	for _, arg := range *reparseFlags.edits {
		start, end, text, err := parseEditFlag(arg)
		if err != nil {
			return err
		}
		var e tree.Edit
		newSrc, e, err = tree.ApplyEdit(newSrc, start, end, text)
		if err != nil {
			return fmt.Errorf("Cannot apply the edit %v: %w", arg, err)
		}
		edits = append(edits, e)
	}

	p := parser.NewParser(g)
	old, err := p.Parse(cmd.Context(), src)
	defer old.Release()
	if err != nil {
		return err
	}
	tr, err := p.Reparse(cmd.Context(), old, edits, newSrc)
	defer tr.Release()
	if err != nil {
		return err
	}
	st := p.LastStats()

	full, err := parser.NewParser(g).Parse(cmd.Context(), newSrc)
	defer full.Release()
	if err != nil {
		return err
	}

	for _, msg := range syntaxErrors(tr, newSrc) {
		fmt.Fprintf(os.Stderr, "%v:%v\n", args[0], msg)
	}
	if !*reparseFlags.quiet {
		writeTree(os.Stdout, tr, newSrc, *reparseFlags.sexpr)
	}
	fmt.Fprintf(os.Stderr, "%v subtrees (%v of %v bytes) reused, %v tokens lexed\n", st.Reused, st.ReusedBytes, len(newSrc), st.Lexed)

	want := dumpTree(full, newSrc)
	got := dumpTree(tr, newSrc)
	if want == got {
		return nil
	}
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(want),
		B:        difflib.SplitLines(got),
		FromFile: "full parse",
		ToFile:   "incremental parse",
		Context:  2,
	})
	if err != nil {
		return err
	}
	fmt.Fprint(os.Stderr, diff)
	return errors.New("The incremental parse differs from the full parse")
}

// dumpTree writes every node, hidden ones included, with its range and flags.
func dumpTree(tr *tree.Tree, src []byte) string {
	var b bytes.Buffer
	var dump func(n tree.Node, depth int)
	dump = func(n tree.Node, depth int) {
		fmt.Fprintf(&b, "%v%v [%v, %v)", strings.Repeat("  ", depth), n.Type(), n.StartByte(), n.EndByte())
		switch {
		case n.IsMissing():
			b.WriteString(" missing")
		case n.IsError():
			b.WriteString(" error")
		}
		if n.IsExtra() {
			b.WriteString(" extra")
		}
		if n.IsLeaf() {
			fmt.Fprintf(&b, " %q", n.Text(src))
		}
		b.WriteByte('\n')
		for c := range n.AllChildren() {
			dump(c, depth+1)
		}
	}
	dump(tr.Root(), 0)
	fmt.Fprintf(&b, "trailing padding: %v\n", tr.TrailingPadding())
	return b.String()
}

func parseEditFlag(s string) (int, int, []byte, error) {
	fields := strings.SplitN(s, ":", 3)
	if len(fields) != 3 {
		return 0, 0, nil, fmt.Errorf("An edit must be start:end:text: %v", s)
	}
	start, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, 0, nil, fmt.Errorf("Invalid start of the edit %v: %w", s, err)
	}
	end, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, 0, nil, fmt.Errorf("Invalid end of the edit %v: %w", s, err)
	}
	text := fields[2]
	if strings.HasPrefix(text, `"`) {
		text, err = strconv.Unquote(text)
		if err != nil {
			return 0, 0, nil, fmt.Errorf("Invalid text of the edit %v: %w", s, err)
		}
	}
	return start, end, []byte(text), nil
}

package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nihei9/reparse/driver/parser"
	"github.com/nihei9/reparse/tree"
)

var parseFlags = struct {
	table    *string
	sexpr    *bool
	quiet    *bool
	stats    *bool
	jobs     *int
	maxSteps *int
}{}

func init() {
	cmd := &cobra.Command{
		Use:   "parse [<source file path or glob>...]",
		Short: "Parse texts",
		Example: `  cat src | reparse parse -t grammar.json
  reparse parse -t grammar.json --stats 'testdata/**/*.expr'`,
		RunE: runParse,
	}
	parseFlags.table = cmd.Flags().StringP("table", "t", "", "compiled grammar file path")
	parseFlags.sexpr = cmd.Flags().Bool("sexpr", false, "print trees as S-expressions")
	parseFlags.quiet = cmd.Flags().BoolP("quiet", "q", false, "don't print trees")
	parseFlags.stats = cmd.Flags().Bool("stats", false, "print statistics of each parse")
	parseFlags.jobs = cmd.Flags().IntP("jobs", "j", runtime.NumCPU(), "number of files parsed at once")
	parseFlags.maxSteps = cmd.Flags().Int("max-steps", 0, "step budget of a parse (0: unlimited)")
	cmd.MarkFlagRequired("table")
	rootCmd.AddCommand(cmd)
}

func runParse(cmd *cobra.Command, args []string) error {
	g, err := readTable(*parseFlags.table)
	if err != nil {
		return err
	}

	paths, err := expandPaths(args)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		src, err := io.ReadAll(os.Stdin)
		if err != nil {
			return err
		}
		out, err := parseFile(cmd.Context(), g, "stdin", src)
		os.Stdout.Write(out.Bytes())
		return err
	}

	outs := make([]*bytes.Buffer, len(paths))
	eg, ctx := errgroup.WithContext(cmd.Context())
	eg.SetLimit(max(*parseFlags.jobs, 1))
	for i, path := range paths {
		eg.Go(func() error {
			src, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("Cannot read the source file %s: %w", path, err)
			}
			outs[i], err = parseFile(ctx, g, path, src)
			return err
		})
	}
	err = eg.Wait()
	for _, out := range outs {
		if out != nil {
			os.Stdout.Write(out.Bytes())
		}
	}
	return err
}

func parseFile(ctx context.Context, g *parser.Grammar, name string, src []byte) (*bytes.Buffer, error) {
	var out bytes.Buffer
	p := parser.NewParser(g, parser.MaxSteps(*parseFlags.maxSteps))
	tr, err := p.Parse(ctx, src)
	defer tr.Release()
	if err != nil {
		return &out, fmt.Errorf("%v: %w", name, err)
	}

	for _, msg := range syntaxErrors(tr, src) {
		fmt.Fprintf(os.Stderr, "%v:%v\n", name, msg)
	}
	if !*parseFlags.quiet {
		writeTree(&out, tr, src, *parseFlags.sexpr)
	}
	if *parseFlags.stats {
		st := p.LastStats()
		fmt.Fprintf(&out, "%v: %v bytes, %v tokens, %v steps, %v recoveries, %v syntax errors\n",
			name, len(src), st.Lexed, st.Steps, st.Recoveries, len(syntaxErrors(tr, src)))
	}
	return &out, nil
}

func writeTree(w io.Writer, tr *tree.Tree, src []byte, sexpr bool) {
	if sexpr {
		fmt.Fprintln(w, tree.SExpr(tr.Root()))
		return
	}
	tree.PrintTree(w, tr, src)
}

func readTable(path string) (*parser.Grammar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("Cannot open the compiled grammar %s: %w", path, err)
	}
	defer f.Close()
	return parser.ReadGrammar(f)
}

// expandPaths expands arguments containing glob meta characters. Other arguments are kept as they are.
func expandPaths(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		if !strings.ContainsAny(arg, "*?[{") {
			paths = append(paths, arg)
			continue
		}
		ms, err := doublestar.FilepathGlob(arg, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("Invalid glob %s: %w", arg, err)
		}
		if len(ms) == 0 {
			return nil, fmt.Errorf("No files match %s", arg)
		}
		paths = append(paths, ms...)
	}
	return paths, nil
}

// syntaxErrors describes the error, missing and extra nodes of a tree as "row:col: message" lines. Columns
// count grapheme clusters.
func syntaxErrors(tr *tree.Tree, src []byte) []string {
	var msgs []string
	var walk func(n tree.Node)
	walk = func(n tree.Node) {
		if !n.HasError() && !n.IsMissing() && !n.IsError() {
			return
		}
		pt := tree.PointAt(src, n.StartByte())
		switch {
		case n.IsMissing():
			msgs = append(msgs, fmt.Sprintf("%v:%v: error: missing %v", pt.Row+1, pt.Column+1, n.Type()))
			return
		case n.IsError() && n.StartByte() == n.EndByte():
			msgs = append(msgs, fmt.Sprintf("%v:%v: error: unexpected end of input", pt.Row+1, pt.Column+1))
			return
		case n.IsError() && !hasErrorChild(n):
			text := n.Text(src)
			if len(text) > 32 {
				text = text[:32] + "..."
			}
			msgs = append(msgs, fmt.Sprintf("%v:%v: error: unexpected %q", pt.Row+1, pt.Column+1, text))
			return
		}
		for c := range n.AllChildren() {
			walk(c)
		}
	}
	walk(tr.Root())
	return msgs
}

func hasErrorChild(n tree.Node) bool {
	for c := range n.AllChildren() {
		if c.HasError() || c.IsMissing() || c.IsError() {
			return true
		}
	}
	return false
}

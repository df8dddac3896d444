package tester

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"

	"github.com/nihei9/reparse/driver/parser"
	tspec "github.com/nihei9/reparse/spec/test"
	"github.com/nihei9/reparse/tree"
)

type TestResult struct {
	TestCasePath string
	Error        error
	Diffs        []*tspec.TreeDiff
}

func (r *TestResult) String() string {
	if r.Error != nil {
		const indent1 = "    "
		const indent2 = indent1 + indent1

		msgLines := strings.Split(r.Error.Error(), "\n")
		msg := fmt.Sprintf("Failed %v:\n%v%v", r.TestCasePath, indent1, strings.Join(msgLines, "\n"+indent1))
		if len(r.Diffs) == 0 {
			return msg
		}
		var diffLines []string
		for _, diff := range r.Diffs {
			diffLines = append(diffLines, diff.Message)
			diffLines = append(diffLines, fmt.Sprintf("%vexpected path: %v", indent1, diff.ExpectedPath))
			diffLines = append(diffLines, fmt.Sprintf("%vactual path:   %v", indent1, diff.ActualPath))
		}
		return fmt.Sprintf("%v\n%v%v", msg, indent2, strings.Join(diffLines, "\n"+indent2))
	}
	return fmt.Sprintf("Passed %v", r.TestCasePath)
}

type TestCaseWithMetadata struct {
	TestCase *tspec.TestCase
	FilePath string
	Error    error
}

// ListTestCases reads the test cases in a file or, recursively, in a directory. A path containing glob
// meta characters is expanded with doublestar, so "corpus/**/*.txt" selects files by name.
func ListTestCases(testPath string) []*TestCaseWithMetadata {
	if strings.ContainsAny(testPath, "*?[{") {
		paths, err := doublestar.FilepathGlob(testPath, doublestar.WithFilesOnly())
		if err != nil {
			return []*TestCaseWithMetadata{
				{
					FilePath: testPath,
					Error:    err,
				},
			}
		}
		var cases []*TestCaseWithMetadata
		for _, path := range paths {
			cases = append(cases, ListTestCases(path)...)
		}
		return cases
	}

	fi, err := os.Stat(testPath)
	if err != nil {
		return []*TestCaseWithMetadata{
			{
				FilePath: testPath,
				Error:    err,
			},
		}
	}
	if !fi.IsDir() {
		c, err := parseTestCase(testPath)
		return []*TestCaseWithMetadata{
			{
				TestCase: c,
				FilePath: testPath,
				Error:    err,
			},
		}
	}

	es, err := os.ReadDir(testPath)
	if err != nil {
		return []*TestCaseWithMetadata{
			{
				FilePath: testPath,
				Error:    err,
			},
		}
	}
	var cases []*TestCaseWithMetadata
	for _, e := range es {
		cs := ListTestCases(filepath.Join(testPath, e.Name()))
		cases = append(cases, cs...)
	}
	return cases
}

func parseTestCase(testCasePath string) (*tspec.TestCase, error) {
	f, err := os.Open(testCasePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return tspec.ParseTestCase(f)
}

type Tester struct {
	Grammar *parser.Grammar
	Cases   []*TestCaseWithMetadata

	// Incremental also builds each source by inserting its second half into a tree of the first half and
	// requires the incremental result to match the expected tree too.
	Incremental bool

	// Concurrency limits the cases run at once. Zero or less means one at a time.
	Concurrency int
}

func (t *Tester) Run() []*TestResult {
	rs := make([]*TestResult, len(t.Cases))
	var eg errgroup.Group
	eg.SetLimit(max(t.Concurrency, 1))
	for i, c := range t.Cases {
		eg.Go(func() error {
			rs[i] = t.runTest(c)
			return nil
		})
	}
	eg.Wait()
	return rs
}

func (t *Tester) runTest(c *TestCaseWithMetadata) *TestResult {
	if c.Error != nil {
		return &TestResult{
			TestCasePath: c.FilePath,
			Error:        c.Error,
		}
	}

	p := parser.NewParser(t.Grammar)
	src := c.TestCase.Source
	tr, err := p.Parse(context.Background(), src)
	if err != nil {
		return &TestResult{
			TestCasePath: c.FilePath,
			Error:        err,
		}
	}
	defer tr.Release()

	// The test continues regardless of whether or not syntax errors occurred.
	if r := compare(c, tr); r.Error != nil || !t.Incremental {
		return r
	}

	half := len(src) / 2
	first, err := p.Parse(context.Background(), src[:half])
	if err != nil {
		return &TestResult{
			TestCasePath: c.FilePath,
			Error:        err,
		}
	}
	defer first.Release()
	edit := tree.Edit{
		StartByte:  half,
		OldEndByte: half,
		NewEndByte: len(src),
	}
	re, err := p.Reparse(context.Background(), first, []tree.Edit{edit}, src)
	if err != nil {
		return &TestResult{
			TestCasePath: c.FilePath,
			Error:        fmt.Errorf("incremental parse: %w", err),
		}
	}
	defer re.Release()
	r := compare(c, re)
	if r.Error != nil {
		r.Error = fmt.Errorf("incremental parse: %w", r.Error)
	}
	return r
}

func compare(c *TestCaseWithMetadata, tr *tree.Tree) *TestResult {
	actual := tspec.FromSyntaxTree(tr.Root(), c.TestCase.Source).Fill()
	diffs := tspec.DiffTree(c.TestCase.Output, actual)
	if len(diffs) > 0 {
		return &TestResult{
			TestCasePath: c.FilePath,
			Error:        fmt.Errorf("output mismatch:\n%s", actual.Format()),
			Diffs:        diffs,
		}
	}
	return &TestResult{
		TestCasePath: c.FilePath,
	}
}

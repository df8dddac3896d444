package main

import (
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/nihei9/reparse/driver/parser"
	"github.com/nihei9/reparse/grammar"
	"github.com/nihei9/reparse/tester"
)

var testFlags = struct {
	incremental *bool
	jobs        *int
}{}

func init() {
	cmd := &cobra.Command{
		Use:   "test <grammar file path> <test file path>|<test directory path>|<glob>",
		Short: "Test a grammar",
		Example: `  reparse test grammar.yaml test
  reparse test grammar.yaml 'test/**/*.txt'`,
		Args: cobra.ExactArgs(2),
		RunE: runTest,
	}
	testFlags.incremental = cmd.Flags().Bool("incremental", true, "also check each case with an incremental parse")
	testFlags.jobs = cmd.Flags().IntP("jobs", "j", runtime.NumCPU(), "number of cases run at once")
	rootCmd.AddCommand(cmd)
}

func runTest(cmd *cobra.Command, args []string) error {
	gram, err := readGrammar(args[0])
	if err != nil {
		return fmt.Errorf("Cannot read a grammar: %w", err)
	}
	cg, _, err := grammar.Compile(gram)
	if err != nil {
		return fmt.Errorf("Cannot compile the grammar: %w", err)
	}
	g, err := parser.NewGrammar(cg)
	if err != nil {
		return err
	}

	cs := tester.ListTestCases(args[1])
	errOccurred := false
	for _, c := range cs {
		if c.Error != nil {
			fmt.Fprintf(os.Stderr, "Failed to read a test case or a directory: %v\n%v\n", c.FilePath, c.Error)
			errOccurred = true
		}
	}
	if errOccurred {
		return errors.New("Cannot run test")
	}

	t := &tester.Tester{
		Grammar:     g,
		Cases:       cs,
		Incremental: *testFlags.incremental,
		Concurrency: *testFlags.jobs,
	}
	rs := t.Run()
	testFailed := false
	for _, r := range rs {
		fmt.Fprintln(os.Stdout, r)
		if r.Error != nil {
			testFailed = true
		}
	}
	if testFailed {
		return errors.New("Test failed")
	}
	return nil
}

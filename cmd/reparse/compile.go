package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	verr "github.com/nihei9/reparse/error"
	"github.com/nihei9/reparse/grammar"
	spec "github.com/nihei9/reparse/spec/grammar"
)

var compileFlags = struct {
	output      *string
	compression *int
}{}

func init() {
	cmd := &cobra.Command{
		Use:     "compile [<grammar file path>]",
		Short:   "Compile a grammar description into a parse table",
		Example: `  reparse compile grammar.yaml -o grammar.json`,
		Args:    cobra.MaximumNArgs(1),
		RunE:    runCompile,
	}
	compileFlags.output = cmd.Flags().StringP("output", "o", "", "output file path (default stdout)")
	compileFlags.compression = cmd.Flags().Int("compression", spec.TableCompressionRowDisplacement, "table compression level (0: none, 1: unique entries, 2: row displacement)")
	rootCmd.AddCommand(cmd)
}

func runCompile(cmd *cobra.Command, args []string) (retErr error) {
	var grmPath string
	if len(args) > 0 {
		grmPath = args[0]
	}
	defer func() {
		var specErrs verr.SpecErrors
		if errors.As(retErr, &specErrs) {
			for _, err := range specErrs {
				err.FilePath = grmPath
			}
		}
		var specErr *verr.SpecError
		if errors.As(retErr, &specErr) {
			specErr.FilePath = grmPath
		}
	}()

	gram, err := readGrammar(grmPath)
	if err != nil {
		return err
	}

	cgram, report, err := grammar.Compile(gram, grammar.EnableReporting(), grammar.TableCompression(*compileFlags.compression))
	if err != nil {
		return err
	}

	err = writeCompiledGrammarAndReport(cgram, report, *compileFlags.output)
	if err != nil {
		return fmt.Errorf("Cannot write an output files: %w", err)
	}

	var implicitlyResolvedCount int
	for _, s := range report.States {
		for _, c := range s.SRConflict {
			if c.ResolvedBy == spec.ResolvedByShift {
				implicitlyResolvedCount++
			}
		}
		for _, c := range s.RRConflict {
			if c.ResolvedBy == spec.ResolvedByProdOrder {
				implicitlyResolvedCount++
			}
		}
	}
	if implicitlyResolvedCount > 0 {
		fmt.Fprintf(os.Stderr, "%v conflicts\n", implicitlyResolvedCount)
	}

	return nil
}

// readGrammar reads a YAML grammar description. An empty path means stdin.
func readGrammar(path string) (*grammar.Grammar, error) {
	r := io.Reader(os.Stdin)
	sourceName := "stdin"
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("Cannot open the grammar file %s: %w", path, err)
		}
		defer f.Close()
		r = f
		sourceName = path
	}

	b, err := grammar.ReadDescription(r, sourceName)
	if err != nil {
		return nil, err
	}
	return b.Build()
}

// writeCompiledGrammarAndReport writes a compiled grammar and a report to a files located at a specified path.
// This function selects one of the following output methods depending on how the path is specified.
//
//  1. When the path is a directory path, this function writes the compiled grammar and the report to
//     <path>/<grammar-name>.json and <path>/<grammar-name>-report.json files, respectively.
//  2. When the path is a file path or a non-existent path, this function assumes that the path represents a file
//     path for the compiled grammar. Then it also writes the report in the same directory as the compiled grammar.
//  3. When the path is an empty string, this function writes the compiled grammar to the stdout and writes
//     the report to a file named <current-directory>/<grammar-name>-report.json.
func writeCompiledGrammarAndReport(cgram *spec.CompiledGrammar, report *spec.Report, path string) error {
	cgramPath, reportPath, err := makeOutputFilePaths(cgram.Name, path)
	if err != nil {
		return err
	}

	cgramW := io.Writer(os.Stdout)
	if cgramPath != "" {
		f, err := os.OpenFile(cgramPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
		if err != nil {
			return err
		}
		defer f.Close()
		cgramW = f
	}
	if err := writeJSON(cgramW, cgram); err != nil {
		return err
	}

	f, err := os.OpenFile(reportPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	return writeJSON(f, report)
}

func writeJSON(w io.Writer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%v\n", string(b))
	return err
}

func makeOutputFilePaths(gramName string, path string) (string, string, error) {
	reportFileName := gramName + "-report.json"

	if path == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", "", err
		}
		return "", filepath.Join(wd, reportFileName), nil
	}

	fi, err := os.Stat(path)
	if err != nil && !os.IsNotExist(err) {
		return "", "", err
	}
	if os.IsNotExist(err) || !fi.IsDir() {
		dir, _ := filepath.Split(path)
		return path, filepath.Join(dir, reportFileName), nil
	}

	return filepath.Join(path, gramName+".json"), filepath.Join(path, reportFileName), nil
}

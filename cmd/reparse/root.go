package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
)

var rootFlags = struct {
	verbose *int
	logFile *string
}{}

var rootCmd = &cobra.Command{
	Use:   "reparse",
	Short: "Compile grammars into parse tables and parse texts incrementally",
	Long: `reparse provides the following features:
- Compiles a grammar description into a portable parse table.
- Parses texts into syntax trees, recovering from syntax errors.
- Re-parses edited texts, reusing the unchanged parts of the previous tree.
- Tests a grammar against a corpus of expected trees.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if *rootFlags.logFile != "" {
			commonlog.Configure(*rootFlags.verbose, rootFlags.logFile)
		} else {
			commonlog.Configure(*rootFlags.verbose, nil)
		}
	},
}

func init() {
	rootFlags.verbose = rootCmd.PersistentFlags().CountP("verbose", "v", "add verbosity (-vv prints parser decisions)")
	rootFlags.logFile = rootCmd.PersistentFlags().String("log", "", "log file path (default stderr)")
}

func Execute() error {
	err := rootCmd.ExecuteContext(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return err
	}
	return nil
}

// Package main is the hsclient command line: one-shot REST and JSON-RPC
// calls against an hsd node plus a long running event watcher.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	a := &app{out: out}

	rootCmd := &cobra.Command{
		Use:   "hsclient",
		Short: "Client for the hsd node HTTP, JSON-RPC and socket APIs",
		Long: `hsclient talks to an hsd full node.

Results are printed as JSON. Transport failures are printed in the same
shape as node errors, {"error":{"message":...}}, and exit non-zero.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(out)

	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "", "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Override app.log_level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringArrayVarP(&a.headerArgs, "header", "H", nil, "Extra request header \"Key: Value\" (repeatable)")

	rootCmd.AddCommand(
		infoCmd(a),
		blockCmd(a),
		getCmd(a),
		postCmd(a),
		rpcCmd(a),
		walletCmd(a),
		watchCmd(a),
		versionCmd(),
	)

	return rootCmd
}

// Jnicheck replays native-interface event scripts through the protocol
// checker and serves the results for inspection.
//
// Configuration is read from ~/.config/jnicheck/config.yaml (or --config)
// and JNICHECK_* environment variables. See internal/config for details.
//
// Usage:
//
//	# Replay a script and print the report
//	jnicheck replay app.yaml
//
//	# Re-run whenever the script changes
//	jnicheck replay --watch app.yaml
//
//	# Serve the latest run on the inspection API
//	jnicheck serve --watch app.yaml
//
//	# Query a running server
//	jnicheck stats --server http://127.0.0.1:9464
package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

var (
	configPath string
	verbose    bool
)

// errDiagnostics is returned by replay --strict when a run is not clean.
var errDiagnostics = errors.New("protocol diagnostics reported")

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "jnicheck",
	Short: "Native interface protocol checker",
	Long: `jnicheck validates native-interface call sequences against the
protocol rules of a managed runtime: reference lifetimes, frame capacity,
identifier kinds, field and method types, critical regions, pending
exceptions, and resource leaks.

Event scripts describe what a native library does; jnicheck replays them
against a simulated runtime and reports every violation.`,
	Version:      version,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/jnicheck/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log every applied event")
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(versionCmd)
}

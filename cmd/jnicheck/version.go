package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "jnicheck %s\n", version)
		fmt.Fprintf(cmd.OutOrStdout(), "  commit: %s\n", gitCommit)
		fmt.Fprintf(cmd.OutOrStdout(), "  built:  %s\n", buildDate)
		fmt.Fprintf(cmd.OutOrStdout(), "  go:     %s\n", runtime.Version())
	},
}

// Package main provides the excimetry binary: convert raw profiler sample
// logs to portable profile formats and deliver them to storage or analysis
// backends.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/excimetry/excimetry/internal/cli"
	"github.com/excimetry/excimetry/pkg/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "excimetry",
		Short:         "Excimetry - convert and ship sampled call-stack profiles",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(cli.NewConvertCmd())
	rootCmd.AddCommand(cli.NewPushCmd())
	rootCmd.AddCommand(newVersionCmd())

	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("Excimetry version %s\n", version.Version)
			cmd.Printf("Git commit: %s\n", version.GitCommit)
			cmd.Printf("Build date: %s\n", version.BuildDate)
			cmd.Printf("Go version: %s\n", version.GoVersion)
		},
	}
}

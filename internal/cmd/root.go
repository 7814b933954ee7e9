// Package cmd wires the Task Supervisor, Approval Broker, Session
// Store, and Execution Engine into a Cobra command surface. Argument
// parsing and config-file loading mechanics are intentionally thin
// here — spec.md §1 places the interactive renderer and full CLI
// argument surface out of scope; this package exposes only enough of
// it to exercise the core end to end (`run`, `session`, `task`,
// `approve`, `doctor`).
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Command groups, mirroring gastown's GroupID-based grouping of
// `daemon`/`session`/`doctor` into the help output.
const (
	GroupCore = "core"
	GroupDiag = "diag"
)

var rootCmd = &cobra.Command{
	Use:           "buddy",
	Short:         "A terminal AI assistant with tmux-backed shell execution",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: GroupCore, Title: "Core Commands:"},
		&cobra.Group{ID: GroupDiag, Title: "Diagnostics:"},
	)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(sessionCmd)
	rootCmd.AddCommand(taskCmd)
	rootCmd.AddCommand(approveCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(authCmd)
}

// Execute runs the root command and returns a process exit code,
// matching gastown's `cmd/gt/main.go` -> `os.Exit(cmd.Execute())` shape.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

// requireSubcommand is the RunE for group parent commands that only
// exist to namespace their subcommands (e.g. `buddy session`).
func requireSubcommand(cmd *cobra.Command, args []string) error {
	return cmd.Help()
}

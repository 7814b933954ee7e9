package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// approveCmd documents the ApprovalPolicy surface (§4.2). Like taskCmd,
// the live policy is process-local state inside a running `run`
// session; a standalone invocation has no policy to read or set.
var approveCmd = &cobra.Command{
	Use:     "approve",
	GroupID: GroupCore,
	Short:   "Approval policy control (use /approve inside `run` instead)",
	RunE:    runApproveHelp,
}

func runApproveHelp(cmd *cobra.Command, args []string) error {
	fmt.Println("The approval policy only exists for the lifetime of a running `buddy run` session.")
	fmt.Println("From inside that session, use:")
	fmt.Println("  /approve all            auto-approve every request")
	fmt.Println("  /approve none           auto-deny every request")
	fmt.Println("  /approve ask            prompt the operator (default)")
	fmt.Println("  /approve <duration>     auto-approve until the duration elapses, e.g. /approve 10m")
	return nil
}

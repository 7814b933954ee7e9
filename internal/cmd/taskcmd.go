package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// taskCmd exists only to document the task-control surface (§4.3's
// CancelTask/SetTimeout commands): Task state lives inside a single
// in-process Supervisor for the lifetime of one `run` invocation, so a
// separate standalone process has nothing to attach to. Use the
// `/cancel` and `/timeout` slash commands inside `run` instead.
var taskCmd = &cobra.Command{
	Use:     "task",
	GroupID: GroupCore,
	Short:   "Task control (use /cancel and /timeout inside `run` instead)",
	RunE:    runTaskHelp,
}

func runTaskHelp(cmd *cobra.Command, args []string) error {
	fmt.Println("Tasks only exist for the lifetime of a running `buddy run` session.")
	fmt.Println("From inside that session, use:")
	fmt.Println("  /cancel [task-id]       cancel a running task")
	fmt.Println("  /timeout <dur> [id]     set or refresh a task's deadline")
	return nil
}

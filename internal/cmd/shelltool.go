package cmd

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/0xfe/buddy-sub001/internal/envelope"
	"github.com/0xfe/buddy-sub001/internal/errs"
	"github.com/0xfe/buddy-sub001/internal/execution"
)

// shellTool is the run_shell tool: it runs a command against the
// wired execution.Context, honoring a configured denylist and
// (optionally) gating every invocation behind an approval callback,
// mirroring how gastown's own shell-exec tool sits on top of its
// execution package rather than shelling out directly.
type shellTool struct {
	exec     *execution.Context
	denylist []string
	confirm  bool
	approve  func(ctx context.Context, command, risk string, mutation, privesc bool, why string) (bool, error)
}

func newShellTool(exec *execution.Context, denylist []string, confirm bool, approve func(ctx context.Context, command, risk string, mutation, privesc bool, why string) (bool, error)) *shellTool {
	return &shellTool{exec: exec, denylist: denylist, confirm: confirm, approve: approve}
}

func (t *shellTool) Name() string { return "run_shell" }

type shellArgs struct {
	Command string `json:"command"`
}

// Execute parses argsJSON, enforces the denylist, gates on approval
// when configured, runs the command against the execution backend, and
// wraps the result in the standard tool-result envelope.
func (t *shellTool) Execute(ctx context.Context, argsJSON string) (string, error) {
	var a shellArgs
	if err := json.Unmarshal([]byte(argsJSON), &a); err != nil {
		return "", errs.NewInvalidArguments("run_shell: %v", err)
	}
	if strings.TrimSpace(a.Command) == "" {
		return "", errs.NewInvalidArguments("run_shell: command is required")
	}

	if err := t.checkDenylist(a.Command); err != nil {
		return "", err
	}

	if t.confirm {
		if t.approve == nil {
			return "", errs.NewExecutionFailed("run_shell: confirmation required but no approver configured")
		}
		ok, err := t.approve(ctx, a.Command, riskFor(a.Command), true, false, "run_shell")
		if err != nil {
			return "", err
		}
		if !ok {
			return "", errs.NewExecutionFailed("run_shell: denied by operator")
		}
	}

	out, err := t.exec.RunShellCommand(ctx, a.Command, execution.Wait, 0)
	if err != nil {
		return "", errs.NewExecutionFailed("run_shell: %v", err)
	}

	result := envelope.ShellResult{ExitCode: out.ExitCode, Stdout: out.Stdout, Stderr: out.Stderr}
	return envelope.FormatShellResult(result), nil
}

// checkDenylist rejects a command if any denylist entry appears in it
// as a substring — the same coarse match gastown's tool layer uses for
// its own shell denylist, deliberately simple since the model supplies
// arbitrary free-text commands rather than a parsed argv.
func (t *shellTool) checkDenylist(command string) error {
	lower := strings.ToLower(command)
	for _, bad := range t.denylist {
		if bad == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(bad)) {
			return errs.NewInvalidArguments("run_shell: command matches denylist entry %q", bad)
		}
	}
	return nil
}

// riskFor is a coarse heuristic used only to annotate the approval
// prompt (§4.2's Risk field is decider-facing, not load-bearing); it
// never itself blocks a command, only the denylist and the approval
// decision do.
func riskFor(command string) string {
	lower := strings.ToLower(command)
	for _, marker := range []string{"rm ", "sudo ", "dd ", "mkfs", ">:", "curl ", "wget "} {
		if strings.Contains(lower, marker) {
			return "high"
		}
	}
	return "low"
}

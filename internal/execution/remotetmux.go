package execution

import (
	"context"
	"time"

	"github.com/0xfe/buddy-sub001/internal/errs"
	"github.com/0xfe/buddy-sub001/internal/tmux"
)

// remoteTmux runs the same managed-pane protocol as tmux.Tmux — naming,
// ownership tagging, prompt-marker bootstrap, capture/send/poll — but
// over an arbitrary transport instead of a bare local subprocess. The
// container and SSH tmux backends each supply runTmux/runShell callbacks
// that dispatch through `docker exec`/`ssh` respectively; the protocol
// logic itself is shared with tmux.Tmux via the pure builders in
// internal/tmux.
type remoteTmux struct {
	runTmux  func(ctx context.Context, args ...string) (string, error)
	runShell func(ctx context.Context, script string) (string, error)
	// stage pipes payload into the remote filesystem via this transport's
	// own stdin-capable process (docker exec -i / ssh), running script
	// with payload attached as stdin.
	stage func(ctx context.Context, script string, payload []byte) (string, error)
}

func (r *remoteTmux) capturePane(ctx context.Context, paneID string) (string, error) {
	return r.runTmux(ctx, "capture-pane", "-p", "-t", paneID, "-S", "-")
}

// sendKeysCombo dispatches a SendKeysOptions request through an
// arbitrary runTmux transport: named keys first, then literal text, then
// an optional trailing Enter.
func sendKeysCombo(ctx context.Context, runTmux func(context.Context, ...string) (string, error), target string, options SendKeysOptions) error {
	for _, key := range options.Keys {
		if _, err := runTmux(ctx, "send-keys", "-t", target, key); err != nil {
			return err
		}
	}
	if options.LiteralText != "" {
		if _, err := runTmux(ctx, "send-keys", "-t", target, "-l", options.LiteralText); err != nil {
			return err
		}
	}
	if options.PressEnter {
		if _, err := runTmux(ctx, "send-keys", "-t", target, "Enter"); err != nil {
			return err
		}
	}
	return nil
}

func (r *remoteTmux) sendLine(ctx context.Context, paneID, line string) error {
	if _, err := r.runTmux(ctx, "send-keys", "-t", paneID, "-l", line); err != nil {
		return err
	}
	_, err := r.runTmux(ctx, "send-keys", "-t", paneID, "Enter")
	return err
}

func (r *remoteTmux) ensurePromptSetup(ctx context.Context, paneID string) error {
	if err := r.sendLine(ctx, paneID, tmux.PromptSetupScript); err != nil {
		return err
	}
	if err := r.waitForAnyPrompt(ctx, paneID); err != nil {
		return err
	}
	if err := r.sendLine(ctx, paneID, "clear"); err != nil {
		return err
	}
	return r.waitForAnyPrompt(ctx, paneID)
}

func (r *remoteTmux) waitForAnyPrompt(ctx context.Context, paneID string) error {
	deadline := time.Now().Add(5 * time.Second)
	for {
		capture, err := r.capturePane(ctx, paneID)
		if err != nil {
			return err
		}
		if _, ok := tmux.LatestPromptMarker(capture); ok {
			return nil
		}
		if time.Now().After(deadline) {
			return errs.NewExecutionFailed("timed out waiting for tmux prompt bootstrap in pane %s", paneID)
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func (r *remoteTmux) resolveManagedTarget(ctx context.Context, ownerPrefix, defaultSession string, selector tmux.TargetSelector) (tmux.ResolvedTarget, error) {
	out, err := r.runShell(ctx, tmux.ResolveManagedTargetScript(ownerPrefix, defaultSession, selector))
	if err != nil {
		return tmux.ResolvedTarget{}, err
	}
	resolved, ok := tmux.ParseResolvedTarget(out)
	if !ok {
		return tmux.ResolvedTarget{}, errs.NewExecutionFailed("failed to parse resolved tmux target")
	}
	return resolved, nil
}

func (r *remoteTmux) createManagedSession(ctx context.Context, ownerPrefix, session string, maxSessions int) (tmux.CreatedSession, error) {
	out, err := r.runShell(ctx, tmux.CreateManagedSessionScript(ownerPrefix, session, maxSessions))
	if err != nil {
		return tmux.CreatedSession{}, err
	}
	created, ok := tmux.ParseCreatedSession(out)
	if !ok {
		return tmux.CreatedSession{}, errs.NewExecutionFailed("failed to parse created tmux session")
	}
	return created, nil
}

func (r *remoteTmux) createManagedPane(ctx context.Context, ownerPrefix, defaultSession, session, pane string, maxPanes int) (tmux.CreatedPane, error) {
	out, err := r.runShell(ctx, tmux.CreateManagedPaneScript(ownerPrefix, defaultSession, session, pane, maxPanes))
	if err != nil {
		return tmux.CreatedPane{}, err
	}
	created, ok := tmux.ParseCreatedPane(out)
	if !ok {
		return tmux.CreatedPane{}, errs.NewExecutionFailed("failed to parse created tmux pane")
	}
	return created, nil
}

func (r *remoteTmux) killManagedPane(ctx context.Context, ownerPrefix, defaultSession, session, pane string) (string, string, error) {
	out, err := r.runShell(ctx, tmux.KillManagedPaneScript(ownerPrefix, defaultSession, session, pane))
	if err != nil {
		return "", "", err
	}
	s, p, ok := tmux.ParseKilledPane(out)
	if !ok {
		return "", "", errs.NewExecutionFailed("failed to parse killed tmux pane")
	}
	return s, p, nil
}

func (r *remoteTmux) killManagedSession(ctx context.Context, ownerPrefix, defaultSession, session string) (string, error) {
	out, err := r.runShell(ctx, tmux.KillManagedSessionScript(ownerPrefix, defaultSession, session))
	if err != nil {
		return "", err
	}
	if out == "" {
		return "", errs.NewExecutionFailed("failed to parse killed tmux session")
	}
	return out, nil
}

// runCommand mirrors tmux.Tmux.RunCommand, over this remoteTmux's transport.
func (r *remoteTmux) runCommand(ctx context.Context, paneID, command string, stdin []byte, mode WaitMode, timeout time.Duration) (ExecOutput, error) {
	if mode == NoWait {
		if len(stdin) > 0 {
			return ExecOutput{}, errs.NewInvalidArguments("run_shell wait=false does not support stdin input")
		}
		if err := r.sendLine(ctx, paneID, command); err != nil {
			return ExecOutput{}, err
		}
		return ExecOutput{
			ExitCode: 0,
			Stdout: "command dispatched to tmux pane " + paneID +
				"; still running in background. Use capture-pane (optionally with delay) to poll output.",
		}, nil
	}

	baseline, err := r.capturePane(ctx, paneID)
	if err != nil {
		return ExecOutput{}, err
	}
	startMarker, ok := tmux.LatestPromptMarker(baseline)
	if !ok {
		return ExecOutput{}, errs.NewExecutionFailed(
			"failed to detect baseline tmux prompt marker before command execution",
		)
	}

	runCommand := command
	var stagedDir string
	if len(stdin) > 0 {
		token := uniqueRemoteToken(paneID, command)
		stagedDir = "/tmp/buddy-tmux-" + token
		inputFile := stagedDir + "/stdin"
		stage := "mkdir -p " + shellQuote(stagedDir) + " && cat > " + shellQuote(inputFile)
		if _, err := r.stage(ctx, stage, stdin); err != nil {
			return ExecOutput{}, err
		}
		runCommand = command + " < " + shellQuote(inputFile)
	}

	if err := r.sendLine(ctx, paneID, runCommand); err != nil {
		return ExecOutput{}, err
	}

	var deadline time.Time
	if mode == WaitWithTimeout {
		deadline = time.Now().Add(timeout)
	}

	result, pollErr := r.pollForCompletion(ctx, paneID, startMarker.CommandID, runCommand, deadline, mode == WaitWithTimeout, timeout)

	if stagedDir != "" {
		_, _ = r.runShell(ctx, "rm -rf "+shellQuote(stagedDir))
	}

	return result, pollErr
}

func (r *remoteTmux) pollForCompletion(ctx context.Context, paneID string, startCommandID uint64, command string, deadline time.Time, hasDeadline bool, timeout time.Duration) (ExecOutput, error) {
	for {
		select {
		case <-ctx.Done():
			return ExecOutput{}, ctx.Err()
		default:
		}

		capture, err := r.capturePane(ctx, paneID)
		if err != nil {
			return ExecOutput{}, err
		}
		out, err := tmux.ParseTmuxCaptureOutput(capture, startCommandID, command)
		if err == nil {
			return ExecOutput{ExitCode: out.ExitCode, Stdout: out.Stdout, Stderr: out.Stderr}, nil
		}
		if err != tmux.ErrNotYetComplete {
			return ExecOutput{}, err
		}
		if hasDeadline && time.Now().After(deadline) {
			return ExecOutput{}, errs.NewExecutionFailed(
				"timed out waiting for tmux command completion after %s", timeout,
			)
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func uniqueRemoteToken(target, command string) string {
	h := fnv64aRemote(target + "\x00" + command + "\x00" + time.Now().String())
	return h
}

func fnv64aRemote(s string) string {
	const offset64 = 14695981039346656037
	const prime64 = 1099511628211
	hash := uint64(offset64)
	for i := 0; i < len(s); i++ {
		hash ^= uint64(s[i])
		hash *= prime64
	}
	return toHex16Remote(hash)
}

func toHex16Remote(v uint64) string {
	const hexDigits = "0123456789abcdef"
	buf := make([]byte, 16)
	for i := 15; i >= 0; i-- {
		buf[i] = hexDigits[v&0xf]
		v >>= 4
	}
	return string(buf)
}

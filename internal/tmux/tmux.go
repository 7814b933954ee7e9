// Package tmux implements the managed-pane protocol: ownership-tagged
// session/pane naming and lifecycle scripts, the prompt-marker
// bootstrap, and the capture/send/poll primitives the Execution Engine
// composes into its LocalTmux, ContainerTmux, and SshTmux backends.
//
// This package's own exported Tmux type wraps the local tmux binary
// directly (subprocess invocation via os/exec, stderr-classified
// errors); internal/execution reuses the pure script-building and
// marker-parsing functions above for its ssh/container variants, which
// dispatch through their own transport instead of a local subprocess.
package tmux

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/0xfe/buddy-sub001/internal/errs"
)

// Common errors surfaced by the local tmux wrapper.
var (
	ErrNoServer        = errs.NewExecutionFailed("no tmux server running")
	ErrSessionNotFound = errs.NewExecutionFailed("tmux session not found")
)

// Tmux wraps local tmux operations via subprocess.
type Tmux struct{}

// NewTmux creates a new local Tmux wrapper.
func NewTmux() *Tmux {
	return &Tmux{}
}

// run executes `tmux <args...>` and returns trimmed stdout.
func (t *Tmux) run(args ...string) (string, error) {
	cmd := exec.Command("tmux", args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", wrapTmuxError(err, stderr.String(), args)
	}
	return strings.TrimSpace(stdout.String()), nil
}

// runShellScript executes script through `sh -c` — used for the
// managed-object lifecycle scripts in scripts.go, which invoke tmux
// themselves and communicate failure via stderr + nonzero exit.
func (t *Tmux) runShellScript(script string) (string, error) {
	cmd := exec.Command("sh", "-c", script)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", errs.NewExecutionFailed("%s", msg)
	}
	return stdout.String(), nil
}

// wrapTmuxError classifies a failed tmux invocation by its stderr text.
func wrapTmuxError(err error, stderr string, args []string) error {
	stderr = strings.TrimSpace(stderr)

	if strings.Contains(stderr, "no server running") ||
		strings.Contains(stderr, "error connecting to") {
		return ErrNoServer
	}
	if strings.Contains(stderr, "session not found") ||
		strings.Contains(stderr, "can't find session") {
		return ErrSessionNotFound
	}

	if stderr != "" {
		what := ""
		if len(args) > 0 {
			what = args[0]
		}
		return errs.NewExecutionFailed("tmux %s: %s", what, stderr)
	}
	return errs.NewExecutionFailed("tmux: %v", err)
}

// ResolveManagedTarget resolves and validates a managed tmux pane
// target against the live server.
func (t *Tmux) ResolveManagedTarget(ownerPrefix, defaultSession string, selector TargetSelector) (ResolvedTarget, error) {
	out, err := t.runShellScript(ResolveManagedTargetScript(ownerPrefix, defaultSession, selector))
	if err != nil {
		return ResolvedTarget{}, err
	}
	resolved, ok := ParseResolvedTarget(out)
	if !ok {
		return ResolvedTarget{}, errs.NewExecutionFailed("failed to parse resolved tmux target")
	}
	return resolved, nil
}

// CreateManagedSession creates or reuses a managed tmux session.
func (t *Tmux) CreateManagedSession(ownerPrefix, session string, maxSessions int) (CreatedSession, error) {
	out, err := t.runShellScript(CreateManagedSessionScript(ownerPrefix, session, maxSessions))
	if err != nil {
		return CreatedSession{}, err
	}
	created, ok := ParseCreatedSession(out)
	if !ok {
		return CreatedSession{}, errs.NewExecutionFailed("failed to parse created tmux session")
	}
	return created, nil
}

// CreateManagedPane creates or reuses a managed tmux pane inside an
// existing managed session.
func (t *Tmux) CreateManagedPane(ownerPrefix, defaultSession, session, pane string, maxPanes int) (CreatedPane, error) {
	out, err := t.runShellScript(CreateManagedPaneScript(ownerPrefix, defaultSession, session, pane, maxPanes))
	if err != nil {
		return CreatedPane{}, err
	}
	created, ok := ParseCreatedPane(out)
	if !ok {
		return CreatedPane{}, errs.NewExecutionFailed("failed to parse created tmux pane")
	}
	return created, nil
}

// KillManagedPane kills one managed tmux pane. Refuses to kill the
// pinned default-shared pane.
func (t *Tmux) KillManagedPane(ownerPrefix, defaultSession, session, pane string) (string, string, error) {
	out, err := t.runShellScript(KillManagedPaneScript(ownerPrefix, defaultSession, session, pane))
	if err != nil {
		return "", "", err
	}
	s, p, ok := ParseKilledPane(out)
	if !ok {
		return "", "", errs.NewExecutionFailed("failed to parse killed tmux pane")
	}
	return s, p, nil
}

// KillManagedSession kills one managed tmux session. Refuses to kill
// the pinned default session.
func (t *Tmux) KillManagedSession(ownerPrefix, defaultSession, session string) (string, error) {
	out, err := t.runShellScript(KillManagedSessionScript(ownerPrefix, defaultSession, session))
	if err != nil {
		return "", err
	}
	result := strings.TrimSpace(out)
	if result == "" {
		return "", errs.NewExecutionFailed("failed to parse killed tmux session")
	}
	return result, nil
}

// CapturePane captures the full scrollback of paneID.
func (t *Tmux) CapturePane(paneID string) (string, error) {
	return t.run("capture-pane", "-p", "-t", paneID, "-S", "-")
}

// SendLine sends line as a literal keystroke payload to paneID followed
// by Enter, matching the original's two-step send_keys dispatch (-l
// for the literal text, then a bare Enter so shell line-editing never
// sees control characters embedded in the payload).
func (t *Tmux) SendLine(paneID, line string) error {
	if _, err := t.run("send-keys", "-t", paneID, "-l", line); err != nil {
		return err
	}
	_, err := t.run("send-keys", "-t", paneID, "Enter")
	return err
}

// EnsurePromptSetup installs the prompt-marker bootstrap script in
// paneID and waits for it to take effect, then clears the pane so the
// bootstrap script itself never pollutes later output parsing.
func (t *Tmux) EnsurePromptSetup(paneID string) error {
	if err := t.SendLine(paneID, PromptSetupScript); err != nil {
		return err
	}
	if err := t.waitForAnyPrompt(paneID); err != nil {
		return err
	}
	if err := t.SendLine(paneID, "clear"); err != nil {
		return err
	}
	return t.waitForAnyPrompt(paneID)
}

func (t *Tmux) waitForAnyPrompt(paneID string) error {
	deadline := time.Now().Add(5 * time.Second)
	for {
		capture, err := t.CapturePane(paneID)
		if err != nil {
			return err
		}
		if _, ok := LatestPromptMarker(capture); ok {
			return nil
		}
		if time.Now().After(deadline) {
			return errs.NewExecutionFailed("timed out waiting for tmux prompt bootstrap in pane %s", paneID)
		}
		time.Sleep(50 * time.Millisecond)
	}
}

// WaitMode selects how RunCommand should behave.
type WaitMode int

const (
	// Wait blocks until the command completes, with no timeout.
	Wait WaitMode = iota
	// WaitWithTimeout blocks until the command completes or a timeout
	// elapses.
	WaitWithTimeout
	// NoWait dispatches the command and returns immediately with an
	// advisory ExecOutput.
	NoWait
)

// RunCommand sends command to paneID and, per mode, waits for its
// completion prompt marker (polling every 50ms) or returns immediately.
// stdin is only supported in Wait/WaitWithTimeout modes; the original
// protocol has no way to inject input into a NoWait dispatch, since
// nothing reads the pane until the caller polls it explicitly.
func (t *Tmux) RunCommand(ctx context.Context, paneID, command string, stdin []byte, mode WaitMode, timeout time.Duration) (ExecOutput, error) {
	if mode == NoWait {
		if len(stdin) > 0 {
			return ExecOutput{}, errs.NewInvalidArguments("run_shell wait=false does not support stdin input")
		}
		if err := t.SendLine(paneID, command); err != nil {
			return ExecOutput{}, err
		}
		return ExecOutput{
			ExitCode: 0,
			Stdout: "command dispatched to tmux pane " + paneID +
				"; still running in background. Use capture-pane (optionally with delay) to poll output.",
			Stderr: "",
		}, nil
	}

	baseline, err := t.CapturePane(paneID)
	if err != nil {
		return ExecOutput{}, err
	}
	startMarker, ok := LatestPromptMarker(baseline)
	if !ok {
		return ExecOutput{}, errs.NewExecutionFailed(
			"failed to detect baseline tmux prompt marker before command execution",
		)
	}

	runCommand := command
	var stagedDir string
	if len(stdin) > 0 {
		token := uniqueToken(paneID, command)
		stagedDir = "/tmp/buddy-tmux-" + token
		inputFile := stagedDir + "/stdin"
		if err := t.stageStdin(stagedDir, inputFile, stdin); err != nil {
			return ExecOutput{}, err
		}
		runCommand = command + " < " + shellQuote(inputFile)
	}

	if err := t.SendLine(paneID, runCommand); err != nil {
		return ExecOutput{}, err
	}

	var deadline time.Time
	if mode == WaitWithTimeout {
		deadline = time.Now().Add(timeout)
	}

	result, pollErr := t.pollForCompletion(ctx, paneID, startMarker.CommandID, runCommand, deadline, mode == WaitWithTimeout, timeout)

	if stagedDir != "" {
		_, _ = t.runShellScript("rm -rf " + shellQuote(stagedDir))
	}

	return result, pollErr
}

func (t *Tmux) pollForCompletion(ctx context.Context, paneID string, startCommandID uint64, command string, deadline time.Time, hasDeadline bool, timeout time.Duration) (ExecOutput, error) {
	for {
		select {
		case <-ctx.Done():
			return ExecOutput{}, ctx.Err()
		default:
		}

		capture, err := t.CapturePane(paneID)
		if err != nil {
			return ExecOutput{}, err
		}
		out, err := ParseTmuxCaptureOutput(capture, startCommandID, command)
		if err == nil {
			return out, nil
		}
		if err != ErrNotYetComplete {
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

// stageStdin writes payload to a temp file inside the pane's own
// filesystem by piping it through a plain (non-tmux) shell invocation,
// mirroring the original's use of a raw process for staging rather than
// typing binary data into the pane via send-keys.
func (t *Tmux) stageStdin(dir, file string, payload []byte) error {
	cmd := exec.Command("sh", "-c", "mkdir -p "+shellQuote(dir)+" && cat > "+shellQuote(file))
	cmd.Stdin = bytes.NewReader(payload)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return errs.NewExecutionFailed("failed to stage tmux stdin: %s", msg)
	}
	return nil
}

// uniqueToken derives a short hex token from target+command+time, used
// to namespace staged-stdin temp directories so concurrent runs never
// collide.
func uniqueToken(target, command string) string {
	h := fnv64a(target + "\x00" + command + "\x00" + time.Now().String())
	return h
}

func fnv64a(s string) string {
	const offset64 = 14695981039346656037
	const prime64 = 1099511628211
	hash := uint64(offset64)
	for i := 0; i < len(s); i++ {
		hash ^= uint64(s[i])
		hash *= prime64
	}
	return toHex16(hash)
}

func toHex16(v uint64) string {
	const hexDigits = "0123456789abcdef"
	buf := make([]byte, 16)
	for i := 15; i >= 0; i-- {
		buf[i] = hexDigits[v&0xf]
		v >>= 4
	}
	return string(buf)
}

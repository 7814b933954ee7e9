package execution

import (
	"context"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/0xfe/buddy-sub001/internal/errs"
	"github.com/0xfe/buddy-sub001/internal/tmux"
)

// localBackend runs commands directly on this machine with no tmux
// multiplexing.
type localBackend struct{}

func newLocalBackend() backend { return localBackend{} }

func (localBackend) Summary() string                { return "local" }
func (localBackend) TmuxAttachInfo() *TmuxAttachInfo { return nil }
func (localBackend) StartupExistingTmuxPane() string { return "" }
func (localBackend) TmuxManagementAvailable() bool   { return false }
func (b localBackend) CapturePaneAvailable() bool    { return localTmuxPaneTarget() != "" }

func (b localBackend) CapturePane(ctx context.Context, options CapturePaneOptions) (string, error) {
	target := options.Target
	if target == "" {
		target = localTmuxPaneTarget()
	}
	if target == "" {
		return "", errs.NewExecutionFailed("capture-pane requires an active tmux session")
	}
	return tmux.NewTmux().CapturePane(target)
}

func (b localBackend) SendKeys(ctx context.Context, options SendKeysOptions) (string, error) {
	target := options.Target
	if target == "" {
		target = localTmuxPaneTarget()
	}
	if target == "" {
		return "", errs.NewExecutionFailed("send-keys requires an active tmux session")
	}
	if err := sendKeysCombo(ctx, func(c context.Context, args ...string) (string, error) {
		return runLocalTmuxCommand(c, args...)
	}, target, options); err != nil {
		return "", err
	}
	return "sent keys to tmux pane " + target, nil
}

func (b localBackend) RunShellCommand(ctx context.Context, command string, mode WaitMode, timeout time.Duration) (ExecOutput, error) {
	if mode == NoWait {
		target := localTmuxPaneTarget()
		if target == "" {
			return ExecOutput{}, errs.NewExecutionFailed("run_shell wait=false requires an active tmux session")
		}
		if err := tmux.NewTmux().SendLine(target, command); err != nil {
			return ExecOutput{}, err
		}
		return ExecOutput{
			ExitCode: 0,
			Stdout: "command dispatched to tmux pane " + target +
				"; still running in background. Use capture-pane (optionally with delay) to poll output.",
		}, nil
	}
	return runWithWait(ctx, func(c context.Context) (ExecOutput, error) {
		return runShProcess(c, command, nil)
	}, mode, timeout, "timed out waiting for local command completion")
}

func (b localBackend) RunShellCommandTargeted(ctx context.Context, command string, mode WaitMode, timeout time.Duration, resolved ResolvedTmuxTarget) (ExecOutput, error) {
	return ExecOutput{}, errs.NewExecutionFailed("targeted tmux execution is unavailable for the plain local backend")
}

func (b localBackend) ReadFile(ctx context.Context, path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", errs.NewExecutionFailed("%s: %s", path, err.Error())
	}
	return string(content), nil
}

func (b localBackend) WriteFile(ctx context.Context, path string, content string) error {
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return errs.NewExecutionFailed("%s: %s", path, err.Error())
	}
	return nil
}

func (b localBackend) ResolveTmuxTarget(ctx context.Context, selector TmuxTargetSelector, ensureDefaultShared bool) (ResolvedTmuxTarget, error) {
	return ResolvedTmuxTarget{}, errs.NewExecutionFailed("tmux management is unavailable for the plain local backend")
}
func (b localBackend) CreateTmuxSession(ctx context.Context, session string) (CreatedTmuxSession, error) {
	return CreatedTmuxSession{}, errs.NewExecutionFailed("tmux management is unavailable for the plain local backend")
}
func (b localBackend) KillTmuxSession(ctx context.Context, session string) (string, error) {
	return "", errs.NewExecutionFailed("tmux management is unavailable for the plain local backend")
}
func (b localBackend) CreateTmuxPane(ctx context.Context, session, pane string) (CreatedTmuxPane, error) {
	return CreatedTmuxPane{}, errs.NewExecutionFailed("tmux management is unavailable for the plain local backend")
}
func (b localBackend) KillTmuxPane(ctx context.Context, session, pane string) (string, error) {
	return "", errs.NewExecutionFailed("tmux management is unavailable for the plain local backend")
}

// localTmuxAllowed gates local-tmux auto-detection so unit tests never
// accidentally reach for a real tmux pane via $TMUX_PANE.
var localTmuxAllowed = os.Getenv("BUDDY_TEST_USE_REAL_TMUX") == "1" || os.Getenv("BUDDY_NO_TEST_GUARD") == "1"

func localTmuxPaneTarget() string {
	if !localTmuxAllowed {
		return ""
	}
	pane := strings.TrimSpace(os.Getenv("TMUX_PANE"))
	return pane
}

// localTmuxContext multiplexes local execution through a managed tmux
// pane, reusing the protocol in internal/tmux via remoteTmux so the same
// polling/marker logic backs local, container, and SSH tmux variants.
type localTmuxContext struct {
	ownerPrefix    string
	tmuxSession    string
	maxSessions    int
	maxPanes       int
	configuredPane string
	startupPane    string
	rt             *remoteTmux
}

// newLocalTmuxContext probes for a local tmux binary, forbids running
// from inside an already-managed pane, and ensures the default pane.
func newLocalTmuxContext(ctx context.Context, requestedSession, agentName string, maxSessions, maxPanes int) (backend, error) {
	if strings.TrimSpace(requestedSession) == "" && requestedSession != "" {
		return nil, errs.NewExecutionFailed("tmux session name cannot be empty")
	}

	probe, err := runShProcess(ctx, "command -v tmux >/dev/null 2>&1", nil)
	if err != nil || probe.ExitCode != 0 {
		return nil, errs.NewExecutionFailed("local machine does not have tmux installed, but --tmux was provided")
	}

	ownerPrefix := defaultTmuxSessionNameForAgent(agentName)
	session := tmux.CanonicalSessionName(ownerPrefix, ownerPrefix, requestedSession)

	if err := ensureNotInManagedLocalTmuxPane(); err != nil {
		return nil, err
	}

	rt := &remoteTmux{
		runTmux: func(c context.Context, args ...string) (string, error) {
			return runLocalTmuxCommand(c, args...)
		},
		runShell: func(c context.Context, script string) (string, error) {
			out, err := runShProcess(c, script, nil)
			if err != nil {
				return "", err
			}
			out, err = ensureSuccess(out, "tmux script failed")
			if err != nil {
				return "", err
			}
			return out.Stdout, nil
		},
		stage: func(c context.Context, script string, payload []byte) (string, error) {
			out, err := runShProcess(c, script, payload)
			if err != nil {
				return "", err
			}
			_, err = ensureSuccess(out, "failed to stage tmux stdin")
			return "", err
		},
	}

	maxSessions = maxOne(maxSessions)
	maxPanes = maxOne(maxPanes)

	created, err := rt.createManagedPane(ctx, ownerPrefix, ownerPrefix, "", "", maxPanes)
	if err != nil {
		return nil, err
	}
	if created.Created {
		if err := rt.ensurePromptSetup(ctx, created.PaneID); err != nil {
			return nil, err
		}
	}
	startup := ""
	if !created.Created {
		startup = created.PaneID
	}

	return &localTmuxContext{
		ownerPrefix:    ownerPrefix,
		tmuxSession:    session,
		maxSessions:    maxSessions,
		maxPanes:       maxPanes,
		configuredPane: created.PaneID,
		startupPane:    startup,
		rt:             rt,
	}, nil
}

// defaultTmuxSessionNameForAgent derives the ownership prefix every
// managed tmux object created by this process carries, namespaced by
// the running agent's name.
func defaultTmuxSessionNameForAgent(agentName string) string {
	return tmux.OwnershipPrefix("buddy", agentName)
}

func maxOne(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

func runLocalTmuxCommand(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "tmux", args...)
	out, err := cmd.Output()
	if err != nil {
		return "", errs.NewExecutionFailed("tmux %s: %s", strings.Join(args, " "), err.Error())
	}
	return strings.TrimSpace(string(out)), nil
}

func ensureNotInManagedLocalTmuxPane() error {
	current := localTmuxPaneTarget()
	if current == "" {
		return nil
	}
	out, err := runLocalTmuxCommand(context.Background(), "display-message", "-p", "-t", current, "#{pane_title}\n#{window_name}")
	if err != nil {
		return errs.NewExecutionFailed("failed to inspect current tmux pane")
	}
	lines := strings.SplitN(out, "\n", 2)
	paneTitle := strings.TrimSpace(lines[0])
	windowName := ""
	if len(lines) > 1 {
		windowName = strings.TrimSpace(lines[1])
	}
	if paneTitle == tmux.DefaultPaneTitle || (paneTitle == "" && windowName == tmux.WindowName) {
		return errs.NewExecutionFailed("buddy should be run from a different terminal when --tmux is enabled (current pane is shared)")
	}
	return nil
}

func (c *localTmuxContext) ensurePromptReady(ctx context.Context) (string, error) {
	if c.configuredPane != "" {
		if _, err := runLocalTmuxCommand(ctx, "display-message", "-p", "-t", c.configuredPane, "#{pane_id}"); err == nil {
			return c.configuredPane, nil
		}
	}
	created, err := c.rt.createManagedPane(ctx, c.ownerPrefix, c.ownerPrefix, "", "", c.maxPanes)
	if err != nil {
		return "", err
	}
	if created.Created {
		if err := c.rt.ensurePromptSetup(ctx, created.PaneID); err != nil {
			return "", err
		}
	}
	c.configuredPane = created.PaneID
	return created.PaneID, nil
}

func (c *localTmuxContext) Summary() string { return "local (tmux:" + c.tmuxSession + ")" }
func (c *localTmuxContext) TmuxAttachInfo() *TmuxAttachInfo {
	return &TmuxAttachInfo{Session: c.tmuxSession, Window: tmux.DefaultPaneTitle, Target: TmuxAttachTarget{Kind: AttachLocal}}
}
func (c *localTmuxContext) StartupExistingTmuxPane() string { return c.startupPane }
func (c *localTmuxContext) CapturePaneAvailable() bool      { return true }
func (c *localTmuxContext) TmuxManagementAvailable() bool   { return true }

func (c *localTmuxContext) CapturePane(ctx context.Context, options CapturePaneOptions) (string, error) {
	target := options.Target
	if target == "" {
		pane, err := c.ensurePromptReady(ctx)
		if err != nil {
			return "", err
		}
		target = pane
	}
	return c.rt.capturePane(ctx, target)
}

func (c *localTmuxContext) SendKeys(ctx context.Context, options SendKeysOptions) (string, error) {
	target := options.Target
	if target == "" {
		pane, err := c.ensurePromptReady(ctx)
		if err != nil {
			return "", err
		}
		target = pane
	}
	if err := sendKeysCombo(ctx, c.rt.runTmux, target, options); err != nil {
		return "", err
	}
	return "sent keys to tmux pane " + target, nil
}

func (c *localTmuxContext) RunShellCommand(ctx context.Context, command string, mode WaitMode, timeout time.Duration) (ExecOutput, error) {
	pane, err := c.ensurePromptReady(ctx)
	if err != nil {
		return ExecOutput{}, err
	}
	return c.rt.runCommand(ctx, pane, command, nil, mode, timeout)
}

func (c *localTmuxContext) RunShellCommandTargeted(ctx context.Context, command string, mode WaitMode, timeout time.Duration, resolved ResolvedTmuxTarget) (ExecOutput, error) {
	return c.rt.runCommand(ctx, resolved.PaneID, command, nil, mode, timeout)
}

func (c *localTmuxContext) ReadFile(ctx context.Context, path string) (string, error) {
	out, err := c.RunShellCommand(ctx, "cat -- "+shellQuote(path), Wait, 0)
	if err != nil {
		return "", err
	}
	if out.ExitCode != 0 {
		return "", errs.NewExecutionFailed("%s: command exited with status %d", path, out.ExitCode)
	}
	return out.Stdout, nil
}

func (c *localTmuxContext) WriteFile(ctx context.Context, path string, content string) error {
	out, err := c.rt.runCommand(ctx, c.configuredPane, "cat > "+shellQuote(path), []byte(content), Wait, 0)
	if err != nil {
		return err
	}
	if out.ExitCode != 0 {
		return errs.NewExecutionFailed("%s: command exited with status %d", path, out.ExitCode)
	}
	return nil
}

func (c *localTmuxContext) ResolveTmuxTarget(ctx context.Context, selector TmuxTargetSelector, ensureDefaultShared bool) (ResolvedTmuxTarget, error) {
	resolved, err := c.rt.resolveManagedTarget(ctx, c.ownerPrefix, c.tmuxSession, tmux.TargetSelector(selector))
	if err != nil {
		return ResolvedTmuxTarget{}, err
	}
	return ResolvedTmuxTarget(resolved), nil
}

func (c *localTmuxContext) CreateTmuxSession(ctx context.Context, session string) (CreatedTmuxSession, error) {
	created, err := c.rt.createManagedSession(ctx, c.ownerPrefix, session, c.maxSessions)
	if err != nil {
		return CreatedTmuxSession{}, err
	}
	return CreatedTmuxSession(created), nil
}

func (c *localTmuxContext) KillTmuxSession(ctx context.Context, session string) (string, error) {
	return c.rt.killManagedSession(ctx, c.ownerPrefix, c.tmuxSession, session)
}

func (c *localTmuxContext) CreateTmuxPane(ctx context.Context, session, pane string) (CreatedTmuxPane, error) {
	created, err := c.rt.createManagedPane(ctx, c.ownerPrefix, c.tmuxSession, session, pane, c.maxPanes)
	if err != nil {
		return CreatedTmuxPane{}, err
	}
	return CreatedTmuxPane(created), nil
}

func (c *localTmuxContext) KillTmuxPane(ctx context.Context, session, pane string) (string, error) {
	killedSession, killedPane, err := c.rt.killManagedPane(ctx, c.ownerPrefix, c.tmuxSession, session, pane)
	if err != nil {
		return "", err
	}
	return "killed tmux pane " + killedPane + " in session " + killedSession, nil
}

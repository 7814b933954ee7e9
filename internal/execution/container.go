package execution

import (
	"context"
	"strings"
	"time"

	"github.com/0xfe/buddy-sub001/internal/errs"
	"github.com/0xfe/buddy-sub001/internal/tmux"
)

// containerBackend runs commands via `docker exec`/`podman exec` with no
// tmux multiplexing.
type containerBackend struct {
	engine    ContainerEngine
	container string
}

func newContainerBackend(ctx context.Context, container string) (backend, error) {
	if strings.TrimSpace(container) == "" {
		return nil, errs.NewExecutionFailed("container id/name cannot be empty")
	}
	engine, err := detectContainerEngine(ctx)
	if err != nil {
		return nil, err
	}
	return &containerBackend{engine: engine, container: container}, nil
}

func (c *containerBackend) Summary() string {
	suffix := ""
	if c.engine.Kind == EnginePodman && c.engine.Command == "docker" {
		suffix = ", podman-compatible"
	}
	return "container:" + c.container + " (via " + c.engine.Command + suffix + ")"
}

func (c *containerBackend) TmuxAttachInfo() *TmuxAttachInfo   { return nil }
func (c *containerBackend) StartupExistingTmuxPane() string   { return "" }
func (c *containerBackend) CapturePaneAvailable() bool        { return false }
func (c *containerBackend) TmuxManagementAvailable() bool     { return false }

func (c *containerBackend) CapturePane(ctx context.Context, options CapturePaneOptions) (string, error) {
	return "", errs.NewExecutionFailed("capture-pane is unavailable for container execution targets")
}

func (c *containerBackend) SendKeys(ctx context.Context, options SendKeysOptions) (string, error) {
	return "", errs.NewExecutionFailed("send-keys is unavailable for container execution targets")
}

func (c *containerBackend) RunShellCommand(ctx context.Context, command string, mode WaitMode, timeout time.Duration) (ExecOutput, error) {
	if mode == NoWait {
		return ExecOutput{}, errs.NewExecutionFailed("run_shell wait=false requires a tmux-backed execution target")
	}
	return runWithWait(ctx, func(c2 context.Context) (ExecOutput, error) {
		return runContainerShProcess(c2, c.engine, c.container, command, nil)
	}, mode, timeout, "timed out waiting for container command completion")
}

func (c *containerBackend) RunShellCommandTargeted(ctx context.Context, command string, mode WaitMode, timeout time.Duration, resolved ResolvedTmuxTarget) (ExecOutput, error) {
	return ExecOutput{}, errs.NewExecutionFailed("targeted tmux execution is unavailable for the plain container backend")
}

func (c *containerBackend) ReadFile(ctx context.Context, path string) (string, error) {
	out, err := runContainerShProcess(ctx, c.engine, c.container, "cat -- "+shellQuote(path), nil)
	if err != nil {
		return "", err
	}
	out, err = ensureSuccess(out, path)
	if err != nil {
		return "", err
	}
	return out.Stdout, nil
}

func (c *containerBackend) WriteFile(ctx context.Context, path string, content string) error {
	out, err := runContainerShProcess(ctx, c.engine, c.container, "cat > "+shellQuote(path), []byte(content))
	if err != nil {
		return err
	}
	_, err = ensureSuccess(out, path)
	return err
}

func (c *containerBackend) ResolveTmuxTarget(ctx context.Context, selector TmuxTargetSelector, ensureDefaultShared bool) (ResolvedTmuxTarget, error) {
	return ResolvedTmuxTarget{}, errs.NewExecutionFailed("tmux management is unavailable for the plain container backend")
}
func (c *containerBackend) CreateTmuxSession(ctx context.Context, session string) (CreatedTmuxSession, error) {
	return CreatedTmuxSession{}, errs.NewExecutionFailed("tmux management is unavailable for the plain container backend")
}
func (c *containerBackend) KillTmuxSession(ctx context.Context, session string) (string, error) {
	return "", errs.NewExecutionFailed("tmux management is unavailable for the plain container backend")
}
func (c *containerBackend) CreateTmuxPane(ctx context.Context, session, pane string) (CreatedTmuxPane, error) {
	return CreatedTmuxPane{}, errs.NewExecutionFailed("tmux management is unavailable for the plain container backend")
}
func (c *containerBackend) KillTmuxPane(ctx context.Context, session, pane string) (string, error) {
	return "", errs.NewExecutionFailed("tmux management is unavailable for the plain container backend")
}

// containerTmuxContext multiplexes container execution through a managed
// tmux session reached via `<engine> exec`.
type containerTmuxContext struct {
	engine         ContainerEngine
	container      string
	ownerPrefix    string
	tmuxSession    string
	maxSessions    int
	maxPanes       int
	configuredPane string
	startupPane    string
	rt             *remoteTmux
}

func newContainerTmuxContext(ctx context.Context, container, requestedSession, agentName string, maxSessions, maxPanes int) (backend, error) {
	if strings.TrimSpace(container) == "" {
		return nil, errs.NewExecutionFailed("container id/name cannot be empty")
	}
	if strings.TrimSpace(requestedSession) == "" && requestedSession != "" {
		return nil, errs.NewExecutionFailed("tmux session name cannot be empty")
	}

	engine, err := detectContainerEngine(ctx)
	if err != nil {
		return nil, err
	}
	ownerPrefix := defaultTmuxSessionNameForAgent(agentName)
	session := tmux.CanonicalSessionName(ownerPrefix, ownerPrefix, requestedSession)

	probe, err := runContainerShProcess(ctx, engine, container, "command -v tmux >/dev/null 2>&1", nil)
	if err != nil || probe.ExitCode != 0 {
		return nil, errs.NewExecutionFailed("container %s does not have tmux installed, but --tmux was provided", container)
	}

	rt := &remoteTmux{
		runTmux: func(c context.Context, args ...string) (string, error) {
			return runProcessText(c, engine.Command, append([]string{"exec", container, "tmux"}, args...))
		},
		runShell: func(c context.Context, script string) (string, error) {
			out, err := runContainerShProcess(c, engine, container, script, nil)
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
			out, err := runContainerShProcess(c, engine, container, script, payload)
			if err != nil {
				return "", err
			}
			_, err = ensureSuccess(out, "failed to stage tmux stdin")
			return "", err
		},
	}

	maxSessions = maxOne(maxSessions)
	maxPanes = maxOne(maxPanes)

	ctc := &containerTmuxContext{
		engine:      engine,
		container:   container,
		ownerPrefix: ownerPrefix,
		tmuxSession: session,
		maxSessions: maxSessions,
		maxPanes:    maxPanes,
		rt:          rt,
	}

	created, err := rt.createManagedPane(ctx, ownerPrefix, ownerPrefix, "", "", maxPanes)
	if err != nil {
		return nil, err
	}
	if created.Created {
		if err := rt.ensurePromptSetup(ctx, created.PaneID); err != nil {
			return nil, err
		}
	} else {
		ctc.startupPane = created.PaneID
	}
	ctc.configuredPane = created.PaneID

	return ctc, nil
}

func (c *containerTmuxContext) podmanSuffix() string {
	if c.engine.Kind == EnginePodman && c.engine.Command == "docker" {
		return ", podman-compatible"
	}
	return ""
}

func (c *containerTmuxContext) Summary() string {
	return "container:" + c.container + " (tmux:" + c.tmuxSession + ") (via " + c.engine.Command + c.podmanSuffix() + ")"
}

func (c *containerTmuxContext) TmuxAttachInfo() *TmuxAttachInfo {
	return &TmuxAttachInfo{
		Session: c.tmuxSession,
		Window:  tmux.DefaultPaneTitle,
		Target:  TmuxAttachTarget{Kind: AttachContainer, Engine: c.engine.Command, Container: c.container},
	}
}

func (c *containerTmuxContext) StartupExistingTmuxPane() string { return c.startupPane }
func (c *containerTmuxContext) CapturePaneAvailable() bool      { return true }
func (c *containerTmuxContext) TmuxManagementAvailable() bool   { return true }

func (c *containerTmuxContext) ensurePromptReady(ctx context.Context) (string, error) {
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

func (c *containerTmuxContext) CapturePane(ctx context.Context, options CapturePaneOptions) (string, error) {
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

func (c *containerTmuxContext) SendKeys(ctx context.Context, options SendKeysOptions) (string, error) {
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

func (c *containerTmuxContext) RunShellCommand(ctx context.Context, command string, mode WaitMode, timeout time.Duration) (ExecOutput, error) {
	pane, err := c.ensurePromptReady(ctx)
	if err != nil {
		return ExecOutput{}, err
	}
	return c.rt.runCommand(ctx, pane, command, nil, mode, timeout)
}

func (c *containerTmuxContext) RunShellCommandTargeted(ctx context.Context, command string, mode WaitMode, timeout time.Duration, resolved ResolvedTmuxTarget) (ExecOutput, error) {
	return c.rt.runCommand(ctx, resolved.PaneID, command, nil, mode, timeout)
}

func (c *containerTmuxContext) ReadFile(ctx context.Context, path string) (string, error) {
	out, err := c.RunShellCommand(ctx, "cat -- "+shellQuote(path), Wait, 0)
	if err != nil {
		return "", err
	}
	if out.ExitCode != 0 {
		return "", errs.NewExecutionFailed("%s: command exited with status %d", path, out.ExitCode)
	}
	return out.Stdout, nil
}

func (c *containerTmuxContext) WriteFile(ctx context.Context, path string, content string) error {
	out, err := c.rt.runCommand(ctx, c.configuredPane, "cat > "+shellQuote(path), []byte(content), Wait, 0)
	if err != nil {
		return err
	}
	if out.ExitCode != 0 {
		return errs.NewExecutionFailed("%s: command exited with status %d", path, out.ExitCode)
	}
	return nil
}

func (c *containerTmuxContext) ResolveTmuxTarget(ctx context.Context, selector TmuxTargetSelector, ensureDefaultShared bool) (ResolvedTmuxTarget, error) {
	resolved, err := c.rt.resolveManagedTarget(ctx, c.ownerPrefix, c.tmuxSession, tmux.TargetSelector(selector))
	if err != nil {
		return ResolvedTmuxTarget{}, err
	}
	return ResolvedTmuxTarget(resolved), nil
}

func (c *containerTmuxContext) CreateTmuxSession(ctx context.Context, session string) (CreatedTmuxSession, error) {
	created, err := c.rt.createManagedSession(ctx, c.ownerPrefix, session, c.maxSessions)
	if err != nil {
		return CreatedTmuxSession{}, err
	}
	return CreatedTmuxSession(created), nil
}

func (c *containerTmuxContext) KillTmuxSession(ctx context.Context, session string) (string, error) {
	return c.rt.killManagedSession(ctx, c.ownerPrefix, c.tmuxSession, session)
}

func (c *containerTmuxContext) CreateTmuxPane(ctx context.Context, session, pane string) (CreatedTmuxPane, error) {
	created, err := c.rt.createManagedPane(ctx, c.ownerPrefix, c.tmuxSession, session, pane, c.maxPanes)
	if err != nil {
		return CreatedTmuxPane{}, err
	}
	return CreatedTmuxPane(created), nil
}

func (c *containerTmuxContext) KillTmuxPane(ctx context.Context, session, pane string) (string, error) {
	killedSession, killedPane, err := c.rt.killManagedPane(ctx, c.ownerPrefix, c.tmuxSession, session, pane)
	if err != nil {
		return "", err
	}
	return "killed tmux pane " + killedPane + " in session " + killedSession, nil
}

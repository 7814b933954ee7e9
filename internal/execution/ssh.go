package execution

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/0xfe/buddy-sub001/internal/errs"
	"github.com/0xfe/buddy-sub001/internal/tmux"
)

// sshContext runs commands on a remote host over a persistent SSH
// control-master connection, optionally multiplexed through a managed
// tmux session when the remote host has tmux installed.
type sshContext struct {
	target         string
	controlPath    string
	tmuxSession    string // "" when no managed tmux session is configured
	ownerPrefix    string
	maxSessions    int
	maxPanes       int
	configuredPane string
	startupPane    string
	rt             *remoteTmux
}

func newSSHContext(ctx context.Context, target, requestedSession, agentName string, maxSessions, maxPanes int) (*sshContext, error) {
	if strings.TrimSpace(target) == "" {
		return nil, errs.NewExecutionFailed("ssh target cannot be empty")
	}
	if strings.TrimSpace(requestedSession) == "" && requestedSession != "" {
		return nil, errs.NewExecutionFailed("tmux session name cannot be empty")
	}

	controlPath := buildSSHControlPath(target)
	openResult, err := runProcess(ctx, "ssh", []string{
		"-MNf", "-o", "ControlMaster=yes", "-o", "ControlPersist=yes",
		"-o", "ControlPath=" + controlPath, target,
	}, nil)
	if err != nil {
		return nil, err
	}
	if _, err := ensureSuccess(openResult, "failed to open persistent ssh connection"); err != nil {
		return nil, err
	}

	ownerPrefix := defaultTmuxSessionNameForAgent(agentName)

	tmuxProbe, err := runSSHRawProcess(ctx, target, controlPath, "command -v tmux >/dev/null 2>&1", nil)
	var tmuxSession string
	if err == nil && tmuxProbe.ExitCode == 0 {
		tmuxSession = tmux.CanonicalSessionName(ownerPrefix, ownerPrefix, requestedSession)
	} else if requestedSession != "" {
		closeSSHControlConnection(target, controlPath)
		return nil, errs.NewExecutionFailed("remote host does not have tmux installed, but --tmux was provided")
	}

	sc := &sshContext{
		target:      target,
		controlPath: controlPath,
		tmuxSession: tmuxSession,
		ownerPrefix: ownerPrefix,
		maxSessions: maxOne(maxSessions),
		maxPanes:    maxOne(maxPanes),
	}
	sc.rt = &remoteTmux{
		runTmux: func(c context.Context, args ...string) (string, error) {
			return runProcessText(c, "ssh", sshTmuxArgs(target, controlPath, args))
		},
		runShell: func(c context.Context, script string) (string, error) {
			out, err := runSSHRawProcess(c, target, controlPath, script, nil)
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
			out, err := runSSHRawProcess(c, target, controlPath, script, payload)
			if err != nil {
				return "", err
			}
			_, err = ensureSuccess(out, "failed to stage tmux stdin")
			return "", err
		},
	}

	if tmuxSession != "" {
		created, err := sc.rt.createManagedPane(ctx, ownerPrefix, ownerPrefix, "", "", sc.maxPanes)
		if err != nil {
			closeSSHControlConnection(target, controlPath)
			return nil, err
		}
		if created.Created {
			if err := sc.rt.ensurePromptSetup(ctx, created.PaneID); err != nil {
				closeSSHControlConnection(target, controlPath)
				return nil, err
			}
		} else {
			sc.startupPane = created.PaneID
		}
		sc.configuredPane = created.PaneID
	}

	return sc, nil
}

// sshTmuxArgs wraps a tmux argument vector for dispatch over the ssh
// control socket: `ssh -T -S <socket> -o ControlMaster=no <target> tmux <args...>`.
func sshTmuxArgs(target, controlPath string, tmuxArgs []string) []string {
	args := []string{"-T", "-S", controlPath, "-o", "ControlMaster=no", target, "tmux"}
	return append(args, tmuxArgs...)
}

func buildSSHControlPath(target string) string {
	h := fnv64aRemote(target + "\x00" + strconv.Itoa(os.Getpid()) + "\x00" + time.Now().String())
	return filepath.Join(os.TempDir(), "buddy-ssh-"+h+".sock")
}

func closeSSHControlConnection(target, controlPath string) {
	_, _ = runProcess(context.Background(), "ssh", []string{"-S", controlPath, "-O", "exit", target}, nil)
	_ = os.Remove(controlPath)
}

// Close tears down the persistent control-master connection. Callers
// that build an SSH execution context own its lifetime and must Close it
// when done, mirroring the original's connection-drop cleanup.
func (c *sshContext) Close() {
	closeSSHControlConnection(c.target, c.controlPath)
}

func (c *sshContext) Summary() string {
	base := "ssh:" + c.target
	if c.tmuxSession != "" {
		base += " (tmux:" + c.tmuxSession + ")"
	}
	return base
}

func (c *sshContext) TmuxAttachInfo() *TmuxAttachInfo {
	if c.tmuxSession == "" {
		return nil
	}
	return &TmuxAttachInfo{
		Session: c.tmuxSession,
		Window:  tmux.DefaultPaneTitle,
		Target:  TmuxAttachTarget{Kind: AttachSsh, SshTarget: c.target},
	}
}

func (c *sshContext) StartupExistingTmuxPane() string { return c.startupPane }
func (c *sshContext) CapturePaneAvailable() bool      { return c.tmuxSession != "" }
func (c *sshContext) TmuxManagementAvailable() bool   { return c.tmuxSession != "" }

func (c *sshContext) ensurePromptReady(ctx context.Context) (string, error) {
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

func (c *sshContext) CapturePane(ctx context.Context, options CapturePaneOptions) (string, error) {
	if c.tmuxSession == "" {
		return "", errs.NewExecutionFailed("capture-pane is unavailable: no tmux session for this ssh target")
	}
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

func (c *sshContext) SendKeys(ctx context.Context, options SendKeysOptions) (string, error) {
	if c.tmuxSession == "" {
		return "", errs.NewExecutionFailed("send-keys is unavailable: no tmux session for this ssh target")
	}
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

func (c *sshContext) RunShellCommand(ctx context.Context, command string, mode WaitMode, timeout time.Duration) (ExecOutput, error) {
	if c.tmuxSession != "" {
		pane, err := c.ensurePromptReady(ctx)
		if err != nil {
			return ExecOutput{}, err
		}
		return c.rt.runCommand(ctx, pane, command, nil, mode, timeout)
	}
	if mode == NoWait {
		return ExecOutput{}, errs.NewExecutionFailed("run_shell wait=false requires a tmux-backed execution target")
	}
	return runWithWait(ctx, func(c2 context.Context) (ExecOutput, error) {
		return runSSHRawProcess(c2, c.target, c.controlPath, command, nil)
	}, mode, timeout, "timed out waiting for ssh command completion")
}

func (c *sshContext) RunShellCommandTargeted(ctx context.Context, command string, mode WaitMode, timeout time.Duration, resolved ResolvedTmuxTarget) (ExecOutput, error) {
	if c.tmuxSession == "" {
		return ExecOutput{}, errs.NewExecutionFailed("targeted tmux execution is unavailable: no tmux session for this ssh target")
	}
	return c.rt.runCommand(ctx, resolved.PaneID, command, nil, mode, timeout)
}

func (c *sshContext) ReadFile(ctx context.Context, path string) (string, error) {
	out, err := c.RunShellCommand(ctx, "cat -- "+shellQuote(path), Wait, 0)
	if err != nil {
		return "", err
	}
	if out.ExitCode != 0 {
		return "", errs.NewExecutionFailed("%s: command exited with status %d", path, out.ExitCode)
	}
	return out.Stdout, nil
}

func (c *sshContext) WriteFile(ctx context.Context, path string, content string) error {
	if c.tmuxSession != "" {
		out, err := c.rt.runCommand(ctx, c.configuredPane, "cat > "+shellQuote(path), []byte(content), Wait, 0)
		if err != nil {
			return err
		}
		if out.ExitCode != 0 {
			return errs.NewExecutionFailed("%s: command exited with status %d", path, out.ExitCode)
		}
		return nil
	}
	out, err := runSSHRawProcess(ctx, c.target, c.controlPath, "cat > "+shellQuote(path), []byte(content))
	if err != nil {
		return err
	}
	_, err = ensureSuccess(out, path)
	return err
}

func (c *sshContext) ResolveTmuxTarget(ctx context.Context, selector TmuxTargetSelector, ensureDefaultShared bool) (ResolvedTmuxTarget, error) {
	if c.tmuxSession == "" {
		return ResolvedTmuxTarget{}, errs.NewExecutionFailed("tmux management is unavailable: no tmux session for this ssh target")
	}
	resolved, err := c.rt.resolveManagedTarget(ctx, c.ownerPrefix, c.tmuxSession, tmux.TargetSelector(selector))
	if err != nil {
		return ResolvedTmuxTarget{}, err
	}
	return ResolvedTmuxTarget(resolved), nil
}

func (c *sshContext) CreateTmuxSession(ctx context.Context, session string) (CreatedTmuxSession, error) {
	if c.tmuxSession == "" {
		return CreatedTmuxSession{}, errs.NewExecutionFailed("tmux management is unavailable: no tmux session for this ssh target")
	}
	created, err := c.rt.createManagedSession(ctx, c.ownerPrefix, session, c.maxSessions)
	if err != nil {
		return CreatedTmuxSession{}, err
	}
	return CreatedTmuxSession(created), nil
}

func (c *sshContext) KillTmuxSession(ctx context.Context, session string) (string, error) {
	if c.tmuxSession == "" {
		return "", errs.NewExecutionFailed("tmux management is unavailable: no tmux session for this ssh target")
	}
	return c.rt.killManagedSession(ctx, c.ownerPrefix, c.tmuxSession, session)
}

func (c *sshContext) CreateTmuxPane(ctx context.Context, session, pane string) (CreatedTmuxPane, error) {
	if c.tmuxSession == "" {
		return CreatedTmuxPane{}, errs.NewExecutionFailed("tmux management is unavailable: no tmux session for this ssh target")
	}
	created, err := c.rt.createManagedPane(ctx, c.ownerPrefix, c.tmuxSession, session, pane, c.maxPanes)
	if err != nil {
		return CreatedTmuxPane{}, err
	}
	return CreatedTmuxPane(created), nil
}

func (c *sshContext) KillTmuxPane(ctx context.Context, session, pane string) (string, error) {
	if c.tmuxSession == "" {
		return "", errs.NewExecutionFailed("tmux management is unavailable: no tmux session for this ssh target")
	}
	killedSession, killedPane, err := c.rt.killManagedPane(ctx, c.ownerPrefix, c.tmuxSession, session, pane)
	if err != nil {
		return "", err
	}
	return "killed tmux pane " + killedPane + " in session " + killedSession, nil
}

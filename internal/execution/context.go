package execution

import (
	"context"
	"strings"
	"time"

	"github.com/0xfe/buddy-sub001/internal/errs"
)

// Context is the runtime-execution backend shared across tool
// invocations for a single agent run. It erases which concrete
// transport (local/container/ssh, plain or tmux-multiplexed) backs it
// behind a single capability surface.
type Context struct {
	inner backend
	// closer releases backend-owned resources (currently only the SSH
	// control-master socket) on shutdown. Go has no destructor, so
	// callers that construct an SSH-backed Context must call Close
	// explicitly instead of relying on a Drop impl.
	closer func()
}

// Local builds a local execution context with no tmux multiplexing.
func Local() *Context {
	return &Context{inner: newLocalBackend()}
}

// LocalTmux builds a local tmux-backed execution context, creating or
// reusing a persistent local tmux session.
func LocalTmux(ctx context.Context, requestedSession, agentName string, maxSessions, maxPanes int) (*Context, error) {
	b, err := newLocalTmuxContext(ctx, requestedSession, agentName, maxSessions, maxPanes)
	if err != nil {
		return nil, err
	}
	return &Context{inner: b}, nil
}

// Container builds a container execution context with no tmux
// multiplexing.
func Container(ctx context.Context, container string) (*Context, error) {
	b, err := newContainerBackend(ctx, container)
	if err != nil {
		return nil, err
	}
	return &Context{inner: b}, nil
}

// ContainerTmux builds a container execution context backed by a
// persistent tmux session inside the container.
func ContainerTmux(ctx context.Context, container, requestedSession, agentName string, maxSessions, maxPanes int) (*Context, error) {
	b, err := newContainerTmuxContext(ctx, container, requestedSession, agentName, maxSessions, maxPanes)
	if err != nil {
		return nil, err
	}
	return &Context{inner: b}, nil
}

// Ssh builds an SSH execution context with a persistent control-master
// connection. When the remote host has tmux installed, a managed tmux
// session is created as well so execution can be polled instead of
// blocking the whole connection.
func Ssh(ctx context.Context, target, requestedSession, agentName string, maxSessions, maxPanes int) (*Context, error) {
	sc, err := newSSHContext(ctx, target, requestedSession, agentName, maxSessions, maxPanes)
	if err != nil {
		return nil, err
	}
	return &Context{inner: sc, closer: sc.Close}, nil
}

// Close releases any backend-owned resources (the SSH control-master
// connection, if this context holds one). Safe to call on any Context.
func (c *Context) Close() {
	if c.closer != nil {
		c.closer()
	}
}

// Summary returns a human-readable execution-target description for
// status/doctor output, e.g. "ssh:dev@host (tmux:buddy-4a2f)".
func (c *Context) Summary() string { return c.inner.Summary() }

// TmuxAttachInfo returns tmux attach metadata when this context is
// backed by a managed tmux session.
func (c *Context) TmuxAttachInfo() *TmuxAttachInfo { return c.inner.TmuxAttachInfo() }

// CapturePaneAvailable reports whether tmux pane capture is available
// for this execution backend.
func (c *Context) CapturePaneAvailable() bool { return c.inner.CapturePaneAvailable() }

// TmuxManagementAvailable reports whether first-class managed tmux
// controls (create/kill session/pane) are available.
func (c *Context) TmuxManagementAvailable() bool { return c.inner.TmuxManagementAvailable() }

// CaptureStartupExistingTmuxPane captures the startup pane when this run
// attached to a pre-existing managed tmux pane. Returns ("", false) when
// no existing pane was reused.
func (c *Context) CaptureStartupExistingTmuxPane(ctx context.Context) (string, bool, error) {
	pane := c.inner.StartupExistingTmuxPane()
	if pane == "" {
		return "", false, nil
	}
	out, err := c.CapturePane(ctx, CapturePaneOptions{Target: pane})
	if err != nil {
		return "", false, err
	}
	return out, true, nil
}

// CapturePane captures a textual snapshot of a tmux pane. A configured
// Delay is applied before the underlying capture, consistently across
// every backend. On an "alternate screen" capture failure when
// IncludeAlternateScreen is set, this retries once with it cleared and
// appends a notice line, since not every pane carries an alternate
// screen buffer.
func (c *Context) CapturePane(ctx context.Context, options CapturePaneOptions) (string, error) {
	if options.Delay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(options.Delay):
		}
		options.Delay = 0
	}
	out, err := c.inner.CapturePane(ctx, options)
	if err != nil && options.IncludeAlternateScreen && isAlternateScreenError(err) {
		retryOptions := options
		retryOptions.IncludeAlternateScreen = false
		out, err = c.inner.CapturePane(ctx, retryOptions)
		if err == nil {
			out += "\n[notice: pane has no alternate screen buffer; captured primary screen instead]"
		}
	}
	return out, err
}

func isAlternateScreenError(err error) bool {
	return err != nil && errs.IsExecutionFailed(err) && strings.Contains(strings.ToLower(err.Error()), "alternate screen")
}

// SendKeys injects literal text and/or named keys and/or Enter into a
// tmux pane. Rejects the request if all three are empty.
func (c *Context) SendKeys(ctx context.Context, options SendKeysOptions) (string, error) {
	if len(options.Keys) == 0 && options.LiteralText == "" && !options.PressEnter {
		return "", errs.NewInvalidArguments("send-keys requires at least one of: keys, literal_text, or enter=true")
	}
	if options.Delay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(options.Delay):
		}
		options.Delay = 0
	}
	return c.inner.SendKeys(ctx, options)
}

// RunShellCommand runs command against the selected execution backend.
func (c *Context) RunShellCommand(ctx context.Context, command string, mode WaitMode, timeout time.Duration) (ExecOutput, error) {
	return c.inner.RunShellCommand(ctx, command, mode, timeout)
}

// RunShellCommandTargeted runs command against an explicitly resolved
// managed tmux pane.
func (c *Context) RunShellCommandTargeted(ctx context.Context, command string, mode WaitMode, timeout time.Duration, selector TmuxTargetSelector) (ExecOutput, error) {
	resolved, err := c.ResolveTmuxTarget(ctx, selector, true)
	if err != nil {
		return ExecOutput{}, err
	}
	return c.inner.RunShellCommandTargeted(ctx, command, mode, timeout, resolved)
}

// ReadFile reads a text file through the configured backend.
func (c *Context) ReadFile(ctx context.Context, path string) (string, error) {
	return c.inner.ReadFile(ctx, path)
}

// WriteFile writes a text file through the configured backend.
func (c *Context) WriteFile(ctx context.Context, path, content string) error {
	return c.inner.WriteFile(ctx, path, content)
}

// ResolveTmuxTarget resolves a tmux selector into a concrete managed
// pane.
func (c *Context) ResolveTmuxTarget(ctx context.Context, selector TmuxTargetSelector, ensureDefaultShared bool) (ResolvedTmuxTarget, error) {
	return c.inner.ResolveTmuxTarget(ctx, selector, ensureDefaultShared)
}

// CreateTmuxSession creates or reuses a managed tmux session.
func (c *Context) CreateTmuxSession(ctx context.Context, session string) (CreatedTmuxSession, error) {
	return c.inner.CreateTmuxSession(ctx, session)
}

// KillTmuxSession kills a managed tmux session.
func (c *Context) KillTmuxSession(ctx context.Context, session string) (string, error) {
	return c.inner.KillTmuxSession(ctx, session)
}

// CreateTmuxPane creates or reuses a managed tmux pane.
func (c *Context) CreateTmuxPane(ctx context.Context, session, pane string) (CreatedTmuxPane, error) {
	return c.inner.CreateTmuxPane(ctx, session, pane)
}

// KillTmuxPane kills a managed tmux pane.
func (c *Context) KillTmuxPane(ctx context.Context, session, pane string) (string, error) {
	return c.inner.KillTmuxPane(ctx, session, pane)
}

package execution

import (
	"context"
	"time"
)

// backend is the capability surface every concrete execution substrate
// implements. Context is a single sealed choice made at construction time
// (Local/LocalTmux/Container/ContainerTmux/Ssh/SshTmux); callers never
// branch on the concrete type, only on this interface.
type backend interface {
	Summary() string
	TmuxAttachInfo() *TmuxAttachInfo
	StartupExistingTmuxPane() string
	CapturePaneAvailable() bool
	TmuxManagementAvailable() bool

	CapturePane(ctx context.Context, options CapturePaneOptions) (string, error)
	SendKeys(ctx context.Context, options SendKeysOptions) (string, error)
	RunShellCommand(ctx context.Context, command string, mode WaitMode, timeout time.Duration) (ExecOutput, error)
	RunShellCommandTargeted(ctx context.Context, command string, mode WaitMode, timeout time.Duration, resolved ResolvedTmuxTarget) (ExecOutput, error)
	ReadFile(ctx context.Context, path string) (string, error)
	WriteFile(ctx context.Context, path string, content string) error

	ResolveTmuxTarget(ctx context.Context, selector TmuxTargetSelector, ensureDefaultShared bool) (ResolvedTmuxTarget, error)
	CreateTmuxSession(ctx context.Context, session string) (CreatedTmuxSession, error)
	KillTmuxSession(ctx context.Context, session string) (string, error)
	CreateTmuxPane(ctx context.Context, session, pane string) (CreatedTmuxPane, error)
	KillTmuxPane(ctx context.Context, session, pane string) (string, error)
}

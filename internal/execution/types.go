// Package execution runs shell commands and tmux operations against a
// chosen backend: the local machine, a container (docker/podman exec), or
// a remote host over SSH — each optionally multiplexed through a managed
// tmux pane so long-running or interactive commands can be polled instead
// of blocking a whole turn.
package execution

import "time"

// ExecOutput is the structured result of running a shell command.
type ExecOutput struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// WaitMode selects how run_shell waits for command completion.
type WaitMode int

const (
	Wait WaitMode = iota
	WaitWithTimeout
	NoWait
)

// CapturePaneOptions mirrors the tmux capture-pane flags exposed to callers.
type CapturePaneOptions struct {
	Target                  string
	StartLine               *int
	EndLine                 *int
	JoinWrapped             bool
	PreserveTrailingSpaces  bool
	IncludeEscapeSequences  bool
	IncludeAlternateScreen  bool
	Delay                   time.Duration
}

// SendKeysOptions describes a send-keys request: at least one of Keys,
// LiteralText, or PressEnter must be set.
type SendKeysOptions struct {
	Target      string
	Keys        []string
	LiteralText string
	PressEnter  bool
	Delay       time.Duration
}

// TmuxTargetSelector picks a managed pane by session/pane name, or by a raw
// tmux target string (e.g. "%3").
type TmuxTargetSelector struct {
	Session string
	Pane    string
	Target  string
}

// ResolvedTmuxTarget is the outcome of resolving a selector against the
// live managed-session/pane tagging.
type ResolvedTmuxTarget struct {
	Session         string
	PaneID          string
	PaneTitle       string
	IsDefaultShared bool
}

// CreatedTmuxSession is the outcome of create_tmux_session.
type CreatedTmuxSession struct {
	Session string
	PaneID  string
	Created bool
}

// CreatedTmuxPane is the outcome of create_tmux_pane.
type CreatedTmuxPane struct {
	Session   string
	PaneID    string
	PaneTitle string
	Created   bool
}

// TmuxAttachTargetKind discriminates the transport behind a managed tmux
// session, for doctor/status output.
type TmuxAttachTargetKind int

const (
	AttachLocal TmuxAttachTargetKind = iota
	AttachContainer
	AttachSsh
)

// TmuxAttachTarget describes where an operator would attach to inspect a
// managed tmux session directly.
type TmuxAttachTarget struct {
	Kind      TmuxAttachTargetKind
	Engine    string
	Container string
	SshTarget string
}

// TmuxAttachInfo is returned by Context.TmuxAttachInfo when the backend
// carries a managed tmux session.
type TmuxAttachInfo struct {
	Session string
	Window  string
	Target  TmuxAttachTarget
}

// ContainerEngineKind distinguishes docker from podman-compatible engines.
type ContainerEngineKind int

const (
	EngineDocker ContainerEngineKind = iota
	EnginePodman
)

// ContainerEngine is the probed container CLI this process will shell out
// to for container-backed execution contexts.
type ContainerEngine struct {
	Command string
	Kind    ContainerEngineKind
}

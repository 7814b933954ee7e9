package cmd

import (
	"context"
	"path/filepath"
	"time"

	"github.com/0xfe/buddy-sub001/internal/agent"
	"github.com/0xfe/buddy-sub001/internal/approval"
	"github.com/0xfe/buddy-sub001/internal/config"
	"github.com/0xfe/buddy-sub001/internal/errs"
	"github.com/0xfe/buddy-sub001/internal/execution"
	"github.com/0xfe/buddy-sub001/internal/fetchtool"
	"github.com/0xfe/buddy-sub001/internal/filetool"
	"github.com/0xfe/buddy-sub001/internal/session"
	"github.com/0xfe/buddy-sub001/internal/task"
	"github.com/0xfe/buddy-sub001/internal/tmux"
)

func loadConfig() (config.Config, error) {
	root, err := config.ConfigRoot()
	if err != nil {
		return config.Config{}, err
	}
	return config.Load(filepath.Join(root, "buddy.toml"))
}

// sessionStoreDir resolves the on-disk root for internal/session.Store,
// a `sessions` subdirectory under the same config root buddy.toml lives
// in (§6.1/§6.5: the CLI argument surface for overriding this path is
// out of scope here).
func sessionStoreDir() (string, error) {
	root, err := config.ConfigRoot()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, "sessions"), nil
}

// buildExecution resolves the execution backend named by the CLI's
// --backend flag against the loaded config's tmux caps.
func buildExecution(ctx context.Context, cfg config.Config, backend string) (*execution.Context, error) {
	prefix := tmux.OwnershipPrefix(config.Brand, cfg.Agent.Name)
	switch backend {
	case "", "local":
		return execution.Local(), nil
	case "tmux":
		return execution.LocalTmux(ctx, "", cfg.Agent.Name, cfg.Tmux.MaxSessions, cfg.Tmux.MaxPanes)
	default:
		return nil, errs.NewConfigInvalid("unknown --backend %q (use local or tmux); ownership prefix would have been %q", backend, prefix)
	}
}

// buildSupervisor wires config, store, broker, execution, and the
// domain-stack fetch tool into a running Agent + Supervisor pair, ready
// for Run.
func buildSupervisor(ctx context.Context, cfg config.Config, store *session.Store, execCtx *execution.Context) (*task.Supervisor, *approval.Broker, *fetchtool.Tool, error) {
	broker := approval.NewBroker()

	tools := map[string]agent.Tool{}

	var fetchT *fetchtool.Tool
	if cfg.Tools.FetchEnabled {
		fetchT = fetchtool.New(
			cfg.Tools.FetchAllowedDomains,
			cfg.Tools.FetchBlockedDomains,
			time.Duration(cfg.Network.FetchTimeoutSecs)*time.Second,
			cfg.Tools.FetchConfirm,
			nil, // wired to sup.RequestApproval below, once sup exists
		)
		tools[fetchT.Name()] = fetchT
	}

	if cfg.Tools.ShellEnabled {
		tools["run_shell"] = newShellTool(execCtx, cfg.Tools.ShellDenylist, cfg.Tools.ShellConfirm, nil)
	}

	var writeFile *filetool.WriteTool
	if cfg.Tools.FilesEnabled {
		readFile := filetool.NewReadTool(execCtx, cfg.Tools.FilesAllowedPaths)
		tools[readFile.Name()] = readFile
		// write_file always asks before mutating the filesystem — unlike
		// run_shell/fetch_url there is no separate files_confirm bit in
		// config (§6.1 only names files_enabled/files_allowed_paths), so
		// the mutating half of this tool is gated unconditionally.
		writeFile = filetool.NewWriteTool(execCtx, cfg.Tools.FilesAllowedPaths, true, nil)
		tools[writeFile.Name()] = writeFile
	}

	contextLimit := uint64(0)
	if cfg.API.ContextLimit != nil {
		contextLimit = *cfg.API.ContextLimit
	}
	ag := agent.New(unconfiguredClient{}, cfg.API.Model, cfg.Agent.MaxIterations, contextLimit, tools)

	sup := task.NewSupervisor(ag, store, broker, 4)

	// The approval hooks above were constructed before the Supervisor
	// existed (Go has no forward-declared closures across packages);
	// rewire them now that sup.RequestApproval is available.
	if fetchT != nil && cfg.Tools.FetchConfirm {
		fetchT.Approve = supervisorApprover(sup)
	}
	if st, ok := tools["run_shell"].(*shellTool); ok && cfg.Tools.ShellConfirm {
		st.approve = supervisorApprover(sup)
	}
	if writeFile != nil {
		writeFile.SetApprover(supervisorApprover(sup))
	}

	return sup, broker, fetchT, nil
}

// supervisorApprover adapts Supervisor.RequestApproval to the
// fetchtool.Approver / shellTool approver shape. Every approval-gated
// tool goes through the Supervisor so PendingApproval bookkeeping and
// the TaskWaitingApproval event stay centralized (§4.2/§4.3) — the
// task id is threaded through context rather than a function
// parameter, since agent.Tool.Execute's signature is fixed by §1's
// "opaque to the core" tool contract.
func supervisorApprover(sup *task.Supervisor) func(ctx context.Context, command, risk string, mutation, privesc bool, why string) (bool, error) {
	return func(ctx context.Context, command, risk string, mutation, privesc bool, why string) (bool, error) {
		taskID, _ := task.TaskIDFromContext(ctx)
		return sup.RequestApproval(ctx, taskID, command, risk, mutation, privesc, why)
	}
}

// Package filetool implements the domain-stack filesystem tool:
// config-gated (tools.files_enabled) and allowed-path filtered
// (tools.files_allowed_paths), running reads/writes through the
// already-wired execution.Context the same way the shell tool does
// rather than touching the local filesystem directly, so a tmux/ssh/
// container backend's file operations route through the same
// transport its shell commands do.
package filetool

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"

	"github.com/0xfe/buddy-sub001/internal/envelope"
	"github.com/0xfe/buddy-sub001/internal/errs"
	"github.com/0xfe/buddy-sub001/internal/execution"
)

// ReadTool is the read_file tool.
type ReadTool struct {
	exec         *execution.Context
	allowedPaths []string
}

// NewReadTool builds a ReadTool constrained to allowedPaths (empty
// means every path is rejected — tools.files_allowed_paths is the only
// gate this tool has, per spec.md §6.1).
func NewReadTool(exec *execution.Context, allowedPaths []string) *ReadTool {
	return &ReadTool{exec: exec, allowedPaths: allowedPaths}
}

func (t *ReadTool) Name() string { return "read_file" }

type readArgs struct {
	Path string `json:"path"`
}

// ReadResult is the JSON payload wrapped into the standard tool-result
// envelope (§6.3) for a successful read.
type ReadResult struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

func (t *ReadTool) Execute(ctx context.Context, argsJSON string) (string, error) {
	var a readArgs
	if err := json.Unmarshal([]byte(argsJSON), &a); err != nil {
		return "", errs.NewInvalidArguments("read_file: %v", err)
	}
	if strings.TrimSpace(a.Path) == "" {
		return "", errs.NewInvalidArguments("read_file: path is required")
	}
	if err := checkAllowedPath(a.Path, t.allowedPaths); err != nil {
		return "", err
	}

	content, err := t.exec.ReadFile(ctx, a.Path)
	if err != nil {
		return "", errs.NewExecutionFailed("read_file: %v", err)
	}

	return envelope.Wrap(ReadResult{Path: a.Path, Content: content})
}

// WriteTool is the write_file tool.
type WriteTool struct {
	exec         *execution.Context
	allowedPaths []string
	confirm      bool
	approve      func(ctx context.Context, command, risk string, mutation, privesc bool, why string) (bool, error)
}

// NewWriteTool builds a WriteTool. approve may be nil when confirm is
// false; wired via supervisorApprover once the Supervisor exists, the
// same two-pass construction the shell and fetch tools use.
func NewWriteTool(exec *execution.Context, allowedPaths []string, confirm bool, approve func(ctx context.Context, command, risk string, mutation, privesc bool, why string) (bool, error)) *WriteTool {
	return &WriteTool{exec: exec, allowedPaths: allowedPaths, confirm: confirm, approve: approve}
}

func (t *WriteTool) Name() string { return "write_file" }

// SetApprover rewires the approval hook once the Supervisor exists.
func (t *WriteTool) SetApprover(approve func(ctx context.Context, command, risk string, mutation, privesc bool, why string) (bool, error)) {
	t.approve = approve
}

type writeArgs struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// WriteResult is the JSON payload wrapped into the standard tool-result
// envelope (§6.3) for a successful write.
type WriteResult struct {
	Path         string `json:"path"`
	BytesWritten int    `json:"bytes_written"`
}

func (t *WriteTool) Execute(ctx context.Context, argsJSON string) (string, error) {
	var a writeArgs
	if err := json.Unmarshal([]byte(argsJSON), &a); err != nil {
		return "", errs.NewInvalidArguments("write_file: %v", err)
	}
	if strings.TrimSpace(a.Path) == "" {
		return "", errs.NewInvalidArguments("write_file: path is required")
	}
	if err := checkAllowedPath(a.Path, t.allowedPaths); err != nil {
		return "", err
	}

	if t.confirm {
		if t.approve == nil {
			return "", errs.NewExecutionFailed("write_file: confirmation required but no approver configured")
		}
		ok, err := t.approve(ctx, "write "+a.Path, "", true, false, "write_file")
		if err != nil {
			return "", err
		}
		if !ok {
			return "", errs.NewExecutionFailed("write_file: denied by operator")
		}
	}

	if err := t.exec.WriteFile(ctx, a.Path, a.Content); err != nil {
		return "", errs.NewExecutionFailed("write_file: %v", err)
	}

	return envelope.Wrap(WriteResult{Path: a.Path, BytesWritten: len(a.Content)})
}

// checkAllowedPath enforces tools.files_allowed_paths: path must fall
// under one of the configured roots once both are made absolute-ish via
// filepath.Clean, mirroring the fetch tool's allow-list shape for
// domains. An empty allow-list rejects every path rather than granting
// unrestricted access.
func checkAllowedPath(path string, allowedPaths []string) error {
	clean := filepath.Clean(path)
	for _, root := range allowedPaths {
		root = filepath.Clean(root)
		if clean == root || strings.HasPrefix(clean, root+string(filepath.Separator)) {
			return nil
		}
	}
	return errs.NewInvalidArguments("path %q is not under any allowed root", path)
}

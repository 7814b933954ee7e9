package filetool

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/0xfe/buddy-sub001/internal/envelope"
	"github.com/0xfe/buddy-sub001/internal/errs"
	"github.com/0xfe/buddy-sub001/internal/execution"
)

func TestReadToolReturnsContentWithinAllowedRoot(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "note.txt")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	tool := NewReadTool(execution.Local(), []string{dir})
	argsJSON, _ := json.Marshal(readArgs{Path: path})

	out, err := tool.Execute(context.Background(), string(argsJSON))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	var env envelope.Envelope[ReadResult]
	if err := json.Unmarshal([]byte(out), &env); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if env.Result.Content != "hello" {
		t.Fatalf("Content = %q, want %q", env.Result.Content, "hello")
	}
}

func TestReadToolRejectsPathOutsideAllowedRoots(t *testing.T) {
	dir := t.TempDir()
	outside := filepath.Join(t.TempDir(), "secret.txt")
	if err := os.WriteFile(outside, []byte("nope"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	tool := NewReadTool(execution.Local(), []string{dir})
	argsJSON, _ := json.Marshal(readArgs{Path: outside})

	_, err := tool.Execute(context.Background(), string(argsJSON))
	if !errs.IsInvalidArguments(err) {
		t.Fatalf("err = %v, want InvalidArguments", err)
	}
}

func TestReadToolRejectsEmptyPath(t *testing.T) {
	tool := NewReadTool(execution.Local(), []string{t.TempDir()})
	argsJSON, _ := json.Marshal(readArgs{Path: ""})

	_, err := tool.Execute(context.Background(), string(argsJSON))
	if !errs.IsInvalidArguments(err) {
		t.Fatalf("err = %v, want InvalidArguments", err)
	}
}

func TestWriteToolRequiresApprovalWhenConfirmIsSet(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.txt")
	tool := NewWriteTool(execution.Local(), []string{dir}, true, func(ctx context.Context, command, risk string, mutation, privesc bool, why string) (bool, error) {
		return false, nil
	})
	argsJSON, _ := json.Marshal(writeArgs{Path: path, Content: "hi"})

	_, err := tool.Execute(context.Background(), string(argsJSON))
	if !errs.IsExecutionFailed(err) {
		t.Fatalf("err = %v, want ExecutionFailed (denied)", err)
	}
	if _, statErr := os.Stat(path); statErr == nil {
		t.Fatalf("file was written despite denial")
	}
}

func TestWriteToolWritesFileWhenApproved(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.txt")
	tool := NewWriteTool(execution.Local(), []string{dir}, true, func(ctx context.Context, command, risk string, mutation, privesc bool, why string) (bool, error) {
		return true, nil
	})
	argsJSON, _ := json.Marshal(writeArgs{Path: path, Content: "hi there"})

	out, err := tool.Execute(context.Background(), string(argsJSON))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	var env envelope.Envelope[WriteResult]
	if err := json.Unmarshal([]byte(out), &env); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if env.Result.BytesWritten != len("hi there") {
		t.Fatalf("BytesWritten = %d, want %d", env.Result.BytesWritten, len("hi there"))
	}
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(content) != "hi there" {
		t.Fatalf("file content = %q", content)
	}
}

func TestWriteToolWithoutConfirmSkipsApprover(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.txt")
	tool := NewWriteTool(execution.Local(), []string{dir}, false, nil)
	argsJSON, _ := json.Marshal(writeArgs{Path: path, Content: "x"})

	if _, err := tool.Execute(context.Background(), string(argsJSON)); err != nil {
		t.Fatalf("Execute: %v", err)
	}
}

func TestCheckAllowedPathRejectsEmptyAllowList(t *testing.T) {
	if err := checkAllowedPath("/tmp/anything", nil); !errs.IsInvalidArguments(err) {
		t.Fatalf("err = %v, want InvalidArguments", err)
	}
}

func TestCheckAllowedPathAcceptsExactRoot(t *testing.T) {
	if err := checkAllowedPath("/tmp/root", []string{"/tmp/root"}); err != nil {
		t.Fatalf("err = %v, want nil", err)
	}
}

// Package envelope implements the tool-result wire format returned to
// the model: a JSON envelope carrying a harness-side timestamp plus the
// tool's own payload, and the legacy textual shell-result format kept
// alive alongside it.
package envelope

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/0xfe/buddy-sub001/internal/errs"
)

// HarnessTimestamp is the harness-side clock snapshot attached to every
// tool response.
type HarnessTimestamp struct {
	Source     string `json:"source"`
	UnixMillis uint64 `json:"unix_millis"`
}

// NowFunc returns the current time; overridable in tests for
// deterministic timestamps.
var NowFunc = time.Now

// NewHarnessTimestamp builds a HarnessTimestamp from the current time.
func NewHarnessTimestamp() HarnessTimestamp {
	return HarnessTimestamp{
		Source:     "harness",
		UnixMillis: uint64(NowFunc().UnixMilli()),
	}
}

// Envelope is the standard tool-response envelope: a harness timestamp
// plus the tool-specific result payload.
type Envelope[T any] struct {
	HarnessTimestamp HarnessTimestamp `json:"harness_timestamp"`
	Result           T                `json:"result"`
}

// Wrap marshals result into the standard JSON envelope.
func Wrap[T any](result T) (string, error) {
	env := Envelope[T]{
		HarnessTimestamp: NewHarnessTimestamp(),
		Result:           result,
	}
	b, err := json.Marshal(env)
	if err != nil {
		return "", errs.NewExecutionFailed("failed to serialize tool result envelope: %v", err)
	}
	return string(b), nil
}

// Parse unmarshals a JSON envelope produced by Wrap.
func Parse[T any](s string) (Envelope[T], error) {
	var env Envelope[T]
	if err := json.Unmarshal([]byte(s), &env); err != nil {
		return env, errs.NewExecutionFailed("failed to parse tool result envelope: %v", err)
	}
	return env, nil
}

// ShellResult is the legacy textual shell tool-result payload:
//
//	exit code: <i32>
//	stdout:
//	<stdout body>
//	stderr:
//	<stderr body>
type ShellResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// ParseShellResult parses the legacy textual shell-result format kept
// active alongside the JSON envelope (§9 open question: both paths stay
// live indefinitely).
func ParseShellResult(text string) (ShellResult, error) {
	const exitPrefix = "exit code: "
	const stdoutHeader = "stdout:"
	const stderrHeader = "stderr:"

	if !strings.HasPrefix(text, exitPrefix) {
		return ShellResult{}, errs.NewExecutionFailed("legacy shell result missing %q prefix", exitPrefix)
	}
	rest := text[len(exitPrefix):]

	nl := strings.IndexByte(rest, '\n')
	if nl < 0 {
		return ShellResult{}, errs.NewExecutionFailed("legacy shell result missing exit code line terminator")
	}
	exitCodeStr := rest[:nl]
	rest = rest[nl+1:]

	exitCode, err := strconv.Atoi(exitCodeStr)
	if err != nil {
		return ShellResult{}, errs.NewExecutionFailed("legacy shell result has non-numeric exit code %q", exitCodeStr)
	}

	if !strings.HasPrefix(rest, stdoutHeader) {
		return ShellResult{}, errs.NewExecutionFailed("legacy shell result missing %q header", stdoutHeader)
	}
	rest = strings.TrimPrefix(rest, stdoutHeader)
	rest = strings.TrimPrefix(rest, "\n")

	idx := strings.Index(rest, "\n"+stderrHeader)
	if idx < 0 {
		return ShellResult{}, errs.NewExecutionFailed("legacy shell result missing %q header", stderrHeader)
	}
	stdout := rest[:idx]
	rest = rest[idx+1+len(stderrHeader):]
	stderr := strings.TrimPrefix(rest, "\n")

	return ShellResult{ExitCode: exitCode, Stdout: stdout, Stderr: stderr}, nil
}

// FormatShellResult renders r back into the legacy textual format.
func FormatShellResult(r ShellResult) string {
	return fmt.Sprintf("exit code: %d\nstdout:\n%s\nstderr:\n%s", r.ExitCode, r.Stdout, r.Stderr)
}

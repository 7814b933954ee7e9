package execution

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"

	"github.com/0xfe/buddy-sub001/internal/duration"
	"github.com/0xfe/buddy-sub001/internal/errs"
)

// shellQuote wraps s in POSIX single quotes, escaping embedded quotes.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// runProcess spawns name with args, piping stdin if supplied, and collects
// stdout/stderr separately (unlike the tmux path, which only ever sees a
// single merged pane stream).
func runProcess(ctx context.Context, name string, args []string, stdin []byte) (ExecOutput, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			return ExecOutput{}, errs.NewExecutionFailed("%s: %s", name, err.Error())
		}
	}
	return ExecOutput{ExitCode: exitCode, Stdout: stdout.String(), Stderr: stderr.String()}, nil
}

func runShProcess(ctx context.Context, command string, stdin []byte) (ExecOutput, error) {
	return runProcess(ctx, "sh", []string{"-c", command}, stdin)
}

func runContainerShProcess(ctx context.Context, engine ContainerEngine, container, command string, stdin []byte) (ExecOutput, error) {
	args := []string{"exec", "-i", container, "sh", "-c", command}
	return runProcess(ctx, engine.Command, args, stdin)
}

// runProcessText runs name with args and returns trimmed stdout, erroring
// on a nonzero exit code. Used to dispatch a raw tmux invocation through
// a transport wrapper (`docker exec <container> tmux ...`, `ssh ... tmux
// ...`) where only the successful-path text matters to the caller.
func runProcessText(ctx context.Context, name string, args []string) (string, error) {
	out, err := runProcess(ctx, name, args, nil)
	if err != nil {
		return "", err
	}
	out, err = ensureSuccess(out, name+" "+strings.Join(args, " "))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out.Stdout), nil
}

func runSSHRawProcess(ctx context.Context, target, controlPath, command string, stdin []byte) (ExecOutput, error) {
	args := []string{"-T", "-S", controlPath, "-o", "ControlMaster=no", target, command}
	return runProcess(ctx, "ssh", args, stdin)
}

// ensureSuccess turns a nonzero exit code into an ExecutionFailed error
// carrying the given message and the command's stderr.
func ensureSuccess(out ExecOutput, msg string) (ExecOutput, error) {
	if out.ExitCode != 0 {
		detail := strings.TrimSpace(out.Stderr)
		if detail == "" {
			detail = strings.TrimSpace(out.Stdout)
		}
		if detail != "" {
			return ExecOutput{}, errs.NewExecutionFailed("%s: %s", msg, detail)
		}
		return ExecOutput{}, errs.NewExecutionFailed("%s", msg)
	}
	return out, nil
}

// runWithWait applies Wait/WaitWithTimeout semantics around a blocking
// subprocess call. NoWait is handled per-backend since its behavior
// (dispatch vs. reject) differs by transport.
func runWithWait(ctx context.Context, fn func(context.Context) (ExecOutput, error), mode WaitMode, timeout time.Duration, timeoutLabel string) (ExecOutput, error) {
	if mode != WaitWithTimeout {
		return fn(ctx)
	}
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	out, err := fn(timeoutCtx)
	if err != nil && timeoutCtx.Err() == context.DeadlineExceeded {
		return ExecOutput{}, errs.NewExecutionFailed("%s after %s", timeoutLabel, duration.Format(timeout))
	}
	return out, err
}

// detectContainerEngine probes docker, then podman, preferring whichever
// responds first. A docker binary that is actually a podman shim reports
// "podman" in its --version banner; that marks the engine as podman-
// compatible even though invocations still go through the docker command
// name.
func detectContainerEngine(ctx context.Context) (ContainerEngine, error) {
	out, err := runProcess(ctx, "docker", []string{"--version"}, nil)
	if err == nil && out.ExitCode == 0 {
		kind := EngineDocker
		if strings.Contains(strings.ToLower(out.Stdout), "podman") {
			kind = EnginePodman
		}
		return ContainerEngine{Command: "docker", Kind: kind}, nil
	}

	out, err = runProcess(ctx, "podman", []string{"--version"}, nil)
	if err == nil && out.ExitCode == 0 {
		return ContainerEngine{Command: "podman", Kind: EnginePodman}, nil
	}

	return ContainerEngine{}, errs.NewExecutionFailed("neither docker nor podman is available on this host")
}

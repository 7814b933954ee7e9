package tmux

import (
	"strconv"
	"strings"

	"github.com/0xfe/buddy-sub001/internal/errs"
)

// PromptMarker is the (command id, exit code) pair a bootstrapped
// managed pane's prompt emits on every new prompt line. It is a
// transient parse product; it is never stored.
type PromptMarker struct {
	CommandID uint64
	ExitCode  int
}

// markerPrefixes are tried in order; the writer only ever emits the
// first, but the parser keeps accepting the legacy prefix indefinitely
// so panes bootstrapped before a rename keep working.
var markerPrefixes = []string{"[buddy ", "[agent "}

// ParsePromptMarker extracts a PromptMarker from one line of tmux pane
// output, or returns ok=false if the line carries no marker.
func ParsePromptMarker(line string) (PromptMarker, bool) {
	for _, prefix := range markerPrefixes {
		if m, ok := parsePromptMarkerWithPrefix(line, prefix); ok {
			return m, true
		}
	}
	return PromptMarker{}, false
}

func parsePromptMarkerWithPrefix(line, prefix string) (PromptMarker, bool) {
	start := strings.Index(line, prefix)
	if start < 0 {
		return PromptMarker{}, false
	}
	tail := line[start+len(prefix):]

	colon := strings.IndexByte(tail, ':')
	if colon < 0 {
		return PromptMarker{}, false
	}
	commandID, err := strconv.ParseUint(strings.TrimSpace(tail[:colon]), 10, 64)
	if err != nil {
		return PromptMarker{}, false
	}

	afterColon := tail[colon+1:]
	bracket := strings.IndexByte(afterColon, ']')
	if bracket < 0 {
		return PromptMarker{}, false
	}
	exitCode, err := strconv.Atoi(strings.TrimSpace(afterColon[:bracket]))
	if err != nil {
		return PromptMarker{}, false
	}

	return PromptMarker{CommandID: commandID, ExitCode: exitCode}, true
}

// LatestPromptMarker returns the most recent marker visible in a pane
// capture, scanning from the end.
func LatestPromptMarker(capture string) (PromptMarker, bool) {
	lines := strings.Split(capture, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if m, ok := ParsePromptMarker(lines[i]); ok {
			return m, true
		}
	}
	return PromptMarker{}, false
}

// ExecOutput is the structured result of a shell command run against
// an Execution Engine backend.
type ExecOutput struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// ErrNotYetComplete is a sentinel returned by ParseTmuxCaptureOutput
// when the completion prompt for startCommandID hasn't appeared in the
// capture yet; callers should keep polling.
var ErrNotYetComplete = errs.NewExecutionFailed("tmux command completion prompt not yet visible")

// ParseTmuxCaptureOutput looks for the completion frame for
// startCommandID inside capture. It returns ErrNotYetComplete when the
// completion prompt hasn't appeared yet (caller should keep polling),
// another *errs.ToolError when the capture is unparseable, or the
// parsed ExecOutput on success.
func ParseTmuxCaptureOutput(capture string, startCommandID uint64, command string) (ExecOutput, error) {
	lines := strings.Split(capture, "\n")

	startIdx := -1
	for i := len(lines) - 1; i >= 0; i-- {
		if m, ok := ParsePromptMarker(lines[i]); ok && m.CommandID == startCommandID {
			startIdx = i
			break
		}
	}

	if startIdx < 0 {
		if latest, ok := LatestPromptMarker(capture); ok && latest.CommandID > startCommandID {
			return ExecOutput{}, errs.NewExecutionFailed(
				"tmux prompt marker %d is no longer visible in capture history", startCommandID,
			)
		}
		return ExecOutput{}, ErrNotYetComplete
	}

	expectedCompletionID := startCommandID + 1
	endIdx := -1
	var completion PromptMarker
	for i := startIdx + 1; i < len(lines); i++ {
		if m, ok := ParsePromptMarker(lines[i]); ok && m.CommandID > startCommandID {
			endIdx = i
			completion = m
			break
		}
	}
	if endIdx < 0 {
		return ExecOutput{}, ErrNotYetComplete
	}
	if completion.CommandID != expectedCompletionID {
		return ExecOutput{}, errs.NewExecutionFailed(
			"unexpected tmux prompt command id: expected %d, got %d",
			expectedCompletionID, completion.CommandID,
		)
	}

	output := append([]string(nil), lines[startIdx+1:endIdx]...)
	output = dropEchoedCommandLine(output, command)
	for len(output) > 0 && strings.TrimSpace(output[0]) == "" {
		output = output[1:]
	}
	for len(output) > 0 && strings.TrimSpace(output[len(output)-1]) == "" {
		output = output[:len(output)-1]
	}

	return ExecOutput{
		ExitCode: completion.ExitCode,
		Stdout:   strings.Join(output, "\n"),
		Stderr:   "",
	}, nil
}

func dropEchoedCommandLine(lines []string, command string) []string {
	trimmedCommand := strings.TrimSpace(command)
	if trimmedCommand == "" || len(lines) == 0 {
		return lines
	}
	if strings.HasSuffix(strings.TrimRight(lines[0], " \t"), trimmedCommand) {
		return lines[1:]
	}
	return lines
}

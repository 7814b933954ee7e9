package tmux

import (
	"strings"
	"testing"
)

func TestParsePromptMarkerExtractsIDAndStatus(t *testing.T) {
	marker, ok := ParsePromptMarker("[buddy 42: 127] dev@host:~$ ")
	if !ok {
		t.Fatal("expected marker")
	}
	if marker.CommandID != 42 || marker.ExitCode != 127 {
		t.Fatalf("got %+v", marker)
	}

	legacy, ok := ParsePromptMarker("[agent 9: 0] dev@host:~$ ")
	if !ok {
		t.Fatal("expected legacy marker")
	}
	if legacy.CommandID != 9 || legacy.ExitCode != 0 {
		t.Fatalf("got %+v", legacy)
	}

	if _, ok := ParsePromptMarker("dev@host:~$"); ok {
		t.Fatal("did not expect a marker in a plain prompt line")
	}
}

func TestLatestPromptMarkerUsesMostRecent(t *testing.T) {
	capture := "[buddy 8: 0] one\noutput\n[buddy 9: 1] two"
	marker, ok := LatestPromptMarker(capture)
	if !ok {
		t.Fatal("expected a marker")
	}
	if marker.CommandID != 9 || marker.ExitCode != 1 {
		t.Fatalf("got %+v", marker)
	}
}

func TestParseTmuxCaptureOutputBetweenMarkers(t *testing.T) {
	capture := "if [ \"${BUDDY_PROMPT_LAYOUT:-}\" != \"v3\" ]; then ... fi\n" +
		"[buddy 1: 0] dev@host:~$ \n" +
		"dev@host:~$ ls -la\n" +
		"old-output\n" +
		"[buddy 2: 0] dev@host:~$ \n" +
		"dev@host:~$ pwd\n" +
		"/home/mo\n" +
		"[buddy 3: 0] dev@host:~$ \n" +
		"dev@host:~$ ls -l\n" +
		"total 8\n" +
		"file.txt\n" +
		"err.txt\n" +
		"[buddy 4: 0] dev@host:~$ "

	out, err := ParseTmuxCaptureOutput(capture, 3, "ls -l")
	if err != nil {
		t.Fatalf("ParseTmuxCaptureOutput: %v", err)
	}
	if out.ExitCode != 0 {
		t.Fatalf("exit code = %d", out.ExitCode)
	}
	for _, want := range []string{"total 8", "file.txt", "err.txt"} {
		if !strings.Contains(out.Stdout, want) {
			t.Fatalf("stdout missing %q: %q", want, out.Stdout)
		}
	}
	for _, notWant := range []string{"BUDDY_PROMPT_LAYOUT", "old-output"} {
		if strings.Contains(out.Stdout, notWant) {
			t.Fatalf("stdout unexpectedly contains %q: %q", notWant, out.Stdout)
		}
	}
	if out.Stderr != "" {
		t.Fatalf("stderr = %q, want empty", out.Stderr)
	}
}

func TestParseTmuxCaptureOutputWaitsForCompletionPrompt(t *testing.T) {
	capture := "[buddy 10: 0] dev@host:~$ \ndev@host:~$ echo hi\nhi\n"
	_, err := ParseTmuxCaptureOutput(capture, 10, "echo hi")
	if err != ErrNotYetComplete {
		t.Fatalf("err = %v, want ErrNotYetComplete", err)
	}
}

func TestParseTmuxCaptureOutputReadsNonzeroExitCode(t *testing.T) {
	capture := "[buddy 12: 0] dev@host:~$ \n" +
		"dev@host:~$ missing_command\n" +
		"zsh: command not found: missing_command\n" +
		"[buddy 13: 127] dev@host:~$ "

	out, err := ParseTmuxCaptureOutput(capture, 12, "missing_command")
	if err != nil {
		t.Fatalf("ParseTmuxCaptureOutput: %v", err)
	}
	if out.ExitCode != 127 {
		t.Fatalf("exit code = %d, want 127", out.ExitCode)
	}
	if !strings.Contains(out.Stdout, "command not found") {
		t.Fatalf("stdout = %q", out.Stdout)
	}
}

func TestParseTmuxCaptureOutputIgnoresRepeatedStartMarker(t *testing.T) {
	capture := "[buddy 30: 0] dev@host:~$ \n" +
		"old output\n" +
		"[buddy 30: 0] dev@host:~$ \n" +
		"dev@host:~$ ls\n" +
		"file.txt\n" +
		"[buddy 31: 0] dev@host:~$ "

	out, err := ParseTmuxCaptureOutput(capture, 30, "ls")
	if err != nil {
		t.Fatalf("ParseTmuxCaptureOutput: %v", err)
	}
	if !strings.Contains(out.Stdout, "file.txt") {
		t.Fatalf("stdout = %q", out.Stdout)
	}
}

func TestParseTmuxCaptureOutputRejectsUnexpectedNextID(t *testing.T) {
	capture := "[buddy 20: 0] dev@host:~$ \ndev@host:~$ echo hi\nhi\n[buddy 22: 0] dev@host:~$ "
	_, err := ParseTmuxCaptureOutput(capture, 20, "echo hi")
	if err == nil || !strings.Contains(err.Error(), "unexpected tmux prompt command id") {
		t.Fatalf("err = %v", err)
	}
}

func TestParseTmuxCaptureOutputErrorsIfStartMarkerMissing(t *testing.T) {
	capture := "[buddy 41: 0] dev@host:~$ \noutput\n[buddy 42: 0] dev@host:~$"
	_, err := ParseTmuxCaptureOutput(capture, 40, "ls")
	if err == nil || !strings.Contains(err.Error(), "is no longer visible in capture history") {
		t.Fatalf("err = %v", err)
	}
}

package errs

import (
	"errors"
	"strings"
	"testing"
)

func TestToolErrorMessages(t *testing.T) {
	if got := NewInvalidArguments("bad json").Error(); got != "invalid arguments: bad json" {
		t.Fatalf("got %q", got)
	}
	if got := NewExecutionFailed("nonzero exit").Error(); got != "execution failed: nonzero exit" {
		t.Fatalf("got %q", got)
	}
}

func TestToolErrorKindChecks(t *testing.T) {
	var err error = NewInvalidArguments("x")
	if !IsInvalidArguments(err) {
		t.Fatal("expected IsInvalidArguments")
	}
	if IsExecutionFailed(err) {
		t.Fatal("did not expect IsExecutionFailed")
	}
}

func TestConfigErrorMessages(t *testing.T) {
	if got := NewConfigInvalid("missing field %s", "api_key").Error(); got != "invalid config: missing field api_key" {
		t.Fatalf("got %q", got)
	}
	wrapped := errors.New("permission denied")
	if got := NewConfigIO(wrapped).Error(); got != "io: permission denied" {
		t.Fatalf("got %q", got)
	}
}

func TestApiErrorStatus(t *testing.T) {
	err := NewApiStatus(503, "unavailable", nil)
	if got := err.Error(); got != "status 503: unavailable" {
		t.Fatalf("got %q", got)
	}
	code, ok := err.StatusCode()
	if !ok || code != 503 {
		t.Fatalf("StatusCode() = %d, %v", code, ok)
	}
	if _, ok := err.RetryAfterSeconds(); ok {
		t.Fatal("expected no retry-after")
	}
}

func TestApiErrorRetryAfter(t *testing.T) {
	secs := uint64(30)
	err := NewApiStatus(429, "slow down", &secs)
	got, ok := err.RetryAfterSeconds()
	if !ok || got != 30 {
		t.Fatalf("RetryAfterSeconds() = %d, %v", got, ok)
	}
}

func TestAgentErrorContextLimitMessage(t *testing.T) {
	err := ErrContextLimitExceeded(9000, 8000)
	want := "context limit exceeded (9000/8000 estimated tokens). Run `/compact` or `/session new` and retry"
	if got := err.Error(); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestAgentErrorFixedMessages(t *testing.T) {
	if got := ErrEmptyResponse().Error(); got != "model returned empty response" {
		t.Fatalf("got %q", got)
	}
	if got := ErrMaxIterationsReached().Error(); got != "max agentic loop iterations reached" {
		t.Fatalf("got %q", got)
	}
}

func TestAgentErrorUnwrapsToolError(t *testing.T) {
	tool := NewExecutionFailed("timed out")
	agentErr := FromToolError(tool)
	if !strings.Contains(agentErr.Error(), "timed out") {
		t.Fatalf("agentErr.Error() = %q, missing wrapped message", agentErr.Error())
	}
	if !errors.Is(agentErr, tool) {
		t.Fatal("expected errors.Is to find wrapped ToolError")
	}
}

package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/0xfe/buddy-sub001/internal/errs"
	"github.com/0xfe/buddy-sub001/internal/session"
)

// stubClient is a scripted ModelClient: each call to Complete pops the
// next Turn/error pair off its queue.
type stubClient struct {
	turns []Turn
	errs  []error
	calls int
}

func (c *stubClient) Complete(ctx context.Context, model string, messages []session.Message) (Turn, error) {
	i := c.calls
	c.calls++
	if i < len(c.errs) && c.errs[i] != nil {
		return Turn{}, c.errs[i]
	}
	if i >= len(c.turns) {
		return Turn{}, errors.New("stubClient: ran out of scripted turns")
	}
	return c.turns[i], nil
}

// echoTool returns its arguments verbatim, recording every invocation.
type echoTool struct {
	name  string
	calls []string
	err   error
}

func (t *echoTool) Name() string { return t.name }

func (t *echoTool) Execute(ctx context.Context, argsJSON string) (string, error) {
	t.calls = append(t.calls, argsJSON)
	if t.err != nil {
		return "", t.err
	}
	return "tool-result:" + argsJSON, nil
}

func TestRunTurnNoToolCallsReturnsContent(t *testing.T) {
	client := &stubClient{turns: []Turn{{Content: "hello there"}}}
	a := New(client, "test-model", 20, 0, nil)

	out, err := a.RunTurn(context.Background(), "hi", Hooks{})
	if err != nil {
		t.Fatalf("RunTurn returned error: %v", err)
	}
	if out != "hello there" {
		t.Fatalf("RunTurn output = %q, want %q", out, "hello there")
	}
	if len(a.Messages) != 2 {
		t.Fatalf("Messages len = %d, want 2 (user + assistant)", len(a.Messages))
	}
	if a.Messages[0].Role != session.RoleUser || a.Messages[0].Content != "hi" {
		t.Fatalf("first message = %+v, want user/hi", a.Messages[0])
	}
	if a.Messages[1].Role != session.RoleAssistant || a.Messages[1].Content != "hello there" {
		t.Fatalf("second message = %+v, want assistant/hello there", a.Messages[1])
	}
}

func TestRunTurnExecutesToolCallThenReturnsFinalTurn(t *testing.T) {
	tool := &echoTool{name: "echo"}
	client := &stubClient{
		turns: []Turn{
			{ToolCalls: []session.ToolCallRef{{ID: "call-1", Name: "echo", Arguments: `{"x":1}`}}},
			{Content: "done"},
		},
	}
	a := New(client, "test-model", 20, 0, map[string]Tool{"echo": tool})

	var calledNames []string
	var resultSeen string
	hooks := Hooks{
		OnToolCall:   func(name, args string) { calledNames = append(calledNames, name) },
		OnToolResult: func(name, args, result string) { resultSeen = result },
	}

	out, err := a.RunTurn(context.Background(), "run echo", hooks)
	if err != nil {
		t.Fatalf("RunTurn returned error: %v", err)
	}
	if out != "done" {
		t.Fatalf("RunTurn output = %q, want %q", out, "done")
	}
	if len(tool.calls) != 1 || tool.calls[0] != `{"x":1}` {
		t.Fatalf("tool.calls = %v, want one call with {\"x\":1}", tool.calls)
	}
	if len(calledNames) != 1 || calledNames[0] != "echo" {
		t.Fatalf("OnToolCall names = %v, want [echo]", calledNames)
	}
	if resultSeen != `tool-result:{"x":1}` {
		t.Fatalf("OnToolResult result = %q", resultSeen)
	}

	// Messages: user, assistant(tool_calls), tool, assistant(final).
	if len(a.Messages) != 4 {
		t.Fatalf("Messages len = %d, want 4", len(a.Messages))
	}
	if a.Messages[2].Role != session.RoleTool || a.Messages[2].ToolCallID != "call-1" {
		t.Fatalf("tool message = %+v", a.Messages[2])
	}
}

func TestRunTurnUnknownToolIsInvalidArgumentsAndContinuesLoop(t *testing.T) {
	client := &stubClient{
		turns: []Turn{
			{ToolCalls: []session.ToolCallRef{{ID: "call-1", Name: "missing", Arguments: "{}"}}},
			{Content: "recovered"},
		},
	}
	a := New(client, "test-model", 20, 0, nil)

	out, err := a.RunTurn(context.Background(), "go", Hooks{})
	if err != nil {
		t.Fatalf("RunTurn returned error: %v", err)
	}
	if out != "recovered" {
		t.Fatalf("RunTurn output = %q, want %q", out, "recovered")
	}
	if a.Messages[2].Role != session.RoleTool || !strings.Contains(a.Messages[2].Content, "invalid arguments") {
		t.Fatalf("tool result message should describe an invalid-arguments error, got %+v", a.Messages[2])
	}
}

func TestRunTurnMaxIterationsReached(t *testing.T) {
	turn := Turn{ToolCalls: []session.ToolCallRef{{ID: "call-1", Name: "echo", Arguments: "{}"}}}
	var turns []Turn
	for i := 0; i < 5; i++ {
		turns = append(turns, turn)
	}
	client := &stubClient{turns: turns}
	a := New(client, "test-model", 3, 0, map[string]Tool{"echo": &echoTool{name: "echo"}})

	_, err := a.RunTurn(context.Background(), "loop forever", Hooks{})
	var agentErr *errs.AgentError
	if !errors.As(err, &agentErr) || agentErr.Kind != errs.AgentMaxIterationsReached {
		t.Fatalf("err = %v, want AgentMaxIterationsReached", err)
	}
}

func TestRunTurnEmptyResponse(t *testing.T) {
	client := &stubClient{turns: []Turn{{}}}
	a := New(client, "test-model", 20, 0, nil)

	_, err := a.RunTurn(context.Background(), "hi", Hooks{})
	var agentErr *errs.AgentError
	if !errors.As(err, &agentErr) || agentErr.Kind != errs.AgentEmptyResponse {
		t.Fatalf("err = %v, want AgentEmptyResponse", err)
	}
}

func TestRunTurnContextLimitExceeded(t *testing.T) {
	client := &stubClient{turns: []Turn{{Content: "unreachable"}}}
	// A tiny context limit (in estimated tokens) that the user message
	// alone will already exceed: EstimateTokens divides character count
	// by 4, so a message with >4*limit characters trips it immediately.
	a := New(client, "test-model", 20, 1, nil)

	_, err := a.RunTurn(context.Background(), "this message is definitely longer than four characters", Hooks{})
	var agentErr *errs.AgentError
	if !errors.As(err, &agentErr) || agentErr.Kind != errs.AgentContextLimitExceeded {
		t.Fatalf("err = %v, want AgentContextLimitExceeded", err)
	}
}

func TestRunTurnCancelledContextUnwindsImmediately(t *testing.T) {
	client := &stubClient{turns: []Turn{{Content: "unreachable"}}}
	a := New(client, "test-model", 20, 0, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.RunTurn(ctx, "hi", Hooks{})
	if err == nil {
		t.Fatal("RunTurn should fail on an already-cancelled context")
	}
	if client.calls != 0 {
		t.Fatalf("model client should never be called once ctx is cancelled, got %d calls", client.calls)
	}
}

func TestEstimateTokensDeterministicAndMonotonic(t *testing.T) {
	short := []session.Message{{Content: "abcd"}}
	long := []session.Message{{Content: "abcdabcdabcdabcd"}}

	if EstimateTokens(short) != EstimateTokens(short) {
		t.Fatal("EstimateTokens is not deterministic")
	}
	if EstimateTokens(long) <= EstimateTokens(short) {
		t.Fatal("EstimateTokens is not monotonic in content length")
	}
}

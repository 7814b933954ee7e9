// Package agent implements the minimal conversational loop contract:
// it owns a session's Message sequence, drives the model through tool
// calls, and enforces the tool-call iteration cap and the context-limit
// heuristic (spec.md §7, §9). The upstream model HTTP call itself is an
// injected ModelClient, since the LLM wire protocol is explicitly out
// of scope (§1 Non-goals); likewise every Tool is injected, since tool
// JSON argument schemas are observed only as opaque strings.
package agent

import (
	"context"
	"time"

	"github.com/0xfe/buddy-sub001/internal/errs"
	"github.com/0xfe/buddy-sub001/internal/retrypolicy"
	"github.com/0xfe/buddy-sub001/internal/session"
)

// Turn is one model completion: either a final textual response, or one
// or more tool calls the Agent must satisfy before asking the model
// again.
type Turn struct {
	Content          string
	ToolCalls        []session.ToolCallRef
	PromptTokens     uint64
	CompletionTokens uint64
	// ReasoningField/ReasoningText carry an optional provider-specific
	// reasoning/thinking trace, surfaced to the UI as a ReasoningTrace
	// event without the Agent needing to understand its shape.
	ReasoningField string
	ReasoningText  string
}

// ModelClient is the upstream model HTTP boundary, implemented outside
// this core (§1: "the HTTP client to the model provider" is an
// external collaborator — contract only).
type ModelClient interface {
	Complete(ctx context.Context, model string, messages []session.Message) (Turn, error)
}

// Tool is a named capability the model can invoke via a tool call. It
// owns its own argument parsing and, where relevant, its own approval
// gating (the shell tool asks its injected approver before running a
// command; the Agent itself never touches the Approval Broker
// directly — see internal/cmd's wiring, which connects each Tool's
// approver to the Supervisor's RequestApproval, where policy and
// PendingApproval bookkeeping live).
type Tool interface {
	Name() string
	Execute(ctx context.Context, argsJSON string) (string, error)
}

// Hooks lets the caller (the Task Supervisor) observe the loop's
// progress without the Agent depending on the event-stream types that
// live in internal/task.
type Hooks struct {
	OnToolCall       func(name, argsJSON string)
	OnToolResult     func(name, argsJSON, result string)
	OnTokenUsage     func(prompt, completion uint64)
	OnReasoningTrace func(field, text string)
}

func (h Hooks) toolCall(name, args string) {
	if h.OnToolCall != nil {
		h.OnToolCall(name, args)
	}
}

func (h Hooks) toolResult(name, args, result string) {
	if h.OnToolResult != nil {
		h.OnToolResult(name, args, result)
	}
}

func (h Hooks) tokenUsage(prompt, completion uint64) {
	if h.OnTokenUsage != nil {
		h.OnTokenUsage(prompt, completion)
	}
}

func (h Hooks) reasoningTrace(field, text string) {
	if field != "" && h.OnReasoningTrace != nil {
		h.OnReasoningTrace(field, text)
	}
}

// charsPerToken is the divisor behind the context-limit heuristic (§9
// Open Question: "character-based with a divisor"). Deterministic and
// monotonic in message content length, as the spec requires; the exact
// constant is not load-bearing for correctness, only for how early the
// limit trips.
const charsPerToken = 4

// EstimateTokens sums content length across messages (including
// tool-call argument strings) and divides by charsPerToken, rounding up.
func EstimateTokens(messages []session.Message) uint64 {
	var chars int
	for _, m := range messages {
		chars += len(m.Content)
		for _, tc := range m.ToolCalls {
			chars += len(tc.Name) + len(tc.Arguments)
		}
	}
	return uint64((chars + charsPerToken - 1) / charsPerToken)
}

// Agent owns one session's Message sequence and the tools available to
// satisfy model-issued tool calls.
type Agent struct {
	Model         string
	MaxIterations int
	ContextLimit  uint64 // 0 means "no limit configured"
	Client        ModelClient
	Tools         map[string]Tool
	Messages      []session.Message
	retry         retrypolicy.Policy
}

// New builds an Agent. maxIterations <= 0 is treated as the spec.md
// §6.1 default of 20.
func New(client ModelClient, model string, maxIterations int, contextLimit uint64, tools map[string]Tool) *Agent {
	if maxIterations <= 0 {
		maxIterations = 20
	}
	return &Agent{
		Model:         model,
		MaxIterations: maxIterations,
		ContextLimit:  contextLimit,
		Client:        client,
		Tools:         tools,
		retry:         retrypolicy.Default(),
	}
}

// complete calls the model client, retrying per retrypolicy.Default
// (§4.4): up to 3 attempts, honoring a Retry-After hint or exponential
// backoff between them, and bailing out immediately on ctx
// cancellation or a non-retryable ApiError kind.
func (a *Agent) complete(ctx context.Context, messages []session.Message) (Turn, error) {
	for attempt := uint32(0); ; attempt++ {
		turn, err := a.Client.Complete(ctx, a.Model, messages)
		if err == nil {
			return turn, nil
		}
		if !a.retry.ShouldRetry(err, attempt) {
			return Turn{}, err
		}
		select {
		case <-ctx.Done():
			return Turn{}, ctx.Err()
		case <-time.After(a.retry.RetryDelayFor(attempt, err)):
		}
	}
}

// Append adds a message to the owned sequence. Messages are immutable
// once appended (spec.md §3); callers never mutate a returned slice
// element in place.
func (a *Agent) Append(m session.Message) {
	a.Messages = append(a.Messages, m)
}

// RunTurn drives the tool-call loop for one user prompt: append the
// user message, repeatedly call the model and satisfy any tool calls
// it issues, until the model returns a turn with no tool calls or the
// iteration cap is hit. Returns the model's final textual response.
//
// ctx cancellation is observed at every suspension point (the model
// call and each tool execution) and unwinds the loop immediately,
// matching §5's cooperative-cancellation contract; the Task Supervisor
// is responsible for turning a returned context.Canceled into the
// "cancelled" TaskFailed event.
func (a *Agent) RunTurn(ctx context.Context, userText string, hooks Hooks) (string, error) {
	a.Append(session.Message{Role: session.RoleUser, Content: userText})

	for iteration := 0; iteration < a.MaxIterations; iteration++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		if a.ContextLimit > 0 {
			estimated := EstimateTokens(a.Messages)
			if estimated > a.ContextLimit {
				return "", errs.ErrContextLimitExceeded(estimated, a.ContextLimit)
			}
		}

		turn, err := a.complete(ctx, a.Messages)
		if err != nil {
			return "", err
		}
		if turn.Content == "" && len(turn.ToolCalls) == 0 {
			return "", errs.ErrEmptyResponse()
		}

		hooks.tokenUsage(turn.PromptTokens, turn.CompletionTokens)
		hooks.reasoningTrace(turn.ReasoningField, turn.ReasoningText)

		if len(turn.ToolCalls) == 0 {
			a.Append(session.Message{Role: session.RoleAssistant, Content: turn.Content})
			return turn.Content, nil
		}

		a.Append(session.Message{Role: session.RoleAssistant, Content: turn.Content, ToolCalls: turn.ToolCalls})

		// Tool calls in one turn execute one at a time, in the order
		// the model issued them (spec.md §4.3: "Concurrent tool
		// executions within a task run as they are issued by the
		// model (one at a time per turn)").
		for _, call := range turn.ToolCalls {
			if err := ctx.Err(); err != nil {
				return "", err
			}
			result, toolErr := a.invokeTool(ctx, call, hooks)
			a.Append(session.Message{
				Role:       session.RoleTool,
				Content:    result,
				ToolCallID: call.ID,
			})
			if toolErr != nil {
				// A tool error is surfaced to the model as a tool
				// result (it already carries the error text in
				// result); the loop continues so the model can react.
				_ = toolErr
			}
		}
	}

	return "", errs.ErrMaxIterationsReached()
}

func (a *Agent) invokeTool(ctx context.Context, call session.ToolCallRef, hooks Hooks) (string, error) {
	hooks.toolCall(call.Name, call.Arguments)

	tool, ok := a.Tools[call.Name]
	if !ok {
		toolErr := errs.NewInvalidArguments("unknown tool %q", call.Name)
		result := toolErr.Error()
		hooks.toolResult(call.Name, call.Arguments, result)
		return result, toolErr
	}

	result, err := tool.Execute(ctx, call.Arguments)
	if err != nil {
		result = err.Error()
	}
	hooks.toolResult(call.Name, call.Arguments, result)
	return result, err
}

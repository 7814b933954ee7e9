// Package errs defines the error taxonomy shared across the agent runtime
// core: tool-level, config-level, API-level, and top-level agent errors.
//
// The original implementation hand-writes these as enums rather than
// reaching for an error-handling crate, "to keep dependency surface
// minimal." This package follows the same shape with Go error types.
package errs

import (
	"errors"
	"fmt"
)

// ToolError is returned by tool execution (the Execution Engine and its
// callers). It distinguishes malformed input from a tool that ran but
// failed.
type ToolError struct {
	Kind ToolErrorKind
	Msg  string
}

// ToolErrorKind enumerates the two ToolError variants from spec.md §7.
type ToolErrorKind int

const (
	// InvalidArguments means the model supplied arguments the tool
	// couldn't parse.
	InvalidArguments ToolErrorKind = iota
	// ExecutionFailed means the tool ran but encountered a failure.
	ExecutionFailed
)

func (e *ToolError) Error() string {
	switch e.Kind {
	case InvalidArguments:
		return fmt.Sprintf("invalid arguments: %s", e.Msg)
	case ExecutionFailed:
		return fmt.Sprintf("execution failed: %s", e.Msg)
	default:
		return e.Msg
	}
}

// NewInvalidArguments builds an InvalidArguments ToolError.
func NewInvalidArguments(format string, args ...any) *ToolError {
	return &ToolError{Kind: InvalidArguments, Msg: fmt.Sprintf(format, args...)}
}

// NewExecutionFailed builds an ExecutionFailed ToolError.
func NewExecutionFailed(format string, args ...any) *ToolError {
	return &ToolError{Kind: ExecutionFailed, Msg: fmt.Sprintf(format, args...)}
}

// IsInvalidArguments reports whether err is an InvalidArguments ToolError.
func IsInvalidArguments(err error) bool {
	var te *ToolError
	return errors.As(err, &te) && te.Kind == InvalidArguments
}

// IsExecutionFailed reports whether err is an ExecutionFailed ToolError.
func IsExecutionFailed(err error) bool {
	var te *ToolError
	return errors.As(err, &te) && te.Kind == ExecutionFailed
}

// ConfigError wraps configuration load/validation failures.
type ConfigError struct {
	Kind ConfigErrorKind
	Msg  string
	Err  error
}

// ConfigErrorKind enumerates ConfigError variants.
type ConfigErrorKind int

const (
	ConfigIO ConfigErrorKind = iota
	ConfigTOML
	ConfigInvalid
)

func (e *ConfigError) Error() string {
	switch e.Kind {
	case ConfigIO:
		return fmt.Sprintf("io: %v", e.Err)
	case ConfigTOML:
		return fmt.Sprintf("toml: %v", e.Err)
	case ConfigInvalid:
		return fmt.Sprintf("invalid config: %s", e.Msg)
	default:
		return e.Msg
	}
}

func (e *ConfigError) Unwrap() error { return e.Err }

// NewConfigIO wraps a filesystem error encountered while loading config.
func NewConfigIO(err error) *ConfigError {
	return &ConfigError{Kind: ConfigIO, Err: err}
}

// NewConfigTOML wraps a TOML parse error.
func NewConfigTOML(err error) *ConfigError {
	return &ConfigError{Kind: ConfigTOML, Err: err}
}

// NewConfigInvalid builds a semantic config-validation error.
func NewConfigInvalid(format string, args ...any) *ConfigError {
	return &ConfigError{Kind: ConfigInvalid, Msg: fmt.Sprintf(format, args...)}
}

// ApiError wraps failures from the upstream model HTTP layer. The HTTP
// client itself is out of scope for this core (see spec.md §1); this
// type exists so the retry policy (§4.4) and AgentError (§7) have a
// concrete error to classify.
type ApiError struct {
	Kind           ApiErrorKind
	Code           int
	Body           string
	RetryAfterSecs *uint64
	Msg            string
	Err            error
}

// ApiErrorKind enumerates ApiError variants.
type ApiErrorKind int

const (
	ApiHTTP ApiErrorKind = iota
	ApiStatus
	ApiLoginRequired
	ApiInvalidResponse
)

func (e *ApiError) Error() string {
	switch e.Kind {
	case ApiHTTP:
		return fmt.Sprintf("http: %v", e.Err)
	case ApiStatus:
		return fmt.Sprintf("status %d: %s", e.Code, e.Body)
	case ApiLoginRequired:
		return e.Msg
	case ApiInvalidResponse:
		return fmt.Sprintf("invalid response: %s", e.Msg)
	default:
		return e.Msg
	}
}

func (e *ApiError) Unwrap() error { return e.Err }

// NewApiHTTP wraps a transport-level error (timeout, connect failure, ...).
func NewApiHTTP(err error) *ApiError {
	return &ApiError{Kind: ApiHTTP, Err: err}
}

// NewApiStatus builds a non-2xx status error, optionally carrying a
// parsed Retry-After hint in seconds.
func NewApiStatus(code int, body string, retryAfterSecs *uint64) *ApiError {
	return &ApiError{Kind: ApiStatus, Code: code, Body: body, RetryAfterSecs: retryAfterSecs}
}

// NewApiLoginRequired builds a login-required error.
func NewApiLoginRequired(msg string) *ApiError {
	return &ApiError{Kind: ApiLoginRequired, Msg: msg}
}

// NewApiInvalidResponse builds an invalid-response-shape error.
func NewApiInvalidResponse(msg string) *ApiError {
	return &ApiError{Kind: ApiInvalidResponse, Msg: msg}
}

// StatusCode returns the HTTP status code for Status errors, or (0, false)
// otherwise.
func (e *ApiError) StatusCode() (int, bool) {
	if e.Kind != ApiStatus {
		return 0, false
	}
	return e.Code, true
}

// RetryAfterSeconds returns the parsed Retry-After hint for Status
// errors, or (0, false) when absent.
func (e *ApiError) RetryAfterSeconds() (uint64, bool) {
	if e.Kind != ApiStatus || e.RetryAfterSecs == nil {
		return 0, false
	}
	return *e.RetryAfterSecs, true
}

// AgentError is the top-level error type surfaced by the agent loop and
// the Task Supervisor.
type AgentError struct {
	Kind              AgentErrorKind
	Config            *ConfigError
	Api               *ApiError
	Tool              *ToolError
	EstimatedTokens   uint64
	ContextLimit      uint64
}

// AgentErrorKind enumerates AgentError variants.
type AgentErrorKind int

const (
	AgentConfig AgentErrorKind = iota
	AgentApi
	AgentTool
	AgentEmptyResponse
	AgentMaxIterationsReached
	AgentContextLimitExceeded
)

func (e *AgentError) Error() string {
	switch e.Kind {
	case AgentConfig:
		return fmt.Sprintf("config: %v", e.Config)
	case AgentApi:
		return fmt.Sprintf("api: %v", e.Api)
	case AgentTool:
		return fmt.Sprintf("tool: %v", e.Tool)
	case AgentEmptyResponse:
		return "model returned empty response"
	case AgentMaxIterationsReached:
		return "max agentic loop iterations reached"
	case AgentContextLimitExceeded:
		return fmt.Sprintf(
			"context limit exceeded (%d/%d estimated tokens). Run `/compact` or `/session new` and retry",
			e.EstimatedTokens, e.ContextLimit,
		)
	default:
		return "agent error"
	}
}

func (e *AgentError) Unwrap() error {
	switch e.Kind {
	case AgentConfig:
		return e.Config
	case AgentApi:
		return e.Api
	case AgentTool:
		return e.Tool
	default:
		return nil
	}
}

// FromConfigError upcasts a ConfigError into an AgentError.
func FromConfigError(err *ConfigError) *AgentError {
	return &AgentError{Kind: AgentConfig, Config: err}
}

// FromApiError upcasts an ApiError into an AgentError.
func FromApiError(err *ApiError) *AgentError {
	return &AgentError{Kind: AgentApi, Api: err}
}

// FromToolError upcasts a ToolError into an AgentError.
func FromToolError(err *ToolError) *AgentError {
	return &AgentError{Kind: AgentTool, Tool: err}
}

// ErrEmptyResponse reports that the model returned no choices.
func ErrEmptyResponse() *AgentError {
	return &AgentError{Kind: AgentEmptyResponse}
}

// ErrMaxIterationsReached reports that the tool-call loop exceeded
// max_iterations.
func ErrMaxIterationsReached() *AgentError {
	return &AgentError{Kind: AgentMaxIterationsReached}
}

// ErrContextLimitExceeded reports that the estimated prompt token count
// exceeds the configured context_limit.
func ErrContextLimitExceeded(estimated, limit uint64) *AgentError {
	return &AgentError{
		Kind:            AgentContextLimitExceeded,
		EstimatedTokens: estimated,
		ContextLimit:    limit,
	}
}

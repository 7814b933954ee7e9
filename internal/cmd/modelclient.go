package cmd

import (
	"context"

	"github.com/0xfe/buddy-sub001/internal/agent"
	"github.com/0xfe/buddy-sub001/internal/errs"
	"github.com/0xfe/buddy-sub001/internal/session"
)

// unconfiguredClient is the agent.ModelClient this CLI wires in place
// of a real upstream HTTP client. spec.md §1 puts "the HTTP client to
// the model provider" and its wire protocol out of scope for this
// core — Complete fails clearly instead of silently talking to
// nothing, so every prompt surfaces the same ApiLoginRequired-shaped
// error an unconfigured `api.base_url`/`api.api_key` would produce
// against a real client.
type unconfiguredClient struct{}

func (unconfiguredClient) Complete(ctx context.Context, model string, messages []session.Message) (agent.Turn, error) {
	return agent.Turn{}, errs.FromApiError(errs.NewApiLoginRequired(
		"no model client configured: set api.base_url and api.api_key (or api.auth = \"login\") in buddy.toml",
	))
}

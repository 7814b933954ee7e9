// Package fetchtool implements the domain-stack URL fetch tool:
// config-gated (tools.fetch_enabled), approval-gated
// (tools.fetch_confirm) through the same RequestApprover contract every
// approval-gated tool uses, and domain-allow/deny-list filtered the way
// gastown's internal/web validates user-supplied references before
// acting on them. Page rendering goes through a headless browser
// (go-rod) rather than a bare HTTP GET, since the corpus's only
// dependency in this space is go-rod (see DESIGN.md/SPEC_FULL.md
// DOMAIN STACK) and a managed browser is what lets this tool honor
// JS-rendered pages the way an interactive agent's "fetch" tool is
// expected to.
package fetchtool

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/0xfe/buddy-sub001/internal/envelope"
	"github.com/0xfe/buddy-sub001/internal/errs"
)

func decodeArgs(argsJSON string, out *args) error {
	return json.Unmarshal([]byte(argsJSON), out)
}

// Approver is the approval-gating hook a Tool asks before running: the
// shape of internal/task.Supervisor.RequestApproval minus its task-id
// parameter, which the adapter in internal/cmd supplies from ctx.
// Every approval-gated tool in this module takes one of these at
// construction time instead of depending on internal/approval or
// internal/task directly, keeping the dependency arrow pointing one way.
type Approver func(ctx context.Context, command, risk string, mutation, privesc bool, why string) (bool, error)

// Result is the JSON payload wrapped into the standard tool-result
// envelope (§6.3) for a successful fetch.
type Result struct {
	URL         string `json:"url"`
	FinalURL    string `json:"final_url"`
	Title       string `json:"title"`
	TextContent string `json:"text_content"`
	Truncated   bool   `json:"truncated"`
}

// maxContentChars bounds how much page text is returned to the model
// per fetch; the page itself may be arbitrarily large.
const maxContentChars = 20000

// args is the opaque JSON argument shape the model supplies — §1 places
// tool JSON argument schemas out of scope beyond what the core observes
// as opaque strings, so this is intentionally minimal.
type args struct {
	URL string `json:"url"`
}

// Tool is the fetch tool wired into the Agent's tool registry
// (tools.fetch_enabled in config).
type Tool struct {
	AllowedDomains []string
	BlockedDomains []string
	Timeout        time.Duration
	Confirm        bool
	Approve        Approver

	browser *rod.Browser
}

// New builds a Tool. The browser is launched lazily on first Execute
// so constructing a disabled tool (tools.fetch_enabled=false) never
// pays the launcher cost.
func New(allowedDomains, blockedDomains []string, timeout time.Duration, confirm bool, approve Approver) *Tool {
	return &Tool{
		AllowedDomains: allowedDomains,
		BlockedDomains: blockedDomains,
		Timeout:        timeout,
		Confirm:        confirm,
		Approve:        approve,
	}
}

// Name satisfies agent.Tool.
func (t *Tool) Name() string { return "fetch_url" }

// Execute parses argsJSON, validates and approves the target URL, and
// renders it through a headless browser, returning the standard tool-
// result envelope.
func (t *Tool) Execute(ctx context.Context, argsJSON string) (string, error) {
	var a args
	if err := decodeArgs(argsJSON, &a); err != nil {
		return "", errs.NewInvalidArguments("fetch_url: %v", err)
	}
	if strings.TrimSpace(a.URL) == "" {
		return "", errs.NewInvalidArguments("fetch_url: url is required")
	}

	parsed, err := url.Parse(a.URL)
	if err != nil || parsed.Host == "" {
		return "", errs.NewInvalidArguments("fetch_url: invalid url %q", a.URL)
	}
	if err := t.checkDomain(parsed.Hostname()); err != nil {
		return "", err
	}

	if t.Confirm {
		if t.Approve == nil {
			return "", errs.NewExecutionFailed("fetch_url: confirmation required but no approver configured")
		}
		ok, err := t.Approve(ctx, fmt.Sprintf("fetch %s", a.URL), "", false, false, "fetch_url")
		if err != nil {
			return "", err
		}
		if !ok {
			return "", errs.NewExecutionFailed("fetch_url: denied by operator")
		}
	}

	result, err := t.fetch(ctx, a.URL)
	if err != nil {
		return "", errs.NewExecutionFailed("fetch_url: %v", err)
	}

	wrapped, err := envelope.Wrap(result)
	if err != nil {
		return "", err
	}
	return wrapped, nil
}

// checkDomain enforces fetch_allowed_domains/fetch_blocked_domains: a
// blocked match always wins; a non-empty allow-list makes every other
// host rejected.
func (t *Tool) checkDomain(host string) error {
	host = strings.ToLower(host)
	for _, blocked := range t.BlockedDomains {
		if domainMatches(host, blocked) {
			return errs.NewInvalidArguments("fetch_url: domain %q is blocked", host)
		}
	}
	if len(t.AllowedDomains) == 0 {
		return nil
	}
	for _, allowed := range t.AllowedDomains {
		if domainMatches(host, allowed) {
			return nil
		}
	}
	return errs.NewInvalidArguments("fetch_url: domain %q is not in the allowed list", host)
}

// domainMatches reports whether host equals pattern or is a subdomain
// of it (pattern "example.com" also matches "www.example.com").
func domainMatches(host, pattern string) bool {
	pattern = strings.ToLower(strings.TrimSpace(pattern))
	return host == pattern || strings.HasSuffix(host, "."+pattern)
}

func (t *Tool) ensureBrowser() (*rod.Browser, error) {
	if t.browser != nil {
		return t.browser, nil
	}
	u, err := launcher.New().Headless(true).Launch()
	if err != nil {
		return nil, fmt.Errorf("launch headless browser: %w", err)
	}
	t.browser = rod.New().ControlURL(u)
	if err := t.browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect to headless browser: %w", err)
	}
	return t.browser, nil
}

func (t *Tool) fetch(ctx context.Context, target string) (Result, error) {
	browser, err := t.ensureBrowser()
	if err != nil {
		return Result{}, err
	}

	timeout := t.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	fetchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	page, err := browser.Context(fetchCtx).Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return Result{}, fmt.Errorf("open page: %w", err)
	}
	defer page.Close()

	if err := page.Navigate(target); err != nil {
		return Result{}, fmt.Errorf("navigate: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return Result{}, fmt.Errorf("wait for load: %w", err)
	}

	info, err := page.Info()
	if err != nil {
		return Result{}, fmt.Errorf("page info: %w", err)
	}

	root, err := page.Element("body")
	if err != nil {
		return Result{}, fmt.Errorf("locate body: %w", err)
	}
	text, err := root.Text()
	if err != nil {
		return Result{}, fmt.Errorf("extract text: %w", err)
	}

	truncated := false
	if len(text) > maxContentChars {
		text = text[:maxContentChars]
		truncated = true
	}

	return Result{
		URL:         target,
		FinalURL:    info.URL,
		Title:       info.Title,
		TextContent: text,
		Truncated:   truncated,
	}, nil
}

// Close releases the headless browser process, if one was launched.
func (t *Tool) Close() {
	if t.browser != nil {
		_ = t.browser.Close()
	}
}

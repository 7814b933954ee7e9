package tmux

import (
	"strings"
)

// Option names tagged onto every session/pane this process manages, so
// a later invocation (or a concurrent one) can tell its own tmux
// objects apart from anything else living on the same server.
const (
	ManagedOption = "@buddy_managed"
	OwnerOption   = "@buddy_owner"

	// WindowName is the window every managed session keeps its panes in.
	WindowName = "buddy"
	// DefaultPaneTitle is the pane title of the pinned, non-killable
	// pane created in a fresh managed session.
	DefaultPaneTitle = "shared"
)

// SanitizeFragment normalizes a user-provided tmux session/pane
// fragment into a shell-safe identifier: lowercase, alnum/dash/
// underscore only, runs of separators collapsed to one, leading and
// trailing separators trimmed, capped at 48 runes. Falls back to
// fallback when nothing survives.
func SanitizeFragment(raw, fallback string) string {
	var out []rune
	previousDash := false
	for _, ch := range strings.ToLower(strings.TrimSpace(raw)) {
		switch {
		case ch >= 'a' && ch <= 'z' || ch >= '0' && ch <= '9':
			out = append(out, ch)
			previousDash = false
		case ch == '-' || ch == '_':
			if !previousDash && len(out) > 0 {
				out = append(out, ch)
				previousDash = true
			}
		default:
			if !previousDash && len(out) > 0 {
				out = append(out, '-')
				previousDash = true
			}
		}
	}

	trimmed := strings.Trim(string(out), "-_")
	if trimmed == "" {
		return fallback
	}
	runes := []rune(trimmed)
	if len(runes) > 48 {
		runes = runes[:48]
	}
	return string(runes)
}

// CanonicalSessionName resolves a requested managed session selector:
// blank or exactly the default session name pass through unchanged, a
// value already carrying the owner prefix passes through unchanged,
// anything else is sanitized and prefixed.
func CanonicalSessionName(ownerPrefix, defaultSession, requested string) string {
	raw := strings.TrimSpace(requested)
	if raw == "" {
		return defaultSession
	}
	if raw == defaultSession {
		return defaultSession
	}
	if strings.HasPrefix(raw, ownerPrefix) {
		return raw
	}
	return ownerPrefix + "-" + SanitizeFragment(raw, "session")
}

// CanonicalPaneTitle resolves a requested managed pane selector the
// same way CanonicalSessionName does, against DefaultPaneTitle instead
// of a caller-supplied default.
func CanonicalPaneTitle(ownerPrefix, requested string) string {
	raw := strings.TrimSpace(requested)
	if raw == "" {
		return DefaultPaneTitle
	}
	if raw == DefaultPaneTitle {
		return DefaultPaneTitle
	}
	if strings.HasPrefix(raw, ownerPrefix) {
		return raw
	}
	return ownerPrefix + "-" + SanitizeFragment(raw, "pane")
}

// ownershipPrefixMaxRunes is the spec.md §4.1 cap on the composed
// ownership prefix itself ("ASCII-lowercased, alnum+dash, capped ≤48
// chars") — not just on the agent-slug fragment that feeds it, since
// the prefix as a whole is what gets embedded in tmux option values.
const ownershipPrefixMaxRunes = 48

// OwnershipPrefix derives the process-scoped namespacing prefix used
// for every managed tmux object this process creates:
// "<brand>-<agent-slug>", capped at ownershipPrefixMaxRunes runes.
func OwnershipPrefix(brand, agentSlug string) string {
	slug := SanitizeFragment(agentSlug, "agent")
	prefix := strings.ToLower(brand) + "-" + slug
	runes := []rune(prefix)
	if len(runes) > ownershipPrefixMaxRunes {
		runes = runes[:ownershipPrefixMaxRunes]
	}
	return strings.TrimRight(string(runes), "-_")
}

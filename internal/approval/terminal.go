package approval

import (
	"os"

	"golang.org/x/term"
)

// TerminalAvailable reports whether stdin is a live TTY. The Ask policy
// only prompts a human decider when this is true; off a pipe (e.g. a
// scripted or CI invocation) the broker has nobody to ask, so callers
// should auto-deny rather than block forever (see DESIGN.md's headless
// approval fallback decision).
func TerminalAvailable() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

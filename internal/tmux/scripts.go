package tmux

import (
	"fmt"
	"strings"
)

// shellQuote produces a POSIX single-quoted literal safe to splice into
// the generated shell scripts below.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// TargetSelector identifies a managed tmux pane either by an explicit
// raw tmux target (session:window.pane or a pane id) or by a
// session/pane name pair to canonicalize.
type TargetSelector struct {
	Session string
	Pane    string
	Target  string
}

// ResolvedTarget is the outcome of resolving a TargetSelector against
// the live tmux server.
type ResolvedTarget struct {
	Session         string
	PaneID          string
	PaneTitle       string
	IsDefaultShared bool
}

// CreatedSession is the outcome of CreateManagedSessionScript.
type CreatedSession struct {
	Session string
	PaneID  string
	Created bool
}

// CreatedPane is the outcome of CreateManagedPaneScript.
type CreatedPane struct {
	Session   string
	PaneID    string
	PaneTitle string
	Created   bool
}

// ResolveManagedTargetScript builds the shell script that resolves and
// validates a managed tmux pane target, refusing anything this process
// doesn't own.
func ResolveManagedTargetScript(ownerPrefix, defaultSession string, selector TargetSelector) string {
	session := CanonicalSessionName(ownerPrefix, defaultSession, selector.Session)
	paneTitle := CanonicalPaneTitle(ownerPrefix, selector.Pane)

	return fmt.Sprintf(`set -e
OWNER=%s
DEFAULT_SESSION=%s
SESSION=%s
PANE_TITLE=%s
TARGET=%s
if [ -n "$TARGET" ]; then
  SESSION="$(tmux display-message -p -t "$TARGET" '#{session_name}' 2>/dev/null || true)"
  PANE="$(tmux display-message -p -t "$TARGET" '#{pane_id}' 2>/dev/null || true)"
  PANE_TITLE="$(tmux display-message -p -t "$TARGET" '#{pane_title}' 2>/dev/null || true)"
else
  PANE="$(tmux list-panes -a -F '#{session_name}\t#{pane_id}\t#{pane_title}' 2>/dev/null | awk -F '\t' -v session="$SESSION" -v pane_title="$PANE_TITLE" '$1==session && $3==pane_title {print $2; exit}')"
fi
if [ -z "$SESSION" ] || [ -z "$PANE" ]; then
  echo "tmux target not found" >&2
  exit 1
fi
SESSION_MANAGED="$(tmux show-options -v -t "$SESSION" %s 2>/dev/null || true)"
SESSION_OWNER="$(tmux show-options -v -t "$SESSION" %s 2>/dev/null || true)"
if [ "$SESSION_MANAGED" != "1" ] || [ "$SESSION_OWNER" != "$OWNER" ]; then
  echo "tmux session '$SESSION' is not managed by this buddy instance" >&2
  exit 1
fi
PANE_MANAGED="$(tmux show-options -v -p -t "$PANE" %s 2>/dev/null || true)"
PANE_OWNER="$(tmux show-options -v -p -t "$PANE" %s 2>/dev/null || true)"
if [ "$PANE_MANAGED" != "1" ] || [ "$PANE_OWNER" != "$OWNER" ]; then
  echo "tmux pane '$PANE' is not managed by this buddy instance" >&2
  exit 1
fi
IS_DEFAULT=0
if [ "$SESSION" = "$DEFAULT_SESSION" ] && [ "$PANE_TITLE" = %s ]; then
  IS_DEFAULT=1
fi
printf '%%s\n%%s\n%%s\n%%s' "$SESSION" "$PANE" "$PANE_TITLE" "$IS_DEFAULT"
`,
		shellQuote(ownerPrefix), shellQuote(defaultSession), shellQuote(session), shellQuote(paneTitle),
		shellQuote(selector.Target),
		ManagedOption, OwnerOption,
		ManagedOption, OwnerOption,
		shellQuote(DefaultPaneTitle),
	)
}

// CreateManagedSessionScript builds the shell script that creates or
// reuses a managed tmux session, enforcing maxSessions.
func CreateManagedSessionScript(ownerPrefix, session string, maxSessions int) string {
	return fmt.Sprintf(`set -e
OWNER=%s
SESSION=%s
WINDOW=%s
PANE_TITLE=%s
MAX_SESSIONS=%d
COUNT="$(tmux list-sessions -F '#{session_name}\t#{%s}\t#{%s}' 2>/dev/null | awk -F '\t' -v owner="$OWNER" '$2=="1" && $3==owner {c++} END {print c+0}')"
CREATED=0
if tmux has-session -t "$SESSION" 2>/dev/null; then
  SESSION_MANAGED="$(tmux show-options -v -t "$SESSION" %s 2>/dev/null || true)"
  SESSION_OWNER="$(tmux show-options -v -t "$SESSION" %s 2>/dev/null || true)"
  if [ "$SESSION_MANAGED" != "1" ] || [ "$SESSION_OWNER" != "$OWNER" ]; then
    echo "tmux session '$SESSION' exists but is not managed by this buddy instance" >&2
    exit 1
  fi
else
  if [ "$COUNT" -ge "$MAX_SESSIONS" ]; then
    echo "managed tmux session limit reached ($COUNT/$MAX_SESSIONS)" >&2
    exit 1
  fi
  tmux new-session -d -s "$SESSION" -n "$WINDOW"
  CREATED=1
fi
if ! tmux list-windows -t "$SESSION" -F '#{window_name}' | grep -Fx -- "$WINDOW" >/dev/null 2>&1; then
  tmux new-window -d -t "$SESSION" -n "$WINDOW"
fi
PANE="$(tmux list-panes -a -F '#{session_name}\t#{pane_id}\t#{pane_title}' | awk -F '\t' -v session="$SESSION" -v pane_title="$PANE_TITLE" '$1==session && $3==pane_title {print $2; exit}')"
if [ -z "$PANE" ]; then
  PANE="$(tmux list-panes -t "$SESSION:$WINDOW" -F '#{pane_id}' | head -n1)"
  tmux select-pane -t "$PANE" -T "$PANE_TITLE" >/dev/null 2>&1 || true
fi
tmux set-option -q -t "$SESSION" %s 1
tmux set-option -q -t "$SESSION" %s "$OWNER"
tmux set-option -q -p -t "$PANE" %s 1
tmux set-option -q -p -t "$PANE" %s "$OWNER"
printf '%%s\n%%s\n%%s' "$SESSION" "$PANE" "$CREATED"
`,
		shellQuote(ownerPrefix), shellQuote(session), shellQuote(WindowName), shellQuote(DefaultPaneTitle), maxSessions,
		ManagedOption, OwnerOption,
		ManagedOption, OwnerOption,
		ManagedOption, OwnerOption, ManagedOption, OwnerOption,
	)
}

// CreateManagedPaneScript builds the shell script that creates or
// reuses a managed tmux pane inside an existing managed session.
func CreateManagedPaneScript(ownerPrefix, defaultSession, session, pane string, maxPanes int) string {
	resolvedSession := CanonicalSessionName(ownerPrefix, defaultSession, session)
	paneTitle := CanonicalPaneTitle(ownerPrefix, pane)

	return fmt.Sprintf(`set -e
OWNER=%s
SESSION=%s
PANE_TITLE=%s
WINDOW=%s
MAX_PANES=%d
if ! tmux has-session -t "$SESSION" 2>/dev/null; then
  echo "tmux session '$SESSION' was not found" >&2
  exit 1
fi
SESSION_MANAGED="$(tmux show-options -v -t "$SESSION" %s 2>/dev/null || true)"
SESSION_OWNER="$(tmux show-options -v -t "$SESSION" %s 2>/dev/null || true)"
if [ "$SESSION_MANAGED" != "1" ] || [ "$SESSION_OWNER" != "$OWNER" ]; then
  echo "tmux session '$SESSION' is not managed by this buddy instance" >&2
  exit 1
fi
PANE="$(tmux list-panes -a -F '#{session_name}\t#{pane_id}\t#{pane_title}' | awk -F '\t' -v session="$SESSION" -v pane_title="$PANE_TITLE" '$1==session && $3==pane_title {print $2; exit}')"
CREATED=0
if [ -z "$PANE" ]; then
  COUNT="$(tmux list-panes -a -F '#{session_name}\t#{%s}\t#{%s}' | awk -F '\t' -v session="$SESSION" -v owner="$OWNER" '$1==session && $2=="1" && $3==owner {c++} END {print c+0}')"
  if [ "$COUNT" -ge "$MAX_PANES" ]; then
    echo "managed tmux pane limit reached in session '$SESSION' ($COUNT/$MAX_PANES)" >&2
    exit 1
  fi
  if ! tmux list-windows -t "$SESSION" -F '#{window_name}' | grep -Fx -- "$WINDOW" >/dev/null 2>&1; then
    tmux new-window -d -t "$SESSION" -n "$WINDOW"
  fi
  PANE="$(tmux split-window -d -P -F '#{pane_id}' -t "$SESSION:$WINDOW")"
  tmux select-pane -t "$PANE" -T "$PANE_TITLE" >/dev/null 2>&1 || true
  tmux set-option -q -p -t "$PANE" %s 1
  tmux set-option -q -p -t "$PANE" %s "$OWNER"
  CREATED=1
fi
printf '%%s\n%%s\n%%s\n%%s' "$SESSION" "$PANE" "$PANE_TITLE" "$CREATED"
`,
		shellQuote(ownerPrefix), shellQuote(resolvedSession), shellQuote(paneTitle), shellQuote(WindowName), maxPanes,
		ManagedOption, OwnerOption,
		ManagedOption, OwnerOption,
		ManagedOption, OwnerOption,
	)
}

// KillManagedPaneScript builds the shell script that kills one managed
// tmux pane, refusing to touch the pinned default-shared pane.
func KillManagedPaneScript(ownerPrefix, defaultSession, session, pane string) string {
	resolvedSession := CanonicalSessionName(ownerPrefix, defaultSession, session)
	paneTitle := CanonicalPaneTitle(ownerPrefix, pane)

	return fmt.Sprintf(`set -e
OWNER=%s
SESSION=%s
PANE_TITLE=%s
DEFAULT_SESSION=%s
if ! tmux has-session -t "$SESSION" 2>/dev/null; then
  echo "tmux session '$SESSION' was not found" >&2
  exit 1
fi
SESSION_MANAGED="$(tmux show-options -v -t "$SESSION" %s 2>/dev/null || true)"
SESSION_OWNER="$(tmux show-options -v -t "$SESSION" %s 2>/dev/null || true)"
if [ "$SESSION_MANAGED" != "1" ] || [ "$SESSION_OWNER" != "$OWNER" ]; then
  echo "tmux session '$SESSION' is not managed by this buddy instance" >&2
  exit 1
fi
PANE="$(tmux list-panes -a -F '#{session_name}\t#{pane_id}\t#{pane_title}' | awk -F '\t' -v session="$SESSION" -v pane_title="$PANE_TITLE" '$1==session && $3==pane_title {print $2; exit}')"
if [ -z "$PANE" ]; then
  echo "tmux pane '$PANE_TITLE' was not found in session '$SESSION'" >&2
  exit 1
fi
if [ "$SESSION" = "$DEFAULT_SESSION" ] && [ "$PANE_TITLE" = %s ]; then
  echo "cannot kill default shared pane" >&2
  exit 1
fi
PANE_MANAGED="$(tmux show-options -v -p -t "$PANE" %s 2>/dev/null || true)"
PANE_OWNER="$(tmux show-options -v -p -t "$PANE" %s 2>/dev/null || true)"
if [ "$PANE_MANAGED" != "1" ] || [ "$PANE_OWNER" != "$OWNER" ]; then
  echo "tmux pane '$PANE_TITLE' is not managed by this buddy instance" >&2
  exit 1
fi
tmux kill-pane -t "$PANE"
printf '%%s\n%%s' "$SESSION" "$PANE"
`,
		shellQuote(ownerPrefix), shellQuote(resolvedSession), shellQuote(paneTitle), shellQuote(defaultSession),
		ManagedOption, OwnerOption,
		shellQuote(DefaultPaneTitle),
		ManagedOption, OwnerOption,
	)
}

// KillManagedSessionScript builds the shell script that kills one
// managed tmux session, refusing to touch the pinned default session.
func KillManagedSessionScript(ownerPrefix, defaultSession, session string) string {
	resolvedSession := CanonicalSessionName(ownerPrefix, defaultSession, session)

	return fmt.Sprintf(`set -e
OWNER=%s
SESSION=%s
DEFAULT_SESSION=%s
if [ "$SESSION" = "$DEFAULT_SESSION" ]; then
  echo "cannot kill default managed tmux session" >&2
  exit 1
fi
if ! tmux has-session -t "$SESSION" 2>/dev/null; then
  echo "tmux session '$SESSION' was not found" >&2
  exit 1
fi
SESSION_MANAGED="$(tmux show-options -v -t "$SESSION" %s 2>/dev/null || true)"
SESSION_OWNER="$(tmux show-options -v -t "$SESSION" %s 2>/dev/null || true)"
if [ "$SESSION_MANAGED" != "1" ] || [ "$SESSION_OWNER" != "$OWNER" ]; then
  echo "tmux session '$SESSION' is not managed by this buddy instance" >&2
  exit 1
fi
tmux kill-session -t "$SESSION"
printf '%%s' "$SESSION"
`,
		shellQuote(ownerPrefix), shellQuote(resolvedSession), shellQuote(defaultSession),
		ManagedOption, OwnerOption,
	)
}

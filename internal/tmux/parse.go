package tmux

import "strings"

// ParseResolvedTarget parses the output of ResolveManagedTargetScript.
func ParseResolvedTarget(output string) (ResolvedTarget, bool) {
	lines := strings.Split(output, "\n")
	if len(lines) < 4 {
		return ResolvedTarget{}, false
	}
	session := strings.TrimSpace(lines[0])
	paneID := strings.TrimSpace(lines[1])
	paneTitle := strings.TrimSpace(lines[2])
	isDefault := strings.TrimSpace(lines[3]) == "1"
	if session == "" || paneID == "" {
		return ResolvedTarget{}, false
	}
	return ResolvedTarget{
		Session:         session,
		PaneID:          paneID,
		PaneTitle:       paneTitle,
		IsDefaultShared: isDefault,
	}, true
}

// ParseCreatedSession parses the output of CreateManagedSessionScript.
func ParseCreatedSession(output string) (CreatedSession, bool) {
	lines := strings.Split(output, "\n")
	if len(lines) < 3 {
		return CreatedSession{}, false
	}
	session := strings.TrimSpace(lines[0])
	paneID := strings.TrimSpace(lines[1])
	created := strings.TrimSpace(lines[2]) == "1"
	if session == "" || paneID == "" {
		return CreatedSession{}, false
	}
	return CreatedSession{Session: session, PaneID: paneID, Created: created}, true
}

// ParseCreatedPane parses the output of CreateManagedPaneScript.
func ParseCreatedPane(output string) (CreatedPane, bool) {
	lines := strings.Split(output, "\n")
	if len(lines) < 4 {
		return CreatedPane{}, false
	}
	session := strings.TrimSpace(lines[0])
	paneID := strings.TrimSpace(lines[1])
	paneTitle := strings.TrimSpace(lines[2])
	created := strings.TrimSpace(lines[3]) == "1"
	if session == "" || paneID == "" || paneTitle == "" {
		return CreatedPane{}, false
	}
	return CreatedPane{Session: session, PaneID: paneID, PaneTitle: paneTitle, Created: created}, true
}

// ParseKilledPane parses the "<session>\n<pane_id>" output of
// KillManagedPaneScript.
func ParseKilledPane(output string) (session, paneID string, ok bool) {
	lines := strings.Split(output, "\n")
	if len(lines) < 2 {
		return "", "", false
	}
	session = strings.TrimSpace(lines[0])
	paneID = strings.TrimSpace(lines[1])
	if session == "" || paneID == "" {
		return "", "", false
	}
	return session, paneID, true
}

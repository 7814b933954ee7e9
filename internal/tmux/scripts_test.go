package tmux

import "testing"

func TestCreateManagedSessionScriptParseRoundTrip(t *testing.T) {
	// This only exercises the parser against a hand-built script output —
	// the script itself is only ever run against a live tmux server, not
	// in this test.
	out := "buddy-agent-mo\n%3\n1"
	created, ok := ParseCreatedSession(out)
	if !ok {
		t.Fatal("expected parse ok")
	}
	if created.Session != "buddy-agent-mo" || created.PaneID != "%3" || !created.Created {
		t.Fatalf("got %+v", created)
	}
}

func TestParseCreatedPaneRoundTrip(t *testing.T) {
	out := "buddy-agent-mo\n%4\nbuddy-agent-mo-build\n0"
	created, ok := ParseCreatedPane(out)
	if !ok {
		t.Fatal("expected parse ok")
	}
	if created.Created {
		t.Fatal("expected Created=false")
	}
	if created.PaneTitle != "buddy-agent-mo-build" {
		t.Fatalf("got %+v", created)
	}
}

func TestParseResolvedTargetRoundTrip(t *testing.T) {
	out := "buddy-agent-mo\n%1\nshared\n1"
	resolved, ok := ParseResolvedTarget(out)
	if !ok {
		t.Fatal("expected parse ok")
	}
	if !resolved.IsDefaultShared {
		t.Fatal("expected IsDefaultShared")
	}
}

func TestParseKilledPaneRoundTrip(t *testing.T) {
	session, pane, ok := ParseKilledPane("buddy-agent-mo\n%2")
	if !ok || session != "buddy-agent-mo" || pane != "%2" {
		t.Fatalf("got %q %q %v", session, pane, ok)
	}
}

func TestParseMalformedOutputFails(t *testing.T) {
	if _, ok := ParseCreatedSession("only-one-line"); ok {
		t.Fatal("expected parse failure")
	}
	if _, _, ok := ParseKilledPane(""); ok {
		t.Fatal("expected parse failure")
	}
}

func TestScriptBuildersProduceNonEmptyScripts(t *testing.T) {
	if s := CreateManagedSessionScript("buddy-agent-mo", "buddy-agent-mo", 4); s == "" {
		t.Fatal("expected non-empty script")
	}
	if s := CreateManagedPaneScript("buddy-agent-mo", "buddy-agent-mo", "", "build", 8); s == "" {
		t.Fatal("expected non-empty script")
	}
	if s := KillManagedPaneScript("buddy-agent-mo", "buddy-agent-mo", "", "build"); s == "" {
		t.Fatal("expected non-empty script")
	}
	if s := KillManagedSessionScript("buddy-agent-mo", "buddy-agent-mo", "other"); s == "" {
		t.Fatal("expected non-empty script")
	}
	if s := ResolveManagedTargetScript("buddy-agent-mo", "buddy-agent-mo", TargetSelector{}); s == "" {
		t.Fatal("expected non-empty script")
	}
}

package tmux

import "testing"

func TestSanitizeFragmentCollapsesAndCaps(t *testing.T) {
	if got := SanitizeFragment("  Hello   World!!  ", "fallback"); got != "hello-world" {
		t.Fatalf("got %q", got)
	}
	if got := SanitizeFragment("", "fallback"); got != "fallback" {
		t.Fatalf("got %q, want fallback", got)
	}
	if got := SanitizeFragment("---", "fallback"); got != "fallback" {
		t.Fatalf("got %q, want fallback", got)
	}

	long := ""
	for i := 0; i < 80; i++ {
		long += "a"
	}
	got := SanitizeFragment(long, "fallback")
	if len(got) != 48 {
		t.Fatalf("len(got) = %d, want 48", len(got))
	}
}

func TestCanonicalSessionNamePrefixesNonPrefixedValues(t *testing.T) {
	got := CanonicalSessionName("buddy-agent-mo", "buddy-agent-mo", "build")
	if got != "buddy-agent-mo-build" {
		t.Fatalf("got %q, want buddy-agent-mo-build", got)
	}
}

func TestCanonicalSessionNamePassesThroughDefault(t *testing.T) {
	got := CanonicalSessionName("buddy-agent-mo", "buddy-agent-mo", "")
	if got != "buddy-agent-mo" {
		t.Fatalf("got %q", got)
	}
}

func TestCanonicalSessionNamePassesThroughAlreadyPrefixed(t *testing.T) {
	got := CanonicalSessionName("buddy-agent-mo", "buddy-agent-mo", "buddy-agent-mo-other")
	if got != "buddy-agent-mo-other" {
		t.Fatalf("got %q", got)
	}
}

func TestCanonicalPaneTitleKeepsSharedDefault(t *testing.T) {
	got := CanonicalPaneTitle("buddy-agent-mo", "")
	if got != "shared" {
		t.Fatalf("got %q, want shared", got)
	}
}

func TestOwnershipPrefix(t *testing.T) {
	got := OwnershipPrefix("buddy", "Mo Feature")
	if got != "buddy-mo-feature" {
		t.Fatalf("got %q", got)
	}
}

func TestOwnershipPrefixCapsComposedLength(t *testing.T) {
	long := ""
	for i := 0; i < 80; i++ {
		long += "a"
	}
	got := OwnershipPrefix("buddy", long)
	if len(got) > 48 {
		t.Fatalf("len(got) = %d, want <= 48 (composed brand-slug prefix, not just the slug)", len(got))
	}
}

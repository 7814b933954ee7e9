package approval

import (
	"testing"
	"time"
)

func TestParseDecision(t *testing.T) {
	cases := []struct {
		in      string
		want    Verdict
		wantOK  bool
	}{
		{"y", Approve, true},
		{"yes", Approve, true},
		{"Y", Approve, true},
		{"  YES  ", Approve, true},
		{"n", Deny, true},
		{"no", Deny, true},
		{"", Deny, true},
		{"maybe", Deny, false},
	}
	for _, c := range cases {
		got, ok := ParseDecision(c.in)
		if got != c.want || ok != c.wantOK {
			t.Fatalf("ParseDecision(%q) = %v, %v; want %v, %v", c.in, got, ok, c.want, c.wantOK)
		}
	}
}

func TestPolicyEffectiveUntilDemotesAfterDeadline(t *testing.T) {
	deadline := time.Unix(1000, 0)
	policy := PolicyState{Kind: PolicyUntil, Deadline: deadline}

	if got := policy.Effective(deadline.Add(-time.Second)); got != PolicyUntil {
		t.Fatalf("before deadline = %v, want PolicyUntil", got)
	}
	if got := policy.Effective(deadline); got != PolicyAsk {
		t.Fatalf("at deadline = %v, want PolicyAsk", got)
	}
	if got := policy.Effective(deadline.Add(time.Second)); got != PolicyAsk {
		t.Fatalf("after deadline = %v, want PolicyAsk", got)
	}
}

func TestRequestAllowsExactlyOneResolution(t *testing.T) {
	req := newRequest("rm -rf /tmp/x", "high", true, false, "cleanup")
	req.ApproveRequest()
	req.DenyRequest() // no-op, must not block or panic

	if got := req.Result(); got != Approve {
		t.Fatalf("Result() = %v, want Approve", got)
	}
}

func TestHandleRequestPolicyShortCircuits(t *testing.T) {
	b := NewBroker()
	h := b.Handle()
	now := time.Now()

	if got := h.Request(PolicyState{Kind: PolicyAll}, now, "ls", "", false, false, ""); got != Approve {
		t.Fatalf("PolicyAll = %v, want Approve", got)
	}
	if got := h.Request(PolicyState{Kind: PolicyNone}, now, "ls", "", false, false, ""); got != Deny {
		t.Fatalf("PolicyNone = %v, want Deny", got)
	}

	// PolicyAsk must go through the decider queue, not return immediately.
	done := make(chan Verdict, 1)
	go func() {
		done <- h.Request(PolicyState{Kind: PolicyAsk}, now, "rm -rf /", "high", true, false, "cleanup")
	}()

	req := b.Recv()
	if req.Command != "rm -rf /" {
		t.Fatalf("Recv() command = %q", req.Command)
	}
	req.DenyRequest()

	select {
	case got := <-done:
		if got != Deny {
			t.Fatalf("Ask-routed verdict = %v, want Deny", got)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for Ask-routed verdict")
	}
}

func TestIsTransientApprovalWarning(t *testing.T) {
	if !IsTransientApprovalWarning("Approval Granted") {
		t.Fatal("expected approval-granted to be transient")
	}
	if !IsTransientApprovalWarning("  approval denied  ") {
		t.Fatal("expected approval-denied to be transient")
	}
	if IsTransientApprovalWarning("tool execution failed") {
		t.Fatal("did not expect unrelated warning to be suppressed")
	}
}

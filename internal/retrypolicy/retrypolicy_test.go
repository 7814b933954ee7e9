package retrypolicy

import (
	"testing"
	"time"

	"github.com/0xfe/buddy-sub001/internal/errs"
)

func TestShouldRetryStopsAtMaxAttempts(t *testing.T) {
	p := Default()
	err := errs.NewApiStatus(500, "boom", nil)
	if p.ShouldRetry(err, 2) {
		t.Fatal("attempt 2 of 3 max attempts should not retry")
	}
	if !p.ShouldRetry(err, 0) {
		t.Fatal("attempt 0 of 3 max attempts should retry on 500")
	}
}

func TestShouldRetryStatusCodes(t *testing.T) {
	p := Default()
	cases := []struct {
		code int
		want bool
	}{
		{429, true},
		{500, true},
		{503, true},
		{599, true},
		{404, false},
		{400, false},
		{600, false},
	}
	for _, c := range cases {
		err := errs.NewApiStatus(c.code, "", nil)
		if got := p.ShouldRetry(err, 0); got != c.want {
			t.Fatalf("ShouldRetry(status %d) = %v, want %v", c.code, got, c.want)
		}
	}
}

func TestShouldRetryNeverForLoginRequiredOrInvalidResponse(t *testing.T) {
	p := Default()
	if p.ShouldRetry(errs.NewApiLoginRequired("login"), 0) {
		t.Fatal("LoginRequired should never retry")
	}
	if p.ShouldRetry(errs.NewApiInvalidResponse("bad shape"), 0) {
		t.Fatal("InvalidResponse should never retry")
	}
}

func TestRetryDelayForExponentialBackoff(t *testing.T) {
	p := Default()
	err := errs.NewApiStatus(500, "", nil)

	if got := p.RetryDelayFor(0, err); got != 250*time.Millisecond {
		t.Fatalf("attempt 0 delay = %v, want 250ms", got)
	}
	if got := p.RetryDelayFor(1, err); got != 500*time.Millisecond {
		t.Fatalf("attempt 1 delay = %v, want 500ms", got)
	}
	if got := p.RetryDelayFor(2, err); got != time.Second {
		t.Fatalf("attempt 2 delay = %v, want 1s", got)
	}
}

func TestRetryDelayForCapsAtMaxBackoff(t *testing.T) {
	p := Default()
	err := errs.NewApiStatus(500, "", nil)
	if got := p.RetryDelayFor(10, err); got != 8*time.Second {
		t.Fatalf("attempt 10 delay = %v, want capped at 8s", got)
	}
}

func TestRetryDelayForHonorsRetryAfter(t *testing.T) {
	p := Default()
	secs := uint64(42)
	err := errs.NewApiStatus(429, "", &secs)
	if got := p.RetryDelayFor(0, err); got != 42*time.Second {
		t.Fatalf("delay = %v, want 42s", got)
	}
}

func TestRetryDelayForClampsRetryAfter(t *testing.T) {
	p := Default()
	tooLow := uint64(0)
	tooHigh := uint64(10000)

	if got := p.RetryDelayFor(0, errs.NewApiStatus(429, "", &tooLow)); got != time.Second {
		t.Fatalf("clamped-low delay = %v, want 1s", got)
	}
	if got := p.RetryDelayFor(0, errs.NewApiStatus(429, "", &tooHigh)); got != 300*time.Second {
		t.Fatalf("clamped-high delay = %v, want 300s", got)
	}
}

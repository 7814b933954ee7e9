package duration

import (
	"testing"
	"time"
)

func TestParseBareSeconds(t *testing.T) {
	got, err := Parse("45")
	if err != nil {
		t.Fatalf("Parse(45): %v", err)
	}
	if got != 45*time.Second {
		t.Fatalf("Parse(45) = %v, want 45s", got)
	}
}

func TestParseUnits(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
	}{
		{"250ms", 250 * time.Millisecond},
		{"30s", 30 * time.Second},
		{"5m", 5 * time.Minute},
		{"2h", 2 * time.Hour},
		{"1d", 24 * time.Hour},
	}
	for _, c := range cases {
		got, err := Parse(c.in)
		if err != nil {
			t.Fatalf("Parse(%q): %v", c.in, err)
		}
		if got != c.want {
			t.Fatalf("Parse(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestParseRejectsEmpty(t *testing.T) {
	if _, err := Parse(""); err == nil {
		t.Fatal("Parse(\"\") should fail")
	}
}

func TestParseRejectsNonNumericPrefix(t *testing.T) {
	if _, err := Parse("xs"); err == nil {
		t.Fatal("Parse(\"xs\") should fail")
	}
}

func TestParseRejectsUnrecognizedUnit(t *testing.T) {
	if _, err := Parse("10w"); err == nil {
		t.Fatal("Parse(\"10w\") should fail")
	}
}

func TestParseMsVsS(t *testing.T) {
	// "ms" must not be parsed as unit "s" with numeric prefix "10m".
	got, err := Parse("10ms")
	if err != nil {
		t.Fatalf("Parse(10ms): %v", err)
	}
	if got != 10*time.Millisecond {
		t.Fatalf("Parse(10ms) = %v, want 10ms", got)
	}
}

func TestRoundTripSeconds(t *testing.T) {
	d, err := Parse("30s")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if Format(d) != "30s" {
		t.Fatalf("Format(30s) = %q, want 30s", Format(d))
	}
}

func TestRoundTripMinutesToSeconds(t *testing.T) {
	// parse("<n>m") = 60n s, per the stated law.
	d, err := Parse("2m")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if d != 120*time.Second {
		t.Fatalf("2m = %v, want 120s", d)
	}
}

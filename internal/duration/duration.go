// Package duration parses the uniform timeout-duration syntax accepted
// by the /timeout and /approve slash commands: a bare integer (seconds)
// or an integer with a unit suffix (ms, s, m, h, d).
package duration

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Parse parses s into a time.Duration. A bare numeric string is taken
// as whole seconds; otherwise s must be an integer followed by one of
// ms, s, m, h, d.
func Parse(s string) (time.Duration, error) {
	if s == "" {
		return 0, fmt.Errorf("duration: empty string")
	}

	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n < 0 {
			return 0, fmt.Errorf("duration: negative value %q", s)
		}
		return time.Duration(n) * time.Second, nil
	}

	unit, numPart := splitUnit(s)
	if numPart == "" {
		return 0, fmt.Errorf("duration: no numeric prefix in %q", s)
	}
	n, err := strconv.ParseInt(numPart, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("duration: non-numeric prefix in %q", s)
	}
	if n < 0 {
		return 0, fmt.Errorf("duration: negative value %q", s)
	}

	switch unit {
	case "ms":
		return time.Duration(n) * time.Millisecond, nil
	case "s":
		return time.Duration(n) * time.Second, nil
	case "m":
		return time.Duration(n) * time.Minute, nil
	case "h":
		return time.Duration(n) * time.Hour, nil
	case "d":
		return time.Duration(n) * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("duration: unrecognized unit %q in %q", unit, s)
	}
}

// splitUnit separates the longest known unit suffix from its numeric
// prefix. It tries two-character units ("ms") before one-character
// units so "ms" is never misread as unit "s" with prefix ending in "m".
func splitUnit(s string) (unit, numPart string) {
	if strings.HasSuffix(s, "ms") {
		return "ms", strings.TrimSuffix(s, "ms")
	}
	if len(s) < 2 {
		return "", ""
	}
	last := s[len(s)-1:]
	switch last {
	case "s", "m", "h", "d":
		return last, s[:len(s)-1]
	default:
		return "", ""
	}
}

// Format renders d back into the shortest unit-suffixed form a human
// would write, used when echoing a timeout back to the operator. It
// does not attempt to exactly invert every possible input string; it
// picks the coarsest unit that divides d evenly, falling back to
// milliseconds.
func Format(d time.Duration) string {
	switch {
	case d%(24*time.Hour) == 0 && d >= 24*time.Hour:
		return fmt.Sprintf("%dd", d/(24*time.Hour))
	case d%time.Hour == 0 && d >= time.Hour:
		return fmt.Sprintf("%dh", d/time.Hour)
	case d%time.Minute == 0 && d >= time.Minute:
		return fmt.Sprintf("%dm", d/time.Minute)
	case d%time.Second == 0:
		return fmt.Sprintf("%ds", d/time.Second)
	default:
		return fmt.Sprintf("%dms", d/time.Millisecond)
	}
}

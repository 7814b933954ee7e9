// Package diag renders operator-facing diagnostics to stderr: warnings,
// errors, and the section/field layout used by `doctor` and startup
// deprecation notices. There is no structured logging library in play
// here, matching both the original Rust source and the teacher repo's
// own habit of writing straight to stderr for this kind of message.
package diag

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/0xfe/buddy-sub001/internal/approval"
)

// Sink renders diagnostics to an underlying writer (stderr in
// production, a buffer in tests), deduplicating startup deprecation
// notices and suppressing the approval broker's transient
// granted/denied chatter per spec.md §7.
type Sink struct {
	w io.Writer

	mu          sync.Mutex
	warnedOnce  map[string]bool
}

// NewSink builds a Sink writing to w.
func NewSink(w io.Writer) *Sink {
	return &Sink{w: w, warnedOnce: make(map[string]bool)}
}

// Stderr is the default process-wide Sink, writing to os.Stderr.
func Stderr() *Sink {
	return NewSink(os.Stderr)
}

// Warn prints a one-line warning, optionally scoped to a task id. The
// two approval-lifecycle notices ("approval granted"/"approval denied")
// are suppressed entirely; they are not warnings per spec.md §7.
func (s *Sink) Warn(taskID *uint64, message string) {
	if approval.IsTransientApprovalWarning(message) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if taskID != nil {
		fmt.Fprintf(s.w, "warning: [task #%d] %s\n", *taskID, message)
		return
	}
	fmt.Fprintf(s.w, "warning: %s\n", message)
}

// Error prints a one-line error, optionally scoped to a task id.
func (s *Sink) Error(taskID *uint64, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if taskID != nil {
		fmt.Fprintf(s.w, "error: [task #%d] %s\n", *taskID, message)
		return
	}
	fmt.Fprintf(s.w, "error: %s\n", message)
}

// WarnOnce prints a warning exactly once per distinct key for the
// lifetime of the Sink, used for startup configuration deprecation
// notices (spec.md §7: "deduplicated").
func (s *Sink) WarnOnce(key, message string) {
	s.mu.Lock()
	already := s.warnedOnce[key]
	if !already {
		s.warnedOnce[key] = true
	}
	s.mu.Unlock()
	if already {
		return
	}
	fmt.Fprintf(s.w, "warning: %s\n", message)
}

// Section prints a "== title ==" section header line, used by `doctor` output
// to separate backend probe groups.
func (s *Sink) Section(title string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.w, "== %s ==\n", title)
}

// Field prints an indented "name: value" diagnostic line under the most
// recent Section.
func (s *Sink) Field(name, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.w, "  %-20s %s\n", name+":", value)
}

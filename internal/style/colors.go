package style

import "github.com/charmbracelet/lipgloss"

// Shared text styles used across session/task table rendering and the
// handful of status lines `doctor`/`session`/`task` print directly.
var (
	Bold = lipgloss.NewStyle().Bold(true)
	Dim  = lipgloss.NewStyle().Faint(true)

	Green  = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	Yellow = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	Red    = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

// TaskStateStyle returns the style a task-list row's state column
// should render with: green for a task that finished cleanly, yellow
// while waiting on an operator decision, red while unwinding.
func TaskStateStyle(state string) lipgloss.Style {
	switch state {
	case "waiting_approval":
		return Yellow
	case "cancelling", "failed":
		return Red
	case "completed":
		return Green
	default:
		return Dim
	}
}

// RiskStyle colors a shell command's risk annotation in the approval
// prompt and task tables.
func RiskStyle(risk string) lipgloss.Style {
	switch risk {
	case "high":
		return Red
	case "medium":
		return Yellow
	default:
		return Dim
	}
}

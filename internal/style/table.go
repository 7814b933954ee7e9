// Package style renders the table this core's CLI prints directly:
// `session list`. Cell values can run long and carry multi-byte runes,
// so truncation goes through a rune-width-aware helper instead of a
// byte slice.
package style

import (
	"regexp"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/width"
)

// Column defines a table column with name and width.
type Column struct {
	Name  string
	Width int
	Align Alignment
	Style lipgloss.Style
}

// Alignment specifies column text alignment.
type Alignment int

const (
	AlignLeft Alignment = iota
	AlignRight
)

// Table provides styled table rendering.
type Table struct {
	columns    []Column
	rows       [][]string
	headerSep  bool
	indent     string
	headerStyle lipgloss.Style
}

// NewTable creates a new table with the given columns.
func NewTable(columns ...Column) *Table {
	return &Table{
		columns:    columns,
		headerSep:  true,
		indent:     "  ",
		headerStyle: Bold,
	}
}

// SetIndent sets the left indent for the table.
func (t *Table) SetIndent(indent string) *Table {
	t.indent = indent
	return t
}

// AddRow adds a row of values to the table.
func (t *Table) AddRow(values ...string) *Table {
	// Pad with empty strings if needed
	for len(values) < len(t.columns) {
		values = append(values, "")
	}
	t.rows = append(t.rows, values)
	return t
}

// Render returns the formatted table string.
func (t *Table) Render() string {
	if len(t.columns) == 0 {
		return ""
	}

	var sb strings.Builder

	// Render header
	sb.WriteString(t.indent)
	for i, col := range t.columns {
		text := t.headerStyle.Render(col.Name)
		sb.WriteString(t.pad(text, col.Name, col.Width, col.Align))
		if i < len(t.columns)-1 {
			sb.WriteString(" ")
		}
	}
	sb.WriteString("\n")

	// Render separator
	if t.headerSep {
		sb.WriteString(t.indent)
		totalWidth := 0
		for i, col := range t.columns {
			totalWidth += col.Width
			if i < len(t.columns)-1 {
				totalWidth++ // space between columns
			}
		}
		sb.WriteString(Dim.Render(strings.Repeat("â”€", totalWidth)))
		sb.WriteString("\n")
	}

	// Render rows
	for _, row := range t.rows {
		sb.WriteString(t.indent)
		for i, col := range t.columns {
			val := ""
			if i < len(row) {
				val = row[i]
			}
			// Truncate if too long
			plainVal := stripAnsi(val)
			if runeWidth(plainVal) > col.Width {
				val = truncateToWidth(plainVal, col.Width)
			}
			// Apply column style if set
			if col.Style.Value() != "" {
				val = col.Style.Render(val)
			}
			sb.WriteString(t.pad(val, plainVal, col.Width, col.Align))
			if i < len(t.columns)-1 {
				sb.WriteString(" ")
			}
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// pad pads text to width, accounting for ANSI escape sequences.
// styledText is the text with ANSI codes, plainText is without.
func (t *Table) pad(styledText, plainText string, width int, align Alignment) string {
	plainLen := runeWidth(plainText)
	if plainLen >= width {
		return styledText
	}

	padding := width - plainLen

	switch align {
	case AlignRight:
		return strings.Repeat(" ", padding) + styledText
	default: // AlignLeft
		return styledText + strings.Repeat(" ", padding)
	}
}

// ansiRegex matches CSI escape sequences: ESC [ <params> <final byte>
var ansiRegex = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// stripAnsi removes ANSI escape sequences from a string.
func stripAnsi(s string) string {
	return ansiRegex.ReplaceAllString(s, "")
}

// runeWidth sums each rune's display width (2 for East Asian wide/
// fullwidth runes, 1 otherwise), so column padding lines up even when
// a cell holds multi-byte content (a fetched page title, a non-ASCII
// shell argument).
func runeWidth(s string) int {
	total := 0
	for _, r := range s {
		switch width.LookupRune(r).Kind() {
		case width.EastAsianWide, width.EastAsianFullwidth:
			total += 2
		default:
			total++
		}
	}
	return total
}

// truncateToWidth shortens s to fit within maxWidth display columns,
// appending "..." without splitting a multi-byte rune in half.
func truncateToWidth(s string, maxWidth int) string {
	if maxWidth <= 3 {
		return strings.Repeat(".", maxWidth)
	}
	budget := maxWidth - 3
	used := 0
	var out []rune
	for _, r := range s {
		w := 1
		if k := width.LookupRune(r).Kind(); k == width.EastAsianWide || k == width.EastAsianFullwidth {
			w = 2
		}
		if used+w > budget {
			break
		}
		out = append(out, r)
		used += w
	}
	return string(out) + "..."
}


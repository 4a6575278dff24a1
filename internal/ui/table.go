// Package ui renders CLI output.
package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"taskhive/internal/model"
)

const cellMaxWidth = 48
const cellEllipsis = "..."

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("33"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	doneStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	alertStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

// TableBuilder collects rows and renders an aligned table.
type TableBuilder struct {
	headers []string
	rows    [][]string
}

func NewTableBuilder(headers []string, capacity int) *TableBuilder {
	return &TableBuilder{headers: headers, rows: make([][]string, 0, capacity)}
}

func (b *TableBuilder) AddRow(row ...string) {
	b.rows = append(b.rows, row)
}

func (b *TableBuilder) String() string {
	return FormatTable(b.headers, b.rows)
}

// FormatTable renders headers and rows with two spaces between columns.
// Widths ignore ANSI styling.
func FormatTable(headers []string, rows [][]string) string {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	cells := make([][]string, 0, len(rows))
	for _, row := range rows {
		normalized := make([]string, len(row))
		for i, cell := range row {
			normalized[i] = Truncate(cell)
			if i < len(widths) {
				if w := lipgloss.Width(normalized[i]); w > widths[i] {
					widths[i] = w
				}
			}
		}
		cells = append(cells, normalized)
	}

	var sb strings.Builder
	writeRow := func(row []string, style *lipgloss.Style) {
		for i, cell := range row {
			pad := 0
			if i < len(widths) {
				pad = widths[i] - lipgloss.Width(cell)
			}
			if style != nil {
				cell = style.Render(cell)
			}
			sb.WriteString(cell)
			if i == len(row)-1 {
				sb.WriteByte('\n')
				continue
			}
			sb.WriteString(strings.Repeat(" ", pad+2))
		}
	}

	writeRow(headers, &headerStyle)
	for _, row := range cells {
		writeRow(row, nil)
	}
	return sb.String()
}

// Truncate flattens a cell onto one line and caps its visible width.
func Truncate(value string) string {
	value = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ", "\t", " ").Replace(value)
	if lipgloss.Width(value) <= cellMaxWidth {
		return value
	}
	runes := []rune(value)
	max := cellMaxWidth - len(cellEllipsis)
	if max > len(runes) {
		max = len(runes)
	}
	return string(runes[:max]) + cellEllipsis
}

// Status colours a task status.
func Status(s model.TaskStatus) string {
	switch s {
	case model.StatusCompleted:
		return doneStyle.Render(string(s))
	case model.StatusInProgress:
		return warnStyle.Render(string(s))
	default:
		return string(s)
	}
}

func Priority(p model.Priority) string {
	if p == model.PriorityHigh {
		return alertStyle.Render(string(p))
	}
	return string(p)
}

func Muted(s string) string { return mutedStyle.Render(s) }

func Header(s string) string { return headerStyle.Render(s) }

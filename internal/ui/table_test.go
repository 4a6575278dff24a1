package ui

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
)

func TestFormatTableAlignsColumns(t *testing.T) {
	out := FormatTable([]string{"ID", "TITLE"}, [][]string{
		{"1", "short"},
		{"12345", "multi\nline"},
	})
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines = %q", lines)
	}
	if !strings.HasPrefix(lines[1], "1      short") {
		t.Fatalf("row 1 = %q", lines[1])
	}
	if !strings.HasPrefix(lines[2], "12345  multi line") {
		t.Fatalf("row 2 = %q", lines[2])
	}
}

func TestTruncate(t *testing.T) {
	long := strings.Repeat("x", 80)
	got := Truncate(long)
	if lipgloss.Width(got) != cellMaxWidth || !strings.HasSuffix(got, cellEllipsis) {
		t.Fatalf("Truncate = %q (%d)", got, lipgloss.Width(got))
	}
	if Truncate("ok") != "ok" {
		t.Fatal("short value changed")
	}
}

func TestTableBuilder(t *testing.T) {
	b := NewTableBuilder([]string{"A", "B"}, 1)
	b.AddRow("x", "y")
	if !strings.Contains(b.String(), "x  y") {
		t.Fatalf("table = %q", b.String())
	}
}

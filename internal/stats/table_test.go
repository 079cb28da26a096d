package stats

import (
	"bytes"
	"testing"
)

func TestFormatTableAlignsColumns(t *testing.T) {
	headers := []string{"Exercise", "Pass rate", "Tries"}
	rows := [][]string{
		{"7", "97.50%", "12"},
		{"SELECT", "8.00%", "3"},
	}
	rightAlign := map[int]bool{1: true, 2: true}

	lines := formatTable(headers, rows, rightAlign)
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if lines[0] != "Exercise Pass rate Tries" {
		t.Fatalf("unexpected header line: %q", lines[0])
	}
	if lines[1] != "7           97.50%    12" {
		t.Fatalf("unexpected row line: %q", lines[1])
	}
	if lines[2] != "SELECT       8.00%     3" {
		t.Fatalf("unexpected row line: %q", lines[2])
	}
}

func TestFormatTableUsesDisplayWidth(t *testing.T) {
	lines := formatTable([]string{"Name", "N"}, [][]string{{"日本", "1"}, {"ab", "2"}}, map[int]bool{1: true})
	if lines[1] != "日本 1" {
		t.Fatalf("wide runes should count double: %q", lines[1])
	}
	if lines[2] != "ab   2" {
		t.Fatalf("unexpected row line: %q", lines[2])
	}
}

func TestProgressBar(t *testing.T) {
	if got := progressBar(50, 10); got != "[#####.....]  50%" {
		t.Fatalf("unexpected bar %q", got)
	}
	if got := progressBar(140, 4); got != "[####] 100%" {
		t.Fatalf("unexpected clamped bar %q", got)
	}
	if got := progressBar(0, 4); got != "[....]   0%" {
		t.Fatalf("unexpected empty bar %q", got)
	}
}

func TestTerminalWidthFallsBack(t *testing.T) {
	var buf bytes.Buffer
	if got := TerminalWidth(&buf); got != terminalWidthBackup {
		t.Fatalf("expected %d, got %d", terminalWidthBackup, got)
	}
}

package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/verte-zerg/sqlquest/internal/model"
)

const (
	maxCellWidth   = 24
	maxResultRows  = 8
	maxPreviewRows = 5
)

func tableStyles() table.Styles {
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(lipgloss.Color("#4A4A4A")).
		Foreground(lipgloss.Color("#C0C0C0")).
		Bold(true).
		Padding(0, 1).
		PaddingLeft(0)
	styles.Cell = styles.Cell.
		Padding(0, 1).
		PaddingLeft(0)
	styles.Selected = styles.Cell.
		Foreground(lipgloss.Color("#F0F0F0")).
		Bold(true)
	return styles
}

// renderResult draws an execution result: a table for rows, a line for
// status messages, red text for failures.
func renderResult(res model.ExecutionResult, width, maxRows int) string {
	switch {
	case !res.Success:
		out := errorStyle.Render(wrapPlain(res.Message, width))
		if res.Hint != "" {
			out += "\n" + mutedStyle.Render(wrapPlain("Hint: "+res.Hint, width))
		}
		return out
	case res.Kind != model.ResultRows:
		return mutedStyle.Render(wrapPlain(res.Message, width))
	}

	columns := make([]table.Column, len(res.Columns))
	for i, name := range res.Columns {
		w := runewidth.StringWidth(name)
		for _, row := range res.Rows {
			if i < len(row) {
				w = max(w, runewidth.StringWidth(row[i]))
			}
		}
		columns[i] = table.Column{Title: name, Width: min(w, maxCellWidth)}
	}
	shown := res.Rows
	if len(shown) > maxRows {
		shown = shown[:maxRows]
	}
	rows := make([]table.Row, len(shown))
	for i, row := range shown {
		cells := make(table.Row, len(columns))
		for j := range columns {
			if j < len(row) {
				cells[j] = truncateLine(row[j], columns[j].Width)
			}
		}
		rows[i] = cells
	}
	styles := tableStyles()
	styles.Selected = lipgloss.NewStyle()
	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithHeight(len(rows)+2),
	)
	t.SetStyles(styles)
	out := t.View()
	switch {
	case len(res.Rows) == 0:
		out += "\n" + mutedStyle.Render("(no rows)")
	case len(res.Rows) > len(shown):
		out += "\n" + mutedStyle.Render(fmt.Sprintf("... %d more rows", len(res.Rows)-len(shown)))
	}
	return out
}

func wrapPlain(text string, width int) string {
	return wrapText(text, width, lipgloss.NewStyle())
}

func padLine(line string, width int) string {
	lineWidth := lipgloss.Width(line)
	if lineWidth < width {
		return line + strings.Repeat(" ", width-lineWidth)
	}
	return line
}

func fitLines(s string, width, height int) string {
	if width <= 0 || height <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	if len(lines) > height {
		lines = lines[:height]
	}
	for len(lines) < height {
		lines = append(lines, strings.Repeat(" ", width))
	}
	return strings.Join(lines, "\n")
}

// truncateLine cuts plain text to a display width.
func truncateLine(s string, width int) string {
	if width <= 0 || runewidth.StringWidth(s) <= width {
		return s
	}
	if width <= 3 {
		return runewidth.Truncate(s, width, "")
	}
	return runewidth.Truncate(s, width, "...")
}

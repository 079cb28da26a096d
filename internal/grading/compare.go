package grading

import (
	"fmt"
	"strings"

	"github.com/verte-zerg/sqlquest/internal/model"
)

// Equal reports whether two results carry the same columns and rows in the
// same order. Column names and values compare exactly.
func Equal(a, b model.ExecutionResult) bool {
	if len(a.Columns) != len(b.Columns) || len(a.Rows) != len(b.Rows) {
		return false
	}
	for i := range a.Columns {
		if a.Columns[i] != b.Columns[i] {
			return false
		}
	}
	for i := range a.Rows {
		if len(a.Rows[i]) != len(b.Rows[i]) {
			return false
		}
		for j := range a.Rows[i] {
			if a.Rows[i][j] != b.Rows[i][j] {
				return false
			}
		}
	}
	return true
}

// Diff summarizes the first difference between got and want. It returns ""
// when the results are equal.
func Diff(got, want model.ExecutionResult) string {
	if len(got.Columns) != len(want.Columns) {
		return fmt.Sprintf("expected %d %s, got %d", len(want.Columns),
			plural(len(want.Columns), "column", "columns"), len(got.Columns))
	}
	for i := range want.Columns {
		if got.Columns[i] != want.Columns[i] {
			return fmt.Sprintf("expected columns (%s), got (%s)",
				strings.Join(want.Columns, ", "), strings.Join(got.Columns, ", "))
		}
	}
	if len(got.Rows) != len(want.Rows) {
		return fmt.Sprintf("expected %d %s, got %d", len(want.Rows),
			plural(len(want.Rows), "row", "rows"), len(got.Rows))
	}
	for i := range want.Rows {
		if !rowEqual(got.Rows[i], want.Rows[i]) {
			if sameRowSet(got.Rows, want.Rows) {
				return "the rows are right but their order is not"
			}
			return fmt.Sprintf("row %d differs: expected (%s), got (%s)", i+1,
				strings.Join(want.Rows[i], ", "), strings.Join(got.Rows[i], ", "))
		}
	}
	return ""
}

func rowEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func sameRowSet(a, b [][]string) bool {
	counts := make(map[string]int, len(a))
	for _, row := range a {
		counts[rowKey(row)]++
	}
	for _, row := range b {
		key := rowKey(row)
		if counts[key] == 0 {
			return false
		}
		counts[key]--
	}
	return true
}

func rowKey(row []string) string {
	return strings.Join(row, "\x1f")
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

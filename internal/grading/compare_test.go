package grading

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/verte-zerg/sqlquest/internal/model"
)

func buildResult(cols int, values []int) model.ExecutionResult {
	res := model.ExecutionResult{Success: true, Kind: model.ResultRows}
	for c := 0; c < cols; c++ {
		res.Columns = append(res.Columns, fmt.Sprintf("c%d", c))
	}
	for i := 0; i+cols <= len(values); i += cols {
		row := make([]string, cols)
		for c := 0; c < cols; c++ {
			row[c] = fmt.Sprint(values[i+c])
		}
		res.Rows = append(res.Rows, row)
	}
	return res
}

func TestProperty_EqualIsReflexive(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("every result equals itself", prop.ForAll(
		func(cols int, values []int) bool {
			res := buildResult(cols, values)
			return Equal(res, res) && Diff(res, res) == ""
		},
		gen.IntRange(1, 5),
		gen.SliceOf(gen.IntRange(-50, 50)),
	))

	properties.TestingRun(t)
}

func TestProperty_EqualIsColumnOrderSensitive(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("swapping two columns breaks equality", prop.ForAll(
		func(cols int, values []int) bool {
			res := buildResult(cols, values)
			swapped := buildResult(cols, values)
			swapped.Columns[0], swapped.Columns[1] = swapped.Columns[1], swapped.Columns[0]
			for _, row := range swapped.Rows {
				row[0], row[1] = row[1], row[0]
			}
			return !Equal(res, swapped) && Diff(swapped, res) != ""
		},
		gen.IntRange(2, 5),
		gen.SliceOf(gen.IntRange(-50, 50)),
	))

	properties.TestingRun(t)
}

func TestProperty_EqualIsRowOrderSensitive(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("reversing distinct rows breaks equality", prop.ForAll(
		func(n int) bool {
			values := make([]int, n)
			for i := range values {
				values[i] = i
			}
			res := buildResult(1, values)
			reversed := buildResult(1, values)
			for i, j := 0, len(reversed.Rows)-1; i < j; i, j = i+1, j-1 {
				reversed.Rows[i], reversed.Rows[j] = reversed.Rows[j], reversed.Rows[i]
			}
			return !Equal(res, reversed) && Diff(reversed, res) == "the rows are right but their order is not"
		},
		gen.IntRange(2, 20),
	))

	properties.TestingRun(t)
}

func TestEqualComparesColumnNamesExactly(t *testing.T) {
	a := model.ExecutionResult{Columns: []string{"name"}, Rows: [][]string{{"Alice"}}}
	b := model.ExecutionResult{Columns: []string{"NAME"}, Rows: [][]string{{"Alice"}}}
	if Equal(a, b) {
		t.Fatalf("expected column names to compare exactly")
	}
	if got := Diff(b, a); got != "expected columns (name), got (NAME)" {
		t.Fatalf("unexpected diff %q", got)
	}
	b.Columns[0] = "name"
	if !Equal(a, b) {
		t.Fatalf("expected identical results to be equal")
	}
	b.Rows[0][0] = "alice"
	if Equal(a, b) {
		t.Fatalf("expected values to compare exactly")
	}
}

func TestEqualTreatsNullSentinelAsValue(t *testing.T) {
	a := model.ExecutionResult{Columns: []string{"email"}, Rows: [][]string{{model.NullSentinel}}}
	b := model.ExecutionResult{Columns: []string{"email"}, Rows: [][]string{{""}}}
	if Equal(a, b) {
		t.Fatalf("NULL and empty string must differ")
	}
}

func TestDiffMessages(t *testing.T) {
	want := model.ExecutionResult{Columns: []string{"a", "b"}, Rows: [][]string{{"1", "2"}}}
	cases := []struct {
		got  model.ExecutionResult
		diff string
	}{
		{
			got:  model.ExecutionResult{Columns: []string{"a"}, Rows: [][]string{{"1"}}},
			diff: "expected 2 columns, got 1",
		},
		{
			got:  model.ExecutionResult{Columns: []string{"a", "c"}, Rows: [][]string{{"1", "2"}}},
			diff: "expected columns (a, b), got (a, c)",
		},
		{
			got:  model.ExecutionResult{Columns: []string{"a", "b"}},
			diff: "expected 1 row, got 0",
		},
		{
			got:  model.ExecutionResult{Columns: []string{"a", "b"}, Rows: [][]string{{"1", "3"}}},
			diff: "row 1 differs: expected (1, 2), got (1, 3)",
		},
	}
	for _, tc := range cases {
		if d := Diff(tc.got, want); d != tc.diff {
			t.Fatalf("expected %q, got %q", tc.diff, d)
		}
	}
}

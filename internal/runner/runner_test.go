package runner

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/verte-zerg/sqlquest/internal/model"
)

const customersSetup = `
CREATE TABLE Customers (id INTEGER PRIMARY KEY, name TEXT, city TEXT);
INSERT INTO Customers (id, name, city) VALUES (1, 'Alice', 'Berlin');
INSERT INTO Customers (id, name, city) VALUES (2, 'Bob', 'Paris');
INSERT INTO Customers (id, name, city) VALUES (3, 'Chloe', NULL);
`

func newRunner(t *testing.T) *Runner {
	t.Helper()
	r, err := New("")
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	t.Cleanup(func() {
		_ = r.Close()
	})
	return r
}

func TestRunWithoutSession(t *testing.T) {
	r := newRunner(t)
	res := r.Run(context.Background(), "SELECT 1")
	if res.Success {
		t.Fatalf("expected failure without a session")
	}
	if res.ErrorClass != model.ErrorNoSession {
		t.Fatalf("expected no_session, got %q", res.ErrorClass)
	}
}

func TestResetAndSelect(t *testing.T) {
	r := newRunner(t)
	ctx := context.Background()
	if res := r.Reset(ctx, customersSetup); !res.Success {
		t.Fatalf("reset failed: %s", res.Message)
	}

	res := r.Run(ctx, "  select name, city from Customers order by id;")
	if !res.Success || res.Kind != model.ResultRows {
		t.Fatalf("expected rows, got %+v", res)
	}
	if !reflect.DeepEqual(res.Columns, []string{"name", "city"}) {
		t.Fatalf("unexpected columns: %v", res.Columns)
	}
	want := [][]string{{"Alice", "Berlin"}, {"Bob", "Paris"}, {"Chloe", model.NullSentinel}}
	if !reflect.DeepEqual(res.Rows, want) {
		t.Fatalf("unexpected rows: %v", res.Rows)
	}
}

func TestValueFormatting(t *testing.T) {
	r := newRunner(t)
	ctx := context.Background()
	if res := r.Reset(ctx, ""); !res.Success {
		t.Fatalf("reset failed: %s", res.Message)
	}
	res := r.Run(ctx, "SELECT 42, 1.5, '', NULL, 2.0")
	if !res.Success {
		t.Fatalf("query failed: %s", res.Message)
	}
	want := []string{"42", "1.5", "", model.NullSentinel, "2"}
	if !reflect.DeepEqual(res.Rows[0], want) {
		t.Fatalf("unexpected values: %q", res.Rows[0])
	}
}

func TestDateColumnsKeepStoredText(t *testing.T) {
	r := newRunner(t)
	ctx := context.Background()
	setup := `
CREATE TABLE Orders (id INTEGER, placed DATE, shipped DATETIME, note TEXT);
INSERT INTO Orders VALUES (1, '2023-01-15', '2023-01-16 10:30:00', '2023-01-15');
`
	if res := r.Reset(ctx, setup); !res.Success {
		t.Fatalf("reset failed: %s", res.Message)
	}
	res := r.Run(ctx, "SELECT placed, shipped, note FROM Orders")
	if !res.Success {
		t.Fatalf("query failed: %s", res.Message)
	}
	want := []string{"2023-01-15", "2023-01-16 10:30:00", "2023-01-15"}
	if !reflect.DeepEqual(res.Rows[0], want) {
		t.Fatalf("unexpected values: %q", res.Rows[0])
	}
}

func TestFormatValueTimes(t *testing.T) {
	cases := map[string]time.Time{
		"2023-01-15":            time.Date(2023, 1, 15, 0, 0, 0, 0, time.UTC),
		"2023-01-15 08:05:09":   time.Date(2023, 1, 15, 8, 5, 9, 0, time.UTC),
		"2023-01-15 00:00:00.5": time.Date(2023, 1, 15, 0, 0, 0, 500_000_000, time.UTC),
	}
	for want, in := range cases {
		if got := FormatValue(in); got != want {
			t.Fatalf("FormatValue(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestEmptyResultKeepsColumns(t *testing.T) {
	r := newRunner(t)
	ctx := context.Background()
	r.Reset(ctx, customersSetup)
	res := r.Run(ctx, "SELECT id FROM Customers WHERE id > 100")
	if !res.Success || len(res.Rows) != 0 {
		t.Fatalf("expected empty row set, got %+v", res)
	}
	if len(res.Columns) != 1 || res.Columns[0] != "id" {
		t.Fatalf("expected id column, got %v", res.Columns)
	}
}

func TestRowReturningKeywords(t *testing.T) {
	r := newRunner(t)
	ctx := context.Background()
	r.Reset(ctx, customersSetup)

	for _, stmt := range []string{
		"WITH c AS (SELECT id FROM Customers) SELECT count(*) FROM c",
		"VALUES (1), (2)",
		"-- comment first\nSELECT 1",
		"/* block */ select 1",
	} {
		res := r.Run(ctx, stmt)
		if !res.Success || res.Kind != model.ResultRows {
			t.Fatalf("expected rows for %q, got %+v", stmt, res)
		}
	}
}

func TestModifyingStatementsPersistInSession(t *testing.T) {
	r := newRunner(t)
	ctx := context.Background()
	r.Reset(ctx, customersSetup)

	res := r.Run(ctx, "INSERT INTO Customers (id, name, city) VALUES (4, 'Dan', 'Rome')")
	if !res.Success || res.Kind != model.ResultStatus {
		t.Fatalf("expected status result, got %+v", res)
	}
	if !strings.HasPrefix(res.Message, "INSERT completed") {
		t.Fatalf("unexpected message: %q", res.Message)
	}

	res = r.Run(ctx, "SELECT count(*) FROM Customers")
	if res.Rows[0][0] != "4" {
		t.Fatalf("expected 4 customers, got %v", res.Rows)
	}

	r.Reset(ctx, customersSetup)
	res = r.Run(ctx, "SELECT count(*) FROM Customers")
	if res.Rows[0][0] != "3" {
		t.Fatalf("expected reset to restore 3 customers, got %v", res.Rows)
	}
}

func TestFailedStatementRollsBack(t *testing.T) {
	r := newRunner(t)
	ctx := context.Background()
	r.Reset(ctx, customersSetup)

	res := r.Run(ctx, "DELETE FROM Customers; SELECT * FROM Missing")
	if res.Success {
		t.Fatalf("expected failure")
	}
	res = r.Run(ctx, "SELECT count(*) FROM Customers")
	if res.Rows[0][0] != "3" {
		t.Fatalf("expected delete to be rolled back, got %v", res.Rows)
	}
}

func TestErrorClassification(t *testing.T) {
	r := newRunner(t)
	ctx := context.Background()
	r.Reset(ctx, customersSetup)

	cases := []struct {
		stmt  string
		class model.ErrorClass
		token string
	}{
		{"SELECT * FORM Customers", model.ErrorSyntax, "FORM"},
		{"SELECT * FROM Custmers", model.ErrorUnknownTable, "Custmers"},
		{"SELECT nme FROM Customers", model.ErrorUnknownColumn, "nme"},
	}
	for _, tc := range cases {
		res := r.Run(ctx, tc.stmt)
		if res.Success {
			t.Fatalf("expected %q to fail", tc.stmt)
		}
		if res.ErrorClass != tc.class {
			t.Fatalf("%q: expected class %q, got %q (%s)", tc.stmt, tc.class, res.ErrorClass, res.Message)
		}
		if !strings.Contains(res.Message, tc.token) {
			t.Fatalf("%q: expected message to name %q, got %q", tc.stmt, tc.token, res.Message)
		}
		if res.Hint == "" {
			t.Fatalf("%q: expected a hint", tc.stmt)
		}
	}
}

func TestUnknownTableHintListsTables(t *testing.T) {
	r := newRunner(t)
	ctx := context.Background()
	r.Reset(ctx, customersSetup)
	res := r.Run(ctx, "SELECT * FROM Orders")
	if !strings.Contains(res.Hint, "Customers") {
		t.Fatalf("expected hint to list Customers, got %q", res.Hint)
	}
}

func TestResetFailureNamesStatement(t *testing.T) {
	r := newRunner(t)
	ctx := context.Background()
	res := r.Reset(ctx, "CREATE TABLE t (a INTEGER); INSERT INTO missing VALUES (1);")
	if res.Success {
		t.Fatalf("expected setup failure")
	}
	if !strings.Contains(res.Message, "statement 2") {
		t.Fatalf("expected message to name statement 2, got %q", res.Message)
	}
	if r.HasSession() {
		t.Fatalf("expected no session after failed setup")
	}
	if res := r.Run(ctx, "SELECT 1"); res.ErrorClass != model.ErrorNoSession {
		t.Fatalf("expected no_session after failed setup, got %q", res.ErrorClass)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	r := newRunner(t)
	r.Reset(context.Background(), customersSetup)
	if err := r.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestUnsupportedDriver(t *testing.T) {
	if _, err := New("oracle"); err == nil {
		t.Fatalf("expected unsupported driver error")
	}
}

func TestProperty_ResetIsIdempotent(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 25
	properties := gopter.NewProperties(parameters)

	r := newRunner(t)
	ctx := context.Background()

	properties.Property("resetting twice yields the same query result", prop.ForAll(
		func(values []int) bool {
			var b strings.Builder
			b.WriteString("CREATE TABLE n (v INTEGER);")
			for _, v := range values {
				fmt.Fprintf(&b, "INSERT INTO n VALUES (%d);", v)
			}
			setup := b.String()

			if res := r.Reset(ctx, setup); !res.Success {
				return false
			}
			// Mutate between resets so a stale dataset would show.
			r.Run(ctx, "DELETE FROM n")
			first := r.Run(ctx, "SELECT v FROM n")

			r.Reset(ctx, setup)
			r.Run(ctx, "DELETE FROM n")
			r.Reset(ctx, setup)
			second := r.Run(ctx, "SELECT v FROM n")

			r.Reset(ctx, setup)
			third := r.Run(ctx, "SELECT v FROM n")
			return len(first.Rows) == 0 && reflect.DeepEqual(second, third) && len(second.Rows) == len(values)
		},
		gen.SliceOf(gen.IntRange(-1000, 1000)),
	))

	properties.TestingRun(t)
}

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/verte-zerg/sqlquest/internal/catalog"
	"github.com/verte-zerg/sqlquest/internal/grading"
	"github.com/verte-zerg/sqlquest/internal/model"
	"github.com/verte-zerg/sqlquest/internal/progress"
	"github.com/verte-zerg/sqlquest/internal/reminder"
)

func TestReadStatement(t *testing.T) {
	if got, err := readStatement("SELECT 1", "", nil); err != nil || got != "SELECT 1" {
		t.Fatalf("unexpected query result %q %v", got, err)
	}
	path := filepath.Join(t.TempDir(), "answer.sql")
	if err := os.WriteFile(path, []byte("SELECT 2;\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got, err := readStatement("", path, nil); err != nil || got != "SELECT 2;\n" {
		t.Fatalf("unexpected file result %q %v", got, err)
	}
	if got, err := readStatement("", "-", strings.NewReader("SELECT 3")); err != nil || got != "SELECT 3" {
		t.Fatalf("unexpected stdin result %q %v", got, err)
	}
	if _, err := readStatement("SELECT 1", path, nil); err == nil {
		t.Fatalf("expected an error for both sources")
	}
	if _, err := readStatement("", "", nil); err == nil {
		t.Fatalf("expected an error without a statement")
	}
}

func TestApplyStringConfigRespectsFlags(t *testing.T) {
	var driver string
	cmd := &cobra.Command{Use: "x", RunE: func(*cobra.Command, []string) error { return nil }}
	cmd.Flags().StringVar(&driver, "driver", "sqlite", "")
	fromFile := "sqlite3"

	applyStringConfig(cmd, "driver", &driver, &fromFile)
	if driver != "sqlite3" {
		t.Fatalf("config should fill an unset flag, got %q", driver)
	}
	if err := cmd.Flags().Set("driver", "sqlite"); err != nil {
		t.Fatalf("set flag: %v", err)
	}
	applyStringConfig(cmd, "driver", &driver, &fromFile)
	if driver != "sqlite" {
		t.Fatalf("explicit flag should win, got %q", driver)
	}
	applyStringConfig(cmd, "driver", &driver, nil)
	if driver != "sqlite" {
		t.Fatalf("nil config value should be ignored")
	}
}

func TestCatalogSourceSelection(t *testing.T) {
	if _, ok := catalogSource(model.Config{}).(catalog.BuiltinSource); !ok {
		t.Fatalf("expected the built-in catalog by default")
	}
	if src, ok := catalogSource(model.Config{CatalogPath: "l.toml"}).(catalog.FileSource); !ok || src.Path != "l.toml" {
		t.Fatalf("expected a file source")
	}
	if src, ok := catalogSource(model.Config{CatalogURL: "https://example.com/l.toml"}).(catalog.HTTPSource); !ok || src.CacheDir == "" {
		t.Fatalf("expected a cached http source")
	}
}

func TestValidateConfig(t *testing.T) {
	if err := validateConfig(model.Config{Driver: "sqlite"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := validateConfig(model.Config{Driver: "duckdb"}); err == nil {
		t.Fatalf("expected unknown driver error")
	}
	if err := validateConfig(model.Config{Driver: "sqlite", CatalogPath: "a", CatalogURL: "b"}); err == nil {
		t.Fatalf("expected mutually exclusive error")
	}
}

func TestLessonLines(t *testing.T) {
	c, err := catalog.Builtin()
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	tracker := progress.NewTracker(nil, model.LocalAccountID)
	lines := lessonLines(c.All(), tracker)
	if len(lines) != len(c.All())+1 {
		t.Fatalf("expected header plus one line per lesson, got %d", len(lines))
	}
	if !strings.Contains(lines[1], "SELECT basics") || !strings.Contains(lines[1], "open") {
		t.Fatalf("unexpected first lesson line %q", lines[1])
	}
	if !strings.Contains(lines[2], "locked (20 XP)") {
		t.Fatalf("unexpected second lesson line %q", lines[2])
	}
}

func TestPrintOutcomeMismatch(t *testing.T) {
	out := grading.Outcome{
		Kind:    grading.OutcomeMismatch,
		Message: "Wrong answer.",
		Diff:    "expected 2 rows, got 1",
		Hint:    "Use WHERE.",
		Result: model.ExecutionResult{Success: true, Kind: model.ResultRows,
			Columns: []string{"name"}, Rows: [][]string{{"Alice"}}},
		Expected: model.ExecutionResult{Success: true, Kind: model.ResultRows,
			Columns: []string{"name"}, Rows: [][]string{{"Alice"}, {"Maria"}}},
	}
	var buf bytes.Buffer
	if err := printOutcome(&buf, out); err != nil {
		t.Fatalf("print: %v", err)
	}
	for _, want := range []string{"Wrong answer.", "expected 2 rows, got 1", "Your result:", "Maria", "Hint: Use WHERE."} {
		if !strings.Contains(buf.String(), want) {
			t.Fatalf("expected %q in output:\n%s", want, buf.String())
		}
	}
}

func TestPrintOutcomeMatch(t *testing.T) {
	var buf bytes.Buffer
	out := grading.Outcome{Kind: grading.OutcomeMatch, Message: "Correct!", NewlyCompleted: true, Reward: 10, Next: grading.Next{ExerciseID: 3}}
	if err := printOutcome(&buf, out); err != nil {
		t.Fatalf("print: %v", err)
	}
	if buf.String() != "Correct! +10 crystals\nNext exercise: 3\n" {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestFormatResult(t *testing.T) {
	if got := formatResult(model.ExecutionResult{Message: "no such table: X"}); got != "Error: no such table: X\n" {
		t.Fatalf("unexpected error output %q", got)
	}
	if got := formatResult(model.ExecutionResult{Success: true, Message: "1 row affected"}); got != "1 row affected\n" {
		t.Fatalf("unexpected status output %q", got)
	}
	empty := formatResult(model.ExecutionResult{Success: true, Kind: model.ResultRows, Columns: []string{"id"}})
	if !strings.HasSuffix(empty, "(no rows)\n") {
		t.Fatalf("unexpected empty output %q", empty)
	}
}

func TestAlertPrinter(t *testing.T) {
	var buf bytes.Buffer
	at := time.Date(2026, 5, 1, 8, 30, 0, 0, time.Local)
	alertPrinter(&buf)(reminder.Alert{ID: reminder.BaseID, At: at, Title: "SQL Quest", Body: "Time to practice!"})
	if buf.String() != "[08:30] SQL Quest Time to practice!\n" {
		t.Fatalf("unexpected alert line %q", buf.String())
	}
}

func TestRunRemindersStopsWithContext(t *testing.T) {
	never := func(time.Duration) (<-chan time.Time, func() bool) {
		return make(chan time.Time), func() bool { return true }
	}
	sched := reminder.NewScheduler(func(reminder.Alert) {}, reminder.WithTimer(never))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf bytes.Buffer
	clocks := []reminder.Clock{{Hour: 8, Minute: 30}, {Hour: 19, Minute: 0}}
	if err := runReminders(ctx, &buf, sched, clocks); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(buf.String(), "Reminders at 08:30, 19:00.") {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

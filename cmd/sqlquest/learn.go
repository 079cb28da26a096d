package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/verte-zerg/sqlquest/internal/grading"
	"github.com/verte-zerg/sqlquest/internal/model"
	"github.com/verte-zerg/sqlquest/internal/progress"
	"github.com/verte-zerg/sqlquest/internal/stats"
)

var (
	checkExercise int
	checkQuery    string
	checkFile     string

	ackExercise int

	statsSince       string
	statsLast        int
	statsCurveWindow int
)

// errNotPassed makes the process exit with status 1 after the outcome was printed.
var errNotPassed = errors.New("submission did not pass")

func newLessonsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lessons",
		Short: "List lessons with progress",
		Args:  cobra.NoArgs,
		RunE:  runLessonsCmd,
	}
}

func runLessonsCmd(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	a.flushMessages()

	lines := lessonLines(a.catalog.All(), a.tracker)
	for _, line := range lines {
		if _, err := fmt.Fprintln(cmd.OutOrStdout(), line); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}

func lessonLines(lessons []model.Lesson, tracker *progress.Tracker) []string {
	headers := []string{"#", "Title", "Exercises", "Done", "Status"}
	rows := make([][]string, 0, len(lessons))
	for i, l := range lessons {
		done, total, percent := tracker.LessonProgress(l)
		ids := make([]string, len(l.Exercises))
		for j, ex := range l.Exercises {
			ids[j] = strconv.Itoa(ex.ID)
		}
		status := "open"
		switch {
		case tracker.IsLessonComplete(l):
			status = "complete"
		case !tracker.IsLessonUnlocked(l):
			status = fmt.Sprintf("locked (%d XP)", l.RequiredReward)
		}
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			l.Title,
			strings.Join(ids, ","),
			fmt.Sprintf("%d/%d %3d%%", done, total, percent),
			status,
		})
	}
	return stats.FormatTable(headers, rows, map[int]bool{0: true, 3: true})
}

func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Grade a statement against an exercise",
		Args:  cobra.NoArgs,
		RunE:  runCheckCmd,
	}
	cmd.Flags().IntVar(&checkExercise, "exercise", 0, "exercise id")
	cmd.Flags().StringVar(&checkQuery, "query", "", "SQL statement to grade")
	cmd.Flags().StringVar(&checkFile, "file", "", "read the statement from a file (- for stdin)")
	return cmd
}

func runCheckCmd(cmd *cobra.Command, _ []string) error {
	stmt, err := readStatement(checkQuery, checkFile, cmd.InOrStdin())
	if err != nil {
		return err
	}
	if checkExercise <= 0 {
		return fmt.Errorf("--exercise must be > 0")
	}
	a, err := openApp(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	a.flushMessages()

	sel, err := a.engine.Select(cmd.Context(), checkExercise)
	if err != nil {
		return err
	}
	if sel.Exercise.Kind == model.KindTheory {
		return fmt.Errorf("exercise %d is a theory step, use: sqlquest ack --exercise %d", checkExercise, checkExercise)
	}
	out := a.engine.Submit(cmd.Context(), stmt)
	if err := printOutcome(cmd.OutOrStdout(), out); err != nil {
		return err
	}
	if out.Kind != grading.OutcomeMatch {
		return errNotPassed
	}
	return nil
}

// readStatement takes the statement from exactly one of query or file.
func readStatement(query, file string, stdin io.Reader) (string, error) {
	switch {
	case query != "" && file != "":
		return "", fmt.Errorf("--query and --file are mutually exclusive")
	case query != "":
		return query, nil
	case file == "-":
		raw, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(raw), nil
	case file != "":
		raw, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("failed to read statement: %w", err)
		}
		return string(raw), nil
	default:
		return "", fmt.Errorf("--query or --file is required")
	}
}

func newAckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ack",
		Short: "Acknowledge a theory step",
		Args:  cobra.NoArgs,
		RunE:  runAckCmd,
	}
	cmd.Flags().IntVar(&ackExercise, "exercise", 0, "exercise id")
	return cmd
}

func runAckCmd(cmd *cobra.Command, _ []string) error {
	if ackExercise <= 0 {
		return fmt.Errorf("--exercise must be > 0")
	}
	a, err := openApp(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	a.flushMessages()

	if _, err := a.engine.Select(cmd.Context(), ackExercise); err != nil {
		return err
	}
	out := a.engine.Acknowledge(cmd.Context())
	if err := printOutcome(cmd.OutOrStdout(), out); err != nil {
		return err
	}
	if out.Kind != grading.OutcomeMatch {
		return errNotPassed
	}
	return nil
}

func printOutcome(w io.Writer, out grading.Outcome) error {
	var b strings.Builder
	b.WriteString(out.Message)
	if out.NewlyCompleted && out.Reward > 0 {
		fmt.Fprintf(&b, " +%d crystals", out.Reward)
	}
	b.WriteString("\n")
	switch out.Kind {
	case grading.OutcomeMatch:
		switch {
		case out.Next.LessonComplete:
			b.WriteString("Lesson complete.\n")
		case !out.Next.Done():
			fmt.Fprintf(&b, "Next exercise: %d\n", out.Next.ExerciseID)
		}
	case grading.OutcomeMismatch:
		if out.Diff != "" {
			b.WriteString(out.Diff + "\n")
		}
		b.WriteString("Your result:\n")
		b.WriteString(formatResult(out.Result))
		b.WriteString("Expected:\n")
		b.WriteString(formatResult(out.Expected))
		if out.Hint != "" {
			b.WriteString("Hint: " + out.Hint + "\n")
		}
	case grading.OutcomeLearnerError:
		if out.Hint != "" {
			b.WriteString("Hint: " + out.Hint + "\n")
		}
	}
	if out.Err != nil {
		fmt.Fprintf(&b, "warning: %v\n", out.Err)
	}
	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func formatResult(res model.ExecutionResult) string {
	switch {
	case !res.Success:
		return "Error: " + res.Message + "\n"
	case res.Kind != model.ResultRows:
		return res.Message + "\n"
	case len(res.Rows) == 0:
		return strings.Join(stats.FormatTable(res.Columns, nil, nil), "\n") + "\n(no rows)\n"
	}
	return strings.Join(stats.FormatTable(res.Columns, res.Rows, nil), "\n") + "\n"
}

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show progress and attempt history",
		Args:  cobra.NoArgs,
		RunE:  runStatsCmd,
	}
	cmd.Flags().StringVar(&statsSince, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&statsLast, "last", 0, "limit to last N attempts")
	cmd.Flags().IntVar(&statsCurveWindow, "curve-window", defaultCurveWindow, "moving average window")
	return cmd
}

func runStatsCmd(cmd *cobra.Command, _ []string) error {
	var sinceTime *time.Time
	if statsSince != "" {
		parsed, err := time.ParseInLocation("2006-01-02", statsSince, time.Local)
		if err != nil {
			return fmt.Errorf("invalid --since value: %w", err)
		}
		sinceTime = &parsed
	}
	if statsLast < 0 {
		return fmt.Errorf("--last must be >= 0")
	}
	if statsCurveWindow <= 0 {
		return fmt.Errorf("--curve-window must be > 0")
	}

	a, err := openApp(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	a.flushMessages()

	cfg := model.StatsConfig{
		Since:       sinceTime,
		Last:        statsLast,
		CurveWindow: statsCurveWindow,
	}
	report, err := stats.BuildReport(cmd.Context(), a.store, a.tracker, a.catalog.All(), cfg)
	if err != nil {
		return fmt.Errorf("failed to build stats: %w", err)
	}
	out := cmd.OutOrStdout()
	return stats.Render(out, report, cfg.CurveWindow, stats.TerminalWidth(out))
}

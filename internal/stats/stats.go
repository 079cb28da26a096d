// Package stats contains statistics calculations and reporting.
package stats

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/verte-zerg/sqlquest/internal/model"
)

const sparkChars = " .:-=+*#%@"

// PassRate returns the share of passed attempts.
func PassRate(attempts []model.Attempt) float64 {
	if len(attempts) == 0 {
		return 0
	}
	passed := 0
	for _, a := range attempts {
		if a.Passed {
			passed++
		}
	}
	return float64(passed) / float64(len(attempts))
}

// PassSeries maps attempts to 100 for passed and 0 for failed.
func PassSeries(attempts []model.Attempt) []float64 {
	out := make([]float64, len(attempts))
	for i, a := range attempts {
		if a.Passed {
			out[i] = 100
		}
	}
	return out
}

// MovingAverage computes a rolling mean over the provided window size.
func MovingAverage(values []float64, window int) []float64 {
	if window <= 1 || len(values) == 0 {
		out := make([]float64, len(values))
		copy(out, values)
		return out
	}
	out := make([]float64, len(values))
	var sum float64
	for i := 0; i < len(values); i++ {
		sum += values[i]
		if i >= window {
			sum -= values[i-window]
		}
		den := float64(i + 1)
		if i >= window {
			den = float64(window)
		}
		out[i] = sum / den
	}
	return out
}

// Sparkline renders a single-line ASCII sparkline for the values.
func Sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	minVal := values[0]
	maxVal := values[0]
	for _, v := range values[1:] {
		if v < minVal {
			minVal = v
		}
		if v > maxVal {
			maxVal = v
		}
	}
	if math.Abs(maxVal-minVal) < 1e-9 {
		return strings.Repeat(string(sparkChars[len(sparkChars)/2]), len(values))
	}
	var b strings.Builder
	for _, v := range values {
		pos := (v - minVal) / (maxVal - minVal)
		idx := int(math.Round(pos * float64(len(sparkChars)-1)))
		if idx < 0 {
			idx = 0
		}
		if idx >= len(sparkChars) {
			idx = len(sparkChars) - 1
		}
		b.WriteByte(sparkChars[idx])
	}
	return b.String()
}

// RenderSummary prints balances and attempt totals.
func RenderSummary(w io.Writer, r Report) error {
	complete := 0
	for _, l := range r.Lessons {
		if l.Complete {
			complete++
		}
	}
	lines := []string{
		"Summary",
		fmt.Sprintf("Crystals: %d", r.State.Crystals),
		fmt.Sprintf("Experience: %d", r.State.Experience),
		fmt.Sprintf("Streak: %d %s", r.State.Streak, plural(r.State.Streak, "day", "days")),
		fmt.Sprintf("Lessons complete: %d/%d", complete, len(r.Lessons)),
	}
	if len(r.Attempts) == 0 {
		lines = append(lines, "Attempts: 0")
	} else {
		lines = append(lines, fmt.Sprintf("Attempts: %d (%.1f%% passed)", len(r.Attempts), PassRate(r.Attempts)*100))
	}
	for _, line := range append(lines, "") {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// RenderLessons prints one row per lesson with a progress bar.
func RenderLessons(w io.Writer, r Report, barWidth int) error {
	if len(r.Lessons) == 0 {
		_, err := fmt.Fprintln(w, "No lessons found.")
		return err
	}
	if _, err := fmt.Fprintln(w, "Lessons"); err != nil {
		return err
	}
	headers := []string{"#", "Title", "Progress", "Done", "Status"}
	rows := make([][]string, 0, len(r.Lessons))
	for _, l := range r.Lessons {
		rows = append(rows, []string{
			l.Lesson.ID,
			l.Lesson.Title,
			progressBar(l.Percent, barWidth),
			fmt.Sprintf("%d/%d", l.Done, l.Total),
			lessonStatus(l),
		})
	}
	for _, line := range formatTable(headers, rows, map[int]bool{3: true}) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

// RenderCurve prints the pass-rate learning curve as a sparkline at most
// width characters wide.
func RenderCurve(w io.Writer, r Report, window, width int) error {
	if len(r.Attempts) == 0 {
		_, err := fmt.Fprintln(w, "No attempts yet.")
		return err
	}
	curve := MovingAverage(PassSeries(r.Attempts), window)
	if width > 0 && len(curve) > width {
		curve = curve[len(curve)-width:]
	}
	lines := []string{
		fmt.Sprintf("Pass rate (moving average over %d %s)", max(window, 1), plural(max(window, 1), "attempt", "attempts")),
		"|" + Sparkline(curve) + "|",
		fmt.Sprintf("first %.0f%%, last %.0f%%", curve[0], curve[len(curve)-1]),
		"",
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// RenderWeak prints the exercises with the lowest pass rate.
func RenderWeak(w io.Writer, r Report) error {
	if len(r.Weak) == 0 {
		return nil
	}
	if _, err := fmt.Fprintln(w, "Hardest exercises"); err != nil {
		return err
	}
	headers := []string{"Exercise", "Attempts", "Passed", "Pass rate"}
	rows := make([][]string, 0, len(r.Weak))
	for _, agg := range r.Weak {
		rows = append(rows, []string{
			fmt.Sprintf("%d", agg.ExerciseID),
			fmt.Sprintf("%d", agg.Attempts),
			fmt.Sprintf("%d", agg.Passed),
			fmt.Sprintf("%.1f%%", agg.PassRate()*100),
		})
	}
	for _, line := range formatTable(headers, rows, map[int]bool{0: true, 1: true, 2: true, 3: true}) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

// Render prints the full report sized to width columns.
func Render(w io.Writer, r Report, window, width int) error {
	if err := RenderSummary(w, r); err != nil {
		return err
	}
	if err := RenderLessons(w, r, barWidthFor(width)); err != nil {
		return err
	}
	if err := RenderCurve(w, r, window, width-2); err != nil {
		return err
	}
	return RenderWeak(w, r)
}

func lessonStatus(l LessonRow) string {
	switch {
	case l.Complete:
		return "complete"
	case !l.Unlocked:
		return fmt.Sprintf("locked (%d XP)", l.Lesson.RequiredReward)
	default:
		return "open"
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

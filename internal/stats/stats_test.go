package stats

import (
	"testing"

	"github.com/verte-zerg/sqlquest/internal/model"
)

func TestMovingAverage(t *testing.T) {
	got := MovingAverage([]float64{0, 100, 100, 0}, 2)
	want := []float64{0, 50, 100, 50}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("index %d: expected %v, got %v", i, want[i], got[i])
		}
	}
	if out := MovingAverage([]float64{1, 2}, 0); out[0] != 1 || out[1] != 2 {
		t.Fatalf("window <= 1 should copy: %v", out)
	}
}

func TestSparkline(t *testing.T) {
	if got := Sparkline(nil); got != "" {
		t.Fatalf("expected empty sparkline, got %q", got)
	}
	if got := Sparkline([]float64{0, 100}); got != " @" {
		t.Fatalf("unexpected sparkline %q", got)
	}
	if got := Sparkline([]float64{3, 3, 3}); got != "+++" && got != "===" {
		t.Fatalf("flat series should use the middle glyph, got %q", got)
	}
}

func TestPassRateAndSeries(t *testing.T) {
	attempts := []model.Attempt{{Passed: true}, {Passed: false}, {Passed: true}, {Passed: true}}
	if got := PassRate(attempts); got != 0.75 {
		t.Fatalf("expected 0.75, got %v", got)
	}
	if PassRate(nil) != 0 {
		t.Fatalf("expected 0 for no attempts")
	}
	series := PassSeries(attempts)
	if series[0] != 100 || series[1] != 0 {
		t.Fatalf("unexpected series %v", series)
	}
}

func TestSelectWeakExercises(t *testing.T) {
	aggs := AggregateAttempts([]model.Attempt{
		{ExerciseID: 4, Passed: true},
		{ExerciseID: 2, Passed: false},
		{ExerciseID: 2, Passed: true},
		{ExerciseID: 9, Passed: false},
		{ExerciseID: 7, Passed: false},
		{ExerciseID: 7, Passed: false},
	})
	if len(aggs) != 4 || aggs[0].ExerciseID != 2 || aggs[0].Attempts != 2 || aggs[0].Passed != 1 {
		t.Fatalf("unexpected aggregates %+v", aggs)
	}
	weak := SelectWeakExercises(aggs, 2)
	if len(weak) != 2 || weak[0].ExerciseID != 7 || weak[1].ExerciseID != 9 {
		t.Fatalf("unexpected weak exercises %+v", weak)
	}
	all := SelectWeakExercises(aggs, 0)
	if len(all) != 3 {
		t.Fatalf("always-passed exercises should be skipped: %+v", all)
	}
}

// Package stats contains statistics calculations and reporting.
package stats

import (
	"context"

	"github.com/verte-zerg/sqlquest/internal/model"
	"github.com/verte-zerg/sqlquest/internal/progress"
	"github.com/verte-zerg/sqlquest/internal/store"
)

const defaultWeakTop = 5

// LessonRow is the per-lesson part of a report.
type LessonRow struct {
	Lesson   model.Lesson
	Done     int
	Total    int
	Percent  int
	Unlocked bool
	Complete bool
}

// Report contains precomputed data for stats rendering.
type Report struct {
	State    model.ProgressState
	Lessons  []LessonRow
	Attempts []model.Attempt
	Weak     []model.ExerciseAggregate
}

// BuildReport loads and prepares data for stats rendering.
func BuildReport(ctx context.Context, st *store.Store, tracker *progress.Tracker, lessons []model.Lesson, cfg model.StatsConfig) (Report, error) {
	if cfg.AccountID == "" {
		cfg.AccountID = tracker.AccountID()
	}
	attempts, err := st.ListAttempts(ctx, cfg)
	if err != nil {
		return Report{}, err
	}
	if cfg.Last > 0 && len(attempts) > cfg.Last {
		attempts = attempts[len(attempts)-cfg.Last:]
	}

	rows := make([]LessonRow, 0, len(lessons))
	for _, lesson := range lessons {
		done, total, percent := tracker.LessonProgress(lesson)
		rows = append(rows, LessonRow{
			Lesson:   lesson,
			Done:     done,
			Total:    total,
			Percent:  percent,
			Unlocked: tracker.IsLessonUnlocked(lesson),
			Complete: tracker.IsLessonComplete(lesson),
		})
	}

	return Report{
		State:    tracker.Snapshot(),
		Lessons:  rows,
		Attempts: attempts,
		Weak:     SelectWeakExercises(AggregateAttempts(attempts), defaultWeakTop),
	}, nil
}

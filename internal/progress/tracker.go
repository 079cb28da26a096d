// Package progress tracks completion flags and reward balances.
package progress

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/verte-zerg/sqlquest/internal/apperr"
	"github.com/verte-zerg/sqlquest/internal/logx"
	"github.com/verte-zerg/sqlquest/internal/model"
)

// Persister stores progress outside the process.
type Persister interface {
	LoadProgress(ctx context.Context, accountID string) (model.ProgressState, error)
	// SaveRewards adds the deltas atomically and returns the new balances.
	SaveRewards(ctx context.Context, accountID string, crystals, experience int) (int, int, error)
	SaveLessonComplete(ctx context.Context, accountID, lessonID string) error
	SaveExerciseComplete(ctx context.Context, accountID string, exerciseID int) error
}

// Tracker is safe for concurrent use. A nil persister keeps progress in memory.
type Tracker struct {
	mu        sync.Mutex
	persister Persister
	state     model.ProgressState
	listeners []func(model.ProgressState)
}

// NewTracker creates an empty tracker for an account.
func NewTracker(p Persister, accountID string) *Tracker {
	return &Tracker{
		persister: p,
		state:     emptyState(accountID),
	}
}

// Load creates a tracker seeded from the persister.
func Load(ctx context.Context, p Persister, accountID string) (*Tracker, error) {
	t := NewTracker(p, accountID)
	if err := t.Reload(ctx, accountID); err != nil {
		return nil, err
	}
	return t, nil
}

func emptyState(accountID string) model.ProgressState {
	return model.ProgressState{
		AccountID:          accountID,
		CompletedLessons:   map[string]bool{},
		CompletedExercises: map[int]bool{},
	}
}

// Reload replaces the in-memory state with the persisted state of accountID.
func (t *Tracker) Reload(ctx context.Context, accountID string) error {
	state := emptyState(accountID)
	if t.persister != nil {
		loaded, err := t.persister.LoadProgress(ctx, accountID)
		if err != nil {
			return apperr.Wrap(apperr.CategoryPersistence, apperr.CodeReadFailed, "failed to load progress", err)
		}
		state = loaded.Clone()
		state.AccountID = accountID
	}
	t.mu.Lock()
	t.state = state
	snapshot := t.state.Clone()
	t.mu.Unlock()
	t.notify(snapshot)
	return nil
}

// OnChange registers fn to receive a snapshot after every mutation.
func (t *Tracker) OnChange(fn func(model.ProgressState)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, fn)
}

func (t *Tracker) notify(snapshot model.ProgressState) {
	t.mu.Lock()
	listeners := make([]func(model.ProgressState), len(t.listeners))
	copy(listeners, t.listeners)
	t.mu.Unlock()
	for _, fn := range listeners {
		fn(snapshot)
	}
}

// AccountID returns the account the tracker belongs to.
func (t *Tracker) AccountID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.AccountID
}

// AddRewards increases both balances together. When persisting fails the
// in-memory balances keep the increment and a persistence error is returned.
func (t *Tracker) AddRewards(ctx context.Context, crystals, experience int) error {
	if crystals < 0 || experience < 0 {
		return apperr.Validation(fmt.Sprintf("rewards must be >= 0, got %d/%d", crystals, experience))
	}
	if crystals == 0 && experience == 0 {
		return nil
	}

	t.mu.Lock()
	t.state.Crystals += crystals
	t.state.Experience += experience
	var saveErr error
	if t.persister != nil {
		total, xp, err := t.persister.SaveRewards(ctx, t.state.AccountID, crystals, experience)
		if err != nil {
			saveErr = err
		} else {
			t.state.Crystals = total
			t.state.Experience = xp
		}
	}
	snapshot := t.state.Clone()
	t.mu.Unlock()

	t.notify(snapshot)
	if saveErr != nil {
		logx.Errf("failed to save rewards: %v\n", saveErr)
		return apperr.Persistence("failed to save rewards", saveErr)
	}
	return nil
}

// MarkExerciseComplete records completion and reports whether this call made
// the transition.
func (t *Tracker) MarkExerciseComplete(ctx context.Context, exerciseID int) bool {
	t.mu.Lock()
	if t.state.CompletedExercises[exerciseID] {
		t.mu.Unlock()
		return false
	}
	t.state.CompletedExercises[exerciseID] = true
	accountID := t.state.AccountID
	snapshot := t.state.Clone()
	t.mu.Unlock()

	if t.persister != nil {
		if err := t.persister.SaveExerciseComplete(ctx, accountID, exerciseID); err != nil {
			logx.Errf("failed to save exercise %d completion: %v\n", exerciseID, err)
		}
	}
	t.notify(snapshot)
	return true
}

// MarkLessonComplete sets the lesson override. Persistence errors are logged.
func (t *Tracker) MarkLessonComplete(ctx context.Context, lessonID string) {
	t.mu.Lock()
	if t.state.CompletedLessons[lessonID] {
		t.mu.Unlock()
		return
	}
	t.state.CompletedLessons[lessonID] = true
	accountID := t.state.AccountID
	snapshot := t.state.Clone()
	t.mu.Unlock()

	if t.persister != nil {
		if err := t.persister.SaveLessonComplete(ctx, accountID, lessonID); err != nil {
			logx.Errf("failed to save lesson %s completion: %v\n", lessonID, err)
		}
	}
	t.notify(snapshot)
}

// IsExerciseComplete reports the completion flag of an exercise.
func (t *Tracker) IsExerciseComplete(exerciseID int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.CompletedExercises[exerciseID]
}

// IsLessonComplete is true when the override is set or every exercise of the
// lesson is complete. A lesson without exercises is complete.
func (t *Tracker) IsLessonComplete(lesson model.Lesson) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.CompletedLessons[lesson.ID] {
		return true
	}
	for _, ex := range lesson.Exercises {
		if !t.state.CompletedExercises[ex.ID] {
			return false
		}
	}
	return true
}

// IsLessonUnlocked compares the lesson gate with the experience balance.
func (t *Tracker) IsLessonUnlocked(lesson model.Lesson) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.Experience >= lesson.RequiredReward
}

// LessonProgress counts completed exercises of a lesson.
func (t *Tracker) LessonProgress(lesson model.Lesson) (done, total, percent int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	total = len(lesson.Exercises)
	for _, ex := range lesson.Exercises {
		if t.state.CompletedExercises[ex.ID] {
			done++
		}
	}
	if total > 0 {
		percent = done * 100 / total
	}
	return done, total, percent
}

// RewardBalance returns the crystal balance.
func (t *Tracker) RewardBalance() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.Crystals
}

// ExperienceBalance returns the experience that gates lessons.
func (t *Tracker) ExperienceBalance() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.Experience
}

// Snapshot returns a copy of the current state.
func (t *Tracker) Snapshot() model.ProgressState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.Clone()
}

// CompletedLessonIDs returns the lessons with the override set, sorted.
func (t *Tracker) CompletedLessonIDs() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids := make([]string, 0, len(t.state.CompletedLessons))
	for id, done := range t.state.CompletedLessons {
		if done {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

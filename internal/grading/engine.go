// Package grading checks learner statements against exercise references.
package grading

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/verte-zerg/sqlquest/internal/apperr"
	"github.com/verte-zerg/sqlquest/internal/logx"
	"github.com/verte-zerg/sqlquest/internal/model"
	"github.com/verte-zerg/sqlquest/internal/progress"
)

// ContentErrorMessage is shown when an exercise itself is broken.
const ContentErrorMessage = "Internal error: this exercise may be misconfigured."

// ErrLessonLocked is returned when selecting an exercise of a locked lesson.
var ErrLessonLocked = errors.New("lesson is locked")

// Catalog looks up exercise content.
type Catalog interface {
	Exercise(id int) (model.Exercise, error)
	LessonContaining(exerciseID int) (model.Lesson, error)
}

// Runner executes statements against a resettable dataset.
type Runner interface {
	Reset(ctx context.Context, setup string) model.ExecutionResult
	Run(ctx context.Context, stmt string) model.ExecutionResult
	Close() error
}

// Recorder stores graded attempts.
type Recorder interface {
	RecordAttempt(ctx context.Context, attempt model.Attempt) error
}

// OutcomeKind classifies a submission result.
type OutcomeKind int

const (
	OutcomeMatch OutcomeKind = iota
	OutcomeMismatch
	OutcomeLearnerError
	OutcomeContentError
	OutcomeEnvironmentError
	OutcomeTheory
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeMatch:
		return "match"
	case OutcomeMismatch:
		return "mismatch"
	case OutcomeLearnerError:
		return "learner_error"
	case OutcomeContentError:
		return "content_error"
	case OutcomeEnvironmentError:
		return "environment_error"
	case OutcomeTheory:
		return "theory"
	default:
		return "unknown"
	}
}

// Next points at the exercise to continue with.
type Next struct {
	ExerciseID     int
	LessonComplete bool
}

// Done reports whether nothing is left in the lesson.
func (n Next) Done() bool {
	return n.ExerciseID == 0
}

// Outcome is the result of Submit or Acknowledge.
type Outcome struct {
	Kind       OutcomeKind
	ExerciseID int
	Message    string
	Hint       string
	// Result is what the learner statement (or its check query) produced.
	Result   model.ExecutionResult
	Expected model.ExecutionResult
	Diff     string

	NewlyCompleted bool
	Reward         int
	Next           Next
	// Err carries a persistence failure that did not change the outcome.
	Err error
}

// Selection is the exercise currently being worked on.
type Selection struct {
	Lesson   model.Lesson
	Exercise model.Exercise
	Position int
	Blocked  bool
	Setup    model.ExecutionResult
}

// Engine is not safe for concurrent use.
type Engine struct {
	catalog  Catalog
	runner   Runner
	tracker  *progress.Tracker
	recorder Recorder
	now      func() time.Time

	sel *Selection
}

// Option configures an Engine.
type Option func(*Engine)

// WithRecorder stores every graded attempt.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) {
		e.recorder = r
	}
}

// WithClock overrides the attempt timestamp source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine wires the engine to its collaborators.
func NewEngine(c Catalog, r Runner, t *progress.Tracker, opts ...Option) *Engine {
	e := &Engine{
		catalog: c,
		runner:  r,
		tracker: t,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Current returns the active selection.
func (e *Engine) Current() (Selection, bool) {
	if e.sel == nil {
		return Selection{}, false
	}
	return *e.sel, true
}

// Select prepares an exercise. A failing setup yields a blocked selection
// rather than an error.
func (e *Engine) Select(ctx context.Context, exerciseID int) (Selection, error) {
	ex, err := e.catalog.Exercise(exerciseID)
	if err != nil {
		return Selection{}, err
	}
	lesson, err := e.catalog.LessonContaining(exerciseID)
	if err != nil {
		return Selection{}, err
	}
	if !e.tracker.IsLessonUnlocked(lesson) {
		return Selection{}, fmt.Errorf("%w: %q needs %d experience", ErrLessonLocked, lesson.Title, lesson.RequiredReward)
	}

	sel := &Selection{
		Lesson:   lesson,
		Exercise: ex,
		Position: lesson.Position(exerciseID),
	}
	if ex.Kind == model.KindPractice {
		sel.Setup = e.runner.Reset(ctx, ex.Setup)
		if !sel.Setup.Success {
			sel.Blocked = true
			logx.Errf("exercise %d setup failed: %s\n", ex.ID, sel.Setup.Message)
		}
	} else if err := e.runner.Close(); err != nil {
		logx.Errf("failed to close previous session: %v\n", err)
	}
	e.sel = sel
	return *sel, nil
}

// Submit grades a learner statement against the selected exercise.
func (e *Engine) Submit(ctx context.Context, stmt string) Outcome {
	if e.sel == nil {
		return environmentOutcome(0, "No exercise is selected.")
	}
	ex := e.sel.Exercise
	if e.sel.Blocked {
		return contentOutcome(ex.ID)
	}
	if ex.Kind == model.KindTheory {
		return Outcome{
			Kind:       OutcomeTheory,
			ExerciseID: ex.ID,
			Message:    "This is a theory step. Acknowledge it to continue.",
		}
	}

	if res := e.runner.Reset(ctx, ex.Setup); !res.Success {
		logx.Errf("exercise %d setup failed: %s\n", ex.ID, res.Message)
		return contentOutcome(ex.ID)
	}
	got := e.runner.Run(ctx, stmt)
	if !got.Success {
		e.record(ctx, ex.ID, false)
		return Outcome{
			Kind:       OutcomeLearnerError,
			ExerciseID: ex.ID,
			Message:    got.Message,
			Hint:       got.Hint,
			Result:     got,
		}
	}
	if ex.Check != "" {
		state := e.runner.Run(ctx, ex.Check)
		if !state.Success {
			// The learner statement broke the table the check reads.
			e.record(ctx, ex.ID, false)
			return Outcome{
				Kind:       OutcomeLearnerError,
				ExerciseID: ex.ID,
				Message:    "The table can't be checked after your statement: " + state.Message,
				Hint:       ex.Hint,
				Result:     state,
			}
		}
		got = state
	}

	if res := e.runner.Reset(ctx, ex.Setup); !res.Success {
		logx.Errf("exercise %d setup failed: %s\n", ex.ID, res.Message)
		return contentOutcome(ex.ID)
	}
	want := e.runner.Run(ctx, ex.Reference)
	if !want.Success {
		logx.Errf("exercise %d reference failed: %s\n", ex.ID, want.Message)
		return contentOutcome(ex.ID)
	}
	if ex.Check != "" {
		want = e.runner.Run(ctx, ex.Check)
		if !want.Success {
			logx.Errf("exercise %d check failed: %s\n", ex.ID, want.Message)
			return contentOutcome(ex.ID)
		}
	}

	// Leave the learner on an untouched dataset for experiments.
	if res := e.runner.Reset(ctx, ex.Setup); !res.Success {
		logx.Errf("exercise %d setup failed: %s\n", ex.ID, res.Message)
	}

	if !Equal(got, want) {
		e.record(ctx, ex.ID, false)
		return Outcome{
			Kind:       OutcomeMismatch,
			ExerciseID: ex.ID,
			Message:    "Wrong answer. Compare your result with the task.",
			Hint:       ex.Hint,
			Result:     got,
			Expected:   want,
			Diff:       Diff(got, want),
		}
	}

	e.record(ctx, ex.ID, true)
	out := e.complete(ctx, ex)
	out.Result = got
	out.Expected = want
	out.Message = "Correct!"
	return out
}

// Acknowledge completes the selected theory exercise.
func (e *Engine) Acknowledge(ctx context.Context) Outcome {
	if e.sel == nil {
		return environmentOutcome(0, "No exercise is selected.")
	}
	ex := e.sel.Exercise
	if ex.Kind != model.KindTheory {
		return environmentOutcome(ex.ID, "Only theory steps can be acknowledged. Submit a query instead.")
	}
	out := e.complete(ctx, ex)
	out.Message = "Got it!"
	return out
}

func (e *Engine) complete(ctx context.Context, ex model.Exercise) Outcome {
	out := Outcome{Kind: OutcomeMatch, ExerciseID: ex.ID}
	if e.tracker.MarkExerciseComplete(ctx, ex.ID) {
		out.NewlyCompleted = true
		out.Reward = ex.Reward
		if err := e.tracker.AddRewards(ctx, ex.Reward, ex.Reward); err != nil {
			out.Err = err
		}
	}
	out.Next = e.next()
	if out.Next.LessonComplete {
		e.tracker.MarkLessonComplete(ctx, e.sel.Lesson.ID)
	}
	return out
}

// next finds the first unresolved exercise after the current one, wrapping
// around to catch skipped steps.
func (e *Engine) next() Next {
	exercises := e.sel.Lesson.Exercises
	n := len(exercises)
	for step := 1; step <= n; step++ {
		ex := exercises[(e.sel.Position+step)%n]
		if !e.tracker.IsExerciseComplete(ex.ID) {
			return Next{ExerciseID: ex.ID}
		}
	}
	return Next{LessonComplete: e.tracker.IsLessonComplete(e.sel.Lesson)}
}

// Advance selects the next unresolved exercise of the lesson. When none is
// left the lesson is marked complete and the selection is kept.
func (e *Engine) Advance(ctx context.Context) (Next, error) {
	if e.sel == nil {
		return Next{}, apperr.Environment(apperr.CodeNoSelection, "no exercise is selected")
	}
	next := e.next()
	if next.Done() {
		if next.LessonComplete {
			e.tracker.MarkLessonComplete(ctx, e.sel.Lesson.ID)
		}
		return next, nil
	}
	if _, err := e.Select(ctx, next.ExerciseID); err != nil {
		return Next{}, err
	}
	return next, nil
}

// Preview shows the initial contents of the exercise's target table.
func (e *Engine) Preview(ctx context.Context) model.ExecutionResult {
	if e.sel == nil {
		return model.ExecutionResult{
			Kind:       model.ResultError,
			Message:    "no exercise is selected",
			ErrorClass: model.ErrorNoSession,
		}
	}
	ex := e.sel.Exercise
	if ex.Target == "" || ex.Kind != model.KindPractice {
		return model.ExecutionResult{
			Success: true,
			Kind:    model.ResultStatus,
			Message: "This exercise has no table to preview.",
		}
	}
	if res := e.runner.Reset(ctx, ex.Setup); !res.Success {
		return res
	}
	return e.runner.Run(ctx, "SELECT * FROM "+quoteIdent(ex.Target))
}

// Try runs a statement on the current dataset without grading it. Changes
// accumulate until the next Reset.
func (e *Engine) Try(ctx context.Context, stmt string) model.ExecutionResult {
	if e.sel != nil && e.sel.Blocked {
		return model.ExecutionResult{
			Kind:       model.ResultError,
			Message:    ContentErrorMessage,
			ErrorClass: model.ErrorOther,
		}
	}
	return e.runner.Run(ctx, stmt)
}

func (e *Engine) record(ctx context.Context, exerciseID int, passed bool) {
	if e.recorder == nil {
		return
	}
	attempt := model.Attempt{
		AccountID:  e.tracker.AccountID(),
		ExerciseID: exerciseID,
		Passed:     passed,
		At:         e.now(),
	}
	if err := e.recorder.RecordAttempt(ctx, attempt); err != nil {
		logx.Errf("failed to record attempt: %v\n", err)
	}
}

func contentOutcome(exerciseID int) Outcome {
	return Outcome{
		Kind:       OutcomeContentError,
		ExerciseID: exerciseID,
		Message:    ContentErrorMessage,
	}
}

func environmentOutcome(exerciseID int, msg string) Outcome {
	return Outcome{
		Kind:       OutcomeEnvironmentError,
		ExerciseID: exerciseID,
		Message:    msg,
	}
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

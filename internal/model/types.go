// Package model defines shared data structures.
package model

import (
	"strings"
	"time"
)

// NullSentinel is how SQL NULL appears in result rows. Empty strings stay empty.
const NullSentinel = "NULL"

// LocalAccountID owns progress recorded while nobody is signed in.
const LocalAccountID = "local"

// Config defines runtime settings resolved from flags and the config file.
type Config struct {
	Driver        string
	CatalogPath   string
	CatalogURL    string
	ReminderTimes []string
	AuthSecret    string
	TokenTTL      time.Duration
}

// StatsConfig defines filters and options for stats output.
type StatsConfig struct {
	AccountID   string
	Since       *time.Time
	Last        int
	CurveWindow int
}

// ExerciseKind separates acknowledgeable theory from graded practice.
type ExerciseKind string

const (
	KindTheory   ExerciseKind = "theory"
	KindPractice ExerciseKind = "practice"
)

// Exercise is one step of a lesson. Catalog values are never mutated;
// completion lives in the progress tracker.
type Exercise struct {
	ID        int
	Kind      ExerciseKind
	Prompt    string
	Theory    string
	Example   string
	Setup     string
	Reference string
	// Check is a verification query for exercises whose answer modifies data.
	Check   string
	Hint    string
	Reward  int
	Starter string
	Target  string
}

// Gradable reports whether a practice exercise has a dataset and a reference query.
func (e Exercise) Gradable() bool {
	return e.Kind == KindPractice &&
		strings.TrimSpace(e.Setup) != "" &&
		strings.TrimSpace(e.Reference) != ""
}

// Lesson is an ordered group of exercises.
type Lesson struct {
	ID             string
	Title          string
	Description    string
	RequiredReward int
	Exercises      []Exercise
}

// Position returns the index of an exercise inside the lesson, or -1.
func (l Lesson) Position(exerciseID int) int {
	for i, ex := range l.Exercises {
		if ex.ID == exerciseID {
			return i
		}
	}
	return -1
}

// ResultKind tells rows, status and failures apart.
type ResultKind int

const (
	ResultStatus ResultKind = iota
	ResultRows
	ResultError
)

// ErrorClass is a coarse classification of engine failures used for hints.
type ErrorClass string

const (
	ErrorNone          ErrorClass = ""
	ErrorSyntax        ErrorClass = "syntax"
	ErrorUnknownTable  ErrorClass = "unknown_table"
	ErrorUnknownColumn ErrorClass = "unknown_column"
	ErrorNoSession     ErrorClass = "no_session"
	ErrorOther         ErrorClass = "other"
)

// ExecutionResult is the outcome of a single runner call.
type ExecutionResult struct {
	Success    bool
	Kind       ResultKind
	Columns    []string
	Rows       [][]string
	Message    string
	ErrorClass ErrorClass
	Hint       string
}

// ProgressState is the per-account progress snapshot.
type ProgressState struct {
	AccountID          string
	Crystals           int
	Experience         int
	Streak             int
	LastLogin          time.Time
	CompletedLessons   map[string]bool
	CompletedExercises map[int]bool
}

// Clone returns a deep copy so callers can't alias tracker maps.
func (p ProgressState) Clone() ProgressState {
	out := p
	out.CompletedLessons = make(map[string]bool, len(p.CompletedLessons))
	for k, v := range p.CompletedLessons {
		out.CompletedLessons[k] = v
	}
	out.CompletedExercises = make(map[int]bool, len(p.CompletedExercises))
	for k, v := range p.CompletedExercises {
		out.CompletedExercises[k] = v
	}
	return out
}

// Account is a stored learner account.
type Account struct {
	ID           string
	Email        string
	Username     string
	PasswordHash string
	AvatarID     string
	CreatedAt    time.Time
}

// Profile is what the account collaborator publishes about the signed-in learner.
type Profile struct {
	AccountID        string
	Username         string
	Email            string
	AvatarID         string
	Crystals         int
	Experience       int
	Streak           int
	LastLogin        time.Time
	CompletedLessons []string
}

// Attempt records one graded submission.
type Attempt struct {
	AccountID  string
	ExerciseID int
	Passed     bool
	At         time.Time
}

// ExerciseAggregate summarizes attempts for one exercise.
type ExerciseAggregate struct {
	ExerciseID int
	Attempts   int
	Passed     int
}

// PassRate returns the share of passed attempts, or 0 without attempts.
func (a ExerciseAggregate) PassRate() float64 {
	if a.Attempts == 0 {
		return 0
	}
	return float64(a.Passed) / float64(a.Attempts)
}

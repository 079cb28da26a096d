// Package catalog holds the read-only lesson and exercise content.
package catalog

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/verte-zerg/sqlquest/internal/apperr"
	"github.com/verte-zerg/sqlquest/internal/model"
	"github.com/verte-zerg/sqlquest/internal/runner"
)

//go:embed lessons.toml
var builtin []byte

var (
	ErrLessonNotFound   = errors.New("lesson not found")
	ErrExerciseNotFound = errors.New("exercise not found")
)

type document struct {
	Datasets map[string]datasetDoc `toml:"dataset"`
	Lessons  []lessonDoc           `toml:"lesson"`
}

type datasetDoc struct {
	Setup string `toml:"setup"`
}

type lessonDoc struct {
	ID             string        `toml:"id"`
	Title          string        `toml:"title"`
	Description    string        `toml:"description"`
	RequiredReward int           `toml:"required-reward"`
	Exercises      []exerciseDoc `toml:"exercise"`
}

type exerciseDoc struct {
	ID        int    `toml:"id"`
	Kind      string `toml:"kind"`
	Prompt    string `toml:"prompt"`
	Theory    string `toml:"theory"`
	Example   string `toml:"example"`
	Dataset   string `toml:"dataset"`
	Setup     string `toml:"setup"`
	Reference string `toml:"reference"`
	Check     string `toml:"check"`
	Target    string `toml:"target"`
	Hint      string `toml:"hint"`
	Reward    int    `toml:"reward"`
	Starter   string `toml:"starter"`
}

type position struct {
	lesson   int
	exercise int
}

// Catalog is immutable after construction.
type Catalog struct {
	lessons   []model.Lesson
	byID      map[string]int
	exercises map[int]position
}

// Builtin returns the catalog compiled into the binary.
func Builtin() (*Catalog, error) {
	return Load(bytes.NewReader(builtin))
}

// Load parses a TOML catalog.
func Load(r io.Reader) (*Catalog, error) {
	lessons, err := Decode(r)
	if err != nil {
		return nil, err
	}
	return New(lessons)
}

// LoadFile parses a TOML catalog from disk.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()
	return Load(f)
}

// Decode parses TOML content into lessons without validating them.
func Decode(r io.Reader) ([]model.Lesson, error) {
	var doc document
	if _, err := toml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, apperr.Content(apperr.CodeInvalidCatalog, "failed to decode catalog", err)
	}

	lessons := make([]model.Lesson, 0, len(doc.Lessons))
	for _, ld := range doc.Lessons {
		lesson := model.Lesson{
			ID:             ld.ID,
			Title:          ld.Title,
			Description:    ld.Description,
			RequiredReward: ld.RequiredReward,
			Exercises:      make([]model.Exercise, 0, len(ld.Exercises)),
		}
		for _, ed := range ld.Exercises {
			setup := ed.Setup
			if ed.Dataset != "" {
				ds, ok := doc.Datasets[ed.Dataset]
				if !ok {
					return nil, invalid("exercise %d: unknown dataset %q", ed.ID, ed.Dataset)
				}
				setup = joinScripts(ds.Setup, ed.Setup)
			}
			lesson.Exercises = append(lesson.Exercises, model.Exercise{
				ID:        ed.ID,
				Kind:      model.ExerciseKind(strings.ToLower(strings.TrimSpace(ed.Kind))),
				Prompt:    strings.TrimSpace(ed.Prompt),
				Theory:    strings.TrimSpace(ed.Theory),
				Example:   strings.TrimSpace(ed.Example),
				Setup:     strings.TrimSpace(setup),
				Reference: strings.TrimSpace(ed.Reference),
				Check:     strings.TrimSpace(ed.Check),
				Hint:      strings.TrimSpace(ed.Hint),
				Reward:    ed.Reward,
				Starter:   ed.Starter,
				Target:    strings.TrimSpace(ed.Target),
			})
		}
		lessons = append(lessons, lesson)
	}
	return lessons, nil
}

func joinScripts(first, second string) string {
	first = strings.TrimSpace(first)
	second = strings.TrimSpace(second)
	switch {
	case first == "":
		return second
	case second == "":
		return first
	}
	if !strings.HasSuffix(first, ";") {
		first += ";"
	}
	return first + "\n" + second
}

// New validates lessons and builds the lookup indexes.
func New(lessons []model.Lesson) (*Catalog, error) {
	c := &Catalog{
		lessons:   make([]model.Lesson, 0, len(lessons)),
		byID:      make(map[string]int, len(lessons)),
		exercises: make(map[int]position),
	}
	for li, lesson := range lessons {
		if strings.TrimSpace(lesson.ID) == "" {
			return nil, invalid("lesson %d has no id", li+1)
		}
		if _, dup := c.byID[lesson.ID]; dup {
			return nil, invalid("duplicate lesson id %q", lesson.ID)
		}
		if lesson.RequiredReward < 0 {
			return nil, invalid("lesson %q: required reward must be >= 0", lesson.ID)
		}
		for ei, ex := range lesson.Exercises {
			if err := validateExercise(ex); err != nil {
				return nil, fmt.Errorf("lesson %q: %w", lesson.ID, err)
			}
			if prev, dup := c.exercises[ex.ID]; dup {
				return nil, invalid("duplicate exercise id %d (lessons %q and %q)",
					ex.ID, lessons[prev.lesson].ID, lesson.ID)
			}
			c.exercises[ex.ID] = position{lesson: li, exercise: ei}
		}
		c.byID[lesson.ID] = li
		c.lessons = append(c.lessons, cloneLesson(lesson))
	}
	return c, nil
}

func validateExercise(ex model.Exercise) error {
	if ex.ID <= 0 {
		return invalid("exercise id must be positive, got %d", ex.ID)
	}
	if ex.Reward < 0 {
		return invalid("exercise %d: reward must be >= 0", ex.ID)
	}
	switch ex.Kind {
	case model.KindTheory:
		if ex.Reference != "" {
			return invalid("exercise %d: theory exercises cannot have a reference query", ex.ID)
		}
	case model.KindPractice:
		if !ex.Gradable() {
			return invalid("exercise %d: practice exercises need setup and reference", ex.ID)
		}
		if !runner.ReturnsRows(ex.Reference) && ex.Check == "" {
			return invalid("exercise %d: a reference that changes data needs a check query", ex.ID)
		}
	default:
		return invalid("exercise %d: unknown kind %q", ex.ID, ex.Kind)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return apperr.New(apperr.CategoryContent, apperr.CodeInvalidCatalog, fmt.Sprintf(format, args...))
}

func cloneLesson(l model.Lesson) model.Lesson {
	out := l
	out.Exercises = append([]model.Exercise(nil), l.Exercises...)
	return out
}

// All returns the lessons in catalog order.
func (c *Catalog) All() []model.Lesson {
	out := make([]model.Lesson, len(c.lessons))
	for i, l := range c.lessons {
		out[i] = cloneLesson(l)
	}
	return out
}

// ByID looks up a lesson.
func (c *Catalog) ByID(lessonID string) (model.Lesson, error) {
	idx, ok := c.byID[lessonID]
	if !ok {
		return model.Lesson{}, fmt.Errorf("%w: %q", ErrLessonNotFound, lessonID)
	}
	return cloneLesson(c.lessons[idx]), nil
}

// Exercise looks up an exercise by its global id.
func (c *Catalog) Exercise(id int) (model.Exercise, error) {
	pos, ok := c.exercises[id]
	if !ok {
		return model.Exercise{}, fmt.Errorf("%w: %d", ErrExerciseNotFound, id)
	}
	return c.lessons[pos.lesson].Exercises[pos.exercise], nil
}

// ExerciseGlobalID maps a zero-based position inside a lesson to the exercise id.
func (c *Catalog) ExerciseGlobalID(lessonID string, pos int) (int, error) {
	idx, ok := c.byID[lessonID]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrLessonNotFound, lessonID)
	}
	exercises := c.lessons[idx].Exercises
	if pos < 0 || pos >= len(exercises) {
		return 0, fmt.Errorf("%w: position %d in lesson %q", ErrExerciseNotFound, pos, lessonID)
	}
	return exercises[pos].ID, nil
}

// LessonContaining returns the lesson an exercise belongs to.
func (c *Catalog) LessonContaining(exerciseID int) (model.Lesson, error) {
	pos, ok := c.exercises[exerciseID]
	if !ok {
		return model.Lesson{}, fmt.Errorf("%w: %d", ErrExerciseNotFound, exerciseID)
	}
	return cloneLesson(c.lessons[pos.lesson]), nil
}

// Len returns the number of lessons.
func (c *Catalog) Len() int {
	return len(c.lessons)
}

// Package reminder schedules daily practice reminders.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// BaseID is the identifier of the first reminder; entry i gets BaseID+i.
const BaseID = 1000

const (
	alertTitle = "sqlquest"
	alertBody  = "Time for a SQL lesson. Keep your streak going!"
)

// Clock is a wall-clock time of day.
type Clock struct {
	Hour   int
	Minute int
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// ParseClock parses "HH:MM" (24h).
func ParseClock(s string) (Clock, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return Clock{}, fmt.Errorf("invalid time %q: want HH:MM", s)
	}
	hour, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || hour < 0 || hour > 23 {
		return Clock{}, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || minute < 0 || minute > 59 {
		return Clock{}, fmt.Errorf("invalid minute in %q", s)
	}
	return Clock{Hour: hour, Minute: minute}, nil
}

// ParseTimes parses every entry. Valid entries are returned even when some
// are rejected; the error lists the rejected ones.
func ParseTimes(times []string) ([]Clock, error) {
	clocks := make([]Clock, 0, len(times))
	var errs []error
	for _, s := range times {
		c, err := ParseClock(s)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		clocks = append(clocks, c)
	}
	return clocks, errors.Join(errs...)
}

// NextFire returns the next occurrence of c strictly after now, in now's
// location.
func NextFire(now time.Time, c Clock) time.Time {
	at := time.Date(now.Year(), now.Month(), now.Day(), c.Hour, c.Minute, 0, 0, now.Location())
	if !at.After(now) {
		at = time.Date(now.Year(), now.Month(), now.Day()+1, c.Hour, c.Minute, 0, 0, now.Location())
	}
	return at
}

// Alert is delivered to the Handler when a reminder fires.
type Alert struct {
	ID    int
	At    time.Time
	Title string
	Body  string
}

// Handler receives alerts. It is called from the scheduler's goroutines.
type Handler func(Alert)

// TimerFunc starts a timer and returns its channel and a stop func.
type TimerFunc func(d time.Duration) (<-chan time.Time, func() bool)

func realTimer(d time.Duration) (<-chan time.Time, func() bool) {
	t := time.NewTimer(d)
	return t.C, t.Stop
}

// Scheduler runs one daily timer per scheduled time.
type Scheduler struct {
	handler Handler
	now     func() time.Time
	timer   TimerFunc

	mu      sync.Mutex
	cancels map[int]context.CancelFunc
	wg      sync.WaitGroup
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.now = now
	}
}

// WithTimer overrides timer creation.
func WithTimer(fn TimerFunc) Option {
	return func(s *Scheduler) {
		s.timer = fn
	}
}

// NewScheduler creates a scheduler delivering alerts to h.
func NewScheduler(h Handler, opts ...Option) *Scheduler {
	s := &Scheduler{
		handler: h,
		now:     time.Now,
		timer:   realTimer,
		cancels: map[int]context.CancelFunc{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schedule arranges a daily reminder per entry and returns their IDs. An
// entry replaces a running reminder with the same ID. Reminders stop when ctx
// is done or when cancelled.
func (s *Scheduler) Schedule(ctx context.Context, times []Clock) []int {
	ids := make([]int, 0, len(times))
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range times {
		id := BaseID + i
		if cancel, ok := s.cancels[id]; ok {
			cancel()
		}
		runCtx, cancel := context.WithCancel(ctx)
		s.cancels[id] = cancel
		ids = append(ids, id)
		s.wg.Add(1)
		go s.run(runCtx, id, c)
	}
	return ids
}

// Cancel stops reminders BaseID .. BaseID+count-1.
func (s *Scheduler) Cancel(count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 0; i < count; i++ {
		id := BaseID + i
		if cancel, ok := s.cancels[id]; ok {
			cancel()
			delete(s.cancels, id)
		}
	}
}

// Pending lists the IDs of active reminders.
func (s *Scheduler) Pending() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int, 0, len(s.cancels))
	for id := range s.cancels {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Wait blocks until every reminder goroutine has stopped.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context, id int, c Clock) {
	defer s.wg.Done()
	for {
		now := s.now()
		at := NextFire(now, c)
		fired, stop := s.timer(at.Sub(now))
		select {
		case <-ctx.Done():
			stop()
			return
		case <-fired:
		}
		if ctx.Err() != nil {
			return
		}
		s.handler(Alert{ID: id, At: at, Title: alertTitle, Body: alertBody})
	}
}

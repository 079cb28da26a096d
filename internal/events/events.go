// Package events provides in-process streams for account state and status messages.
package events

import (
	"context"
	"sync"
)

// Latest holds the most recent value of a stream. Subscribers receive the
// current value right away and then every newer one. A slow subscriber only
// ever misses intermediate values, never the latest.
type Latest[T any] struct {
	mu     sync.Mutex
	value  T
	set    bool
	nextID int
	subs   map[int]chan T
}

// NewLatest creates a stream that starts with initial.
func NewLatest[T any](initial T) *Latest[T] {
	return &Latest[T]{
		value: initial,
		set:   true,
		subs:  map[int]chan T{},
	}
}

// Get returns the current value.
func (l *Latest[T]) Get() T {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.value
}

// Publish replaces the current value and forwards it to all subscribers.
// Non-blocking.
func (l *Latest[T]) Publish(v T) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.value = v
	l.set = true
	for _, ch := range l.subs {
		offer(ch, v)
	}
}

// Subscribe returns a channel carrying the current value and later updates,
// plus a cancel func that closes it.
func (l *Latest[T]) Subscribe() (<-chan T, func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.subs == nil {
		l.subs = map[int]chan T{}
	}
	id := l.nextID
	l.nextID++
	ch := make(chan T, 1)
	if l.set {
		ch <- l.value
	}
	l.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			delete(l.subs, id)
			close(ch)
		})
	}
	return ch, cancel
}

// offer replaces a stale buffered value. Callers hold the stream lock, so
// nobody else sends on ch in between.
func offer[T any](ch chan T, v T) {
	select {
	case ch <- v:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	ch <- v
}

// Queue delivers one-shot messages. Each pushed message is handed out at most
// once, to whichever reader asks first.
type Queue[T any] struct {
	mu    sync.Mutex
	items []T
	ready chan struct{}
}

// NewQueue creates an empty queue.
func NewQueue[T any]() *Queue[T] {
	return &Queue[T]{ready: make(chan struct{}, 1)}
}

// Push appends a message.
func (q *Queue[T]) Push(v T) {
	q.mu.Lock()
	q.items = append(q.items, v)
	q.mu.Unlock()
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// Next pops the oldest message without waiting.
func (q *Queue[T]) Next() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var zero T
	if len(q.items) == 0 {
		return zero, false
	}
	v := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	if len(q.items) > 0 {
		// Keep another waiting Take awake for the rest.
		select {
		case q.ready <- struct{}{}:
		default:
		}
	}
	return v, true
}

// Len reports how many messages are waiting.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Take waits for the next message or until ctx is done.
func (q *Queue[T]) Take(ctx context.Context) (T, error) {
	for {
		if v, ok := q.Next(); ok {
			return v, nil
		}
		select {
		case <-q.ready:
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		}
	}
}

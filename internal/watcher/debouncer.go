package watcher

import (
	"sync"
	"time"

	"oag/internal/scan"
)

// BatchDebouncer collects change events and emits them as one batch after a
// quiet period. Events arriving while an emission is being handled
// accumulate into the next batch.
type BatchDebouncer struct {
	delay  time.Duration
	timer  *time.Timer
	mu     sync.Mutex
	events []scan.Change
	emit   func([]scan.Change)
}

// NewBatchDebouncer creates a batch debouncer.
func NewBatchDebouncer(delay time.Duration, emit func([]scan.Change)) *BatchDebouncer {
	return &BatchDebouncer{
		delay:  delay,
		events: make([]scan.Change, 0),
		emit:   emit,
	}
}

// Add appends an event to the pending batch and resets the quiet-period timer.
func (b *BatchDebouncer) Add(event scan.Change) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.events = append(b.events, event)

	if b.timer != nil {
		b.timer.Stop()
	}
	b.timer = time.AfterFunc(b.delay, func() {
		b.flush()
	})
}

func (b *BatchDebouncer) flush() {
	b.mu.Lock()
	events := b.events
	b.events = make([]scan.Change, 0)
	b.timer = nil
	b.mu.Unlock()

	if len(events) > 0 && b.emit != nil {
		b.emit(events)
	}
}

// Cancel drops any pending events without emitting them.
func (b *BatchDebouncer) Cancel() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.events = make([]scan.Change, 0)
}

// Flush immediately emits any pending events.
func (b *BatchDebouncer) Flush() {
	b.mu.Lock()
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.mu.Unlock()

	b.flush()
}

// EventCount returns the number of pending events.
func (b *BatchDebouncer) EventCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}

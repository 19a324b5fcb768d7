// Package progress carries sort progress from a session worker to whatever
// interface is watching it.
package progress

import (
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

// Event reports one more file processed. Fraction is Completed/Total.
type Event struct {
	Fraction  float64
	Completed int
}

// Queue is an unbounded, ordered, single-producer/single-consumer event
// channel. Push never blocks the producer; the consumer drains whole batches
// at its own pace.
type Queue struct {
	mu      sync.Mutex
	pending []Event
	closed  bool
	notify  chan struct{}
}

// NewQueue creates an empty queue
func NewQueue() *Queue {
	return &Queue{notify: make(chan struct{}, 1)}
}

// Push appends an event. Pushing to a closed queue is a no-op.
func (q *Queue) Push(e Event) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.pending = append(q.pending, e)
	q.mu.Unlock()

	q.wake()
}

// Drain removes and returns every pending event in arrival order
func (q *Queue) Drain() []Event {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) == 0 {
		return nil
	}
	batch := q.pending
	q.pending = nil
	return batch
}

// Close marks the end of the stream. Events already queued stay drainable.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()

	q.wake()
}

// Closed reports whether the producer has finished
func (q *Queue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Notify returns a channel that receives a value whenever events arrive or
// the queue closes. Consumers that poll on a ticker can ignore it.
func (q *Queue) Notify() <-chan struct{} {
	return q.notify
}

func (q *Queue) wake() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Tracker folds events into the latest displayed state and never regresses
type Tracker struct {
	Total     int
	Completed int
	Fraction  float64
	StartTime time.Time
}

// NewTracker creates a tracker for a session of total files
func NewTracker(total int) *Tracker {
	return &Tracker{Total: total, StartTime: time.Now()}
}

// Apply consumes a drained batch. Stale or out-of-order events are ignored.
// It reports whether the displayed state changed.
func (t *Tracker) Apply(batch []Event) bool {
	changed := false
	for _, e := range batch {
		if e.Completed <= t.Completed {
			continue
		}
		t.Completed = e.Completed
		t.Fraction = clamp(e.Fraction)
		changed = true
	}
	return changed
}

// Percent returns the completed fraction as 0-100
func (t *Tracker) Percent() int {
	return int(t.Fraction * 100)
}

// ETA estimates the remaining time from the average rate so far
func (t *Tracker) ETA() time.Duration {
	if t.Completed == 0 || t.Total <= t.Completed {
		return 0
	}
	avg := time.Since(t.StartTime) / time.Duration(t.Completed)
	return time.Duration(t.Total-t.Completed) * avg
}

// String returns a human-readable progress line
func (t *Tracker) String() string {
	if t.Total == 0 {
		return "Nothing to sort"
	}

	eta := ""
	if remaining := t.ETA(); remaining > 0 {
		eta = fmt.Sprintf(" ETA: %s", FormatDuration(remaining))
	}

	return fmt.Sprintf("Sorting... %d/%d files (%d%%)%s", t.Completed, t.Total, t.Percent(), eta)
}

func clamp(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}

// FormatBytes formats bytes in human-readable format
func FormatBytes(bytes int64) string {
	if bytes < 0 {
		bytes = 0
	}
	return humanize.IBytes(uint64(bytes))
}

// FormatDuration formats duration in human-readable format
func FormatDuration(d time.Duration) string {
	d = d.Round(time.Second)

	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%dm%ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}

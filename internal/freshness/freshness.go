// Package freshness implements the bounded-FIFO external contract of
// spec.md §5: inbound batches wait here, not inside the core, so a slow
// consumer sees bounded memory and bounded staleness rather than an
// unbounded backlog reaching step(). It is grounded on the shape of
// internal/concurrency.ConcurrencyModule's TaskQueue/Semaphore pair (a
// mutex-guarded struct plus a capacity primitive), generalized from that
// package's priority-lane dispatch (which has no drop policy at all) to
// the drop-oldest/drop-stale policies this contract requires.
package freshness

import (
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/semaphore"
)

// DropReason names why an item never reached dequeue.
type DropReason string

const (
	Overflow DropReason = "overflow"
	Stale    DropReason = "stale"
)

// DropFunc is notified whenever one or more items are dropped, with the
// count dropped under a single reason in one call.
type DropFunc func(count int, reason DropReason)

// item is one FIFO-queued value plus its arrival time, used both for
// stale eviction and for reporting.
type item struct {
	value      interface{}
	enqueuedAt time.Time
}

// Stats is a point-in-time snapshot returned by GetStats.
type Stats struct {
	CurrentSize      int
	Capacity         int
	TotalEnqueued    int64
	TotalDequeued    int64
	DroppedOverflow  int64
	DroppedStale     int64
	OldestItemAge    time.Duration // zero if empty
}

// FIFO is a bounded, capacity-limited, age-limited queue implementing
// spec.md §5's freshness wrapper. Capacity is enforced by a semaphore
// rather than the channel-as-bounded-buffer idiom the teacher's
// TaskQueue uses, because enqueue here must never block the producer:
// when full it evicts the oldest entry (releasing its slot) instead of
// waiting for a consumer.
type FIFO struct {
	mu       sync.Mutex
	sem      *semaphore.Weighted
	capacity int
	maxAge   time.Duration
	items    []item
	onDrop   DropFunc

	totalEnqueued   int64
	totalDequeued   int64
	droppedOverflow int64
	droppedStale    int64
}

// NewFIFO creates a FIFO of the given capacity (must be > 0) and max age
// (zero means items never go stale on their own — DropStale still runs
// if called with an explicit age).
func NewFIFO(capacity int, maxAge time.Duration) *FIFO {
	if capacity <= 0 {
		capacity = 1
	}
	return &FIFO{
		sem:      semaphore.NewWeighted(int64(capacity)),
		capacity: capacity,
		maxAge:   maxAge,
	}
}

// SetDropCallback installs the callback spec.md §5 requires: invoked
// with the number of items dropped and the reason, once per Enqueue or
// DropStale call that actually drops something.
func (f *FIFO) SetDropCallback(cb DropFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onDrop = cb
}

// Enqueue appends item, evicting the oldest queued item first if the
// FIFO is already at capacity (spec.md §5's overflow policy: drop oldest
// to make room for newest).
func (f *FIFO) Enqueue(value interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.sem.TryAcquire(1) {
		f.items = f.items[1:]
		f.droppedOverflow++
		f.notifyLocked(1, Overflow)
		f.sem.Release(1) // the evicted slot is immediately reclaimed below
		f.sem.TryAcquire(1)
	}

	f.items = append(f.items, item{value: value, enqueuedAt: now()})
	f.totalEnqueued++
}

// Dequeue removes and returns up to maxN items, oldest first. If fewer
// than minN items are currently queued it returns an empty slice without
// removing anything — spec.md's micro-batching contract, letting a
// caller wait for a fuller batch rather than draining one item at a
// time.
func (f *FIFO) Dequeue(maxN, minN int) []interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.items) < minN {
		return nil
	}
	n := maxN
	if n <= 0 || n > len(f.items) {
		n = len(f.items)
	}
	out := make([]interface{}, n)
	for i := 0; i < n; i++ {
		out[i] = f.items[i].value
	}
	f.items = f.items[n:]
	f.sem.Release(int64(n))
	f.totalDequeued += int64(n)
	return out
}

// DropStale evicts every item older than maxAge (or the FIFO's
// configured maxAge if maxAge <= 0) and returns how many were dropped.
func (f *FIFO) DropStale(maxAge time.Duration) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	limit := maxAge
	if limit <= 0 {
		limit = f.maxAge
	}
	if limit <= 0 {
		return 0
	}

	cutoff := now().Add(-limit)
	keep := f.items[:0]
	dropped := 0
	for _, it := range f.items {
		if it.enqueuedAt.Before(cutoff) {
			dropped++
			continue
		}
		keep = append(keep, it)
	}
	f.items = keep
	if dropped > 0 {
		f.sem.Release(int64(dropped))
		f.droppedStale += int64(dropped)
		f.notifyLocked(dropped, Stale)
	}
	return dropped
}

// Clear empties the queue without reporting a drop reason — a deliberate
// reset, not a capacity or age eviction.
func (f *FIFO) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sem.Release(int64(len(f.items)))
	f.items = nil
}

// GetStats returns a snapshot of the queue's current size and lifetime
// counters.
func (f *FIFO) GetStats() Stats {
	f.mu.Lock()
	defer f.mu.Unlock()

	st := Stats{
		CurrentSize:     len(f.items),
		Capacity:        f.capacity,
		TotalEnqueued:   f.totalEnqueued,
		TotalDequeued:   f.totalDequeued,
		DroppedOverflow: f.droppedOverflow,
		DroppedStale:    f.droppedStale,
	}
	if len(f.items) > 0 {
		st.OldestItemAge = now().Sub(f.items[0].enqueuedAt)
	}
	return st
}

// String renders an operator-readable one-line summary, matching the
// habit of surfacing humanized counts/ages instead of raw numbers.
func (st Stats) String() string {
	oldest := "n/a"
	if st.CurrentSize > 0 {
		oldest = humanize.Time(now().Add(-st.OldestItemAge))
	}
	return fmt.Sprintf(
		"size=%s/%s enqueued=%s dequeued=%s dropped(overflow=%s stale=%s) oldest=%s",
		humanize.Comma(int64(st.CurrentSize)), humanize.Comma(int64(st.Capacity)),
		humanize.Comma(st.TotalEnqueued), humanize.Comma(st.TotalDequeued),
		humanize.Comma(st.DroppedOverflow), humanize.Comma(st.DroppedStale),
		oldest,
	)
}

func (f *FIFO) notifyLocked(count int, reason DropReason) {
	if f.onDrop != nil {
		f.onDrop(count, reason)
	}
}

// now is the queue's clock, overridable by tests via WithClock so age
// comparisons don't depend on real wall-clock sleeps.
var now = time.Now

// WithClock overrides the package-level clock used for enqueue
// timestamps and staleness comparisons, for deterministic tests. It
// returns a restore function.
func WithClock(clock func() time.Time) func() {
	prev := now
	now = clock
	return func() { now = prev }
}

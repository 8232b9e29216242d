// Package traffic keeps short sliding windows of request outcomes per feed.
// Health reporting reads error rates from here and the rate limiter records denials.
package traffic

import (
	"sync"
	"time"
)

// Outcome classifies a single recorded request.
type Outcome int

const (
	Success Outcome = iota
	// Fallback is a request answered with substitute data after an upstream failure.
	Fallback
	Failure
	Denied
)

// retention bounds how far back any window can look.
const retention = 5 * time.Minute

var defaultTracker = NewTracker()

// Record records an outcome for feed on the process-wide tracker.
func Record(feed string, o Outcome) { defaultTracker.Record(feed, o) }

// RecordDenied records a rate-limit denial (429) on the process-wide tracker.
func RecordDenied() { defaultTracker.Record("", Denied) }

// RequestCount returns all outcomes, denials included, within window.
func RequestCount(window time.Duration) int { return defaultTracker.RequestCount(window) }

// DenialCount returns the number of denials within window.
func DenialCount(window time.Duration) int { return defaultTracker.DenialCount(window) }

// ErrorRate returns (failures, total) across every feed within window.
func ErrorRate(window time.Duration) (failures, total int) {
	return defaultTracker.ErrorRate("", window)
}

// FeedErrorRate returns (failures, total) for one feed within window.
func FeedErrorRate(feed string, window time.Duration) (failures, total int) {
	return defaultTracker.ErrorRate(feed, window)
}

// Reset clears the process-wide tracker. For tests only.
func Reset() { defaultTracker.Reset() }

type event struct {
	at      time.Time
	feed    string
	outcome Outcome
}

// Tracker holds timestamped outcomes in arrival order.
type Tracker struct {
	mu     sync.Mutex
	events []event
	now    func() time.Time
}

// NewTracker returns an empty tracker using the wall clock.
func NewTracker() *Tracker {
	return &Tracker{now: time.Now}
}

// Record appends an outcome and prunes anything older than the retention window.
func (t *Tracker) Record(feed string, o Outcome) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	t.events = append(t.events, event{at: now, feed: feed, outcome: o})
	t.pruneLocked(now)
}

func (t *Tracker) RequestCount(window time.Duration) int {
	return t.count(window, func(event) bool { return true })
}

func (t *Tracker) DenialCount(window time.Duration) int {
	return t.count(window, func(e event) bool { return e.outcome == Denied })
}

// ErrorRate returns (failures, total) within window for feed, or for every feed when feed is "".
// Fallbacks count as failures; denials are excluded from both numbers.
func (t *Tracker) ErrorRate(feed string, window time.Duration) (failures, total int) {
	match := func(e event) bool {
		return e.outcome != Denied && (feed == "" || e.feed == feed)
	}
	failures = t.count(window, func(e event) bool {
		return match(e) && (e.outcome == Failure || e.outcome == Fallback)
	})
	total = t.count(window, match)
	return failures, total
}

func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = nil
}

func (t *Tracker) count(window time.Duration, keep func(event) bool) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.now().Add(-window)
	n := 0
	for _, e := range t.events {
		if !e.at.Before(cutoff) && keep(e) {
			n++
		}
	}
	return n
}

// pruneLocked drops events older than retention. Must be called with mu held.
func (t *Tracker) pruneLocked(now time.Time) {
	cutoff := now.Add(-retention)
	i := 0
	for ; i < len(t.events) && t.events[i].at.Before(cutoff); i++ {
	}
	if i > 0 {
		t.events = append(t.events[:0], t.events[i:]...)
	}
}

// Package lifecycle holds process-wide serving state read by the health check.
package lifecycle

import (
	"sync/atomic"
	"time"
)

var (
	draining  atomic.Bool
	startedAt atomic.Int64
)

func init() {
	MarkStarted(time.Now())
}

// SetDraining flips the drain flag. Set it when SIGTERM/SIGINT arrives so /health
// reports shutting-down while in-flight requests finish.
func SetDraining(v bool) {
	draining.Store(v)
}

func IsDraining() bool {
	return draining.Load()
}

// MarkStarted records when the server began accepting traffic.
func MarkStarted(t time.Time) {
	startedAt.Store(t.UnixNano())
}

// Uptime is the time since MarkStarted, truncated to seconds.
func Uptime(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, startedAt.Load())).Truncate(time.Second)
}

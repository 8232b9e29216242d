package traffic

import (
	"testing"
	"time"
)

// TestRequestCount_Empty verifies that RequestCount returns 0 when nothing was recorded.
func TestRequestCount_Empty(t *testing.T) {
	Reset()
	if n := RequestCount(time.Minute); n != 0 {
		t.Errorf("RequestCount() = %d, want 0", n)
	}
}

// TestRecordDenied_AndCounts verifies that denials count as requests but not toward error rate.
func TestRecordDenied_AndCounts(t *testing.T) {
	Reset()
	RecordDenied()
	RecordDenied()
	Record("weather", Success)
	if n := DenialCount(time.Minute); n != 2 {
		t.Errorf("DenialCount() = %d, want 2", n)
	}
	if n := RequestCount(time.Minute); n != 3 {
		t.Errorf("RequestCount() = %d, want 3", n)
	}
	failures, total := ErrorRate(time.Minute)
	if failures != 0 || total != 1 {
		t.Errorf("ErrorRate() = (%d, %d), want (0, 1)", failures, total)
	}
}

// TestFeedErrorRate verifies that per-feed rates only see their own feed and that
// fallbacks count as failures.
func TestFeedErrorRate(t *testing.T) {
	Reset()
	Record("weather", Success)
	Record("weather", Failure)
	Record("news", Fallback)
	Record("news", Success)
	Record("stocks", Success)

	tests := []struct {
		feed         string
		wantFailures int
		wantTotal    int
	}{
		{"weather", 1, 2},
		{"news", 1, 2},
		{"stocks", 0, 1},
		{"brief", 0, 0},
	}
	for _, tt := range tests {
		failures, total := FeedErrorRate(tt.feed, time.Minute)
		if failures != tt.wantFailures || total != tt.wantTotal {
			t.Errorf("FeedErrorRate(%q) = (%d, %d), want (%d, %d)", tt.feed, failures, total, tt.wantFailures, tt.wantTotal)
		}
	}

	failures, total := ErrorRate(time.Minute)
	if failures != 2 || total != 5 {
		t.Errorf("ErrorRate() = (%d, %d), want (2, 5)", failures, total)
	}
}

// TestTracker_WindowAndPrune verifies that events outside the window are not counted
// and events past retention are dropped.
func TestTracker_WindowAndPrune(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	tr := NewTracker()
	tr.now = func() time.Time { return now }

	tr.Record("weather", Failure)
	now = now.Add(2 * time.Minute)
	tr.Record("weather", Success)

	if failures, total := tr.ErrorRate("weather", time.Minute); failures != 0 || total != 1 {
		t.Errorf("ErrorRate(1m) = (%d, %d), want (0, 1)", failures, total)
	}
	if failures, total := tr.ErrorRate("weather", 5*time.Minute); failures != 1 || total != 2 {
		t.Errorf("ErrorRate(5m) = (%d, %d), want (1, 2)", failures, total)
	}

	now = now.Add(4 * time.Minute)
	tr.Record("news", Success)
	if got := len(tr.events); got != 2 {
		t.Errorf("len(events) after prune = %d, want 2", got)
	}
}

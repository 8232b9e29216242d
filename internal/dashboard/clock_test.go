package dashboard

import (
	"testing"
	"time"
)

// TestReadClock verifies per-location formatting and the secondary UAE clock.
func TestReadClock(t *testing.T) {
	now := time.Date(2024, 5, 1, 14, 7, 0, 0, time.UTC)
	tests := []struct {
		location  string
		wantTime  string
		wantLabel string
	}{
		{"New York", "10:07 AM", "New York"},
		{"London", "03:07 PM", "London"},
		{"Tokyo", "11:07 PM", "Tokyo"},
		{"India", "07:37 PM", "India"},
		{"UAE", "06:07 PM", "UAE"},
	}
	for _, tt := range tests {
		t.Run(tt.location, func(t *testing.T) {
			got := ReadClock(now, tt.location)
			if got.Time != tt.wantTime || got.Label != tt.wantLabel {
				t.Errorf("ReadClock(%q) = %q %q, want %q %q", tt.location, got.Time, got.Label, tt.wantTime, tt.wantLabel)
			}
			if got.Secondary != "06:07 PM" {
				t.Errorf("Secondary = %q, want 06:07 PM", got.Secondary)
			}
		})
	}
}

// TestReadClock_UnknownLocation verifies unmapped locations fall back to local time.
func TestReadClock_UnknownLocation(t *testing.T) {
	now := time.Date(2024, 5, 1, 14, 7, 0, 0, time.UTC)

	got := ReadClock(now, "Paris")
	if want := now.Local().Format("03:04 PM"); got.Time != want {
		t.Errorf("Time = %q, want local %q", got.Time, want)
	}
	if got := ReadClock(now, ""); got.Label != "Local Time" {
		t.Errorf("Label = %q, want Local Time", got.Label)
	}
	if want := now.Local().Format("Monday, January 2, 2006"); got.Date != want {
		t.Errorf("Date = %q, want %q", got.Date, want)
	}
}

// TestTimer_Countdown verifies start, pause, resume and completion.
func TestTimer_Countdown(t *testing.T) {
	tm := NewTimer()
	if got := tm.Display(); got != "00:05:00" {
		t.Fatalf("default display = %q, want 00:05:00", got)
	}

	tm.SetPreset(0, 0, 3)
	if !tm.Start() {
		t.Fatal("Start() = false")
	}
	if tm.Tick() {
		t.Fatal("completed after 1s")
	}
	if got := tm.Display(); got != "00:00:02" {
		t.Errorf("display = %q, want 00:00:02", got)
	}

	tm.Toggle()
	if tm.Tick() || tm.Display() != "00:00:02" {
		t.Errorf("paused timer advanced to %q", tm.Display())
	}
	tm.Toggle()

	if tm.Tick() {
		t.Fatal("completed after 2s")
	}
	if !tm.Tick() {
		t.Fatal("did not complete after 3s")
	}
	if tm.Active() || tm.Counting() {
		t.Error("timer still counting after completion")
	}
	if tm.Tick() {
		t.Error("completion signalled twice")
	}
	if got := tm.Display(); got != "00:00:03" {
		t.Errorf("display after completion = %q, want preset 00:00:03", got)
	}
}

// TestTimer_ResetAndZeroPreset verifies reset clears the countdown and a zero preset cannot start.
func TestTimer_ResetAndZeroPreset(t *testing.T) {
	tm := NewTimer()
	tm.SetPreset(1, 2, 3)
	tm.Start()
	tm.Tick()
	if got := tm.Display(); got != "01:02:02" {
		t.Errorf("display = %q, want 01:02:02", got)
	}
	tm.Reset()
	if tm.Counting() || tm.Display() != "01:02:03" {
		t.Errorf("after reset: counting=%v display=%q", tm.Counting(), tm.Display())
	}

	tm.SetPreset(0, -5, 0)
	if tm.Start() {
		t.Error("Start() with zero preset = true")
	}
}

package dashboard

import (
	"fmt"
	"time"
	_ "time/tzdata"
)

// SecondaryClockLocation is always shown under the main clock.
const SecondaryClockLocation = "UAE"

// zoneNames maps the locations the clock knows to IANA zones. Anything else
// shows local time.
var zoneNames = map[string]string{
	"New York": "America/New_York",
	"London":   "Europe/London",
	"Tokyo":    "Asia/Tokyo",
	"India":    "Asia/Kolkata",
	"UAE":      "Asia/Dubai",
}

// ZoneFor returns the time zone for location, or time.Local when the location is
// unknown or its zone cannot be loaded.
func ZoneFor(location string) *time.Location {
	name, ok := zoneNames[location]
	if !ok {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.Local
	}
	return loc
}

// ClockFace is what the clock panel renders.
type ClockFace struct {
	Time      string
	Label     string
	Date      string
	Secondary string
}

// ReadClock formats now for location plus the secondary UAE clock. The date is
// always local.
func ReadClock(now time.Time, location string) ClockFace {
	label := location
	if label == "" {
		label = "Local Time"
	}
	return ClockFace{
		Time:      now.In(ZoneFor(location)).Format("03:04 PM"),
		Label:     label,
		Date:      now.Local().Format("Monday, January 2, 2006"),
		Secondary: now.In(ZoneFor(SecondaryClockLocation)).Format("03:04 PM"),
	}
}

// Timer is a countdown with a preset, driven by Tick once per second.
type Timer struct {
	preset    time.Duration
	remaining time.Duration
	active    bool
}

// DefaultTimerPreset is the countdown length before the user changes it.
const DefaultTimerPreset = 5 * time.Minute

func NewTimer() *Timer {
	return &Timer{preset: DefaultTimerPreset}
}

// SetPreset changes the countdown length. Negative fields count as zero.
func (t *Timer) SetPreset(hours, minutes, seconds int) {
	t.preset = time.Duration(max(hours, 0))*time.Hour +
		time.Duration(max(minutes, 0))*time.Minute +
		time.Duration(max(seconds, 0))*time.Second
}

// Start begins counting down from the preset. A zero preset does nothing.
func (t *Timer) Start() bool {
	if t.preset <= 0 {
		return false
	}
	t.remaining = t.preset
	t.active = true
	return true
}

// Toggle pauses a running countdown or resumes a paused one.
func (t *Timer) Toggle() {
	t.active = !t.active
}

// Reset stops the countdown and clears the remaining time.
func (t *Timer) Reset() {
	t.active = false
	t.remaining = 0
}

// Tick advances one second. It returns true exactly when the countdown completes.
func (t *Timer) Tick() bool {
	if !t.active {
		return false
	}
	if t.remaining > 0 {
		t.remaining -= time.Second
	}
	if t.remaining <= 0 {
		t.remaining = 0
		t.active = false
		return true
	}
	return false
}

func (t *Timer) Active() bool { return t.active }

// Counting reports whether the countdown is running or paused mid-way.
func (t *Timer) Counting() bool { return t.active || t.remaining > 0 }

// Display shows the remaining time while counting, otherwise the preset.
func (t *Timer) Display() string {
	if t.Counting() {
		return formatHMS(t.remaining)
	}
	return formatHMS(t.preset)
}

func formatHMS(d time.Duration) string {
	s := int(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", s/3600, (s%3600)/60, s%60)
}

package scheduling

import (
	"fmt"
	"time"
)

// =============================================================================
// TIME WINDOW - Half-open interval [Start, End)
// =============================================================================

// TimeWindow is a half-open interval [Start, End). Windows that merely
// touch at an endpoint do NOT overlap: a meeting ending at 10:00 and one
// starting at 10:00 can share a room.
type TimeWindow struct {
	Start time.Time
	End   time.Time
}

func NewWindow(start, end time.Time) TimeWindow {
	return TimeWindow{Start: start, End: end}
}

// Validate rejects malformed windows before any store query is made.
func (w TimeWindow) Validate() error {
	if !w.End.After(w.Start) {
		return &InvalidWindowError{Window: w}
	}
	return nil
}

// Overlaps reports strict interval intersection under half-open semantics:
// other.Start < w.End AND other.End > w.Start.
func (w TimeWindow) Overlaps(other TimeWindow) bool {
	return other.Start.Before(w.End) && other.End.After(w.Start)
}

func (w TimeWindow) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

func (w TimeWindow) String() string {
	return fmt.Sprintf("[%s, %s)", w.Start.Format(time.RFC3339), w.End.Format(time.RFC3339))
}

// =============================================================================
// WORKING SPAN - Fixed daily span swept by the slot search
// =============================================================================

const (
	// WorkingDayStartHour is the first candidate start hour (inclusive).
	WorkingDayStartHour = 8
	// WorkingDayEndHour bounds candidate start hours (exclusive).
	WorkingDayEndHour = 20
)

// CandidateWindow builds the probe window for a given day and start hour.
// The day's own clock time is ignored; only its date matters.
func CandidateWindow(day time.Time, hour int, duration time.Duration) TimeWindow {
	start := time.Date(day.Year(), day.Month(), day.Day(), hour, 0, 0, 0, day.Location())
	return TimeWindow{Start: start, End: start.Add(duration)}
}

package breaks

import (
	"fmt"
	"time"
)

// TimeOfDay is a wall-clock time within a day, minute resolution. Break
// schedules are defined as times of day; they are anchored to a concrete date
// only when compared against a detected break.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses "HH:MM" (24-hour clock).
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q (want HH:MM): %w", s, err)
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// MinuteOfDay returns minutes since midnight.
func (t TimeOfDay) MinuteOfDay() int {
	return t.Hour*60 + t.Minute
}

// On anchors the time of day to the date of ref, in ref's location.
func (t TimeOfDay) On(ref time.Time) time.Time {
	return time.Date(ref.Year(), ref.Month(), ref.Day(), t.Hour, t.Minute, 0, 0, ref.Location())
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// BreakDefinition is one scheduled break window from the static line
// configuration. Immutable once loaded.
type BreakDefinition struct {
	ID          int
	DayOfWeek   int // 1=Monday .. 7=Sunday
	ShiftNumber int // 1-3
	Name        string
	Start       TimeOfDay
	End         TimeOfDay

	// StationID scopes the break to one station; 0 = whole line.
	StationID int
}

// DurationMinutes is derived from the scheduled window.
func (d BreakDefinition) DurationMinutes() int {
	return d.End.MinuteOfDay() - d.Start.MinuteOfDay()
}

// Validate rejects definitions that cannot describe a real break window.
func (d BreakDefinition) Validate() error {
	if d.DayOfWeek < 1 || d.DayOfWeek > 7 {
		return fmt.Errorf("break %q: day_of_week must be 1-7, got %d", d.Name, d.DayOfWeek)
	}
	if d.ShiftNumber < 1 || d.ShiftNumber > 3 {
		return fmt.Errorf("break %q: shift_number must be 1-3, got %d", d.Name, d.ShiftNumber)
	}
	if d.Name == "" {
		return fmt.Errorf("break definition requires a name")
	}
	if d.End.MinuteOfDay() <= d.Start.MinuteOfDay() {
		return fmt.Errorf("break %q: end %s must be after start %s", d.Name, d.End, d.Start)
	}
	return nil
}

// ActualBreak is a detected stoppage matched (or not) to the schedule.
// Produced by the external freeze detector; read-only here.
type ActualBreak struct {
	ID          int64
	StartTime   time.Time
	EndTime     *time.Time
	ShiftNumber int

	// ScheduledBreakID references a BreakDefinition. Nil = orphaned: the
	// detector saw a freeze in a plausible window but the schedule has no
	// matching definition.
	ScheduledBreakID *int

	DurationMinutes int
}

// ComplianceStatus values for a classified break.
const (
	StatusOnTime          = "On time"
	StatusEarlyStart      = "Early start"
	StatusLateEnd         = "Late end"
	StatusEarlyAndLate    = "Early start, late end"
	StatusUnknownSchedule = "Unknown schedule"
)

// ComplianceRow is the denormalized reporting row for one actual break.
// Compliance fields are nil for orphaned breaks: the break is still listed,
// because stoppages that don't map to the schedule are themselves signal.
type ComplianceRow struct {
	BreakStart    time.Time  `json:"break_start"`
	BreakEnd      *time.Time `json:"break_end,omitempty"`
	ShiftNumber   int        `json:"shift_number"`
	ActualMinutes int        `json:"actual_minutes"`

	BreakName        *string `json:"break_name,omitempty"`
	ScheduledMinutes *int    `json:"scheduled_minutes,omitempty"`

	// LateEndMinutes stays nil while the break is still open.
	EarlyStartMinutes *int   `json:"early_start_minutes,omitempty"`
	LateEndMinutes    *int   `json:"late_end_minutes,omitempty"`
	Status            string `json:"status"`
}

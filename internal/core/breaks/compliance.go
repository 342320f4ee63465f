package breaks

import "time"

// EarlyLateToleranceMinutes is the grace applied to both offsets: a break
// starting or ending within this many minutes of schedule counts as on time.
// Matches the plant's agreed reporting convention.
const EarlyLateToleranceMinutes = 2

// Classify produces the compliance row for one actual break against its
// matched definition. def == nil means the break is orphaned; it is reported
// with null compliance fields rather than dropped.
//
// Offsets are clamped at zero: starting late or ending early is not a
// compliance violation, only starting early and ending late are.
func Classify(actual ActualBreak, def *BreakDefinition) ComplianceRow {
	row := ComplianceRow{
		BreakStart:    actual.StartTime,
		BreakEnd:      actual.EndTime,
		ShiftNumber:   actual.ShiftNumber,
		ActualMinutes: actual.DurationMinutes,
	}

	if def == nil {
		row.Status = StatusUnknownSchedule
		return row
	}

	name := def.Name
	scheduled := def.DurationMinutes()
	row.BreakName = &name
	row.ScheduledMinutes = &scheduled

	early := offsetMinutes(def.Start.On(actual.StartTime).Sub(actual.StartTime))
	row.EarlyStartMinutes = &early

	// A break with no end time yet has no late-end measurement. Leave the
	// field nil instead of reporting a misleading zero.
	late := 0
	if actual.EndTime != nil {
		late = offsetMinutes(actual.EndTime.Sub(def.End.On(*actual.EndTime)))
		row.LateEndMinutes = &late
	}

	switch {
	case early > 0 && late > 0:
		row.Status = StatusEarlyAndLate
	case early > 0:
		row.Status = StatusEarlyStart
	case late > 0:
		row.Status = StatusLateEnd
	default:
		row.Status = StatusOnTime
	}
	return row
}

// offsetMinutes converts a positive offset to whole minutes, zeroed when
// negative or under the tolerance.
func offsetMinutes(d time.Duration) int {
	minutes := int(d.Minutes())
	if minutes < EarlyLateToleranceMinutes {
		return 0
	}
	return minutes
}

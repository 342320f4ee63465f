package v1

import (
	"fmt"
	"time"
)

// Reading kinds accepted by the ingestion API. Each kind maps to its own
// table in the raw reading store; none of them is ever mutated after insert
// except QualitySnapshot, which upserts per (shift_number, hour_index) key.

// CycleTimeReading is one observed machine cycle for a station.
// ActualSeconds excludes downtime (blocked/starved/fault): it is the running
// cycle time, not the time between parts.
type CycleTimeReading struct {
	// Time is the wall-clock timestamp of the observation (collector clock).
	Time time.Time `json:"time"`

	// StationID identifies the station (sequence) on the serial line.
	StationID int `json:"station_id"`

	// ActualSeconds is the measured cycle time. Must be >= 0.
	ActualSeconds float64 `json:"actual_seconds"`

	// TargetSeconds is the desired cycle time for the station. Must be > 0
	// when present; 0 means "not reported" and the configured station target
	// is substituted at ingest.
	TargetSeconds float64 `json:"target_seconds"`
}

// DeviationSeconds is the derived actual-minus-target deviation stored
// alongside the reading.
func (r *CycleTimeReading) DeviationSeconds() float64 {
	return r.ActualSeconds - r.TargetSeconds
}

// Validate classifies malformed cycle-time readings. A malformed reading is
// excluded from storage and aggregation but never aborts the batch it
// arrived in.
func (r *CycleTimeReading) Validate() error {
	if r.Time.IsZero() {
		return fmt.Errorf("time is required")
	}
	if r.StationID <= 0 {
		return fmt.Errorf("station_id must be positive, got %d", r.StationID)
	}
	if r.ActualSeconds < 0 {
		return fmt.Errorf("actual_seconds must be >= 0, got %v", r.ActualSeconds)
	}
	if r.TargetSeconds < 0 {
		return fmt.Errorf("target_seconds must be > 0 when present, got %v", r.TargetSeconds)
	}
	return nil
}

// AvailabilityReading is one technical-availability sample for a station.
// The downtime breakdown is optional: a station may report availability
// without fault/blocked/starved detail for a given tick.
type AvailabilityReading struct {
	Time      time.Time `json:"time"`
	StationID int       `json:"station_id"`

	// AvailabilityPct is the TA percentage in [0,100].
	AvailabilityPct float64 `json:"availability_pct"`

	// Downtime components for the current hour, in seconds. Nil = not reported.
	FaultSeconds   *float64 `json:"fault_seconds,omitempty"`
	BlockedSeconds *float64 `json:"blocked_seconds,omitempty"`
	StarvedSeconds *float64 `json:"starved_seconds,omitempty"`
}

// Validate classifies malformed availability readings.
func (r *AvailabilityReading) Validate() error {
	if r.Time.IsZero() {
		return fmt.Errorf("time is required")
	}
	if r.StationID <= 0 {
		return fmt.Errorf("station_id must be positive, got %d", r.StationID)
	}
	if r.AvailabilityPct < 0 || r.AvailabilityPct > 100 {
		return fmt.Errorf("availability_pct must be in [0,100], got %v", r.AvailabilityPct)
	}
	for name, v := range map[string]*float64{
		"fault_seconds":   r.FaultSeconds,
		"blocked_seconds": r.BlockedSeconds,
		"starved_seconds": r.StarvedSeconds,
	} {
		if v != nil && *v < 0 {
			return fmt.Errorf("%s must be >= 0, got %v", name, *v)
		}
	}
	return nil
}

// QualitySnapshot is a cumulative quality-counter snapshot for one
// (shift_number, hour_index) key. The PLC counters are cumulative within the
// hour, so a newer snapshot for the same key replaces the older one.
// Last-write-wins by Time, not an append log.
type QualitySnapshot struct {
	Time time.Time `json:"time"`

	// ShiftNumber is 1-3 (06:00-14:00, 14:00-22:00, 22:00-06:00).
	ShiftNumber int `json:"shift_number"`

	// HourIndex is the hour within the shift, 0-7.
	HourIndex int `json:"hour_index"`

	GoodParts   int `json:"good_parts"`
	RejectParts int `json:"reject_parts"`
	ReworkParts int `json:"rework_parts"`
}

// Key identifies the upsert slot for a snapshot.
type QualityKey struct {
	ShiftNumber int
	HourIndex   int
}

func (q *QualitySnapshot) Key() QualityKey {
	return QualityKey{ShiftNumber: q.ShiftNumber, HourIndex: q.HourIndex}
}

func (q *QualitySnapshot) Validate() error {
	if q.Time.IsZero() {
		return fmt.Errorf("time is required")
	}
	if q.ShiftNumber < 1 || q.ShiftNumber > 3 {
		return fmt.Errorf("shift_number must be 1-3, got %d", q.ShiftNumber)
	}
	if q.HourIndex < 0 || q.HourIndex > 7 {
		return fmt.Errorf("hour_index must be 0-7, got %d", q.HourIndex)
	}
	if q.GoodParts < 0 || q.RejectParts < 0 || q.ReworkParts < 0 {
		return fmt.Errorf("part counters must be >= 0")
	}
	return nil
}

// Connection event types mirror the acquisition layer's lifecycle.
const (
	ConnEventConnected    = "connected"
	ConnEventDisconnected = "disconnected"
	ConnEventReconnected  = "reconnected"
)

// ConnectionEvent is a diagnostic record of the acquisition layer's link to
// the plant controller. Not used in OEE math; retained for operational audit.
type ConnectionEvent struct {
	// ID is assigned server-side on ingest.
	ID string `json:"id,omitempty"`

	Time      time.Time `json:"time"`
	EventType string    `json:"event_type"`
	Endpoint  string    `json:"endpoint"`
	Details   string    `json:"details,omitempty"`
}

func (e *ConnectionEvent) Validate() error {
	if e.Time.IsZero() {
		return fmt.Errorf("time is required")
	}
	switch e.EventType {
	case ConnEventConnected, ConnEventDisconnected, ConnEventReconnected:
	default:
		return fmt.Errorf("event_type must be one of connected, disconnected, reconnected; got %q", e.EventType)
	}
	if e.Endpoint == "" {
		return fmt.Errorf("endpoint is required")
	}
	return nil
}

// BreakRecord is a detected production stoppage reported by the external
// freeze detector. The core stores and classifies it; it never creates one.
type BreakRecord struct {
	ID        int64      `json:"id,omitempty"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`

	ShiftNumber int `json:"shift_number"`

	// ScheduledBreakID links to a configured break definition. Nil = the
	// detector could not match the stoppage to the schedule (orphaned break).
	ScheduledBreakID *int `json:"scheduled_break_id,omitempty"`

	DurationMinutes int `json:"duration_minutes"`
}

func (b *BreakRecord) Validate() error {
	if b.StartTime.IsZero() {
		return fmt.Errorf("start_time is required")
	}
	if b.ShiftNumber < 1 || b.ShiftNumber > 3 {
		return fmt.Errorf("shift_number must be 1-3, got %d", b.ShiftNumber)
	}
	if b.EndTime != nil && b.EndTime.Before(b.StartTime) {
		return fmt.Errorf("end_time must not precede start_time")
	}
	return nil
}

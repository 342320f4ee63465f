package oee

// StationMetrics is the per-station input to the line calculation: the
// availability and performance aggregates for one station over the queried
// range, as produced by the time-bucket aggregator.
type StationMetrics struct {
	StationID   int
	StationName string

	AvailabilityPct float64
	PerformancePct  float64

	// Downtime breakdown (median seconds over the range). Reported for the
	// line only when this station is the bottleneck.
	FaultSeconds   float64
	BlockedSeconds float64
	StarvedSeconds float64
}

// OEEPct is the station's own OEE: Availability x Performance, expressed 0-100.
// Quality is line-level in this model (single final-station counter), so it
// does not enter the per-station figure.
func (m StationMetrics) OEEPct() float64 {
	return m.AvailabilityPct * m.PerformancePct / 100
}

// Quality is the line-level quality block derived from the final-station
// counters.
type Quality struct {
	Percent     float64 `json:"quality_pct"`
	GoodParts   int64   `json:"good_parts"`
	RejectParts int64   `json:"reject_parts"`
	ReworkParts int64   `json:"rework_parts"`

	// HasData distinguishes the optimistic 100% default (no counters in
	// range) from a measured 100%.
	HasData bool `json:"has_data"`
}

// Downtime is the bottleneck station's downtime breakdown. Breakdowns are
// never summed across stations: on a serial line, one stoppage shows up as
// blocked/starved time on every neighbor, and summing would double-count it.
type Downtime struct {
	FaultSeconds   float64 `json:"fault_seconds"`
	BlockedSeconds float64 `json:"blocked_seconds"`
	StarvedSeconds float64 `json:"starved_seconds"`
}

// LineOEE is the single line-level result: theory-of-constraints, not an
// average. The reported availability and performance are the bottleneck
// station's own values: improving a non-bottleneck station never changes
// these figures.
type LineOEE struct {
	LineOEEPct float64 `json:"line_oee_pct"`

	BottleneckStationID   int     `json:"bottleneck_station_id"`
	BottleneckStationName string  `json:"bottleneck_station_name"`
	BottleneckOEEPct      float64 `json:"bottleneck_oee_pct"`

	AvailabilityPct float64 `json:"availability_pct"`
	PerformancePct  float64 `json:"performance_pct"`

	Quality  Quality  `json:"quality"`
	Downtime Downtime `json:"downtime"`
}

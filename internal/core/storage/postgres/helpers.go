package postgres

import (
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/lib/pq"

	v1 "github.com/linepulse-lab/linepulse/internal/api/v1"
	"github.com/linepulse-lab/linepulse/internal/core/breaks"
)

func scanCycleTimeRows(rows *sql.Rows) ([]v1.CycleTimeReading, error) {
	defer rows.Close()

	var readings []v1.CycleTimeReading
	for rows.Next() {
		var r v1.CycleTimeReading
		if err := rows.Scan(&r.Time, &r.StationID, &r.ActualSeconds, &r.TargetSeconds); err != nil {
			return nil, fmt.Errorf("scan cycle time row: %w", err)
		}
		readings = append(readings, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cycle time rows: %w", err)
	}
	return readings, nil
}

// scanCompressedCycleTimeRows re-expands compressed sample arrays into
// readings stamped with the bucket time. Sample values are preserved exactly;
// only sub-minute timestamps are lost, which is invisible to aggregation at
// minute-multiple bucket widths.
func scanCompressedCycleTimeRows(rows *sql.Rows) ([]v1.CycleTimeReading, error) {
	defer rows.Close()

	var readings []v1.CycleTimeReading
	for rows.Next() {
		var (
			bucket    time.Time
			stationID int
			actuals   pq.Float64Array
			targets   pq.Float64Array
		)
		if err := rows.Scan(&bucket, &stationID, &actuals, &targets); err != nil {
			return nil, fmt.Errorf("scan compressed cycle time row: %w", err)
		}
		if len(actuals) != len(targets) {
			return nil, fmt.Errorf("compressed cycle row for station %d at %s has mismatched sample arrays", stationID, bucket)
		}
		for i := range actuals {
			readings = append(readings, v1.CycleTimeReading{
				Time:          bucket,
				StationID:     stationID,
				ActualSeconds: actuals[i],
				TargetSeconds: targets[i],
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate compressed cycle time rows: %w", err)
	}
	return readings, nil
}

func scanAvailabilityRows(rows *sql.Rows) ([]v1.AvailabilityReading, error) {
	defer rows.Close()

	var readings []v1.AvailabilityReading
	for rows.Next() {
		var (
			r                      v1.AvailabilityReading
			fault, blocked, starve sql.NullFloat64
		)
		if err := rows.Scan(&r.Time, &r.StationID, &r.AvailabilityPct, &fault, &blocked, &starve); err != nil {
			return nil, fmt.Errorf("scan availability row: %w", err)
		}
		r.FaultSeconds = floatPtr(fault)
		r.BlockedSeconds = floatPtr(blocked)
		r.StarvedSeconds = floatPtr(starve)
		readings = append(readings, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate availability rows: %w", err)
	}
	return readings, nil
}

// scanCompressedAvailabilityRows re-expands compressed availability rows.
// NaN array elements mark downtime components that were not reported and map
// back to nil pointers.
func scanCompressedAvailabilityRows(rows *sql.Rows) ([]v1.AvailabilityReading, error) {
	defer rows.Close()

	var readings []v1.AvailabilityReading
	for rows.Next() {
		var (
			bucket                  time.Time
			stationID               int
			pcts                    pq.Float64Array
			fault, blocked, starved pq.Float64Array
		)
		if err := rows.Scan(&bucket, &stationID, &pcts, &fault, &blocked, &starved); err != nil {
			return nil, fmt.Errorf("scan compressed availability row: %w", err)
		}
		if len(fault) != len(pcts) || len(blocked) != len(pcts) || len(starved) != len(pcts) {
			return nil, fmt.Errorf("compressed availability row for station %d at %s has mismatched sample arrays", stationID, bucket)
		}
		for i := range pcts {
			readings = append(readings, v1.AvailabilityReading{
				Time:            bucket,
				StationID:       stationID,
				AvailabilityPct: pcts[i],
				FaultSeconds:    sampleOrNil(fault[i]),
				BlockedSeconds:  sampleOrNil(blocked[i]),
				StarvedSeconds:  sampleOrNil(starved[i]),
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate compressed availability rows: %w", err)
	}
	return readings, nil
}

func scanBreakRows(rows *sql.Rows) ([]breaks.ActualBreak, error) {
	defer rows.Close()

	var out []breaks.ActualBreak
	for rows.Next() {
		var (
			b           breaks.ActualBreak
			end         sql.NullTime
			scheduledID sql.NullInt64
		)
		if err := rows.Scan(&b.ID, &b.StartTime, &end, &b.ShiftNumber, &scheduledID, &b.DurationMinutes); err != nil {
			return nil, fmt.Errorf("scan break row: %w", err)
		}
		if end.Valid {
			t := end.Time
			b.EndTime = &t
		}
		if scheduledID.Valid {
			id := int(scheduledID.Int64)
			b.ScheduledBreakID = &id
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate break rows: %w", err)
	}
	return out, nil
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func sampleOrNil(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}

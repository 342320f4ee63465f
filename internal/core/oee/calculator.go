package oee

import (
	"errors"

	"github.com/shopspring/decimal"
)

// ErrNoStationData is returned when no station reported availability or
// performance in the queried range. Callers must surface this as an explicit
// "no data" result: it is not a 0% line OEE.
var ErrNoStationData = errors.New("no station reported data in range")

// PerformanceRatio computes the point performance ratio for a single cycle
// reading: target / actual x 100. A non-positive actual yields 0 rather than
// a division error (skipped or glitched cycle).
func PerformanceRatio(actualSeconds, targetSeconds float64) float64 {
	if actualSeconds <= 0 {
		return 0
	}
	return targetSeconds / actualSeconds * 100
}

// QualityFromCounters reduces quality snapshots to the line quality figure:
// good / (good + reject + rework) x 100, rounded to one decimal place.
//
// Policy (explicit, not a hidden default): a zero denominator, meaning no
// snapshots in range or all counters zero, yields 100% with HasData=false.
// Absence of defect reports is treated as "no defects observed", never as
// failure.
func QualityFromCounters(good, reject, rework int64) Quality {
	q := Quality{
		GoodParts:   good,
		RejectParts: reject,
		ReworkParts: rework,
	}

	total := good + reject + rework
	if total <= 0 {
		q.Percent = 100
		q.HasData = false
		return q
	}

	pct := decimal.NewFromInt(good).
		Div(decimal.NewFromInt(total)).
		Mul(decimal.NewFromInt(100)).
		Round(1)
	q.Percent, _ = pct.Float64()
	q.HasData = true
	return q
}

// ComputeLine derives the line OEE from per-station aggregates and the line
// quality. The line is serial, so the weakest station bounds throughput:
//
//	bottleneck = argmin station OEE (ties broken by lowest station id)
//	line OEE   = bottleneck OEE x quality / 100
//
// Reported availability, performance and downtime are the bottleneck's own.
func ComputeLine(stations []StationMetrics, quality Quality) (LineOEE, error) {
	if len(stations) == 0 {
		return LineOEE{}, ErrNoStationData
	}

	bottleneck := stations[0]
	for _, s := range stations[1:] {
		if s.OEEPct() < bottleneck.OEEPct() {
			bottleneck = s
			continue
		}
		if s.OEEPct() == bottleneck.OEEPct() && s.StationID < bottleneck.StationID {
			bottleneck = s
		}
	}

	bottleneckOEE := bottleneck.OEEPct()

	return LineOEE{
		LineOEEPct:            bottleneckOEE * quality.Percent / 100,
		BottleneckStationID:   bottleneck.StationID,
		BottleneckStationName: bottleneck.StationName,
		BottleneckOEEPct:      bottleneckOEE,
		AvailabilityPct:       bottleneck.AvailabilityPct,
		PerformancePct:        bottleneck.PerformancePct,
		Quality:               quality,
		Downtime: Downtime{
			FaultSeconds:   bottleneck.FaultSeconds,
			BlockedSeconds: bottleneck.BlockedSeconds,
			StarvedSeconds: bottleneck.StarvedSeconds,
		},
	}, nil
}

package aggregation

import (
	"log/slog"
	"sort"
	"time"

	v1 "github.com/linepulse-lab/linepulse/internal/api/v1"
	"github.com/linepulse-lab/linepulse/internal/core/oee"
	"github.com/linepulse-lab/linepulse/internal/core/stats"
)

// groupCycleTimes splits readings by station, dropping and counting
// malformed rows. A zero actual is a valid stalled cycle, a negative
// actual or a non-positive target is sensor garbage.
func groupCycleTimes(readings []v1.CycleTimeReading) (map[int][]v1.CycleTimeReading, int) {
	groups := make(map[int][]v1.CycleTimeReading)
	malformed := 0
	for _, r := range readings {
		if r.ActualSeconds < 0 || r.TargetSeconds <= 0 {
			malformed++
			slog.Debug("[Aggregator] Dropping malformed cycle time",
				"station_id", r.StationID,
				"time", r.Time,
				"actual_seconds", r.ActualSeconds,
				"target_seconds", r.TargetSeconds,
			)
			continue
		}
		groups[r.StationID] = append(groups[r.StationID], r)
	}
	return groups, malformed
}

func groupAvailability(readings []v1.AvailabilityReading) (map[int][]v1.AvailabilityReading, int) {
	groups := make(map[int][]v1.AvailabilityReading)
	malformed := 0
	for _, r := range readings {
		if r.AvailabilityPct < 0 || r.AvailabilityPct > 100 || negativeComponent(r) {
			malformed++
			slog.Debug("[Aggregator] Dropping malformed availability reading",
				"station_id", r.StationID,
				"time", r.Time,
				"availability_pct", r.AvailabilityPct,
			)
			continue
		}
		groups[r.StationID] = append(groups[r.StationID], r)
	}
	return groups, malformed
}

func negativeComponent(r v1.AvailabilityReading) bool {
	for _, c := range []*float64{r.FaultSeconds, r.BlockedSeconds, r.StarvedSeconds} {
		if c != nil && *c < 0 {
			return true
		}
	}
	return false
}

// foldPerformance buckets one station's cycle times and computes the median
// of the per-reading performance ratios within each bucket.
func foldPerformance(stationID int, readings []v1.CycleTimeReading, width time.Duration) []PerformanceBucket {
	byBucket := make(map[time.Time][]v1.CycleTimeReading)
	for _, r := range readings {
		bucket := r.Time.Truncate(width)
		byBucket[bucket] = append(byBucket[bucket], r)
	}

	buckets := make([]PerformanceBucket, 0, len(byBucket))
	for start, group := range byBucket {
		ratios := make([]float64, len(group))
		actuals := make([]float64, len(group))
		targets := make([]float64, len(group))
		for i, r := range group {
			ratios[i] = oee.PerformanceRatio(r.ActualSeconds, r.TargetSeconds)
			actuals[i] = r.ActualSeconds
			targets[i] = r.TargetSeconds
		}

		medianRatio, _ := stats.Median(ratios)
		medianActual, _ := stats.Median(actuals)
		medianTarget, _ := stats.Median(targets)

		buckets = append(buckets, PerformanceBucket{
			BucketStart:          start,
			StationID:            stationID,
			MedianPerformancePct: medianRatio,
			MedianActualSeconds:  medianActual,
			MedianTargetSeconds:  medianTarget,
			SampleCount:          len(group),
		})
	}

	sort.Slice(buckets, func(i, j int) bool {
		return buckets[i].BucketStart.Before(buckets[j].BucketStart)
	})
	return buckets
}

// foldAvailability buckets one station's availability readings. Downtime
// component medians only cover the readings that reported the component.
func foldAvailability(stationID int, readings []v1.AvailabilityReading, width time.Duration) []AvailabilityBucket {
	byBucket := make(map[time.Time][]v1.AvailabilityReading)
	for _, r := range readings {
		bucket := r.Time.Truncate(width)
		byBucket[bucket] = append(byBucket[bucket], r)
	}

	buckets := make([]AvailabilityBucket, 0, len(byBucket))
	for start, group := range byBucket {
		pcts := make([]float64, len(group))
		var faults, blocked, starved []float64
		for i, r := range group {
			pcts[i] = r.AvailabilityPct
			if r.FaultSeconds != nil {
				faults = append(faults, *r.FaultSeconds)
			}
			if r.BlockedSeconds != nil {
				blocked = append(blocked, *r.BlockedSeconds)
			}
			if r.StarvedSeconds != nil {
				starved = append(starved, *r.StarvedSeconds)
			}
		}

		medianPct, _ := stats.Median(pcts)

		buckets = append(buckets, AvailabilityBucket{
			BucketStart:           start,
			StationID:             stationID,
			MedianAvailabilityPct: medianPct,
			MedianFaultSeconds:    optionalMedian(faults),
			MedianBlockedSeconds:  optionalMedian(blocked),
			MedianStarvedSeconds:  optionalMedian(starved),
			SampleCount:           len(group),
		})
	}

	sort.Slice(buckets, func(i, j int) bool {
		return buckets[i].BucketStart.Before(buckets[j].BucketStart)
	})
	return buckets
}

func optionalMedian(samples []float64) *float64 {
	m, ok := stats.Median(samples)
	if !ok {
		return nil
	}
	return &m
}

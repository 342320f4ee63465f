package aggregation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	v1 "github.com/linepulse-lab/linepulse/internal/api/v1"
	"github.com/linepulse-lab/linepulse/internal/core/storage"
)

// DefaultBucketWidth is used when a request leaves BucketWidth unset.
// One minute is the compression granularity, so results are identical
// before and after raw rows are compressed.
const DefaultBucketWidth = time.Minute

// ErrInvalidQuery marks requests that fail validation before any store access.
var ErrInvalidQuery = errors.New("invalid aggregation query")

// Request selects the time range, bucket width and optional station subset
// for an aggregation query. An empty StationIDs means all stations.
type Request struct {
	From        time.Time
	To          time.Time
	BucketWidth time.Duration
	StationIDs  []int
}

func (r Request) normalized() Request {
	n := r
	if n.BucketWidth == 0 {
		n.BucketWidth = DefaultBucketWidth
	}
	return n
}

func (r Request) validate() error {
	if r.From.IsZero() || r.To.IsZero() {
		return fmt.Errorf("%w: from and to are required", ErrInvalidQuery)
	}
	if !r.To.After(r.From) {
		return fmt.Errorf("%w: to must be after from", ErrInvalidQuery)
	}
	// Compression re-stamps samples to their minute bucket, so an unaligned
	// range would match raw rows and compressed rows differently. Rejecting
	// it keeps results identical before and after the retention cycle.
	if !r.From.Truncate(time.Minute).Equal(r.From) || !r.To.Truncate(time.Minute).Equal(r.To) {
		return fmt.Errorf("%w: from and to must be aligned to the minute", ErrInvalidQuery)
	}
	if r.BucketWidth <= 0 || r.BucketWidth%time.Minute != 0 {
		return fmt.Errorf("%w: bucket width must be a positive multiple of 1m, got %s",
			ErrInvalidQuery, r.BucketWidth)
	}
	return nil
}

// AvailabilityBucket holds the continuous medians of one station's
// availability readings within one time bucket. Downtime medians are nil
// when no reading in the bucket reported that component.
type AvailabilityBucket struct {
	BucketStart           time.Time `json:"bucket_start"`
	StationID             int       `json:"station_id"`
	MedianAvailabilityPct float64   `json:"median_availability_pct"`
	MedianFaultSeconds    *float64  `json:"median_fault_seconds,omitempty"`
	MedianBlockedSeconds  *float64  `json:"median_blocked_seconds,omitempty"`
	MedianStarvedSeconds  *float64  `json:"median_starved_seconds,omitempty"`
	SampleCount           int       `json:"sample_count"`
}

// PerformanceBucket holds the medians of one station's cycle-time readings
// within one time bucket. The performance median is the median of the
// per-reading ratios, not the ratio of the medians.
type PerformanceBucket struct {
	BucketStart          time.Time `json:"bucket_start"`
	StationID            int       `json:"station_id"`
	MedianPerformancePct float64   `json:"median_performance_pct"`
	MedianActualSeconds  float64   `json:"median_actual_seconds"`
	MedianTargetSeconds  float64   `json:"median_target_seconds"`
	SampleCount          int       `json:"sample_count"`
}

// Result is the full answer to one aggregation query. Empty buckets are
// absent rather than zero-valued.
type Result struct {
	Availability      []AvailabilityBucket `json:"availability"`
	Performance       []PerformanceBucket  `json:"performance"`
	MalformedReadings int                  `json:"malformed_readings"`
}

// Service computes time-bucketed medians over the reading store.
type Service struct {
	store storage.ReadingStore
}

func NewService(store storage.ReadingStore) *Service {
	return &Service{store: store}
}

// Query retrieves cycle-time and availability readings for the requested
// range and folds them into per-(bucket, station) medians. Malformed
// readings are excluded individually and counted; they never abort a bucket.
func (s *Service) Query(ctx context.Context, req Request) (*Result, error) {
	req = req.normalized()
	if err := req.validate(); err != nil {
		return nil, err
	}

	var (
		cycleTimes   []v1.CycleTimeReading
		availability []v1.AvailabilityReading
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		cycleTimes, err = s.store.RetrieveCycleTimes(gctx, req.From, req.To, req.StationIDs)
		if err != nil {
			return fmt.Errorf("retrieve cycle times: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		availability, err = s.store.RetrieveAvailability(gctx, req.From, req.To, req.StationIDs)
		if err != nil {
			return fmt.Errorf("retrieve availability: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	cycleGroups, cycleMalformed := groupCycleTimes(cycleTimes)
	availGroups, availMalformed := groupAvailability(availability)

	result := &Result{MalformedReadings: cycleMalformed + availMalformed}

	var mu sync.Mutex
	fold, _ := errgroup.WithContext(ctx)

	for stationID, readings := range cycleGroups {
		fold.Go(func() error {
			buckets := foldPerformance(stationID, readings, req.BucketWidth)
			mu.Lock()
			result.Performance = append(result.Performance, buckets...)
			mu.Unlock()
			return nil
		})
	}
	for stationID, readings := range availGroups {
		fold.Go(func() error {
			buckets := foldAvailability(stationID, readings, req.BucketWidth)
			mu.Lock()
			result.Availability = append(result.Availability, buckets...)
			mu.Unlock()
			return nil
		})
	}
	if err := fold.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(result.Performance, func(i, j int) bool {
		a, b := result.Performance[i], result.Performance[j]
		if !a.BucketStart.Equal(b.BucketStart) {
			return a.BucketStart.Before(b.BucketStart)
		}
		return a.StationID < b.StationID
	})
	sort.Slice(result.Availability, func(i, j int) bool {
		a, b := result.Availability[i], result.Availability[j]
		if !a.BucketStart.Equal(b.BucketStart) {
			return a.BucketStart.Before(b.BucketStart)
		}
		return a.StationID < b.StationID
	})

	if result.MalformedReadings > 0 {
		slog.Warn("[Aggregator] Excluded malformed readings",
			"count", result.MalformedReadings,
			"from", req.From,
			"to", req.To,
		)
	}

	return result, nil
}

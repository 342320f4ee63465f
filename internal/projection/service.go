package projection

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	v1 "github.com/linepulse-lab/linepulse/internal/api/v1"
	"github.com/linepulse-lab/linepulse/internal/aggregation"
	"github.com/linepulse-lab/linepulse/internal/core/breaks"
	"github.com/linepulse-lab/linepulse/internal/core/line"
	"github.com/linepulse-lab/linepulse/internal/core/oee"
	"github.com/linepulse-lab/linepulse/internal/core/stats"
	"github.com/linepulse-lab/linepulse/internal/core/storage"
	"github.com/linepulse-lab/linepulse/internal/retention"
)

// ErrInvalidQuery marks query parameters rejected before any store access.
var ErrInvalidQuery = errors.New("invalid query")

// Service is the read side: bucketed aggregates, the line OEE figure, break
// compliance rows and the retention admin surface.
type Service struct {
	aggregator *aggregation.Service
	store      storage.ReadingStore
	breakStore storage.BreakStore
	line       *line.Holder
	retention  *retention.Manager
}

func NewService(
	aggregator *aggregation.Service,
	store storage.ReadingStore,
	breakStore storage.BreakStore,
	holder *line.Holder,
	manager *retention.Manager,
) *Service {
	if aggregator == nil {
		panic("projection: aggregator must not be nil")
	}
	if store == nil {
		panic("projection: reading store must not be nil")
	}
	if breakStore == nil {
		panic("projection: break store must not be nil")
	}
	if holder == nil {
		panic("projection: line holder must not be nil")
	}
	if manager == nil {
		panic("projection: retention manager must not be nil")
	}
	return &Service{
		aggregator: aggregator,
		store:      store,
		breakStore: breakStore,
		line:       holder,
		retention:  manager,
	}
}

// Aggregates returns the bucketed medians for a range.
func (s *Service) Aggregates(ctx context.Context, req aggregation.Request) (*aggregation.Result, error) {
	return s.aggregator.Query(ctx, req)
}

// LineOEEResponse wraps the OEE figure so "no station reported" is an
// explicit shape rather than a zeroed result.
type LineOEEResponse struct {
	HasData bool `json:"has_data"`

	From time.Time `json:"from"`
	To   time.Time `json:"to"`

	*oee.LineOEE
}

// LineOEE computes the single line-level OEE over [from, to). Each station's
// availability and performance are reduced over the whole range (one bucket
// as wide as the range), then the bottleneck model is applied.
func (s *Service) LineOEE(ctx context.Context, from, to time.Time) (*LineOEEResponse, error) {
	if from.IsZero() || to.IsZero() || !to.After(from) {
		return nil, fmt.Errorf("%w: range [from, to) must be non-empty", ErrInvalidQuery)
	}
	// Same alignment rule as the aggregator: compressed rows are keyed by
	// minute bucket, so an unaligned range would drift as rows age past the
	// compression horizon.
	if !from.Truncate(time.Minute).Equal(from) || !to.Truncate(time.Minute).Equal(to) {
		return nil, fmt.Errorf("%w: from and to must be aligned to the minute", ErrInvalidQuery)
	}

	var (
		cycleTimes   []v1.CycleTimeReading
		availability []v1.AvailabilityReading
		totals       storage.QualityTotals
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		cycleTimes, err = s.store.RetrieveCycleTimes(gctx, from, to, nil)
		return err
	})
	g.Go(func() error {
		var err error
		availability, err = s.store.RetrieveAvailability(gctx, from, to, nil)
		return err
	})
	g.Go(func() error {
		var err error
		totals, err = s.store.QualityTotalsInRange(gctx, from, to)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	stations := s.stationMetrics(cycleTimes, availability)
	quality := oee.QualityFromCounters(totals.GoodParts, totals.RejectParts, totals.ReworkParts)

	result, err := oee.ComputeLine(stations, quality)
	if err != nil {
		if errors.Is(err, oee.ErrNoStationData) {
			return &LineOEEResponse{HasData: false, From: from, To: to}, nil
		}
		return nil, err
	}

	return &LineOEEResponse{HasData: true, From: from, To: to, LineOEE: &result}, nil
}

// stationMetrics reduces the raw readings to one metrics row per station.
// A station missing one of the two inputs gets 100 for it: only measured
// weakness makes a station the bottleneck, matching the optimistic quality
// default.
func (s *Service) stationMetrics(cycleTimes []v1.CycleTimeReading, availability []v1.AvailabilityReading) []oee.StationMetrics {
	type stationSamples struct {
		ratios  []float64
		pcts    []float64
		fault   []float64
		blocked []float64
		starved []float64
	}
	samples := make(map[int]*stationSamples)
	at := func(id int) *stationSamples {
		ss, ok := samples[id]
		if !ok {
			ss = &stationSamples{}
			samples[id] = ss
		}
		return ss
	}

	for i := range cycleTimes {
		r := cycleTimes[i]
		if r.ActualSeconds < 0 || r.TargetSeconds <= 0 {
			continue
		}
		at(r.StationID).ratios = append(at(r.StationID).ratios, oee.PerformanceRatio(r.ActualSeconds, r.TargetSeconds))
	}
	for i := range availability {
		r := availability[i]
		if r.AvailabilityPct < 0 || r.AvailabilityPct > 100 {
			continue
		}
		ss := at(r.StationID)
		ss.pcts = append(ss.pcts, r.AvailabilityPct)
		if r.FaultSeconds != nil && *r.FaultSeconds >= 0 {
			ss.fault = append(ss.fault, *r.FaultSeconds)
		}
		if r.BlockedSeconds != nil && *r.BlockedSeconds >= 0 {
			ss.blocked = append(ss.blocked, *r.BlockedSeconds)
		}
		if r.StarvedSeconds != nil && *r.StarvedSeconds >= 0 {
			ss.starved = append(ss.starved, *r.StarvedSeconds)
		}
	}

	cfg := s.line.Current()
	metrics := make([]oee.StationMetrics, 0, len(samples))
	for id, ss := range samples {
		m := oee.StationMetrics{
			StationID:       id,
			StationName:     stationName(cfg, id),
			AvailabilityPct: medianOr(ss.pcts, 100),
			PerformancePct:  medianOr(ss.ratios, 100),
			FaultSeconds:    medianOr(ss.fault, 0),
			BlockedSeconds:  medianOr(ss.blocked, 0),
			StarvedSeconds:  medianOr(ss.starved, 0),
		}
		metrics = append(metrics, m)
	}
	sort.Slice(metrics, func(i, j int) bool { return metrics[i].StationID < metrics[j].StationID })
	return metrics
}

func stationName(cfg *line.Line, id int) string {
	if s, ok := cfg.Station(id); ok {
		return s.Name
	}
	return fmt.Sprintf("Station %d", id)
}

func medianOr(samples []float64, fallback float64) float64 {
	m, ok := stats.Median(samples)
	if !ok {
		return fallback
	}
	return m
}

// BreakCompliance joins detected breaks to the scheduled definitions and
// classifies each one. Orphaned breaks are kept with null compliance fields.
func (s *Service) BreakCompliance(ctx context.Context, from, to time.Time, shiftNumber int) ([]breaks.ComplianceRow, error) {
	if from.IsZero() || to.IsZero() || !to.After(from) {
		return nil, fmt.Errorf("%w: range [from, to) must be non-empty", ErrInvalidQuery)
	}
	if shiftNumber < 0 || shiftNumber > 3 {
		return nil, fmt.Errorf("%w: shift must be 1-3 or omitted, got %d", ErrInvalidQuery, shiftNumber)
	}

	actuals, err := s.breakStore.RetrieveBreaks(ctx, from, to, shiftNumber)
	if err != nil {
		return nil, err
	}

	cfg := s.line.Current()
	rows := make([]breaks.ComplianceRow, 0, len(actuals))
	for _, actual := range actuals {
		var def *breaks.BreakDefinition
		if actual.ScheduledBreakID != nil {
			if d, ok := cfg.BreakDefinition(*actual.ScheduledBreakID); ok {
				def = &d
			}
		}
		rows = append(rows, breaks.Classify(actual, def))
	}
	return rows, nil
}

// RetentionPolicy returns the active schedule for one managed table.
func (s *Service) RetentionPolicy(table string) (retention.Policy, error) {
	p, ok := s.retention.Policy(table)
	if !ok {
		return retention.Policy{}, fmt.Errorf("%w: table %q is not under retention management", storage.ErrNoData, table)
	}
	return p, nil
}

// SetRetentionPolicy validates and installs a new schedule. It takes effect
// on the next retention cycle; ingestion is never interrupted.
func (s *Service) SetRetentionPolicy(p retention.Policy) error {
	return s.retention.SetPolicy(p)
}

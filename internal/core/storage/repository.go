package storage

import (
	"context"
	"errors"
	"time"

	v1 "github.com/linepulse-lab/linepulse/internal/api/v1"
	"github.com/linepulse-lab/linepulse/internal/core/breaks"
)

// ErrNoData is returned when a lookup finds no rows. Callers must treat this
// as "no information", never as a zero value.
var ErrNoData = errors.New("no data in range")

// ErrStaleSnapshot is returned when a quality snapshot carries an older
// timestamp than the stored row for its key. Last-write-wins: the stale
// snapshot is ignored, which keeps retried ingestion idempotent.
var ErrStaleSnapshot = errors.New("snapshot is older than stored row")

// QualityTotals is the reduced quality-counter view over a time range.
type QualityTotals struct {
	GoodParts   int64
	RejectParts int64
	ReworkParts int64
}

// ReadingStore owns the four raw reading kinds. Readings are append-only
// except quality snapshots, which replace per (shift_number, hour_index) key.
//
// Every method is bounded by the caller's context: a store operation that
// exceeds the caller-supplied deadline fails with the context error instead
// of hanging. The store never retries internally.
type ReadingStore interface {
	SaveCycleTimes(ctx context.Context, readings []v1.CycleTimeReading) error
	SaveAvailability(ctx context.Context, readings []v1.AvailabilityReading) error

	// GetQualitySnapshot returns the stored snapshot for a key, or ErrNoData.
	GetQualitySnapshot(ctx context.Context, key v1.QualityKey) (*v1.QualitySnapshot, error)

	// PutQualitySnapshot replaces the row for the snapshot's key. Callers
	// serialize per key and resolve last-write-wins before calling; the store
	// itself performs a plain keyed upsert.
	PutQualitySnapshot(ctx context.Context, snap *v1.QualitySnapshot) error

	SaveConnectionEvent(ctx context.Context, event *v1.ConnectionEvent) error

	// RetrieveCycleTimes returns raw plus re-expanded compressed readings in
	// [from, to), oldest first. Empty stationIDs means all stations. Results
	// are identical whether or not the underlying rows have been compressed.
	RetrieveCycleTimes(ctx context.Context, from, to time.Time, stationIDs []int) ([]v1.CycleTimeReading, error)

	// RetrieveAvailability has the same contract for availability readings.
	RetrieveAvailability(ctx context.Context, from, to time.Time, stationIDs []int) ([]v1.AvailabilityReading, error)

	// QualityTotalsInRange sums the per-key counters whose snapshot time
	// falls in [from, to). A zero total with nil error means no snapshots.
	QualityTotalsInRange(ctx context.Context, from, to time.Time) (QualityTotals, error)
}

// BreakStore persists detected breaks from the external freeze detector.
type BreakStore interface {
	// SaveBreak inserts a detected break and returns its id.
	SaveBreak(ctx context.Context, b *v1.BreakRecord) (int64, error)

	// CloseBreak records the detected end of an open break and derives its
	// duration. Returns ErrNoData if the break id is unknown.
	CloseBreak(ctx context.Context, id int64, end time.Time) error

	// RetrieveBreaks returns breaks starting in [from, to), oldest first.
	// shiftNumber 0 means all shifts.
	RetrieveBreaks(ctx context.Context, from, to time.Time, shiftNumber int) ([]breaks.ActualBreak, error)
}

// TableLifecycle is the per-table surface the retention manager drives.
// Compress and Delete are idempotent: re-running either over an already
// processed range performs no further work.
type TableLifecycle interface {
	// Compress converts raw rows older than cutoff into the compressed
	// representation and removes the originals in the same transaction.
	// Returns the number of raw rows consumed.
	Compress(ctx context.Context, cutoff time.Time) (int64, error)

	// Delete irrecoverably removes rows (raw and compressed) older than
	// cutoff. Returns the number of rows removed.
	Delete(ctx context.Context, cutoff time.Time) (int64, error)
}

package retention

import (
	"errors"
	"fmt"
	"time"
)

const (
	// DefaultCompressAfter is how long raw rows stay uncompressed.
	DefaultCompressAfter = 7 * 24 * time.Hour
	// DefaultDeleteAfter is how long any row, raw or compressed, is kept.
	DefaultDeleteAfter = 90 * 24 * time.Hour

	// liveWindowGuard keeps retention away from rows the ingestion path may
	// still be writing. Compression cutoffs never reach inside it.
	liveWindowGuard = 5 * time.Minute
)

// ErrInvalidPolicy marks retention policies that fail validation, both at
// config load and on runtime updates.
var ErrInvalidPolicy = errors.New("invalid retention policy")

// Policy is the per-table retention schedule. Rows older than CompressAfter
// are folded into sample arrays; rows older than DeleteAfter are removed.
type Policy struct {
	Table         string        `json:"table"`
	CompressAfter time.Duration `json:"compress_after"`
	DeleteAfter   time.Duration `json:"delete_after"`
}

// Validate enforces DeleteAfter >= CompressAfter >= 0 so a row can never be
// scheduled for deletion before it was eligible for compression.
func (p Policy) Validate() error {
	if p.Table == "" {
		return fmt.Errorf("%w: table name is required", ErrInvalidPolicy)
	}
	if p.CompressAfter < 0 {
		return fmt.Errorf("%w: compress_after must not be negative, got %s", ErrInvalidPolicy, p.CompressAfter)
	}
	if p.DeleteAfter < 0 {
		return fmt.Errorf("%w: delete_after must not be negative, got %s", ErrInvalidPolicy, p.DeleteAfter)
	}
	if p.DeleteAfter < p.CompressAfter {
		return fmt.Errorf("%w: delete_after %s is shorter than compress_after %s",
			ErrInvalidPolicy, p.DeleteAfter, p.CompressAfter)
	}
	return nil
}

// DefaultPolicy returns the 7d/90d schedule for a table.
func DefaultPolicy(table string) Policy {
	return Policy{
		Table:         table,
		CompressAfter: DefaultCompressAfter,
		DeleteAfter:   DefaultDeleteAfter,
	}
}

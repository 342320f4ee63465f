package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	v1 "github.com/linepulse-lab/linepulse/internal/api/v1"
	"github.com/linepulse-lab/linepulse/internal/core/breaks"
	"github.com/linepulse-lab/linepulse/internal/core/storage"
)

// SaveBreak inserts a detected break and returns its id.
func (a *Adapter) SaveBreak(ctx context.Context, b *v1.BreakRecord) (int64, error) {
	var scheduledID interface{}
	if b.ScheduledBreakID != nil {
		scheduledID = *b.ScheduledBreakID
	}
	var end interface{}
	if b.EndTime != nil {
		end = *b.EndTime
	}

	var id int64
	err := a.db.QueryRowContext(ctx, queryInsertBreak,
		b.StartTime, end, b.ShiftNumber, scheduledID, b.DurationMinutes,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert break: %w", err)
	}

	slog.Debug("[Postgres] Saved detected break",
		"break_id", id,
		"shift", b.ShiftNumber,
		"start_time", b.StartTime)
	return id, nil
}

// CloseBreak records the end of an open break; duration is derived in SQL
// from the stored start time. Unknown ids yield storage.ErrNoData.
func (a *Adapter) CloseBreak(ctx context.Context, id int64, end time.Time) error {
	res, err := a.db.ExecContext(ctx, queryCloseBreak, end, id)
	if err != nil {
		return fmt.Errorf("close break %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("close break %d: %w", id, err)
	}
	if affected == 0 {
		return storage.ErrNoData
	}
	return nil
}

// RetrieveBreaks returns breaks starting in [from, to), oldest first.
// shiftNumber 0 means all shifts.
func (a *Adapter) RetrieveBreaks(ctx context.Context, from, to time.Time, shiftNumber int) ([]breaks.ActualBreak, error) {
	rows, err := a.db.QueryContext(ctx, queryRetrieveBreaks, from, to, shiftNumber)
	if err != nil {
		return nil, fmt.Errorf("query breaks: %w", err)
	}
	return scanBreakRows(rows)
}

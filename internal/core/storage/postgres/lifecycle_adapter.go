package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/linepulse-lab/linepulse/internal/core/storage"
)

// Table names the retention manager can hold policies for.
const (
	TableCycleTimes       = "cycle_times"
	TableAvailability     = "availability"
	TableConnectionEvents = "connection_events"
)

// tableLifecycle implements storage.TableLifecycle over a pair of query
// constants. An empty compress query means the table has no compressed
// representation and Compress is a no-op.
type tableLifecycle struct {
	db            *sql.DB
	table         string
	compressQuery string
	deleteQuery   string
}

// Lifecycle returns the retention view for a known table, or an error for an
// unknown one (configuration mistake, rejected rather than ignored).
func (a *Adapter) Lifecycle(table string) (storage.TableLifecycle, error) {
	switch table {
	case TableCycleTimes:
		return &tableLifecycle{
			db:            a.db,
			table:         table,
			compressQuery: queryCompressCycleTimes,
			deleteQuery:   queryDeleteCycleTimes,
		}, nil
	case TableAvailability:
		return &tableLifecycle{
			db:            a.db,
			table:         table,
			compressQuery: queryCompressAvailability,
			deleteQuery:   queryDeleteAvailability,
		}, nil
	case TableConnectionEvents:
		// Diagnostic log: delete-only, nothing worth compressing.
		return &tableLifecycle{
			db:          a.db,
			table:       table,
			deleteQuery: queryDeleteConnectionEvents,
		}, nil
	default:
		return nil, fmt.Errorf("unknown retention table %q", table)
	}
}

// Compress moves raw rows older than cutoff into the compressed tables.
// The move and the delete of the originals are one statement, so a crash
// cannot drop or double-count samples.
func (l *tableLifecycle) Compress(ctx context.Context, cutoff time.Time) (int64, error) {
	if l.compressQuery == "" {
		return 0, nil
	}

	var moved int64
	if err := l.db.QueryRowContext(ctx, l.compressQuery, cutoff).Scan(&moved); err != nil {
		return 0, fmt.Errorf("compress %s: %w", l.table, err)
	}
	return moved, nil
}

// Delete removes raw and compressed rows older than cutoff. Irrecoverable.
func (l *tableLifecycle) Delete(ctx context.Context, cutoff time.Time) (int64, error) {
	// Delete queries that touch two tables report their count via a SELECT;
	// the single-table variant reports through RowsAffected.
	if l.table == TableConnectionEvents {
		res, err := l.db.ExecContext(ctx, l.deleteQuery, cutoff)
		if err != nil {
			return 0, fmt.Errorf("delete from %s: %w", l.table, err)
		}
		removed, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("delete from %s: %w", l.table, err)
		}
		return removed, nil
	}

	var removed int64
	if err := l.db.QueryRowContext(ctx, l.deleteQuery, cutoff).Scan(&removed); err != nil {
		return 0, fmt.Errorf("delete from %s: %w", l.table, err)
	}
	return removed, nil
}

package retention

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/linepulse-lab/linepulse/internal/core/storage"
)

// LifecycleProvider resolves the compress/delete operations for one table.
// The postgres adapter satisfies this.
type LifecycleProvider interface {
	Lifecycle(table string) (storage.TableLifecycle, error)
}

// Manager owns the retention policies and applies them on demand. Policies
// can be replaced at runtime; the next Run picks them up without any
// ingestion restart.
type Manager struct {
	provider LifecycleProvider

	mu       sync.RWMutex
	policies map[string]Policy
}

// NewManager validates and installs the initial policy set.
func NewManager(provider LifecycleProvider, policies []Policy) (*Manager, error) {
	m := &Manager{
		provider: provider,
		policies: make(map[string]Policy, len(policies)),
	}
	for _, p := range policies {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if _, err := provider.Lifecycle(p.Table); err != nil {
			return nil, fmt.Errorf("retention policy for %q: %w", p.Table, err)
		}
		m.policies[p.Table] = p
	}
	return m, nil
}

// Policy returns the current schedule for a table.
func (m *Manager) Policy(table string) (Policy, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.policies[table]
	return p, ok
}

// Policies returns all schedules sorted by table name.
func (m *Manager) Policies() []Policy {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Policy, 0, len(m.policies))
	for _, p := range m.policies {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Table < out[j].Table })
	return out
}

// SetPolicy validates and installs a new schedule for an already managed
// table. The change applies on the next retention cycle.
func (m *Manager) SetPolicy(p Policy) error {
	if err := p.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.policies[p.Table]
	if !ok {
		return fmt.Errorf("%w: table %q is not under retention management", ErrInvalidPolicy, p.Table)
	}
	m.policies[p.Table] = p

	slog.Info("[Retention] Policy updated",
		"table", p.Table,
		"compress_after", p.CompressAfter,
		"delete_after", p.DeleteAfter,
		"previous_compress_after", old.CompressAfter,
		"previous_delete_after", old.DeleteAfter,
	)
	return nil
}

// Run applies every policy once, compression before deletion. Per-table
// failures are reported together but never stop the remaining tables, and a
// rerun over the same range is a no-op.
func (m *Manager) Run(ctx context.Context, now time.Time) error {
	var firstErr error
	for _, p := range m.Policies() {
		if err := m.runTable(ctx, p, now); err != nil {
			slog.Error("[Retention] Table cycle failed", "table", p.Table, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (m *Manager) runTable(ctx context.Context, p Policy, now time.Time) error {
	lc, err := m.provider.Lifecycle(p.Table)
	if err != nil {
		return err
	}

	compressCutoff := now.Add(-p.CompressAfter)
	if guard := now.Add(-liveWindowGuard); compressCutoff.After(guard) {
		compressCutoff = guard
	}

	moved, err := lc.Compress(ctx, compressCutoff)
	if err != nil {
		return fmt.Errorf("compress %s before %s: %w", p.Table, compressCutoff.Format(time.RFC3339), err)
	}
	if moved > 0 {
		slog.Info("[Retention] Compressed raw rows",
			"table", p.Table,
			"rows_moved", moved,
			"cutoff", compressCutoff,
		)
	}

	deleteCutoff := now.Add(-p.DeleteAfter)
	removed, err := lc.Delete(ctx, deleteCutoff)
	if err != nil {
		return fmt.Errorf("delete %s before %s: %w", p.Table, deleteCutoff.Format(time.RFC3339), err)
	}
	if removed > 0 {
		slog.Info("[Retention] Deleted expired rows",
			"table", p.Table,
			"rows_removed", removed,
			"cutoff", deleteCutoff,
		)
	}

	return nil
}

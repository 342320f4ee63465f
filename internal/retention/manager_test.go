package retention

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/linepulse-lab/linepulse/internal/core/storage"
)

// fakeLifecycle records the cutoffs it was asked to apply and simulates a
// table whose rows have fixed ages relative to the test clock.
type fakeLifecycle struct {
	rowAges []time.Duration
	now     time.Time

	compressed   []time.Duration
	deleted      []time.Duration
	compressErr  error
	deleteErr    error
	compressRuns int
	deleteRuns   int
}

func (f *fakeLifecycle) Compress(_ context.Context, cutoff time.Time) (int64, error) {
	f.compressRuns++
	if f.compressErr != nil {
		return 0, f.compressErr
	}
	var moved int64
	remaining := f.rowAges[:0]
	for _, age := range f.rowAges {
		if f.now.Add(-age).Before(cutoff) {
			f.compressed = append(f.compressed, age)
			moved++
			continue
		}
		remaining = append(remaining, age)
	}
	f.rowAges = remaining
	return moved, nil
}

func (f *fakeLifecycle) Delete(_ context.Context, cutoff time.Time) (int64, error) {
	f.deleteRuns++
	if f.deleteErr != nil {
		return 0, f.deleteErr
	}
	var removed int64
	keepCompressed := f.compressed[:0]
	for _, age := range f.compressed {
		if f.now.Add(-age).Before(cutoff) {
			f.deleted = append(f.deleted, age)
			removed++
			continue
		}
		keepCompressed = append(keepCompressed, age)
	}
	f.compressed = keepCompressed
	return removed, nil
}

type fakeProvider struct {
	tables map[string]*fakeLifecycle
}

func (f *fakeProvider) Lifecycle(table string) (storage.TableLifecycle, error) {
	lc, ok := f.tables[table]
	if !ok {
		return nil, fmt.Errorf("unknown retention table %q", table)
	}
	return lc, nil
}

func day(n int) time.Duration { return time.Duration(n) * 24 * time.Hour }

func TestPolicy_Validate(t *testing.T) {
	tests := []struct {
		name    string
		policy  Policy
		wantErr bool
	}{
		{"defaults", DefaultPolicy("cycle_times"), false},
		{"compress equals delete", Policy{Table: "cycle_times", CompressAfter: day(30), DeleteAfter: day(30)}, false},
		{"zero compress keeps nothing raw", Policy{Table: "cycle_times", CompressAfter: 0, DeleteAfter: day(1)}, false},
		{"missing table", Policy{CompressAfter: day(7), DeleteAfter: day(90)}, true},
		{"negative compress", Policy{Table: "cycle_times", CompressAfter: -day(1), DeleteAfter: day(90)}, true},
		{"delete before compress", Policy{Table: "cycle_times", CompressAfter: day(90), DeleteAfter: day(7)}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.policy.Validate()
			if tc.wantErr {
				require.ErrorIs(t, err, ErrInvalidPolicy)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestManager_Run_AgeMatrix(t *testing.T) {
	now := time.Date(2026, 3, 2, 3, 0, 0, 0, time.UTC)

	// Row ages straddle both horizons: 1d stays raw, 8d compresses but
	// survives, 91d compresses and is then deleted.
	lc := &fakeLifecycle{now: now, rowAges: []time.Duration{day(1), day(8), day(91)}}
	provider := &fakeProvider{tables: map[string]*fakeLifecycle{"cycle_times": lc}}

	mgr, err := NewManager(provider, []Policy{DefaultPolicy("cycle_times")})
	require.NoError(t, err)

	require.NoError(t, mgr.Run(context.Background(), now))

	require.Equal(t, []time.Duration{day(1)}, lc.rowAges)
	require.Equal(t, []time.Duration{day(8)}, lc.compressed)
	require.Equal(t, []time.Duration{day(91)}, lc.deleted)
}

func TestManager_Run_Idempotent(t *testing.T) {
	now := time.Date(2026, 3, 2, 3, 0, 0, 0, time.UTC)

	lc := &fakeLifecycle{now: now, rowAges: []time.Duration{day(8), day(91)}}
	provider := &fakeProvider{tables: map[string]*fakeLifecycle{"cycle_times": lc}}

	mgr, err := NewManager(provider, []Policy{DefaultPolicy("cycle_times")})
	require.NoError(t, err)

	require.NoError(t, mgr.Run(context.Background(), now))
	firstCompressed := append([]time.Duration(nil), lc.compressed...)
	firstDeleted := append([]time.Duration(nil), lc.deleted...)

	require.NoError(t, mgr.Run(context.Background(), now))
	require.Equal(t, firstCompressed, lc.compressed)
	require.Equal(t, firstDeleted, lc.deleted)
	require.Equal(t, 2, lc.compressRuns)
}

func TestManager_Run_LiveWindowGuard(t *testing.T) {
	now := time.Date(2026, 3, 2, 3, 0, 0, 0, time.UTC)

	// CompressAfter of zero would otherwise compress rows written this
	// instant; the guard holds the cutoff at least five minutes back.
	lc := &fakeLifecycle{now: now, rowAges: []time.Duration{2 * time.Minute, 10 * time.Minute}}
	provider := &fakeProvider{tables: map[string]*fakeLifecycle{"availability": lc}}

	mgr, err := NewManager(provider, []Policy{
		{Table: "availability", CompressAfter: 0, DeleteAfter: day(90)},
	})
	require.NoError(t, err)

	require.NoError(t, mgr.Run(context.Background(), now))
	require.Equal(t, []time.Duration{2 * time.Minute}, lc.rowAges)
	require.Equal(t, []time.Duration{10 * time.Minute}, lc.compressed)
}

func TestManager_SetPolicy(t *testing.T) {
	provider := &fakeProvider{tables: map[string]*fakeLifecycle{"cycle_times": {}}}
	mgr, err := NewManager(provider, []Policy{DefaultPolicy("cycle_times")})
	require.NoError(t, err)

	t.Run("valid update applies", func(t *testing.T) {
		require.NoError(t, mgr.SetPolicy(Policy{Table: "cycle_times", CompressAfter: day(14), DeleteAfter: day(60)}))
		p, ok := mgr.Policy("cycle_times")
		require.True(t, ok)
		require.Equal(t, day(14), p.CompressAfter)
	})

	t.Run("invalid update rejected, previous kept", func(t *testing.T) {
		err := mgr.SetPolicy(Policy{Table: "cycle_times", CompressAfter: day(60), DeleteAfter: day(14)})
		require.ErrorIs(t, err, ErrInvalidPolicy)
		p, _ := mgr.Policy("cycle_times")
		require.Equal(t, day(14), p.CompressAfter)
	})

	t.Run("unmanaged table rejected", func(t *testing.T) {
		err := mgr.SetPolicy(Policy{Table: "quality_counters", CompressAfter: day(7), DeleteAfter: day(90)})
		require.ErrorIs(t, err, ErrInvalidPolicy)
	})
}

func TestManager_Run_ContinuesPastFailingTable(t *testing.T) {
	now := time.Date(2026, 3, 2, 3, 0, 0, 0, time.UTC)
	boom := errors.New("disk full")

	broken := &fakeLifecycle{now: now, compressErr: boom}
	healthy := &fakeLifecycle{now: now, rowAges: []time.Duration{day(8)}}
	provider := &fakeProvider{tables: map[string]*fakeLifecycle{
		"availability": broken,
		"cycle_times":  healthy,
	}}

	mgr, err := NewManager(provider, []Policy{
		DefaultPolicy("availability"),
		DefaultPolicy("cycle_times"),
	})
	require.NoError(t, err)

	err = mgr.Run(context.Background(), now)
	require.ErrorIs(t, err, boom)
	require.Equal(t, 1, healthy.compressRuns)
	require.Equal(t, []time.Duration{day(8)}, healthy.compressed)
}

func TestNewManager_RejectsInvalidInput(t *testing.T) {
	provider := &fakeProvider{tables: map[string]*fakeLifecycle{"cycle_times": {}}}

	_, err := NewManager(provider, []Policy{
		{Table: "cycle_times", CompressAfter: day(90), DeleteAfter: day(7)},
	})
	require.ErrorIs(t, err, ErrInvalidPolicy)

	_, err = NewManager(provider, []Policy{DefaultPolicy("no_such_table")})
	require.ErrorContains(t, err, "no_such_table")
}

package line

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/linepulse-lab/linepulse/internal/core/breaks"
)

func validStations() []Station {
	return []Station{
		{ID: 1, Name: "Press", TargetCycleSeconds: 17},
		{ID: 2, Name: "Weld", TargetCycleSeconds: 17},
		{ID: 3, Name: "Assembly", TargetCycleSeconds: 20},
	}
}

func TestNewLine_Validation(t *testing.T) {
	tests := []struct {
		name     string
		stations []Station
		defs     []breaks.BreakDefinition
		wantErr  string
	}{
		{
			name:     "valid config",
			stations: validStations(),
			defs: []breaks.BreakDefinition{
				{ID: 1, DayOfWeek: 1, ShiftNumber: 1, Name: "Morning break",
					Start: breaks.TimeOfDay{Hour: 8}, End: breaks.TimeOfDay{Hour: 8, Minute: 10}},
			},
		},
		{
			name: "non-positive target rejected",
			stations: []Station{
				{ID: 1, Name: "Press", TargetCycleSeconds: 0},
			},
			wantErr: "target_cycle_seconds",
		},
		{
			name: "duplicate station ids rejected",
			stations: []Station{
				{ID: 1, Name: "Press", TargetCycleSeconds: 17},
				{ID: 1, Name: "Weld", TargetCycleSeconds: 17},
			},
			wantErr: "duplicate station id",
		},
		{
			name:     "break referencing unknown station rejected",
			stations: validStations(),
			defs: []breaks.BreakDefinition{
				{ID: 1, DayOfWeek: 1, ShiftNumber: 1, Name: "Morning break", StationID: 99,
					Start: breaks.TimeOfDay{Hour: 8}, End: breaks.TimeOfDay{Hour: 8, Minute: 10}},
			},
			wantErr: "unknown station id 99",
		},
		{
			name:     "inverted break window rejected",
			stations: validStations(),
			defs: []breaks.BreakDefinition{
				{ID: 1, DayOfWeek: 1, ShiftNumber: 1, Name: "Backwards",
					Start: breaks.TimeOfDay{Hour: 9}, End: breaks.TimeOfDay{Hour: 8}},
			},
			wantErr: "must be after start",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			l, err := NewLine(tc.stations, tc.defs)
			if tc.wantErr != "" {
				require.Error(t, err)
				require.Contains(t, err.Error(), tc.wantErr)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, l)
		})
	}
}

func TestLine_Lookups(t *testing.T) {
	l, err := NewLine(validStations(), nil)
	require.NoError(t, err)

	require.Equal(t, []int{1, 2, 3}, l.StationIDs())
	require.InDelta(t, 20.0, l.TargetFor(3), 1e-9)
	require.InDelta(t, 0.0, l.TargetFor(42), 1e-9)

	s, ok := l.Station(2)
	require.True(t, ok)
	require.Equal(t, "Weld", s.Name)
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()

	stationsYAML := `
stations:
  - id: 1
    name: Press
    target_cycle_seconds: 17
  - id: 2
    name: Weld
    target_cycle_seconds: 17
`
	breaksYAML := `
breaks:
  - id: 1
    day_of_week: 1
    shift_number: 1
    name: Morning break
    start: "08:00"
    end: "08:10"
  - id: 2
    day_of_week: 1
    shift_number: 1
    name: Lunch
    start: "10:00"
    end: "10:30"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stations.yaml"), []byte(stationsYAML), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "breaks.yaml"), []byte(breaksYAML), 0o644))

	l, err := LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, l.Stations(), 2)

	defs := l.BreakDefinitions()
	require.Len(t, defs, 2)
	require.Equal(t, "Morning break", defs[0].Name)
	require.Equal(t, 10, defs[0].DurationMinutes())

	def, ok := l.BreakDefinition(2)
	require.True(t, ok)
	require.Equal(t, "Lunch", def.Name)
}

func TestLoadDir_Failures(t *testing.T) {
	t.Run("missing dir", func(t *testing.T) {
		_, err := LoadDir(filepath.Join(t.TempDir(), "nope"))
		require.Error(t, err)
	})

	t.Run("no stations declared", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "empty.yaml"), []byte("breaks: []\n"), 0o644))
		_, err := LoadDir(dir)
		require.ErrorContains(t, err, "no stations declared")
	})

	t.Run("bad break time", func(t *testing.T) {
		dir := t.TempDir()
		bad := `
stations:
  - {id: 1, name: Press, target_cycle_seconds: 17}
breaks:
  - {id: 1, day_of_week: 1, shift_number: 1, name: Oops, start: "late", end: "08:10"}
`
		require.NoError(t, os.WriteFile(filepath.Join(dir, "line.yaml"), []byte(bad), 0o644))
		_, err := LoadDir(dir)
		require.ErrorContains(t, err, "invalid time of day")
	})
}

func TestHolder_Swap(t *testing.T) {
	first, err := NewLine(validStations(), nil)
	require.NoError(t, err)

	h := NewHolder(first)
	require.Same(t, first, h.Current())

	second, err := NewLine([]Station{{ID: 9, Name: "New cell", TargetCycleSeconds: 12}}, nil)
	require.NoError(t, err)

	h.Swap(second)
	require.Same(t, second, h.Current())
	require.Equal(t, []int{9}, h.Current().StationIDs())
}

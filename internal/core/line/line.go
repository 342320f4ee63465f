package line

import (
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/linepulse-lab/linepulse/internal/core/breaks"
)

// Station is one monitored step on the serial production line.
type Station struct {
	ID   int    `yaml:"id"`
	Name string `yaml:"name"`

	// TargetCycleSeconds is the desired cycle time, used when a cycle-time
	// reading arrives without its own target. Must be > 0.
	TargetCycleSeconds float64 `yaml:"target_cycle_seconds"`
}

// Line is the immutable line configuration: active stations with display
// names and targets, plus the scheduled break definitions. Built once by the
// repository; never mutated while queries are in flight: reloads construct a
// fresh Line and swap it through a Holder.
type Line struct {
	stations  map[int]Station
	breakDefs map[int]breaks.BreakDefinition
}

// NewLine validates and assembles a line configuration.
func NewLine(stations []Station, defs []breaks.BreakDefinition) (*Line, error) {
	l := &Line{
		stations:  make(map[int]Station, len(stations)),
		breakDefs: make(map[int]breaks.BreakDefinition, len(defs)),
	}

	for _, s := range stations {
		if s.ID <= 0 {
			return nil, fmt.Errorf("station %q: id must be positive, got %d", s.Name, s.ID)
		}
		if s.Name == "" {
			return nil, fmt.Errorf("station %d requires a name", s.ID)
		}
		if s.TargetCycleSeconds <= 0 {
			return nil, fmt.Errorf("station %d (%s): target_cycle_seconds must be > 0, got %v", s.ID, s.Name, s.TargetCycleSeconds)
		}
		if _, dup := l.stations[s.ID]; dup {
			return nil, fmt.Errorf("duplicate station id %d", s.ID)
		}
		l.stations[s.ID] = s
	}

	for _, d := range defs {
		if err := d.Validate(); err != nil {
			return nil, err
		}
		if d.StationID != 0 {
			if _, ok := l.stations[d.StationID]; !ok {
				return nil, fmt.Errorf("break %q references unknown station id %d", d.Name, d.StationID)
			}
		}
		if _, dup := l.breakDefs[d.ID]; dup {
			return nil, fmt.Errorf("duplicate break definition id %d", d.ID)
		}
		l.breakDefs[d.ID] = d
	}

	return l, nil
}

// Station looks up a station by id.
func (l *Line) Station(id int) (Station, bool) {
	s, ok := l.stations[id]
	return s, ok
}

// Stations returns all configured stations ordered by id.
func (l *Line) Stations() []Station {
	out := make([]Station, 0, len(l.stations))
	for _, s := range l.stations {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// StationIDs returns the configured station ids ordered ascending.
func (l *Line) StationIDs() []int {
	ids := make([]int, 0, len(l.stations))
	for id := range l.stations {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// TargetFor returns the configured target cycle time for a station, or 0 if
// the station is unknown.
func (l *Line) TargetFor(stationID int) float64 {
	if s, ok := l.stations[stationID]; ok {
		return s.TargetCycleSeconds
	}
	return 0
}

// BreakDefinition looks up a scheduled break by id.
func (l *Line) BreakDefinition(id int) (breaks.BreakDefinition, bool) {
	d, ok := l.breakDefs[id]
	return d, ok
}

// BreakDefinitions returns all scheduled breaks ordered by (day, start).
func (l *Line) BreakDefinitions() []breaks.BreakDefinition {
	out := make([]breaks.BreakDefinition, 0, len(l.breakDefs))
	for _, d := range l.breakDefs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DayOfWeek != out[j].DayOfWeek {
			return out[i].DayOfWeek < out[j].DayOfWeek
		}
		return out[i].Start.MinuteOfDay() < out[j].Start.MinuteOfDay()
	})
	return out
}

// Holder publishes the current Line to concurrent readers. Reload constructs
// a new Line and swaps it in; in-flight queries keep the snapshot they read.
type Holder struct {
	current atomic.Pointer[Line]
}

// NewHolder creates a holder seeded with the given line.
func NewHolder(l *Line) *Holder {
	h := &Holder{}
	h.current.Store(l)
	return h
}

// Current returns the active line configuration snapshot.
func (h *Holder) Current() *Line {
	return h.current.Load()
}

// Swap atomically replaces the active configuration. Takes effect on the
// next query/job cycle; no historical data migration.
func (h *Holder) Swap(l *Line) {
	h.current.Store(l)
}

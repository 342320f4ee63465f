package line

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/linepulse-lab/linepulse/internal/core/breaks"
)

// rawBreak is the on-disk YAML shape of a break definition.
type rawBreak struct {
	ID          int    `yaml:"id"`
	DayOfWeek   int    `yaml:"day_of_week"`
	ShiftNumber int    `yaml:"shift_number"`
	Name        string `yaml:"name"`
	Start       string `yaml:"start"`
	End         string `yaml:"end"`
	StationID   int    `yaml:"station_id"`
}

// rawFile is the top-level shape of a line-config YAML file. A file may carry
// stations, breaks, or both; all *.yaml files in the directory are merged.
type rawFile struct {
	Stations []Station  `yaml:"stations"`
	Breaks   []rawBreak `yaml:"breaks"`
}

// LoadDir reads every *.yaml / *.yml file in dir, merges the declared
// stations and breaks, and returns the validated Line. Any malformed file or
// definition fails the whole load: configuration errors are rejected at load
// time, never silently coerced.
func LoadDir(dir string) (*Line, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("line config dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("line config path %q is not a directory", dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading line config dir: %w", err)
	}

	var (
		stations []Station
		defs     []breaks.BreakDefinition
	)

	for _, e := range entries {
		if e.IsDir() || (!strings.HasSuffix(e.Name(), ".yaml") && !strings.HasSuffix(e.Name(), ".yml")) {
			continue
		}

		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading line config file %s: %w", path, err)
		}

		var raw rawFile
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parsing line config file %s: %w", path, err)
		}

		stations = append(stations, raw.Stations...)

		for _, rb := range raw.Breaks {
			def, err := rb.toDefinition()
			if err != nil {
				return nil, fmt.Errorf("line config file %s: %w", path, err)
			}
			defs = append(defs, def)
		}
	}

	if len(stations) == 0 {
		return nil, fmt.Errorf("no stations declared in %q", dir)
	}

	l, err := NewLine(stations, defs)
	if err != nil {
		return nil, fmt.Errorf("invalid line configuration: %w", err)
	}
	return l, nil
}

func (rb rawBreak) toDefinition() (breaks.BreakDefinition, error) {
	start, err := breaks.ParseTimeOfDay(rb.Start)
	if err != nil {
		return breaks.BreakDefinition{}, fmt.Errorf("break %q: %w", rb.Name, err)
	}
	end, err := breaks.ParseTimeOfDay(rb.End)
	if err != nil {
		return breaks.BreakDefinition{}, fmt.Errorf("break %q: %w", rb.Name, err)
	}
	return breaks.BreakDefinition{
		ID:          rb.ID,
		DayOfWeek:   rb.DayOfWeek,
		ShiftNumber: rb.ShiftNumber,
		Name:        rb.Name,
		Start:       start,
		End:         end,
		StationID:   rb.StationID,
	}, nil
}

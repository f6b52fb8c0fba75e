package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/hazecast/air-alert-service/internal/domain"
)

// Scales bundles the tunable classification tables: pollutant breakpoints,
// index cut points, and benzene thresholds.
type Scales struct {
	Breakpoints domain.BreakpointTable
	AlertLevels domain.AlertLevels
	Benzene     domain.BenzeneScale
}

// scalesFile is the YAML override format. Every section is optional;
// omitted sections keep their defaults.
type scalesFile struct {
	Breakpoints map[string][][4]float64 `yaml:"breakpoints"`
	AlertLevels *domain.AlertLevels     `yaml:"alert_levels"`
	Benzene     *domain.BenzeneScale    `yaml:"benzene_thresholds"`
}

// LoadScales returns the default scales, overridden by the YAML file at
// path when one is configured. Breakpoint rows are 4-tuples
// [conc_lo, conc_hi, idx_lo, idx_hi] matching the published tables.
func LoadScales(path string) (Scales, error) {
	scales := Scales{
		Breakpoints: domain.DefaultBreakpoints(),
		AlertLevels: domain.DefaultAlertLevels(),
		Benzene:     domain.DefaultBenzeneScale(),
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Scales{}, fmt.Errorf("read scales file: %w", err)
		}
		var file scalesFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return Scales{}, fmt.Errorf("parse scales file: %w", err)
		}
		if len(file.Breakpoints) > 0 {
			table := make(domain.BreakpointTable, len(file.Breakpoints))
			for pollutant, rows := range file.Breakpoints {
				ranges := make([]domain.Breakpoint, len(rows))
				for i, row := range rows {
					ranges[i] = domain.Breakpoint{ConcLo: row[0], ConcHi: row[1], IdxLo: row[2], IdxHi: row[3]}
				}
				// Sample codes are uppercased at fetch time; keys must
				// match regardless of how the file spells them.
				table[strings.ToUpper(pollutant)] = ranges
			}
			scales.Breakpoints = table
		}
		if file.AlertLevels != nil {
			scales.AlertLevels = *file.AlertLevels
		}
		if file.Benzene != nil {
			scales.Benzene = *file.Benzene
		}
	}

	if err := scales.Breakpoints.Validate(); err != nil {
		return Scales{}, fmt.Errorf("breakpoints: %w", err)
	}
	if err := scales.AlertLevels.Validate(); err != nil {
		return Scales{}, err
	}
	if err := scales.Benzene.Validate(); err != nil {
		return Scales{}, err
	}

	return scales, nil
}

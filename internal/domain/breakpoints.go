package domain

import "fmt"

// Breakpoint is one concentration range mapped to a sub-index range.
type Breakpoint struct {
	ConcLo float64 `yaml:"conc_lo"`
	ConcHi float64 `yaml:"conc_hi"`
	IdxLo  float64 `yaml:"idx_lo"`
	IdxHi  float64 `yaml:"idx_hi"`
}

// BreakpointTable maps uppercase pollutant codes to their ordered
// concentration ranges. Ranges must be contiguous and non-overlapping from
// zero to the table maximum; values above the maximum clamp to the last
// range's upper sub-index.
type BreakpointTable map[string][]Breakpoint

// DefaultBreakpoints returns the national breakpoint tables. Units follow
// the Envista API: µg/m³ for particulates, ppb for gases, ppm for CO.
func DefaultBreakpoints() BreakpointTable {
	return BreakpointTable{
		"PM2.5": {
			{0, 18.5, 0, 49}, {18.5, 37.5, 50, 100}, {37.5, 84.5, 101, 200},
			{84.5, 130.5, 201, 300}, {130.5, 165.5, 301, 400}, {165.5, 200, 401, 500},
		},
		"PM10": {
			{0, 65, 0, 49}, {65, 130, 50, 100}, {130, 216, 101, 200},
			{216, 301, 201, 300}, {301, 356, 301, 400}, {356, 430, 401, 500},
		},
		"O3": {
			{0, 35, 0, 49}, {35, 71, 50, 100}, {71, 98, 101, 200},
			{98, 118, 201, 300}, {118, 156, 301, 400}, {156, 188, 401, 500},
		},
		"NO2": {
			{0, 53, 0, 49}, {53, 106, 50, 100}, {106, 161, 101, 200},
			{161, 214, 201, 300}, {214, 261, 301, 400}, {261, 316, 401, 500},
		},
		"SO2": {
			{0, 67, 0, 49}, {67, 134, 50, 100}, {134, 164, 101, 200},
			{164, 192, 201, 300}, {192, 254, 301, 400}, {254, 303, 401, 500},
		},
		"CO": {
			{0, 26, 0, 49}, {26, 52, 50, 100}, {52, 79, 101, 200},
			{79, 105, 201, 300}, {105, 131, 301, 400}, {131, 156, 401, 500},
		},
		"NOX": {
			{0, 250, 0, 49}, {250, 500, 50, 100}, {500, 751, 101, 200},
			{751, 1001, 201, 300}, {1001, 1201, 301, 400}, {1201, 1400, 401, 500},
		},
	}
}

// Validate checks every pollutant's ranges are ordered and well-formed.
func (t BreakpointTable) Validate() error {
	for pollutant, ranges := range t {
		if len(ranges) == 0 {
			return fmt.Errorf("%s: empty breakpoint table", pollutant)
		}
		for i, bp := range ranges {
			if bp.ConcHi <= bp.ConcLo {
				return fmt.Errorf("%s: range %d has conc_hi <= conc_lo", pollutant, i)
			}
			if i > 0 && bp.ConcLo < ranges[i-1].ConcHi {
				return fmt.Errorf("%s: range %d overlaps previous", pollutant, i)
			}
		}
	}
	return nil
}

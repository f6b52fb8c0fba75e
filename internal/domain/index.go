package domain

import (
	"math"
	"strings"
)

// NeutralIndex is the quality index reported when a station has no
// recognized pollutant data.
const NeutralIndex = 50

// Calculator computes quality indices and severities from configured
// breakpoint tables and scales. Zero-configuration construction via
// NewCalculator with the defaults covers the national scheme.
type Calculator struct {
	breakpoints BreakpointTable
	levels      AlertLevels
	benzene     BenzeneScale
}

// NewCalculator builds a Calculator. Nil/zero arguments select defaults.
func NewCalculator(table BreakpointTable, levels AlertLevels, benzene BenzeneScale) *Calculator {
	if table == nil {
		table = DefaultBreakpoints()
	}
	if levels == (AlertLevels{}) {
		levels = DefaultAlertLevels()
	}
	if benzene == (BenzeneScale{}) {
		benzene = DefaultBenzeneScale()
	}
	return &Calculator{breakpoints: table, levels: levels, benzene: benzene}
}

// Levels exposes the configured index cut points.
func (c *Calculator) Levels() AlertLevels { return c.levels }

// BenzeneScale exposes the configured carcinogen thresholds.
func (c *Calculator) BenzeneScale() BenzeneScale { return c.benzene }

// SubIndex interpolates one pollutant's sub-index. Ranges are scanned
// low-to-high with inclusive bounds: a concentration exactly on a boundary
// resolves to the lower range's upper endpoint. Values beyond the table
// clamp to the highest range's upper sub-index.
func SubIndex(value float64, ranges []Breakpoint) float64 {
	for _, bp := range ranges {
		if value >= bp.ConcLo && value <= bp.ConcHi {
			return bp.IdxLo + (bp.IdxHi-bp.IdxLo)*(value-bp.ConcLo)/(bp.ConcHi-bp.ConcLo)
		}
	}
	return ranges[len(ranges)-1].IdxHi
}

// QualityIndex computes the inverted index from a pollutant-value map.
// Missing and negative entries are ignored; with no usable pollutant the
// neutral default is returned. The index is 100 minus the worst sub-index,
// rounded to the nearest integer, and can go negative.
func (c *Calculator) QualityIndex(values map[string]float64) int {
	worst := math.Inf(-1)
	found := false
	for pollutant, ranges := range c.breakpoints {
		value, ok := values[pollutant]
		if !ok || value < 0 {
			continue
		}
		if sub := SubIndex(value, ranges); sub > worst {
			worst = sub
		}
		found = true
	}
	if !found {
		return NeutralIndex
	}
	return int(math.Round(100 - worst))
}

// BuildReading computes a full Reading from one station's sample set.
// Pollutant codes are normalized to uppercase; negative samples are dropped.
func (c *Calculator) BuildReading(station Station, set SampleSet) Reading {
	samples := make(map[string]Sample, len(set.Samples))
	values := make(map[string]float64, len(set.Samples))
	for code, s := range set.Samples {
		if s.Value < 0 {
			continue
		}
		code = strings.ToUpper(code)
		samples[code] = s
		values[code] = s.Value
	}

	index := c.QualityIndex(values)
	benzene := values[BenzeneCode]

	observed := set.ObservedAt
	if observed.IsZero() {
		observed = clock.Now()
	}

	return Reading{
		Station:         station,
		Samples:         samples,
		Index:           index,
		IndexSeverity:   c.levels.Classify(index),
		Benzene:         benzene,
		BenzeneSeverity: c.benzene.Classify(benzene),
		ObservedAt:      observed,
		FetchedAt:       clock.Now(),
	}
}

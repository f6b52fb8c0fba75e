package domain

import (
	"encoding/json"
	"fmt"
)

// Severity is the ordered index-scale classification. Higher is worse.
type Severity int

const (
	SeverityBest Severity = iota
	SeverityModerate
	SeverityPoor
	SeveritySevere
)

var severityNames = map[Severity]string{
	SeverityBest:     "best",
	SeverityModerate: "moderate",
	SeverityPoor:     "poor",
	SeveritySevere:   "severe",
}

func (s Severity) String() string {
	if name, ok := severityNames[s]; ok {
		return name
	}
	return fmt.Sprintf("severity(%d)", int(s))
}

// ParseSeverity resolves a stored severity label. Unknown labels are an
// error so callers can fall back to never-alerted semantics.
func ParseSeverity(name string) (Severity, error) {
	for s, n := range severityNames {
		if n == name {
			return s, nil
		}
	}
	return SeverityBest, fmt.Errorf("unknown severity %q", name)
}

// MarshalJSON encodes severities as their stable string labels.
func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Severity) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := ParseSeverity(name)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// AlertLevels holds the index cut points, one per severity a subscriber can
// choose as threshold. A reading is alert-worthy for threshold T when its
// index is strictly below the level for T, and the index classifies as
// severity S when it is at or above the level for S (falling through to
// severe). The default levels reproduce the national scale boundaries.
type AlertLevels struct {
	Best     float64 `yaml:"best"`
	Moderate float64 `yaml:"moderate"`
	Poor     float64 `yaml:"poor"`
	Severe   float64 `yaml:"severe"`
}

// DefaultAlertLevels returns the national-scale cut points.
func DefaultAlertLevels() AlertLevels {
	return AlertLevels{Best: 51, Moderate: 0, Poor: -100, Severe: -200}
}

// Validate rejects levels that break the severity ordering.
func (l AlertLevels) Validate() error {
	if l.Best > l.Moderate && l.Moderate > l.Poor && l.Poor > l.Severe {
		return nil
	}
	return fmt.Errorf("alert levels must be strictly descending: best=%g moderate=%g poor=%g severe=%g",
		l.Best, l.Moderate, l.Poor, l.Severe)
}

// Classify maps a quality index to its severity.
func (l AlertLevels) Classify(index int) Severity {
	v := float64(index)
	switch {
	case v >= l.Best:
		return SeverityBest
	case v >= l.Moderate:
		return SeverityModerate
	case v >= l.Poor:
		return SeverityPoor
	default:
		return SeveritySevere
	}
}

// ThresholdFor returns the index value below which a reading is
// alert-worthy for a subscriber with the given threshold severity.
func (l AlertLevels) ThresholdFor(threshold Severity) float64 {
	switch threshold {
	case SeverityBest:
		return l.Best
	case SeverityModerate:
		return l.Moderate
	case SeverityPoor:
		return l.Poor
	default:
		return l.Severe
	}
}

// ShouldAlertIndex reports whether the index is alert-worthy for the
// given subscriber threshold.
func (l AlertLevels) ShouldAlertIndex(index int, threshold Severity) bool {
	return float64(index) < l.ThresholdFor(threshold)
}

// BenzeneSeverity is the carcinogen channel's independent ordinal scale.
// It shares ordering with Severity but not the numeric index scale;
// BenzeneNone means no alert is warranted at all.
type BenzeneSeverity int

const (
	BenzeneNone BenzeneSeverity = iota
	BenzeneElevated
	BenzeneHigh
	BenzeneVeryHigh
	BenzeneHazardous
)

var benzeneNames = map[BenzeneSeverity]string{
	BenzeneNone:      "none",
	BenzeneElevated:  "elevated",
	BenzeneHigh:      "high",
	BenzeneVeryHigh:  "very_high",
	BenzeneHazardous: "hazardous",
}

func (b BenzeneSeverity) String() string {
	if name, ok := benzeneNames[b]; ok {
		return name
	}
	return fmt.Sprintf("benzene_severity(%d)", int(b))
}

func (b BenzeneSeverity) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.String())
}

func (b *BenzeneSeverity) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	for s, n := range benzeneNames {
		if n == name {
			*b = s
			return nil
		}
	}
	return fmt.Errorf("unknown benzene severity %q", name)
}

// OnIndexScale re-maps benzene severity onto the index severity ordinal so
// the two channels can be compared for the overall severity.
func (b BenzeneSeverity) OnIndexScale() Severity {
	switch b {
	case BenzeneElevated:
		return SeverityModerate
	case BenzeneHigh, BenzeneVeryHigh:
		return SeverityPoor
	case BenzeneHazardous:
		return SeveritySevere
	default:
		return SeverityBest
	}
}

// BenzeneScale holds the ascending ppb thresholds for the carcinogen
// channel. The WHO recognizes no safe benzene exposure level; the defaults
// follow the operational scale used by the upstream monitoring site.
type BenzeneScale struct {
	Elevated  float64 `yaml:"elevated"`
	High      float64 `yaml:"high"`
	VeryHigh  float64 `yaml:"very_high"`
	Hazardous float64 `yaml:"hazardous"`
}

// DefaultBenzeneScale returns the operational benzene thresholds in ppb.
func DefaultBenzeneScale() BenzeneScale {
	return BenzeneScale{Elevated: 1.0, High: 1.55, VeryHigh: 2.10, Hazardous: 2.64}
}

// Validate rejects scales that break the ordering.
func (s BenzeneScale) Validate() error {
	if s.Elevated > 0 && s.Elevated < s.High && s.High < s.VeryHigh && s.VeryHigh < s.Hazardous {
		return nil
	}
	return fmt.Errorf("benzene thresholds must be positive and strictly ascending: %g %g %g %g",
		s.Elevated, s.High, s.VeryHigh, s.Hazardous)
}

// Classify maps a benzene concentration to its severity. Below the lowest
// threshold the result is BenzeneNone, not "best": low benzene is the
// absence of a carcinogen alert, not a statement about air quality.
func (s BenzeneScale) Classify(ppb float64) BenzeneSeverity {
	switch {
	case ppb >= s.Hazardous:
		return BenzeneHazardous
	case ppb >= s.VeryHigh:
		return BenzeneVeryHigh
	case ppb >= s.High:
		return BenzeneHigh
	case ppb >= s.Elevated:
		return BenzeneElevated
	default:
		return BenzeneNone
	}
}

// CutoffFor returns the ppb value at or above which a reading is
// alert-worthy for a subscriber with the given threshold severity.
func (s BenzeneScale) CutoffFor(threshold Severity) float64 {
	switch threshold {
	case SeverityBest:
		return s.Elevated
	case SeverityModerate:
		return s.High
	case SeverityPoor:
		return s.VeryHigh
	default:
		return s.Hazardous
	}
}

// ShouldAlertBenzene reports whether the concentration is alert-worthy for
// the given subscriber threshold.
func (s BenzeneScale) ShouldAlertBenzene(ppb float64, threshold Severity) bool {
	return ppb >= s.CutoffFor(threshold)
}

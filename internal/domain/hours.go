package domain

import "time"

// TimeBand is one of the four fixed daily windows a subscriber opts into.
type TimeBand string

const (
	BandMorning   TimeBand = "morning"   // 06:00-12:00
	BandAfternoon TimeBand = "afternoon" // 12:00-18:00
	BandEvening   TimeBand = "evening"   // 18:00-22:00
	BandNight     TimeBand = "night"     // 22:00-06:00, wraps past midnight
)

// AllBands is the default preference for subscribers who never narrowed
// their hours.
var AllBands = []TimeBand{BandMorning, BandAfternoon, BandEvening, BandNight}

// ParseBand validates a stored band label.
func ParseBand(s string) (TimeBand, bool) {
	switch TimeBand(s) {
	case BandMorning, BandAfternoon, BandEvening, BandNight:
		return TimeBand(s), true
	}
	return "", false
}

// CurrentBand maps a local time to its band.
func CurrentBand(t time.Time) TimeBand {
	switch hour := t.Hour(); {
	case hour >= 6 && hour < 12:
		return BandMorning
	case hour >= 12 && hour < 18:
		return BandAfternoon
	case hour >= 18 && hour < 22:
		return BandEvening
	default:
		return BandNight
	}
}

// WithinHours reports whether the local time falls in one of the
// subscriber's active bands. An empty set means never.
func WithinHours(t time.Time, bands []TimeBand) bool {
	current := CurrentBand(t)
	for _, b := range bands {
		if b == current {
			return true
		}
	}
	return false
}

package engine

import (
	"fmt"

	"github.com/hazecast/air-alert-service/internal/domain"
)

// Notification kinds, used for metrics labels and audit records.
const (
	KindAlert    = "alert"
	KindImproved = "improved"
	KindBenzene  = "benzene"
)

// Plain-text bodies only. Formatting, emoji, and localisation belong to
// the registration bot, not this service.

func alertMessage(r domain.Reading, overall domain.Severity) string {
	msg := fmt.Sprintf("Air quality alert for %s: index %d (%s).",
		r.Station.DisplayName, r.Index, overall)
	if r.BenzeneSeverity != domain.BenzeneNone {
		msg += fmt.Sprintf(" Benzene %.2f ppb (%s).", r.Benzene, r.BenzeneSeverity)
	}
	return msg
}

func improvedMessage(r domain.Reading, overall domain.Severity, allClear bool) string {
	if allClear {
		return fmt.Sprintf("All clear for %s: air quality is back to %s (index %d).",
			r.Station.DisplayName, overall, r.Index)
	}
	return fmt.Sprintf("Air quality at %s improved to %s (index %d).",
		r.Station.DisplayName, overall, r.Index)
}

func benzeneMessage(r domain.Reading) string {
	return fmt.Sprintf("Benzene warning for %s: %.2f ppb (%s).",
		r.Station.DisplayName, r.Benzene, r.BenzeneSeverity)
}

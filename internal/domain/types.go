package domain

import "time"

// Region is a closed set of station regions derived from the Envista
// numeric region ids.
type Region string

const (
	RegionTelAviv   Region = "tel_aviv"
	RegionCenter    Region = "center"
	RegionJerusalem Region = "jerusalem"
	RegionHaifa     Region = "haifa"
	RegionSouth     Region = "south"
	RegionCoastal   Region = "coastal"
	RegionSharon    Region = "sharon"
	RegionNorth     Region = "north"
	RegionOther     Region = "other"
)

// regionByID maps Envista regionId values onto region codes. Unknown ids
// fall back to RegionOther.
var regionByID = map[int]Region{
	0:  RegionOther,     // mobile/other
	1:  RegionHaifa,     // Haifa Bay
	2:  RegionHaifa,     // Haifa
	3:  RegionNorth,     // Jezreel Valley
	4:  RegionSharon,    // Sharon-Carmel
	5:  RegionCenter,    // Ariel
	6:  RegionCenter,    // Inner Lowlands
	7:  RegionTelAviv,   // Gush Dan
	8:  RegionJerusalem, // Jerusalem
	9:  RegionSouth,     // Dead Sea
	10: RegionCoastal,   // Southern Coastal Plain
	11: RegionSouth,     // Negev
	12: RegionSouth,     // Eilat
	13: RegionNorth,     // North Galilee
	14: RegionNorth,     // Upper Galilee
	15: RegionNorth,     // Golan
}

// RegionFromID resolves an Envista regionId to a region code.
func RegionFromID(id int) Region {
	if r, ok := regionByID[id]; ok {
		return r
	}
	return RegionOther
}

// Station is the immutable identity of a monitoring station. Loaded from
// the sensor directory; never mutated by this service.
type Station struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	City        string `json:"city,omitempty"`
	DisplayName string `json:"display_name"`
	Region      Region `json:"region"`
}

// Sample is one pollutant measurement with its display units.
type Sample struct {
	Value float64 `json:"value"`
	Units string  `json:"units,omitempty"`
}

// SampleSet maps uppercase pollutant codes (PM2.5, O3, BENZENE, ...) to
// samples, as returned by one latest-channels fetch.
type SampleSet struct {
	Samples    map[string]Sample
	ObservedAt time.Time
}

// BenzeneCode is the pollutant code carrying the carcinogen channel.
const BenzeneCode = "BENZENE"

// Reading is a station's computed air-quality state at a point in time.
// Immutable once built; cached with a short TTL keyed by station id.
type Reading struct {
	Station         Station           `json:"station"`
	Samples         map[string]Sample `json:"samples"`
	Index           int               `json:"index"`
	IndexSeverity   Severity          `json:"index_severity"`
	Benzene         float64           `json:"benzene_ppb"`
	BenzeneSeverity BenzeneSeverity   `json:"benzene_severity"`
	ObservedAt      time.Time         `json:"observed_at"`
	FetchedAt       time.Time         `json:"fetched_at"`
}

// OverallSeverity is the worse of the index severity and the benzene
// severity re-mapped onto the index scale. This is the value notification
// decisions compare against stored alert state.
func (r Reading) OverallSeverity() Severity {
	if bz := r.BenzeneSeverity.OnIndexScale(); bz > r.IndexSeverity {
		return bz
	}
	return r.IndexSeverity
}

// Platform identifies a messaging transport.
type Platform string

const (
	PlatformWhatsApp Platform = "whatsapp"
	PlatformTelegram Platform = "telegram"
)

// Platforms lists all supported transports in resolution order.
var Platforms = []Platform{PlatformWhatsApp, PlatformTelegram}

// Subscriber is one recipient's preferences as seen by the alert engine.
// The registration flow owns these records; this service only reads them.
type Subscriber struct {
	Platform  Platform
	Recipient string // phone number or chat id, opaque to the core
	Threshold Severity
	Hours     []TimeBand
}

package envista

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hazecast/air-alert-service/internal/domain"
)

// StationLister is the station-directory side of the API client.
type StationLister interface {
	Stations(ctx context.Context) ([]domain.Station, error)
}

// Directory caches the station list for a long TTL. The directory churns
// rarely; on a refresh failure the stale copy is served rather than
// dropping the whole cycle.
type Directory struct {
	lister StationLister
	ttl    time.Duration
	log    *slog.Logger

	mu       sync.Mutex
	stations []domain.Station
	expires  time.Time
}

func NewDirectory(lister StationLister, ttl time.Duration, log *slog.Logger) *Directory {
	return &Directory{
		lister: lister,
		ttl:    ttl,
		log:    log.With("component", "station_directory"),
	}
}

// Stations returns the cached directory, refreshing it when expired.
func (d *Directory) Stations(ctx context.Context) ([]domain.Station, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := domain.Clock().Now()
	if len(d.stations) > 0 && now.Before(d.expires) {
		return d.stations, nil
	}

	stations, err := d.lister.Stations(ctx)
	if err != nil || len(stations) == 0 {
		if len(d.stations) > 0 {
			d.log.Warn("station refresh failed, serving stale directory",
				"cached", len(d.stations), "error", err)
			return d.stations, nil
		}
		return nil, err
	}

	d.stations = stations
	d.expires = now.Add(d.ttl)
	d.log.Info("station directory refreshed", "stations", len(stations))
	return stations, nil
}

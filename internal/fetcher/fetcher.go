// Package fetcher turns a station set into Readings, cache-first with
// bounded-parallel fetches for the misses.
package fetcher

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hazecast/air-alert-service/internal/domain"
	"github.com/hazecast/air-alert-service/internal/observability"
)

// Source fetches a station's latest channel values from the sensor API.
type Source interface {
	LatestSamples(ctx context.Context, station domain.Station) (domain.SampleSet, error)
}

// Cache is the short-TTL reading cache keyed by station id. A stale or
// missing entry reads back as absent.
type Cache interface {
	Reading(ctx context.Context, stationID int) (domain.Reading, bool, error)
	SetReading(ctx context.Context, reading domain.Reading, ttl time.Duration) error
}

// Fetcher produces Readings for a batch of stations. Individual fetch
// failures are silent: the station simply yields no Reading this cycle.
type Fetcher struct {
	source  Source
	cache   Cache
	calc    *domain.Calculator
	workers int
	timeout time.Duration
	ttl     time.Duration
	metrics *observability.Metrics
	log     *slog.Logger
}

func New(source Source, cache Cache, calc *domain.Calculator, workers int, timeout, ttl time.Duration, metrics *observability.Metrics, log *slog.Logger) *Fetcher {
	if workers < 1 {
		workers = 1
	}
	return &Fetcher{
		source:  source,
		cache:   cache,
		calc:    calc,
		workers: workers,
		timeout: timeout,
		ttl:     ttl,
		metrics: metrics,
		log:     log.With("component", "fetcher"),
	}
}

// Fetch returns one Reading per station that could be served from cache
// or fetched successfully, in station order. Misses are fetched with a
// bounded worker pool; each fetch carries its own timeout.
func (f *Fetcher) Fetch(ctx context.Context, stations []domain.Station) []domain.Reading {
	cached := make(map[int]domain.Reading, len(stations))
	var misses []domain.Station

	for _, station := range stations {
		reading, ok, err := f.cache.Reading(ctx, station.ID)
		if err != nil {
			f.metrics.StoreErrors.Inc()
			f.log.Warn("reading cache lookup failed", "station_id", station.ID, "error", err)
		}
		if ok {
			f.metrics.ReadingCache.WithLabelValues("hit").Inc()
			cached[station.ID] = reading
			continue
		}
		f.metrics.ReadingCache.WithLabelValues("miss").Inc()
		misses = append(misses, station)
	}

	fetched := f.fetchAll(ctx, misses)

	out := make([]domain.Reading, 0, len(cached)+len(fetched))
	for _, station := range stations {
		if reading, ok := cached[station.ID]; ok {
			out = append(out, reading)
		} else if reading, ok := fetched[station.ID]; ok {
			out = append(out, reading)
		}
	}
	return out
}

func (f *Fetcher) fetchAll(ctx context.Context, stations []domain.Station) map[int]domain.Reading {
	if len(stations) == 0 {
		return nil
	}

	jobs := make(chan domain.Station)
	results := make(chan domain.Reading, len(stations))

	var wg sync.WaitGroup
	for i := 0; i < f.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for station := range jobs {
				if reading, ok := f.fetchOne(ctx, station); ok {
					results <- reading
				}
			}
		}()
	}

	for _, station := range stations {
		select {
		case jobs <- station:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}
	}
	close(jobs)
	wg.Wait()
	close(results)

	out := make(map[int]domain.Reading, len(stations))
	for reading := range results {
		out[reading.Station.ID] = reading
	}
	return out
}

func (f *Fetcher) fetchOne(ctx context.Context, station domain.Station) (domain.Reading, bool) {
	fetchCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	start := time.Now()
	set, err := f.source.LatestSamples(fetchCtx, station)
	f.metrics.FetchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		f.metrics.FetchRequests.WithLabelValues("error").Inc()
		f.log.Warn("station fetch failed", "station_id", station.ID, "station", station.Name, "error", err)
		return domain.Reading{}, false
	}
	if len(set.Samples) == 0 {
		f.metrics.FetchRequests.WithLabelValues("empty").Inc()
		f.log.Debug("station returned no channel data", "station_id", station.ID)
		return domain.Reading{}, false
	}
	f.metrics.FetchRequests.WithLabelValues("success").Inc()

	reading := f.calc.BuildReading(station, set)
	if err := f.cache.SetReading(ctx, reading, f.ttl); err != nil {
		f.metrics.StoreErrors.Inc()
		f.log.Warn("reading cache write failed", "station_id", station.ID, "error", err)
	}
	return reading, true
}

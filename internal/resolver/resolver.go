// Package resolver enumerates the subscribers interested in a station,
// across both messaging platforms and both addressing modes (by region,
// by explicit station id).
package resolver

import (
	"context"
	"log/slog"
	"sort"

	"github.com/hazecast/air-alert-service/internal/domain"
	"github.com/hazecast/air-alert-service/internal/observability"
)

// Directory is the read side of the subscriber store. The registration
// flow owns the underlying records.
type Directory interface {
	SubscribersForRegion(ctx context.Context, region domain.Region, platform domain.Platform) ([]domain.Subscriber, error)
	SubscribersForStation(ctx context.Context, stationID int, platform domain.Platform) ([]domain.Subscriber, error)
	SubscribedRegions(ctx context.Context, platform domain.Platform) ([]domain.Region, error)
	SubscribedStationIDs(ctx context.Context, platform domain.Platform) ([]int, error)
}

// Resolver builds de-duplicated recipient lists. Lookup failures fail
// closed: a failed query contributes no subscribers rather than guessing.
type Resolver struct {
	dir     Directory
	metrics *observability.Metrics
	log     *slog.Logger
}

func New(dir Directory, metrics *observability.Metrics, log *slog.Logger) *Resolver {
	return &Resolver{dir: dir, metrics: metrics, log: log.With("component", "resolver")}
}

// ForStation returns every subscriber matched by the station's region or
// its explicit id, across both platforms. A subscriber matched both ways
// appears once. The result is ordered by (platform, recipient) so
// repeated resolutions of an unchanged registry are identical.
func (r *Resolver) ForStation(ctx context.Context, station domain.Station) []domain.Subscriber {
	seen := make(map[string]struct{})
	var out []domain.Subscriber

	add := func(subs []domain.Subscriber) {
		for _, sub := range subs {
			key := string(sub.Platform) + "\x00" + sub.Recipient
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, sub)
		}
	}

	for _, platform := range domain.Platforms {
		byRegion, err := r.dir.SubscribersForRegion(ctx, station.Region, platform)
		if err != nil {
			r.metrics.StoreErrors.Inc()
			r.log.Warn("region subscriber lookup failed",
				"platform", platform, "region", station.Region, "error", err)
		} else {
			add(byRegion)
		}

		byStation, err := r.dir.SubscribersForStation(ctx, station.ID, platform)
		if err != nil {
			r.metrics.StoreErrors.Inc()
			r.log.Warn("station subscriber lookup failed",
				"platform", platform, "station_id", station.ID, "error", err)
		} else {
			add(byStation)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Platform != out[j].Platform {
			return out[i].Platform < out[j].Platform
		}
		return out[i].Recipient < out[j].Recipient
	})

	r.metrics.SubscribersResolved.Observe(float64(len(out)))
	return out
}

// EligibleStations filters the full station directory down to stations
// some subscriber cares about: any station in a subscribed region, plus
// any station subscribed to explicitly, across both platforms.
func (r *Resolver) EligibleStations(ctx context.Context, all []domain.Station) []domain.Station {
	regions := make(map[domain.Region]struct{})
	ids := make(map[int]struct{})

	for _, platform := range domain.Platforms {
		subscribed, err := r.dir.SubscribedRegions(ctx, platform)
		if err != nil {
			r.metrics.StoreErrors.Inc()
			r.log.Warn("subscribed region lookup failed", "platform", platform, "error", err)
		}
		for _, region := range subscribed {
			regions[region] = struct{}{}
		}

		stationIDs, err := r.dir.SubscribedStationIDs(ctx, platform)
		if err != nil {
			r.metrics.StoreErrors.Inc()
			r.log.Warn("subscribed station lookup failed", "platform", platform, "error", err)
		}
		for _, id := range stationIDs {
			ids[id] = struct{}{}
		}
	}

	var out []domain.Station
	for _, station := range all {
		if _, ok := regions[station.Region]; ok {
			out = append(out, station)
			continue
		}
		if _, ok := ids[station.ID]; ok {
			out = append(out, station)
		}
	}
	return out
}

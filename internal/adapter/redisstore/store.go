// Package redisstore backs the reading cache, the subscriber directory,
// and the notification-policy state on Redis. Key layout:
//
//	reading:{stationID}                 JSON Reading, short TTL
//	users                               hash phone -> JSON prefs  (WhatsApp)
//	region:{region}                     set of phones             (WhatsApp)
//	station:{stationID}                 set of phones             (WhatsApp)
//	telegram:users                      set of chat ids
//	telegram:user:{chatID}              JSON prefs with regions/stations
//	[telegram:]last_alert:{recipient}   hash stationID -> "ts|severity"
//	[telegram:]all_clear:{recipient}    hash stationID -> ts
//	[telegram:]benzene_alert:{recipient} hash stationID -> ts
//
// State hashes get their TTL refreshed on every write, so inactive pairs
// age out instead of accumulating.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hazecast/air-alert-service/internal/domain"
)

// Store wraps a Redis client with the service's key layout.
type Store struct {
	rdb      *redis.Client
	stateTTL time.Duration
	log      *slog.Logger
}

func New(rdb *redis.Client, stateTTL time.Duration, log *slog.Logger) *Store {
	return &Store{rdb: rdb, stateTTL: stateTTL, log: log.With("component", "redisstore")}
}

// Connect parses a redis:// URL, opens a client, and verifies the
// connection with a ping.
func Connect(ctx context.Context, rawURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

// Ping reports store health for the readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func readingKey(stationID int) string {
	return fmt.Sprintf("reading:%d", stationID)
}

// Reading returns the cached reading for a station. A missing, expired,
// or undecodable entry reads back as absent.
func (s *Store) Reading(ctx context.Context, stationID int) (domain.Reading, bool, error) {
	data, err := s.rdb.Get(ctx, readingKey(stationID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Reading{}, false, nil
	}
	if err != nil {
		return domain.Reading{}, false, err
	}

	var reading domain.Reading
	if err := json.Unmarshal(data, &reading); err != nil {
		s.log.Warn("discarding undecodable cached reading", "station_id", stationID, "error", err)
		return domain.Reading{}, false, nil
	}
	return reading, true, nil
}

// SetReading caches a reading with the given TTL.
func (s *Store) SetReading(ctx context.Context, reading domain.Reading, ttl time.Duration) error {
	data, err := json.Marshal(reading)
	if err != nil {
		return err
	}
	return s.rdb.SetEx(ctx, readingKey(reading.Station.ID), data, ttl).Err()
}

// platformPrefix matches the historical key layout: WhatsApp keys are
// unprefixed, Telegram keys carry a "telegram:" prefix.
func platformPrefix(p domain.Platform) string {
	if p == domain.PlatformTelegram {
		return "telegram:"
	}
	return ""
}

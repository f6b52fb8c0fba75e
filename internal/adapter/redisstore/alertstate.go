package redisstore

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hazecast/air-alert-service/internal/domain"
	"github.com/hazecast/air-alert-service/internal/policy"
)

func (s *Store) alertKey(sub domain.Subscriber) string {
	return platformPrefix(sub.Platform) + "last_alert:" + sub.Recipient
}

func (s *Store) allClearKey(sub domain.Subscriber) string {
	return platformPrefix(sub.Platform) + "all_clear:" + sub.Recipient
}

func (s *Store) benzeneKey(sub domain.Subscriber) string {
	return platformPrefix(sub.Platform) + "benzene_alert:" + sub.Recipient
}

func stationField(stationID int) string {
	return strconv.Itoa(stationID)
}

// AlertState reads the stored "timestamp|severity" state for one
// (subscriber, station) pair. Malformed entries read back as absent so a
// corrupted value degrades to never-alerted rather than wedging the pair.
func (s *Store) AlertState(ctx context.Context, sub domain.Subscriber, stationID int) (policy.State, bool, error) {
	raw, err := s.rdb.HGet(ctx, s.alertKey(sub), stationField(stationID)).Result()
	if errors.Is(err, redis.Nil) {
		return policy.State{}, false, nil
	}
	if err != nil {
		return policy.State{}, false, err
	}

	ts, level, found := strings.Cut(raw, "|")
	if !found {
		s.log.Warn("discarding malformed alert state", "recipient", sub.Recipient, "station_id", stationID, "value", raw)
		return policy.State{}, false, nil
	}
	sentAt, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		s.log.Warn("discarding malformed alert state", "recipient", sub.Recipient, "station_id", stationID, "value", raw)
		return policy.State{}, false, nil
	}
	severity, err := domain.ParseSeverity(level)
	if err != nil {
		s.log.Warn("discarding malformed alert state", "recipient", sub.Recipient, "station_id", stationID, "value", raw)
		return policy.State{}, false, nil
	}
	return policy.State{SentAt: sentAt, Severity: severity}, true, nil
}

// SetAlertState writes the state and refreshes the hash TTL.
func (s *Store) SetAlertState(ctx context.Context, sub domain.Subscriber, stationID int, st policy.State) error {
	key := s.alertKey(sub)
	value := st.SentAt.Format(time.RFC3339) + "|" + st.Severity.String()
	if err := s.rdb.HSet(ctx, key, stationField(stationID), value).Err(); err != nil {
		return err
	}
	return s.rdb.Expire(ctx, key, s.stateTTL).Err()
}

// BenzeneAlertAt reads the benzene-channel cooldown timestamp.
func (s *Store) BenzeneAlertAt(ctx context.Context, sub domain.Subscriber, stationID int) (time.Time, bool, error) {
	raw, err := s.rdb.HGet(ctx, s.benzeneKey(sub), stationField(stationID)).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	at, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false, nil
	}
	return at, true, nil
}

// SetBenzeneAlertAt stamps the benzene-channel cooldown.
func (s *Store) SetBenzeneAlertAt(ctx context.Context, sub domain.Subscriber, stationID int, at time.Time) error {
	key := s.benzeneKey(sub)
	if err := s.rdb.HSet(ctx, key, stationField(stationID), at.Format(time.RFC3339)).Err(); err != nil {
		return err
	}
	return s.rdb.Expire(ctx, key, s.stateTTL).Err()
}

// AllClearSent reports whether the one-shot all-clear already fired for
// this pair.
func (s *Store) AllClearSent(ctx context.Context, sub domain.Subscriber, stationID int) (bool, error) {
	err := s.rdb.HGet(ctx, s.allClearKey(sub), stationField(stationID)).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// SetAllClearSent raises the one-shot all-clear flag.
func (s *Store) SetAllClearSent(ctx context.Context, sub domain.Subscriber, stationID int) error {
	key := s.allClearKey(sub)
	now := domain.Clock().Now().Format(time.RFC3339)
	if err := s.rdb.HSet(ctx, key, stationField(stationID), now).Err(); err != nil {
		return err
	}
	return s.rdb.Expire(ctx, key, s.stateTTL).Err()
}

// ClearAllClear drops the flag when a fresh alert goes out.
func (s *Store) ClearAllClear(ctx context.Context, sub domain.Subscriber, stationID int) error {
	return s.rdb.HDel(ctx, s.allClearKey(sub), stationField(stationID)).Err()
}

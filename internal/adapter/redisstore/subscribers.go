package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/hazecast/air-alert-service/internal/domain"
)

// userRecord is the stored preference document. The registration flow
// writes these; this service only reads them, except to flip Active off
// after a permanent delivery failure.
type userRecord struct {
	Level    string   `json:"level,omitempty"`
	Hours    []string `json:"hours,omitempty"`
	Active   *bool    `json:"active,omitempty"`
	Regions  []string `json:"regions,omitempty"`
	Stations []int    `json:"stations,omitempty"`
}

func (u userRecord) active() bool {
	return u.Active == nil || *u.Active
}

// subscriber converts a stored record into domain preferences. Missing
// or unknown fields fall back to a moderate threshold with all hours,
// matching the registration flow's defaults.
func (u userRecord) subscriber(platform domain.Platform, recipient string) domain.Subscriber {
	sub := domain.Subscriber{
		Platform:  platform,
		Recipient: recipient,
		Threshold: domain.SeverityModerate,
		Hours:     domain.AllBands,
	}
	if level, err := domain.ParseSeverity(u.Level); err == nil {
		sub.Threshold = level
	}
	if len(u.Hours) > 0 {
		var bands []domain.TimeBand
		for _, h := range u.Hours {
			if band, ok := domain.ParseBand(h); ok {
				bands = append(bands, band)
			}
		}
		if len(bands) > 0 {
			sub.Hours = bands
		}
	}
	return sub
}

// SubscribersForRegion returns active subscribers registered for a region.
func (s *Store) SubscribersForRegion(ctx context.Context, region domain.Region, platform domain.Platform) ([]domain.Subscriber, error) {
	switch platform {
	case domain.PlatformWhatsApp:
		phones, err := s.rdb.SMembers(ctx, "region:"+string(region)).Result()
		if err != nil {
			return nil, err
		}
		return s.whatsappSubscribers(ctx, phones)
	case domain.PlatformTelegram:
		return s.telegramSubscribers(ctx, func(u userRecord) bool {
			for _, r := range u.Regions {
				if domain.Region(r) == region {
					return true
				}
			}
			return false
		})
	}
	return nil, fmt.Errorf("unknown platform %q", platform)
}

// SubscribersForStation returns active subscribers registered for an
// explicit station id.
func (s *Store) SubscribersForStation(ctx context.Context, stationID int, platform domain.Platform) ([]domain.Subscriber, error) {
	switch platform {
	case domain.PlatformWhatsApp:
		phones, err := s.rdb.SMembers(ctx, fmt.Sprintf("station:%d", stationID)).Result()
		if err != nil {
			return nil, err
		}
		return s.whatsappSubscribers(ctx, phones)
	case domain.PlatformTelegram:
		return s.telegramSubscribers(ctx, func(u userRecord) bool {
			for _, id := range u.Stations {
				if id == stationID {
					return true
				}
			}
			return false
		})
	}
	return nil, fmt.Errorf("unknown platform %q", platform)
}

// SubscribedRegions returns every region at least one active subscriber
// cares about.
func (s *Store) SubscribedRegions(ctx context.Context, platform domain.Platform) ([]domain.Region, error) {
	switch platform {
	case domain.PlatformWhatsApp:
		keys, err := s.scanKeys(ctx, "region:*")
		if err != nil {
			return nil, err
		}
		var regions []domain.Region
		for _, key := range keys {
			n, err := s.rdb.SCard(ctx, key).Result()
			if err != nil {
				return nil, err
			}
			if n > 0 {
				regions = append(regions, domain.Region(strings.TrimPrefix(key, "region:")))
			}
		}
		return regions, nil
	case domain.PlatformTelegram:
		seen := make(map[domain.Region]struct{})
		var regions []domain.Region
		err := s.forEachTelegramUser(ctx, func(_ string, u userRecord) {
			for _, r := range u.Regions {
				region := domain.Region(r)
				if _, dup := seen[region]; !dup {
					seen[region] = struct{}{}
					regions = append(regions, region)
				}
			}
		})
		return regions, err
	}
	return nil, fmt.Errorf("unknown platform %q", platform)
}

// SubscribedStationIDs returns every explicitly subscribed station id.
func (s *Store) SubscribedStationIDs(ctx context.Context, platform domain.Platform) ([]int, error) {
	switch platform {
	case domain.PlatformWhatsApp:
		keys, err := s.scanKeys(ctx, "station:*")
		if err != nil {
			return nil, err
		}
		var ids []int
		for _, key := range keys {
			id, err := strconv.Atoi(strings.TrimPrefix(key, "station:"))
			if err != nil {
				continue
			}
			n, err := s.rdb.SCard(ctx, key).Result()
			if err != nil {
				return nil, err
			}
			if n > 0 {
				ids = append(ids, id)
			}
		}
		return ids, nil
	case domain.PlatformTelegram:
		seen := make(map[int]struct{})
		var ids []int
		err := s.forEachTelegramUser(ctx, func(_ string, u userRecord) {
			for _, id := range u.Stations {
				if _, dup := seen[id]; !dup {
					seen[id] = struct{}{}
					ids = append(ids, id)
				}
			}
		})
		return ids, err
	}
	return nil, fmt.Errorf("unknown platform %q", platform)
}

// Deactivate flips a subscriber's active flag off, so future resolution
// skips them. Used after a permanent delivery failure.
func (s *Store) Deactivate(ctx context.Context, sub domain.Subscriber) error {
	inactive := false
	switch sub.Platform {
	case domain.PlatformTelegram:
		key := "telegram:user:" + sub.Recipient
		data, err := s.rdb.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		var record userRecord
		if err := json.Unmarshal(data, &record); err != nil {
			return fmt.Errorf("decode user record: %w", err)
		}
		record.Active = &inactive
		updated, err := json.Marshal(record)
		if err != nil {
			return err
		}
		return s.rdb.Set(ctx, key, updated, 0).Err()
	case domain.PlatformWhatsApp:
		data, err := s.rdb.HGet(ctx, "users", sub.Recipient).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		var record userRecord
		if err := json.Unmarshal(data, &record); err != nil {
			return fmt.Errorf("decode user record: %w", err)
		}
		record.Active = &inactive
		updated, err := json.Marshal(record)
		if err != nil {
			return err
		}
		return s.rdb.HSet(ctx, "users", sub.Recipient, updated).Err()
	}
	return fmt.Errorf("unknown platform %q", sub.Platform)
}

func (s *Store) whatsappSubscribers(ctx context.Context, phones []string) ([]domain.Subscriber, error) {
	subs := make([]domain.Subscriber, 0, len(phones))
	for _, phone := range phones {
		var record userRecord
		data, err := s.rdb.HGet(ctx, "users", phone).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
			// Registered in a region set before preferences existed;
			// defaults apply.
		case err != nil:
			return nil, err
		default:
			if err := json.Unmarshal(data, &record); err != nil {
				s.log.Warn("skipping undecodable user record", "recipient", phone, "error", err)
				continue
			}
		}
		if !record.active() {
			continue
		}
		subs = append(subs, record.subscriber(domain.PlatformWhatsApp, phone))
	}
	return subs, nil
}

func (s *Store) telegramSubscribers(ctx context.Context, match func(userRecord) bool) ([]domain.Subscriber, error) {
	var subs []domain.Subscriber
	err := s.forEachTelegramUser(ctx, func(chatID string, u userRecord) {
		if match(u) {
			subs = append(subs, u.subscriber(domain.PlatformTelegram, chatID))
		}
	})
	return subs, err
}

// forEachTelegramUser invokes fn for every active telegram user record.
// Undecodable records are skipped.
func (s *Store) forEachTelegramUser(ctx context.Context, fn func(chatID string, u userRecord)) error {
	chatIDs, err := s.rdb.SMembers(ctx, "telegram:users").Result()
	if err != nil {
		return err
	}
	for _, chatID := range chatIDs {
		data, err := s.rdb.Get(ctx, "telegram:user:"+chatID).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return err
		}
		var record userRecord
		if err := json.Unmarshal(data, &record); err != nil {
			s.log.Warn("skipping undecodable user record", "recipient", chatID, "error", err)
			continue
		}
		if !record.active() {
			continue
		}
		fn(chatID, record)
	}
	return nil
}

func (s *Store) scanKeys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	var cursor uint64
	for {
		batch, next, err := s.rdb.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, err
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			return keys, nil
		}
	}
}

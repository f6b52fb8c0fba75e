// Package envista talks to the national air-monitoring API: the station
// directory and per-station latest channel values. API tokens are
// scraped from the public site because the API issues none directly.
package envista

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hazecast/air-alert-service/internal/domain"
)

// Client implements fetcher.Source against the Envista API.
type Client struct {
	baseURL    string
	tokens     *TokenProvider
	httpClient *http.Client
	log        *slog.Logger
}

func NewClient(baseURL string, tokens *TokenProvider, timeout time.Duration, log *slog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		tokens:     tokens,
		httpClient: &http.Client{Timeout: timeout},
		log:        log.With("component", "envista"),
	}
}

// LatestSamples fetches a station's most recent channel values. Only
// channels flagged valid with a present value are kept; codes are
// uppercased to match the breakpoint table.
func (c *Client) LatestSamples(ctx context.Context, station domain.Station) (domain.SampleSet, error) {
	u := fmt.Sprintf("%s/stations/%d/data/latest", c.baseURL, station.ID)

	var payload latestResponse
	if err := c.getJSON(ctx, u, &payload); err != nil {
		return domain.SampleSet{}, err
	}
	if len(payload.Data) == 0 {
		return domain.SampleSet{}, nil
	}

	entry := payload.Data[0]
	set := domain.SampleSet{Samples: make(map[string]domain.Sample)}
	for _, ch := range entry.Channels {
		if ch.Value == nil || !ch.Valid || ch.Name == "" {
			continue
		}
		set.Samples[strings.ToUpper(ch.Name)] = domain.Sample{Value: *ch.Value, Units: ch.Units}
	}

	if entry.Datetime != "" {
		if ts, err := time.Parse(time.RFC3339, entry.Datetime); err == nil {
			set.ObservedAt = ts
		}
	}
	return set, nil
}

// Stations fetches the station directory, skipping inactive stations.
// Display names are "Name, City" when the city adds information.
func (c *Client) Stations(ctx context.Context) ([]domain.Station, error) {
	var payload []stationResponse
	if err := c.getJSON(ctx, c.baseURL+"/stations", &payload); err != nil {
		return nil, err
	}

	stations := make([]domain.Station, 0, len(payload))
	for _, s := range payload {
		if !s.Active {
			continue
		}
		station := domain.Station{
			ID:          s.StationID,
			Name:        s.Name,
			DisplayName: s.Name,
			Region:      domain.RegionFromID(s.RegionID),
		}
		// The API reports city as null, "", or the literal string "None"
		// for stations without one.
		if s.City != "" && s.City != "None" && s.City != s.Name {
			station.City = s.City
			station.DisplayName = s.Name + ", " + s.City
		}
		stations = append(stations, station)
	}
	return stations, nil
}

func (c *Client) getJSON(ctx context.Context, fullURL string, out any) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("api token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "ApiToken "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("envista request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("envista API error: status %d: %s", resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Envista API response types.

type latestResponse struct {
	Data []latestEntry `json:"data"`
}

type latestEntry struct {
	Datetime string    `json:"datetime"`
	Channels []channel `json:"channels"`
}

type channel struct {
	Name  string   `json:"name"`
	Alias string   `json:"alias"`
	Value *float64 `json:"value"`
	Valid bool     `json:"valid"`
	Units string   `json:"units"`
}

type stationResponse struct {
	StationID int    `json:"stationId"`
	Name      string `json:"name"`
	City      string `json:"city"`
	Active    bool   `json:"active"`
	RegionID  int    `json:"regionId"`
}

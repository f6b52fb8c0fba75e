package envista

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"sync"
	"time"

	"github.com/hazecast/air-alert-service/internal/domain"
)

// The public site embeds its API token in a bootstrap script. Tokens
// rotate every few minutes, so scraped values are cached briefly.
var tokenPattern = regexp.MustCompile(`"Authorization":\s*['"]ApiToken ([a-f0-9-]+)['"]`)

// TokenProvider scrapes API tokens from the monitoring site, caching
// each scrape for a short TTL. A configured fallback token is returned
// when scraping fails.
type TokenProvider struct {
	siteURL    string
	fallback   string
	ttl        time.Duration
	httpClient *http.Client
	log        *slog.Logger

	mu      sync.Mutex
	token   string
	expires time.Time
}

func NewTokenProvider(siteURL, fallback string, ttl, timeout time.Duration, log *slog.Logger) *TokenProvider {
	return &TokenProvider{
		siteURL:    siteURL,
		fallback:   fallback,
		ttl:        ttl,
		httpClient: &http.Client{Timeout: timeout},
		log:        log.With("component", "envista_token"),
	}
}

// Token returns a usable API token: the cached scrape if still fresh,
// otherwise a new scrape, otherwise the fallback.
func (p *TokenProvider) Token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := domain.Clock().Now()
	if p.token != "" && now.Before(p.expires) {
		return p.token, nil
	}

	token, err := p.scrape(ctx)
	if err != nil {
		if p.fallback != "" {
			p.log.Warn("token scrape failed, using fallback token", "error", err)
			return p.fallback, nil
		}
		return "", err
	}

	p.token = token
	p.expires = now.Add(p.ttl)
	return token, nil
}

func (p *TokenProvider) scrape(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.siteURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch site: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("site returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read site body: %w", err)
	}

	match := tokenPattern.FindSubmatch(body)
	if match == nil {
		return "", fmt.Errorf("no API token found in site body")
	}
	return string(match[1]), nil
}

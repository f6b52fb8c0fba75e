package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Key-value store.
	RedisURL string
	StateTTL time.Duration // alert-state retention

	// Envista sensor API.
	APIBaseURL     string
	SiteURL        string
	FallbackToken  string
	TokenCacheTTL  time.Duration
	StationTTL     time.Duration
	FetchTimeout   time.Duration
	StationTimeout time.Duration
	FetchWorkers   int
	ReadingTTL     time.Duration

	// Notification policy.
	Timezone *time.Location
	Cooldown time.Duration

	// Telegram transport.
	TelegramToken string

	// Twilio WhatsApp transport.
	WhatsAppEnabled bool
	TwilioSID       string
	TwilioToken     string
	TwilioFrom      string

	// Optional Kafka audit stream of delivered notifications.
	KafkaAuditEnabled bool
	KafkaBrokers      []string
	KafkaAuditTopic   string

	// Optional YAML override for breakpoints and thresholds.
	ScalesPath string
}

// Load reads configuration from the environment, applying defaults where
// unset. A .env file in the working directory is loaded best-effort first.
func Load() (*Config, error) {
	_ = godotenv.Load()

	shutdownTimeout, err := durationEnv("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	tokenTTL, err := durationEnv("TOKEN_CACHE_TTL", 5*time.Minute)
	if err != nil {
		return nil, err
	}
	stationTTL, err := durationEnv("STATION_CACHE_TTL", 6*time.Hour)
	if err != nil {
		return nil, err
	}
	fetchTimeout, err := durationEnv("FETCH_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	stationTimeout, err := durationEnv("STATION_LIST_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}
	readingTTL, err := durationEnv("READING_CACHE_TTL", 10*time.Minute)
	if err != nil {
		return nil, err
	}
	cooldown, err := durationEnv("ALERT_COOLDOWN", 2*time.Hour)
	if err != nil {
		return nil, err
	}
	stateTTL, err := durationEnv("ALERT_STATE_TTL", 24*time.Hour)
	if err != nil {
		return nil, err
	}
	fetchWorkers, err := intEnv("FETCH_WORKERS", 20)
	if err != nil {
		return nil, err
	}

	tzName := envOrDefault("TIMEZONE", "Asia/Jerusalem")
	tz, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", tzName, err)
	}

	cfg := &Config{
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		RedisURL: envOrDefault("REDIS_URL", "redis://localhost:6379"),
		StateTTL: stateTTL,

		APIBaseURL:     envOrDefault("AIR_API_URL", "https://air-api.sviva.gov.il/v1/envista"),
		SiteURL:        envOrDefault("AIR_SITE_URL", "https://air.sviva.gov.il/"),
		FallbackToken:  os.Getenv("AIR_API_FALLBACK_TOKEN"),
		TokenCacheTTL:  tokenTTL,
		StationTTL:     stationTTL,
		FetchTimeout:   fetchTimeout,
		StationTimeout: stationTimeout,
		FetchWorkers:   fetchWorkers,
		ReadingTTL:     readingTTL,

		Timezone: tz,
		Cooldown: cooldown,

		TelegramToken: os.Getenv("TELEGRAM_BOT_TOKEN"),

		WhatsAppEnabled: boolEnv("WHATSAPP_ENABLED"),
		TwilioSID:       os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioToken:     os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFrom:      envOrDefault("TWILIO_WHATSAPP_FROM", "whatsapp:+14155238886"),

		KafkaAuditEnabled: boolEnv("KAFKA_AUDIT_ENABLED"),
		KafkaBrokers:      splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaAuditTopic:   envOrDefault("KAFKA_AUDIT_TOPIC", "air-alert-notifications"),

		ScalesPath: os.Getenv("AQI_SCALES_PATH"),
	}

	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.FetchWorkers < 1 {
		return nil, errors.New("FETCH_WORKERS must be at least 1")
	}
	if cfg.ReadingTTL <= 0 {
		return nil, errors.New("READING_CACHE_TTL must be positive")
	}
	if cfg.WhatsAppEnabled && (cfg.TwilioSID == "" || cfg.TwilioToken == "") {
		return nil, errors.New("WHATSAPP_ENABLED is true but Twilio credentials are not set")
	}
	if cfg.KafkaAuditEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_AUDIT_ENABLED is true but KAFKA_BROKERS is not set")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s %q", key, s)
	}
	return d, nil
}

func intEnv(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", key, s)
	}
	return n, nil
}

func boolEnv(key string) bool {
	return strings.EqualFold(os.Getenv(key), "true")
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

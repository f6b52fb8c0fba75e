package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hazecast/air-alert-service/internal/adapter/envista"
	"github.com/hazecast/air-alert-service/internal/adapter/httpapi"
	"github.com/hazecast/air-alert-service/internal/adapter/kafkaaudit"
	"github.com/hazecast/air-alert-service/internal/adapter/redisstore"
	"github.com/hazecast/air-alert-service/internal/adapter/telegram"
	"github.com/hazecast/air-alert-service/internal/adapter/twilio"
	"github.com/hazecast/air-alert-service/internal/config"
	"github.com/hazecast/air-alert-service/internal/domain"
	"github.com/hazecast/air-alert-service/internal/engine"
	"github.com/hazecast/air-alert-service/internal/fetcher"
	"github.com/hazecast/air-alert-service/internal/observability"
	"github.com/hazecast/air-alert-service/internal/policy"
	"github.com/hazecast/air-alert-service/internal/resolver"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	scales, err := config.LoadScales(cfg.ScalesPath)
	if err != nil {
		logger.Error("failed to load scales", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb, err := redisstore.Connect(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	store := redisstore.New(rdb, cfg.StateTTL, logger)

	tokens := envista.NewTokenProvider(cfg.SiteURL, cfg.FallbackToken, cfg.TokenCacheTTL, cfg.FetchTimeout, logger)
	client := envista.NewClient(cfg.APIBaseURL, tokens, cfg.StationTimeout, logger)
	stations := envista.NewDirectory(client, cfg.StationTTL, logger)

	calc := domain.NewCalculator(scales.Breakpoints, scales.AlertLevels, scales.Benzene)
	fetch := fetcher.New(client, store, calc, cfg.FetchWorkers, cfg.FetchTimeout, cfg.ReadingTTL, metrics, logger)
	resolve := resolver.New(store, metrics, logger)
	pol := policy.New(store, scales.AlertLevels, scales.Benzene, cfg.Cooldown, cfg.Timezone, metrics, logger)

	senders := map[domain.Platform]engine.Sender{
		domain.PlatformTelegram: telegram.NewClient(cfg.TelegramToken, cfg.FetchTimeout, logger),
	}
	if cfg.WhatsAppEnabled {
		senders[domain.PlatformWhatsApp] = twilio.NewClient(cfg.TwilioSID, cfg.TwilioToken, cfg.TwilioFrom, cfg.FetchTimeout, logger)
		logger.Info("whatsapp delivery enabled", "from", cfg.TwilioFrom)
	} else {
		logger.Info("whatsapp delivery disabled")
	}

	var auditor engine.Auditor
	var audit *kafkaaudit.Writer
	if cfg.KafkaAuditEnabled {
		audit = kafkaaudit.NewWriter(cfg.KafkaBrokers, cfg.KafkaAuditTopic, logger)
		auditor = audit
		logger.Info("kafka audit enabled", "topic", cfg.KafkaAuditTopic)
	}

	eng := engine.New(stations, fetch, resolve, pol, senders, store, auditor, metrics, logger)

	srv := httpapi.NewServer(cfg.HTTPAddr, eng, eng, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if audit != nil {
		if err := audit.Close(); err != nil {
			logger.Error("kafka audit close error", "error", err)
		}
	}
	if err := rdb.Close(); err != nil {
		logger.Error("redis close error", "error", err)
	}

	logger.Info("shutdown complete")
}

// Package engine runs one alert-check invocation end to end: pick the
// station batch, fetch readings, resolve subscribers, evaluate the
// notification policy, deliver, and record state.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/hazecast/air-alert-service/internal/domain"
	"github.com/hazecast/air-alert-service/internal/observability"
	"github.com/hazecast/air-alert-service/internal/policy"
)

// StationSource provides the station directory.
type StationSource interface {
	Stations(ctx context.Context) ([]domain.Station, error)
}

// ReadingFetcher produces readings for a station batch.
type ReadingFetcher interface {
	Fetch(ctx context.Context, stations []domain.Station) []domain.Reading
}

// SubscriberResolver enumerates recipients and eligible stations.
type SubscriberResolver interface {
	ForStation(ctx context.Context, station domain.Station) []domain.Subscriber
	EligibleStations(ctx context.Context, all []domain.Station) []domain.Station
}

// Sender delivers one rendered message on one platform.
type Sender interface {
	Send(ctx context.Context, recipient, message string) error
}

// Deactivator disables a subscriber after a permanent delivery failure.
type Deactivator interface {
	Deactivate(ctx context.Context, sub domain.Subscriber) error
}

// Auditor publishes a record of each delivered notification. Optional.
type Auditor interface {
	Audit(ctx context.Context, r domain.Reading, sub domain.Subscriber, kind string, at time.Time) error
}

// RunRequest is the trigger payload. Nil batch parameters fall back to
// the minute-of-hour derivation. Language is accepted for compatibility
// with the scheduler contract; rendering is single-language.
type RunRequest struct {
	Batch        *int   `json:"batch,omitempty"`
	TotalBatches *int   `json:"total_batches,omitempty"`
	Language     string `json:"language,omitempty"`
}

// AlertDetail summarizes the notifications sent for one station.
type AlertDetail struct {
	StationID  int             `json:"station_id"`
	Station    string          `json:"station"`
	Region     domain.Region   `json:"region"`
	Index      int             `json:"index"`
	Severity   domain.Severity `json:"severity"`
	BenzenePPB float64         `json:"benzene_ppb,omitempty"`
	Recipients int             `json:"recipients"`
}

// RunSummary is the invocation response body.
type RunSummary struct {
	Batch            int           `json:"batch"`
	TotalBatches     int           `json:"total_batches"`
	StationsChecked  int           `json:"stations_checked"`
	Readings         int           `json:"readings"`
	AlertsSent       int           `json:"alerts_sent"`
	ImprovedSent     int           `json:"improved_sent"`
	BenzeneSent      int           `json:"benzene_sent"`
	SkippedHours     int           `json:"skipped_hours"`
	SkippedCooldown  int           `json:"skipped_cooldown"`
	DeliveryFailures int           `json:"delivery_failures"`
	Alerts           []AlertDetail `json:"alerts,omitempty"`
	Duration         string        `json:"duration"`
}

// Engine wires the check cycle together.
type Engine struct {
	stations   StationSource
	fetcher    ReadingFetcher
	resolver   SubscriberResolver
	policy     *policy.Policy
	senders    map[domain.Platform]Sender
	deactivate Deactivator
	auditor    Auditor // nil when the audit stream is disabled
	metrics    *observability.Metrics
	log        *slog.Logger
	ready      atomic.Bool
}

func New(stations StationSource, fetcher ReadingFetcher, resolver SubscriberResolver, pol *policy.Policy, senders map[domain.Platform]Sender, deactivate Deactivator, auditor Auditor, metrics *observability.Metrics, log *slog.Logger) *Engine {
	return &Engine{
		stations:   stations,
		fetcher:    fetcher,
		resolver:   resolver,
		policy:     pol,
		senders:    senders,
		deactivate: deactivate,
		auditor:    auditor,
		metrics:    metrics,
		log:        log.With("component", "engine"),
	}
}

// CheckReadiness reports whether at least one check cycle completed.
func (e *Engine) CheckReadiness(_ context.Context) error {
	if !e.ready.Load() {
		return errors.New("no check cycle has completed yet")
	}
	return nil
}

// Run executes one check cycle. Per-station and per-subscriber failures
// are absorbed; only an unavailable station directory fails the run.
func (e *Engine) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	start := time.Now()
	e.metrics.RunsTotal.Inc()

	batch, total := resolveBatch(req)
	summary := RunSummary{Batch: batch, TotalBatches: total}

	all, err := e.stations.Stations(ctx)
	if err != nil {
		return summary, fmt.Errorf("station directory: %w", err)
	}

	eligible := e.resolver.EligibleStations(ctx, all)
	batchStations := domain.PartitionStations(eligible, batch, total)
	summary.StationsChecked = len(batchStations)
	e.metrics.StationsInBatch.Observe(float64(len(batchStations)))

	e.log.Info("check cycle started",
		"batch", batch, "total_batches", total,
		"eligible", len(eligible), "stations", len(batchStations))

	readings := e.fetcher.Fetch(ctx, batchStations)
	summary.Readings = len(readings)

	for _, reading := range readings {
		e.processReading(ctx, reading, &summary)
	}

	summary.Duration = time.Since(start).Round(time.Millisecond).String()
	e.metrics.RunDuration.Observe(time.Since(start).Seconds())
	e.ready.Store(true)

	e.log.Info("check cycle finished",
		"batch", batch,
		"readings", summary.Readings,
		"alerts", summary.AlertsSent,
		"improved", summary.ImprovedSent,
		"benzene", summary.BenzeneSent,
		"skipped_hours", summary.SkippedHours,
		"skipped_cooldown", summary.SkippedCooldown,
		"delivery_failures", summary.DeliveryFailures,
		"duration", summary.Duration)
	return summary, nil
}

func resolveBatch(req RunRequest) (int, int) {
	if req.Batch != nil && req.TotalBatches != nil {
		return *req.Batch, *req.TotalBatches
	}
	return domain.DeriveBatch(domain.Clock().Now())
}

func (e *Engine) processReading(ctx context.Context, reading domain.Reading, summary *RunSummary) {
	subs := e.resolver.ForStation(ctx, reading.Station)
	recipients := 0

	for _, sub := range subs {
		d := e.policy.Evaluate(ctx, reading, sub)

		if d.Alert && e.deliver(ctx, reading, sub, KindAlert, alertMessage(reading, d.Overall), summary) {
			recipients++
			summary.AlertsSent++
			if err := e.policy.RecordAlert(ctx, sub, reading.Station.ID, d.Overall); err != nil {
				e.log.Warn("alert state write failed", "recipient", sub.Recipient, "error", err)
			}
		}

		// State is demoted only after the notice went out; a failed or
		// suppressed notice is retried on a later reading.
		if d.Improved && e.deliver(ctx, reading, sub, KindImproved, improvedMessage(reading, d.Overall, d.AllClear), summary) {
			summary.ImprovedSent++
			if err := e.policy.RecordImprovement(ctx, sub, reading.Station.ID, d.Overall, d.AllClear); err != nil {
				e.log.Warn("improvement state write failed", "recipient", sub.Recipient, "error", err)
			}
		}

		if d.Benzene && e.deliver(ctx, reading, sub, KindBenzene, benzeneMessage(reading), summary) {
			summary.BenzeneSent++
			if err := e.policy.RecordBenzene(ctx, sub, reading.Station.ID); err != nil {
				e.log.Warn("benzene state write failed", "recipient", sub.Recipient, "error", err)
			}
		}

		// At most one suppression is counted per subscriber per reading,
		// even when both channels were held back.
		switch {
		case d.SkipReason != "":
			e.recordSkip(d.SkipReason, summary)
		case d.BenzeneSkip != "":
			e.recordSkip(d.BenzeneSkip, summary)
		}
	}

	if recipients > 0 {
		summary.Alerts = append(summary.Alerts, AlertDetail{
			StationID:  reading.Station.ID,
			Station:    reading.Station.DisplayName,
			Region:     reading.Station.Region,
			Index:      reading.Index,
			Severity:   reading.OverallSeverity(),
			BenzenePPB: reading.Benzene,
			Recipients: recipients,
		})
	}
}

// deliver sends one message and handles the failure paths. Returns true
// when the message was delivered.
func (e *Engine) deliver(ctx context.Context, reading domain.Reading, sub domain.Subscriber, kind, message string, summary *RunSummary) bool {
	sender, ok := e.senders[sub.Platform]
	if !ok {
		// Platform disabled by configuration.
		e.metrics.NotificationsSkipped.WithLabelValues("platform_disabled").Inc()
		return false
	}

	if err := sender.Send(ctx, sub.Recipient, message); err != nil {
		summary.DeliveryFailures++
		permanent := errors.Is(err, domain.ErrRecipientGone)
		e.metrics.DeliveryFailures.WithLabelValues(string(sub.Platform), fmt.Sprintf("%t", permanent)).Inc()
		if permanent {
			e.log.Info("deactivating subscriber after permanent failure",
				"platform", sub.Platform, "recipient", sub.Recipient)
			if derr := e.deactivate.Deactivate(ctx, sub); derr != nil {
				e.log.Warn("deactivation failed", "recipient", sub.Recipient, "error", derr)
			}
		} else {
			e.log.Warn("delivery failed",
				"platform", sub.Platform, "recipient", sub.Recipient, "kind", kind, "error", err)
		}
		return false
	}

	e.metrics.NotificationsSent.WithLabelValues(string(sub.Platform), kind).Inc()
	if e.auditor != nil {
		if err := e.auditor.Audit(ctx, reading, sub, kind, domain.Clock().Now()); err != nil {
			e.log.Warn("audit publish failed", "station_id", reading.Station.ID, "error", err)
		}
	}
	return true
}

func (e *Engine) recordSkip(reason string, summary *RunSummary) {
	e.metrics.NotificationsSkipped.WithLabelValues(reason).Inc()
	switch reason {
	case policy.SkipHours:
		summary.SkippedHours++
	case policy.SkipCooldown:
		summary.SkippedCooldown++
	}
}

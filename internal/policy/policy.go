// Package policy implements the notification state machine: given a
// reading and one subscriber's preferences, it decides whether to send a
// fresh alert, an improvement notice, or a benzene warning, and records
// the resulting alert state after delivery.
//
// The same policy instance serves both the primary index channel and the
// benzene channel; the benzene channel keeps its own cooldown timestamp
// and never uses the severity-escalation override.
package policy

import (
	"context"
	"log/slog"
	"time"

	"github.com/hazecast/air-alert-service/internal/domain"
	"github.com/hazecast/air-alert-service/internal/observability"
)

// Skip reasons recorded when an alert-worthy reading is suppressed.
const (
	SkipHours    = "hours"
	SkipCooldown = "cooldown"
)

// State is the persisted alert history for one (station, subscriber)
// pair on the primary channel.
type State struct {
	SentAt   time.Time
	Severity domain.Severity
}

// Store persists notification state keyed by (platform, recipient,
// station id). Entries expire after the configured retention window; an
// expired entry reads back as absent.
type Store interface {
	AlertState(ctx context.Context, sub domain.Subscriber, stationID int) (State, bool, error)
	SetAlertState(ctx context.Context, sub domain.Subscriber, stationID int, st State) error
	BenzeneAlertAt(ctx context.Context, sub domain.Subscriber, stationID int) (time.Time, bool, error)
	SetBenzeneAlertAt(ctx context.Context, sub domain.Subscriber, stationID int, at time.Time) error
	AllClearSent(ctx context.Context, sub domain.Subscriber, stationID int) (bool, error)
	SetAllClearSent(ctx context.Context, sub domain.Subscriber, stationID int) error
	ClearAllClear(ctx context.Context, sub domain.Subscriber, stationID int) error
}

// Decision is the outcome of evaluating one reading against one
// subscriber. At most one of Alert and Improved is set; Benzene is
// independent of both.
type Decision struct {
	Overall domain.Severity

	Alert      bool
	SkipReason string // set when alert-worthy but suppressed

	// Improvement path. Improved means a notice is due; the stored
	// severity is demoted only once the notice is delivered, so a
	// suppressed notice is retried on the next eligible reading.
	// AllClear marks the one-time return to Best.
	Improved bool
	AllClear bool
	Previous domain.Severity // stored severity before this evaluation

	Benzene     bool
	BenzeneSkip string
}

// Policy evaluates readings against subscriber preferences and alert
// history.
type Policy struct {
	store    Store
	levels   domain.AlertLevels
	benzene  domain.BenzeneScale
	cooldown time.Duration
	tz       *time.Location
	metrics  *observability.Metrics
	log      *slog.Logger
}

func New(store Store, levels domain.AlertLevels, benzene domain.BenzeneScale, cooldown time.Duration, tz *time.Location, metrics *observability.Metrics, log *slog.Logger) *Policy {
	return &Policy{
		store:    store,
		levels:   levels,
		benzene:  benzene,
		cooldown: cooldown,
		tz:       tz,
		metrics:  metrics,
		log:      log.With("component", "policy"),
	}
}

// Evaluate runs the state machine for one (reading, subscriber) pair.
// It reads stored state but never writes; callers apply the decision
// via RecordAlert/RecordImprovement/RecordBenzene after delivery.
//
// Store read failures fail open: the subscriber is treated as never
// alerted rather than silenced by an outage.
func (p *Policy) Evaluate(ctx context.Context, r domain.Reading, sub domain.Subscriber) Decision {
	now := domain.Clock().Now().In(p.tz)
	d := Decision{Overall: r.OverallSeverity()}

	indexWorthy := p.levels.ShouldAlertIndex(r.Index, sub.Threshold)
	benzeneWorthy := p.benzene.ShouldAlertBenzene(r.Benzene, sub.Threshold)
	inHours := domain.WithinHours(now, sub.Hours)

	st, alerted, err := p.store.AlertState(ctx, sub, r.Station.ID)
	if err != nil {
		p.metrics.StoreErrors.Inc()
		p.log.Warn("alert state read failed, treating as never alerted",
			"platform", sub.Platform, "station_id", r.Station.ID, "error", err)
		alerted = false
	}
	if alerted {
		d.Previous = st.Severity
	}

	if indexWorthy || benzeneWorthy {
		switch {
		case !inHours:
			d.SkipReason = SkipHours
		case alerted && d.Overall <= st.Severity && now.Sub(st.SentAt) < p.cooldown:
			d.SkipReason = SkipCooldown
		default:
			d.Alert = true
		}
	}

	// Improvement path: a strict severity decrease relative to the stored
	// state, when no fresh alert is going out. The notice is gated on
	// hours and the one-shot all-clear flag; the stored severity stays
	// put until the notice is actually delivered, so a subscriber
	// outside their hours gets it retried on the next in-hours reading.
	if !d.Alert && alerted && d.Overall < st.Severity && inHours {
		cleared, err := p.store.AllClearSent(ctx, sub, r.Station.ID)
		if err != nil {
			p.metrics.StoreErrors.Inc()
			cleared = false
		}
		if !cleared {
			d.Improved = true
			d.AllClear = d.Overall == domain.SeverityBest
		}
	}

	if benzeneWorthy {
		switch {
		case !inHours:
			d.BenzeneSkip = SkipHours
		default:
			last, sent, err := p.store.BenzeneAlertAt(ctx, sub, r.Station.ID)
			if err != nil {
				p.metrics.StoreErrors.Inc()
				sent = false
			}
			if sent && now.Sub(last) < p.cooldown {
				d.BenzeneSkip = SkipCooldown
			} else {
				d.Benzene = true
			}
		}
	}

	return d
}

// RecordAlert stores a fresh alerted state and cancels any pending
// all-clear. Called after the alert was delivered.
func (p *Policy) RecordAlert(ctx context.Context, sub domain.Subscriber, stationID int, severity domain.Severity) error {
	now := domain.Clock().Now().In(p.tz)
	if err := p.store.SetAlertState(ctx, sub, stationID, State{SentAt: now, Severity: severity}); err != nil {
		p.metrics.StoreErrors.Inc()
		return err
	}
	if err := p.store.ClearAllClear(ctx, sub, stationID); err != nil {
		p.metrics.StoreErrors.Inc()
		return err
	}
	return nil
}

// RecordImprovement lowers the stored severity while preserving the
// original alert timestamp, so the cooldown clock does not reset on an
// improvement-only update. When allClear is set the one-shot flag is
// raised too.
func (p *Policy) RecordImprovement(ctx context.Context, sub domain.Subscriber, stationID int, severity domain.Severity, allClear bool) error {
	st, ok, err := p.store.AlertState(ctx, sub, stationID)
	if err != nil || !ok {
		if err != nil {
			p.metrics.StoreErrors.Inc()
		}
		return err
	}
	st.Severity = severity
	if err := p.store.SetAlertState(ctx, sub, stationID, st); err != nil {
		p.metrics.StoreErrors.Inc()
		return err
	}
	if allClear {
		if err := p.store.SetAllClearSent(ctx, sub, stationID); err != nil {
			p.metrics.StoreErrors.Inc()
			return err
		}
	}
	return nil
}

// RecordBenzene stamps the benzene-channel cooldown.
func (p *Policy) RecordBenzene(ctx context.Context, sub domain.Subscriber, stationID int) error {
	now := domain.Clock().Now().In(p.tz)
	if err := p.store.SetBenzeneAlertAt(ctx, sub, stationID, now); err != nil {
		p.metrics.StoreErrors.Inc()
		return err
	}
	return nil
}

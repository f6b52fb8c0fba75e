package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hazecast/air-alert-service/internal/domain"
	"github.com/hazecast/air-alert-service/internal/observability"
	"github.com/hazecast/air-alert-service/internal/policy"
)

// noonUTC falls in the afternoon band.
var noonUTC = time.Date(2025, 6, 15, 12, 30, 0, 0, time.UTC)

type memStore struct {
	alerts   map[string]policy.State
	benzene  map[string]time.Time
	allClear map[string]bool
}

func newMemStore() *memStore {
	return &memStore{
		alerts:   make(map[string]policy.State),
		benzene:  make(map[string]time.Time),
		allClear: make(map[string]bool),
	}
}

func memKey(sub domain.Subscriber, stationID int) string {
	return fmt.Sprintf("%s:%s:%d", sub.Platform, sub.Recipient, stationID)
}

func (s *memStore) AlertState(_ context.Context, sub domain.Subscriber, stationID int) (policy.State, bool, error) {
	st, ok := s.alerts[memKey(sub, stationID)]
	return st, ok, nil
}

func (s *memStore) SetAlertState(_ context.Context, sub domain.Subscriber, stationID int, st policy.State) error {
	s.alerts[memKey(sub, stationID)] = st
	return nil
}

func (s *memStore) BenzeneAlertAt(_ context.Context, sub domain.Subscriber, stationID int) (time.Time, bool, error) {
	at, ok := s.benzene[memKey(sub, stationID)]
	return at, ok, nil
}

func (s *memStore) SetBenzeneAlertAt(_ context.Context, sub domain.Subscriber, stationID int, at time.Time) error {
	s.benzene[memKey(sub, stationID)] = at
	return nil
}

func (s *memStore) AllClearSent(_ context.Context, sub domain.Subscriber, stationID int) (bool, error) {
	return s.allClear[memKey(sub, stationID)], nil
}

func (s *memStore) SetAllClearSent(_ context.Context, sub domain.Subscriber, stationID int) error {
	s.allClear[memKey(sub, stationID)] = true
	return nil
}

func (s *memStore) ClearAllClear(_ context.Context, sub domain.Subscriber, stationID int) error {
	delete(s.allClear, memKey(sub, stationID))
	return nil
}

type fakeStations struct {
	stations []domain.Station
	err      error
}

func (f *fakeStations) Stations(_ context.Context) ([]domain.Station, error) {
	return f.stations, f.err
}

type fakeFetcher struct {
	readings map[int]domain.Reading
	got      []domain.Station
}

func (f *fakeFetcher) Fetch(_ context.Context, stations []domain.Station) []domain.Reading {
	f.got = stations
	var out []domain.Reading
	for _, s := range stations {
		if r, ok := f.readings[s.ID]; ok {
			out = append(out, r)
		}
	}
	return out
}

type fakeResolver struct {
	subs map[int][]domain.Subscriber
}

func (f *fakeResolver) ForStation(_ context.Context, station domain.Station) []domain.Subscriber {
	return f.subs[station.ID]
}

func (f *fakeResolver) EligibleStations(_ context.Context, all []domain.Station) []domain.Station {
	return all
}

type sentMessage struct {
	recipient string
	message   string
}

type fakeSender struct {
	sent []sentMessage
	err  error
}

func (f *fakeSender) Send(_ context.Context, recipient, message string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMessage{recipient: recipient, message: message})
	return nil
}

type fakeDeactivator struct {
	deactivated []domain.Subscriber
}

func (f *fakeDeactivator) Deactivate(_ context.Context, sub domain.Subscriber) error {
	f.deactivated = append(f.deactivated, sub)
	return nil
}

type auditEntry struct {
	stationID int
	kind      string
}

type fakeAuditor struct {
	entries []auditEntry
}

func (f *fakeAuditor) Audit(_ context.Context, r domain.Reading, _ domain.Subscriber, kind string, _ time.Time) error {
	f.entries = append(f.entries, auditEntry{stationID: r.Station.ID, kind: kind})
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testPolicy(store policy.Store) *policy.Policy {
	return policy.New(store, domain.DefaultAlertLevels(), domain.DefaultBenzeneScale(),
		2*time.Hour, time.UTC, observability.NewMetricsForTesting(), discardLogger())
}

func poorReading(stationID int) domain.Reading {
	return domain.Reading{
		Station: domain.Station{
			ID: stationID, Name: "Antokolski", DisplayName: "Antokolski, Tel Aviv",
			Region: domain.RegionTelAviv,
		},
		Index:         -40,
		IndexSeverity: domain.SeverityPoor,
	}
}

func telegramSub(recipient string) domain.Subscriber {
	return domain.Subscriber{
		Platform:  domain.PlatformTelegram,
		Recipient: recipient,
		Threshold: domain.SeverityModerate,
		Hours:     domain.AllBands,
	}
}

func intp(v int) *int { return &v }

type testHarness struct {
	engine      *Engine
	store       *memStore
	telegram    *fakeSender
	deactivator *fakeDeactivator
	auditor     *fakeAuditor
	fetcher     *fakeFetcher
}

func newHarness(stations *fakeStations, fetcher *fakeFetcher, resolver *fakeResolver) *testHarness {
	store := newMemStore()
	telegram := &fakeSender{}
	deactivator := &fakeDeactivator{}
	auditor := &fakeAuditor{}
	senders := map[domain.Platform]Sender{domain.PlatformTelegram: telegram}
	eng := New(stations, fetcher, resolver, testPolicy(store), senders, deactivator, auditor,
		observability.NewMetricsForTesting(), discardLogger())
	return &testHarness{
		engine: eng, store: store, telegram: telegram,
		deactivator: deactivator, auditor: auditor, fetcher: fetcher,
	}
}

func TestRun_SendsAlert(t *testing.T) {
	domain.SetClock(clockwork.NewFakeClockAt(noonUTC))
	defer domain.SetClock(nil)

	station := poorReading(7).Station
	h := newHarness(
		&fakeStations{stations: []domain.Station{station}},
		&fakeFetcher{readings: map[int]domain.Reading{7: poorReading(7)}},
		&fakeResolver{subs: map[int][]domain.Subscriber{7: {telegramSub("100")}}},
	)

	summary, err := h.engine.Run(context.Background(), RunRequest{Batch: intp(0), TotalBatches: intp(1)})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.StationsChecked)
	assert.Equal(t, 1, summary.Readings)
	assert.Equal(t, 1, summary.AlertsSent)
	require.Len(t, h.telegram.sent, 1)
	assert.Equal(t, "100", h.telegram.sent[0].recipient)
	assert.Contains(t, h.telegram.sent[0].message, "Antokolski, Tel Aviv")
	assert.Contains(t, h.telegram.sent[0].message, "poor")

	require.Len(t, summary.Alerts, 1)
	assert.Equal(t, 7, summary.Alerts[0].StationID)
	assert.Equal(t, 1, summary.Alerts[0].Recipients)

	require.Len(t, h.auditor.entries, 1)
	assert.Equal(t, KindAlert, h.auditor.entries[0].kind)

	st, ok := h.store.alerts[memKey(telegramSub("100"), 7)]
	require.True(t, ok, "alert state recorded after delivery")
	assert.Equal(t, domain.SeverityPoor, st.Severity)
}

func TestRun_StationDirectoryFailure(t *testing.T) {
	h := newHarness(
		&fakeStations{err: errors.New("envista down")},
		&fakeFetcher{},
		&fakeResolver{},
	)

	_, err := h.engine.Run(context.Background(), RunRequest{Batch: intp(0), TotalBatches: intp(1)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "station directory")
}

func TestRun_ExplicitBatchPartitions(t *testing.T) {
	domain.SetClock(clockwork.NewFakeClockAt(noonUTC))
	defer domain.SetClock(nil)

	stations := []domain.Station{
		{ID: 3, Region: domain.RegionTelAviv},
		{ID: 1, Region: domain.RegionTelAviv},
		{ID: 2, Region: domain.RegionTelAviv},
	}
	fetcher := &fakeFetcher{}
	h := newHarness(&fakeStations{stations: stations}, fetcher, &fakeResolver{})

	summary, err := h.engine.Run(context.Background(), RunRequest{Batch: intp(1), TotalBatches: intp(2)})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Batch)
	assert.Equal(t, 2, summary.TotalBatches)
	require.Len(t, fetcher.got, 1, "batch 1 of 2 gets the second station by sorted id")
	assert.Equal(t, 2, fetcher.got[0].ID)
}

func TestRun_DerivedBatchFromMinute(t *testing.T) {
	// Minute 31: 31%10 = 1 < 2, so batch 0 of 2.
	domain.SetClock(clockwork.NewFakeClockAt(time.Date(2025, 6, 15, 12, 31, 0, 0, time.UTC)))
	defer domain.SetClock(nil)

	h := newHarness(&fakeStations{}, &fakeFetcher{}, &fakeResolver{})
	summary, err := h.engine.Run(context.Background(), RunRequest{})
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Batch)
	assert.Equal(t, 2, summary.TotalBatches)
}

func TestRun_PermanentFailureDeactivates(t *testing.T) {
	domain.SetClock(clockwork.NewFakeClockAt(noonUTC))
	defer domain.SetClock(nil)

	station := poorReading(7).Station
	h := newHarness(
		&fakeStations{stations: []domain.Station{station}},
		&fakeFetcher{readings: map[int]domain.Reading{7: poorReading(7)}},
		&fakeResolver{subs: map[int][]domain.Subscriber{7: {telegramSub("100")}}},
	)
	h.telegram.err = fmt.Errorf("chat 100: %w", domain.ErrRecipientGone)

	summary, err := h.engine.Run(context.Background(), RunRequest{Batch: intp(0), TotalBatches: intp(1)})
	require.NoError(t, err)

	assert.Zero(t, summary.AlertsSent)
	assert.Equal(t, 1, summary.DeliveryFailures)
	require.Len(t, h.deactivator.deactivated, 1)
	assert.Equal(t, "100", h.deactivator.deactivated[0].Recipient)

	_, ok := h.store.alerts[memKey(telegramSub("100"), 7)]
	assert.False(t, ok, "no state recorded for a failed delivery")
}

func TestRun_DisabledPlatformIsSkipped(t *testing.T) {
	domain.SetClock(clockwork.NewFakeClockAt(noonUTC))
	defer domain.SetClock(nil)

	station := poorReading(7).Station
	whatsapp := domain.Subscriber{
		Platform:  domain.PlatformWhatsApp,
		Recipient: "+972500000001",
		Threshold: domain.SeverityModerate,
		Hours:     domain.AllBands,
	}
	h := newHarness(
		&fakeStations{stations: []domain.Station{station}},
		&fakeFetcher{readings: map[int]domain.Reading{7: poorReading(7)}},
		&fakeResolver{subs: map[int][]domain.Subscriber{7: {whatsapp, telegramSub("100")}}},
	)

	summary, err := h.engine.Run(context.Background(), RunRequest{Batch: intp(0), TotalBatches: intp(1)})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.AlertsSent, "telegram delivery unaffected by missing whatsapp sender")
	require.Len(t, h.telegram.sent, 1)
}

func TestRun_ImprovementNotice(t *testing.T) {
	clock := clockwork.NewFakeClockAt(noonUTC)
	domain.SetClock(clock)
	defer domain.SetClock(nil)

	station := poorReading(7).Station
	improved := poorReading(7)
	improved.Index = 30
	improved.IndexSeverity = domain.SeverityModerate

	h := newHarness(
		&fakeStations{stations: []domain.Station{station}},
		&fakeFetcher{readings: map[int]domain.Reading{7: improved}},
		&fakeResolver{subs: map[int][]domain.Subscriber{7: {telegramSub("100")}}},
	)
	h.store.alerts[memKey(telegramSub("100"), 7)] = policy.State{
		SentAt:   noonUTC.Add(-30 * time.Minute),
		Severity: domain.SeveritySevere,
	}

	summary, err := h.engine.Run(context.Background(), RunRequest{Batch: intp(0), TotalBatches: intp(1)})
	require.NoError(t, err)

	assert.Zero(t, summary.AlertsSent)
	assert.Equal(t, 1, summary.ImprovedSent)
	require.Len(t, h.telegram.sent, 1)
	assert.True(t, strings.Contains(h.telegram.sent[0].message, "improved"))

	st := h.store.alerts[memKey(telegramSub("100"), 7)]
	assert.Equal(t, domain.SeverityModerate, st.Severity)
	assert.Equal(t, noonUTC.Add(-30*time.Minute), st.SentAt, "timestamp preserved")
}

func TestRun_ImprovementOutsideHoursKeepsState(t *testing.T) {
	domain.SetClock(clockwork.NewFakeClockAt(noonUTC))
	defer domain.SetClock(nil)

	station := poorReading(7).Station
	improved := poorReading(7)
	improved.Index = 30
	improved.IndexSeverity = domain.SeverityModerate

	nightOnly := telegramSub("100")
	nightOnly.Hours = []domain.TimeBand{domain.BandNight}

	h := newHarness(
		&fakeStations{stations: []domain.Station{station}},
		&fakeFetcher{readings: map[int]domain.Reading{7: improved}},
		&fakeResolver{subs: map[int][]domain.Subscriber{7: {nightOnly}}},
	)
	h.store.alerts[memKey(nightOnly, 7)] = policy.State{
		SentAt:   noonUTC.Add(-30 * time.Minute),
		Severity: domain.SeveritySevere,
	}

	summary, err := h.engine.Run(context.Background(), RunRequest{Batch: intp(0), TotalBatches: intp(1)})
	require.NoError(t, err)

	assert.Zero(t, summary.ImprovedSent)
	assert.Empty(t, h.telegram.sent)
	assert.Equal(t, 1, summary.SkippedHours)

	// Stored severity is untouched so the notice fires on the next
	// in-hours reading.
	st := h.store.alerts[memKey(nightOnly, 7)]
	assert.Equal(t, domain.SeveritySevere, st.Severity)
}

func TestRun_DoubleSuppressionCountsOneSkip(t *testing.T) {
	domain.SetClock(clockwork.NewFakeClockAt(noonUTC))
	defer domain.SetClock(nil)

	reading := poorReading(7)
	reading.Benzene = 2.8
	reading.BenzeneSeverity = domain.BenzeneHazardous

	nightOnly := telegramSub("100")
	nightOnly.Hours = []domain.TimeBand{domain.BandNight}

	h := newHarness(
		&fakeStations{stations: []domain.Station{reading.Station}},
		&fakeFetcher{readings: map[int]domain.Reading{7: reading}},
		&fakeResolver{subs: map[int][]domain.Subscriber{7: {nightOnly}}},
	)

	summary, err := h.engine.Run(context.Background(), RunRequest{Batch: intp(0), TotalBatches: intp(1)})
	require.NoError(t, err)

	// Both channels were held back by the hours gate, but that is one
	// suppressed subscriber, not two.
	assert.Equal(t, 1, summary.SkippedHours)
	assert.Zero(t, summary.SkippedCooldown)
	assert.Empty(t, h.telegram.sent)
}

func TestRun_BenzeneNotice(t *testing.T) {
	domain.SetClock(clockwork.NewFakeClockAt(noonUTC))
	defer domain.SetClock(nil)

	reading := poorReading(7)
	reading.Index = 70
	reading.IndexSeverity = domain.SeverityBest
	reading.Benzene = 2.8
	reading.BenzeneSeverity = domain.BenzeneHazardous

	h := newHarness(
		&fakeStations{stations: []domain.Station{reading.Station}},
		&fakeFetcher{readings: map[int]domain.Reading{7: reading}},
		&fakeResolver{subs: map[int][]domain.Subscriber{7: {telegramSub("100")}}},
	)

	summary, err := h.engine.Run(context.Background(), RunRequest{Batch: intp(0), TotalBatches: intp(1)})
	require.NoError(t, err)

	// Hazardous benzene is alert-worthy on both channels.
	assert.Equal(t, 1, summary.AlertsSent)
	assert.Equal(t, 1, summary.BenzeneSent)
	require.Len(t, h.telegram.sent, 2)
	assert.Contains(t, h.telegram.sent[1].message, "Benzene warning")

	_, stamped := h.store.benzene[memKey(telegramSub("100"), 7)]
	assert.True(t, stamped)
}

func TestCheckReadiness(t *testing.T) {
	domain.SetClock(clockwork.NewFakeClockAt(noonUTC))
	defer domain.SetClock(nil)

	h := newHarness(&fakeStations{}, &fakeFetcher{}, &fakeResolver{})
	require.Error(t, h.engine.CheckReadiness(context.Background()))

	_, err := h.engine.Run(context.Background(), RunRequest{Batch: intp(0), TotalBatches: intp(1)})
	require.NoError(t, err)
	require.NoError(t, h.engine.CheckReadiness(context.Background()))
}

// Package kafkaaudit publishes an audit record for every delivered
// notification, for downstream analytics. The stream is optional; when
// disabled the engine runs with a nil writer.
package kafkaaudit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/hazecast/air-alert-service/internal/domain"
)

// Record is one delivered notification.
type Record struct {
	StationID   int             `json:"station_id"`
	StationName string          `json:"station_name"`
	Region      domain.Region   `json:"region"`
	Platform    domain.Platform `json:"platform"`
	Recipient   string          `json:"recipient"`
	Kind        string          `json:"kind"` // alert, improved, benzene
	Index       int             `json:"index"`
	Severity    domain.Severity `json:"severity"`
	BenzenePPB  float64         `json:"benzene_ppb,omitempty"`
	SentAt      time.Time       `json:"sent_at"`
}

// Writer produces audit records to a Kafka topic.
type Writer struct {
	writer *kafkago.Writer
	log    *slog.Logger
}

func NewWriter(brokers []string, topic string, log *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireOne,
	}
	return &Writer{writer: w, log: log.With("component", "kafka_audit")}
}

// Audit builds and publishes the record for one delivered notification.
func (w *Writer) Audit(ctx context.Context, r domain.Reading, sub domain.Subscriber, kind string, at time.Time) error {
	return w.Publish(ctx, Record{
		StationID:   r.Station.ID,
		StationName: r.Station.DisplayName,
		Region:      r.Station.Region,
		Platform:    sub.Platform,
		Recipient:   sub.Recipient,
		Kind:        kind,
		Index:       r.Index,
		Severity:    r.OverallSeverity(),
		BenzenePPB:  r.Benzene,
		SentAt:      at,
	})
}

// Publish writes one audit record, keyed by station id so per-station
// history stays ordered within a partition.
func (w *Writer) Publish(ctx context.Context, rec Record) error {
	msg, err := serializeToMessage(rec)
	if err != nil {
		return err
	}
	return w.writer.WriteMessages(ctx, msg)
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

func serializeToMessage(rec Record) (kafkago.Message, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize audit record: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(strconv.Itoa(rec.StationID)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "platform", Value: []byte(rec.Platform)},
			{Key: "kind", Value: []byte(rec.Kind)},
			{Key: "sent_at", Value: []byte(rec.SentAt.Format(time.RFC3339))},
		},
	}, nil
}

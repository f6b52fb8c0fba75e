package kafkaaudit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hazecast/air-alert-service/internal/domain"
)

func TestSerializeToMessage(t *testing.T) {
	sentAt := time.Date(2025, 6, 15, 12, 30, 0, 0, time.UTC)
	rec := Record{
		StationID:   7,
		StationName: "Antokolski, Tel Aviv",
		Region:      domain.RegionTelAviv,
		Platform:    domain.PlatformTelegram,
		Recipient:   "12345",
		Kind:        "alert",
		Index:       -40,
		Severity:    domain.SeverityPoor,
		BenzenePPB:  1.7,
		SentAt:      sentAt,
	}

	msg, err := serializeToMessage(rec)
	require.NoError(t, err)

	assert.Equal(t, []byte("7"), msg.Key)
	assert.Contains(t, string(msg.Value), `"kind":"alert"`)
	assert.Contains(t, string(msg.Value), `"severity":"poor"`)
	assert.Len(t, msg.Headers, 3)
	assert.Equal(t, "platform", msg.Headers[0].Key)
	assert.Equal(t, []byte("telegram"), msg.Headers[0].Value)
	assert.Equal(t, "kind", msg.Headers[1].Key)
	assert.Equal(t, []byte("alert"), msg.Headers[1].Value)
	assert.Equal(t, "sent_at", msg.Headers[2].Key)
	assert.Equal(t, []byte(sentAt.Format(time.RFC3339)), msg.Headers[2].Value)
}

package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hazecast/air-alert-service/internal/domain"
)

func testClient(baseURL string) *Client {
	c := NewClient("123:abc", 5*time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
	c.baseURL = baseURL
	return c
}

func TestSend_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bot123:abc/sendMessage", r.URL.Path)

		var req sendMessageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "42", req.ChatID)
		assert.Equal(t, "air quality alert", req.Text)

		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	err := testClient(srv.URL).Send(context.Background(), "42", "air quality alert")
	require.NoError(t, err)
}

func TestSend_BlockedUserIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	err := testClient(srv.URL).Send(context.Background(), "42", "hello")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrRecipientGone))
}

func TestSend_ServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	err := testClient(srv.URL).Send(context.Background(), "42", "hello")
	require.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrRecipientGone))
}

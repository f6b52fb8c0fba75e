// Package telegram delivers notifications through the Telegram Bot API.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hazecast/air-alert-service/internal/domain"
)

const defaultBaseURL = "https://api.telegram.org"

// Client implements the engine's Sender for the Telegram platform.
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
	log        *slog.Logger
}

func NewClient(token string, timeout time.Duration, log *slog.Logger) *Client {
	return &Client{
		token:      token,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: timeout},
		log:        log.With("component", "telegram"),
	}
}

type sendMessageRequest struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

// Send posts one message to a chat. A 403 means the user blocked the
// bot; it maps to domain.ErrRecipientGone so the caller deactivates
// the subscription.
func (c *Client) Send(ctx context.Context, recipient, message string) error {
	payload, err := json.Marshal(sendMessageRequest{ChatID: recipient, Text: message})
	if err != nil {
		return err
	}

	u := fmt.Sprintf("%s/bot%s/sendMessage", c.baseURL, c.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("telegram request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("chat %s: %w", recipient, domain.ErrRecipientGone)
	default:
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("telegram API error: status %d: %s", resp.StatusCode, body)
	}
}

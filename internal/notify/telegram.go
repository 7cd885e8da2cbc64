package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// TelegramSender delivers messages via the Telegram Bot API. The subscriber
// id is the Telegram chat id.
type TelegramSender struct {
	token  string
	client *http.Client
}

// NewTelegramSender creates a TelegramSender for the given bot token. It uses
// a default HTTP client with a 10-second timeout.
func NewTelegramSender(token string) *TelegramSender {
	return &TelegramSender{
		token:  token,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Send posts the message to the subscriber's chat using the sendMessage API.
func (t *TelegramSender) Send(ctx context.Context, subscriberID int64, message string) error {
	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.token)

	payload := map[string]string{
		"chat_id": strconv.FormatInt(subscriberID, 10),
		"text":    message,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("telegram: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("telegram: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	return nil
}

// Name returns the sender identifier.
func (t *TelegramSender) Name() string {
	return "telegram"
}

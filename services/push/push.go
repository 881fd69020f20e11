// Package pushsvc delivers push notifications. Delivery is fire and forget:
// a notification that the downstream service drops is gone.
package pushsvc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/recedu/reconline/core"
)

// Notification is the payload shown on the device.
type Notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Link  string `json:"link,omitempty"`
}

// Notifier sends a notification to the given device tokens.
type Notifier interface {
	Notify(ctx context.Context, tokens []string, n Notification) error
}

// consoleNotifier logs notifications instead of sending them. Dev default.
type consoleNotifier struct {
	logger core.Logger
}

func NewConsoleNotifier(logger core.Logger) Notifier {
	return &consoleNotifier{logger: logger}
}

func (c *consoleNotifier) Notify(_ context.Context, tokens []string, n Notification) error {
	c.logger.Info(fmt.Sprintf("push to %d devices: %s - %s", len(tokens), n.Title, n.Body))
	return nil
}

// httpNotifier posts to an FCM-style HTTP endpoint.
type httpNotifier struct {
	http     *http.Client
	endpoint string
	apiKey   string
	logger   core.Logger
}

type pushRequest struct {
	Tokens       []string     `json:"registration_ids"`
	Notification Notification `json:"notification"`
}

func NewHTTPNotifier(conf *core.Config, logger core.Logger) Notifier {
	return &httpNotifier{
		http:     &http.Client{Timeout: 10 * time.Second},
		endpoint: conf.Push.Endpoint,
		apiKey:   conf.Push.APIKey,
		logger:   logger,
	}
}

func (c *httpNotifier) Notify(ctx context.Context, tokens []string, n Notification) error {
	if len(tokens) == 0 {
		return nil
	}

	jsonBody, err := json.Marshal(pushRequest{Tokens: tokens, Notification: n})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewBuffer(jsonBody))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "key="+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("push error: %d - %s", resp.StatusCode, string(body))
	}
	return nil
}

package monitor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// WebhookForwarder posts created alerts to an external endpoint as JSON
type WebhookForwarder struct {
	url     string
	client  *http.Client
	timeout time.Duration
	logger  *logrus.Logger
}

// NewWebhookForwarder creates a forwarder for the given URL
func NewWebhookForwarder(url string, timeout time.Duration, logger *logrus.Logger) *WebhookForwarder {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &WebhookForwarder{
		url:     url,
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
		logger:  logger,
	}
}

// Send posts a single alert
func (w *WebhookForwarder) Send(ctx context.Context, alert Alert) error {
	body, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to encode alert: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// Attach forwards every alert created by the manager
func (w *WebhookForwarder) Attach(am *AlertManager) {
	am.OnAlertCreated(func(alert Alert) {
		ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
		defer cancel()
		if err := w.Send(ctx, alert); err != nil {
			w.logger.WithError(err).WithField("alert_id", alert.ID).Warn("Failed to forward alert")
		}
	})
}

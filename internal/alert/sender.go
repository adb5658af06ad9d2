package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/Thanhtran-165/nghiencuulaisuat-sub001/internal/model"
)

// Sender delivers a single alert event to an external channel.
type Sender interface {
	Send(ctx context.Context, event model.AlertEvent) error
}

// WebhookSender posts alert events as JSON to a configured URL.
type WebhookSender struct {
	url    string
	client *http.Client
}

// NewWebhookSender creates a webhook sender. An empty URL yields a sender
// that drops everything, so callers need no nil checks.
func NewWebhookSender(url string) *WebhookSender {
	return &WebhookSender{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Send posts one event to the webhook URL.
func (s *WebhookSender) Send(ctx context.Context, event model.AlertEvent) error {
	if s.url == "" {
		return nil
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return eris.Wrap(err, "alert: marshal event")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "alert: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "alert: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("alert: webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// Dispatch sends each event through the sender, logging and continuing on
// per-event failures. Returns the number delivered.
func Dispatch(ctx context.Context, sender Sender, events []model.AlertEvent) int {
	sent := 0
	for _, ev := range events {
		if err := sender.Send(ctx, ev); err != nil {
			zap.L().Error("alert: failed to send event",
				zap.String("alert_code", ev.AlertCode),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("alert: event sent",
			zap.String("alert_code", ev.AlertCode),
			zap.String("severity", ev.Severity),
		)
		sent++
	}
	return sent
}

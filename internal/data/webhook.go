package data

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"AlertGate/internal/conf"
	"AlertGate/internal/model"

	"github.com/go-kratos/kratos/v2/log"
)

// HTTPWebhookService implements biz.WebhookService with a JSON POST to the
// configured webhook URL. With no URL configured it only logs the events,
// so breaker transitions always leave a trace.
type HTTPWebhookService struct {
	url    string
	client *http.Client
	logger *log.Helper
}

// NewWebhookService creates the webhook notifier from the alerting snapshot.
func NewWebhookService(cfg *conf.Alerting, logger log.Logger) *HTTPWebhookService {
	url := ""
	if cfg != nil {
		url = cfg.WebhookURL
	}
	return &HTTPWebhookService{
		url: url,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: log.NewHelper(logger),
	}
}

// NotifyCircuitBroken sends notification when the circuit breaker is triggered.
func (s *HTTPWebhookService) NotifyCircuitBroken(ctx context.Context, event *model.CircuitBrokenEvent) error {
	s.logger.Warnw("msg", "circuit broken",
		"transport", event.Transport,
		"consecutive_failures", event.FailureCount,
		"last_error", event.LastError,
		"circuit_broken_at", event.CircuitBrokenAt)

	return s.post(ctx, map[string]interface{}{
		"event":                "circuit_broken",
		"transport":            event.Transport,
		"consecutive_failures": event.FailureCount,
		"last_error":           event.LastError,
		"circuit_broken_at":    event.CircuitBrokenAt.Format(time.RFC3339),
	})
}

// NotifyCircuitRecovered sends notification when the circuit breaker recovers.
func (s *HTTPWebhookService) NotifyCircuitRecovered(ctx context.Context, event *model.CircuitRecoveredEvent) error {
	s.logger.Infow("msg", "circuit recovered",
		"transport", event.Transport,
		"open_for", event.OpenFor.String(),
		"recovered_at", event.RecoveredAt)

	return s.post(ctx, map[string]interface{}{
		"event":        "circuit_recovered",
		"transport":    event.Transport,
		"open_for":     event.OpenFor.String(),
		"recovered_at": event.RecoveredAt.Format(time.RFC3339),
	})
}

// post delivers one event payload. A missing URL is not an error: the log
// lines above are the delivery.
func (s *HTTPWebhookService) post(ctx context.Context, payload map[string]interface{}) error {
	if s.url == "" {
		return nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode, string(respBody))
	}

	return nil
}

package service

import (
	"context"
	"errors"
	"testing"

	"AlertGate/internal/biz"
	"AlertGate/internal/conf"
	"AlertGate/internal/model"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubTransport is a function-backed biz.EmailTransport.
type stubTransport struct {
	send func(ctx context.Context, alert *model.Alert) error
}

func (s *stubTransport) Send(ctx context.Context, alert *model.Alert) error {
	if s.send != nil {
		return s.send(ctx, alert)
	}
	return nil
}

func (s *stubTransport) IsAvailable(ctx context.Context) bool     { return true }
func (s *stubTransport) TestConnection(ctx context.Context) error { return nil }

type stubFallback struct{}

func (stubFallback) Log(ctx context.Context, alert *model.Alert, reason model.Outcome) {}

type stubCache struct {
	records []model.AlertRecord
}

func (c *stubCache) RecordOutcome(ctx context.Context, alert *model.Alert, outcome model.Outcome) {
	c.records = append([]model.AlertRecord{{Alert: alert, Outcome: outcome}}, c.records...)
}

func (c *stubCache) Recent(ctx context.Context, n int) []model.AlertRecord {
	if n > len(c.records) {
		n = len(c.records)
	}
	return c.records[:n]
}

type stubWebhook struct{}

func (stubWebhook) NotifyCircuitBroken(ctx context.Context, event *model.CircuitBrokenEvent) error {
	return nil
}

func (stubWebhook) NotifyCircuitRecovered(ctx context.Context, event *model.CircuitRecoveredEvent) error {
	return nil
}

func newTestService(t *testing.T, sendErr error) (*AlertService, *stubCache) {
	t.Helper()

	cfg := &conf.Alerting{
		Enabled:     true,
		MinSeverity: "MEDIUM",
		RateLimiting: &conf.RateLimiting{
			Enabled:          true,
			MaxAlertsPerHour: 10,
			MaxAlertsPerDay:  50,
		},
	}
	cache := &stubCache{}
	uc, err := biz.NewAlertManagerUseCase(
		cfg,
		biz.NewAlertFactory(),
		biz.NewRateLimiterUseCase(cfg, log.DefaultLogger),
		biz.NewStatsRecorder(),
		&stubTransport{send: func(ctx context.Context, alert *model.Alert) error { return sendErr }},
		stubFallback{},
		cache,
		stubWebhook{},
		log.DefaultLogger,
	)
	require.NoError(t, err)

	return NewAlertService(uc, log.DefaultLogger), cache
}

func TestAlertService_SendAlert(t *testing.T) {
	svc, _ := newTestService(t, nil)

	resp, err := svc.SendAlert(context.Background(), &SendAlertRequest{
		Title:     "Disk nearly full",
		Message:   "/var at 93%",
		Severity:  "HIGH",
		Category:  "SYSTEM_HEALTH",
		Component: "Monitor",
	})

	require.NoError(t, err)
	assert.Equal(t, string(model.OutcomeSent), resp.Outcome)
}

func TestAlertService_SendAlert_PolicyOutcomeIsNotAnError(t *testing.T) {
	svc, _ := newTestService(t, nil)

	resp, err := svc.SendAlert(context.Background(), &SendAlertRequest{
		Title:    "Routine",
		Message:  "low severity noise",
		Severity: "LOW",
		Category: "GENERAL",
	})

	require.NoError(t, err)
	assert.Equal(t, string(model.OutcomeFilteredSeverity), resp.Outcome)
}

func TestAlertService_SendAlert_InvalidInputs(t *testing.T) {
	svc, _ := newTestService(t, nil)

	tests := []struct {
		name   string
		req    *SendAlertRequest
		reason string
	}{
		{
			name:   "unknown severity",
			req:    &SendAlertRequest{Title: "t", Message: "m", Severity: "LOUD", Category: "GENERAL"},
			reason: "INVALID_SEVERITY",
		},
		{
			name:   "unknown category",
			req:    &SendAlertRequest{Title: "t", Message: "m", Severity: "HIGH", Category: "NOISE"},
			reason: "INVALID_CATEGORY",
		},
		{
			name:   "missing title",
			req:    &SendAlertRequest{Message: "m", Severity: "HIGH", Category: "GENERAL"},
			reason: "VALIDATION_FAILED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.SendAlert(context.Background(), tt.req)
			require.Error(t, err)
			ke := kerrors.FromError(err)
			assert.Equal(t, int32(400), ke.Code)
			assert.Equal(t, tt.reason, ke.Reason)
		})
	}
}

func TestAlertService_GetStatusAndStats(t *testing.T) {
	svc, _ := newTestService(t, nil)

	_, err := svc.SendAlert(context.Background(), &SendAlertRequest{
		Title: "t", Message: "m", Severity: "HIGH", Category: "GENERAL",
	})
	require.NoError(t, err)

	status, err := svc.GetStatus(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Enabled)
	assert.Equal(t, "CLOSED", status.CircuitBreakerState)

	stats, err := svc.GetStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Sent)
}

func TestAlertService_RecentAlerts(t *testing.T) {
	svc, _ := newTestService(t, nil)

	for _, title := range []string{"one", "two", "three"} {
		_, err := svc.SendAlert(context.Background(), &SendAlertRequest{
			Title: title, Message: "m", Severity: "HIGH", Category: "GENERAL",
		})
		require.NoError(t, err)
	}

	resp, err := svc.RecentAlerts(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, resp.Alerts, 2)
	assert.Equal(t, "three", resp.Alerts[0].Alert.Title)
}

func TestAlertService_SelfTest(t *testing.T) {
	// MEDIUM floor filters the synthetic INFO alert, so the self-test
	// reports failure even with a healthy transport.
	svc, _ := newTestService(t, nil)

	resp, err := svc.SelfTest(context.Background())
	require.NoError(t, err)
	assert.False(t, resp.Passed)
}

func TestAlertService_SendAlert_DeliveryFailureIsOutcome(t *testing.T) {
	svc, _ := newTestService(t, errors.New("smtp connect refused"))

	resp, err := svc.SendAlert(context.Background(), &SendAlertRequest{
		Title: "t", Message: "m", Severity: "CRITICAL", Category: "GENERAL",
	})

	require.NoError(t, err)
	assert.Equal(t, string(model.OutcomeFailed), resp.Outcome)
}

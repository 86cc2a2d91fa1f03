package biz

import (
	"context"
	"testing"
	"time"

	"AlertGate/internal/conf"
	"AlertGate/internal/model"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockEmailTransport is a mock implementation of EmailTransport for testing.
type MockEmailTransport struct {
	mock.Mock
}

func (m *MockEmailTransport) Send(ctx context.Context, alert *model.Alert) error {
	args := m.Called(ctx, alert)
	return args.Error(0)
}

func (m *MockEmailTransport) IsAvailable(ctx context.Context) bool {
	args := m.Called(ctx)
	return args.Bool(0)
}

func (m *MockEmailTransport) TestConnection(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockFallbackSink is a mock implementation of FallbackSink for testing.
type MockFallbackSink struct {
	mock.Mock
}

func (m *MockFallbackSink) Log(ctx context.Context, alert *model.Alert, reason model.Outcome) {
	m.Called(ctx, alert, reason)
}

// MockAlertCache is a mock implementation of AlertCache for testing.
type MockAlertCache struct {
	mock.Mock
}

func (m *MockAlertCache) RecordOutcome(ctx context.Context, alert *model.Alert, outcome model.Outcome) {
	m.Called(ctx, alert, outcome)
}

func (m *MockAlertCache) Recent(ctx context.Context, n int) []model.AlertRecord {
	args := m.Called(ctx, n)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]model.AlertRecord)
}

// MockWebhookService is a mock implementation of WebhookService for testing.
type MockWebhookService struct {
	mock.Mock
}

func (m *MockWebhookService) NotifyCircuitBroken(ctx context.Context, event *model.CircuitBrokenEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockWebhookService) NotifyCircuitRecovered(ctx context.Context, event *model.CircuitRecoveredEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

type managerMocks struct {
	transport *MockEmailTransport
	fallback  *MockFallbackSink
	cache     *MockAlertCache
	webhook   *MockWebhookService
}

func defaultAlertingConfig() *conf.Alerting {
	categories := make(map[string]*conf.CategoryPolicy)
	for _, cat := range model.Categories {
		categories[string(cat)] = &conf.CategoryPolicy{Enabled: true, MinSeverity: "INFO"}
	}
	return &conf.Alerting{
		Enabled:     true,
		MinSeverity: "MEDIUM",
		RateLimiting: &conf.RateLimiting{
			Enabled:          true,
			MaxAlertsPerHour: 10,
			MaxAlertsPerDay:  50,
		},
		Categories: categories,
	}
}

func newTestManager(t *testing.T, cfg *conf.Alerting) (*AlertManagerUseCase, *managerMocks) {
	t.Helper()

	m := &managerMocks{
		transport: new(MockEmailTransport),
		fallback:  new(MockFallbackSink),
		cache:     new(MockAlertCache),
		webhook:   new(MockWebhookService),
	}
	uc, err := NewAlertManagerUseCase(
		cfg,
		NewAlertFactory(),
		NewRateLimiterUseCase(cfg, log.DefaultLogger),
		NewStatsRecorder(),
		m.transport,
		m.fallback,
		m.cache,
		m.webhook,
		log.DefaultLogger,
	)
	require.NoError(t, err)
	return uc, m
}

func TestAlertManager_SendsAlertAboveFloor(t *testing.T) {
	uc, m := newTestManager(t, defaultAlertingConfig())
	m.transport.On("Send", mock.Anything, mock.Anything).Return(nil)
	m.cache.On("RecordOutcome", mock.Anything, mock.Anything, model.OutcomeSent)

	outcome, err := uc.SendAlert(context.Background(),
		"Disk nearly full", "/var at 93%", model.SeverityHigh, model.CategorySystemHealth, "Monitor", nil)

	require.NoError(t, err)
	assert.Equal(t, model.OutcomeSent, outcome)
	m.transport.AssertNumberOfCalls(t, "Send", 1)
	m.fallback.AssertNotCalled(t, "Log")

	stats := uc.GetStats()
	assert.Equal(t, int64(1), stats.Sent)
}

func TestAlertManager_SeverityFilterNeverTouchesTransport(t *testing.T) {
	uc, m := newTestManager(t, defaultAlertingConfig())
	m.fallback.On("Log", mock.Anything, mock.Anything, model.OutcomeFilteredSeverity)
	m.cache.On("RecordOutcome", mock.Anything, mock.Anything, model.OutcomeFilteredSeverity)

	outcome, err := uc.SendAlert(context.Background(),
		"Routine checkpoint", "nothing to see", model.SeverityLow, model.CategoryGeneral, "Worker", nil)

	require.NoError(t, err)
	assert.Equal(t, model.OutcomeFilteredSeverity, outcome)
	m.transport.AssertNotCalled(t, "Send")
	m.fallback.AssertExpectations(t)

	// A filtered alert consumes no rate limit budget.
	hour, _ := uc.rateLimiter.Usage(model.CategoryGeneral)
	assert.Equal(t, 0, hour)
}

func TestAlertManager_CategoryFloorRaisesGlobalFloor(t *testing.T) {
	cfg := defaultAlertingConfig()
	cfg.MinSeverity = "INFO"
	cfg.Categories[string(model.CategoryDataPipeline)].MinSeverity = "HIGH"

	uc, m := newTestManager(t, cfg)
	m.fallback.On("Log", mock.Anything, mock.Anything, model.OutcomeFilteredSeverity)
	m.cache.On("RecordOutcome", mock.Anything, mock.Anything, model.OutcomeFilteredSeverity)

	outcome, err := uc.SendAlert(context.Background(),
		"Ingest lag growing", "backfill 12m behind", model.SeverityMedium, model.CategoryDataPipeline, "Ingestor", nil)

	require.NoError(t, err)
	assert.Equal(t, model.OutcomeFilteredSeverity, outcome)
	m.transport.AssertNotCalled(t, "Send")
}

func TestAlertManager_TradingErrorPassesMediumFloor(t *testing.T) {
	uc, m := newTestManager(t, defaultAlertingConfig())
	m.transport.On("Send", mock.Anything, mock.Anything).Return(nil)
	m.cache.On("RecordOutcome", mock.Anything, mock.Anything, model.OutcomeSent)

	// Order failure alerts are HIGH, above the MEDIUM floor.
	outcome, err := uc.SendTradingErrorAlert(context.Background(),
		"ETHUSDT", "MARKET", "exchange rejected order", nil)

	require.NoError(t, err)
	assert.Equal(t, model.OutcomeSent, outcome)
	m.transport.AssertNumberOfCalls(t, "Send", 1)
}

func TestAlertManager_DisabledCategorySuppressesAlert(t *testing.T) {
	cfg := defaultAlertingConfig()
	cfg.Categories[string(model.CategoryDataPipeline)].Enabled = false

	uc, m := newTestManager(t, cfg)
	m.fallback.On("Log", mock.Anything, mock.Anything, model.OutcomeFilteredCategory)
	m.cache.On("RecordOutcome", mock.Anything, mock.Anything, model.OutcomeFilteredCategory)

	outcome, err := uc.SendAlert(context.Background(),
		"Feed gap detected", "missing candles for 3 symbols", model.SeverityHigh, model.CategoryDataPipeline, "FeedMonitor", nil)

	require.NoError(t, err)
	assert.Equal(t, model.OutcomeFilteredCategory, outcome)
	m.transport.AssertNotCalled(t, "Send")
}

func TestAlertManager_SecurityAlertBypassesDisabledCategory(t *testing.T) {
	cfg := defaultAlertingConfig()
	cfg.Categories[string(model.CategorySecurity)].Enabled = false

	uc, m := newTestManager(t, cfg)
	m.transport.On("Send", mock.Anything, mock.Anything).Return(nil)
	m.cache.On("RecordOutcome", mock.Anything, mock.Anything, model.OutcomeSent)

	outcome, err := uc.SendSecurityAlert(context.Background(),
		"Repeated auth failures", "50 failed logins from one IP", "AuthService")

	require.NoError(t, err)
	assert.Equal(t, model.OutcomeSent, outcome)
	m.transport.AssertNumberOfCalls(t, "Send", 1)
}

func TestAlertManager_GloballyDisabledStopsEverything(t *testing.T) {
	cfg := defaultAlertingConfig()
	cfg.Enabled = false

	uc, m := newTestManager(t, cfg)
	m.fallback.On("Log", mock.Anything, mock.Anything, model.OutcomeFilteredCategory)
	m.cache.On("RecordOutcome", mock.Anything, mock.Anything, model.OutcomeFilteredCategory)

	// The global switch stops even forced security alerts.
	outcome, err := uc.SendSecurityAlert(context.Background(),
		"Intrusion detected", "details", "IDS")

	require.NoError(t, err)
	assert.Equal(t, model.OutcomeFilteredCategory, outcome)
	m.transport.AssertNotCalled(t, "Send")
}

func TestAlertManager_RateLimitedAlertGoesToFallback(t *testing.T) {
	cfg := defaultAlertingConfig()
	cfg.RateLimiting.MaxAlertsPerHour = 1

	uc, m := newTestManager(t, cfg)
	m.transport.On("Send", mock.Anything, mock.Anything).Return(nil)
	m.cache.On("RecordOutcome", mock.Anything, mock.Anything, mock.Anything)
	m.fallback.On("Log", mock.Anything, mock.Anything, model.OutcomeRateLimited)

	first, err := uc.SendCriticalAlert(context.Background(), "DB down", "primary unreachable", "DBPool")
	require.NoError(t, err)
	require.Equal(t, model.OutcomeSent, first)

	second, err := uc.SendCriticalAlert(context.Background(), "DB down", "primary unreachable", "DBPool")
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeRateLimited, second)
	m.transport.AssertNumberOfCalls(t, "Send", 1)
	m.fallback.AssertExpectations(t)

	stats := uc.GetStats()
	assert.Equal(t, int64(1), stats.RateLimited)
}

func TestAlertManager_TransportFailuresOpenBreaker(t *testing.T) {
	uc, m := newTestManager(t, defaultAlertingConfig())
	m.transport.On("Send", mock.Anything, mock.Anything).Return(errSendFailed)
	m.cache.On("RecordOutcome", mock.Anything, mock.Anything, model.OutcomeFailed)
	m.fallback.On("Log", mock.Anything, mock.Anything, model.OutcomeFailed)
	m.webhook.On("NotifyCircuitBroken", mock.Anything, mock.Anything).Return(nil)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		outcome, err := uc.SendCriticalAlert(ctx, "Send me", "payload", "Test")
		require.NoError(t, err)
		assert.Equal(t, model.OutcomeFailed, outcome)
	}
	assert.Equal(t, "OPEN", uc.breaker.State())
	m.webhook.AssertNumberOfCalls(t, "NotifyCircuitBroken", 1)

	// The fourth alert fast-fails without touching the transport and still
	// lands in the fallback sink.
	outcome, err := uc.SendCriticalAlert(ctx, "Send me too", "payload", "Test")
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeFailed, outcome)
	m.transport.AssertNumberOfCalls(t, "Send", 3)

	status := uc.GetStatus()
	assert.False(t, status.TransportAvailable)
	assert.Equal(t, "OPEN", status.CircuitBreakerState)
}

func TestAlertManager_ValidationErrorIsHardError(t *testing.T) {
	uc, m := newTestManager(t, defaultAlertingConfig())

	_, err := uc.SendAlert(context.Background(),
		"", "missing title", model.SeverityHigh, model.CategoryGeneral, "Test", nil)

	assert.ErrorIs(t, err, model.ErrValidation)
	m.transport.AssertNotCalled(t, "Send")
	m.fallback.AssertNotCalled(t, "Log")
	assert.Equal(t, int64(0), uc.GetStats().Total)
}

func TestAlertManager_GetStatus(t *testing.T) {
	uc, _ := newTestManager(t, defaultAlertingConfig())

	status := uc.GetStatus()
	assert.True(t, status.Enabled)
	assert.True(t, status.TransportAvailable)
	assert.Equal(t, "CLOSED", status.CircuitBreakerState)
	assert.True(t, status.RateLimitingEnabled)
	assert.Equal(t, "MEDIUM", status.MinSeverity)
}

func TestAlertManager_StatusUnavailableUntilTrialSucceeds(t *testing.T) {
	uc, m := newTestManager(t, defaultAlertingConfig())
	clock := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	uc.breaker.now = clock.Now

	m.transport.On("Send", mock.Anything, mock.Anything).Return(errSendFailed).Times(3)
	m.transport.On("Send", mock.Anything, mock.Anything).Return(nil)
	m.cache.On("RecordOutcome", mock.Anything, mock.Anything, mock.Anything)
	m.fallback.On("Log", mock.Anything, mock.Anything, mock.Anything)
	m.webhook.On("NotifyCircuitBroken", mock.Anything, mock.Anything).Return(nil)
	m.webhook.On("NotifyCircuitRecovered", mock.Anything, mock.Anything).Return(nil)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := uc.SendCriticalAlert(ctx, "Send me", "payload", "Test")
		require.NoError(t, err)
	}
	require.Equal(t, "OPEN", uc.breaker.State())

	// Past the recovery timeout a trial call would be admitted, but the
	// transport stays reported unavailable until one actually succeeds.
	clock.Advance(6 * time.Minute)
	status := uc.GetStatus()
	assert.False(t, status.TransportAvailable)
	assert.Equal(t, "OPEN", status.CircuitBreakerState)

	outcome, err := uc.SendCriticalAlert(ctx, "Send me", "payload", "Test")
	require.NoError(t, err)
	require.Equal(t, model.OutcomeSent, outcome)

	status = uc.GetStatus()
	assert.True(t, status.TransportAvailable)
	assert.Equal(t, "CLOSED", status.CircuitBreakerState)
}

func TestAlertManager_SelfTestFilteredUnderMediumFloor(t *testing.T) {
	// With the default MEDIUM floor the synthetic INFO alert is filtered,
	// so the self-test reports failure without a transport call.
	uc, m := newTestManager(t, defaultAlertingConfig())
	m.fallback.On("Log", mock.Anything, mock.Anything, model.OutcomeFilteredSeverity)
	m.cache.On("RecordOutcome", mock.Anything, mock.Anything, model.OutcomeFilteredSeverity)

	assert.False(t, uc.TestAlertSystem(context.Background()))
	m.transport.AssertNotCalled(t, "Send")
}

func TestAlertManager_SelfTestDeliversUnderInfoFloor(t *testing.T) {
	cfg := defaultAlertingConfig()
	cfg.MinSeverity = "INFO"

	uc, m := newTestManager(t, cfg)
	m.transport.On("Send", mock.Anything, mock.Anything).Return(nil)
	m.cache.On("RecordOutcome", mock.Anything, mock.Anything, model.OutcomeSent)

	assert.True(t, uc.TestAlertSystem(context.Background()))
}

func TestAlertManager_RecentAlertsReadsCache(t *testing.T) {
	uc, m := newTestManager(t, defaultAlertingConfig())

	records := []model.AlertRecord{
		{Alert: &model.Alert{ID: "a1"}, Outcome: model.OutcomeSent},
	}
	m.cache.On("Recent", mock.Anything, 5).Return(records)

	got := uc.RecentAlerts(context.Background(), 5)
	assert.Equal(t, records, got)
}

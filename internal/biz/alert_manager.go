package biz

import (
	"context"
	"time"

	"AlertGate/internal/conf"
	"AlertGate/internal/model"

	"github.com/go-kratos/kratos/v2/log"
)

// categoryPolicy is the parsed per-category gate.
type categoryPolicy struct {
	enabled     bool
	minSeverity model.Severity
}

// Status is the operator-facing view of the alerting pipeline.
type Status struct {
	Enabled             bool   `json:"enabled"`
	TransportAvailable  bool   `json:"transport_available"`
	CircuitBreakerState string `json:"circuit_breaker_state"`
	RateLimitingEnabled bool   `json:"rate_limiting_enabled"`
	MinSeverity         string `json:"min_severity"`
}

// AlertManagerUseCase orchestrates alert processing: severity and category
// filtering, rate limiting, the circuit-breaker-guarded transport call, and
// stats/fallback bookkeeping. Process is safe for concurrent producers, and
// no outcome other than a validation error ever propagates as a hard error.
type AlertManagerUseCase struct {
	enabled     bool
	minSeverity model.Severity
	categories  map[model.Category]categoryPolicy

	factory     *AlertFactory
	rateLimiter *RateLimiterUseCase
	breaker     *CircuitBreaker
	stats       *StatsRecorder
	transport   EmailTransport
	fallback    FallbackSink
	cache       AlertCache
	webhook     WebhookService
	logger      *log.Helper
}

// NewAlertManagerUseCase creates the alert manager from the configuration
// snapshot and its injected collaborators. The circuit breaker is owned by
// the manager so breaker transitions can be forwarded to the webhook service.
func NewAlertManagerUseCase(
	cfg *conf.Alerting,
	factory *AlertFactory,
	rateLimiter *RateLimiterUseCase,
	stats *StatsRecorder,
	transport EmailTransport,
	fallback FallbackSink,
	cache AlertCache,
	webhook WebhookService,
	logger log.Logger,
) (*AlertManagerUseCase, error) {
	minSeverity, err := model.ParseSeverity(cfg.MinSeverity)
	if err != nil {
		return nil, err
	}

	categories := make(map[model.Category]categoryPolicy, len(model.Categories))
	for _, cat := range model.Categories {
		policy := categoryPolicy{enabled: true, minSeverity: model.SeverityInfo}
		if raw, ok := cfg.Categories[string(cat)]; ok && raw != nil {
			policy.enabled = raw.Enabled
			if raw.MinSeverity != "" {
				sev, err := model.ParseSeverity(raw.MinSeverity)
				if err != nil {
					return nil, err
				}
				policy.minSeverity = sev
			}
		}
		categories[cat] = policy
	}

	uc := &AlertManagerUseCase{
		enabled:     cfg.Enabled,
		minSeverity: minSeverity,
		categories:  categories,
		factory:     factory,
		rateLimiter: rateLimiter,
		stats:       stats,
		transport:   transport,
		fallback:    fallback,
		cache:       cache,
		webhook:     webhook,
		logger:      log.NewHelper(logger),
	}
	uc.breaker = NewCircuitBreaker("email", logger, WithObserver(uc))
	return uc, nil
}

// Process runs one alert through the pipeline and returns its outcome.
// The returned error is non-nil only for a malformed alert (wrapped
// model.ErrValidation); every policy and delivery result is an Outcome.
func (uc *AlertManagerUseCase) Process(ctx context.Context, alert *model.Alert) (model.Outcome, error) {
	if err := alert.Validate(); err != nil {
		return "", err
	}

	if !uc.enabled {
		// Alerting switched off entirely is an explicit operator decision,
		// unlike a per-category flag, so even security alerts stop here.
		return uc.finish(ctx, alert, model.OutcomeFilteredCategory, "alerting disabled"), nil
	}

	minSeverity := uc.minSeverity
	policy, hasPolicy := uc.categories[alert.Category]
	if hasPolicy && policy.minSeverity > minSeverity {
		minSeverity = policy.minSeverity
	}
	if alert.Severity < minSeverity {
		return uc.finish(ctx, alert, model.OutcomeFilteredSeverity,
			"severity below "+minSeverity.String()), nil
	}

	if hasPolicy && !policy.enabled && !alert.ForcedSecurity() {
		return uc.finish(ctx, alert, model.OutcomeFilteredCategory,
			"category "+string(alert.Category)+" disabled"), nil
	}

	if !uc.rateLimiter.Allow(alert.Category) {
		return uc.finish(ctx, alert, model.OutcomeRateLimited, "rate limit exceeded"), nil
	}

	err := uc.breaker.Call(ctx, func(callCtx context.Context) error {
		return uc.transport.Send(callCtx, alert)
	})
	if err != nil {
		uc.logger.Warnw("msg", "alert delivery failed",
			"alert_id", alert.ID,
			"category", string(alert.Category),
			"severity", alert.Severity.String(),
			"error", err)
		return uc.finish(ctx, alert, model.OutcomeFailed, "delivery failed: "+err.Error()), nil
	}

	uc.stats.Record(alert.Category, model.OutcomeSent)
	uc.recordRecent(ctx, alert, model.OutcomeSent)
	uc.logger.Infow("msg", "alert sent",
		"alert_id", alert.ID,
		"title", alert.Title,
		"category", string(alert.Category),
		"severity", alert.Severity.String())
	return model.OutcomeSent, nil
}

// finish records a non-SENT outcome: counters, the fallback record, and the
// recent-alert cache. Every suppressed or failed alert lands in the fallback
// sink so nothing vanishes from the operational record.
func (uc *AlertManagerUseCase) finish(ctx context.Context, alert *model.Alert, outcome model.Outcome, reason string) model.Outcome {
	uc.stats.Record(alert.Category, outcome)
	uc.fallback.Log(ctx, alert, outcome)
	uc.recordRecent(ctx, alert, outcome)
	uc.logger.Debugw("msg", "alert not delivered",
		"alert_id", alert.ID,
		"outcome", string(outcome),
		"reason", reason)
	return outcome
}

// recordRecent feeds the recent-alert cache, best-effort.
func (uc *AlertManagerUseCase) recordRecent(ctx context.Context, alert *model.Alert, outcome model.Outcome) {
	if uc.cache != nil {
		uc.cache.RecordOutcome(ctx, alert, outcome)
	}
}

// SendAlert builds an alert from the given fields and processes it.
func (uc *AlertManagerUseCase) SendAlert(ctx context.Context, title, message string, severity model.Severity, category model.Category, component string, metadata map[string]interface{}) (model.Outcome, error) {
	alert, err := uc.factory.NewAlert(title, message, severity, category, component, metadata)
	if err != nil {
		return "", err
	}
	return uc.Process(ctx, alert)
}

// SendTradingErrorAlert reports a failed order execution (HIGH / TRADING_ERRORS).
func (uc *AlertManagerUseCase) SendTradingErrorAlert(ctx context.Context, symbol, orderType, errorMessage string, metadata map[string]interface{}) (model.Outcome, error) {
	alert, err := uc.factory.NewOrderFailureAlert(symbol, orderType, errorMessage, metadata)
	if err != nil {
		return "", err
	}
	return uc.Process(ctx, alert)
}

// SendSystemHealthAlert reports a performance threshold breach (SYSTEM_HEALTH,
// severity scaled by overshoot).
func (uc *AlertManagerUseCase) SendSystemHealthAlert(ctx context.Context, metricName string, currentValue, threshold float64, component string) (model.Outcome, error) {
	alert, err := uc.factory.NewPerformanceAlert(metricName, currentValue, threshold, component)
	if err != nil {
		return "", err
	}
	return uc.Process(ctx, alert)
}

// SendSecurityAlert reports a security event. Severity and category are
// forced to CRITICAL/SECURITY regardless of caller intent.
func (uc *AlertManagerUseCase) SendSecurityAlert(ctx context.Context, title, message, component string) (model.Outcome, error) {
	alert, err := uc.factory.NewSecurityAlert(title, message, component)
	if err != nil {
		return "", err
	}
	return uc.Process(ctx, alert)
}

// SendCriticalAlert sends a CRITICAL alert in the GENERAL category.
func (uc *AlertManagerUseCase) SendCriticalAlert(ctx context.Context, title, message, component string) (model.Outcome, error) {
	return uc.SendAlert(ctx, title, message, model.SeverityCritical, model.CategoryGeneral, component, nil)
}

// GetStatus returns the operator-facing pipeline status. The transport is
// reported unavailable for as long as the breaker is OPEN, including the
// stretch after the recovery timeout where a trial call would be admitted:
// availability is only reclaimed once a delivery actually succeeds.
func (uc *AlertManagerUseCase) GetStatus() Status {
	state := uc.breaker.State()
	return Status{
		Enabled:             uc.enabled,
		TransportAvailable:  state != stateOpen.String(),
		CircuitBreakerState: state,
		RateLimitingEnabled: uc.rateLimiter.Enabled(),
		MinSeverity:         uc.minSeverity.String(),
	}
}

// RecentAlerts returns up to n recently processed alerts from the cache,
// newest first.
func (uc *AlertManagerUseCase) RecentAlerts(ctx context.Context, n int) []model.AlertRecord {
	if uc.cache == nil {
		return nil
	}
	return uc.cache.Recent(ctx, n)
}

// GetStats returns an immutable counter snapshot.
func (uc *AlertManagerUseCase) GetStats() Stats {
	return uc.stats.Snapshot()
}

// TestAlertSystem pushes one synthetic INFO alert through the full pipeline
// and reports whether it was delivered. Filtering or rate limiting of the
// synthetic alert counts as a failed self-test, same as a transport failure.
func (uc *AlertManagerUseCase) TestAlertSystem(ctx context.Context) bool {
	alert, err := uc.factory.NewAlert(
		"Alert system self-test",
		"Synthetic alert verifying the delivery pipeline end to end.",
		model.SeverityInfo,
		model.CategoryGeneral,
		"AlertGate",
		map[string]interface{}{"self_test": true, "at": time.Now().Format(time.RFC3339)},
	)
	if err != nil {
		uc.logger.Errorw("msg", "self-test alert construction failed", "error", err)
		return false
	}

	outcome, err := uc.Process(ctx, alert)
	if err != nil {
		return false
	}
	return outcome == model.OutcomeSent
}

// OnCircuitBroken implements CircuitBreakerObserver: the transport circuit
// opened, notify operators out of band.
func (uc *AlertManagerUseCase) OnCircuitBroken(event *model.CircuitBrokenEvent) {
	if uc.webhook == nil {
		return
	}
	if err := uc.webhook.NotifyCircuitBroken(context.Background(), event); err != nil {
		uc.logger.Warnw("msg", "circuit broken webhook failed", "error", err)
	}
}

// OnCircuitRecovered implements CircuitBreakerObserver.
func (uc *AlertManagerUseCase) OnCircuitRecovered(event *model.CircuitRecoveredEvent) {
	if uc.webhook == nil {
		return
	}
	if err := uc.webhook.NotifyCircuitRecovered(context.Background(), event); err != nil {
		uc.logger.Warnw("msg", "circuit recovered webhook failed", "error", err)
	}
}

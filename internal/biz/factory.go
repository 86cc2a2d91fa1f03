package biz

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"AlertGate/internal/model"
)

// AlertFactory builds well-formed alerts for common scenarios. Builders are
// pure: they validate their input and return a value or an error, with no
// shared state and no side effects.
type AlertFactory struct{}

// NewAlertFactory creates an alert factory.
func NewAlertFactory() *AlertFactory {
	return &AlertFactory{}
}

// newAlertID returns a random 16-hex-char alert identifier.
func newAlertID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand failure is unrecoverable in practice; fall back to a
		// timestamp-derived identifier rather than failing the alert.
		return fmt.Sprintf("%016x", time.Now().UnixNano())
	}
	return hex.EncodeToString(b[:])
}

// NewAlert builds and validates an arbitrary alert.
func (f *AlertFactory) NewAlert(title, message string, severity model.Severity, category model.Category, component string, metadata map[string]interface{}) (*model.Alert, error) {
	alert := &model.Alert{
		ID:        newAlertID(),
		Title:     title,
		Message:   message,
		Severity:  severity,
		Category:  category,
		Component: component,
		Metadata:  metadata,
		CreatedAt: time.Now(),
	}
	if err := alert.Validate(); err != nil {
		return nil, err
	}
	return alert, nil
}

// NewOrderFailureAlert builds a HIGH severity TRADING_ERRORS alert for a
// failed order execution.
func (f *AlertFactory) NewOrderFailureAlert(symbol, orderType, errorMessage string, metadata map[string]interface{}) (*model.Alert, error) {
	md := make(map[string]interface{}, len(metadata)+2)
	for k, v := range metadata {
		md[k] = v
	}
	md["symbol"] = symbol
	md["order_type"] = orderType

	return f.NewAlert(
		fmt.Sprintf("Order execution failed: %s", symbol),
		errorMessage,
		model.SeverityHigh,
		model.CategoryTradingErrors,
		"OrderExecutor",
		md,
	)
}

// NewPerformanceAlert builds a SYSTEM_HEALTH alert whose severity scales
// with how far the metric overshoots its threshold.
func (f *AlertFactory) NewPerformanceAlert(metricName string, currentValue, threshold float64, component string) (*model.Alert, error) {
	severity := performanceSeverity(currentValue, threshold)

	return f.NewAlert(
		fmt.Sprintf("Performance threshold breached: %s", metricName),
		fmt.Sprintf("%s is %.2f, threshold %.2f", metricName, currentValue, threshold),
		severity,
		model.CategorySystemHealth,
		component,
		map[string]interface{}{
			"metric":    metricName,
			"current":   currentValue,
			"threshold": threshold,
		},
	)
}

// performanceSeverity maps the overshoot ratio to a severity tier.
func performanceSeverity(current, threshold float64) model.Severity {
	if threshold <= 0 {
		return model.SeverityCritical
	}
	ratio := current / threshold
	switch {
	case ratio >= 2.0:
		return model.SeverityCritical
	case ratio >= 1.5:
		return model.SeverityHigh
	case ratio >= 1.2:
		return model.SeverityMedium
	default:
		return model.SeverityLow
	}
}

// NewSecurityAlert builds a security alert. Severity and category are forced
// to CRITICAL/SECURITY and cannot be overridden by the caller, so a security
// event always bypasses per-category disablement.
func (f *AlertFactory) NewSecurityAlert(title, message, component string) (*model.Alert, error) {
	return f.NewAlert(title, message, model.SeverityCritical, model.CategorySecurity, component, nil)
}

// Package model contains domain models shared across the alerting core.
package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrValidation is the sentinel for malformed alerts detected at construction
// time. It is the only condition surfaced to producers as a hard error; every
// other result of processing an alert is reported as an Outcome.
var ErrValidation = errors.New("alert validation failed")

// Severity is the ordered urgency tier of an alert.
// The zero value is SeverityInfo, the lowest tier.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityLow
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

var severityNames = map[Severity]string{
	SeverityInfo:     "INFO",
	SeverityLow:      "LOW",
	SeverityMedium:   "MEDIUM",
	SeverityHigh:     "HIGH",
	SeverityCritical: "CRITICAL",
}

// String returns the canonical upper-case name of the severity.
func (s Severity) String() string {
	if name, ok := severityNames[s]; ok {
		return name
	}
	return fmt.Sprintf("SEVERITY(%d)", int(s))
}

// Valid reports whether the severity is one of the defined tiers.
func (s Severity) Valid() bool {
	_, ok := severityNames[s]
	return ok
}

// ParseSeverity converts a canonical severity name into a Severity.
// Unknown names are rejected with ErrValidation so a mistyped severity
// fails at construction rather than being silently mis-filtered.
func ParseSeverity(name string) (Severity, error) {
	for sev, n := range severityNames {
		if n == name {
			return sev, nil
		}
	}
	return SeverityInfo, fmt.Errorf("%w: unknown severity %q", ErrValidation, name)
}

// MarshalJSON encodes the severity as its canonical name.
func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a canonical severity name.
func (s *Severity) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	sev, err := ParseSeverity(name)
	if err != nil {
		return err
	}
	*s = sev
	return nil
}

// Category is the functional classification of an alert's source area.
type Category string

const (
	CategoryTradingErrors Category = "TRADING_ERRORS"
	CategorySystemHealth  Category = "SYSTEM_HEALTH"
	CategoryDataPipeline  Category = "DATA_PIPELINE"
	CategorySecurity      Category = "SECURITY"
	CategoryGeneral       Category = "GENERAL"
)

// Categories lists every defined category in a stable order.
var Categories = []Category{
	CategoryTradingErrors,
	CategorySystemHealth,
	CategoryDataPipeline,
	CategorySecurity,
	CategoryGeneral,
}

// Valid reports whether the category is one of the defined values.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// ParseCategory converts a canonical category name into a Category.
func ParseCategory(name string) (Category, error) {
	c := Category(name)
	if !c.Valid() {
		return "", fmt.Errorf("%w: unknown category %q", ErrValidation, name)
	}
	return c, nil
}

// Scan implements sql.Scanner so categories round-trip through GORM columns.
func (c *Category) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*c = ""
		return nil
	case string:
		*c = Category(v)
		return nil
	case []byte:
		*c = Category(v)
		return nil
	default:
		return fmt.Errorf("cannot scan %T into Category", value)
	}
}

// Value implements driver.Valuer for GORM persistence.
func (c Category) Value() (driver.Value, error) {
	return string(c), nil
}

// Outcome is the result of processing one alert. Policy outcomes
// (filtered, rate-limited) are statuses, not errors.
type Outcome string

const (
	OutcomeSent             Outcome = "SENT"
	OutcomeFilteredSeverity Outcome = "FILTERED_SEVERITY"
	OutcomeFilteredCategory Outcome = "FILTERED_CATEGORY"
	OutcomeRateLimited      Outcome = "RATE_LIMITED"
	OutcomeFailed           Outcome = "FAILED"
)

// Alert is an immutable alert event raised by a producer. Alerts are created
// once (directly or via the factory builders in biz) and never mutated; the
// core does not retain them beyond one Process call.
type Alert struct {
	ID            string                 `json:"id"`
	Title         string                 `json:"title"`
	Message       string                 `json:"message"`
	Severity      Severity               `json:"severity"`
	Category      Category               `json:"category"`
	Component     string                 `json:"component"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
	CorrelationID string                 `json:"correlation_id,omitempty"`
}

// Validate checks that the alert is well formed: non-empty title and message,
// known severity and category, and metadata representable in the outbound
// JSON payload. All violations are reported wrapped in ErrValidation.
func (a *Alert) Validate() error {
	if a.Title == "" {
		return fmt.Errorf("%w: title is empty", ErrValidation)
	}
	if a.Message == "" {
		return fmt.Errorf("%w: message is empty", ErrValidation)
	}
	if !a.Severity.Valid() {
		return fmt.Errorf("%w: invalid severity %d", ErrValidation, int(a.Severity))
	}
	if !a.Category.Valid() {
		return fmt.Errorf("%w: invalid category %q", ErrValidation, string(a.Category))
	}
	if a.Metadata != nil {
		if _, err := json.Marshal(a.Metadata); err != nil {
			return fmt.Errorf("%w: metadata is not JSON-representable: %v", ErrValidation, err)
		}
	}
	return nil
}

// AlertRecord pairs a processed alert with its outcome, as kept by the
// recent-alert cache for the operator status surface.
type AlertRecord struct {
	Alert   *Alert  `json:"alert"`
	Outcome Outcome `json:"outcome"`
}

// ForcedSecurity reports whether the alert must bypass the per-category
// enabled flag: a CRITICAL security alert cannot be silenced by
// misconfiguration.
func (a *Alert) ForcedSecurity() bool {
	return a.Category == CategorySecurity && a.Severity == SeverityCritical
}

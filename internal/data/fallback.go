package data

import (
	"context"
	"encoding/json"
	"time"

	"AlertGate/internal/model"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
)

// FallbackRecord is the GORM model for the alert_fallback_log table: the
// durable record of every alert that was filtered, rate limited, or failed
// delivery.
type FallbackRecord struct {
	ID            int64          `gorm:"primaryKey;column:id"`
	AlertID       string         `gorm:"column:alert_id;type:varchar(32);not null;index"`
	Title         string         `gorm:"column:title;type:varchar(255);not null"`
	Severity      string         `gorm:"column:severity;type:varchar(16);not null"`
	Category      model.Category `gorm:"column:category;type:varchar(32);not null;index"`
	Component     string         `gorm:"column:component;type:varchar(64)"`
	Outcome       string         `gorm:"column:outcome;type:varchar(32);not null;index"`
	Payload       string         `gorm:"column:payload;type:json"` // full alert JSON
	CorrelationID string         `gorm:"column:correlation_id;type:varchar(64)"`
	CreatedAt     time.Time      `gorm:"column:created_at;autoCreateTime"`
}

// TableName specifies the table name for GORM
func (FallbackRecord) TableName() string {
	return "alert_fallback_log"
}

// FallbackSinkImpl implements biz.FallbackSink with an async channel in front
// of the database so the producer never blocks on sink I/O. On overflow the
// record is dropped with a warning; with no database it degrades to process
// logging, so suppressed alerts always leave a trace somewhere.
type FallbackSinkImpl struct {
	db      *gorm.DB
	logChan chan *FallbackRecord
	logger  *log.Helper
}

// NewFallbackSink creates a fallback sink with an async drain goroutine.
func NewFallbackSink(d *Data, logger log.Logger) *FallbackSinkImpl {
	db := d.db
	s := &FallbackSinkImpl{
		db:      db,
		logChan: make(chan *FallbackRecord, 1000), // Buffer size 1000 to prevent blocking
		logger:  log.NewHelper(logger),
	}

	if db != nil {
		go s.start()
	}

	return s
}

// start drains fallback records into the database.
func (s *FallbackSinkImpl) start() {
	for record := range s.logChan {
		ctx := context.Background()
		if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
			s.logger.Errorw("msg", "failed to write fallback record",
				"alert_id", record.AlertID,
				"outcome", record.Outcome,
				"error", err)
		} else {
			s.logger.Debugw("msg", "fallback record written",
				"alert_id", record.AlertID,
				"outcome", record.Outcome)
		}
	}
}

// Log records one non-delivered alert. It never returns an error and never
// blocks the caller: queue overflow drops the database write with a warning,
// and the structured log line below is always emitted.
func (s *FallbackSinkImpl) Log(ctx context.Context, alert *model.Alert, reason model.Outcome) {
	// The process log is the unconditional trace.
	s.logger.Infow("msg", "alert routed to fallback",
		"alert_id", alert.ID,
		"title", alert.Title,
		"severity", alert.Severity.String(),
		"category", string(alert.Category),
		"component", alert.Component,
		"outcome", string(reason))

	if s.db == nil {
		return
	}

	record := newFallbackRecord(alert, reason)
	select {
	case s.logChan <- record:
	default:
		s.logger.Warnw("msg", "fallback queue full, dropping database record",
			"alert_id", alert.ID,
			"outcome", string(reason))
	}
}

// newFallbackRecord converts an alert and its outcome into the GORM row.
func newFallbackRecord(alert *model.Alert, reason model.Outcome) *FallbackRecord {
	payload, err := json.Marshal(alert)
	if err != nil {
		// Validated alerts marshal; keep the row useful if one slips by.
		payload = []byte(`{}`)
	}
	return &FallbackRecord{
		AlertID:       alert.ID,
		Title:         alert.Title,
		Severity:      alert.Severity.String(),
		Category:      alert.Category,
		Component:     alert.Component,
		Outcome:       string(reason),
		Payload:       string(payload),
		CorrelationID: alert.CorrelationID,
	}
}

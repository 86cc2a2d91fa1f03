// Package service maps the HTTP surface onto the alerting use cases.
// Policy outcomes (filtered, rate limited, failed) are successful responses
// carrying the outcome; only malformed requests become HTTP errors.
package service

import (
	"context"

	"AlertGate/internal/biz"
	"AlertGate/internal/model"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
)

// AlertService exposes the producer-facing alerting API.
type AlertService struct {
	uc     *biz.AlertManagerUseCase
	logger *log.Helper
}

// NewAlertService creates a new AlertService instance.
func NewAlertService(uc *biz.AlertManagerUseCase, logger log.Logger) *AlertService {
	return &AlertService{
		uc:     uc,
		logger: log.NewHelper(logger),
	}
}

// SendAlertRequest is the payload for POST /api/v1/alerts.
type SendAlertRequest struct {
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Severity  string                 `json:"severity"`
	Category  string                 `json:"category"`
	Component string                 `json:"component"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// SendAlertResponse reports the pipeline outcome for one alert.
type SendAlertResponse struct {
	Outcome string `json:"outcome"`
}

// RecentAlertsResponse lists recently processed alerts, newest first.
type RecentAlertsResponse struct {
	Alerts []model.AlertRecord `json:"alerts"`
}

// SelfTestResponse reports whether the synthetic alert was delivered.
type SelfTestResponse struct {
	Passed bool `json:"passed"`
}

// SendAlert builds and processes one alert from the request payload.
func (s *AlertService) SendAlert(ctx context.Context, req *SendAlertRequest) (*SendAlertResponse, error) {
	severity, err := model.ParseSeverity(req.Severity)
	if err != nil {
		return nil, kerrors.New(400, "INVALID_SEVERITY", err.Error())
	}
	category, err := model.ParseCategory(req.Category)
	if err != nil {
		return nil, kerrors.New(400, "INVALID_CATEGORY", err.Error())
	}

	outcome, err := s.uc.SendAlert(ctx, req.Title, req.Message, severity, category, req.Component, req.Metadata)
	if err != nil {
		// The only hard error out of the pipeline is a validation failure.
		return nil, kerrors.New(400, "VALIDATION_FAILED", err.Error())
	}

	return &SendAlertResponse{Outcome: string(outcome)}, nil
}

// GetStatus returns the operator-facing pipeline status.
func (s *AlertService) GetStatus(ctx context.Context) (*biz.Status, error) {
	status := s.uc.GetStatus()
	return &status, nil
}

// GetStats returns the counter snapshot.
func (s *AlertService) GetStats(ctx context.Context) (*biz.Stats, error) {
	stats := s.uc.GetStats()
	return &stats, nil
}

// RecentAlerts returns up to limit recently processed alerts.
func (s *AlertService) RecentAlerts(ctx context.Context, limit int) (*RecentAlertsResponse, error) {
	if limit <= 0 {
		limit = 20
	}
	return &RecentAlertsResponse{Alerts: s.uc.RecentAlerts(ctx, limit)}, nil
}

// SelfTest runs a synthetic alert through the full pipeline.
func (s *AlertService) SelfTest(ctx context.Context) (*SelfTestResponse, error) {
	passed := s.uc.TestAlertSystem(ctx)
	if !passed {
		s.logger.Warn("alert system self-test did not deliver")
	}
	return &SelfTestResponse{Passed: passed}, nil
}

// Package biz contains business logic layer implementations.
// This layer holds the core business rules and domain models.
package biz

import (
	"AlertGate/internal/data"

	"github.com/google/wire"
)

// ProviderSet is biz providers.
var ProviderSet = wire.NewSet(
	NewAlertFactory,
	NewRateLimiterUseCase,
	NewStatsRecorder,
	NewAlertManagerUseCase,
	// Import data layer providers
	data.NewSMTPTransport,
	data.NewFallbackSink,
	data.NewAlertCache,
	data.NewWebhookService,
	// Bind data layer implementations to biz layer interfaces
	wire.Bind(new(EmailTransport), new(*data.SMTPTransport)),
	wire.Bind(new(FallbackSink), new(*data.FallbackSinkImpl)),
	wire.Bind(new(AlertCache), new(*data.AlertCacheImpl)),
	wire.Bind(new(WebhookService), new(*data.HTTPWebhookService)),
)

package biz

import (
	"context"

	"AlertGate/internal/model"
)

// EmailTransport performs the actual outbound delivery of an alert.
// Following Kratos v2 DDD architecture, the interface is defined in the biz
// layer; the SMTP implementation lives in the data layer and is swappable
// (tests inject a mock).
//
// Send must bound its own network work by the configured timeout and release
// the connection on every exit path. Timeouts, connection failures and
// authentication rejections are all transport-level errors and feed the
// circuit breaker's failure accounting.
type EmailTransport interface {
	// Send delivers one alert. Returns a transport-level error on failure.
	Send(ctx context.Context, alert *model.Alert) error

	// IsAvailable performs a lightweight handshake without sending a body.
	IsAvailable(ctx context.Context) bool

	// TestConnection performs the same handshake, surfacing the error.
	TestConnection(ctx context.Context) error
}

// FallbackSink is the durable record for every alert that did not reach the
// transport successfully: filtered, rate limited, or failed delivery. Log
// must never return an error to the caller; sink failures degrade to process
// logging so alerting stays off the producer's critical path.
type FallbackSink interface {
	Log(ctx context.Context, alert *model.Alert, reason model.Outcome)
}

// AlertCache keeps a bounded record of recently processed alerts for the
// operator status surface. Both operations are best-effort.
type AlertCache interface {
	// RecordOutcome remembers one processed alert and its outcome.
	RecordOutcome(ctx context.Context, alert *model.Alert, outcome model.Outcome)

	// Recent returns up to n of the most recently recorded entries,
	// newest first.
	Recent(ctx context.Context, n int) []model.AlertRecord
}

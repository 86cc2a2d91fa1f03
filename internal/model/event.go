package model

import "time"

// CircuitBrokenEvent represents the outbound transport circuit opening after
// repeated delivery failures.
type CircuitBrokenEvent struct {
	Transport       string
	FailureCount    int
	LastError       string
	CircuitBrokenAt time.Time
}

// CircuitRecoveredEvent represents the circuit closing again after a
// successful trial delivery.
type CircuitRecoveredEvent struct {
	Transport   string
	OpenFor     time.Duration
	RecoveredAt time.Time
}

package biz

import (
	"context"
	"errors"
	"sync"
	"time"

	"AlertGate/internal/model"

	"github.com/go-kratos/kratos/v2/log"
)

// ErrCircuitOpen is returned when a call is fast-failed because the breaker
// is open and the recovery timeout has not elapsed. The transport is presumed
// unavailable and is not invoked at all.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// circuitState is the breaker state machine position.
type circuitState int

const (
	stateClosed circuitState = iota
	stateOpen
	stateHalfOpen
)

func (s circuitState) String() string {
	switch s {
	case stateClosed:
		return "CLOSED"
	case stateOpen:
		return "OPEN"
	case stateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// CircuitBreakerObserver receives breaker transition events. The alert
// manager wires this to the webhook service so operators learn when the
// transport circuit opens or recovers.
type CircuitBreakerObserver interface {
	OnCircuitBroken(event *model.CircuitBrokenEvent)
	OnCircuitRecovered(event *model.CircuitRecoveredEvent)
}

// CircuitBreaker guards the outbound transport call. It fails fast after
// FailureThreshold consecutive transport failures and permits exactly one
// trial call once RecoveryTimeout has elapsed.
//
// All state reads and transitions are linearized under a single mutex;
// the guarded call itself always executes outside the lock so a slow or
// hung send cannot block breaker evaluation for other callers.
type CircuitBreaker struct {
	name             string
	failureThreshold int
	recoveryTimeout  time.Duration
	logger           *log.Helper
	observer         CircuitBreakerObserver

	mu            sync.Mutex
	state         circuitState
	failureCount  int
	lastFailure   time.Time
	openedAt      time.Time
	lastError     string
	trialInFlight bool

	// now is replaceable in tests.
	now func() time.Time
}

// CircuitBreakerOption customizes a CircuitBreaker.
type CircuitBreakerOption func(*CircuitBreaker)

// WithFailureThreshold overrides the consecutive-failure count that opens
// the breaker (default 3).
func WithFailureThreshold(n int) CircuitBreakerOption {
	return func(cb *CircuitBreaker) {
		if n > 0 {
			cb.failureThreshold = n
		}
	}
}

// WithRecoveryTimeout overrides how long the breaker stays open before a
// trial call is permitted (default 5 minutes).
func WithRecoveryTimeout(d time.Duration) CircuitBreakerOption {
	return func(cb *CircuitBreaker) {
		if d > 0 {
			cb.recoveryTimeout = d
		}
	}
}

// WithObserver registers a transition observer.
func WithObserver(o CircuitBreakerObserver) CircuitBreakerOption {
	return func(cb *CircuitBreaker) {
		cb.observer = o
	}
}

// NewCircuitBreaker creates a circuit breaker for the named transport.
func NewCircuitBreaker(name string, logger log.Logger, opts ...CircuitBreakerOption) *CircuitBreaker {
	cb := &CircuitBreaker{
		name:             name,
		failureThreshold: 3,
		recoveryTimeout:  5 * time.Minute,
		logger:           log.NewHelper(logger),
		state:            stateClosed,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(cb)
	}
	return cb
}

// Call runs fn under breaker protection. When the breaker is open and the
// recovery timeout has not elapsed, fn is not invoked and ErrCircuitOpen is
// returned. In HALF_OPEN exactly one caller gets the trial call; concurrent
// callers fail fast until the trial resolves.
//
// Only transport-level failures may be routed through Call; policy
// rejections and payload validation errors must be handled before reaching
// the breaker so they never advance the failure count.
func (cb *CircuitBreaker) Call(ctx context.Context, fn func(context.Context) error) error {
	if err := cb.before(); err != nil {
		return err
	}

	// The guarded network call runs without holding the breaker lock.
	err := fn(ctx)

	cb.after(err)
	return err
}

// State returns the current breaker state name. An elapsed recovery timeout
// does not change the reported state; the transition to HALF_OPEN happens on
// the next call attempt.
func (cb *CircuitBreaker) State() string {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state.String()
}

// Available reports whether a call would currently be attempted.
func (cb *CircuitBreaker) Available() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state != stateOpen {
		return true
	}
	return cb.now().Sub(cb.openedAt) >= cb.recoveryTimeout
}

// before performs the state-read-and-transition that admits or rejects a
// call attempt.
func (cb *CircuitBreaker) before() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case stateClosed:
		return nil
	case stateOpen:
		if cb.now().Sub(cb.openedAt) < cb.recoveryTimeout {
			return ErrCircuitOpen
		}
		// Recovery timeout elapsed: this caller becomes the single trial.
		cb.state = stateHalfOpen
		cb.trialInFlight = true
		cb.logger.Infow("msg", "circuit breaker half-open, permitting trial call",
			"transport", cb.name,
			"open_for", cb.now().Sub(cb.openedAt).String())
		return nil
	case stateHalfOpen:
		if cb.trialInFlight {
			return ErrCircuitOpen
		}
		cb.trialInFlight = true
		return nil
	}
	return nil
}

// after records the call result and drives the state machine.
func (cb *CircuitBreaker) after(err error) {
	var broken *model.CircuitBrokenEvent
	var recovered *model.CircuitRecoveredEvent

	cb.mu.Lock()
	switch {
	case err == nil:
		if cb.state == stateHalfOpen {
			recovered = &model.CircuitRecoveredEvent{
				Transport:   cb.name,
				OpenFor:     cb.now().Sub(cb.openedAt),
				RecoveredAt: cb.now(),
			}
			cb.logger.Infow("msg", "circuit breaker closed after successful trial",
				"transport", cb.name)
		}
		cb.state = stateClosed
		cb.failureCount = 0
		cb.trialInFlight = false
	case cb.state == stateHalfOpen:
		// Trial failed: reopen and restart the recovery timer.
		cb.state = stateOpen
		cb.openedAt = cb.now()
		cb.lastFailure = cb.now()
		cb.lastError = err.Error()
		cb.trialInFlight = false
		cb.logger.Warnw("msg", "circuit breaker reopened, trial call failed",
			"transport", cb.name,
			"error", err)
	default:
		cb.failureCount++
		cb.lastFailure = cb.now()
		cb.lastError = err.Error()
		if cb.failureCount >= cb.failureThreshold && cb.state == stateClosed {
			cb.state = stateOpen
			cb.openedAt = cb.now()
			broken = &model.CircuitBrokenEvent{
				Transport:       cb.name,
				FailureCount:    cb.failureCount,
				LastError:       cb.lastError,
				CircuitBrokenAt: cb.openedAt,
			}
			cb.logger.Errorw("msg", "circuit breaker opened",
				"transport", cb.name,
				"consecutive_failures", cb.failureCount,
				"recovery_timeout", cb.recoveryTimeout.String())
		}
	}
	cb.mu.Unlock()

	// Observer callbacks run outside the lock.
	if cb.observer != nil {
		if broken != nil {
			cb.observer.OnCircuitBroken(broken)
		}
		if recovered != nil {
			cb.observer.OnCircuitRecovered(recovered)
		}
	}
}

package biz

import (
	"context"
	"errors"
	"testing"
	"time"

	"AlertGate/internal/model"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errSendFailed = errors.New("smtp connect refused")

// fakeClock lets tests advance the breaker's view of time.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(opts ...CircuitBreakerOption) (*CircuitBreaker, *fakeClock) {
	cb := NewCircuitBreaker("email", log.DefaultLogger, opts...)
	clock := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	cb.now = clock.Now
	return cb, clock
}

func failingCall(ctx context.Context) error    { return errSendFailed }
func succeedingCall(ctx context.Context) error { return nil }

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb, _ := newTestBreaker()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		assert.Equal(t, "CLOSED", cb.State())
		err := cb.Call(ctx, failingCall)
		assert.ErrorIs(t, err, errSendFailed)
	}

	assert.Equal(t, "OPEN", cb.State())
}

func TestCircuitBreaker_FastFailsWhileOpen(t *testing.T) {
	cb, clock := newTestBreaker()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = cb.Call(ctx, failingCall)
	}
	require.Equal(t, "OPEN", cb.State())

	// Well inside the recovery window the guarded function must not run.
	clock.Advance(time.Minute)
	called := false
	err := cb.Call(ctx, func(ctx context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
	assert.False(t, cb.Available())
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb, _ := newTestBreaker()
	ctx := context.Background()

	_ = cb.Call(ctx, failingCall)
	_ = cb.Call(ctx, failingCall)
	require.NoError(t, cb.Call(ctx, succeedingCall))

	// Two more failures must not open the breaker: the counter restarted.
	_ = cb.Call(ctx, failingCall)
	_ = cb.Call(ctx, failingCall)
	assert.Equal(t, "CLOSED", cb.State())
}

func TestCircuitBreaker_RecoversThroughTrialCall(t *testing.T) {
	cb, clock := newTestBreaker()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = cb.Call(ctx, failingCall)
	}
	require.Equal(t, "OPEN", cb.State())

	clock.Advance(5*time.Minute + time.Second)
	assert.True(t, cb.Available())

	err := cb.Call(ctx, succeedingCall)
	assert.NoError(t, err)
	assert.Equal(t, "CLOSED", cb.State())
}

func TestCircuitBreaker_FailedTrialReopensAndRestartsTimer(t *testing.T) {
	cb, clock := newTestBreaker()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = cb.Call(ctx, failingCall)
	}
	clock.Advance(5*time.Minute + time.Second)

	err := cb.Call(ctx, failingCall)
	assert.ErrorIs(t, err, errSendFailed)
	assert.Equal(t, "OPEN", cb.State())

	// The recovery timer restarted at the failed trial, so a call shortly
	// after must still fast-fail.
	clock.Advance(time.Minute)
	err = cb.Call(ctx, failingCall)
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestCircuitBreaker_CustomThresholdAndTimeout(t *testing.T) {
	cb, clock := newTestBreaker(
		WithFailureThreshold(1),
		WithRecoveryTimeout(10*time.Second),
	)
	ctx := context.Background()

	_ = cb.Call(ctx, failingCall)
	assert.Equal(t, "OPEN", cb.State())

	clock.Advance(11 * time.Second)
	assert.NoError(t, cb.Call(ctx, succeedingCall))
	assert.Equal(t, "CLOSED", cb.State())
}

// recordingObserver captures breaker transition events.
type recordingObserver struct {
	broken    []*model.CircuitBrokenEvent
	recovered []*model.CircuitRecoveredEvent
}

func (o *recordingObserver) OnCircuitBroken(e *model.CircuitBrokenEvent) {
	o.broken = append(o.broken, e)
}

func (o *recordingObserver) OnCircuitRecovered(e *model.CircuitRecoveredEvent) {
	o.recovered = append(o.recovered, e)
}

func TestCircuitBreaker_ObserverReceivesTransitions(t *testing.T) {
	obs := &recordingObserver{}
	cb, clock := newTestBreaker(WithObserver(obs))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = cb.Call(ctx, failingCall)
	}
	require.Len(t, obs.broken, 1)
	assert.Equal(t, "email", obs.broken[0].Transport)
	assert.Equal(t, 3, obs.broken[0].FailureCount)
	assert.Equal(t, errSendFailed.Error(), obs.broken[0].LastError)

	clock.Advance(6 * time.Minute)
	require.NoError(t, cb.Call(ctx, succeedingCall))
	require.Len(t, obs.recovered, 1)
	assert.Equal(t, "email", obs.recovered[0].Transport)
	assert.GreaterOrEqual(t, obs.recovered[0].OpenFor, 5*time.Minute)
}

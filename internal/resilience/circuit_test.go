package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/jobfit-research/internal/config"
)

func failing(_ context.Context) (string, error) { return "", errors.New("boom") }
func succeeding(_ context.Context) (string, error) { return "ok", nil }

func TestCircuitBreaker_ClosedPassesThrough(t *testing.T) {
	cb := NewCircuitBreaker("gemini-2.5-flash", BreakerConfig{})

	val, err := ExecuteVal(context.Background(), cb, succeeding)
	require.NoError(t, err)
	assert.Equal(t, "ok", val)
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker("m", BreakerConfig{FailureThreshold: 3, ResetTimeout: time.Minute})

	for i := 0; i < 3; i++ {
		_, _ = ExecuteVal(context.Background(), cb, failing)
	}
	assert.Equal(t, CircuitOpen, cb.State())
	assert.Equal(t, 3, cb.Failures())

	called := false
	_, err := ExecuteVal(context.Background(), cb, func(_ context.Context) (string, error) {
		called = true
		return "", nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestCircuitBreaker_SuccessResetsFailures(t *testing.T) {
	cb := NewCircuitBreaker("m", BreakerConfig{FailureThreshold: 3})

	_, _ = ExecuteVal(context.Background(), cb, failing)
	_, _ = ExecuteVal(context.Background(), cb, failing)
	assert.Equal(t, 2, cb.Failures())

	_, err := ExecuteVal(context.Background(), cb, succeeding)
	require.NoError(t, err)
	assert.Equal(t, 0, cb.Failures())
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenProbe(t *testing.T) {
	now := time.Now()
	cb := NewCircuitBreaker("m", BreakerConfig{FailureThreshold: 1, ResetTimeout: 10 * time.Second})
	cb.now = func() time.Time { return now }

	_, _ = ExecuteVal(context.Background(), cb, failing)
	require.Equal(t, CircuitOpen, cb.State())

	now = now.Add(11 * time.Second)
	assert.Equal(t, CircuitHalfOpen, cb.State())

	// A failed probe reopens.
	_, _ = ExecuteVal(context.Background(), cb, failing)
	assert.Equal(t, CircuitOpen, cb.State())

	now = now.Add(11 * time.Second)
	_, err := ExecuteVal(context.Background(), cb, succeeding)
	require.NoError(t, err)
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreaker_CancelledContextNotCounted(t *testing.T) {
	cb := NewCircuitBreaker("m", BreakerConfig{FailureThreshold: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ExecuteVal(ctx, cb, func(ctx context.Context) (string, error) {
		return "", ctx.Err()
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, CircuitClosed, cb.State())
	assert.Equal(t, 0, cb.Failures())
}

func TestBreakers_GetIsStable(t *testing.T) {
	b := NewBreakers(BreakerConfig{})
	assert.Same(t, b.Get("a"), b.Get("a"))
	assert.NotSame(t, b.Get("a"), b.Get("b"))
}

func TestBreakers_Snapshot(t *testing.T) {
	b := NewBreakers(BreakerConfig{FailureThreshold: 1})
	_, _ = ExecuteVal(context.Background(), b.Get("zeta"), failing)
	_, _ = ExecuteVal(context.Background(), b.Get("alpha"), succeeding)

	snap := b.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "alpha", snap[0].Name)
	assert.Equal(t, CircuitClosed, snap[0].State)
	assert.Equal(t, "zeta", snap[1].Name)
	assert.Equal(t, CircuitOpen, snap[1].State)
	assert.Equal(t, 1, snap[1].Failures)
}

func TestNewBreakerConfig(t *testing.T) {
	cfg := NewBreakerConfig(config.CircuitConfig{FailureThreshold: 7, ResetTimeoutSecs: 30})
	assert.Equal(t, 7, cfg.FailureThreshold)
	assert.Equal(t, 30*time.Second, cfg.ResetTimeout)

	def := BreakerConfig{}.withDefaults()
	assert.Equal(t, 5, def.FailureThreshold)
	assert.Equal(t, 60*time.Second, def.ResetTimeout)
}

func TestCircuitState_String(t *testing.T) {
	assert.Equal(t, "closed", CircuitClosed.String())
	assert.Equal(t, "open", CircuitOpen.String())
	assert.Equal(t, "half-open", CircuitHalfOpen.String())
	assert.Equal(t, "unknown", CircuitState(9).String())
}

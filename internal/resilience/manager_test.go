package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu    sync.Mutex
	now   time.Time
	waits []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// After advances the clock by d and fires immediately.
func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.waits = append(c.waits, d)
	c.now = c.now.Add(d)
	ch := make(chan time.Time, 1)
	ch <- c.now
	return ch
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type statusErr struct {
	code       int
	retryAfter time.Duration
}

func (e *statusErr) Error() string             { return fmt.Sprintf("status %d", e.code) }
func (e *statusErr) HTTPStatusCode() int       { return e.code }
func (e *statusErr) RetryAfter() time.Duration { return e.retryAfter }

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o deadline" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func newTestManager(clock Clock) *Manager {
	return NewManager(WithClock(clock), WithRand(func() float64 { return 0.5 }))
}

func TestExecuteRetriesThenSucceeds(t *testing.T) {
	clock := newFakeClock()
	m := newTestManager(clock)
	calls := 0

	got, err := Execute(context.Background(), m, "generate", "openai", DefaultRetryConfig(), func(ctx context.Context) (string, error) {
		calls++
		if calls <= 2 {
			return "", &statusErr{code: 503}
		}
		return "document", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "document", got)
	assert.Equal(t, 3, calls)
	assert.Equal(t, BreakerState{State: StateClosed}, m.State("openai"))

	require.Len(t, clock.waits, 2)
	assert.InDelta(t, float64(time.Second), float64(clock.waits[0]), float64(time.Millisecond))
	assert.InDelta(t, float64(2*time.Second), float64(clock.waits[1]), float64(time.Millisecond))
}

func TestExecuteNonRetryableFailsImmediately(t *testing.T) {
	clock := newFakeClock()
	m := newTestManager(clock)
	calls := 0
	authErr := errors.New("401 unauthorized: invalid api key")

	_, err := Execute(context.Background(), m, "generate", "openai", DefaultRetryConfig(), func(ctx context.Context) (int, error) {
		calls++
		return 0, authErr
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, clock.waits)
	assert.ErrorIs(t, err, authErr)

	var opErr *OperationError
	require.ErrorAs(t, err, &opErr)
	assert.False(t, opErr.Exhausted)
	assert.Equal(t, 1, opErr.Attempts)
	assert.Equal(t, 0, m.State("openai").Failures)
}

func TestExecuteExhaustsRetries(t *testing.T) {
	clock := newFakeClock()
	m := newTestManager(clock)
	calls := 0
	cause := errors.New("connection reset by peer")

	_, err := Execute(context.Background(), m, "generate", "azure", DefaultRetryConfig(), func(ctx context.Context) (int, error) {
		calls++
		return 0, cause
	})

	assert.Equal(t, 4, calls)
	assert.Len(t, clock.waits, 3)
	assert.ErrorIs(t, err, cause)

	var opErr *OperationError
	require.ErrorAs(t, err, &opErr)
	assert.True(t, opErr.Exhausted)
	assert.Equal(t, 4, opErr.Attempts)
	assert.Equal(t, "generate", opErr.Operation)
	assert.Equal(t, "azure", opErr.Provider)
	assert.Equal(t, 4, opErr.Failures)
	assert.Equal(t, StateClosed, opErr.State)
	assert.Contains(t, err.Error(), "azure")
}

func TestCircuitOpensAndFailsFast(t *testing.T) {
	clock := newFakeClock()
	m := newTestManager(clock)
	cfg := DefaultRetryConfig()
	cfg.MaxRetries = 0
	cfg.FailureThreshold = 2

	calls := 0
	failing := func(ctx context.Context) (int, error) {
		calls++
		return 0, &statusErr{code: 502}
	}

	for i := 0; i < 2; i++ {
		_, err := Execute(context.Background(), m, "generate", "gemini", cfg, failing)
		require.Error(t, err)
		assert.False(t, IsCircuitOpen(err))
	}
	assert.Equal(t, StateOpen, m.State("gemini").State)

	_, err := Execute(context.Background(), m, "generate", "gemini", cfg, failing)
	assert.True(t, IsCircuitOpen(err))
	assert.Equal(t, 2, calls, "open circuit must not invoke the operation")

	var open *CircuitOpenError
	require.ErrorAs(t, err, &open)
	assert.Equal(t, DefaultRecoveryTimeout, open.RetryIn)

	// Other providers are unaffected.
	_, err = Execute(context.Background(), m, "generate", "openai", cfg, func(ctx context.Context) (int, error) { return 1, nil })
	assert.NoError(t, err)
}

func TestCircuitHalfOpenRecovers(t *testing.T) {
	clock := newFakeClock()
	m := newTestManager(clock)
	cfg := DefaultRetryConfig()
	cfg.MaxRetries = 0
	cfg.FailureThreshold = 1

	_, err := Execute(context.Background(), m, "generate", "ollama", cfg, func(ctx context.Context) (int, error) {
		return 0, timeoutErr{}
	})
	require.Error(t, err)
	require.Equal(t, StateOpen, m.State("ollama").State)

	clock.Advance(DefaultRecoveryTimeout)

	got, err := Execute(context.Background(), m, "generate", "ollama", cfg, func(ctx context.Context) (int, error) {
		assert.Equal(t, StateHalfOpen, m.State("ollama").State)
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, BreakerState{State: StateClosed}, m.State("ollama"))
}

func TestCircuitHalfOpenFailureReopens(t *testing.T) {
	clock := newFakeClock()
	m := newTestManager(clock)
	cfg := DefaultRetryConfig()
	cfg.MaxRetries = 0
	cfg.FailureThreshold = 1
	failing := func(ctx context.Context) (int, error) { return 0, &statusErr{code: 500} }

	_, _ = Execute(context.Background(), m, "generate", "vllm", cfg, failing)
	clock.Advance(DefaultRecoveryTimeout + time.Second)
	_, err := Execute(context.Background(), m, "generate", "vllm", cfg, failing)
	require.Error(t, err)
	assert.False(t, IsCircuitOpen(err))

	st := m.State("vllm")
	assert.Equal(t, StateOpen, st.State)
	assert.Equal(t, 2, st.Failures)
	assert.Equal(t, clock.Now(), st.LastFailure)
}

func TestCircuitOpensDuringRetries(t *testing.T) {
	clock := newFakeClock()
	m := newTestManager(clock)
	cfg := DefaultRetryConfig()
	cfg.FailureThreshold = 2
	calls := 0

	_, err := Execute(context.Background(), m, "generate", "anthropic", cfg, func(ctx context.Context) (int, error) {
		calls++
		return 0, &statusErr{code: 503}
	})

	assert.Equal(t, 2, calls)
	assert.True(t, IsCircuitOpen(err))
	var opErr *OperationError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, 2, opErr.Attempts)
	assert.Equal(t, StateOpen, opErr.State)

	var open *CircuitOpenError
	require.ErrorAs(t, err, &open)
	assert.Equal(t, DefaultRecoveryTimeout, open.RetryIn)
	assert.Len(t, clock.waits, 1, "no backoff once the circuit is open")
}

func TestExecuteStopsOnCancellation(t *testing.T) {
	m := newTestManager(newFakeClock())
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	_, err := Execute(ctx, m, "generate", "openai", DefaultRetryConfig(), func(ctx context.Context) (int, error) {
		calls++
		cancel()
		return 0, &statusErr{code: 503}
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestBackoff(t *testing.T) {
	cfg := DefaultRetryConfig().withDefaults()

	low := NewManager(WithRand(func() float64 { return 0 }))
	high := NewManager(WithRand(func() float64 { return 0.9999 }))
	plain := errors.New("timeout")

	assert.InDelta(t, float64(850*time.Millisecond), float64(low.backoff(0, plain, cfg)), float64(time.Millisecond))
	assert.InDelta(t, float64(1150*time.Millisecond), float64(high.backoff(0, plain, cfg)), float64(time.Millisecond))

	// Clamped to MaxDelay before jitter.
	assert.InDelta(t, float64(25500*time.Millisecond), float64(low.backoff(10, plain, cfg)), float64(time.Millisecond))

	mid := newTestManager(newFakeClock())
	// Rate limit without a hint doubles the delay.
	assert.InDelta(t, float64(2*time.Second), float64(mid.backoff(0, &statusErr{code: 429}, cfg)), float64(time.Millisecond))
	// A larger hint wins; a smaller one does not.
	assert.InDelta(t, float64(10*time.Second), float64(mid.backoff(0, &statusErr{code: 429, retryAfter: 10 * time.Second}, cfg)), float64(time.Millisecond))
	assert.InDelta(t, float64(4*time.Second), float64(mid.backoff(2, &statusErr{code: 429, retryAfter: time.Second}, cfg)), float64(time.Millisecond))
}

func TestIsRetryable(t *testing.T) {
	cfg := DefaultRetryConfig()
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"503", &statusErr{code: 503}, true},
		{"429", &statusErr{code: 429}, true},
		{"401", &statusErr{code: 401}, false},
		{"400", &statusErr{code: 400}, false},
		{"net timeout", fmt.Errorf("post: %w", timeoutErr{}), true},
		{"econnreset", fmt.Errorf("read: %w", syscall.ECONNRESET), true},
		{"message timeout", errors.New("request timeout"), true},
		{"auth message", errors.New("authentication failed"), false},
		{"auth beats timeout", errors.New("invalid api key (timeout)"), false},
		{"unknown", errors.New("boom"), false},
		{"canceled", context.Canceled, false},
		{"deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), true},
		{"circuit open", &CircuitOpenError{Provider: "x"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err, cfg))
		})
	}

	custom := cfg
	custom.RetryableErrors = []string{"flaky"}
	assert.True(t, IsRetryable(errors.New("flaky upstream"), custom))
	assert.False(t, IsRetryable(errors.New("request timeout"), custom))
}

func TestManagerConcurrentProviders(t *testing.T) {
	m := newTestManager(newFakeClock())
	cfg := DefaultRetryConfig()
	cfg.MaxRetries = 1

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			provider := fmt.Sprintf("p%d", i%4)
			_, _ = Execute(context.Background(), m, "generate", provider, cfg, func(ctx context.Context) (int, error) {
				if i%2 == 0 {
					return 0, &statusErr{code: 500}
				}
				return i, nil
			})
		}(i)
	}
	wg.Wait()

	snap := m.Snapshot()
	assert.LessOrEqual(t, len(snap), 4)
	m.Reset("p0")
	assert.Equal(t, BreakerState{State: StateClosed}, m.State("p0"))
}

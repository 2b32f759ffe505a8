// Package resilience wraps outbound provider calls with retry, backoff and
// a per-provider circuit breaker.
package resilience

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"time"
)

// State is a circuit breaker state.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
)

// BreakerState is a snapshot of one provider's breaker.
type BreakerState struct {
	Failures    int
	LastFailure time.Time
	State       State
}

// Manager tracks a circuit breaker per provider id. Breakers are created
// on a provider's first failure and live in memory only. A Manager is safe
// for concurrent use; backoff waits block only the calling goroutine.
type Manager struct {
	clock  Clock
	rand   func() float64
	logger *slog.Logger

	mu       sync.Mutex
	breakers map[string]*BreakerState
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces the real clock.
func WithClock(c Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithRand replaces the jitter source. fn must return values in [0, 1).
func WithRand(fn func() float64) Option {
	return func(m *Manager) { m.rand = fn }
}

// WithLogger sets the manager's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// NewManager creates a Manager with no breakers.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		clock:    RealClock(),
		rand:     rand.Float64,
		logger:   slog.Default(),
		breakers: make(map[string]*BreakerState),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the breaker snapshot for provider. Providers that never
// failed report closed with zero failures.
func (m *Manager) State(provider string) BreakerState {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.breakers[provider]; ok {
		return *b
	}
	return BreakerState{State: StateClosed}
}

// Snapshot returns every known breaker.
func (m *Manager) Snapshot() map[string]BreakerState {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]BreakerState, len(m.breakers))
	for k, b := range m.breakers {
		out[k] = *b
	}
	return out
}

// Reset closes provider's breaker.
func (m *Manager) Reset(provider string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.breakers, provider)
}

// canExecute reports whether a call may proceed. An open breaker whose
// recovery window has elapsed moves to half-open and lets the call through.
func (m *Manager) canExecute(provider string, cfg RetryConfig) (bool, BreakerState, time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.breakers[provider]
	if !ok {
		return true, BreakerState{State: StateClosed}, 0
	}
	if b.State != StateOpen {
		return true, *b, 0
	}

	elapsed := m.clock.Now().Sub(b.LastFailure)
	if elapsed < cfg.RecoveryTimeout {
		return false, *b, cfg.RecoveryTimeout - elapsed
	}
	b.State = StateHalfOpen
	m.logger.Info("circuit half-open", "provider", provider, "failures", b.Failures)
	return true, *b, 0
}

func (m *Manager) recordSuccess(provider string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.breakers[provider]; ok {
		if b.State != StateClosed {
			m.logger.Info("circuit closed", "provider", provider)
		}
		*b = BreakerState{State: StateClosed}
	}
}

func (m *Manager) recordFailure(provider string, cfg RetryConfig) BreakerState {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.breakers[provider]
	if !ok {
		b = &BreakerState{State: StateClosed}
		m.breakers[provider] = b
	}
	b.Failures++
	b.LastFailure = m.clock.Now()
	if b.Failures >= cfg.FailureThreshold && b.State != StateOpen {
		b.State = StateOpen
		m.logger.Warn("circuit opened", "provider", provider, "failures", b.Failures)
	}
	return *b
}

// backoff computes the wait before retry number attempt+1.
func (m *Manager) backoff(attempt int, err error, cfg RetryConfig) time.Duration {
	d := float64(cfg.BaseDelay) * math.Pow(cfg.BackoffMultiplier, float64(attempt))
	if d > float64(cfg.MaxDelay) {
		d = float64(cfg.MaxDelay)
	}
	d *= jitterMin + m.rand()*jitterSpan

	if IsRateLimited(err) {
		if hint := retryAfterHint(err); hint > 0 {
			d = math.Max(d, float64(hint))
		} else {
			d *= 2
		}
	}
	return time.Duration(d)
}

// Execute runs op, retrying retryable failures with exponential backoff
// and consulting provider's circuit breaker before every attempt.
//
// Non-retryable errors return after one attempt without touching the
// breaker. Exhausted retries return an *OperationError wrapping the last
// error. An open breaker returns a *CircuitOpenError without calling op;
// a breaker that opens between attempts ends the sequence at once with an
// *OperationError wrapping one.
func Execute[T any](ctx context.Context, m *Manager, name, provider string, cfg RetryConfig, op func(context.Context) (T, error)) (T, error) {
	var zero T
	cfg = cfg.withDefaults()

	var lastErr error
	var state BreakerState

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		ok, st, retryIn := m.canExecute(provider, cfg)
		if !ok {
			open := &CircuitOpenError{Operation: name, Provider: provider, Failures: st.Failures, RetryIn: retryIn}
			if attempt == 0 {
				return zero, open
			}
			return zero, &OperationError{
				Operation: name, Provider: provider, Attempts: attempt,
				State: st.State, Failures: st.Failures, Exhausted: true, Err: open,
			}
		}

		result, err := op(ctx)
		if err == nil {
			m.recordSuccess(provider)
			return result, nil
		}
		lastErr = err

		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, fmt.Errorf("%s: %w", name, ctxErr)
		}

		if !IsRetryable(err, cfg) {
			st := m.State(provider)
			return zero, &OperationError{
				Operation: name, Provider: provider, Attempts: attempt + 1,
				State: st.State, Failures: st.Failures, Err: err,
			}
		}

		state = m.recordFailure(provider, cfg)
		if attempt == cfg.MaxRetries {
			break
		}
		if state.State == StateOpen {
			open := &CircuitOpenError{Operation: name, Provider: provider, Failures: state.Failures, RetryIn: cfg.RecoveryTimeout}
			return zero, &OperationError{
				Operation: name, Provider: provider, Attempts: attempt + 1,
				State: state.State, Failures: state.Failures, Exhausted: true, Err: open,
			}
		}

		delay := m.backoff(attempt, err, cfg)
		m.logger.Warn("retrying operation",
			"operation", name,
			"provider", provider,
			"attempt", attempt+1,
			"max_retries", cfg.MaxRetries,
			"delay", delay,
			"circuit", state.State,
			"error", err)

		select {
		case <-ctx.Done():
			return zero, fmt.Errorf("%s: %w", name, ctx.Err())
		case <-m.clock.After(delay):
		}
	}

	return zero, &OperationError{
		Operation: name,
		Provider:  provider,
		Attempts:  cfg.MaxRetries + 1,
		State:     state.State,
		Failures:  state.Failures,
		Exhausted: true,
		Err:       lastErr,
	}
}

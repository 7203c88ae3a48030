package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/couchcryptid/accident-dashboard/internal/domain"
	"github.com/couchcryptid/accident-dashboard/internal/observability"
)

// BreakerSource wraps a DataSource with a circuit breaker. While the circuit
// is open requests fail fast with domain.ErrNetworkFailure, so a dead backend
// leaves charts stale instead of stacking up timeouts.
type BreakerSource struct {
	inner domain.DataSource
	cb    *gobreaker.CircuitBreaker[any]
}

// NewBreakerSource opens the circuit after failures consecutive errors and
// probes again after timeout.
func NewBreakerSource(inner domain.DataSource, failures int, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *BreakerSource {
	metrics.BreakerState.Set(stateToFloat(gobreaker.StateClosed))

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        "analytics-backend",
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(failures)
		},
		// A superseded request is cancelled by the caller; that says nothing
		// about backend health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
			metrics.BreakerState.Set(stateToFloat(to))
		},
	})

	return &BreakerSource{inner: inner, cb: cb}
}

func (b *BreakerSource) States(ctx context.Context) ([]string, error) {
	return execute(b, func() ([]string, error) { return b.inner.States(ctx) })
}

func (b *BreakerSource) Cities(ctx context.Context, state string) ([]string, error) {
	return execute(b, func() ([]string, error) { return b.inner.Cities(ctx, state) })
}

func (b *BreakerSource) Analytics(ctx context.Context, key domain.FetchKey) (domain.Bundle, error) {
	return execute(b, func() (domain.Bundle, error) { return b.inner.Analytics(ctx, key) })
}

// State reports the current breaker state.
func (b *BreakerSource) State() gobreaker.State {
	return b.cb.State()
}

// CheckReadiness fails while the circuit is open.
func (b *BreakerSource) CheckReadiness(_ context.Context) error {
	if b.cb.State() == gobreaker.StateOpen {
		return fmt.Errorf("%w: backend circuit open", domain.ErrNetworkFailure)
	}
	return nil
}

func execute[T any](b *BreakerSource, fn func() (T, error)) (T, error) {
	var zero T
	res, err := b.cb.Execute(func() (any, error) {
		return fn()
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, fmt.Errorf("%w: %w", domain.ErrNetworkFailure, err)
		}
		return zero, err
	}
	typed, ok := res.(T)
	if !ok {
		return zero, fmt.Errorf("circuit breaker: unexpected result type %T", res)
	}
	return typed, nil
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

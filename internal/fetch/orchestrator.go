package fetch

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/couchcryptid/accident-dashboard/internal/domain"
	"github.com/couchcryptid/accident-dashboard/internal/observability"
)

// Sink receives fetch results. Every method compares the result against the
// current selection and returns domain.ErrStaleResponse instead of applying a
// superseded result.
type Sink interface {
	ApplyStates(states []string) error
	ApplyCities(state string, cities []string) error
	ApplyAnalytics(key domain.FetchKey, bundle domain.Bundle) error
	Fail(query string, key domain.FetchKey, err error) error
}

type status int

const (
	statusIdle status = iota
	statusInflight
	statusDone
	statusFailed
)

// track is the last query issued for one kind of data.
type track[K comparable] struct {
	key    K
	status status
	cancel context.CancelFunc
}

func (t *track[K]) reset() {
	if t.cancel != nil {
		t.cancel()
	}
	*t = track[K]{}
}

// Orchestrator turns selection changes into backend queries for one session.
// It issues at most one query per change, skips queries whose answer is
// already on screen or on its way, and cancels superseded requests.
type Orchestrator struct {
	source  domain.DataSource
	sink    Sink
	logger  *slog.Logger
	metrics *observability.Metrics

	statesOnce sync.Once
	wg         sync.WaitGroup

	mu        sync.Mutex
	closed    bool
	cities    track[string]
	analytics track[domain.FetchKey]
}

// New creates an Orchestrator feeding results into sink.
func New(source domain.DataSource, sink Sink, logger *slog.Logger, metrics *observability.Metrics) *Orchestrator {
	return &Orchestrator{
		source:  source,
		sink:    sink,
		logger:  logger,
		metrics: metrics,
	}
}

// Start issues the states query. Later calls do nothing.
func (o *Orchestrator) Start(ctx context.Context) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}

	o.statesOnce.Do(func() {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			states, err := o.source.States(ctx)
			if err != nil {
				o.finish(domain.QueryStates, o.sink.Fail(domain.QueryStates, domain.FetchKey{}, err), err)
				return
			}
			o.finish(domain.QueryStates, o.sink.ApplyStates(states), nil)
		}()
	})
}

// Observe reacts to a user-driven state change. The cities and analytics
// tracks are independent: one batch that selects a state and a city needs
// both queries.
func (o *Orchestrator) Observe(ctx context.Context, state domain.State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}

	o.observeCities(ctx, state)
	o.observeAnalytics(ctx, state)
}

// Close cancels in-flight queries and ignores every later change. Call it
// before Wait once no more changes should be observed.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = true
	o.cities.reset()
	o.analytics.reset()
}

func (o *Orchestrator) observeCities(ctx context.Context, state domain.State) {
	name := state.Geography.State
	if name == "" {
		o.cities.reset()
		return
	}
	if name == o.cities.key && (o.cities.status == statusInflight ||
		(o.cities.status == statusDone && state.AvailableCities != nil)) {
		return
	}
	o.cities.reset()
	o.issueCities(ctx, name)
}

func (o *Orchestrator) observeAnalytics(ctx context.Context, state domain.State) {
	key := domain.KeyOf(state)
	if !key.Ready() {
		// Without a complete geography nothing in flight can still apply.
		o.analytics.reset()
		return
	}
	if key == o.analytics.key && (o.analytics.status == statusInflight ||
		(o.analytics.status == statusDone && state.Data != nil)) {
		o.logger.Debug("analytics query deduplicated", "key", key.String())
		return
	}
	o.analytics.reset()
	o.issueAnalytics(ctx, key)
}

// Wait blocks until every issued query has finished.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

func (o *Orchestrator) issueAnalytics(parent context.Context, key domain.FetchKey) {
	ctx, cancel := context.WithCancel(parent)
	o.analytics = track[domain.FetchKey]{key: key, status: statusInflight, cancel: cancel}
	o.logger.Debug("analytics query issued", "key", key.String())

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer cancel()

		bundle, err := o.source.Analytics(ctx, key)
		if ctx.Err() != nil {
			// Superseded or session closed; the newer query owns the track.
			o.metrics.Fetches.WithLabelValues(domain.QueryAnalytics, "stale").Inc()
			return
		}

		o.settleAnalytics(key, err)
		if err != nil {
			o.finish(domain.QueryAnalytics, o.sink.Fail(domain.QueryAnalytics, key, err), err)
			return
		}
		o.finish(domain.QueryAnalytics, o.sink.ApplyAnalytics(key, bundle), nil)
	}()
}

func (o *Orchestrator) issueCities(parent context.Context, state string) {
	ctx, cancel := context.WithCancel(parent)
	o.cities = track[string]{key: state, status: statusInflight, cancel: cancel}
	o.logger.Debug("cities query issued", "state", state)

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer cancel()

		cities, err := o.source.Cities(ctx, state)
		if ctx.Err() != nil {
			o.metrics.Fetches.WithLabelValues(domain.QueryCities, "stale").Inc()
			return
		}

		o.settleCities(state, err)
		if err != nil {
			o.finish(domain.QueryCities, o.sink.Fail(domain.QueryCities, domain.FetchKey{State: state}, err), err)
			return
		}
		o.finish(domain.QueryCities, o.sink.ApplyCities(state, cities), nil)
	}()
}

// settleAnalytics marks the track before the result is handed to the sink, so
// a change observed while the sink applies it sees the final status.
func (o *Orchestrator) settleAnalytics(key domain.FetchKey, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.analytics.key != key {
		return
	}
	o.analytics.status = statusDone
	if err != nil {
		o.analytics.status = statusFailed
	}
}

func (o *Orchestrator) settleCities(state string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cities.key != state {
		return
	}
	o.cities.status = statusDone
	if err != nil {
		o.cities.status = statusFailed
	}
}

// finish records the outcome of one query. sinkErr is the sink's verdict,
// fetchErr the backend error if any.
func (o *Orchestrator) finish(query string, sinkErr, fetchErr error) {
	switch {
	case errors.Is(sinkErr, domain.ErrStaleResponse):
		o.metrics.Fetches.WithLabelValues(query, "stale").Inc()
		o.logger.Debug("stale response discarded", "query", query, "reason", sinkErr)
	case fetchErr != nil:
		o.metrics.Fetches.WithLabelValues(query, "error").Inc()
	case sinkErr != nil:
		o.metrics.Fetches.WithLabelValues(query, "error").Inc()
		o.logger.Error("apply response failed", "query", query, "error", sinkErr)
	default:
		o.metrics.Fetches.WithLabelValues(query, "success").Inc()
	}
}

package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/accident-dashboard/internal/domain"
	"github.com/couchcryptid/accident-dashboard/internal/fetch"
	"github.com/couchcryptid/accident-dashboard/internal/observability"
)

// Publisher writes interaction records to the interaction stream.
type Publisher interface {
	Publish(ctx context.Context, records ...domain.Interaction) error
}

// Options configures a Registry.
type Options struct {
	// Publisher is optional; nil disables the interaction stream.
	Publisher Publisher
	// IdleTimeout is how long a session survives without being looked up.
	IdleTimeout time.Duration
	// Clock defaults to the real clock.
	Clock clockwork.Clock
	// Probe, when set, must pass before the registry reports ready.
	Probe sharedobs.ReadinessChecker
}

type handle struct {
	session  *Session
	orch     *fetch.Orchestrator
	cancel   context.CancelFunc
	unsub    func()
	lastSeen time.Time
}

// Registry holds the live sessions of this process and wires each one to its
// own fetch orchestrator.
type Registry struct {
	source  domain.DataSource
	opts    Options
	logger  *slog.Logger
	metrics *observability.Metrics
	ready   atomic.Bool

	mu       sync.Mutex
	sessions map[string]*handle
}

// NewRegistry creates an empty registry backed by source.
func NewRegistry(source domain.DataSource, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Registry {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = 30 * time.Minute
	}
	return &Registry{
		source:   source,
		opts:     opts,
		logger:   logger,
		metrics:  metrics,
		sessions: make(map[string]*handle),
	}
}

// Create starts a new session and issues its states query.
func (r *Registry) Create() *Session {
	id := uuid.NewString()
	logger := r.logger.With("session_id", id)
	sess := New(id, logger, r.metrics)
	orch := fetch.New(r.source, sess, logger, r.metrics)

	ctx, cancel := context.WithCancel(context.Background())
	unsub := sess.Subscribe(func(snap Snapshot) {
		switch snap.Cause {
		case CauseTransition:
			orch.Observe(ctx, snap.State)
			r.publish(ctx, snap)
		case CauseStates:
			r.ready.Store(true)
		}
	})

	r.mu.Lock()
	r.sessions[id] = &handle{
		session:  sess,
		orch:     orch,
		cancel:   cancel,
		unsub:    unsub,
		lastSeen: r.opts.Clock.Now(),
	}
	n := len(r.sessions)
	r.mu.Unlock()

	r.metrics.SessionsActive.Set(float64(n))
	orch.Start(ctx)
	logger.Info("session created")
	return sess
}

// Get returns a live session and marks it as used.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	h.lastSeen = r.opts.Clock.Now()
	return h.session, true
}

// Delete discards a session and cancels its in-flight queries.
func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	h, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	n := len(r.sessions)
	r.mu.Unlock()

	if !ok {
		return false
	}
	r.metrics.SessionsActive.Set(float64(n))
	r.close(h)
	r.logger.Info("session discarded", "session_id", id)
	return true
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Reap discards sessions idle for longer than the idle timeout and returns
// how many were removed.
func (r *Registry) Reap() int {
	cutoff := r.opts.Clock.Now().Add(-r.opts.IdleTimeout)

	r.mu.Lock()
	var expired []*handle
	for id, h := range r.sessions {
		if h.lastSeen.Before(cutoff) {
			expired = append(expired, h)
			delete(r.sessions, id)
		}
	}
	n := len(r.sessions)
	r.mu.Unlock()

	for _, h := range expired {
		r.close(h)
	}
	if len(expired) > 0 {
		r.metrics.SessionsActive.Set(float64(n))
		r.logger.Info("idle sessions reaped", "count", len(expired))
	}
	return len(expired)
}

// Run reaps idle sessions until ctx is cancelled, then closes every session.
func (r *Registry) Run(ctx context.Context) {
	ticker := r.opts.Clock.NewTicker(max(r.opts.IdleTimeout/4, time.Second))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.Close()
			return
		case <-ticker.Chan():
			r.Reap()
		}
	}
}

// Close discards every session and waits for their queries to finish.
func (r *Registry) Close() {
	r.mu.Lock()
	handles := make([]*handle, 0, len(r.sessions))
	for id, h := range r.sessions {
		handles = append(handles, h)
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	for _, h := range handles {
		r.close(h)
	}
	r.metrics.SessionsActive.Set(0)
}

// CheckReadiness reports ready once the state list has been loaded, either by
// a session or by the check itself, and Probe passes.
func (r *Registry) CheckReadiness(ctx context.Context) error {
	if r.opts.Probe != nil {
		if err := r.opts.Probe.CheckReadiness(ctx); err != nil {
			return err
		}
	}
	if r.ready.Load() {
		return nil
	}
	if _, err := r.source.States(ctx); err != nil {
		return fmt.Errorf("backend not reachable: %w", err)
	}
	r.ready.Store(true)
	return nil
}

func (r *Registry) close(h *handle) {
	h.unsub()
	h.cancel()
	h.orch.Close()
	h.orch.Wait()
	h.session.Close()
}

func (r *Registry) publish(ctx context.Context, snap Snapshot) {
	if r.opts.Publisher == nil || len(snap.Events) == 0 {
		return
	}
	at := domain.Now()
	records := make([]domain.Interaction, len(snap.Events))
	for i, e := range snap.Events {
		records[i] = domain.Interaction{
			SessionID: snap.ID,
			Event:     e,
			Geography: snap.State.Geography,
			Drill:     snap.State.Drill,
			AppliedAt: at,
		}
	}
	// Delivery outcomes are counted by the publisher; only enqueue failures land here.
	if err := r.opts.Publisher.Publish(ctx, records...); err != nil {
		r.metrics.InteractionsPublished.WithLabelValues("error").Add(float64(len(records)))
		r.logger.Warn("publish interactions failed", "session_id", snap.ID, "error", err)
	}
}

package session

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/couchcryptid/accident-dashboard/internal/domain"
	"github.com/couchcryptid/accident-dashboard/internal/observability"
)

// Cause says why a snapshot was published.
type Cause int

const (
	// CauseTransition is a user-driven change applied by Dispatch.
	CauseTransition Cause = iota
	CauseStates
	CauseCities
	CauseAnalytics
	CauseFailure
)

func (c Cause) String() string {
	switch c {
	case CauseTransition:
		return "transition"
	case CauseStates:
		return domain.QueryStates
	case CauseCities:
		return domain.QueryCities
	case CauseAnalytics:
		return domain.QueryAnalytics
	case CauseFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// Snapshot is an immutable copy of a session after one change.
type Snapshot struct {
	ID      string
	Version uint64
	Cause   Cause
	State   domain.State
	Notice  *domain.Notice
	// Events holds the transitions applied when Cause is CauseTransition.
	Events []domain.Event
}

// Observer receives every published snapshot in order. Observers run on the
// goroutine that made the change and must not call back into the session
// synchronously.
type Observer func(Snapshot)

type subscription struct {
	id uint64
	fn Observer
}

// Session owns the navigation state of one dashboard tab. Transitions are
// atomic with respect to each other; asynchronous fetch results only land
// through the compare-and-swap Apply methods.
type Session struct {
	id      string
	logger  *slog.Logger
	metrics *observability.Metrics

	mu           sync.Mutex
	state        domain.State
	notice       *domain.Notice
	version      uint64
	statesLoaded bool
	observers    []subscription
	nextObserver uint64

	// notifyMu keeps observer calls in commit order across goroutines.
	notifyMu sync.Mutex

	done      chan struct{}
	closeOnce sync.Once
}

// New creates an empty session.
func New(id string, logger *slog.Logger, metrics *observability.Metrics) *Session {
	return &Session{
		id:      id,
		logger:  logger,
		metrics: metrics,
		done:    make(chan struct{}),
	}
}

// Close marks the session as discarded and closes Done. It is safe to call
// more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// Done is closed once the session has been discarded.
func (s *Session) Done() <-chan struct{} { return s.done }

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Snapshot returns the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(CauseTransition, nil)
}

// Subscribe registers an observer and returns a function that removes it.
func (s *Session) Subscribe(fn Observer) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextObserver++
	id := s.nextObserver
	s.observers = append(s.observers, subscription{id: id, fn: fn})

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.observers {
			if sub.id == id {
				s.observers = append(s.observers[:i:i], s.observers[i+1:]...)
				return
			}
		}
	}
}

// Dispatch applies events as one interaction: all of them or none. Observers
// see a single snapshot for the whole batch, so an interaction that clears
// several fields produces one change.
func (s *Session) Dispatch(events ...domain.Event) (Snapshot, error) {
	s.mu.Lock()

	next, err := domain.ApplyAll(s.state, events...)
	if err != nil {
		snap := s.snapshotLocked(CauseTransition, nil)
		s.mu.Unlock()

		kind := "unknown"
		var rejected *domain.RejectedError
		if errors.As(err, &rejected) {
			kind = string(rejected.Event.Kind)
		}
		s.metrics.TransitionRejections.WithLabelValues(kind).Inc()
		s.logger.Warn("transition rejected", "event", kind, "error", err)
		return snap, err
	}
	s.state = next
	for _, e := range events {
		s.metrics.Transitions.WithLabelValues(string(e.Kind)).Inc()
	}

	snap, notify := s.commitLocked(CauseTransition, events)
	s.mu.Unlock()
	notify()

	s.logger.Debug("transition applied", "events", len(events), "drill_mode", snap.State.Drill.Mode().String(), "version", snap.Version)
	return snap, nil
}

// ApplyStates stores the state list. It is accepted once per session.
func (s *Session) ApplyStates(states []string) error {
	s.mu.Lock()
	if s.statesLoaded {
		s.mu.Unlock()
		return fmt.Errorf("%w: state list already loaded", domain.ErrStaleResponse)
	}
	s.statesLoaded = true
	s.state.AvailableStates = states
	s.notice = nil

	_, notify := s.commitLocked(CauseStates, nil)
	s.mu.Unlock()
	notify()
	return nil
}

// ApplyCities stores the city list if state is still the selected state.
func (s *Session) ApplyCities(state string, cities []string) error {
	s.mu.Lock()
	if s.state.Geography.State != state {
		current := s.state.Geography.State
		s.mu.Unlock()
		return fmt.Errorf("%w: cities for %q, selected %q", domain.ErrStaleResponse, state, current)
	}
	s.state.AvailableCities = cities
	s.notice = nil

	_, notify := s.commitLocked(CauseCities, nil)
	s.mu.Unlock()
	notify()
	return nil
}

// ApplyAnalytics replaces the chart data if key still matches the current
// selection. This is the only writer of State.Data besides transitions.
func (s *Session) ApplyAnalytics(key domain.FetchKey, bundle domain.Bundle) error {
	s.mu.Lock()
	if current := domain.KeyOf(s.state); current != key {
		s.mu.Unlock()
		return fmt.Errorf("%w: analytics for %s, selected %s", domain.ErrStaleResponse, key, current)
	}
	s.state.Data = bundle.Normalize()
	if s.state.Data == nil {
		s.state.Data = domain.Bundle{}
	}
	s.notice = nil

	_, notify := s.commitLocked(CauseAnalytics, nil)
	s.mu.Unlock()
	notify()
	return nil
}

// Fail records a failed fetch as a user-visible notice. Prior data stays in
// place. Failures for a selection that is no longer current are dropped.
func (s *Session) Fail(query string, key domain.FetchKey, cause error) error {
	s.mu.Lock()

	var msg string
	switch query {
	case domain.QueryStates:
		msg = "Could not load the list of states. Reload to try again."
	case domain.QueryCities:
		if s.state.Geography.State != key.State {
			s.mu.Unlock()
			return fmt.Errorf("%w: cities failure for %q", domain.ErrStaleResponse, key.State)
		}
		msg = fmt.Sprintf("Could not load cities for %s. Select the state again to retry.", key.State)
	default:
		if domain.KeyOf(s.state) != key {
			s.mu.Unlock()
			return fmt.Errorf("%w: analytics failure for %s", domain.ErrStaleResponse, key)
		}
		msg = "Could not refresh the charts. Showing the last loaded data; select again to retry."
	}
	s.notice = &domain.Notice{Kind: "network", Message: msg, At: domain.Now()}

	_, notify := s.commitLocked(CauseFailure, nil)
	s.mu.Unlock()
	notify()

	s.logger.Warn("fetch failed", "query", query, "key", key.String(), "error", cause)
	return nil
}

// commitLocked bumps the version and returns the snapshot plus a function that
// delivers it. The caller must release s.mu before calling the function.
func (s *Session) commitLocked(cause Cause, events []domain.Event) (Snapshot, func()) {
	s.version++
	snap := s.snapshotLocked(cause, events)
	observers := make([]Observer, len(s.observers))
	for i, sub := range s.observers {
		observers[i] = sub.fn
	}

	s.notifyMu.Lock()
	return snap, func() {
		defer s.notifyMu.Unlock()
		for _, fn := range observers {
			fn(snap)
		}
	}
}

func (s *Session) snapshotLocked(cause Cause, events []domain.Event) Snapshot {
	snap := Snapshot{
		ID:      s.id,
		Version: s.version,
		Cause:   cause,
		State:   s.state.Clone(),
		Events:  events,
	}
	if s.notice != nil {
		n := *s.notice
		snap.Notice = &n
	}
	return snap
}

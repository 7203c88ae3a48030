package domain

import (
	"context"
	"slices"
	"time"
)

// State is the root of a dashboard session: what is selected, what is
// selectable and the aggregates currently on screen.
type State struct {
	Geography Geography `json:"geography"`
	Drill     DrillPath `json:"drill"`
	Data      Bundle    `json:"data,omitempty"`

	// AvailableStates is loaded once at session start and never changes.
	AvailableStates []string `json:"available_states"`
	// AvailableCities belongs to Geography.State and is replaced wholesale.
	AvailableCities []string `json:"available_cities"`
}

// Validate checks every selection invariant.
func (s State) Validate() error {
	if err := s.Geography.Validate(); err != nil {
		return err
	}
	return s.Drill.Validate()
}

// Clone returns a copy that shares no slices or maps with s. Series inside
// Data are never mutated in place, so they are shared.
func (s State) Clone() State {
	out := s
	out.AvailableStates = slices.Clone(s.AvailableStates)
	out.AvailableCities = slices.Clone(s.AvailableCities)
	if s.Data != nil {
		out.Data = make(Bundle, len(s.Data))
		for k, v := range s.Data {
			out.Data[k] = v
		}
	}
	return out
}

// Notice is a transient, non-blocking message for the user, such as a failed
// fetch that left older charts on screen.
type Notice struct {
	Kind    string    `json:"kind"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// DataSource is the analytics backend.
type DataSource interface {
	// States lists every state with recorded accidents.
	States(ctx context.Context) ([]string, error)

	// Cities lists the cities of one state.
	Cities(ctx context.Context, state string) ([]string, error)

	// Analytics returns the aggregate series for a complete selection.
	Analytics(ctx context.Context, key FetchKey) (Bundle, error)
}

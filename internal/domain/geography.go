package domain

import "fmt"

// Geography is the state/city selection. City is only meaningful once State is set.
type Geography struct {
	State string `json:"state,omitempty"`
	City  string `json:"city,omitempty"`
}

// Complete reports whether both state and city are chosen, which is the
// precondition for any analytics query.
func (g Geography) Complete() bool {
	return g.State != "" && g.City != ""
}

// Validate checks that a city is never selected without its state.
func (g Geography) Validate() error {
	if g.City != "" && g.State == "" {
		return fmt.Errorf("%w: city %q selected without a state", ErrInvariantViolation, g.City)
	}
	return nil
}

package domain

import "errors"

var (
	// ErrNetworkFailure means a backend request could not complete: transport
	// error, timeout, non-2xx status, undecodable body or an open circuit.
	ErrNetworkFailure = errors.New("network failure")

	// ErrStaleResponse means a response arrived for a selection that is no
	// longer current. It is dropped and never shown to the user.
	ErrStaleResponse = errors.New("stale response")

	// ErrInvariantViolation means a transition would produce an invalid
	// selection. The state is left unchanged.
	ErrInvariantViolation = errors.New("invariant violation")
)

package domain

import "fmt"

// RejectedError is returned when an event cannot be applied. It unwraps to
// ErrInvariantViolation.
type RejectedError struct {
	Event Event
	Err   error
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("%s: %v", e.Event.Kind, e.Err)
}

func (e *RejectedError) Unwrap() error { return e.Err }

// Apply runs one transition. On error the original state is returned
// unchanged together with a *RejectedError.
func Apply(s State, e Event) (State, error) {
	next, err := transition(s, e)
	if err == nil {
		err = next.Validate()
	}
	if err != nil {
		return s, &RejectedError{Event: e, Err: err}
	}
	return next, nil
}

// ApplyAll runs a sequence of transitions as one unit: either every event
// applies or the original state is returned with the first error.
func ApplyAll(s State, events ...Event) (State, error) {
	next := s
	for _, e := range events {
		var err error
		if next, err = Apply(next, e); err != nil {
			return s, err
		}
	}
	return next, nil
}

func transition(s State, e Event) (State, error) {
	next := s
	switch e.Kind {
	case EventSetState:
		// The city list belongs to the old state; keep it only on reselect.
		if e.Name != s.Geography.State {
			next.AvailableCities = nil
		}
		next.Geography = Geography{State: e.Name}
		next.Drill = DrillPath{}
		next.Data = nil

	case EventSetCity:
		if s.Geography.State == "" {
			return s, fmt.Errorf("%w: city %q selected without a state", ErrInvariantViolation, e.Name)
		}
		next.Geography.City = e.Name
		next.Drill = DrillPath{}
		next.Data = nil

	case EventResetDrill:
		next.Drill = DrillPath{}

	case EventDrillYear:
		if e.Number <= 0 {
			return s, fmt.Errorf("%w: year %d out of range", ErrInvariantViolation, e.Number)
		}
		next.Drill = DrillPath{Year: e.Number}

	case EventDrillMonth:
		if s.Drill.Year == 0 {
			return s, fmt.Errorf("%w: month %d selected without a year", ErrInvariantViolation, e.Number)
		}
		if e.Number < 1 || e.Number > 12 {
			return s, fmt.Errorf("%w: month %d out of range 1-12", ErrInvariantViolation, e.Number)
		}
		next.Drill.Month = e.Number
		next.Drill.Day = 0

	case EventDrillDay:
		if s.Drill.Month == 0 {
			return s, fmt.Errorf("%w: day %d selected without a month", ErrInvariantViolation, e.Number)
		}
		if e.Number < 1 || e.Number > 31 {
			return s, fmt.Errorf("%w: day %d out of range 1-31", ErrInvariantViolation, e.Number)
		}
		next.Drill.Day = e.Number

	case EventDrillSeason:
		season, err := ParseSeason(e.Name)
		if err != nil {
			return s, err
		}
		next.Drill = DrillPath{Season: season}

	default:
		return s, fmt.Errorf("%w: unknown event kind %q", ErrInvariantViolation, e.Kind)
	}
	return next, nil
}

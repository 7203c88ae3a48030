package domain

import "fmt"

// DrillPath is the time selection beneath the geography. Zero values mean
// "not selected": Year 0, Month 0, Day 0 and Season "" are all unset.
//
// Year, Month and Day form a strict chain (no day without a month, no month
// without a year). Season is an alternate lens and excludes the chain.
type DrillPath struct {
	Year   int    `json:"year,omitempty"`
	Month  int    `json:"month,omitempty"`
	Day    int    `json:"day,omitempty"`
	Season Season `json:"season,omitempty"`
}

// Mode says which breakdown view the drill path drives.
type Mode int

const (
	ModeNone Mode = iota
	ModeTime
	ModeSeason
)

func (m Mode) String() string {
	switch m {
	case ModeTime:
		return "time"
	case ModeSeason:
		return "season"
	default:
		return "none"
	}
}

// Mode returns the active lens.
func (p DrillPath) Mode() Mode {
	switch {
	case p.Season != "":
		return ModeSeason
	case p.Year != 0:
		return ModeTime
	default:
		return ModeNone
	}
}

// Empty reports whether nothing is drilled.
func (p DrillPath) Empty() bool {
	return p == DrillPath{}
}

// Validate enforces the drill path invariants.
func (p DrillPath) Validate() error {
	switch {
	case p.Year < 0:
		return fmt.Errorf("%w: year %d out of range", ErrInvariantViolation, p.Year)
	case p.Month < 0 || p.Month > 12:
		return fmt.Errorf("%w: month %d out of range 1-12", ErrInvariantViolation, p.Month)
	case p.Day < 0 || p.Day > 31:
		return fmt.Errorf("%w: day %d out of range 1-31", ErrInvariantViolation, p.Day)
	case p.Month != 0 && p.Year == 0:
		return fmt.Errorf("%w: month %d selected without a year", ErrInvariantViolation, p.Month)
	case p.Day != 0 && p.Month == 0:
		return fmt.Errorf("%w: day %d selected without a month", ErrInvariantViolation, p.Day)
	case p.Season != "" && !p.Season.Valid():
		return fmt.Errorf("%w: unknown season %q", ErrInvariantViolation, p.Season)
	case p.Season != "" && p.Year != 0:
		return fmt.Errorf("%w: season %s combined with year %d", ErrInvariantViolation, p.Season, p.Year)
	}
	return nil
}

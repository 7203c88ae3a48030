package domain

import (
	"fmt"
	"strings"
)

// Season is a calendar season used as an alternate lens over time.
type Season string

const (
	SeasonWinter Season = "winter"
	SeasonSpring Season = "spring"
	SeasonSummer Season = "summer"
	SeasonFall   Season = "fall"
)

// seasonOrder lists seasons in calendar order, starting with winter.
var seasonOrder = [...]Season{SeasonWinter, SeasonSpring, SeasonSummer, SeasonFall}

// seasonMonths mirrors the backend's month-to-season mapping.
var seasonMonths = map[Season][]int{
	SeasonWinter: {12, 1, 2},
	SeasonSpring: {3, 4, 5},
	SeasonSummer: {6, 7, 8},
	SeasonFall:   {9, 10, 11},
}

// Seasons returns all seasons in calendar order.
func Seasons() []Season {
	return seasonOrder[:]
}

// ParseSeason reads a season name case-insensitively. "autumn" is accepted as
// an alias of fall because the backend labels the fourth season "Autumn".
func ParseSeason(s string) (Season, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "winter":
		return SeasonWinter, nil
	case "spring":
		return SeasonSpring, nil
	case "summer":
		return SeasonSummer, nil
	case "fall", "autumn":
		return SeasonFall, nil
	}
	return "", fmt.Errorf("%w: unknown season %q", ErrInvariantViolation, s)
}

// Valid reports whether s is one of the four known seasons.
func (s Season) Valid() bool {
	return s.index() >= 0
}

// Label returns the season as the backend spells it in labels and filters.
func (s Season) Label() string {
	switch s {
	case SeasonWinter:
		return "Winter"
	case SeasonSpring:
		return "Spring"
	case SeasonSummer:
		return "Summer"
	case SeasonFall:
		return "Autumn"
	}
	return ""
}

// Months returns the calendar months (1-12) that belong to the season.
func (s Season) Months() []int {
	return seasonMonths[s]
}

// Contains reports whether month belongs to the season.
func (s Season) Contains(month int) bool {
	for _, m := range seasonMonths[s] {
		if m == month {
			return true
		}
	}
	return false
}

func (s Season) index() int {
	for i, v := range seasonOrder {
		if v == s {
			return i
		}
	}
	return -1
}

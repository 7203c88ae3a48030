package domain

import (
	"net/url"
	"strconv"
)

// FetchKey is the projection of a State onto the analytics filters. Two states
// with equal keys need the same analytics response.
type FetchKey struct {
	State  string
	City   string
	Year   int
	Month  int
	Day    int
	Season Season
}

// KeyOf derives the fetch key for a state.
func KeyOf(s State) FetchKey {
	return FetchKey{
		State:  s.Geography.State,
		City:   s.Geography.City,
		Year:   s.Drill.Year,
		Month:  s.Drill.Month,
		Day:    s.Drill.Day,
		Season: s.Drill.Season,
	}
}

// Ready reports whether the key identifies an analytics query.
func (k FetchKey) Ready() bool {
	return k.State != "" && k.City != ""
}

// Query returns the analytics filters. Unset fields are omitted.
func (k FetchKey) Query() url.Values {
	q := url.Values{
		"state": {k.State},
		"city":  {k.City},
	}
	if k.Year != 0 {
		q.Set("year", strconv.Itoa(k.Year))
	}
	if k.Month != 0 {
		q.Set("month", strconv.Itoa(k.Month))
	}
	if k.Day != 0 {
		q.Set("day", strconv.Itoa(k.Day))
	}
	if k.Season != "" {
		q.Set("season", k.Season.Label())
	}
	return q
}

// String is a stable encoding of the key, usable as a cache key.
func (k FetchKey) String() string {
	return k.Query().Encode()
}

// Backend query names, used in logs, metrics and notices.
const (
	QueryStates    = "states"
	QueryCities    = "cities"
	QueryAnalytics = "analytics"
)

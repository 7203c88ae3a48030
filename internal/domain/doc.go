// Package domain models the navigation state of the US accident dashboard.
//
// # Selection
//
// A dashboard session narrows the accident dataset in two independent
// directions:
//
//	Geography:  state → city
//	Time:       year → month → day → hour
//	Season:     winter | spring | summer | fall   (alternate lens over time)
//
// Geography must be complete (state and city) before any analytics are
// requested. The time chain is strict: a month is only meaningful inside a
// year and a day only inside a month. A season replaces the whole time chain;
// the two lenses are never active together.
//
// # Transitions
//
// State only changes through Apply. Each Event kind maps to one transition:
//
//	set_state     new state, clears city, drill path, cached data
//	set_city      new city, clears drill path, cached data
//	reset_drill   clears year, month, day, season
//	drill_year    new year, clears month, day, season
//	drill_month   new month inside the current year, clears day
//	drill_day     new day inside the current month
//	drill_season  new season, clears year, month, day
//
// Apply validates its result and returns ErrInvariantViolation instead of an
// invalid state, so callers never observe a broken selection.
//
// # Aggregates
//
// The analytics backend answers with chart-ready series keyed by Breakdown:
//
//	{"years":   {"labels": ["2019","2020"], "datasets": [{"data": [10, 20]}]},
//	 "seasons": {"labels": ["Autumn","Spring","Summer","Winter"], ...}}
//
// Labels arrive as strings. Bundle.Normalize puts every series in the natural
// order of its granularity (years ascending, months 1-12, days 1-31,
// hours 0-23, seasons winter→fall, weekdays Monday→Sunday).
//
// # Fetch keys
//
// A FetchKey is the comparable projection of a State onto the query filters.
// Responses carry the key they were requested for; a response whose key no
// longer matches the current state is stale and must be dropped.
package domain

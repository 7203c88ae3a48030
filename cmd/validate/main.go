// Command validate walks a live analytics backend down one drill path and
// checks that every response the dashboard depends on is well formed: lists
// are non-empty and unique, each breakdown the dashboard renders at that
// depth is present, labels line up with their data, labels parse for their
// granularity, and drill filters actually narrow the data.
//
// Usage:
//
//	go run ./cmd/validate -backend-url http://localhost:5000
//	go run ./cmd/validate -backend-url http://localhost:5000 -state California -city "Los Angeles"
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"time"

	"github.com/couchcryptid/accident-dashboard/internal/adapter/backend"
	"github.com/couchcryptid/accident-dashboard/internal/domain"
	"github.com/couchcryptid/accident-dashboard/internal/observability"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	backendURL := flag.String("backend-url", "http://localhost:5000", "analytics backend base URL")
	state := flag.String("state", "", "state to walk (default: first state returned)")
	city := flag.String("city", "", "city to walk (default: first city of the state)")
	timeout := flag.Duration("timeout", 2*time.Minute, "overall deadline")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	client := backend.NewClient(*backendURL, backend.Options{
		Timeout:       30 * time.Second,
		RatePerSecond: 10,
		Retries:       2,
		RetryBackoff:  200 * time.Millisecond,
	}, observability.NewMetricsForTesting(), slog.New(slog.NewTextHandler(io.Discard, nil)))

	if code := run(ctx, client, *state, *city); code != 0 {
		os.Exit(code)
	}
}

// walker remembers the selection discovered by earlier phases.
type walker struct {
	ctx    context.Context
	source domain.DataSource
	state  string
	city   string
	year   int
	month  int
	day    int
}

func run(ctx context.Context, source domain.DataSource, state, city string) int {
	fmt.Println("=== Accident Backend Validation ===")
	fmt.Println()

	w := &walker{ctx: ctx, source: source, state: state, city: city}

	phases := []*phase{
		w.validateStates(),
		w.validateCities(),
		w.validateTopLevel(),
		w.validateYear(),
		w.validateMonth(),
		w.validateDay(),
	}
	for _, s := range domain.Seasons() {
		phases = append(phases, w.validateSeason(s))
	}

	fmt.Printf("Selection: state=%q city=%q year=%d month=%d day=%d\n\n", w.state, w.city, w.year, w.month, w.day)

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	// Print detailed errors.
	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Geography ──

func (w *walker) validateStates() *phase {
	p := &phase{name: "States list"}
	states, err := w.source.States(w.ctx)
	if err != nil {
		p.errorf("fetch states: %v", err)
		return p
	}
	checkList(p, "states", states)

	switch {
	case w.state == "" && len(states) > 0:
		w.state = states[0]
	case w.state != "" && !slices.Contains(states, w.state):
		p.errorf("requested state %q not in list", w.state)
	}
	return p
}

func (w *walker) validateCities() *phase {
	p := &phase{name: "Cities list"}
	if w.state == "" {
		p.errorf("no state to query")
		return p
	}
	cities, err := w.source.Cities(w.ctx, w.state)
	if err != nil {
		p.errorf("fetch cities of %s: %v", w.state, err)
		return p
	}
	checkList(p, "cities of "+w.state, cities)

	switch {
	case w.city == "" && len(cities) > 0:
		w.city = cities[0]
	case w.city != "" && !slices.Contains(cities, w.city):
		p.errorf("requested city %q not in cities of %s", w.city, w.state)
	}
	return p
}

func checkList(p *phase, what string, list []string) {
	if len(list) == 0 {
		p.errorf("%s: empty", what)
	}
	seen := make(map[string]bool, len(list))
	for _, s := range list {
		if s == "" {
			p.errorf("%s: empty name", what)
		}
		if seen[s] {
			p.errorf("%s: duplicate %q", what, s)
		}
		seen[s] = true
	}
}

// ── Analytics ──

func (w *walker) key() domain.FetchKey {
	return domain.FetchKey{State: w.state, City: w.city}
}

// fetch queries analytics and runs the checks shared by every depth.
func (w *walker) fetch(p *phase, key domain.FetchKey, required ...domain.Breakdown) domain.Bundle {
	if !key.Ready() {
		p.errorf("no complete geography to query")
		return nil
	}
	bundle, err := w.source.Analytics(w.ctx, key)
	if err != nil {
		p.errorf("fetch analytics %s: %v", key, err)
		return nil
	}
	for _, b := range required {
		if !bundle.Has(b) {
			p.errorf("%s: breakdown %q missing", key, b)
		}
	}
	for b, s := range bundle {
		checkSeries(p, b, s)
	}
	return bundle.Normalize()
}

func checkSeries(p *phase, b domain.Breakdown, s domain.Series) {
	if len(s.Datasets) == 0 && len(s.Labels) > 0 {
		p.errorf("%s: %d labels but no datasets", b, len(s.Labels))
	}
	for i, ds := range s.Datasets {
		if len(ds.Data) != len(s.Labels) {
			p.errorf("%s: dataset %d has %d values for %d labels", b, i, len(ds.Data), len(s.Labels))
		}
		for j, v := range ds.Data {
			if v < 0 {
				p.errorf("%s: negative count %v at index %d", b, v, j)
			}
		}
	}
	if normalized := (domain.Bundle{b: s}).Normalize()[b]; !b.Ordered(normalized) {
		p.errorf("%s: labels %v contain duplicates or values outside the granularity", b, s.Labels)
	}
}

func (w *walker) validateTopLevel() *phase {
	p := &phase{name: "Top-level analytics"}
	bundle := w.fetch(p, w.key(), domain.BreakdownYears, domain.BreakdownSeasons)
	if years, ok := firstLabel(bundle, domain.BreakdownYears); ok {
		w.year = years
	} else if bundle != nil {
		p.errorf("years: no drillable label")
	}
	return p
}

func (w *walker) validateYear() *phase {
	p := &phase{name: "Year drill (months)"}
	if w.year == 0 {
		p.errorf("no year to drill into")
		return p
	}
	key := w.key()
	key.Year = w.year
	bundle := w.fetch(p, key, domain.BreakdownMonths)
	onlyLabel(p, bundle, domain.BreakdownYears, w.year)
	if m, ok := firstLabel(bundle, domain.BreakdownMonths); ok {
		w.month = m
	} else if bundle != nil {
		p.errorf("months: no drillable label")
	}
	return p
}

func (w *walker) validateMonth() *phase {
	p := &phase{name: "Month drill (days)"}
	if w.month == 0 {
		p.errorf("no month to drill into")
		return p
	}
	key := w.key()
	key.Year, key.Month = w.year, w.month
	bundle := w.fetch(p, key, domain.BreakdownDays)
	onlyLabel(p, bundle, domain.BreakdownMonths, w.month)
	if d, ok := firstLabel(bundle, domain.BreakdownDays); ok {
		w.day = d
	} else if bundle != nil {
		p.errorf("days: no drillable label")
	}
	return p
}

func (w *walker) validateDay() *phase {
	p := &phase{name: "Day drill (hours)"}
	if w.day == 0 {
		p.errorf("no day to drill into")
		return p
	}
	key := w.key()
	key.Year, key.Month, key.Day = w.year, w.month, w.day
	bundle := w.fetch(p, key, domain.BreakdownHours)
	onlyLabel(p, bundle, domain.BreakdownDays, w.day)
	return p
}

func (w *walker) validateSeason(s domain.Season) *phase {
	p := &phase{name: "Season drill (" + s.Label() + ")"}
	key := w.key()
	key.Season = s
	bundle := w.fetch(p, key, domain.BreakdownMonths)
	if bundle == nil {
		return p
	}
	for _, label := range bundle[domain.BreakdownMonths].Labels {
		m, ok := domain.BreakdownMonths.Rank(label)
		if ok && !s.Contains(m) {
			p.errorf("months: %q is outside %s", label, s.Label())
		}
	}
	return p
}

// firstLabel returns the first bucket of b with accidents recorded, so the
// next drill has data to check.
func firstLabel(bundle domain.Bundle, b domain.Breakdown) (int, bool) {
	for _, p := range bundle[b].Points() {
		if p.Value <= 0 {
			continue
		}
		if n, ok := b.Rank(p.Label); ok {
			return n, true
		}
	}
	return 0, false
}

// onlyLabel checks that a filtered dimension collapsed to the filter value.
func onlyLabel(p *phase, bundle domain.Bundle, b domain.Breakdown, want int) {
	s, ok := bundle[b]
	if !ok {
		return
	}
	for _, label := range s.Labels {
		if n, ok := b.Rank(label); !ok || n != want {
			p.errorf("%s: filter %d not applied, found label %q", b, want, label)
		}
	}
}

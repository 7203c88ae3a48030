// Package presentation derives what a dashboard client renders from a
// session state: visible charts, selector state and the drill event bound to
// each chart click.
package presentation

import (
	"strings"

	"github.com/couchcryptid/accident-dashboard/internal/domain"
)

// Title is the dashboard heading.
const Title = "US Accident Dashboard"

// ChartType is the rendering style of a chart.
type ChartType string

const (
	ChartBar  ChartType = "bar"
	ChartLine ChartType = "line"
)

// Chart IDs. The months breakdown appears under two IDs because the same
// series is drillable below a year but not below a season.
const (
	ChartYears        = "years"
	ChartSeasons      = "seasons"
	ChartWeekdays     = "weekdays"
	ChartMonths       = "months"
	ChartSeasonMonths = "season_months"
	ChartDays         = "days"
	ChartHours        = "hours"
)

// Chart is one rendered chart.
type Chart struct {
	ID        string           `json:"id"`
	Breakdown domain.Breakdown `json:"breakdown"`
	Title     string           `json:"title"`
	Type      ChartType        `json:"type"`
	Series    domain.Series    `json:"series"`
	// Drill is the event kind a click produces; empty when the chart is read-only.
	Drill domain.EventKind `json:"drill,omitempty"`
}

// Selectors is the state of the geography controls.
type Selectors struct {
	States       []string `json:"states"`
	Cities       []string `json:"cities"`
	State        string   `json:"state"`
	City         string   `json:"city"`
	StateEnabled bool     `json:"state_enabled"`
	CityEnabled  bool     `json:"city_enabled"`
	ResetEnabled bool     `json:"reset_enabled"`
}

// View is everything a client needs to render one session.
type View struct {
	SessionID string           `json:"session_id"`
	Version   uint64           `json:"version"`
	Title     string           `json:"title"`
	Heading   string           `json:"heading,omitempty"`
	Selectors Selectors        `json:"selectors"`
	Drill     domain.DrillPath `json:"drill"`
	Mode      string           `json:"mode"`
	Charts    []Chart          `json:"charts"`
	Notice    *domain.Notice   `json:"notice,omitempty"`
	Loading   bool             `json:"loading"`
}

type chartDef struct {
	id        string
	breakdown domain.Breakdown
	title     string
	typ       ChartType
	drill     domain.EventKind
	visible   func(domain.DrillPath) bool
}

func always(domain.DrillPath) bool { return true }

// Binding maps states to views and chart clicks to drill events.
type Binding struct {
	charts []chartDef
}

// NewBinding returns the binding for the drill-down dashboard.
func NewBinding() *Binding {
	return &Binding{charts: []chartDef{
		{id: ChartYears, breakdown: domain.BreakdownYears, title: "Yearly Accidents", typ: ChartBar, drill: domain.EventDrillYear, visible: always},
		{id: ChartMonths, breakdown: domain.BreakdownMonths, title: "Monthly Accidents", typ: ChartBar, drill: domain.EventDrillMonth,
			visible: func(p domain.DrillPath) bool { return p.Year != 0 }},
		{id: ChartDays, breakdown: domain.BreakdownDays, title: "Daily Accidents", typ: ChartBar, drill: domain.EventDrillDay,
			visible: func(p domain.DrillPath) bool { return p.Month != 0 }},
		{id: ChartHours, breakdown: domain.BreakdownHours, title: "Hourly Accidents", typ: ChartLine,
			visible: func(p domain.DrillPath) bool { return p.Day != 0 }},
		{id: ChartSeasons, breakdown: domain.BreakdownSeasons, title: "Seasonal Accidents", typ: ChartBar, drill: domain.EventDrillSeason, visible: always},
		{id: ChartSeasonMonths, breakdown: domain.BreakdownMonths, title: "Season Breakdown - Monthly", typ: ChartBar,
			visible: func(p domain.DrillPath) bool { return p.Season != "" }},
		{id: ChartWeekdays, breakdown: domain.BreakdownWeekdays, title: "Weekday Accidents", typ: ChartBar, visible: always},
	}}
}

// View derives the view of state. Charts appear only when data is loaded and
// the backend returned their breakdown.
func (b *Binding) View(state domain.State) View {
	g := state.Geography
	v := View{
		Title: Title,
		Selectors: Selectors{
			States:       nonNil(state.AvailableStates),
			Cities:       nonNil(state.AvailableCities),
			State:        g.State,
			City:         g.City,
			StateEnabled: len(state.AvailableStates) > 0,
			CityEnabled:  g.State != "" && len(state.AvailableCities) > 0,
			ResetEnabled: !state.Drill.Empty(),
		},
		Drill:   state.Drill,
		Mode:    state.Drill.Mode().String(),
		Charts:  []Chart{},
		Loading: g.Complete() && state.Data == nil,
	}
	if g.Complete() {
		v.Heading = g.City + ", " + g.State
	}
	if state.Data == nil {
		return v
	}

	for _, def := range b.charts {
		if !def.visible(state.Drill) {
			continue
		}
		series, ok := state.Data[def.breakdown]
		if !ok {
			continue
		}
		v.Charts = append(v.Charts, Chart{
			ID:        def.id,
			Breakdown: def.breakdown,
			Title:     def.title,
			Type:      def.typ,
			Series:    series,
			Drill:     def.drill,
		})
	}
	return v
}

// Click resolves a click on category index of chart to a drill event. ok is
// false when the chart is hidden or read-only, the index has no label, or the
// label does not parse for the chart's granularity.
func (b *Binding) Click(state domain.State, chartID string, index int) (domain.Event, bool) {
	def, ok := b.lookup(chartID)
	if !ok || def.drill == "" || state.Data == nil || !def.visible(state.Drill) {
		return domain.Event{}, false
	}
	series, ok := state.Data[def.breakdown]
	if !ok {
		return domain.Event{}, false
	}
	label, ok := series.LabelAt(index)
	if !ok {
		return domain.Event{}, false
	}
	return eventFor(def, label)
}

func (b *Binding) lookup(id string) (chartDef, bool) {
	for _, def := range b.charts {
		if def.id == id {
			return def, true
		}
	}
	return chartDef{}, false
}

func eventFor(def chartDef, label string) (domain.Event, bool) {
	if def.drill == domain.EventDrillSeason {
		season, err := domain.ParseSeason(label)
		if err != nil {
			return domain.Event{}, false
		}
		return domain.DrillSeason(season), true
	}

	n, ok := def.breakdown.Rank(strings.TrimSpace(label))
	if !ok {
		return domain.Event{}, false
	}
	switch def.drill {
	case domain.EventDrillYear:
		return domain.DrillYear(n), true
	case domain.EventDrillMonth:
		return domain.DrillMonth(n), true
	case domain.EventDrillDay:
		return domain.DrillDay(n), true
	}
	return domain.Event{}, false
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

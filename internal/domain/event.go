package domain

import (
	"fmt"
	"strconv"
	"time"
)

// EventKind identifies a transition.
type EventKind string

const (
	EventSetState    EventKind = "set_state"
	EventSetCity     EventKind = "set_city"
	EventResetDrill  EventKind = "reset_drill"
	EventDrillYear   EventKind = "drill_year"
	EventDrillMonth  EventKind = "drill_month"
	EventDrillDay    EventKind = "drill_day"
	EventDrillSeason EventKind = "drill_season"
)

// Event is a requested transition. Name carries state, city and season
// payloads; Number carries year, month and day payloads.
type Event struct {
	Kind   EventKind `json:"kind" validate:"required,oneof=set_state set_city reset_drill drill_year drill_month drill_day drill_season"`
	Name   string    `json:"name,omitempty" validate:"max=128"`
	Number int       `json:"number,omitempty" validate:"gte=0"`
}

// SetState selects a state.
func SetState(name string) Event { return Event{Kind: EventSetState, Name: name} }

// SetCity selects a city within the current state.
func SetCity(name string) Event { return Event{Kind: EventSetCity, Name: name} }

// ResetDrill clears the whole drill path.
func ResetDrill() Event { return Event{Kind: EventResetDrill} }

// DrillYear narrows to a year.
func DrillYear(year int) Event { return Event{Kind: EventDrillYear, Number: year} }

// DrillMonth narrows to a month of the current year.
func DrillMonth(month int) Event { return Event{Kind: EventDrillMonth, Number: month} }

// DrillDay narrows to a day of the current month.
func DrillDay(day int) Event { return Event{Kind: EventDrillDay, Number: day} }

// DrillSeason switches to the seasonal lens.
func DrillSeason(s Season) Event { return Event{Kind: EventDrillSeason, Name: string(s)} }

func (e Event) String() string {
	switch e.Kind {
	case EventDrillYear, EventDrillMonth, EventDrillDay:
		return string(e.Kind) + "(" + strconv.Itoa(e.Number) + ")"
	case EventResetDrill:
		return string(e.Kind)
	default:
		return fmt.Sprintf("%s(%q)", e.Kind, e.Name)
	}
}

// Interaction records one applied transition for the interaction stream.
type Interaction struct {
	SessionID string    `json:"session_id"`
	Event     Event     `json:"event"`
	Geography Geography `json:"geography"`
	Drill     DrillPath `json:"drill"`
	AppliedAt time.Time `json:"applied_at"`
}

package domain

import (
	"sort"
	"strconv"
	"strings"
)

// Breakdown names one granularity of aggregated series returned by the backend.
type Breakdown string

const (
	BreakdownYears    Breakdown = "years"
	BreakdownMonths   Breakdown = "months"
	BreakdownDays     Breakdown = "days"
	BreakdownHours    Breakdown = "hours"
	BreakdownSeasons  Breakdown = "seasons"
	BreakdownWeekdays Breakdown = "weekdays"
)

var breakdowns = map[Breakdown]struct{}{
	BreakdownYears:    {},
	BreakdownMonths:   {},
	BreakdownDays:     {},
	BreakdownHours:    {},
	BreakdownSeasons:  {},
	BreakdownWeekdays: {},
}

var weekdayOrder = map[string]int{
	"monday": 0, "tuesday": 1, "wednesday": 2, "thursday": 3,
	"friday": 4, "saturday": 5, "sunday": 6,
}

// ParseBreakdown returns the Breakdown for a backend response key.
func ParseBreakdown(s string) (Breakdown, bool) {
	b := Breakdown(s)
	_, ok := breakdowns[b]
	return b, ok
}

// Rank returns the natural position of label within the breakdown. ok is
// false when the label does not belong to the granularity (e.g. month "13").
func (b Breakdown) Rank(label string) (int, bool) {
	label = strings.TrimSpace(label)
	switch b {
	case BreakdownYears:
		return atoiInRange(label, 1, 9999)
	case BreakdownMonths:
		return atoiInRange(label, 1, 12)
	case BreakdownDays:
		return atoiInRange(label, 1, 31)
	case BreakdownHours:
		return atoiInRange(label, 0, 23)
	case BreakdownSeasons:
		s, err := ParseSeason(label)
		if err != nil {
			return 0, false
		}
		return s.index(), true
	case BreakdownWeekdays:
		i, ok := weekdayOrder[strings.ToLower(label)]
		return i, ok
	}
	return 0, false
}

// Ordered reports whether the series labels are in natural order with no
// unrecognised labels.
func (b Breakdown) Ordered(s Series) bool {
	prev := -1
	for _, l := range s.Labels {
		r, ok := b.Rank(l)
		if !ok || r <= prev {
			return false
		}
		prev = r
	}
	return true
}

func atoiInRange(s string, lo, hi int) (int, bool) {
	n, err := strconv.Atoi(s)
	if err != nil {
		// Some aggregations serialise integer buckets as floats ("2019.0").
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil || f != float64(int(f)) {
			return 0, false
		}
		n = int(f)
	}
	if n < lo || n > hi {
		return 0, false
	}
	return n, true
}

// Dataset is one row of values aligned with Series.Labels.
type Dataset struct {
	Label string    `json:"label,omitempty"`
	Data  []float64 `json:"data"`
}

// Series is a chart-ready category series: labels plus one or more datasets.
type Series struct {
	Labels   []string  `json:"labels"`
	Datasets []Dataset `json:"datasets"`
}

// Point is a single (label, value) pair.
type Point struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// LabelAt returns the category label at index i.
func (s Series) LabelAt(i int) (string, bool) {
	if i < 0 || i >= len(s.Labels) {
		return "", false
	}
	return s.Labels[i], true
}

// Points pairs labels with the first dataset's values.
func (s Series) Points() []Point {
	if len(s.Datasets) == 0 {
		return nil
	}
	data := s.Datasets[0].Data
	n := min(len(s.Labels), len(data))
	out := make([]Point, n)
	for i := range n {
		out[i] = Point{Label: s.Labels[i], Value: data[i]}
	}
	return out
}

// sortedBy returns a copy of s with categories in the natural order of b.
// Unrecognised labels keep their relative order after all recognised ones.
// Datasets whose length does not match the labels are copied unchanged.
func (s Series) sortedBy(b Breakdown) Series {
	idx := make([]int, len(s.Labels))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool {
		ri, oki := b.Rank(s.Labels[idx[i]])
		rj, okj := b.Rank(s.Labels[idx[j]])
		if oki != okj {
			return oki
		}
		return oki && ri < rj
	})

	out := Series{
		Labels:   make([]string, len(s.Labels)),
		Datasets: make([]Dataset, len(s.Datasets)),
	}
	for i, from := range idx {
		out.Labels[i] = s.Labels[from]
	}
	for d, ds := range s.Datasets {
		cp := Dataset{Label: ds.Label, Data: make([]float64, len(ds.Data))}
		if len(ds.Data) != len(s.Labels) {
			copy(cp.Data, ds.Data)
		} else {
			for i, from := range idx {
				cp.Data[i] = ds.Data[from]
			}
		}
		out.Datasets[d] = cp
	}
	return out
}

// Bundle is the set of series returned by one analytics query. A missing key
// means the breakdown does not apply at the requested depth.
type Bundle map[Breakdown]Series

// Has reports whether the breakdown is present.
func (b Bundle) Has(k Breakdown) bool {
	_, ok := b[k]
	return ok
}

// Normalize returns a copy with every series in natural label order.
func (b Bundle) Normalize() Bundle {
	if b == nil {
		return nil
	}
	out := make(Bundle, len(b))
	for k, s := range b {
		out[k] = s.sortedBy(k)
	}
	return out
}

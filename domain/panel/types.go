package panel

import (
	"math"
	"sort"

	"geocausal/domain/core"
)

// Key columns every panel must carry. Everything else is an indicator.
const (
	KeyCountry = "country"
	KeyYear    = "year"
)

// Observation is one country-year row with its numeric indicator values.
// Missing or non-numeric indicator cells are stored as NaN.
type Observation struct {
	Country string             `json:"country"`
	Year    int                `json:"year"`
	Values  map[string]float64 `json:"values"`
}

// Panel is a loaded country-year indicator table. It is immutable after
// loading; a new upload produces a new Panel with a new SourceID.
type Panel struct {
	ID       core.SourceID  `json:"id"`
	Source   string         `json:"source"`
	Columns  []string       `json:"columns"` // original column order, keys included
	Rows     []Observation  `json:"rows"`
	LoadedAt core.Timestamp `json:"loaded_at"`
}

// NewPanel builds a panel from parsed rows. Column order is preserved so the
// indicator catalog stays deterministic across reloads of the same source.
func NewPanel(source string, columns []string, rows []Observation) *Panel {
	return &Panel{
		ID:       core.SourceID(core.NewID()),
		Source:   source,
		Columns:  columns,
		Rows:     rows,
		LoadedAt: core.Now(),
	}
}

// Indicators returns the selectable indicator catalog: every column except
// the two key columns, in original column order.
func (p *Panel) Indicators() []string {
	out := make([]string, 0, len(p.Columns))
	for _, c := range p.Columns {
		if c == KeyCountry || c == KeyYear {
			continue
		}
		out = append(out, c)
	}
	return out
}

// HasIndicator reports whether name is in the indicator catalog.
func (p *Panel) HasIndicator(name string) bool {
	for _, c := range p.Indicators() {
		if c == name {
			return true
		}
	}
	return false
}

// Countries returns distinct country names in ascending order.
func (p *Panel) Countries() []string {
	seen := make(map[string]bool, len(p.Rows))
	var out []string
	for _, row := range p.Rows {
		if !seen[row.Country] {
			seen[row.Country] = true
			out = append(out, row.Country)
		}
	}
	sort.Strings(out)
	return out
}

// Years returns distinct years in ascending order.
func (p *Panel) Years() []int {
	seen := make(map[int]bool, len(p.Rows))
	var out []int
	for _, row := range p.Rows {
		if !seen[row.Year] {
			seen[row.Year] = true
			out = append(out, row.Year)
		}
	}
	sort.Ints(out)
	return out
}

// Column returns the values of one indicator in row order (NaN where missing).
func (p *Panel) Column(name string) []float64 {
	out := make([]float64, len(p.Rows))
	for i, row := range p.Rows {
		v, ok := row.Values[name]
		if !ok {
			v = math.NaN()
		}
		out[i] = v
	}
	return out
}

// FilterYear returns the rows for one year, preserving row order.
func (p *Panel) FilterYear(year int) []Observation {
	var out []Observation
	for _, row := range p.Rows {
		if row.Year == year {
			out = append(out, row)
		}
	}
	return out
}

// FilterCountry returns the rows for one country, preserving row order.
func (p *Panel) FilterCountry(country string) []Observation {
	var out []Observation
	for _, row := range p.Rows {
		if row.Country == country {
			out = append(out, row)
		}
	}
	return out
}

// CompleteRows returns the rows that have a non-NaN value for every named
// column, preserving input order. This is the null-filtering step every
// estimation runs before fitting.
func (p *Panel) CompleteRows(cols ...string) []Observation {
	var out []Observation
	for _, row := range p.Rows {
		complete := true
		for _, c := range cols {
			v, ok := row.Values[c]
			if !ok || math.IsNaN(v) {
				complete = false
				break
			}
		}
		if complete {
			out = append(out, row)
		}
	}
	return out
}

// Extract pulls the named column out of a row subset, in order.
func Extract(rows []Observation, col string) []float64 {
	out := make([]float64, len(rows))
	for i, row := range rows {
		v, ok := row.Values[col]
		if !ok {
			v = math.NaN()
		}
		out[i] = v
	}
	return out
}

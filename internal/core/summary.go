package core

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Totals are the global figures of a dashboard.
type Totals struct {
	Operations int             `json:"operations"`
	Revenue    decimal.Decimal `json:"revenue"`
	Profit     decimal.Decimal `json:"profit"`
	Expenses   decimal.Decimal `json:"expenses"`
}

// TeamStats aggregates the operations of one team.
type TeamStats struct {
	Name       string          `json:"name"`
	Operations int             `json:"operations"`
	Revenue    decimal.Decimal `json:"revenue"`
	Profit     decimal.Decimal `json:"profit"`
}

// Dashboard is the response of the reporting endpoint.
type Dashboard struct {
	Period PeriodLabel `json:"period"`
	Totals Totals      `json:"totals"`
	Teams  []TeamStats `json:"teams"`
}

// NewDashboard returns an empty dashboard for p with zero sums.
func NewDashboard(p Period) Dashboard {
	return Dashboard{
		Period: p.Label(),
		Totals: Totals{Revenue: decimal.Zero, Profit: decimal.Zero, Expenses: decimal.Zero},
		Teams:  []TeamStats{},
	}
}

// Aggregate computes totals and the per-team breakdown of the operations
// inside p. Teams are ordered by revenue descending, then by name.
func Aggregate(ops []Operation, p Period) Dashboard {
	d := NewDashboard(p)
	byTeam := map[string]*TeamStats{}

	for _, op := range ops {
		if !p.Contains(op.Date) {
			continue
		}
		d.Totals.Operations++
		d.Totals.Revenue = d.Totals.Revenue.Add(op.Revenue)
		d.Totals.Profit = d.Totals.Profit.Add(op.Profit)
		d.Totals.Expenses = d.Totals.Expenses.Add(op.Expenses())

		name := op.TeamName()
		ts, ok := byTeam[name]
		if !ok {
			ts = &TeamStats{Name: name, Revenue: decimal.Zero, Profit: decimal.Zero}
			byTeam[name] = ts
		}
		ts.Operations++
		ts.Revenue = ts.Revenue.Add(op.Revenue)
		ts.Profit = ts.Profit.Add(op.Profit)
	}

	for _, ts := range byTeam {
		d.Teams = append(d.Teams, *ts)
	}
	SortTeams(d.Teams)
	return d
}

// SortTeams orders teams by revenue descending; equal revenue falls back to name.
func SortTeams(teams []TeamStats) {
	sort.SliceStable(teams, func(i, j int) bool {
		if c := teams[i].Revenue.Cmp(teams[j].Revenue); c != 0 {
			return c > 0
		}
		return teams[i].Name < teams[j].Name
	})
}

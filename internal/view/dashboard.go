package view

import (
	"fmt"
	"strings"
	"time"

	"saldo/internal/core"
	"saldo/internal/ledger"
)

// State is the explicit per-session view selection threaded through every
// recompute.
type State struct {
	Mode     ledger.ViewMode
	Period   ledger.Period
	Filter   ledger.Filter
	Chart    ChartType
	Location *time.Location
}

// DefaultState mirrors the dashboard's initial selection: all-time, all
// categories, bar chart, current month.
func DefaultState(now time.Time, loc *time.Location) State {
	return State{
		Mode:     ledger.AllTime,
		Period:   ledger.PeriodOf(now, loc),
		Filter:   ledger.FilterAll,
		Chart:    ChartBar,
		Location: loc,
	}
}

func (s State) Query() ledger.Query {
	return ledger.Query{Mode: s.Mode, Period: s.Period, Filter: s.Filter, Location: s.Location}
}

// WithSelection applies a bucket click.
func (s State) WithSelection(key string) State {
	s.Filter = Select(s.Filter, key)
	return s
}

func ParseChartType(v string) (ChartType, error) {
	switch c := ChartType(strings.ToLower(strings.TrimSpace(v))); c {
	case ChartBar, ChartPie:
		return c, nil
	case "":
		return ChartBar, nil
	default:
		return "", fmt.Errorf("%w: unknown chart type %q", core.ErrValidation, v)
	}
}

type Progress struct {
	MonthlyIncome core.Money `json:"monthly_income"`
	Goal          core.Money `json:"goal"`
	Percent       float64    `json:"percent"`
}

// Dashboard is everything the dashboard screen renders for one state.
type Dashboard struct {
	Mode     ledger.ViewMode `json:"mode"`
	Period   string          `json:"period"`
	Filter   ledger.Filter   `json:"filter"`
	Chart    ChartType       `json:"chart"`
	Totals   TotalsView      `json:"totals"`
	Buckets  []Bucket        `json:"buckets"`
	Rows     []Row           `json:"rows"`
	Progress Progress        `json:"progress"`
	Years    []int           `json:"years"`
}

type TotalsView struct {
	Income      core.Money `json:"income"`
	Outstanding core.Money `json:"outstanding"`
	Paid        core.Money `json:"paid"`
}

// Build recomputes the dashboard from a snapshot.
func Build(l core.Ledger, s State, now time.Time) Dashboard {
	r := ledger.Compute(l, s.Query())
	return Dashboard{
		Mode:   s.Mode,
		Period: s.Period.String(),
		Filter: s.Filter,
		Chart:  s.Chart,
		Totals: TotalsView{
			Income:      r.Totals.Income,
			Outstanding: r.Totals.Outstanding,
			Paid:        r.Totals.Paid,
		},
		Buckets:  Buckets(r.Totals, s.Filter),
		Rows:     Table(r.Entries),
		Progress: Progress{MonthlyIncome: r.MonthlyIncome, Goal: r.Goal, Percent: r.Progress},
		Years:    ledger.YearRange(l, now, s.Location),
	}
}

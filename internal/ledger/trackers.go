package ledger

import (
	"sort"
	"time"

	"saldo/internal/core"
)

// DebtTracker is the debt screen: the displayed debts, their total and the
// all-time outstanding amount shown in the header.
type DebtTracker struct {
	Debts              []core.Debt
	DisplayedTotal     core.Money
	OutstandingAllTime core.Money
}

// IncomeTracker is the income screen: the displayed incomes, their total and
// the month's progress toward the goal.
type IncomeTracker struct {
	Incomes        []core.Income
	DisplayedTotal core.Money
	MonthlyIncome  core.Money
	Goal           core.Money
	Progress       float64
}

func DebtView(l core.Ledger, q Query) DebtTracker {
	scoped := Scope(core.Ledger{Debts: l.Debts}, q.Mode, q.Period, q.Location)
	debts := append([]core.Debt(nil), scoped.Debts...)
	sort.SliceStable(debts, func(i, j int) bool { return newer(debts[i].Date, debts[j].Date) })

	var v DebtTracker
	v.Debts = debts
	for _, d := range debts {
		v.DisplayedTotal = v.DisplayedTotal.Add(d.Amount)
	}
	v.OutstandingAllTime = ComputeTotals(Scoped{Debts: l.Debts}).Outstanding
	return v
}

func IncomeView(l core.Ledger, q Query) IncomeTracker {
	scoped := Scope(core.Ledger{Incomes: l.Incomes}, q.Mode, q.Period, q.Location)
	incomes := append([]core.Income(nil), scoped.Incomes...)
	sort.SliceStable(incomes, func(i, j int) bool { return newer(incomes[i].Date, incomes[j].Date) })

	r := Compute(core.Ledger{Incomes: l.Incomes, Goal: l.Goal}, Query{Mode: Monthly, Period: q.Period, Filter: FilterIncome, Location: q.Location})
	v := IncomeTracker{
		Incomes:       incomes,
		MonthlyIncome: r.MonthlyIncome,
		Goal:          r.Goal,
		Progress:      r.Progress,
	}
	for _, i := range incomes {
		v.DisplayedTotal = v.DisplayedTotal.Add(i.Amount)
	}
	return v
}

// YearRange lists every year from the newest to the oldest year present in
// the records, always including the year of now.
func YearRange(l core.Ledger, now time.Time, loc *time.Location) []int {
	loc = locationOrUTC(loc)
	current := now.In(loc).Year()
	lo, hi := current, current
	see := func(d core.Date) {
		if d.IsZero() {
			return
		}
		y := d.In(loc).Year()
		if y < lo {
			lo = y
		}
		if y > hi {
			hi = y
		}
	}
	for _, d := range l.Debts {
		see(d.Date)
	}
	for _, i := range l.Incomes {
		see(i.Date)
	}
	years := make([]int, 0, hi-lo+1)
	for y := hi; y >= lo; y-- {
		years = append(years, y)
	}
	return years
}

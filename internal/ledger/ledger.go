// Package ledger derives totals, filtered entry lists and goal progress from
// a committed core.Ledger snapshot. Everything here is pure: no I/O, no
// blocking, no shared state.
package ledger

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"saldo/internal/core"
)

type ViewMode string

const (
	Monthly ViewMode = "monthly"
	AllTime ViewMode = "all"
)

type Filter string

const (
	FilterAll         Filter = "all"
	FilterIncome      Filter = "income"
	FilterOutstanding Filter = "outstanding"
	FilterPaid        Filter = "paid"
)

// Period is a calendar month.
type Period struct {
	Year  int
	Month time.Month
}

// Query selects what the engine computes. A nil Location means UTC.
type Query struct {
	Mode     ViewMode
	Period   Period
	Filter   Filter
	Location *time.Location
}

type Totals struct {
	Income      core.Money
	Outstanding core.Money
	Paid        core.Money
}

// Entry is a debt or income tagged with its kind, as shown in the combined list.
type Entry struct {
	Kind       core.Kind
	ID         string
	Name       string
	Amount     core.Money
	Date       core.Date
	Paid       bool
	Attachment core.Attachment
}

// Scoped holds the records that survive scope selection.
type Scoped struct {
	Debts   []core.Debt
	Incomes []core.Income
}

type Result struct {
	Totals Totals
	// Entries is the category-filtered list sorted by date descending.
	Entries []Entry
	// MonthlyIncome is the income total of Query.Period regardless of mode.
	MonthlyIncome core.Money
	Goal          core.Money
	Progress      float64
}

func ParseViewMode(s string) (ViewMode, error) {
	switch ViewMode(strings.ToLower(strings.TrimSpace(s))) {
	case Monthly:
		return Monthly, nil
	case AllTime, "all-time", "":
		return AllTime, nil
	default:
		return "", fmt.Errorf("%w: unknown view mode %q", core.ErrValidation, s)
	}
}

func ParseFilter(s string) (Filter, error) {
	switch f := Filter(strings.ToLower(strings.TrimSpace(s))); f {
	case FilterAll, FilterIncome, FilterOutstanding, FilterPaid:
		return f, nil
	case "":
		return FilterAll, nil
	default:
		return "", fmt.Errorf("%w: unknown filter %q", core.ErrValidation, s)
	}
}

// Toggle returns the filter after the user selects selected while current is
// active: selecting the active filter again clears it back to FilterAll.
func Toggle(current, selected Filter) Filter {
	if selected == current {
		return FilterAll
	}
	return selected
}

// PeriodOf returns the calendar month containing t in loc.
func PeriodOf(t time.Time, loc *time.Location) Period {
	t = t.In(locationOrUTC(loc))
	return Period{Year: t.Year(), Month: t.Month()}
}

func (p Period) Validate() error {
	if p.Month < time.January || p.Month > time.December {
		return fmt.Errorf("%w: month %d out of range", core.ErrValidation, p.Month)
	}
	if p.Year < 1 || p.Year > 9999 {
		return fmt.Errorf("%w: year %d out of range", core.ErrValidation, p.Year)
	}
	return nil
}

// Contains reports whether d falls in the period. Unparsable (zero) dates
// never match.
func (p Period) Contains(d core.Date, loc *time.Location) bool {
	if d.IsZero() {
		return false
	}
	t := d.In(locationOrUTC(loc))
	return t.Year() == p.Year && t.Month() == p.Month
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// Scope restricts both sets to the period when mode is Monthly.
func Scope(l core.Ledger, mode ViewMode, p Period, loc *time.Location) Scoped {
	if mode != Monthly {
		return Scoped{Debts: l.Debts, Incomes: l.Incomes}
	}
	var s Scoped
	for _, d := range l.Debts {
		if p.Contains(d.Date, loc) {
			s.Debts = append(s.Debts, d)
		}
	}
	s.Incomes = monthIncomes(l.Incomes, p, loc)
	return s
}

func monthIncomes(in []core.Income, p Period, loc *time.Location) []core.Income {
	var out []core.Income
	for _, i := range in {
		if p.Contains(i.Date, loc) {
			out = append(out, i)
		}
	}
	return out
}

// ComputeTotals partitions the scoped amounts into the three buckets.
func ComputeTotals(s Scoped) Totals {
	var t Totals
	for _, i := range s.Incomes {
		t.Income = t.Income.Add(i.Amount)
	}
	for _, d := range s.Debts {
		if d.Paid {
			t.Paid = t.Paid.Add(d.Amount)
		} else {
			t.Outstanding = t.Outstanding.Add(d.Amount)
		}
	}
	return t
}

// Sum is the total of all three buckets.
func (t Totals) Sum() core.Money {
	return t.Income.Add(t.Outstanding).Add(t.Paid)
}

// Of returns the bucket total for a category filter; FilterAll yields Sum.
func (t Totals) Of(f Filter) core.Money {
	switch f {
	case FilterIncome:
		return t.Income
	case FilterOutstanding:
		return t.Outstanding
	case FilterPaid:
		return t.Paid
	default:
		return t.Sum()
	}
}

// ApplyFilter selects entries for the category and sorts them by date
// descending. Ties keep incomes before debts, then store order.
func ApplyFilter(s Scoped, f Filter) []Entry {
	out := make([]Entry, 0, len(s.Incomes)+len(s.Debts))
	if f == FilterAll || f == FilterIncome {
		for _, i := range s.Incomes {
			out = append(out, FromIncome(i))
		}
	}
	if f != FilterIncome {
		for _, d := range s.Debts {
			if (f == FilterOutstanding && d.Paid) || (f == FilterPaid && !d.Paid) {
				continue
			}
			out = append(out, FromDebt(d))
		}
	}
	SortByDateDesc(out)
	return out
}

// SortByDateDesc orders entries newest first; entries without a valid date sink to the end.
func SortByDateDesc(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return newer(entries[i].Date, entries[j].Date)
	})
}

func newer(a, b core.Date) bool {
	switch {
	case a.IsZero():
		return false
	case b.IsZero():
		return true
	default:
		return a.After(b.Time)
	}
}

// Progress is monthlyIncome/goal as a percentage clamped to [0, 100].
// A non-positive goal is rejected upstream; it yields 0 here.
func Progress(monthlyIncome, goal core.Money) float64 {
	if goal.Cents <= 0 || monthlyIncome.Cents <= 0 {
		return 0
	}
	hundred := decimal.NewFromInt(100)
	pct := monthlyIncome.Decimal().Div(goal.Decimal()).Mul(hundred)
	if pct.GreaterThan(hundred) {
		return 100
	}
	return pct.Round(2).InexactFloat64()
}

// Compute runs scope selection, totals, filtering and goal progress.
func Compute(l core.Ledger, q Query) Result {
	scoped := Scope(l, q.Mode, q.Period, q.Location)
	goal := l.Goal.Amount
	if goal.Cents <= 0 {
		goal = core.DefaultGoal().Amount
	}
	var monthly core.Money
	for _, i := range monthIncomes(l.Incomes, q.Period, q.Location) {
		monthly = monthly.Add(i.Amount)
	}
	return Result{
		Totals:        ComputeTotals(scoped),
		Entries:       ApplyFilter(scoped, q.Filter),
		MonthlyIncome: monthly,
		Goal:          goal,
		Progress:      Progress(monthly, goal),
	}
}

func FromIncome(i core.Income) Entry {
	return Entry{Kind: core.KindIncome, ID: i.ID, Name: i.Name, Amount: i.Amount, Date: i.Date, Attachment: i.Attachment}
}

func FromDebt(d core.Debt) Entry {
	return Entry{Kind: core.KindDebt, ID: d.ID, Name: d.Name, Amount: d.Amount, Date: d.Date, Paid: d.Paid, Attachment: d.Attachment}
}

// Category is the bucket an entry is counted in.
func (e Entry) Category() Filter {
	switch {
	case e.Kind == core.KindIncome:
		return FilterIncome
	case e.Paid:
		return FilterPaid
	default:
		return FilterOutstanding
	}
}

func locationOrUTC(loc *time.Location) *time.Location {
	if loc == nil {
		return time.UTC
	}
	return loc
}

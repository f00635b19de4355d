// Package sheets mirrors a user's ledger into spreadsheet tabs, one tab per
// collection. The mirror is write-only: the document store stays the source
// of truth.
package sheets

import (
	"context"
	"fmt"
	"strings"

	"saldo/internal/core"
	"saldo/internal/ledger"
)

// Ports for outbound adapters.
type (
	// Mirror replaces the mirrored tabs of scope with the contents of l.
	Mirror interface {
		Mirror(ctx context.Context, scope string, l core.Ledger) error
	}
)

// Tab is one sheet worth of values, header row first.
type Tab struct {
	Name string
	Rows [][]any
}

// maxTabName is the Sheets limit on sheet titles.
const maxTabName = 100

var (
	debtHeader   = []any{"ID", "Date", "Name", "Amount", "Status", "Attachment"}
	incomeHeader = []any{"ID", "Date", "Name", "Amount", "Attachment"}
)

// TabName returns "<Collection>-<scope>", with characters Sheets rejects in
// titles replaced.
func TabName(collection, scope string) string {
	r := strings.NewReplacer("'", "_", "[", "_", "]", "_", "*", "_", "?", "_", ":", "_", "/", "_", "\\", "_")
	name := collection + "-" + r.Replace(scope)
	if len(name) > maxTabName {
		name = name[:maxTabName]
	}
	return name
}

// Tabs renders l as the debts and incomes tabs of scope, newest first. The
// incomes tab ends with a goal line.
func Tabs(scope string, l core.Ledger) []Tab {
	entries := ledger.ApplyFilter(ledger.Scoped{Debts: l.Debts, Incomes: l.Incomes}, ledger.FilterAll)

	debts := [][]any{debtHeader}
	incomes := [][]any{incomeHeader}
	for _, e := range entries {
		date := ""
		if !e.Date.IsZero() {
			date = e.Date.UTC().Format("2006-01-02")
		}
		switch e.Kind {
		case core.KindDebt:
			status := "Outstanding"
			if e.Paid {
				status = "Paid"
			}
			debts = append(debts, []any{e.ID, date, e.Name, e.Amount.String(), status, e.Attachment.URL})
		case core.KindIncome:
			incomes = append(incomes, []any{e.ID, date, e.Name, e.Amount.String(), e.Attachment.URL})
		}
	}
	incomes = append(incomes, []any{}, []any{"", "", "Goal", l.Goal.Amount.String(), ""})

	return []Tab{
		{Name: TabName("Debts", scope), Rows: debts},
		{Name: TabName("Incomes", scope), Rows: incomes},
	}
}

// A1 quotes a sheet title for use in an A1 range.
func A1(tab, rng string) string {
	return fmt.Sprintf("'%s'!%s", tab, rng)
}

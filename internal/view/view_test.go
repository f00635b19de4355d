package view

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saldo/internal/core"
	"saldo/internal/ledger"
)

func TestBuckets_FixedOrderAndKeys(t *testing.T) {
	totals := ledger.Totals{
		Income:      core.Money{Cents: 100000},
		Outstanding: core.Money{Cents: 50000},
		Paid:        core.Money{Cents: 30000},
	}
	bs := Buckets(totals, ledger.FilterAll)
	require.Len(t, bs, 3)

	assert.Equal(t, []ledger.Filter{ledger.FilterIncome, ledger.FilterOutstanding, ledger.FilterPaid},
		[]ledger.Filter{bs[0].Key, bs[1].Key, bs[2].Key})
	assert.Equal(t, "Income", bs[0].Name)
	assert.Equal(t, "Outstanding Debt", bs[1].Name)
	assert.Equal(t, "Paid Debt", bs[2].Name)
	assert.Equal(t, core.Money{Cents: 30000}, bs[2].Value)
	for _, b := range bs {
		assert.False(t, b.Highlighted)
		assert.Len(t, b.Color, 7)
	}
}

func TestBuckets_DimsUnselected(t *testing.T) {
	bs := Buckets(ledger.Totals{}, ledger.FilterPaid)
	assert.Equal(t, "#2dd4bf80", bs[0].Color)
	assert.Equal(t, "#f8717180", bs[1].Color)
	assert.Equal(t, "#4ade80", bs[2].Color)
	assert.True(t, bs[2].Highlighted)
}

func TestSelect(t *testing.T) {
	tests := []struct {
		name    string
		current ledger.Filter
		key     string
		want    ledger.Filter
	}{
		{"select income", ledger.FilterAll, "income", ledger.FilterIncome},
		{"reselect clears", ledger.FilterIncome, "income", ledger.FilterAll},
		{"switch bucket", ledger.FilterIncome, "paid", ledger.FilterPaid},
		{"background click", ledger.FilterOutstanding, "", ledger.FilterAll},
		{"unknown key", ledger.FilterPaid, "savings", ledger.FilterAll},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Select(tt.current, tt.key))
		})
	}
}

func TestTable_SortsAndKeys(t *testing.T) {
	entries := []ledger.Entry{
		{Kind: core.KindDebt, ID: "a", Date: core.NewDate(2024, 1, 1)},
		{Kind: core.KindIncome, ID: "b", Date: core.NewDate(2024, 2, 1)},
		{Kind: core.KindDebt, ID: "c", Date: core.NewDate(2024, 1, 15), Paid: true},
	}
	rows := Table(entries)
	require.Len(t, rows, 3)
	assert.Equal(t, "incomes/b", rows[0].Key)
	assert.Equal(t, "debts/c", rows[1].Key)
	assert.Equal(t, ledger.FilterPaid, rows[1].Category)
	assert.Equal(t, "debts/a", rows[2].Key)
	// input untouched
	assert.Equal(t, "a", entries[0].ID)
}

func TestBuild(t *testing.T) {
	l := core.Ledger{
		Debts: []core.Debt{
			{ID: "d1", Amount: core.Money{Cents: 50000}, Date: core.NewDate(2024, 1, 5)},
			{ID: "d2", Amount: core.Money{Cents: 30000}, Date: core.NewDate(2024, 2, 10), Paid: true},
		},
		Incomes: []core.Income{{ID: "i1", Amount: core.Money{Cents: 100000}, Date: core.NewDate(2024, 1, 15)}},
		Goal:    core.Goal{Amount: core.Money{Cents: 200000}},
	}
	now := time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC)
	s := DefaultState(now, nil)
	assert.Equal(t, ledger.AllTime, s.Mode)
	assert.Equal(t, ChartBar, s.Chart)

	d := Build(l, s.WithSelection("outstanding"), now)
	assert.Equal(t, ledger.FilterOutstanding, d.Filter)
	require.Len(t, d.Rows, 1)
	assert.Equal(t, "d1", d.Rows[0].ID)
	assert.Equal(t, core.Money{Cents: 30000}, d.Totals.Paid)
	assert.Equal(t, 50.0, d.Progress.Percent)
	assert.Equal(t, "2024-01", d.Period)
	assert.Equal(t, []int{2024}, d.Years)
}

func TestParseChartType(t *testing.T) {
	c, err := ParseChartType("PIE")
	require.NoError(t, err)
	assert.Equal(t, ChartPie, c)
	_, err = ParseChartType("donut")
	assert.ErrorIs(t, err, core.ErrValidation)
}

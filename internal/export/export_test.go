package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"saldo/internal/core"
	"saldo/internal/ledger"
	"saldo/internal/view"
)

func sampleDashboard() view.Dashboard {
	l := core.Ledger{
		Debts: []core.Debt{
			{ID: "d1", Name: "Rent", Amount: core.Money{Cents: 150000}, Date: core.NewDate(2024, 3, 1)},
			{ID: "d2", Name: "Phone", Amount: core.Money{Cents: 2550}, Date: core.NewDate(2024, 3, 5), Paid: true},
		},
		Incomes: []core.Income{
			{ID: "i1", Name: "Salary", Amount: core.Money{Cents: 300000}, Date: core.NewDate(2024, 3, 10),
				Attachment: core.Attachment{URL: "https://blobs.test/a.png", Path: "a.png"}},
		},
		Goal: core.Goal{Amount: core.Money{Cents: 600000}},
	}
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	return view.Build(l, view.DefaultState(now, time.UTC), now)
}

func readBack(t *testing.T, d view.Dashboard) *excelize.File {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, d))
	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func TestWriteTransactions(t *testing.T) {
	f := readBack(t, sampleDashboard())

	assert.Equal(t, []string{SheetTransactions, SheetSummary}, f.GetSheetList())

	rows, err := f.GetRows(SheetTransactions)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, transactionHeaders, rows[0])

	// newest first
	assert.Equal(t, "2024-03-10", rows[1][0])
	assert.Equal(t, "Income", rows[1][1])
	assert.Equal(t, "Salary", rows[1][3])
	assert.Equal(t, "https://blobs.test/a.png", rows[1][6])

	assert.Equal(t, "Phone", rows[2][3])
	assert.Equal(t, "Paid", rows[2][5])
	assert.Equal(t, "Rent", rows[3][3])
	assert.Equal(t, "Outstanding", rows[3][5])

	raw, err := f.GetCellValue(SheetTransactions, "E4", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	assert.Equal(t, "1500", raw)
}

func TestWriteSummary(t *testing.T) {
	f := readBack(t, sampleDashboard())

	rows, err := f.GetRows(SheetSummary)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(rows), 11)

	assert.Equal(t, []string{"Scope", "All time"}, rows[0])
	assert.Equal(t, []string{"Filter", "All"}, rows[1])
	assert.Equal(t, "Income", rows[4][0])
	assert.Equal(t, "Outstanding Debt", rows[5][0])
	assert.Equal(t, "Paid Debt", rows[6][0])

	progress, err := f.GetCellValue(SheetSummary, "B11", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	assert.Equal(t, "50", progress)
}

func TestWriteEmptyDashboard(t *testing.T) {
	now := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	d := view.Build(core.Ledger{Goal: core.DefaultGoal()}, view.DefaultState(now, time.UTC), now)
	f := readBack(t, d)

	rows, err := f.GetRows(SheetTransactions)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestFilename(t *testing.T) {
	now := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	d := sampleDashboard()
	assert.Equal(t, "saldo_all_20240315.xlsx", Filename(d, now))

	d.Mode = ledger.Monthly
	assert.Equal(t, "saldo_2024-03_20240315.xlsx", Filename(d, now))
}

func TestDisplayDate(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"2024-03-01T00:00:00Z", "2024-03-01"},
		{"", ""},
		{"not a date", ""},
	}
	for _, tt := range tests {
		if got := displayDate(tt.in); got != tt.want {
			t.Errorf("displayDate(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

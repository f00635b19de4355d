// Package export renders a dashboard as an XLSX workbook.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"saldo/internal/core"
	"saldo/internal/ledger"
	"saldo/internal/view"
)

const (
	SheetTransactions = "Transactions"
	SheetSummary      = "Summary"
	ContentType       = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	// builtin number format "#,##0.00"
	numFmtAmount = 4
)

var transactionHeaders = []string{"Date", "Type", "Category", "Name", "Amount", "Status", "Attachment"}

// Workbook builds the two-sheet workbook for d. The caller closes the file.
func Workbook(d view.Dashboard) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetTransactions); err != nil {
		f.Close()
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(SheetSummary); err != nil {
		f.Close()
		return nil, fmt.Errorf("create summary sheet: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, err
	}
	amount, err := f.NewStyle(&excelize.Style{NumFmt: numFmtAmount})
	if err != nil {
		f.Close()
		return nil, err
	}

	if err := writeTransactions(f, d.Rows, bold, amount); err != nil {
		f.Close()
		return nil, err
	}
	if err := writeSummary(f, d, bold, amount); err != nil {
		f.Close()
		return nil, err
	}
	f.SetActiveSheet(0)
	return f, nil
}

// Write streams the workbook for d to w.
func Write(w io.Writer, d view.Dashboard) error {
	f, err := Workbook(d)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// Filename names the download after the scope of the dashboard.
func Filename(d view.Dashboard, now time.Time) string {
	scope := "all"
	if d.Mode == ledger.Monthly {
		scope = d.Period
	}
	return fmt.Sprintf("saldo_%s_%s.xlsx", scope, now.Format("20060102"))
}

func writeTransactions(f *excelize.File, rows []view.Row, bold, amount int) error {
	sheet := SheetTransactions
	for i, h := range transactionHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}
	if err := f.SetCellStyle(sheet, "A1", "G1", bold); err != nil {
		return err
	}

	for i, r := range rows {
		n := i + 2
		values := []any{
			displayDate(r.Date),
			kindLabel(r.Kind),
			categoryLabel(r.Category),
			r.Name,
			r.Amount.Float64(),
			statusLabel(r),
			r.Attachment,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, n)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
	}
	if len(rows) > 0 {
		last := fmt.Sprintf("E%d", len(rows)+1)
		if err := f.SetCellStyle(sheet, "E2", last, amount); err != nil {
			return err
		}
	}

	widths := map[string]float64{"A": 12, "B": 8, "C": 18, "D": 30, "E": 14, "F": 12, "G": 40}
	for col, w := range widths {
		if err := f.SetColWidth(sheet, col, col, w); err != nil {
			return err
		}
	}
	return f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}

func writeSummary(f *excelize.File, d view.Dashboard, bold, amount int) error {
	sheet := SheetSummary
	scope := "All time"
	if d.Mode == ledger.Monthly {
		scope = d.Period
	}
	rows := [][]any{
		{"Scope", scope},
		{"Filter", categoryLabel(d.Filter)},
		{},
		{"Bucket", "Total"},
	}
	for _, b := range d.Buckets {
		rows = append(rows, []any{b.Name, b.Value.Float64()})
	}
	rows = append(rows,
		[]any{},
		[]any{"Monthly income", d.Progress.MonthlyIncome.Float64()},
		[]any{"Income goal", d.Progress.Goal.Float64()},
		[]any{"Progress %", d.Progress.Percent},
	)

	for i, r := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if len(r) == 0 {
			continue
		}
		if err := f.SetSheetRow(sheet, cell, &r); err != nil {
			return err
		}
	}
	if err := f.SetCellStyle(sheet, "A1", fmt.Sprintf("A%d", len(rows)), bold); err != nil {
		return err
	}
	bucketStart, bucketEnd := 5, 4+len(d.Buckets)
	if err := f.SetCellStyle(sheet, fmt.Sprintf("B%d", bucketStart), fmt.Sprintf("B%d", bucketEnd+3), amount); err != nil {
		return err
	}
	return f.SetColWidth(sheet, "A", "A", 20)
}

func displayDate(s string) string {
	d := core.LenientDate(s)
	if d.IsZero() {
		return ""
	}
	return d.UTC().Format("2006-01-02")
}

func kindLabel(k core.Kind) string {
	if k == core.KindIncome {
		return "Income"
	}
	return "Debt"
}

func categoryLabel(f ledger.Filter) string {
	switch f {
	case ledger.FilterIncome:
		return "Income"
	case ledger.FilterOutstanding:
		return "Outstanding Debt"
	case ledger.FilterPaid:
		return "Paid Debt"
	default:
		return "All"
	}
}

func statusLabel(r view.Row) string {
	switch {
	case r.Kind == core.KindIncome:
		return ""
	case r.Paid:
		return "Paid"
	default:
		return "Outstanding"
	}
}

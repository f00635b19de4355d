// Package view projects ledger results into chart buckets and table rows and
// maps chart interaction back into a category filter.
package view

import (
	"saldo/internal/core"
	"saldo/internal/ledger"
)

type ChartType string

const (
	ChartBar ChartType = "bar"
	ChartPie ChartType = "pie"
)

// dimSuffix is appended to a bucket color when another bucket is selected.
const dimSuffix = "80"

// Bucket is one aggregate series. Key doubles as the filter it selects.
type Bucket struct {
	Key         ledger.Filter `json:"key"`
	Name        string        `json:"name"`
	Value       core.Money    `json:"value"`
	Color       string        `json:"color"`
	Highlighted bool          `json:"highlighted"`
}

type bucketDef struct {
	key   ledger.Filter
	name  string
	color string
}

var bucketDefs = [...]bucketDef{
	{ledger.FilterIncome, "Income", "#2dd4bf"},
	{ledger.FilterOutstanding, "Outstanding Debt", "#f87171"},
	{ledger.FilterPaid, "Paid Debt", "#4ade80"},
}

// Row is one line of the transaction table.
type Row struct {
	Key        string        `json:"key"`
	Kind       core.Kind     `json:"kind"`
	Category   ledger.Filter `json:"category"`
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Amount     core.Money    `json:"amount"`
	Date       string        `json:"date"`
	Paid       bool          `json:"paid"`
	Attachment string        `json:"attachment_url,omitempty"`
}

// Buckets returns exactly three buckets in a fixed order. When a category
// filter is active every other bucket is dimmed.
func Buckets(t ledger.Totals, active ledger.Filter) []Bucket {
	out := make([]Bucket, 0, len(bucketDefs))
	for _, def := range bucketDefs {
		b := Bucket{
			Key:         def.key,
			Name:        def.name,
			Value:       t.Of(def.key),
			Color:       def.color,
			Highlighted: active == def.key,
		}
		if active != ledger.FilterAll && active != def.key {
			b.Color += dimSuffix
		}
		out = append(out, b)
	}
	return out
}

// Select maps a click on a bucket to the next filter. An empty or unknown key
// (a click outside any bucket) resets to FilterAll.
func Select(current ledger.Filter, key string) ledger.Filter {
	for _, def := range bucketDefs {
		if string(def.key) == key {
			return ledger.Toggle(current, def.key)
		}
	}
	return ledger.FilterAll
}

// Table re-sorts the filtered slice by date descending and renders rows.
func Table(entries []ledger.Entry) []Row {
	sorted := append([]ledger.Entry(nil), entries...)
	ledger.SortByDateDesc(sorted)
	rows := make([]Row, 0, len(sorted))
	for _, e := range sorted {
		rows = append(rows, Row{
			Key:        string(e.Kind) + "/" + e.ID,
			Kind:       e.Kind,
			Category:   e.Category(),
			ID:         e.ID,
			Name:       e.Name,
			Amount:     e.Amount,
			Date:       e.Date.Format(),
			Paid:       e.Paid,
			Attachment: e.Attachment.URL,
		})
	}
	return rows
}

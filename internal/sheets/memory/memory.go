// Package memory keeps mirrored tabs in process, for local runs without a
// spreadsheet and for tests.
package memory

import (
	"context"
	"sync"

	"saldo/internal/core"
	ports "saldo/internal/sheets"
)

type Mirror struct {
	mu    sync.Mutex
	tabs  map[string][][]any
	calls int
}

var _ ports.Mirror = (*Mirror)(nil)

func New() *Mirror {
	return &Mirror{tabs: map[string][][]any{}}
}

// Mirror replaces the stored tabs of scope.
func (m *Mirror) Mirror(ctx context.Context, scope string, l core.Ledger) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range ports.Tabs(scope, l) {
		m.tabs[t.Name] = t.Rows
	}
	m.calls++
	return nil
}

// Tab returns a copy of the named tab's rows.
func (m *Mirror) Tab(name string) ([][]any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows, ok := m.tabs[name]
	return append([][]any(nil), rows...), ok
}

// Calls reports how many mirrors have completed.
func (m *Mirror) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

package memory

import (
	"context"
	"sort"
	"sync"

	"billtracker/internal/core"
	ports "billtracker/internal/sheets"
)

// Ledger is an in-process LedgerWriter used by tests and when no
// spreadsheet is configured.
type Ledger struct {
	mu   sync.Mutex
	rows map[string][]any
}

var _ ports.LedgerWriter = (*Ledger)(nil)

func New() *Ledger {
	return &Ledger{rows: make(map[string][]any)}
}

func (l *Ledger) Upsert(_ context.Context, v core.InstanceView) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rows[v.ID] = ports.Row(v)
	return nil
}

func (l *Ledger) Delete(_ context.Context, instanceID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.rows, instanceID)
	return nil
}

// Row returns a copy of the row for id.
func (l *Ledger) Row(id string) ([]any, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.rows[id]
	if !ok {
		return nil, false
	}
	return append([]any(nil), r...), true
}

// IDs lists stored instance ids in sorted order.
func (l *Ledger) IDs() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.rows))
	for id := range l.rows {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

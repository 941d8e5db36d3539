package services

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"billtracker/internal/amqp"
	"billtracker/internal/auth"
	"billtracker/internal/core"
	"billtracker/internal/storage"
)

func newStore(t *testing.T) *storage.SQLStore {
	t.Helper()
	s, err := storage.Open(context.Background(), storage.DriverSQLite, filepath.Join(t.TempDir(), "bills.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func as(userID string) context.Context {
	return auth.WithUserID(context.Background(), userID)
}

var home = core.Address{Street: "1 Main St", City: "Springfield", Country: "US"}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*amqp.InstanceEvent
	err    error
}

func (p *recordingPublisher) PublishInstanceEvent(_ context.Context, msg *amqp.InstanceEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, msg)
	return p.err
}

func (p *recordingPublisher) types() []amqp.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]amqp.EventType, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

func (p *recordingPublisher) instanceIDs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.InstanceID
	}
	return out
}

// seed creates a profile with one bill per name for userID, directly in
// the store.
func seed(t *testing.T, s storage.Store, userID string, names ...string) (core.Profile, []core.Bill) {
	t.Helper()
	ctx := context.Background()
	p := core.Profile{UserID: userID, Name: "Home", Address: home}
	require.NoError(t, s.CreateProfile(ctx, &p))
	bills := make([]core.Bill, 0, len(names))
	for _, name := range names {
		b := core.Bill{ProfileID: p.ID, UserID: userID, Name: name}
		require.NoError(t, s.CreateBill(ctx, &b))
		bills = append(bills, b)
	}
	return p, bills
}

func addInstance(t *testing.T, s storage.Store, b core.Bill, period string, cents int64) core.BillInstance {
	t.Helper()
	i := core.BillInstance{
		BillID:  b.ID,
		UserID:  b.UserID,
		Period:  period,
		Amount:  core.Money{Cents: cents},
		DueDate: "2024-12-01",
	}
	created, err := s.InsertInstanceIfAbsent(context.Background(), &i)
	require.NoError(t, err)
	require.True(t, created)
	return i
}

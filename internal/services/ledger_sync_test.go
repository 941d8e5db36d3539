package services

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"billtracker/internal/amqp"
	"billtracker/internal/metrics"
	"billtracker/internal/sheets/memory"
)

func TestLedgerSync_Handle(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	_, bills := seed(t, s, "alice", "Electricity")
	inst := addInstance(t, s, bills[0], "2024-12", 5000)

	ledger := memory.New()
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	ls := NewLedgerSync(s, ledger, m)

	ev := amqp.NewInstanceEvent(amqp.InstanceCreated, inst.ID, inst.BillID, inst.UserID, inst.Period)
	require.NoError(t, ls.Handle(ctx, ev))

	row, ok := ledger.Row(inst.ID)
	require.True(t, ok)
	assert.Equal(t, "Electricity", row[2])
	assert.Equal(t, "50.00", row[5])

	require.NoError(t, s.DeleteInstance(ctx, inst.ID))

	// An update for an instance that no longer exists removes the row.
	ev = amqp.NewInstanceEvent(amqp.InstanceUpdated, inst.ID, inst.BillID, inst.UserID, inst.Period)
	require.NoError(t, ls.Handle(ctx, ev))
	_, ok = ledger.Row(inst.ID)
	assert.False(t, ok)

	ev = amqp.NewInstanceEvent(amqp.InstanceDeleted, inst.ID, inst.BillID, inst.UserID, inst.Period)
	require.NoError(t, ls.Handle(ctx, ev))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.LedgerExports.WithLabelValues(string(amqp.InstanceCreated), "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LedgerExports.WithLabelValues(string(amqp.InstanceDeleted), "ok")))
}

func TestLedgerSync_UnknownEventAcked(t *testing.T) {
	ls := NewLedgerSync(newStore(t), memory.New(), nil)
	err := ls.Handle(context.Background(), &amqp.InstanceEvent{Type: "instance.archived", InstanceID: "x"})
	assert.NoError(t, err)
}

func TestLedgerSync_NotInitialized(t *testing.T) {
	err := NewLedgerSync(nil, nil, nil).Handle(context.Background(), &amqp.InstanceEvent{Type: amqp.InstanceCreated, InstanceID: "x"})
	assert.Error(t, err)
}

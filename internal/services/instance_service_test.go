package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"billtracker/internal/amqp"
	"billtracker/internal/cache"
	"billtracker/internal/core"
)

func TestInstanceService_CreateNormalizesPeriod(t *testing.T) {
	s := newStore(t)
	pub := &recordingPublisher{}
	svc := NewInstanceService(s, pub, nil)
	_, bills := seed(t, s, "alice", "Electricity")

	got, err := svc.Create(as("alice"), bills[0].ID, core.BillInstance{
		Period:  "December 2024",
		Amount:  core.Money{Cents: 5000},
		DueDate: "2025-01-05",
	})
	require.NoError(t, err)
	assert.Equal(t, "2024-12", got.Period)
	assert.Equal(t, "alice", got.UserID)
	assert.NotEmpty(t, got.ID)
	assert.Equal(t, []amqp.EventType{amqp.InstanceCreated}, pub.types())

	_, err = svc.Create(as("alice"), bills[0].ID, core.BillInstance{
		Period:  "2024-12",
		Amount:  core.Money{Cents: 100},
		DueDate: "2025-01-05",
	})
	assert.ErrorIs(t, err, core.ErrConflict)
}

func TestInstanceService_CreateValidates(t *testing.T) {
	s := newStore(t)
	svc := NewInstanceService(s, nil, nil)
	_, bills := seed(t, s, "alice", "Electricity")

	tests := []struct {
		name  string
		in    core.BillInstance
		field string
	}{
		{"bad period", core.BillInstance{Period: "Q4", Amount: core.Money{Cents: 1}, DueDate: "2025-01-01"}, "period"},
		{"zero amount", core.BillInstance{Period: "2024-12", DueDate: "2025-01-01"}, "amount"},
		{"bad due date", core.BillInstance{Period: "2024-12", Amount: core.Money{Cents: 1}, DueDate: "01/01/2025"}, "dueDate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(as("alice"), bills[0].ID, tt.in)
			var verr *core.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}

	_, err := svc.Create(as("bob"), bills[0].ID, core.BillInstance{Period: "2024-12", Amount: core.Money{Cents: 1}, DueDate: "2025-01-01"})
	assert.ErrorIs(t, err, core.ErrForbidden)
}

func TestInstanceService_UpdateToggleDelete(t *testing.T) {
	s := newStore(t)
	pub := &recordingPublisher{}
	svc := NewInstanceService(s, pub, nil)
	_, bills := seed(t, s, "alice", "Electricity")
	nov := addInstance(t, s, bills[0], "2024-11", 5000)
	dec := addInstance(t, s, bills[0], "2024-12", 5000)

	amount := core.Money{Cents: 6150}
	desc := "estimated"
	got, err := svc.Update(as("alice"), dec.ID, core.InstancePatch{Amount: &amount, Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, int64(6150), got.Amount.Cents)
	assert.Equal(t, "estimated", got.Description)
	assert.Equal(t, "2024-12", got.Period)

	period := "December 2024"
	_, err = svc.Update(as("alice"), nov.ID, core.InstancePatch{Period: &period})
	assert.ErrorIs(t, err, core.ErrConflict)

	_, err = svc.Update(as("bob"), dec.ID, core.InstancePatch{Amount: &amount})
	assert.ErrorIs(t, err, core.ErrForbidden)

	toggled, err := svc.TogglePaid(as("alice"), dec.ID)
	require.NoError(t, err)
	assert.True(t, toggled.IsPaid)
	toggled, err = svc.TogglePaid(as("alice"), dec.ID)
	require.NoError(t, err)
	assert.False(t, toggled.IsPaid)

	require.NoError(t, svc.Delete(as("alice"), nov.ID))
	_, err = s.GetInstance(context.Background(), nov.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)

	assert.Equal(t, []amqp.EventType{
		amqp.InstanceUpdated, amqp.InstanceUpdated, amqp.InstanceUpdated, amqp.InstanceDeleted,
	}, pub.types())
}

func TestInstanceService_Listing(t *testing.T) {
	s := newStore(t)
	svc := NewInstanceService(s, nil, nil)
	p, bills := seed(t, s, "alice", "Electricity", "Water")
	addInstance(t, s, bills[0], "2024-11", 5000)
	addInstance(t, s, bills[0], "2024-12", 5000)
	addInstance(t, s, bills[1], "2024-12", 1200)
	_, bobBills := seed(t, s, "bob", "Gas")
	addInstance(t, s, bobBills[0], "2024-12", 7000)

	all, err := svc.ListForOwner(as("alice"), "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	dec, err := svc.ListForOwner(as("alice"), "December 2024")
	require.NoError(t, err)
	require.Len(t, dec, 2)
	for _, v := range dec {
		assert.Equal(t, "2024-12", v.Period)
		assert.Equal(t, p.ID, v.ProfileID)
		assert.Equal(t, "Home", v.ProfileName)
	}

	_, err = svc.ListForOwner(as("alice"), "next month")
	var verr *core.ValidationError
	assert.ErrorAs(t, err, &verr)

	byProfile, err := svc.ListForProfile(as("alice"), p.ID)
	require.NoError(t, err)
	assert.Len(t, byProfile, 3)
	_, err = svc.ListForProfile(as("bob"), p.ID)
	assert.ErrorIs(t, err, core.ErrForbidden)

	byBill, err := svc.ListForBill(as("alice"), bills[0].ID)
	require.NoError(t, err)
	require.Len(t, byBill, 2)
	assert.Equal(t, "2024-12", byBill[0].Period)
}

func TestInstanceService_PublishFailureDoesNotFailWrite(t *testing.T) {
	s := newStore(t)
	pub := &recordingPublisher{err: assert.AnError}
	svc := NewInstanceService(s, pub, nil)
	_, bills := seed(t, s, "alice", "Electricity")

	_, err := svc.Create(as("alice"), bills[0].ID, core.BillInstance{Period: "2024-12", Amount: core.Money{Cents: 1}, DueDate: "2025-01-01"})
	require.NoError(t, err)
	assert.Len(t, pub.types(), 1)
}

func TestInstanceService_CachedListingsInvalidatedOnWrite(t *testing.T) {
	s := newStore(t)
	views := cache.NewOwnerScoped[[]core.InstanceView](16, time.Hour)
	svc := NewInstanceService(s, nil, nil)
	svc.SetViewCache(views)
	bills := NewBillService(s, nil, nil)
	bills.SetViewCache(views)

	_, seeded := seed(t, s, "alice", "Electricity")
	inst := addInstance(t, s, seeded[0], "2024-12", 5000)

	first, err := svc.ListForOwner(as("alice"), "2024-12")
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, 1, views.Size())

	// A write that bypasses the services is not seen until invalidation.
	require.NoError(t, s.DeleteInstance(context.Background(), inst.ID))
	cached, err := svc.ListForOwner(as("alice"), "2024-12")
	require.NoError(t, err)
	assert.Len(t, cached, 1)

	name := "Power"
	_, err = bills.Update(as("alice"), seeded[0].ID, core.BillPatch{Name: &name})
	require.NoError(t, err)
	assert.Zero(t, views.Size())

	fresh, err := svc.ListForOwner(as("alice"), "2024-12")
	require.NoError(t, err)
	assert.Empty(t, fresh)
}

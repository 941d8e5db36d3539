package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"billtracker/internal/amqp"
	"billtracker/internal/core"
	"billtracker/internal/secrets"
)

func newSealer(t *testing.T) *secrets.Sealer {
	t.Helper()
	s, err := secrets.NewSealer(make([]byte, 32))
	require.NoError(t, err)
	return s
}

func TestBillService_CreateRequiresOwnedProfile(t *testing.T) {
	s := newStore(t)
	svc := NewBillService(s, nil, nil)
	p, _ := seed(t, s, "alice")

	_, err := svc.Create(as("bob"), p.ID, core.Bill{Name: "Electricity"})
	assert.ErrorIs(t, err, core.ErrForbidden)

	_, err = svc.Create(as("alice"), "missing", core.Bill{Name: "Electricity"})
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = svc.Create(context.Background(), p.ID, core.Bill{Name: "Electricity"})
	assert.ErrorIs(t, err, core.ErrUnauthenticated)

	b, err := svc.Create(as("alice"), p.ID, core.Bill{Name: "Electricity", DueDay: 15})
	require.NoError(t, err)
	assert.Equal(t, p.ID, b.ProfileID)
	assert.Equal(t, "alice", b.UserID)
	assert.Equal(t, 15, b.DueDay)
}

func TestBillService_CredentialsSealedAndRedacted(t *testing.T) {
	s := newStore(t)
	svc := NewBillService(s, newSealer(t), nil)
	p, _ := seed(t, s, "alice")

	b, err := svc.Create(as("alice"), p.ID, core.Bill{
		Name:  "Electricity",
		EBill: &core.EBill{Link: "https://power.example.com", Username: "alice@example.com", Password: "hunter2"},
	})
	require.NoError(t, err)
	require.NotNil(t, b.EBill)
	assert.Equal(t, "https://power.example.com", b.EBill.Link)
	assert.Empty(t, b.EBill.Username)
	assert.Empty(t, b.EBill.Password)

	stored, err := s.GetBill(context.Background(), b.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "hunter2", stored.EBill.Password)
	assert.Contains(t, stored.EBill.Password, "v1:")

	got, err := svc.Get(as("alice"), b.ID)
	require.NoError(t, err)
	assert.Empty(t, got.EBill.Password)

	revealed, err := svc.Reveal(as("alice"), b.ID)
	require.NoError(t, err)
	assert.Equal(t, core.EBill{Link: "https://power.example.com", Username: "alice@example.com", Password: "hunter2"}, revealed)

	_, err = svc.Reveal(as("bob"), b.ID)
	assert.ErrorIs(t, err, core.ErrForbidden)
}

func TestBillService_CredentialsWithoutSealer(t *testing.T) {
	s := newStore(t)
	svc := NewBillService(s, nil, nil)
	p, _ := seed(t, s, "alice")

	_, err := svc.Create(as("alice"), p.ID, core.Bill{Name: "Electricity", EBill: &core.EBill{Password: "x"}})
	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "eBill", verr.Field)

	b, err := svc.Create(as("alice"), p.ID, core.Bill{Name: "Water", EBill: &core.EBill{Link: "https://water.example.com"}})
	require.NoError(t, err)
	assert.Equal(t, "https://water.example.com", b.EBill.Link)
}

func TestBillService_UpdateAndRemoveEBill(t *testing.T) {
	s := newStore(t)
	svc := NewBillService(s, newSealer(t), nil)
	p, _ := seed(t, s, "alice")
	b, err := svc.Create(as("alice"), p.ID, core.Bill{Name: "Electricity", EBill: &core.EBill{Link: "https://a.example.com"}})
	require.NoError(t, err)

	day := 40
	_, err = svc.Update(as("alice"), b.ID, core.BillPatch{DueDay: &day})
	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)

	name := "Power"
	day = 10
	got, err := svc.Update(as("alice"), b.ID, core.BillPatch{Name: &name, DueDay: &day})
	require.NoError(t, err)
	assert.Equal(t, "Power", got.Name)
	assert.Equal(t, 10, got.DueDay)
	require.NotNil(t, got.EBill)

	got, err = svc.Update(as("alice"), b.ID, core.BillPatch{RemoveEBill: true})
	require.NoError(t, err)
	assert.Nil(t, got.EBill)

	_, err = svc.Update(as("bob"), b.ID, core.BillPatch{Name: &name})
	assert.ErrorIs(t, err, core.ErrForbidden)
}

func TestBillService_ListAndDelete(t *testing.T) {
	s := newStore(t)
	pub := &recordingPublisher{}
	svc := NewBillService(s, nil, pub)
	p, bills := seed(t, s, "alice", "Electricity", "Water")
	nov := addInstance(t, s, bills[0], "2024-11", 5000)
	dec := addInstance(t, s, bills[0], "2024-12", 5000)

	list, err := svc.ListForProfile(as("alice"), p.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	counts := map[string]int{}
	for _, b := range list {
		counts[b.Name] = b.InstanceCount
	}
	assert.Equal(t, map[string]int{"Electricity": 2, "Water": 0}, counts)

	_, err = svc.ListForProfile(as("bob"), p.ID)
	assert.ErrorIs(t, err, core.ErrForbidden)

	assert.ErrorIs(t, svc.Delete(as("bob"), bills[0].ID), core.ErrForbidden)
	require.NoError(t, svc.Delete(as("alice"), bills[0].ID))
	assert.Equal(t, []amqp.EventType{amqp.InstanceDeleted, amqp.InstanceDeleted}, pub.types())
	assert.ElementsMatch(t, []string{nov.ID, dec.ID}, pub.instanceIDs())

	left, err := s.ListInstancesByBill(context.Background(), bills[0].ID)
	require.NoError(t, err)
	assert.Empty(t, left)
	_, err = svc.Get(as("alice"), bills[0].ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

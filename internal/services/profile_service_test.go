package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"billtracker/internal/amqp"
	"billtracker/internal/core"
)

func TestProfileService_RequiresCaller(t *testing.T) {
	svc := NewProfileService(newStore(t), nil)
	_, err := svc.Create(context.Background(), core.Profile{Name: "Home", Address: home})
	assert.ErrorIs(t, err, core.ErrUnauthenticated)
	_, err = svc.List(context.Background())
	assert.ErrorIs(t, err, core.ErrUnauthenticated)
}

func TestProfileService_CreateAndList(t *testing.T) {
	svc := NewProfileService(newStore(t), nil)

	p, err := svc.Create(as("alice"), core.Profile{Name: "  Lake House ", Address: home, UserID: "mallory"})
	require.NoError(t, err)
	assert.Equal(t, "Lake House", p.Name)
	assert.Equal(t, "alice", p.UserID)
	assert.Equal(t, core.DefaultProfileColor, p.Color)

	_, err = svc.Create(as("bob"), core.Profile{Name: "Flat", Address: home})
	require.NoError(t, err)

	list, err := svc.List(as("alice"))
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, p.ID, list[0].ID)
}

func TestProfileService_Validation(t *testing.T) {
	svc := NewProfileService(newStore(t), nil)

	_, err := svc.Create(as("alice"), core.Profile{Name: "", Address: home})
	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "name", verr.Field)

	_, err = svc.Create(as("alice"), core.Profile{Name: "Home", Address: core.Address{City: "x", Country: "y"}})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "address.street", verr.Field)
}

func TestProfileService_OwnerChecks(t *testing.T) {
	svc := NewProfileService(newStore(t), nil)
	p, err := svc.Create(as("alice"), core.Profile{Name: "Home", Address: home})
	require.NoError(t, err)

	_, err = svc.Get(as("bob"), p.ID)
	assert.ErrorIs(t, err, core.ErrForbidden)
	_, err = svc.UpdateColor(as("bob"), p.ID, "#000000")
	assert.ErrorIs(t, err, core.ErrForbidden)
	assert.ErrorIs(t, svc.Delete(as("bob"), p.ID), core.ErrForbidden)

	_, err = svc.Get(as("alice"), "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)

	got, err := svc.Get(as("alice"), p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Home", got.Name)
}

func TestProfileService_Update(t *testing.T) {
	svc := NewProfileService(newStore(t), nil)
	p, err := svc.Create(as("alice"), core.Profile{Name: "Home", Address: home})
	require.NoError(t, err)

	name := " Cabin "
	got, err := svc.Update(as("alice"), p.ID, core.ProfilePatch{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Cabin", got.Name)
	assert.Equal(t, home, got.Address)

	got, err = svc.UpdateColor(as("alice"), p.ID, "#ff0000")
	require.NoError(t, err)
	assert.Equal(t, "#ff0000", got.Color)

	_, err = svc.UpdateColor(as("alice"), p.ID, "red")
	var verr *core.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestProfileService_DeleteCascades(t *testing.T) {
	s := newStore(t)
	pub := &recordingPublisher{}
	svc := NewProfileService(s, pub)

	p, bills := seed(t, s, "alice", "Electricity", "Water")
	a := addInstance(t, s, bills[0], "2024-11", 5000)
	b := addInstance(t, s, bills[0], "2024-12", 5000)
	c := addInstance(t, s, bills[1], "2024-12", 1200)

	require.NoError(t, svc.Delete(as("alice"), p.ID))

	ctx := context.Background()
	_, err := s.GetProfile(ctx, p.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
	for _, b := range bills {
		_, err := s.GetBill(ctx, b.ID)
		assert.ErrorIs(t, err, core.ErrNotFound)
		left, err := s.ListInstancesByBill(ctx, b.ID)
		require.NoError(t, err)
		assert.Empty(t, left)
	}
	assert.Equal(t, []amqp.EventType{amqp.InstanceDeleted, amqp.InstanceDeleted, amqp.InstanceDeleted}, pub.types())
	assert.ElementsMatch(t, []string{a.ID, b.ID, c.ID}, pub.instanceIDs())
}

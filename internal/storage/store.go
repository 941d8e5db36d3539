package storage

import (
	"context"

	"billtracker/internal/core"
)

// Store is the persistence contract for profiles, bills and instances.
// Reads return core.ErrNotFound when a row is missing. Owner checks live
// in the services; the store only filters by owner where a method says so.
type Store interface {
	CreateProfile(ctx context.Context, p *core.Profile) error
	GetProfile(ctx context.Context, id string) (core.Profile, error)
	ListProfilesByUser(ctx context.Context, userID string) ([]core.Profile, error)
	UpdateProfile(ctx context.Context, id string, patch core.ProfilePatch) error
	// DeleteProfile and DeleteBill cascade in one transaction and return
	// the instances they removed.
	DeleteProfile(ctx context.Context, id string) ([]core.BillInstance, error)

	CreateBill(ctx context.Context, b *core.Bill) error
	GetBill(ctx context.Context, id string) (core.Bill, error)
	ListBillsByProfile(ctx context.Context, profileID string) ([]core.Bill, error)
	ListAllBills(ctx context.Context) ([]core.Bill, error)
	UpdateBill(ctx context.Context, id string, patch core.BillPatch) error
	DeleteBill(ctx context.Context, id string) ([]core.BillInstance, error)

	// InsertInstanceIfAbsent inserts i unless an instance already exists for
	// (i.BillID, i.Period). It reports whether a row was written.
	InsertInstanceIfAbsent(ctx context.Context, i *core.BillInstance) (bool, error)
	GetInstance(ctx context.Context, id string) (core.BillInstance, error)
	ListInstancesByBill(ctx context.Context, billID string) ([]core.BillInstance, error)
	UpdateInstance(ctx context.Context, id string, patch core.InstancePatch) error
	DeleteInstance(ctx context.Context, id string) error

	GetInstanceView(ctx context.Context, id string) (core.InstanceView, error)
	ListInstanceViewsByUser(ctx context.Context, userID, period string) ([]core.InstanceView, error)
	ListInstanceViewsByProfile(ctx context.Context, profileID string) ([]core.InstanceView, error)

	Ping(ctx context.Context) error
	Close() error
}

package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"billtracker/internal/amqp"
	"billtracker/internal/core"
	"billtracker/internal/metrics"
	"billtracker/internal/storage"
)

// InstanceService manages bill instances entered by the caller.
type InstanceService struct {
	store  storage.Store
	notify notifier
}

func NewInstanceService(store storage.Store, events EventPublisher, m *metrics.Metrics) *InstanceService {
	return &InstanceService{store: store, notify: notifier{pub: events, metrics: m}}
}

// SetViewCache makes writes drop the owner's cached instance listings.
func (s *InstanceService) SetViewCache(c ViewCache) {
	s.notify.views = c
}

// Create records an instance for billID. The period is normalized to
// YYYY-MM; a second instance for the same period is a conflict.
func (s *InstanceService) Create(ctx context.Context, billID string, in core.BillInstance) (core.BillInstance, error) {
	caller, err := callerID(ctx)
	if err != nil {
		return core.BillInstance{}, err
	}

	bill, err := s.store.GetBill(ctx, billID)
	if err != nil {
		return core.BillInstance{}, err
	}
	if err := checkOwner(caller, bill.UserID); err != nil {
		return core.BillInstance{}, err
	}

	if err := in.Validate(); err != nil {
		return core.BillInstance{}, err
	}
	in.Period, _ = core.NormalizePeriod(in.Period)
	in.DueDate = strings.TrimSpace(in.DueDate)
	in.ID = ""
	in.BillID = bill.ID
	in.UserID = caller

	created, err := s.store.InsertInstanceIfAbsent(ctx, &in)
	if err != nil {
		return core.BillInstance{}, fmt.Errorf("create bill instance: %w", err)
	}
	if !created {
		return core.BillInstance{}, fmt.Errorf("%s %s: %w", bill.Name, in.Period, core.ErrConflict)
	}

	s.notify.instance(ctx, amqp.InstanceCreated, in)
	slog.InfoContext(ctx, "Bill instance created",
		"instance_id", in.ID,
		"bill_id", bill.ID,
		"period", in.Period,
		"amount_cents", in.Amount.Cents)
	return in, nil
}

// ListForBill returns the bill's instances, newest period first.
func (s *InstanceService) ListForBill(ctx context.Context, billID string) ([]core.BillInstance, error) {
	caller, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	bill, err := s.store.GetBill(ctx, billID)
	if err != nil {
		return nil, err
	}
	if err := checkOwner(caller, bill.UserID); err != nil {
		return nil, err
	}
	return s.store.ListInstancesByBill(ctx, billID)
}

// ListForOwner returns the caller's instances joined with bill and
// profile names. month, when set, restricts the result to one period.
func (s *InstanceService) ListForOwner(ctx context.Context, month string) ([]core.InstanceView, error) {
	caller, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	if month != "" {
		if month, err = core.NormalizePeriod(month); err != nil {
			return nil, &core.ValidationError{Field: "month", Message: "must be YYYY-MM or \"Month YYYY\""}
		}
	}
	return s.cached(caller, "month:"+month, func() ([]core.InstanceView, error) {
		return s.store.ListInstanceViewsByUser(ctx, caller, month)
	})
}

func (s *InstanceService) cached(owner, query string, load func() ([]core.InstanceView, error)) ([]core.InstanceView, error) {
	c := s.notify.views
	if c != nil {
		if views, ok := c.Get(owner, query); ok {
			return views, nil
		}
	}
	views, err := load()
	if err != nil {
		return nil, err
	}
	if c != nil {
		c.Set(owner, query, views)
	}
	return views, nil
}

// ListForProfile returns the profile's instances joined with bill names.
func (s *InstanceService) ListForProfile(ctx context.Context, profileID string) ([]core.InstanceView, error) {
	caller, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	profile, err := s.store.GetProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}
	if err := checkOwner(caller, profile.UserID); err != nil {
		return nil, err
	}
	return s.cached(caller, "profile:"+profileID, func() ([]core.InstanceView, error) {
		return s.store.ListInstanceViewsByProfile(ctx, profileID)
	})
}

// Update applies the non-nil fields of patch.
func (s *InstanceService) Update(ctx context.Context, id string, patch core.InstancePatch) (core.BillInstance, error) {
	caller, err := callerID(ctx)
	if err != nil {
		return core.BillInstance{}, err
	}
	if _, err := s.owned(ctx, caller, id); err != nil {
		return core.BillInstance{}, err
	}

	if err := normalizePatch(&patch); err != nil {
		return core.BillInstance{}, err
	}

	if err := s.store.UpdateInstance(ctx, id, patch); err != nil {
		if errors.Is(err, core.ErrConflict) {
			return core.BillInstance{}, err
		}
		return core.BillInstance{}, fmt.Errorf("update bill instance: %w", err)
	}

	updated, err := s.store.GetInstance(ctx, id)
	if err != nil {
		return core.BillInstance{}, err
	}
	s.notify.instance(ctx, amqp.InstanceUpdated, updated)
	return updated, nil
}

func normalizePatch(patch *core.InstancePatch) error {
	if patch.Period != nil {
		p, err := core.NormalizePeriod(*patch.Period)
		if err != nil {
			return &core.ValidationError{Field: "period", Message: "must be YYYY-MM or \"Month YYYY\""}
		}
		patch.Period = &p
	}
	if patch.Amount != nil {
		if err := core.ValidateUserAmount(*patch.Amount); err != nil {
			return err
		}
	}
	if patch.DueDate != nil {
		d := strings.TrimSpace(*patch.DueDate)
		if _, err := core.ParseDueDate(d); err != nil {
			return err
		}
		patch.DueDate = &d
	}
	if patch.Description != nil && len(*patch.Description) > 500 {
		return &core.ValidationError{Field: "description", Message: "too long (max 500 characters)"}
	}
	return nil
}

// TogglePaid flips the paid flag and returns the updated instance.
func (s *InstanceService) TogglePaid(ctx context.Context, id string) (core.BillInstance, error) {
	caller, err := callerID(ctx)
	if err != nil {
		return core.BillInstance{}, err
	}
	inst, err := s.owned(ctx, caller, id)
	if err != nil {
		return core.BillInstance{}, err
	}

	paid := !inst.IsPaid
	if err := s.store.UpdateInstance(ctx, id, core.InstancePatch{IsPaid: &paid}); err != nil {
		return core.BillInstance{}, fmt.Errorf("toggle paid: %w", err)
	}
	inst.IsPaid = paid

	s.notify.instance(ctx, amqp.InstanceUpdated, inst)
	return inst, nil
}

func (s *InstanceService) Delete(ctx context.Context, id string) error {
	caller, err := callerID(ctx)
	if err != nil {
		return err
	}
	inst, err := s.owned(ctx, caller, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteInstance(ctx, id); err != nil {
		return fmt.Errorf("delete bill instance: %w", err)
	}
	s.notify.instance(ctx, amqp.InstanceDeleted, inst)
	return nil
}

func (s *InstanceService) owned(ctx context.Context, caller, id string) (core.BillInstance, error) {
	inst, err := s.store.GetInstance(ctx, id)
	if err != nil {
		return core.BillInstance{}, err
	}
	if err := checkOwner(caller, inst.UserID); err != nil {
		return core.BillInstance{}, err
	}
	return inst, nil
}

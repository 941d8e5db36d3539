package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"billtracker/internal/amqp"
	"billtracker/internal/core"
	"billtracker/internal/storage"
)

// CredentialSealer encrypts e-bill usernames and passwords at rest.
type CredentialSealer interface {
	Seal(plaintext string) (string, error)
	Open(sealed string) (string, error)
}

// BillService manages bills under the caller's profiles. Reads never
// return e-bill credentials; Reveal decrypts them on request.
type BillService struct {
	store  storage.Store
	sealer CredentialSealer
	notify notifier
}

func NewBillService(store storage.Store, sealer CredentialSealer, events EventPublisher) *BillService {
	return &BillService{store: store, sealer: sealer, notify: notifier{pub: events}}
}

// SetViewCache makes writes drop the owner's cached instance listings.
func (s *BillService) SetViewCache(c ViewCache) {
	s.notify.views = c
}

// Create adds a bill to profileID, which must belong to the caller.
func (s *BillService) Create(ctx context.Context, profileID string, b core.Bill) (core.Bill, error) {
	caller, err := callerID(ctx)
	if err != nil {
		return core.Bill{}, err
	}

	profile, err := s.store.GetProfile(ctx, profileID)
	if err != nil {
		return core.Bill{}, err
	}
	if err := checkOwner(caller, profile.UserID); err != nil {
		return core.Bill{}, err
	}

	b.Name = strings.TrimSpace(b.Name)
	if err := b.Validate(); err != nil {
		return core.Bill{}, err
	}
	if b.EBill, err = s.seal(b.EBill); err != nil {
		return core.Bill{}, err
	}

	b.ID = ""
	b.ProfileID = profile.ID
	b.UserID = caller
	b.InstanceCount = 0
	if err := s.store.CreateBill(ctx, &b); err != nil {
		return core.Bill{}, fmt.Errorf("create bill: %w", err)
	}

	slog.InfoContext(ctx, "Bill created", "bill_id", b.ID, "profile_id", profile.ID, "user_id", caller)
	return redact(b), nil
}

// ListForProfile returns the profile's bills with instance counts.
func (s *BillService) ListForProfile(ctx context.Context, profileID string) ([]core.Bill, error) {
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

	bills, err := s.store.ListBillsByProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}
	for i := range bills {
		bills[i] = redact(bills[i])
	}
	return bills, nil
}

func (s *BillService) Get(ctx context.Context, id string) (core.Bill, error) {
	caller, err := callerID(ctx)
	if err != nil {
		return core.Bill{}, err
	}
	b, err := s.owned(ctx, caller, id)
	if err != nil {
		return core.Bill{}, err
	}
	return redact(b), nil
}

// Reveal returns the bill's e-bill with decrypted credentials.
func (s *BillService) Reveal(ctx context.Context, id string) (core.EBill, error) {
	caller, err := callerID(ctx)
	if err != nil {
		return core.EBill{}, err
	}
	b, err := s.owned(ctx, caller, id)
	if err != nil {
		return core.EBill{}, err
	}
	if b.EBill == nil {
		return core.EBill{}, fmt.Errorf("e-bill: %w", core.ErrNotFound)
	}

	out := core.EBill{Link: b.EBill.Link}
	if b.EBill.Username == "" && b.EBill.Password == "" {
		return out, nil
	}
	if s.sealer == nil {
		return core.EBill{}, &core.ValidationError{Field: "eBill", Message: "credential storage is not configured"}
	}
	if out.Username, err = s.sealer.Open(b.EBill.Username); err != nil {
		return core.EBill{}, fmt.Errorf("open e-bill username: %w", err)
	}
	if out.Password, err = s.sealer.Open(b.EBill.Password); err != nil {
		return core.EBill{}, fmt.Errorf("open e-bill password: %w", err)
	}
	return out, nil
}

func (s *BillService) Update(ctx context.Context, id string, patch core.BillPatch) (core.Bill, error) {
	caller, err := callerID(ctx)
	if err != nil {
		return core.Bill{}, err
	}
	if _, err := s.owned(ctx, caller, id); err != nil {
		return core.Bill{}, err
	}

	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if err := core.ValidateName("name", name); err != nil {
			return core.Bill{}, err
		}
		patch.Name = &name
	}
	if patch.DueDay != nil {
		if err := core.ValidateDueDay(*patch.DueDay); err != nil {
			return core.Bill{}, err
		}
	}
	if patch.EBill != nil && !patch.RemoveEBill {
		if err := patch.EBill.Validate(); err != nil {
			return core.Bill{}, err
		}
		if patch.EBill, err = s.seal(patch.EBill); err != nil {
			return core.Bill{}, err
		}
	}

	if err := s.store.UpdateBill(ctx, id, patch); err != nil {
		return core.Bill{}, fmt.Errorf("update bill: %w", err)
	}
	s.notify.invalidate(caller)
	b, err := s.store.GetBill(ctx, id)
	if err != nil {
		return core.Bill{}, err
	}
	return redact(b), nil
}

// Delete removes the bill and its instances.
func (s *BillService) Delete(ctx context.Context, id string) error {
	caller, err := callerID(ctx)
	if err != nil {
		return err
	}
	if _, err := s.owned(ctx, caller, id); err != nil {
		return err
	}

	removed, err := s.store.DeleteBill(ctx, id)
	if err != nil {
		return fmt.Errorf("delete bill: %w", err)
	}
	s.notify.invalidate(caller)

	for _, inst := range removed {
		s.notify.instance(ctx, amqp.InstanceDeleted, inst)
	}
	slog.InfoContext(ctx, "Bill deleted", "bill_id", id, "user_id", caller, "instances_removed", len(removed))
	return nil
}

func (s *BillService) owned(ctx context.Context, caller, id string) (core.Bill, error) {
	b, err := s.store.GetBill(ctx, id)
	if err != nil {
		return core.Bill{}, err
	}
	if err := checkOwner(caller, b.UserID); err != nil {
		return core.Bill{}, err
	}
	return b, nil
}

func (s *BillService) seal(e *core.EBill) (*core.EBill, error) {
	if e == nil {
		return nil, nil
	}
	out := &core.EBill{Link: strings.TrimSpace(e.Link)}
	if e.Username == "" && e.Password == "" {
		return out, nil
	}
	if s.sealer == nil {
		return nil, &core.ValidationError{Field: "eBill", Message: "credential storage is not configured"}
	}

	var err error
	if out.Username, err = s.sealer.Seal(e.Username); err != nil {
		return nil, fmt.Errorf("seal e-bill username: %w", err)
	}
	if out.Password, err = s.sealer.Seal(e.Password); err != nil {
		return nil, fmt.Errorf("seal e-bill password: %w", err)
	}
	return out, nil
}

// redact strips sealed credentials from a bill returned to callers.
func redact(b core.Bill) core.Bill {
	if b.EBill != nil {
		b.EBill = &core.EBill{Link: b.EBill.Link}
	}
	return b
}

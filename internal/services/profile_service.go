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

// ProfileService manages the caller's profiles.
type ProfileService struct {
	store  storage.Store
	notify notifier
}

func NewProfileService(store storage.Store, events EventPublisher) *ProfileService {
	return &ProfileService{store: store, notify: notifier{pub: events}}
}

// SetViewCache makes writes drop the owner's cached instance listings.
func (s *ProfileService) SetViewCache(c ViewCache) {
	s.notify.views = c
}

func (s *ProfileService) Create(ctx context.Context, p core.Profile) (core.Profile, error) {
	caller, err := callerID(ctx)
	if err != nil {
		return core.Profile{}, err
	}

	p.Name = strings.TrimSpace(p.Name)
	if err := p.Validate(); err != nil {
		return core.Profile{}, err
	}

	p.ID = ""
	p.UserID = caller
	p.BillCount = 0
	if err := s.store.CreateProfile(ctx, &p); err != nil {
		return core.Profile{}, fmt.Errorf("create profile: %w", err)
	}

	slog.InfoContext(ctx, "Profile created", "profile_id", p.ID, "user_id", caller)
	return p, nil
}

// List returns the caller's profiles with their bill counts.
func (s *ProfileService) List(ctx context.Context) ([]core.Profile, error) {
	caller, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	return s.store.ListProfilesByUser(ctx, caller)
}

func (s *ProfileService) Get(ctx context.Context, id string) (core.Profile, error) {
	caller, err := callerID(ctx)
	if err != nil {
		return core.Profile{}, err
	}
	return s.owned(ctx, caller, id)
}

func (s *ProfileService) owned(ctx context.Context, caller, id string) (core.Profile, error) {
	p, err := s.store.GetProfile(ctx, id)
	if err != nil {
		return core.Profile{}, err
	}
	if err := checkOwner(caller, p.UserID); err != nil {
		return core.Profile{}, err
	}
	return p, nil
}

// Update applies the non-nil fields of patch.
func (s *ProfileService) Update(ctx context.Context, id string, patch core.ProfilePatch) (core.Profile, error) {
	caller, err := callerID(ctx)
	if err != nil {
		return core.Profile{}, err
	}
	if _, err := s.owned(ctx, caller, id); err != nil {
		return core.Profile{}, err
	}

	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if err := core.ValidateName("name", name); err != nil {
			return core.Profile{}, err
		}
		patch.Name = &name
	}
	if patch.Address != nil {
		if err := patch.Address.Validate(); err != nil {
			return core.Profile{}, err
		}
	}
	if patch.Color != nil {
		if err := core.ValidateColor(*patch.Color); err != nil {
			return core.Profile{}, err
		}
	}

	if err := s.store.UpdateProfile(ctx, id, patch); err != nil {
		return core.Profile{}, fmt.Errorf("update profile: %w", err)
	}
	s.notify.invalidate(caller)
	return s.store.GetProfile(ctx, id)
}

func (s *ProfileService) UpdateColor(ctx context.Context, id, color string) (core.Profile, error) {
	return s.Update(ctx, id, core.ProfilePatch{Color: &color})
}

// Delete removes the profile, its bills and their instances.
func (s *ProfileService) Delete(ctx context.Context, id string) error {
	caller, err := callerID(ctx)
	if err != nil {
		return err
	}
	if _, err := s.owned(ctx, caller, id); err != nil {
		return err
	}

	removed, err := s.store.DeleteProfile(ctx, id)
	if err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	s.notify.invalidate(caller)

	for _, inst := range removed {
		s.notify.instance(ctx, amqp.InstanceDeleted, inst)
	}
	slog.InfoContext(ctx, "Profile deleted",
		"profile_id", id,
		"user_id", caller,
		"instances_removed", len(removed))
	return nil
}

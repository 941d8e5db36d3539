package services

import (
	"context"
	"log/slog"

	"billtracker/internal/amqp"
)

// ViewInvalidator drops an owner's cached listings when another process
// (recurring-worker, billctl or a second API replica) reports a change
// to one of their instances.
type ViewInvalidator struct {
	views ViewCache
}

func NewViewInvalidator(views ViewCache) *ViewInvalidator {
	return &ViewInvalidator{views: views}
}

// Handle never asks for redelivery; a missed invalidation is bounded by
// the cache TTL.
func (v *ViewInvalidator) Handle(ctx context.Context, ev *amqp.InstanceEvent) error {
	if v.views == nil || ev.UserID == "" {
		return nil
	}
	v.views.InvalidateOwner(ev.UserID)
	slog.DebugContext(ctx, "Cached listings invalidated",
		"event_type", ev.Type,
		"user_id", ev.UserID,
		"instance_id", ev.InstanceID)
	return nil
}

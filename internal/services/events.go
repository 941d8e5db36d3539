package services

import (
	"context"
	"log/slog"

	"billtracker/internal/amqp"
	"billtracker/internal/core"
	"billtracker/internal/metrics"
)

// EventPublisher delivers instance change events.
type EventPublisher interface {
	PublishInstanceEvent(ctx context.Context, msg *amqp.InstanceEvent) error
}

// ViewCache holds per-owner instance listings.
type ViewCache interface {
	Get(owner, query string) ([]core.InstanceView, bool)
	Set(owner, query string, views []core.InstanceView)
	InvalidateOwner(owner string)
}

// notifier runs after a successful write: it drops the owner's cached
// listings and publishes best effort. A failed publish is logged and
// counted but never returned.
type notifier struct {
	pub     EventPublisher
	metrics *metrics.Metrics
	views   ViewCache
}

func (n notifier) invalidate(owner string) {
	if n.views != nil {
		n.views.InvalidateOwner(owner)
	}
}

func (n notifier) instance(ctx context.Context, t amqp.EventType, i core.BillInstance) {
	n.invalidate(i.UserID)
	if n.pub == nil {
		return
	}
	err := n.pub.PublishInstanceEvent(ctx, amqp.NewInstanceEvent(t, i.ID, i.BillID, i.UserID, i.Period))
	if n.metrics != nil {
		n.metrics.EventsPublished.WithLabelValues(string(t), metrics.Result(err)).Inc()
	}
	if err != nil {
		slog.ErrorContext(ctx, "Failed to publish instance event",
			"event_type", t,
			"instance_id", i.ID,
			"error", err)
	}
}

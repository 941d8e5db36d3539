package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"billtracker/internal/amqp"
	"billtracker/internal/core"
	"billtracker/internal/metrics"
	"billtracker/internal/sheets"
)

// ViewSource loads the denormalized instance rows the ledger exports.
type ViewSource interface {
	GetInstanceView(ctx context.Context, id string) (core.InstanceView, error)
}

// LedgerSync applies instance events to the external ledger. Events only
// carry ids: the current row is reloaded from storage, so replays and
// out-of-order deliveries converge on the stored state.
type LedgerSync struct {
	views   ViewSource
	ledger  sheets.LedgerWriter
	metrics *metrics.Metrics
}

func NewLedgerSync(views ViewSource, ledger sheets.LedgerWriter, m *metrics.Metrics) *LedgerSync {
	return &LedgerSync{views: views, ledger: ledger, metrics: m}
}

// Handle processes one event. A returned error asks the consumer to
// redeliver.
func (s *LedgerSync) Handle(ctx context.Context, ev *amqp.InstanceEvent) error {
	if s.views == nil || s.ledger == nil {
		return fmt.Errorf("ledger sync not properly initialized")
	}

	var err error
	switch ev.Type {
	case amqp.InstanceCreated, amqp.InstanceUpdated:
		err = s.upsert(ctx, ev)
	case amqp.InstanceDeleted:
		err = s.ledger.Delete(ctx, ev.InstanceID)
	default:
		slog.WarnContext(ctx, "Ignoring unknown instance event",
			"event_type", ev.Type,
			"instance_id", ev.InstanceID)
		return nil
	}

	if s.metrics != nil {
		s.metrics.LedgerExports.WithLabelValues(string(ev.Type), metrics.Result(err)).Inc()
	}
	if err != nil {
		return fmt.Errorf("%s %s: %w", ev.Type, ev.InstanceID, err)
	}

	slog.InfoContext(ctx, "Ledger row synced",
		"event_type", ev.Type,
		"instance_id", ev.InstanceID)
	return nil
}

func (s *LedgerSync) upsert(ctx context.Context, ev *amqp.InstanceEvent) error {
	v, err := s.views.GetInstanceView(ctx, ev.InstanceID)
	if errors.Is(err, core.ErrNotFound) {
		// Deleted before the event was consumed.
		return s.ledger.Delete(ctx, ev.InstanceID)
	}
	if err != nil {
		return fmt.Errorf("load instance: %w", err)
	}
	return s.ledger.Upsert(ctx, v)
}

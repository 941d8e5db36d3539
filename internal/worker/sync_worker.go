package worker

import (
	"context"
	"fmt"
	"log/slog"

	"billtracker/internal/amqp"
	"billtracker/internal/core"
	"billtracker/internal/sheets"
)

// EventConsumer delivers instance events until ctx is done.
type EventConsumer interface {
	ConsumeInstanceEvents(ctx context.Context, handler func(context.Context, *amqp.InstanceEvent) error) error
}

// EventHandler applies one event to the ledger.
type EventHandler interface {
	Handle(ctx context.Context, ev *amqp.InstanceEvent) error
}

// InstanceSource reads everything the startup export needs.
type InstanceSource interface {
	ListAllBills(ctx context.Context) ([]core.Bill, error)
	ListInstancesByBill(ctx context.Context, billID string) ([]core.BillInstance, error)
	GetInstanceView(ctx context.Context, id string) (core.InstanceView, error)
}

// SyncWorker keeps the ledger in step with bill instances: it consumes
// instance events and can re-export every instance on startup to recover
// from missed messages or worker downtime.
type SyncWorker struct {
	consumer EventConsumer
	handler  EventHandler
	source   InstanceSource
	ledger   sheets.LedgerWriter
}

func NewSyncWorker(consumer EventConsumer, handler EventHandler, source InstanceSource, ledger sheets.LedgerWriter) *SyncWorker {
	return &SyncWorker{
		consumer: consumer,
		handler:  handler,
		source:   source,
		ledger:   ledger,
	}
}

// HandleEvent processes a single instance event from AMQP.
func (w *SyncWorker) HandleEvent(ctx context.Context, ev *amqp.InstanceEvent) error {
	slog.InfoContext(ctx, "Processing instance event",
		"message_id", ev.ID,
		"event_type", ev.Type,
		"instance_id", ev.InstanceID)

	if err := w.handler.Handle(ctx, ev); err != nil {
		slog.ErrorContext(ctx, "Failed to apply instance event",
			"message_id", ev.ID,
			"event_type", ev.Type,
			"instance_id", ev.InstanceID,
			"error", err)
		return err
	}
	return nil
}

// Run consumes events until ctx is cancelled.
func (w *SyncWorker) Run(ctx context.Context) error {
	if w.consumer == nil || w.handler == nil {
		return fmt.Errorf("sync worker not properly initialized")
	}
	slog.InfoContext(ctx, "Sync worker consuming instance events")
	err := w.consumer.ConsumeInstanceEvents(ctx, w.HandleEvent)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// StartupSyncCheck exports every stored instance to the ledger. Failures
// are logged per instance; the count of failed rows is returned.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) (int, error) {
	if w.source == nil || w.ledger == nil {
		return 0, fmt.Errorf("sync worker not properly initialized")
	}

	bills, err := w.source.ListAllBills(ctx)
	if err != nil {
		return 0, fmt.Errorf("list bills for startup sync: %w", err)
	}

	successCount := 0
	errorCount := 0
	for _, bill := range bills {
		instances, err := w.source.ListInstancesByBill(ctx, bill.ID)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to list instances for startup sync",
				"bill_id", bill.ID, "error", err)
			errorCount++
			continue
		}
		for _, inst := range instances {
			if err := ctx.Err(); err != nil {
				return errorCount, err
			}
			v, err := w.source.GetInstanceView(ctx, inst.ID)
			if err == nil {
				err = w.ledger.Upsert(ctx, v)
			}
			if err != nil {
				slog.ErrorContext(ctx, "Failed to export instance on startup",
					"instance_id", inst.ID, "error", err)
				errorCount++
				continue
			}
			successCount++
		}
	}

	slog.InfoContext(ctx, "Startup sync check completed",
		"bills", len(bills),
		"exported", successCount,
		"errors", errorCount)
	return errorCount, nil
}

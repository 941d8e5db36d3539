package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"billtracker/internal/amqp"
	"billtracker/internal/core"
	"billtracker/internal/metrics"
)

// BillSource is the storage the generator needs. It runs with system
// privilege and reads every owner's bills.
type BillSource interface {
	ListAllBills(ctx context.Context) ([]core.Bill, error)
	ListInstancesByBill(ctx context.Context, billID string) ([]core.BillInstance, error)
	InsertInstanceIfAbsent(ctx context.Context, i *core.BillInstance) (bool, error)
}

// GenerationResult summarizes one generator run.
type GenerationResult struct {
	Period  string
	Checked int
	Created int
	Skipped int
	Failed  int
}

// RecurringProcessor creates the monthly bill instances. For each bill it
// ensures one instance exists for the billing period, carrying forward
// the amount of the latest earlier instance.
type RecurringProcessor struct {
	store       BillSource
	notify      notifier
	metrics     *metrics.Metrics
	concurrency int
}

// NewRecurringProcessor creates a processor. Owners are processed through
// at most concurrency goroutines; bills of one owner stay sequential.
func NewRecurringProcessor(store BillSource, events EventPublisher, m *metrics.Metrics, concurrency int) *RecurringProcessor {
	if concurrency < 1 {
		concurrency = 1
	}
	return &RecurringProcessor{
		store:       store,
		notify:      notifier{pub: events, metrics: m},
		metrics:     m,
		concurrency: concurrency,
	}
}

// ProcessMonth runs the generator as of now: the billing period is the
// month before now (UTC) and instances fall due in now's month.
func (p *RecurringProcessor) ProcessMonth(ctx context.Context, now time.Time) (GenerationResult, error) {
	current := core.PeriodOf(now)
	return p.Generate(ctx, current.Prev(), current)
}

// CatchUp is the start-up form of ProcessMonth. Bills created on or after
// the first of now's month did not exist during the billing period and
// are skipped, so a mid-month restart never back-fills them.
func (p *RecurringProcessor) CatchUp(ctx context.Context, now time.Time) (GenerationResult, error) {
	current := core.PeriodOf(now)
	return p.generate(ctx, current.Prev(), current, current.Day(1))
}

// Generate creates instances for period, due in dueMonth on each bill's
// due day (default the 1st, clamped to the month length).
func (p *RecurringProcessor) Generate(ctx context.Context, period, dueMonth core.Period) (GenerationResult, error) {
	return p.generate(ctx, period, dueMonth, time.Time{})
}

// generate skips bills created at or after createdBefore unless it is zero.
func (p *RecurringProcessor) generate(ctx context.Context, period, dueMonth core.Period, createdBefore time.Time) (GenerationResult, error) {
	res := GenerationResult{Period: period.String()}
	if p.store == nil {
		return res, fmt.Errorf("processor not properly initialized")
	}

	bills, err := p.store.ListAllBills(ctx)
	if err != nil {
		p.observeRun(err)
		return res, fmt.Errorf("list bills: %w", err)
	}

	byOwner := make(map[string][]core.Bill)
	for _, b := range bills {
		byOwner[b.UserID] = append(byOwner[b.UserID], b)
	}
	owners := make([]string, 0, len(byOwner))
	for owner := range byOwner {
		owners = append(owners, owner)
	}
	sort.Strings(owners)

	slog.InfoContext(ctx, "Generating monthly bill instances",
		"period", res.Period,
		"due_month", dueMonth.String(),
		"total_bills", len(bills),
		"owners", len(owners))

	var mu sync.Mutex
	record := func(outcome string) {
		mu.Lock()
		defer mu.Unlock()
		res.Checked++
		switch outcome {
		case "created":
			res.Created++
		case "skipped":
			res.Skipped++
		case "failed":
			res.Failed++
		}
		if p.metrics != nil {
			p.metrics.InstancesGenerated.WithLabelValues(outcome).Inc()
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for _, owner := range owners {
		ownerBills := byOwner[owner]
		g.Go(func() error {
			for _, bill := range ownerBills {
				if err := gctx.Err(); err != nil {
					return err
				}
				if !createdBefore.IsZero() && !bill.CreatedAt.Before(createdBefore) {
					slog.DebugContext(gctx, "Bill created after period, skipping",
						"bill_id", bill.ID,
						"period", res.Period,
						"created_at", bill.CreatedAt)
					record("skipped")
					continue
				}
				created, err := p.processBill(gctx, bill, period, dueMonth)
				switch {
				case err != nil:
					slog.ErrorContext(gctx, "Failed to generate bill instance",
						"bill_id", bill.ID,
						"user_id", bill.UserID,
						"period", res.Period,
						"error", err)
					record("failed")
				case created:
					record("created")
				default:
					record("skipped")
				}
			}
			return nil
		})
	}
	err = g.Wait()
	p.observeRun(err)

	slog.InfoContext(ctx, "Monthly bill generation complete",
		"period", res.Period,
		"created", res.Created,
		"skipped", res.Skipped,
		"failed", res.Failed,
		"total_checked", res.Checked)

	if err != nil {
		return res, fmt.Errorf("generate %s: %w", res.Period, err)
	}
	return res, nil
}

// processBill reports whether it inserted an instance. A bill that already
// has an instance for period, under either label form, is left alone.
func (p *RecurringProcessor) processBill(ctx context.Context, bill core.Bill, period, dueMonth core.Period) (bool, error) {
	existing, err := p.store.ListInstancesByBill(ctx, bill.ID)
	if err != nil {
		return false, fmt.Errorf("list instances: %w", err)
	}

	amount, exists := carryForward(existing, period)
	if exists {
		return false, nil
	}

	inst := core.BillInstance{
		BillID:      bill.ID,
		UserID:      bill.UserID,
		Period:      period.String(),
		Amount:      amount,
		DueDate:     dueMonth.Day(bill.DueDay).Format(core.DateLayout),
		Description: core.MonthlyDescription(bill.Name, period),
		IsPaid:      false,
	}

	created, err := p.store.InsertInstanceIfAbsent(ctx, &inst)
	if err != nil {
		return false, fmt.Errorf("insert instance: %w", err)
	}
	if !created {
		return false, nil
	}

	p.notify.instance(ctx, amqp.InstanceCreated, inst)
	slog.InfoContext(ctx, "Created bill instance",
		"bill_id", bill.ID,
		"user_id", bill.UserID,
		"period", inst.Period,
		"amount_cents", inst.Amount.Cents,
		"due_date", inst.DueDate)
	return true, nil
}

// carryForward returns the amount of the latest instance whose period is
// before target, or zero when there is none. Labels that do not parse are
// ignored. exists reports an instance already present for target.
func carryForward(existing []core.BillInstance, target core.Period) (amount core.Money, exists bool) {
	var latest core.Period
	for _, inst := range existing {
		period, err := core.ParsePeriod(inst.Period)
		if err != nil {
			continue
		}
		if period == target {
			return core.Money{}, true
		}
		if period.Before(target) && (latest.IsZero() || latest.Before(period)) {
			latest = period
			amount = inst.Amount
		}
	}
	return amount, false
}

func (p *RecurringProcessor) observeRun(err error) {
	if p.metrics == nil {
		return
	}
	p.metrics.GeneratorRuns.WithLabelValues(metrics.Result(err)).Inc()
	if err == nil {
		p.metrics.GeneratorLastRun.SetToCurrentTime()
	}
}

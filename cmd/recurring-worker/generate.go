package main

import (
	"context"
	"time"

	"billtracker/internal/log"
	"billtracker/internal/services"
)

// generator runs the recurring processor for the worker and logs each
// run's totals.
type generator struct {
	processor  *services.RecurringProcessor
	logger     *log.Logger
	runOnStart bool
}

// scheduled is the monthly firing.
func (g *generator) scheduled(ctx context.Context, at time.Time) error {
	res, err := g.processor.ProcessMonth(ctx, at)
	if err != nil {
		return err
	}
	g.report("Monthly generation finished", res)
	return nil
}

// startup catches up a firing missed while the worker was down. It is
// opt-in and reports whether it ran.
func (g *generator) startup(ctx context.Context, now time.Time) bool {
	if !g.runOnStart {
		g.logger.Info("Start-up generation disabled, waiting for the schedule")
		return false
	}
	g.logger.Info("Running start-up generation")
	res, err := g.processor.CatchUp(ctx, now)
	if err != nil {
		g.logger.Error("Start-up generation failed", "error", err)
		return true
	}
	g.report("Start-up generation finished", res)
	return true
}

func (g *generator) report(msg string, res services.GenerationResult) {
	g.logger.Info(msg,
		log.FieldPeriod, res.Period,
		"checked", res.Checked,
		"created", res.Created,
		"skipped", res.Skipped,
		"failed", res.Failed)
}

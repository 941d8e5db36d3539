// Package schedule fires a job once a month at a fixed UTC day and time.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Monthly fires on Day at Hour:Minute UTC. Day is clamped to the length of
// each month.
type Monthly struct {
	Day    int
	Hour   int
	Minute int
}

func (m Monthly) Validate() error {
	if m.Day < 1 || m.Day > 31 {
		return fmt.Errorf("schedule day must be between 1 and 31, got %d", m.Day)
	}
	if m.Hour < 0 || m.Hour > 23 {
		return fmt.Errorf("schedule hour must be between 0 and 23, got %d", m.Hour)
	}
	if m.Minute < 0 || m.Minute > 59 {
		return fmt.Errorf("schedule minute must be between 0 and 59, got %d", m.Minute)
	}
	return nil
}

func (m Monthly) at(year int, month time.Month) time.Time {
	day := m.Day
	if last := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day(); day > last {
		day = last
	}
	return time.Date(year, month, day, m.Hour, m.Minute, 0, 0, time.UTC)
}

// Next returns the first firing strictly after t.
func (m Monthly) Next(t time.Time) time.Time {
	t = t.UTC()
	next := m.at(t.Year(), t.Month())
	if !next.After(t) {
		next = m.at(t.Year(), t.Month()+1)
	}
	return next
}

// Clock is the time source of Run.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// RealClock uses the system time.
var RealClock Clock = realClock{}

// Run calls job at every firing of m until ctx is done. job receives the
// scheduled instant; its errors are logged and the loop continues.
func Run(ctx context.Context, m Monthly, clock Clock, job func(ctx context.Context, at time.Time) error) error {
	if err := m.Validate(); err != nil {
		return err
	}
	if clock == nil {
		clock = RealClock
	}
	for ctx.Err() == nil {
		next := m.Next(clock.Now())
		slog.InfoContext(ctx, "Next scheduled run", "at", next.Format(time.RFC3339))

		select {
		case <-ctx.Done():
			return nil
		case <-clock.After(next.Sub(clock.Now())):
		}

		if err := job(ctx, next); err != nil {
			slog.ErrorContext(ctx, "Scheduled run failed", "at", next.Format(time.RFC3339), "error", err)
		}
	}
	return nil
}

package schedule

import (
	"context"
	"sync"
	"testing"
	"time"
)

func utc(y int, m time.Month, d, h, min int) time.Time {
	return time.Date(y, m, d, h, min, 0, 0, time.UTC)
}

func TestMonthly_Next(t *testing.T) {
	first := Monthly{Day: 1, Hour: 0, Minute: 1}
	tests := []struct {
		name  string
		sched Monthly
		from  time.Time
		want  time.Time
	}{
		{"mid month", first, utc(2024, time.December, 15, 12, 0), utc(2025, time.January, 1, 0, 1)},
		{"just before firing", first, utc(2025, time.January, 1, 0, 0), utc(2025, time.January, 1, 0, 1)},
		{"exactly at firing", first, utc(2025, time.January, 1, 0, 1), utc(2025, time.February, 1, 0, 1)},
		{"clamps to february", Monthly{Day: 31, Hour: 6}, utc(2025, time.February, 1, 0, 0), utc(2025, time.February, 28, 6, 0)},
		{"leap year", Monthly{Day: 30}, utc(2024, time.February, 10, 0, 0), utc(2024, time.February, 29, 0, 0)},
		{"non-utc input", first, time.Date(2024, time.December, 31, 23, 0, 0, 0, time.FixedZone("CET", 3600)), utc(2025, time.January, 1, 0, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.sched.Next(tt.from); !got.Equal(tt.want) {
				t.Errorf("Next(%v) = %v, want %v", tt.from, got, tt.want)
			}
		})
	}
}

func TestMonthly_Validate(t *testing.T) {
	bad := []Monthly{{Day: 0}, {Day: 32}, {Day: 1, Hour: 24}, {Day: 1, Minute: 60}}
	for _, m := range bad {
		if err := m.Validate(); err == nil {
			t.Errorf("Validate(%+v) expected error", m)
		}
	}
	if err := (Monthly{Day: 1, Minute: 1}).Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

// fakeClock jumps straight to each requested instant.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	c.mu.Unlock()
	ch := make(chan time.Time, 1)
	ch <- now
	return ch
}

func TestRun_FiresMonthly(t *testing.T) {
	clock := &fakeClock{now: utc(2024, time.November, 20, 0, 0)}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var fired []time.Time
	job := func(_ context.Context, at time.Time) error {
		fired = append(fired, at)
		if len(fired) == 3 {
			cancel()
		}
		return nil
	}

	if err := Run(ctx, Monthly{Day: 1, Minute: 1}, clock, job); err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []time.Time{
		utc(2024, time.December, 1, 0, 1),
		utc(2025, time.January, 1, 0, 1),
		utc(2025, time.February, 1, 0, 1),
	}
	if len(fired) != len(want) {
		t.Fatalf("fired %d times, want %d", len(fired), len(want))
	}
	for i := range want {
		if !fired[i].Equal(want[i]) {
			t.Errorf("firing %d = %v, want %v", i, fired[i], want[i])
		}
	}
}

func TestRun_InvalidSchedule(t *testing.T) {
	err := Run(context.Background(), Monthly{Day: 0}, nil, func(context.Context, time.Time) error { return nil })
	if err == nil {
		t.Fatal("expected error")
	}
}

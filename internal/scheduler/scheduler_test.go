package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/kjannette/quotesync/internal/collector"
)

type fakeCycler struct {
	runs   int
	report *collector.CycleReport
	clock  *fakeClock
	took   time.Duration
}

func (f *fakeCycler) RunCycle(context.Context) *collector.CycleReport {
	f.runs++
	start := f.clock.t
	f.clock.t = f.clock.t.Add(f.took)
	if f.report != nil {
		return f.report
	}
	return &collector.CycleReport{StartedAt: start, FinishedAt: f.clock.t}
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func newTestScheduler(clk *fakeClock, cyc *fakeCycler, sleep func(context.Context, time.Duration) error) *Scheduler {
	cyc.clock = clk
	return New(cyc, Config{
		Window:   DefaultWindow(wib),
		Interval: 5 * time.Minute,
		Clock:    clk.now,
		Sleep:    sleep,
		Logger:   zerolog.Nop(),
	})
}

func TestStep_ActiveRunsCycle(t *testing.T) {
	clk := &fakeClock{t: at(2025, 3, 10, 9, 0)}
	cyc := &fakeCycler{took: 7 * time.Minute}
	s := newTestScheduler(clk, cyc, nil)

	d, err := s.Step(context.Background())
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if cyc.runs != 1 {
		t.Fatalf("runs = %d", cyc.runs)
	}
	// fixed interval even when the cycle overran it
	if d != 5*time.Minute {
		t.Fatalf("delay = %s, want 5m", d)
	}

	st := s.Status()
	if st.State != Active || st.Cycles != 1 || st.LastReport == nil {
		t.Fatalf("status = %+v", st)
	}
	if !st.LastRunAt.Equal(at(2025, 3, 10, 9, 0)) || !st.NextRunAt.Equal(at(2025, 3, 10, 9, 12)) {
		t.Fatalf("last/next = %s / %s", st.LastRunAt, st.NextRunAt)
	}
}

func TestStep_DormantSleepsUntilWake(t *testing.T) {
	clk := &fakeClock{t: at(2025, 3, 10, 8, 59)}
	cyc := &fakeCycler{}
	s := newTestScheduler(clk, cyc, nil)

	d, err := s.Step(context.Background())
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if cyc.runs != 0 {
		t.Fatal("dormant step must not run a cycle")
	}
	if d != 11*time.Minute {
		t.Fatalf("delay = %s, want 11m", d)
	}
	if st := s.Status(); st.State != Dormant || !st.NextRunAt.Equal(at(2025, 3, 10, 9, 10)) {
		t.Fatalf("status = %+v", st)
	}

	clk.t = at(2025, 3, 10, 16, 0)
	d, _ = s.Step(context.Background())
	if d != 17*time.Hour+10*time.Minute {
		t.Fatalf("after close delay = %s", d)
	}
}

func TestStep_FailedCycleStillSleepsInterval(t *testing.T) {
	clk := &fakeClock{t: at(2025, 3, 10, 10, 0)}
	cyc := &fakeCycler{report: &collector.CycleReport{
		Tables: []collector.TableOutcome{{Table: "stocks", Rows: 3, Error: "boom"}},
	}}
	s := newTestScheduler(clk, cyc, nil)

	d, err := s.Step(context.Background())
	if err != nil || d != 5*time.Minute {
		t.Fatalf("d = %s, err = %v", d, err)
	}
	if s.Status().LastReport.OK() {
		t.Fatal("report should carry the failure")
	}
}

func TestRun_SimulatedDay(t *testing.T) {
	clk := &fakeClock{t: at(2025, 3, 10, 15, 48)}
	cyc := &fakeCycler{took: 30 * time.Second}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var sleeps []time.Duration
	sleep := func(_ context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		clk.t = clk.t.Add(d)
		if len(sleeps) == 5 {
			cancel()
			return ctx.Err()
		}
		return nil
	}

	s := newTestScheduler(clk, cyc, sleep)
	err := s.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run returned %v, want context.Canceled", err)
	}

	// 15:48 run, 15:53:30 run, 15:59:00 run, 16:04:30 dormant until 09:10, 09:10 run
	if cyc.runs != 4 {
		t.Fatalf("runs = %d, want 4 (sleeps %v)", cyc.runs, sleeps)
	}
	if sleeps[3] != 17*time.Hour+5*time.Minute+30*time.Second {
		t.Fatalf("dormant sleep = %s", sleeps[3])
	}
	if s.Status().Running {
		t.Fatal("status should report stopped after Run returns")
	}
}

func TestRun_CancelledBeforeStart(t *testing.T) {
	clk := &fakeClock{t: at(2025, 3, 10, 10, 0)}
	cyc := &fakeCycler{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := newTestScheduler(clk, cyc, nil).Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	if cyc.runs != 0 {
		t.Fatal("no cycle should run after cancellation")
	}
}

func TestSleepContext(t *testing.T) {
	if err := SleepContext(context.Background(), time.Millisecond); err != nil {
		t.Fatalf("short sleep: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	if err := SleepContext(ctx, time.Hour); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v", err)
	}
	if time.Since(start) > time.Second {
		t.Fatal("sleep ignored cancellation")
	}
}

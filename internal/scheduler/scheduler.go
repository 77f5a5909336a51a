// Package scheduler drives the sync loop: one cycle per interval while the
// market window is open, a single long sleep until the next open otherwise.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kjannette/quotesync/internal/collector"
)

// Cycler runs one fetch-and-sync pass.
type Cycler interface {
	RunCycle(ctx context.Context) *collector.CycleReport
}

type Config struct {
	Window   Window
	Interval time.Duration // sleep after each active cycle
	Clock    func() time.Time
	Sleep    func(ctx context.Context, d time.Duration) error
	Logger   zerolog.Logger
}

// Status is a point-in-time view of the scheduler for the status API.
type Status struct {
	State      State                  `json:"state"`
	Running    bool                   `json:"running"`
	Cycles     int                    `json:"cycles"`
	LastRunAt  *time.Time             `json:"lastRunAt,omitempty"`
	NextRunAt  *time.Time             `json:"nextRunAt,omitempty"`
	LastReport *collector.CycleReport `json:"lastReport,omitempty"`
}

type Scheduler struct {
	cycler   Cycler
	window   Window
	interval time.Duration
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
	log      zerolog.Logger

	mu     sync.Mutex
	status Status
}

func New(cycler Cycler, cfg Config) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Sleep == nil {
		cfg.Sleep = SleepContext
	}
	return &Scheduler{
		cycler:   cycler,
		window:   cfg.Window,
		interval: cfg.Interval,
		now:      cfg.Clock,
		sleep:    cfg.Sleep,
		log:      cfg.Logger,
	}
}

// Step evaluates the window once. When active it runs a cycle and returns
// the fixed interval, measured from the end of the cycle. When dormant it
// returns the time left until the next wake.
func (s *Scheduler) Step(ctx context.Context) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	now := s.now()
	local := s.window.local(now)

	if s.window.State(now) == Dormant {
		wake := s.window.NextWake(now)
		d := wake.Sub(now)
		s.setStatus(func(st *Status) {
			st.State = Dormant
			st.NextRunAt = &wake
		})
		s.log.Info().
			Str("now", local.Format("2006-01-02 15:04:05 MST")).
			Str("wake", wake.Format("2006-01-02 15:04 MST")).
			Int64("sleep_s", int64(d.Seconds())).
			Msg("outside trading hours, sleeping until next window")
		return d, nil
	}

	s.setStatus(func(st *Status) { st.State = Active })

	report := s.cycler.RunCycle(ctx)
	next := s.now().Add(s.interval)
	s.setStatus(func(st *Status) {
		st.Cycles++
		st.LastRunAt = &now
		st.LastReport = report
		st.NextRunAt = &next
	})

	stamp := local.Format("15:04:05 MST")
	if report.OK() {
		s.log.Info().
			Str("at", stamp).
			Int("fetched", len(report.Fetched)).
			Int("skipped", len(report.Skipped)+len(report.FetchErrors)).
			Dur("took", report.Duration()).
			Msg("bulk update completed")
	} else {
		s.log.Error().
			Str("at", stamp).
			Strs("failed_tables", report.FailedTables()).
			Str("aborted", report.Aborted).
			Msg("bulk update failed")
	}

	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.log.Info().Dur("interval", s.interval).Msg("sleeping until next cycle")
	return s.interval, nil
}

// Run loops Step and sleep until ctx is cancelled, which is the only way it
// returns.
func (s *Scheduler) Run(ctx context.Context) error {
	s.setStatus(func(st *Status) { st.Running = true })
	defer s.setStatus(func(st *Status) { st.Running = false })

	s.log.Info().
		Str("timezone", s.window.Location.String()).
		Int("open_hour", s.window.OpenHour).
		Int("close_hour", s.window.CloseHour).
		Dur("interval", s.interval).
		Msg("scheduler started")

	for {
		d, err := s.Step(ctx)
		if err != nil {
			return err
		}
		if err := s.sleep(ctx, d); err != nil {
			return err
		}
	}
}

func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Scheduler) setStatus(fn func(*Status)) {
	s.mu.Lock()
	fn(&s.status)
	s.mu.Unlock()
}

// SleepContext blocks for d or until ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

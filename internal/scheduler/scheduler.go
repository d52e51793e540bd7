package scheduler

import (
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"
)

// Ticker receives the host's periodic time tick.
type Ticker interface {
	OnTimeTick()
}

// Scheduler plays the host environment's role of ticking the display at a
// coarse cadence, which is the only redraw source while the face is in
// ambient mode.
type Scheduler struct {
	scheduler *gocron.Scheduler
	target    Ticker
	interval  time.Duration
	log       *zap.SugaredLogger
}

// New creates a new Scheduler. A non-positive interval defaults to one minute.
func New(target Ticker, interval time.Duration, log *zap.SugaredLogger) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	s := gocron.NewScheduler(time.UTC)
	return &Scheduler{
		scheduler: s,
		target:    target,
		interval:  interval,
		log:       log,
	}
}

// Start schedules the tick on interval boundaries and starts the underlying
// scheduler.
func (s *Scheduler) Start() error {
	_, err := s.scheduler.Every(s.interval).StartAt(s.firstBoundary()).Do(func() {
		s.log.Debugw("host time tick")
		s.target.OnTimeTick()
	})
	if err != nil {
		return fmt.Errorf("schedule host tick: %w", err)
	}

	s.scheduler.StartAsync()
	return nil
}

// firstBoundary is the next whole multiple of the interval.
func (s *Scheduler) firstBoundary() time.Time {
	return time.Now().UTC().Truncate(s.interval).Add(s.interval)
}

// Stop stops the scheduler and cancels any future ticks.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

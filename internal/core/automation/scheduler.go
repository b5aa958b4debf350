package automation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// DefaultCycleInterval is the automation cycle period
const DefaultCycleInterval = 15 * time.Minute

// Job is the unit of work run on every tick
type Job func(ctx context.Context)

// Scheduler runs a job periodically. It has two states, stopped (initial) and running.
// A tick that fires while the previous run is still executing is skipped.
type Scheduler struct {
	name     string
	cron     *cron.Cron
	interval time.Duration
	job      Job
	entryID  cron.EntryID
	logger   *logrus.Logger
	mu       sync.RWMutex
	running  bool
	lastRun  *time.Time
}

// NewScheduler creates a stopped scheduler
func NewScheduler(name string, interval time.Duration, job Job, logger *logrus.Logger) (*Scheduler, error) {
	if job == nil {
		return nil, fmt.Errorf("scheduler %s: job is required", name)
	}
	if interval <= 0 {
		interval = DefaultCycleInterval
	}
	if logger == nil {
		logger = logrus.New()
	}

	cronLogger := cron.VerbosePrintfLogger(logger.WithField("scheduler", name))
	s := &Scheduler{
		name:     name,
		interval: interval,
		job:      job,
		logger:   logger,
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithChain(
				cron.SkipIfStillRunning(cronLogger),
				cron.Recover(cronLogger),
			),
		),
	}

	entryID, err := s.cron.AddFunc(fmt.Sprintf("@every %s", interval), s.tick)
	if err != nil {
		return nil, fmt.Errorf("failed to schedule %s: %w", name, err)
	}
	s.entryID = entryID
	return s, nil
}

func (s *Scheduler) tick() {
	s.mu.RLock()
	running := s.running
	s.mu.RUnlock()
	if !running {
		return
	}

	now := time.Now()
	s.mu.Lock()
	s.lastRun = &now
	s.mu.Unlock()

	s.job(context.Background())
}

// Start begins periodic execution. Starting a running scheduler is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.cron.Start()
	s.running = true
	s.logger.WithFields(logrus.Fields{
		"scheduler": s.name,
		"interval":  s.interval.String(),
	}).Info("Scheduler started")
}

// Stop prevents further ticks. A run already executing is allowed to finish.
// Stopping a stopped scheduler is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.cron.Stop()
	s.running = false
	s.logger.WithField("scheduler", s.name).Info("Scheduler stopped")
}

// IsRunning returns whether the scheduler is running
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Interval returns the tick period
func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

// NextRun returns the next scheduled tick, or nil when stopped
func (s *Scheduler) NextRun() *time.Time {
	if !s.IsRunning() {
		return nil
	}
	next := s.cron.Entry(s.entryID).Next
	if next.IsZero() {
		return nil
	}
	return &next
}

// LastRun returns the time of the last scheduled tick
func (s *Scheduler) LastRun() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastRun == nil {
		return nil
	}
	t := *s.lastRun
	return &t
}

package analysis

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Repricer runs one re-pricing pass over the history
type Repricer interface {
	RepriceAll(ctx context.Context) (RepriceResult, error)
}

// Scheduler manages periodic re-pricing
type Scheduler struct {
	repricer Repricer
	interval time.Duration
	log      *logrus.Entry

	mu         sync.Mutex
	isRunning  bool
	stopCh     chan struct{}
	done       chan struct{}
	lastRun    time.Time
	lastResult RepriceResult
	lastError  string

	// one pass at a time, scheduled or manual
	runMu sync.Mutex
}

// RepriceStatus represents the scheduler status
type RepriceStatus struct {
	IsRunning   bool          `json:"isRunning"`
	Interval    string        `json:"interval"`
	LastRunTime time.Time     `json:"lastRunTime"`
	LastResult  RepriceResult `json:"lastResult"`
	LastError   string        `json:"lastError,omitempty"`
}

// NewScheduler creates a scheduler. An interval of zero or less disables
// the periodic loop; RepriceNow still works.
func NewScheduler(repricer Repricer, interval time.Duration, log *logrus.Entry) *Scheduler {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Scheduler{
		repricer: repricer,
		interval: interval,
		log:      log.WithField("component", "scheduler"),
	}
}

// Start runs a pass right away and then one per interval until Stop
func (s *Scheduler) Start() {
	if s.interval <= 0 {
		s.log.Info("Scheduled re-pricing disabled")
		return
	}

	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		s.log.Warn("Scheduler already running")
		return
	}
	s.isRunning = true
	s.stopCh = make(chan struct{})
	s.done = make(chan struct{})
	stopCh, done := s.stopCh, s.done
	s.mu.Unlock()

	s.log.Infof("Scheduler started with interval: %v", s.interval)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		defer close(done)
		defer cancel()

		// Stop interrupts a pass in progress
		go func() {
			select {
			case <-stopCh:
				cancel()
			case <-ctx.Done():
			}
		}()

		s.run(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.run(ctx)
			case <-stopCh:
				s.log.Info("Scheduler stopped")
				return
			}
		}
	}()
}

// Stop ends the loop and waits for it to exit
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	close(s.stopCh)
	done := s.done
	s.mu.Unlock()

	<-done
}

// IsRunning returns whether the scheduler is running
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

// RepriceNow runs a pass immediately
func (s *Scheduler) RepriceNow(ctx context.Context) (RepriceResult, error) {
	return s.run(ctx)
}

// Status returns the current status of the scheduler
func (s *Scheduler) Status() RepriceStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	interval := "disabled"
	if s.interval > 0 {
		interval = s.interval.String()
	}
	return RepriceStatus{
		IsRunning:   s.isRunning,
		Interval:    interval,
		LastRunTime: s.lastRun,
		LastResult:  s.lastResult,
		LastError:   s.lastError,
	}
}

// run executes a single re-pricing pass
func (s *Scheduler) run(ctx context.Context) (RepriceResult, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	startTime := time.Now()
	s.log.Debug("Starting re-pricing pass...")

	res, err := s.repricer.RepriceAll(ctx)

	s.mu.Lock()
	s.lastRun = startTime
	s.lastResult = res
	s.lastError = ""
	if err != nil {
		s.lastError = err.Error()
	}
	s.mu.Unlock()

	fields := logrus.Fields{
		"duration": time.Since(startTime).String(),
		"checked":  res.Checked,
		"updated":  res.Updated,
		"skipped":  res.Skipped,
	}
	if err != nil {
		s.log.WithError(err).WithFields(fields).Error("Re-pricing pass failed")
		return res, err
	}
	s.log.WithFields(fields).Info("Re-pricing pass completed")
	return res, nil
}

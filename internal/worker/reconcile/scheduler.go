package reconcile

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/carebridge-health/carebridge-platform/internal/observability/metrics"
	"github.com/carebridge-health/carebridge-platform/pkg/logging"
)

// Runner is one reconciliation job. Run returns an error only when the
// candidate set could not even be fetched; per-record failures are handled
// inside the job.
type Runner interface {
	Name() string
	Run(ctx context.Context) error
}

type job struct {
	name     string
	interval time.Duration
	run      func(ctx context.Context) error
	inFlight atomic.Bool
}

// Scheduler runs registered jobs forever on fixed intervals. Each job fires
// immediately on Start and then every interval. A tick that would overlap
// the job's previous tick is skipped, not queued, so a slow external call
// stalls only its own job. Stop cancels all jobs and waits for in-flight
// ticks to drain.
type Scheduler struct {
	logger  *logging.Logger
	metrics *metrics.ReconcilerMetrics

	mu     sync.Mutex
	jobs   []*job
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a scheduler.
func New(logger *logging.Logger, m *metrics.ReconcilerMetrics) *Scheduler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Scheduler{logger: logger, metrics: m}
}

// Register schedules run to fire immediately after Start and then every
// interval.
func (s *Scheduler) Register(name string, interval time.Duration, run func(ctx context.Context) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, &job{name: name, interval: interval, run: run})
}

// RegisterRunner registers a Runner under its own name and interval.
func (s *Scheduler) RegisterRunner(r Runner, interval time.Duration) {
	s.Register(r.Name(), interval, r.Run)
}

// Start launches every registered job. It returns immediately; jobs run
// until Stop is called or ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for _, j := range s.jobs {
		s.wg.Add(1)
		go s.loop(runCtx, j)
	}
	s.logger.Info("reconcile scheduler started", "jobs", len(s.jobs))
}

// Stop cancels all jobs and blocks until in-flight ticks finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	s.wg.Wait()
	s.logger.Info("reconcile scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context, j *job) {
	defer s.wg.Done()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	s.fire(ctx, j)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.fire(ctx, j)
		}
	}
}

// fire launches one tick unless the previous tick is still in flight.
func (s *Scheduler) fire(ctx context.Context, j *job) {
	if !j.inFlight.CompareAndSwap(false, true) {
		s.metrics.ObserveTickSkipped(j.name)
		s.logger.Warn("tick skipped: previous tick still in flight", "job", j.name)
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer j.inFlight.Store(false)
		s.runTick(ctx, j)
	}()
}

// runTick is the fault boundary: a job must never take the process down.
func (s *Scheduler) runTick(ctx context.Context, j *job) {
	defer func() {
		if r := recover(); r != nil {
			s.metrics.ObserveTickAbandoned(j.name)
			s.logger.Error("tick panicked", "job", j.name, "panic", fmt.Sprintf("%v", r))
		}
	}()

	s.metrics.ObserveTick(j.name)
	start := time.Now()
	if err := j.run(ctx); err != nil {
		s.metrics.ObserveTickAbandoned(j.name)
		s.logger.Error("tick abandoned", "job", j.name, "error", err)
		return
	}
	s.logger.Debug("tick complete", "job", j.name, "elapsed", time.Since(start).String())
}

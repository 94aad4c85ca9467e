package workers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"codeagents/internal/metrics"
	"codeagents/pkg/errors"
	"codeagents/pkg/logger"
)

// DefaultShutdownTimeout bounds how long Stop waits for in-flight runs
const DefaultShutdownTimeout = 30 * time.Second

// Scheduler runs each registered worker on its own ticker
type Scheduler struct {
	workers         []Worker
	shutdownTimeout time.Duration
	tracker         errors.Tracker

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.RWMutex
	log     *logger.Logger
	started bool
}

// NewScheduler creates a scheduler. tracker may be nil.
func NewScheduler(shutdownTimeout time.Duration, tracker errors.Tracker) *Scheduler {
	if shutdownTimeout <= 0 {
		shutdownTimeout = DefaultShutdownTimeout
	}

	return &Scheduler{
		shutdownTimeout: shutdownTimeout,
		tracker:         tracker,
		log:             logger.Get().With("component", "scheduler"),
	}
}

// RegisterWorker adds a worker. Names must be unique and registration closes once started.
func (s *Scheduler) RegisterWorker(w Worker) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return errors.Wrapf(errors.ErrUnsupportedOperation, "cannot register worker %s after start", w.Name())
	}
	if w.Interval() <= 0 {
		return errors.NewValidationError("interval", "must be positive", w.Interval())
	}
	for _, existing := range s.workers {
		if existing.Name() == w.Name() {
			return errors.Wrapf(errors.ErrInvalidInput, "worker %s already registered", w.Name())
		}
	}

	s.workers = append(s.workers, w)
	s.log.Infow("Worker registered", "worker", w.Name(), "interval", w.Interval())
	return nil
}

// Start launches every enabled worker. Each one runs immediately, then on its interval.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return errors.Wrap(errors.ErrInternal, "scheduler already started")
	}

	s.started = true
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.log.Infow("Starting worker scheduler", "workers", len(s.workers))

	for _, w := range s.workers {
		if !w.Enabled() {
			s.log.Infow("Skipping disabled worker", "worker", w.Name())
			continue
		}

		s.wg.Add(1)
		go s.runWorker(w)
	}

	return nil
}

// Stop cancels all workers and waits for in-flight runs up to the shutdown timeout
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return errors.Wrap(errors.ErrInternal, "scheduler not started")
	}
	s.cancel()
	s.mu.Unlock()

	s.log.Info("Stopping worker scheduler...")

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	var shutdownErr error
	select {
	case <-done:
		s.log.Info("All workers stopped gracefully")
	case <-time.After(s.shutdownTimeout):
		s.log.Warnw("Worker shutdown timed out", "timeout", s.shutdownTimeout)
		shutdownErr = errors.Wrapf(errors.ErrTimeout, "worker shutdown after %s", s.shutdownTimeout)
	}

	s.mu.Lock()
	s.started = false
	s.mu.Unlock()

	return shutdownErr
}

func (s *Scheduler) runWorker(w Worker) {
	defer s.wg.Done()

	ticker := time.NewTicker(w.Interval())
	defer ticker.Stop()

	s.execute(w)

	for {
		select {
		case <-s.ctx.Done():
			s.log.Debugw("Worker stopping", "worker", w.Name())
			return
		case <-ticker.C:
			s.execute(w)
		}
	}
}

// execute runs one iteration, converting panics into errors
func (s *Scheduler) execute(w Worker) {
	start := time.Now()

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%w: worker %s panicked: %v", errors.ErrInternal, w.Name(), r)
			}
		}()
		return w.Run(s.ctx)
	}()

	duration := time.Since(start)
	metrics.RecordWorkerExecution(w.Name(), duration, err)

	if hr, ok := w.(HealthReporter); ok {
		if err != nil {
			hr.RecordError(err, duration)
		} else {
			hr.RecordRun(duration)
		}
	}

	if err == nil {
		s.log.Debugw("Worker execution completed", "worker", w.Name(), "duration", duration)
		return
	}
	if s.ctx.Err() != nil && errors.Is(err, context.Canceled) {
		return
	}

	s.log.Errorw("Worker execution failed", "worker", w.Name(), "duration", duration, "error", err)
	if s.tracker != nil && errors.KindOf(err) == errors.KindInternal {
		_ = s.tracker.CaptureError(s.ctx, err, map[string]string{"worker": w.Name()})
	}
}

// Workers returns the registered workers in registration order
func (s *Scheduler) Workers() []Worker {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Worker, len(s.workers))
	copy(out, s.workers)
	return out
}

// Health returns a snapshot for every worker that reports health
func (s *Scheduler) Health() map[string]WorkerHealth {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]WorkerHealth, len(s.workers))
	for _, w := range s.workers {
		if hr, ok := w.(HealthReporter); ok {
			out[w.Name()] = hr.Health()
		}
	}
	return out
}

func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

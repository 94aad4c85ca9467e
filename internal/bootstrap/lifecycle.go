package bootstrap

import (
	"context"
	"net/http"
	"sync"
	"time"

	redisclient "codeagents/internal/adapters/redis"
	"codeagents/internal/events"
	"codeagents/internal/workers"
	"codeagents/pkg/errors"
	"codeagents/pkg/logger"
)

// Lifecycle manages graceful shutdown of components
type Lifecycle struct {
	shutdownTimeout time.Duration
}

// NewLifecycle creates a new lifecycle manager
func NewLifecycle() *Lifecycle {
	return &Lifecycle{shutdownTimeout: time.Minute}
}

// ShutdownTargets lists the components to stop; any of them may be nil
type ShutdownTargets struct {
	WG            *sync.WaitGroup
	MetricsServer *http.Server
	Scheduler     *workers.Scheduler
	Publisher     events.Publisher
	ErrorTracker  errors.Tracker
	Redis         *redisclient.Client
}

// Shutdown stops components in order:
// 1. metrics endpoint stops accepting scrapes
// 2. workers finish their current scan
// 3. the event producer flushes after the last publish
// 4. errors and logs are flushed
// 5. Redis closes last since scans hold locks in it
func (l *Lifecycle) Shutdown(t ShutdownTargets, log *logger.Logger) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), l.shutdownTimeout)
	defer cancel()

	if t.MetricsServer != nil {
		log.Debug("[1/5] Stopping metrics server...")
		httpCtx, httpCancel := context.WithTimeout(shutdownCtx, 5*time.Second)
		if err := t.MetricsServer.Shutdown(httpCtx); err != nil {
			log.Errorw("Metrics server shutdown failed", "error", err)
		}
		httpCancel()
	}

	if t.Scheduler != nil && t.Scheduler.IsRunning() {
		log.Debug("[2/5] Stopping background workers...")
		if err := t.Scheduler.Stop(); err != nil {
			log.Errorw("Workers shutdown failed", "error", err)
		} else {
			log.Info("✓ Workers stopped")
		}
	}

	if t.WG != nil {
		l.waitForGoroutines(t.WG, 5*time.Second, log)
	}

	if t.Publisher != nil {
		log.Debug("[3/5] Closing event publisher...")
		if err := t.Publisher.Close(); err != nil {
			log.Errorw("Event publisher close failed", "error", err)
		}
	}

	log.Debug("[4/5] Flushing error tracker and logs...")
	l.flushErrorTracker(shutdownCtx, t.ErrorTracker, log)
	_ = logger.Sync()

	if t.Redis != nil {
		log.Debug("[5/5] Closing Redis...")
		if err := t.Redis.Close(); err != nil {
			log.Errorw("Redis close failed", "error", err)
		}
	}

	log.Debug("Shutdown complete")
}

// waitForGoroutines waits for all goroutines with a timeout
func (l *Lifecycle) waitForGoroutines(wg *sync.WaitGroup, timeout time.Duration, log *logger.Logger) {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		log.Warnw("Some goroutines did not finish within timeout", "timeout", timeout)
	}
}

func (l *Lifecycle) flushErrorTracker(ctx context.Context, tracker errors.Tracker, log *logger.Logger) {
	if tracker == nil {
		return
	}

	flushCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := tracker.Flush(flushCtx); err != nil {
		log.Warnw("Error tracker flush failed", "error", err)
	}
}

package bootstrap

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	domain "codeagents/internal/domain/analysis"
	"codeagents/internal/metrics"
	"codeagents/internal/workers"
	analysisworkers "codeagents/internal/workers/analysis"
	"codeagents/internal/workers/credentials"
	"codeagents/pkg/errors"
)

// WatchOptions configures watch mode
type WatchOptions struct {
	Dir      string
	Interval time.Duration
	// OnReport receives every completed scan
	OnReport func(*domain.Report)
}

// InitWatch registers the background workers and the metrics endpoint.
// Init must have succeeded first.
func (c *Container) InitWatch(opts WatchOptions) error {
	interval := opts.Interval
	if interval <= 0 {
		interval = c.Config.Workers.WatchInterval
	}

	c.Scheduler = workers.NewScheduler(workers.DefaultShutdownTimeout, c.ErrorTracker)

	scannerOpts := []analysisworkers.ScannerOption{analysisworkers.WithReportHandler(opts.OnReport)}
	if c.Redis != nil {
		scannerOpts = append(scannerOpts, analysisworkers.WithLock(c.redisLock))
	}
	if err := c.Scheduler.RegisterWorker(analysisworkers.NewDirectoryScanner(c.Service, opts.Dir, interval, scannerOpts...)); err != nil {
		return err
	}

	if err := c.Scheduler.RegisterWorker(credentials.NewRotationMonitor(
		c.Credential,
		c.ErrorTracker,
		c.Config.Workers.RotationCheckInterval,
	)); err != nil {
		return err
	}

	if addr := c.Config.Metrics.Addr; addr != "" {
		metrics.Init()
		err := prometheus.Register(metrics.NewRuntimeCollector(
			func() time.Duration { return c.Credential.Age(time.Now()) },
			func() float64 { return c.Usage.Total().CostUSD },
		))
		var already prometheus.AlreadyRegisteredError
		if err != nil && !errors.As(err, &already) {
			return errors.Wrap(err, "register runtime collector")
		}

		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		c.MetricsServer = &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
	}

	c.Log.Infow("✓ Watch mode initialized", "dir", opts.Dir, "interval", interval, "workers", len(c.Scheduler.Workers()))
	return nil
}

// redisLock adapts the Redis lock to the scanner's LockFunc
func (c *Container) redisLock(ctx context.Context, name string, ttl time.Duration) (func(context.Context) error, bool, error) {
	lock, ok, err := c.Redis.AcquireLock(ctx, name, ttl)
	if err != nil || !ok {
		return nil, ok, err
	}
	return lock.Release, true, nil
}

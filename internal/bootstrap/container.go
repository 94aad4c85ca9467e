package bootstrap

import (
	"context"
	"net/http"
	"sync"

	"codeagents/internal/adapters/ai"
	"codeagents/internal/adapters/config"
	"codeagents/internal/adapters/ratelimit"
	redisclient "codeagents/internal/adapters/redis"
	"codeagents/internal/agents/codeanalyzer"
	"codeagents/internal/events"
	analysisservice "codeagents/internal/services/analysis"
	"codeagents/internal/workers"
	"codeagents/pkg/errors"
	"codeagents/pkg/logger"
)

// Container holds all application dependencies and their lifecycle.
// Components are organized in initialization order.
type Container struct {
	// Core configuration & logging
	Config       *config.Config
	Log          *logger.Logger
	ErrorTracker errors.Tracker

	// Infrastructure; Redis is nil unless the redis rate limit backend is selected
	Redis *redisclient.Client

	// Model layer
	Credential *ai.Credential
	Usage      *ai.UsageTracker
	Limiter    ratelimit.Limiter
	Provider   ai.CompletionProvider
	Manager    *ai.ModelManager

	// Agents & services
	Analyzer  *codeanalyzer.CodeAnalyzer
	Publisher events.Publisher
	Service   *analysisservice.Service

	// Background processing, set by InitWatch
	Scheduler     *workers.Scheduler
	MetricsServer *http.Server

	Lifecycle *Lifecycle
	WG        *sync.WaitGroup
	Context   context.Context
	Cancel    context.CancelFunc
}

// NewContainer creates a container around an already loaded and validated configuration
func NewContainer(cfg *config.Config) *Container {
	ctx, cancel := context.WithCancel(context.Background())

	return &Container{
		Config:    cfg,
		Lifecycle: NewLifecycle(),
		WG:        &sync.WaitGroup{},
		Context:   ctx,
		Cancel:    cancel,
	}
}

// Init builds every component needed for one-shot analysis, in dependency order
func (c *Container) Init() error {
	if err := c.InitLogging(); err != nil {
		return err
	}

	steps := []struct {
		name string
		fn   func() error
	}{
		{"infrastructure", c.InitInfrastructure},
		{"model", c.InitModel},
		{"agents", c.InitAgents},
		{"services", c.InitServices},
	}
	for _, step := range steps {
		if err := step.fn(); err != nil {
			return errors.Wrapf(err, "init %s", step.name)
		}
	}

	c.Log.Infow("✓ Container initialized",
		"model", c.Manager.Model(),
		"fallback_model", c.Config.Model.FallbackModel,
		"rate_limit_backend", c.Config.RateLimit.Backend,
		"events", c.Config.Kafka.Enabled(),
	)
	return nil
}

// Start launches background components initialized by InitWatch
func (c *Container) Start() error {
	if c.Scheduler == nil {
		return errors.Wrap(errors.ErrInternal, "watch mode not initialized")
	}

	if c.MetricsServer != nil {
		c.WG.Add(1)
		go func() {
			defer c.WG.Done()
			c.Log.Infow("Serving metrics", "addr", c.MetricsServer.Addr)
			if err := c.MetricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				c.Log.Errorw("Metrics server failed", "error", err)
				c.Cancel()
			}
		}()
	}

	if err := c.Scheduler.Start(c.Context); err != nil {
		return errors.Wrap(err, "start workers")
	}

	c.Log.Info("✓ All systems operational")
	return nil
}

// Shutdown stops everything in reverse dependency order
func (c *Container) Shutdown() {
	c.Cancel()

	log := c.Log
	if log == nil {
		log = logger.Get()
	}

	c.Lifecycle.Shutdown(ShutdownTargets{
		WG:            c.WG,
		MetricsServer: c.MetricsServer,
		Scheduler:     c.Scheduler,
		Publisher:     c.Publisher,
		ErrorTracker:  c.ErrorTracker,
		Redis:         c.Redis,
	}, log)
}

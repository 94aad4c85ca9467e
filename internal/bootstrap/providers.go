package bootstrap

import (
	"time"

	"codeagents/internal/adapters/ai"
	"codeagents/internal/adapters/config"
	errnoop "codeagents/internal/adapters/errors/noop"
	"codeagents/internal/adapters/errors/sentry"
	"codeagents/internal/adapters/kafka"
	"codeagents/internal/adapters/ratelimit"
	redisclient "codeagents/internal/adapters/redis"
	"codeagents/internal/adapters/retry"
	"codeagents/internal/agents"
	"codeagents/internal/agents/codeanalyzer"
	"codeagents/internal/events"
	analysisservice "codeagents/internal/services/analysis"
	"codeagents/pkg/errors"
	"codeagents/pkg/logger"
	"codeagents/pkg/templates"
)

// ========================================
// Phase 1: Logging & Error Tracking
// ========================================

// InitLogging initializes the global logger and error tracker
func (c *Container) InitLogging() error {
	cfg := c.Config

	if err := logger.Init(logger.Options{
		Level:         cfg.App.LogLevel,
		Env:           cfg.App.Env,
		Format:        cfg.App.LogFormat,
		SensitiveData: cfg.App.LogSensitiveData,
	}); err != nil {
		return errors.Wrap(err, "init logger")
	}

	c.Log = logger.Get()
	c.Log.Debugw("Logger initialized", "app", cfg.App.Name, "env", cfg.App.Env)

	c.ErrorTracker = provideErrorTracker(cfg, c.Log)
	logger.SetErrorTracker(c.ErrorTracker)
	c.Log = logger.Get()
	return nil
}

// ========================================
// Phase 2: Infrastructure
// ========================================

// InitInfrastructure connects to Redis when the redis rate limit backend is selected
func (c *Container) InitInfrastructure() error {
	if c.Config.RateLimit.Backend != config.BackendRedis {
		return nil
	}

	c.Log.Infow("Connecting to Redis...", "addr", c.Config.Redis.Addr())
	client, err := redisclient.NewClient(c.Context, c.Config.Redis)
	if err != nil {
		return err
	}
	c.Redis = client
	c.Log.Info("✓ Redis connected")
	return nil
}

// ========================================
// Phase 3: Model Layer
// ========================================

// InitModel builds the credential, limiter, provider and model manager
func (c *Container) InitModel() error {
	cfg := c.Config

	model, err := ai.ParseModelIdentity(cfg.Model.DefaultModel)
	if err != nil {
		return err
	}

	c.Credential = ai.NewCredential(cfg.Model.APIKey, time.Duration(cfg.Model.KeyRotationHours)*time.Hour)
	c.Usage = ai.NewUsageTracker()

	if !model.IsDeterministic() {
		c.Limiter, err = provideLimiter(string(model), cfg, c.Redis)
		if err != nil {
			return err
		}

		provider, err := ai.NewOpenAIProvider(c.Credential, cfg.Model.BaseURL)
		if err != nil {
			return err
		}
		c.Provider = provider
	}

	c.Manager, err = ai.NewModelManager(provideManagerConfig(cfg, model, c.Credential), c.Provider, c.Limiter, c.Usage)
	if err != nil {
		return err
	}

	c.Log.Infow("✓ Model manager ready", "model", model, "key", c.Credential.Masked())
	return nil
}

// ========================================
// Phase 4: Agents
// ========================================

// InitAgents builds the code analyzer with its fallback policy
func (c *Container) InitAgents() error {
	policy, err := agents.ParseFallbackPolicy(c.Config.Model.FallbackModel)
	if err != nil {
		return err
	}

	prompts, err := providePrompts(c.Config, c.Log)
	if err != nil {
		return err
	}

	c.Analyzer, err = codeanalyzer.New(c.Manager, codeanalyzer.Options{
		Patterns:       c.Config.Agents.CodeAnalyzer.Patterns,
		Policy:         policy,
		MaxPromptRunes: c.Config.Validation.MaxPromptLength,
		Prompts:        prompts,
		Tracker:        c.ErrorTracker,
	})
	return err
}

// ========================================
// Phase 5: Services
// ========================================

// InitServices builds the event publisher and the analysis service
func (c *Container) InitServices() error {
	c.Publisher = providePublisher(c.Config, c.Log)

	analyzerCfg := c.Config.Agents.CodeAnalyzer
	c.Service = analysisservice.NewService(c.Analyzer, c.Publisher, analysisservice.Config{
		FileExtensions: analyzerCfg.FileExtensions,
		MaxFileBytes:   analyzerCfg.MaxFileBytes,
		MaxConcurrency: analyzerCfg.MaxConcurrency,
	})
	return nil
}

// ========================================
// Helper Provider Functions
// ========================================

// providePrompts loads the prompt override directory, or returns nil for the embedded templates
func providePrompts(cfg *config.Config, log *logger.Logger) (*templates.Registry, error) {
	dir := cfg.Agents.CodeAnalyzer.PromptsDir
	if dir == "" {
		return nil, nil
	}

	registry, err := templates.NewRegistry(dir)
	if err != nil {
		return nil, errors.Wrap(err, "load prompt templates")
	}

	log.Infow("Using prompt templates from disk", "dir", dir, "templates", registry.List())
	return registry, nil
}

func provideErrorTracker(cfg *config.Config, log *logger.Logger) errors.Tracker {
	if !cfg.ErrorTracking.Enabled || cfg.ErrorTracking.SentryDSN == "" {
		log.Debug("Error tracking disabled")
		return errnoop.New()
	}

	tracker, err := sentry.New(sentry.Options{
		DSN:         cfg.ErrorTracking.SentryDSN,
		Environment: cfg.ErrorTracking.Environment,
		Release:     cfg.App.Name,
	})
	if err != nil {
		log.Warnf("Failed to initialize Sentry: %v", err)
		return errnoop.New()
	}

	log.Info("✓ Error tracking initialized (Sentry)")
	return tracker
}

func provideLimiter(name string, cfg *config.Config, redis *redisclient.Client) (ratelimit.Limiter, error) {
	if redis != nil {
		return ratelimit.New(name, cfg.RateLimit, redis.Client())
	}
	return ratelimit.New(name, cfg.RateLimit, nil)
}

func provideManagerConfig(cfg *config.Config, model ai.ModelIdentity, credential *ai.Credential) ai.ManagerConfig {
	return ai.ManagerConfig{
		Model:          model,
		Credential:     credential,
		RateLimitWait:  cfg.RateLimit.Wait,
		RequestTimeout: cfg.Request.Timeout(),
		Retry: retry.Config{
			MaxAttempts:  cfg.Request.MaxRetryAttempts,
			InitialDelay: cfg.Request.BackoffBase,
			MaxDelay:     cfg.Request.BackoffMax,
			Strategy:     retry.StrategyExponential,
			Multiplier:   cfg.Request.BackoffMultiplier,
			Jitter:       cfg.Request.BackoffJitter,
		},
		Temperature: cfg.Model.Temperature,
		MaxTokens:   cfg.Model.MaxTokens,
		Validation: ai.ValidatorConfig{
			Enabled:           cfg.Validation.Enabled,
			MaxPromptLength:   cfg.Validation.MaxPromptLength,
			MaxResponseLength: cfg.Validation.MaxResponseLength,
			BlockedPatterns:   cfg.Validation.BlockedPatterns,
		},
	}
}

func providePublisher(cfg *config.Config, log *logger.Logger) events.Publisher {
	if !cfg.Kafka.Enabled() {
		log.Debug("Kafka brokers not configured, analysis events disabled")
		return events.NoopPublisher{}
	}

	producer := kafka.NewProducer(kafka.ProducerConfig{
		Brokers: cfg.Kafka.Brokers,
	})
	log.Infow("✓ Kafka producer initialized", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.AnalysisTopic)
	return events.NewKafkaPublisher(producer, cfg.Kafka.AnalysisTopic)
}

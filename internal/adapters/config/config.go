package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"codeagents/pkg/errors"
)

// DefaultConfigPath is read when no explicit path or CONFIG_PATH is given and the file exists
const DefaultConfigPath = "configs/default_config.yaml"

// Rate limiter backends
const (
	BackendWindow      = "window"
	BackendTokenBucket = "token_bucket"
	BackendRedis       = "redis"
)

type Config struct {
	App           AppConfig           `yaml:"app"`
	Model         ModelConfig         `yaml:"model_config"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit"`
	Request       RequestConfig       `yaml:"request"`
	Validation    ValidationConfig    `yaml:"validation"`
	Agents        AgentsConfig        `yaml:"agents"`
	Redis         RedisConfig         `yaml:"redis"`
	Kafka         KafkaConfig         `yaml:"kafka"`
	ErrorTracking ErrorTrackingConfig `yaml:"error_tracking"`
	Metrics       MetricsConfig       `yaml:"metrics"`
	Workers       WorkerConfig        `yaml:"workers"`
}

type AppConfig struct {
	Name             string `envconfig:"APP_NAME" yaml:"name"`
	Env              string `envconfig:"APP_ENV" yaml:"env"`
	LogLevel         string `envconfig:"LOG_LEVEL" yaml:"log_level"`
	LogFormat        string `envconfig:"LOG_FORMAT" yaml:"log_format"`
	LogSensitiveData bool   `envconfig:"LOG_SENSITIVE_DATA" yaml:"log_sensitive_data"`
}

type ModelConfig struct {
	DefaultModel  string  `envconfig:"DEFAULT_MODEL" yaml:"default_model"`
	FallbackModel string  `envconfig:"FALLBACK_MODEL" yaml:"fallback_model"`
	Temperature   float64 `envconfig:"MODEL_TEMPERATURE" yaml:"temperature"`
	MaxTokens     int     `envconfig:"MAX_TOKENS" yaml:"max_tokens"`
	// APIKey is only ever read from the environment
	APIKey           string `envconfig:"OPENAI_API_KEY" yaml:"-"`
	BaseURL          string `envconfig:"OPENAI_BASE_URL" yaml:"base_url"`
	KeyRotationHours int    `envconfig:"API_KEY_ROTATION_HOURS" yaml:"api_key_rotation_hours"`
}

type RateLimitConfig struct {
	RequestsPerMinute int           `envconfig:"RATE_LIMIT_RPM" yaml:"requests_per_minute"`
	Wait              time.Duration `envconfig:"RATE_LIMIT_WAIT" yaml:"wait"`
	Backend           string        `envconfig:"RATE_LIMIT_BACKEND" yaml:"backend"`
}

type RequestConfig struct {
	TimeoutSeconds    int           `envconfig:"REQUEST_TIMEOUT_SECONDS" yaml:"timeout_seconds"`
	MaxRetryAttempts  int           `envconfig:"MAX_RETRY_ATTEMPTS" yaml:"max_retry_attempts"`
	BackoffBase       time.Duration `envconfig:"RETRY_BACKOFF_BASE" yaml:"backoff_base"`
	BackoffMax        time.Duration `envconfig:"RETRY_BACKOFF_MAX" yaml:"backoff_max"`
	BackoffMultiplier float64       `envconfig:"RETRY_BACKOFF_MULTIPLIER" yaml:"backoff_multiplier"`
	BackoffJitter     float64       `envconfig:"RETRY_BACKOFF_JITTER" yaml:"backoff_jitter"`
}

// Timeout returns the per-attempt provider deadline
func (c RequestConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

type ValidationConfig struct {
	Enabled           bool     `envconfig:"ENABLE_RESPONSE_VALIDATION" yaml:"enabled"`
	MaxPromptLength   int      `envconfig:"MAX_PROMPT_LENGTH" yaml:"max_prompt_length"`
	MaxResponseLength int      `envconfig:"MAX_RESPONSE_LENGTH" yaml:"max_response_length"`
	BlockedPatterns   []string `envconfig:"RESPONSE_BLOCKED_PATTERNS" yaml:"blocked_patterns"`
}

type AgentsConfig struct {
	CodeAnalyzer AnalyzerConfig `yaml:"code_analyzer"`
}

type AnalyzerConfig struct {
	FileExtensions []string `envconfig:"ANALYZER_FILE_EXTENSIONS" yaml:"file_extensions"`
	MaxConcurrency int      `envconfig:"ANALYZER_MAX_CONCURRENCY" yaml:"max_concurrency"`
	MaxFileBytes   int64    `envconfig:"ANALYZER_MAX_FILE_BYTES" yaml:"max_file_bytes"`
	// PromptsDir replaces the built-in prompt templates; it must contain code_analyzer/analyze.tmpl
	PromptsDir string `envconfig:"ANALYZER_PROMPTS_DIR" yaml:"prompts_dir"`
	// Patterns maps a category (security, performance, ...) to its regex rules.
	// Categories present in the YAML file replace the built-in category of the same name.
	Patterns map[string][]PatternConfig `ignored:"true" yaml:"patterns"`
}

type PatternConfig struct {
	Name        string `yaml:"name"`
	Pattern     string `yaml:"pattern"`
	Severity    string `yaml:"severity"`
	Description string `yaml:"description"`
}

type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST" yaml:"host"`
	Port     int    `envconfig:"REDIS_PORT" yaml:"port"`
	Password string `envconfig:"REDIS_PASSWORD" yaml:"-"`
	DB       int    `envconfig:"REDIS_DB" yaml:"db"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type KafkaConfig struct {
	Brokers       []string `envconfig:"KAFKA_BROKERS" yaml:"brokers"`
	AnalysisTopic string   `envconfig:"KAFKA_ANALYSIS_TOPIC" yaml:"analysis_topic"`
}

// Enabled reports whether analysis events should be published
func (c KafkaConfig) Enabled() bool {
	return len(c.Brokers) > 0
}

type ErrorTrackingConfig struct {
	Enabled     bool   `envconfig:"ERROR_TRACKING_ENABLED" yaml:"enabled"`
	SentryDSN   string `envconfig:"SENTRY_DSN" yaml:"-"`
	Environment string `envconfig:"SENTRY_ENVIRONMENT" yaml:"environment"`
}

type MetricsConfig struct {
	Addr string `envconfig:"METRICS_ADDR" yaml:"addr"`
}

// WorkerConfig contains intervals for watch-mode background workers
type WorkerConfig struct {
	WatchInterval         time.Duration `envconfig:"WATCH_INTERVAL" yaml:"watch_interval"`
	RotationCheckInterval time.Duration `envconfig:"ROTATION_CHECK_INTERVAL" yaml:"rotation_check_interval"`
}

// Load builds the configuration from built-in defaults, then the YAML file, then the environment.
// An explicit path that does not exist is an error; the default path is optional.
func Load(path string) (*Config, error) {
	// Load .env file if exists (ignore error if not exists)
	_ = godotenv.Load()

	cfg := Default()

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		if _, err := os.Stat(DefaultConfigPath); err == nil {
			path = DefaultConfigPath
		}
	}

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	// No default tags: only variables actually present override file values
	if err := envconfig.Process("", cfg); err != nil {
		return nil, errors.Wrap(err, "failed to process env config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.Wrapf(errors.ErrNotFound, "config file %s", path)
		}
		return errors.Wrapf(err, "failed to read config file %s", path)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return errors.Wrapf(errors.ErrInvalidInput, "failed to parse config file %s: %v", path, err)
	}
	return nil
}

// Validate checks ranges and cross-field constraints, reporting every problem at once
func (c *Config) Validate() error {
	var errs errors.MultiError

	if c.Model.Temperature < 0 || c.Model.Temperature > 2 {
		errs.Add(errors.NewValidationError("model_config.temperature", "must be within [0, 2]", c.Model.Temperature))
	}
	if c.Model.MaxTokens <= 0 {
		errs.Add(errors.NewValidationError("model_config.max_tokens", "must be positive", c.Model.MaxTokens))
	}
	if c.Model.KeyRotationHours < 1 {
		errs.Add(errors.NewValidationError("model_config.api_key_rotation_hours", "must be at least 1", c.Model.KeyRotationHours))
	}

	if c.RateLimit.RequestsPerMinute <= 0 {
		errs.Add(errors.NewValidationError("rate_limit.requests_per_minute", "must be positive", c.RateLimit.RequestsPerMinute))
	}
	if c.RateLimit.Wait < 0 {
		errs.Add(errors.NewValidationError("rate_limit.wait", "must not be negative", c.RateLimit.Wait))
	}
	switch c.RateLimit.Backend {
	case BackendWindow, BackendTokenBucket:
	case BackendRedis:
		if c.Redis.Host == "" {
			errs.Add(errors.NewValidationError("redis.host", "required by the redis rate limit backend", c.Redis.Host))
		}
	default:
		errs.Add(errors.NewValidationError("rate_limit.backend", "must be window, token_bucket or redis", c.RateLimit.Backend))
	}

	if c.Request.TimeoutSeconds < 1 {
		errs.Add(errors.NewValidationError("request.timeout_seconds", "must be at least 1", c.Request.TimeoutSeconds))
	}
	if c.Request.MaxRetryAttempts < 1 {
		errs.Add(errors.NewValidationError("request.max_retry_attempts", "must be at least 1", c.Request.MaxRetryAttempts))
	}
	if c.Request.BackoffBase <= 0 || c.Request.BackoffBase > c.Request.BackoffMax {
		errs.Add(errors.NewValidationError("request.backoff_base", "must be positive and not above backoff_max", c.Request.BackoffBase))
	}
	if c.Request.BackoffMultiplier < 1 {
		errs.Add(errors.NewValidationError("request.backoff_multiplier", "must be at least 1", c.Request.BackoffMultiplier))
	}
	if c.Request.BackoffJitter < 0 || c.Request.BackoffJitter > 1 {
		errs.Add(errors.NewValidationError("request.backoff_jitter", "must be within [0, 1]", c.Request.BackoffJitter))
	}

	if c.Validation.MaxPromptLength <= 0 {
		errs.Add(errors.NewValidationError("validation.max_prompt_length", "must be positive", c.Validation.MaxPromptLength))
	}
	if c.Validation.MaxResponseLength <= 0 {
		errs.Add(errors.NewValidationError("validation.max_response_length", "must be positive", c.Validation.MaxResponseLength))
	}
	for _, p := range c.Validation.BlockedPatterns {
		if _, err := regexp.Compile(p); err != nil {
			errs.Add(errors.NewValidationError("validation.blocked_patterns", err.Error(), p))
		}
	}

	analyzer := c.Agents.CodeAnalyzer
	if analyzer.MaxConcurrency < 1 {
		errs.Add(errors.NewValidationError("agents.code_analyzer.max_concurrency", "must be at least 1", analyzer.MaxConcurrency))
	}
	if len(analyzer.FileExtensions) == 0 {
		errs.Add(errors.NewValidationError("agents.code_analyzer.file_extensions", "must not be empty", analyzer.FileExtensions))
	}
	for category, rules := range analyzer.Patterns {
		for _, rule := range rules {
			if _, err := regexp.Compile(rule.Pattern); err != nil {
				field := fmt.Sprintf("agents.code_analyzer.patterns.%s", category)
				errs.Add(errors.NewValidationError(field, err.Error(), rule.Pattern))
			}
		}
	}

	if c.ErrorTracking.Enabled && c.ErrorTracking.SentryDSN == "" {
		errs.Add(errors.NewValidationError("error_tracking.sentry_dsn", "required when error tracking is enabled", ""))
	}

	return errs.ToError()
}

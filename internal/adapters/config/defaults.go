package config

import "time"

// Default returns the built-in configuration every other source overrides
func Default() *Config {
	return &Config{
		App: AppConfig{
			Name:     "codeagents",
			Env:      "development",
			LogLevel: "info",
		},
		Model: ModelConfig{
			DefaultModel:     "gpt-3.5-turbo",
			FallbackModel:    "simple-regex",
			Temperature:      0.7,
			MaxTokens:        1000,
			KeyRotationHours: 24,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 60,
			Wait:              5 * time.Second,
			Backend:           BackendWindow,
		},
		Request: RequestConfig{
			TimeoutSeconds:    30,
			MaxRetryAttempts:  3,
			BackoffBase:       500 * time.Millisecond,
			BackoffMax:        10 * time.Second,
			BackoffMultiplier: 2,
			BackoffJitter:     0.2,
		},
		Validation: ValidationConfig{
			Enabled:           true,
			MaxPromptLength:   100000,
			MaxResponseLength: 20000,
			BlockedPatterns:   []string{`(?i)<script`, `(?i)javascript:`},
		},
		Agents: AgentsConfig{
			CodeAnalyzer: AnalyzerConfig{
				FileExtensions: []string{".py"},
				MaxConcurrency: 4,
				MaxFileBytes:   1 << 20,
				Patterns:       DefaultPatterns(),
			},
		},
		Redis: RedisConfig{
			Port: 6379,
		},
		Kafka: KafkaConfig{
			AnalysisTopic: "codeagents.analysis.completed",
		},
		ErrorTracking: ErrorTrackingConfig{
			Environment: "development",
		},
		Workers: WorkerConfig{
			WatchInterval:         5 * time.Minute,
			RotationCheckInterval: time.Hour,
		},
	}
}

// DefaultPatterns are the shipped deterministic analysis rules
func DefaultPatterns() map[string][]PatternConfig {
	return map[string][]PatternConfig{
		"security": {
			{
				Name:        "hardcoded_secret",
				Pattern:     `(?i)(password|passwd|pwd|secret|api_key|apikey|token)\s*[=:]\s*["'][^"']+["']`,
				Severity:    "high",
				Description: "Credential assigned from a string literal",
			},
			{
				Name:        "dynamic_eval",
				Pattern:     `\b(eval|exec)\s*\(`,
				Severity:    "high",
				Description: "Dynamic code execution",
			},
			{
				Name:        "shell_injection",
				Pattern:     `subprocess\.\w+\([^)]*shell\s*=\s*True`,
				Severity:    "high",
				Description: "Subprocess call through the shell",
			},
			{
				Name:        "unsafe_deserialization",
				Pattern:     `\bpickle\.loads?\s*\(`,
				Severity:    "medium",
				Description: "Unpickling untrusted data",
			},
		},
		"performance": {
			{
				Name:        "nested_loop",
				Pattern:     `(?m)^[ \t]*for\s.+:\s*\n[ \t]+for\s.+:`,
				Severity:    "medium",
				Description: "Nested loop directly inside another loop",
			},
			{
				Name:        "string_concat_in_loop",
				Pattern:     `(?m)^[ \t]+\w+\s*\+=\s*["']`,
				Severity:    "low",
				Description: "String concatenation with += inside a block",
			},
		},
		"style": {
			{
				Name:        "bare_except",
				Pattern:     `(?m)^[ \t]*except\s*:`,
				Severity:    "low",
				Description: "Bare except clause",
			},
			{
				Name:        "wildcard_import",
				Pattern:     `(?m)^from\s+\S+\s+import\s+\*`,
				Severity:    "low",
				Description: "Wildcard import",
			},
		},
	}
}

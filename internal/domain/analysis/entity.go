package analysis

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Severity ranks a finding
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// ParseSeverity normalizes a configured severity; anything unknown is medium.
func ParseSeverity(s string) Severity {
	switch Severity(strings.ToLower(strings.TrimSpace(s))) {
	case SeverityLow:
		return SeverityLow
	case SeverityHigh, "critical":
		return SeverityHigh
	default:
		return SeverityMedium
	}
}

// Rank orders severities, high first when sorting descending
func (s Severity) Rank() int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// Source tells which path produced a result
type Source string

const (
	// SourceModel is a full model-backed analysis
	SourceModel Source = "model"
	// SourceFallback is a deterministic analysis produced because the model path was unavailable
	SourceFallback Source = "fallback"
	// SourceDeterministic is an agent configured without a model
	SourceDeterministic Source = "deterministic"
)

// State is a step of one task execution
type State string

const (
	StateStart              State = "start"
	StateAttemptingModel    State = "attempting_model"
	StateAttemptingFallback State = "attempting_fallback"
	StateSuccess            State = "success"
	StateFailed             State = "failed"
)

// Terminal reports whether no further transition is possible
func (s State) Terminal() bool {
	return s == StateSuccess || s == StateFailed
}

// Task is one unit of analysis work
type Task struct {
	ID       string `json:"id"`
	Path     string `json:"path,omitempty"`
	Language string `json:"language,omitempty"`
	Content  string `json:"-"`
}

// NewTask creates a task for content read from path
func NewTask(path, content string) Task {
	return Task{
		ID:       uuid.New().String(),
		Path:     path,
		Language: LanguageOf(path),
		Content:  content,
	}
}

// LanguageOf guesses the source language from the file extension
func LanguageOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".py":
		return "python"
	case ".go":
		return "go"
	case ".js", ".mjs", ".cjs":
		return "javascript"
	case ".ts", ".tsx":
		return "typescript"
	case ".java":
		return "java"
	case ".rb":
		return "ruby"
	case ".sh":
		return "shell"
	default:
		return ""
	}
}

// Finding is a single issue reported for a task
type Finding struct {
	Category    string   `json:"category" yaml:"category"`
	Pattern     string   `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	Severity    Severity `json:"severity" yaml:"severity"`
	Line        int      `json:"line,omitempty" yaml:"line,omitempty"`
	Match       string   `json:"match,omitempty" yaml:"match,omitempty"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
}

// Usage is the token accounting attached to model-backed results
type Usage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

// Result is what an agent returns for one task
type Result struct {
	TaskID string `json:"task_id"`
	Agent  string `json:"agent"`
	Path   string `json:"path,omitempty"`

	// Source and Degraded let consumers tell a full model analysis from a pattern-based fallback
	Source         Source `json:"source"`
	Degraded       bool   `json:"degraded"`
	FallbackReason string `json:"fallback_reason,omitempty"`
	Model          string `json:"model"`

	Findings []Finding `json:"findings"`
	Summary  string    `json:"summary,omitempty"`
	// Raw is the unparsed model response when it could not be structured
	Raw   string `json:"raw,omitempty"`
	Usage Usage  `json:"usage"`

	Duration time.Duration `json:"duration"`
	States   []State       `json:"states"`
}

// CountBySeverity tallies findings per severity
func (r *Result) CountBySeverity() map[Severity]int {
	counts := make(map[Severity]int, 3)
	for _, f := range r.Findings {
		counts[f.Severity]++
	}
	return counts
}

// HighSeverityCount returns the number of high severity findings
func (r *Result) HighSeverityCount() int {
	return r.CountBySeverity()[SeverityHigh]
}

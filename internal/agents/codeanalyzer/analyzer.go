package codeanalyzer

import (
	"context"
	"unicode/utf8"

	"codeagents/internal/adapters/ai"
	"codeagents/internal/adapters/config"
	"codeagents/internal/agents"
	"codeagents/internal/domain/analysis"
	"codeagents/pkg/errors"
	"codeagents/pkg/logger"
	"codeagents/pkg/templates"
)

// Name identifies the code analyzer in results, metrics and events
const Name = "code_analyzer"

const promptTemplate = "code_analyzer/analyze"

// Categories the model is asked to report on
var Categories = []string{"security", "performance", "style", "bugs", "best_practices"}

// Options configures a CodeAnalyzer
type Options struct {
	Patterns map[string][]config.PatternConfig
	Policy   agents.FallbackPolicy
	// MaxPromptRunes caps the rendered prompt; source beyond it is truncated
	MaxPromptRunes int
	Prompts        *templates.Registry
	Tracker        errors.Tracker
}

// CodeAnalyzer finds issues in source files with a model, degrading to regex rules.
type CodeAnalyzer struct {
	manager   *ai.ModelManager
	matcher   *PatternMatcher
	prompts   *templates.Registry
	maxPrompt int
	executor  *agents.Executor
	log       *logger.Logger
}

var _ agents.Agent = (*CodeAnalyzer)(nil)

// New builds an analyzer bound to manager's model identity.
func New(manager *ai.ModelManager, opts Options) (*CodeAnalyzer, error) {
	if manager == nil {
		return nil, errors.Wrap(errors.ErrInvalidInput, "code analyzer requires a model manager")
	}

	matcher, err := NewPatternMatcher(opts.Patterns)
	if err != nil {
		return nil, errors.Wrap(err, "compile analyzer patterns")
	}

	prompts := opts.Prompts
	if prompts == nil {
		prompts = templates.Get()
	}
	if _, err := prompts.GetTemplate(promptTemplate); err != nil {
		return nil, err
	}

	a := &CodeAnalyzer{
		manager:   manager,
		matcher:   matcher,
		prompts:   prompts,
		maxPrompt: opts.MaxPromptRunes,
		log:       logger.Get().With("component", Name),
	}
	a.executor = agents.NewExecutor(Name, manager.Model(), opts.Policy, a, opts.Tracker)

	return a, nil
}

// Name implements agents.Agent
func (a *CodeAnalyzer) Name() string {
	return Name
}

// Model returns the bound model identity
func (a *CodeAnalyzer) Model() ai.ModelIdentity {
	return a.manager.Model()
}

// Usage returns token usage accumulated by the analyzer's model manager
func (a *CodeAnalyzer) Usage() *ai.UsageTracker {
	return a.manager.Usage()
}

// ExecuteWithFallback analyzes task with the model when one is configured and
// degrades to pattern matching when the model is unavailable.
func (a *CodeAnalyzer) ExecuteWithFallback(ctx context.Context, task analysis.Task) (*analysis.Result, error) {
	return a.executor.Execute(ctx, task)
}

// AnalyzeDeterministic runs the configured regex rules. Same content, same output.
func (a *CodeAnalyzer) AnalyzeDeterministic(_ context.Context, task analysis.Task) (*analysis.Result, error) {
	return &analysis.Result{
		Findings: a.matcher.Match(task.Content),
	}, nil
}

// AnalyzeWithModel asks the model for a review and merges it with the pattern findings.
func (a *CodeAnalyzer) AnalyzeWithModel(ctx context.Context, task analysis.Task) (*analysis.Result, error) {
	prompt, err := a.renderPrompt(task)
	if err != nil {
		return nil, err
	}

	completion, err := a.manager.GetCompletion(ctx, prompt)
	if err != nil {
		return nil, err
	}

	findings := a.matcher.Match(task.Content)
	res := &analysis.Result{
		Usage: analysis.Usage{
			PromptTokens:     completion.Usage.PromptTokens,
			CompletionTokens: completion.Usage.CompletionTokens,
			TotalTokens:      completion.Usage.TotalTokens,
		},
	}

	summary, modelFindings, ok := parseModelResponse(completion.Text, newLineIndex(task.Content).lines())
	if ok {
		res.Summary = summary
		findings = append(findings, modelFindings...)
		sortFindings(findings)
	} else {
		a.log.Debugw("Model response is not structured, keeping raw text",
			"task_id", task.ID,
			"path", task.Path,
		)
		res.Raw = completion.Text
	}
	res.Findings = findings

	return res, nil
}

type promptData struct {
	Path            string
	Language        string
	Content         string
	Categories      []string
	MaxContentRunes int
}

// renderPrompt truncates the source until the prompt fits the configured limit
func (a *CodeAnalyzer) renderPrompt(task analysis.Task) (string, error) {
	data := promptData{
		Path:       task.Path,
		Language:   task.Language,
		Content:    task.Content,
		Categories: Categories,
	}

	budget := utf8.RuneCountInString(task.Content)
	for range 4 {
		data.MaxContentRunes = budget
		prompt, err := a.prompts.Render(promptTemplate, data)
		if err != nil {
			return "", err
		}

		size := utf8.RuneCountInString(prompt)
		if a.maxPrompt <= 0 || size <= a.maxPrompt {
			return prompt, nil
		}
		budget = int(float64(budget) * float64(a.maxPrompt) / float64(size) * 0.9)
		if budget <= 0 {
			break
		}
	}

	return "", errors.Wrapf(errors.ErrInvalidInput, "prompt for %s cannot fit within %d characters", task.Path, a.maxPrompt)
}

package agents

import (
	"context"
	"fmt"

	"codeagents/internal/domain/analysis"
	"codeagents/pkg/errors"
)

// Agent is any component that analyzes a task with a model and degrades to a deterministic path.
type Agent interface {
	Name() string
	ExecuteWithFallback(ctx context.Context, task analysis.Task) (*analysis.Result, error)
}

// Strategy supplies the two analysis paths of a concrete agent.
type Strategy interface {
	// AnalyzeWithModel runs the model-backed path
	AnalyzeWithModel(ctx context.Context, task analysis.Task) (*analysis.Result, error)
	// AnalyzeDeterministic must not touch the network
	AnalyzeDeterministic(ctx context.Context, task analysis.Task) (*analysis.Result, error)
}

// DeterministicError is a failure of the deterministic path. It is always fatal for the task.
type DeterministicError struct {
	Agent string
	Err   error
}

func (e *DeterministicError) Error() string {
	return fmt.Sprintf("%s: deterministic analysis failed: %v", e.Agent, e.Err)
}

func (e *DeterministicError) Unwrap() []error {
	return []error{errors.ErrInternal, e.Err}
}

// ErrorKind is always internal_error
func (e *DeterministicError) ErrorKind() errors.Kind {
	return errors.KindInternal
}

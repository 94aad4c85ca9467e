package agents

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"codeagents/internal/adapters/ai"
	"codeagents/internal/domain/analysis"
	"codeagents/internal/metrics"
	"codeagents/pkg/errors"
	"codeagents/pkg/logger"
)

// Executor drives one task through Start → AttemptingModel → {Success | AttemptingFallback → {Success | Failed}}.
// AttemptingModel is skipped when the agent's model is deterministic.
type Executor struct {
	agent    string
	model    ai.ModelIdentity
	policy   FallbackPolicy
	strategy Strategy
	log      *logger.Logger
}

// NewExecutor creates an executor for agent. tracker may be nil.
func NewExecutor(agent string, model ai.ModelIdentity, policy FallbackPolicy, strategy Strategy, tracker errors.Tracker) *Executor {
	log := logger.Get().With("component", "agent_executor", "agent", agent, "model", model)
	if tracker != nil {
		log = log.WithErrorTracker(tracker)
	}

	return &Executor{
		agent:    agent,
		model:    model,
		policy:   policy,
		strategy: strategy,
		log:      log,
	}
}

// Execute runs the task and tags the result with the path that produced it.
func (e *Executor) Execute(ctx context.Context, task analysis.Task) (*analysis.Result, error) {
	start := time.Now()
	states := []analysis.State{analysis.StateStart}

	var (
		res    *analysis.Result
		source = analysis.SourceDeterministic
		cause  error
	)

	if !e.model.IsDeterministic() {
		states = append(states, analysis.StateAttemptingModel)

		var err error
		res, err = e.runModel(ctx, task)
		switch {
		case err == nil:
			source = analysis.SourceModel
		case e.policy.ShouldFallback(ctx, err):
			source, cause = analysis.SourceFallback, err
			metrics.RecordFallback(e.agent, err)
			e.log.Warnw("Model analysis unavailable, falling back to deterministic analysis",
				"task_id", task.ID,
				"path", task.Path,
				"kind", errors.KindOf(err).String(),
				"error", err,
			)
		default:
			return nil, e.fail(ctx, task, start, append(states, analysis.StateFailed), err)
		}
	}

	if source != analysis.SourceModel {
		states = append(states, analysis.StateAttemptingFallback)

		var err error
		res, err = e.runDeterministic(ctx, task)
		if err != nil {
			return nil, e.fail(ctx, task, start, append(states, analysis.StateFailed), err)
		}
	}

	res.TaskID = task.ID
	res.Agent = e.agent
	res.Path = task.Path
	res.Source = source
	res.Model = string(e.model)
	if cause != nil {
		res.Degraded = true
		res.FallbackReason = errors.KindOf(cause).String()
	}
	res.Duration = time.Since(start)
	res.States = append(states, analysis.StateSuccess)

	metrics.RecordAgentExecution(e.agent, string(source), res.Duration, nil)
	for sev, n := range res.CountBySeverity() {
		metrics.RecordFindings(e.agent, string(sev), n)
	}

	e.log.Debugw("Task analyzed",
		"task_id", task.ID,
		"path", task.Path,
		"source", source,
		"degraded", res.Degraded,
		"findings", len(res.Findings),
		"duration", res.Duration,
	)

	return res, nil
}

func (e *Executor) runModel(ctx context.Context, task analysis.Task) (res *analysis.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, fmt.Errorf("%w: model analysis panicked: %v", errors.ErrInternal, r)
			e.log.Debugw("Recovered panic", "stack", string(debug.Stack()))
		}
	}()

	res, err = e.strategy.AnalyzeWithModel(ctx, task)
	if err == nil && res == nil {
		err = errors.Wrap(errors.ErrInternal, "model analysis returned no result")
	}
	return res, err
}

func (e *Executor) runDeterministic(ctx context.Context, task analysis.Task) (res *analysis.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, &DeterministicError{Agent: e.agent, Err: fmt.Errorf("panic: %v", r)}
			e.log.Debugw("Recovered panic", "stack", string(debug.Stack()))
		}
	}()

	res, err = e.strategy.AnalyzeDeterministic(ctx, task)
	switch {
	case err != nil:
		return nil, &DeterministicError{Agent: e.agent, Err: err}
	case res == nil:
		return nil, &DeterministicError{Agent: e.agent, Err: errors.New("no result")}
	}
	return res, nil
}

func (e *Executor) fail(ctx context.Context, task analysis.Task, start time.Time, states []analysis.State, err error) error {
	metrics.RecordAgentExecution(e.agent, "", time.Since(start), err)

	kind := errors.KindOf(err)
	if kind == errors.KindInternal || kind == errors.KindUnsupportedOperation {
		e.log.ErrorWithContext(ctx, err, map[string]string{
			"agent": e.agent,
			"kind":  kind.String(),
		})
	} else {
		e.log.Warnw("Task failed",
			"task_id", task.ID,
			"path", task.Path,
			"kind", kind.String(),
			"states", states,
			"error", err,
		)
	}

	return &ExecutionError{Agent: e.agent, TaskID: task.ID, States: states, Err: err}
}

// ExecutionError is returned when a task ends in the Failed state.
type ExecutionError struct {
	Agent  string
	TaskID string
	States []analysis.State
	Err    error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("agent %s task %s: %v", e.Agent, e.TaskID, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

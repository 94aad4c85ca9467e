package agents

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeagents/internal/adapters/ai"
	"codeagents/internal/domain/analysis"
	"codeagents/internal/testsupport"
	"codeagents/pkg/errors"
)

type stubStrategy struct {
	modelCalls         atomic.Int32
	deterministicCalls atomic.Int32

	modelErr   error
	modelPanic bool
	detErr     error
	detPanic   bool
}

func (s *stubStrategy) AnalyzeWithModel(ctx context.Context, task analysis.Task) (*analysis.Result, error) {
	s.modelCalls.Add(1)
	if s.modelPanic {
		panic("model boom")
	}
	if s.modelErr != nil {
		return nil, s.modelErr
	}
	return &analysis.Result{
		Findings: []analysis.Finding{{Category: "bugs", Severity: analysis.SeverityMedium, Description: "from model"}},
		Summary:  "model summary",
	}, nil
}

func (s *stubStrategy) AnalyzeDeterministic(ctx context.Context, task analysis.Task) (*analysis.Result, error) {
	s.deterministicCalls.Add(1)
	if s.detPanic {
		panic("pattern boom")
	}
	if s.detErr != nil {
		return nil, s.detErr
	}
	return deterministicResult(), nil
}

func deterministicResult() *analysis.Result {
	return &analysis.Result{
		Findings: []analysis.Finding{{Category: "security", Pattern: "hardcoded_secret", Severity: analysis.SeverityHigh, Line: 1}},
	}
}

func completionFailure(kind errors.Kind) error {
	return &ai.CompletionError{Kind: kind, Model: ai.ModelGPT4, Attempts: 3, Err: errors.New("provider trouble")}
}

func newTestExecutor(model ai.ModelIdentity, strategy Strategy, tracker errors.Tracker) *Executor {
	return NewExecutor("test_agent", model, FallbackPolicy{Enabled: true}, strategy, tracker)
}

var testTask = analysis.Task{ID: "task-1", Path: "app.py", Content: `password = "hunter2"`}

func TestExecute_DeterministicModelSkipsModelPath(t *testing.T) {
	strategy := &stubStrategy{}
	exec := newTestExecutor(ai.ModelSimpleRegex, strategy, nil)

	res, err := exec.Execute(context.Background(), testTask)
	require.NoError(t, err)

	assert.Equal(t, int32(0), strategy.modelCalls.Load())
	assert.Equal(t, analysis.SourceDeterministic, res.Source)
	assert.False(t, res.Degraded)
	assert.Equal(t, []analysis.State{analysis.StateStart, analysis.StateAttemptingFallback, analysis.StateSuccess}, res.States)
	assert.Equal(t, "task-1", res.TaskID)
	assert.Equal(t, "test_agent", res.Agent)
	assert.Equal(t, "simple-regex", res.Model)
}

func TestExecute_ModelSuccess(t *testing.T) {
	strategy := &stubStrategy{}
	exec := newTestExecutor(ai.ModelGPT4, strategy, nil)

	res, err := exec.Execute(context.Background(), testTask)
	require.NoError(t, err)

	assert.Equal(t, analysis.SourceModel, res.Source)
	assert.False(t, res.Degraded)
	assert.Empty(t, res.FallbackReason)
	assert.Equal(t, int32(0), strategy.deterministicCalls.Load())
	assert.Equal(t, []analysis.State{analysis.StateStart, analysis.StateAttemptingModel, analysis.StateSuccess}, res.States)
}

func TestExecute_FallsBackOnUnavailability(t *testing.T) {
	for _, kind := range []errors.Kind{errors.KindRateLimited, errors.KindTimeout, errors.KindProviderUnavailable} {
		t.Run(kind.String(), func(t *testing.T) {
			strategy := &stubStrategy{modelErr: completionFailure(kind)}
			exec := newTestExecutor(ai.ModelGPT4, strategy, nil)

			res, err := exec.Execute(context.Background(), testTask)
			require.NoError(t, err)

			assert.Equal(t, analysis.SourceFallback, res.Source)
			assert.True(t, res.Degraded)
			assert.Equal(t, kind.String(), res.FallbackReason)
			assert.Equal(t, deterministicResult().Findings, res.Findings)
			assert.Equal(t, []analysis.State{
				analysis.StateStart,
				analysis.StateAttemptingModel,
				analysis.StateAttemptingFallback,
				analysis.StateSuccess,
			}, res.States)
		})
	}
}

func TestExecute_SurfacesDefects(t *testing.T) {
	kinds := []errors.Kind{
		errors.KindInvalidInput,
		errors.KindResponseValidationFailed,
		errors.KindUnsupportedOperation,
	}

	for _, kind := range kinds {
		t.Run(kind.String(), func(t *testing.T) {
			strategy := &stubStrategy{modelErr: completionFailure(kind)}
			exec := newTestExecutor(ai.ModelGPT4, strategy, nil)

			res, err := exec.Execute(context.Background(), testTask)
			require.Error(t, err)
			assert.Nil(t, res)
			assert.Equal(t, kind, errors.KindOf(err))
			assert.Equal(t, int32(0), strategy.deterministicCalls.Load())

			var execErr *ExecutionError
			require.True(t, errors.As(err, &execErr))
			assert.Equal(t, analysis.StateFailed, execErr.States[len(execErr.States)-1])
		})
	}
}

func TestExecute_FallbackDisabled(t *testing.T) {
	strategy := &stubStrategy{modelErr: completionFailure(errors.KindProviderUnavailable)}
	exec := NewExecutor("test_agent", ai.ModelGPT4, FallbackPolicy{}, strategy, nil)

	_, err := exec.Execute(context.Background(), testTask)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrProviderUnavailable))
	assert.Equal(t, int32(0), strategy.deterministicCalls.Load())
}

func TestExecute_CancelledContextDoesNotFallBack(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	strategy := &stubStrategy{modelErr: completionFailure(errors.KindTimeout)}
	exec := newTestExecutor(ai.ModelGPT4, strategy, nil)

	_, err := exec.Execute(ctx, testTask)
	require.Error(t, err)
	assert.Equal(t, int32(0), strategy.deterministicCalls.Load())
}

func TestExecute_DeterministicFailureIsInternal(t *testing.T) {
	tracker := testsupport.NewRecordingTracker()
	strategy := &stubStrategy{detErr: errors.ErrInvalidInput}
	exec := newTestExecutor(ai.ModelSimpleRegex, strategy, tracker)

	_, err := exec.Execute(context.Background(), testTask)
	require.Error(t, err)
	assert.Equal(t, errors.KindInternal, errors.KindOf(err))
	assert.True(t, errors.Is(err, errors.ErrInternal))
	assert.Len(t, tracker.Errors(), 1)
}

func TestExecute_DeterministicPanicIsInternal(t *testing.T) {
	strategy := &stubStrategy{modelErr: completionFailure(errors.KindRateLimited), detPanic: true}
	exec := newTestExecutor(ai.ModelGPT4, strategy, nil)

	_, err := exec.Execute(context.Background(), testTask)
	require.Error(t, err)
	assert.Equal(t, errors.KindInternal, errors.KindOf(err))

	var execErr *ExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.Equal(t, []analysis.State{
		analysis.StateStart,
		analysis.StateAttemptingModel,
		analysis.StateAttemptingFallback,
		analysis.StateFailed,
	}, execErr.States)
}

func TestExecute_ModelPanicIsSurfaced(t *testing.T) {
	strategy := &stubStrategy{modelPanic: true}
	exec := newTestExecutor(ai.ModelGPT4, strategy, nil)

	_, err := exec.Execute(context.Background(), testTask)
	require.Error(t, err)
	assert.Equal(t, errors.KindInternal, errors.KindOf(err))
	assert.Equal(t, int32(0), strategy.deterministicCalls.Load())
}

func TestExecute_NoStateReentered(t *testing.T) {
	strategy := &stubStrategy{modelErr: completionFailure(errors.KindTimeout)}
	exec := newTestExecutor(ai.ModelGPT4, strategy, nil)

	res, err := exec.Execute(context.Background(), testTask)
	require.NoError(t, err)

	seen := map[analysis.State]bool{}
	for _, s := range res.States {
		assert.False(t, seen[s], "state %s entered twice", s)
		seen[s] = true
	}
	assert.True(t, res.States[len(res.States)-1].Terminal())
}

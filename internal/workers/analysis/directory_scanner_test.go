package analysis

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "codeagents/internal/domain/analysis"
	"codeagents/pkg/errors"
)

type fakeAnalyzer struct {
	calls atomic.Int32
	err   error
}

func (f *fakeAnalyzer) AnalyzeDirectory(_ context.Context, dir string) (*domain.Report, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Report{
		Root:    dir,
		Results: []*domain.Result{{Path: dir + "/a.py", Usage: domain.Usage{TotalTokens: 1500}}},
	}, nil
}

func TestDirectoryScanner_RunStoresReport(t *testing.T) {
	analyzer := &fakeAnalyzer{}
	var handled *domain.Report
	scanner := NewDirectoryScanner(analyzer, "/src", time.Minute, WithReportHandler(func(r *domain.Report) {
		handled = r
	}))

	assert.Nil(t, scanner.LastReport())
	require.NoError(t, scanner.Run(context.Background()))

	require.NotNil(t, scanner.LastReport())
	assert.Equal(t, "/src", scanner.LastReport().Root)
	assert.Same(t, scanner.LastReport(), handled)
	assert.Equal(t, "directory_scanner", scanner.Name())
}

func TestDirectoryScanner_PropagatesErrors(t *testing.T) {
	analyzer := &fakeAnalyzer{err: errors.Wrap(errors.ErrNotFound, "directory /src")}
	scanner := NewDirectoryScanner(analyzer, "/src", time.Minute)

	err := scanner.Run(context.Background())
	assert.True(t, errors.Is(err, errors.ErrNotFound))
	assert.Nil(t, scanner.LastReport())
}

func TestDirectoryScanner_Lock(t *testing.T) {
	var (
		held     atomic.Bool
		released atomic.Int32
		names    []string
	)
	lock := func(_ context.Context, name string, ttl time.Duration) (func(context.Context) error, bool, error) {
		names = append(names, name)
		assert.Equal(t, time.Minute, ttl)
		if !held.CompareAndSwap(false, true) {
			return nil, false, nil
		}
		return func(context.Context) error {
			released.Add(1)
			held.Store(false)
			return nil
		}, true, nil
	}

	analyzer := &fakeAnalyzer{}
	scanner := NewDirectoryScanner(analyzer, "/src", time.Minute, WithLock(lock))

	require.NoError(t, scanner.Run(context.Background()))
	assert.Equal(t, int32(1), analyzer.calls.Load())
	assert.Equal(t, int32(1), released.Load())

	// another holder has the lock: the run is skipped, not failed
	held.Store(true)
	require.NoError(t, scanner.Run(context.Background()))
	assert.Equal(t, int32(1), analyzer.calls.Load())
	assert.Equal(t, []string{"scan:/src", "scan:/src"}, names)
}

func TestDirectoryScanner_LockError(t *testing.T) {
	lock := func(context.Context, string, time.Duration) (func(context.Context) error, bool, error) {
		return nil, false, errors.New("connection refused")
	}
	analyzer := &fakeAnalyzer{}
	scanner := NewDirectoryScanner(analyzer, "/src", time.Minute, WithLock(lock))

	require.Error(t, scanner.Run(context.Background()))
	assert.Equal(t, int32(0), analyzer.calls.Load())
}

package analysis

import (
	"context"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	domain "codeagents/internal/domain/analysis"
	"codeagents/internal/workers"
	"codeagents/pkg/errors"
)

// DirectoryAnalyzer is the slice of the analysis service the scanner needs
type DirectoryAnalyzer interface {
	AnalyzeDirectory(ctx context.Context, dir string) (*domain.Report, error)
}

// LockFunc takes a named lock for ttl. ok is false when another process holds it.
type LockFunc func(ctx context.Context, name string, ttl time.Duration) (release func(context.Context) error, ok bool, err error)

// DirectoryScanner re-analyzes one directory every interval.
// With a LockFunc set, concurrent watchers of the same directory take turns.
type DirectoryScanner struct {
	*workers.BaseWorker
	analyzer DirectoryAnalyzer
	dir      string
	lock     LockFunc
	onReport func(*domain.Report)

	mu   sync.RWMutex
	last *domain.Report
}

// ScannerOption customizes a DirectoryScanner
type ScannerOption func(*DirectoryScanner)

// WithLock serializes scans across processes
func WithLock(lock LockFunc) ScannerOption {
	return func(s *DirectoryScanner) { s.lock = lock }
}

// WithReportHandler is called after every completed scan
func WithReportHandler(fn func(*domain.Report)) ScannerOption {
	return func(s *DirectoryScanner) { s.onReport = fn }
}

// NewDirectoryScanner creates a scanner worker for dir
func NewDirectoryScanner(analyzer DirectoryAnalyzer, dir string, interval time.Duration, opts ...ScannerOption) *DirectoryScanner {
	s := &DirectoryScanner{
		BaseWorker: workers.NewBaseWorker("directory_scanner", interval, true),
		analyzer:   analyzer,
		dir:        dir,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run performs one scan
func (s *DirectoryScanner) Run(ctx context.Context) error {
	if s.lock != nil {
		release, ok, err := s.lock(ctx, "scan:"+s.dir, s.Interval())
		if err != nil {
			return errors.Wrap(err, "acquire scan lock")
		}
		if !ok {
			s.Log().Infow("Scan already running elsewhere, skipping", "dir", s.dir)
			return nil
		}
		defer func() {
			// ctx may already be cancelled at shutdown
			releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := release(releaseCtx); err != nil {
				s.Log().Warnw("Failed to release scan lock", "dir", s.dir, "error", err)
			}
		}()
	}

	report, err := s.analyzer.AnalyzeDirectory(ctx, s.dir)
	if err != nil {
		return err
	}

	summary := report.Summarize()
	s.Log().Infow("Scan completed",
		"dir", s.dir,
		"files", summary.Files,
		"failed", summary.Failed,
		"degraded", summary.Degraded,
		"findings", summary.Findings,
		"tokens", humanize.Comma(summary.Tokens),
		"duration", report.Duration,
	)

	s.mu.Lock()
	s.last = report
	s.mu.Unlock()

	if s.onReport != nil {
		s.onReport(report)
	}
	return nil
}

// LastReport returns the most recent completed scan, nil before the first one
func (s *DirectoryScanner) LastReport() *domain.Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

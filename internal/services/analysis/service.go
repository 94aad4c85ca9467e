package analysis

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"codeagents/internal/agents"
	domain "codeagents/internal/domain/analysis"
	"codeagents/internal/events"
	"codeagents/pkg/errors"
	"codeagents/pkg/logger"
)

// Config bounds which files are analyzed and how many at once
type Config struct {
	FileExtensions []string
	MaxFileBytes   int64
	MaxConcurrency int
}

// Service analyzes files and directories with one agent and publishes the results
type Service struct {
	agent     agents.Agent
	publisher events.Publisher
	cfg       Config
	log       *logger.Logger
}

// NewService creates the analysis service. publisher may be nil.
func NewService(agent agents.Agent, publisher events.Publisher, cfg Config) *Service {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	if cfg.MaxConcurrency < 1 {
		cfg.MaxConcurrency = 1
	}

	return &Service{
		agent:     agent,
		publisher: publisher,
		cfg:       cfg,
		log:       logger.Get().With("component", "analysis_service", "agent", agent.Name()),
	}
}

// AnalyzeFile analyzes a single regular file.
// A missing path is ErrNotFound; a directory, oversized or binary file is ErrInvalidInput.
func (s *Service) AnalyzeFile(ctx context.Context, path string) (*domain.Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errors.Wrapf(errors.ErrNotFound, "file %s", path)
		}
		return nil, errors.Wrapf(err, "stat %s", path)
	}
	if !info.Mode().IsRegular() {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "%s is not a regular file", path)
	}
	if s.cfg.MaxFileBytes > 0 && info.Size() > s.cfg.MaxFileBytes {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "%s is %d bytes, limit is %d", path, info.Size(), s.cfg.MaxFileBytes)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	if !utf8.Valid(data) {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "%s is not valid UTF-8 text", path)
	}

	res, err := s.agent.ExecuteWithFallback(ctx, domain.NewTask(path, string(data)))
	if err != nil {
		return nil, err
	}

	if err := s.publisher.PublishAnalysisCompleted(ctx, res); err != nil {
		s.log.Warnw("Failed to publish analysis event", "path", path, "error", err)
	}

	return res, nil
}

// AnalyzeDirectory walks dir recursively and analyzes every file with a configured extension.
// Per-file failures are collected in the report; only cancellation aborts the run.
func (s *Service) AnalyzeDirectory(ctx context.Context, dir string) (*domain.Report, error) {
	start := time.Now()

	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errors.Wrapf(errors.ErrNotFound, "directory %s", dir)
		}
		return nil, errors.Wrapf(err, "stat %s", dir)
	}
	if !info.IsDir() {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "%s is not a directory", dir)
	}

	files, err := s.collectFiles(dir)
	if err != nil {
		return nil, err
	}

	s.log.Infow("Analyzing directory", "dir", dir, "files", len(files), "concurrency", s.cfg.MaxConcurrency)

	report := &domain.Report{Root: dir}
	var (
		mu        sync.Mutex
		wg        sync.WaitGroup
		semaphore = make(chan struct{}, s.cfg.MaxConcurrency)
	)

launch:
	for _, path := range files {
		select {
		case <-ctx.Done():
			break launch
		case semaphore <- struct{}{}:
		}

		wg.Add(1)
		go func(path string) {
			defer wg.Done()
			defer func() { <-semaphore }()

			res, err := s.AnalyzeFile(ctx, path)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.log.Warnw("File analysis failed", "path", path, "kind", errors.KindOf(err).String(), "error", err)
				report.Failures = append(report.Failures, domain.FileFailure{
					Path:  path,
					Kind:  errors.KindOf(err).String(),
					Error: err.Error(),
				})
				return
			}
			report.Results = append(report.Results, res)
		}(path)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, errors.Wrapf(err, "analysis of %s interrupted", dir)
	}

	report.Sort()
	report.Duration = time.Since(start)

	summary := report.Summarize()
	s.log.Infow("Directory analyzed",
		"dir", dir,
		"files", summary.Files,
		"failed", summary.Failed,
		"degraded", summary.Degraded,
		"findings", summary.Findings,
		"duration", report.Duration,
	)

	return report, nil
}

// collectFiles lists matching files in lexical order, skipping hidden directories
func (s *Service) collectFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() && s.matches(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "walk %s", dir)
	}
	return files, nil
}

func (s *Service) matches(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, want := range s.cfg.FileExtensions {
		if ext == strings.ToLower(want) {
			return true
		}
	}
	return false
}

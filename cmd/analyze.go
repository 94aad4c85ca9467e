package main

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	domain "codeagents/internal/domain/analysis"
	"codeagents/pkg/errors"
)

const failOnNone = "none"

var (
	outputFormat string
	failOn       string
)

func newAnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze <path>",
		Short: "Analyze a file or every matching file under a directory",
		Args:  cobra.ExactArgs(1),
		RunE:  runAnalyze,
	}

	cmd.Flags().StringVarP(&outputFormat, "format", "o", formatText, "Output format: text or json")
	cmd.Flags().StringVar(&failOn, "fail-on", string(domain.SeverityHigh),
		`Exit 1 when a finding has at least this severity: low, medium, high or "none"`)
	return cmd
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	if err := validateOutputFlags(); err != nil {
		return err
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	c, err := newContainer()
	if err != nil {
		return err
	}
	defer c.Shutdown()

	report, err := analyzePath(ctx, args[0], c.Service)
	if err != nil {
		return err
	}

	if err := writeReport(cmd.OutOrStdout(), outputFormat, report); err != nil {
		return err
	}

	if exceedsThreshold(report, failOn) {
		return exitCodeError{code: exitFindings}
	}
	return nil
}

// pathAnalyzer is the slice of the analysis service the command needs
type pathAnalyzer interface {
	AnalyzeFile(ctx context.Context, path string) (*domain.Result, error)
	AnalyzeDirectory(ctx context.Context, dir string) (*domain.Report, error)
}

// analyzePath analyzes a directory as a whole or a single file as a one-entry report
func analyzePath(ctx context.Context, path string, svc pathAnalyzer) (*domain.Report, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(errors.ErrNotFound, "path %s", path)
		}
		return nil, errors.Wrapf(err, "stat %s", path)
	}

	if info.IsDir() {
		return svc.AnalyzeDirectory(ctx, path)
	}

	start := time.Now()
	res, err := svc.AnalyzeFile(ctx, path)
	if err != nil {
		return nil, err
	}
	return &domain.Report{Root: path, Results: []*domain.Result{res}, Duration: time.Since(start)}, nil
}

func validateOutputFlags() error {
	switch outputFormat {
	case formatText, formatJSON:
	default:
		return errors.NewValidationError("format", "must be text or json", outputFormat)
	}

	switch strings.ToLower(failOn) {
	case failOnNone, string(domain.SeverityLow), string(domain.SeverityMedium), string(domain.SeverityHigh):
	default:
		return errors.NewValidationError("fail-on", "must be low, medium, high or none", failOn)
	}
	return nil
}

// exceedsThreshold reports whether any finding reaches the fail-on severity
func exceedsThreshold(report *domain.Report, threshold string) bool {
	if strings.EqualFold(threshold, failOnNone) {
		return false
	}

	floor := domain.ParseSeverity(threshold).Rank()
	for _, res := range report.Results {
		for _, f := range res.Findings {
			if f.Severity.Rank() >= floor {
				return true
			}
		}
	}
	return false
}

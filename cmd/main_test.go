package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeagents/internal/adapters/ai"
	domain "codeagents/internal/domain/analysis"
	"codeagents/pkg/errors"
)

func sampleReport() *domain.Report {
	return &domain.Report{
		Root: "/src",
		Results: []*domain.Result{
			{
				Path:   "/src/app.py",
				Source: domain.SourceDeterministic,
				Findings: []domain.Finding{
					{Category: "security", Pattern: "hardcoded_secret", Severity: domain.SeverityHigh, Line: 3, Description: "Hardcoded credential"},
					{Category: "style", Pattern: "bare_except", Severity: domain.SeverityLow, Line: 9},
				},
			},
			{
				Path:           "/src/util.py",
				Source:         domain.SourceFallback,
				Degraded:       true,
				FallbackReason: "rate_limited",
				Usage:          domain.Usage{TotalTokens: 1234},
			},
		},
		Failures: []domain.FileFailure{{Path: "/src/blob.py", Kind: "invalid_input", Error: "not valid UTF-8 text"}},
		Duration: 1500 * time.Millisecond,
	}
}

func TestWriteReport_Text(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeReport(&buf, formatText, sampleReport()))

	out := buf.String()
	assert.Contains(t, out, "HIGH   3    security       Hardcoded credential (hardcoded_secret)")
	assert.Contains(t, out, "LOW    9    style          bare_except")
	assert.Contains(t, out, "/src/util.py  [fallback: rate_limited]")
	assert.Contains(t, out, "FAILED (invalid_input)")
	assert.Contains(t, out, "2 files analyzed, 1 failed, 1 degraded: 2 findings (1 high, 0 medium, 1 low), 1,234 tokens in 1.5s")
}

func TestWriteReport_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeReport(&buf, formatJSON, sampleReport()))

	var decoded struct {
		Root    string `json:"root"`
		Summary struct {
			Files    int `json:"files"`
			Findings int `json:"findings"`
		} `json:"summary"`
		Results []json.RawMessage `json:"results"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "/src", decoded.Root)
	assert.Equal(t, 2, decoded.Summary.Files)
	assert.Equal(t, 2, decoded.Summary.Findings)
	assert.Len(t, decoded.Results, 2)
}

func TestExceedsThreshold(t *testing.T) {
	report := sampleReport()

	assert.True(t, exceedsThreshold(report, "high"))
	assert.True(t, exceedsThreshold(report, "LOW"))
	assert.False(t, exceedsThreshold(report, "none"))

	report.Results[0].Findings = report.Results[0].Findings[1:]
	assert.False(t, exceedsThreshold(report, "medium"))
}

type fakeService struct {
	files, dirs int
}

func (f *fakeService) AnalyzeFile(_ context.Context, path string) (*domain.Result, error) {
	f.files++
	return &domain.Result{Path: path}, nil
}

func (f *fakeService) AnalyzeDirectory(_ context.Context, dir string) (*domain.Report, error) {
	f.dirs++
	return &domain.Report{Root: dir}, nil
}

func TestAnalyzePath(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.py")
	require.NoError(t, os.WriteFile(file, []byte("x = 1\n"), 0o644))

	svc := &fakeService{}

	report, err := analyzePath(context.Background(), file, svc)
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	assert.Equal(t, file, report.Root)

	_, err = analyzePath(context.Background(), dir, svc)
	require.NoError(t, err)
	assert.Equal(t, 1, svc.files)
	assert.Equal(t, 1, svc.dirs)

	_, err = analyzePath(context.Background(), filepath.Join(dir, "missing"), svc)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestWriteModels(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeModels(&buf, ai.Catalogue()))

	out := buf.String()
	assert.Contains(t, out, "gpt-4o-mini")
	assert.Contains(t, out, "128,000")
	assert.Contains(t, out, "simple-regex")
}

func TestRun_AnalyzeDeterministic(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "login.py"), []byte("password = \"hunter2\"\n"), 0o644))

	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("CONFIG_PATH", "")

	assert.Equal(t, exitFindings, run([]string{"analyze", "--model", "simple-regex", dir}))
	assert.Equal(t, exitOK, run([]string{"analyze", "--model", "simple-regex", "--fail-on", "none", dir}))
	assert.Equal(t, exitError, run([]string{"analyze", "--model", "simple-regex", filepath.Join(dir, "missing")}))
	assert.Equal(t, exitError, run([]string{"analyze", "--format", "xml", dir}))
}

package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSeverity(t *testing.T) {
	assert.Equal(t, SeverityHigh, ParseSeverity("HIGH"))
	assert.Equal(t, SeverityHigh, ParseSeverity("critical"))
	assert.Equal(t, SeverityLow, ParseSeverity(" low "))
	assert.Equal(t, SeverityMedium, ParseSeverity(""))
	assert.Equal(t, SeverityMedium, ParseSeverity("whatever"))
}

func TestNewTask(t *testing.T) {
	a := NewTask("pkg/app.py", "x = 1")
	b := NewTask("pkg/app.py", "x = 1")

	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, "python", a.Language)
	assert.Equal(t, "", LanguageOf("Makefile"))
}

func TestReportSummarize(t *testing.T) {
	report := &Report{
		Root: "src",
		Results: []*Result{
			{Path: "b.py", Degraded: true, Findings: []Finding{{Severity: SeverityHigh}, {Severity: SeverityLow}}},
			{Path: "a.py", Usage: Usage{TotalTokens: 120}, Findings: []Finding{{Severity: SeverityHigh}}},
		},
		Failures: []FileFailure{{Path: "c.py", Kind: "internal_error"}},
	}
	report.Sort()

	assert.Equal(t, "a.py", report.Results[0].Path)

	s := report.Summarize()
	assert.Equal(t, 2, s.Files)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 1, s.Degraded)
	assert.Equal(t, 3, s.Findings)
	assert.Equal(t, 2, s.BySeverity[SeverityHigh])
	assert.Equal(t, int64(120), s.Tokens)
}

func TestStateTerminal(t *testing.T) {
	assert.True(t, StateSuccess.Terminal())
	assert.True(t, StateFailed.Terminal())
	assert.False(t, StateAttemptingModel.Terminal())
}

package codeanalyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeagents/internal/domain/analysis"
)

func TestParseModelResponse(t *testing.T) {
	tests := []struct {
		name         string
		text         string
		wantOK       bool
		wantSummary  string
		wantFindings int
	}{
		{
			name:         "bare json",
			text:         `Here you go: {"summary": "fine", "findings": [{"category": "style", "description": "long line", "line": 2}]} thanks`,
			wantOK:       true,
			wantSummary:  "fine",
			wantFindings: 1,
		},
		{
			name:         "fenced json",
			text:         "```json\n{\"findings\": [{\"category\": \"bugs\", \"issue\": \"off by one\"}]}\n```",
			wantOK:       true,
			wantFindings: 1,
		},
		{
			name:         "json keyed by category",
			text:         `{"summary": "two issues", "security": ["hardcoded password"], "performance": [{"severity": "low", "description": "nested loop"}], "style": []}`,
			wantOK:       true,
			wantSummary:  "two issues",
			wantFindings: 2,
		},
		{
			name:         "yaml",
			text:         "```yaml\nsummary: ok\nfindings:\n  - category: security\n    severity: high\n    description: secret in source\n```",
			wantOK:       true,
			wantSummary:  "ok",
			wantFindings: 1,
		},
		{
			name:   "prose",
			text:   "The code looks reasonable overall.",
			wantOK: false,
		},
		{
			name:   "empty object",
			text:   "{}",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			summary, findings, ok := parseModelResponse(tt.text, 10)
			require.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantSummary, summary)
			assert.Len(t, findings, tt.wantFindings)
		})
	}
}

func TestParseModelResponse_NormalizesFindings(t *testing.T) {
	text := `{"findings": [
		{"category": " Security ", "severity": "CRITICAL", "line": 99, "description": "outside file"},
		{"severity": "low", "line": 3, "description": "no category"},
		{"category": "bugs"}
	]}`

	_, findings, ok := parseModelResponse(text, 5)
	require.True(t, ok)
	require.Len(t, findings, 2)

	assert.Equal(t, "security", findings[0].Category)
	assert.Equal(t, analysis.SeverityHigh, findings[0].Severity)
	assert.Equal(t, 0, findings[0].Line)

	assert.Equal(t, "general", findings[1].Category)
	assert.Equal(t, 3, findings[1].Line)
}

package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeagents/internal/domain/analysis"
	"codeagents/pkg/errors"
)

type recordingProducer struct {
	topic  string
	key    string
	event  interface{}
	err    error
	closed bool
}

func (p *recordingProducer) Publish(_ context.Context, topic string, key string, event interface{}) error {
	p.topic, p.key, p.event = topic, key, event
	return p.err
}

func (p *recordingProducer) Close() error {
	p.closed = true
	return nil
}

func sampleResult() *analysis.Result {
	return &analysis.Result{
		TaskID:         "task-1",
		Agent:          "code_analyzer",
		Path:           "src/app\xff.py",
		Source:         analysis.SourceFallback,
		Degraded:       true,
		FallbackReason: "rate_limited",
		Model:          "gpt-4",
		Findings: []analysis.Finding{
			{Severity: analysis.SeverityHigh},
			{Severity: analysis.SeverityLow},
		},
		Usage:    analysis.Usage{TotalTokens: 0},
		Duration: 1500 * time.Millisecond,
	}
}

func TestNewAnalysisCompleted(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("X", 3600))
	event := NewAnalysisCompleted(sampleResult(), at)

	assert.NotEmpty(t, event.EventID)
	assert.Equal(t, "src/app.py", event.Path)
	assert.Equal(t, "fallback", event.Source)
	assert.Equal(t, 2, event.Findings)
	assert.Equal(t, 1, event.HighSeverity)
	assert.Equal(t, int64(1500), event.DurationMs)
	assert.Equal(t, time.UTC, event.OccurredAt.Location())

	data, err := json.Marshal(event)
	require.NoError(t, err)

	var fields map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &fields))
	for _, key := range []string{"event_id", "task_id", "agent", "path", "source", "degraded", "fallback_reason", "model", "findings", "high_severity", "tokens", "duration_ms", "occurred_at"} {
		assert.Contains(t, fields, key)
	}
}

func TestKafkaPublisher(t *testing.T) {
	producer := &recordingProducer{}
	p := NewKafkaPublisher(producer, "analysis")

	require.NoError(t, p.PublishAnalysisCompleted(context.Background(), sampleResult()))
	assert.Equal(t, "analysis", producer.topic)
	assert.Equal(t, "src/app.py", producer.key)

	event, ok := producer.event.(AnalysisCompleted)
	require.True(t, ok)
	assert.True(t, event.Degraded)

	producer.err = errors.New("broker down")
	assert.Error(t, p.PublishAnalysisCompleted(context.Background(), sampleResult()))

	require.NoError(t, p.Close())
	assert.True(t, producer.closed)
}

func TestNoopPublisher(t *testing.T) {
	var p Publisher = NoopPublisher{}
	assert.NoError(t, p.PublishAnalysisCompleted(context.Background(), sampleResult()))
	assert.NoError(t, p.Close())
}

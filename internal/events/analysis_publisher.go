package events

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"codeagents/internal/domain/analysis"
	"codeagents/internal/metrics"
	"codeagents/pkg/logger"
)

// AnalysisCompleted is emitted once per analyzed file
type AnalysisCompleted struct {
	EventID        string    `json:"event_id"`
	TaskID         string    `json:"task_id"`
	Agent          string    `json:"agent"`
	Path           string    `json:"path"`
	Source         string    `json:"source"`
	Degraded       bool      `json:"degraded"`
	FallbackReason string    `json:"fallback_reason,omitempty"`
	Model          string    `json:"model"`
	Findings       int       `json:"findings"`
	HighSeverity   int       `json:"high_severity"`
	Tokens         int64     `json:"tokens"`
	DurationMs     int64     `json:"duration_ms"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// NewAnalysisCompleted builds the event for res
func NewAnalysisCompleted(res *analysis.Result, occurredAt time.Time) AnalysisCompleted {
	return AnalysisCompleted{
		EventID:        uuid.New().String(),
		TaskID:         res.TaskID,
		Agent:          res.Agent,
		Path:           strings.ToValidUTF8(res.Path, ""),
		Source:         string(res.Source),
		Degraded:       res.Degraded,
		FallbackReason: res.FallbackReason,
		Model:          res.Model,
		Findings:       len(res.Findings),
		HighSeverity:   res.HighSeverityCount(),
		Tokens:         res.Usage.TotalTokens,
		DurationMs:     res.Duration.Milliseconds(),
		OccurredAt:     occurredAt.UTC(),
	}
}

// Publisher emits analysis events
type Publisher interface {
	PublishAnalysisCompleted(ctx context.Context, res *analysis.Result) error
	Close() error
}

// Producer is the transport the Kafka publisher writes through
type Producer interface {
	Publish(ctx context.Context, topic string, key string, event interface{}) error
	Close() error
}

// KafkaPublisher publishes analysis events to Kafka
type KafkaPublisher struct {
	producer Producer
	topic    string
	now      func() time.Time
	log      *logger.Logger
}

// NewKafkaPublisher creates a publisher writing to topic
func NewKafkaPublisher(producer Producer, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		producer: producer,
		topic:    topic,
		now:      time.Now,
		log:      logger.Get().With("component", "analysis_publisher", "topic", topic),
	}
}

// PublishAnalysisCompleted sends the event keyed by file path so one file's events stay ordered
func (p *KafkaPublisher) PublishAnalysisCompleted(ctx context.Context, res *analysis.Result) error {
	event := NewAnalysisCompleted(res, p.now())

	err := p.producer.Publish(ctx, p.topic, event.Path, event)
	metrics.RecordEventPublished(p.topic, err)
	if err != nil {
		return err
	}

	p.log.Debugw("Analysis event published", "event_id", event.EventID, "path", event.Path)
	return nil
}

// Close flushes and closes the producer
func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}

// NoopPublisher drops every event, used when no brokers are configured
type NoopPublisher struct{}

func (NoopPublisher) PublishAnalysisCompleted(context.Context, *analysis.Result) error {
	return nil
}

func (NoopPublisher) Close() error {
	return nil
}

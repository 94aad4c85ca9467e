package kafka

// Topic definitions for Kafka event streaming
const (
	// TopicAnalysisCompleted receives one event per analyzed file
	TopicAnalysisCompleted = "codeagents.analysis.completed"
)

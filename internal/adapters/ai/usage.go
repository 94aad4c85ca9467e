package ai

import (
	"sort"
	"sync"
)

// ModelUsage captures accumulated usage for one model.
type ModelUsage struct {
	Model        ModelIdentity
	Requests     int64
	InputTokens  int64
	OutputTokens int64
	CostUSD      float64
}

// UsageTracker tracks token and cost usage per model.
type UsageTracker struct {
	mu    sync.Mutex
	usage map[ModelIdentity]*ModelUsage
}

// NewUsageTracker creates a new tracker instance.
func NewUsageTracker() *UsageTracker {
	return &UsageTracker{usage: make(map[ModelIdentity]*ModelUsage)}
}

// Record calculates cost based on model pricing and records the usage.
func (t *UsageTracker) Record(model ModelIdentity, usage Usage) ModelUsage {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.usage[model]
	if !ok {
		entry = &ModelUsage{Model: model}
		t.usage[model] = entry
	}

	entry.Requests++
	entry.InputTokens += usage.PromptTokens
	entry.OutputTokens += usage.CompletionTokens
	entry.CostUSD += calculateCost(model.Info(), usage)

	return *entry
}

// Snapshot returns a copy of the current usage, ordered by model.
func (t *UsageTracker) Snapshot() []ModelUsage {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]ModelUsage, 0, len(t.usage))
	for _, v := range t.usage {
		out = append(out, *v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Model < out[j].Model })

	return out
}

// Total sums usage across all models.
func (t *UsageTracker) Total() ModelUsage {
	var total ModelUsage
	for _, u := range t.Snapshot() {
		total.Requests += u.Requests
		total.InputTokens += u.InputTokens
		total.OutputTokens += u.OutputTokens
		total.CostUSD += u.CostUSD
	}
	return total
}

func calculateCost(model ModelInfo, usage Usage) float64 {
	return (float64(usage.PromptTokens)/1000.0)*model.InputCostPer1K + (float64(usage.CompletionTokens)/1000.0)*model.OutputCostPer1K
}

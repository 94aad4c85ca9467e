package ai

import (
	"sort"
	"strings"

	"codeagents/pkg/errors"
)

// ModelIdentity names the model an agent is bound to: an AI variant or the deterministic sentinel.
type ModelIdentity string

const (
	ModelGPT4       ModelIdentity = "gpt-4"
	ModelGPT35Turbo ModelIdentity = "gpt-3.5-turbo"
	ModelGPT4o      ModelIdentity = "gpt-4o"
	ModelGPT4oMini  ModelIdentity = "gpt-4o-mini"

	// ModelSimpleRegex selects the offline pattern-matching path; it never calls a provider.
	ModelSimpleRegex ModelIdentity = "simple-regex"
)

// ModelInfo describes a model's limits and pricing.
type ModelInfo struct {
	Identity        ModelIdentity
	DisplayName     string
	ContextWindow   int
	MaxOutputTokens int
	InputCostPer1K  float64
	OutputCostPer1K float64
}

var catalogue = map[ModelIdentity]ModelInfo{
	ModelGPT4: {
		Identity:        ModelGPT4,
		DisplayName:     "GPT-4",
		ContextWindow:   8192,
		MaxOutputTokens: 8192,
		InputCostPer1K:  0.03,
		OutputCostPer1K: 0.06,
	},
	ModelGPT35Turbo: {
		Identity:        ModelGPT35Turbo,
		DisplayName:     "GPT-3.5 Turbo",
		ContextWindow:   16385,
		MaxOutputTokens: 4096,
		InputCostPer1K:  0.0005,
		OutputCostPer1K: 0.0015,
	},
	ModelGPT4o: {
		Identity:        ModelGPT4o,
		DisplayName:     "GPT-4o",
		ContextWindow:   128000,
		MaxOutputTokens: 16384,
		InputCostPer1K:  0.0025,
		OutputCostPer1K: 0.01,
	},
	ModelGPT4oMini: {
		Identity:        ModelGPT4oMini,
		DisplayName:     "GPT-4o mini",
		ContextWindow:   128000,
		MaxOutputTokens: 16384,
		InputCostPer1K:  0.00015,
		OutputCostPer1K: 0.0006,
	},
	ModelSimpleRegex: {
		Identity:    ModelSimpleRegex,
		DisplayName: "Pattern matcher (offline)",
	},
}

// aliases accepts the enum-style names used in configuration files
var aliases = map[string]ModelIdentity{
	"GPT4":       ModelGPT4,
	"GPT35":      ModelGPT35Turbo,
	"GPT4O":      ModelGPT4o,
	"GPT4O_MINI": ModelGPT4oMini,
	"SIMPLE":     ModelSimpleRegex,
}

// ParseModelIdentity resolves a model name or alias.
func ParseModelIdentity(name string) (ModelIdentity, error) {
	name = strings.TrimSpace(name)
	if id, ok := aliases[strings.ToUpper(name)]; ok {
		return id, nil
	}

	id := ModelIdentity(strings.ToLower(name))
	if _, ok := catalogue[id]; ok {
		return id, nil
	}

	return "", errors.NewValidationError("model", "unknown model identity", name)
}

// IsDeterministic reports whether the identity is the offline sentinel.
func (m ModelIdentity) IsDeterministic() bool {
	return m == ModelSimpleRegex
}

// Info returns catalogue data for the identity.
func (m ModelIdentity) Info() ModelInfo {
	return catalogue[m]
}

func (m ModelIdentity) String() string {
	return string(m)
}

// Catalogue lists every known identity, AI variants first.
func Catalogue() []ModelInfo {
	out := make([]ModelInfo, 0, len(catalogue))
	for _, info := range catalogue {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool {
		di, dj := out[i].Identity.IsDeterministic(), out[j].Identity.IsDeterministic()
		if di != dj {
			return dj
		}
		return out[i].Identity < out[j].Identity
	})
	return out
}

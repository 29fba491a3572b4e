// Package llm adapts the provider SDK clients to the single completion call
// the extractor needs.
package llm

import (
	"context"
)

// Name identifies an LLM provider.
type Name string

// Known providers, in fallback order.
const (
	Anthropic Name = "anthropic"
	Gemini    Name = "gemini"
)

// Tier is a model size tier chosen from the estimated chunk size.
type Tier string

// Size tiers.
const (
	TierSmall  Tier = "small"
	TierMedium Tier = "medium"
	TierLarge  Tier = "large"
)

// Tiers lists the tiers from smallest to largest.
var Tiers = []Tier{TierSmall, TierMedium, TierLarge}

// Prompt is one single-turn completion request.
type Prompt struct {
	System    string
	User      string
	MaxTokens int
}

// Model is a concrete model behind a tier.
type Model struct {
	Name     string
	MaxChars int
}

// Provider completes prompts against one vendor's models.
type Provider interface {
	Name() Name
	// Model returns the model configured for tier.
	Model(tier Tier) Model
	// Complete sends the prompt to model and returns the raw response text.
	Complete(ctx context.Context, p Prompt, model string) (string, error)
}

// Models maps tiers to models for one provider.
type Models map[Tier]Model

// Get returns the model for tier, falling back to the next larger
// configured tier and then to any configured tier.
func (m Models) Get(tier Tier) Model {
	if mm, ok := m[tier]; ok && mm.Name != "" {
		return mm
	}
	start := 0
	for i, t := range Tiers {
		if t == tier {
			start = i
		}
	}
	for _, t := range Tiers[start:] {
		if mm, ok := m[t]; ok && mm.Name != "" {
			return mm
		}
	}
	for _, t := range Tiers {
		if mm, ok := m[t]; ok && mm.Name != "" {
			return mm
		}
	}
	return Model{}
}

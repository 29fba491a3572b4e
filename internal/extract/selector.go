package extract

import (
	"github.com/sells-group/checklist-cli/internal/llm"
)

// Selection is a provider and the model it should use for one chunk.
type Selection struct {
	Provider llm.Provider
	Tier     llm.Tier
	Model    string
}

// ProviderSelector maps an estimated chunk size to a tier and picks the
// primary provider's model for it. Selection never looks at failures;
// fallback is the executor's job.
type ProviderSelector struct {
	providers []llm.Provider
	smallMax  int
	mediumMax int
}

// NewProviderSelector takes providers in preference order. The first is
// primary; the second, if any, is the alternate.
func NewProviderSelector(providers []llm.Provider, smallMax, mediumMax int) *ProviderSelector {
	return &ProviderSelector{
		providers: providers,
		smallMax:  smallMax,
		mediumMax: mediumMax,
	}
}

// TierFor returns the tier for an estimated size.
func (s *ProviderSelector) TierFor(size int) llm.Tier {
	switch {
	case size <= s.smallMax:
		return llm.TierSmall
	case size <= s.mediumMax:
		return llm.TierMedium
	default:
		return llm.TierLarge
	}
}

// Select returns the primary provider and its model for size.
func (s *ProviderSelector) Select(size int) (Selection, error) {
	if len(s.providers) == 0 {
		return Selection{}, ErrProviderUnavailable
	}
	tier := s.TierFor(size)
	p := s.providers[0]
	return Selection{Provider: p, Tier: tier, Model: p.Model(tier).Name}, nil
}

// Alternate returns the fallback provider's model for tier.
func (s *ProviderSelector) Alternate(tier llm.Tier) (Selection, bool) {
	if len(s.providers) < 2 {
		return Selection{}, false
	}
	p := s.providers[1]
	return Selection{Provider: p, Tier: tier, Model: p.Model(tier).Name}, true
}

// Primary returns the preferred provider, or nil.
func (s *ProviderSelector) Primary() llm.Provider {
	if len(s.providers) == 0 {
		return nil
	}
	return s.providers[0]
}

// ChunkBudget returns the chunk size limit every configured provider can
// take at its largest tier, or fallback when none sets one.
func (s *ProviderSelector) ChunkBudget(fallback int) int {
	budget := 0
	for _, p := range s.providers {
		mc := p.Model(llm.TierLarge).MaxChars
		if mc <= 0 {
			continue
		}
		if budget == 0 || mc < budget {
			budget = mc
		}
	}
	if budget == 0 {
		return fallback
	}
	return budget
}

package llm

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/checklist-cli/internal/config"
	"github.com/sells-group/checklist-cli/internal/resilience"
	"github.com/sells-group/checklist-cli/pkg/anthropic"
	"github.com/sells-group/checklist-cli/pkg/gemini"
)

// ModelsFrom converts configured tier models.
func ModelsFrom(tm config.TierModels) Models {
	return Models{
		TierSmall:  Model{Name: tm.Small.Name, MaxChars: tm.Small.MaxChars},
		TierMedium: Model{Name: tm.Medium.Name, MaxChars: tm.Medium.MaxChars},
		TierLarge:  Model{Name: tm.Large.Name, MaxChars: tm.Large.MaxChars},
	}
}

// FromConfig builds the enabled providers in fallback order (anthropic,
// then gemini), each guarded by its own limiter and breaker. The returned
// registry exposes breaker states for health reporting.
func FromConfig(ctx context.Context, cfg *config.Config) ([]Provider, *resilience.Breakers, error) {
	breakers := resilience.NewBreakers()
	var out []Provider

	if cfg.Anthropic.Enabled {
		if cfg.Anthropic.Key == "" {
			return nil, nil, eris.New("llm: anthropic enabled without a key")
		}
		var opts []anthropic.Option
		if cfg.Anthropic.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(cfg.Anthropic.BaseURL))
		}
		p := NewAnthropicProvider(
			anthropic.NewClient(cfg.Anthropic.Key, opts...),
			ModelsFrom(cfg.Anthropic.Models),
			cfg.Anthropic.Temperature,
		)
		out = append(out, guardFor(p, cfg.Anthropic, breakers))
	}

	if cfg.Gemini.Enabled {
		if cfg.Gemini.Key == "" {
			return nil, nil, eris.New("llm: gemini enabled without a key")
		}
		var opts []gemini.Option
		if cfg.Gemini.BaseURL != "" {
			opts = append(opts, gemini.WithBaseURL(cfg.Gemini.BaseURL))
		}
		client, err := gemini.NewClient(ctx, cfg.Gemini.Key, opts...)
		if err != nil {
			return nil, nil, eris.Wrap(err, "llm: build gemini provider")
		}
		p := NewGeminiProvider(client, ModelsFrom(cfg.Gemini.Models), cfg.Gemini.Temperature)
		out = append(out, guardFor(p, cfg.Gemini, breakers))
	}

	names := make([]string, len(out))
	for i, p := range out {
		names[i] = string(p.Name())
	}
	zap.L().Info("llm: providers configured", zap.Strings("providers", names))

	return out, breakers, nil
}

func guardFor(p Provider, pc config.ProviderConfig, breakers *resilience.Breakers) *Guarded {
	cb := breakers.Register(string(p.Name()),
		resilience.BreakerConfigFrom(pc.CircuitFailureThreshold, pc.CircuitCooldownSecs))
	return Guard(p, PerMinute(pc.RequestsPerMinute), cb)
}

package llm

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/checklist-cli/internal/resilience"
	"github.com/sells-group/checklist-cli/pkg/anthropic"
)

// systemCacheTTL keeps the shared system prompt cached across the chunks of
// one extraction.
const systemCacheTTL = "5m"

// AnthropicProvider completes prompts with the Anthropic Messages API.
type AnthropicProvider struct {
	client      anthropic.Client
	models      Models
	temperature float64
}

// NewAnthropicProvider wraps an anthropic client.
func NewAnthropicProvider(client anthropic.Client, models Models, temperature float64) *AnthropicProvider {
	return &AnthropicProvider{client: client, models: models, temperature: temperature}
}

// Name implements Provider.
func (p *AnthropicProvider) Name() Name { return Anthropic }

// Model implements Provider.
func (p *AnthropicProvider) Model(tier Tier) Model { return p.models.Get(tier) }

// Complete implements Provider.
func (p *AnthropicProvider) Complete(ctx context.Context, pr Prompt, model string) (string, error) {
	temp := p.temperature
	resp, err := p.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:          model,
		MaxTokens:      int64(pr.MaxTokens),
		System:         pr.System,
		SystemCacheTTL: systemCacheTTL,
		User:           pr.User,
		Temperature:    &temp,
	})
	if err != nil {
		if code := anthropic.StatusCode(err); resilience.IsTransientHTTPStatus(code) {
			return "", resilience.NewTransientError(err, code)
		}
		return "", err
	}

	resp.Usage.LogCost(model, "checklist_extract")

	if resp.Truncated() {
		return "", eris.Errorf("anthropic: response truncated at %d tokens", pr.MaxTokens)
	}
	return resp.Text, nil
}

package llm

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/checklist-cli/pkg/gemini"
)

// GeminiProvider completes prompts with the Gemini API in JSON mode.
type GeminiProvider struct {
	client      gemini.Client
	models      Models
	temperature float64
}

// NewGeminiProvider wraps a gemini client.
func NewGeminiProvider(client gemini.Client, models Models, temperature float64) *GeminiProvider {
	return &GeminiProvider{client: client, models: models, temperature: temperature}
}

// Name implements Provider.
func (p *GeminiProvider) Name() Name { return Gemini }

// Model implements Provider.
func (p *GeminiProvider) Model(tier Tier) Model { return p.models.Get(tier) }

// Complete implements Provider.
func (p *GeminiProvider) Complete(ctx context.Context, pr Prompt, model string) (string, error) {
	temp := float32(p.temperature)
	resp, err := p.client.GenerateContent(ctx, gemini.GenerateRequest{
		Model:           model,
		System:          pr.System,
		Prompt:          pr.User,
		MaxOutputTokens: int32(pr.MaxTokens),
		Temperature:     &temp,
		JSON:            true,
	})
	if err != nil {
		return "", err
	}

	resp.Usage.LogUsage(model, "checklist_extract")

	if strings.EqualFold(resp.FinishReason, "MAX_TOKENS") {
		return "", eris.Errorf("gemini: response truncated at %d tokens", pr.MaxTokens)
	}
	return resp.Text, nil
}

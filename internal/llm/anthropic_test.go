package llm

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/checklist-cli/internal/resilience"
	"github.com/sells-group/checklist-cli/pkg/anthropic"
	anthropicmocks "github.com/sells-group/checklist-cli/pkg/anthropic/mocks"
)

func testModels() Models {
	return Models{
		TierSmall:  {Name: "claude-haiku-4-5-20251001", MaxChars: 12000},
		TierMedium: {Name: "claude-sonnet-4-5-20250929", MaxChars: 12000},
		TierLarge:  {Name: "claude-opus-4-6", MaxChars: 12000},
	}
}

func TestAnthropicProvider_Complete(t *testing.T) {
	client := anthropicmocks.NewMockClient(t)
	client.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return req.Model == "claude-haiku-4-5-20251001" &&
			req.MaxTokens == 4096 &&
			req.System == "sys" &&
			req.SystemCacheTTL == "5m" &&
			req.User == "rows"
	})).Return(&anthropic.MessageResponse{
		Text:       `[{"question":"Q"}]`,
		StopReason: "end_turn",
	}, nil)

	p := NewAnthropicProvider(client, testModels(), 0)
	assert.Equal(t, Anthropic, p.Name())
	assert.Equal(t, "claude-opus-4-6", p.Model(TierLarge).Name)

	text, err := p.Complete(context.Background(), Prompt{System: "sys", User: "rows", MaxTokens: 4096}, "claude-haiku-4-5-20251001")
	require.NoError(t, err)
	assert.Equal(t, `[{"question":"Q"}]`, text)
}

func TestAnthropicProvider_Truncated(t *testing.T) {
	client := anthropicmocks.NewMockClient(t)
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(&anthropic.MessageResponse{
		Text:       `[{"question":`,
		StopReason: "max_tokens",
	}, nil)

	p := NewAnthropicProvider(client, testModels(), 0)
	_, err := p.Complete(context.Background(), Prompt{User: "rows", MaxTokens: 100}, "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "truncated")
}

func TestAnthropicProvider_PlainErrorPassesThrough(t *testing.T) {
	client := anthropicmocks.NewMockClient(t)
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(nil, errors.New("bad request"))

	p := NewAnthropicProvider(client, testModels(), 0)
	_, err := p.Complete(context.Background(), Prompt{User: "rows"}, "m")
	require.Error(t, err)

	var te *resilience.TransientError
	assert.False(t, errors.As(err, &te))
}

func TestAnthropicProvider_OverloadIsTransient(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(529)
		w.Write([]byte(`{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`)) //nolint:errcheck
	}))
	defer ts.Close()

	p := NewAnthropicProvider(anthropic.NewClient("k", anthropic.WithBaseURL(ts.URL)), testModels(), 0)
	_, err := p.Complete(context.Background(), Prompt{User: "rows", MaxTokens: 10}, "m")
	require.Error(t, err)

	var te *resilience.TransientError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, 529, te.StatusCode)
	assert.True(t, resilience.IsTransient(err))
}

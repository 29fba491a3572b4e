package extract

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/checklist-cli/internal/llm"
	"github.com/sells-group/checklist-cli/internal/model"
)

// Execution is the outcome of one successful chunk call.
type Execution struct {
	Items    []model.ChecklistItem
	Warnings []string
	Provider llm.Name
	Model    string
	Tier     llm.Tier
	FellBack bool
}

// Executor runs one attempt at extracting a chunk.
type Executor interface {
	Execute(ctx context.Context, c model.Chunk) (*Execution, error)
}

// ChunkExecutor sends a chunk to the selected provider and validates the
// response shape. When the primary call fails and an alternate provider is
// configured it makes exactly one call to the alternate. It never retries.
type ChunkExecutor struct {
	selector    *ProviderSelector
	prompts     *PromptBuilder
	callTimeout time.Duration
}

// NewChunkExecutor creates an executor. callTimeout bounds each provider
// call; a timeout is an ordinary failure.
func NewChunkExecutor(selector *ProviderSelector, prompts *PromptBuilder, callTimeout time.Duration) *ChunkExecutor {
	return &ChunkExecutor{selector: selector, prompts: prompts, callTimeout: callTimeout}
}

// Execute implements Executor.
func (e *ChunkExecutor) Execute(ctx context.Context, c model.Chunk) (*Execution, error) {
	sel, err := e.selector.Select(c.EstimatedSize)
	if err != nil {
		return nil, err
	}

	prompt, err := e.prompts.Build(c)
	if err != nil {
		return nil, err
	}

	exec, err := e.call(ctx, sel, prompt)
	if err == nil {
		return exec, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}

	alt, ok := e.selector.Alternate(sel.Tier)
	if !ok {
		return nil, err
	}

	zap.L().Warn("extract: primary provider failed, trying alternate",
		zap.String("primary", string(sel.Provider.Name())),
		zap.String("alternate", string(alt.Provider.Name())),
		zap.String("rows", model.RowRange(c.StartIndex, c.EndIndex)),
		zap.Error(err),
	)

	exec, altErr := e.call(ctx, alt, prompt)
	if altErr != nil {
		return nil, eris.Wrapf(altErr, "alternate after primary failed (%v)", err)
	}
	exec.FellBack = true
	return exec, nil
}

func (e *ChunkExecutor) call(ctx context.Context, sel Selection, prompt llm.Prompt) (*Execution, error) {
	callCtx := ctx
	if e.callTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, e.callTimeout)
		defer cancel()
	}

	name := sel.Provider.Name()
	text, err := sel.Provider.Complete(callCtx, prompt, sel.Model)
	if err != nil {
		return nil, eris.Wrapf(err, "%s %s", name, sel.Model)
	}

	items, warnings, err := DecodeItems(text)
	if err != nil {
		return nil, eris.Wrapf(err, "%s %s", name, sel.Model)
	}

	return &Execution{
		Items:    items,
		Warnings: warnings,
		Provider: name,
		Model:    sel.Model,
		Tier:     sel.Tier,
	}, nil
}

// Package extract turns spreadsheet rows into checklist items by sending
// size-bounded chunks of rows to an LLM, one chunk at a time, and merging
// the results in row order.
package extract

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/checklist-cli/internal/llm"
	"github.com/sells-group/checklist-cli/internal/model"
	"github.com/sells-group/checklist-cli/internal/progress"
)

// Input is the row extractor's output for one sheet.
type Input struct {
	// JobID tags progress events. A random id is used when empty.
	JobID    string
	Header   string
	DataRows []string
}

// Extractor wires chunking, provider selection, retries, and merging.
// It holds no per-job state and is safe for concurrent Extract calls when
// its providers and sink are.
type Extractor struct {
	opts     Options
	sink     progress.Sink
	selector *ProviderSelector
	exec     Executor
	est      SizeEstimator
}

// New creates an Extractor over providers in preference order. A nil sink
// discards progress.
func New(providers []llm.Provider, opts Options, sink progress.Sink) (*Extractor, error) {
	opts = opts.withDefaults()
	if sink == nil {
		sink = progress.Discard
	}

	prompts, err := NewPromptBuilder(opts.MaxOutputTokens)
	if err != nil {
		return nil, err
	}

	selector := NewProviderSelector(providers, opts.TierSmallMaxChars, opts.TierMediumMaxChars)
	return &Extractor{
		opts:     opts,
		sink:     sink,
		selector: selector,
		exec:     NewChunkExecutor(selector, prompts, opts.CallTimeout),
		est:      NewSizeEstimator(opts.SizeOverhead, opts.OverheadByModel),
	}, nil
}

// Plan returns the chunks Extract would send for in.
func (e *Extractor) Plan(in Input) []model.Chunk {
	sizing := ""
	if p := e.selector.Primary(); p != nil {
		sizing = p.Model(llm.TierLarge).Name
	}
	chunker := NewChunker(e.est, sizing, e.opts.SmallDatasetRows)
	budget := e.selector.ChunkBudget(e.opts.DefaultMaxChars)
	return chunker.Plan(in.Header, in.DataRows, budget, e.opts.MinRowsPerChunk)
}

// Extract processes every chunk and returns the merged result. Chunk
// failures are reported in the result, not as an error. If ctx is
// cancelled the partial result is returned together with the context error.
func (e *Extractor) Extract(ctx context.Context, in Input) (*model.ExtractionResult, error) {
	if e.selector.Primary() == nil {
		return nil, ErrProviderUnavailable
	}
	if len(in.DataRows) == 0 {
		return nil, ErrEmptyInput
	}
	if strings.TrimSpace(in.JobID) == "" {
		in.JobID = uuid.NewString()
	}

	log := zap.L().With(zap.String("job_id", in.JobID))
	start := time.Now()

	chunks := e.Plan(in)
	log.Info("extract: starting",
		zap.Int("rows", len(in.DataRows)),
		zap.Int("chunks", len(chunks)),
		zap.String("provider", string(e.selector.Primary().Name())),
	)
	e.publish(in.JobID, len(chunks), model.StatusStarted,
		fmt.Sprintf("%d rows in %d chunks", len(in.DataRows), len(chunks)))

	coordinator := NewRetryCoordinator(e.exec, e.sink, RetryPolicy{
		MaxRetries:  e.opts.MaxRetries,
		BackoffBase: e.opts.BackoffBase,
		BackoffMax:  e.opts.BackoffMax,
		Jitter:      e.opts.Jitter,
	}, in.JobID)
	results := NewSequentialScheduler(coordinator).RunAll(ctx, chunks)

	res := Merge(results)
	res.JobID = in.JobID

	log.Info("extract: complete",
		zap.Int("items", len(res.Items)),
		zap.Int("failed_chunks", len(res.Failures)),
		zap.Int("warnings", len(res.Warnings)),
		zap.Duration("elapsed", time.Since(start)),
	)
	e.publish(in.JobID, len(chunks), model.StatusCompleted,
		fmt.Sprintf("%d items, %d of %d chunks failed", len(res.Items), len(res.Failures), len(chunks)))

	if err := ctx.Err(); err != nil {
		return &res, eris.Wrap(err, "extract: cancelled")
	}
	return &res, nil
}

func (e *Extractor) publish(jobID string, total int, status model.ProgressStatus, msg string) {
	e.sink.Publish(model.ProgressEvent{
		JobID:       jobID,
		ChunkIndex:  -1,
		TotalChunks: total,
		Status:      status,
		Message:     msg,
		Timestamp:   time.Now(),
	})
}

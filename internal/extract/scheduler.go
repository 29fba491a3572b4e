package extract

import (
	"context"

	"github.com/sells-group/checklist-cli/internal/model"
)

// ChunkRunner processes one chunk to a final result.
type ChunkRunner interface {
	Run(ctx context.Context, c model.Chunk, index, total int) model.ChunkResult
}

// SequentialScheduler runs chunks one at a time in index order. A failed
// chunk never stops the ones after it.
type SequentialScheduler struct {
	runner ChunkRunner
}

// NewSequentialScheduler creates a scheduler.
func NewSequentialScheduler(runner ChunkRunner) *SequentialScheduler {
	return &SequentialScheduler{runner: runner}
}

// RunAll returns one result per chunk, in chunk order. Once ctx is done the
// remaining chunks are recorded as failed with the context error.
func (s *SequentialScheduler) RunAll(ctx context.Context, chunks []model.Chunk) []model.ChunkResult {
	results := make([]model.ChunkResult, 0, len(chunks))
	for i, c := range chunks {
		if err := ctx.Err(); err != nil {
			results = append(results, model.ChunkResult{
				ChunkIndex: i,
				Err:        err.Error(),
				StartIndex: c.StartIndex,
				EndIndex:   c.EndIndex,
				RowCount:   c.RowCount(),
			})
			continue
		}
		results = append(results, s.runner.Run(ctx, c, i, len(chunks)))
	}
	return results
}

package extract

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/checklist-cli/internal/model"
	"github.com/sells-group/checklist-cli/internal/progress"
	"github.com/sells-group/checklist-cli/internal/resilience"
)

// RetryPolicy bounds the attempts made for one chunk.
type RetryPolicy struct {
	MaxRetries  int
	BackoffBase time.Duration
	BackoffMax  time.Duration
	Jitter      float64
}

// RetryCoordinator runs a chunk through an Executor with bounded retries
// and exponential backoff, reporting each attempt to a progress sink.
type RetryCoordinator struct {
	exec   Executor
	sink   progress.Sink
	policy RetryPolicy
	jobID  string
	now    func() time.Time
}

// NewRetryCoordinator creates a coordinator for one job. A nil sink
// discards events.
func NewRetryCoordinator(exec Executor, sink progress.Sink, policy RetryPolicy, jobID string) *RetryCoordinator {
	if sink == nil {
		sink = progress.Discard
	}
	return &RetryCoordinator{exec: exec, sink: sink, policy: policy, jobID: jobID, now: time.Now}
}

// MaxAttempts is the total attempts per chunk.
func (r *RetryCoordinator) MaxAttempts() int {
	return r.policy.MaxRetries + 1
}

// Run always returns a ChunkResult; exhausting every attempt produces a
// failed result rather than an error.
func (r *RetryCoordinator) Run(ctx context.Context, c model.Chunk, index, total int) model.ChunkResult {
	res := model.ChunkResult{
		ChunkIndex: index,
		StartIndex: c.StartIndex,
		EndIndex:   c.EndIndex,
		RowCount:   c.RowCount(),
	}
	maxAttempts := r.MaxAttempts()
	rows := model.RowRange(c.StartIndex, c.EndIndex)

	emit := func(attempt int, status model.ProgressStatus, msg string) {
		r.sink.Publish(model.ProgressEvent{
			JobID:       r.jobID,
			ChunkIndex:  index,
			TotalChunks: total,
			Attempt:     attempt,
			MaxAttempts: maxAttempts,
			Status:      status,
			Message:     msg,
			Timestamp:   r.now(),
		})
	}

	if err := ctx.Err(); err != nil {
		res.Err = err.Error()
		emit(0, model.StatusFailed, res.Err)
		return res
	}

	logRetry := resilience.RetryLogger("extract", fmt.Sprintf("job %s chunk %d (%s)", r.jobID, index, rows))
	cfg := resilience.RetryConfig{
		MaxAttempts:    maxAttempts,
		InitialBackoff: r.policy.BackoffBase,
		MaxBackoff:     r.policy.BackoffMax,
		Multiplier:     2,
		JitterFraction: r.policy.Jitter,
		ShouldRetry:    retryable,
		OnAttempt: func(attempt int) {
			res.Attempts = attempt
			emit(attempt, model.StatusProcessing, rows)
		},
		OnRetry: func(attempt int, err error, delay time.Duration) {
			logRetry(attempt, err, delay)
			emit(attempt, model.StatusRetrying, fmt.Sprintf("%v; retrying in %s", err, delay))
		},
	}

	exec, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (*Execution, error) {
		return r.exec.Execute(ctx, c)
	})
	if err != nil {
		res.Err = err.Error()
		zap.L().Error("extract: chunk failed",
			zap.String("job_id", r.jobID),
			zap.Int("chunk", index),
			zap.String("rows", rows),
			zap.Int("attempts", res.Attempts),
			zap.Error(err),
		)
		emit(res.Attempts, model.StatusFailed, res.Err)
		return res
	}

	res.Success = true
	res.Items = exec.Items
	res.Warnings = exec.Warnings
	res.Provider = string(exec.Provider)
	res.Model = exec.Model
	emit(res.Attempts, model.StatusSuccess, fmt.Sprintf("%d items from %s", len(exec.Items), rows))
	return res
}

// retryable treats every chunk failure as worth another attempt except
// caller cancellation and a missing provider.
func retryable(err error) bool {
	return !errors.Is(err, context.Canceled) && !errors.Is(err, ErrProviderUnavailable)
}

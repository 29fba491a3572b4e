package model

import "time"

// ProgressStatus is the lifecycle stage reported by a ProgressEvent.
type ProgressStatus string

// Progress statuses, in the order a chunk normally passes through them.
const (
	StatusStarted    ProgressStatus = "started"
	StatusProcessing ProgressStatus = "processing"
	StatusSuccess    ProgressStatus = "success"
	StatusRetrying   ProgressStatus = "retrying"
	StatusFailed     ProgressStatus = "failed"
	StatusCompleted  ProgressStatus = "completed"
)

// ProgressEvent is an ephemeral observation of extraction progress.
// ChunkIndex is -1 for job-level events (started, completed).
type ProgressEvent struct {
	JobID       string         `json:"job_id"`
	ChunkIndex  int            `json:"chunk_index"`
	TotalChunks int            `json:"total_chunks"`
	Attempt     int            `json:"attempt"`
	MaxAttempts int            `json:"max_attempts"`
	Status      ProgressStatus `json:"status"`
	Message     string         `json:"message,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
}

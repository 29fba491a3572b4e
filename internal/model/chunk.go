package model

import "fmt"

// Chunk is a contiguous slice of source data rows plus the shared header.
// StartIndex and EndIndex are 0-based, inclusive positions in the original
// data-row sequence.
type Chunk struct {
	Header        string   `json:"header"`
	Rows          []string `json:"rows"`
	StartIndex    int      `json:"start_index"`
	EndIndex      int      `json:"end_index"`
	EstimatedSize int      `json:"estimated_size"`
}

// RowCount returns the number of data rows in the chunk.
func (c Chunk) RowCount() int {
	return len(c.Rows)
}

// ChunkResult is the final outcome of processing one chunk. Items carry
// placeholder IDs until the merge step renumbers them.
type ChunkResult struct {
	Success    bool            `json:"success"`
	ChunkIndex int             `json:"chunk_index"`
	Items      []ChecklistItem `json:"items,omitempty"`
	Err        string          `json:"error,omitempty"`
	Warnings   []string        `json:"warnings,omitempty"`
	StartIndex int             `json:"start_index"`
	EndIndex   int             `json:"end_index"`
	RowCount   int             `json:"row_count"`
	Attempts   int             `json:"attempts"`
	Provider   string          `json:"provider,omitempty"`
	Model      string          `json:"model,omitempty"`
}

// ChunkFailure records a chunk that produced no items.
type ChunkFailure struct {
	ChunkIndex   int    `json:"chunk_index" yaml:"chunk_index"`
	Error        string `json:"error" yaml:"error"`
	StartIndex   int    `json:"start_index" yaml:"start_index"`
	EndIndex     int    `json:"end_index" yaml:"end_index"`
	AffectedRows string `json:"affected_rows" yaml:"affected_rows"`
	RowCount     int    `json:"row_count" yaml:"row_count"`
}

// RowRange formats a 0-based inclusive index range as 1-based data row
// numbers, e.g. "rows 11-20".
func RowRange(start, end int) string {
	if start == end {
		return fmt.Sprintf("row %d", start+1)
	}
	return fmt.Sprintf("rows %d-%d", start+1, end+1)
}

// ExtractionResult is the merged output of one extraction run.
type ExtractionResult struct {
	JobID       string          `json:"job_id" yaml:"job_id"`
	Items       []ChecklistItem `json:"items" yaml:"items"`
	Failures    []ChunkFailure  `json:"failures" yaml:"failures"`
	Warnings    []string        `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	TotalChunks int             `json:"total_chunks" yaml:"total_chunks"`
	TotalRows   int             `json:"total_rows" yaml:"total_rows"`
}

// Partial reports whether some chunks failed while others succeeded.
func (r *ExtractionResult) Partial() bool {
	return len(r.Failures) > 0 && len(r.Failures) < r.TotalChunks
}

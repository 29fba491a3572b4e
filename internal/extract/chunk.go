package extract

import (
	"slices"

	"github.com/sells-group/checklist-cli/internal/model"
)

// Chunker splits data rows into contiguous, size-bounded chunks.
type Chunker struct {
	est   SizeEstimator
	model string
	// smallDatasetRows enables the single-chunk short-circuit for inputs at
	// or below this many rows. Zero disables it.
	smallDatasetRows int
}

// NewChunker returns a chunker that estimates sizes for model.
func NewChunker(est SizeEstimator, model string, smallDatasetRows int) Chunker {
	return Chunker{est: est, model: model, smallDatasetRows: smallDatasetRows}
}

// Plan chunks rows, sending the whole input as one chunk when it fits, or
// when it is a small dataset that overshoots maxChars by at most a quarter.
func (c Chunker) Plan(header string, rows []string, maxChars, minRows int) []model.Chunk {
	if len(rows) == 0 {
		return nil
	}
	total := c.est.Estimate(header, rows, c.model)
	if maxChars <= 0 || total <= maxChars ||
		(len(rows) <= c.smallDatasetRows && total <= maxChars+maxChars/4) {
		return []model.Chunk{newChunk(header, rows, 0, len(rows)-1, total)}
	}
	return c.Chunk(header, rows, maxChars, minRows)
}

// Chunk greedily fills chunks up to maxChars. A chunk is closed only when
// the next row would overflow it and it already holds minRows rows, so a
// single oversized row still gets a chunk. A short trailing chunk is folded
// into its predecessor; no chunk but a sole one has fewer than minRows rows.
func (c Chunker) Chunk(header string, rows []string, maxChars, minRows int) []model.Chunk {
	n := len(rows)
	if n == 0 {
		return nil
	}
	if minRows < 1 {
		minRows = 1
	}

	base := len(header) + c.est.Overhead(c.model)

	var chunks []model.Chunk
	start, size := 0, base
	for i, row := range rows {
		cost := RowCost(row)
		if maxChars > 0 && size+cost > maxChars && i-start >= minRows {
			chunks = append(chunks, newChunk(header, rows, start, i-1, size))
			start, size = i, base
		}
		size += cost
	}
	last := newChunk(header, rows, start, n-1, size)

	if k := len(chunks); k > 0 && last.RowCount() < minRows {
		prev := chunks[k-1]
		chunks[k-1] = newChunk(header, rows, prev.StartIndex, n-1, prev.EstimatedSize+size-base)
		return chunks
	}
	return append(chunks, last)
}

func newChunk(header string, rows []string, start, end, size int) model.Chunk {
	return model.Chunk{
		Header:        header,
		Rows:          slices.Clone(rows[start : end+1]),
		StartIndex:    start,
		EndIndex:      end,
		EstimatedSize: size,
	}
}

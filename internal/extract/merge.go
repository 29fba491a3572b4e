package extract

import (
	"cmp"
	"slices"

	"github.com/sells-group/checklist-cli/internal/model"
)

// Merge concatenates successful chunk items in chunk order and numbers them
// 1..N. Failed chunks become failure records carrying their source rows.
// The input is not modified, so merging the same results twice gives the
// same output.
func Merge(results []model.ChunkResult) model.ExtractionResult {
	ordered := slices.Clone(results)
	slices.SortStableFunc(ordered, func(a, b model.ChunkResult) int {
		return cmp.Compare(a.ChunkIndex, b.ChunkIndex)
	})

	out := model.ExtractionResult{
		Items:       []model.ChecklistItem{},
		Failures:    []model.ChunkFailure{},
		TotalChunks: len(ordered),
	}
	for _, r := range ordered {
		out.TotalRows += r.RowCount
		rows := model.RowRange(r.StartIndex, r.EndIndex)
		for _, w := range r.Warnings {
			out.Warnings = append(out.Warnings, rows+": "+w)
		}

		if !r.Success {
			out.Failures = append(out.Failures, model.ChunkFailure{
				ChunkIndex:   r.ChunkIndex,
				Error:        r.Err,
				StartIndex:   r.StartIndex,
				EndIndex:     r.EndIndex,
				AffectedRows: rows,
				RowCount:     r.RowCount,
			})
			continue
		}

		for _, item := range r.Items {
			item.ID = len(out.Items) + 1
			out.Items = append(out.Items, item)
		}
	}
	return out
}

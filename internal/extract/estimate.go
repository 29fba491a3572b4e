package extract

// SizeEstimator approximates the serialized cost of a chunk in characters.
// It counts bytes, which never undercounts characters.
type SizeEstimator struct {
	overhead int
	byModel  map[string]int
}

// NewSizeEstimator returns an estimator that adds overhead to every
// estimate, or byModel[model] when present.
func NewSizeEstimator(overhead int, byModel map[string]int) SizeEstimator {
	return SizeEstimator{overhead: overhead, byModel: byModel}
}

// Overhead returns the fixed prompt cost for model.
func (e SizeEstimator) Overhead(model string) int {
	if o, ok := e.byModel[model]; ok {
		return o
	}
	return e.overhead
}

// RowCost is the cost of one row including its line separator.
func RowCost(row string) int {
	return len(row) + 1
}

// Estimate returns len(header) + sum(len(row)+1) + overhead(model).
func (e SizeEstimator) Estimate(header string, rows []string, model string) int {
	size := len(header) + e.Overhead(model)
	for _, r := range rows {
		size += RowCost(r)
	}
	return size
}

package extract

import "github.com/rotisserie/eris"

// Sentinel errors. Per-chunk failures never surface as errors from
// Extract; only the input-level ones below do.
var (
	// ErrMalformedResponse means the provider returned text that is not a
	// JSON array or an object wrapping one under a known key.
	ErrMalformedResponse = eris.New("malformed provider response")

	// ErrProviderUnavailable means no provider is configured.
	ErrProviderUnavailable = eris.New("no LLM provider available")

	// ErrEmptyInput means the sheet had no data rows.
	ErrEmptyInput = eris.New("no data rows to extract")
)

package extract

import (
	"time"

	"github.com/sells-group/checklist-cli/internal/config"
)

// Options tunes chunking, retries, and tier selection. Unset fields take
// the defaults; see withDefaults for the fields where zero is meaningful.
type Options struct {
	// DefaultMaxChars bounds a chunk when no provider model sets MaxChars.
	DefaultMaxChars int
	// MinRowsPerChunk is the floor below which a chunk is never closed.
	MinRowsPerChunk int
	// SmallDatasetRows is the row count at or below which a marginally
	// oversized input is still sent as one chunk.
	SmallDatasetRows int

	// SizeOverhead is the fixed prompt cost added to every size estimate.
	SizeOverhead int
	// OverheadByModel overrides SizeOverhead for specific models.
	OverheadByModel map[string]int

	// TierSmallMaxChars and TierMediumMaxChars are the inclusive upper
	// bounds of the small and medium tiers.
	TierSmallMaxChars  int
	TierMediumMaxChars int

	// MaxRetries is the number of retries after the first attempt.
	MaxRetries  int
	BackoffBase time.Duration
	BackoffMax  time.Duration
	Jitter      float64

	// CallTimeout bounds each provider call.
	CallTimeout     time.Duration
	MaxOutputTokens int
}

// DefaultOptions returns the defaults used by the CLI and server.
func DefaultOptions() Options {
	return Options{
		DefaultMaxChars:    12000,
		MinRowsPerChunk:    5,
		SmallDatasetRows:   50,
		SizeOverhead:       500,
		TierSmallMaxChars:  4000,
		TierMediumMaxChars: 10000,
		MaxRetries:         2,
		BackoffBase:        time.Second,
		BackoffMax:         30 * time.Second,
		CallTimeout:        90 * time.Second,
		MaxOutputTokens:    8192,
	}
}

// OptionsFrom converts the extract config section.
func OptionsFrom(cfg config.ExtractConfig) Options {
	return Options{
		DefaultMaxChars:    cfg.DefaultMaxChars,
		MinRowsPerChunk:    cfg.MinRowsPerChunk,
		SmallDatasetRows:   cfg.SmallDatasetRows,
		SizeOverhead:       cfg.SizeOverhead,
		TierSmallMaxChars:  cfg.TierSmallMaxChars,
		TierMediumMaxChars: cfg.TierMediumMaxChars,
		MaxRetries:         cfg.MaxRetries,
		BackoffBase:        time.Duration(cfg.BackoffBaseMs) * time.Millisecond,
		BackoffMax:         time.Duration(cfg.BackoffMaxMs) * time.Millisecond,
		Jitter:             cfg.Jitter,
		CallTimeout:        time.Duration(cfg.CallTimeoutSecs) * time.Second,
		MaxOutputTokens:    cfg.MaxOutputTokens,
	}
}

// withDefaults fills unset fields. Zero is kept for SmallDatasetRows
// (short-circuit off), SizeOverhead, MaxRetries, and Jitter.
func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.DefaultMaxChars <= 0 {
		o.DefaultMaxChars = d.DefaultMaxChars
	}
	if o.MinRowsPerChunk <= 0 {
		o.MinRowsPerChunk = d.MinRowsPerChunk
	}
	if o.SmallDatasetRows < 0 {
		o.SmallDatasetRows = d.SmallDatasetRows
	}
	if o.SizeOverhead < 0 {
		o.SizeOverhead = d.SizeOverhead
	}
	if o.TierSmallMaxChars <= 0 {
		o.TierSmallMaxChars = d.TierSmallMaxChars
	}
	if o.TierMediumMaxChars <= 0 {
		o.TierMediumMaxChars = d.TierMediumMaxChars
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = d.MaxRetries
	}
	if o.BackoffBase <= 0 {
		o.BackoffBase = d.BackoffBase
	}
	if o.BackoffMax <= 0 {
		o.BackoffMax = d.BackoffMax
	}
	if o.CallTimeout <= 0 {
		o.CallTimeout = d.CallTimeout
	}
	if o.MaxOutputTokens <= 0 {
		o.MaxOutputTokens = d.MaxOutputTokens
	}
	return o
}

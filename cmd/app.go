package main

import (
	"context"

	"github.com/sells-group/checklist-cli/internal/extract"
	"github.com/sells-group/checklist-cli/internal/llm"
	"github.com/sells-group/checklist-cli/internal/progress"
	"github.com/sells-group/checklist-cli/internal/resilience"
)

// buildExtractor wires the configured providers into an Extractor that
// publishes to sink.
func buildExtractor(ctx context.Context, sink progress.Sink) (*extract.Extractor, *resilience.Breakers, error) {
	providers, breakers, err := llm.FromConfig(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	ext, err := extract.New(providers, extract.OptionsFrom(cfg.Extract), sink)
	if err != nil {
		return nil, nil, err
	}
	return ext, breakers, nil
}

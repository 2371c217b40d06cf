// Package telemetry turns captured console text into metric series and
// per-core load tables. Nothing in it performs I/O, so the same capture
// always yields the same report.
package telemetry

import (
	"codeberg.org/mutker/clistat/internal/errors"
	"codeberg.org/mutker/clistat/internal/runctx"
	"codeberg.org/mutker/clistat/internal/sequencer"
)

type Config struct {
	Metrics   []Pattern
	Resources ResourceOptions
}

type Pipeline struct {
	patterns  []compiledPattern
	resources *ResourceParser
}

func NewPipeline(cfg Config) (*Pipeline, error) {
	errFactory := errors.New()

	patterns, err := compilePatterns(cfg.Metrics)
	if err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}

	resources, err := NewResourceParser(cfg.Resources)
	if err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}

	return &Pipeline{
		patterns:  patterns,
		resources: resources,
	}, nil
}

// Analyze runs both extractors over capture.
func (p *Pipeline) Analyze(rc *runctx.Context, capture *sequencer.Capture) (*Report, error) {
	rc.NextStep()
	rc.Log.Info().
		Int("blocks", len(capture.Blocks)).
		Int("triggers", len(capture.Triggers)).
		Msg("Analyzing captured output")

	metrics, err := extractMetrics(rc, capture.Blocks, p.patterns, capture.Triggers)
	if err != nil {
		return nil, err
	}

	resources := p.resources.Parse(rc, capture.Blocks, capture.Triggers)
	for _, table := range resources {
		rc.Log.Info().
			Str("device", table.Device).
			Strs("cores", table.CoreIDs()).
			Int("samples", len(table.Cores[CoreAve])).
			Msg("Resource table built")
	}

	return &Report{
		Metrics:   metrics,
		Resources: resources,
	}, nil
}

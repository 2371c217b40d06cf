package metrics

import (
	"context"
	"time"

	"codeberg.org/mutker/clistat/internal/telemetry"
)

// SeriesStore persists the report of every run.
type SeriesStore interface {
	Record(ctx context.Context, run Run, report *telemetry.Report) error
	Close() error
}

// Repository is the storage backend behind a SeriesStore.
type Repository interface {
	Record(ctx context.Context, run Run, report *telemetry.Report) error
	MetricSamples(ctx context.Context, runID, metric string) ([]telemetry.Sample, error)
	CoreSamples(ctx context.Context, runID, device, core string) ([]telemetry.CoreSample, error)
	Runs(ctx context.Context) ([]Run, error)
	Close() error
}

// Run identifies one job against one target.
type Run struct {
	ID    string
	Host  string
	Start time.Time
}

// Package export publishes run statistics in the Prometheus text format so
// a node_exporter textfile collector can pick them up.
package export

import (
	"os"
	"path/filepath"

	"codeberg.org/mutker/clistat/internal/errors"
	"codeberg.org/mutker/clistat/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "clistat"

	ErrExportFailed = errors.ErrorCode("export_failed")
)

type Exporter struct {
	registry *prometheus.Registry
	metric   *prometheus.GaugeVec
	cpuLoad  *prometheus.GaugeVec
	lastRun  prometheus.Gauge
}

// New builds an exporter with a private registry. host is attached to
// every series as a constant label.
func New(host string) *Exporter {
	labels := prometheus.Labels{"host": host}

	metric := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   namespace,
		Name:        "metric",
		Help:        "Summary statistics of values extracted from console output.",
		ConstLabels: labels,
	}, []string{"metric", "stat"})
	cpuLoad := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   namespace,
		Name:        "cpu_load",
		Help:        "Summary statistics of dataplane core load in percent.",
		ConstLabels: labels,
	}, []string{"device", "core", "stat"})
	lastRun := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   namespace,
		Name:        "last_run_timestamp_seconds",
		Help:        "Unix time the last run finished.",
		ConstLabels: labels,
	})

	registry := prometheus.NewRegistry()
	registry.MustRegister(metric, cpuLoad, lastRun)

	return &Exporter{
		registry: registry,
		metric:   metric,
		cpuLoad:  cpuLoad,
		lastRun:  lastRun,
	}
}

// Set replaces all gauges with the statistics of report.
func (e *Exporter) Set(report *telemetry.Report) {
	e.metric.Reset()
	e.cpuLoad.Reset()

	stats := report.Stats()
	for name, s := range stats.Metrics {
		setSummary(e.metric, s, name)
	}
	for device, cores := range stats.Resources {
		for core, s := range cores {
			setSummary(e.cpuLoad, s, device, core)
		}
	}

	e.lastRun.SetToCurrentTime()
}

// WriteTextfile writes the registry to path atomically.
func (e *Exporter) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.New().Wrap(ErrExportFailed, err)
	}
	if err := prometheus.WriteToTextfile(path, e.registry); err != nil {
		return errors.New().Wrap(ErrExportFailed, err)
	}
	return nil
}

func setSummary(vec *prometheus.GaugeVec, s telemetry.Summary, labels ...string) {
	for stat, v := range map[string]float64{
		"min": s.Min,
		"max": s.Max,
		"ave": s.Average,
		"cnt": float64(s.Count),
	} {
		vec.WithLabelValues(append(labels, stat)...).Set(v)
	}
}

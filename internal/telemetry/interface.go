package telemetry

import (
	"encoding/json"
	"sort"
	"strconv"
	"time"
)

// Reserved pseudo-core ids holding cross-core aggregates.
const (
	CoreMin = "min"
	CoreMax = "max"
	CoreAve = "ave"
)

// Pattern names a regular expression whose first capture group is a
// numeric sample.
type Pattern struct {
	Name string `json:"name" yaml:"name"`
	Expr string `json:"pattern" yaml:"pattern"`
}

// Sample is one extracted value. Time is zero when the sample could not be
// paired with a trigger instant.
type Sample struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}

// HasTime reports whether the sample carries a timestamp.
func (s Sample) HasTime() bool {
	return !s.Time.IsZero()
}

// MarshalJSON leaves out the time of an untimed sample.
func (s Sample) MarshalJSON() ([]byte, error) {
	out := struct {
		Time  *time.Time `json:"time,omitempty"`
		Value float64    `json:"value"`
	}{Value: s.Value}
	if s.HasTime() {
		out.Time = &s.Time
	}
	return json.Marshal(out)
}

// Summary is a linear-pass reduction over a series.
type Summary struct {
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Average float64 `json:"ave"`
	Count   int     `json:"cnt"`
}

// Series is the extraction result for one named pattern.
type Series struct {
	Name    string   `json:"name"`
	Pattern string   `json:"pattern"`
	Samples []Sample `json:"samples"`
	Summary Summary  `json:"stats"`
}

// Values returns the sample values in order.
func (s *Series) Values() []float64 {
	values := make([]float64, len(s.Samples))
	for i, sample := range s.Samples {
		values[i] = sample.Value
	}
	return values
}

// CoreSample is one per-second load reading of a core, or an aggregate for
// a pseudo-core.
type CoreSample struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}

// ResourceTable holds the load series of one device keyed by core id.
type ResourceTable struct {
	Device string                  `json:"device"`
	Cores  map[string][]CoreSample `json:"cores"`

	buckets map[int64]*bucket
}

type bucket struct {
	at     time.Time
	values []float64
}

func newResourceTable(device string) *ResourceTable {
	return &ResourceTable{
		Device:  device,
		Cores:   make(map[string][]CoreSample),
		buckets: make(map[int64]*bucket),
	}
}

// CoreIDs returns numeric cores in ascending order followed by the
// pseudo-cores.
func (t *ResourceTable) CoreIDs() []string {
	ids := make([]string, 0, len(t.Cores))
	for id := range t.Cores {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		ri, rj := coreRank(ids[i]), coreRank(ids[j])
		if ri != rj {
			return ri < rj
		}
		ni, ei := strconv.Atoi(ids[i])
		nj, ej := strconv.Atoi(ids[j])
		if ei == nil && ej == nil {
			return ni < nj
		}
		return ids[i] < ids[j]
	})
	return ids
}

// Summary reduces one core's series.
func (t *ResourceTable) Summary(core string) Summary {
	samples := t.Cores[core]
	values := make([]float64, len(samples))
	for i, s := range samples {
		values[i] = s.Value
	}
	return Summarize(values)
}

func coreRank(id string) int {
	switch id {
	case CoreMin:
		return 1
	case CoreMax:
		return 2
	case CoreAve:
		return 3
	default:
		return 0
	}
}

// Report is the full output of the pipeline for one run.
type Report struct {
	Metrics   map[string]*Series        `json:"metrics"`
	Resources map[string]*ResourceTable `json:"resources"`
}

// MetricNames returns the metric names in sorted order.
func (r *Report) MetricNames() []string {
	names := make([]string, 0, len(r.Metrics))
	for name := range r.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Devices returns the device ids in sorted order.
func (r *Report) Devices() []string {
	devices := make([]string, 0, len(r.Resources))
	for device := range r.Resources {
		devices = append(devices, device)
	}
	sort.Strings(devices)
	return devices
}

// Stats holds the summaries of every metric and of every core per device.
type Stats struct {
	Metrics   map[string]Summary            `json:"metrics"`
	Resources map[string]map[string]Summary `json:"resources,omitempty"`
}

func (r *Report) Stats() Stats {
	stats := Stats{Metrics: make(map[string]Summary, len(r.Metrics))}
	for name, series := range r.Metrics {
		stats.Metrics[name] = series.Summary
	}

	if len(r.Resources) > 0 {
		stats.Resources = make(map[string]map[string]Summary, len(r.Resources))
		for device, table := range r.Resources {
			cores := make(map[string]Summary, len(table.Cores))
			for core := range table.Cores {
				cores[core] = table.Summary(core)
			}
			stats.Resources[device] = cores
		}
	}

	return stats
}

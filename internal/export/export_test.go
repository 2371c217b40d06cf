package export

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mutker/clistat/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleReport() *telemetry.Report {
	at := time.Date(2024, 5, 14, 10, 0, 0, 0, time.UTC)
	return &telemetry.Report{
		Metrics: map[string]*telemetry.Series{
			"activeTCPSessions": {
				Name:    "activeTCPSessions",
				Summary: telemetry.Summary{Min: 10, Max: 30, Average: 20, Count: 3},
			},
		},
		Resources: map[string]*telemetry.ResourceTable{
			"dp0": {Device: "dp0", Cores: map[string][]telemetry.CoreSample{
				"1": {{Time: at, Value: 40}, {Time: at.Add(time.Second), Value: 60}},
			}},
		},
	}
}

func TestSetPublishesSummaries(t *testing.T) {
	e := New("fw1")
	e.Set(sampleReport())

	assert.Equal(t, 20.0, testutil.ToFloat64(e.metric.WithLabelValues("activeTCPSessions", "ave")))
	assert.Equal(t, 3.0, testutil.ToFloat64(e.metric.WithLabelValues("activeTCPSessions", "cnt")))
	assert.Equal(t, 60.0, testutil.ToFloat64(e.cpuLoad.WithLabelValues("dp0", "1", "max")))
	assert.Equal(t, 50.0, testutil.ToFloat64(e.cpuLoad.WithLabelValues("dp0", "1", "ave")))
	assert.Equal(t, 4, testutil.CollectAndCount(e.metric))
}

func TestSetReplacesPreviousRun(t *testing.T) {
	e := New("fw1")
	e.Set(sampleReport())
	e.Set(&telemetry.Report{})

	assert.Equal(t, 0, testutil.CollectAndCount(e.metric))
	assert.Equal(t, 0, testutil.CollectAndCount(e.cpuLoad))
}

func TestWriteTextfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "textfile", "clistat.prom")

	e := New("fw1")
	e.Set(sampleReport())
	require.NoError(t, e.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, `clistat_metric{host="fw1",metric="activeTCPSessions",stat="min"} 10`)
	assert.Contains(t, out, `clistat_cpu_load{core="1",device="dp0",host="fw1",stat="min"} 40`)
	assert.Contains(t, out, "# TYPE clistat_last_run_timestamp_seconds gauge")
}

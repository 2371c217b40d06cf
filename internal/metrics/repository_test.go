package metrics

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mutker/clistat/internal/errors"
	"codeberg.org/mutker/clistat/internal/logger"
	"codeberg.org/mutker/clistat/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 5, 14, 10, 0, 0, 0, time.UTC)

func sampleReport() *telemetry.Report {
	return &telemetry.Report{
		Metrics: map[string]*telemetry.Series{
			"activeTCPSessions": {
				Name: "activeTCPSessions",
				Samples: []telemetry.Sample{
					{Time: t0, Value: 10},
					{Time: t0.Add(30 * time.Second), Value: 12},
				},
			},
			"packetRate": {
				Name:    "packetRate",
				Samples: []telemetry.Sample{{Value: 4500}},
			},
		},
		Resources: map[string]*telemetry.ResourceTable{
			"dp0": {
				Device: "dp0",
				Cores: map[string][]telemetry.CoreSample{
					"0": {{Time: t0.Add(-2 * time.Second), Value: 6}, {Time: t0.Add(-time.Second), Value: 7}},
					"1": {{Time: t0.Add(-2 * time.Second), Value: 16}, {Time: t0.Add(-time.Second), Value: 17}},
				},
			},
		},
	}
}

func openRepo(t *testing.T, cfg Config) Repository {
	t.Helper()
	repo, err := NewRepository(cfg, logger.Nop())
	require.NoError(t, err)
	return repo
}

func TestRepositoryRecordAndReadBack(t *testing.T) {
	ctx := context.Background()
	cfg := Config{DBPath: filepath.Join(t.TempDir(), "series.db"), Enabled: true}
	repo := openRepo(t, cfg)
	defer repo.Close()

	run := Run{ID: "run-1", Host: "fw1", Start: t0}
	require.NoError(t, repo.Record(ctx, run, sampleReport()))

	runs, err := repo.Runs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Run{run}, runs)

	tcp, err := repo.MetricSamples(ctx, "run-1", "activeTCPSessions")
	require.NoError(t, err)
	assert.Equal(t, []telemetry.Sample{
		{Time: t0, Value: 10},
		{Time: t0.Add(30 * time.Second), Value: 12},
	}, tcp)

	rate, err := repo.MetricSamples(ctx, "run-1", "packetRate")
	require.NoError(t, err)
	require.Len(t, rate, 1)
	assert.False(t, rate[0].HasTime())
	assert.Equal(t, 4500.0, rate[0].Value)

	core, err := repo.CoreSamples(ctx, "run-1", "dp0", "1")
	require.NoError(t, err)
	assert.Equal(t, []telemetry.CoreSample{
		{Time: t0.Add(-2 * time.Second), Value: 16},
		{Time: t0.Add(-time.Second), Value: 17},
	}, core)
}

func TestRepositoryRecordRollsBackDuplicateRun(t *testing.T) {
	ctx := context.Background()
	repo := openRepo(t, Config{DBPath: filepath.Join(t.TempDir(), "series.db"), Enabled: true})
	defer repo.Close()

	run := Run{ID: "run-1", Host: "fw1", Start: t0}
	require.NoError(t, repo.Record(ctx, run, sampleReport()))

	err := repo.Record(ctx, run, sampleReport())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, ErrTransactionFailed))

	tcp, err := repo.MetricSamples(ctx, "run-1", "activeTCPSessions")
	require.NoError(t, err)
	assert.Len(t, tcp, 2)
}

func TestRepositoryRecreatesSchemaOnVersionMismatch(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cfg := Config{
		DBPath:    filepath.Join(dir, "series.db"),
		BackupDir: filepath.Join(dir, "backups"),
		Enabled:   true,
	}

	repo := openRepo(t, cfg)
	require.NoError(t, repo.Record(ctx, Run{ID: "old", Host: "fw1", Start: t0}, sampleReport()))
	require.NoError(t, repo.Close())

	db, err := sql.Open("sqlite3", cfg.DBPath)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO schema_versions (version, applied_at) VALUES (99, datetime('now'))`)
	require.NoError(t, err)
	version, err := GetSchemaVersion(db)
	require.NoError(t, err)
	assert.Equal(t, 99, version)
	require.NoError(t, db.Close())

	repo = openRepo(t, cfg)
	defer repo.Close()

	runs, err := repo.Runs(ctx)
	require.NoError(t, err)
	assert.Empty(t, runs)

	backups, err := os.ReadDir(cfg.BackupDir)
	require.NoError(t, err)
	require.Len(t, backups, 1)
	assert.Contains(t, backups[0].Name(), "series_v99_")
}

func TestNewRepositoryRequiresPath(t *testing.T) {
	_, err := NewRepository(Config{}, logger.Nop())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, ErrInvalidDBPath))
}

func TestServiceDisabledIsNoop(t *testing.T) {
	store, err := NewService(DefaultConfig(), logger.Nop())
	require.NoError(t, err)

	assert.NoError(t, store.Record(context.Background(), Run{ID: "x"}, sampleReport()))
	assert.NoError(t, store.Close())
}

func TestServiceRejectsInvalidInput(t *testing.T) {
	_, err := NewService(Config{Enabled: true}, logger.Nop())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, ErrInvalidDBPath))

	store, err := NewService(Config{DBPath: filepath.Join(t.TempDir(), "s.db"), Enabled: true}, logger.Nop())
	require.NoError(t, err)
	defer store.Close()

	err = store.Record(context.Background(), Run{}, sampleReport())
	assert.True(t, errors.HasCode(err, ErrInvalidReport))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = store.Record(ctx, Run{ID: "r"}, sampleReport())
	assert.True(t, errors.HasCode(err, ErrOperationTimeout))
}

package metrics

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"time"

	"codeberg.org/mutker/clistat/internal/errors"
	"codeberg.org/mutker/clistat/internal/logger"
	"codeberg.org/mutker/clistat/internal/telemetry"
	_ "github.com/mattn/go-sqlite3"
)

type repository struct {
	db     *sql.DB
	logger logger.Logger
	cfg    Config
	mu     sync.Mutex
}

func NewRepository(cfg Config, log logger.Logger) (Repository, error) {
	errFactory := errors.New()

	if cfg.DBPath == "" {
		return nil, errFactory.New(ErrInvalidDBPath)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), defaultDirPerm); err != nil {
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Path  string
			Error string
		}{
			Phase: "create_directory",
			Path:  cfg.DBPath,
			Error: err.Error(),
		})
	}

	dsn := cfg.DBPath + "?_journal=WAL&_auto_vacuum=2&_foreign_keys=1"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Error string
		}{
			Phase: "open_database",
			Error: err.Error(),
		})
	}

	if err := ValidateAndUpdateSchema(db, cfg.backupDir(), log); err != nil {
		db.Close()
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Error string
		}{
			Phase: "schema_version",
			Error: err.Error(),
		})
	}

	log.Info().
		Str("path", cfg.DBPath).
		Int("schema_version", SchemaVersion).
		Msg("Series repository initialized")

	return &repository{
		db:     db,
		logger: log,
		cfg:    cfg,
	}, nil
}

// Record writes the run row and every sample of report in one transaction.
func (r *repository) Record(ctx context.Context, run Run, report *telemetry.Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	errFactory := errors.New()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errFactory.Wrap(ErrTransactionFailed, err)
	}

	committed := false
	defer func() {
		if !committed {
			if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
				r.logger.Error().Err(err).Msg("Failed to roll back transaction")
			}
		}
	}()

	if _, err := tx.ExecContext(ctx, insertRunSQL, run.ID, run.Host, run.Start.UnixMilli()); err != nil {
		return errFactory.WithData(ErrTransactionFailed, struct {
			Phase string
			RunID string
			Error string
		}{
			Phase: "insert_run",
			RunID: run.ID,
			Error: err.Error(),
		})
	}

	metricRows, err := r.insertMetrics(ctx, tx, run.ID, report)
	if err != nil {
		return err
	}
	coreRows, err := r.insertCores(ctx, tx, run.ID, report)
	if err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return errFactory.Wrap(ErrTransactionFailed, err)
	}
	committed = true

	r.logger.Debug().
		Str("run_id", run.ID).
		Int("metric_samples", metricRows).
		Int("core_samples", coreRows).
		Msg("Recorded run to database")

	return nil
}

func (r *repository) insertMetrics(ctx context.Context, tx *sql.Tx, runID string, report *telemetry.Report) (int, error) {
	errFactory := errors.New()

	stmt, err := tx.PrepareContext(ctx, insertMetricSampleSQL)
	if err != nil {
		return 0, errFactory.Wrap(ErrTransactionFailed, err)
	}
	defer stmt.Close()

	rows := 0
	for _, name := range report.MetricNames() {
		for seq, sample := range report.Metrics[name].Samples {
			var ts interface{}
			if sample.HasTime() {
				ts = sample.Time.UnixMilli()
			}
			if _, err := stmt.ExecContext(ctx, runID, name, seq, ts, sample.Value); err != nil {
				return rows, errFactory.WithData(ErrTransactionFailed, struct {
					Phase  string
					Metric string
					Error  string
				}{
					Phase:  "insert_metric_sample",
					Metric: name,
					Error:  err.Error(),
				})
			}
			rows++
		}
	}

	return rows, nil
}

func (r *repository) insertCores(ctx context.Context, tx *sql.Tx, runID string, report *telemetry.Report) (int, error) {
	errFactory := errors.New()

	stmt, err := tx.PrepareContext(ctx, insertCoreSampleSQL)
	if err != nil {
		return 0, errFactory.Wrap(ErrTransactionFailed, err)
	}
	defer stmt.Close()

	rows := 0
	for _, device := range report.Devices() {
		table := report.Resources[device]
		for _, core := range table.CoreIDs() {
			for _, sample := range table.Cores[core] {
				if _, err := stmt.ExecContext(ctx, runID, device, core, sample.Time.UnixMilli(), sample.Value); err != nil {
					return rows, errFactory.WithData(ErrTransactionFailed, struct {
						Phase  string
						Device string
						Core   string
						Error  string
					}{
						Phase:  "insert_core_sample",
						Device: device,
						Core:   core,
						Error:  err.Error(),
					})
				}
				rows++
			}
		}
	}

	return rows, nil
}

func (r *repository) MetricSamples(ctx context.Context, runID, metric string) ([]telemetry.Sample, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT ts, value FROM metric_samples
        WHERE run_id = ? AND metric = ?
        ORDER BY seq`, runID, metric)
	if err != nil {
		return nil, errors.New().Wrap(ErrStorageAccess, err)
	}
	defer rows.Close()

	var samples []telemetry.Sample
	for rows.Next() {
		var (
			ts    sql.NullInt64
			value float64
		)
		if err := rows.Scan(&ts, &value); err != nil {
			return nil, errors.New().Wrap(ErrStorageAccess, err)
		}
		sample := telemetry.Sample{Value: value}
		if ts.Valid {
			sample.Time = fromMillis(ts.Int64)
		}
		samples = append(samples, sample)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.New().Wrap(ErrStorageAccess, err)
	}
	return samples, nil
}

func (r *repository) CoreSamples(ctx context.Context, runID, device, core string) ([]telemetry.CoreSample, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT ts, value FROM core_samples
        WHERE run_id = ? AND device = ? AND core = ?
        ORDER BY ts`, runID, device, core)
	if err != nil {
		return nil, errors.New().Wrap(ErrStorageAccess, err)
	}
	defer rows.Close()

	var samples []telemetry.CoreSample
	for rows.Next() {
		var (
			ts    int64
			value float64
		)
		if err := rows.Scan(&ts, &value); err != nil {
			return nil, errors.New().Wrap(ErrStorageAccess, err)
		}
		samples = append(samples, telemetry.CoreSample{Time: fromMillis(ts), Value: value})
	}

	if err := rows.Err(); err != nil {
		return nil, errors.New().Wrap(ErrStorageAccess, err)
	}
	return samples, nil
}

func (r *repository) Runs(ctx context.Context) ([]Run, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, host, started_at FROM runs ORDER BY started_at`)
	if err != nil {
		return nil, errors.New().Wrap(ErrStorageAccess, err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run     Run
			started int64
		)
		if err := rows.Scan(&run.ID, &run.Host, &started); err != nil {
			return nil, errors.New().Wrap(ErrStorageAccess, err)
		}
		run.Start = fromMillis(started)
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.New().Wrap(ErrStorageAccess, err)
	}
	return runs, nil
}

func (r *repository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Checkpoint WAL and cleanup on close
	if _, err := r.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return errors.New().WithData(ErrStorageClose, struct {
			Phase string
			Error string
		}{
			Phase: "checkpoint_wal",
			Error: err.Error(),
		})
	}

	if err := r.db.Close(); err != nil {
		return errors.New().WithData(ErrStorageClose, struct {
			Phase string
			Error string
		}{
			Phase: "close_database",
			Error: err.Error(),
		})
	}

	r.logger.Debug().Msg("Series repository closed")

	return nil
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

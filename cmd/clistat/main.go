package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codeberg.org/mutker/clistat/internal/config"
	"codeberg.org/mutker/clistat/internal/errors"
	"codeberg.org/mutker/clistat/internal/export"
	"codeberg.org/mutker/clistat/internal/job"
	"codeberg.org/mutker/clistat/internal/logger"
	"codeberg.org/mutker/clistat/internal/metrics"
	"codeberg.org/mutker/clistat/internal/pid"
	"codeberg.org/mutker/clistat/internal/runctx"
	"codeberg.org/mutker/clistat/internal/sequencer"
	"codeberg.org/mutker/clistat/internal/session"
	"codeberg.org/mutker/clistat/internal/telemetry"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"
)

const finishTimeout = 30 * time.Second

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, err := config.Load(args)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(os.Stderr, "init: %v\n", err)
		return 1
	}

	if err := cfg.ResolveCredentials(); err != nil {
		fmt.Fprintf(os.Stderr, "init: access not specified or empty: %v\n", err)
		fmt.Fprintf(os.Stderr, "init: check %s for details (%s)\n", cfg.File, cfg.PassEnv)
		return 1
	}

	start := time.Now()
	fs := afero.NewOsFs()

	artifacts, err := job.Prepare(fs, job.Names{
		JobDir:  cfg.JobDir,
		LogFile: cfg.LogFile,
		CnfFile: cfg.CnfFile,
		CliFile: cfg.CliFile,
		StaFile: cfg.StaFile,
		SerFile: cfg.SerFile,
	}, start)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init: %v\n", err)
		return 1
	}

	var jobLog *logger.JobLog
	if artifacts.LogPath != "" {
		jobLog = logger.NewJobLog(artifacts.LogPath, cfg.LogBufSize)
		logger.Init(cfg.Debug, cfg.Verbose, logger.IsService(), jobLog)
		defer func() {
			if err := jobLog.Close(); err != nil {
				fmt.Fprintf(os.Stderr, "log: entries not written to %s: %v\n", artifacts.LogPath, err)
			}
		}()
	} else {
		logger.Init(cfg.Debug, cfg.Verbose, logger.IsService())
	}

	rc := runctx.New(start, logger.Default())
	rc.Log.Info().
		Str("target", cfg.Hostname).
		Str("job_dir", artifacts.Dir).
		Bool("verbose", cfg.Verbose).
		Bool("debug", cfg.Debug).
		Msg("Job started")

	lock, err := pid.Acquire(fs, os.TempDir(), cfg.Hostname)
	if err != nil {
		rc.Log.Error().Err(err).Str("target", cfg.Hostname).Msg("Failed to lock target")
		return 1
	}
	defer func() {
		if err := lock.Release(); err != nil {
			rc.Log.Warn().Err(err).Msg("Failed to remove pid file")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel)

	pipeline, err := telemetry.NewPipeline(cfg.TelemetryConfig())
	if err != nil {
		rc.Log.Error().Err(err).Msg("Invalid telemetry configuration")
		return 1
	}

	store, err := metrics.NewService(metrics.Config{
		DBPath:  cfg.Database.Path,
		Enabled: cfg.Database.Enabled,
	}, rc.Log)
	if err != nil {
		rc.Log.Error().Err(err).Msg("Failed to open series store")
		return 1
	}
	defer func() {
		if err := store.Close(); err != nil {
			rc.Log.Warn().Err(err).Msg("Failed to close series store")
		}
	}()

	if err := artifacts.WriteConfig(cfg.Redacted()); err != nil {
		rc.Log.Warn().Err(err).Str("file", artifacts.CnfPath).Msg("Failed to write config dump")
	}

	capture, runErr := collect(ctx, rc, cfg)
	if capture == nil {
		rc.Log.Error().Err(runErr).
			Str("error_code", string(errors.CodeOf(runErr))).
			Msg("Job failed before any output was captured")
		return 1
	}
	if runErr != nil {
		var appErr errors.Error
		if errors.As(runErr, &appErr) {
			rc.Log.ErrorWithCode(appErr).
				Int("blocks", len(capture.Blocks)).
				Msg("Command sequence aborted, analyzing partial capture")
		} else {
			rc.Log.Error().Err(runErr).Msg("Command sequence aborted, analyzing partial capture")
		}
	}

	code := 0
	if runErr != nil {
		code = 1
	}
	if !finish(rc, cfg, artifacts, pipeline, store, capture) {
		code = 1
	}

	rc.Log.Info().
		Dur("elapsed", rc.Elapsed(time.Now())).
		Int("exit_code", code).
		Msg("Job finished")

	return code
}

// collect dials the target and replays the command plan.
func collect(ctx context.Context, rc *runctx.Context, cfg *config.Config) (*sequencer.Capture, error) {
	rc.NextStep()
	rc.Log.Info().Str("target", cfg.Hostname).Msg("Connecting")

	sess, err := session.Dial(ctx, cfg.SessionConfig())
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := sess.Close(); err != nil {
			rc.Log.Debug().Err(err).Msg("Failed to close session")
		}
	}()

	seq, err := sequencer.New(sess, cfg.SequencerConfig())
	if err != nil {
		return nil, err
	}

	return seq.Run(ctx, rc, cfg.CommandPlan())
}

// finish analyzes the capture and writes every output. It reports whether
// all of them succeeded.
func finish(
	rc *runctx.Context,
	cfg *config.Config,
	artifacts *job.Artifacts,
	pipeline *telemetry.Pipeline,
	store metrics.SeriesStore,
	capture *sequencer.Capture,
) bool {
	ok := true

	if err := artifacts.WriteCapture(capture.Blocks); err != nil {
		rc.Log.Error().Err(err).Str("file", artifacts.CliPath).Msg("Failed to write console capture")
		ok = false
	}

	report, err := pipeline.Analyze(rc, capture)
	if err != nil {
		rc.Log.Error().Err(errors.New().Wrap(errors.ErrAnalyzeFailed, err)).Msg("Analysis failed")
		return false
	}

	rc.NextStep()
	if err := artifacts.WriteStats(report); err != nil {
		rc.Log.Error().Err(err).Str("file", artifacts.StaPath).Msg("Failed to write statistics")
		ok = false
	}
	if err := artifacts.WriteSeries(report); err != nil {
		rc.Log.Error().Err(err).Str("file", artifacts.SerPath).Msg("Failed to write series")
		ok = false
	}
	rc.Log.Info().Strs("files", artifacts.Paths()).Msg("Output generated")

	// the run context may already be cancelled by a signal
	ctx, cancel := context.WithTimeout(context.Background(), finishTimeout)
	defer cancel()

	run := metrics.Run{ID: rc.ID.String(), Host: cfg.Hostname, Start: rc.Start}
	if err := store.Record(ctx, run, report); err != nil {
		rc.Log.Error().Err(err).Msg("Failed to record run")
		ok = false
	}

	if cfg.Export.Textfile != "" {
		exporter := export.New(cfg.Hostname)
		exporter.Set(report)
		if err := exporter.WriteTextfile(cfg.Export.Textfile); err != nil {
			rc.Log.Error().Err(err).Str("file", cfg.Export.Textfile).Msg("Failed to write textfile")
			ok = false
		}
	}

	return ok
}

func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("Received termination signal.")
	cancel()
}

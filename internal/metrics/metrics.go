// Package metrics stores extracted series in a local sqlite database so
// runs against the same target can be compared later.
package metrics

import (
	"context"

	"codeberg.org/mutker/clistat/internal/errors"
	"codeberg.org/mutker/clistat/internal/logger"
	"codeberg.org/mutker/clistat/internal/telemetry"
)

type service struct {
	repo Repository
	cfg  Config
}

// No-op implementation
type noopStore struct{}

func NewService(cfg Config, log logger.Logger) (SeriesStore, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}

	if !cfg.Enabled {
		log.Debug().Msg("Series store disabled, using no-op store")
		return &noopStore{}, nil
	}

	repo, err := NewRepository(cfg, log)
	if err != nil {
		log.Debug().Err(err).Msg("Failed to create series repository")
		return nil, err
	}

	log.Debug().
		Str("db_path", cfg.DBPath).
		Bool("enabled", cfg.Enabled).
		Msg("Series store initialized")

	return &service{
		repo: repo,
		cfg:  cfg,
	}, nil
}

func (s *service) Record(ctx context.Context, run Run, report *telemetry.Report) error {
	errFactory := errors.New()

	if report == nil || run.ID == "" {
		return errFactory.New(ErrInvalidReport)
	}

	select {
	case <-ctx.Done():
		return errFactory.Wrap(ErrOperationTimeout, ctx.Err())
	default:
		if err := s.repo.Record(ctx, run, report); err != nil {
			return errFactory.Wrap(ErrRecordFailed, err)
		}
	}

	return nil
}

func (s *service) Close() error {
	if err := s.repo.Close(); err != nil {
		return errors.New().Wrap(ErrStorageClose, err)
	}
	return nil
}

func (*noopStore) Record(_ context.Context, _ Run, _ *telemetry.Report) error {
	return nil
}

func (*noopStore) Close() error {
	return nil
}

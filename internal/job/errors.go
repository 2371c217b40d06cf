package job

import "codeberg.org/mutker/clistat/internal/errors"

const (
	ErrInvalidNames  = errors.ErrorCode("job_invalid_names")
	ErrPrepareFailed = errors.ErrorCode("job_prepare_failed")
	ErrWriteArtifact = errors.ErrWriteArtifact
)

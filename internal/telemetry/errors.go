package telemetry

import "codeberg.org/mutker/clistat/internal/errors"

const (
	// Configuration Errors
	ErrInvalidConfig  = errors.ErrorCode("telemetry_invalid_config")
	ErrInvalidPattern = errors.ErrorCode("telemetry_invalid_pattern")

	// Parse Errors
	ErrNonNumericSample = errors.ErrorCode("telemetry_non_numeric_sample")
)

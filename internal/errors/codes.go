package errors

// Common error codes
const (
	// System errors
	ErrInternal        ErrorCode = "internal_error"
	ErrInvalidArgument ErrorCode = "invalid_argument"
	ErrAlreadyRunning  ErrorCode = "already_running"

	// Configuration errors
	ErrInvalidConfig      ErrorCode = "invalid_configuration"
	ErrReadConfig         ErrorCode = "read_config_failed"
	ErrBindFlags          ErrorCode = "bind_flags_failed"
	ErrMissingCredentials ErrorCode = "missing_credentials"
	ErrInvalidPattern     ErrorCode = "invalid_pattern"
	ErrInvalidPlan        ErrorCode = "invalid_command_plan"

	// Logging errors
	ErrInvalidLogLevel ErrorCode = "invalid_log_level"
	ErrJobLog          ErrorCode = "job_log_failed"

	// Initialization errors
	ErrInitFailed     ErrorCode = "initialization_failed"
	ErrShutdownFailed ErrorCode = "shutdown_failed"

	// Application errors
	ErrRunFailed     ErrorCode = "run_failed"
	ErrAnalyzeFailed ErrorCode = "analyze_failed"
	ErrWriteArtifact ErrorCode = "write_artifact_failed"

	// Operation errors
	ErrOperationFailed ErrorCode = "operation_failed"
	ErrTimeout         ErrorCode = "operation_timeout"
)

// Common error messages
var errorMessages = map[ErrorCode]string{
	ErrInternal:           "Internal error occurred",
	ErrInvalidArgument:    "Invalid argument provided",
	ErrAlreadyRunning:     "Another job is already running against this target",
	ErrInvalidConfig:      "Invalid configuration",
	ErrReadConfig:         "Failed to read configuration",
	ErrBindFlags:          "Failed to bind flags",
	ErrMissingCredentials: "Access not specified or empty",
	ErrInvalidPattern:     "Invalid search pattern",
	ErrInvalidPlan:        "Invalid command plan",
	ErrInvalidLogLevel:    "Invalid log level",
	ErrJobLog:             "Failed to write job log",
	ErrInitFailed:         "Initialization failed",
	ErrShutdownFailed:     "Shutdown failed",
	ErrRunFailed:          "Command run failed",
	ErrAnalyzeFailed:      "Failed to analyze captured output",
	ErrWriteArtifact:      "Failed to write job artifact",
	ErrOperationFailed:    "Operation failed",
	ErrTimeout:            "Operation timed out",
}

// GetErrorMessage returns the message for a given error code
func GetErrorMessage(code ErrorCode) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}

	return string(code)
}

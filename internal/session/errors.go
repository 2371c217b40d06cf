package session

import "codeberg.org/mutker/clistat/internal/errors"

const (
	ErrInvalidConfig = errors.ErrorCode("session_invalid_config")
	ErrKnownHosts    = errors.ErrorCode("session_known_hosts_failed")
	ErrDialFailed    = errors.ErrorCode("session_dial_failed")
	ErrShellFailed   = errors.ErrorCode("session_shell_failed")
	ErrWriteFailed   = errors.ErrorCode("session_write_failed")
	ErrClosed        = errors.ErrorCode("session_closed")
)

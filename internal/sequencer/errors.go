package sequencer

import "codeberg.org/mutker/clistat/internal/errors"

const (
	ErrInvalidConfig    = errors.ErrorCode("sequencer_invalid_config")
	ErrInvalidTrigger   = errors.ErrorCode("sequencer_invalid_trigger")
	ErrSendFailed       = errors.ErrorCode("sequencer_send_failed")
	ErrAwaitFailed      = errors.ErrorCode("sequencer_await_prompt_failed")
	ErrPromptTimeoutKey = errors.ErrorCode("sequencer_prompt_timeout")
)

// ErrPromptTimeout is returned by Session.AwaitPrompt when the prompt did
// not show up in time. The sequencer treats it as "no output yet".
var ErrPromptTimeout = errors.New().New(ErrPromptTimeoutKey)

package errors_test

import (
	stderrors "errors"
	"fmt"
	"testing"

	"codeberg.org/mutker/clistat/internal/errors"
	"github.com/stretchr/testify/assert"
)

func TestErrorMessage(t *testing.T) {
	f := errors.New()

	assert.Equal(t, "Access not specified or empty", f.New(errors.ErrMissingCredentials).Error())
	assert.Equal(t, "custom", f.WithMessage(errors.ErrInternal, "custom").Error())
	assert.Equal(t, "Command run failed: boom", f.Wrap(errors.ErrRunFailed, stderrors.New("boom")).Error())
	assert.Equal(t, "Invalid search pattern: x", f.WithData(errors.ErrInvalidPattern, "x").Error())
}

func TestHasCode(t *testing.T) {
	f := errors.New()
	inner := f.New(errors.ErrMissingCredentials)
	outer := fmt.Errorf("config: %w", f.Wrap(errors.ErrInvalidConfig, inner))

	assert.True(t, errors.HasCode(outer, errors.ErrInvalidConfig))
	assert.True(t, errors.HasCode(outer, errors.ErrMissingCredentials))
	assert.False(t, errors.HasCode(outer, errors.ErrTimeout))
	assert.False(t, errors.HasCode(nil, errors.ErrTimeout))
}

func TestIsMatchesByCode(t *testing.T) {
	f := errors.New()
	err := fmt.Errorf("wrapped: %w", f.Wrap(errors.ErrRunFailed, stderrors.New("eof")))

	assert.True(t, errors.Is(err, f.New(errors.ErrRunFailed)))
	assert.False(t, errors.Is(err, f.New(errors.ErrTimeout)))
	assert.Equal(t, errors.ErrRunFailed, errors.CodeOf(err))
	assert.Equal(t, errors.ErrInternal, errors.CodeOf(stderrors.New("plain")))
}

// Package runctx carries the state scoped to a single job run.
package runctx

import (
	"fmt"
	"time"

	"codeberg.org/mutker/clistat/internal/logger"
	"github.com/google/uuid"
)

// Context is created once per job and passed explicitly to the sequencer
// and the telemetry pipeline.
type Context struct {
	ID    uuid.UUID
	Start time.Time
	Log   logger.Logger

	step int
}

// New starts a run at start.
func New(start time.Time, log logger.Logger) *Context {
	id := uuid.New()
	if log == nil {
		log = logger.Nop()
	}
	return &Context{
		ID:    id,
		Start: start,
		Log:   log.With("run_id", id.String()),
	}
}

// NextStep advances and returns the step counter.
func (c *Context) NextStep() int {
	c.step++
	return c.step
}

// Step returns the current step.
func (c *Context) Step() int {
	return c.step
}

// Elapsed returns the time since the run started.
func (c *Context) Elapsed(now time.Time) time.Duration {
	return now.Sub(c.Start)
}

// Tag formats a step-qualified position such as "2.01.05" for log lines.
func (c *Context) Tag(iteration, entry int) string {
	return fmt.Sprintf("%d.%02d.%02d", c.step, iteration, entry)
}

package sequencer

import (
	"context"
	"time"
)

// Session is the interactive shell the plan is replayed against.
type Session interface {
	// Send writes one line to the remote shell.
	Send(ctx context.Context, line string) error

	// AwaitPrompt blocks until the prompt appears or timeout elapses and
	// returns everything the remote side wrote since the previous call.
	// On timeout it returns the text gathered so far with ErrPromptTimeout.
	AwaitPrompt(ctx context.Context, timeout time.Duration) (string, error)
}

// Clock abstracts wall-clock access so runs can be replayed in tests.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// SystemClock is the real wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time        { return time.Now() }
func (SystemClock) Sleep(d time.Duration) { time.Sleep(d) }

// Plan is the ordered script of command sets.
type Plan []Set

// Set is a group of entries run once, or repeatedly when Repeat is set.
type Set struct {
	Entries []Entry
	Repeat  bool
	// Iterations caps a repeated set; zero defers to Budget.MaxIterations.
	Iterations int
}

// Budget bounds a run.
type Budget struct {
	MaxIterations int
	MaxDuration   time.Duration
	Interval      time.Duration
	InitialDelay  time.Duration
}

// Capture is the raw output of a run: one block per send, plus the send
// instant of every command matching the trigger pattern.
type Capture struct {
	Blocks   []string
	Triggers []time.Time
}

// Sends returns the number of commands sent.
func (c *Capture) Sends() int {
	return len(c.Blocks)
}

func (s Set) iterations(budgetMax int) int {
	if !s.Repeat {
		return 1
	}
	n := s.Iterations
	if n <= 0 {
		n = budgetMax
	}
	if budgetMax > 0 && n > budgetMax {
		n = budgetMax
	}
	return n
}

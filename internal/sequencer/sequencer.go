// Package sequencer replays a command plan against an interactive shell
// and records what the shell printed.
package sequencer

import (
	"context"
	"regexp"
	"time"

	"codeberg.org/mutker/clistat/internal/errors"
	"codeberg.org/mutker/clistat/internal/runctx"
)

// Some shells drop input typed before they finish drawing the first prompt.
const minSettleDelay = 3 * time.Second

// Config configures a Sequencer.
type Config struct {
	Budget         Budget
	DefaultTimeout time.Duration
	// Trigger selects the commands whose send instant is recorded.
	Trigger string
	Clock   Clock
}

type Sequencer struct {
	session        Session
	clock          Clock
	budget         Budget
	defaultTimeout time.Duration
	trigger        *regexp.Regexp
}

func New(session Session, cfg Config) (*Sequencer, error) {
	errFactory := errors.New()

	if session == nil {
		return nil, errFactory.WithMessage(ErrInvalidConfig, "session is required")
	}
	if cfg.Budget.MaxIterations < 0 || cfg.Budget.MaxDuration < 0 {
		return nil, errFactory.WithData(ErrInvalidConfig, cfg.Budget)
	}

	s := &Sequencer{
		session:        session,
		clock:          cfg.Clock,
		budget:         cfg.Budget,
		defaultTimeout: cfg.DefaultTimeout,
	}
	if s.clock == nil {
		s.clock = SystemClock{}
	}

	if cfg.Trigger != "" {
		re, err := regexp.Compile(cfg.Trigger)
		if err != nil {
			return nil, errFactory.Wrap(ErrInvalidTrigger, err)
		}
		s.trigger = re
	}

	return s, nil
}

// Run replays plan. On a transport failure it returns the capture gathered
// so far together with the error, so a partial report can still be built.
func (s *Sequencer) Run(ctx context.Context, rc *runctx.Context, plan Plan) (*Capture, error) {
	capture := &Capture{}

	settle := max(minSettleDelay, s.budget.InitialDelay)
	rc.Log.Info().Dur("delay", settle).Msg("Waiting for the remote shell to settle")
	s.clock.Sleep(settle)

	if err := s.session.Send(ctx, ""); err != nil {
		return capture, errors.New().Wrap(ErrSendFailed, err)
	}

	for i, set := range plan {
		rc.NextStep()
		rc.Log.Info().
			Int("set", i).
			Bool("repeat", set.Repeat).
			Int("entries", len(set.Entries)).
			Msg("Submitting command set")

		if err := s.runSet(ctx, rc, set, capture); err != nil {
			return capture, err
		}
	}

	rc.Log.Info().
		Int("sends", capture.Sends()).
		Int("triggers", len(capture.Triggers)).
		Dur("elapsed", rc.Elapsed(s.clock.Now())).
		Msg("Command plan completed")

	return capture, nil
}

func (s *Sequencer) runSet(ctx context.Context, rc *runctx.Context, set Set, capture *Capture) error {
	iterations := set.iterations(s.budget.MaxIterations)

	for i := 0; i < iterations; i++ {
		triggers := len(capture.Triggers)

		for j, entry := range set.Entries {
			if err := s.runEntry(ctx, rc, rc.Tag(i, j), entry, capture); err != nil {
				return err
			}
		}

		if !set.Repeat {
			continue
		}

		if n := len(capture.Triggers) - triggers; n > 1 {
			rc.Log.Warn().
				Int("iteration", i).
				Int("triggers", n).
				Msg("Trigger command sent more than once in one iteration; resource samples may be misattributed")
		}

		elapsed := rc.Elapsed(s.clock.Now())
		if elapsed >= s.budget.MaxDuration {
			rc.Log.Info().
				Int("iteration", i+1).
				Dur("elapsed", elapsed).
				Dur("max_duration", s.budget.MaxDuration).
				Msg("Duration budget reached, stopping repeated set")
			break
		}

		if i < iterations-1 {
			rc.Log.Info().Dur("interval", s.budget.Interval).Msg("Sleeping between iterations")
			s.clock.Sleep(s.budget.Interval)
		}
	}

	return nil
}

func (s *Sequencer) runEntry(ctx context.Context, rc *runctx.Context, tag string, entry Entry, capture *Capture) error {
	errFactory := errors.New()
	command, count, timeout := entry.Resolve(s.defaultTimeout)

	rc.Log.Debug().
		Str("step", tag).
		Str("command", command).
		Int("count", count).
		Dur("timeout", timeout).
		Msg("Sending command")

	for k := 0; k < count; k++ {
		var text string
		if timeout > 0 {
			out, err := s.session.AwaitPrompt(ctx, timeout)
			if err != nil {
				if !errors.Is(err, ErrPromptTimeout) {
					return errFactory.Wrap(ErrAwaitFailed, err)
				}
				rc.Log.Debug().Str("step", tag).Msg("Prompt not seen before timeout")
			}
			text = out
		}

		if err := s.session.Send(ctx, command); err != nil {
			return errFactory.Wrap(ErrSendFailed, err)
		}

		capture.Blocks = append(capture.Blocks, text)
		if s.trigger != nil && s.trigger.MatchString(command) {
			capture.Triggers = append(capture.Triggers, s.clock.Now())
		}
	}

	return nil
}

package sequencer_test

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"codeberg.org/mutker/clistat/internal/errors"
	"codeberg.org/mutker/clistat/internal/runctx"
	"codeberg.org/mutker/clistat/internal/sequencer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(d time.Duration) {
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
}

type fakeSession struct {
	clock    *fakeClock
	sendCost time.Duration
	outputs  []string
	awaitErr map[int]error
	failSend int

	sent     []string
	timeouts []time.Duration
}

func (s *fakeSession) Send(_ context.Context, line string) error {
	if s.failSend > 0 && len(s.sent)+1 == s.failSend {
		return stderrors.New("connection reset")
	}
	s.sent = append(s.sent, line)
	s.clock.now = s.clock.now.Add(s.sendCost)
	return nil
}

func (s *fakeSession) AwaitPrompt(_ context.Context, timeout time.Duration) (string, error) {
	idx := len(s.timeouts)
	s.timeouts = append(s.timeouts, timeout)

	var out string
	if idx < len(s.outputs) {
		out = s.outputs[idx]
	}
	return out, s.awaitErr[idx]
}

func newRun(t *testing.T, session *fakeSession, cfg sequencer.Config) (*sequencer.Sequencer, *runctx.Context) {
	t.Helper()
	cfg.Clock = session.clock
	seq, err := sequencer.New(session, cfg)
	require.NoError(t, err)
	return seq, runctx.New(session.clock.now, nil)
}

func defaultBudget() sequencer.Budget {
	return sequencer.Budget{
		MaxIterations: 3,
		MaxDuration:   time.Hour,
		Interval:      2 * time.Second,
		InitialDelay:  time.Second,
	}
}

func TestRunCountsEverySend(t *testing.T) {
	clock := &fakeClock{now: t0}
	session := &fakeSession{clock: clock}
	seq, rc := newRun(t, session, sequencer.Config{Budget: defaultBudget(), DefaultTimeout: time.Second})

	plan := sequencer.Plan{
		{Entries: []sequencer.Entry{sequencer.Simple("show clock"), sequencer.Simple("set cli pager off")}},
		{Repeat: true, Entries: []sequencer.Entry{
			sequencer.Simple("show session info"),
			sequencer.RepeatedWithTimeout(" ", 2, 0),
			sequencer.Repeated("show counter", 3),
		}},
		{Entries: []sequencer.Entry{sequencer.Simple("exit")}},
	}

	capture, err := seq.Run(context.Background(), rc, plan)
	require.NoError(t, err)

	want := 2 + 3*(1+2+3) + 1
	assert.Equal(t, want, capture.Sends())
	// the wake-up line plus every command
	assert.Len(t, session.sent, want+1)
	assert.Equal(t, "", session.sent[0])
	assert.Equal(t, "exit", session.sent[len(session.sent)-1])
	// pager keys never wait for a prompt
	assert.Len(t, session.timeouts, want-3*2)
}

func TestRunSettleDelayFloor(t *testing.T) {
	tests := []struct {
		name    string
		initial time.Duration
		want    time.Duration
	}{
		{"below floor", time.Second, 3 * time.Second},
		{"above floor", 10 * time.Second, 10 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := &fakeClock{now: t0}
			session := &fakeSession{clock: clock}
			budget := defaultBudget()
			budget.InitialDelay = tt.initial
			seq, rc := newRun(t, session, sequencer.Config{Budget: budget})

			_, err := seq.Run(context.Background(), rc, nil)
			require.NoError(t, err)
			require.NotEmpty(t, clock.sleeps)
			assert.Equal(t, tt.want, clock.sleeps[0])
		})
	}
}

func TestRunSleepsBetweenIterationsOnly(t *testing.T) {
	clock := &fakeClock{now: t0}
	session := &fakeSession{clock: clock}
	seq, rc := newRun(t, session, sequencer.Config{Budget: defaultBudget()})

	plan := sequencer.Plan{{Repeat: true, Entries: []sequencer.Entry{sequencer.Simple("show clock")}}}
	capture, err := seq.Run(context.Background(), rc, plan)
	require.NoError(t, err)

	assert.Equal(t, 3, capture.Sends())
	assert.Equal(t, []time.Duration{3 * time.Second, 2 * time.Second, 2 * time.Second}, clock.sleeps)
}

func TestRunSetIterationsCappedByBudget(t *testing.T) {
	clock := &fakeClock{now: t0}
	session := &fakeSession{clock: clock}
	seq, rc := newRun(t, session, sequencer.Config{Budget: defaultBudget()})

	plan := sequencer.Plan{
		{Repeat: true, Iterations: 2, Entries: []sequencer.Entry{sequencer.Simple("a")}},
		{Repeat: true, Iterations: 10, Entries: []sequencer.Entry{sequencer.Simple("b")}},
	}
	capture, err := seq.Run(context.Background(), rc, plan)
	require.NoError(t, err)

	assert.Equal(t, 2+3, capture.Sends())
}

func TestRunStopsAtDurationBudget(t *testing.T) {
	clock := &fakeClock{now: t0}
	session := &fakeSession{clock: clock, sendCost: 10 * time.Second}
	budget := defaultBudget()
	budget.MaxIterations = 10
	budget.MaxDuration = 40 * time.Second
	seq, rc := newRun(t, session, sequencer.Config{Budget: budget})

	plan := sequencer.Plan{{Repeat: true, Entries: []sequencer.Entry{sequencer.Simple("show clock")}}}
	capture, err := seq.Run(context.Background(), rc, plan)
	require.NoError(t, err)

	// settle 3s + wake 10s, then each iteration costs 10s send + 2s sleep:
	// 23s after #1, 35s after #2, 47s after #3.
	assert.Equal(t, 3, capture.Sends())
}

func TestRunZeroDurationStillRunsOneIteration(t *testing.T) {
	clock := &fakeClock{now: t0}
	session := &fakeSession{clock: clock}
	budget := defaultBudget()
	budget.MaxDuration = 0
	seq, rc := newRun(t, session, sequencer.Config{Budget: budget})

	plan := sequencer.Plan{{Repeat: true, Entries: []sequencer.Entry{sequencer.Simple("show clock")}}}
	capture, err := seq.Run(context.Background(), rc, plan)
	require.NoError(t, err)

	assert.Equal(t, 1, capture.Sends())
}

func TestRunRecordsTriggersAndBlocks(t *testing.T) {
	clock := &fakeClock{now: t0}
	session := &fakeSession{clock: clock, sendCost: time.Second, outputs: []string{"first", "second", "third", "fourth"}}
	budget := defaultBudget()
	budget.MaxIterations = 2
	seq, rc := newRun(t, session, sequencer.Config{
		Budget:         budget,
		DefaultTimeout: time.Second,
		Trigger:        `resource-monitor`,
	})

	plan := sequencer.Plan{{Repeat: true, Entries: []sequencer.Entry{
		sequencer.Simple("show running resource-monitor second last 30"),
		sequencer.Simple("show clock"),
	}}}
	capture, err := seq.Run(context.Background(), rc, plan)
	require.NoError(t, err)

	assert.Equal(t, []string{"first", "second", "third", "fourth"}, capture.Blocks)
	require.Len(t, capture.Triggers, 2)
	// settle 3s, wake 1s, send 1s
	assert.Equal(t, t0.Add(5*time.Second), capture.Triggers[0])
	// +1s show clock, +2s sleep, +1s send
	assert.Equal(t, t0.Add(9*time.Second), capture.Triggers[1])
}

func TestRunPromptTimeoutIsNotFatal(t *testing.T) {
	clock := &fakeClock{now: t0}
	session := &fakeSession{
		clock:    clock,
		outputs:  []string{"partial"},
		awaitErr: map[int]error{0: errors.New().Wrap(sequencer.ErrPromptTimeoutKey, context.DeadlineExceeded)},
	}
	seq, rc := newRun(t, session, sequencer.Config{Budget: defaultBudget(), DefaultTimeout: time.Second})

	plan := sequencer.Plan{{Entries: []sequencer.Entry{sequencer.Simple("a"), sequencer.Simple("b")}}}
	capture, err := seq.Run(context.Background(), rc, plan)
	require.NoError(t, err)

	assert.Equal(t, []string{"partial", ""}, capture.Blocks)
}

func TestRunReturnsPartialCaptureOnTransportFailure(t *testing.T) {
	clock := &fakeClock{now: t0}
	// the wake-up line is send #1, so the third command fails
	session := &fakeSession{clock: clock, failSend: 4, outputs: []string{"one", "two", "three"}}
	seq, rc := newRun(t, session, sequencer.Config{Budget: defaultBudget(), DefaultTimeout: time.Second})

	plan := sequencer.Plan{{Entries: []sequencer.Entry{
		sequencer.Simple("a"), sequencer.Simple("b"), sequencer.Simple("c"), sequencer.Simple("d"),
	}}}
	capture, err := seq.Run(context.Background(), rc, plan)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, sequencer.ErrSendFailed))

	require.NotNil(t, capture)
	assert.Equal(t, []string{"one", "two"}, capture.Blocks)
}

func TestRunAwaitFailureAborts(t *testing.T) {
	clock := &fakeClock{now: t0}
	session := &fakeSession{clock: clock, awaitErr: map[int]error{1: stderrors.New("eof")}}
	seq, rc := newRun(t, session, sequencer.Config{Budget: defaultBudget(), DefaultTimeout: time.Second})

	plan := sequencer.Plan{{Entries: []sequencer.Entry{sequencer.Simple("a"), sequencer.Simple("b")}}}
	capture, err := seq.Run(context.Background(), rc, plan)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, sequencer.ErrAwaitFailed))
	assert.Equal(t, 1, capture.Sends())
}

func TestNewRejectsBadTrigger(t *testing.T) {
	_, err := sequencer.New(&fakeSession{clock: &fakeClock{}}, sequencer.Config{Trigger: "("})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, sequencer.ErrInvalidTrigger))
}

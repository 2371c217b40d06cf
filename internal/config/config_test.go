package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mutker/clistat/internal/errors"
	"codeberg.org/mutker/clistat/internal/sequencer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
hostname: fw2.example.net
iterations: 5
duration: 1h30m
time_interval: 4
plan:
  - commands:
      - show clock
      - [" ", 2, 0]
      - {command: show session info, count: 3}
  - repeat: true
    iterations: 2
    commands:
      - show running resource-monitor second last 30
metrics:
  - name: activeTCPSessions
    pattern: 'active TCP sessions:\s+(\d+)'
resource_monitor:
  default_device: dp1
  window: 10
database:
  enabled: true
  path: /var/lib/clistat/series.db
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cli.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	t.Setenv("CLISTAT_CONFIG", "")

	cfg, err := Load([]string{"fw1"})
	require.NoError(t, err)

	assert.Equal(t, "fw1", cfg.Hostname)
	assert.Equal(t, DefaultUsername, cfg.Username)
	assert.Equal(t, DefaultPassEnv, cfg.PassEnv)
	assert.Equal(t, DefaultIterations, cfg.Iterations)
	assert.Equal(t, DefaultLogBufSize, cfg.LogBufSize)
	assert.True(t, cfg.ResourceMonitor.SkipFirstRow)
	assert.Empty(t, cfg.File)
	assert.Len(t, cfg.Plan, 3)
	assert.True(t, cfg.Plan[1].Repeat)
	assert.Len(t, cfg.Metrics, 7)
}

func TestLoadFileDecodesEntryForms(t *testing.T) {
	path := writeConfig(t, sampleConfig)

	cfg, err := Load([]string{"--conf", path})
	require.NoError(t, err)

	assert.Equal(t, path, cfg.File)
	assert.Equal(t, "fw2.example.net", cfg.Hostname)
	assert.Equal(t, 5, cfg.Iterations)
	assert.Equal(t, "dp1", cfg.ResourceMonitor.DefaultDevice)
	assert.True(t, cfg.Database.Enabled)

	plan := cfg.CommandPlan()
	require.Len(t, plan, 2)
	assert.Equal(t, []sequencer.Entry{
		sequencer.Simple("show clock"),
		sequencer.RepeatedWithTimeout(" ", 2, 0),
		sequencer.Repeated("show session info", 3),
	}, plan[0].Entries)
	assert.False(t, plan[0].Repeat)
	assert.True(t, plan[1].Repeat)
	assert.Equal(t, 2, plan[1].Iterations)

	require.Len(t, cfg.Metrics, 1)
	assert.Equal(t, "activeTCPSessions", cfg.Metrics[0].Name)
}

func TestLoadFlagsOverrideFile(t *testing.T) {
	path := writeConfig(t, sampleConfig)

	cfg, err := Load([]string{"-c", path, "--iterations", "7", "--duration", "30m", "-v", "fw9"})
	require.NoError(t, err)

	assert.Equal(t, "fw9", cfg.Hostname)
	assert.Equal(t, 7, cfg.Iterations)
	assert.Equal(t, "30m", cfg.Duration)
	assert.True(t, cfg.Verbose)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("CLISTAT_CONFIG", writeConfig(t, sampleConfig))
	t.Setenv("CLISTAT_ITERATIONS", "9")
	t.Setenv("CLISTAT_USERNAME", "ops")

	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, 9, cfg.Iterations)
	assert.Equal(t, "ops", cfg.Username)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load([]string{"--conf", filepath.Join(t.TempDir(), "absent.yaml")})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrReadConfig))
}

func TestLoadRejectsBadPatterns(t *testing.T) {
	path := writeConfig(t, "metrics:\n  - name: broken\n    pattern: '('\n")
	_, err := Load([]string{"--conf", path})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidPattern))

	path = writeConfig(t, "prompt: '[a-'\n")
	_, err = Load([]string{"--conf", path})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidPattern))
}

func TestValidateRejectsNegativeValues(t *testing.T) {
	cfg := &Config{Prompt: DefaultPrompt, Trigger: DefaultTrigger, Iterations: -1}
	assert.True(t, errors.HasCode(cfg.Validate(), errors.ErrInvalidConfig))

	cfg = &Config{
		Prompt:  DefaultPrompt,
		Trigger: DefaultTrigger,
		Plan:    []SetConfig{{Commands: []EntryConfig{{Command: "q", Timeout: intPtr(-2)}}}},
	}
	assert.True(t, errors.HasCode(cfg.Validate(), errors.ErrInvalidPlan))
}

func TestResolveCredentials(t *testing.T) {
	t.Setenv("PAPASS", "secret")

	cfg := &Config{Hostname: "fw1", PassEnv: "PAPASS"}
	require.NoError(t, cfg.ResolveCredentials())
	assert.Equal(t, DefaultUsername, cfg.Username)
	assert.Equal(t, "secret", cfg.Password)

	cfg = &Config{Hostname: "fw1", Password: "inline", PassEnv: "PAPASS"}
	require.NoError(t, cfg.ResolveCredentials())
	assert.Equal(t, "inline", cfg.Password)
}

func TestResolveCredentialsMissingPassword(t *testing.T) {
	t.Setenv("CLISTAT_TEST_EMPTY", "")

	cfg := &Config{Hostname: "fw1", PassEnv: "CLISTAT_TEST_EMPTY"}
	err := cfg.ResolveCredentials()
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrMissingCredentials))

	cfg = &Config{Password: "x"}
	assert.True(t, errors.HasCode(cfg.ResolveCredentials(), errors.ErrInvalidConfig))
}

func TestRedactedBlanksCredentials(t *testing.T) {
	cfg := &Config{Hostname: "fw1", Username: "admin", Password: "secret"}
	out := cfg.Redacted()

	assert.Empty(t, out.Username)
	assert.Empty(t, out.Password)
	assert.Equal(t, "fw1", out.Hostname)
	assert.Equal(t, "secret", cfg.Password)
}

func TestSequencerConfigConversions(t *testing.T) {
	cfg := &Config{Iterations: 4, Duration: "1h30m", TimeInterval: 2, TimeDelay: 5, CLITimeout: 3, Trigger: "rm"}
	sc := cfg.SequencerConfig()

	assert.Equal(t, 4, sc.Budget.MaxIterations)
	assert.Equal(t, 90*time.Minute, sc.Budget.MaxDuration)
	assert.Equal(t, 2*time.Second, sc.Budget.Interval)
	assert.Equal(t, 5*time.Second, sc.Budget.InitialDelay)
	assert.Equal(t, 3*time.Second, sc.DefaultTimeout)
	assert.Equal(t, "rm", sc.Trigger)

	cfg.Duration = "soon"
	assert.Equal(t, time.Hour, cfg.SequencerConfig().Budget.MaxDuration)
}

func TestEntryFromListRejectsBadShapes(t *testing.T) {
	_, err := entryFromList(nil)
	assert.Error(t, err)

	_, err = entryFromList([]interface{}{"a", 1, 2, 3})
	assert.Error(t, err)

	_, err = entryFromList([]interface{}{"a", "many"})
	assert.Error(t, err)

	entry, err := entryFromList([]interface{}{"q", "1", 0})
	require.NoError(t, err)
	assert.Equal(t, 1, entry.Count)
	require.NotNil(t, entry.Timeout)
	assert.Equal(t, 0, *entry.Timeout)
}

func TestTelemetryConfigResourceWindow(t *testing.T) {
	cfg := &Config{TimeInterval: 2}
	assert.Equal(t, 2, cfg.TelemetryConfig().Resources.Window)

	cfg.ResourceMonitor.Window = 10
	assert.Equal(t, 10, cfg.TelemetryConfig().Resources.Window)

	cfg = &Config{}
	assert.Zero(t, cfg.TelemetryConfig().Resources.Window)
}

package config

import (
	"os"
	"regexp"
	"strings"
	"time"

	"codeberg.org/mutker/clistat/internal/duration"
	"codeberg.org/mutker/clistat/internal/errors"
	"codeberg.org/mutker/clistat/internal/sequencer"
	"codeberg.org/mutker/clistat/internal/session"
	"codeberg.org/mutker/clistat/internal/telemetry"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Hostname   string `mapstructure:"hostname" yaml:"hostname"`
	Port       int    `mapstructure:"port" yaml:"port"`
	Username   string `mapstructure:"username" yaml:"username"`
	Password   string `mapstructure:"password" yaml:"password"`
	PassEnv    string `mapstructure:"passenv" yaml:"passenv"`
	Prompt     string `mapstructure:"prompt" yaml:"prompt"`
	KnownHosts string `mapstructure:"known_hosts" yaml:"known_hosts"`

	Iterations   int    `mapstructure:"iterations" yaml:"iterations"`
	TimeDelay    int    `mapstructure:"time_delay" yaml:"time_delay"`
	TimeInterval int    `mapstructure:"time_interval" yaml:"time_interval"`
	Duration     string `mapstructure:"duration" yaml:"duration"`
	CLITimeout   int    `mapstructure:"cli_timeout" yaml:"cli_timeout"`
	Trigger      string `mapstructure:"trigger" yaml:"trigger"`

	JobDir     string `mapstructure:"job_dir" yaml:"job_dir"`
	LogFile    string `mapstructure:"log_file" yaml:"log_file"`
	CnfFile    string `mapstructure:"cnf_file" yaml:"cnf_file"`
	CliFile    string `mapstructure:"cli_file" yaml:"cli_file"`
	StaFile    string `mapstructure:"sta_file" yaml:"sta_file"`
	SerFile    string `mapstructure:"ser_file" yaml:"ser_file"`
	LogBufSize int    `mapstructure:"log_buf_size" yaml:"log_buf_size"`

	Verbose bool `mapstructure:"verbose" yaml:"verbose"`
	Debug   bool `mapstructure:"debug" yaml:"debug"`

	Plan            []SetConfig           `mapstructure:"plan" yaml:"plan"`
	Metrics         []MetricConfig        `mapstructure:"metrics" yaml:"metrics"`
	ResourceMonitor ResourceMonitorConfig `mapstructure:"resource_monitor" yaml:"resource_monitor"`
	Database        DatabaseConfig        `mapstructure:"database" yaml:"database"`
	Export          ExportConfig          `mapstructure:"export" yaml:"export"`

	// Path of the file the configuration was read from, if any.
	File string `mapstructure:"-" yaml:"-"`
}

// Load reads the configuration file named by --conf (or CLISTAT_CONFIG),
// applies CLISTAT_* environment overrides and then command line flags. The
// first positional argument overrides the hostname.
func Load(args []string) (*Config, error) {
	errFactory := errors.New()
	v := viper.New()
	setDefaults(v)

	flags := pflag.NewFlagSet("clistat", pflag.ContinueOnError)
	confFlag := flags.StringP("conf", "c", "", "config file")
	flags.BoolP("verbose", "v", false, "verbose mode")
	flags.Bool("debug", false, "debug mode")
	flags.IntP("iterations", "n", DefaultIterations, "number of iterations of the repeated command set")
	flags.StringP("duration", "d", DefaultDuration, "maximum run time, e.g. 30m or 1h30m")
	flags.String("job-dir", "", "job folder, {} is replaced by ddhhmm")

	if err := flags.Parse(args); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}

	for key, flag := range map[string]string{
		"verbose":    "verbose",
		"debug":      "debug",
		"iterations": "iterations",
		"duration":   "duration",
		"job_dir":    "job-dir",
	} {
		f := flags.Lookup(flag)
		if !f.Changed {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return nil, errFactory.Wrap(errors.ErrBindFlags, err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path, explicit := *confFlag, true
	if path == "" {
		path = os.Getenv(envPrefix + "_CONFIG")
	}
	if path == "" {
		path, explicit = DefaultConfigFile, false
	}

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		if explicit || !os.IsNotExist(err) {
			return nil, errFactory.Wrap(errors.ErrReadConfig, err)
		}
		path = ""
	}

	cfg := &Config{}
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		entryDecodeHook(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(cfg, hook); err != nil {
		return nil, errFactory.Wrap(errors.ErrReadConfig, err)
	}
	cfg.File = path

	if target := flags.Arg(0); target != "" {
		cfg.Hostname = target
	}

	if len(cfg.Plan) == 0 {
		cfg.Plan = defaultPlan()
	}
	if len(cfg.Metrics) == 0 {
		cfg.Metrics = defaultMetrics()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Every key needs a default so AutomaticEnv can see it at Unmarshal time.
func setDefaults(v *viper.Viper) {
	v.SetDefault("hostname", "")
	v.SetDefault("port", 0)
	v.SetDefault("password", "")
	v.SetDefault("known_hosts", "")
	v.SetDefault("verbose", false)
	v.SetDefault("debug", false)
	v.SetDefault("username", DefaultUsername)
	v.SetDefault("passenv", DefaultPassEnv)
	v.SetDefault("prompt", DefaultPrompt)
	v.SetDefault("iterations", DefaultIterations)
	v.SetDefault("time_delay", DefaultTimeDelay)
	v.SetDefault("time_interval", DefaultTimeInterval)
	v.SetDefault("duration", DefaultDuration)
	v.SetDefault("cli_timeout", DefaultCLITimeout)
	v.SetDefault("trigger", DefaultTrigger)
	v.SetDefault("job_dir", "job-{}")
	v.SetDefault("log_file", "job-{}.log")
	v.SetDefault("cnf_file", "cnf-{}.yaml")
	v.SetDefault("cli_file", "cli-{}.log")
	v.SetDefault("sta_file", "sta-{}.json")
	v.SetDefault("ser_file", "ser-{}.json")
	v.SetDefault("log_buf_size", DefaultLogBufSize)
	v.SetDefault("resource_monitor.skip_first_row", true)
	v.SetDefault("resource_monitor.device_pattern", "")
	v.SetDefault("resource_monitor.header_pattern", "")
	v.SetDefault("resource_monitor.default_device", "")
	v.SetDefault("resource_monitor.window", 0)
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.path", DefaultDatabasePath)
	v.SetDefault("export.textfile", "")
}

// Validate checks ranges and compiles every pattern once so a bad regular
// expression is reported before any connection is made.
func (c *Config) Validate() error {
	errFactory := errors.New()

	if c.Iterations < 0 || c.TimeDelay < 0 || c.TimeInterval < 0 || c.CLITimeout < 0 {
		return errFactory.WithData(errors.ErrInvalidConfig, struct {
			Iterations, TimeDelay, TimeInterval, CLITimeout int
		}{c.Iterations, c.TimeDelay, c.TimeInterval, c.CLITimeout})
	}
	if c.LogBufSize < 0 {
		return errFactory.WithData(errors.ErrInvalidConfig, struct{ LogBufSize int }{c.LogBufSize})
	}

	for _, expr := range []string{c.Prompt, c.Trigger} {
		if _, err := regexp.Compile(expr); err != nil {
			return errFactory.Wrap(errors.ErrInvalidPattern, err)
		}
	}

	for i, set := range c.Plan {
		for j, entry := range set.Commands {
			if entry.Count < 0 || (entry.Timeout != nil && *entry.Timeout < 0) {
				return errFactory.WithData(errors.ErrInvalidPlan, struct {
					Set, Entry int
					Command    string
				}{i, j, entry.Command})
			}
		}
	}

	if _, err := telemetry.NewPipeline(c.TelemetryConfig()); err != nil {
		return errFactory.Wrap(errors.ErrInvalidPattern, err)
	}

	return nil
}

// ResolveCredentials fills in the default username and takes the password
// from the environment variable named by passenv when none is configured.
func (c *Config) ResolveCredentials() error {
	if c.Username == "" {
		c.Username = DefaultUsername
	}
	if c.Password == "" && c.PassEnv != "" {
		c.Password = os.Getenv(c.PassEnv)
	}
	if c.Password == "" {
		return errors.New().WithData(errors.ErrMissingCredentials, struct {
			File    string
			PassEnv string
		}{c.File, c.PassEnv})
	}
	if c.Hostname == "" {
		return errors.New().WithMessage(errors.ErrInvalidConfig, "hostname not specified")
	}
	return nil
}

// Redacted returns a copy safe to write next to the job output.
func (c *Config) Redacted() *Config {
	out := *c
	out.Username = ""
	out.Password = ""
	return &out
}

func (c *Config) CommandPlan() sequencer.Plan {
	plan := make(sequencer.Plan, 0, len(c.Plan))
	for _, set := range c.Plan {
		entries := make([]sequencer.Entry, 0, len(set.Commands))
		for _, e := range set.Commands {
			switch {
			case e.Timeout != nil:
				entries = append(entries, sequencer.RepeatedWithTimeout(e.Command, e.Count, seconds(*e.Timeout)))
			case e.Count > 0:
				entries = append(entries, sequencer.Repeated(e.Command, e.Count))
			default:
				entries = append(entries, sequencer.Simple(e.Command))
			}
		}
		plan = append(plan, sequencer.Set{
			Entries:    entries,
			Repeat:     set.Repeat,
			Iterations: set.Iterations,
		})
	}
	return plan
}

func (c *Config) SequencerConfig() sequencer.Config {
	return sequencer.Config{
		Budget: sequencer.Budget{
			MaxIterations: c.Iterations,
			MaxDuration:   duration.ParseDuration(c.Duration),
			Interval:      seconds(c.TimeInterval),
			InitialDelay:  seconds(c.TimeDelay),
		},
		DefaultTimeout: seconds(c.CLITimeout),
		Trigger:        c.Trigger,
	}
}

func (c *Config) TelemetryConfig() telemetry.Config {
	patterns := make([]telemetry.Pattern, 0, len(c.Metrics))
	for _, m := range c.Metrics {
		patterns = append(patterns, telemetry.Pattern{Name: m.Name, Expr: m.Pattern})
	}

	return telemetry.Config{
		Metrics: patterns,
		Resources: telemetry.ResourceOptions{
			DevicePattern: c.ResourceMonitor.DevicePattern,
			HeaderPattern: c.ResourceMonitor.HeaderPattern,
			DefaultDevice: c.ResourceMonitor.DefaultDevice,
			SkipFirstRow:  c.ResourceMonitor.SkipFirstRow,
			Window:        c.resourceWindow(),
		},
	}
}

// resourceWindow caps the rows read per resource-monitor header. Without an
// explicit window the cap is the pause between iterations, so consecutive
// segments of a device do not report the same seconds.
func (c *Config) resourceWindow() int {
	if c.ResourceMonitor.Window > 0 {
		return c.ResourceMonitor.Window
	}
	return max(c.TimeInterval, 0)
}

func (c *Config) SessionConfig() session.Config {
	return session.Config{
		Host:       c.Hostname,
		Port:       c.Port,
		Username:   c.Username,
		Password:   c.Password,
		Prompt:     c.Prompt,
		KnownHosts: c.KnownHosts,
	}
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

package config

// SetConfig is one command set of the plan as written in the config file.
type SetConfig struct {
	Commands   []EntryConfig `mapstructure:"commands" yaml:"commands"`
	Repeat     bool          `mapstructure:"repeat" yaml:"repeat,omitempty"`
	Iterations int           `mapstructure:"iterations" yaml:"iterations,omitempty"`
}

// EntryConfig is one command line. It decodes from a bare string, a
// [command, count, timeout] list, or a {command, count, timeout} map.
type EntryConfig struct {
	Command string `mapstructure:"command" yaml:"command"`
	Count   int    `mapstructure:"count" yaml:"count,omitempty"`
	// Timeout in seconds; nil uses cli_timeout, 0 sends without waiting.
	Timeout *int `mapstructure:"timeout" yaml:"timeout,omitempty"`
}

// MetricConfig names a search pattern whose first group is a number.
type MetricConfig struct {
	Name    string `mapstructure:"name" yaml:"name"`
	Pattern string `mapstructure:"pattern" yaml:"pattern"`
}

type ResourceMonitorConfig struct {
	DevicePattern string `mapstructure:"device_pattern" yaml:"device_pattern"`
	HeaderPattern string `mapstructure:"header_pattern" yaml:"header_pattern"`
	DefaultDevice string `mapstructure:"default_device" yaml:"default_device"`
	SkipFirstRow  bool   `mapstructure:"skip_first_row" yaml:"skip_first_row"`
	Window        int    `mapstructure:"window" yaml:"window"`
}

type DatabaseConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"`
}

type ExportConfig struct {
	Textfile string `mapstructure:"textfile" yaml:"textfile"`
}

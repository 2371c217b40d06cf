package config

const (
	DefaultConfigFile   = "conf/cli.yaml"
	DefaultUsername     = "admin"
	DefaultPassEnv      = "PAPASS"
	DefaultPrompt       = `.*>\s+`
	DefaultIterations   = 3
	DefaultTimeDelay    = 1
	DefaultTimeInterval = 2
	DefaultDuration     = "1h"
	DefaultCLITimeout   = 1
	DefaultTrigger      = `resource-monitor`
	DefaultLogBufSize   = 99
	DefaultDatabasePath = "clistat.db"

	envPrefix = "CLISTAT"
)

func intPtr(v int) *int { return &v }

func defaultPlan() []SetConfig {
	return []SetConfig{
		{Commands: []EntryConfig{
			{Command: "show clock"},
			{Command: "set cli pager off"},
			{Command: "show system info"},
		}},
		{Repeat: true, Commands: []EntryConfig{
			{Command: "show session info"},
			{Command: "set cli pager on"},
			{Command: "show session all"},
			{Command: " ", Count: 2, Timeout: intPtr(0)},
			{Command: "q", Count: 1, Timeout: intPtr(0)},
			{Command: "set cli pager off"},
			{Command: "show running resource-monitor second last 30"},
			{Command: `show system resources | match ": "`},
			{Command: `show interface ethernet1/1 | match "bytes received"`},
			{Command: `show vpn ipsec-sa summary | match "tunnels found"`},
			{Command: "show global-protect-gateway statistics"},
			{Command: "debug dataplane show ssl-decrypt ssl-stats"},
			{Command: "show clock"},
		}},
		{Commands: []EntryConfig{
			{Command: "exit"},
		}},
	}
}

func defaultMetrics() []MetricConfig {
	return []MetricConfig{
		{Name: "activeTCPSessions", Pattern: `active TCP sessions:\s+(\d+)`},
		{Name: "activeUDPSessions", Pattern: `active UDP sessions:\s+(\d+)`},
		{Name: "allocatedSessions", Pattern: `allocated sessions:\s+(\d+)`},
		{Name: "connectionRate", Pattern: `connection establish rate:\s+(\d+) cps`},
		{Name: "eth1_1BytesReceived", Pattern: `bytes received\s+(\d+)`},
		{Name: "packetRate", Pattern: `Packet rate:\s+(\d+)\/s`},
		{Name: "vpnIPSecTunnels", Pattern: `Total (\d+) tunnels found`},
	}
}

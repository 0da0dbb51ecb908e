// Package config loads node settings from config/00_default.toml plus
// every config/*.toml merged in lexical order, overridden by SNEKCLOUD_
// prefixed environment variables.
package config

// Settings is the node's full runtime configuration.
type Settings struct {
	ListenAddresses     []string        `mapstructure:"listen_addresses" toml:"listen_addresses"`
	NodeID              string          `mapstructure:"node_id" toml:"node_id"`
	PrivateKey          string          `mapstructure:"private_key" toml:"private_key"`
	NodeDataDir         string          `mapstructure:"node_data_dir" toml:"node_data_dir"`
	TrustedNodes        []string        `mapstructure:"trusted_nodes" toml:"trusted_nodes"`
	SendTimeoutSecs     uint64          `mapstructure:"send_timeout_secs" toml:"send_timeout_secs"`
	RedirectTimeoutSecs uint64          `mapstructure:"redirect_timeout_secs" toml:"redirect_timeout_secs"`
	LogFolder           string          `mapstructure:"log_folder" toml:"log_folder"`
	Modules             ModulesSettings `mapstructure:"modules" toml:"modules"`
}

// ModulesSettings groups the per-module config keys under modules.*.
type ModulesSettings struct {
	Heartbeat    HeartbeatSettings    `mapstructure:"heartbeat" toml:"heartbeat"`
	NodesRefresh NodesRefreshSettings `mapstructure:"nodes_refresh" toml:"nodes_refresh"`
}

// HeartbeatSettings maps modules.heartbeat.*.
type HeartbeatSettings struct {
	IntervalMS       uint64 `mapstructure:"interval_ms" toml:"interval_ms"`
	MaxRecordHistory int    `mapstructure:"max_record_history" toml:"max_record_history"`
	OutputFile       string `mapstructure:"output_file" toml:"output_file,omitempty"`
}

// NodesRefreshSettings maps modules.nodes_refresh.*.
type NodesRefreshSettings struct {
	UpdateIntervalMS uint64 `mapstructure:"update_interval_ms" toml:"update_interval_ms"`
}

// Default returns the settings baked into config/00_default.toml on first
// run. NodeID is resolved dynamically (MAC address, then hostname, then a
// random 16 bytes) rather than baked into the template.
func Default() Settings {
	return Settings{
		ListenAddresses:     []string{},
		NodeID:              deriveNodeID(),
		PrivateKey:          "private_key",
		NodeDataDir:         "nodes",
		TrustedNodes:        []string{},
		SendTimeoutSecs:     5,
		RedirectTimeoutSecs: 20,
		LogFolder:           "logs",
		Modules: ModulesSettings{
			Heartbeat: HeartbeatSettings{
				IntervalMS:       10000,
				MaxRecordHistory: 10,
			},
			NodesRefresh: NodesRefreshSettings{
				UpdateIntervalMS: 3600000,
			},
		},
	}
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"

	"github.com/Trivernis/snekcloud-go/internal/snerr"
)

const (
	configDir     = "config"
	defaultFile   = "config/00_default.toml"
	envPrefix     = "SNEKCLOUD"
)

// Load writes config/00_default.toml if missing, merges every config/*.toml
// in lexical order, applies SNEKCLOUD_-prefixed environment overrides
// (double underscore separates nested keys), and returns the resolved
// Settings.
func Load() (Settings, error) {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return Settings{}, snerr.Wrap(snerr.IO, fmt.Errorf("create %s: %w", configDir, err))
	}
	if _, err := os.Stat(defaultFile); os.IsNotExist(err) {
		if err := writeDefaultFile(defaultFile); err != nil {
			return Settings{}, err
		}
	}

	v := viper.New()
	v.SetConfigType("toml")

	files, err := matchingConfigFiles()
	if err != nil {
		return Settings{}, snerr.Wrap(snerr.GlobPattern, err)
	}

	for i, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return Settings{}, snerr.Wrap(snerr.IO, fmt.Errorf("read %s: %w", path, err))
		}
		if i == 0 {
			if err := v.ReadConfig(strings.NewReader(string(data))); err != nil {
				return Settings{}, snerr.Wrap(snerr.Config, fmt.Errorf("parse %s: %w", path, err))
			}
			continue
		}
		v.SetConfigType("toml")
		if err := v.MergeConfig(strings.NewReader(string(data))); err != nil {
			return Settings{}, snerr.Wrap(snerr.Config, fmt.Errorf("merge %s: %w", path, err))
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "__"))
	v.AutomaticEnv()
	bindEnv(v)

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return Settings{}, snerr.Wrap(snerr.Config, fmt.Errorf("unmarshal settings: %w", err))
	}
	return settings, nil
}

// matchingConfigFiles returns every config/*.toml in lexical order, with
// 00_default.toml guaranteed first (its name already sorts first).
func matchingConfigFiles() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(configDir, "*.toml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}

// bindEnv explicitly registers every known key with Viper so
// AutomaticEnv's prefix/replacer combination picks it up even when no TOML
// file set a default for it (Viper only binds automatic env lookups for
// keys it already knows about).
func bindEnv(v *viper.Viper) {
	keys := []string{
		"listen_addresses", "node_id", "private_key", "node_data_dir",
		"trusted_nodes", "send_timeout_secs", "redirect_timeout_secs", "log_folder",
		"modules.heartbeat.interval_ms", "modules.heartbeat.max_record_history",
		"modules.heartbeat.output_file", "modules.nodes_refresh.update_interval_ms",
	}
	for _, k := range keys {
		_ = v.BindEnv(k)
	}
}

func writeDefaultFile(path string) error {
	data, err := toml.Marshal(Default())
	if err != nil {
		return snerr.Wrap(snerr.TomlSerialize, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return snerr.Wrap(snerr.IO, fmt.Errorf("write %s: %w", path, err))
	}
	return nil
}

package config

import (
	"fmt"

	"github.com/Trivernis/snekcloud-go/internal/directory"
)

// Validate checks the resolved settings for conditions that must abort
// startup: an invalid node_id, an empty private key, node_data_dir or
// log_folder path, a zero heartbeat or nodes_refresh interval, or a
// malformed trusted node id. Directory creation (node_data_dir, log_folder, config/)
// is left to the caller, which already needs to create them to do anything
// useful.
func Validate(s *Settings) error {
	if s == nil {
		return fmt.Errorf("settings is nil")
	}
	if !directory.ValidateID(s.NodeID) {
		return fmt.Errorf("node_id %q is invalid", s.NodeID)
	}
	if s.PrivateKey == "" {
		return fmt.Errorf("private_key path must not be empty")
	}
	if s.NodeDataDir == "" {
		return fmt.Errorf("node_data_dir must not be empty")
	}
	if s.LogFolder == "" {
		return fmt.Errorf("log_folder must not be empty")
	}
	if s.Modules.Heartbeat.IntervalMS == 0 {
		return fmt.Errorf("modules.heartbeat.interval_ms must be greater than 0")
	}
	if s.Modules.NodesRefresh.UpdateIntervalMS == 0 {
		return fmt.Errorf("modules.nodes_refresh.update_interval_ms must be greater than 0")
	}
	for _, id := range s.TrustedNodes {
		if !directory.ValidateID(id) {
			return fmt.Errorf("trusted_nodes: %q is not a valid node id", id)
		}
	}
	return nil
}

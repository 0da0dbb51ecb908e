package heartbeat

import "time"

// Settings configures HeartbeatModule, mapped 1:1 onto the
// modules.heartbeat.* config keys.
type Settings struct {
	Interval         time.Duration
	MaxRecordHistory int
	OutputFile       string // empty disables JSON persistence
}

// DefaultSettings mirrors the config defaults: 10s interval, 10-entry
// history, no persistence file.
func DefaultSettings() Settings {
	return Settings{
		Interval:         10 * time.Second,
		MaxRecordHistory: 10,
	}
}

const (
	// backoffSleep is how long a probe task waits between liveness polls
	// once a peer has been marked dead.
	backoffSleep = 10 * time.Second
	// backoffMultiplier bounds how long a probe task backs off before
	// resuming normal pacing regardless of liveness (100 * interval).
	backoffMultiplier = 100
)

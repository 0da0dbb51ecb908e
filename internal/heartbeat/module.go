// Package heartbeat implements HeartbeatModule: periodic per-peer liveness
// and latency probing.
package heartbeat

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/Trivernis/snekcloud-go/internal/log"
	"github.com/Trivernis/snekcloud-go/internal/module"
	"github.com/Trivernis/snekcloud-go/internal/transport"
)

const beatEvent = "heartbeat:beat"

// Module is the HeartbeatModule. It subscribes to heartbeat:beat on Init
// and, on Run, spawns one probe goroutine per peer known at startup plus
// an optional persistence goroutine.
type Module struct {
	settings Settings
	history  *History
}

// New creates a Module with the given Settings.
func New(settings Settings) *Module {
	return &Module{settings: settings, history: NewHistory(settings.MaxRecordHistory)}
}

func (m *Module) Name() string { return "heartbeat" }

// History exposes the rolling per-peer history (the same one the
// persistence loop writes out), e.g. for tests.
func (m *Module) History() *History { return m.history }

// Init subscribes to heartbeat:beat. The handler fires on whichever node
// receives the beat and records the *sender's* id (payload.NodeID) as
// Alive — so from a node's own point of view, its history for a peer gains
// Alive entries only when that peer successfully probes it back; failures
// recorded by its own outbound probe loop are the Dead entries. Mutual
// probing (both sides know about each other) is what makes each side's
// history for the other fill in.
func (m *Module) Init(t transport.Transport) error {
	t.On(beatEvent, m.handleBeat)
	return nil
}

func (m *Module) handleBeat(from string, event transport.Event) {
	var payload Payload
	if err := event.Decode(&payload); err != nil {
		log.Heartbeat.Debug().Err(err).Str("from", from).Msg("malformed heartbeat payload")
		return
	}

	latency := time.Now().UnixMilli() - payload.BeatAt
	if latency < 0 {
		latency = 0 // Clock skew between peers; never report negative latency.
	}
	m.history.RecordAlive(payload.NodeID, latency)
}

// Run spawns a probe goroutine for every peer known at startup and, if
// configured, a persistence goroutine, then blocks until ctx is cancelled.
func (m *Module) Run(ctx context.Context, rc *module.RunContext) error {
	for _, peer := range rc.Nodes() {
		if peer.ID == rc.NodeID() {
			continue
		}
		go m.probeLoop(ctx, rc, peer.ID)
	}

	if m.settings.OutputFile != "" {
		go m.persistLoop(ctx)
	}

	<-ctx.Done()
	return nil
}

func (m *Module) probeLoop(ctx context.Context, rc *module.RunContext, peer string) {
	for {
		m.probeOnce(ctx, rc, peer)

		if !rc.CheckAlive(peer) {
			if !m.backoffUntilAliveOrGiveUp(ctx, rc, peer) {
				return
			}
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(m.settings.Interval):
		}
	}
}

func (m *Module) probeOnce(ctx context.Context, rc *module.RunContext, peer string) {
	payload := Payload{NodeID: rc.NodeID(), BeatAt: time.Now().UnixMilli()}
	event, err := transport.NewEvent(beatEvent, payload)
	if err != nil {
		log.Heartbeat.Error().Err(err).Msg("failed to encode heartbeat payload")
		return
	}

	future := rc.Emit(peer, event)
	if err := future.Wait(ctx); err != nil {
		m.history.RecordDead(peer)
	}
}

// backoffUntilAliveOrGiveUp sleeps 10s between liveness polls once a peer
// is dead, returning true once it's alive again or 100*interval has passed
// (resuming normal pacing either way), and false only if ctx was cancelled.
func (m *Module) backoffUntilAliveOrGiveUp(ctx context.Context, rc *module.RunContext, peer string) bool {
	deadline := time.Now().Add(time.Duration(backoffMultiplier) * m.settings.Interval)

	for {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(backoffSleep):
		}
		if rc.CheckAlive(peer) || time.Now().After(deadline) {
			return true
		}
	}
}

func (m *Module) persistLoop(ctx context.Context) {
	ticker := time.NewTicker(m.settings.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.persistOnce()
		}
	}
}

func (m *Module) persistOnce() {
	data, err := json.MarshalIndent(m.history.Snapshot(), "", "  ")
	if err != nil {
		log.Heartbeat.Error().Err(err).Msg("failed to marshal heartbeat history")
		return
	}

	tmp := m.settings.OutputFile + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		log.Heartbeat.Error().Err(err).Str("path", tmp).Msg("failed to write heartbeat history")
		return
	}
	if err := os.Rename(tmp, m.settings.OutputFile); err != nil {
		log.Heartbeat.Error().Err(err).Str("path", m.settings.OutputFile).Msg("failed to finalize heartbeat history")
	}
}

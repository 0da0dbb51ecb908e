// Package topology implements TopologyRefreshModule: gossip-based peer
// discovery from trusted neighbors.
package topology

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Trivernis/snekcloud-go/internal/directory"
	"github.com/Trivernis/snekcloud-go/internal/log"
	"github.com/Trivernis/snekcloud-go/internal/module"
	"github.com/Trivernis/snekcloud-go/internal/transport"
)

const (
	requestEvent = "conn:node_list_request"
	replyEvent   = "conn:node_list"
)

// Settings configures TopologyRefreshModule.
type Settings struct {
	UpdateInterval time.Duration
}

// DefaultSettings is the 1-hour default update interval.
func DefaultSettings() Settings {
	return Settings{UpdateInterval: time.Hour}
}

// Module is the TopologyRefreshModule. It keeps a module-local mirror of
// the directory for gossip-merge bookkeeping, a flag for whether the
// mirror has unpersisted changes, and a reference to the shared
// NodeDirectory it both reads (trusted peers to query) and writes
// (newly-discovered peers, via the same merge it applies to the mirror).
type Module struct {
	settings Settings

	mu     sync.Mutex
	mirror map[string]directory.PeerRecord
	// rc is nil until Run starts; handleNodeList (registered during Init,
	// before a RunContext exists) needs it to reach the shared directory.
	rc *module.RunContext

	updateRequired atomic.Bool
	dataDir        string
}

// New creates a Module persisting newly-discovered peers under dataDir.
func New(settings Settings, dataDir string) *Module {
	return &Module{settings: settings, mirror: make(map[string]directory.PeerRecord), dataDir: dataDir}
}

func (m *Module) Name() string { return "nodes_refresh" }

// Init subscribes to both halves of the node-list round trip: conn:node_list
// (a reply to merge) and conn:node_list_request (a request to answer with
// this node's own directory snapshot). The mirror itself is seeded from the
// shared directory on the first Run tick rather than here, since the
// directory is only fully loaded by the time Run starts.
func (m *Module) Init(t transport.Transport) error {
	t.On(replyEvent, m.handleNodeList)
	t.On(requestEvent, m.handleNodeListRequest)
	return nil
}

// handleNodeListRequest answers a conn:node_list_request from any peer
// (trust is the requester's problem, not the responder's) with this node's
// full directory snapshot.
func (m *Module) handleNodeListRequest(from string, event transport.Event) {
	m.mu.Lock()
	rc := m.rc
	m.mu.Unlock()
	if rc == nil {
		return
	}

	entries := make([]NodeEntry, 0, len(rc.Nodes()))
	for _, rec := range rc.Nodes() {
		entries = append(entries, NodeEntry{ID: rec.ID, PublicKey: rec.PublicKey[:], Addresses: rec.Addresses})
	}

	reply, err := transport.NewEvent(replyEvent, NodeListPayload{Nodes: entries})
	if err != nil {
		log.Topology.Error().Err(err).Msg("failed to build node list reply")
		return
	}
	rc.Emit(from, reply)
}

func (m *Module) handleNodeList(from string, event transport.Event) {
	var payload NodeListPayload
	if err := event.Decode(&payload); err != nil {
		log.Topology.Debug().Err(err).Str("from", from).Msg("malformed node list payload")
		return
	}

	m.mu.Lock()
	rc := m.rc
	m.mu.Unlock()
	if rc == nil {
		return
	}
	m.merge(rc.Directory(), payload.Nodes)
}

func (m *Module) merge(dir *directory.Directory, entries []NodeEntry) {
	inserted := false
	for _, entry := range entries {
		var pub [32]byte
		copy(pub[:], entry.PublicKey)

		rec := directory.PeerRecord{
			ID:        entry.ID,
			PublicKey: pub,
			Addresses: entry.Addresses,
			Trusted:   false, // Gossiped entries are never trusted.
			Liveness:  directory.NewLiveness(false),
		}

		m.mu.Lock()
		_, known := m.mirror[entry.ID]
		if !known {
			m.mirror[entry.ID] = rec
		}
		m.mu.Unlock()

		if !known && dir.InsertIfAbsent(rec) {
			inserted = true
		}
	}
	if inserted {
		m.updateRequired.Store(true)
	}
}

// Run seeds the mirror from the directory's current contents, then loops:
// request node lists from trusted living peers, persist if anything new
// arrived, sleep.
func (m *Module) Run(ctx context.Context, rc *module.RunContext) error {
	m.mu.Lock()
	m.rc = rc
	for _, rec := range rc.Nodes() {
		if _, exists := m.mirror[rec.ID]; !exists {
			m.mirror[rec.ID] = rec
		}
	}
	m.mu.Unlock()

	for {
		m.requestFromTrustedPeers(rc)

		if m.updateRequired.CompareAndSwap(true, false) {
			rc.Directory().PersistAll(m.dataDir)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(m.settings.UpdateInterval):
		}
	}
}

func (m *Module) requestFromTrustedPeers(rc *module.RunContext) {
	for _, peer := range rc.LivingNodes() {
		if !peer.Trusted {
			continue
		}
		event, err := transport.NewEvent(requestEvent, nil)
		if err != nil {
			log.Topology.Error().Err(err).Msg("failed to build node list request")
			continue
		}
		rc.Emit(peer.ID, event)
	}
}

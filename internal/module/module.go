// Package module implements the pluggable background-task framework
// (ModuleHost, RunContext) that HeartbeatModule and TopologyRefreshModule
// are built on.
package module

import (
	"context"

	"github.com/Trivernis/snekcloud-go/internal/bus"
	"github.com/Trivernis/snekcloud-go/internal/directory"
	"github.com/Trivernis/snekcloud-go/internal/log"
	"github.com/Trivernis/snekcloud-go/internal/transport"
)

// Module is a pluggable background component. Init registers inbound
// event handlers and may read transport state once; Run is a long-lived
// loop expected to run until its context is cancelled.
type Module interface {
	Name() string
	Init(t transport.Transport) error
	Run(ctx context.Context, rc *RunContext) error
}

// RunContext is the handle a module's Run loop holds. It is cheap to pass
// by value — every field is already a reference type sharing state with
// the host that built it.
type RunContext struct {
	nodeID    string
	bus       *bus.Bus
	directory *directory.Directory
}

// NewRunContext builds a RunContext for nodeID sharing bus b and directory dir.
func NewRunContext(nodeID string, b *bus.Bus, dir *directory.Directory) *RunContext {
	return &RunContext{nodeID: nodeID, bus: b, directory: dir}
}

// NodeID returns this node's own id.
func (rc *RunContext) NodeID() string {
	return rc.nodeID
}

// Emit enqueues an event for target onto the shared InvocationBus and
// returns its completion Future.
func (rc *RunContext) Emit(target string, event transport.Event) *bus.Future {
	return rc.bus.Emit(target, event)
}

// Nodes returns every known peer.
func (rc *RunContext) Nodes() []directory.PeerRecord {
	return rc.directory.Snapshot()
}

// LivingNodes returns every known peer not currently marked dead.
func (rc *RunContext) LivingNodes() []directory.PeerRecord {
	return rc.directory.LivingSnapshot()
}

// CheckAlive reports whether id is known and not marked dead.
func (rc *RunContext) CheckAlive(id string) bool {
	return rc.directory.CheckAlive(id)
}

// Directory exposes the underlying directory handle for modules (topology
// refresh) that need to insert newly-discovered peers or persist them.
func (rc *RunContext) Directory() *directory.Directory {
	return rc.directory
}

// Host registers modules, runs their Init phase synchronously, then spawns
// each module's Run loop on its own goroutine.
type Host struct {
	transport transport.Transport
	rc        *RunContext
	modules   []Module
}

// NewHost creates a Host wired to t, sharing nodeID/bus/directory through rc.
func NewHost(t transport.Transport, rc *RunContext) *Host {
	return &Host{transport: t, rc: rc}
}

// Register calls m.Init and, on success, stores m to be started by Run.
// Registration order is preserved but unimportant — modules are independent.
func (h *Host) Register(m Module) error {
	if err := m.Init(h.transport); err != nil {
		return err
	}
	h.modules = append(h.modules, m)
	return nil
}

// Run spawns every registered module's Run loop on its own goroutine and
// blocks until ctx is cancelled. A panic inside a module's loop is
// recovered and logged; it never tears down the other modules.
func (h *Host) Run(ctx context.Context) {
	for _, m := range h.modules {
		go h.runModule(ctx, m)
	}
	<-ctx.Done()
}

func (h *Host) runModule(ctx context.Context, m Module) {
	defer func() {
		if r := recover(); r != nil {
			log.Node.Error().Interface("panic", r).Str("module", m.Name()).Msg("module panicked")
		}
	}()

	if err := m.Run(ctx, h.rc); err != nil && ctx.Err() == nil {
		log.Node.Error().Err(err).Str("module", m.Name()).Msg("module run loop exited")
	}
}

package transport

import (
	"context"
	"fmt"
	"sync"

	"github.com/Trivernis/snekcloud-go/internal/snerr"
)

// registry lets MemoryTransport instances in the same process address each
// other by node id, simulating a mesh without sockets.
var (
	registryMu sync.RWMutex
	registry   = make(map[string]*MemoryTransport)
)

// MemoryTransport is an in-process Transport used by tests. It is not a fake of the wire transport's
// internals — it satisfies the same contract other code depends on.
type MemoryTransport struct {
	id string

	mu       sync.RWMutex
	handlers map[string]HandlerFunc
	nodes    map[string]NodeInfo
	closed   bool
}

// NewMemoryTransport creates and registers a MemoryTransport for id.
// Registering twice under the same id replaces the previous instance.
func NewMemoryTransport(id string) *MemoryTransport {
	t := &MemoryTransport{
		id:       id,
		handlers: make(map[string]HandlerFunc),
		nodes:    make(map[string]NodeInfo),
	}
	registryMu.Lock()
	registry[id] = t
	registryMu.Unlock()
	return t
}

// Connect tells t about another node's addressable presence, so Nodes()
// reports it and t can route Emit calls by id. This is the in-memory
// stand-in for dialing/handshaking a real transport.
func (t *MemoryTransport) Connect(info NodeInfo) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nodes[info.ID] = info
}

// Close tears t down: future Emits targeting it fail, simulating a peer
// disappearing (used by seed scenario S2).
func (t *MemoryTransport) Close() {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()

	registryMu.Lock()
	delete(registry, t.id)
	registryMu.Unlock()
}

// Emit looks up nodeID in the process-wide registry and, if present and
// not torn down, invokes its registered handler for event.Name.
func (t *MemoryTransport) Emit(ctx context.Context, nodeID string, event Event) error {
	registryMu.RLock()
	target, ok := registry[nodeID]
	registryMu.RUnlock()

	if !ok {
		return snerr.Wrap(snerr.Transport, fmt.Errorf("node %s is unreachable", nodeID))
	}

	target.mu.RLock()
	closed := target.closed
	handler := target.handlers[event.Name]
	target.mu.RUnlock()

	if closed {
		return snerr.Wrap(snerr.Transport, fmt.Errorf("node %s is unreachable", nodeID))
	}
	if handler == nil {
		return nil // No subscriber for this event; delivery still "succeeds".
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		handler(t.id, event)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return snerr.Wrap(snerr.Transport, ctx.Err())
	}
}

// On registers handler for eventName, replacing any previous registration.
func (t *MemoryTransport) On(eventName string, handler HandlerFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers[eventName] = handler
}

// Listen is a no-op for the in-memory transport: node ids ARE addresses.
func (t *MemoryTransport) Listen(addr string) error {
	return nil
}

// Nodes returns the peers this transport has been told about via Connect.
func (t *MemoryTransport) Nodes() []NodeInfo {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]NodeInfo, 0, len(t.nodes))
	for _, n := range t.nodes {
		out = append(out, n)
	}
	return out
}

// Package transport defines the opaque authenticated event-stream contract
// the node runtime consumes, plus two concrete realizations:
// an in-memory transport used by tests, and a
// libp2p-backed transport for real deployments.
package transport

import (
	"context"
	"encoding/json"
)

// Event is a named message with a typed payload delivered end-to-end by
// the transport. Payload is raw JSON so callers decode it into whatever
// struct the event name implies (heartbeat.Payload, topology.NodeListPayload, ...).
type Event struct {
	Name    string
	Payload json.RawMessage
}

// NewEvent marshals payload into an Event with the given name.
func NewEvent(name string, payload any) (Event, error) {
	if payload == nil {
		return Event{Name: name}, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{Name: name, Payload: data}, nil
}

// Decode unmarshals the event's payload into v.
func (e Event) Decode(v any) error {
	if len(e.Payload) == 0 {
		return nil
	}
	return json.Unmarshal(e.Payload, v)
}

// HandlerFunc processes an inbound event. from is the sending node's id.
// Handlers run on a transport-owned goroutine and must not block.
type HandlerFunc func(from string, event Event)

// NodeInfo is what a Transport knows about an addressable peer.
type NodeInfo struct {
	ID        string
	Addresses []string
}

// Transport is the opaque authenticated event-stream transport the core
// depends on. Emit is a blocking call that returns once delivery
// has been attempted or ctx's deadline elapses — the Dispatcher is the only
// caller and supplies the upper bound (its send timeout: send_timeout_secs
// when built by the server, bus.DefaultSendTimeout when none is given).
type Transport interface {
	Emit(ctx context.Context, nodeID string, event Event) error
	On(eventName string, handler HandlerFunc)
	Listen(addr string) error
	Nodes() []NodeInfo
}

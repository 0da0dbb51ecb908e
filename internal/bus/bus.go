// Package bus implements the single invocation channel modules submit
// outbound events on, and the Dispatcher that drains it against a
// transport.Transport.
package bus

import (
	"context"
	"time"

	"github.com/Trivernis/snekcloud-go/internal/directory"
	"github.com/Trivernis/snekcloud-go/internal/log"
	"github.com/Trivernis/snekcloud-go/internal/transport"
)

// DefaultCapacity is the InvocationBus channel capacity used when callers
// don't need a specific one, chosen so a stuck Dispatcher eventually
// applies backpressure to producers instead of growing without bound.
const DefaultCapacity = 32

// DefaultSendTimeout bounds how long the Dispatcher waits on a single
// transport.Emit call before giving up on it.
const DefaultSendTimeout = 60 * time.Second

// EventInvocation is one work item travelling from a module's RunContext
// to the Dispatcher.
type EventInvocation struct {
	Target   string
	Event    transport.Event
	Complete *Future
}

// Bus is the InvocationBus: many module goroutines send on it, one
// Dispatcher drains it.
type Bus struct {
	ch chan EventInvocation
}

// New creates a Bus with the given channel capacity.
func New(capacity int) *Bus {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Bus{ch: make(chan EventInvocation, capacity)}
}

// Submit enqueues inv, blocking if the bus is full. Submit itself never
// fails; delivery outcome is reported through inv.Complete.
func (b *Bus) Submit(inv EventInvocation) {
	b.ch <- inv
}

// Emit is the convenience path RunContext uses: build the invocation,
// submit it, and return its Future.
func (b *Bus) Emit(target string, event transport.Event) *Future {
	f := NewFuture()
	b.Submit(EventInvocation{Target: target, Event: event, Complete: f})
	return f
}

// Dispatcher drains a Bus, calling Transport.Emit for every invocation on
// its own goroutine so a slow or unreachable peer never blocks delivery to
// others. It also updates NodeDirectory liveness as a side effect of every
// attempted delivery.
type Dispatcher struct {
	bus         *Bus
	transport   transport.Transport
	directory   *directory.Directory
	sendTimeout time.Duration
}

// NewDispatcher creates a Dispatcher. sendTimeout <= 0 uses DefaultSendTimeout.
func NewDispatcher(b *Bus, t transport.Transport, dir *directory.Directory, sendTimeout time.Duration) *Dispatcher {
	if sendTimeout <= 0 {
		sendTimeout = DefaultSendTimeout
	}
	return &Dispatcher{bus: b, transport: t, directory: dir, sendTimeout: sendTimeout}
}

// Run drains the bus until ctx is cancelled. Intended to be run on its own
// goroutine from Server.Run.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case inv := <-d.bus.ch:
			go d.deliver(ctx, inv)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, inv EventInvocation) {
	deliverCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()

	err := d.transport.Emit(deliverCtx, inv.Target, inv.Event)
	if d.directory != nil {
		d.directory.SetLiveness(inv.Target, err != nil)
	}
	if err != nil {
		log.Dispatcher.Debug().Err(err).Str("target", inv.Target).Str("event", inv.Event.Name).Msg("delivery failed")
	}
	inv.Complete.Resolve(err)
}

package transport

import (
	"context"
	"testing"
	"time"
)

func TestMemoryTransportEmitDeliversToHandler(t *testing.T) {
	a := NewMemoryTransport("a")
	defer a.Close()
	b := NewMemoryTransport("b")
	defer b.Close()

	received := make(chan string, 1)
	b.On("ping", func(from string, event Event) {
		var payload string
		event.Decode(&payload)
		received <- from + ":" + payload
	})

	event, err := NewEvent("ping", "hello")
	if err != nil {
		t.Fatalf("NewEvent: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := a.Emit(ctx, "b", event); err != nil {
		t.Fatalf("Emit: %v", err)
	}

	select {
	case got := <-received:
		if got != "a:hello" {
			t.Fatalf("received %q, want a:hello", got)
		}
	case <-time.After(time.Second):
		t.Fatal("handler was never invoked")
	}
}

func TestMemoryTransportEmitUnknownNode(t *testing.T) {
	a := NewMemoryTransport("emit-unknown-a")
	defer a.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	event, _ := NewEvent("ping", nil)
	if err := a.Emit(ctx, "does-not-exist", event); err == nil {
		t.Fatal("expected an error emitting to an unregistered node")
	}
}

func TestMemoryTransportEmitAfterClose(t *testing.T) {
	a := NewMemoryTransport("close-a")
	defer a.Close()
	b := NewMemoryTransport("close-b")
	b.On("ping", func(string, Event) {})
	b.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	event, _ := NewEvent("ping", nil)
	if err := a.Emit(ctx, "close-b", event); err == nil {
		t.Fatal("expected an error emitting to a closed transport")
	}
}

package topology

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Trivernis/snekcloud-go/internal/bus"
	"github.com/Trivernis/snekcloud-go/internal/directory"
	"github.com/Trivernis/snekcloud-go/internal/module"
	"github.com/Trivernis/snekcloud-go/internal/transport"
)

// TestMergeFirstWriteWins covers invariant 5: the directory's entry for an
// id matches the first reply seen, and update_required reflects whether any
// id was newly inserted.
func TestMergeFirstWriteWins(t *testing.T) {
	m := New(Settings{UpdateInterval: time.Hour}, t.TempDir())
	dir := directory.New()

	first := NodeEntry{ID: "peer", PublicKey: bytes(1), Addresses: []string{"1.1.1.1:1"}}
	second := NodeEntry{ID: "peer", PublicKey: bytes(2), Addresses: []string{"2.2.2.2:2"}}

	m.merge(dir, []NodeEntry{first})
	if !m.updateRequired.Load() {
		t.Fatal("update_required should be true after the first new insert")
	}
	m.updateRequired.Store(false)

	m.merge(dir, []NodeEntry{second})
	if m.updateRequired.Load() {
		t.Fatal("update_required should stay false when no new id was inserted")
	}

	recs := dir.Snapshot()
	if len(recs) != 1 || recs[0].PublicKey != bytes32(1) {
		t.Fatalf("directory entry should still match the first reply, got %+v", recs)
	}
}

// TestMergeGossipedEntriesAreNeverTrusted covers invariant 6.
func TestMergeGossipedEntriesAreNeverTrusted(t *testing.T) {
	m := New(Settings{UpdateInterval: time.Hour}, t.TempDir())
	dir := directory.New()

	m.merge(dir, []NodeEntry{{ID: "gossiped", PublicKey: bytes(1), Addresses: nil}})

	recs := dir.Snapshot()
	if len(recs) != 1 || recs[0].Trusted {
		t.Fatalf("gossiped entries must never be trusted, got %+v", recs)
	}
}

func bytes(b byte) []byte {
	out := make([]byte, 32)
	for i := range out {
		out[i] = b
	}
	return out
}

func bytes32(b byte) [32]byte {
	var out [32]byte
	for i := range out {
		out[i] = b
	}
	return out
}

type topoNode struct {
	id        string
	transport *transport.MemoryTransport
	directory *directory.Directory
	bus       *bus.Bus
	module    *Module
	host      *module.Host
}

func newTopoNode(t *testing.T, id, dataDir string, interval time.Duration) *topoNode {
	t.Helper()
	tr := transport.NewMemoryTransport(id)
	dir := directory.New()
	b := bus.New(bus.DefaultCapacity)
	tm := New(Settings{UpdateInterval: interval}, dataDir)

	rc := module.NewRunContext(id, b, dir)
	host := module.NewHost(tr, rc)
	if err := host.Register(tm); err != nil {
		t.Fatalf("Register: %v", err)
	}

	return &topoNode{id: id, transport: tr, directory: dir, bus: b, module: tm, host: host}
}

// TestTopologyPropagation is seed scenario S3: A trusts B, B trusts C, A
// does not know C. Within two refresh intervals A learns of C (untrusted)
// and persists C.toml.
func TestTopologyPropagation(t *testing.T) {
	interval := 30 * time.Millisecond
	aDir := t.TempDir()

	a := newTopoNode(t, "A", aDir, interval)
	b := newTopoNode(t, "B", t.TempDir(), interval)
	c := newTopoNode(t, "C", t.TempDir(), interval)

	cPub := bytes32(9)
	a.directory.InsertIfAbsent(directory.PeerRecord{ID: "B", Trusted: true, Liveness: directory.NewLiveness(false)})
	b.directory.InsertIfAbsent(directory.PeerRecord{ID: "C", PublicKey: cPub, Addresses: []string{"10.0.0.3:1"}, Trusted: true, Liveness: directory.NewLiveness(false)})
	b.directory.InsertIfAbsent(directory.PeerRecord{ID: "A", Liveness: directory.NewLiveness(false)})
	c.directory.InsertIfAbsent(directory.PeerRecord{ID: "B", Trusted: true, Liveness: directory.NewLiveness(false)})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for _, n := range []*topoNode{a, b, c} {
		d := bus.NewDispatcher(n.bus, n.transport, n.directory, time.Second)
		go d.Run(ctx)
		go n.host.Run(ctx)
	}

	deadline := time.Now().Add(3 * interval)
	var gotC directory.PeerRecord
	found := false
	for time.Now().Before(deadline) {
		for _, rec := range a.directory.Snapshot() {
			if rec.ID == "C" {
				gotC = rec
				found = true
			}
		}
		if found {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	if !found {
		t.Fatal("A should have learned of C within a few refresh intervals")
	}
	if gotC.Trusted {
		t.Fatal("A's record for C (learned via gossip through B) must not be trusted")
	}
	if gotC.PublicKey != cPub {
		t.Fatalf("A's public key for C = %x, want %x", gotC.PublicKey, cPub)
	}

	persistDeadline := time.Now().Add(3 * interval)
	cFile := filepath.Join(aDir, "C.toml")
	for time.Now().Before(persistDeadline) {
		if _, err := os.Stat(cFile); err == nil {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected %s to exist after topology refresh persisted A's directory", cFile)
}

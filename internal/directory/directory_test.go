package directory

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Trivernis/snekcloud-go/internal/keys"
)

func testRecord(t *testing.T, id string, trusted bool) PeerRecord {
	t.Helper()
	priv, err := keys.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("GeneratePrivateKey: %v", err)
	}
	pub, err := priv.PublicKey()
	if err != nil {
		t.Fatalf("PublicKey: %v", err)
	}
	return PeerRecord{
		ID:        id,
		PublicKey: [32]byte(pub),
		Addresses: []string{"127.0.0.1:1234"},
		Trusted:   trusted,
		Liveness:  NewLiveness(false),
	}
}

func TestInsertIfAbsent(t *testing.T) {
	d := New()
	rec := testRecord(t, "peer1", false)

	if !d.InsertIfAbsent(rec) {
		t.Fatal("first insert should report true")
	}
	if d.InsertIfAbsent(rec) {
		t.Fatal("second insert of the same id should report false")
	}

	// The public key of an existing id is immutable — a differently-keyed
	// insert for the same id is ignored.
	other := testRecord(t, "peer1", true)
	if d.InsertIfAbsent(other) {
		t.Fatal("insert for an existing id must be a no-op")
	}
	snap := d.Snapshot()
	if len(snap) != 1 || snap[0].PublicKey != rec.PublicKey {
		t.Fatal("existing record's public key must not change")
	}
}

func TestLivingSnapshotAndCheckAlive(t *testing.T) {
	d := New()
	alive := testRecord(t, "alive-peer", false)
	dead := testRecord(t, "dead-peer", false)
	dead.Liveness = NewLiveness(true)

	d.InsertIfAbsent(alive)
	d.InsertIfAbsent(dead)

	if !d.CheckAlive("alive-peer") {
		t.Error("alive-peer should be alive")
	}
	if d.CheckAlive("dead-peer") {
		t.Error("dead-peer should not be alive")
	}
	if d.CheckAlive("unknown") {
		t.Error("unknown peer should not be alive")
	}

	living := d.LivingSnapshot()
	if len(living) != 1 || living[0].ID != "alive-peer" {
		t.Fatalf("living snapshot = %+v, want only alive-peer", living)
	}
}

func TestSetLiveness(t *testing.T) {
	d := New()
	d.InsertIfAbsent(testRecord(t, "peer1", false))

	d.SetLiveness("peer1", true)
	if d.CheckAlive("peer1") {
		t.Error("peer1 should be dead after SetLiveness(true)")
	}

	d.SetLiveness("peer1", false)
	if !d.CheckAlive("peer1") {
		t.Error("peer1 should be alive after SetLiveness(false)")
	}

	// Unknown ids are silently ignored.
	d.SetLiveness("ghost", true)
	if d.CheckAlive("ghost") {
		t.Error("ghost should remain unknown, not alive")
	}
}

func TestPersistAllRoundTrip(t *testing.T) {
	dir := t.TempDir()
	d := New()
	rec := testRecord(t, "peer1", true)
	d.InsertIfAbsent(rec)

	d.PersistAll(dir)

	data, err := os.ReadFile(filepath.Join(dir, "peer1.toml"))
	if err != nil {
		t.Fatalf("read persisted descriptor: %v", err)
	}
	desc, err := ParseDescriptor(data)
	if err != nil {
		t.Fatalf("parse persisted descriptor: %v", err)
	}
	if desc.ID != "peer1" {
		t.Errorf("id = %q, want peer1", desc.ID)
	}
	roundTripped, err := desc.ToPeerRecord(map[string]bool{"peer1": true})
	if err != nil {
		t.Fatalf("ToPeerRecord: %v", err)
	}
	if roundTripped.PublicKey != rec.PublicKey {
		t.Error("public key did not round-trip through persistence")
	}
}

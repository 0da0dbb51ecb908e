package transport

import (
	"testing"

	"github.com/Trivernis/snekcloud-go/internal/storage"
)

func TestAddressCacheSaveLoad(t *testing.T) {
	c := NewAddressCache(storage.NewMemoryStore())

	rec := AddressRecord{NodeID: "peer1", PeerID: "Qm123", Addresses: []string{"10.0.0.1:9000"}}
	if err := c.Save(rec); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := c.Load("peer1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.PeerID != rec.PeerID || len(got.Addresses) != 1 || got.Addresses[0] != rec.Addresses[0] {
		t.Fatalf("Load returned %+v, want %+v", got, rec)
	}
}

func TestAddressCacheLoadMissing(t *testing.T) {
	c := NewAddressCache(storage.NewMemoryStore())
	if _, err := c.Load("nope"); err == nil {
		t.Fatal("expected an error loading a missing record")
	}
}

func TestAddressCacheLoadAllAndDelete(t *testing.T) {
	c := NewAddressCache(storage.NewMemoryStore())
	if err := c.Save(AddressRecord{NodeID: "a", Addresses: []string{"1.1.1.1:1"}}); err != nil {
		t.Fatalf("Save a: %v", err)
	}
	if err := c.Save(AddressRecord{NodeID: "b", Addresses: []string{"2.2.2.2:2"}}); err != nil {
		t.Fatalf("Save b: %v", err)
	}

	all, err := c.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("LoadAll returned %d records, want 2", len(all))
	}

	if err := c.Delete("a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := c.Load("a"); err == nil {
		t.Fatal("expected an error loading a deleted record")
	}
}

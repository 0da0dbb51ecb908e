// Package directory implements the in-memory NodeDirectory: the map of
// known peers, their liveness, and its TOML persistence fan-out.
package directory

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/Trivernis/snekcloud-go/internal/log"
)

// Directory is the mutex-protected map of node id to PeerRecord described
// Readers clone values under a brief lock; writers are rare
// (startup seeding and gossip merges).
type Directory struct {
	mu      sync.RWMutex
	records map[string]PeerRecord
}

// New creates an empty Directory.
func New() *Directory {
	return &Directory{records: make(map[string]PeerRecord)}
}

// InsertIfAbsent inserts rec if its id is not already present, returning
// true iff the id was new. An existing record's PublicKey is immutable —
// an insert for a known id is always a no-op regardless of payload.
func (d *Directory) InsertIfAbsent(rec PeerRecord) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.records[rec.ID]; exists {
		return false
	}
	d.records[rec.ID] = rec
	return true
}

// Snapshot returns a copy of all records; order is unspecified.
func (d *Directory) Snapshot() []PeerRecord {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]PeerRecord, 0, len(d.records))
	for _, rec := range d.records {
		out = append(out, rec)
	}
	return out
}

// LivingSnapshot returns Snapshot filtered to records that are not dead.
func (d *Directory) LivingSnapshot() []PeerRecord {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]PeerRecord, 0, len(d.records))
	for _, rec := range d.records {
		if !rec.IsDead() {
			out = append(out, rec)
		}
	}
	return out
}

// CheckAlive reports whether id is known and not marked dead. Absent ids
// are reported as not alive.
func (d *Directory) CheckAlive(id string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rec, ok := d.records[id]
	return ok && !rec.IsDead()
}

// SetLiveness updates the liveness token for a known peer. It is a no-op
// for unknown ids — the Dispatcher calls this after every delivery
// attempt, including ones targeting ids the directory never heard of.
func (d *Directory) SetLiveness(id string, dead bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	rec, ok := d.records[id]
	if !ok {
		return
	}
	rec.Liveness = NewLiveness(dead)
	d.records[id] = rec
}

// PersistAll writes each record to dir/<id>.toml using the NodeDescriptor
// format. Per-file errors are logged and do not abort the batch.
func (d *Directory) PersistAll(dir string) {
	for _, rec := range d.Snapshot() {
		path := filepath.Join(dir, rec.ID+".toml")
		if err := writeDescriptor(path, rec); err != nil {
			log.Directory.Error().Err(err).Str("peer_id", rec.ID).Str("path", path).
				Msg("failed to persist peer descriptor")
		}
	}
}

func writeDescriptor(path string, rec PeerRecord) error {
	desc := NodeDescriptor{
		ID:        rec.ID,
		Addresses: rec.Addresses,
		PublicKey: armorPublicKeyString(rec.PublicKey),
	}
	data, err := desc.Marshal()
	if err != nil {
		return fmt.Errorf("marshal descriptor: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

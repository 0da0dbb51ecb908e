// Package storage is the key-value persistence layer the node's caches are
// built on: the libp2p transport's AddressCache (internal/transport) is the
// one component that actually opens a Store today, keeping last-known peer
// addresses so a restart can re-dial without waiting on a fresh topology
// gossip round. Per-peer NodeDescriptor files under node_data_dir are a
// plain on-disk TOML format (one file per peer, per the descriptor layout
// internal/directory writes), not a Store — a byte-keyed database isn't the
// right shape for that.
package storage

import (
	"encoding/json"
	"errors"

	"github.com/Trivernis/snekcloud-go/internal/snerr"
)

// ErrNotFound is returned by Get when the key isn't present.
var ErrNotFound = errors.New("storage: key not found")

// Store is a byte-keyed, prefix-scannable database. BadgerStore,
// MemoryStore, and PrefixStore all implement it.
type Store interface {
	Get(key []byte) ([]byte, error)
	Put(key, value []byte) error
	Delete(key []byte) error
	Has(key []byte) (bool, error)
	// ForEach iterates over all keys with the given prefix.
	// The value passed to fn is not a copy and must not be retained or
	// modified after fn returns.
	// Return a non-nil error from fn to stop iteration early.
	ForEach(prefix []byte, fn func(key, value []byte) error) error
	Close() error
}

// Batch buffers a set of writes for atomic commit.
type Batch interface {
	Put(key, value []byte) error
	Delete(key []byte) error
	Commit() error
}

// Batcher is implemented by Stores that can hand out a Batch.
type Batcher interface {
	NewBatch() Batch
}

// PutJSON marshals v and stores it under key, wrapping marshal failures as
// a snerr.JSON error.
func PutJSON(s Store, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return snerr.Wrap(snerr.JSON, err)
	}
	return s.Put(key, data)
}

// GetJSON loads the value under key and unmarshals it into v, wrapping
// unmarshal failures as a snerr.JSON error.
func GetJSON(s Store, key []byte, v any) error {
	data, err := s.Get(key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return snerr.Wrap(snerr.JSON, err)
	}
	return nil
}

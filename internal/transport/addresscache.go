package transport

import (
	"encoding/json"
	"fmt"

	"github.com/Trivernis/snekcloud-go/internal/storage"
)

const addressKeyPrefix = "node-addr/"

// AddressRecord is a persisted dial hint: the last addresses a node id was
// reachable at, and the libp2p peer id it was connected under.
type AddressRecord struct {
	NodeID    string   `json:"node_id"`
	PeerID    string   `json:"peer_id"`
	Addresses []string `json:"addresses"`
}

// AddressCache persists AddressRecords so the libp2p transport can re-dial
// known nodes across restarts without waiting for a fresh gossip round from
// TopologyRefreshModule. It namespaces its keys under addressKeyPrefix via a
// storage.PrefixStore so the same underlying database could host other
// caches without key collisions.
type AddressCache struct {
	backing storage.Store // owns the lifecycle; Close is called on this, not store
	store   *storage.PrefixStore
}

// NewAddressCache wraps an already-open storage.Store as an AddressCache.
func NewAddressCache(store storage.Store) *AddressCache {
	return &AddressCache{
		backing: store,
		store:   storage.NewPrefixStore(store, []byte(addressKeyPrefix)),
	}
}

// OpenBadgerAddressCache opens a Badger-backed AddressCache at path.
func OpenBadgerAddressCache(path string) (*AddressCache, error) {
	db, err := storage.NewBadgerStore(path)
	if err != nil {
		return nil, fmt.Errorf("open address cache: %w", err)
	}
	return NewAddressCache(db), nil
}

// Save persists or overwrites rec under rec.NodeID.
func (c *AddressCache) Save(rec AddressRecord) error {
	return storage.PutJSON(c.store, []byte(rec.NodeID), rec)
}

// Load retrieves the cached record for nodeID.
func (c *AddressCache) Load(nodeID string) (AddressRecord, error) {
	var rec AddressRecord
	if err := storage.GetJSON(c.store, []byte(nodeID), &rec); err != nil {
		return AddressRecord{}, fmt.Errorf("load address record for %s: %w", nodeID, err)
	}
	return rec, nil
}

// LoadAll returns every cached address record, skipping any that fail to
// decode.
func (c *AddressCache) LoadAll() ([]AddressRecord, error) {
	var records []AddressRecord
	err := c.store.ForEach(nil, func(_, value []byte) error {
		var rec AddressRecord
		if err := json.Unmarshal(value, &rec); err != nil {
			return nil // Skip corrupt records.
		}
		records = append(records, rec)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("iterate address records: %w", err)
	}
	return records, nil
}

// Delete removes the cached record for nodeID, if any.
func (c *AddressCache) Delete(nodeID string) error {
	return c.store.Delete([]byte(nodeID))
}

// Close closes the underlying database.
func (c *AddressCache) Close() error {
	return c.backing.Close()
}

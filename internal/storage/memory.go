package storage

import "strings"

// MemoryStore implements Store using an in-memory map. Used by tests.
type MemoryStore struct {
	data map[string][]byte
}

// NewMemoryStore creates a new in-memory Store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string][]byte),
	}
}

// Get retrieves a value by key.
func (m *MemoryStore) Get(key []byte) ([]byte, error) {
	v, ok := m.data[string(key)]
	if !ok {
		return nil, ErrNotFound
	}
	return v, nil
}

// Put stores a key-value pair.
func (m *MemoryStore) Put(key, value []byte) error {
	m.data[string(key)] = value
	return nil
}

// Delete removes a key.
func (m *MemoryStore) Delete(key []byte) error {
	delete(m.data, string(key))
	return nil
}

// Has checks if a key exists.
func (m *MemoryStore) Has(key []byte) (bool, error) {
	_, ok := m.data[string(key)]
	return ok, nil
}

// ForEach iterates over all keys with the given prefix.
func (m *MemoryStore) ForEach(prefix []byte, fn func(key, value []byte) error) error {
	p := string(prefix)
	for k, v := range m.data {
		if strings.HasPrefix(k, p) {
			if err := fn([]byte(k), v); err != nil {
				return err
			}
		}
	}
	return nil
}

// Close is a no-op; the map is garbage collected.
func (m *MemoryStore) Close() error {
	return nil
}

// NewBatch returns a Batch that applies its writes directly against m on
// Commit — there's no underlying transaction log to batch against.
func (m *MemoryStore) NewBatch() Batch {
	return &memoryBatch{store: m}
}

type memoryBatch struct {
	store *MemoryStore
	ops   []func(*MemoryStore)
}

func (b *memoryBatch) Put(key, value []byte) error {
	k, v := append([]byte(nil), key...), append([]byte(nil), value...)
	b.ops = append(b.ops, func(s *MemoryStore) { s.data[string(k)] = v })
	return nil
}

func (b *memoryBatch) Delete(key []byte) error {
	k := append([]byte(nil), key...)
	b.ops = append(b.ops, func(s *MemoryStore) { delete(s.data, string(k)) })
	return nil
}

func (b *memoryBatch) Commit() error {
	for _, op := range b.ops {
		op(b.store)
	}
	return nil
}

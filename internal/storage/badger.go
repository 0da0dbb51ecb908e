package storage

import (
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/Trivernis/snekcloud-go/internal/snerr"
)

// BadgerStore implements Store over a Badger database, the on-disk backing
// for the transport's AddressCache.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore opens (creating if necessary) a Badger-backed Store at path.
func NewBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // Disable badger's built-in logging.

	db, err := badger.Open(opts)
	if err != nil {
		errMsg := err.Error()
		if strings.Contains(errMsg, "Cannot acquire directory lock") ||
			strings.Contains(errMsg, "resource temporarily unavailable") {
			return nil, snerr.Wrap(snerr.Storage, fmt.Errorf("database at %s is locked by another process (is another snekcloudd instance running?): %w", path, err))
		}
		return nil, snerr.Wrap(snerr.Storage, fmt.Errorf("open database at %s: %w", path, err))
	}
	return &BadgerStore{db: db}, nil
}

// Get retrieves a value by key. Returns ErrNotFound if the key does not exist.
func (b *BadgerStore) Get(key []byte) ([]byte, error) {
	var val []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, snerr.Wrap(snerr.Storage, fmt.Errorf("badger get: %w", err))
	}
	return val, nil
}

// Put stores a key-value pair.
func (b *BadgerStore) Put(key, value []byte) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
	if err != nil {
		return snerr.Wrap(snerr.Storage, fmt.Errorf("badger put: %w", err))
	}
	return nil
}

// Delete removes a key.
func (b *BadgerStore) Delete(key []byte) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
	if err != nil {
		return snerr.Wrap(snerr.Storage, fmt.Errorf("badger delete: %w", err))
	}
	return nil
}

// Has checks if a key exists.
func (b *BadgerStore) Has(key []byte) (bool, error) {
	var exists bool
	err := b.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		exists = true
		return nil
	})
	if err != nil {
		return false, snerr.Wrap(snerr.Storage, fmt.Errorf("badger has: %w", err))
	}
	return exists, nil
}

// ForEach iterates over all keys with the given prefix.
func (b *BadgerStore) ForEach(prefix []byte, fn func(key, value []byte) error) error {
	return b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := item.KeyCopy(nil)
			err := item.Value(func(val []byte) error {
				return fn(key, val)
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// Close closes the database.
func (b *BadgerStore) Close() error {
	return b.db.Close()
}

// NewBatch returns a Batch backed by Badger's own write batch, committing
// all buffered writes atomically.
func (b *BadgerStore) NewBatch() Batch {
	return &badgerBatch{wb: b.db.NewWriteBatch()}
}

type badgerBatch struct {
	wb *badger.WriteBatch
}

func (b *badgerBatch) Put(key, value []byte) error {
	return b.wb.Set(key, value)
}

func (b *badgerBatch) Delete(key []byte) error {
	return b.wb.Delete(key)
}

func (b *badgerBatch) Commit() error {
	defer b.wb.Cancel()
	if err := b.wb.Flush(); err != nil {
		return snerr.Wrap(snerr.Storage, fmt.Errorf("badger batch commit: %w", err))
	}
	return nil
}

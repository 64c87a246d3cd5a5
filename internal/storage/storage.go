package storage

import (
	"bytes"
	"encoding/binary"

	"github.com/dgraph-io/badger/v4"

	"github.com/mctschess/engine/internal/evalcache"
)

// CacheStore persists evalcache.Entry values in a BadgerDB-backed
// key-value store, keyed by the same history-aware hash the in-memory
// cache uses. It gives the in-process evalcache.Cache an optional disk
// warm-start tier: entries written with Put (internal/uci writes the whole
// in-memory cache at quit) can be loaded back by WarmCache in a later run.
// Entries evicted from memory before that are not written here, and the
// evaluator does not consult the store on an in-memory cache miss.
type CacheStore struct {
	db *badger.DB
}

// NewCacheStore opens (creating if absent) the on-disk cache database.
func NewCacheStore() (*CacheStore, error) {
	dbDir, err := GetDatabaseDir()
	if err != nil {
		return nil, err
	}

	opts := badger.DefaultOptions(dbDir)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	return &CacheStore{db: db}, nil
}

// Close closes the underlying database.
func (s *CacheStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Put writes entry under key, overwriting any prior value.
func (s *CacheStore) Put(key uint64, entry evalcache.Entry) error {
	data, err := encodeEntry(entry)
	if err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(keyBytes(key), data)
	})
}

// Get looks up key, reporting whether it was present.
func (s *CacheStore) Get(key uint64) (evalcache.Entry, bool, error) {
	var entry evalcache.Entry
	found := false

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(keyBytes(key))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			decoded, err := decodeEntry(val)
			if err != nil {
				return err
			}
			entry = decoded
			return nil
		})
	})

	return entry, found, err
}

// WarmCache loads up to limit persisted entries into an in-memory cache,
// for use at engine startup against a previously-seen opening book.
func (s *CacheStore) WarmCache(c *evalcache.Cache, limit int) error {
	return s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		loaded := 0
		for it.Rewind(); it.Valid() && loaded < limit; it.Next() {
			item := it.Item()
			key := decodeKey(item.Key())
			err := item.Value(func(val []byte) error {
				entry, err := decodeEntry(val)
				if err != nil {
					return err
				}
				c.Put(key, entry)
				loaded++
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func keyBytes(key uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, key)
	return b
}

func decodeKey(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}

func encodeEntry(entry evalcache.Entry) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.BigEndian, entry.Value); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.BigEndian, entry.Policy); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeEntry(data []byte) (evalcache.Entry, error) {
	var entry evalcache.Entry
	buf := bytes.NewReader(data)
	if err := binary.Read(buf, binary.BigEndian, &entry.Value); err != nil {
		return entry, err
	}
	if err := binary.Read(buf, binary.BigEndian, &entry.Policy); err != nil {
		return entry, err
	}
	return entry, nil
}

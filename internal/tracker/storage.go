package tracker

import (
	"errors"
	"sync"

	"github.com/dgraph-io/badger/v4"
)

// ErrNotFound is returned by Storage.Get for absent keys.
var ErrNotFound = errors.New("tracker: key not found")

// Storage is the client-local key-value persistence.
type Storage interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Delete(key string) error
	// Sizes reports the stored byte size of every key.
	Sizes() (map[string]int, error)
}

// MemoryStorage keeps entries in process memory.
type MemoryStorage struct {
	mu   sync.RWMutex
	data map[string][]byte
	// FailWrites makes Set fail, simulating a full or broken backend.
	FailWrites bool
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{data: map[string][]byte{}}
}

func (m *MemoryStorage) Get(key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *MemoryStorage) Set(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites {
		return errors.New("tracker: storage write failed")
	}
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *MemoryStorage) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *MemoryStorage) Sizes() (map[string]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]int, len(m.data))
	for k, v := range m.data {
		out[k] = len(v)
	}
	return out, nil
}

// BadgerStorage persists entries in an embedded badger database.
type BadgerStorage struct {
	db *badger.DB
}

// OpenBadger opens (or creates) the database at dir. An empty dir keeps the
// database in memory.
func OpenBadger(dir string) (*BadgerStorage, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &BadgerStorage{db: db}, nil
}

func (b *BadgerStorage) Get(key string) ([]byte, error) {
	var out []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	return out, err
}

func (b *BadgerStorage) Set(key string, value []byte) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
}

func (b *BadgerStorage) Delete(key string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

func (b *BadgerStorage) Sizes() (map[string]int, error) {
	out := map[string]int{}
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			out[string(item.KeyCopy(nil))] = int(item.ValueSize())
		}
		return nil
	})
	return out, err
}

func (b *BadgerStorage) Close() error {
	return b.db.Close()
}

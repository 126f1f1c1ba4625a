package statebridge

import (
	"errors"
	"time"

	"github.com/VictoriaMetrics/fastcache"
	"github.com/ethereum/go-ethereum/log"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// Backend is the committed key-value store underneath every overlay. Reads of
// committed values go through a fastcache read cache; writes arrive in
// batches from Overlay.Commit and keep the cache coherent.
type Backend struct {
	db    *leveldb.DB
	cache *fastcache.Cache
}

// OpenBackend opens (or creates) a leveldb database at path.
func OpenBackend(path string, cacheSize int) (*Backend, error) {
	db, err := leveldb.OpenFile(path, &opt.Options{
		BlockCacheCapacity: cacheSize / 2,
	})
	if err != nil {
		return nil, err
	}
	log.Info("Opened storage backend", "path", path, "cache", cacheSize)
	return newBackend(db, cacheSize), nil
}

// NewMemoryBackend returns a backend held entirely in memory.
func NewMemoryBackend(cacheSize int) (*Backend, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, err
	}
	return newBackend(db, cacheSize), nil
}

func newBackend(db *leveldb.DB, cacheSize int) *Backend {
	if cacheSize <= 0 {
		cacheSize = 32 * 1024 * 1024
	}
	return &Backend{db: db, cache: fastcache.New(cacheSize)}
}

// Get returns the committed value under key. The boolean reports whether the
// key exists; an existing key may hold an empty value.
func (b *Backend) Get(key []byte) ([]byte, bool, error) {
	if v, ok := b.cache.HasGet(nil, key); ok {
		cacheHitCounter.Inc(1)
		if v == nil {
			v = []byte{}
		}
		return v, true, nil
	}
	cacheMissCounter.Inc(1)
	v, err := b.db.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if v == nil {
		v = []byte{}
	}
	b.cache.Set(key, v)
	return v, true, nil
}

// Put writes a single value straight to the database, bypassing overlays.
// It is meant for content-addressed data such as code blobs.
func (b *Backend) Put(key, value []byte) error {
	if err := b.db.Put(key, value, nil); err != nil {
		return err
	}
	b.cache.Set(key, value)
	return nil
}

// Iterate calls fn for every committed key starting with prefix, in key
// order, until fn returns false.
func (b *Backend) Iterate(prefix []byte, fn func(key, value []byte) bool) error {
	it := b.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer it.Release()
	for it.Next() {
		if !fn(it.Key(), it.Value()) {
			break
		}
	}
	return it.Error()
}

// write applies a scope's changes atomically.
func (b *Backend) write(changes map[string]change) error {
	if len(changes) == 0 {
		return nil
	}
	start := time.Now()
	batch := new(leveldb.Batch)
	for k, c := range changes {
		if c.deleted {
			batch.Delete([]byte(k))
		} else {
			batch.Put([]byte(k), c.value)
		}
	}
	if err := b.db.Write(batch, nil); err != nil {
		return err
	}
	for k, c := range changes {
		if c.deleted {
			b.cache.Del([]byte(k))
		} else {
			b.cache.Set([]byte(k), c.value)
		}
	}
	backendCommitTimer.UpdateSince(start)
	return nil
}

// Close releases the database and the read cache.
func (b *Backend) Close() error {
	b.cache.Reset()
	return b.db.Close()
}

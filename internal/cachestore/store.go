// Daybook - Offline-first Journaling Sync Worker
// Copyright 2026 J. Holloway (daybook-hq)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/daybook-hq/daybook

package cachestore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/daybook-hq/daybook/internal/logging"
	"github.com/daybook-hq/daybook/internal/metrics"
)

// Store manages named, versioned cache tiers.
type Store interface {
	// Open returns the tier for a logical name at a version, creating it if
	// absent. Opening an existing tier is a no-op.
	Open(logical string, v Version) (Tier, error)

	// Names returns the on-disk names of all tiers, current and stale.
	Names() ([]string, error)

	// Delete removes a tier and all of its entries.
	Delete(name string) error

	// Close releases the underlying database.
	Close() error
}

// Tier is a single named cache of GET request/response pairs.
type Tier interface {
	// Name is the versioned on-disk name, e.g. "shell-v4".
	Name() string

	// Logical is the unversioned tier name, e.g. "shell".
	Logical() string

	// Get returns the cached response for a key, if present.
	Get(ctx context.Context, key RequestKey) (*CachedResponse, bool, error)

	// Put stores a response under a key. Non-GET keys are rejected.
	Put(ctx context.Context, key RequestKey, resp *CachedResponse) error

	// Len reports the number of entries in the tier.
	Len(ctx context.Context) (int, error)
}

// Sentinel errors for the cache store.
var (
	ErrStoreClosed  = errors.New("cache store is closed")
	ErrNonGetKey    = errors.New("only GET requests may be cached in a tier")
	ErrNilResponse  = errors.New("cached response must not be nil")
	ErrTierNotFound = errors.New("tier not found")
)

// Config holds cache store settings.
type Config struct {
	// Path is the BadgerDB directory. Ignored when InMemory is set.
	Path string

	// InMemory runs BadgerDB without disk persistence. Tests only.
	InMemory bool

	// SyncWrites enables fsync on every write.
	SyncWrites bool
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if !c.InMemory && c.Path == "" {
		return fmt.Errorf("cache store path is required")
	}
	return nil
}

// Key layout inside the shared BadgerDB instance.
const (
	prefixTierMeta = "tier:"
	prefixEntry    = "entry:"
	keySep         = "\x00"
)

// tierMeta is the registry record for a tier.
type tierMeta struct {
	Logical   string    `json:"logical"`
	Version   Version   `json:"version"`
	CreatedAt time.Time `json:"created_at"`
}

// BadgerStore implements Store on a single BadgerDB instance. Tier entries
// share the database under per-tier key prefixes, so wholesale tier eviction
// is a prefix scan plus batched delete.
type BadgerStore struct {
	db     *badger.DB
	mu     sync.RWMutex
	closed bool
}

// Open creates or opens a BadgerStore at the configured path.
func Open(cfg *Config) (*BadgerStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid cache store config: %w", err)
	}

	opts := badger.DefaultOptions(cfg.Path)
	opts.InMemory = cfg.InMemory
	if cfg.InMemory {
		opts.Dir = ""
		opts.ValueDir = ""
	}
	opts.SyncWrites = cfg.SyncWrites
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	logging.Info().
		Str("path", cfg.Path).
		Bool("in_memory", cfg.InMemory).
		Bool("sync_writes", cfg.SyncWrites).
		Msg("cache tier store opened")

	return &BadgerStore{db: db}, nil
}

// Open returns the tier for logical at version v, creating its registry
// record if absent.
func (s *BadgerStore) Open(logical string, v Version) (Tier, error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, ErrStoreClosed
	}
	s.mu.RUnlock()

	name := TierName(logical, v)
	metaKey := []byte(prefixTierMeta + name)

	err := s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(metaKey)
		if err == nil {
			return nil // already registered
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("get tier meta: %w", err)
		}

		meta := tierMeta{Logical: logical, Version: v, CreatedAt: time.Now().UTC()}
		data, err := json.Marshal(&meta)
		if err != nil {
			return fmt.Errorf("marshal tier meta: %w", err)
		}
		return txn.Set(metaKey, data)
	})
	if err != nil {
		return nil, err
	}

	return &badgerTier{store: s, name: name, logical: logical}, nil
}

// Names returns all registered tier names in lexical order.
func (s *BadgerStore) Names() ([]string, error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, ErrStoreClosed
	}
	s.mu.RUnlock()

	var names []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefixTierMeta)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			key := string(it.Item().Key())
			names = append(names, key[len(prefixTierMeta):])
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list tier names: %w", err)
	}
	return names, nil
}

// Delete removes a tier's registry record and every entry under it.
func (s *BadgerStore) Delete(name string) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrStoreClosed
	}
	s.mu.RUnlock()

	metaKey := []byte(prefixTierMeta + name)
	entryPrefix := []byte(prefixEntry + name + keySep)

	// Collect entry keys under a snapshot, then delete in a write batch.
	// Entries written concurrently with eviction belong to a tier that is
	// being destroyed anyway.
	var keys [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = entryPrefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("scan tier entries: %w", err)
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for _, key := range keys {
		if err := wb.Delete(key); err != nil {
			return fmt.Errorf("delete tier entry: %w", err)
		}
	}
	if err := wb.Delete(metaKey); err != nil {
		return fmt.Errorf("delete tier meta: %w", err)
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("flush tier delete: %w", err)
	}

	metrics.TiersEvicted.Inc()
	logging.Info().Str("tier", name).Int("entries", len(keys)).Msg("cache tier deleted")
	return nil
}

// Close shuts down the underlying BadgerDB.
func (s *BadgerStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// badgerTier implements Tier over the shared store.
type badgerTier struct {
	store   *BadgerStore
	name    string
	logical string
}

func (t *badgerTier) Name() string    { return t.name }
func (t *badgerTier) Logical() string { return t.logical }

// entryKey renders the storage key for a request key within this tier.
func (t *badgerTier) entryKey(key RequestKey) []byte {
	return []byte(prefixEntry + t.name + keySep + key.Method + keySep + key.URL)
}

// Get returns the cached response for key, if present.
func (t *badgerTier) Get(_ context.Context, key RequestKey) (*CachedResponse, bool, error) {
	t.store.mu.RLock()
	if t.store.closed {
		t.store.mu.RUnlock()
		return nil, false, ErrStoreClosed
	}
	t.store.mu.RUnlock()

	var resp *CachedResponse
	err := t.store.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(t.entryKey(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			resp = &CachedResponse{}
			return json.Unmarshal(val, resp)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		metrics.RecordTierMiss(t.logical)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get cache entry: %w", err)
	}

	metrics.RecordTierHit(t.logical)
	return resp, true, nil
}

// Put stores a response under key. Concurrent writers racing on the same key
// are tolerated: last writer wins, both computed the same bytes.
func (t *badgerTier) Put(_ context.Context, key RequestKey, resp *CachedResponse) error {
	t.store.mu.RLock()
	if t.store.closed {
		t.store.mu.RUnlock()
		return ErrStoreClosed
	}
	t.store.mu.RUnlock()

	if !key.IsGet() {
		return ErrNonGetKey
	}
	if resp == nil {
		return ErrNilResponse
	}

	if resp.StoredAt.IsZero() {
		resp.StoredAt = time.Now().UTC()
	}

	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	err = t.store.db.Update(func(txn *badger.Txn) error {
		return txn.Set(t.entryKey(key), data)
	})
	if err != nil {
		return fmt.Errorf("put cache entry: %w", err)
	}
	return nil
}

// Len counts the entries in this tier.
func (t *badgerTier) Len(_ context.Context) (int, error) {
	t.store.mu.RLock()
	if t.store.closed {
		t.store.mu.RUnlock()
		return 0, ErrStoreClosed
	}
	t.store.mu.RUnlock()

	count := 0
	err := t.store.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefixEntry + t.name + keySep)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("count tier entries: %w", err)
	}

	metrics.TierEntries.WithLabelValues(t.logical).Set(float64(count))
	return count, nil
}

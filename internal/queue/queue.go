// Daybook - Offline-first Journaling Sync Worker
// Copyright 2026 J. Holloway (daybook-hq)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/daybook-hq/daybook

// Package queue implements the durable offline mutation queue.
//
// The queue is the source of truth for writes made while the network is
// degraded or absent. Enqueue is a pure local append and never requires the
// network; only the reconciliation engine removes entries, after the remote
// API acknowledges them. The worker may be terminated between any two events,
// so every operation goes through BadgerDB, never worker memory.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/daybook-hq/daybook/internal/logging"
	"github.com/daybook-hq/daybook/internal/metrics"
)

// Queue is the offline mutation queue contract.
type Queue interface {
	// Enqueue appends a mutation locally and returns its tempID.
	Enqueue(ctx context.Context, entityType EntityType, payload json.RawMessage) (string, error)

	// List returns a snapshot of all pending mutations in FIFO order.
	List(ctx context.Context) ([]*QueuedMutation, error)

	// ListByType returns the pending mutations of one entity type, FIFO.
	ListByType(ctx context.Context, entityType EntityType) ([]*QueuedMutation, error)

	// Remove deletes exactly one entry by tempID; removing an absent entry
	// is a no-op.
	Remove(ctx context.Context, tempID string) error

	// Len reports the number of pending mutations.
	Len(ctx context.Context) (int, error)

	// Close releases the underlying database.
	Close() error
}

// Sentinel errors for the mutation queue.
var (
	ErrQueueClosed       = errors.New("mutation queue is closed")
	ErrUnknownEntityType = errors.New("unknown entity type")
	ErrEmptyPayload      = errors.New("mutation payload must not be empty")
)

// Config holds queue storage settings.
type Config struct {
	// Path is the BadgerDB directory. Ignored when InMemory is set.
	Path string

	// InMemory runs BadgerDB without persistence. Tests only.
	InMemory bool

	// SyncWrites enables fsync on every write. The queue is the durable
	// record of unacknowledged user data, so this defaults on in production.
	SyncWrites bool
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if !c.InMemory && c.Path == "" {
		return fmt.Errorf("queue path is required")
	}
	return nil
}

// Key layout: mutation:<entity_type>:<seq, zero-padded>:<temp_id>.
// The per-type prefix keeps each entity type an independent list; the
// embedded sequence keeps lexical key order equal to enqueue order.
const (
	prefixMutation = "mutation:"
	keySeq         = "queue:seq"
)

// BadgerQueue implements Queue on BadgerDB.
type BadgerQueue struct {
	db  *badger.DB
	seq *badger.Sequence

	mu     sync.RWMutex
	closed bool
}

// Open creates or opens the queue at the configured path.
func Open(cfg *Config) (*BadgerQueue, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid queue config: %w", err)
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

	seq, err := db.GetSequence([]byte(keySeq), 64)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open enqueue sequence: %w", err)
	}

	logging.Info().
		Str("path", cfg.Path).
		Bool("in_memory", cfg.InMemory).
		Bool("sync_writes", cfg.SyncWrites).
		Msg("mutation queue opened")

	return &BadgerQueue{db: db, seq: seq}, nil
}

// Enqueue appends a mutation. This is a pure local write: it must succeed
// with no network at all, and it is durable before the call returns.
func (q *BadgerQueue) Enqueue(_ context.Context, entityType EntityType, payload json.RawMessage) (string, error) {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return "", ErrQueueClosed
	}
	q.mu.RUnlock()

	if !entityType.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownEntityType, entityType)
	}
	if len(payload) == 0 {
		return "", ErrEmptyPayload
	}

	seq, err := q.seq.Next()
	if err != nil {
		return "", fmt.Errorf("next sequence: %w", err)
	}

	mutation := &QueuedMutation{
		TempID:     uuid.New().String(),
		EntityType: entityType,
		Payload:    payload,
		CreatedAt:  time.Now().UTC(),
		Seq:        seq,
	}

	data, err := json.Marshal(mutation)
	if err != nil {
		return "", fmt.Errorf("marshal mutation: %w", err)
	}

	key := mutationKey(entityType, seq, mutation.TempID)
	if err := q.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	}); err != nil {
		return "", fmt.Errorf("write mutation: %w", err)
	}

	metrics.MutationsEnqueued.WithLabelValues(string(entityType)).Inc()
	logging.Debug().
		Str("temp_id", mutation.TempID).
		Str("entity_type", string(entityType)).
		Msg("mutation enqueued")
	return mutation.TempID, nil
}

// mutationKey renders the storage key for one mutation.
func mutationKey(entityType EntityType, seq uint64, tempID string) []byte {
	return []byte(fmt.Sprintf("%s%s:%020d:%s", prefixMutation, entityType, seq, tempID))
}

// List returns a stable snapshot of all pending mutations in FIFO order
// across entity types.
func (q *BadgerQueue) List(ctx context.Context) ([]*QueuedMutation, error) {
	all, err := q.scan(ctx, prefixMutation)
	if err != nil {
		return nil, err
	}
	// Keys order per-type; global FIFO needs the enqueue sequence.
	sort.Slice(all, func(i, j int) bool { return all[i].Seq < all[j].Seq })
	return all, nil
}

// ListByType returns the pending mutations of one entity type in FIFO order.
func (q *BadgerQueue) ListByType(ctx context.Context, entityType EntityType) ([]*QueuedMutation, error) {
	if !entityType.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEntityType, entityType)
	}
	return q.scan(ctx, prefixMutation+string(entityType)+":")
}

// scan reads all mutations under a key prefix from one snapshot.
func (q *BadgerQueue) scan(_ context.Context, prefix string) ([]*QueuedMutation, error) {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return nil, ErrQueueClosed
	}
	q.mu.RUnlock()

	var out []*QueuedMutation
	err := q.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				m := &QueuedMutation{}
				if err := json.Unmarshal(val, m); err != nil {
					return fmt.Errorf("unmarshal mutation: %w", err)
				}
				out = append(out, m)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan queue: %w", err)
	}
	return out, nil
}

// Remove deletes exactly one entry by tempID. Removing a tempID that is not
// present is a no-op, which keeps reconciliation retries idempotent.
func (q *BadgerQueue) Remove(_ context.Context, tempID string) error {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return ErrQueueClosed
	}
	q.mu.RUnlock()

	suffix := ":" + tempID
	return q.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefixMutation)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().KeyCopy(nil)
			if strings.HasSuffix(string(key), suffix) {
				return txn.Delete(key)
			}
		}
		return nil // absent: no-op
	})
}

// Len reports the number of pending mutations and refreshes the depth gauge.
func (q *BadgerQueue) Len(_ context.Context) (int, error) {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return 0, ErrQueueClosed
	}
	q.mu.RUnlock()

	count := 0
	err := q.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefixMutation)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("count queue: %w", err)
	}

	metrics.QueueDepth.Set(float64(count))
	return count, nil
}

// Close releases the sequence and the database.
func (q *BadgerQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true

	if err := q.seq.Release(); err != nil {
		logging.Warn().Err(err).Msg("release enqueue sequence")
	}
	return q.db.Close()
}

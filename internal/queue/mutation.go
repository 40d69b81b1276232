// Daybook - Offline-first Journaling Sync Worker
// Copyright 2026 J. Holloway (daybook-hq)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/daybook-hq/daybook

package queue

import (
	"time"

	"github.com/goccy/go-json"
)

// EntityType identifies which remote collection a queued mutation belongs to.
type EntityType string

// Known entity types. Each type persists as an independently-prefixed list.
const (
	EntityReading EntityType = "reading"
	EntityTag     EntityType = "tag"
)

// Valid reports whether the entity type is known.
func (e EntityType) Valid() bool {
	switch e {
	case EntityReading, EntityTag:
		return true
	}
	return false
}

// QueuedMutation is one pending write created while offline or after a
// failed submission. Entries are immutable once enqueued: reconciliation
// removes them after remote acknowledgment, it never rewrites them.
type QueuedMutation struct {
	// TempID is the locally unique identifier assigned at enqueue time.
	// It is stripped from the payload before the mutation is replayed.
	TempID string `json:"temp_id"`

	// EntityType selects the remote collection endpoint.
	EntityType EntityType `json:"entity_type"`

	// Payload is the mutation body as the UI layer produced it.
	Payload json.RawMessage `json:"payload"`

	// CreatedAt orders mutations for FIFO replay.
	CreatedAt time.Time `json:"created_at"`

	// Seq is the monotonic enqueue sequence. It breaks CreatedAt ties and
	// keeps FIFO order stable across entity-type prefixes.
	Seq uint64 `json:"seq"`
}

// Daybook - Offline-first Journaling Sync Worker
// Copyright 2026 J. Holloway (daybook-hq)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/daybook-hq/daybook

// Package cachestore implements the worker's tiered response cache.
//
// A tier is a named, versioned container of GET request/response pairs.
// Three tiers exist:
//
//   - shell: immutable static assets primed at install
//   - routes: offline-renderable page shells for navigable routes
//   - content: previously-viewed readings and images, populated opportunistically
//
// Tiers carry no TTL; staleness policy belongs to the request strategies, not
// to the store. At most one tier per logical name is current at a time. Stale
// generations are evicted wholesale during activation by structural comparison
// of (logical name, version), never by string pattern matching.
//
// Persistence is BadgerDB. The store must survive worker termination at any
// point: no in-memory state is authoritative.
package cachestore

// Daybook - Offline-first Journaling Sync Worker
// Copyright 2026 J. Holloway (daybook-hq)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/daybook-hq/daybook

// Package worker implements the interception router, its request strategies,
// and the install/activate lifecycle controller.
//
// The Router is the single entry point for every outgoing request the UI
// makes. It classifies each request and dispatches it to one of three
// strategies:
//
//   - network-first-with-fallback for navigable routes: freshness first,
//     cached shell (or the offline fallback page) when the network is down
//   - cache-first-with-background-store for static assets and previously
//     viewed content: latency first
//   - bypass for cross-origin requests and framework actions whose
//     exactly-once semantics are owned upstream
//
// The lifecycle Controller primes cache tiers at install (best-effort, per
// asset) and, on activate, evicts every tier generation that does not match
// the current cache version before claiming the host adapter so the new
// Router governs requests without a reload. No interception logic of a new
// generation runs before its activation completes.
package worker

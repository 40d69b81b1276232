// Daybook - Offline-first Journaling Sync Worker
// Copyright 2026 J. Holloway (daybook-hq)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/daybook-hq/daybook

package cachestore

import (
	"net/http"
	"strings"
	"time"
)

// RequestKey is the canonical (method, URL) identity of a cacheable request.
// Only GET keys may be stored in a tier; mutating methods never produce a
// tier entry.
type RequestKey struct {
	Method string `json:"method"`
	URL    string `json:"url"`
}

// NewRequestKey builds a canonical key. The method is upper-cased and any
// URL fragment is dropped, so logically identical requests collide.
func NewRequestKey(method, rawURL string) RequestKey {
	if i := strings.IndexByte(rawURL, '#'); i >= 0 {
		rawURL = rawURL[:i]
	}
	return RequestKey{
		Method: strings.ToUpper(method),
		URL:    rawURL,
	}
}

// IsGet reports whether the key describes a GET request.
func (k RequestKey) IsGet() bool {
	return k.Method == http.MethodGet
}

// CachedResponse is an opaque stored response: payload, status, headers, and
// the time it entered the tier. Staleness is judged by strategies, not here.
type CachedResponse struct {
	StatusCode int         `json:"status_code"`
	Header     http.Header `json:"header"`
	Body       []byte      `json:"body"`
	StoredAt   time.Time   `json:"stored_at"`
}

// ContentType returns the response's Content-Type header value.
func (r *CachedResponse) ContentType() string {
	if r.Header == nil {
		return ""
	}
	return r.Header.Get("Content-Type")
}

// IsDocument reports whether the response is an HTML document. The cache-first
// strategy only stores non-document resources opportunistically.
func (r *CachedResponse) IsDocument() bool {
	return strings.HasPrefix(r.ContentType(), "text/html")
}

// Daybook - Offline-first Journaling Sync Worker
// Copyright 2026 J. Holloway (daybook-hq)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/daybook-hq/daybook

package worker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/daybook-hq/daybook/internal/cachestore"
)

// Request is the descriptor of an intercepted outgoing request.
type Request struct {
	Method string
	URL    *url.URL
	Header http.Header
	Body   []byte
}

// Key returns the canonical cache key for the request: origin-relative
// path plus query, so primed entries and live requests collide regardless
// of whether the URL was absolute.
func (r *Request) Key() cachestore.RequestKey {
	return cachestore.NewRequestKey(r.Method, r.URL.RequestURI())
}

// Response is a fully materialized HTTP response. Handler bodies run to
// completion over byte slices; nothing is streamed past a suspension point.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// toCached converts a response for tier storage.
func (r *Response) toCached() *cachestore.CachedResponse {
	return &cachestore.CachedResponse{
		StatusCode: r.StatusCode,
		Header:     r.Header,
		Body:       r.Body,
	}
}

// fromCached converts a stored entry back into a servable response.
func fromCached(c *cachestore.CachedResponse) *Response {
	return &Response{
		StatusCode: c.StatusCode,
		Header:     c.Header,
		Body:       c.Body,
	}
}

// isDocument reports whether the response carries an HTML document.
func (r *Response) isDocument() bool {
	return r.toCached().IsDocument()
}

// Fetcher executes a request against the real network.
type Fetcher interface {
	Fetch(ctx context.Context, req *Request) (*Response, error)
}

// HTTPFetcher implements Fetcher on net/http. It also remembers the last
// network failure time so the status endpoint can report connectivity.
type HTTPFetcher struct {
	client  *http.Client
	baseURL string

	lastFailureUnix atomic.Int64
}

// NewHTTPFetcher creates a fetcher. baseURL supplies scheme and host for
// origin-relative request URLs, e.g. "http://localhost:3000".
func NewHTTPFetcher(client *http.Client, baseURL string) *HTTPFetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPFetcher{client: client, baseURL: baseURL}
}

// Fetch executes the request and materializes the response.
func (f *HTTPFetcher) Fetch(ctx context.Context, req *Request) (*Response, error) {
	target := req.URL.String()
	if !req.URL.IsAbs() {
		target = f.baseURL + req.URL.RequestURI()
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	resp, err := f.client.Do(httpReq)
	if err != nil {
		f.lastFailureUnix.Store(time.Now().Unix())
		return nil, fmt.Errorf("fetch %s %s: %w", req.Method, target, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		f.lastFailureUnix.Store(time.Now().Unix())
		return nil, fmt.Errorf("read response body: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		Body:       payload,
	}, nil
}

// LastFailure returns the time of the most recent network failure, or the
// zero time if none has occurred.
func (f *HTTPFetcher) LastFailure() time.Time {
	unix := f.lastFailureUnix.Load()
	if unix == 0 {
		return time.Time{}
	}
	return time.Unix(unix, 0)
}

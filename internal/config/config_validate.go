// Daybook - Offline-first Journaling Sync Worker
// Copyright 2026 J. Holloway (daybook-hq)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/daybook-hq/daybook

package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate checks that required configuration is present and coherent.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateOrigin(); err != nil {
		return err
	}
	if err := c.validateRemote(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	return c.validatePush()
}

func (c *Config) validateServer() error {
	if c.Server.ListenAddr == "" {
		return fmt.Errorf("SERVER_LISTEN_ADDR must not be empty")
	}
	if c.Server.RateLimitPerMinute < 0 {
		return fmt.Errorf("SERVER_RATE_LIMIT_PER_MINUTE must be >= 0, got %d", c.Server.RateLimitPerMinute)
	}
	return nil
}

func (c *Config) validateOrigin() error {
	if c.Origin.Host == "" {
		return fmt.Errorf("ORIGIN_HOST is required")
	}
	if c.Origin.CacheVersion < 1 {
		return fmt.Errorf("ORIGIN_CACHE_VERSION must be >= 1, got %d", c.Origin.CacheVersion)
	}
	if len(c.Origin.AssetManifest) == 0 {
		return fmt.Errorf("ORIGIN_ASSET_MANIFEST must list at least one asset path")
	}
	if len(c.Origin.NavigableRoutes) == 0 {
		return fmt.Errorf("ORIGIN_NAVIGABLE_ROUTES must list at least one route prefix")
	}
	for _, p := range append(append([]string{}, c.Origin.AssetManifest...), c.Origin.NavigableRoutes...) {
		if !strings.HasPrefix(p, "/") {
			return fmt.Errorf("origin paths must start with /, got %q", p)
		}
	}
	if !strings.HasPrefix(c.Origin.OfflineFallbackPath, "/") {
		return fmt.Errorf("ORIGIN_OFFLINE_FALLBACK_PATH must start with /, got %q", c.Origin.OfflineFallbackPath)
	}
	return nil
}

// validateRemote validates the remote API settings. The base URL is optional:
// without it the queue still accepts mutations, only draining is disabled.
func (c *Config) validateRemote() error {
	if c.Remote.BaseURL == "" {
		return nil
	}
	u, err := url.Parse(c.Remote.BaseURL)
	if err != nil {
		return fmt.Errorf("REMOTE_BASE_URL is not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("REMOTE_BASE_URL must use http or https, got %q", u.Scheme)
	}
	if c.Remote.Timeout <= 0 {
		return fmt.Errorf("REMOTE_TIMEOUT must be positive, got %s", c.Remote.Timeout)
	}
	return nil
}

func (c *Config) validateStorage() error {
	if c.Storage.InMemory {
		return nil
	}
	if c.Storage.CachePath == "" {
		return fmt.Errorf("STORAGE_CACHE_PATH is required")
	}
	if c.Storage.QueuePath == "" {
		return fmt.Errorf("STORAGE_QUEUE_PATH is required")
	}
	if c.Storage.CachePath == c.Storage.QueuePath {
		return fmt.Errorf("STORAGE_CACHE_PATH and STORAGE_QUEUE_PATH must differ (separate BadgerDB instances)")
	}
	return nil
}

func (c *Config) validatePush() error {
	if !c.Push.Enabled {
		return nil
	}
	if c.Push.URL == "" {
		return fmt.Errorf("PUSH_URL is required when PUSH_ENABLED=true")
	}
	if c.Push.Topic == "" {
		return fmt.Errorf("PUSH_TOPIC is required when PUSH_ENABLED=true")
	}
	if c.Push.EmbeddedServer && c.Push.StoreDir == "" {
		return fmt.Errorf("PUSH_STORE_DIR is required when PUSH_EMBEDDED_SERVER=true")
	}
	return nil
}

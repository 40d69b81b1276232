// Daybook - Offline-first Journaling Sync Worker
// Copyright 2026 J. Holloway (daybook-hq)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/daybook-hq/daybook

// Package config loads and validates worker configuration via Koanf v2 with
// layered sources: built-in defaults, an optional YAML config file, and
// DAYBOOK_-prefixed environment variables (highest priority).
package config

import "time"

// Config is the root configuration for the sync worker.
type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Origin  OriginConfig  `koanf:"origin"`
	Remote  RemoteConfig  `koanf:"remote"`
	Storage StorageConfig `koanf:"storage"`
	Push    PushConfig    `koanf:"push"`
	Logging LoggingConfig `koanf:"logging"`
}

// ServerConfig configures the local HTTP adapter the UI talks to.
type ServerConfig struct {
	// ListenAddr is the address the local proxy binds to.
	ListenAddr string `koanf:"listen_addr"`

	// AllowedOrigins is the CORS allowlist for the control endpoints
	// and the notification WebSocket.
	AllowedOrigins []string `koanf:"allowed_origins"`

	// RateLimitPerMinute bounds requests to the control endpoints per client.
	// 0 disables rate limiting.
	RateLimitPerMinute int `koanf:"rate_limit_per_minute"`

	// ShutdownTimeout is how long graceful shutdown waits for in-flight requests.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// OriginConfig describes the application origin the worker fronts and the
// caching policy applied to it.
type OriginConfig struct {
	// Host is the origin host the worker intercepts for. Requests to any
	// other host pass straight through.
	Host string `koanf:"host"`

	// CacheVersion is the current cache generation. Bumping it causes the
	// next activate to evict every tier built under an older generation.
	CacheVersion int `koanf:"cache_version"`

	// AssetManifest lists the URL paths primed into the shell tier at install:
	// root shell, web manifest, icons, offline fallback page.
	AssetManifest []string `koanf:"asset_manifest"`

	// NavigableRoutes lists the path prefixes that render offline. They are
	// primed into the routes tier at install and select the network-first
	// strategy at request time.
	NavigableRoutes []string `koanf:"navigable_routes"`

	// OfflineFallbackPath is the shell page served when a navigable route has
	// no cached entry and the network is unavailable.
	OfflineFallbackPath string `koanf:"offline_fallback_path"`

	// ActionHeader marks framework action requests that must bypass the
	// offline layer entirely (exactly-once semantics owned upstream).
	ActionHeader string `koanf:"action_header"`
}

// RemoteConfig describes the remote Daybook API the reconciliation engine
// drains queued mutations against.
type RemoteConfig struct {
	// BaseURL is the API root, e.g. https://api.daybook.example.
	BaseURL string `koanf:"base_url"`

	// Token is an optional bearer token attached to reconciliation calls.
	// Authentication itself is owned by the remote API.
	Token string `koanf:"token"`

	// Timeout bounds each outbound reconciliation call.
	Timeout time.Duration `koanf:"timeout"`
}

// StorageConfig configures the durable BadgerDB stores.
type StorageConfig struct {
	// CachePath is the directory for the cache tier store.
	CachePath string `koanf:"cache_path"`

	// QueuePath is the directory for the offline mutation queue.
	QueuePath string `koanf:"queue_path"`

	// SyncWrites enables fsync on every write. The mutation queue is the
	// durable source of truth for pending writes, so this defaults on.
	SyncWrites bool `koanf:"sync_writes"`

	// InMemory runs both stores in memory. Tests only.
	InMemory bool `koanf:"in_memory"`
}

// PushConfig configures the push transport subscription.
type PushConfig struct {
	// Enabled turns push reception on.
	Enabled bool `koanf:"enabled"`

	// URL is the NATS server URL.
	URL string `koanf:"url"`

	// EmbeddedServer starts an in-process NATS server with JetStream.
	EmbeddedServer bool `koanf:"embedded_server"`

	// StoreDir is the JetStream storage directory for the embedded server.
	StoreDir string `koanf:"store_dir"`

	// Topic is the subject push payloads arrive on.
	Topic string `koanf:"topic"`

	// DurableName identifies the JetStream durable consumer.
	DurableName string `koanf:"durable_name"`
}

// LoggingConfig configures the zerolog facade.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// defaultConfig returns a Config with all default values. Defaults are loaded
// first, then overridden by the config file and environment variables.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr:         "127.0.0.1:8765",
			AllowedOrigins:     []string{"http://localhost:3000"},
			RateLimitPerMinute: 120,
			ShutdownTimeout:    10 * time.Second,
		},
		Origin: OriginConfig{
			Host:         "localhost:3000",
			CacheVersion: 1,
			AssetManifest: []string{
				"/",
				"/manifest.json",
				"/icons/icon-192.png",
				"/icons/icon-512.png",
				"/offline",
			},
			NavigableRoutes: []string{
				"/",
				"/journal",
				"/readings",
				"/tags",
				"/settings",
			},
			OfflineFallbackPath: "/offline",
			ActionHeader:        "X-Daybook-Action",
		},
		Remote: RemoteConfig{
			BaseURL: "",
			Token:   "",
			Timeout: 30 * time.Second,
		},
		Storage: StorageConfig{
			CachePath:  "/data/daybook/cache",
			QueuePath:  "/data/daybook/queue",
			SyncWrites: true,
			InMemory:   false,
		},
		Push: PushConfig{
			Enabled:        false,
			URL:            "nats://127.0.0.1:4222",
			EmbeddedServer: true,
			StoreDir:       "/data/daybook/jetstream",
			Topic:          "push.notifications",
			DurableName:    "daybook-worker",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

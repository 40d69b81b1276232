// Daybook - Offline-first Journaling Sync Worker
// Copyright 2026 J. Holloway (daybook-hq)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/daybook-hq/daybook

// Package main is the entry point for the Daybook sync worker.
//
// The worker sits between the Daybook UI and its origin as a local caching
// proxy. It keeps the app shell, navigable routes, and content responses in
// versioned BadgerDB cache tiers, serves them when the network is degraded
// or absent, holds a durable queue of mutations made offline, and replays
// that queue against the remote API on demand. Push notifications arrive
// over NATS JetStream and are fanned out to attached UI clients over
// WebSocket.
//
// # Startup order
//
//  1. Configuration: Koanf v2 layered sources (defaults, config.yaml,
//     DAYBOOK_* environment variables)
//  2. Storage: BadgerDB cache tier store and mutation queue
//  3. HTTP adapter: local proxy, control endpoints, notification WebSocket
//  4. Lifecycle: install primes the current cache generation, activate
//     evicts stale generations and claims the adapter
//  5. Push (optional): NATS JetStream subscription, optionally against an
//     embedded server
//  6. Supervision: all long-running services under a suture tree
//
// # Signal handling
//
// SIGINT and SIGTERM cancel the root context; the supervision tree drains
// in-flight work and the storage engines are closed last.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/daybook-hq/daybook/internal/api"
	"github.com/daybook-hq/daybook/internal/cachestore"
	"github.com/daybook-hq/daybook/internal/config"
	"github.com/daybook-hq/daybook/internal/logging"
	"github.com/daybook-hq/daybook/internal/notify"
	"github.com/daybook-hq/daybook/internal/push"
	"github.com/daybook-hq/daybook/internal/queue"
	"github.com/daybook-hq/daybook/internal/reconcile"
	"github.com/daybook-hq/daybook/internal/supervisor"
	"github.com/daybook-hq/daybook/internal/worker"
)

func main() {
	if err := run(); err != nil {
		logging.Error().Err(err).Msg("worker exited with error")
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	logging.Info().Str("listen_addr", cfg.Server.ListenAddr).Msg("daybook worker starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Storage opens first and closes last: every other component leans on it.
	store, err := cachestore.Open(&cachestore.Config{
		Path:       cfg.Storage.CachePath,
		SyncWrites: cfg.Storage.SyncWrites,
	})
	if err != nil {
		return fmt.Errorf("open cache store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Warn().Err(err).Msg("cache store close failed")
		}
	}()

	q, err := queue.Open(&queue.Config{
		Path:       cfg.Storage.QueuePath,
		SyncWrites: cfg.Storage.SyncWrites,
	})
	if err != nil {
		return fmt.Errorf("open mutation queue: %w", err)
	}
	defer func() {
		if err := q.Close(); err != nil {
			logging.Warn().Err(err).Msg("mutation queue close failed")
		}
	}()

	fetcher := worker.NewHTTPFetcher(&http.Client{Timeout: 30 * time.Second}, "http://"+cfg.Origin.Host)

	remote := reconcile.NewClient(reconcile.ClientConfig{
		BaseURL: cfg.Remote.BaseURL,
		Token:   cfg.Remote.Token,
		Timeout: cfg.Remote.Timeout,
	})
	engine := reconcile.NewEngine(q, remote)

	hub := notify.NewHub()
	hub.SetClickHandler(push.NewClickRouter(hub))

	server := api.NewServer(api.ServerDeps{
		Config:    cfg,
		Queue:     q,
		Drainer:   engine,
		Store:     store,
		Probe:     fetcher,
		WSHandler: notify.NewHandler(hub, cfg.Server.AllowedOrigins),
	})

	// Install and activate the current cache generation before serving:
	// activation claims the adapter, which is what arms the proxy.
	controller := worker.NewController(worker.ControllerConfig{
		Store:               store,
		Fetcher:             fetcher,
		Claimer:             server,
		Version:             cachestore.Version(cfg.Origin.CacheVersion),
		OriginHost:          cfg.Origin.Host,
		ActionHeader:        cfg.Origin.ActionHeader,
		AssetManifest:       cfg.Origin.AssetManifest,
		NavigableRoutes:     cfg.Origin.NavigableRoutes,
		OfflineFallbackPath: cfg.Origin.OfflineFallbackPath,
	})
	if err := controller.Run(ctx); err != nil {
		return fmt.Errorf("lifecycle: %w", err)
	}

	tree := supervisor.NewTree(
		slog.New(logging.NewSlogHandler()),
		supervisor.DefaultTreeConfig(),
	)
	tree.AddTransportService(supervisor.ServiceFunc{Name: "http-adapter", Run: server.Run})
	tree.AddTransportService(supervisor.ServiceFunc{Name: "notify-hub", Run: hub.Run})
	tree.AddPushService(supervisor.ServiceFunc{Name: "queue-depth-sampler", Run: queue.NewSampler(q, 30*time.Second).Run})

	if cfg.Push.Enabled {
		if err := wirePush(cfg, hub, tree); err != nil {
			return err
		}
	}

	logging.Info().Msg("daybook worker running")
	err = tree.Serve(ctx)
	if err != nil && err != context.Canceled {
		return err
	}

	if report, rerr := tree.UnstoppedServiceReport(); rerr == nil && len(report) > 0 {
		for _, svc := range report {
			logging.Warn().Str("service", svc.Name).Msg("service did not stop within timeout")
		}
	}

	logging.Info().Msg("daybook worker stopped")
	return nil
}

// wirePush connects the push pipeline: an optional embedded NATS server, a
// durable JetStream subscription, and the receiver that displays inbound
// notifications through the hub.
func wirePush(cfg *config.Config, hub *notify.Hub, tree *supervisor.Tree) error {
	url := cfg.Push.URL

	if cfg.Push.EmbeddedServer {
		embedded, err := push.NewEmbeddedServer(push.EmbeddedServerConfig{
			Host:     "127.0.0.1",
			Port:     -1, // random port; only this process connects
			StoreDir: cfg.Push.StoreDir,
		})
		if err != nil {
			return fmt.Errorf("start embedded NATS server: %w", err)
		}
		url = embedded.ClientURL()

		tree.AddPushService(supervisor.ServiceFunc{Name: "embedded-nats", Run: func(ctx context.Context) error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := embedded.Shutdown(shutdownCtx); err != nil {
				logging.Warn().Err(err).Msg("embedded NATS shutdown failed")
			}
			return ctx.Err()
		}})
	}

	sub, err := push.NewSubscriber(push.DefaultSubscriberConfig(url, cfg.Push.DurableName))
	if err != nil {
		return fmt.Errorf("connect push subscriber: %w", err)
	}

	receiverCfg := push.DefaultReceiverConfig()
	receiverCfg.Topic = cfg.Push.Topic
	receiver, err := push.NewReceiver(receiverCfg, sub, hub)
	if err != nil {
		return fmt.Errorf("build push receiver: %w", err)
	}

	tree.AddPushService(supervisor.ServiceFunc{Name: "push-receiver", Run: func(ctx context.Context) error {
		defer func() {
			if err := receiver.Close(); err != nil {
				logging.Warn().Err(err).Msg("push receiver close failed")
			}
		}()
		return receiver.Run(ctx)
	}})

	return nil
}

// Pelagos - Real-Time AIS Vessel Tracking and Map Tile Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pelagos

//go:build nats

package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	natsgo "github.com/nats-io/nats.go"

	"github.com/tomtom215/pelagos/internal/config"
	"github.com/tomtom215/pelagos/internal/events"
	"github.com/tomtom215/pelagos/internal/ingest"
	"github.com/tomtom215/pelagos/internal/logging"
)

// EventComponents holds the NATS event publishing pipeline for lifecycle
// management: the optional embedded server, the NATS connection, the
// stream manager, the Watermill publisher, and the ingest mirror.
type EventComponents struct {
	server    *events.EmbeddedServer
	natsConn  *natsgo.Conn
	streams   *events.StreamManager
	publisher *events.Publisher
	mirror    *events.Mirror

	// mirrorDone is closed when the mirror worker exits.
	mirrorDone chan struct{}

	shutdownComplete chan struct{}
	mu               sync.Mutex
	running          bool
}

// InitEvents initializes NATS event publishing when events are enabled.
// Each accepted position is mirrored onto the AIS_EVENTS stream through a
// bounded queue; a full queue drops rather than blocking ingest.
//
// Returns (nil, nil) when events are disabled so callers can wire the
// result unconditionally.
func InitEvents(cfg *config.Config, feed *ingest.Client) (*EventComponents, error) {
	if !cfg.Events.Enabled {
		logging.Info().Msg("NATS event publishing disabled (EVENTS_ENABLED=false)")
		return nil, nil
	}

	logging.Info().Msg("Initializing NATS event publishing...")

	// running is set before the fallible steps so a mid-init failure
	// still tears down whatever already started.
	components := &EventComponents{
		shutdownComplete: make(chan struct{}),
		running:          true,
	}

	var natsURL string

	// Step 1: Initialize embedded NATS server if enabled
	if cfg.Events.EmbeddedServer {
		serverCfg := events.DefaultServerConfig()
		serverCfg.StoreDir = cfg.Events.StoreDir
		serverCfg.JetStreamMaxMem = cfg.Events.MaxMemory
		serverCfg.JetStreamMaxStore = cfg.Events.MaxStore

		server, err := events.NewEmbeddedServer(&serverCfg)
		if err != nil {
			return nil, err
		}
		components.server = server
		natsURL = server.ClientURL()
		logging.Info().Str("url", natsURL).Msg("Embedded NATS server started")
	} else {
		natsURL = cfg.Events.NATSURL
		logging.Info().Str("url", natsURL).Msg("Using external NATS server")
	}

	// Step 2: Connect to NATS
	nc, err := natsgo.Connect(natsURL,
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(2*time.Second),
	)
	if err != nil {
		components.Shutdown(context.Background())
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	components.natsConn = nc
	logging.Info().Msg("NATS connection established")

	// Step 3: Ensure the AIS_EVENTS stream exists
	streamCfg := events.DefaultStreamConfig()
	streamCfg.MaxAge = time.Duration(cfg.Events.StreamRetentionDays) * 24 * time.Hour
	if cfg.Events.DedupWindow > 0 {
		streamCfg.DuplicateWindow = cfg.Events.DedupWindow
	}

	streamManager, err := events.NewStreamManager(nc, &streamCfg)
	if err != nil {
		components.Shutdown(context.Background())
		return nil, fmt.Errorf("create stream manager: %w", err)
	}
	components.streams = streamManager

	stream, err := streamManager.EnsureStream(context.Background())
	if err != nil {
		components.Shutdown(context.Background())
		return nil, fmt.Errorf("ensure stream exists: %w", err)
	}
	streamInfo := stream.CachedInfo()
	logging.Info().
		Str("name", streamInfo.Config.Name).
		Strs("subjects", streamInfo.Config.Subjects).
		Dur("max_age", streamInfo.Config.MaxAge).
		Msg("JetStream stream ready")

	// Step 4: Create publisher with circuit breaker protection
	publisher, err := events.NewPublisher(events.DefaultPublisherConfig(natsURL), nil)
	if err != nil {
		components.Shutdown(context.Background())
		return nil, err
	}
	publisher.SetCircuitBreaker(events.NewCircuitBreaker(
		events.DefaultCircuitBreakerConfig("event-publisher")))
	components.publisher = publisher
	logging.Info().Msg("NATS publisher created")

	// Step 5: Create the ingest mirror and wire it to the feed
	mirror := events.NewMirror(publisher, events.DefaultMirrorConfig())
	components.mirror = mirror
	feed.SetPublisher(mirror.Enqueue)
	logging.Info().Msg("Position event mirror wired to ingest client")

	logging.Info().Msg("NATS event publishing initialized successfully")
	return components, nil
}

// Start launches the mirror worker that drains the publish queue.
// The worker exits when ctx is cancelled.
func (c *EventComponents) Start(ctx context.Context) error {
	if c == nil {
		return nil
	}

	if c.mirror != nil {
		done := make(chan struct{})
		c.mirrorDone = done
		go func() {
			defer close(done)
			_ = c.mirror.Run(ctx)
		}()
		logging.Info().Msg("Position event mirror started")
	}

	return nil
}

// Shutdown gracefully stops all event components.
//
// Shutdown order is critical for clean termination:
//  1. Wait for the mirror worker to exit (its context is already cancelled)
//  2. Close the publisher
//  3. Close the NATS connection
//  4. Shutdown the embedded server last
func (c *EventComponents) Shutdown(ctx context.Context) {
	if c == nil {
		return
	}

	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	c.mu.Unlock()

	logging.Info().Msg("Shutting down event components...")

	c.shutdownMirror(ctx)
	c.shutdownPublisher()
	c.shutdownConnection(ctx)

	close(c.shutdownComplete)
	logging.Info().Msg("Event publishing shutdown complete")
}

// shutdownMirror waits for the mirror worker to exit.
func (c *EventComponents) shutdownMirror(ctx context.Context) {
	if c.mirrorDone == nil {
		return
	}
	select {
	case <-c.mirrorDone:
		logging.Info().Msg("Position event mirror stopped")
	case <-ctx.Done():
		logging.Warn().Msg("Timed out waiting for position event mirror")
	}
}

// shutdownPublisher closes the NATS publisher.
func (c *EventComponents) shutdownPublisher() {
	if c.publisher == nil {
		return
	}
	if err := c.publisher.Close(); err != nil {
		logging.Error().Err(err).Msg("Error closing publisher")
	}
	logging.Info().Msg("Publisher closed")
}

// shutdownConnection closes the NATS connection and embedded server.
func (c *EventComponents) shutdownConnection(ctx context.Context) {
	if c.natsConn != nil {
		c.natsConn.Close()
		logging.Info().Msg("NATS connection closed")
	}
	if c.server != nil {
		if err := c.server.Shutdown(ctx); err != nil {
			logging.Error().Err(err).Msg("Error shutting down NATS server")
		}
		logging.Info().Msg("Embedded NATS server stopped")
	}
}

// IsRunning returns whether event components are active.
func (c *EventComponents) IsRunning() bool {
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

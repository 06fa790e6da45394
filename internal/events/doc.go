// Pelagos - Real-Time AIS Vessel Tracking and Map Tile Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pelagos

// Package events publishes accepted vessel positions to NATS JetStream
// for external consumers such as shore-side archival, fleet alerting,
// or downstream analytics pipelines.
//
// # Architecture Decision: Store-First, Events as Egress
//
// Unlike event-sourced designs where the stream is the source of truth,
// Pelagos treats the live store and the batch-synchronized DuckDB as
// authoritative. The event stream is an optional, best-effort egress:
//
//	┌──────────────┐
//	│ aisstream.io │
//	└──────┬───────┘
//	       │
//	       ▼
//	┌──────────────┐     ┌──────────────┐     ┌──────────────┐
//	│ Ingest Client│────▶│  Live Store  │────▶│    DuckDB    │
//	│  (validate)  │     │ (tile index) │     │ (batch sync) │
//	└──────┬───────┘     └──────────────┘     └──────────────┘
//	       │ mirror (non-blocking)
//	       ▼
//	┌──────────────┐     ┌──────────────────┐
//	│    Mirror    │────▶│  NATS JetStream  │──▶ external consumers
//	│ (bounded q)  │     │   (AIS_EVENTS)   │
//	└──────────────┘     └──────────────────┘
//
// The mirror enqueues without blocking and drops on overflow, so a slow
// or unreachable NATS server never backpressures the upstream read loop
// and never loses positions from the tracking pipeline itself.
//
// # Key Components
//
//   - PositionEvent: canonical wire format with schema versioning
//   - Serializer: validated JSON encoding via goccy/go-json
//   - Publisher: Watermill NATS publisher with circuit breaker and
//     Nats-Msg-Id deduplication
//   - EmbeddedServer: optional embedded NATS JetStream server for
//     single-instance deployments
//   - StreamManager: creates and updates the AIS_EVENTS stream
//   - Mirror: bounded queue between the ingest hot path and the publisher
//
// # Usage Example
//
//	// Create embedded NATS server (optional)
//	serverCfg := events.DefaultServerConfig()
//	server, err := events.NewEmbeddedServer(&serverCfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer server.Shutdown(ctx)
//
//	// Create publisher
//	pub, err := events.NewPublisher(
//	    events.DefaultPublisherConfig(server.ClientURL()),
//	    nil, // logger
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer pub.Close()
//
//	// Mirror accepted positions from the ingest client
//	mirror := events.NewMirror(pub, events.DefaultMirrorConfig())
//	ingestClient.SetPublisher(mirror.Enqueue)
//	go mirror.Run(ctx)
//
// # Build Tags
//
// The NATS server, stream manager, and Watermill publisher require the
// nats build tag:
//
//	go build -tags=nats ./...
//
// Without the tag, stub implementations return errors from their
// constructors and the rest of Pelagos runs with events disabled. The
// event types, serializer, and mirror compile unconditionally.
package events

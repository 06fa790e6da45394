// Pelagos - Real-Time AIS Vessel Tracking and Map Tile Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pelagos

/*
Package main is the entry point for the Pelagos server.

Pelagos ingests a live AIS position stream from aisstream.io, keeps a
TTL-bounded view of every vessel's current state indexed by Web-Mercator
map tile, streams incremental per-tile updates to WebSocket subscribers,
and mirrors the live state into DuckDB for offline analytics.

# Application Architecture

The server runs under a Suture v4 supervision tree:

	RootSupervisor ("pelagos")
	├── DataSupervisor ("data-layer")
	│   └── sync-manager        batch upserts live store -> DuckDB
	├── MessagingSupervisor ("messaging-layer")
	│   ├── ais-ingest          upstream feed client with reconnect backoff
	│   ├── websocket-hub       dirty-tile dispatcher and session registry
	│   └── event-publisher     optional NATS JetStream mirror (-tags nats)
	└── APISupervisor ("api-layer")
	    └── http-server         /ws, health, status, /metrics

Components boot in dependency order: DuckDB, the live vessel store, the
ingest client, the batch synchronizer, the HTTP surface, and the dispatch
hub. Shutdown reverses the order; during the grace window new WebSocket
upgrades are refused with 503 while in-flight traffic drains.

Data flows one way through the pipeline:

	aisstream.io -> ingest -> live store -> hub -> subscriber sessions
	                              └-> sync manager -> DuckDB

# Configuration

Configuration is loaded via Koanf v2 with layered sources (highest
priority wins):
  - Environment variables (AISSTREAM_API_KEY is required)
  - Config file (config.yaml, or the path in PELAGOS_CONFIG)
  - Built-in defaults

The live store backend defaults to in-process memory; set
STORE_BACKEND=redis and REDIS_URL to share live state across processes.

# Build Tags

Optional build tags enable additional functionality:

	go build ./cmd/server             # core pipeline
	go build -tags nats ./cmd/server  # plus JetStream position events

# Signal Handling

The server handles graceful shutdown on SIGINT and SIGTERM:
  - Refuses new WebSocket connections (503)
  - Closes subscriber sessions with close code 1001
  - Stops the ingest client, flushes the sync manager
  - Checkpoints and closes DuckDB

# Example Usage

Minimal run against the public feed:

	export AISSTREAM_API_KEY=your-api-key
	./pelagos

Limit coverage to one region and tune the fan-out cadence:

	export AISSTREAM_API_KEY=your-api-key
	export AISSTREAM_BBOX="22.1,113.8,22.6,114.5"
	export DISPATCH_FLUSH_MS=250
	./pelagos

Docker:

	docker run -d \
	  -e AISSTREAM_API_KEY=your-api-key \
	  -v pelagos-data:/data \
	  -p 3000:3000 \
	  ghcr.io/tomtom215/pelagos
*/
package main

// Pelagos - Real-Time AIS Vessel Tracking and Map Tile Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pelagos

/*
Package config provides centralized configuration management for Pelagos.

This package handles loading, validation, and parsing of environment variables
for all application components. It ensures consistent configuration across the
ingest, store, dispatch, sync, and server layers and provides sensible
defaults for optional settings.

# Configuration Sources

Configuration is loaded in layers through Koanf v2, lowest precedence first:
  - Built-in struct defaults
  - Optional YAML config file (PELAGOS_CONFIG or the default search list)
  - Environment variables (explicit mapping table, unmapped vars ignored)

# Environment Variables

Upstream feed (UpstreamConfig):
  - AISSTREAM_API_KEY: aisstream.io API key (required)
  - AISSTREAM_URL: Stream endpoint (default: wss://stream.aisstream.io/v0/stream)
  - AISSTREAM_BBOX: Coverage areas "lat1,lon1,lat2,lon2;..." (default: whole world)

Tile indexing (TileConfig):
  - TILE_ZOOM: Web-Mercator zoom for vessel indexing (default: 12)

Live store (StoreConfig):
  - STORE_BACKEND: "memory" or "redis" (default: memory)
  - VESSEL_TTL_SECONDS: Sliding retention window (default: 120)
  - REDIS_URL: Redis connection URL (default: redis://localhost:6379/0)

Durable store (DatabaseConfig):
  - DATABASE_PATH: DuckDB file path (default: /data/pelagos.duckdb)
  - DUCKDB_MAX_MEMORY: Memory limit (default: 2GB)
  - DUCKDB_THREADS: Thread count, 0 = NumCPU (default: 0)

Batch sync (SyncConfig):
  - BATCH_SYNC_INTERVAL_MS: Tick interval (default: 5000)
  - BATCH_SYNC_SIZE: Records per scan page (default: 1000)

Pipeline cadence (IngestConfig, DispatchConfig):
  - INGEST_FLUSH_MS: Dirty-tile handoff interval (default: 1000)
  - DISPATCH_FLUSH_MS: Fan-out flush interval (default: 500)

WebSocket sessions (WebSocketConfig):
  - HEARTBEAT_MS: Ping interval; two misses end the session (default: 30000)
  - MAX_TILES_PER_CLIENT: Subscription cap (default: 1500)
  - CLIENT_QUEUE_SIZE: Outbound queue depth (default: 256)

HTTP server (ServerConfig):
  - PORT: Listen port (default: 3000)
  - HOST: Bind address (default: 0.0.0.0)
  - HTTP_TIMEOUT: Read/write timeout (default: 30s)
  - SHUTDOWN_TIMEOUT: Graceful drain window (default: 5s)
  - CORS_ORIGINS: Comma-separated allowed origins (default: *)
  - RATE_LIMIT_REQUESTS / RATE_LIMIT_WINDOW: REST rate limit (default: 100/1m)

Event publishing (EventsConfig):
  - EVENTS_ENABLED: Publish position events to NATS (default: false)
  - NATS_URL: NATS server URL (default: nats://127.0.0.1:4222)
  - NATS_EMBEDDED: Run an embedded JetStream server (default: true)
  - NATS_STORE_DIR, NATS_MAX_MEMORY, NATS_MAX_STORE, NATS_RETENTION_DAYS,
    NATS_DEDUP_WINDOW: JetStream tuning

Logging (LoggingConfig):
  - LOG_LEVEL: trace, debug, info, warn, error (default: info)
  - LOG_FORMAT: json or console (default: json)
  - LOG_CALLER: Include caller file:line (default: false)

# Usage

	cfg, err := config.Load()
	if err != nil {
	    logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

The returned Config is immutable and safe for concurrent reads.
*/
package config

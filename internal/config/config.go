// Pelagos - Real-Time AIS Vessel Tracking and Map Tile Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pelagos

package config

import (
	"time"
)

// Config holds all application configuration loaded from environment variables
// and config files. Provides centralized configuration management for the
// upstream AIS feed, tile indexing, vessel stores, batch synchronization, the
// HTTP/WebSocket server, event publishing, and logging.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: Built-in sensible defaults for all optional settings
//  2. Config File: Optional YAML config file (config.yaml) for persistent settings
//  3. Environment Variables: Override any setting via environment variables
//
// Configuration Categories:
//
//  1. Data Plane:
//     - Upstream: aisstream.io WebSocket feed credentials and coverage area
//     - Tile: Web-Mercator zoom level for vessel indexing
//     - Store: Live vessel store backend (in-memory or Redis) and TTL
//     - Ingest/Dispatch: Dirty-tile flush cadence on both sides of the store
//
//  2. Durability:
//     - Database: DuckDB configuration (path, memory, threads)
//     - Sync: Batch synchronization from the live store into DuckDB
//
//  3. Delivery:
//     - WebSocket: Session heartbeat, queue depth, and subscription limits
//     - Server: HTTP server configuration (port, timeouts, CORS, rate limits)
//     - Events: Optional NATS JetStream position-event publishing
//
//  4. Observability:
//     - Logging: Log levels and output formats
//
// Example - Load configuration from environment:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal("Failed to load config:", err)
//	}
//	// cfg.Upstream.APIKey, cfg.Database.Path, etc. are now populated
//
// Validation:
// The Load() function validates all required fields and returns an error if:
//   - AISSTREAM_API_KEY is missing (the upstream feed rejects anonymous clients)
//   - Values are malformed (invalid URL scheme, out-of-range zoom or port)
//   - A store backend other than "memory" or "redis" is selected
//
// Thread Safety:
// Config is immutable after Load() and safe for concurrent read access from
// multiple goroutines.
type Config struct {
	Upstream  UpstreamConfig  `koanf:"upstream"`
	Tile      TileConfig      `koanf:"tile"`
	Store     StoreConfig     `koanf:"store"`
	Database  DatabaseConfig  `koanf:"database"`
	Sync      SyncConfig      `koanf:"sync"`
	Ingest    IngestConfig    `koanf:"ingest"`
	Dispatch  DispatchConfig  `koanf:"dispatch"`
	WebSocket WebSocketConfig `koanf:"websocket"`
	Server    ServerConfig    `koanf:"server"`
	Events    EventsConfig    `koanf:"events"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// UpstreamConfig holds the aisstream.io feed connection settings.
//
// Environment Variables:
//   - AISSTREAM_API_KEY: API key issued by aisstream.io (required)
//   - AISSTREAM_URL: Stream endpoint (default: wss://stream.aisstream.io/v0/stream)
//   - AISSTREAM_BBOX: Coverage areas as "lat1,lon1,lat2,lon2" pairs separated
//     by ";" (default: whole world)
type UpstreamConfig struct {
	APIKey string `koanf:"api_key" validate:"required"`
	URL    string `koanf:"url" validate:"required"`
	BBox   string `koanf:"bbox"`
}

// TileConfig holds the Web-Mercator indexing settings shared by the live
// store, the dispatcher, and the durable store's tile column.
type TileConfig struct {
	Zoom int `koanf:"zoom" validate:"min=0,max=22"`
}

// StoreConfig holds live vessel store settings. The live store keeps every
// vessel's latest position with a sliding TTL and a per-tile index.
type StoreConfig struct {
	// Backend selects the store implementation: "memory" or "redis".
	Backend string `koanf:"backend" validate:"oneof=memory redis"`

	// VesselTTLSeconds is the sliding retention window for vessel records.
	// A vessel that stays silent this long disappears from the live layer.
	VesselTTLSeconds int `koanf:"vessel_ttl_seconds" validate:"min=1"`

	// RedisURL is the connection URL used when Backend is "redis".
	RedisURL string `koanf:"redis_url"`
}

// VesselTTL returns the retention window as a duration.
func (c StoreConfig) VesselTTL() time.Duration {
	return time.Duration(c.VesselTTLSeconds) * time.Second
}

// DatabaseConfig holds DuckDB settings for the durable vessel store.
type DatabaseConfig struct {
	Path      string `koanf:"path" validate:"required"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads" validate:"min=0"` // 0 = use NumCPU
}

// SyncConfig holds batch synchronization settings for the live-store to
// DuckDB pipeline.
type SyncConfig struct {
	IntervalMS int `koanf:"interval_ms" validate:"min=100"`
	BatchSize  int `koanf:"batch_size" validate:"min=1,max=100000"`
}

// Interval returns the tick interval as a duration.
func (c SyncConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMS) * time.Millisecond
}

// IngestConfig holds upstream ingest settings beyond the feed connection
// itself.
type IngestConfig struct {
	// FlushMS is how often accumulated dirty tiles are handed to the
	// dispatcher.
	FlushMS int `koanf:"flush_ms" validate:"min=10"`
}

// FlushInterval returns the dirty-tile flush interval as a duration.
func (c IngestConfig) FlushInterval() time.Duration {
	return time.Duration(c.FlushMS) * time.Millisecond
}

// DispatchConfig holds dispatcher settings for fanning dirty tiles out to
// WebSocket subscribers.
type DispatchConfig struct {
	FlushMS int `koanf:"flush_ms" validate:"min=10"`
}

// FlushInterval returns the fan-out flush interval as a duration.
func (c DispatchConfig) FlushInterval() time.Duration {
	return time.Duration(c.FlushMS) * time.Millisecond
}

// WebSocketConfig holds per-session settings for subscriber connections.
type WebSocketConfig struct {
	// HeartbeatMS is the protocol ping interval. A session that misses two
	// consecutive heartbeats is closed.
	HeartbeatMS int `koanf:"heartbeat_ms" validate:"min=1000"`

	// MaxTilesPerClient caps concurrent tile subscriptions per session.
	MaxTilesPerClient int `koanf:"max_tiles_per_client" validate:"min=1"`

	// ClientQueueSize bounds each session's outbound update queue. The
	// oldest update is dropped when a slow consumer falls behind.
	ClientQueueSize int `koanf:"client_queue_size" validate:"min=1"`
}

// Heartbeat returns the ping interval as a duration.
func (c WebSocketConfig) Heartbeat() time.Duration {
	return time.Duration(c.HeartbeatMS) * time.Millisecond
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	Host            string        `koanf:"host"`
	Timeout         time.Duration `koanf:"timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs" validate:"min=1"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// EventsConfig holds optional NATS JetStream event publishing settings.
// When disabled, accepted positions flow only to the live store and the
// dispatcher; no events are published.
type EventsConfig struct {
	Enabled             bool          `koanf:"enabled"`
	NATSURL             string        `koanf:"nats_url"`
	EmbeddedServer      bool          `koanf:"embedded_server"`
	StoreDir            string        `koanf:"store_dir"`
	MaxMemory           int64         `koanf:"max_memory"`
	MaxStore            int64         `koanf:"max_store"`
	StreamRetentionDays int           `koanf:"stream_retention_days" validate:"min=1"`
	DedupWindow         time.Duration `koanf:"dedup_window"`
}

// LoggingConfig holds logging output settings.
type LoggingConfig struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	// Default: info
	Level string `koanf:"level" validate:"oneof=trace debug info warn error"`

	// Format is the output format: json or console.
	// JSON is recommended for production (structured, machine-parseable).
	// Console is human-readable for development.
	// Default: json
	Format string `koanf:"format" validate:"oneof=json console"`

	// Caller includes caller file and line number in logs.
	// Adds slight performance overhead.
	// Default: false
	Caller bool `koanf:"caller"`
}

// Load reads configuration from defaults, an optional YAML file, and
// environment variables, then validates the result.
func Load() (*Config, error) {
	return LoadWithKoanf()
}

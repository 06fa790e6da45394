// Pelagos - Real-Time AIS Vessel Tracking and Map Tile Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pelagos

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order
// of priority. The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/pelagos/config.yaml",
	"/etc/pelagos/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config
// file path.
const ConfigPathEnvVar = "PELAGOS_CONFIG"

// defaultConfig returns a Config struct with all sensible default values.
// These defaults are applied first, then overridden by config file and env
// vars.
func defaultConfig() *Config {
	return &Config{
		Upstream: UpstreamConfig{
			APIKey: "", // Required - aisstream.io rejects anonymous clients
			URL:    "wss://stream.aisstream.io/v0/stream",
			BBox:   "", // Empty = whole world
		},
		Tile: TileConfig{
			Zoom: 12,
		},
		Store: StoreConfig{
			Backend:          "memory",
			VesselTTLSeconds: 120,
			RedisURL:         "redis://localhost:6379/0",
		},
		Database: DatabaseConfig{
			Path:      "/data/pelagos.duckdb",
			MaxMemory: "2GB",
			Threads:   0, // 0 = use runtime.NumCPU()
		},
		Sync: SyncConfig{
			IntervalMS: 5000,
			BatchSize:  1000,
		},
		Ingest: IngestConfig{
			FlushMS: 1000,
		},
		Dispatch: DispatchConfig{
			FlushMS: 500,
		},
		WebSocket: WebSocketConfig{
			HeartbeatMS:       30000,
			MaxTilesPerClient: 1500,
			ClientQueueSize:   256,
		},
		Server: ServerConfig{
			Port:            3000,
			Host:            "0.0.0.0",
			Timeout:         30 * time.Second,
			ShutdownTimeout: 5 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   100,
			RateLimitWindow: 1 * time.Minute,
		},
		Events: EventsConfig{
			Enabled:             false, // Disabled by default - opt-in only
			NATSURL:             "nats://127.0.0.1:4222",
			EmbeddedServer:      true,
			StoreDir:            "/data/nats/jetstream",
			MaxMemory:           1 << 30,  // 1GB
			MaxStore:            10 << 30, // 10GB
			StreamRetentionDays: 7,
			DedupWindow:         2 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources:
//  1. Defaults: Built-in sensible defaults
//  2. Config File: Optional YAML config file (if exists)
//  3. Environment Variables: Override any setting
//
// This function is the preferred way to load configuration and provides:
//   - Type-safe configuration unmarshaling
//   - Clear precedence: ENV > File > Defaults
//   - Support for nested configuration via koanf struct tags
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Load environment variables (highest priority)
	// Transform environment variable names to koanf paths:
	// AISSTREAM_API_KEY -> upstream.api_key
	// VESSEL_TTL_SECONDS -> store.vessel_ttl_seconds
	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Post-process slice fields from comma-separated strings
	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	// Unmarshal into Config struct
	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	// Check environment variable first
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	// Search default paths
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths should be parsed as
// comma-separated slices
var sliceConfigPaths = []string{
	"server.cors_origins",
}

// processSliceFields converts comma-separated string values to slices for
// known slice fields. This is necessary because env vars come in as strings,
// but the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		// If it's already a slice (from YAML file), skip
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		// If it's a string, split by comma
		if strVal, ok := val.(string); ok {
			if strVal == "" {
				continue
			}
			parts := strings.Split(strVal, ",")
			trimmed := make([]string, 0, len(parts))
			for _, p := range parts {
				p = strings.TrimSpace(p)
				if p != "" {
					trimmed = append(trimmed, p)
				}
			}
			if len(trimmed) > 0 {
				if err := k.Set(path, trimmed); err != nil {
					return fmt.Errorf("failed to set %s: %w", path, err)
				}
			}
		}
	}
	return nil
}

// envTransformFunc transforms environment variable names to koanf config
// paths. Only explicitly mapped variables are honored; everything else in the
// process environment is ignored.
//
// Examples:
//   - AISSTREAM_API_KEY -> upstream.api_key
//   - TILE_ZOOM -> tile.zoom
//   - BATCH_SYNC_INTERVAL_MS -> sync.interval_ms
//   - HEARTBEAT_MS -> websocket.heartbeat_ms
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Upstream feed mappings
		"aisstream_api_key": "upstream.api_key",
		"aisstream_url":     "upstream.url",
		"aisstream_bbox":    "upstream.bbox",

		// Tile indexing mappings
		"tile_zoom": "tile.zoom",

		// Live store mappings
		"store_backend":      "store.backend",
		"vessel_ttl_seconds": "store.vessel_ttl_seconds",
		"redis_url":          "store.redis_url",

		// Database mappings
		"database_path":     "database.path",
		"duckdb_max_memory": "database.max_memory",
		"duckdb_threads":    "database.threads",

		// Batch sync mappings
		"batch_sync_interval_ms": "sync.interval_ms",
		"batch_sync_size":        "sync.batch_size",

		// Ingest mappings
		"ingest_flush_ms": "ingest.flush_ms",

		// Dispatch mappings
		"dispatch_flush_ms": "dispatch.flush_ms",

		// WebSocket session mappings
		"heartbeat_ms":         "websocket.heartbeat_ms",
		"max_tiles_per_client": "websocket.max_tiles_per_client",
		"client_queue_size":    "websocket.client_queue_size",

		// Server mappings
		"port":                "server.port",
		"host":                "server.host",
		"http_timeout":        "server.timeout",
		"shutdown_timeout":    "server.shutdown_timeout",
		"cors_origins":        "server.cors_origins",
		"rate_limit_requests": "server.rate_limit_reqs",
		"rate_limit_window":   "server.rate_limit_window",

		// Event publishing mappings
		"events_enabled":      "events.enabled",
		"nats_url":            "events.nats_url",
		"nats_embedded":       "events.embedded_server",
		"nats_store_dir":      "events.store_dir",
		"nats_max_memory":     "events.max_memory",
		"nats_max_store":      "events.max_store",
		"nats_retention_days": "events.stream_retention_days",
		"nats_dedup_window":   "events.dedup_window",

		// Logging mappings
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	// For unmapped keys, return empty string to skip them
	// This prevents random environment variables from polluting config
	return ""
}

// Pelagos - Real-Time AIS Vessel Tracking and Map Tile Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pelagos

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// resetEnv wipes the process environment so host variables such as PORT or
// LOG_LEVEL cannot leak into Load.
func resetEnv(t *testing.T) {
	t.Helper()
	os.Clearenv()
	os.Setenv("AISSTREAM_API_KEY", "test-api-key")
}

func TestLoadDefaults(t *testing.T) {
	resetEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Upstream.URL != "wss://stream.aisstream.io/v0/stream" {
		t.Errorf("Upstream.URL = %q", cfg.Upstream.URL)
	}
	if cfg.Tile.Zoom != 12 {
		t.Errorf("Tile.Zoom = %d, want 12", cfg.Tile.Zoom)
	}
	if cfg.Store.Backend != "memory" {
		t.Errorf("Store.Backend = %q, want memory", cfg.Store.Backend)
	}
	if got := cfg.Store.VesselTTL(); got != 120*time.Second {
		t.Errorf("Store.VesselTTL() = %v, want 2m0s", got)
	}
	if cfg.Database.Path != "/data/pelagos.duckdb" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
	if got := cfg.Sync.Interval(); got != 5*time.Second {
		t.Errorf("Sync.Interval() = %v, want 5s", got)
	}
	if cfg.Sync.BatchSize != 1000 {
		t.Errorf("Sync.BatchSize = %d, want 1000", cfg.Sync.BatchSize)
	}
	if got := cfg.Ingest.FlushInterval(); got != time.Second {
		t.Errorf("Ingest.FlushInterval() = %v, want 1s", got)
	}
	if got := cfg.Dispatch.FlushInterval(); got != 500*time.Millisecond {
		t.Errorf("Dispatch.FlushInterval() = %v, want 500ms", got)
	}
	if got := cfg.WebSocket.Heartbeat(); got != 30*time.Second {
		t.Errorf("WebSocket.Heartbeat() = %v, want 30s", got)
	}
	if cfg.WebSocket.MaxTilesPerClient != 1500 {
		t.Errorf("WebSocket.MaxTilesPerClient = %d, want 1500", cfg.WebSocket.MaxTilesPerClient)
	}
	if cfg.Server.Port != 3000 {
		t.Errorf("Server.Port = %d, want 3000", cfg.Server.Port)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %q, want 0.0.0.0", cfg.Server.Host)
	}
	if len(cfg.Server.CORSOrigins) != 1 || cfg.Server.CORSOrigins[0] != "*" {
		t.Errorf("Server.CORSOrigins = %v, want [*]", cfg.Server.CORSOrigins)
	}
	if cfg.Events.Enabled {
		t.Error("Events.Enabled = true by default, want false")
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %s/%s, want info/json", cfg.Logging.Level, cfg.Logging.Format)
	}
}

func TestLoadMissingAPIKeyFails(t *testing.T) {
	os.Clearenv()

	_, err := Load()
	if err == nil {
		t.Fatal("Load() succeeded without AISSTREAM_API_KEY")
	}
	if !strings.Contains(err.Error(), "AISSTREAM_API_KEY") {
		t.Errorf("error %q does not name AISSTREAM_API_KEY", err)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	resetEnv(t)
	os.Setenv("AISSTREAM_URL", "wss://example.test/stream")
	os.Setenv("AISSTREAM_BBOX", "20,110,25,120")
	os.Setenv("TILE_ZOOM", "10")
	os.Setenv("VESSEL_TTL_SECONDS", "60")
	os.Setenv("STORE_BACKEND", "redis")
	os.Setenv("REDIS_URL", "redis://cache.internal:6380/2")
	os.Setenv("BATCH_SYNC_INTERVAL_MS", "2000")
	os.Setenv("BATCH_SYNC_SIZE", "500")
	os.Setenv("INGEST_FLUSH_MS", "250")
	os.Setenv("DISPATCH_FLUSH_MS", "100")
	os.Setenv("HEARTBEAT_MS", "10000")
	os.Setenv("PORT", "8080")
	os.Setenv("DATABASE_PATH", "/tmp/test.duckdb")
	os.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")
	os.Setenv("LOG_LEVEL", "debug")
	os.Setenv("LOG_FORMAT", "console")
	os.Setenv("EVENTS_ENABLED", "true")
	os.Setenv("NATS_URL", "nats://queue.internal:4222")
	os.Setenv("NATS_EMBEDDED", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Upstream.APIKey != "test-api-key" {
		t.Errorf("Upstream.APIKey = %q", cfg.Upstream.APIKey)
	}
	if cfg.Upstream.URL != "wss://example.test/stream" {
		t.Errorf("Upstream.URL = %q", cfg.Upstream.URL)
	}
	if cfg.Upstream.BBox != "20,110,25,120" {
		t.Errorf("Upstream.BBox = %q", cfg.Upstream.BBox)
	}
	if cfg.Tile.Zoom != 10 {
		t.Errorf("Tile.Zoom = %d, want 10", cfg.Tile.Zoom)
	}
	if got := cfg.Store.VesselTTL(); got != time.Minute {
		t.Errorf("Store.VesselTTL() = %v, want 1m0s", got)
	}
	if cfg.Store.Backend != "redis" || cfg.Store.RedisURL != "redis://cache.internal:6380/2" {
		t.Errorf("Store = %s %s", cfg.Store.Backend, cfg.Store.RedisURL)
	}
	if got := cfg.Sync.Interval(); got != 2*time.Second {
		t.Errorf("Sync.Interval() = %v, want 2s", got)
	}
	if cfg.Sync.BatchSize != 500 {
		t.Errorf("Sync.BatchSize = %d, want 500", cfg.Sync.BatchSize)
	}
	if got := cfg.Ingest.FlushInterval(); got != 250*time.Millisecond {
		t.Errorf("Ingest.FlushInterval() = %v, want 250ms", got)
	}
	if got := cfg.Dispatch.FlushInterval(); got != 100*time.Millisecond {
		t.Errorf("Dispatch.FlushInterval() = %v, want 100ms", got)
	}
	if got := cfg.WebSocket.Heartbeat(); got != 10*time.Second {
		t.Errorf("WebSocket.Heartbeat() = %v, want 10s", got)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Database.Path != "/tmp/test.duckdb" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
	wantOrigins := []string{"https://a.example", "https://b.example"}
	if len(cfg.Server.CORSOrigins) != 2 ||
		cfg.Server.CORSOrigins[0] != wantOrigins[0] ||
		cfg.Server.CORSOrigins[1] != wantOrigins[1] {
		t.Errorf("Server.CORSOrigins = %v, want %v", cfg.Server.CORSOrigins, wantOrigins)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "console" {
		t.Errorf("Logging = %s/%s", cfg.Logging.Level, cfg.Logging.Format)
	}
	if !cfg.Events.Enabled || cfg.Events.NATSURL != "nats://queue.internal:4222" || cfg.Events.EmbeddedServer {
		t.Errorf("Events = %+v", cfg.Events)
	}
}

func TestLoadConfigFile(t *testing.T) {
	resetEnv(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "pelagos.yaml")
	content := `
tile:
  zoom: 8
store:
  vessel_ttl_seconds: 300
server:
  port: 9000
  cors_origins:
    - https://charts.example
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config file: %v", err)
	}
	os.Setenv(ConfigPathEnvVar, path)

	// Env still beats file for overlapping keys.
	os.Setenv("PORT", "9100")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Tile.Zoom != 8 {
		t.Errorf("Tile.Zoom = %d, want 8 from file", cfg.Tile.Zoom)
	}
	if cfg.Store.VesselTTLSeconds != 300 {
		t.Errorf("Store.VesselTTLSeconds = %d, want 300 from file", cfg.Store.VesselTTLSeconds)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("Server.Port = %d, want 9100 from env over file", cfg.Server.Port)
	}
	if len(cfg.Server.CORSOrigins) != 1 || cfg.Server.CORSOrigins[0] != "https://charts.example" {
		t.Errorf("Server.CORSOrigins = %v", cfg.Server.CORSOrigins)
	}
	// Untouched keys keep their defaults.
	if cfg.Store.Backend != "memory" {
		t.Errorf("Store.Backend = %q, want memory", cfg.Store.Backend)
	}
}

func TestFindConfigFileMissingPathIgnored(t *testing.T) {
	resetEnv(t)
	os.Setenv(ConfigPathEnvVar, "/non/existent/pelagos.yaml")

	if _, err := Load(); err != nil {
		t.Errorf("Load() error = %v, want missing config file ignored", err)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{
			name: "http upstream url",
			env:  map[string]string{"AISSTREAM_URL": "http://stream.aisstream.io/v0/stream"},
		},
		{
			name: "zoom above range",
			env:  map[string]string{"TILE_ZOOM": "30"},
		},
		{
			name: "zero ttl",
			env:  map[string]string{"VESSEL_TTL_SECONDS": "0"},
		},
		{
			name: "unknown backend",
			env:  map[string]string{"STORE_BACKEND": "cassandra"},
		},
		{
			name: "redis backend with http url",
			env: map[string]string{
				"STORE_BACKEND": "redis",
				"REDIS_URL":     "http://localhost:6379",
			},
		},
		{
			name: "sync interval below floor",
			env:  map[string]string{"BATCH_SYNC_INTERVAL_MS": "10"},
		},
		{
			name: "port zero",
			env:  map[string]string{"PORT": "0"},
		},
		{
			name: "unknown log format",
			env:  map[string]string{"LOG_FORMAT": "xml"},
		},
		{
			name: "unknown log level",
			env:  map[string]string{"LOG_LEVEL": "verbose"},
		},
		{
			name: "events with bad nats url",
			env: map[string]string{
				"EVENTS_ENABLED": "true",
				"NATS_URL":       "http://127.0.0.1:4222",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetEnv(t)
			for k, v := range tt.env {
				os.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Error("Load() accepted invalid configuration")
			}
		})
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		env  string
		want string
	}{
		{"AISSTREAM_API_KEY", "upstream.api_key"},
		{"AISSTREAM_BBOX", "upstream.bbox"},
		{"TILE_ZOOM", "tile.zoom"},
		{"VESSEL_TTL_SECONDS", "store.vessel_ttl_seconds"},
		{"BATCH_SYNC_INTERVAL_MS", "sync.interval_ms"},
		{"INGEST_FLUSH_MS", "ingest.flush_ms"},
		{"DISPATCH_FLUSH_MS", "dispatch.flush_ms"},
		{"HEARTBEAT_MS", "websocket.heartbeat_ms"},
		{"PORT", "server.port"},
		{"EVENTS_ENABLED", "events.enabled"},
		{"LOG_LEVEL", "logging.level"},
		// Unmapped variables are dropped rather than guessed at.
		{"PATH", ""},
		{"PELAGOS_CONFIG", ""},
		{"RANDOM_UNRELATED_VAR", ""},
	}

	for _, tt := range tests {
		if got := envTransformFunc(tt.env); got != tt.want {
			t.Errorf("envTransformFunc(%s) = %q, want %q", tt.env, got, tt.want)
		}
	}
}

func TestShouldWarnAboutCORS(t *testing.T) {
	cfg := defaultConfig()
	if !cfg.ShouldWarnAboutCORS() {
		t.Error("wildcard default should warn")
	}

	cfg.Server.CORSOrigins = []string{"https://charts.example"}
	if cfg.ShouldWarnAboutCORS() {
		t.Error("explicit origin list should not warn")
	}
}

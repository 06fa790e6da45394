// Pelagos - Real-Time AIS Vessel Tracking and Map Tile Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pelagos

package config

import (
	"fmt"

	"github.com/tomtom215/pelagos/internal/validation"
)

// Validate checks that required configuration is present and valid.
// Errors name the environment variable an operator has to fix.
func (c *Config) Validate() error {
	if err := c.validateUpstream(); err != nil {
		return err
	}

	if verr := validation.ValidateStruct(c); verr != nil {
		return fmt.Errorf("invalid configuration: %w", verr)
	}

	if err := c.validateStore(); err != nil {
		return err
	}

	if err := c.validateServer(); err != nil {
		return err
	}

	return c.validateEvents()
}

// validateUpstream validates the aisstream.io feed settings. The API key is
// the one setting with no usable default, so it is checked before anything
// else.
func (c *Config) validateUpstream() error {
	if c.Upstream.APIKey == "" {
		return fmt.Errorf("AISSTREAM_API_KEY is required (get one at https://aisstream.io)")
	}
	if c.Upstream.URL == "" {
		return fmt.Errorf("AISSTREAM_URL is required")
	}
	if err := validateStreamURL(c.Upstream.URL, "AISSTREAM_URL"); err != nil {
		return err
	}
	return nil
}

// validateStore validates the live store settings. The Redis URL only
// matters when the Redis backend is selected.
func (c *Config) validateStore() error {
	if c.Store.Backend != "redis" {
		return nil
	}
	if c.Store.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required when STORE_BACKEND=redis")
	}
	if err := validateRedisURL(c.Store.RedisURL, "REDIS_URL"); err != nil {
		return err
	}
	return nil
}

// validateServer validates HTTP server settings not covered by struct tags.
func (c *Config) validateServer() error {
	if len(c.Server.CORSOrigins) == 0 {
		return fmt.Errorf("CORS_ORIGINS must not be empty (use \"*\" to allow any origin)")
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("SHUTDOWN_TIMEOUT must be positive")
	}
	return nil
}

// validateEvents validates event publishing settings (only if enabled).
func (c *Config) validateEvents() error {
	if !c.Events.Enabled {
		return nil
	}
	if c.Events.NATSURL == "" && !c.Events.EmbeddedServer {
		return fmt.Errorf("NATS_URL is required when EVENTS_ENABLED=true and NATS_EMBEDDED=false")
	}
	if c.Events.NATSURL != "" {
		if err := validateNATSURL(c.Events.NATSURL, "NATS_URL"); err != nil {
			return err
		}
	}
	if c.Events.EmbeddedServer && c.Events.StoreDir == "" {
		return fmt.Errorf("NATS_STORE_DIR is required when the embedded server is enabled")
	}
	if c.Events.DedupWindow <= 0 {
		return fmt.Errorf("NATS_DEDUP_WINDOW must be positive")
	}
	return nil
}

// ShouldWarnAboutCORS reports whether the server allows any origin. Wildcard
// CORS is the default for ease of first deployment but worth a startup
// warning.
func (c *Config) ShouldWarnAboutCORS() bool {
	for _, origin := range c.Server.CORSOrigins {
		if origin == "*" {
			return true
		}
	}
	return false
}

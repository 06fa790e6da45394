// Pelagos - Real-Time AIS Vessel Tracking and Map Tile Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pelagos

package config

import (
	"fmt"
	"net/url"
)

// validateStreamURL validates that a URL is properly formatted for a
// WebSocket stream endpoint.
// Validates: scheme (ws/wss) and host present. Paths are allowed because
// upstream endpoints are versioned (e.g. /v0/stream).
func validateStreamURL(rawURL, fieldName string) error {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%s failed to parse URL: %w", fieldName, err)
	}

	if parsedURL.Scheme != "ws" && parsedURL.Scheme != "wss" {
		return fmt.Errorf("%s scheme must be ws or wss, got: %s", fieldName, parsedURL.Scheme)
	}

	if parsedURL.Host == "" {
		return fmt.Errorf("%s host is required", fieldName)
	}

	return nil
}

// validateRedisURL validates that a Redis connection URL is properly
// formatted.
// Supports: redis:// and rediss:// schemes with optional auth, port, and
// database number (e.g. redis://localhost:6379/0).
func validateRedisURL(rawURL, fieldName string) error {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%s failed to parse URL: %w", fieldName, err)
	}

	if parsedURL.Scheme != "redis" && parsedURL.Scheme != "rediss" {
		return fmt.Errorf("%s scheme must be redis or rediss, got: %s", fieldName, parsedURL.Scheme)
	}

	if parsedURL.Host == "" {
		return fmt.Errorf("%s host is required (e.g. localhost:6379)", fieldName)
	}

	return nil
}

// validateNATSURL validates that a NATS URL is properly formatted.
// Supports: nats://, tls://, and ws:// schemes with IP addresses/hostnames
// and optional ports.
func validateNATSURL(rawURL, fieldName string) error {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%s failed to parse URL: %w", fieldName, err)
	}

	validSchemes := map[string]bool{"nats": true, "tls": true, "ws": true, "wss": true}
	if !validSchemes[parsedURL.Scheme] {
		return fmt.Errorf("%s scheme must be nats, tls, ws, or wss, got: %s", fieldName, parsedURL.Scheme)
	}

	if parsedURL.Host == "" {
		return fmt.Errorf("%s host is required (e.g. 127.0.0.1:4222)", fieldName)
	}

	return nil
}

// Pelagos - Real-Time AIS Vessel Tracking and Map Tile Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pelagos

//go:build !nats

package main

import (
	"context"

	"github.com/tomtom215/pelagos/internal/config"
	"github.com/tomtom215/pelagos/internal/ingest"
	"github.com/tomtom215/pelagos/internal/logging"
)

// EventComponents is a stub for non-NATS builds.
type EventComponents struct{}

// InitEvents is a no-op stub for non-NATS builds.
// Returns nil to indicate event publishing is not available.
func InitEvents(cfg *config.Config, _ *ingest.Client) (*EventComponents, error) {
	if cfg.Events.Enabled {
		logging.Warn().Msg("EVENTS_ENABLED=true but NATS support not compiled (build with -tags nats)")
	}
	return nil, nil
}

// Start is a no-op stub for non-NATS builds.
func (c *EventComponents) Start(_ context.Context) error {
	return nil
}

// Shutdown is a no-op stub for non-NATS builds.
func (c *EventComponents) Shutdown(_ context.Context) {}

// IsRunning returns false for non-NATS builds.
func (c *EventComponents) IsRunning() bool {
	return false
}

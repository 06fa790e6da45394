// Pelagos - Real-Time AIS Vessel Tracking and Map Tile Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pelagos

//go:build nats

// This file wires the event publishing pipeline into the supervisor tree.
// It is only compiled when the "nats" build tag is enabled.
//
// Build with NATS support:
//
//	go build -tags nats -o pelagos ./cmd/server

package main

import (
	"github.com/tomtom215/pelagos/internal/logging"
	"github.com/tomtom215/pelagos/internal/supervisor"
	"github.com/tomtom215/pelagos/internal/supervisor/services"
)

// AddEventsToSupervisor adds the event publishing pipeline to the
// supervisor tree's messaging layer for automatic lifecycle management.
//
// The components include:
//   - Embedded NATS server (if configured)
//   - JetStream stream provisioning for AIS_EVENTS
//   - Position event publisher with circuit breaker
//   - The bounded mirror between the ingest hot path and the publisher
//
// When added to the supervisor tree:
//   - Start() is called when the supervisor starts
//   - Shutdown() is called when the supervisor stops
//   - The service is automatically restarted on failure
//
// This function is a no-op if components is nil (events disabled via
// config).
func AddEventsToSupervisor(tree *supervisor.SupervisorTree, components *EventComponents) {
	if components == nil {
		return
	}
	tree.AddMessagingService(services.NewEventPublisherService(components))
	logging.Info().Msg("Event publisher added to supervisor tree (messaging layer)")
}

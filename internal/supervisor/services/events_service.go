// Pelagos - Real-Time AIS Vessel Tracking and Map Tile Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pelagos

//go:build nats

package services

import (
	"context"
	"fmt"
	"time"
)

// EventComponentsRunner interface matches the EventComponents lifecycle.
//
// This interface allows the EventPublisherService to work with
// EventComponents without importing the main package, avoiding circular
// dependencies.
//
// Satisfied by *EventComponents from cmd/server/events_init.go:
//   - Start(ctx context.Context) error - connects and starts publishing
//   - Shutdown(ctx context.Context) - flushes and closes the connection
//   - IsRunning() bool - returns running state
type EventComponentsRunner interface {
	Start(ctx context.Context) error
	Shutdown(ctx context.Context)
	IsRunning() bool
}

// EventPublisherService wraps the JetStream event pipeline as a supervised
// service.
//
// It adapts the Start/Shutdown lifecycle pattern to suture's Serve pattern:
//  1. Calls Start(ctx) to bring up the event components
//  2. Waits for context cancellation
//  3. Calls Shutdown(ctx) for graceful cleanup
//
// The service manages the event subsystems:
//   - Embedded NATS server (if configured)
//   - JetStream connection and stream provisioning
//   - Position event publisher with circuit breaker
//
// Example usage:
//
//	events, _ := InitEvents(cfg, ingestClient)
//	svc := services.NewEventPublisherService(events)
//	tree.AddMessagingService(svc)
type EventPublisherService struct {
	components      EventComponentsRunner
	shutdownTimeout time.Duration
	name            string
}

// NewEventPublisherService creates a new event publisher service wrapper.
//
// Uses a default shutdown timeout of 10 seconds, matching the supervisor
// tree's default ShutdownTimeout.
func NewEventPublisherService(components EventComponentsRunner) *EventPublisherService {
	return &EventPublisherService{
		components:      components,
		shutdownTimeout: 10 * time.Second,
		name:            "event-publisher",
	}
}

// NewEventPublisherServiceWithTimeout creates an event publisher service
// with a custom shutdown timeout.
func NewEventPublisherServiceWithTimeout(components EventComponentsRunner, shutdownTimeout time.Duration) *EventPublisherService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &EventPublisherService{
		components:      components,
		shutdownTimeout: shutdownTimeout,
		name:            "event-publisher",
	}
}

// Serve implements suture.Service.
//
// This method:
//  1. Starts the event components (server, connection, publisher)
//  2. Blocks until the context is canceled
//  3. Shuts down all components with the configured timeout
//
// If Start() fails, the error is returned immediately, causing suture to
// restart the service according to its backoff policy.
func (s *EventPublisherService) Serve(ctx context.Context) error {
	// Start the event pipeline
	if err := s.components.Start(ctx); err != nil {
		return fmt.Errorf("event components start failed: %w", err)
	}

	// Wait for shutdown signal
	<-ctx.Done()

	// Shutdown with timeout - use fresh context since original is canceled
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	s.components.Shutdown(shutdownCtx)

	return ctx.Err()
}

// String implements fmt.Stringer for logging.
// Suture uses this to identify the service in log messages.
func (s *EventPublisherService) String() string {
	return s.name
}

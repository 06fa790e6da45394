// Pelagos - Real-Time AIS Vessel Tracking and Map Tile Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pelagos

package services

import (
	"context"
)

// IngestRunner interface matches *ingest.Client's Run method.
//
// This interface allows the IngestService to work with the upstream
// client without importing the ingest package, avoiding circular
// dependencies.
//
// Satisfied by *ingest.Client from internal/ingest/ingest.go:
//   - Run(ctx context.Context) error
type IngestRunner interface {
	Run(ctx context.Context) error
}

// IngestService wraps the upstream AIS feed client as a supervised service.
//
// The client's Run method already implements the suture.Service pattern:
// it reconnects with backoff on socket errors and only returns when the
// context is canceled, so this wrapper simply delegates and provides a
// name for logging. The supervisor restart only matters when the
// reconnect loop itself fails unexpectedly.
//
// Example usage:
//
//	client := ingest.New(cfg, liveStore, hub.Intake())
//	svc := services.NewIngestService(client)
//	tree.AddMessagingService(svc)
type IngestService struct {
	client IngestRunner
	name   string
}

// NewIngestService creates a new ingest service wrapper.
func NewIngestService(client IngestRunner) *IngestService {
	return &IngestService{
		client: client,
		name:   "ais-ingest",
	}
}

// Serve implements suture.Service.
//
// This method delegates to client.Run which:
//  1. Connects and subscribes to the upstream feed
//  2. Reconnects with exponential backoff on socket errors
//  3. Returns only when the context is canceled
func (i *IngestService) Serve(ctx context.Context) error {
	return i.client.Run(ctx)
}

// String implements fmt.Stringer for logging.
// Suture uses this to identify the service in log messages.
func (i *IngestService) String() string {
	return i.name
}

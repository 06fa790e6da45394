// Pelagos - Real-Time AIS Vessel Tracking and Map Tile Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pelagos

package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/pelagos/internal/ais"
)

// SchemaVersion is the current event schema version.
// Increment this when making breaking changes to PositionEvent.
const SchemaVersion = 1

// TopicPosition is the NATS subject for vessel position events.
// The stream subscribes to "ais.>" so additional event kinds can be
// added under the same hierarchy without reconfiguring the stream.
const TopicPosition = "ais.position"

// PositionEvent is the canonical wire format for a single accepted
// vessel position. One event is published per position report that
// passes ingest validation; downstream consumers (shore-side archival,
// fleet alerting) bind to the AIS_EVENTS stream.
//
// Schema versioning:
//   - SchemaVersion tracks the event format version
//   - Consumers should handle older schema versions for backward compatibility
//   - Version 1: initial schema with all current fields
type PositionEvent struct {
	// Schema version for forward/backward compatibility
	SchemaVersion int `json:"schema_version,omitempty"`

	// Identification
	EventID string `json:"event_id"`
	MMSI    uint64 `json:"mmsi"`

	// Position
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`

	// Kinematics; nil when the transponder did not report the field
	Cog     *float64 `json:"cog,omitempty"`
	Sog     *float64 `json:"sog,omitempty"`
	Heading *int     `json:"heading,omitempty"`

	// Timestamp is the position report time from the upstream feed.
	Timestamp time.Time `json:"timestamp"`

	// Tile is the z/x/y spatial index key the position maps to.
	Tile string `json:"tile"`

	// ReceivedAt is when the ingest pipeline accepted the position.
	ReceivedAt time.Time `json:"received_at"`
}

// NewPositionEvent creates an event from an accepted position record
// with a unique ID, receive timestamp, and schema version. The record
// is cloned so the event does not alias the live store's pointers.
func NewPositionEvent(rec ais.Record) *PositionEvent {
	c := rec.Clone()
	return &PositionEvent{
		SchemaVersion: SchemaVersion,
		EventID:       uuid.New().String(),
		MMSI:          c.MMSI,
		Lat:           c.Lat,
		Lon:           c.Lon,
		Cog:           c.Cog,
		Sog:           c.Sog,
		Heading:       c.Heading,
		Timestamp:     c.Timestamp,
		Tile:          c.Tile,
		ReceivedAt:    time.Now().UTC(),
	}
}

// GetSchemaVersion returns the schema version, defaulting to 1 for
// events serialized before versioning was introduced.
func (e *PositionEvent) GetSchemaVersion() int {
	if e.SchemaVersion == 0 {
		return 1
	}
	return e.SchemaVersion
}

// EnsureSchemaVersion sets the schema version if not already set.
// Call this when processing events that may not have a version set.
func (e *PositionEvent) EnsureSchemaVersion() {
	if e.SchemaVersion == 0 {
		e.SchemaVersion = SchemaVersion
	}
}

// Validate checks required fields and returns an error if validation fails.
func (e *PositionEvent) Validate() error {
	if e.EventID == "" {
		return &ValidationError{Field: "event_id", Message: "required"}
	}
	if e.MMSI == 0 {
		return &ValidationError{Field: "mmsi", Message: "required"}
	}
	if e.Lat < -90 || e.Lat > 90 {
		return &ValidationError{Field: "lat", Message: "must be a valid latitude (-90 to 90)"}
	}
	if e.Lon < -180 || e.Lon > 180 {
		return &ValidationError{Field: "lon", Message: "must be a valid longitude (-180 to 180)"}
	}
	if e.Timestamp.IsZero() {
		return &ValidationError{Field: "timestamp", Message: "required"}
	}
	if e.Tile == "" {
		return &ValidationError{Field: "tile", Message: "required"}
	}
	return nil
}

// Topic returns the NATS subject for this event.
func (e *PositionEvent) Topic() string {
	return TopicPosition
}

// ValidationError describes a field that failed event validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

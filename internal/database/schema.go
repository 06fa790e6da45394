// Pelagos - Real-Time AIS Vessel Tracking and Map Tile Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pelagos

package database

import (
	"context"
	"fmt"
	"time"
)

// schemaContext returns a context with timeout for schema operations.
func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

// createTables creates the vessels_current table. The GEOMETRY column is
// only present when the spatial extension loaded.
func (db *DB) createTables() error {
	ctx, cancel := schemaContext()
	defer cancel()

	for _, query := range db.tableCreationQueries() {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %s: %w", query, err)
		}
	}
	return nil
}

func (db *DB) tableCreationQueries() []string {
	if db.spatialAvailable {
		return []string{`CREATE TABLE IF NOT EXISTS vessels_current (
			mmsi BIGINT PRIMARY KEY,
			geom GEOMETRY NOT NULL,
			tile_z12 BIGINT NOT NULL,
			lon DOUBLE NOT NULL,
			lat DOUBLE NOT NULL,
			cog DOUBLE,
			sog DOUBLE,
			heading INTEGER,
			updated_at TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`}
	}

	return []string{`CREATE TABLE IF NOT EXISTS vessels_current (
		mmsi BIGINT PRIMARY KEY,
		tile_z12 BIGINT NOT NULL,
		lon DOUBLE NOT NULL,
		lat DOUBLE NOT NULL,
		cog DOUBLE,
		sog DOUBLE,
		heading INTEGER,
		updated_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);`}
}

// createIndexes creates indexes for the two read paths: per-tile lookups
// and recency scans.
func (db *DB) createIndexes() error {
	ctx, cancel := schemaContext()
	defer cancel()

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_vessels_current_tile_updated ON vessels_current(tile_z12, updated_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_vessels_current_updated ON vessels_current(updated_at DESC);`,
	}
	if db.spatialAvailable {
		indexes = append(indexes,
			`CREATE INDEX IF NOT EXISTS idx_vessels_current_geom ON vessels_current USING RTREE (geom);`)
	}

	for _, query := range indexes {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute index query: %s: %w", query, err)
		}
	}
	return nil
}

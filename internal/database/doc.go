// Pelagos - Real-Time AIS Vessel Tracking and Map Tile Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pelagos

/*
Package database provides the durable vessel store backed by DuckDB.

The live store (internal/store) holds only vessels heard within the TTL
window; this package keeps the last known position of every vessel ever
heard, so restarts and long-silent vessels survive. The batch synchronizer
(internal/sync) drains the live store into UpsertVessels on a fixed
interval.

# Schema

A single table, vessels_current, keyed by MMSI:

	mmsi       BIGINT PRIMARY KEY
	geom       GEOMETRY NOT NULL     -- ST_Point(lon, lat), spatial builds only
	tile_z12   BIGINT NOT NULL       -- encoded web-mercator tile column
	lon, lat   DOUBLE NOT NULL
	cog, sog   DOUBLE                -- nullable
	heading    INTEGER               -- nullable
	updated_at TIMESTAMPTZ NOT NULL
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()

Indexes cover the two read paths: (tile_z12, updated_at DESC) for
per-tile queries and (updated_at DESC) for recency scans. When the
spatial extension is loaded an RTree index is added on geom.

# Spatial extension

The spatial extension is loaded opportunistically at startup. When it
cannot be installed (air-gapped host, CI) the schema omits the GEOMETRY
column and the RTree index; everything else works unchanged. Spatial
availability never fails boot.

Environment variables:

  - DUCKDB_DISABLE_SPATIAL=true: skip the spatial extension entirely
  - DUCKDB_EXTENSION_TIMEOUT: timeout for extension operations (default 30s)

# Usage

	db, err := database.New(&cfg.Database, cfg.Tile.Zoom)
	if err != nil {
		return err
	}
	defer db.Close()

	upserted, err := db.UpsertVessels(ctx, records)

Close performs a CHECKPOINT so the WAL is flushed before shutdown.
*/
package database

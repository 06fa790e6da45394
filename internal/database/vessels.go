// Pelagos - Real-Time AIS Vessel Tracking and Map Tile Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pelagos

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tomtom215/pelagos/internal/ais"
	"github.com/tomtom215/pelagos/internal/logging"
	"github.com/tomtom215/pelagos/internal/metrics"
	"github.com/tomtom215/pelagos/internal/tile"
)

// defaultTileQueryLimit caps per-tile reads when the caller passes no limit.
const defaultTileQueryLimit = 1000

// UpsertVessels writes a batch of vessel records in a single transaction.
// Conflicting MMSIs are updated in place, so replaying a batch is
// idempotent. Transaction conflicts are retried up to three times with
// 1/2/4 ms backoff. Returns the number of rows written.
func (db *DB) UpsertVessels(ctx context.Context, records []ais.Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	rows := make([][]interface{}, 0, len(records))
	for _, rec := range records {
		args, err := db.vesselRow(rec)
		if err != nil {
			logging.Warn().Uint64("mmsi", rec.MMSI).Err(err).Msg("Skipping vessel with unusable tile key")
			continue
		}
		rows = append(rows, args)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	n, err := db.upsertWithRetry(ctx, rows)
	metrics.RecordDBQuery("upsert_vessels", time.Since(start), err)
	return n, err
}

// upsertWithRetry runs the batch transaction, retrying transaction
// conflicts with exponential backoff.
func (db *DB) upsertWithRetry(ctx context.Context, rows [][]interface{}) (int, error) {
	const maxAttempts = 4
	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			backoff := time.Millisecond * time.Duration(1<<uint(attempt-1)) // 1ms, 2ms, 4ms
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return 0, ctx.Err()
			}
		}

		n, err := db.doUpsertVessels(ctx, rows)
		if err == nil {
			return n, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return 0, fmt.Errorf("upsert timed out or canceled: %w", ctx.Err())
		}
		if !isTransactionConflict(err) {
			return 0, err
		}
	}

	return 0, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// doUpsertVessels performs the actual transactional batch write.
func (db *DB) doUpsertVessels(ctx context.Context, rows [][]interface{}) (int, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, db.upsertQuery())
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("failed to prepare upsert: %w", err)
	}

	for _, args := range rows {
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			closeQuietly(stmt)
			_ = tx.Rollback()
			return 0, fmt.Errorf("failed to upsert vessel: %w", err)
		}
	}

	closeQuietly(stmt)
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit upsert batch: %w", err)
	}
	return len(rows), nil
}

func (db *DB) upsertQuery() string {
	if db.spatialAvailable {
		return `INSERT INTO vessels_current (
			mmsi, geom, tile_z12, lon, lat, cog, sog, heading, updated_at
		) VALUES (?, ST_Point(?, ?), ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (mmsi) DO UPDATE SET
			geom = EXCLUDED.geom,
			tile_z12 = EXCLUDED.tile_z12,
			lon = EXCLUDED.lon,
			lat = EXCLUDED.lat,
			cog = EXCLUDED.cog,
			sog = EXCLUDED.sog,
			heading = EXCLUDED.heading,
			updated_at = EXCLUDED.updated_at`
	}

	return `INSERT INTO vessels_current (
		mmsi, tile_z12, lon, lat, cog, sog, heading, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (mmsi) DO UPDATE SET
		tile_z12 = EXCLUDED.tile_z12,
		lon = EXCLUDED.lon,
		lat = EXCLUDED.lat,
		cog = EXCLUDED.cog,
		sog = EXCLUDED.sog,
		heading = EXCLUDED.heading,
		updated_at = EXCLUDED.updated_at`
}

// vesselRow converts a record into upsert arguments. Records from the
// live store always carry a tile key; one computed from the coordinates
// covers hand-built records.
func (db *DB) vesselRow(rec ais.Record) ([]interface{}, error) {
	key := rec.Tile
	if key == "" {
		key = tile.Key(rec.Lat, rec.Lon, db.tileZoom)
	}
	zoom, x, y, err := tile.ParseKey(key)
	if err != nil {
		return nil, err
	}
	tileZ12 := tile.Encode(zoom, x, y)

	if db.spatialAvailable {
		return []interface{}{
			int64(rec.MMSI), rec.Lon, rec.Lat, tileZ12, rec.Lon, rec.Lat,
			rec.Cog, rec.Sog, rec.Heading, rec.Timestamp,
		}, nil
	}
	return []interface{}{
		int64(rec.MMSI), tileZ12, rec.Lon, rec.Lat,
		rec.Cog, rec.Sog, rec.Heading, rec.Timestamp,
	}, nil
}

// CountVessels returns the number of vessels in the durable store.
func (db *DB) CountVessels(ctx context.Context) (int64, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	var count int64
	err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM vessels_current").Scan(&count)
	metrics.RecordDBQuery("count_vessels", time.Since(start), err)
	if err != nil {
		return 0, fmt.Errorf("failed to count vessels: %w", err)
	}
	return count, nil
}

// VesselsInTileZ12 returns the vessels in one encoded tile column, most
// recently updated first. A non-positive limit falls back to
// defaultTileQueryLimit.
func (db *DB) VesselsInTileZ12(ctx context.Context, tileZ12 int64, limit int) ([]ais.Record, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if limit <= 0 {
		limit = defaultTileQueryLimit
	}

	query := `SELECT mmsi, lat, lon, cog, sog, heading, updated_at
		FROM vessels_current
		WHERE tile_z12 = ?
		ORDER BY updated_at DESC
		LIMIT ?`

	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, query, tileZ12, limit)
	metrics.RecordDBQuery("vessels_in_tile", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to query vessels in tile: %w", err)
	}
	defer closeQuietly(rows)

	// All rows share the tile, so the key is reconstructed once.
	x := uint32(tileZ12 >> uint(db.tileZoom))
	y := uint32(tileZ12 & ((1 << uint(db.tileZoom)) - 1))
	key := fmt.Sprintf("%d/%d/%d", db.tileZoom, x, y)

	var records []ais.Record
	for rows.Next() {
		var (
			mmsi      int64
			lat, lon  float64
			cog, sog  sql.NullFloat64
			heading   sql.NullInt32
			updatedAt time.Time
		)
		if err := rows.Scan(&mmsi, &lat, &lon, &cog, &sog, &heading, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan vessel row: %w", err)
		}

		rec := ais.Record{
			MMSI:      uint64(mmsi),
			Lat:       lat,
			Lon:       lon,
			Timestamp: updatedAt,
			Tile:      key,
		}
		if cog.Valid {
			v := cog.Float64
			rec.Cog = &v
		}
		if sog.Valid {
			v := sog.Float64
			rec.Sog = &v
		}
		if heading.Valid {
			v := int(heading.Int32)
			rec.Heading = &v
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate vessel rows: %w", err)
	}
	return records, nil
}

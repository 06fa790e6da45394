// Pelagos - Real-Time AIS Vessel Tracking and Map Tile Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pelagos

package database

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tomtom215/pelagos/internal/ais"
	"github.com/tomtom215/pelagos/internal/config"
	"github.com/tomtom215/pelagos/internal/logging"
	"github.com/tomtom215/pelagos/internal/tile"
)

func init() {
	logging.SetLogger(logging.NewTestLogger(io.Discard))
}

// testDBSemaphore serializes database creation. Concurrent DuckDB CGO
// calls under CI resource pressure can hang, so only one test holds an
// open database at a time.
var testDBSemaphore = make(chan struct{}, 1)

// newTestDB creates a file-backed test database in a temp directory.
// Spatial is disabled so tests never touch the network; the semaphore is
// held for the whole test lifecycle via t.Cleanup.
func newTestDB(t *testing.T) *DB {
	t.Helper()

	t.Setenv("DUCKDB_DISABLE_SPATIAL", "true")

	testDBSemaphore <- struct{}{}
	t.Cleanup(func() {
		<-testDBSemaphore
	})

	cfg := &config.DatabaseConfig{
		Path:      filepath.Join(t.TempDir(), "pelagos.duckdb"),
		MaxMemory: "1GB",
	}
	db := openTestDB(t, cfg)
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Close() returned error: %v", err)
		}
	})
	return db
}

// openTestDB opens a database with a hard timeout so a hung CGO call
// fails the test instead of stalling the whole run.
func openTestDB(t *testing.T, cfg *config.DatabaseConfig) *DB {
	t.Helper()

	type result struct {
		db  *DB
		err error
	}
	resultCh := make(chan result, 1)
	go func() {
		db, err := New(cfg, tile.DefaultZoom)
		resultCh <- result{db: db, err: err}
	}()

	select {
	case res := <-resultCh:
		if res.err != nil {
			t.Fatalf("Failed to create test database: %v", res.err)
		}
		return res.db
	case <-time.After(120 * time.Second):
		t.Fatal("Timeout: database creation took longer than 120s")
		return nil
	}
}

// testRecord builds a vessel record with its tile key precomputed.
func testRecord(mmsi uint64, lat, lon float64, ts time.Time) ais.Record {
	return ais.Record{
		MMSI:      mmsi,
		Lat:       lat,
		Lon:       lon,
		Timestamp: ts,
		Tile:      tile.Key(lat, lon, tile.DefaultZoom),
	}
}

// encodeTile returns the tile_z12 column value for a tile key.
func encodeTile(t *testing.T, key string) int64 {
	t.Helper()
	zoom, x, y, err := tile.ParseKey(key)
	if err != nil {
		t.Fatalf("ParseKey(%q) returned error: %v", key, err)
	}
	return tile.Encode(zoom, x, y)
}

func TestNewCreatesSchema(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if err := db.Ping(ctx); err != nil {
		t.Fatalf("Ping() returned error: %v", err)
	}

	count, err := db.CountVessels(ctx)
	if err != nil {
		t.Fatalf("CountVessels() returned error: %v", err)
	}
	if count != 0 {
		t.Errorf("CountVessels() = %d on fresh database, want 0", count)
	}

	if db.IsSpatialAvailable() {
		t.Error("IsSpatialAvailable() = true with DUCKDB_DISABLE_SPATIAL set")
	}
}

func TestNewCreatesParentDirectory(t *testing.T) {
	t.Setenv("DUCKDB_DISABLE_SPATIAL", "true")

	testDBSemaphore <- struct{}{}
	t.Cleanup(func() {
		<-testDBSemaphore
	})

	dir := filepath.Join(t.TempDir(), "nested", "data")
	cfg := &config.DatabaseConfig{
		Path:      filepath.Join(dir, "pelagos.duckdb"),
		MaxMemory: "1GB",
	}
	db := openTestDB(t, cfg)
	defer func() {
		if err := db.Close(); err != nil {
			t.Errorf("Close() returned error: %v", err)
		}
	}()

	if _, err := os.Stat(dir); err != nil {
		t.Errorf("parent directory was not created: %v", err)
	}
	if got := db.Path(); got != cfg.Path {
		t.Errorf("Path() = %q, want %q", got, cfg.Path)
	}
}

func TestReopenPersistsVessels(t *testing.T) {
	t.Setenv("DUCKDB_DISABLE_SPATIAL", "true")

	testDBSemaphore <- struct{}{}
	t.Cleanup(func() {
		<-testDBSemaphore
	})

	cfg := &config.DatabaseConfig{
		Path:      filepath.Join(t.TempDir(), "pelagos.duckdb"),
		MaxMemory: "1GB",
	}
	ctx := context.Background()

	db := openTestDB(t, cfg)
	rec := testRecord(244660001, 52.37, 4.89, time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	if _, err := db.UpsertVessels(ctx, []ais.Record{rec}); err != nil {
		t.Fatalf("UpsertVessels() returned error: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close() returned error: %v", err)
	}

	reopened := openTestDB(t, cfg)
	defer func() {
		if err := reopened.Close(); err != nil {
			t.Errorf("Close() returned error: %v", err)
		}
	}()

	count, err := reopened.CountVessels(ctx)
	if err != nil {
		t.Fatalf("CountVessels() after reopen returned error: %v", err)
	}
	if count != 1 {
		t.Errorf("CountVessels() after reopen = %d, want 1", count)
	}
}

func TestCheckpoint(t *testing.T) {
	db := newTestDB(t)

	if err := db.Checkpoint(context.Background()); err != nil {
		t.Errorf("Checkpoint() returned error: %v", err)
	}
}

func TestIsTransactionConflict(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"conflict", errors.New("Transaction conflict: cannot commit"), true},
		{"conflict on update", errors.New("Conflict on update of row"), true},
		{"altered table", errors.New("cannot update a table that has been altered"), true},
		{"other error", errors.New("constraint violation"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isTransactionConflict(tt.err); got != tt.want {
				t.Errorf("isTransactionConflict(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

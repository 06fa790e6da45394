// Pelagos - Real-Time AIS Vessel Tracking and Map Tile Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pelagos

// Package store holds the live vessel state shared by the ingest client,
// the dispatcher, subscriber sessions and the batch synchronizer.
//
// Two backends implement the same contract: an in-process map store for
// single-node deployments and a Redis store for deployments that share
// live state across processes. Both guarantee that Put is an atomic
// transition: a reader never observes a vessel in two tile sets, and an
// expired record is absent from every read path.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/pelagos/internal/ais"
	"github.com/tomtom215/pelagos/internal/tile"
)

// Backend identifiers accepted in configuration.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// DefaultTTL is the vessel record lifetime applied when none is configured.
const DefaultTTL = 120 * time.Second

// PutResult reports the tile membership transition caused by a Put.
// OldTile is empty when the vessel was previously absent (or expired);
// when the vessel did not change tiles both fields carry the same key.
type PutResult struct {
	OldTile string
	NewTile string
}

// Store is the live vessel state contract.
//
// Put computes the record's tile from its coordinates, writes the record
// with a refreshed TTL, moves the MMSI between tile sets when the tile
// changed, and returns both affected tile keys. The five steps are a
// single atomic transition per MMSI.
//
// VesselsInTile returns a consistent snapshot: the members of the tile at
// some instant, each with its record as it existed at or after that
// instant. Records lost to a concurrent eviction are silently dropped.
//
// Scan walks records in ascending MMSI order starting strictly after
// cursor and returns the cursor for the next call; a returned cursor of 0
// means the pass completed and the next call starts over. Redis uses its
// native SCAN cursor, which carries the same wrap-to-zero meaning.
type Store interface {
	Put(ctx context.Context, rec ais.Record) (PutResult, error)
	Get(ctx context.Context, mmsi uint64) (ais.Record, bool, error)
	VesselsInTile(ctx context.Context, tileKey string) ([]ais.Record, error)
	Scan(ctx context.Context, cursor uint64, limit int) ([]ais.Record, uint64, error)
	Counts(ctx context.Context) (vessels, tiles int, err error)
	Close() error
}

// Config selects and parameterizes a backend.
type Config struct {
	Backend  string
	TTL      time.Duration
	Zoom     int
	RedisURL string
}

func (c Config) withDefaults() Config {
	if c.Backend == "" {
		c.Backend = BackendMemory
	}
	if c.TTL <= 0 {
		c.TTL = DefaultTTL
	}
	if c.Zoom <= 0 {
		c.Zoom = tile.DefaultZoom
	}
	return c
}

// New constructs the backend named by cfg.Backend.
func New(ctx context.Context, cfg Config) (Store, error) {
	cfg = cfg.withDefaults()
	switch cfg.Backend {
	case BackendMemory:
		return NewMemory(cfg), nil
	case BackendRedis:
		return NewRedis(ctx, cfg)
	default:
		return nil, fmt.Errorf("store: unknown backend %q", cfg.Backend)
	}
}

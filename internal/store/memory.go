// Pelagos - Real-Time AIS Vessel Tracking and Map Tile Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pelagos

package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tomtom215/pelagos/internal/ais"
	"github.com/tomtom215/pelagos/internal/metrics"
	"github.com/tomtom215/pelagos/internal/tile"
)

type memoryEntry struct {
	rec       ais.Record
	expiresAt time.Time
}

// Memory is the in-process store backend: a single RWMutex over the
// vessel map and the tile membership sets. Expiry is lazy on reads and
// active through a background sweeper that runs every TTL/4 (at least
// once per second) and removes expired vessels from both containers
// under the write lock.
//
// Thread Safety:
//   - Safe for concurrent use from multiple goroutines.
//   - Put holds the write lock for the whole five-step transition, so
//     per-MMSI updates are linearizable and readers never observe a
//     vessel in two tile sets.
//   - Read paths take the read lock only and do not block each other.
type Memory struct {
	mu      sync.RWMutex
	vessels map[uint64]memoryEntry
	tiles   map[string]map[uint64]struct{}

	ttl  time.Duration
	zoom int

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewMemory creates the in-process backend and starts its sweeper.
func NewMemory(cfg Config) *Memory {
	cfg = cfg.withDefaults()
	m := &Memory{
		vessels: make(map[uint64]memoryEntry),
		tiles:   make(map[string]map[uint64]struct{}),
		ttl:     cfg.TTL,
		zoom:    cfg.Zoom,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}

	go m.sweepLoop()

	return m
}

// Put writes rec under a refreshed TTL and maintains tile membership.
// The record's tile is computed here from its coordinates so that both
// backends assign tiles identically.
func (m *Memory) Put(_ context.Context, rec ais.Record) (PutResult, error) {
	start := time.Now()
	rec.Tile = tile.Key(rec.Lat, rec.Lon, m.zoom)
	rec = rec.Clone()

	m.mu.Lock()

	res := PutResult{NewTile: rec.Tile}
	if old, ok := m.vessels[rec.MMSI]; ok {
		if start.Before(old.expiresAt) {
			res.OldTile = old.rec.Tile
		}
		// An expired entry the sweeper has not reached yet still sits in
		// its tile set; drop that membership so the vessel never reads as
		// present in two tiles.
		if old.rec.Tile != rec.Tile {
			m.removeMemberLocked(old.rec.Tile, rec.MMSI)
		}
	}

	m.vessels[rec.MMSI] = memoryEntry{rec: rec, expiresAt: start.Add(m.ttl)}
	set, ok := m.tiles[rec.Tile]
	if !ok {
		set = make(map[uint64]struct{})
		m.tiles[rec.Tile] = set
	}
	set[rec.MMSI] = struct{}{}

	vessels, tiles := len(m.vessels), len(m.tiles)
	m.mu.Unlock()

	metrics.RecordStorePut(BackendMemory, time.Since(start))
	metrics.SetStoreSize(vessels, tiles)
	return res, nil
}

// Get returns the live record for mmsi; expired records read as absent.
func (m *Memory) Get(_ context.Context, mmsi uint64) (ais.Record, bool, error) {
	m.mu.RLock()
	entry, ok := m.vessels[mmsi]
	m.mu.RUnlock()

	if !ok || !time.Now().Before(entry.expiresAt) {
		return ais.Record{}, false, nil
	}
	return entry.rec.Clone(), true, nil
}

// VesselsInTile snapshots the live records of every member of tileKey,
// ordered by MMSI. Expired members are filtered out; the sweeper removes
// them from the set itself.
func (m *Memory) VesselsInTile(_ context.Context, tileKey string) ([]ais.Record, error) {
	now := time.Now()

	m.mu.RLock()
	set := m.tiles[tileKey]
	out := make([]ais.Record, 0, len(set))
	for mmsi := range set {
		entry, ok := m.vessels[mmsi]
		if !ok || !now.Before(entry.expiresAt) {
			continue
		}
		out = append(out, entry.rec.Clone())
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].MMSI < out[j].MMSI })
	return out, nil
}

// Scan returns up to limit live records with MMSI strictly greater than
// cursor, ascending, plus the cursor for the next call. The cursor wraps
// to 0 once the pass reaches the end of the key space.
func (m *Memory) Scan(_ context.Context, cursor uint64, limit int) ([]ais.Record, uint64, error) {
	if limit <= 0 {
		return nil, 0, nil
	}
	now := time.Now()

	m.mu.RLock()
	keys := make([]uint64, 0, len(m.vessels))
	for mmsi, entry := range m.vessels {
		if mmsi > cursor && now.Before(entry.expiresAt) {
			keys = append(keys, mmsi)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	if len(keys) > limit {
		keys = keys[:limit]
	}
	out := make([]ais.Record, 0, len(keys))
	for _, mmsi := range keys {
		out = append(out, m.vessels[mmsi].rec.Clone())
	}
	m.mu.RUnlock()

	var next uint64
	if len(out) == limit {
		next = out[len(out)-1].MMSI
	}
	return out, next, nil
}

// Counts reports live vessels and occupied tiles.
func (m *Memory) Counts(_ context.Context) (int, int, error) {
	now := time.Now()

	m.mu.RLock()
	vessels := 0
	for _, entry := range m.vessels {
		if now.Before(entry.expiresAt) {
			vessels++
		}
	}
	tiles := len(m.tiles)
	m.mu.RUnlock()

	return vessels, tiles, nil
}

// Close stops the sweeper. The maps stay readable afterwards but no
// further expiry runs.
func (m *Memory) Close() error {
	m.stopOnce.Do(func() {
		close(m.stop)
		<-m.done
	})
	return nil
}

func (m *Memory) sweepLoop() {
	defer close(m.done)

	interval := m.ttl / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case now := <-ticker.C:
			m.sweep(now)
		}
	}
}

// sweep removes every expired vessel from both containers and evicts
// tile sets that became empty.
func (m *Memory) sweep(now time.Time) int {
	m.mu.Lock()
	removed := 0
	for mmsi, entry := range m.vessels {
		if now.Before(entry.expiresAt) {
			continue
		}
		delete(m.vessels, mmsi)
		m.removeMemberLocked(entry.rec.Tile, mmsi)
		removed++
	}
	vessels, tiles := len(m.vessels), len(m.tiles)
	m.mu.Unlock()

	if removed > 0 {
		metrics.RecordVesselsExpired(removed)
		metrics.SetStoreSize(vessels, tiles)
	}
	return removed
}

// removeMemberLocked drops mmsi from a tile set and evicts the set when
// it becomes empty. Callers hold the write lock.
func (m *Memory) removeMemberLocked(tileKey string, mmsi uint64) {
	set, ok := m.tiles[tileKey]
	if !ok {
		return
	}
	delete(set, mmsi)
	if len(set) == 0 {
		delete(m.tiles, tileKey)
	}
}

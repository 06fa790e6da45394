// Pelagos - Real-Time AIS Vessel Tracking and Map Tile Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pelagos

package sync

import (
	"context"
	"fmt"
	"sync"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/pelagos/internal/ais"
	"github.com/tomtom215/pelagos/internal/config"
	"github.com/tomtom215/pelagos/internal/logging"
	"github.com/tomtom215/pelagos/internal/metrics"
)

// VesselScanner is the slice of the live store the synchronizer reads.
// A zero return cursor means the pass completed.
type VesselScanner interface {
	Scan(ctx context.Context, cursor uint64, limit int) ([]ais.Record, uint64, error)
}

// VesselWriter is the slice of the durable store the synchronizer writes.
type VesselWriter interface {
	UpsertVessels(ctx context.Context, records []ais.Record) (int, error)
}

// Stats describes the most recent sync tick. Errors is cumulative across
// the manager's lifetime; everything else reflects the last completed
// tick.
type Stats struct {
	Scanned    int       `json:"scanned"`
	Upserted   int       `json:"upserted"`
	Errors     int       `json:"errors"`
	DurationMS int64     `json:"duration_ms"`
	LastRun    time.Time `json:"last_run"`
}

// Manager periodically drains the live store into the durable store.
type Manager struct {
	store   VesselScanner
	db      VesselWriter
	cfg     *config.SyncConfig
	breaker *gobreaker.CircuitBreaker[int]

	// cursor is the live-store scan position; guarded by syncMu.
	cursor uint64

	mu              sync.RWMutex // protects running, stats, onSyncCompleted, stopChan
	syncMu          sync.Mutex   // serializes sync passes
	running         bool
	stats           Stats
	onSyncCompleted func(Stats)
	stopChan        chan struct{}
	wg              sync.WaitGroup
}

// NewManager creates a sync manager. The circuit breaker trips after five
// consecutive batch failures and reopens after 30 seconds.
func NewManager(store VesselScanner, db VesselWriter, cfg *config.SyncConfig) *Manager {
	breaker := gobreaker.NewCircuitBreaker[int](gobreaker.Settings{
		Name:        "duckdb-sync",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Sync circuit breaker state changed")
		},
	})

	return &Manager{
		store:   store,
		db:      db,
		cfg:     cfg,
		breaker: breaker,
	}
}

// SetOnSyncCompleted sets the callback invoked after each successful tick.
func (m *Manager) SetOnSyncCompleted(callback func(Stats)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onSyncCompleted = callback
}

// Start begins the periodic synchronization loop.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return fmt.Errorf("sync manager is already running")
	}
	m.running = true
	m.stopChan = make(chan struct{})
	stopChan := m.stopChan
	m.mu.Unlock()

	logging.Info().
		Dur("interval", m.cfg.Interval()).
		Int("batch_size", m.cfg.BatchSize).
		Msg("Starting sync manager")

	m.wg.Add(1)
	go m.syncLoop(ctx, stopChan)

	return nil
}

// Stop gracefully stops the synchronization loop.
func (m *Manager) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return fmt.Errorf("sync manager is not running")
	}
	m.running = false
	stopChan := m.stopChan
	m.mu.Unlock()

	close(stopChan)
	m.wg.Wait()
	logging.Info().Msg("Sync manager stopped")

	return nil
}

// Stats returns a copy of the current sync statistics.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stats
}

// LastSyncTime returns the timestamp of the last completed tick.
func (m *Manager) LastSyncTime() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stats.LastRun
}

// TriggerSync runs one sync tick immediately, outside the ticker cadence.
func (m *Manager) TriggerSync(ctx context.Context) error {
	m.syncMu.Lock()
	defer m.syncMu.Unlock()
	return m.syncPass(ctx)
}

// syncLoop runs the periodic synchronization.
func (m *Manager) syncLoop(ctx context.Context, stopChan <-chan struct{}) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopChan:
			return
		case <-ticker.C:
			m.syncMu.Lock()
			err := m.syncPass(ctx)
			m.syncMu.Unlock()

			if err != nil {
				logging.Error().Err(err).Msg("Sync pass failed")
			}
		}
	}
}

// syncPass scans one batch from the live store and upserts it. Callers
// hold syncMu.
func (m *Manager) syncPass(ctx context.Context) error {
	start := time.Now()

	records, next, err := m.store.Scan(ctx, m.cursor, m.cfg.BatchSize)
	if err != nil {
		m.recordFailure()
		metrics.RecordSyncError()
		return fmt.Errorf("live store scan failed: %w", err)
	}

	upserted := 0
	if len(records) > 0 {
		upserted, err = m.breaker.Execute(func() (int, error) {
			return m.db.UpsertVessels(ctx, records)
		})
		if err != nil {
			// Restart the pass next tick; the failed batch is re-read
			// from live data rather than retried as-is.
			m.cursor = 0
			m.recordFailure()
			metrics.RecordSyncError()
			return fmt.Errorf("vessel upsert failed: %w", err)
		}
	}

	m.cursor = next

	duration := time.Since(start)
	stats, callback := m.finishPass(len(records), upserted, duration)
	metrics.RecordSyncBatch(len(records), upserted, duration)

	if callback != nil {
		callback(stats)
	}

	if stats.Scanned > 0 {
		logging.Debug().
			Int("scanned", stats.Scanned).
			Int("upserted", stats.Upserted).
			Int64("duration_ms", stats.DurationMS).
			Uint64("cursor", next).
			Msg("Sync tick completed")
	}
	return nil
}

// recordFailure bumps the cumulative error counter.
func (m *Manager) recordFailure() {
	m.mu.Lock()
	m.stats.Errors++
	m.mu.Unlock()
}

// finishPass updates the retained stats and returns a copy plus the
// completion callback to invoke outside the lock.
func (m *Manager) finishPass(scanned, upserted int, duration time.Duration) (Stats, func(Stats)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stats.Scanned = scanned
	m.stats.Upserted = upserted
	m.stats.DurationMS = duration.Milliseconds()
	m.stats.LastRun = time.Now()

	return m.stats, m.onSyncCompleted
}

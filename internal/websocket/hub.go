// Pelagos - Real-Time AIS Vessel Tracking and Map Tile Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pelagos

package websocket

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/pelagos/internal/logging"
	"github.com/tomtom215/pelagos/internal/metrics"
	"github.com/tomtom215/pelagos/internal/store"
)

// ShutdownReason identifies why the hub is shutting down.
// This enables clear observability in logs and metrics.
type ShutdownReason string

const (
	// ShutdownReasonContextCanceled indicates the parent context was canceled.
	// This is the normal graceful shutdown path (e.g., SIGTERM).
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"

	// ShutdownReasonContextDeadline indicates the context deadline was exceeded.
	// This may indicate a hung operation during shutdown.
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

const (
	defaultFlushInterval     = 500 * time.Millisecond
	defaultHeartbeat         = 30 * time.Second
	defaultQueueSize         = 256
	defaultMaxTilesPerClient = 1500

	// intakeDepth bounds how many un-merged dirty batches the ingest
	// side may have in flight before its flush folds keys back.
	intakeDepth = 64
)

// Config parameterizes the hub and the sessions it accepts.
type Config struct {
	FlushInterval     time.Duration
	Heartbeat         time.Duration
	QueueSize         int
	MaxTilesPerClient int
}

func (c Config) withDefaults() Config {
	if c.FlushInterval <= 0 {
		c.FlushInterval = defaultFlushInterval
	}
	if c.Heartbeat <= 0 {
		c.Heartbeat = defaultHeartbeat
	}
	if c.QueueSize <= 0 {
		c.QueueSize = defaultQueueSize
	}
	if c.MaxTilesPerClient <= 0 {
		c.MaxTilesPerClient = defaultMaxTilesPerClient
	}
	return c
}

// Hub is the dispatcher: it owns the session registry, the tile
// subscription index and the dirty-tile set. The ingest client signals
// dirty tiles through the intake channel; every FlushInterval the hub
// swaps the dirty set out, reads each dirty tile that has subscribers
// from the store, and enqueues one vessel_update per tile to each of its
// subscribers.
//
// Coalescing: however many positions land on a tile between two ticks,
// every subscriber receives exactly one update for that tile per tick,
// carrying the tile's full latest state.
type Hub struct {
	cfg   Config
	store store.Store

	mu      sync.RWMutex
	clients map[*Client]struct{}
	index   map[string]map[*Client]struct{}

	intake chan []string

	dirtyMu sync.Mutex
	dirty   map[string]struct{}
}

// NewHub creates a hub reading tile snapshots from st.
func NewHub(cfg Config, st store.Store) *Hub {
	return &Hub{
		cfg:     cfg.withDefaults(),
		store:   st,
		clients: make(map[*Client]struct{}),
		index:   make(map[string]map[*Client]struct{}),
		intake:  make(chan []string, intakeDepth),
		dirty:   make(map[string]struct{}),
	}
}

// Intake returns the channel the ingest client signals dirty tiles on.
func (h *Hub) Intake() chan<- []string {
	return h.intake
}

// Register adds an accepted session to the registry.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	total := len(h.clients)
	h.mu.Unlock()

	metrics.SetConnectedClients(total)
	logging.Info().Str("client_id", c.id).Int("total_clients", total).Msg("websocket client connected")
}

// Unregister removes a session from the registry and from every tile it
// subscribed. Safe to call more than once.
func (h *Hub) Unregister(c *Client) {
	tiles := c.subscribedTiles()

	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	for _, key := range tiles {
		h.removeFromIndexLocked(key, c)
	}
	total := len(h.clients)
	h.mu.Unlock()

	metrics.SetConnectedClients(total)
	logging.Info().Str("client_id", c.id).Int("total_clients", total).Msg("websocket client disconnected")
}

func (h *Hub) subscribe(c *Client, tiles []string) {
	if len(tiles) == 0 {
		return
	}
	h.mu.Lock()
	for _, key := range tiles {
		set, ok := h.index[key]
		if !ok {
			set = make(map[*Client]struct{})
			h.index[key] = set
		}
		set[c] = struct{}{}
	}
	h.mu.Unlock()
}

func (h *Hub) unsubscribe(c *Client, tiles []string) {
	if len(tiles) == 0 {
		return
	}
	h.mu.Lock()
	for _, key := range tiles {
		h.removeFromIndexLocked(key, c)
	}
	h.mu.Unlock()
}

// removeFromIndexLocked drops c from one index entry and evicts the
// entry when it empties. Callers hold the write lock.
func (h *Hub) removeFromIndexLocked(key string, c *Client) {
	set, ok := h.index[key]
	if !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.index, key)
	}
}

// ClientCount returns the number of connected sessions.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// SubscribedTileCount returns the number of tiles with at least one
// subscriber.
func (h *Hub) SubscribedTileCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.index)
}

// RunWithContext runs the dispatch loop until the context is canceled.
// This method is designed for use with suture supervision.
//
// DETERMINISM: Uses priority-based selection to ensure predictable
// behavior:
// - Priority 1: Context cancellation (shutdown)
// - Priority 2: Dirty-tile intake (additive, cheap)
// - Priority 3: Flush tick or further intake (blocking)
func (h *Hub) RunWithContext(ctx context.Context) error {
	ticker := time.NewTicker(h.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		// Priority 1: Check for shutdown (highest priority, non-blocking)
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		default:
		}

		// Priority 2: Absorb pending dirty batches (non-blocking check)
		select {
		case batch := <-h.intake:
			h.markDirty(batch)
			continue
		default:
		}

		// Priority 3: Block until shutdown, intake or the next tick
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		case batch := <-h.intake:
			h.markDirty(batch)
		case <-ticker.C:
			h.flush(ctx)
		}
	}
}

func (h *Hub) markDirty(batch []string) {
	h.dirtyMu.Lock()
	for _, key := range batch {
		if key != "" {
			h.dirty[key] = struct{}{}
		}
	}
	h.dirtyMu.Unlock()
}

// flush swaps the dirty set for a fresh one and fans each drained tile
// that has subscribers out as a single vessel_update per subscriber.
// DETERMINISM: tiles are processed in sorted order and subscribers in
// session accept order.
func (h *Hub) flush(ctx context.Context) {
	h.dirtyMu.Lock()
	if len(h.dirty) == 0 {
		h.dirtyMu.Unlock()
		return
	}
	drained := h.dirty
	h.dirty = make(map[string]struct{}, len(drained))
	h.dirtyMu.Unlock()

	start := time.Now()
	keys := make([]string, 0, len(drained))
	for key := range drained {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	updates := 0
	for _, key := range keys {
		subs := h.subscribersOf(key)
		if len(subs) == 0 {
			continue
		}
		vessels, err := h.store.VesselsInTile(ctx, key)
		if err != nil {
			logging.Error().Err(err).Str("tile", key).Msg("tile read failed during flush")
			continue
		}
		update := NewVesselUpdate(key, vessels)
		for _, sub := range subs {
			sub.queueUpdate(update)
			updates++
		}
	}

	took := time.Since(start)
	metrics.RecordDispatchFlush(took, len(keys))
	if updates > 0 {
		logging.Debug().
			Int("tiles", len(keys)).
			Int("updates", updates).
			Dur("took", took).
			Msg("dispatched tile updates")
	}
}

// subscribersOf snapshots one tile's subscribers sorted by session
// sequence.
func (h *Hub) subscribersOf(key string) []*Client {
	h.mu.RLock()
	set := h.index[key]
	subs := make([]*Client, 0, len(set))
	for c := range set {
		subs = append(subs, c)
	}
	h.mu.RUnlock()

	sort.Slice(subs, func(i, j int) bool { return subs[i].seq < subs[j].seq })
	return subs
}

// logGracefulShutdown closes all sessions and logs structured shutdown
// information.
//
// Note: ctx.Err() is NOT logged as an error because context cancellation
// is expected behavior during graceful shutdown.
func (h *Hub) logGracefulShutdown(ctx context.Context) {
	clientCount := h.ClientCount()
	h.closeAllClients()

	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", string(getShutdownReason(ctx))).
		Int("clients_closed", clientCount).
		Msg("websocket hub stopped")
}

// getShutdownReason determines the shutdown reason from the context
// error.
func getShutdownReason(ctx context.Context) ShutdownReason {
	switch ctx.Err() {
	case context.Canceled:
		return ShutdownReasonContextCanceled
	case context.DeadlineExceeded:
		return ShutdownReasonContextDeadline
	default:
		return ShutdownReasonContextCanceled
	}
}

// closeAllClients closes every session with a going-away frame.
// DETERMINISM: Closes sessions in accept order.
func (h *Hub) closeAllClients() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	sort.Slice(clients, func(i, j int) bool { return clients[i].seq < clients[j].seq })
	for _, c := range clients {
		c.Close(websocket.CloseGoingAway, "Server shutting down")
	}
	logging.Info().Msg("closed all websocket clients during shutdown")
}

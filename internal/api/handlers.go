// Pelagos - Real-Time AIS Vessel Tracking and Map Tile Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pelagos

package api

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/pelagos/internal/config"
	"github.com/tomtom215/pelagos/internal/database"
	"github.com/tomtom215/pelagos/internal/ingest"
	"github.com/tomtom215/pelagos/internal/logging"
	"github.com/tomtom215/pelagos/internal/store"
	syncpkg "github.com/tomtom215/pelagos/internal/sync"
	ws "github.com/tomtom215/pelagos/internal/websocket"
)

// Handler contains dependencies for API handlers.
//
// Handler methods are split across files:
//   - handlers.go: Handler struct, constructor, upgrader (this file)
//   - handlers_health.go: liveness and readiness probes
//   - handlers_status.go: pipeline status and manual sync trigger
//   - handlers_ws.go: WebSocket session establishment
//
// Every dependency may be nil; handlers degrade rather than panic so the
// HTTP surface can come up before (or without) optional collaborators.
type Handler struct {
	db        *database.DB
	store     store.Store
	hub       *ws.Hub
	feed      *ingest.Client
	sync      *syncpkg.Manager
	config    *config.Config
	startTime time.Time

	// shuttingDown gates new WebSocket sessions during the drain grace
	// period while in-flight REST requests keep completing.
	shuttingDown atomic.Bool
}

// NewHandler creates a new API handler with its pipeline dependencies.
//
//	handler := api.NewHandler(db, st, hub, feed, syncMgr, cfg)
//	router := api.NewRouter(handler, &cfg.Server)
//	http.ListenAndServe(addr, router.Setup())
func NewHandler(db *database.DB, st store.Store, hub *ws.Hub, feed *ingest.Client, syncMgr *syncpkg.Manager, cfg *config.Config) *Handler {
	return &Handler{
		db:        db,
		store:     st,
		hub:       hub,
		feed:      feed,
		sync:      syncMgr,
		config:    cfg,
		startTime: time.Now(),
	}
}

// SetShuttingDown flips the shutdown gate. While set, new WebSocket
// upgrades receive 503 so a load balancer can drain the instance.
func (h *Handler) SetShuttingDown(v bool) {
	h.shuttingDown.Store(v)
}

// getUpgrader creates a WebSocket upgrader with origin checking and a
// handshake timeout for protection against slow client attacks.
func (h *Handler) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkWebSocketOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
}

// checkWebSocketOrigin validates WebSocket connection origins against the
// configured CORS origins. A "*" entry allows any non-empty origin.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")

	// Legitimate browser WebSockets ALWAYS include Origin. Allowing an
	// empty Origin would bypass CORS entirely.
	if origin == "" {
		logging.Warn().Msg("WebSocket connection rejected: missing Origin header")
		return false
	}

	// If config is nil, allow by default (fail open for tests/development)
	if h.config == nil {
		return true
	}

	for _, allowedOrigin := range h.config.Server.CORSOrigins {
		if allowedOrigin == "*" || allowedOrigin == origin {
			return true
		}
	}

	logging.Warn().Str("origin", sanitizeLogValue(origin)).Msg("WebSocket connection rejected from unauthorized origin")
	return false
}

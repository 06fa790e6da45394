// Pelagos - Real-Time AIS Vessel Tracking and Map Tile Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pelagos

package api

import (
	"net/http"

	"github.com/tomtom215/pelagos/internal/logging"
	ws "github.com/tomtom215/pelagos/internal/websocket"
)

// WebSocket upgrades the request and hands the connection to the hub.
// Refused with 503 while the server drains during shutdown so clients
// fail fast instead of connecting into a dying process.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if h.shuttingDown.Load() {
		respondError(w, http.StatusServiceUnavailable, "SHUTTING_DOWN", "Server is shutting down", nil)
		return
	}

	if h.hub == nil {
		respondError(w, http.StatusServiceUnavailable, "SERVICE_ERROR", "WebSocket hub not available", nil)
		return
	}

	upgrader := h.getUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written its own error response.
		logging.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("WebSocket upgrade failed")
		return
	}

	client := ws.NewClient(h.hub, conn)
	h.hub.Register(client)
	client.Start()

	logging.Debug().
		Str("client_id", client.ID()).
		Str("remote", r.RemoteAddr).
		Msg("WebSocket client connected")
}

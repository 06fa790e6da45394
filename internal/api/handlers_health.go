// Pelagos - Real-Time AIS Vessel Tracking and Map Tile Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pelagos

package api

import (
	"net/http"
	"time"
)

// HealthLive handles liveness probe requests (Kubernetes-style).
// Returns 200 OK if the process is alive, regardless of dependencies.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	respondJSON(w, http.StatusOK, &APIResponse{
		Status: "success",
		Data: map[string]interface{}{
			"alive":  true,
			"uptime": time.Since(h.startTime).Seconds(),
		},
		Metadata: Metadata{
			Timestamp: time.Now(),
		},
	})
}

// HealthReady handles readiness probe requests (Kubernetes-style).
// Returns 200 OK only when the durable store answers a ping and the live
// store answers a count. The upstream feed state is reported but does not
// gate readiness: within the TTL window the live layer stays valid while
// the ingest client reconnects, so serving traffic remains correct.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	dbConnected := h.db != nil && h.db.Ping(r.Context()) == nil

	storeConnected := false
	if h.store != nil {
		if _, _, err := h.store.Counts(r.Context()); err == nil {
			storeConnected = true
		}
	}

	upstreamState := "disconnected"
	if h.feed != nil {
		upstreamState = h.feed.State().String()
	}

	ready := dbConnected && storeConnected

	statusCode := http.StatusOK
	status := "ready"
	if !ready {
		statusCode = http.StatusServiceUnavailable
		status = "not_ready"
	}

	respondJSON(w, statusCode, &APIResponse{
		Status: status,
		Data: map[string]interface{}{
			"database_connected": dbConnected,
			"store_connected":    storeConnected,
			"upstream_state":     upstreamState,
			"ready_to_serve":     ready,
			"uptime":             time.Since(h.startTime).Seconds(),
		},
		Metadata: Metadata{
			Timestamp: time.Now(),
		},
	})
}

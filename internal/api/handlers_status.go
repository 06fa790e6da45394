// Pelagos - Real-Time AIS Vessel Tracking and Map Tile Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pelagos

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/tomtom215/pelagos/internal/logging"
	syncpkg "github.com/tomtom215/pelagos/internal/sync"
)

// StatusReport is the payload returned by the Status endpoint. Pointer
// fields stay nil when the backing component is unavailable so the
// response distinguishes "zero" from "unknown".
type StatusReport struct {
	Status           string         `json:"status"`
	Version          string         `json:"version"`
	UptimeSeconds    float64        `json:"uptime_seconds"`
	IngestState      string         `json:"ingest_state"`
	StoreVessels     *int           `json:"store_vessels,omitempty"`
	StoreTiles       *int           `json:"store_tiles,omitempty"`
	DurableVessels   *int64         `json:"durable_vessels,omitempty"`
	SpatialAvailable bool           `json:"spatial_available"`
	ConnectedClients int            `json:"connected_clients"`
	SubscribedTiles  int            `json:"subscribed_tiles"`
	LastSync         *syncpkg.Stats `json:"last_sync,omitempty"`
}

// Status reports a point-in-time snapshot of the whole pipeline: ingest
// connection state, live store occupancy, durable store totals and the
// most recent batch sync outcome.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	report := StatusReport{
		Status:        "healthy",
		Version:       "1.0.0",
		UptimeSeconds: time.Since(h.startTime).Seconds(),
		IngestState:   "disconnected",
	}

	if h.feed != nil {
		report.IngestState = h.feed.State().String()
	}

	if h.store != nil {
		vessels, tiles, err := h.store.Counts(r.Context())
		if err != nil {
			logging.Warn().Err(err).Msg("Status: live store counts unavailable")
			report.Status = "degraded"
		} else {
			report.StoreVessels = &vessels
			report.StoreTiles = &tiles
		}
	} else {
		report.Status = "degraded"
	}

	if h.db != nil {
		count, err := h.db.CountVessels(r.Context())
		if err != nil {
			logging.Warn().Err(err).Msg("Status: durable vessel count unavailable")
			report.Status = "degraded"
		} else {
			report.DurableVessels = &count
		}
		report.SpatialAvailable = h.db.IsSpatialAvailable()
	} else {
		report.Status = "degraded"
	}

	if h.hub != nil {
		report.ConnectedClients = h.hub.ClientCount()
		report.SubscribedTiles = h.hub.SubscribedTileCount()
	}

	if h.sync != nil && !h.sync.LastSyncTime().IsZero() {
		stats := h.sync.Stats()
		report.LastSync = &stats
	}

	respondJSON(w, http.StatusOK, &APIResponse{
		Status: "success",
		Data:   report,
		Metadata: Metadata{
			Timestamp: time.Now(),
		},
	})
}

// TriggerSync starts a manual batch sync cycle. The sync itself runs in
// the background; the handler returns 202 as soon as the cycle has been
// kicked off.
func (h *Handler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	if h.sync == nil {
		respondError(w, http.StatusServiceUnavailable, "SERVICE_ERROR", "Sync manager not available", nil)
		return
	}

	go func() {
		if err := h.sync.TriggerSync(context.Background()); err != nil {
			logging.Error().Err(err).Msg("Manual sync failed")
		}
	}()

	respondJSON(w, http.StatusAccepted, &APIResponse{
		Status: "success",
		Data: map[string]string{
			"message": "Sync triggered",
		},
		Metadata: Metadata{
			Timestamp: time.Now(),
		},
	})
}

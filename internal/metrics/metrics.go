// Pelagos - Real-Time AIS Vessel Tracking and Map Tile Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pelagos

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus Metrics Integration for Production Observability
// This package provides instrumentation for:
// - Upstream AIS ingest (throughput, drops, reconnects, connection state)
// - Live vessel store (size, put latency, expiry)
// - Dirty-tile dispatch and WebSocket delivery
// - Batch synchronization into DuckDB
// - Database query performance
// - HTTP API latency and throughput
// - Position event publishing

var (
	// Ingest Metrics
	IngestMessagesReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pelagos_ingest_messages_received_total",
			Help: "Total number of frames received from the upstream AIS feed",
		},
	)

	IngestMessagesAccepted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pelagos_ingest_messages_accepted_total",
			Help: "Total number of position reports accepted into the live store",
		},
	)

	IngestMessagesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pelagos_ingest_messages_dropped_total",
			Help: "Total number of upstream frames dropped before storage",
		},
		[]string{"reason"}, // "filtered", "missing_mmsi", "missing_coords", "out_of_range", "malformed"
	)

	IngestReconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pelagos_ingest_reconnects_total",
			Help: "Total number of upstream reconnect attempts",
		},
	)

	IngestConnectionState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pelagos_ingest_connection_state",
			Help: "Upstream connection state (0=disconnected, 1=connecting, 2=subscribed)",
		},
	)

	IngestDirtyTiles = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pelagos_ingest_dirty_tiles_total",
			Help: "Total number of dirty tile keys handed to the dispatcher",
		},
	)

	// Live Store Metrics
	StoreVessels = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pelagos_store_vessels",
			Help: "Current number of live vessels in the store",
		},
	)

	StoreTiles = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pelagos_store_tiles",
			Help: "Current number of populated tiles in the store",
		},
	)

	StorePutDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pelagos_store_put_duration_seconds",
			Help:    "Latency of vessel put operations by backend",
			Buckets: []float64{.0001, .00025, .0005, .001, .0025, .005, .01, .025, .05, .1, .25},
		},
		[]string{"backend"}, // "memory", "redis"
	)

	StoreVesselsExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pelagos_store_vessels_expired_total",
			Help: "Total number of vessels dropped by TTL expiry",
		},
	)

	// Dispatch Metrics
	DispatchFlushDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pelagos_dispatch_flush_duration_seconds",
			Help:    "Duration of dirty-tile fan-out flushes",
			Buckets: prometheus.DefBuckets,
		},
	)

	DispatchTilesFlushed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pelagos_dispatch_tiles_flushed_total",
			Help: "Total number of dirty tiles processed by fan-out flushes",
		},
	)

	// WebSocket Metrics
	WSConnectedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pelagos_websocket_connected_clients",
			Help: "Current number of connected WebSocket clients",
		},
	)

	WSMessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pelagos_websocket_messages_sent_total",
			Help: "Total number of WebSocket frames written to clients",
		},
		[]string{"type"}, // "connected", "subscribed", "unsubscribed", "vessel_update", "pong"
	)

	WSMessagesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pelagos_websocket_messages_dropped_total",
			Help: "Total number of WebSocket messages dropped before delivery",
		},
		[]string{"reason"}, // "queue_full", "rate_limited"
	)

	WSSubscriptionOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pelagos_websocket_subscription_ops_total",
			Help: "Total number of subscribe/unsubscribe operations",
		},
		[]string{"action"}, // "subscribe", "unsubscribe"
	)

	WSSubscriptionTiles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pelagos_websocket_subscription_tiles_total",
			Help: "Total number of tiles affected by subscribe/unsubscribe operations",
		},
		[]string{"action"},
	)

	// Batch Sync Metrics
	SyncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pelagos_sync_duration_seconds",
			Help:    "Duration of batch synchronization runs",
			Buckets: prometheus.DefBuckets,
		},
	)

	SyncVesselsScanned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pelagos_sync_vessels_scanned_total",
			Help: "Total number of vessels scanned from the live store",
		},
	)

	SyncVesselsUpserted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pelagos_sync_vessels_upserted_total",
			Help: "Total number of vessels upserted into the durable store",
		},
	)

	SyncErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pelagos_sync_errors_total",
			Help: "Total number of failed batch synchronization runs",
		},
	)

	SyncLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pelagos_sync_last_success_timestamp_seconds",
			Help: "Unix timestamp of the last successful sync run",
		},
	)

	// Database Metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pelagos_db_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"}, // "upsert_vessels", "count_vessels", "vessels_in_tile", "ping"
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pelagos_db_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation"},
	)

	// HTTP API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pelagos_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pelagos_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pelagos_http_requests_in_flight",
			Help: "Current number of in-flight HTTP requests",
		},
	)

	// Event Publishing Metrics
	EventsPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pelagos_events_published_total",
			Help: "Total number of position events published to NATS",
		},
	)

	EventsPublishErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pelagos_events_publish_errors_total",
			Help: "Total number of failed position event publishes",
		},
	)

	EventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pelagos_events_dropped_total",
			Help: "Total number of position events dropped because the publish queue was full",
		},
	)
)

// RecordIngestReceived records a frame arriving from the upstream feed.
func RecordIngestReceived() {
	IngestMessagesReceived.Inc()
}

// RecordIngestAccepted records a position report accepted into the live store.
func RecordIngestAccepted() {
	IngestMessagesAccepted.Inc()
}

// RecordIngestDropped records an upstream frame dropped before storage.
func RecordIngestDropped(reason string) {
	IngestMessagesDropped.WithLabelValues(reason).Inc()
}

// RecordIngestReconnect records an upstream reconnect attempt.
func RecordIngestReconnect() {
	IngestReconnects.Inc()
}

// SetIngestState publishes the upstream connection state gauge.
func SetIngestState(s int) {
	IngestConnectionState.Set(float64(s))
}

// RecordDirtyTiles records dirty tile keys handed to the dispatcher.
func RecordDirtyTiles(n int) {
	IngestDirtyTiles.Add(float64(n))
}

// RecordStorePut records one vessel put against the given backend.
func RecordStorePut(backend string, duration time.Duration) {
	StorePutDuration.WithLabelValues(backend).Observe(duration.Seconds())
}

// SetStoreSize publishes the live store size gauges.
func SetStoreSize(vessels, tiles int) {
	StoreVessels.Set(float64(vessels))
	StoreTiles.Set(float64(tiles))
}

// RecordVesselsExpired records vessels dropped by TTL expiry.
func RecordVesselsExpired(n int) {
	StoreVesselsExpired.Add(float64(n))
}

// RecordDispatchFlush records one fan-out flush over the given tile count.
func RecordDispatchFlush(duration time.Duration, tiles int) {
	DispatchFlushDuration.Observe(duration.Seconds())
	DispatchTilesFlushed.Add(float64(tiles))
}

// SetConnectedClients publishes the connected WebSocket client gauge.
func SetConnectedClients(n int) {
	WSConnectedClients.Set(float64(n))
}

// RecordWSMessageSent records a frame written to a WebSocket client.
func RecordWSMessageSent(messageType string) {
	WSMessagesSent.WithLabelValues(messageType).Inc()
}

// RecordWSMessageDropped records a message dropped before delivery.
func RecordWSMessageDropped(reason string) {
	WSMessagesDropped.WithLabelValues(reason).Inc()
}

// RecordSubscription records a subscribe/unsubscribe operation and the tile
// count it affected.
func RecordSubscription(action string, tiles int) {
	WSSubscriptionOps.WithLabelValues(action).Inc()
	WSSubscriptionTiles.WithLabelValues(action).Add(float64(tiles))
}

// RecordSyncBatch records a completed sync run.
func RecordSyncBatch(scanned, upserted int, duration time.Duration) {
	SyncDuration.Observe(duration.Seconds())
	SyncVesselsScanned.Add(float64(scanned))
	SyncVesselsUpserted.Add(float64(upserted))
	SyncLastSuccess.Set(float64(time.Now().Unix()))
}

// RecordSyncError records a failed sync run.
func RecordSyncError() {
	SyncErrors.Inc()
}

// RecordDBQuery records a database query metric.
func RecordDBQuery(operation string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation).Inc()
	}
}

// RecordAPIRequest records an API request metric.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks in-flight API requests.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordEventPublished records a position event published to NATS.
func RecordEventPublished() {
	EventsPublished.Inc()
}

// RecordEventPublishError records a failed position event publish.
func RecordEventPublishError() {
	EventsPublishErrors.Inc()
}

// RecordEventDropped records a position event dropped at the publish queue.
func RecordEventDropped() {
	EventsDropped.Inc()
}

// Pelagos - Real-Time AIS Vessel Tracking and Map Tile Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pelagos

/*
Package metrics provides Prometheus metrics collection and export for observability.

This package implements application instrumentation using the Prometheus
client library, exposing metrics for monitoring performance, errors, and
system health across the whole pipeline: upstream ingest, live store,
dispatch, WebSocket delivery, batch sync, and the HTTP API.

# Metrics Endpoint

Metrics are exposed at the /metrics endpoint in Prometheus text format:

	curl http://localhost:3000/metrics

# Available Metrics

Ingest:
  - pelagos_ingest_messages_received_total: Frames from the upstream feed (counter)
  - pelagos_ingest_messages_accepted_total: Position reports stored (counter)
  - pelagos_ingest_messages_dropped_total: Dropped frames (counter)
    Labels: reason (filtered, missing_mmsi, missing_coords, out_of_range, malformed)
  - pelagos_ingest_reconnects_total: Upstream reconnect attempts (counter)
  - pelagos_ingest_connection_state: 0=disconnected, 1=connecting, 2=subscribed (gauge)
  - pelagos_ingest_dirty_tiles_total: Dirty tiles handed to the dispatcher (counter)

Live store:
  - pelagos_store_vessels / pelagos_store_tiles: Current store size (gauges)
  - pelagos_store_put_duration_seconds: Put latency (histogram)
    Labels: backend (memory, redis)
  - pelagos_store_vessels_expired_total: TTL expiries (counter)

Dispatch and WebSocket delivery:
  - pelagos_dispatch_flush_duration_seconds: Fan-out flush latency (histogram)
  - pelagos_dispatch_tiles_flushed_total: Tiles processed by flushes (counter)
  - pelagos_websocket_connected_clients: Connected sessions (gauge)
  - pelagos_websocket_messages_sent_total: Frames written (counter)
    Labels: type (connected, subscribed, unsubscribed, vessel_update, pong)
  - pelagos_websocket_messages_dropped_total: Undelivered messages (counter)
    Labels: reason (queue_full, rate_limited)
  - pelagos_websocket_subscription_ops_total / _tiles_total: Subscription churn
    Labels: action (subscribe, unsubscribe)

Batch sync:
  - pelagos_sync_duration_seconds: Run latency (histogram)
  - pelagos_sync_vessels_scanned_total / _upserted_total: Throughput (counters)
  - pelagos_sync_errors_total: Failed runs (counter)
  - pelagos_sync_last_success_timestamp_seconds: Last success (gauge)

Database:
  - pelagos_db_query_duration_seconds: Query latency (histogram)
    Labels: operation
  - pelagos_db_query_errors_total: Query failures (counter)
    Labels: operation

HTTP API:
  - pelagos_http_requests_total: Requests (counter)
    Labels: method, endpoint, status
  - pelagos_http_request_duration_seconds: Latency (histogram)
    Labels: method, endpoint
  - pelagos_http_requests_in_flight: Active requests (gauge)

Event publishing:
  - pelagos_events_published_total / pelagos_events_publish_errors_total

# Usage

Metrics are registered at package load time via promauto. Components record
through the exported helper functions:

	metrics.RecordIngestAccepted()
	metrics.RecordStorePut("memory", took)
	metrics.RecordDispatchFlush(took, len(tiles))

All helpers are safe for concurrent use.
*/
package metrics

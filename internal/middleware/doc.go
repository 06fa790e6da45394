// Pelagos - Real-Time AIS Vessel Tracking and Map Tile Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pelagos

/*
Package middleware provides HTTP middleware components for the application.

This package implements infrastructure middleware for gzip compression,
request ID tracking, and Prometheus metrics instrumentation. The api package
composes these into its chi router stack alongside the chi ecosystem
middleware (RealIP, Recoverer, CORS, rate limiting).

Key Components:

  - Compression: Gzip compression for REST responses
  - Request ID: UUID-based request tracking for distributed tracing
  - Prometheus Metrics: HTTP request/response instrumentation

Middleware Stack:

The typical middleware stack for a REST endpoint is:

	middleware.RequestID(           // Layer 1: Request tracking
	    middleware.PrometheusMetrics( // Layer 2: Metrics
	        middleware.Compression(    // Layer 3: Gzip
	            handler,               // Layer 4: Business logic
	        ),
	    ),
	)

The WebSocket endpoint skips Compression; gorilla/websocket negotiates its
own per-message deflate on the upgraded connection.

Usage Example - Request ID:

	http.HandleFunc("/api/v1/status",
	    middleware.RequestID(handler),
	)

	// Access request ID in handler
	func handler(w http.ResponseWriter, r *http.Request) {
	    requestID := middleware.GetRequestID(r.Context())
	    logging.Ctx(r.Context()).Info().Msg("Processing request")
	}

RequestID also populates the logging context, so logging.Ctx(r.Context())
emits request_id and correlation_id fields without further wiring.

Thread Safety:

All middleware components are thread-safe:
  - Compression uses pooled per-request gzip writers
  - Request ID uses context.Context (immutable)
  - Prometheus metrics use atomic operations
*/
package middleware

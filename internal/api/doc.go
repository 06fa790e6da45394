// Pelagos - Real-Time AIS Vessel Tracking and Map Tile Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pelagos

/*
Package api provides the HTTP surface using Chi router.

Routes:

	GET  /ws                    WebSocket upgrade; vessel subscription session
	GET  /api/v1/health/live    Liveness probe (process up)
	GET  /api/v1/health/ready   Readiness probe (database + live store reachable)
	GET  /api/v1/status         Pipeline status: ingest, store, sync, sessions
	POST /api/v1/sync           Manual sync trigger (202 Accepted)
	GET  /metrics               Prometheus exposition

All REST responses use a common envelope:

	{
	  "status":   "success" | "error" | "ready" | "not_ready",
	  "data":     { ... },
	  "metadata": { "timestamp": "..." },
	  "error":    { "code": "...", "message": "..." }
	}

The middleware stack is built from the Chi ecosystem (RealIP, Recoverer,
go-chi/cors, go-chi/httprate) plus the project middleware package
(RequestID, PrometheusMetrics, Compression). Rate limiting applies to the
REST groups only; the WebSocket endpoint is excluded because a session is
one long-lived request.

During shutdown the router keeps serving in-flight requests but answers
new WebSocket upgrades with 503 so the load balancer drains the instance.
*/
package api

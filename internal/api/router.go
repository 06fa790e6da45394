// Pelagos - Real-Time AIS Vessel Tracking and Map Tile Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pelagos

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/pelagos/internal/config"
	"github.com/tomtom215/pelagos/internal/middleware"
)

// Router wires handlers and middleware into the HTTP surface.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
}

// NewRouter creates a Router for the given handler set. The server
// configuration supplies CORS origins and rate limit settings.
func NewRouter(handler *Handler, serverCfg *config.ServerConfig) *Router {
	return &Router{
		handler:       handler,
		chiMiddleware: NewChiMiddlewareFromServer(serverCfg),
	}
}

// chiMiddleware adapts http.HandlerFunc middleware to Chi's
// func(http.Handler) http.Handler so it can be used with r.Use().
func chiMiddleware(mw func(http.HandlerFunc) http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return mw(next.ServeHTTP)
	}
}

// Setup configures all HTTP routes using Chi router.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied to ALL routes in order.
	r.Use(chiMiddleware(middleware.RequestID)) // X-Request-ID header plus logging context
	r.Use(chimiddleware.RealIP)                // Extract real IP from X-Forwarded-For
	r.Use(chimiddleware.Recoverer)             // Recover from panics
	r.Use(router.chiMiddleware.CORS())         // CORS must be global to handle OPTIONS preflight

	// Health endpoints get a permissive dedicated rate limit so that
	// frequent monitoring probes never contend with API traffic.
	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitHealth())
		r.Use(APISecurityHeaders())
		r.Use(chiMiddleware(middleware.PrometheusMetrics))
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
	})

	// Core API endpoints.
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(APISecurityHeaders())
		r.Use(chiMiddleware(middleware.PrometheusMetrics))
		r.Use(chiMiddleware(middleware.Compression))

		r.Get("/status", router.handler.Status)

		// Manual sync scans the whole live store; strictest limit.
		r.With(router.chiMiddleware.RateLimitSync()).Post("/sync", router.handler.TriggerSync)
	})

	// The upgrade endpoint sits outside the rate-limited groups and
	// never passes through compression; the hub owns the connection
	// once the upgrade completes.
	r.Get("/ws", router.handler.WebSocket)

	// Prometheus scrape endpoint
	r.Handle("/metrics", promhttp.Handler())

	return r
}

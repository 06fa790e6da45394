// Pelagos - Real-Time AIS Vessel Tracking and Map Tile Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pelagos

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/pelagos/internal/metrics"
)

func TestPrometheusMetrics(t *testing.T) {
	t.Run("records request counter with method, path and status", func(t *testing.T) {
		counter := metrics.APIRequestsTotal.WithLabelValues("GET", "/api/v1/status", "200")
		before := testutil.ToFloat64(counter)

		handler := PrometheusMetrics(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("OK"))
		})

		req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
		rec := httptest.NewRecorder()

		handler(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("Expected status 200, got %d", rec.Code)
		}
		if got := testutil.ToFloat64(counter) - before; got != 1 {
			t.Errorf("Expected request counter delta 1, got %v", got)
		}
	})

	t.Run("records error status codes", func(t *testing.T) {
		counter := metrics.APIRequestsTotal.WithLabelValues("POST", "/api/v1/sync", "500")
		before := testutil.ToFloat64(counter)

		handler := PrometheusMetrics(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})

		req := httptest.NewRequest(http.MethodPost, "/api/v1/sync", nil)
		rec := httptest.NewRecorder()

		handler(rec, req)

		if rec.Code != http.StatusInternalServerError {
			t.Errorf("Expected status 500, got %d", rec.Code)
		}
		if got := testutil.ToFloat64(counter) - before; got != 1 {
			t.Errorf("Expected request counter delta 1, got %v", got)
		}
	})

	t.Run("defaults to 200 when WriteHeader not called", func(t *testing.T) {
		counter := metrics.APIRequestsTotal.WithLabelValues("GET", "/api/v1/health/live", "200")
		before := testutil.ToFloat64(counter)

		handler := PrometheusMetrics(func(w http.ResponseWriter, r *http.Request) {
			// Just write body without explicit WriteHeader
			_, _ = w.Write([]byte("alive"))
		})

		req := httptest.NewRequest(http.MethodGet, "/api/v1/health/live", nil)
		rec := httptest.NewRecorder()

		handler(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("Expected default status 200, got %d", rec.Code)
		}
		if got := testutil.ToFloat64(counter) - before; got != 1 {
			t.Errorf("Expected request counter delta 1, got %v", got)
		}
	})

	t.Run("tracks active requests while handler runs", func(t *testing.T) {
		started := make(chan struct{})
		done := make(chan struct{})
		finished := make(chan struct{})

		baseline := testutil.ToFloat64(metrics.APIActiveRequests)

		handler := PrometheusMetrics(func(w http.ResponseWriter, r *http.Request) {
			close(started)
			<-done
			w.WriteHeader(http.StatusOK)
		})

		req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
		rec := httptest.NewRecorder()

		go func() {
			handler(rec, req)
			close(finished)
		}()

		<-started
		if got := testutil.ToFloat64(metrics.APIActiveRequests) - baseline; got != 1 {
			t.Errorf("Expected 1 active request while handler runs, got delta %v", got)
		}

		close(done)
		<-finished

		if got := testutil.ToFloat64(metrics.APIActiveRequests) - baseline; got != 0 {
			t.Errorf("Expected active requests to return to baseline, got delta %v", got)
		}
	})

	t.Run("measures request duration", func(t *testing.T) {
		handler := PrometheusMetrics(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(10 * time.Millisecond)
			w.WriteHeader(http.StatusOK)
		})

		start := time.Now()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
		rec := httptest.NewRecorder()

		handler(rec, req)

		if duration := time.Since(start); duration < 10*time.Millisecond {
			t.Errorf("Expected duration >= 10ms, got %v", duration)
		}
	})
}

func TestMetricsResponseWriter(t *testing.T) {
	t.Run("captures status code", func(t *testing.T) {
		rec := httptest.NewRecorder()
		wrapper := &metricsResponseWriter{
			ResponseWriter: rec,
			statusCode:     http.StatusOK,
		}

		wrapper.WriteHeader(http.StatusNotFound)

		if wrapper.statusCode != http.StatusNotFound {
			t.Errorf("Expected status code 404, got %d", wrapper.statusCode)
		}
		if rec.Code != http.StatusNotFound {
			t.Errorf("Expected underlying recorder status 404, got %d", rec.Code)
		}
	})

	t.Run("preserves ResponseWriter functionality", func(t *testing.T) {
		rec := httptest.NewRecorder()
		wrapper := &metricsResponseWriter{
			ResponseWriter: rec,
		}

		wrapper.Header().Set("Content-Type", "application/json")
		if wrapper.Header().Get("Content-Type") != "application/json" {
			t.Error("Header should be preserved")
		}

		n, err := wrapper.Write([]byte("test body"))
		if err != nil {
			t.Errorf("Write error: %v", err)
		}
		if n != 9 {
			t.Errorf("Expected 9 bytes written, got %d", n)
		}

		if rec.Body.String() != "test body" {
			t.Errorf("Body not written: %s", rec.Body.String())
		}
	})

	t.Run("default status code survives body-only writes", func(t *testing.T) {
		rec := httptest.NewRecorder()
		wrapper := &metricsResponseWriter{
			ResponseWriter: rec,
			statusCode:     http.StatusOK,
		}

		_, _ = wrapper.Write([]byte("test"))

		if wrapper.statusCode != http.StatusOK {
			t.Errorf("Expected default status 200, got %d", wrapper.statusCode)
		}
	})
}

func BenchmarkPrometheusMetrics(b *testing.B) {
	handler := PrometheusMetrics(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		rec := httptest.NewRecorder()
		handler(rec, req)
	}
}

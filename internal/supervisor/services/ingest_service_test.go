// Pelagos - Real-Time AIS Vessel Tracking and Map Tile Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pelagos

package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"
)

// mockIngestRunner is a test double for IngestRunner interface.
type mockIngestRunner struct {
	runErr   error
	runCount atomic.Int32
}

func (m *mockIngestRunner) Run(ctx context.Context) error {
	m.runCount.Add(1)
	if m.runErr != nil {
		return m.runErr
	}
	<-ctx.Done()
	return ctx.Err()
}

func (m *mockIngestRunner) RunCount() int {
	return int(m.runCount.Load())
}

func TestIngestService_Interface(t *testing.T) {
	// Verify IngestService implements suture.Service
	var _ suture.Service = (*IngestService)(nil)
}

func TestNewIngestService(t *testing.T) {
	client := &mockIngestRunner{}
	svc := NewIngestService(client)

	if svc == nil {
		t.Fatal("NewIngestService returned nil")
	}
	if svc.client != client {
		t.Error("client not assigned correctly")
	}
	if svc.name != "ais-ingest" {
		t.Errorf("expected name 'ais-ingest', got %q", svc.name)
	}
}

func TestIngestService_Serve(t *testing.T) {
	t.Run("returns context error on cancellation", func(t *testing.T) {
		client := &mockIngestRunner{}
		svc := NewIngestService(client)

		ctx, cancel := context.WithCancel(context.Background())

		errCh := make(chan error, 1)
		go func() {
			errCh <- svc.Serve(ctx)
		}()

		time.Sleep(20 * time.Millisecond)
		cancel()

		select {
		case err := <-errCh:
			if !errors.Is(err, context.Canceled) {
				t.Errorf("expected context.Canceled, got %v", err)
			}
		case <-time.After(time.Second):
			t.Error("Serve did not return after context cancellation")
		}

		if client.RunCount() != 1 {
			t.Errorf("expected 1 run, got %d", client.RunCount())
		}
	})

	t.Run("propagates client errors for restart", func(t *testing.T) {
		expectedErr := errors.New("read loop panicked")
		client := &mockIngestRunner{runErr: expectedErr}
		svc := NewIngestService(client)

		err := svc.Serve(context.Background())
		if !errors.Is(err, expectedErr) {
			t.Errorf("expected %v, got %v", expectedErr, err)
		}
	})
}

func TestIngestService_String(t *testing.T) {
	svc := NewIngestService(&mockIngestRunner{})

	if svc.String() != "ais-ingest" {
		t.Errorf("expected 'ais-ingest', got %q", svc.String())
	}
}

func TestIngestService_WithSupervisor(t *testing.T) {
	t.Run("supervisor restarts crashed client", func(t *testing.T) {
		client := &restartableIngestRunner{failUntil: 2}
		svc := NewIngestService(client)

		sup := suture.New("ingest-test", suture.Spec{
			FailureThreshold: 10,
			FailureBackoff:   10 * time.Millisecond,
			Timeout:          100 * time.Millisecond,
		})
		sup.Add(svc)

		ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
		defer cancel()

		go func() {
			_ = sup.Serve(ctx)
		}()
		time.Sleep(200 * time.Millisecond)

		// Should have been started at least 3 times (2 failures + 1 success)
		if client.runCount.Load() < 3 {
			t.Errorf("expected at least 3 run attempts, got %d", client.runCount.Load())
		}
	})
}

// restartableIngestRunner fails the first N runs, then blocks until canceled.
type restartableIngestRunner struct {
	runCount  atomic.Int32
	failUntil int32
}

func (m *restartableIngestRunner) Run(ctx context.Context) error {
	count := m.runCount.Add(1)
	if count <= m.failUntil {
		return errors.New("simulated run failure")
	}
	<-ctx.Done()
	return ctx.Err()
}

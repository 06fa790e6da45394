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

var _ suture.Service = (*SyncService)(nil)

// fakeSyncManager stands in for the batch synchronizer. Start fails the
// first failStarts calls so supervisor restart paths can be exercised.
type fakeSyncManager struct {
	starts     atomic.Int32
	stops      atomic.Int32
	failStarts int32
	stopErr    error
}

func (f *fakeSyncManager) Start(ctx context.Context) error {
	if f.starts.Add(1) <= f.failStarts {
		return errors.New("durable store unavailable")
	}
	return nil
}

func (f *fakeSyncManager) Stop() error {
	f.stops.Add(1)
	return f.stopErr
}

func TestSyncServiceLifecycle(t *testing.T) {
	mgr := &fakeSyncManager{}
	svc := NewSyncService(mgr)

	if got := svc.String(); got != "sync-manager" {
		t.Errorf("String = %q, want %q", got, "sync-manager")
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	deadline := time.After(2 * time.Second)
	for mgr.starts.Load() < 1 {
		select {
		case <-deadline:
			t.Fatal("manager never started")
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
	if mgr.stops.Load() != 1 {
		t.Errorf("stops = %d, want 1", mgr.stops.Load())
	}
}

func TestSyncServicePropagatesStartError(t *testing.T) {
	mgr := &fakeSyncManager{failStarts: 1}
	svc := NewSyncService(mgr)

	if err := svc.Serve(context.Background()); err == nil {
		t.Fatal("Serve returned nil for a failed Start")
	}
	if mgr.stops.Load() != 0 {
		t.Error("Stop was called for a manager that never started")
	}
}

func TestSyncServicePropagatesStopError(t *testing.T) {
	mgr := &fakeSyncManager{stopErr: errors.New("flush failed")}
	svc := NewSyncService(mgr)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	deadline := time.After(2 * time.Second)
	for mgr.starts.Load() < 1 {
		select {
		case <-deadline:
			t.Fatal("manager never started")
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()

	if err := <-done; err == nil || errors.Is(err, context.Canceled) {
		t.Errorf("Serve = %v, want wrapped stop error", err)
	}
}

func TestSyncServiceRestartedBySupervisor(t *testing.T) {
	mgr := &fakeSyncManager{failStarts: 2}
	svc := NewSyncService(mgr)

	sup := suture.New("sync-restart", suture.Spec{
		FailureThreshold: 10,
		FailureBackoff:   10 * time.Millisecond,
		Timeout:          100 * time.Millisecond,
	})
	sup.Add(svc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sup.Serve(ctx)

	deadline := time.After(2 * time.Second)
	for mgr.starts.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("starts = %d after restarts, want >= 3", mgr.starts.Load())
		case <-time.After(10 * time.Millisecond):
		}
	}
}

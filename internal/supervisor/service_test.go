// Pelagos - Real-Time AIS Vessel Tracking and Map Tile Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pelagos

package supervisor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"
)

var _ suture.Service = (*MockService)(nil)

func TestMockServiceBlocksUntilCanceled(t *testing.T) {
	svc := NewMockService("feed")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := svc.Serve(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Serve = %v, want context.DeadlineExceeded", err)
	}
	if svc.StartCount() != 1 || svc.StopCount() != 1 {
		t.Errorf("starts/stops = %d/%d, want 1/1", svc.StartCount(), svc.StopCount())
	}
}

func TestMockServiceFailureBudget(t *testing.T) {
	svc := NewMockService("hub")
	svc.SetFailCount(2)

	for i := 0; i < 2; i++ {
		if err := svc.Serve(context.Background()); !errors.Is(err, errSimulatedFailure) {
			t.Fatalf("incarnation %d: Serve = %v, want simulated failure", i+1, err)
		}
	}

	// Budget spent; the third incarnation settles into steady state.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := svc.Serve(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("third Serve = %v, want context.DeadlineExceeded", err)
	}
	if svc.StartCount() != 3 {
		t.Errorf("StartCount = %d, want 3", svc.StartCount())
	}
}

func TestMockServiceConfiguredError(t *testing.T) {
	sentinel := errors.New("upstream gone")
	svc := NewMockService("ingest")
	svc.SetError(sentinel)

	if err := svc.Serve(context.Background()); !errors.Is(err, sentinel) {
		t.Errorf("Serve = %v, want configured error", err)
	}
	if got := svc.String(); got != "ingest" {
		t.Errorf("String = %q, want %q", got, "ingest")
	}
}

func TestSupervisorRestartsCrashedService(t *testing.T) {
	svc := NewMockService("flaky-sync")
	svc.SetFailCount(2)

	sup := suture.New("restart", suture.Spec{
		FailureThreshold: 10,
		FailureDecay:     1,
		FailureBackoff:   10 * time.Millisecond,
		Timeout:          100 * time.Millisecond,
	})
	sup.Add(svc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sup.Serve(ctx)

	deadline := time.After(2 * time.Second)
	for svc.StartCount() < 3 {
		select {
		case <-deadline:
			t.Fatalf("StartCount = %d after restarts, want >= 3", svc.StartCount())
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestSupervisorHonorsDoNotRestart(t *testing.T) {
	svc := NewMockService("one-shot")
	svc.SetError(suture.ErrDoNotRestart)

	sup := suture.New("no-restart", suture.Spec{
		FailureThreshold: 10,
		FailureBackoff:   10 * time.Millisecond,
		Timeout:          100 * time.Millisecond,
	})
	sup.Add(svc)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_ = sup.Serve(ctx)

	if svc.StartCount() != 1 {
		t.Errorf("StartCount = %d for ErrDoNotRestart, want exactly 1", svc.StartCount())
	}
}

func TestServiceCanTerminateTree(t *testing.T) {
	svc := NewMockService("fatal")
	svc.SetError(suture.ErrTerminateSupervisorTree)

	sup := suture.New("tree", suture.Spec{
		FailureThreshold: 10,
		Timeout:          100 * time.Millisecond,
	})
	sup.Add(svc)

	// Serve returns instead of restarting forever.
	done := make(chan error, 1)
	go func() { done <- sup.Serve(context.Background()) }()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("supervisor kept running after ErrTerminateSupervisorTree")
	}
}

func TestNestedSupervisorStartsGrandchildren(t *testing.T) {
	svc := NewMockService("leaf")
	child := suture.NewSimple("layer")
	child.Add(svc)
	root := suture.NewSimple("root")
	root.Add(child)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go root.Serve(ctx)

	deadline := time.After(2 * time.Second)
	for svc.StartCount() < 1 {
		select {
		case <-deadline:
			t.Fatal("leaf service never started through the nested supervisor")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

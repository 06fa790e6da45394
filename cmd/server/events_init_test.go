// Pelagos - Real-Time AIS Vessel Tracking and Map Tile Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pelagos

//go:build nats

package main

import (
	"context"
	"testing"
	"time"

	"github.com/tomtom215/pelagos/internal/config"
	"github.com/tomtom215/pelagos/internal/ingest"
	"github.com/tomtom215/pelagos/internal/store"
)

// TestEventComponents_IsRunning tests the IsRunning method.
func TestEventComponents_IsRunning(t *testing.T) {
	t.Run("nil components", func(t *testing.T) {
		var c *EventComponents
		if c.IsRunning() {
			t.Error("IsRunning() should return false for nil components")
		}
	})

	t.Run("not running", func(t *testing.T) {
		c := &EventComponents{}
		if c.IsRunning() {
			t.Error("IsRunning() should return false when not running")
		}
	})

	t.Run("running", func(t *testing.T) {
		c := &EventComponents{running: true}
		if !c.IsRunning() {
			t.Error("IsRunning() should return true when running")
		}
	})
}

// TestEventComponents_Shutdown tests the Shutdown method.
func TestEventComponents_Shutdown(t *testing.T) {
	t.Run("nil components", func(t *testing.T) {
		var c *EventComponents
		// Should not panic
		c.Shutdown(context.Background())
	})

	t.Run("not running", func(t *testing.T) {
		c := &EventComponents{}
		// Should not panic
		c.Shutdown(context.Background())
	})

	t.Run("shutdown completes", func(t *testing.T) {
		c := &EventComponents{
			running:          true,
			shutdownComplete: make(chan struct{}),
		}

		done := make(chan struct{})
		go func() {
			c.Shutdown(context.Background())
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("Shutdown did not complete within 5s")
		}

		select {
		case <-c.shutdownComplete:
		default:
			t.Error("shutdownComplete channel should be closed after Shutdown")
		}

		if c.IsRunning() {
			t.Error("IsRunning() should return false after Shutdown")
		}
	})

	t.Run("second shutdown is a no-op", func(t *testing.T) {
		c := &EventComponents{
			running:          true,
			shutdownComplete: make(chan struct{}),
		}
		c.Shutdown(context.Background())
		// A second call must not close shutdownComplete again (panic).
		c.Shutdown(context.Background())
	})
}

// TestEventComponents_Start tests the Start method.
func TestEventComponents_Start(t *testing.T) {
	t.Run("nil components", func(t *testing.T) {
		var c *EventComponents
		if err := c.Start(context.Background()); err != nil {
			t.Errorf("Start() on nil components should return nil, got %v", err)
		}
	})

	t.Run("no mirror", func(t *testing.T) {
		c := &EventComponents{running: true}
		if err := c.Start(context.Background()); err != nil {
			t.Errorf("Start() without a mirror should return nil, got %v", err)
		}
	})
}

// TestInitEvents_Disabled tests InitEvents when events are disabled.
func TestInitEvents_Disabled(t *testing.T) {
	cfg := &config.Config{}
	cfg.Events.Enabled = false

	st := store.NewMemory(store.Config{})
	defer func() { _ = st.Close() }()
	feed := ingest.New(ingest.Config{APIKey: "test"}, st, nil)

	components, err := InitEvents(cfg, feed)
	if err != nil {
		t.Fatalf("InitEvents() with events disabled returned error: %v", err)
	}
	if components != nil {
		t.Error("InitEvents() with events disabled should return nil components")
	}
}

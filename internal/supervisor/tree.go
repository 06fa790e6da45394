// Pelagos - Real-Time AIS Vessel Tracking and Map Tile Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pelagos

package supervisor

import (
	"context"
	"log/slog"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"
)

// TreeConfig holds the failure-handling parameters applied to the root
// supervisor and every layer beneath it. Zero values fall back to the
// defaults from DefaultTreeConfig.
type TreeConfig struct {
	// FailureThreshold is the failure score at which a layer stops
	// restarting its children and backs off instead.
	FailureThreshold float64

	// FailureDecay is the half-life, in seconds, of accumulated failures.
	FailureDecay float64

	// FailureBackoff is how long a layer stays in backoff once the
	// threshold is crossed.
	FailureBackoff time.Duration

	// ShutdownTimeout bounds how long a stopping service may take before
	// it is reported as unstopped.
	ShutdownTimeout time.Duration
}

// DefaultTreeConfig returns suture's documented defaults, which suit the
// pipeline's restart profile: a flapping upstream feed gets several quick
// restarts before its layer backs off.
func DefaultTreeConfig() TreeConfig {
	return TreeConfig{
		FailureThreshold: 5.0,
		FailureDecay:     30.0,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

func (c TreeConfig) withDefaults() TreeConfig {
	d := DefaultTreeConfig()
	if c.FailureThreshold == 0 {
		c.FailureThreshold = d.FailureThreshold
	}
	if c.FailureDecay == 0 {
		c.FailureDecay = d.FailureDecay
	}
	if c.FailureBackoff == 0 {
		c.FailureBackoff = d.FailureBackoff
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = d.ShutdownTimeout
	}
	return c
}

// SupervisorTree is the process supervision hierarchy. Three layers hang
// off the root, one per pipeline concern:
//
//   - data-layer: the batch synchronizer into the durable store
//   - messaging-layer: ingest client, dispatch hub, optional event mirror
//   - api-layer: the HTTP/WebSocket listener
//
// The split isolates failures: a crashing sync pass restarts inside the
// data layer without touching live subscriber sessions, and a flapping
// upstream feed never takes the HTTP surface down with it.
type SupervisorTree struct {
	root      *suture.Supervisor
	data      *suture.Supervisor
	messaging *suture.Supervisor
	api       *suture.Supervisor
	logger    *slog.Logger
	config    TreeConfig
}

// NewSupervisorTree builds the three-layer tree. Supervisor events are
// logged through the given slog logger via sutureslog.
func NewSupervisorTree(logger *slog.Logger, config TreeConfig) (*SupervisorTree, error) {
	config = config.withDefaults()

	// IMPORTANT: The correct API is (&Handler{Logger: logger}).MustHook()
	// NOT sutureslog.EventHook(logger) which does not exist.
	// MustHook has a pointer receiver, so we need to take the address.
	handler := &sutureslog.Handler{Logger: logger}
	eventHook := handler.MustHook()

	rootSpec := suture.Spec{
		EventHook:        eventHook,
		FailureThreshold: config.FailureThreshold,
		FailureDecay:     config.FailureDecay,
		FailureBackoff:   config.FailureBackoff,
		Timeout:          config.ShutdownTimeout,
	}

	// Layers share the failure parameters and inherit the event hook
	// when added to the root.
	layerSpec := suture.Spec{
		FailureThreshold: config.FailureThreshold,
		FailureDecay:     config.FailureDecay,
		FailureBackoff:   config.FailureBackoff,
		Timeout:          config.ShutdownTimeout,
	}

	t := &SupervisorTree{
		root:      suture.New("pelagos", rootSpec),
		data:      suture.New("data-layer", layerSpec),
		messaging: suture.New("messaging-layer", layerSpec),
		api:       suture.New("api-layer", layerSpec),
		logger:    logger,
		config:    config,
	}
	t.root.Add(t.data)
	t.root.Add(t.messaging)
	t.root.Add(t.api)
	return t, nil
}

// Root exposes the root supervisor for callers that need direct access.
func (t *SupervisorTree) Root() *suture.Supervisor {
	return t.root
}

// AddDataService places a service in the data layer (batch synchronizer).
func (t *SupervisorTree) AddDataService(svc suture.Service) suture.ServiceToken {
	return t.data.Add(svc)
}

// AddMessagingService places a service in the messaging layer (ingest
// client, dispatch hub, event components).
func (t *SupervisorTree) AddMessagingService(svc suture.Service) suture.ServiceToken {
	return t.messaging.Add(svc)
}

// AddAPIService places a service in the API layer (HTTP server).
func (t *SupervisorTree) AddAPIService(svc suture.Service) suture.ServiceToken {
	return t.api.Add(svc)
}

// Serve runs the tree and blocks until ctx is canceled.
func (t *SupervisorTree) Serve(ctx context.Context) error {
	return t.root.Serve(ctx)
}

// ServeBackground runs the tree in a goroutine. The returned channel
// yields the terminal error (or nil) and then closes.
func (t *SupervisorTree) ServeBackground(ctx context.Context) <-chan error {
	return t.root.ServeBackground(ctx)
}

// UnstoppedServiceReport lists services that outlived ShutdownTimeout
// during the last stop, for the shutdown log tail.
func (t *SupervisorTree) UnstoppedServiceReport() ([]suture.UnstoppedService, error) {
	return t.root.UnstoppedServiceReport()
}

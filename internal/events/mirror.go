// Pelagos - Real-Time AIS Vessel Tracking and Map Tile Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pelagos

package events

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/tomtom215/pelagos/internal/ais"
	"github.com/tomtom215/pelagos/internal/logging"
	"github.com/tomtom215/pelagos/internal/metrics"
)

// PositionPublisher publishes a single position event.
// Satisfied by *Publisher.
type PositionPublisher interface {
	PublishPosition(ctx context.Context, event *PositionEvent) error
}

// Mirror decouples event publishing from the ingest hot path. Accepted
// positions are enqueued without blocking; a worker goroutine drains the
// queue and publishes. When the queue is full the position is dropped
// and counted, so a slow or unreachable NATS server never backpressures
// the upstream read loop.
type Mirror struct {
	publisher      PositionPublisher
	queue          chan *PositionEvent
	publishTimeout time.Duration
	dropped        atomic.Uint64
}

// NewMirror creates a mirror that publishes through the given publisher.
// Zero-value config fields fall back to DefaultMirrorConfig.
func NewMirror(publisher PositionPublisher, cfg MirrorConfig) *Mirror {
	defaults := DefaultMirrorConfig()
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaults.QueueSize
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = defaults.PublishTimeout
	}

	return &Mirror{
		publisher:      publisher,
		queue:          make(chan *PositionEvent, cfg.QueueSize),
		publishTimeout: cfg.PublishTimeout,
	}
}

// Enqueue converts an accepted position into an event and queues it for
// publishing. Never blocks; if the queue is full the event is dropped.
// The signature matches the ingest client's publisher callback.
func (m *Mirror) Enqueue(rec ais.Record) {
	event := NewPositionEvent(rec)
	select {
	case m.queue <- event:
	default:
		m.dropped.Add(1)
		metrics.RecordEventDropped()
		logging.Debug().Uint64("mmsi", event.MMSI).Msg("Dropped position event, publish queue full")
	}
}

// Run drains the queue and publishes until the context is cancelled.
// Publish failures are logged and counted but never stop the loop.
func (m *Mirror) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			if n := m.dropped.Load(); n > 0 {
				logging.Info().Uint64("dropped", n).Msg("Position event mirror stopped")
			}
			return ctx.Err()
		case event := <-m.queue:
			m.publish(ctx, event)
		}
	}
}

// publish sends one event with a bounded timeout.
func (m *Mirror) publish(ctx context.Context, event *PositionEvent) {
	pubCtx, cancel := context.WithTimeout(ctx, m.publishTimeout)
	defer cancel()

	if err := m.publisher.PublishPosition(pubCtx, event); err != nil {
		logging.Warn().
			Err(err).
			Uint64("mmsi", event.MMSI).
			Str("tile", event.Tile).
			Msg("Failed to publish position event")
	}
}

// QueueDepth returns the number of events awaiting publish.
func (m *Mirror) QueueDepth() int {
	return len(m.queue)
}

// Dropped returns the total number of events dropped at the queue.
func (m *Mirror) Dropped() uint64 {
	return m.dropped.Load()
}

// Pelagos - Real-Time AIS Vessel Tracking and Map Tile Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pelagos

// Package ingest maintains the upstream aisstream.io connection, feeds
// accepted positions into the live store and signals dirty tiles to the
// dispatcher on a fixed flush cadence.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/pelagos/internal/ais"
	"github.com/tomtom215/pelagos/internal/logging"
	"github.com/tomtom215/pelagos/internal/metrics"
	"github.com/tomtom215/pelagos/internal/store"
)

// DefaultURL is the public aisstream.io streaming endpoint.
const DefaultURL = "wss://stream.aisstream.io/v0/stream"

const (
	handshakeTimeout = 10 * time.Second

	// Write deadline for control frames.
	writeWait = 10 * time.Second

	// The connection is considered dead when neither data nor a pong
	// arrives within pongWait; pings go out at a third of that.
	pongWait   = 60 * time.Second
	pingPeriod = 20 * time.Second

	maxMessageBytes = 512 * 1024

	defaultFlushInterval = time.Second
)

// State is the connection state machine position.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateSubscribed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateSubscribed:
		return "subscribed"
	default:
		return "disconnected"
	}
}

// subscriptionMessage is the upstream subscribe frame. BoundingBoxes is
// mandatory upstream; an unbounded feed subscribes to the whole world.
type subscriptionMessage struct {
	APIKey             string         `json:"APIKey"`
	BoundingBoxes      [][][2]float64 `json:"BoundingBoxes"`
	FilterMessageTypes []string       `json:"FilterMessageTypes"`
}

// Config parameterizes the upstream client.
type Config struct {
	URL           string
	APIKey        string
	BoundingBoxes [][][2]float64
	FlushInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.URL == "" {
		c.URL = DefaultURL
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = defaultFlushInterval
	}
	if len(c.BoundingBoxes) == 0 {
		c.BoundingBoxes = WorldBoundingBox()
	}
	return c
}

// Client ingests the upstream position stream. Run drives the state
// machine DISCONNECTED -> CONNECTING -> SUBSCRIBED -> DISCONNECTED with
// exponential reconnect backoff (1 s, *1.5, capped at 30 s) that resets
// after a successful subscribe. A parallel flush ticker drains the dirty
// tile set into the dispatcher sink every FlushInterval.
type Client struct {
	cfg   Config
	store store.Store
	sink  chan<- []string

	state atomic.Int32

	dirtyMu sync.Mutex
	dirty   map[string]struct{}

	publishMu sync.RWMutex
	publish   func(ais.Record)
}

// New creates an upstream client writing to st and signaling sink.
func New(cfg Config, st store.Store, sink chan<- []string) *Client {
	return &Client{
		cfg:   cfg.withDefaults(),
		store: st,
		sink:  sink,
		dirty: make(map[string]struct{}),
	}
}

// SetPublisher installs a best-effort mirror invoked for every accepted
// position. The callback must not block.
func (c *Client) SetPublisher(fn func(ais.Record)) {
	c.publishMu.Lock()
	c.publish = fn
	c.publishMu.Unlock()
}

// State reports the current connection state.
func (c *Client) State() State {
	return State(c.state.Load())
}

func (c *Client) setState(s State) {
	c.state.Store(int32(s))
	metrics.SetIngestState(int(s))
}

// Run connects, subscribes and reads until ctx is cancelled. Socket
// errors trigger reconnects; only cancellation returns.
func (c *Client) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.flushLoop(ctx)
	}()
	defer func() {
		wg.Wait()
		c.setState(StateDisconnected)
	}()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.RandomizationFactor = 0
	bo.Multiplier = 1.5
	bo.MaxInterval = 30 * time.Second
	bo.MaxElapsedTime = 0
	bo.Reset()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		c.setState(StateConnecting)
		conn, err := c.connect(ctx)
		if err != nil {
			c.setState(StateDisconnected)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			metrics.RecordIngestReconnect()
			wait := bo.NextBackOff()
			logging.Warn().
				Err(err).
				Dur("retry_in", wait).
				Str("url", c.cfg.URL).
				Msg("Upstream connection failed")
			if !sleepCtx(ctx, wait) {
				return ctx.Err()
			}
			continue
		}

		c.setState(StateSubscribed)
		bo.Reset()
		logging.Info().Str("url", c.cfg.URL).Msg("Subscribed to upstream AIS stream")

		err = c.readLoop(ctx, conn)
		_ = conn.Close()
		c.setState(StateDisconnected)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		metrics.RecordIngestReconnect()
		wait := bo.NextBackOff()
		logging.Warn().
			Err(err).
			Dur("retry_in", wait).
			Msg("Upstream connection lost")
		if !sleepCtx(ctx, wait) {
			return ctx.Err()
		}
	}
}

// connect dials the endpoint and sends the subscription frame.
func (c *Client) connect(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, resp, err := dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s (status %d): %w", c.cfg.URL, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dial %s: %w", c.cfg.URL, err)
	}

	sub := subscriptionMessage{
		APIKey:             c.cfg.APIKey,
		BoundingBoxes:      c.cfg.BoundingBoxes,
		FilterMessageTypes: []string{"PositionReport"},
	}
	payload, err := json.Marshal(sub)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("encode subscription: %w", err)
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("send subscription: %w", err)
	}
	return conn, nil
}

// readLoop consumes messages until the socket fails or ctx is cancelled.
// Cancellation closes the socket to unblock the pending read.
func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()
	go pingLoop(conn, done)

	conn.SetReadLimit(maxMessageBytes)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		c.handleMessage(ctx, data)
	}
}

func pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(writeWait)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}

// handleMessage parses, validates, stores and marks dirty one upstream
// frame. Rejections are counted by reason and never interrupt the read
// loop.
func (c *Client) handleMessage(ctx context.Context, data []byte) {
	metrics.RecordIngestReceived()

	rec, err := ais.ParsePositionReport(data, time.Now())
	if err != nil {
		metrics.RecordIngestDropped(dropReason(err))
		if !errors.Is(err, ais.ErrNotPositionReport) {
			logging.Debug().Err(err).Msg("Dropped upstream message")
		}
		return
	}

	res, err := c.store.Put(ctx, rec)
	if err != nil {
		metrics.RecordIngestDropped("store_error")
		logging.Error().Err(err).Uint64("mmsi", rec.MMSI).Msg("Failed to store position")
		return
	}
	metrics.RecordIngestAccepted()
	c.markDirty(res.OldTile, res.NewTile)

	c.publishMu.RLock()
	publish := c.publish
	c.publishMu.RUnlock()
	if publish != nil {
		rec.Tile = res.NewTile
		publish(rec)
	}
}

func dropReason(err error) string {
	switch {
	case errors.Is(err, ais.ErrNotPositionReport):
		return "filtered"
	case errors.Is(err, ais.ErrMissingMMSI):
		return "missing_mmsi"
	case errors.Is(err, ais.ErrMissingCoords):
		return "missing_coords"
	case errors.Is(err, ais.ErrCoordsOutOfRange):
		return "out_of_range"
	default:
		return "malformed"
	}
}

func (c *Client) markDirty(tiles ...string) {
	c.dirtyMu.Lock()
	for _, key := range tiles {
		if key != "" {
			c.dirty[key] = struct{}{}
		}
	}
	c.dirtyMu.Unlock()
}

func (c *Client) flushLoop(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.FlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			c.flush()
			return
		case <-ticker.C:
			c.flush()
		}
	}
}

// flush swaps the dirty set out and hands it to the dispatcher without
// blocking. When the intake is full the keys fold back into the live set
// so the signal survives to the next tick.
func (c *Client) flush() {
	c.dirtyMu.Lock()
	if len(c.dirty) == 0 {
		c.dirtyMu.Unlock()
		return
	}
	batch := c.dirty
	c.dirty = make(map[string]struct{}, len(batch))
	c.dirtyMu.Unlock()

	keys := make([]string, 0, len(batch))
	for key := range batch {
		keys = append(keys, key)
	}

	select {
	case c.sink <- keys:
		metrics.RecordDirtyTiles(len(keys))
	default:
		c.dirtyMu.Lock()
		for key := range batch {
			c.dirty[key] = struct{}{}
		}
		c.dirtyMu.Unlock()
		logging.Warn().Int("tiles", len(keys)).Msg("Dispatcher intake full, holding dirty tiles")
	}
}

// sleepCtx waits for d and reports false when ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

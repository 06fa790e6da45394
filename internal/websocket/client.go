// Pelagos - Real-Time AIS Vessel Tracking and Map Tile Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pelagos

package websocket

import (
	"context"
	"fmt"
	"net"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/tomtom215/pelagos/internal/logging"
	"github.com/tomtom215/pelagos/internal/metrics"
	"github.com/tomtom215/pelagos/internal/tile"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 512 * 1024 // 512 KB

	controlQueueSize = 16

	// Inbound frames per second per session, with burst headroom.
	inboundRate  = 10
	inboundBurst = 20
)

// clientSeqCounter generates unique, monotonically increasing sequence
// numbers for sessions.
// DETERMINISM: This ensures sessions can be sorted in a consistent order
// for fan-out operations, eliminating non-deterministic map iteration
// order.
var clientSeqCounter atomic.Uint64

// Client is one downstream subscriber session. Two goroutines serve it:
// readPump handles inbound frames (subscribe, unsubscribe, ping) and
// writePump drains the outbound queues and drives the heartbeat.
//
// Outbound traffic is split across two bounded channels. Control frames
// (connected, subscribed, unsubscribed, pong) are never dropped; vessel
// updates overflow by discarding the oldest queued update so a slow
// consumer degrades to fresher-but-fewer frames.
type Client struct {
	// id is the public session identity echoed in the connected frame.
	id string
	// seq orders sessions deterministically for fan-out and shutdown.
	seq uint64

	hub  *Hub
	conn *websocket.Conn

	control chan interface{}
	updates chan VesselUpdate

	limiter *rate.Limiter

	tilesMu sync.RWMutex
	tiles   map[string]struct{}

	heartbeat time.Duration

	closeOnce sync.Once
	done      chan struct{}
}

// NewClient wraps an accepted connection in a session. The caller
// registers it with the hub and then calls Start.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		id:        uuid.New().String(),
		seq:       clientSeqCounter.Add(1),
		hub:       hub,
		conn:      conn,
		control:   make(chan interface{}, controlQueueSize),
		updates:   make(chan VesselUpdate, hub.cfg.QueueSize),
		limiter:   rate.NewLimiter(inboundRate, inboundBurst),
		tiles:     make(map[string]struct{}),
		heartbeat: hub.cfg.Heartbeat,
		done:      make(chan struct{}),
	}
}

// ID returns the public session identity.
func (c *Client) ID() string {
	return c.id
}

// Start queues the connected frame and begins serving the session.
func (c *Client) Start() {
	c.queueControl(ConnectedMessage{
		Type:     MessageTypeConnected,
		ClientID: c.id,
		Message:  "Connected to vessel stream",
	})
	go c.writePump()
	go c.readPump()
}

// Close terminates the session exactly once: it deregisters from the
// hub, writes a close frame when the code permits one, and closes the
// socket. Code 1006 never goes on the wire; the peer observes the
// abnormal closure from the dropped connection.
func (c *Client) Close(code int, reason string) {
	c.closeOnce.Do(func() {
		close(c.done)
		c.hub.Unregister(c)
		if code != websocket.CloseAbnormalClosure {
			msg := websocket.FormatCloseMessage(code, reason)
			_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		}
		_ = c.conn.Close()
	})
}

// readPump pumps inbound frames until the socket fails or the heartbeat
// deadline passes. The read deadline spans two heartbeat intervals, so a
// session that misses two pings in a row is terminated.
func (c *Client) readPump() {
	defer c.Close(websocket.CloseNormalClosure, "")

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(2 * c.heartbeat)); err != nil {
		logging.Error().Err(err).Str("client_id", c.id).Msg("failed to set read deadline")
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(2 * c.heartbeat))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				logging.Info().Str("client_id", c.id).Msg("websocket client heartbeat timeout")
				c.Close(websocket.CloseAbnormalClosure, "Heartbeat timeout")
			} else if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Debug().Err(err).Str("client_id", c.id).Msg("unexpected websocket close error")
			}
			return
		}
		// Inbound frames also count as liveness.
		_ = c.conn.SetReadDeadline(time.Now().Add(2 * c.heartbeat))

		if !c.limiter.Allow() {
			metrics.RecordWSMessageDropped("rate_limited")
			logging.Debug().Str("client_id", c.id).Msg("inbound rate limit exceeded, dropping frame")
			continue
		}

		var msg InboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logging.Debug().Err(err).Str("client_id", c.id).Msg("malformed inbound frame")
			continue
		}
		c.handleInbound(msg)
	}
}

func (c *Client) handleInbound(msg InboundMessage) {
	switch msg.Type {
	case MessageTypeSubscribe:
		c.handleSubscribe(msg.Tiles)
	case MessageTypeUnsubscribe:
		c.handleUnsubscribe(msg.Tiles)
	case MessageTypePing:
		c.queueControl(PongMessage{Type: MessageTypePong})
	default:
		logging.Debug().Str("client_id", c.id).Str("type", msg.Type).Msg("ignoring unknown message type")
	}
}

// handleSubscribe validates and caps the requested tiles, acknowledges
// them, queues one snapshot per populated tile, then registers the tiles
// with the hub. Snapshots are queued before registration so the first
// update a session sees for a tile is the snapshot, never a tick update
// that predates it.
func (c *Client) handleSubscribe(requested []string) {
	accepted := make([]string, 0, len(requested))
	malformed, capped := 0, 0

	c.tilesMu.Lock()
	for _, key := range requested {
		if _, _, _, err := tile.ParseKey(key); err != nil {
			malformed++
			continue
		}
		if _, ok := c.tiles[key]; ok {
			// Repeat subscribes are no-ops: no re-ack, no re-snapshot.
			continue
		}
		if len(c.tiles) >= c.hub.cfg.MaxTilesPerClient {
			capped++
			continue
		}
		c.tiles[key] = struct{}{}
		accepted = append(accepted, key)
	}
	c.tilesMu.Unlock()

	if malformed > 0 {
		logging.Debug().Str("client_id", c.id).Int("rejected", malformed).Msg("rejected malformed tile keys")
	}
	if capped > 0 {
		logging.Warn().
			Str("client_id", c.id).
			Int("dropped", capped).
			Int("limit", c.hub.cfg.MaxTilesPerClient).
			Msg("subscription tile limit reached, dropping excess tiles")
	}

	c.queueControl(SubscriptionAck{
		Type:    MessageTypeSubscribed,
		Tiles:   accepted,
		Message: fmt.Sprintf("Subscribed to %d tiles", len(accepted)),
	})

	ctx := context.Background()
	for _, key := range accepted {
		vessels, err := c.hub.store.VesselsInTile(ctx, key)
		if err != nil {
			logging.Error().Err(err).Str("tile", key).Msg("snapshot read failed")
			continue
		}
		if len(vessels) == 0 {
			continue
		}
		c.queueUpdate(NewVesselUpdate(key, vessels))
	}

	c.hub.subscribe(c, accepted)
	metrics.RecordSubscription("subscribe", len(accepted))
}

func (c *Client) handleUnsubscribe(requested []string) {
	removed := make([]string, 0, len(requested))

	c.tilesMu.Lock()
	for _, key := range requested {
		if _, ok := c.tiles[key]; ok {
			delete(c.tiles, key)
			removed = append(removed, key)
		}
	}
	c.tilesMu.Unlock()

	c.hub.unsubscribe(c, removed)
	c.queueControl(SubscriptionAck{
		Type:    MessageTypeUnsubscribed,
		Tiles:   removed,
		Message: fmt.Sprintf("Unsubscribed from %d tiles", len(removed)),
	})
	metrics.RecordSubscription("unsubscribe", len(removed))
}

// subscribedTiles snapshots the session's tile set in sorted order.
func (c *Client) subscribedTiles() []string {
	c.tilesMu.RLock()
	tiles := make([]string, 0, len(c.tiles))
	for key := range c.tiles {
		tiles = append(tiles, key)
	}
	c.tilesMu.RUnlock()
	sort.Strings(tiles)
	return tiles
}

// queueControl enqueues a frame that must not be dropped. It blocks when
// the control queue is full, which throttles the read loop that feeds
// it.
func (c *Client) queueControl(msg interface{}) {
	select {
	case c.control <- msg:
	case <-c.done:
	}
}

// queueUpdate enqueues a vessel update, discarding the oldest queued
// update when the session cannot keep up.
func (c *Client) queueUpdate(update VesselUpdate) {
	for {
		select {
		case <-c.done:
			return
		default:
		}
		select {
		case c.updates <- update:
			return
		default:
		}
		select {
		case <-c.updates:
			metrics.RecordWSMessageDropped("queue_full")
		default:
		}
	}
}

// writePump serializes all socket writes: control frames first, then
// queued updates, with a protocol-level ping every heartbeat interval.
func (c *Client) writePump() {
	ticker := time.NewTicker(c.heartbeat)
	defer func() {
		ticker.Stop()
		c.Close(websocket.CloseAbnormalClosure, "write failure")
	}()

	for {
		// Priority 1: control frames overtake queued updates.
		select {
		case msg := <-c.control:
			if !c.write(msg) {
				return
			}
			continue
		default:
		}

		select {
		case <-c.done:
			return
		case msg := <-c.control:
			if !c.write(msg) {
				return
			}
		case update := <-c.updates:
			if !c.write(update) {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) write(msg interface{}) bool {
	payload, err := json.Marshal(msg)
	if err != nil {
		// An encoding failure loses one frame, not the session.
		logging.Error().Err(err).Str("client_id", c.id).Msg("failed to encode outbound frame")
		return true
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		logging.Debug().Err(err).Str("client_id", c.id).Msg("websocket write failed")
		return false
	}
	metrics.RecordWSMessageSent(outboundType(msg))
	return true
}

func outboundType(msg interface{}) string {
	switch m := msg.(type) {
	case ConnectedMessage:
		return m.Type
	case SubscriptionAck:
		return m.Type
	case VesselUpdate:
		return m.Type
	case PongMessage:
		return m.Type
	default:
		return "unknown"
	}
}

// Pelagos - Real-Time AIS Vessel Tracking and Map Tile Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pelagos

/*
Package websocket serves live vessel updates to map clients subscribed by
tile.

This package implements the downstream half of the pipeline: the Hub
(dispatcher) owns the tile subscription index and the dirty-tile set, and
each accepted connection runs as a Client session with its own read and
write goroutines. It uses the gorilla/websocket library.

Key Components:

  - Hub: dispatcher that coalesces dirty tiles and fans updates out to
    the sessions subscribed to each tile
  - Client: one subscriber session with bounded outbound queues
  - protocol.go: the JSON frame shapes exchanged with map clients

Architecture:

	 ingest ──dirty tiles──▶ ┌──────────┐
	                         │   Hub    │ ◀── tile index
	                         └────┬─────┘
	                              │ one vessel_update per dirty tile
	      ┌──────────┬────────────┼─────────┐
	      │          │            │         │
	      │ Client1  │ Client2    │ Client3 │
	      └──────────┴────────────┴─────────┘

Each client has two goroutines:
  - readPump: reads subscribe/unsubscribe/ping frames, enforces the
    inbound rate limit and the heartbeat read deadline
  - writePump: drains the control and update queues, sends heartbeat
    pings

Wire Protocol:

Inbound frames:

  - subscribe: {"type":"subscribe","tiles":["12/3413/1789", ...]}
  - unsubscribe: {"type":"unsubscribe","tiles":[...]}
  - ping: {"type":"ping"}

Outbound frames:

  - connected: sent once on accept with the session's clientId
  - subscribed / unsubscribed: acknowledge interest changes
  - vessel_update: full current population of one tile; an empty vessel
    list signals the tile was depopulated
  - pong: answers an application-level ping

Usage Example - Server:

	hub := websocket.NewHub(websocket.Config{}, vesselStore)
	go hub.RunWithContext(ctx)

	// HTTP upgrade endpoint
	conn, _ := upgrader.Upgrade(w, r, nil)
	client := websocket.NewClient(hub, conn)
	hub.Register(client)
	client.Start()

Usage Example - Client (JavaScript):

	const ws = new WebSocket('ws://localhost:3000/ws');

	ws.onopen = () => {
	    ws.send(JSON.stringify({type: 'subscribe', tiles: visibleTiles()}));
	};

	ws.onmessage = (event) => {
	    const msg = JSON.parse(event.data);
	    if (msg.type === 'vessel_update') {
	        renderTile(msg.tile, msg.vessels);
	    }
	};

Delivery Guarantees:

  - Per (tile, session), updates are ordered and monotone in the flush
    tick sequence; the subscribe snapshot always precedes tick updates.
  - Across tiles and across sessions no ordering is promised.
  - Delivery is best-effort: a slow session loses its oldest queued
    vessel_update frames first and never loses control frames.

Connection Lifecycle:

 1. Client connects via HTTP upgrade
 2. Hub registers the session, client receives "connected"
 3. Session subscribes to the tiles in its viewport
 4. Hub delivers one update per dirty subscribed tile per flush tick
 5. Session unsubscribes/resubscribes as the viewport moves
 6. Disconnect (any reason) removes the session from every tile

Heartbeat:

The server pings every Heartbeat interval (default 30 s). A session that
produces neither a pong nor any other frame for two intervals is
terminated; the peer observes close code 1006 ("Heartbeat timeout").
Graceful server shutdown closes sessions with 1001 ("Server shutting
down").

Thread Safety:

The package is fully thread-safe:
  - Hub guards the registry and tile index with a mutex
  - The dirty set has its own mutex shared with nothing else
  - Each session confines socket writes to its writePump goroutine
*/
package websocket

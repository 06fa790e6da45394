// Pelagos - Real-Time AIS Vessel Tracking and Map Tile Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pelagos

/*
Package sync drains the live vessel store into the durable DuckDB store.

The live store loses vessels after the TTL window; the synchronizer runs
on a fixed interval (BATCH_SYNC_INTERVAL_MS) and carries every vessel it
finds into vessels_current, so the durable store converges on the last
known position of everything ever heard.

Each tick scans one batch (BATCH_SYNC_SIZE) from the live store, starting
where the previous tick stopped. The scan cursor persists across ticks,
so one pass over a large store spreads across several intervals; when the
store signals the end of the keyspace the next tick starts a fresh pass.

Writes go through a circuit breaker. A failing database trips the breaker
after five consecutive batch failures and sync ticks become cheap no-ops
until the cooldown elapses; the live store keeps absorbing positions the
whole time, so nothing is lost except durability lag.

Stats from the most recent tick (and a cumulative error count) are
retained for the status endpoint:

	m := sync.NewManager(store, db, &cfg.Sync)
	if err := m.Start(ctx); err != nil { ... }
	defer m.Stop()
	stats := m.Stats()
*/
package sync

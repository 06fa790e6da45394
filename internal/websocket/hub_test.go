// Pelagos - Real-Time AIS Vessel Tracking and Map Tile Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pelagos

package websocket

import (
	"context"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tomtom215/pelagos/internal/ais"
	"github.com/tomtom215/pelagos/internal/logging"
	"github.com/tomtom215/pelagos/internal/store"
)

func init() {
	logging.SetLogger(logging.NewTestLogger(io.Discard))
}

func newHubWithStore(t *testing.T) (*Hub, *store.Memory) {
	t.Helper()
	mem := store.NewMemory(store.Config{TTL: time.Minute})
	t.Cleanup(func() { _ = mem.Close() })
	return NewHub(Config{}, mem), mem
}

// putVessel stores a position and returns its tile key.
func putVessel(t *testing.T, st store.Store, mmsi uint64, lat, lon float64) string {
	t.Helper()
	res, err := st.Put(context.Background(), ais.Record{
		MMSI: mmsi, Lat: lat, Lon: lon,
		Timestamp: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("Put returned error: %v", err)
	}
	return res.NewTile
}

// addSubscriber wires a socketless session into the hub index. The
// session never starts its pumps, so its update queue can be inspected
// directly.
func addSubscriber(h *Hub, tiles ...string) *Client {
	c := NewClient(h, nil)
	h.Register(c)
	c.tilesMu.Lock()
	for _, key := range tiles {
		c.tiles[key] = struct{}{}
	}
	c.tilesMu.Unlock()
	h.subscribe(c, tiles)
	return c
}

func drainUpdates(c *Client) []VesselUpdate {
	var out []VesselUpdate
	for {
		select {
		case u := <-c.updates:
			out = append(out, u)
		default:
			return out
		}
	}
}

// countingStore counts VesselsInTile reads on top of a real backend.
type countingStore struct {
	store.Store
	tileReads atomic.Int64
}

func (s *countingStore) VesselsInTile(ctx context.Context, key string) ([]ais.Record, error) {
	s.tileReads.Add(1)
	return s.Store.VesselsInTile(ctx, key)
}

func TestFlushDeliversUpdateToSubscriber(t *testing.T) {
	h, mem := newHubWithStore(t)
	key := putVessel(t, mem, 111, 22.3964, 114.1095)
	c := addSubscriber(h, key)

	h.markDirty([]string{key})
	h.flush(context.Background())

	updates := drainUpdates(c)
	if len(updates) != 1 {
		t.Fatalf("got %d updates, want 1", len(updates))
	}
	u := updates[0]
	if u.Type != MessageTypeVesselUpdate || u.Tile != key {
		t.Errorf("update = {%s %s}, want vessel_update for %s", u.Type, u.Tile, key)
	}
	if len(u.Vessels) != 1 || u.Vessels[0].MMSI != 111 {
		t.Errorf("update vessels = %+v, want MMSI 111", u.Vessels)
	}
}

func TestFlushSkipsTilesWithoutSubscribers(t *testing.T) {
	h, mem := newHubWithStore(t)
	counting := &countingStore{Store: mem}
	h.store = counting

	key := putVessel(t, mem, 111, 22.3964, 114.1095)
	h.markDirty([]string{key})
	h.flush(context.Background())

	if n := counting.tileReads.Load(); n != 0 {
		t.Errorf("store consulted %d times for a tile with no subscribers", n)
	}
}

func TestFlushCoalescesPerTile(t *testing.T) {
	h, mem := newHubWithStore(t)
	key := putVessel(t, mem, 111, 22.3964, 114.1095)
	c := addSubscriber(h, key)

	// Several updates land between ticks; one outbound frame results.
	putVessel(t, mem, 111, 22.3966, 114.1096)
	h.markDirty([]string{key})
	h.markDirty([]string{key, key})
	h.flush(context.Background())

	if updates := drainUpdates(c); len(updates) != 1 {
		t.Errorf("got %d updates for one dirty tile, want 1", len(updates))
	}
}

func TestFlushClearsDirtySet(t *testing.T) {
	h, mem := newHubWithStore(t)
	key := putVessel(t, mem, 111, 22.3964, 114.1095)
	c := addSubscriber(h, key)

	h.markDirty([]string{key})
	h.flush(context.Background())
	drainUpdates(c)

	// Nothing new marked dirty: the next flush sends nothing.
	h.flush(context.Background())
	if updates := drainUpdates(c); len(updates) != 0 {
		t.Errorf("second flush sent %d updates from a clean set", len(updates))
	}
}

func TestFlushSendsDepopulationSignal(t *testing.T) {
	h, mem := newHubWithStore(t)
	oldTile := putVessel(t, mem, 111, 22.3964, 114.1095)
	c := addSubscriber(h, oldTile)

	// The vessel moves away; ingest marks both tiles dirty.
	res, err := mem.Put(context.Background(), ais.Record{
		MMSI: 111, Lat: 22.3964, Lon: 115.5,
		Timestamp: time.Now(),
	})
	if err != nil {
		t.Fatalf("Put returned error: %v", err)
	}
	h.markDirty([]string{res.OldTile, res.NewTile})
	h.flush(context.Background())

	updates := drainUpdates(c)
	if len(updates) != 1 {
		t.Fatalf("got %d updates, want 1 for the subscribed tile only", len(updates))
	}
	u := updates[0]
	if u.Tile != oldTile {
		t.Errorf("update tile = %s, want %s", u.Tile, oldTile)
	}
	if u.Vessels == nil || len(u.Vessels) != 0 {
		t.Errorf("depopulated tile update vessels = %v, want an empty list", u.Vessels)
	}
}

func TestSubscribersOfOrdering(t *testing.T) {
	h, mem := newHubWithStore(t)
	key := putVessel(t, mem, 111, 22.3964, 114.1095)

	c1 := addSubscriber(h, key)
	c2 := addSubscriber(h, key)
	c3 := addSubscriber(h, key)

	subs := h.subscribersOf(key)
	if len(subs) != 3 {
		t.Fatalf("got %d subscribers, want 3", len(subs))
	}
	if subs[0] != c1 || subs[1] != c2 || subs[2] != c3 {
		t.Error("subscribers not in session accept order")
	}
}

func TestUnregisterRemovesFromIndex(t *testing.T) {
	h, mem := newHubWithStore(t)
	key := putVessel(t, mem, 111, 22.3964, 114.1095)
	c := addSubscriber(h, key)

	if h.ClientCount() != 1 || h.SubscribedTileCount() != 1 {
		t.Fatalf("registry = (%d clients, %d tiles) before unregister", h.ClientCount(), h.SubscribedTileCount())
	}

	h.Unregister(c)

	if h.ClientCount() != 0 {
		t.Errorf("ClientCount = %d after unregister, want 0", h.ClientCount())
	}
	if h.SubscribedTileCount() != 0 {
		t.Errorf("SubscribedTileCount = %d after unregister, want 0 (empty entries evicted)", h.SubscribedTileCount())
	}

	// Unregister is idempotent.
	h.Unregister(c)
}

func TestUnsubscribeEvictsEmptyIndexEntries(t *testing.T) {
	h, mem := newHubWithStore(t)
	key := putVessel(t, mem, 111, 22.3964, 114.1095)
	c := addSubscriber(h, key)

	h.unsubscribe(c, []string{key})
	if h.SubscribedTileCount() != 0 {
		t.Errorf("SubscribedTileCount = %d after last unsubscribe, want 0", h.SubscribedTileCount())
	}
}

func TestMarkDirtyIgnoresEmptyKeys(t *testing.T) {
	h, _ := newHubWithStore(t)

	h.markDirty([]string{"", "12/1/1", ""})

	h.dirtyMu.Lock()
	defer h.dirtyMu.Unlock()
	if len(h.dirty) != 1 {
		t.Errorf("dirty set has %d keys, want 1", len(h.dirty))
	}
}

func TestRunWithContextStopsOnCancel(t *testing.T) {
	h, _ := newHubWithStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.RunWithContext(ctx) }()

	// The loop must absorb intake batches while running.
	h.Intake() <- []string{"12/1/1"}

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("RunWithContext returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("RunWithContext did not stop on cancellation")
	}
}

func TestQueueUpdateDropsOldest(t *testing.T) {
	mem := store.NewMemory(store.Config{TTL: time.Minute})
	defer mem.Close()
	h := NewHub(Config{QueueSize: 2}, mem)
	c := NewClient(h, nil)

	for _, key := range []string{"12/1/1", "12/2/2", "12/3/3"} {
		c.queueUpdate(NewVesselUpdate(key, nil))
	}

	updates := drainUpdates(c)
	if len(updates) != 2 {
		t.Fatalf("queue held %d updates, want 2", len(updates))
	}
	if updates[0].Tile != "12/2/2" || updates[1].Tile != "12/3/3" {
		t.Errorf("queue = [%s %s], want the oldest update dropped", updates[0].Tile, updates[1].Tile)
	}
}

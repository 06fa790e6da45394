// Pelagos - Real-Time AIS Vessel Tracking and Map Tile Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pelagos

package store

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tomtom215/pelagos/internal/ais"
	"github.com/tomtom215/pelagos/internal/metrics"
	"github.com/tomtom215/pelagos/internal/tile"
)

// Key layout: vessel:<mmsi> hash with the record fields, tile:<z/x/y> set
// of member MMSIs, vtile:<mmsi> string pointing at the vessel's current
// tile. All three carry the vessel TTL; Redis drops a set key when its
// last member is removed, which is the tile eviction rule.
const (
	vesselKeyPrefix = "vessel:"
	tileKeyPrefix   = "tile:"
	vtileKeyPrefix  = "vtile:"
)

// putVesselScript performs the whole put transition server-side so that
// concurrent writers against a shared Redis observe it atomically.
// The old tile set key is derived inside the script from the vtile
// pointer; derived keys restrict this backend to a single Redis node.
//
// KEYS[1] vessel hash, KEYS[2] vtile pointer, KEYS[3] new tile set.
// ARGV[1] ttl millis, ARGV[2] new tile key, ARGV[3] mmsi,
// ARGV[4..] hash field/value pairs. Returns the old tile key or ''.
const putVesselScriptSrc = `
local old = redis.call('GET', KEYS[2])
redis.call('DEL', KEYS[1])
redis.call('HSET', KEYS[1], unpack(ARGV, 4, #ARGV))
redis.call('PEXPIRE', KEYS[1], ARGV[1])
if old and old ~= ARGV[2] then
    redis.call('SREM', 'tile:' .. old, ARGV[3])
end
redis.call('SADD', KEYS[3], ARGV[3])
redis.call('PEXPIRE', KEYS[3], ARGV[1])
redis.call('SET', KEYS[2], ARGV[2], 'PX', ARGV[1])
if old then
    return old
end
return ''
`

var putVesselScript = redis.NewScript(putVesselScriptSrc)

// Redis is the shared-cache store backend for multi-process deployments.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	zoom   int
}

// NewRedis connects to the Redis named by cfg.RedisURL and verifies it
// answers a ping before returning.
func NewRedis(ctx context.Context, cfg Config) (*Redis, error) {
	cfg = cfg.withDefaults()

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("store: parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("store: redis ping: %w", err)
	}

	return &Redis{client: client, ttl: cfg.TTL, zoom: cfg.Zoom}, nil
}

// Put runs the server-side put script and returns both affected tiles.
func (r *Redis) Put(ctx context.Context, rec ais.Record) (PutResult, error) {
	start := time.Now()
	rec.Tile = tile.Key(rec.Lat, rec.Lon, r.zoom)

	mmsi := strconv.FormatUint(rec.MMSI, 10)
	args := make([]interface{}, 0, 3+16)
	args = append(args, r.ttl.Milliseconds(), rec.Tile, mmsi)
	args = append(args, recordToFields(rec)...)

	keys := []string{
		vesselKeyPrefix + mmsi,
		vtileKeyPrefix + mmsi,
		tileKeyPrefix + rec.Tile,
	}
	old, err := putVesselScript.Run(ctx, r.client, keys, args...).Text()
	if err != nil {
		return PutResult{}, fmt.Errorf("store: redis put %d: %w", rec.MMSI, err)
	}

	metrics.RecordStorePut(BackendRedis, time.Since(start))
	return PutResult{OldTile: old, NewTile: rec.Tile}, nil
}

// Get fetches the record hash; a missing or expired hash reads as absent.
func (r *Redis) Get(ctx context.Context, mmsi uint64) (ais.Record, bool, error) {
	fields, err := r.client.HGetAll(ctx, vesselKeyPrefix+strconv.FormatUint(mmsi, 10)).Result()
	if err != nil {
		return ais.Record{}, false, fmt.Errorf("store: redis get %d: %w", mmsi, err)
	}
	if len(fields) == 0 {
		return ais.Record{}, false, nil
	}
	rec, err := fieldsToRecord(fields)
	if err != nil {
		return ais.Record{}, false, err
	}
	return rec, true, nil
}

// VesselsInTile reads the tile set then pipelines one HGETALL per member.
// Members whose hash already expired are dropped from the result and
// lazily removed from the set.
func (r *Redis) VesselsInTile(ctx context.Context, tileKey string) ([]ais.Record, error) {
	setKey := tileKeyPrefix + tileKey
	members, err := r.client.SMembers(ctx, setKey).Result()
	if err != nil {
		return nil, fmt.Errorf("store: redis smembers %s: %w", tileKey, err)
	}
	if len(members) == 0 {
		return []ais.Record{}, nil
	}

	pipe := r.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(members))
	for i, member := range members {
		cmds[i] = pipe.HGetAll(ctx, vesselKeyPrefix+member)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("store: redis pipeline %s: %w", tileKey, err)
	}

	out := make([]ais.Record, 0, len(members))
	var dead []interface{}
	for i, cmd := range cmds {
		fields, err := cmd.Result()
		if err != nil || len(fields) == 0 {
			dead = append(dead, members[i])
			continue
		}
		rec, err := fieldsToRecord(fields)
		if err != nil {
			dead = append(dead, members[i])
			continue
		}
		out = append(out, rec)
	}
	if len(dead) > 0 {
		r.client.SRem(ctx, setKey, dead...)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].MMSI < out[j].MMSI })
	return out, nil
}

// Scan pages through vessel hashes with the native SCAN cursor. The page
// size follows the Redis COUNT hint, so a page may run slightly over or
// under limit.
func (r *Redis) Scan(ctx context.Context, cursor uint64, limit int) ([]ais.Record, uint64, error) {
	if limit <= 0 {
		return nil, 0, nil
	}
	keys, next, err := r.client.Scan(ctx, cursor, vesselKeyPrefix+"*", int64(limit)).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("store: redis scan: %w", err)
	}
	if len(keys) == 0 {
		return []ais.Record{}, next, nil
	}

	pipe := r.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(keys))
	for i, key := range keys {
		cmds[i] = pipe.HGetAll(ctx, key)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, 0, fmt.Errorf("store: redis scan pipeline: %w", err)
	}

	out := make([]ais.Record, 0, len(keys))
	for _, cmd := range cmds {
		fields, err := cmd.Result()
		if err != nil || len(fields) == 0 {
			continue
		}
		rec, err := fieldsToRecord(fields)
		if err != nil {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MMSI < out[j].MMSI })
	return out, next, nil
}

// Counts walks the key space; it is intended for the status endpoint, not
// for hot paths.
func (r *Redis) Counts(ctx context.Context) (int, int, error) {
	vessels, err := r.countKeys(ctx, vesselKeyPrefix+"*")
	if err != nil {
		return 0, 0, err
	}
	tiles, err := r.countKeys(ctx, tileKeyPrefix+"*")
	if err != nil {
		return 0, 0, err
	}
	return vessels, tiles, nil
}

func (r *Redis) countKeys(ctx context.Context, pattern string) (int, error) {
	var cursor uint64
	count := 0
	for {
		keys, next, err := r.client.Scan(ctx, cursor, pattern, 1000).Result()
		if err != nil {
			return 0, fmt.Errorf("store: redis count %s: %w", pattern, err)
		}
		count += len(keys)
		if next == 0 {
			return count, nil
		}
		cursor = next
	}
}

// Close releases the client connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}

// recordToFields flattens a record into hash field/value pairs. Nullable
// fields are omitted entirely; the put script rewrites the hash from
// scratch so omitted fields cannot go stale.
func recordToFields(rec ais.Record) []interface{} {
	fields := make([]interface{}, 0, 16)
	fields = append(fields,
		"mmsi", strconv.FormatUint(rec.MMSI, 10),
		"lat", strconv.FormatFloat(rec.Lat, 'f', -1, 64),
		"lon", strconv.FormatFloat(rec.Lon, 'f', -1, 64),
		"ts", rec.Timestamp.UTC().Format(time.RFC3339Nano),
		"tile", rec.Tile,
	)
	if rec.Cog != nil {
		fields = append(fields, "cog", strconv.FormatFloat(*rec.Cog, 'f', -1, 64))
	}
	if rec.Sog != nil {
		fields = append(fields, "sog", strconv.FormatFloat(*rec.Sog, 'f', -1, 64))
	}
	if rec.Heading != nil {
		fields = append(fields, "heading", strconv.Itoa(*rec.Heading))
	}
	return fields
}

// fieldsToRecord reverses recordToFields.
func fieldsToRecord(fields map[string]string) (ais.Record, error) {
	var rec ais.Record
	var err error

	if rec.MMSI, err = strconv.ParseUint(fields["mmsi"], 10, 64); err != nil {
		return ais.Record{}, fmt.Errorf("store: decode mmsi %q: %w", fields["mmsi"], err)
	}
	if rec.Lat, err = strconv.ParseFloat(fields["lat"], 64); err != nil {
		return ais.Record{}, fmt.Errorf("store: decode lat for %d: %w", rec.MMSI, err)
	}
	if rec.Lon, err = strconv.ParseFloat(fields["lon"], 64); err != nil {
		return ais.Record{}, fmt.Errorf("store: decode lon for %d: %w", rec.MMSI, err)
	}
	if rec.Timestamp, err = time.Parse(time.RFC3339Nano, fields["ts"]); err != nil {
		return ais.Record{}, fmt.Errorf("store: decode ts for %d: %w", rec.MMSI, err)
	}
	rec.Tile = fields["tile"]

	if v, ok := fields["cog"]; ok {
		cog, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return ais.Record{}, fmt.Errorf("store: decode cog for %d: %w", rec.MMSI, err)
		}
		rec.Cog = &cog
	}
	if v, ok := fields["sog"]; ok {
		sog, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return ais.Record{}, fmt.Errorf("store: decode sog for %d: %w", rec.MMSI, err)
		}
		rec.Sog = &sog
	}
	if v, ok := fields["heading"]; ok {
		heading, err := strconv.Atoi(v)
		if err != nil {
			return ais.Record{}, fmt.Errorf("store: decode heading for %d: %w", rec.MMSI, err)
		}
		rec.Heading = &heading
	}
	return rec, nil
}

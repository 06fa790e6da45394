// Pelagos - Real-Time AIS Vessel Tracking and Map Tile Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pelagos

// Package tile implements Web-Mercator slippy-map tile math.
//
// Tile keys use the canonical textual form "z/x/y" where z is the zoom
// level and x, y are non-negative integers below 2^z. All functions are
// pure; latitude is clamped to the Mercator limit and longitude is
// normalized into [-180, 180) before projection, so the same coordinate
// always maps to the same tile regardless of how the caller wrapped it.
package tile

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// MaxLat is the Web-Mercator latitude limit. Latitudes beyond it are
// clamped so the projection stays finite.
const MaxLat = 85.0511287798066

// DefaultZoom is the zoom level used for vessel indexing.
const DefaultZoom = 12

// ClampLat limits latitude to the projectable Mercator range.
func ClampLat(lat float64) float64 {
	if lat > MaxLat {
		return MaxLat
	}
	if lat < -MaxLat {
		return -MaxLat
	}
	return lat
}

// NormalizeLon wraps longitude into [-180, 180). +180 normalizes to -180,
// which keeps both sides of the antimeridian in the same tile column.
func NormalizeLon(lon float64) float64 {
	lon = math.Mod(lon+180, 360)
	if lon < 0 {
		lon += 360
	}
	return lon - 180
}

// Coord projects a coordinate to integer tile indices at the given zoom.
func Coord(lat, lon float64, zoom int) (x, y uint32) {
	n := float64(uint64(1) << uint(zoom))
	lat = ClampLat(lat)
	lon = NormalizeLon(lon)

	xf := math.Floor((lon + 180) / 360 * n)

	latRad := lat * math.Pi / 180
	yf := math.Floor((1 - math.Log(math.Tan(latRad)+1/math.Cos(latRad))/math.Pi) / 2 * n)

	// Floating-point edge at the clamp boundary can land exactly on n.
	if xf > n-1 {
		xf = n - 1
	}
	if yf > n-1 {
		yf = n - 1
	}
	if xf < 0 {
		xf = 0
	}
	if yf < 0 {
		yf = 0
	}
	return uint32(xf), uint32(yf)
}

// Key returns the canonical "z/x/y" tile key for a coordinate.
func Key(lat, lon float64, zoom int) string {
	x, y := Coord(lat, lon, zoom)
	return FormatKey(zoom, x, y)
}

// FormatKey renders tile indices as a canonical "z/x/y" key.
func FormatKey(zoom int, x, y uint32) string {
	return fmt.Sprintf("%d/%d/%d", zoom, x, y)
}

// ParseKey splits a "z/x/y" key and validates index ranges.
func ParseKey(key string) (zoom int, x, y uint32, err error) {
	parts := strings.Split(key, "/")
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("tile key %q: want z/x/y", key)
	}

	zoom, err = strconv.Atoi(parts[0])
	if err != nil || zoom < 0 || zoom > 22 {
		return 0, 0, 0, fmt.Errorf("tile key %q: invalid zoom", key)
	}

	xv, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("tile key %q: invalid x", key)
	}
	yv, err := strconv.ParseUint(parts[2], 10, 32)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("tile key %q: invalid y", key)
	}

	max := uint64(1) << uint(zoom)
	if xv >= max || yv >= max {
		return 0, 0, 0, fmt.Errorf("tile key %q: index out of range for zoom %d", key, zoom)
	}
	return zoom, uint32(xv), uint32(yv), nil
}

// Encode packs tile indices into a single integer, x*2^z + y. At the
// default zoom 12 this is the familiar x*4096 + y column encoding used by
// the durable store.
func Encode(zoom int, x, y uint32) int64 {
	return int64(x)<<uint(zoom) + int64(y)
}

// Bounds returns the geographic extent of a tile: north and south
// latitude, east and west longitude.
func Bounds(zoom int, x, y uint32) (north, south, east, west float64) {
	n := float64(uint64(1) << uint(zoom))

	west = float64(x)/n*360 - 180
	east = float64(x+1)/n*360 - 180

	northRad := math.Atan(math.Sinh(math.Pi * (1 - 2*float64(y)/n)))
	southRad := math.Atan(math.Sinh(math.Pi * (1 - 2*float64(y+1)/n)))
	north = northRad * 180 / math.Pi
	south = southRad * 180 / math.Pi
	return north, south, east, west
}

// CountInBounds reports how many tiles KeysInBounds would return without
// materializing them. Callers enforce their own caps.
func CountInBounds(north, south, east, west float64, zoom int) int {
	xMin, yMin, xMax, yMax, wraps := boundIndices(north, south, east, west, zoom)
	n := int(uint64(1) << uint(zoom))

	width := int(xMax) - int(xMin) + 1
	if wraps {
		width = n - int(xMin) + int(xMax) + 1
	}
	return width * (int(yMax) - int(yMin) + 1)
}

// KeysInBounds returns the rectangle of tile keys covering the given
// bounds, row-major from the northwest corner. A viewport spanning the
// antimeridian (east < west after normalization) wraps through column 0;
// a span of 360 degrees or more covers every column.
func KeysInBounds(north, south, east, west float64, zoom int) []string {
	xMin, yMin, xMax, yMax, wraps := boundIndices(north, south, east, west, zoom)
	n := uint32(uint64(1) << uint(zoom))

	keys := make([]string, 0, CountInBounds(north, south, east, west, zoom))
	for y := yMin; y <= yMax; y++ {
		x := xMin
		for {
			keys = append(keys, FormatKey(zoom, x, y))
			if x == xMax {
				break
			}
			x++
			if wraps && x == n {
				x = 0
			}
		}
	}
	return keys
}

func boundIndices(north, south, east, west float64, zoom int) (xMin, yMin, xMax, yMax uint32, wraps bool) {
	xMin, yMin = Coord(north, west, zoom)
	xMax, yMax = Coord(south, east, zoom)

	// A viewport spanning 360 degrees or more covers every column.
	// Normalization folds both edges onto the same longitude (a
	// full-world bbox has west=-180, east=180, and both normalize to
	// -180), so the corner projections alone would collapse the
	// rectangle to one column.
	if east-west >= 360 {
		return 0, yMin, uint32(uint64(1)<<uint(zoom)) - 1, yMax, false
	}

	wraps = NormalizeLon(east) < NormalizeLon(west)
	return xMin, yMin, xMax, yMax, wraps
}

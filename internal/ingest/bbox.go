// Pelagos - Real-Time AIS Vessel Tracking and Map Tile Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pelagos

package ingest

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/tomtom215/pelagos/internal/tile"
)

// WorldBoundingBox covers the whole feed and is used when no bounding
// box is configured.
func WorldBoundingBox() [][][2]float64 {
	return [][][2]float64{{{-90, -180}, {90, 180}}}
}

// TileCoverage reports how many zoom-level tiles the configured bounding
// boxes span, for boot-time diagnostics. Nil boxes mean worldwide coverage.
// Boxes crossing the antimeridian (first corner east of the second) wrap
// through the date line.
func TileCoverage(boxes [][][2]float64, zoom int) int {
	n := int(uint64(1) << uint(zoom))
	if len(boxes) == 0 {
		return n * n
	}
	total := 0
	for _, box := range boxes {
		if len(box) != 2 {
			continue
		}
		north := math.Max(box[0][0], box[1][0])
		south := math.Min(box[0][0], box[1][0])
		total += tile.CountInBounds(north, south, box[1][1], box[0][1], zoom)
	}
	return total
}

// ParseBoundingBoxes parses the operator bounding-box list
// "lat1,lon1,lat2,lon2;lat1,lon1,lat2,lon2" into the upstream wire
// shape, one [2]float64 corner pair per box. An empty string yields nil.
func ParseBoundingBoxes(raw string) ([][][2]float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	var boxes [][][2]float64
	for _, part := range strings.Split(raw, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		fields := strings.Split(part, ",")
		if len(fields) != 4 {
			return nil, fmt.Errorf("ingest: bounding box %q: want 4 comma-separated values, got %d", part, len(fields))
		}
		vals := make([]float64, 4)
		for i, field := range fields {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, fmt.Errorf("ingest: bounding box %q: %w", part, err)
			}
			vals[i] = v
		}
		if vals[0] < -90 || vals[0] > 90 || vals[2] < -90 || vals[2] > 90 {
			return nil, fmt.Errorf("ingest: bounding box %q: latitude out of [-90, 90]", part)
		}
		if vals[1] < -180 || vals[1] > 180 || vals[3] < -180 || vals[3] > 180 {
			return nil, fmt.Errorf("ingest: bounding box %q: longitude out of [-180, 180]", part)
		}
		boxes = append(boxes, [][2]float64{{vals[0], vals[1]}, {vals[2], vals[3]}})
	}
	if len(boxes) == 0 {
		return nil, nil
	}
	return boxes, nil
}

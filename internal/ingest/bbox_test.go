// Pelagos - Real-Time AIS Vessel Tracking and Map Tile Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pelagos

package ingest

import "testing"

func TestParseBoundingBoxes(t *testing.T) {
	cases := []struct {
		name    string
		raw     string
		want    [][][2]float64
		wantErr bool
	}{
		{
			name: "single box",
			raw:  "22.1,113.8,22.6,114.5",
			want: [][][2]float64{{{22.1, 113.8}, {22.6, 114.5}}},
		},
		{
			name: "multiple boxes",
			raw:  "22.1,113.8,22.6,114.5;-34.1,150.8,-33.5,151.5",
			want: [][][2]float64{
				{{22.1, 113.8}, {22.6, 114.5}},
				{{-34.1, 150.8}, {-33.5, 151.5}},
			},
		},
		{
			name: "whitespace tolerated",
			raw:  " 22.1, 113.8, 22.6, 114.5 ; ",
			want: [][][2]float64{{{22.1, 113.8}, {22.6, 114.5}}},
		},
		{name: "empty", raw: "", want: nil},
		{name: "only separators", raw: " ; ; ", want: nil},
		{name: "wrong arity", raw: "22.1,113.8,22.6", wantErr: true},
		{name: "not numeric", raw: "a,b,c,d", wantErr: true},
		{name: "latitude out of range", raw: "91,0,92,1", wantErr: true},
		{name: "longitude out of range", raw: "0,181,1,182", wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseBoundingBoxes(tc.raw)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("ParseBoundingBoxes(%q) accepted invalid input", tc.raw)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseBoundingBoxes(%q) returned error: %v", tc.raw, err)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("got %d boxes, want %d", len(got), len(tc.want))
			}
			for i := range got {
				if got[i][0] != tc.want[i][0] || got[i][1] != tc.want[i][1] {
					t.Errorf("box %d = %v, want %v", i, got[i], tc.want[i])
				}
			}
		})
	}
}

func TestWorldBoundingBox(t *testing.T) {
	world := WorldBoundingBox()
	if len(world) != 1 {
		t.Fatalf("world bounding box has %d boxes, want 1", len(world))
	}
	if world[0][0] != [2]float64{-90, -180} || world[0][1] != [2]float64{90, 180} {
		t.Errorf("world bounding box = %v", world)
	}
}

func TestTileCoverage(t *testing.T) {
	cases := []struct {
		name  string
		boxes [][][2]float64
		zoom  int
		want  int
	}{
		{name: "nil means worldwide", boxes: nil, zoom: 12, want: 4096 * 4096},
		{
			name:  "tiny box is one tile",
			boxes: [][][2]float64{{{0.01, 0.01}, {0.02, 0.02}}},
			zoom:  12,
			want:  1,
		},
		{
			name: "disjoint boxes sum",
			boxes: [][][2]float64{
				{{0.01, 0.01}, {0.02, 0.02}},
				{{30.01, 60.01}, {30.02, 60.02}},
			},
			zoom: 12,
			want: 2,
		},
		{
			name:  "antimeridian box wraps",
			boxes: [][][2]float64{{{-5, 170}, {5, -170}}},
			zoom:  4,
			want:  4,
		},
		{
			name:  "explicit world box covers every tile",
			boxes: WorldBoundingBox(),
			zoom:  12,
			want:  4096 * 4096,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := TileCoverage(tc.boxes, tc.zoom); got != tc.want {
				t.Errorf("TileCoverage(%v, %d) = %d, want %d", tc.boxes, tc.zoom, got, tc.want)
			}
		})
	}
}

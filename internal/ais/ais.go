// Pelagos - Real-Time AIS Vessel Tracking and Map Tile Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pelagos

// Package ais defines the vessel record model and the decoder for the
// upstream AIS stream's position-report envelope.
package ais

import (
	"errors"
	"time"

	"github.com/goccy/go-json"
)

// Wire sentinel for "heading not available".
const headingUnavailable = 511

// Decode failure reasons. The ingest client branches on these to count
// drops by cause; none of them are fatal to the stream.
var (
	ErrNotPositionReport = errors.New("not a position report")
	ErrMissingMMSI       = errors.New("missing or invalid MMSI")
	ErrMissingCoords     = errors.New("missing coordinates")
	ErrCoordsOutOfRange  = errors.New("coordinates out of range")
)

// Record is the authoritative state of one vessel: latest kinematics,
// report time, and the tile the vessel currently occupies. Cog, Sog and
// Heading are nullable; a nil Heading covers the wire's 511 sentinel.
//
// Records marshal to the downstream vessel JSON shape:
//
//	{"mmsi":111,"lat":22.4,"lon":114.1,"cog":45,"sog":12.3,
//	 "heading":50,"timestamp":"2024-01-01T12:00:00Z","tile":"12/3346/1786"}
type Record struct {
	MMSI      uint64    `json:"mmsi"`
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	Cog       *float64  `json:"cog"`
	Sog       *float64  `json:"sog"`
	Heading   *int      `json:"heading"`
	Timestamp time.Time `json:"timestamp"`
	Tile      string    `json:"tile"`
}

// Clone returns a copy of the record with its own nullable fields, so a
// caller holding the copy cannot alias the store's pointers.
func (r Record) Clone() Record {
	c := r
	if r.Cog != nil {
		v := *r.Cog
		c.Cog = &v
	}
	if r.Sog != nil {
		v := *r.Sog
		c.Sog = &v
	}
	if r.Heading != nil {
		v := *r.Heading
		c.Heading = &v
	}
	return c
}

// envelope mirrors the provider's message framing. Only PositionReport
// messages are decoded; MetaData supplies fallbacks for fields the report
// itself omits.
type envelope struct {
	MessageType string `json:"MessageType"`
	Message     struct {
		PositionReport *positionReport `json:"PositionReport"`
	} `json:"Message"`
	MetaData *metaData `json:"MetaData"`
}

type positionReport struct {
	UserID      *int64   `json:"UserID"`
	Latitude    *float64 `json:"Latitude"`
	Longitude   *float64 `json:"Longitude"`
	Cog         *float64 `json:"Cog"`
	Sog         *float64 `json:"Sog"`
	TrueHeading *int     `json:"TrueHeading"`
}

type metaData struct {
	MMSI      *int64   `json:"MMSI"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	TimeUTC   string   `json:"time_utc"`
}

// metaDataTimeLayout matches the provider's time_utc rendering, e.g.
// "2022-12-08 17:30:46.807861829 +0000 UTC".
const metaDataTimeLayout = "2006-01-02 15:04:05.999999999 -0700 MST"

// ParsePositionReport decodes one upstream message into a Record. The
// returned record has no tile assigned; the caller indexes it.
//
// Field resolution order is PositionReport first, MetaData second. The
// timestamp comes from MetaData's time_utc and falls back to now when
// absent or unparseable. Headings outside 0-359 (the 511 sentinel
// included) become nil.
func ParsePositionReport(data []byte, now time.Time) (Record, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Record{}, err
	}
	if env.MessageType != "PositionReport" {
		return Record{}, ErrNotPositionReport
	}

	pr := env.Message.PositionReport
	if pr == nil {
		pr = &positionReport{}
	}
	md := env.MetaData

	mmsi := pr.UserID
	if mmsi == nil && md != nil {
		mmsi = md.MMSI
	}
	if mmsi == nil || *mmsi <= 0 {
		return Record{}, ErrMissingMMSI
	}

	lat := pr.Latitude
	lon := pr.Longitude
	if lat == nil && md != nil {
		lat = md.Latitude
	}
	if lon == nil && md != nil {
		lon = md.Longitude
	}
	if lat == nil || lon == nil {
		return Record{}, ErrMissingCoords
	}
	if *lat < -90 || *lat > 90 || *lon < -180 || *lon > 180 {
		return Record{}, ErrCoordsOutOfRange
	}

	rec := Record{
		MMSI:      uint64(*mmsi),
		Lat:       *lat,
		Lon:       *lon,
		Cog:       pr.Cog,
		Sog:       pr.Sog,
		Timestamp: now.UTC(),
	}

	if h := pr.TrueHeading; h != nil && *h != headingUnavailable && *h >= 0 && *h <= 359 {
		v := *h
		rec.Heading = &v
	}

	if md != nil && md.TimeUTC != "" {
		if ts, err := time.Parse(metaDataTimeLayout, md.TimeUTC); err == nil {
			rec.Timestamp = ts.UTC()
		} else if ts, err := time.Parse(time.RFC3339, md.TimeUTC); err == nil {
			rec.Timestamp = ts.UTC()
		}
	}

	return rec, nil
}

// Pelagos - Real-Time AIS Vessel Tracking and Map Tile Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pelagos

package websocket

import "github.com/tomtom215/pelagos/internal/ais"

// Inbound message types accepted from subscribers. Unknown types are
// logged and ignored.
const (
	MessageTypeSubscribe   = "subscribe"
	MessageTypeUnsubscribe = "unsubscribe"
	MessageTypePing        = "ping"
)

// Outbound message types.
const (
	MessageTypeConnected    = "connected"
	MessageTypeSubscribed   = "subscribed"
	MessageTypeUnsubscribed = "unsubscribed"
	MessageTypeVesselUpdate = "vessel_update"
	MessageTypePong         = "pong"
)

// InboundMessage is the single client-to-server frame shape. Tiles is
// only meaningful for subscribe and unsubscribe.
type InboundMessage struct {
	Type  string   `json:"type"`
	Tiles []string `json:"tiles,omitempty"`
}

// ConnectedMessage is sent once when a session is accepted.
type ConnectedMessage struct {
	Type     string `json:"type"`
	ClientID string `json:"clientId"`
	Message  string `json:"message"`
}

// SubscriptionAck acknowledges a subscribe or unsubscribe with the tiles
// that actually took effect.
type SubscriptionAck struct {
	Type    string   `json:"type"`
	Tiles   []string `json:"tiles"`
	Message string   `json:"message"`
}

// VesselUpdate carries the full current population of one tile. An empty
// vessel list is a valid signal that the tile has been depopulated.
type VesselUpdate struct {
	Type    string       `json:"type"`
	Tile    string       `json:"tile"`
	Vessels []ais.Record `json:"vessels"`
}

// PongMessage answers an application-level ping.
type PongMessage struct {
	Type string `json:"type"`
}

// NewVesselUpdate builds an update frame for tile. A nil vessel slice
// becomes an empty list so the frame always carries a JSON array.
func NewVesselUpdate(tile string, vessels []ais.Record) VesselUpdate {
	if vessels == nil {
		vessels = []ais.Record{}
	}
	return VesselUpdate{Type: MessageTypeVesselUpdate, Tile: tile, Vessels: vessels}
}

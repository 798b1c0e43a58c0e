// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package bridge

import (
	"encoding/json"

	"github.com/holomush/authlobby/internal/host"
	"github.com/holomush/authlobby/internal/session"
)

// ProtocolVersion is the bridge protocol spoken by this server.
const ProtocolVersion = "1.0.0"

// DefaultConstraint accepts any 1.x host adapter.
const DefaultConstraint = "^1.0"

// Compression modes a host may request for render frames.
const (
	CompressionNone = "none"
	CompressionZstd = "zstd"
)

// Handshake and control message types.
const (
	TypeHello   = "hello"
	TypeWelcome = "welcome"
	TypeReply   = "reply"
	TypeVerdict = "verdict"
)

// Inbound event types, sent by the host adapter.
const (
	TypeViewerEntered      = "viewer.entered"
	TypeCredentialAccepted = "viewer.credential_accepted"
	TypeCredentialRejected = "viewer.credential_rejected"
	TypePasswordEntered    = "viewer.password_entered"
	TypePasswordMismatch   = "viewer.password_mismatch"
	TypeBlockBreak         = "world.block_break"
	TypeInteract           = "world.interact"
	TypeWeatherChange      = "world.weather_change"
	TypeTeleport           = "world.teleport"
)

// Outbound command types, sent to the host adapter. Every command is
// answered with a reply envelope.
const (
	TypeRender           = "render"
	TypeCue              = "cue"
	TypeDisconnect       = "disconnect"
	TypeSpectate         = "spectate"
	TypeIgnorePlayerData = "world.ignore_player_data"
	TypeAutoSave         = "world.autosave"
	TypeFullTime         = "world.full_time"
	TypeGameRule         = "world.gamerule"
	TypeStorm            = "world.storm"
	TypeThundering       = "world.thundering"
	TypeAnchorSpawn      = "anchor.spawn"
	TypeAnchorRemove     = "anchor.remove"
	TypeSurfacePlace     = "surface.place"
	TypeSurfaceRemove    = "surface.remove"
)

// Envelope wraps every message on the wire.
type Envelope struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	ReplyTo string          `json:"reply_to,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Hello opens a connection.
type Hello struct {
	ProtocolVersion string `json:"protocol_version"`
	Host            string `json:"host"`
	Compression     string `json:"compression,omitempty"`
}

// Welcome accepts a connection.
type Welcome struct {
	ConnectionID    string `json:"connection_id"`
	ProtocolVersion string `json:"protocol_version"`
	Compression     string `json:"compression"`
}

// Reply answers a command. Result is command specific.
type Reply struct {
	OK     bool            `json:"ok"`
	Error  string          `json:"error,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
}

// Verdict answers a cancellable world event.
type Verdict struct {
	Cancelled bool `json:"cancelled"`
}

// ViewerEvent carries the session-flow events.
type ViewerEvent struct {
	Viewer  host.ViewerID    `json:"viewer"`
	Session *session.Session `json:"session,omitempty"`
	// Changing is only read for viewer.password_mismatch.
	Changing bool `json:"changing,omitempty"`
}

// BlockBreak is world.block_break.
type BlockBreak struct {
	Viewer host.ViewerID `json:"viewer"`
	Block  host.BlockPos `json:"block"`
}

// Interact is world.interact.
type Interact struct {
	Viewer host.ViewerID `json:"viewer"`
	Action string        `json:"action"`
}

// WeatherChange is world.weather_change.
type WeatherChange struct {
	ToStorm   bool `json:"to_storm"`
	ToThunder bool `json:"to_thunder"`
}

// Teleport is world.teleport.
type Teleport struct {
	Viewer host.ViewerID      `json:"viewer"`
	Cause  host.TeleportCause `json:"cause"`
	To     host.Location      `json:"to"`
}

// RenderCommand draws a frame for one viewer. Data is a PNG, zstd
// compressed when Encoding is "png+zstd".
type RenderCommand struct {
	Viewer   host.ViewerID  `json:"viewer"`
	Surface  host.SurfaceID `json:"surface"`
	Width    int            `json:"width"`
	Height   int            `json:"height"`
	Encoding string         `json:"encoding"`
	Data     []byte         `json:"data"`
}

// CueCommand plays a sound for one viewer.
type CueCommand struct {
	Viewer host.ViewerID `json:"viewer"`
	host.Cue
}

// DisconnectCommand kicks a viewer.
type DisconnectCommand struct {
	Viewer host.ViewerID `json:"viewer"`
	Reason string        `json:"reason"`
}

// SpectateCommand pins a viewer to an anchor.
type SpectateCommand struct {
	Viewer host.ViewerID `json:"viewer"`
	Anchor host.AnchorID `json:"anchor"`
}

// FlagCommand sets a boolean world flag.
type FlagCommand struct {
	Value bool `json:"value"`
}

// FullTimeCommand sets the world clock.
type FullTimeCommand struct {
	Ticks int64 `json:"ticks"`
}

// GameRuleCommand sets a game rule.
type GameRuleCommand struct {
	Rule  string `json:"rule"`
	Value string `json:"value"`
}

// RemoveCommand removes a spawned anchor or placed surface.
type RemoveCommand struct {
	ID string `json:"id"`
}

// Created is the result of anchor.spawn and surface.place.
type Created struct {
	ID string `json:"id"`
}

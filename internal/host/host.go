// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package host defines the capabilities the lobby needs from the game server.
//
// The lobby never talks to a game engine directly. An adapter (see
// internal/bridge) implements Viewers and World over whatever host is in use,
// and feeds host events back in as the types in events.go.
//
// Implementations are only called from the lobby's event loop and need not be
// safe for concurrent use.
package host

import (
	"context"
	"image"
)

// ViewerID identifies a connected player (usually the player's UUID).
type ViewerID string

// AnchorID identifies a spawned view-lock entity.
type AnchorID string

// SurfaceID identifies a placed banner surface.
type SurfaceID string

// BlockFace is the direction a placed surface faces.
type BlockFace string

// Block faces supported for surfaces.
const (
	FaceNorth BlockFace = "NORTH"
	FaceSouth BlockFace = "SOUTH"
	FaceEast  BlockFace = "EAST"
	FaceWest  BlockFace = "WEST"
)

// Location is a position and orientation in the lobby world.
type Location struct {
	X     float64 `json:"x" koanf:"x"`
	Y     float64 `json:"y" koanf:"y"`
	Z     float64 `json:"z" koanf:"z"`
	Yaw   float32 `json:"yaw" koanf:"yaw"`
	Pitch float32 `json:"pitch" koanf:"pitch"`
}

// BlockPos is an integer block coordinate.
type BlockPos struct {
	X int `json:"x" koanf:"x"`
	Y int `json:"y" koanf:"y"`
	Z int `json:"z" koanf:"z"`
}

// SurfacePlacement describes where a banner surface is built, in blocks.
type SurfacePlacement struct {
	Origin  BlockPos  `json:"origin"`
	Facing  BlockFace `json:"facing"`
	Columns int       `json:"columns"`
	Rows    int       `json:"rows"`
}

// Cue is a sound played to a single viewer.
type Cue struct {
	Sound  string  `json:"sound" koanf:"sound"`
	Volume float32 `json:"volume" koanf:"volume"`
	Pitch  float32 `json:"pitch" koanf:"pitch"`
}

// Frame is a fully rasterized banner at the surface's native resolution.
type Frame struct {
	Surface SurfaceID
	Image   *image.RGBA
}

// Viewers is the per-viewer capability surface.
type Viewers interface {
	// Render draws frame on the surface as seen by viewer only.
	Render(ctx context.Context, viewer ViewerID, frame Frame) error
	// PlayCue plays cue at the viewer's location.
	PlayCue(ctx context.Context, viewer ViewerID, cue Cue) error
	// Disconnect kicks the viewer with a visible reason.
	Disconnect(ctx context.Context, viewer ViewerID, reason string) error
	// Spectate puts the viewer into non-interactive observation pinned to anchor.
	Spectate(ctx context.Context, viewer ViewerID, anchor AnchorID) error
}

// World is the world-mutation capability surface used at startup and teardown.
type World interface {
	SetIgnorePlayerData(ctx context.Context, ignore bool) error
	SetAutoSave(ctx context.Context, enabled bool) error
	SetFullTime(ctx context.Context, ticks int64) error
	SetGameRule(ctx context.Context, rule, value string) error
	SetStorm(ctx context.Context, storm bool) error
	SetThundering(ctx context.Context, thundering bool) error

	// SpawnAnchor spawns an invisible, gravity-free entity at loc.
	SpawnAnchor(ctx context.Context, loc Location) (AnchorID, error)
	RemoveAnchor(ctx context.Context, id AnchorID) error

	// PlaceSurface builds a map-frame wall able to show per-viewer images.
	PlaceSurface(ctx context.Context, placement SurfacePlacement) (SurfaceID, error)
	RemoveSurface(ctx context.Context, id SurfaceID) error
}

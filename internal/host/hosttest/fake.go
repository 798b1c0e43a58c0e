// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package hosttest provides an in-memory host for lobby tests.
package hosttest

import (
	"context"
	"fmt"
	"sync"

	"github.com/holomush/authlobby/internal/host"
)

// Call is one recorded capability invocation.
type Call struct {
	Method string
	Viewer host.ViewerID
	Arg    any
}

// Host records every call made through host.Viewers and host.World.
// Set the *Err fields to make the matching calls fail.
type Host struct {
	mu    sync.Mutex
	calls []Call

	// World state as last set.
	IgnorePlayerData bool
	AutoSave         bool
	FullTime         int64
	GameRules        map[string]string
	Storm            bool
	Thundering       bool
	Anchors          map[host.AnchorID]host.Location
	Surfaces         map[host.SurfaceID]host.SurfacePlacement

	// Per-viewer state.
	Frames     map[host.ViewerID]host.Frame
	Spectating map[host.ViewerID]host.AnchorID
	Kicked     map[host.ViewerID]string

	RenderErr     error
	CueErr        error
	SpawnErr      error
	PlaceErr      error
	DisconnectErr error

	nextID int
}

// New creates an empty Host with autosave on and a clear sky.
func New() *Host {
	return &Host{
		AutoSave:   true,
		GameRules:  make(map[string]string),
		Anchors:    make(map[host.AnchorID]host.Location),
		Surfaces:   make(map[host.SurfaceID]host.SurfacePlacement),
		Frames:     make(map[host.ViewerID]host.Frame),
		Spectating: make(map[host.ViewerID]host.AnchorID),
		Kicked:     make(map[host.ViewerID]string),
	}
}

var (
	_ host.Viewers = (*Host)(nil)
	_ host.World   = (*Host)(nil)
)

func (h *Host) record(method string, viewer host.ViewerID, arg any) {
	h.calls = append(h.calls, Call{Method: method, Viewer: viewer, Arg: arg})
}

// Calls returns a copy of every recorded call in order.
func (h *Host) Calls() []Call {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Call, len(h.calls))
	copy(out, h.calls)
	return out
}

// CallsFor returns the recorded calls for a single viewer.
func (h *Host) CallsFor(viewer host.ViewerID) []Call {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []Call
	for _, c := range h.calls {
		if c.Viewer == viewer {
			out = append(out, c)
		}
	}
	return out
}

// Cues returns the cues played to viewer in order.
func (h *Host) Cues(viewer host.ViewerID) []host.Cue {
	var out []host.Cue
	for _, c := range h.CallsFor(viewer) {
		if c.Method == "PlayCue" {
			out = append(out, c.Arg.(host.Cue))
		}
	}
	return out
}

// Render implements host.Viewers.
func (h *Host) Render(_ context.Context, viewer host.ViewerID, frame host.Frame) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("Render", viewer, frame)
	if h.RenderErr != nil {
		return h.RenderErr
	}
	h.Frames[viewer] = frame
	return nil
}

// PlayCue implements host.Viewers.
func (h *Host) PlayCue(_ context.Context, viewer host.ViewerID, cue host.Cue) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("PlayCue", viewer, cue)
	return h.CueErr
}

// Disconnect implements host.Viewers.
func (h *Host) Disconnect(_ context.Context, viewer host.ViewerID, reason string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("Disconnect", viewer, reason)
	if h.DisconnectErr != nil {
		return h.DisconnectErr
	}
	h.Kicked[viewer] = reason
	return nil
}

// Spectate implements host.Viewers.
func (h *Host) Spectate(_ context.Context, viewer host.ViewerID, anchor host.AnchorID) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("Spectate", viewer, anchor)
	h.Spectating[viewer] = anchor
	return nil
}

// SetIgnorePlayerData implements host.World.
func (h *Host) SetIgnorePlayerData(_ context.Context, ignore bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("SetIgnorePlayerData", "", ignore)
	h.IgnorePlayerData = ignore
	return nil
}

// SetAutoSave implements host.World.
func (h *Host) SetAutoSave(_ context.Context, enabled bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("SetAutoSave", "", enabled)
	h.AutoSave = enabled
	return nil
}

// SetFullTime implements host.World.
func (h *Host) SetFullTime(_ context.Context, ticks int64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("SetFullTime", "", ticks)
	h.FullTime = ticks
	return nil
}

// SetGameRule implements host.World.
func (h *Host) SetGameRule(_ context.Context, rule, value string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("SetGameRule", "", rule+"="+value)
	h.GameRules[rule] = value
	return nil
}

// SetStorm implements host.World.
func (h *Host) SetStorm(_ context.Context, storm bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("SetStorm", "", storm)
	h.Storm = storm
	return nil
}

// SetThundering implements host.World.
func (h *Host) SetThundering(_ context.Context, thundering bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("SetThundering", "", thundering)
	h.Thundering = thundering
	return nil
}

// SpawnAnchor implements host.World.
func (h *Host) SpawnAnchor(_ context.Context, loc host.Location) (host.AnchorID, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("SpawnAnchor", "", loc)
	if h.SpawnErr != nil {
		return "", h.SpawnErr
	}
	h.nextID++
	id := host.AnchorID(fmt.Sprintf("anchor-%d", h.nextID))
	h.Anchors[id] = loc
	return id, nil
}

// RemoveAnchor implements host.World.
func (h *Host) RemoveAnchor(_ context.Context, id host.AnchorID) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("RemoveAnchor", "", id)
	delete(h.Anchors, id)
	return nil
}

// PlaceSurface implements host.World.
func (h *Host) PlaceSurface(_ context.Context, placement host.SurfacePlacement) (host.SurfaceID, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("PlaceSurface", "", placement)
	if h.PlaceErr != nil {
		return "", h.PlaceErr
	}
	h.nextID++
	id := host.SurfaceID(fmt.Sprintf("surface-%d", h.nextID))
	h.Surfaces[id] = placement
	return id, nil
}

// RemoveSurface implements host.World.
func (h *Host) RemoveSurface(_ context.Context, id host.SurfaceID) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("RemoveSurface", "", id)
	delete(h.Surfaces, id)
	return nil
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package host

// Cancellable is embedded by host events the lobby may veto.
type Cancellable struct {
	cancelled bool
}

// Cancel vetoes the event.
func (c *Cancellable) Cancel() {
	c.cancelled = true
}

// SetCancelled sets the veto state explicitly.
func (c *Cancellable) SetCancelled(cancelled bool) {
	c.cancelled = cancelled
}

// Cancelled reports whether the event was vetoed.
func (c *Cancellable) Cancelled() bool {
	return c.cancelled
}

// BlockBreakEvent fires when a viewer tries to break a block.
type BlockBreakEvent struct {
	Cancellable
	Viewer ViewerID
	Block  BlockPos
}

// InteractEvent fires on any viewer-world interaction (click, use, place).
type InteractEvent struct {
	Cancellable
	Viewer ViewerID
	Action string
}

// WeatherChangeEvent fires when the world's storm or thunder state is about to change.
type WeatherChangeEvent struct {
	Cancellable
	// ToStorm is true when the change starts rain.
	ToStorm bool
	// ToThunder is true when the change starts thunder.
	ToThunder bool
}

// IntroducesWeather reports whether the change would make the sky worse.
func (e *WeatherChangeEvent) IntroducesWeather() bool {
	return e.ToStorm || e.ToThunder
}

// TeleportCause says why a viewer is being moved.
type TeleportCause string

// Teleport causes reported by the host.
const (
	CauseSpectate TeleportCause = "SPECTATE"
	CausePlugin   TeleportCause = "PLUGIN"
	CauseCommand  TeleportCause = "COMMAND"
	CauseUnknown  TeleportCause = "UNKNOWN"
)

// TeleportEvent fires before a viewer is teleported.
type TeleportEvent struct {
	Cancellable
	Viewer ViewerID
	Cause  TeleportCause
	To     Location
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package guard freezes the lobby world and vetoes anything that would change it.
package guard

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"

	"github.com/holomush/authlobby/internal/host"
)

// DefaultTime is the fixed world time in ticks (sunset).
const DefaultTime int64 = 12000

// GameRuleDaylightCycle is the rule that stops the sun from moving.
const GameRuleDaylightCycle = "doDaylightCycle"

// Veto kinds used as metric labels.
const (
	VetoBlockBreak = "block_break"
	VetoInteract   = "interact"
	VetoWeather    = "weather_change"
	VetoSpectate   = "spectate_teleport"
)

// Vetoes counts cancelled host events by kind.
// Use RegisterMetrics to register this with a Prometheus registry.
var Vetoes = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "authlobby_guard_vetoes_total",
		Help: "Total number of world events cancelled by the environment guard",
	},
	[]string{"kind"},
)

// RegisterMetrics registers guard metrics with the given Prometheus registry.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(Vetoes)
}

// Guard keeps the lobby world static while viewers authenticate.
//
// Guard is not safe for concurrent use; events must be delivered from the
// lobby event loop.
type Guard struct {
	world   host.World
	viewers host.Viewers
	anchor  host.AnchorID
	time    int64
	active  bool
	logger  *slog.Logger
}

// Option configures a Guard during construction.
type Option func(*Guard)

// WithTime overrides the frozen world time.
func WithTime(ticks int64) Option {
	return func(g *Guard) {
		g.time = ticks
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(g *Guard) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// New creates an inactive Guard that re-pins spectators to anchor.
func New(world host.World, viewers host.Viewers, anchor host.AnchorID, opts ...Option) (*Guard, error) {
	if world == nil {
		return nil, oops.Code("GUARD_INVALID").Errorf("world capability is required")
	}
	if viewers == nil {
		return nil, oops.Code("GUARD_INVALID").Errorf("viewers capability is required")
	}
	if anchor == "" {
		return nil, oops.Code("GUARD_INVALID").Errorf("anchor is required")
	}
	g := &Guard{
		world:   world,
		viewers: viewers,
		anchor:  anchor,
		time:    DefaultTime,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Activate freezes the world and starts vetoing events. It stops at the first
// host failure and stays inactive in that case.
func (g *Guard) Activate(ctx context.Context) error {
	steps := []struct {
		name string
		run  func() error
	}{
		{"ignore player data", func() error { return g.world.SetIgnorePlayerData(ctx, true) }},
		{"disable autosave", func() error { return g.world.SetAutoSave(ctx, false) }},
		{"fix time", func() error { return g.world.SetFullTime(ctx, g.time) }},
		{"stop daylight cycle", func() error { return g.world.SetGameRule(ctx, GameRuleDaylightCycle, strconv.FormatBool(false)) }},
		{"clear storm", func() error { return g.world.SetStorm(ctx, false) }},
		{"clear thunder", func() error { return g.world.SetThundering(ctx, false) }},
	}
	for _, step := range steps {
		if err := step.run(); err != nil {
			return oops.Code("GUARD_ACTIVATE_FAILED").
				With("step", step.name).
				Wrap(err)
		}
	}

	g.active = true
	g.logger.InfoContext(ctx, "environment guard active",
		"time", g.time,
		"anchor", string(g.anchor))
	return nil
}

// Deactivate stops vetoing events. The world is left as it is.
func (g *Guard) Deactivate() {
	g.active = false
}

// Active reports whether the guard is vetoing events.
func (g *Guard) Active() bool {
	return g.active
}

// OnBlockBreak cancels every block break.
func (g *Guard) OnBlockBreak(_ context.Context, ev *host.BlockBreakEvent) {
	if !g.active {
		return
	}
	ev.Cancel()
	Vetoes.WithLabelValues(VetoBlockBreak).Inc()
}

// OnInteract cancels every viewer interaction with the world.
func (g *Guard) OnInteract(_ context.Context, ev *host.InteractEvent) {
	if !g.active {
		return
	}
	ev.Cancel()
	Vetoes.WithLabelValues(VetoInteract).Inc()
}

// OnWeatherChange cancels any change that would bring rain or thunder.
// Clearing the sky is allowed through.
func (g *Guard) OnWeatherChange(_ context.Context, ev *host.WeatherChangeEvent) {
	if !g.active || !ev.IntroducesWeather() {
		return
	}
	ev.Cancel()
	Vetoes.WithLabelValues(VetoWeather).Inc()
}

// OnTeleport stops spectators from leaving the view lock. A SPECTATE teleport
// is cancelled and the viewer is pinned back to the anchor.
func (g *Guard) OnTeleport(ctx context.Context, ev *host.TeleportEvent) {
	if g.VetoTeleport(ev) {
		g.Repin(ctx, ev.Viewer)
	}
}

// VetoTeleport is the decision half of OnTeleport. It cancels a SPECTATE
// teleport and reports whether the viewer must be re-pinned. Hosts that block
// on the verdict should get it before Repin sends them more work.
func (g *Guard) VetoTeleport(ev *host.TeleportEvent) bool {
	if !g.active || ev.Cause != host.CauseSpectate {
		return false
	}
	ev.Cancel()
	Vetoes.WithLabelValues(VetoSpectate).Inc()
	return true
}

// Repin puts viewer back into spectator mode on the anchor. Failures are
// logged; the next spectate attempt is vetoed again anyway.
func (g *Guard) Repin(ctx context.Context, viewer host.ViewerID) {
	if err := g.viewers.Spectate(ctx, viewer, g.anchor); err != nil {
		g.logger.WarnContext(ctx, "failed to re-pin viewer to view lock",
			"viewer", string(viewer),
			"anchor", string(g.anchor),
			"error", err)
	}
}

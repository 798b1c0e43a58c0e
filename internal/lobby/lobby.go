// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package lobby builds the process-wide authentication lobby: one banner
// surface, one view-lock anchor, the presenter and the environment guard.
package lobby

import (
	"context"
	"errors"
	"log/slog"

	"github.com/samber/oops"

	"github.com/holomush/authlobby/internal/banner"
	"github.com/holomush/authlobby/internal/guard"
	"github.com/holomush/authlobby/internal/host"
	"github.com/holomush/authlobby/internal/language"
)

// DefaultAnchor looks straight at the default banner wall from its center.
var DefaultAnchor = host.Location{X: 24.0, Y: 113.0, Z: 7.0, Yaw: 0, Pitch: 180}

// Config is the fixed geometry and tuning of the lobby.
type Config struct {
	Placement      host.SurfacePlacement
	PixelsPerBlock int
	Anchor         host.Location
	WorldTime      int64
	Cues           banner.Cues
}

// DefaultConfig returns the stock lobby layout.
func DefaultConfig() Config {
	return Config{
		Placement:      banner.DefaultPlacement,
		PixelsPerBlock: banner.DefaultPixelsPerBlock,
		Anchor:         DefaultAnchor,
		WorldTime:      guard.DefaultTime,
		Cues:           banner.DefaultCues,
	}
}

// Deps are the collaborators the lobby needs.
type Deps struct {
	World   host.World
	Viewers host.Viewers
	Store   *banner.Store
	Catalog *language.Catalog
	Logger  *slog.Logger
}

// Lobby owns the surface and anchor for the lifetime of the process.
type Lobby struct {
	world     host.World
	surface   *banner.Surface
	anchor    host.AnchorID
	presenter *banner.Presenter
	guard     *guard.Guard
	logger    *slog.Logger
	closed    bool
}

// Start verifies the banner assets, builds the surface and anchor and
// activates the guard. It refuses to start when the base language is missing
// any banner, before touching the world.
func Start(ctx context.Context, deps Deps, cfg Config) (*Lobby, error) {
	if deps.World == nil || deps.Viewers == nil || deps.Store == nil || deps.Catalog == nil {
		return nil, oops.Code("LOBBY_INVALID").Errorf("world, viewers, store and catalog are required")
	}
	if cfg.PixelsPerBlock <= 0 || cfg.Placement.Columns <= 0 || cfg.Placement.Rows <= 0 {
		return nil, oops.Code("LOBBY_INVALID").
			With("columns", cfg.Placement.Columns).
			With("rows", cfg.Placement.Rows).
			With("pixels_per_block", cfg.PixelsPerBlock).
			Errorf("surface dimensions must be positive")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	resolver := banner.NewResolver(deps.Store, deps.Catalog)
	if err := resolver.Verify(); err != nil {
		return nil, oops.Wrapf(err, "verify banner assets")
	}

	l := &Lobby{world: deps.World, logger: logger}

	surfaceID, err := deps.World.PlaceSurface(ctx, cfg.Placement)
	if err != nil {
		return nil, oops.Code("LOBBY_START_FAILED").
			With("step", "place surface").
			Wrap(err)
	}
	l.surface = banner.NewSurface(surfaceID, cfg.Placement, cfg.PixelsPerBlock)

	l.anchor, err = deps.World.SpawnAnchor(ctx, cfg.Anchor)
	if err != nil {
		return nil, l.abort(ctx, oops.Code("LOBBY_START_FAILED").
			With("step", "spawn anchor").
			Wrap(err))
	}

	l.presenter, err = banner.NewPresenter(deps.Viewers, resolver, l.surface, l.anchor,
		banner.WithCues(cfg.Cues),
		banner.WithLogger(logger.With("component", "presenter")),
	)
	if err != nil {
		return nil, l.abort(ctx, err)
	}

	l.guard, err = guard.New(deps.World, deps.Viewers, l.anchor,
		guard.WithTime(cfg.WorldTime),
		guard.WithLogger(logger.With("component", "guard")),
	)
	if err != nil {
		return nil, l.abort(ctx, err)
	}
	if err := l.guard.Activate(ctx); err != nil {
		return nil, l.abort(ctx, err)
	}

	logger.InfoContext(ctx, "lobby started",
		"surface", string(surfaceID),
		"anchor", string(l.anchor),
		"width", l.surface.Bounds().Dx(),
		"height", l.surface.Bounds().Dy(),
		"base_language", deps.Catalog.Base())
	return l, nil
}

// abort tears down whatever Start already built and returns cause.
func (l *Lobby) abort(ctx context.Context, cause error) error {
	if err := l.Close(ctx); err != nil {
		l.logger.WarnContext(ctx, "failed to clean up after aborted start", "error", err)
	}
	return cause
}

// Presenter returns the banner presenter.
func (l *Lobby) Presenter() *banner.Presenter {
	return l.presenter
}

// Guard returns the environment guard.
func (l *Lobby) Guard() *guard.Guard {
	return l.guard
}

// Surface returns the banner surface.
func (l *Lobby) Surface() *banner.Surface {
	return l.surface
}

// Anchor returns the view-lock anchor.
func (l *Lobby) Anchor() host.AnchorID {
	return l.anchor
}

// Close deactivates the guard and removes the anchor and surface.
// Calling Close more than once is a no-op.
func (l *Lobby) Close(ctx context.Context) error {
	if l.closed {
		return nil
	}
	l.closed = true

	if l.guard != nil {
		l.guard.Deactivate()
	}
	var errs []error
	if l.anchor != "" {
		if err := l.world.RemoveAnchor(ctx, l.anchor); err != nil {
			errs = append(errs, oops.With("anchor", string(l.anchor)).Wrap(err))
		}
	}
	if l.surface != nil {
		if err := l.world.RemoveSurface(ctx, l.surface.ID()); err != nil {
			errs = append(errs, oops.With("surface", string(l.surface.ID())).Wrap(err))
		}
	}
	return errors.Join(errs...)
}

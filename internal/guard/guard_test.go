// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package guard_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/authlobby/internal/guard"
	"github.com/holomush/authlobby/internal/host"
	"github.com/holomush/authlobby/internal/host/hosttest"
	"github.com/holomush/authlobby/pkg/errutil"
)

const anchor host.AnchorID = "anchor-1"

func activeGuard(t *testing.T) (*guard.Guard, *hosttest.Host) {
	t.Helper()
	h := hosttest.New()
	g, err := guard.New(h, h, anchor)
	require.NoError(t, err)
	require.NoError(t, g.Activate(context.Background()))
	return g, h
}

func TestNew_Validation(t *testing.T) {
	h := hosttest.New()

	_, err := guard.New(nil, h, anchor)
	errutil.AssertErrorCode(t, err, "GUARD_INVALID")
	_, err = guard.New(h, nil, anchor)
	errutil.AssertErrorCode(t, err, "GUARD_INVALID")
	_, err = guard.New(h, h, "")
	errutil.AssertErrorCode(t, err, "GUARD_INVALID")
}

func TestGuard_ActivateFreezesWorld(t *testing.T) {
	h := hosttest.New()
	h.Storm = true
	h.Thundering = true
	g, err := guard.New(h, h, anchor)
	require.NoError(t, err)
	assert.False(t, g.Active())

	require.NoError(t, g.Activate(context.Background()))

	assert.True(t, g.Active())
	assert.True(t, h.IgnorePlayerData)
	assert.False(t, h.AutoSave)
	assert.Equal(t, guard.DefaultTime, h.FullTime)
	assert.Equal(t, "false", h.GameRules[guard.GameRuleDaylightCycle])
	assert.False(t, h.Storm)
	assert.False(t, h.Thundering)
}

func TestGuard_WithTime(t *testing.T) {
	h := hosttest.New()
	g, err := guard.New(h, h, anchor, guard.WithTime(6000))
	require.NoError(t, err)
	require.NoError(t, g.Activate(context.Background()))
	assert.Equal(t, int64(6000), h.FullTime)
}

type failingWorld struct {
	*hosttest.Host
}

func (failingWorld) SetAutoSave(context.Context, bool) error {
	return errors.New("world is read-only")
}

func TestGuard_ActivateFailureLeavesGuardInactive(t *testing.T) {
	h := hosttest.New()
	g, err := guard.New(failingWorld{h}, h, anchor)
	require.NoError(t, err)

	err = g.Activate(context.Background())
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "GUARD_ACTIVATE_FAILED")
	errutil.AssertErrorContext(t, err, "step", "disable autosave")
	assert.False(t, g.Active())
}

func TestGuard_CancelsEveryBlockBreakAndInteraction(t *testing.T) {
	g, _ := activeGuard(t)
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		brk := &host.BlockBreakEvent{Viewer: "viewer-1", Block: host.BlockPos{X: i, Y: 100, Z: 0}}
		g.OnBlockBreak(ctx, brk)
		assert.True(t, brk.Cancelled())

		interact := &host.InteractEvent{Viewer: "viewer-1", Action: "RIGHT_CLICK_BLOCK"}
		g.OnInteract(ctx, interact)
		assert.True(t, interact.Cancelled())
	}
}

func TestGuard_OnWeatherChange(t *testing.T) {
	g, _ := activeGuard(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		event     host.WeatherChangeEvent
		cancelled bool
	}{
		{"rain starts", host.WeatherChangeEvent{ToStorm: true}, true},
		{"thunder starts", host.WeatherChangeEvent{ToThunder: true}, true},
		{"storm and thunder", host.WeatherChangeEvent{ToStorm: true, ToThunder: true}, true},
		{"sky clears", host.WeatherChangeEvent{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := tt.event
			g.OnWeatherChange(ctx, &ev)
			assert.Equal(t, tt.cancelled, ev.Cancelled())
		})
	}
}

func TestGuard_OnTeleport(t *testing.T) {
	ctx := context.Background()

	t.Run("spectate teleport is cancelled and re-pinned", func(t *testing.T) {
		g, h := activeGuard(t)
		ev := &host.TeleportEvent{Viewer: "viewer-1", Cause: host.CauseSpectate}

		g.OnTeleport(ctx, ev)

		assert.True(t, ev.Cancelled())
		assert.Equal(t, anchor, h.Spectating["viewer-1"])
	})

	t.Run("other causes pass", func(t *testing.T) {
		g, h := activeGuard(t)
		for _, cause := range []host.TeleportCause{host.CausePlugin, host.CauseCommand, host.CauseUnknown} {
			ev := &host.TeleportEvent{Viewer: "viewer-1", Cause: cause}
			g.OnTeleport(ctx, ev)
			assert.False(t, ev.Cancelled(), "cause %s", cause)
		}
		assert.Empty(t, h.Spectating)
	})

	t.Run("veto decides without touching the viewer", func(t *testing.T) {
		g, h := activeGuard(t)
		ev := &host.TeleportEvent{Viewer: "viewer-1", Cause: host.CauseSpectate}

		require.True(t, g.VetoTeleport(ev))
		assert.True(t, ev.Cancelled())
		assert.Empty(t, h.Spectating, "re-pinning is a separate step")

		g.Repin(ctx, ev.Viewer)
		assert.Equal(t, anchor, h.Spectating["viewer-1"])
	})
}

func TestGuard_InactiveLetsEventsThrough(t *testing.T) {
	h := hosttest.New()
	g, err := guard.New(h, h, anchor)
	require.NoError(t, err)
	ctx := context.Background()

	brk := &host.BlockBreakEvent{}
	g.OnBlockBreak(ctx, brk)
	weather := &host.WeatherChangeEvent{ToStorm: true}
	g.OnWeatherChange(ctx, weather)
	tp := &host.TeleportEvent{Cause: host.CauseSpectate}
	g.OnTeleport(ctx, tp)

	assert.False(t, brk.Cancelled())
	assert.False(t, weather.Cancelled())
	assert.False(t, tp.Cancelled())

	require.NoError(t, g.Activate(ctx))
	g.Deactivate()
	g.OnBlockBreak(ctx, brk)
	assert.False(t, brk.Cancelled())
}

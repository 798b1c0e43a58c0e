// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/authlobby/internal/host"
)

// Sentinel errors returned by Link commands. They carry no oops code so that
// callers wrapping them keep their own.
var (
	ErrClosed  = errors.New("bridge connection closed")
	ErrTimeout = errors.New("bridge command timed out")
)

const writeWait = 5 * time.Second

// Link is one accepted host connection. It implements host.Viewers and
// host.World by sending commands and waiting for the host's reply.
type Link struct {
	id      ulid.ULID
	conn    *websocket.Conn
	encoder *frameEncoder
	timeout time.Duration
	logger  *slog.Logger

	out  chan []byte
	done chan struct{}
	once sync.Once

	mu      sync.Mutex
	pending map[string]chan Reply
}

var (
	_ host.Viewers = (*Link)(nil)
	_ host.World   = (*Link)(nil)
)

func newLink(conn *websocket.Conn, encoder *frameEncoder, timeout time.Duration, logger *slog.Logger) *Link {
	id := ulid.Make()
	return &Link{
		id:      id,
		conn:    conn,
		encoder: encoder,
		timeout: timeout,
		logger:  logger.With("connection", id.String()),
		out:     make(chan []byte, 64),
		done:    make(chan struct{}),
		pending: make(map[string]chan Reply),
	}
}

// ID returns the connection id.
func (l *Link) ID() ulid.ULID {
	return l.id
}

// Done is closed when the link shuts down.
func (l *Link) Done() <-chan struct{} {
	return l.done
}

// close shuts the link down. Pending commands fail with ErrClosed.
func (l *Link) close() {
	l.once.Do(func() {
		close(l.done)
	})
}

// shutdown sends a close frame and drops the socket, which ends the read loop.
func (l *Link) shutdown(code int, reason string) {
	_ = l.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(time.Second))
	l.close()
	_ = l.conn.Close()
}

// writeLoop owns all data writes to the socket and keeps it alive with pings.
func (l *Link) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			if err := l.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				l.logger.Debug("bridge ping failed", "error", err)
				l.close()
				return
			}
		case b := <-l.out:
			_ = l.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := l.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				l.logger.Warn("bridge write failed", "error", err)
				l.close()
				return
			}
		}
	}
}

// send queues env for the writer.
func (l *Link) send(ctx context.Context, env Envelope) error {
	b, err := json.Marshal(env)
	if err != nil {
		return oops.With("type", env.Type).Wrap(err)
	}
	select {
	case l.out <- b:
		return nil
	case <-l.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// reply answers an inbound envelope.
func (l *Link) reply(ctx context.Context, to Envelope, typ string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return oops.With("type", typ).Wrap(err)
	}
	return l.send(ctx, Envelope{ID: ulid.Make().String(), Type: typ, ReplyTo: to.ID, Payload: data})
}

// resolve hands a reply envelope to the command waiting for it.
func (l *Link) resolve(env Envelope) {
	l.mu.Lock()
	ch, ok := l.pending[env.ReplyTo]
	delete(l.pending, env.ReplyTo)
	l.mu.Unlock()
	if !ok {
		l.logger.Warn("reply for unknown command", "reply_to", env.ReplyTo)
		return
	}
	var r Reply
	if err := json.Unmarshal(env.Payload, &r); err != nil {
		r = Reply{Error: "malformed reply: " + err.Error()}
	}
	ch <- r
}

// call sends a command and waits for the reply. result, when non-nil,
// receives the reply's result.
func (l *Link) call(ctx context.Context, typ string, payload, result any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return oops.With("type", typ).Wrap(err)
	}
	id := ulid.Make().String()
	ch := make(chan Reply, 1)

	l.mu.Lock()
	l.pending[id] = ch
	l.mu.Unlock()
	defer func() {
		l.mu.Lock()
		delete(l.pending, id)
		l.mu.Unlock()
	}()

	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}
	if err := l.send(ctx, Envelope{ID: id, Type: typ, Payload: data}); err != nil {
		return oops.With("type", typ).Wrap(err)
	}

	select {
	case r := <-ch:
		if !r.OK {
			return oops.With("type", typ).Errorf("host rejected command: %s", r.Error)
		}
		if result != nil && len(r.Result) > 0 {
			if err := json.Unmarshal(r.Result, result); err != nil {
				return oops.With("type", typ).Wrapf(err, "decode result")
			}
		}
		return nil
	case <-l.done:
		return oops.With("type", typ).Wrap(ErrClosed)
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return oops.With("type", typ).With("timeout", l.timeout.String()).Wrap(ErrTimeout)
		}
		return oops.With("type", typ).Wrap(ctx.Err())
	}
}

// Render implements host.Viewers.
func (l *Link) Render(ctx context.Context, viewer host.ViewerID, frame host.Frame) error {
	if frame.Image == nil {
		return oops.With("viewer", string(viewer)).Errorf("empty frame")
	}
	encoding, data, err := l.encoder.Encode(frame.Image)
	if err != nil {
		return err
	}
	b := frame.Image.Bounds()
	return l.call(ctx, TypeRender, RenderCommand{
		Viewer:   viewer,
		Surface:  frame.Surface,
		Width:    b.Dx(),
		Height:   b.Dy(),
		Encoding: encoding,
		Data:     data,
	}, nil)
}

// PlayCue implements host.Viewers.
func (l *Link) PlayCue(ctx context.Context, viewer host.ViewerID, cue host.Cue) error {
	return l.call(ctx, TypeCue, CueCommand{Viewer: viewer, Cue: cue}, nil)
}

// Disconnect implements host.Viewers.
func (l *Link) Disconnect(ctx context.Context, viewer host.ViewerID, reason string) error {
	return l.call(ctx, TypeDisconnect, DisconnectCommand{Viewer: viewer, Reason: reason}, nil)
}

// Spectate implements host.Viewers.
func (l *Link) Spectate(ctx context.Context, viewer host.ViewerID, anchor host.AnchorID) error {
	return l.call(ctx, TypeSpectate, SpectateCommand{Viewer: viewer, Anchor: anchor}, nil)
}

// SetIgnorePlayerData implements host.World.
func (l *Link) SetIgnorePlayerData(ctx context.Context, ignore bool) error {
	return l.call(ctx, TypeIgnorePlayerData, FlagCommand{Value: ignore}, nil)
}

// SetAutoSave implements host.World.
func (l *Link) SetAutoSave(ctx context.Context, enabled bool) error {
	return l.call(ctx, TypeAutoSave, FlagCommand{Value: enabled}, nil)
}

// SetFullTime implements host.World.
func (l *Link) SetFullTime(ctx context.Context, ticks int64) error {
	return l.call(ctx, TypeFullTime, FullTimeCommand{Ticks: ticks}, nil)
}

// SetGameRule implements host.World.
func (l *Link) SetGameRule(ctx context.Context, rule, value string) error {
	return l.call(ctx, TypeGameRule, GameRuleCommand{Rule: rule, Value: value}, nil)
}

// SetStorm implements host.World.
func (l *Link) SetStorm(ctx context.Context, storm bool) error {
	return l.call(ctx, TypeStorm, FlagCommand{Value: storm}, nil)
}

// SetThundering implements host.World.
func (l *Link) SetThundering(ctx context.Context, thundering bool) error {
	return l.call(ctx, TypeThundering, FlagCommand{Value: thundering}, nil)
}

// SpawnAnchor implements host.World.
func (l *Link) SpawnAnchor(ctx context.Context, loc host.Location) (host.AnchorID, error) {
	var created Created
	if err := l.call(ctx, TypeAnchorSpawn, loc, &created); err != nil {
		return "", err
	}
	if created.ID == "" {
		return "", oops.With("type", TypeAnchorSpawn).Errorf("host returned no anchor id")
	}
	return host.AnchorID(created.ID), nil
}

// RemoveAnchor implements host.World.
func (l *Link) RemoveAnchor(ctx context.Context, id host.AnchorID) error {
	return l.call(ctx, TypeAnchorRemove, RemoveCommand{ID: string(id)}, nil)
}

// PlaceSurface implements host.World.
func (l *Link) PlaceSurface(ctx context.Context, placement host.SurfacePlacement) (host.SurfaceID, error) {
	var created Created
	if err := l.call(ctx, TypeSurfacePlace, placement, &created); err != nil {
		return "", err
	}
	if created.ID == "" {
		return "", oops.With("type", TypeSurfacePlace).Errorf("host returned no surface id")
	}
	return host.SurfaceID(created.ID), nil
}

// RemoveSurface implements host.World.
func (l *Link) RemoveSurface(ctx context.Context, id host.SurfaceID) error {
	return l.call(ctx, TypeSurfaceRemove, RemoveCommand{ID: string(id)}, nil)
}

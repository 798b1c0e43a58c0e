// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package bridge connects a remote game server to the lobby over WebSocket.
//
// A host adapter (a small plugin on the game server) dials the bridge, says
// hello, and then streams session-flow and world events as JSON envelopes.
// The bridge answers cancellable world events with a verdict and drives the
// host through request/reply commands: render, cue, disconnect, spectate and
// the world mutations the guard needs.
//
// Only one host is attached at a time. Each attachment builds a fresh lobby
// and tears it down when the connection ends.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/gorilla/websocket"
	"github.com/samber/oops"

	"github.com/holomush/authlobby/internal/banner"
	"github.com/holomush/authlobby/internal/dispatch"
	"github.com/holomush/authlobby/internal/host"
	"github.com/holomush/authlobby/internal/language"
	"github.com/holomush/authlobby/internal/lobby"
	"github.com/holomush/authlobby/pkg/errutil"
)

// Defaults for Server timing.
const (
	DefaultCallTimeout      = 5 * time.Second
	DefaultHandshakeTimeout = 5 * time.Second
	DefaultInboundQueue     = 256

	readWait   = 60 * time.Second
	pingPeriod = 25 * time.Second
)

// Deps are the collaborators every attachment shares.
type Deps struct {
	Loop    *dispatch.Loop
	Store   *banner.Store
	Catalog *language.Catalog
	Lobby   lobby.Config
}

// attachment is the lobby built for the current link. Only touched on the
// dispatch loop.
type attachment struct {
	link  *Link
	lobby *lobby.Lobby
}

// delivery is the dispatch payload for an inbound envelope.
type delivery struct {
	link *Link
	env  Envelope
}

// Server accepts host adapter connections.
type Server struct {
	deps             Deps
	constraint       *semver.Constraints
	upgrader         websocket.Upgrader
	callTimeout      time.Duration
	handshakeTimeout time.Duration
	inboundQueue     int
	logger           *slog.Logger

	busy     atomic.Bool
	attached atomic.Bool
	active   atomic.Pointer[Link]
	conns    sync.WaitGroup

	current *attachment
}

// Option configures a Server.
type Option func(*Server) error

// WithConstraint sets the semver constraint host adapters must satisfy.
func WithConstraint(constraint string) Option {
	return func(s *Server) error {
		c, err := semver.NewConstraint(constraint)
		if err != nil {
			return oops.Code("BRIDGE_INVALID").With("constraint", constraint).Wrap(err)
		}
		s.constraint = c
		return nil
	}
}

// WithCallTimeout bounds how long a command waits for the host's reply.
func WithCallTimeout(d time.Duration) Option {
	return func(s *Server) error {
		s.callTimeout = d
		return nil
	}
}

// WithHandshakeTimeout bounds how long a new connection has to say hello.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(s *Server) error {
		s.handshakeTimeout = d
		return nil
	}
}

// WithInboundQueue sets how many events may wait for the lobby per connection.
func WithInboundQueue(n int) Option {
	return func(s *Server) error {
		if n <= 0 {
			return oops.Code("BRIDGE_INVALID").With("inbound_queue", n).Errorf("inbound queue must be positive")
		}
		s.inboundQueue = n
		return nil
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) error {
		if logger != nil {
			s.logger = logger
		}
		return nil
	}
}

// NewServer creates a Server and registers its event routes on deps.Loop.
func NewServer(deps Deps, opts ...Option) (*Server, error) {
	if deps.Loop == nil || deps.Store == nil || deps.Catalog == nil {
		return nil, oops.Code("BRIDGE_INVALID").Errorf("loop, store and catalog are required")
	}
	s := &Server{
		deps:             deps,
		callTimeout:      DefaultCallTimeout,
		handshakeTimeout: DefaultHandshakeTimeout,
		inboundQueue:     DefaultInboundQueue,
		logger:           slog.Default(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			// Host adapters are servers, not browsers.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	if err := WithConstraint(DefaultConstraint)(s); err != nil {
		return nil, err
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	if err := deps.Loop.Handle("viewer.*", s.onViewer); err != nil {
		return nil, err
	}
	if err := deps.Loop.Handle("world.*", s.onWorld); err != nil {
		return nil, err
	}
	return s, nil
}

// Ready reports whether a host is attached and its lobby is running.
func (s *Server) Ready() bool {
	return s.attached.Load()
}

// Handler returns the WebSocket endpoint.
func (s *Server) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.busy.CompareAndSwap(false, true) {
			Connections.WithLabelValues(ConnRejected).Inc()
			http.Error(w, "a host is already attached", http.StatusConflict)
			return
		}
		defer s.busy.Store(false)

		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade has already written the HTTP error.
			s.logger.Warn("bridge upgrade failed", "remote", r.RemoteAddr, "error", err)
			return
		}
		defer conn.Close()

		s.conns.Add(1)
		defer s.conns.Done()
		s.serve(r.Context(), conn)
	}
}

// Shutdown removes the attached lobby's anchor and surface while the host is
// still connected, then drops the host.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.release(ctx, nil)
	s.Close()
	return err
}

// Close drops the attached host, if any. The lobby is torn down by the
// connection's handler as it exits, but the host is gone by then.
func (s *Server) Close() {
	if l := s.active.Load(); l != nil {
		l.shutdown(websocket.CloseGoingAway, "lobby shutting down")
	}
}

// Wait blocks until every connection handler has returned.
func (s *Server) Wait() {
	s.conns.Wait()
}

func (s *Server) serve(ctx context.Context, conn *websocket.Conn) {
	hello, err := s.handshake(conn)
	if err != nil {
		Connections.WithLabelValues(ConnRejected).Inc()
		errutil.LogError(s.logger, "host adapter handshake rejected", err)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, handshakeReason(err)),
			time.Now().Add(time.Second))
		return
	}

	compression := CompressionNone
	if hello.Compression == CompressionZstd {
		compression = CompressionZstd
	}
	encoder, err := newFrameEncoder(compression)
	if err != nil {
		Connections.WithLabelValues(ConnFailed).Inc()
		errutil.LogError(s.logger, "frame encoder setup failed", err)
		return
	}
	defer encoder.Close()
	link := newLink(conn, encoder, s.callTimeout, s.logger)
	defer link.close()

	if err := writeJSON(conn, link.id.String(), TypeWelcome, Welcome{
		ConnectionID:    link.id.String(),
		ProtocolVersion: ProtocolVersion,
		Compression:     compression,
	}); err != nil {
		Connections.WithLabelValues(ConnFailed).Inc()
		link.logger.Warn("failed to send welcome", "error", err)
		return
	}

	s.active.Store(link)
	defer s.active.Store(nil)

	inbound := make(chan Envelope, s.inboundQueue)
	go link.writeLoop()
	go s.readLoop(ctx, link, inbound)

	link.logger.Info("host adapter connected",
		"host", hello.Host,
		"protocol_version", hello.ProtocolVersion,
		"compression", compression)

	if err := s.attach(ctx, link); err != nil {
		Connections.WithLabelValues(ConnFailed).Inc()
		errutil.LogError(link.logger, "failed to start lobby for host", err)
		link.shutdown(websocket.CloseInternalServerErr, "lobby failed to start")
		for range inbound { //nolint:revive // drain until the reader exits
		}
		return
	}
	Connections.WithLabelValues(ConnAccepted).Inc()

	for env := range inbound {
		s.deliver(ctx, link, env)
	}

	s.detach(context.WithoutCancel(ctx), link)
	link.logger.Info("host adapter disconnected")
}

func (s *Server) handshake(conn *websocket.Conn) (Hello, error) {
	_ = conn.SetReadDeadline(time.Now().Add(s.handshakeTimeout))
	defer func() { _ = conn.SetReadDeadline(time.Time{}) }()

	_, msg, err := conn.ReadMessage()
	if err != nil {
		return Hello{}, oops.Code("BRIDGE_HANDSHAKE_FAILED").Wrapf(err, "read hello")
	}
	var env Envelope
	if err := json.Unmarshal(msg, &env); err != nil || env.Type != TypeHello {
		return Hello{}, oops.Code("BRIDGE_HANDSHAKE_FAILED").
			With("type", env.Type).
			Errorf("expected hello")
	}
	var hello Hello
	if err := json.Unmarshal(env.Payload, &hello); err != nil {
		return Hello{}, oops.Code("BRIDGE_HANDSHAKE_FAILED").Wrapf(err, "decode hello")
	}
	v, err := semver.NewVersion(hello.ProtocolVersion)
	if err != nil {
		return Hello{}, oops.Code("BRIDGE_PROTOCOL_UNSUPPORTED").
			With("protocol_version", hello.ProtocolVersion).
			Wrapf(err, "parse protocol version")
	}
	if !s.constraint.Check(v) {
		return Hello{}, oops.Code("BRIDGE_PROTOCOL_UNSUPPORTED").
			With("protocol_version", hello.ProtocolVersion).
			With("constraint", s.constraint.String()).
			Errorf("protocol version %s not supported", hello.ProtocolVersion)
	}
	switch hello.Compression {
	case "", CompressionNone, CompressionZstd:
	default:
		return Hello{}, oops.Code("BRIDGE_COMPRESSION_UNSUPPORTED").
			With("compression", hello.Compression).
			Errorf("unsupported compression %q", hello.Compression)
	}
	return hello, nil
}

func handshakeReason(err error) string {
	switch errutil.Code(err) {
	case "BRIDGE_PROTOCOL_UNSUPPORTED":
		return "unsupported protocol_version"
	case "BRIDGE_COMPRESSION_UNSUPPORTED":
		return "unsupported compression"
	}
	return "expected hello"
}

// readLoop reads until the socket fails. It never blocks on the lobby so
// replies keep flowing while a handler waits on a command.
func (s *Server) readLoop(ctx context.Context, link *Link, inbound chan<- Envelope) {
	defer close(inbound)
	defer link.close()

	conn := link.conn
	_ = conn.SetReadDeadline(time.Now().Add(readWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readWait))
	})

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				link.logger.Debug("bridge read ended", "error", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(readWait))

		var env Envelope
		if err := json.Unmarshal(msg, &env); err != nil {
			link.logger.Warn("dropping malformed envelope", "error", err)
			continue
		}
		switch {
		case env.Type == TypeReply:
			link.resolve(env)
		case isInbound(env.Type):
			select {
			case inbound <- env:
			default:
				EventsDropped.Inc()
				link.logger.Warn("inbound queue full, dropping event", "type", env.Type, "id", env.ID)
				if isCancellable(env.Type) {
					// Nothing in the lobby may change while we can't look.
					_ = link.reply(ctx, env, TypeVerdict, Verdict{Cancelled: true})
				}
			}
		default:
			link.logger.Warn("dropping unknown envelope", "type", env.Type, "id", env.ID)
		}
	}
}

func isInbound(t string) bool {
	switch t {
	case TypeViewerEntered, TypeCredentialAccepted, TypeCredentialRejected,
		TypePasswordEntered, TypePasswordMismatch:
		return true
	}
	return isCancellable(t)
}

func isCancellable(t string) bool {
	switch t {
	case TypeBlockBreak, TypeInteract, TypeWeatherChange, TypeTeleport:
		return true
	}
	return false
}

func (s *Server) attach(ctx context.Context, link *Link) error {
	return s.deps.Loop.Do(ctx, func(ctx context.Context) error {
		lby, err := lobby.Start(ctx, lobby.Deps{
			World:   link,
			Viewers: link,
			Store:   s.deps.Store,
			Catalog: s.deps.Catalog,
			Logger:  link.logger,
		}, s.deps.Lobby)
		if err != nil {
			return err
		}
		s.current = &attachment{link: link, lobby: lby}
		s.attached.Store(true)
		return nil
	})
}

func (s *Server) detach(ctx context.Context, link *Link) {
	err := s.release(ctx, link)
	if err != nil && !errors.Is(err, ErrClosed) && !errors.Is(err, dispatch.ErrStopped) {
		link.logger.Debug("lobby teardown incomplete", "error", err)
	}
}

// release closes the lobby attached to link, or whichever lobby is attached
// when link is nil.
func (s *Server) release(ctx context.Context, link *Link) error {
	return s.deps.Loop.Do(ctx, func(ctx context.Context) error {
		if s.current == nil || (link != nil && s.current.link != link) {
			return nil
		}
		att := s.current
		s.current = nil
		s.attached.Store(false)
		return att.lobby.Close(ctx)
	})
}

func (s *Server) deliver(ctx context.Context, link *Link, env Envelope) {
	err := s.deps.Loop.Submit(ctx, dispatch.NewEvent(env.Type, delivery{link: link, env: env}))
	if err != nil {
		Events.WithLabelValues(env.Type, "error").Inc()
		errutil.LogError(link.logger, "host event failed: "+env.Type, err)
		return
	}
	Events.WithLabelValues(env.Type, "ok").Inc()
}

// lookup returns the delivery and the attachment it belongs to.
func (s *Server) lookup(ev dispatch.Event) (delivery, *attachment, error) {
	d, ok := ev.Payload.(delivery)
	if !ok {
		return delivery{}, nil, oops.Code("BRIDGE_EVENT_INVALID").
			With("event_type", ev.Type).
			Errorf("unexpected payload %T", ev.Payload)
	}
	if s.current == nil || s.current.link != d.link {
		return d, nil, oops.Code("BRIDGE_NOT_ATTACHED").
			With("event_type", ev.Type).
			Errorf("event from a host that is no longer attached")
	}
	return d, s.current, nil
}

func decodePayload(env Envelope, v any) error {
	if err := json.Unmarshal(env.Payload, v); err != nil {
		return oops.Code("BRIDGE_PAYLOAD_INVALID").
			With("type", env.Type).
			With("id", env.ID).
			Wrap(err)
	}
	return nil
}

// onViewer routes session-flow events to the presenter.
func (s *Server) onViewer(ctx context.Context, ev dispatch.Event) error {
	d, att, err := s.lookup(ev)
	if err != nil {
		return err
	}
	var msg ViewerEvent
	if err := decodePayload(d.env, &msg); err != nil {
		return err
	}
	if msg.Viewer == "" {
		return oops.Code("BRIDGE_PAYLOAD_INVALID").With("type", d.env.Type).Errorf("viewer is required")
	}

	p := att.lobby.Presenter()
	switch d.env.Type {
	case TypeViewerEntered:
		return p.OnViewerEntered(ctx, msg.Viewer, msg.Session)
	case TypeCredentialAccepted:
		return p.OnCredentialAccepted(ctx, msg.Viewer)
	case TypeCredentialRejected:
		return p.OnCredentialRejected(ctx, msg.Viewer, msg.Session)
	case TypePasswordEntered:
		return p.OnPasswordEntered(ctx, msg.Viewer, msg.Session)
	case TypePasswordMismatch:
		return p.OnPasswordMismatch(ctx, msg.Viewer, msg.Session, msg.Changing)
	}
	return oops.Code("BRIDGE_EVENT_INVALID").With("type", d.env.Type).Errorf("unhandled viewer event")
}

// onWorld routes cancellable world events to the guard and answers with a
// verdict. The host must not wait forever, so a verdict is sent even when the
// payload can't be read. Follow-up commands go out only after the verdict:
// host adapters block their main thread on it.
func (s *Server) onWorld(ctx context.Context, ev dispatch.Event) error {
	d, att, err := s.lookup(ev)
	if err != nil {
		if d.link != nil {
			_ = d.link.reply(ctx, d.env, TypeVerdict, Verdict{Cancelled: true})
		}
		return err
	}

	cancelled, then, err := s.judge(ctx, att.lobby, d.env)
	if rErr := d.link.reply(ctx, d.env, TypeVerdict, Verdict{Cancelled: cancelled}); rErr != nil {
		return errors.Join(err, oops.With("type", d.env.Type).Wrapf(rErr, "send verdict"))
	}
	if then != nil {
		then(ctx)
	}
	return err
}

// judge decides a world event. then, when not nil, must run after the
// verdict has been sent.
func (s *Server) judge(ctx context.Context, lby *lobby.Lobby, env Envelope) (cancelled bool, then func(context.Context), err error) {
	g := lby.Guard()
	switch env.Type {
	case TypeBlockBreak:
		var msg BlockBreak
		if err := decodePayload(env, &msg); err != nil {
			return true, nil, err
		}
		e := host.BlockBreakEvent{Viewer: msg.Viewer, Block: msg.Block}
		g.OnBlockBreak(ctx, &e)
		return e.Cancelled(), nil, nil
	case TypeInteract:
		var msg Interact
		if err := decodePayload(env, &msg); err != nil {
			return true, nil, err
		}
		e := host.InteractEvent{Viewer: msg.Viewer, Action: msg.Action}
		g.OnInteract(ctx, &e)
		return e.Cancelled(), nil, nil
	case TypeWeatherChange:
		var msg WeatherChange
		if err := decodePayload(env, &msg); err != nil {
			return true, nil, err
		}
		e := host.WeatherChangeEvent{ToStorm: msg.ToStorm, ToThunder: msg.ToThunder}
		g.OnWeatherChange(ctx, &e)
		return e.Cancelled(), nil, nil
	case TypeTeleport:
		var msg Teleport
		if err := decodePayload(env, &msg); err != nil {
			return true, nil, err
		}
		e := host.TeleportEvent{Viewer: msg.Viewer, Cause: msg.Cause, To: msg.To}
		if g.VetoTeleport(&e) {
			then = func(ctx context.Context) { g.Repin(ctx, msg.Viewer) }
		}
		return e.Cancelled(), then, nil
	}
	return false, nil, oops.Code("BRIDGE_EVENT_INVALID").With("type", env.Type).Errorf("unhandled world event")
}

func writeJSON(conn *websocket.Conn, id, typ string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return oops.With("type", typ).Wrap(err)
	}
	b, err := json.Marshal(Envelope{ID: id, Type: typ, Payload: data})
	if err != nil {
		return oops.With("type", typ).Wrap(err)
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		return oops.With("type", typ).Wrap(err)
	}
	return nil
}

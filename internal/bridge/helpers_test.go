// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package bridge_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/holomush/authlobby/internal/banner"
	"github.com/holomush/authlobby/internal/bridge"
	"github.com/holomush/authlobby/internal/dispatch"
	"github.com/holomush/authlobby/internal/host"
	"github.com/holomush/authlobby/internal/language"
	"github.com/holomush/authlobby/internal/lobby"
)

const waitFor = 2 * time.Second

// testingT is what the helpers need from *testing.T or GinkgoT().
type testingT interface {
	require.TestingT
	Helper()
	Cleanup(func())
	Fatalf(format string, args ...any)
}

func solidPNG(w, h int, c color.RGBA) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

var (
	blue = color.RGBA{B: 255, A: 255}
	red  = color.RGBA{R: 255, A: 255}
)

// testAssets holds every base banner in blue and a red Spanish login banner.
func testAssets() fstest.MapFS {
	fsys := fstest.MapFS{}
	for _, img := range banner.Images() {
		fsys[string(banner.KeyFor("en_US", img))] = &fstest.MapFile{Data: solidPNG(16, 8, blue)}
	}
	fsys[string(banner.KeyFor("es_ES", banner.ImageLogin))] = &fstest.MapFile{Data: solidPNG(16, 8, red)}
	return fsys
}

func testLobbyConfig() lobby.Config {
	cfg := lobby.DefaultConfig()
	cfg.Placement.Columns = 4
	cfg.Placement.Rows = 2
	cfg.PixelsPerBlock = 4
	return cfg
}

// testEnv is a running bridge behind an httptest server.
type testEnv struct {
	loop   *dispatch.Loop
	server *bridge.Server
	http   *httptest.Server
	url    string
	once   sync.Once
}

func newTestEnv(t testingT, opts ...bridge.Option) *testEnv {
	t.Helper()
	loop := dispatch.New()
	loop.Start(context.Background())

	srv, err := bridge.NewServer(bridge.Deps{
		Loop:    loop,
		Store:   banner.NewStore(testAssets()),
		Catalog: language.Default(),
		Lobby:   testLobbyConfig(),
	}, opts...)
	require.NoError(t, err)

	hs := httptest.NewServer(srv.Handler())
	env := &testEnv{
		loop:   loop,
		server: srv,
		http:   hs,
		url:    "ws" + strings.TrimPrefix(hs.URL, "http"),
	}
	t.Cleanup(env.close)
	return env
}

// close tears everything down in dependency order. Safe to call twice.
func (e *testEnv) close() {
	e.once.Do(func() {
		e.server.Close()
		e.http.Close()
		e.server.Wait()
		e.loop.Stop()
		e.loop.Wait()
	})
}

// fakeHost plays the game-server side of the bridge.
type fakeHost struct {
	t    testingT
	conn *websocket.Conn

	writeMu sync.Mutex

	mu       sync.Mutex
	commands []bridge.Envelope
	received []string
	fail     map[string]string
	verdicts map[string]chan bridge.Verdict
	seq      int
	anchors  int
	surfaces int

	done chan struct{}
}

func dialHost(t testingT, url string) *fakeHost {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return &fakeHost{
		t:        t,
		conn:     conn,
		fail:     map[string]string{},
		verdicts: map[string]chan bridge.Verdict{},
		done:     make(chan struct{}),
	}
}

// hello performs the handshake and starts answering commands.
func (h *fakeHost) hello(version, compression string) bridge.Welcome {
	h.t.Helper()
	h.write("hello-1", bridge.TypeHello, bridge.Hello{
		ProtocolVersion: version,
		Host:            "test-host",
		Compression:     compression,
	})
	_ = h.conn.SetReadDeadline(time.Now().Add(waitFor))
	_, msg, err := h.conn.ReadMessage()
	require.NoError(h.t, err)
	_ = h.conn.SetReadDeadline(time.Time{})

	var env bridge.Envelope
	require.NoError(h.t, json.Unmarshal(msg, &env))
	require.Equal(h.t, bridge.TypeWelcome, env.Type)
	var w bridge.Welcome
	require.NoError(h.t, json.Unmarshal(env.Payload, &w))

	go h.serve()
	return w
}

// failCommand makes the host reject every command of type typ.
func (h *fakeHost) failCommand(typ, msg string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.fail[typ] = msg
}

func (h *fakeHost) serve() {
	defer close(h.done)
	for {
		_, msg, err := h.conn.ReadMessage()
		if err != nil {
			return
		}
		var env bridge.Envelope
		if err := json.Unmarshal(msg, &env); err != nil {
			continue
		}
		if env.Type == bridge.TypeVerdict {
			var v bridge.Verdict
			_ = json.Unmarshal(env.Payload, &v)
			h.mu.Lock()
			h.received = append(h.received, bridge.TypeVerdict)
			ch := h.verdicts[env.ReplyTo]
			h.mu.Unlock()
			if ch != nil {
				ch <- v
			}
			continue
		}
		h.answer(env)
	}
}

func (h *fakeHost) answer(env bridge.Envelope) {
	h.mu.Lock()
	h.commands = append(h.commands, env)
	h.received = append(h.received, env.Type)
	reply := bridge.Reply{OK: true}
	if msg, ok := h.fail[env.Type]; ok {
		reply = bridge.Reply{Error: msg}
	} else {
		switch env.Type {
		case bridge.TypeAnchorSpawn:
			h.anchors++
			reply.Result, _ = json.Marshal(bridge.Created{ID: fmt.Sprintf("anchor-%d", h.anchors)})
		case bridge.TypeSurfacePlace:
			h.surfaces++
			reply.Result, _ = json.Marshal(bridge.Created{ID: fmt.Sprintf("surface-%d", h.surfaces)})
		}
	}
	h.mu.Unlock()

	data, _ := json.Marshal(reply)
	b, _ := json.Marshal(bridge.Envelope{ID: "r-" + env.ID, Type: bridge.TypeReply, ReplyTo: env.ID, Payload: data})
	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	_ = h.conn.WriteMessage(websocket.TextMessage, b)
}

func (h *fakeHost) write(id, typ string, payload any) {
	h.t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(h.t, err)
	b, err := json.Marshal(bridge.Envelope{ID: id, Type: typ, Payload: data})
	require.NoError(h.t, err)
	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	require.NoError(h.t, h.conn.WriteMessage(websocket.TextMessage, b))
}

// send emits an event and returns its id.
func (h *fakeHost) send(typ string, payload any) string {
	h.t.Helper()
	h.mu.Lock()
	h.seq++
	id := fmt.Sprintf("ev-%d", h.seq)
	h.mu.Unlock()
	h.write(id, typ, payload)
	return id
}

// ask emits a cancellable event and waits for the verdict.
func (h *fakeHost) ask(typ string, payload any) bridge.Verdict {
	h.t.Helper()
	h.mu.Lock()
	h.seq++
	id := fmt.Sprintf("ev-%d", h.seq)
	ch := make(chan bridge.Verdict, 1)
	h.verdicts[id] = ch
	h.mu.Unlock()

	h.write(id, typ, payload)
	select {
	case v := <-ch:
		return v
	case <-time.After(waitFor):
		h.t.Fatalf("no verdict for %s", typ)
		return bridge.Verdict{}
	}
}

// sent returns the commands of type typ received so far.
func (h *fakeHost) sent(typ string) []bridge.Envelope {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []bridge.Envelope
	for _, env := range h.commands {
		if env.Type == typ {
			out = append(out, env)
		}
	}
	return out
}

// types returns every command type received so far, in order.
func (h *fakeHost) types() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.commands))
	for _, env := range h.commands {
		out = append(out, env.Type)
	}
	return out
}

// log returns every command and verdict type received so far, in order.
func (h *fakeHost) log() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.received...)
}

func (h *fakeHost) close() {
	_ = h.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	_ = h.conn.Close()
	<-h.done
}

// decodeRender decodes a render command's frame.
func decodeRender(t *testing.T, env bridge.Envelope) (bridge.RenderCommand, image.Image) {
	t.Helper()
	var cmd bridge.RenderCommand
	require.NoError(t, json.Unmarshal(env.Payload, &cmd))
	img, err := bridge.DecodeFrame(cmd.Encoding, cmd.Data)
	require.NoError(t, err)
	return cmd, img
}

func viewerEntered(viewer host.ViewerID, state, lang string) map[string]any {
	return map[string]any{
		"viewer": viewer,
		"session": map[string]any{
			"state": state,
			"user":  map[string]any{"name": string(viewer), "language": lang},
		},
	}
}

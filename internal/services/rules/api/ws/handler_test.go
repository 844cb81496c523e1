package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/net/websocket"

	"github.com/louisbranch/ruleforge/internal/services/rules/catalog/chess"
	"github.com/louisbranch/ruleforge/internal/services/rules/catalog/manifest"
	"github.com/louisbranch/ruleforge/internal/services/rules/domain/configuration"
	"github.com/louisbranch/ruleforge/internal/services/rules/domain/registry"
	"github.com/louisbranch/ruleforge/internal/services/rules/engine"
)

func newTestServer(t *testing.T) (*httptest.Server, *engine.Engine) {
	t.Helper()
	reg := registry.New()
	if err := manifest.RegisterAll(reg); err != nil {
		t.Fatalf("register catalogs: %v", err)
	}
	eng, err := engine.New(reg)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	srv := httptest.NewServer(NewHandler(eng))
	t.Cleanup(srv.Close)
	return srv, eng
}

func dialWS(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	conn, err := websocket.Dial(wsURL, "", srv.URL)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	t.Cleanup(func() {
		_ = conn.Close()
	})
	return conn
}

func readFrame(t *testing.T, decoder *json.Decoder, conn *websocket.Conn) Frame {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var frame Frame
	if err := decoder.Decode(&frame); err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	return frame
}

func decodeSnapshot(t *testing.T, frame Frame) configuration.Snapshot {
	t.Helper()
	if frame.Type != FrameSnapshot {
		t.Fatalf("frame type = %q, want %q (payload %s)", frame.Type, FrameSnapshot, frame.Payload)
	}
	var snap configuration.Snapshot
	if err := json.Unmarshal(frame.Payload, &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	return snap
}

func writeFrame(t *testing.T, conn *websocket.Conn, frame map[string]any) {
	t.Helper()
	if err := json.NewEncoder(conn).Encode(frame); err != nil {
		t.Fatalf("encode frame: %v", err)
	}
}

func TestUpEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/up")
	if err != nil {
		t.Fatalf("get /up: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestUnknownConfigurationIs404(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/ws/configurations/missing")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestRejectsNonGet(t *testing.T) {
	srv, eng := newTestServer(t)
	snap, err := eng.CreateConfiguration(chess.BaseGame, "x", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	resp, err := http.Post(srv.URL+"/ws/configurations/"+snap.GameID, "text/plain", nil)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", resp.StatusCode)
	}
}

func TestStreamsSnapshotsAndEdits(t *testing.T) {
	srv, eng := newTestServer(t)
	created, err := eng.CreateConfiguration(chess.BaseGame, "Editor", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	conn := dialWS(t, srv, "/ws/configurations/"+created.GameID)
	decoder := json.NewDecoder(conn)

	initial := decodeSnapshot(t, readFrame(t, decoder, conn))
	if initial.GameID != created.GameID {
		t.Fatalf("initial game id = %q", initial.GameID)
	}

	// A change made elsewhere reaches the editor.
	if _, err := eng.EnableRule(created.GameID, chess.RuleBoardSize); err != nil {
		t.Fatalf("enable: %v", err)
	}
	if snap := decodeSnapshot(t, readFrame(t, decoder, conn)); !snap.IsActive(chess.RuleBoardSize) {
		t.Fatalf("expected board size active, got %v", snap.ActiveRules)
	}

	// An edit sent by the editor is applied and echoed.
	writeFrame(t, conn, map[string]any{
		"type":    FrameSetParameter,
		"payload": map[string]any{"rule_id": chess.RuleBoardSize, "key": "width", "value": 12},
	})
	snap := decodeSnapshot(t, readFrame(t, decoder, conn))
	if width, _ := snap.Values[chess.RuleBoardSize]["width"].NumberValue(); width != 12 {
		t.Fatalf("width = %v, want 12", width)
	}
}

func TestEditErrorsAreFramed(t *testing.T) {
	srv, eng := newTestServer(t)
	created, err := eng.CreateConfiguration(chess.BaseGame, "Editor", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	conn := dialWS(t, srv, "/ws/configurations/"+created.GameID)
	decoder := json.NewDecoder(conn)
	_ = readFrame(t, decoder, conn)

	writeFrame(t, conn, map[string]any{
		"type":       FrameSetParameter,
		"request_id": "r1",
		"payload":    map[string]any{"rule_id": chess.RuleBoardSize, "key": "width", "value": 5},
	})
	frame := readFrame(t, decoder, conn)
	if frame.Type != FrameError || frame.RequestID != "r1" {
		t.Fatalf("frame = %+v", frame)
	}
	var payload errorPayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		t.Fatalf("decode error payload: %v", err)
	}
	if payload.Code != "RULE_NOT_ACTIVE" {
		t.Fatalf("code = %q, want RULE_NOT_ACTIVE", payload.Code)
	}

	writeFrame(t, conn, map[string]any{"type": "rule.explode"})
	frame = readFrame(t, decoder, conn)
	if err := json.Unmarshal(frame.Payload, &payload); err != nil || payload.Code != "FRAME_INVALID" {
		t.Fatalf("unsupported frame = %+v (%v)", payload, err)
	}
}

func TestDisposeClosesStream(t *testing.T) {
	srv, eng := newTestServer(t)
	created, err := eng.CreateConfiguration(chess.BaseGame, "Short lived", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	conn := dialWS(t, srv, "/ws/configurations/"+created.GameID)
	decoder := json.NewDecoder(conn)
	_ = readFrame(t, decoder, conn)

	deadline := time.Now().Add(2 * time.Second)
	for eng.Subscribers(created.GameID) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	eng.DisposeConfiguration(created.GameID)

	if frame := readFrame(t, decoder, conn); frame.Type != FrameDisposed {
		t.Fatalf("frame type = %q, want %q", frame.Type, FrameDisposed)
	}
}

func TestDisposeDeliversPendingSnapshotFirst(t *testing.T) {
	srv, eng := newTestServer(t)
	created, err := eng.CreateConfiguration(chess.BaseGame, "Last edit", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	conn := dialWS(t, srv, "/ws/configurations/"+created.GameID)
	decoder := json.NewDecoder(conn)
	_ = readFrame(t, decoder, conn)

	deadline := time.Now().Add(2 * time.Second)
	for eng.Subscribers(created.GameID) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if _, err := eng.EnableRule(created.GameID, chess.RuleBoardSize); err != nil {
		t.Fatalf("enable: %v", err)
	}
	eng.DisposeConfiguration(created.GameID)

	var last *configuration.Snapshot
	for {
		frame := readFrame(t, decoder, conn)
		if frame.Type == FrameDisposed {
			break
		}
		snap := decodeSnapshot(t, frame)
		last = &snap
	}
	if last == nil || !last.IsActive(chess.RuleBoardSize) {
		t.Fatal("expected the final change before the disposed frame")
	}
}

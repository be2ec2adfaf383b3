package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"quiz-live/internal/config"
	"quiz-live/internal/game"
)

type testApp struct {
	server    *Server
	ts        *httptest.Server
	questions *game.MemoryQuestions
	results   *game.MemoryResults
}

func newTestServer(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()
	listener, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Skipf("skipping test; listen unavailable: %v", err)
	}
	ts := &httptest.Server{
		Listener: listener,
		Config:   &http.Server{Handler: handler},
	}
	ts.Start()
	return ts
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.ClockAuthority = string(game.ClockHost)
	cfg.PrepareSeconds = 0
	cfg.ResultGraceSeconds = 3600
	cfg.HostReconnectSeconds = 3600
	return cfg
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	app := &testApp{
		questions: game.NewMemoryQuestions(),
		results:   game.NewMemoryResults(),
	}
	deps := game.Deps{
		Store:     game.NewMemoryStore(),
		Questions: app.questions,
		Results:   app.results,
		Stats:     app.results,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	app.server = New(deps, testConfig())
	app.ts = newTestServer(t, app.server.Handler())
	t.Cleanup(func() {
		app.server.Close()
		app.ts.Close()
	})
	return app
}

func singleQuestion() []game.Question {
	return []game.Question{{
		Text:     "Capital of France?",
		Duration: 20,
		Answers: []game.Answer{
			{ID: "a", Text: "Paris", Correct: true},
			{ID: "b", Text: "Lyon"},
		},
	}}
}

func doRequest(t *testing.T, method, url, body string) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		t.Fatalf("decode body: %v", err)
	}
}

func (a *testApp) createRoom(t *testing.T) string {
	t.Helper()
	resp := doRequest(t, http.MethodPost, a.ts.URL+"/api/rooms", "")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var body struct {
		Code string `json:"code"`
	}
	decodeBody(t, resp, &body)
	return body.Code
}

type wsEvent struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func (a *testApp) dial(t *testing.T, code string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(a.ts.URL, "http") + "/ws/rooms/" + code
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func sendWS(t *testing.T, conn *websocket.Conn, msgType string, payload any) {
	t.Helper()
	msg := map[string]any{"type": msgType}
	if payload != nil {
		msg["payload"] = payload
	}
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write %s: %v", msgType, err)
	}
}

// readUntil discards events until one of the wanted type arrives.
func readUntil(t *testing.T, conn *websocket.Conn, want string) wsEvent {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		_ = conn.SetReadDeadline(deadline)
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for %s: %v", want, err)
		}
		var event wsEvent
		if err := json.Unmarshal(data, &event); err != nil {
			t.Fatalf("decode event: %v", err)
		}
		if event.Type == want {
			return event
		}
	}
}

func joinWS(t *testing.T, conn *websocket.Conn, payload map[string]any) string {
	t.Helper()
	sendWS(t, conn, msgJoin, payload)
	event := readUntil(t, conn, game.EventJoined)
	var joined struct {
		HostToken string `json:"host_token"`
	}
	if err := json.Unmarshal(event.Payload, &joined); err != nil {
		t.Fatalf("decode joined: %v", err)
	}
	return joined.HostToken
}

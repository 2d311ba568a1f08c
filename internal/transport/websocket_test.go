// SPDX-License-Identifier: MIT
package transport

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

type greeting struct {
	Bins int `json:"bins" msgpack:"bins"`
}

func startHub(t *testing.T, ctl Controller) (*WebSocketTransport, string) {
	t.Helper()
	hub := NewWebSocketTransport(HubConfig{SendBuffer: 4}, ctl, func() any { return greeting{Bins: 128} })
	srv := httptest.NewServer(hub.Handler())
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn, enc Encoding) map[string]any {
	t.Helper()
	mt, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if mt != messageType(enc) {
		t.Errorf("message type %d, want %d", mt, messageType(enc))
	}
	var env map[string]any
	if err := enc.Unmarshal(data, &env); err != nil {
		t.Fatalf("decode %s: %v", enc, err)
	}
	return env
}

func waitClients(t *testing.T, hub *WebSocketTransport, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients() != n {
		if time.Now().After(deadline) {
			t.Fatalf("clients = %d, want %d", hub.Clients(), n)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestWebSocketGreetingAndBroadcast(t *testing.T) {
	hub, url := startHub(t, nil)

	jsonConn := dial(t, url)
	packConn := dial(t, url+"?encoding=msgpack")
	waitClients(t, hub, 2)

	for _, tc := range []struct {
		conn *websocket.Conn
		enc  Encoding
	}{{jsonConn, JSON}, {packConn, Msgpack}} {
		env := readEnvelope(t, tc.conn, tc.enc)
		if env["type"] != "layout" {
			t.Errorf("%s greeting type = %v", tc.enc, env["type"])
		}
	}

	if err := hub.Send(Envelope{Type: "frame", Data: greeting{Bins: 7}}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	for _, tc := range []struct {
		conn *websocket.Conn
		enc  Encoding
	}{{jsonConn, JSON}, {packConn, Msgpack}} {
		env := readEnvelope(t, tc.conn, tc.enc)
		if env["type"] != "frame" {
			t.Errorf("%s type = %v", tc.enc, env["type"])
		}
		data, ok := env["data"].(map[string]any)
		if !ok {
			t.Fatalf("%s data = %T", tc.enc, env["data"])
		}
		if bins, ok := data["bins"]; !ok || bins == nil {
			t.Errorf("%s data = %v", tc.enc, data)
		}
	}
}

func TestWebSocketBadEncoding(t *testing.T) {
	_, url := startHub(t, nil)
	_, resp, err := websocket.DefaultDialer.Dial(url+"?encoding=xml", nil)
	if err == nil {
		t.Fatal("expected handshake failure")
	}
	if resp == nil || resp.StatusCode != 400 {
		t.Errorf("response = %v", resp)
	}
}

func TestWebSocketControls(t *testing.T) {
	ctl := &fakeController{}
	hub, url := startHub(t, ctl)

	conn := dial(t, url)
	waitClients(t, hub, 1)

	for _, c := range []Control{
		{Type: ControlActivate, Active: true},
		{Type: ControlPointer, X: 0.5, Y: -0.5},
		{Type: "bogus"},
		{Type: ControlPointerLeave},
	} {
		if err := conn.WriteJSON(c); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	conn.WriteMessage(websocket.TextMessage, []byte("{not json"))

	deadline := time.Now().Add(2 * time.Second)
	for {
		active, pointer, leaves := ctl.snapshot()
		if len(active) == 1 && len(pointer) == 1 && leaves == 1 {
			if !active[0] || pointer[0] != [2]float64{0.5, -0.5} {
				t.Errorf("controller saw %v %v", active, pointer)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("controller saw %v %v %d", active, pointer, leaves)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestWebSocketSlowClientDrops(t *testing.T) {
	hub, url := startHub(t, nil)
	dial(t, url) // Never reads.
	waitClients(t, hub, 1)

	for range 500 {
		if err := hub.Send(Envelope{Type: "frame", Data: strings.Repeat("x", 4096)}); err != nil {
			t.Fatalf("Send: %v", err)
		}
	}
	hub.clientsMu.Lock()
	var dropped uint64
	for _, c := range hub.clients {
		dropped = c.dropped.Load()
	}
	hub.clientsMu.Unlock()
	if dropped == 0 {
		t.Error("no messages dropped for a client that never reads")
	}
}

func TestWebSocketClose(t *testing.T) {
	hub, url := startHub(t, nil)
	conn := dial(t, url)
	waitClients(t, hub, 1)
	readEnvelope(t, conn, JSON)

	if err := hub.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := hub.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("read after Close succeeded")
	}
	if err := hub.Send("late"); err == nil {
		t.Error("Send after Close succeeded")
	}
	if hub.Clients() != 0 {
		t.Errorf("clients after Close = %d", hub.Clients())
	}
}

func TestWebSocketStartListens(t *testing.T) {
	hub := NewWebSocketTransport(HubConfig{Addr: "127.0.0.1:0"}, nil, nil)
	if err := hub.Start(); err != nil {
		t.Skipf("cannot listen: %v", err)
	}
	defer hub.Close()

	conn := dial(t, "ws://"+hub.Addr()+"/ws")
	waitClients(t, hub, 1)
	hub.Send(Envelope{Type: "state", Data: "idle"})
	if env := readEnvelope(t, conn, JSON); env["type"] != "state" {
		t.Errorf("type = %v", env["type"])
	}
}

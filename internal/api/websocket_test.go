package api

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Rushikesh-Palande/rs-485/internal/telemetry"
)

func dialRealtime(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/realtime"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dialing %s: %v", url, err)
	}
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestRealtime_StreamsEvents(t *testing.T) {
	srv, _ := testServer(t)
	ts := httptest.NewServer(srv.buildRouter())
	defer ts.Close()

	conn := dialRealtime(t, ts)

	// The subscription races the publish; wait until the hub sees us.
	deadline := time.Now().Add(2 * time.Second)
	for srv.broadcaster.SubscriberCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if srv.broadcaster.SubscriberCount() == 0 {
		t.Fatal("realtime handler never subscribed")
	}

	srv.broadcaster.Publish(telemetry.Event{
		TS:        "2026-03-01T10:00:00Z",
		DeviceUID: "node-1",
		Metrics:   map[string]any{"voltage": 48.2},
	})

	//nolint:errcheck // deadline best-effort; read error fails the test below
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	msgType, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("reading frame: %v", err)
	}
	if msgType != websocket.TextMessage {
		t.Errorf("frame type = %d, want text", msgType)
	}

	var ev telemetry.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("decoding frame: %v", err)
	}
	if ev.DeviceUID != "node-1" {
		t.Errorf("frame DeviceUID = %q, want node-1", ev.DeviceUID)
	}
}

func TestRealtime_ClientCloseUnsubscribes(t *testing.T) {
	srv, _ := testServer(t)
	ts := httptest.NewServer(srv.buildRouter())
	defer ts.Close()

	conn := dialRealtime(t, ts)

	deadline := time.Now().Add(2 * time.Second)
	for srv.broadcaster.SubscriberCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	conn.Close()

	for srv.broadcaster.SubscriberCount() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := srv.broadcaster.SubscriberCount(); got != 0 {
		t.Errorf("SubscriberCount() after close = %d, want 0", got)
	}
}

func TestRealtime_InboundFramesIgnored(t *testing.T) {
	srv, _ := testServer(t)
	ts := httptest.NewServer(srv.buildRouter())
	defer ts.Close()

	conn := dialRealtime(t, ts)

	deadline := time.Now().Add(2 * time.Second)
	for srv.broadcaster.SubscriberCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	// Garbage inbound data must not kill the stream.
	if err := conn.WriteMessage(websocket.TextMessage, []byte("not a command")); err != nil {
		t.Fatalf("writing inbound frame: %v", err)
	}

	srv.broadcaster.Publish(telemetry.Event{DeviceUID: "node-2"})

	//nolint:errcheck // deadline best-effort; read error fails the test below
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("stream died after inbound frame: %v", err)
	}
	if !strings.Contains(string(data), "node-2") {
		t.Errorf("frame %q does not carry the published event", data)
	}
}

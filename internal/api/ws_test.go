package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rover-control/rover/internal/telemetry"
)

func dialTestWS(t *testing.T, server *Server) (*websocket.Conn, func()) {
	t.Helper()
	mux := http.NewServeMux()
	server.RegisterRoutes(mux)
	ts := httptest.NewServer(mux)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		ts.Close()
		t.Fatalf("dial: %v", err)
	}

	return conn, func() {
		conn.Close()
		ts.Close()
	}
}

// readAck reads text messages until an ack arrives, skipping status events
// and binary frames.
func readAck(t *testing.T, conn *websocket.Conn) wsAck {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		_ = conn.SetReadDeadline(deadline)
		msgType, payload, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if msgType != websocket.TextMessage {
			continue
		}
		var ack wsAck
		if err := json.Unmarshal(payload, &ack); err != nil {
			t.Fatalf("unmarshal ack: %v\npayload: %s", err, payload)
		}
		if ack.Type == "ack" {
			return ack
		}
	}
}

func TestWSDriveCommandAcked(t *testing.T) {
	server, orch, _ := newTestServer(t)
	conn, cleanup := dialTestWS(t, server)
	defer cleanup()

	err := conn.WriteMessage(websocket.TextMessage,
		[]byte(`{"id":"1","type":"drive","left":0.5,"right":-0.5}`))
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	ack := readAck(t, conn)
	if !ack.OK {
		t.Fatalf("expected ok ack, got %+v", ack)
	}
	if ack.ID != "1" {
		t.Errorf("expected id 1, got %q", ack.ID)
	}

	orch.mu.Lock()
	drives := len(orch.drives)
	orch.mu.Unlock()
	if drives != 1 {
		t.Errorf("expected 1 drive call, got %d", drives)
	}
}

func TestWSMalformedJSONKeepsConnection(t *testing.T) {
	server, _, _ := newTestServer(t)
	conn, cleanup := dialTestWS(t, server)
	defer cleanup()

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{not json`)); err != nil {
		t.Fatalf("write: %v", err)
	}

	ack := readAck(t, conn)
	if ack.OK || ack.Error == nil || ack.Error.Code != "BAD_REQUEST" {
		t.Fatalf("expected BAD_REQUEST error ack, got %+v", ack)
	}

	// The connection survives: a well-formed command still works.
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"id":"2","type":"get_status"}`)); err != nil {
		t.Fatalf("write after malformed: %v", err)
	}
	ack = readAck(t, conn)
	if !ack.OK {
		t.Fatalf("expected ok ack after malformed command, got %+v", ack)
	}
}

func TestWSUnknownCommandRejected(t *testing.T) {
	server, _, _ := newTestServer(t)
	conn, cleanup := dialTestWS(t, server)
	defer cleanup()

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"id":"9","type":"fly"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}

	ack := readAck(t, conn)
	if ack.OK || ack.Error == nil || ack.Error.Code != "BAD_REQUEST" {
		t.Fatalf("expected BAD_REQUEST, got %+v", ack)
	}
}

func TestWSDriveRequiresBothSides(t *testing.T) {
	server, _, _ := newTestServer(t)
	conn, cleanup := dialTestWS(t, server)
	defer cleanup()

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"id":"3","type":"drive","left":0.5}`)); err != nil {
		t.Fatalf("write: %v", err)
	}

	ack := readAck(t, conn)
	if ack.OK || ack.Error == nil || ack.Error.Code != "BAD_REQUEST" {
		t.Fatalf("expected BAD_REQUEST, got %+v", ack)
	}
}

func TestWSDisconnectAfterDriveStopsOnce(t *testing.T) {
	server, orch, hub := newTestServer(t)
	conn, cleanup := dialTestWS(t, server)
	defer cleanup()

	if err := conn.WriteMessage(websocket.TextMessage,
		[]byte(`{"id":"1","type":"drive","left":1,"right":1}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	readAck(t, conn)

	conn.Close()

	// The handler detaches the viewer and issues exactly one braked stop.
	waitFor(t, func() bool { return orch.stopCount() == 1 })
	waitFor(t, func() bool { return hub.ViewerCount() == 0 })

	time.Sleep(50 * time.Millisecond)
	if got := orch.stopCount(); got != 1 {
		t.Errorf("expected exactly 1 stop after disconnect, got %d", got)
	}
}

func TestWSDisconnectWithoutDriveDoesNotStop(t *testing.T) {
	server, orch, hub := newTestServer(t)
	conn, cleanup := dialTestWS(t, server)
	defer cleanup()

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"id":"1","type":"get_status"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	readAck(t, conn)

	conn.Close()
	waitFor(t, func() bool { return hub.ViewerCount() == 0 })

	time.Sleep(50 * time.Millisecond)
	if got := orch.stopCount(); got != 0 {
		t.Errorf("viewer-only connection must not stop the rover, got %d stops", got)
	}
}

func TestWSBinaryFrameDelivery(t *testing.T) {
	server, _, hub := newTestServer(t)
	conn, cleanup := dialTestWS(t, server)
	defer cleanup()

	waitFor(t, func() bool { return hub.ViewerCount() == 1 })

	hub.BroadcastFrame([]byte{0xFF, 0xD8, 0xFF})

	deadline := time.Now().Add(2 * time.Second)
	for {
		_ = conn.SetReadDeadline(deadline)
		msgType, payload, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if msgType != websocket.BinaryMessage {
			continue
		}
		if len(payload) != 3 || payload[0] != 0xFF {
			t.Fatalf("unexpected frame payload: %v", payload)
		}
		return
	}
}

func TestWSStatusEventDelivery(t *testing.T) {
	server, _, hub := newTestServer(t)
	conn, cleanup := dialTestWS(t, server)
	defer cleanup()

	waitFor(t, func() bool { return hub.ViewerCount() == 1 })

	hub.Publish(telemetry.Event{Type: "status", Data: map[string]interface{}{"speed_limit": 0.3}})

	deadline := time.Now().Add(2 * time.Second)
	for {
		_ = conn.SetReadDeadline(deadline)
		msgType, payload, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if msgType != websocket.TextMessage {
			continue
		}
		var ev struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(payload, &ev); err != nil {
			t.Fatalf("unmarshal event: %v", err)
		}
		if ev.Type == "status" {
			return
		}
	}
}

// waitFor polls cond until it holds or the test times out.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

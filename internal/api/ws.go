package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rover-control/rover/internal/auth"
	"github.com/rover-control/rover/internal/drive"
	"github.com/rover-control/rover/internal/telemetry"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 90 * time.Second
	wsPingPeriod = 30 * time.Second
	wsAckBuffer  = 16
)

// The daemon serves operators on a closed network; the browser same-origin
// check does not apply to the native clients that connect here.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsCommand is one inbound control message. Unused fields stay nil so the
// handler can distinguish absent from zero.
type wsCommand struct {
	ID     string   `json:"id,omitempty"`
	Type   string   `json:"type"`
	Left   *float64 `json:"left,omitempty"`
	Right  *float64 `json:"right,omitempty"`
	Value  *float64 `json:"value,omitempty"`
	Side   string   `json:"side,omitempty"`
	Angle  *float64 `json:"angle,omitempty"`
	Delta  *float64 `json:"delta,omitempty"`
	TrimUS *int     `json:"trim_us,omitempty"`
}

// wsAck is the reply to one inbound command.
type wsAck struct {
	Type  string      `json:"type"`
	ID    string      `json:"id,omitempty"`
	OK    bool        `json:"ok"`
	Data  interface{} `json:"data,omitempty"`
	Error *wsError    `json:"error,omitempty"`
}

type wsError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// handleWebSocket handles GET /ws: the combined command and telemetry
// channel. Inbound text messages are JSON commands, each answered with an
// ack. Outbound traffic is status events (JSON text) and camera frames
// (binary, one JPEG per message).
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED",
			"Only GET method is allowed", nil)
		return
	}

	if s.telemetryHub == nil || s.orchestrator == nil {
		WriteError(w, http.StatusServiceUnavailable, "UNAVAILABLE",
			"Service not available", nil)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		log.Printf("api: websocket upgrade failed: %v", err)
		return
	}

	viewer := s.telemetryHub.Attach()
	sess := &wsSession{
		server: s,
		conn:   conn,
		viewer: viewer,
		claims: auth.GetClaimsFromRequest(r),
		acks:   make(chan wsAck, wsAckBuffer),
		done:   make(chan struct{}),
	}

	go sess.writeLoop()
	sess.readLoop(r.Context())

	close(sess.done)
	s.telemetryHub.Detach(viewer.ID())
	_ = conn.Close()

	// Disconnect fail-safe: a connection that ever drove the rover leaves
	// it stopped. Issued once, after the viewer is detached.
	if sess.drove {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := s.orchestrator.Stop(ctx); err != nil {
			log.Printf("api: stop on disconnect failed: %v", err)
		}
	}
}

// wsSession is the per-connection state. The reader goroutine owns drove;
// the writer goroutine owns all writes to conn.
type wsSession struct {
	server *Server
	conn   *websocket.Conn
	viewer *telemetry.Viewer
	claims *auth.Claims
	acks   chan wsAck
	done   chan struct{}
	drove  bool
}

// readLoop consumes inbound messages until the connection drops. Malformed
// JSON earns an error ack and the connection stays up.
func (s *wsSession) readLoop(ctx context.Context) {
	s.conn.SetReadLimit(4096)
	_ = s.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		msgType, payload, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		var cmd wsCommand
		if err := json.Unmarshal(payload, &cmd); err != nil {
			s.sendAck(wsAck{Type: "ack", OK: false, Error: &wsError{
				Code:    "BAD_REQUEST",
				Message: "Malformed JSON command",
			}})
			continue
		}

		s.sendAck(s.dispatch(ctx, cmd))
	}
}

// dispatch executes one command and builds its ack.
func (s *wsSession) dispatch(ctx context.Context, cmd wsCommand) wsAck {
	ack := wsAck{Type: "ack", ID: cmd.ID}

	if !s.allowed(cmd.Type) {
		ack.Error = &wsError{Code: "FORBIDDEN", Message: "Insufficient permissions"}
		return ack
	}

	orch := s.server.orchestrator

	switch cmd.Type {
	case "drive":
		if cmd.Left == nil || cmd.Right == nil {
			ack.Error = &wsError{Code: "BAD_REQUEST", Message: "drive requires left and right"}
			return ack
		}
		if err := orch.Drive(ctx, *cmd.Left, *cmd.Right); err != nil {
			ack.Error = toWSError(err)
			return ack
		}
		s.drove = true
		ack.OK = true

	case "stop":
		status, err := orch.Stop(ctx)
		if err != nil {
			ack.Error = toWSError(err)
			return ack
		}
		ack.OK = true
		ack.Data = status

	case "set_speed_limit":
		if cmd.Value == nil {
			ack.Error = &wsError{Code: "BAD_REQUEST", Message: "set_speed_limit requires value"}
			return ack
		}
		if err := orch.SetSpeedLimit(ctx, *cmd.Value); err != nil {
			ack.Error = toWSError(err)
			return ack
		}
		ack.OK = true

	case "set_trim":
		if cmd.Value == nil || (cmd.Side != "L" && cmd.Side != "R") {
			ack.Error = &wsError{Code: "BAD_REQUEST", Message: "set_trim requires side L|R and value"}
			return ack
		}
		if err := orch.SetTrim(ctx, drive.Side(cmd.Side), *cmd.Value); err != nil {
			ack.Error = toWSError(err)
			return ack
		}
		ack.OK = true

	case "servo_set":
		status, err := orch.ServoSet(ctx, drive.ServoRequest{
			AngleDeg: cmd.Angle,
			DeltaDeg: cmd.Delta,
			TrimUS:   cmd.TrimUS,
		})
		if err != nil {
			ack.Error = toWSError(err)
			return ack
		}
		ack.OK = true
		ack.Data = status

	case "get_status":
		ack.OK = true
		ack.Data = orch.Status(ctx)

	default:
		ack.Error = &wsError{Code: "BAD_REQUEST", Message: "Unknown command type"}
	}

	return ack
}

// allowed enforces per-message scopes when auth is enabled. Reads need the
// read scope the connection was already admitted with; actuation needs
// control.
func (s *wsSession) allowed(cmdType string) bool {
	if s.server.authMiddleware == nil {
		return true
	}
	if cmdType == "get_status" {
		return s.claims.HasScope(auth.ScopeRead)
	}
	return s.claims.HasScope(auth.ScopeControl)
}

// sendAck queues an ack for the writer. A full queue means the client is
// not reading; the ack is dropped, matching the lossy telemetry contract.
func (s *wsSession) sendAck(ack wsAck) {
	select {
	case s.acks <- ack:
	default:
	}
}

// writeLoop is the sole writer on the connection. Frames are delivered
// latest-wins from the viewer mailbox: whatever arrived while the previous
// write was in flight replaces anything older.
func (s *wsSession) writeLoop() {
	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	frames := s.viewer.Frames()

	for {
		select {
		case <-s.done:
			return
		case <-s.viewer.Done():
			// Hub shutdown. Closing the connection unblocks the reader.
			_ = s.writeControl(websocket.CloseMessage)
			_ = s.conn.Close()
			return

		case ack := <-s.acks:
			if !s.writeJSON(ack) {
				return
			}

		case ev, ok := <-s.viewer.Events():
			if !ok {
				return
			}
			if !s.writeJSON(ev) {
				return
			}

		case <-frames.Ready():
			frame, ok := frames.Take()
			if !ok {
				continue
			}
			_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := s.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				return
			}

		case <-ping.C:
			if !s.writeControl(websocket.PingMessage) {
				return
			}
		}
	}
}

func (s *wsSession) writeJSON(v interface{}) bool {
	_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return s.conn.WriteJSON(v) == nil
}

func (s *wsSession) writeControl(messageType int) bool {
	return s.conn.WriteControl(messageType, nil, time.Now().Add(wsWriteWait)) == nil
}

// toWSError maps a command error onto the ack error shape, reusing the REST
// error taxonomy.
func toWSError(err error) *wsError {
	_, body := ToAPIError(err)

	var resp Response
	if jsonErr := json.Unmarshal(body, &resp); jsonErr != nil {
		return &wsError{Code: "INTERNAL", Message: err.Error()}
	}
	return &wsError{Code: resp.Code, Message: resp.Message}
}

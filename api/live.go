/*
live.go - Live recalculation over a WebSocket

PURPOSE:
  The client sends a CalculateRequest on every form change and receives a
  fresh comparison in reply, without a request per keystroke.

PROTOCOL:
  server -> {"type":"welcome","session":"<uuid>"}
  client -> CalculateRequest
  server -> {"type":"result","seq":N,"comparison":{...},"permalink":"..."}
         or {"type":"error","seq":N,"error":{...}}

  Messages on one connection are answered in order; seq counts inbound
  messages. A bad message gets an error reply and the connection stays open.

CONNECTION:
  One read pump and one write pump per connection. Pings keep idle
  connections alive; the Origin header must match ALLOWED_ORIGINS.

SEE ALSO:
  - validation.go: Same checks as the HTTP endpoints
  - server.go: Route registration
*/
package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	liveWriteWait      = 10 * time.Second
	livePongWait       = 60 * time.Second
	livePingPeriod     = (livePongWait * 9) / 10
	liveMaxMessageSize = 16 << 10
	liveSendBuffer     = 16
)

// LiveMessage is sent to the client.
type LiveMessage struct {
	Type       string         `json:"type"` // "welcome", "result" or "error"
	Session    string         `json:"session"`
	Seq        int            `json:"seq,omitempty"`
	Comparison *ComparisonDTO `json:"comparison,omitempty"`
	Permalink  string         `json:"permalink,omitempty"`
	Error      *ErrorResponse `json:"error,omitempty"`
}

// Live upgrades the connection and serves recalculations until the client
// goes away.
// GET /ws/calculate
func (h *Handler) Live(allowedOrigins []string) http.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     originChecker(allowedOrigins),
	}

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.logger.Warn("websocket upgrade failed", "error", err)
			return
		}
		s := &liveSession{
			h:    h,
			id:   uuid.NewString(),
			conn: conn,
			send: make(chan LiveMessage, liveSendBuffer),
			done: make(chan struct{}),
		}
		h.logger.Debug("websocket session opened", "session", s.id)
		go s.writePump()
		s.readPump()
		h.logger.Debug("websocket session closed", "session", s.id)
	}
}

// originChecker admits requests without an Origin header (non-browser
// clients), the configured origins, or anything when "*" is configured.
func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(a, origin) {
				return true
			}
		}
		return false
	}
}

type liveSession struct {
	h    *Handler
	id   string
	conn *websocket.Conn
	send chan LiveMessage
	done chan struct{}
}

func (s *liveSession) readPump() {
	defer func() {
		close(s.done)
		s.conn.Close()
	}()

	s.conn.SetReadLimit(liveMaxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(livePongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(livePongWait))
	})

	if !s.enqueue(LiveMessage{Type: "welcome", Session: s.id}) {
		return
	}

	for seq := 1; ; seq++ {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.h.logger.Warn("websocket read failed", "session", s.id, "error", err)
			}
			return
		}
		if !s.enqueue(s.h.liveReply(s.id, seq, data)) {
			return
		}
	}
}

// enqueue hands msg to the writer. A client that stops reading is dropped.
func (s *liveSession) enqueue(msg LiveMessage) bool {
	select {
	case s.send <- msg:
		return true
	default:
		s.h.logger.Warn("websocket client too slow, closing", "session", s.id)
		return false
	}
}

func (s *liveSession) writePump() {
	ticker := time.NewTicker(livePingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case msg := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
			if err := s.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.done:
			s.conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
			s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// liveReply computes the answer to one inbound message.
func (h *Handler) liveReply(session string, seq int, data []byte) LiveMessage {
	msg := LiveMessage{Type: "error", Session: session, Seq: seq}

	var req CalculateRequest
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		msg.Error = &ErrorResponse{Error: "Invalid JSON", Code: "invalid_json", Details: err.Error()}
		return msg
	}

	calc, err := h.validateCalculate(req)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			msg.Error = &ErrorResponse{
				Error:   "validation failed",
				Code:    "validation_error",
				Details: ValidationDetails{Fields: verr.Issues},
			}
			return msg
		}
		msg.Error = &ErrorResponse{Error: "Invalid input", Details: err.Error()}
		return msg
	}

	cmp := toComparisonDTO(h.compare(calc))
	return LiveMessage{
		Type:       "result",
		Session:    session,
		Seq:        seq,
		Comparison: &cmp,
		Permalink:  h.permalink(req),
	}
}

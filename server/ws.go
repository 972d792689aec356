package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Desktop clients connect from file:// origins; token auth is the gate.
	CheckOrigin: func(*http.Request) bool { return true },
}

// wsConn adapts one websocket to the dispatcher's push interface. Writes are
// serialized because the dispatcher and the read-loop error path both touch
// the socket.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) WriteLine(line string, timeout time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, []byte(line))
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}

// wsFrame is one inbound client frame, mirroring the /api/message payload.
type wsFrame struct {
	Type    string `json:"type"`
	Content string `json:"content"`
	Channel string `json:"channel"`
}

// handleWS authenticates via the token query parameter, upgrades, and binds
// the socket to the identity's delivery slot. Inbound frames reuse the
// message/command semantics of /api/message; the session's current channel is
// tracked per connection.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	identity, err := s.tokens.Resolve(r.URL.Query().Get("token"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	raw, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "identity", identity, "error", err)
		return
	}
	conn := &wsConn{conn: raw}

	s.chatService.Attach(identity, conn)
	defer func() {
		s.chatService.Detach(identity)
		_ = conn.Close()
	}()

	s.log.Info("websocket attached", "identity", identity)
	channel := s.defaultChannel

	for {
		_, payload, err := raw.ReadMessage()
		if err != nil {
			s.log.Info("websocket detached", "identity", identity, "error", err)
			return
		}

		var frame wsFrame
		if err := json.Unmarshal(payload, &frame); err != nil {
			s.wsError(conn, identity, "malformed frame")
			continue
		}
		if frame.Channel != "" {
			channel = frame.Channel
		}

		switch frame.Type {
		case "command":
			next, err := s.chatService.Command(r.Context(), identity, channel, frame.Content)
			if err != nil {
				s.wsError(conn, identity, err.Error())
				continue
			}
			channel = next
		case "message":
			if _, err := s.chatService.SendToRoom(identity, channel, frame.Content); err != nil {
				s.wsError(conn, identity, err.Error())
			}
		default:
			s.wsError(conn, identity, "unknown frame type")
		}
	}
}

// wsError reports a per-frame failure back over the same socket.
func (s *Server) wsError(conn *wsConn, identity, msg string) {
	payload, _ := json.Marshal(map[string]string{"error": msg})
	if err := conn.WriteLine(string(payload), time.Second); err != nil {
		s.log.Debug("websocket error write failed", "identity", identity, "error", err)
	}
}

package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Realtime stream defaults, used when the config leaves a field zero.
const (
	defaultPingInterval   = 30 // seconds
	defaultPongTimeout    = 60 // seconds
	defaultMaxMessageSize = 4096
)

// upgrader configures the WebSocket upgrader.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// Origin checking is handled by CORS middleware
		return true
	},
}

// handleRealtime upgrades the connection and streams telemetry events.
//
// Each broadcast event becomes one JSON text frame. Inbound data frames
// are read and discarded; the read loop exists to detect the peer
// closing. A slow client sees gaps (the broadcaster drops its oldest
// queued events), never a disconnect. Any IO error on either side tears
// the session down and unsubscribes.
func (s *Server) handleRealtime(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	clientID := uuid.New().String()
	sub := s.broadcaster.Subscribe()

	s.logger.Info("realtime client connected",
		"client_id", clientID,
		"remote", r.RemoteAddr,
		"subscribers", s.broadcaster.SubscriberCount(),
	)

	pingInterval := time.Duration(intOrDefault(s.wsCfg.PingInterval, defaultPingInterval)) * time.Second
	pongWait := time.Duration(intOrDefault(s.wsCfg.PongTimeout, defaultPongTimeout)) * time.Second
	maxMessageSize := intOrDefault(s.wsCfg.MaxMessageSize, defaultMaxMessageSize)

	conn.SetReadLimit(int64(maxMessageSize))
	//nolint:errcheck // Best-effort deadline on connection setup
	conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	})

	// Read loop: inbound frames carry no commands on this stream, but
	// reading them is what surfaces the close handshake and resets the
	// liveness deadline.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
			//nolint:errcheck // Best-effort deadline reset
			conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		s.broadcaster.Unsubscribe(sub)
		conn.Close()
		s.logger.Info("realtime client disconnected",
			"client_id", clientID,
			"dropped_events", sub.Dropped(),
		)
	}()

	for {
		select {
		case <-done:
			return

		case event, ok := <-sub.Events():
			if !ok {
				// Broadcaster shut down
				//nolint:errcheck // Best-effort close message
				conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				s.logger.Error("marshalling realtime event failed", "error", err)
				continue
			}
			//nolint:errcheck // Best-effort deadline; write error caught below
			conn.SetWriteDeadline(time.Now().Add(pongWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			//nolint:errcheck // Best-effort deadline; ping error caught below
			conn.SetWriteDeadline(time.Now().Add(pongWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// intOrDefault returns v, or def when v is not positive.
func intOrDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

package statusapi

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	feedPongWait   = 60 * time.Second
	feedPingPeriod = 30 * time.Second
	feedWriteWait  = 10 * time.Second
)

var feedUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleFeed upgrades the connection and streams broadcast payloads to
// the client until it disconnects or a write fails.
func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	conn, err := feedUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("statusapi: feed upgrade failed", "error", err)
		return
	}

	client := s.hub.register()
	s.logger.Info("statusapi: feed subscriber connected", "client", client.id)

	go s.readPump(conn, client)
	s.writePump(conn, client)
}

// readPump discards any client-sent frames (the feed is publish-only)
// but must still read to process control frames and notice disconnects,
// matching the teacher's pong-handler/read-deadline keepalive pattern.
func (s *Server) readPump(conn *websocket.Conn, client *feedClient) {
	defer func() {
		s.hub.unregister(client)
		conn.Close()
	}()
	conn.SetReadDeadline(time.Now().Add(feedPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(feedPongWait))
		return nil
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) writePump(conn *websocket.Conn, client *feedClient) {
	ticker := time.NewTicker(feedPingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()
	for {
		select {
		case payload, ok := <-client.send:
			conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

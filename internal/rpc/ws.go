package rpc

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Klingon-tech/klingnet-walletd/internal/hub"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
)

// handleWS upgrades the request and streams hub messages to the client.
// "?tab=<id>" subscribes to one tab, "?role=ui" to the wallet UI feed.
// Inbound frames are read only to track liveness.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if !s.allowRemote(r) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	q := r.URL.Query()
	tabID := q.Get("tab")
	ui := q.Get("role") == "ui"
	if tabID == "" && !ui {
		http.Error(w, "tab or role=ui is required", http.StatusBadRequest)
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || len(s.corsOrigins) == 0 || s.originAllowed(origin)
		},
	}

	// Subscribe before the handshake completes so no message sent after it is missed.
	var sub *hub.Subscription
	if ui {
		sub = s.hub.SubscribeUI()
	} else {
		sub = s.hub.Subscribe(tabID)
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.hub.Unsubscribe(sub)
		s.logger.Debug().Err(err).Msg("Websocket upgrade failed")
		return
	}
	logger := s.logger.With().Str("sub", sub.ID).Str("tab", tabID).Bool("ui", ui).Logger()
	logger.Debug().Str("remote", r.RemoteAddr).Msg("Websocket connected")

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(maxBodySize)
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					logger.Debug().Err(err).Msg("Websocket read error")
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		s.hub.Unsubscribe(sub)
		conn.Close()
		logger.Debug().Msg("Websocket disconnected")
	}()

	for {
		select {
		case msg, ok := <-sub.C():
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := conn.WriteJSON(msg); err != nil {
				logger.Debug().Err(err).Msg("Websocket write failed")
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			return
		case <-s.ctx.Done():
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutdown"))
			return
		}
	}
}

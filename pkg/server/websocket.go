package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// handleTaskWebSocket replays a task's transcript and then streams live
// updates until the job finishes or the client disconnects.
func (s *Server) handleTaskWebSocket(w http.ResponseWriter, r *http.Request) {
	st, ok := s.task(r.PathValue("id"))
	if !ok {
		http.Error(w, "task not found", http.StatusNotFound)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}
	defer ws.Close()

	wake, cancel := st.watch()
	defer cancel()

	ticker := time.NewTicker(30 * time.Second) // keepalive
	defer ticker.Stop()

	sent := 0
	for {
		updates, done := st.snapshot(sent)
		for _, u := range updates {
			if err := ws.WriteJSON(u); err != nil {
				return
			}
		}
		sent += len(updates)
		if done {
			return
		}

		select {
		case <-wake:
		case <-ticker.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		case <-r.Context().Done():
			return
		}
	}
}

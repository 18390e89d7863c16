package web

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"time"

	"plotstation/config"
	"plotstation/logging"
	"plotstation/types"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // status page may be opened from another host on the LAN
	},
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func statusHandler(w http.ResponseWriter, r *http.Request, state *AppState) {
	writeJSON(w, http.StatusOK, state.Status())
}

func submitHandler(w http.ResponseWriter, r *http.Request, state *AppState) {
	if r.Method != "POST" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mt != "application/json" {
		http.Error(w, "Content-Type must be application/json", http.StatusUnsupportedMediaType)
		return
	}

	var req struct {
		Path string `json:"path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
		http.Error(w, "Invalid JSON: expected {\"path\": \"...\"}", http.StatusBadRequest)
		return
	}

	path, code := state.resolveJobPath(req.Path)
	switch code {
	case http.StatusForbidden:
		logging.Warn("web", "refused %s: outside the job directories", req.Path)
		http.Error(w, "Path outside the job directories", code)
		return
	case http.StatusNotFound:
		http.Error(w, fmt.Sprintf("Command file not found: %s", req.Path), code)
		return
	}

	job, ok := state.Mailbox.SubmitFile(path)
	if !ok {
		_, label := state.Mailbox.Status()
		logging.Warn("web", "rejected %s: plotter busy with %s", req.Path, label)
		writeJSON(w, http.StatusConflict, map[string]string{
			"error": "plotter busy",
			"label": label,
		})
		return
	}

	logging.Info("web", "accepted %s as %s", job.Label, job.ID)
	writeJSON(w, http.StatusAccepted, job)
}

func lastJobHandler(w http.ResponseWriter, r *http.Request, state *AppState) {
	last, ok := state.Mailbox.Last()
	if !ok {
		http.Error(w, "No job has finished yet", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, last)
}

func logsStreamHandler(w http.ResponseWriter, r *http.Request, state *AppState) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	client := make(chan types.LogMessage, 100)
	logging.AddLogClient(client)
	defer logging.RemoveLogClient(client)

	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}

	for {
		select {
		case msg := <-client:
			data, _ := json.Marshal(msg)
			fmt.Fprintf(w, "data: %s\n\n", data)
			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
		case <-r.Context().Done():
			return
		}
	}
}

// wsHandler pushes the station status on connect and then on every tick
// until the client goes away.
func wsHandler(w http.ResponseWriter, r *http.Request, state *AppState) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn("web", "websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	interval := state.StatusInterval
	if interval <= 0 {
		interval = config.WS_STATUS_INTERVAL
	}

	// the read side only exists to notice the close frame
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					logging.Debug("web", "websocket read: %v", err)
				}
				return
			}
		}
	}()

	push := time.NewTicker(interval)
	ping := time.NewTicker(config.WS_PING_INTERVAL)
	defer push.Stop()
	defer ping.Stop()

	send := func() bool {
		conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		return conn.WriteJSON(state.Status()) == nil
	}

	if !send() {
		return
	}
	for {
		select {
		case <-push.C:
			if !send() {
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			return
		case <-r.Context().Done():
			return
		}
	}
}

package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Kunal-Gupta28/Connectly/internal/signaling"
)

// Options configure the HTTP surface of the signaling server.
type Options struct {
	// AllowedOrigins lists the web app origins allowed to open /ws.
	// An empty list allows every origin.
	AllowedOrigins []string
	SendQueueSize  int
	Client         signaling.ClientOptions
}

// NewRouter wires /ws, /health and /stats for the given hub.
func NewRouter(hub *signaling.Hub, opts Options) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthCheckHandler)
	mux.HandleFunc("GET /stats", statsHandler(hub))
	mux.HandleFunc("GET /ws", ServeWs(hub, opts))
	return mux
}

// Health Check endpoint
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Signaling server is healthy."))
}

func statsHandler(hub *signaling.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(hub.Stats()); err != nil {
			slog.Error("encode stats", "err", err)
		}
	}
}

func newUpgrader(allowed []string) *websocket.Upgrader {
	origins := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		origins[strings.TrimRight(strings.ToLower(o), "/")] = struct{}{}
	}

	return &websocket.Upgrader{
		ReadBufferSize:  64 * 1024,
		WriteBufferSize: 64 * 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(origins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			if origin == "" {
				// Non-browser clients such as the terminal app send no Origin.
				return true
			}
			u, err := url.Parse(origin)
			if err != nil {
				return false
			}
			_, ok := origins[strings.ToLower(u.Scheme+"://"+u.Host)]
			return ok
		},
	}
}

// ServeWs returns an http.HandlerFunc that upgrades to a websocket and hands
// the connection to the hub.
func ServeWs(hub *signaling.Hub, opts Options) http.HandlerFunc {
	upgrader := newUpgrader(opts.AllowedOrigins)

	return func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Warn("failed to upgrade connection", "remote", r.RemoteAddr, "err", err)
			return
		}

		conn := signaling.NewConn(uuid.NewString(), opts.SendQueueSize)
		client := signaling.NewClient(hub, conn, ws, opts.Client)

		if !hub.Register(conn) {
			ws.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			ws.Close()
			return
		}
		slog.Debug("connection upgraded", "conn", conn.ID, "remote", r.RemoteAddr)

		go client.WritePump()
		go client.ReadPump()
	}
}

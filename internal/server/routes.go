package server

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/krishangoyal12/Video-Chat-Application/internal/protocol"
	"github.com/krishangoyal12/Video-Chat-Application/internal/signaling"
)

// Options configure the HTTP surface of the signaling server.
type Options struct {
	// AllowedOrigins lists the browser origins allowed to open a websocket.
	// An empty list allows every origin.
	AllowedOrigins []string

	// TrustProxy makes the first X-Forwarded-For hop the client address.
	TrustProxy bool

	Logger *logrus.Entry
}

func newUpgrader(allowed []string) *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  16 * 1024,
		WriteBufferSize: 16 * 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowed) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			if origin == "" {
				// Native clients do not send an origin.
				return true
			}
			for _, o := range allowed {
				if strings.EqualFold(o, origin) {
					return true
				}
			}
			return false
		},
	}
}

// ServeWs returns an http.HandlerFunc that upgrades participants and hands
// them to the hub.
func ServeWs(hub *signaling.Hub, opts Options) http.HandlerFunc {
	upgrader := newUpgrader(opts.AllowedOrigins)

	return func(w http.ResponseWriter, r *http.Request) {
		codec, err := protocol.CodecByName(r.URL.Query().Get("codec"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			opts.Logger.WithError(err).WithField("origin", r.Header.Get("Origin")).Warn("upgrade failed")
			return
		}

		client := signaling.NewClient(hub, uuid.New().String(), conn, codec, fingerprint(r, opts.TrustProxy))
		if !hub.Register(client) {
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			conn.Close()
			return
		}

		go client.WritePump()
		go client.ReadPump()
	}
}

func fingerprint(r *http.Request, trustProxy bool) signaling.Fingerprint {
	return signaling.Fingerprint{
		Address: clientAddress(r, trustProxy),
		Agent:   r.UserAgent(),
		Token:   r.URL.Query().Get("session"),
	}
}

func clientAddress(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			if addr := strings.TrimSpace(first); addr != "" {
				return addr
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type healthResponse struct {
	Status string `json:"status"`
	signaling.Stats
}

// HealthCheck reports room and connection counts.
func HealthCheck(hub *signaling.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := hub.Stats(r.Context())
		if err != nil {
			http.Error(w, "hub unavailable", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(healthResponse{Status: "ok", Stats: stats})
	}
}

func banner(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("videochat signaling server is running.\n"))
}

// Routes wires every endpoint of the signaling server.
func Routes(hub *signaling.Hub, opts Options) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", ServeWs(hub, opts))
	mux.HandleFunc("/health", HealthCheck(hub))
	mux.HandleFunc("/", banner)
	return mux
}

package report

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const writeWait = 10 * time.Second

// Message is the envelope pushed to websocket clients.
type Message struct {
	Type    string `json:"type"` // "hello" | "run"
	Payload any    `json:"payload"`
}

// Hub streams runs to connected chart clients.
type Hub struct {
	mu       sync.Mutex
	clients  map[*websocket.Conn]struct{}
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

// NewHub builds a hub accepting any origin.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		log: log.With().Str("sink", "ws").Logger(),
	}
}

// Name returns the sink identifier.
func (h *Hub) Name() string { return "ws" }

// ServeHTTP upgrades the request and registers the client.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	h.mu.Lock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	err = conn.WriteJSON(Message{Type: "hello", Payload: "pairbot report stream"})
	if err == nil {
		h.clients[conn] = struct{}{}
	}
	h.mu.Unlock()
	if err != nil {
		_ = conn.Close()
		return
	}
	h.log.Debug().Str("remote", r.RemoteAddr).Msg("client connected")

	// drain control frames until the peer goes away
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.drop(conn)
				return
			}
		}
	}()
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Publish broadcasts run to every client. Clients that fail to keep up are dropped.
func (h *Hub) Publish(ctx context.Context, run Run) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := Message{Type: "run", Payload: run}
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(msg); err != nil {
			h.log.Warn().Err(err).Msg("dropping websocket client")
			_ = conn.Close()
			delete(h.clients, conn)
		}
	}
	return nil
}

// Close disconnects every client.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = conn.Close()
		delete(h.clients, conn)
	}
	return nil
}

func (h *Hub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		_ = conn.Close()
	}
	h.mu.Unlock()
}

// Serve exposes the hub on addr at /ws.
func Serve(addr string, h *Hub) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/ws", h)
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			h.log.Error().Err(err).Str("addr", addr).Msg("websocket server stopped")
		}
	}()
	return srv
}

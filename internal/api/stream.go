package api

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"groundtrack/pkg/track"
)

const (
	streamWriteWait = 5 * time.Second
	streamBuffer    = 16
)

// StreamHandler pushes animator frames to WebSocket clients as JSON.
// Slow clients drop frames rather than stall the animation.
type StreamHandler struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*streamClient]struct{}
}

type streamClient struct {
	conn *websocket.Conn
	send chan track.Frame
}

// NewStreamHandler creates an empty hub. Register Publish with track.Animator.OnFrame.
func NewStreamHandler() *StreamHandler {
	return &StreamHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[*streamClient]struct{}),
	}
}

// Publish fans a frame out to every connected client.
func (h *StreamHandler) Publish(f track.Frame) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- f:
		default:
			slog.Debug("Stream client lagging, frame dropped", "remote", c.conn.RemoteAddr())
		}
	}
}

// Clients returns the number of connected clients.
func (h *StreamHandler) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades GET /api/stream.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("WebSocket upgrade failed", "error", err)
		return
	}
	c := &streamClient{conn: conn, send: make(chan track.Frame, streamBuffer)}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	slog.Debug("Stream client connected", "remote", conn.RemoteAddr())

	done := make(chan struct{})
	go h.readLoop(c, done)
	h.writeLoop(c, done)

	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	conn.Close()
	slog.Debug("Stream client disconnected", "remote", conn.RemoteAddr())
}

// readLoop discards client messages and notices when the peer goes away.
func (h *StreamHandler) readLoop(c *streamClient, done chan<- struct{}) {
	defer close(done)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *StreamHandler) writeLoop(c *streamClient, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case f := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := c.conn.WriteJSON(f); err != nil {
				slog.Debug("Stream write failed", "error", err)
				return
			}
		}
	}
}

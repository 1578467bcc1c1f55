// Package ws serves the JSON-RPC methods over websocket connections. Each text frame
// carries a request or a batch and is answered on the same connection. The server
// never pushes on its own.
package ws

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/pliu/quachat/internal/middleware"
)

// Dispatcher answers one JSON-RPC payload; nil means nothing to send back.
type Dispatcher interface {
	Handle(ctx context.Context, payload []byte) ([]byte, error)
}

// Gauge tracks open connections.
type Gauge interface {
	ConnectionOpened()
	ConnectionClosed()
}

type nopGauge struct{}

func (nopGauge) ConnectionOpened() {}
func (nopGauge) ConnectionClosed() {}

type Hub struct {
	// Registered clients.
	clients map[*Client]bool

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Closed when Run returns.
	done chan struct{}

	dispatcher Dispatcher
	gauge      Gauge
	upgrader   websocket.Upgrader
	log        *slog.Logger
}

// NewHub creates a hub. checkOrigin may be nil to accept any origin, gauge may be nil.
func NewHub(dispatcher Dispatcher, checkOrigin func(r *http.Request) bool, gauge Gauge, log *slog.Logger) *Hub {
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	if gauge == nil {
		gauge = nopGauge{}
	}
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		done:       make(chan struct{}),
		dispatcher: dispatcher,
		gauge:      gauge,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		log: log,
	}
}

// Run tracks clients until ctx is done, then closes every open connection.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			h.gauge.ConnectionOpened()
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.cancel()
				h.gauge.ConnectionClosed()
			}
		case <-ctx.Done():
			for client := range h.clients {
				delete(h.clients, client)
				client.cancel()
				h.gauge.ConnectionClosed()
			}
			h.log.Info("Websocket hub stopped")
			return
		}
	}
}

// ServeWs upgrades the request. The caller bound to the request context by the
// session gate stays bound for the connection's lifetime.
func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("Websocket upgrade failed", "error", err)
		return
	}

	// The request context ends when this handler returns.
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	client := &Client{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		ctx:    ctx,
		cancel: cancel,
	}

	select {
	case h.register <- client:
	case <-h.done:
		cancel()
		conn.Close()
		return
	}

	user := "anonymous"
	if u := middleware.UserFromContext(ctx); u != nil {
		user = u.Name
	}
	h.log.Debug("Websocket connected", "user", user, "remote", r.RemoteAddr)

	go client.writePump()
	go client.readPump()
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

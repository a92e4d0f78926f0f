package live

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	cws "github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/phrazzld/tasktracker-api/internal/notification"
)

// Hub defaults
const (
	DefaultQueueSize    = 16
	DefaultWriteTimeout = 5 * time.Second
)

// HubConfig tunes a Hub.
type HubConfig struct {
	// OriginPatterns are host patterns allowed to open the socket cross-origin.
	OriginPatterns []string
	QueueSize      int
	WriteTimeout   time.Duration
}

type client struct {
	send chan notification.Payload
}

// Hub tracks connected clients and fans local notifications out to them.
type Hub struct {
	cfg    HubConfig
	logger *slog.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
	done    chan struct{}

	dropped atomic.Int64
}

// NewHub creates a Hub. Zero config values take defaults.
func NewHub(cfg HubConfig, logger *slog.Logger) *Hub {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "live_hub")),
		clients: make(map[*client]struct{}),
		done:    make(chan struct{}),
	}
}

// Foreground reports whether at least one client is connected.
func (h *Hub) Foreground() bool {
	return h.Clients() > 0
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Dropped returns how many payloads were discarded because a client queue was full.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

// Show queues p for every connected client without blocking. A client whose
// queue is full misses the notification.
func (h *Hub) Show(ctx context.Context, p notification.Payload) {
	p = p.WithDefaults()

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- p:
		default:
			h.dropped.Add(1)
			h.logger.WarnContext(ctx, "live client queue full, notification dropped",
				slog.String("tag", p.Tag))
		}
	}
}

// ServeHTTP upgrades the request and streams notifications until the client
// goes away or the hub is closed. Client messages are ignored.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := cws.Accept(w, r, &cws.AcceptOptions{OriginPatterns: h.cfg.OriginPatterns})
	if err != nil {
		h.logger.Debug("websocket handshake failed", slog.String("error", err.Error()))
		return
	}
	defer func() { _ = conn.CloseNow() }()

	c := &client{send: make(chan notification.Payload, h.cfg.QueueSize)}
	if !h.add(c) {
		_ = conn.Close(cws.StatusGoingAway, "server shutting down")
		return
	}
	defer h.remove(c)

	ctx := conn.CloseRead(r.Context())
	h.logger.Debug("live client connected", slog.Int("clients", h.Clients()))

	for {
		select {
		case <-ctx.Done():
			h.logger.Debug("live client disconnected")
			return
		case <-h.done:
			_ = conn.Close(cws.StatusGoingAway, "server shutting down")
			return
		case p := <-c.send:
			if err := h.write(ctx, conn, p); err != nil {
				h.logger.Debug("live write failed", slog.String("error", err.Error()))
				return
			}
		}
	}
}

func (h *Hub) write(ctx context.Context, conn *cws.Conn, p notification.Payload) error {
	ctx, cancel := context.WithTimeout(ctx, h.cfg.WriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, p)
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	close(h.done)
}

func (h *Hub) add(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
}

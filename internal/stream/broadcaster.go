package stream

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/cyclegate/cyclegate/internal/admission"
)

// Broadcaster fans admission cycle reports out to websocket subscribers.
// Slow subscribers are dropped rather than allowed to block a cycle.
type Broadcaster struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	send chan *admission.CycleReport
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Decisions are observability output; origin checks are the
			// host proxy's concern.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// ServeHTTP upgrades the request and subscribes the connection.
func (b *Broadcaster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &client{conn: conn, send: make(chan *admission.CycleReport, 8)}
	b.mu.Lock()
	b.clients[c] = struct{}{}
	b.mu.Unlock()
	log.Debug().Str("remote", conn.RemoteAddr().String()).Msg("decision stream subscriber connected")

	go b.writeLoop(c)
	b.readLoop(c)
}

// Publish sends a cycle report to every subscriber. Subscribers whose
// buffers are full are disconnected.
func (b *Broadcaster) Publish(report *admission.CycleReport) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for c := range b.clients {
		select {
		case c.send <- report:
		default:
			log.Warn().Str("remote", c.conn.RemoteAddr().String()).Msg("dropping slow decision stream subscriber")
			delete(b.clients, c)
			close(c.send)
		}
	}
}

// Subscribers returns the current subscriber count.
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// Close disconnects all subscribers.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for c := range b.clients {
		delete(b.clients, c)
		close(c.send)
	}
}

func (b *Broadcaster) writeLoop(c *client) {
	defer c.conn.Close()
	for report := range c.send {
		if err := c.conn.WriteJSON(report); err != nil {
			log.Debug().Err(err).Msg("decision stream write failed")
			b.remove(c)
			return
		}
	}
}

// readLoop drains control frames; any read error means the subscriber
// is gone.
func (b *Broadcaster) readLoop(c *client) {
	defer c.conn.Close()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			b.remove(c)
			return
		}
	}
}

func (b *Broadcaster) remove(c *client) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.clients[c]; ok {
		delete(b.clients, c)
		close(c.send)
	}
}

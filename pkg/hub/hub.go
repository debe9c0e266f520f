// Package hub provides a thread-safe websocket broadcast hub using
// the channel-based fan-out pattern. The surface uses it to push
// display state frames to every connected dashboard.
package hub

import (
	"encoding/json"
	"sync"

	"github.com/Robert54/live-api-web-console/internal/log"
)

// Hub maintains the set of active clients and broadcasts frames to them.
type Hub struct {
	// Name for logging
	name string

	// snapshot, when set, produces the frame delivered to a client
	// right after it joins, before any broadcast reaches it.
	snapshot func() []byte

	// Registered clients
	clients map[*Client]bool

	// Inbound frames to broadcast
	broadcast chan []byte

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Closed by Stop
	quit     chan struct{}
	stopOnce sync.Once

	// Mutex for client map (read-only access from outside)
	mu sync.RWMutex

	// Running state
	running bool
}

// New creates a new Hub. The snapshot hook may be nil, in which case
// joining clients wait for the next broadcast.
func New(name string, snapshot func() []byte) *Hub {
	return &Hub{
		name:       name,
		snapshot:   snapshot,
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		quit:       make(chan struct{}),
	}
}

// Run starts the hub's main loop. This should be called in a
// goroutine; it returns after Stop.
func (h *Hub) Run() {
	h.mu.Lock()
	h.running = true
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		h.running = false
		h.mu.Unlock()
	}()

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			if h.snapshot != nil {
				if frame := h.snapshot(); frame != nil {
					client.queue(frame)
				}
			}
			log.Debug("hub: client connected", "hub", h.name, "client", client.ID, "total", count)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			log.Debug("hub: client disconnected", "hub", h.name, "client", client.ID, "remaining", count)

		case frame := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- frame:
					// Frame queued successfully
				default:
					// Client's buffer is full - they're too slow.
					// Close and remove them.
					close(client.send)
					delete(h.clients, client)
					log.Warn("hub: dropped slow client", "hub", h.name, "client", client.ID)
				}
			}
			h.mu.Unlock()

		case <-h.quit:
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Stop shuts the hub down and disconnects every client. Safe to call
// more than once.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.quit) })
}

// Broadcast sends a frame to all connected clients.
func (h *Hub) Broadcast(frame []byte) {
	select {
	case h.broadcast <- frame:
	case <-h.quit:
	default:
		// Broadcast channel full - drop the frame. Logged at debug:
		// surfaces tap the log stream at info and above, and a warn
		// here would feed back into the hub.
		log.Debug("hub: broadcast channel full, dropping frame", "hub", h.name)
	}
}

// BroadcastJSON encodes and broadcasts a JSON frame.
func (h *Hub) BroadcastJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.Broadcast(data)
	return nil
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// IsRunning returns whether the hub is running.
func (h *Hub) IsRunning() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.running
}

// drop requests removal of a client, giving up if the hub has stopped.
func (h *Hub) drop(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.quit:
	}
}

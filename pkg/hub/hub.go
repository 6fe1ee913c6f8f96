package hub

import (
	"context"
	"log/slog"
	"sync"
)

// Sender is one registered receiver of broadcasts.
type Sender interface {
	// Queue returns the buffered channel the hub writes messages to.
	Queue() chan Message
}

// Hub maintains the set of active clients and broadcasts messages to them
type Hub struct {
	name   string
	logger *slog.Logger

	// Registered clients
	clients map[Sender]bool

	// Inbound messages to broadcast
	broadcast chan Message

	// Register requests from clients
	register chan Sender

	// Unregister requests from clients
	unregister chan Sender

	// Mutex for client count (read-only access from outside)
	mu sync.RWMutex

	dropped uint64
}

// New creates a new Hub
func New(name string, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		name:       name,
		logger:     logger.With("component", "hub", "hub", name),
		clients:    make(map[Sender]bool),
		broadcast:  make(chan Message, 256),
		register:   make(chan Sender),
		unregister: make(chan Sender),
	}
}

// Run starts the hub's main loop until ctx is cancelled.
// This should be called in a goroutine
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.Queue())
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("client connected", "clients", count)

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.Queue())
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("client disconnected", "clients", count)

		case message := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.Queue() <- message:
					// Message queued successfully
				default:
					// Client's buffer is full - they're too slow
					close(c.Queue())
					delete(h.clients, c)
					h.logger.Warn("dropped slow client")
				}
			}
			h.mu.Unlock()
		}
	}
}

// Register adds a client. It blocks until the hub loop accepts it.
func (h *Hub) Register(ctx context.Context, c Sender) bool {
	select {
	case h.register <- c:
		return true
	case <-ctx.Done():
		return false
	}
}

// Unregister removes a client and closes its queue.
func (h *Hub) Unregister(ctx context.Context, c Sender) {
	select {
	case h.unregister <- c:
	case <-ctx.Done():
	}
}

// Broadcast sends a message to all connected clients.
// It never blocks: when the hub is backed up the message is dropped.
func (h *Hub) Broadcast(msg Message) {
	select {
	case h.broadcast <- msg:
	default:
		h.mu.Lock()
		h.dropped++
		h.mu.Unlock()
		h.logger.Debug("broadcast channel full, dropping message")
	}
}

// Publish encodes and broadcasts an event.
func (h *Hub) Publish(eventType string, data any) error {
	msg, err := NewEventMessage(eventType, data)
	if err != nil {
		return err
	}
	h.Broadcast(msg)
	return nil
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped returns how many broadcasts were dropped because the hub was full.
func (h *Hub) Dropped() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.dropped
}

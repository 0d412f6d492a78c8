package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/pinmehq/toybox/internal/model"
)

// Message is one real-time event pushed to connected clients: a toy status
// change or a delivered in-app notification.
type Message struct {
	Type         string                         `json:"type"`
	Toy          *model.Toy                     `json:"toy,omitempty"`
	Notification *model.NotificationHistoryItem `json:"notification,omitempty"`
}

const (
	msgToyUpdated   = "toy_updated"
	msgNotification = "notification"
)

// Hub maintains the set of active WebSocket clients and fans messages out
// to them. It satisfies the notification dispatcher's broadcaster hook.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger,
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

// Unregister removes a client from the hub and closes its outbox.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.outbox)
	}
	h.mu.Unlock()
}

// ToyUpdated broadcasts a toy status change to all clients.
func (h *Hub) ToyUpdated(toy model.Toy) {
	h.broadcast(Message{Type: msgToyUpdated, Toy: &toy})
}

// NotificationDelivered broadcasts an in-app notification to all clients.
func (h *Hub) NotificationDelivered(item model.NotificationHistoryItem) {
	h.broadcast(Message{Type: msgNotification, Notification: &item})
}

func (h *Hub) broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal broadcast", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		select {
		case c.outbox <- data:
		default:
			// Client buffer full, drop rather than block the broadcaster
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

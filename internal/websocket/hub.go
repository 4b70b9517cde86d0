package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/aabhushan/aabhushan-backend/internal/app/model"
	"github.com/aabhushan/aabhushan-backend/pkg/logger"
)

// OrderEvent is one message on the admin order feed.
type OrderEvent struct {
	Type          string              `json:"type"` // order_created, order_updated
	OrderID       uint                `json:"order_id"`
	UserID        uint                `json:"user_id"`
	Status        model.OrderStatus   `json:"status"`
	PaymentStatus model.PaymentStatus `json:"payment_status"`
	TotalAmount   float64             `json:"total_amount"`
	At            time.Time           `json:"at"`
}

// Hub fans order lifecycle events out to connected admin dashboards. A
// slow client gets disconnected rather than blocking the feed.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		broadcast:  make(chan []byte, 256),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			logger.Info("Order feed client connected", map[string]interface{}{
				"user_id": client.UserID,
				"clients": count,
			})

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			logger.Info("Order feed client disconnected", map[string]interface{}{
				"user_id": client.UserID,
				"clients": count,
			})

		case message := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				select {
				case client.Send <- message:
				default:
					go h.Unregister(client)
					logger.Warn("Order feed client send buffer full, disconnecting", map[string]interface{}{
						"user_id": client.UserID,
					})
				}
			}
			h.mu.RUnlock()
		}
	}
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// NotifyOrderCreated implements the order service's notifier hook.
func (h *Hub) NotifyOrderCreated(order *model.Order) {
	h.publish("order_created", order)
}

// NotifyOrderUpdated implements the order service's notifier hook.
func (h *Hub) NotifyOrderUpdated(order *model.Order) {
	h.publish("order_updated", order)
}

func (h *Hub) publish(eventType string, order *model.Order) {
	event := OrderEvent{
		Type:          eventType,
		OrderID:       order.ID,
		UserID:        order.UserID,
		Status:        order.Status,
		PaymentStatus: order.PaymentStatus,
		TotalAmount:   order.TotalAmount,
		At:            time.Now(),
	}

	data, err := json.Marshal(event)
	if err != nil {
		logger.Error("Failed to marshal order event", err, nil)
		return
	}

	select {
	case h.broadcast <- data:
	default:
		// Feed is best effort; the dashboard re-fetches on reconnect.
		logger.Warn("Order feed broadcast channel full, event dropped", map[string]interface{}{
			"order_id": order.ID,
		})
	}
}

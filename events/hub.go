package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/yeremiapane/restaurant-ops/utils"
)

const (
	writeWait = 10 * time.Second
	// sendBuffer bounds how far a slow subscriber may fall behind before
	// new events are dropped for it.
	sendBuffer = 32
)

// Subscriber is one live streaming connection. It exists only for the
// lifetime of the connection and is never persisted.
type Subscriber struct {
	ID           string
	RestaurantID uint
	Role         string

	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	closeOnce sync.Once
}

// Hub fans domain events out to restaurant- and role-scoped subscribers.
// It is process-scoped state constructed in main and injected into the
// handlers that need it.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscriber
	heartbeat   time.Duration
	closed      bool
}

func NewHub(heartbeat time.Duration) *Hub {
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}
	return &Hub{
		subscribers: make(map[string]*Subscriber),
		heartbeat:   heartbeat,
	}
}

// Subscribe registers conn and starts its write pump. The caller must
// follow up with sub.Listen(), which blocks until the connection dies.
func (h *Hub) Subscribe(conn *websocket.Conn, restaurantID uint, role string) *Subscriber {
	sub := &Subscriber{
		ID:           uuid.NewString(),
		RestaurantID: restaurantID,
		Role:         role,
		hub:          h,
		conn:         conn,
		send:         make(chan []byte, sendBuffer),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return sub
	}
	h.subscribers[sub.ID] = sub
	h.mu.Unlock()

	go sub.writePump()

	utils.InfoLogger.Printf("subscriber %s registered (restaurant=%d role=%s)", sub.ID, restaurantID, role)
	return sub
}

// Unsubscribe releases the registration and closes the connection. Safe to
// call more than once; every disconnect path funnels through here so the
// registry cannot grow without bound.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	_, registered := h.subscribers[sub.ID]
	delete(h.subscribers, sub.ID)
	h.mu.Unlock()

	sub.closeOnce.Do(func() {
		close(sub.send)
		sub.conn.Close()
	})

	if registered {
		utils.InfoLogger.Printf("subscriber %s deregistered", sub.ID)
	}
}

// Publish delivers evt to every matching subscriber. Callers invoke this
// only after their write transaction has committed.
func (h *Hub) Publish(evt Event) {
	data, err := json.Marshal(evt)
	if err != nil {
		utils.ErrorLogger.Printf("marshal event %s: %v", evt.Type, err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subscribers {
		if sub.RestaurantID != evt.RestaurantID {
			continue
		}
		if !visibleTo(sub.Role, evt.Type) {
			continue
		}
		select {
		case sub.send <- data:
		default:
			// Subscriber buffer full: drop rather than block the publisher.
			utils.ErrorLogger.Printf("subscriber %s lagging, dropped %s", sub.ID, evt.Type)
		}
	}
}

// Count returns the number of live subscribers for a restaurant.
func (h *Hub) Count(restaurantID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, sub := range h.subscribers {
		if sub.RestaurantID == restaurantID {
			n++
		}
	}
	return n
}

// Close tears the hub down and disconnects everyone. Used on shutdown;
// clients reconcile by re-fetching on reconnect.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	subs := make([]*Subscriber, 0, len(h.subscribers))
	for _, sub := range h.subscribers {
		subs = append(subs, sub)
	}
	h.subscribers = make(map[string]*Subscriber)
	h.mu.Unlock()

	for _, sub := range subs {
		sub.closeOnce.Do(func() {
			close(sub.send)
			sub.conn.Close()
		})
	}
}

// Listen reads from the connection until it dies, then deregisters.
// Incoming frames carry no meaning; reading is only how we learn about
// closure promptly.
func (s *Subscriber) Listen() {
	defer s.hub.Unsubscribe(s)

	pongWait := s.hub.heartbeat * 2
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump pushes queued events and a periodic ping heartbeat so silent
// connection death is detected instead of leaking the subscriber.
func (s *Subscriber) writePump() {
	ticker := time.NewTicker(s.hub.heartbeat)
	defer func() {
		ticker.Stop()
		s.hub.Unsubscribe(s)
	}()

	for {
		select {
		case data, ok := <-s.send:
			if !ok {
				return
			}
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

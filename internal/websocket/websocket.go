package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/electvote/electvote/internal/logger"
	"github.com/electvote/electvote/internal/models"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second

	sendBuffer      = 256
	broadcastBuffer = 256
)

// Event types emitted by the hub itself
const (
	EventHello        = "hello"
	EventPhaseChanged = "phase_changed"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for now
	},
}

// ElectionSource lists elections with their derived status
type ElectionSource interface {
	ListElections(ctx context.Context, filter models.ElectionFilter) ([]models.Election, error)
}

// ConnectionObserver is told about connections opening and closing
type ConnectionObserver interface {
	WSConnectionOpened()
	WSConnectionClosed()
}

// Hub maintains the set of active clients and broadcasts messages to the clients
type Hub struct {
	log        logger.Logger
	clients    map[*Client]bool
	broadcast  chan models.WSMessage
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mutex      sync.RWMutex
	elections  ElectionSource
	observer   ConnectionObserver

	// last status seen per election by the phase watcher
	phases map[int64]string
}

// Client is a middleman between the websocket connection and the hub
type Client struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	send chan models.WSMessage
}

// New creates a new Hub instance with injected dependencies
func New(log logger.Logger, elections ElectionSource) *Hub {
	return &Hub{
		log:        log,
		clients:    make(map[*Client]bool),
		broadcast:  make(chan models.WSMessage, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		elections:  elections,
		phases:     make(map[int64]string),
	}
}

// SetObserver sets the connection observer (metrics)
func (h *Hub) SetObserver(o ConnectionObserver) {
	h.observer = o
}

// Start begins the hub's main loop in a goroutine. It stops when ctx is done.
func (h *Hub) Start(ctx context.Context) {
	go h.run(ctx)
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// run handles client registration/unregistration and message broadcasting
func (h *Hub) run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mutex.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mutex.Unlock()
			return

		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mutex.Unlock()
			if h.observer != nil {
				h.observer.WSConnectionOpened()
			}
			h.log.Debug("Client connected", "client_id", client.id, "total_clients", total)

			// greet with the active elections so the page can render at once
			go h.greet(ctx, client)

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				if h.observer != nil {
					h.observer.WSConnectionClosed()
				}
			}
			total := len(h.clients)
			h.mutex.Unlock()
			h.log.Debug("Client disconnected", "client_id", client.id, "total_clients", total)

		case message := <-h.broadcast:
			h.mutex.RLock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Client's send channel is full, unregister
					go h.leave(client)
				}
			}
			h.mutex.RUnlock()
		}
	}
}

func (h *Hub) greet(ctx context.Context, client *Client) {
	payload := map[string]interface{}{"client_id": client.id}
	if h.elections != nil {
		elections, err := h.elections.ListElections(ctx, models.ElectionFilter{ExcludeCancelled: true})
		if err != nil {
			h.log.Warn("Failed to list elections for greeting", "error", err)
		}
		payload["elections"] = elections
	}

	h.mutex.RLock()
	defer h.mutex.RUnlock()
	if !h.clients[client] {
		return
	}
	select {
	case client.send <- models.WSMessage{Type: EventHello, Payload: payload}:
	default:
	}
}

// leave unregisters c unless the hub has already stopped
func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Publish implements services.EventPublisher. It never blocks: when the
// broadcast queue is full the event is dropped.
func (h *Hub) Publish(eventType string, payload interface{}) {
	select {
	case h.broadcast <- models.WSMessage{Type: eventType, Payload: payload}:
	default:
		h.log.Warn("Broadcast queue full, dropping event", "type", eventType)
	}
}

// readPump pumps messages from the websocket connection to the hub
func (c *Client) readPump() {
	defer func() {
		c.hub.leave(c)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Debug("WebSocket error", "client_id", c.id, "error", err)
			}
			break
		}

		// Clients only listen; anything they send is logged and dropped
		var msg models.WSMessage
		if err := json.Unmarshal(message, &msg); err == nil {
			c.hub.log.Debug("Received message", "client_id", c.id, "type", msg.Type)
		}
	}
}

// writePump pumps messages from the hub to the websocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeWs handles websocket requests from clients
func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("WebSocket upgrade error", "error", err)
		return
	}

	client := &Client{
		id:   uuid.NewString(),
		hub:  h,
		conn: conn,
		send: make(chan models.WSMessage, sendBuffer),
	}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	// Allow collection of memory referenced by the caller by doing all work in new goroutines
	go client.writePump()
	go client.readPump()
}

// WatchPhases polls election statuses every interval and broadcasts a
// phase_changed event for each election whose status moved since the last
// poll. It returns when ctx is done.
func (h *Hub) WatchPhases(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	h.checkPhases(ctx, false)
	for {
		select {
		case <-ctx.Done():
			h.log.Info("Phase watcher stopped")
			return
		case <-ticker.C:
			h.checkPhases(ctx, true)
		}
	}
}

// checkPhases records current statuses and, when announce is set,
// broadcasts the ones that changed.
func (h *Hub) checkPhases(ctx context.Context, announce bool) {
	if h.elections == nil {
		return
	}
	elections, err := h.elections.ListElections(ctx, models.ElectionFilter{ExcludeCancelled: true})
	if err != nil {
		h.log.Warn("Phase watcher failed to list elections", "error", err)
		return
	}

	seen := make(map[int64]bool, len(elections))
	for _, e := range elections {
		seen[e.ID] = true
		if e.Status == "" {
			continue
		}
		previous, known := h.phases[e.ID]
		h.phases[e.ID] = e.Status
		if announce && known && previous != e.Status {
			h.log.Info("Election phase changed", "election_id", e.ID, "from", previous, "to", e.Status)
			h.Publish(EventPhaseChanged, map[string]interface{}{
				"election_id": e.ID,
				"title":       e.Title,
				"from":        previous,
				"to":          e.Status,
			})
		}
	}
	for id := range h.phases {
		if !seen[id] {
			delete(h.phases, id)
		}
	}
}

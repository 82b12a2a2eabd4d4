package events

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/praxisops/crisis-exercise-backend/internal/domain/inject"
	"github.com/praxisops/crisis-exercise-backend/internal/domain/values"
)

// InjectNotification is the payload delivered to connected participants the
// moment an event publishes.
type InjectNotification struct {
	Event    *inject.PublishedEvent `json:"event"`
	Title    string                 `json:"title"`
	Body     string                 `json:"body"`
	Severity values.Severity        `json:"severity"`
}

// wsMessage is the wire envelope for hub pushes.
type wsMessage struct {
	Type      string              `json:"type"`
	Inject    *InjectNotification `json:"inject,omitempty"`
	Timestamp time.Time           `json:"timestamp"`
}

// HubConfig configures the WebSocket hub
type HubConfig struct {
	WriteTimeout   time.Duration
	PingInterval   time.Duration
	PongTimeout    time.Duration
	SendBufferSize int
}

// DefaultHubConfig returns default hub configuration
func DefaultHubConfig() HubConfig {
	return HubConfig{
		WriteTimeout:   10 * time.Second,
		PingInterval:   30 * time.Second,
		PongTimeout:    60 * time.Second,
		SendBufferSize: 64,
	}
}

// Identity is who a connection belongs to; scope filtering runs against it.
type Identity struct {
	UserID     uuid.UUID
	Role       values.Role
	Team       values.Team
	ExerciseID uuid.UUID
}

// Client is one participant connection. The send channel is never closed;
// pumps exit via done so a racing broadcast can never hit a closed channel.
type Client struct {
	identity Identity
	conn     *websocket.Conn
	send     chan []byte
	done     chan struct{}
	closed   sync.Once
}

// Hub fans published injects out to connected participants. Delivery is
// filtered per connection by the event's resolved scope; a slow consumer is
// dropped rather than allowed to stall the broadcast.
type Hub struct {
	logger  *zap.Logger
	config  HubConfig
	mu      sync.RWMutex
	clients map[*Client]struct{}
}

func NewHub(logger *zap.Logger, config HubConfig) *Hub {
	return &Hub{
		logger:  logger,
		config:  config,
		clients: make(map[*Client]struct{}),
	}
}

// Register attaches a connection to the hub and starts its pumps.
func (h *Hub) Register(conn *websocket.Conn, identity Identity) *Client {
	client := &Client{
		identity: identity,
		conn:     conn,
		send:     make(chan []byte, h.config.SendBufferSize),
		done:     make(chan struct{}),
	}

	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()

	go h.writePump(client)
	go h.readPump(client)

	h.logger.Debug("websocket client registered",
		zap.String("user_id", identity.UserID.String()),
		zap.String("role", identity.Role.String()))
	return client
}

func (h *Hub) unregister(client *Client) {
	h.mu.Lock()
	delete(h.clients, client)
	h.mu.Unlock()

	client.closed.Do(func() {
		close(client.done)
		_ = client.conn.Close()
	})
}

// Broadcast delivers a published inject to every covered connection in the
// event's exercise.
func (h *Hub) Broadcast(notification *InjectNotification) error {
	data, err := json.Marshal(wsMessage{
		Type:      "inject_published",
		Inject:    notification,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal inject notification: %w", err)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	scope := notification.Event.ResolvedScope
	for client := range h.clients {
		if client.identity.ExerciseID != notification.Event.ExerciseID {
			continue
		}
		if !scope.Covers(client.identity.UserID, client.identity.Role, client.identity.Team) {
			continue
		}
		select {
		case client.send <- data:
		default:
			h.logger.Warn("dropping slow websocket client",
				zap.String("user_id", client.identity.UserID.String()))
			go h.unregister(client)
		}
	}
	return nil
}

// ClientCount reports how many connections the hub is serving.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Shutdown closes every connection.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.clients = make(map[*Client]struct{})
	h.mu.Unlock()

	for _, client := range clients {
		client.closed.Do(func() {
			close(client.done)
			_ = client.conn.Close()
		})
	}
}

func (h *Hub) writePump(client *Client) {
	ticker := time.NewTicker(h.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-client.done:
			_ = client.conn.WriteMessage(websocket.CloseMessage, nil)
			return
		case data := <-client.send:
			_ = client.conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if err := client.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.unregister(client)
				return
			}
		case <-ticker.C:
			_ = client.conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.unregister(client)
				return
			}
		}
	}
}

// readPump discards inbound frames; the hub is push-only. It exists to
// service pongs and detect closed connections.
func (h *Hub) readPump(client *Client) {
	defer h.unregister(client)

	_ = client.conn.SetReadDeadline(time.Now().Add(h.config.PongTimeout))
	client.conn.SetPongHandler(func(string) error {
		return client.conn.SetReadDeadline(time.Now().Add(h.config.PongTimeout))
	})

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}

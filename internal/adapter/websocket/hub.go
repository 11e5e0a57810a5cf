package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/gridwatt/csms-core/internal/domain"
)

// Channel names clients may subscribe to. Account channels are derived from
// the account reference, e.g. "user:U-42".
const (
	ChannelAdmin  = "admin"
	ChannelGlobal = "global"
)

func AccountChannel(ref string) string { return "user:" + ref }

// envelope is the wire shape pushed to subscribers.
type envelope struct {
	Topic      string          `json:"topic"`
	Payload    json.RawMessage `json:"payload"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// Hub fans committed domain events out to websocket subscribers. Every event
// reaches the global and admin channels; events carrying an account reference
// additionally reach that account's channel.
type Hub struct {
	// Registered clients.
	clients map[*Client]bool

	// Outbound messages tagged with their target channel.
	broadcast chan channelMessage

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	mu  sync.RWMutex
	log *zap.Logger
}

type channelMessage struct {
	channel string
	data    []byte
}

type Client struct {
	hub *Hub
	// The websocket connection.
	conn *websocket.Conn
	// Buffered channel of outbound messages.
	send chan []byte
	// Channels this client receives.
	channels map[string]bool
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		broadcast:  make(chan channelMessage, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		log:        log,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
		case message := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				if !client.channels[message.channel] {
					continue
				}
				select {
				case client.send <- message.data:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Broadcast satisfies ports.Broadcaster. The payload is expected to be the
// already-marshaled event body from the outbox.
func (h *Hub) Broadcast(event domain.Event) {
	payload, ok := event.Payload.(json.RawMessage)
	if !ok {
		raw, err := json.Marshal(event.Payload)
		if err != nil {
			h.log.Warn("Failed to marshal event payload", zap.String("topic", event.Topic), zap.Error(err))
			return
		}
		payload = raw
	}

	data, err := json.Marshal(envelope{
		Topic:      event.Topic,
		Payload:    payload,
		OccurredAt: event.OccurredAt,
	})
	if err != nil {
		h.log.Warn("Failed to marshal event envelope", zap.String("topic", event.Topic), zap.Error(err))
		return
	}

	h.broadcast <- channelMessage{channel: ChannelGlobal, data: data}
	h.broadcast <- channelMessage{channel: ChannelAdmin, data: data}
	if event.AccountRef != "" {
		h.broadcast <- channelMessage{channel: AccountChannel(event.AccountRef), data: data}
	}
}

// AddClient registers a connection subscribed to the given channels and
// starts its pumps.
func (h *Hub) AddClient(conn *websocket.Conn, channels ...string) {
	subscribed := make(map[string]bool, len(channels))
	for _, ch := range channels {
		subscribed[ch] = true
	}

	client := &Client{hub: h, conn: conn, send: make(chan []byte, 256), channels: subscribed}
	client.hub.register <- client

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.writePump()
	go client.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	for {
		// Read loop keeps the connection alive and services control frames;
		// this hub is push-only, inbound payloads are discarded.
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (c *Client) writePump() {
	defer func() {
		c.conn.Close()
	}()
	for message := range c.send {
		w, err := c.conn.NextWriter(websocket.TextMessage)
		if err != nil {
			return
		}
		w.Write(message)

		// Fold queued messages into the current websocket frame.
		n := len(c.send)
		for i := 0; i < n; i++ {
			w.Write(<-c.send)
		}

		if err := w.Close(); err != nil {
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

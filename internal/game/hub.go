package game

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const writeWait = 10 * time.Second

type Client struct {
	conn *websocket.Conn
	id   string
	mu   sync.Mutex
}

// Hub fans game events out to every connected WebSocket client.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan any
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
	log        *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan any, 100),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run serves registrations and broadcasts until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				_ = client.conn.Close()
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			h.log.Info("client connected", zap.String("client", client.id), zap.Int("total", total))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				_ = client.conn.Close()
				h.log.Info("client disconnected", zap.String("client", client.id), zap.Int("total", len(h.clients)))
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			data, err := json.Marshal(message)
			if err != nil {
				h.log.Warn("marshal broadcast", zap.Error(err))
				continue
			}

			h.mu.RLock()
			for client := range h.clients {
				go client.send(data, h.log)
			}
			h.mu.RUnlock()
		}
	}
}

// Broadcast queues message for delivery. It never blocks; a full queue drops
// the message. A nil Hub discards everything.
func (h *Hub) Broadcast(message any) {
	if h == nil {
		return
	}
	select {
	case h.broadcast <- message:
	default:
		h.log.Warn("broadcast channel full, dropping message")
	}
}

func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (c *Client) send(data []byte, log *zap.Logger) {
	c.mu.Lock()
	defer c.mu.Unlock()

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		log.Warn("websocket write", zap.String("client", c.id), zap.Error(err))
	}
}

// Serve registers conn, pushes initial, and blocks reading until the peer
// goes away.
func (h *Hub) Serve(conn *websocket.Conn, id string, initial any) {
	client := &Client{conn: conn, id: id}
	select {
	case h.register <- client:
	case <-h.done:
		return
	}
	defer func() {
		select {
		case h.unregister <- client:
		case <-h.done:
		}
	}()

	if initial != nil {
		if data, err := json.Marshal(initial); err == nil {
			client.send(data, h.log)
		}
	}

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MJE43/stake-cycles/internal/driver"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 256
)

// Feed message types.
const (
	FeedGameStarted = "game_started"
	FeedRound       = "round"
	FeedGameEnded   = "game_ended"
)

// FeedMessage is one JSON frame sent to feed subscribers.
type FeedMessage struct {
	Type    string              `json:"type"`
	Game    *driver.GameInfo    `json:"game,omitempty"`
	Round   *driver.RoundRecord `json:"round,omitempty"`
	Summary *driver.Summary     `json:"summary,omitempty"`
}

type feedClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Hub broadcasts played rounds to websocket subscribers. It is a driver
// listener; publishing never blocks the game, and a subscriber that
// falls behind is dropped.
type Hub struct {
	clients    map[*feedClient]bool
	broadcast  chan []byte
	register   chan *feedClient
	unregister chan *feedClient
	quit       chan struct{}
	mu         sync.Mutex
	logger     *log.Logger
	upgrader   websocket.Upgrader
}

func NewHub(logger *log.Logger) *Hub {
	if logger == nil {
		logger = discardLogger()
	}
	return &Hub{
		clients:    make(map[*feedClient]bool),
		broadcast:  make(chan []byte, sendBuffer),
		register:   make(chan *feedClient),
		unregister: make(chan *feedClient),
		quit:       make(chan struct{}),
		logger:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// Run handles subscriptions and broadcasts until ctx is done. It must be
// called once.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.quit)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			h.logger.Printf("feed hub shutting down")
			return
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()
			h.logger.Printf("feed client connected from %s", c.conn.RemoteAddr())
		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				h.logger.Printf("feed client disconnected")
			}
			h.mu.Unlock()
		case msg := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					close(c.send)
					delete(h.clients, c)
					h.logger.Printf("feed client dropped: send buffer full")
				}
			}
			h.mu.Unlock()
		}
	}
}

// Clients reports the number of connected subscribers.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) publish(msg FeedMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		h.logger.Printf("feed: encode %s: %v", msg.Type, err)
		return
	}
	select {
	case h.broadcast <- payload:
	default:
		h.logger.Printf("feed: backlog full, %s message dropped", msg.Type)
	}
}

func (h *Hub) GameStarted(_ context.Context, info driver.GameInfo) error {
	h.publish(FeedMessage{Type: FeedGameStarted, Game: &info})
	return nil
}

func (h *Hub) RoundPlayed(_ context.Context, rec driver.RoundRecord) error {
	h.publish(FeedMessage{Type: FeedRound, Round: &rec})
	return nil
}

func (h *Hub) GameEnded(_ context.Context, sum driver.Summary) error {
	h.publish(FeedMessage{Type: FeedGameEnded, Summary: &sum})
	return nil
}

// ServeWS upgrades the request and subscribes the connection.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("feed upgrade failed: %v", err)
		return
	}
	c := &feedClient{hub: h, conn: conn, send: make(chan []byte, sendBuffer)}
	select {
	case h.register <- c:
	case <-h.quit:
		conn.Close()
		return
	}
	go c.writePump()
	go c.readPump()
}

// readPump discards inbound frames; it exists to process control frames
// and notice disconnects.
func (c *feedClient) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.quit:
		}
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Printf("feed read: %v", err)
			}
			return
		}
	}
}

func (c *feedClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

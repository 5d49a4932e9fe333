// Package websocket pushes shared gift map updates to connected viewers.
package websocket

import (
	"context"
	"encoding/json"
	"time"

	"github.com/brroMonta/gifting/internal/app/model"
	"github.com/brroMonta/gifting/internal/metrics"
	"github.com/brroMonta/gifting/pkg/logger"
	"github.com/brroMonta/gifting/pkg/sharelink"
	"github.com/gorilla/websocket"
)

const (
	MessageSnapshot = "snapshot"
	MessageRevoked  = "revoked"

	sendBufferSize = 64
)

// Message is what viewers receive.
type Message struct {
	Type    string               `json:"type"`
	GiftMap *model.PublicGiftMap `json:"gift_map,omitempty"`
}

// Client is one viewer connection watching a share token.
type Client struct {
	hub   *Hub
	conn  *websocket.Conn
	token string
	send  chan []byte
}

// NewClient wraps an upgraded connection. It is not attached until Register.
func NewClient(hub *Hub, conn *websocket.Conn, token string) *Client {
	return &Client{
		hub:   hub,
		conn:  conn,
		token: token,
		send:  make(chan []byte, sendBufferSize),
	}
}

// broadcast goes to every viewer of token, or only to client when set.
type broadcast struct {
	token  string
	client *Client
	data   []byte
	revoke bool
}

// Hub tracks viewers per share token. All map access happens on the Run
// goroutine.
type Hub struct {
	viewers    map[string]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan *broadcast
	count      chan chan int
	done       chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		viewers:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client, 256),
		broadcast:  make(chan *broadcast, 1024),
		count:      make(chan chan int),
		done:       make(chan struct{}),
	}
}

// Run serves the hub until ctx is cancelled, then disconnects everyone.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for token := range h.viewers {
				h.dropAll(token)
			}
			return

		case client := <-h.register:
			if h.viewers[client.token] == nil {
				h.viewers[client.token] = make(map[*Client]bool)
			}
			h.viewers[client.token][client] = true
			metrics.WebsocketViewers.Inc()
			logger.Debug("Viewer connected", map[string]interface{}{
				"share_token": sharelink.Redact(client.token),
				"viewers":     len(h.viewers[client.token]),
			})

		case client := <-h.unregister:
			h.drop(client)

		case msg := <-h.broadcast:
			if msg.client != nil {
				if h.viewers[msg.token][msg.client] {
					h.deliver(msg.client, msg)
				}
				continue
			}
			for client := range h.viewers[msg.token] {
				h.deliver(client, msg)
			}

		case reply := <-h.count:
			n := 0
			for _, clients := range h.viewers {
				n += len(clients)
			}
			reply <- n
		}
	}
}

func (h *Hub) deliver(client *Client, msg *broadcast) {
	select {
	case client.send <- msg.data:
		if msg.revoke {
			h.drop(client)
		}
	default:
		logger.Warn("Viewer send buffer full, disconnecting", map[string]interface{}{
			"share_token": sharelink.Redact(msg.token),
		})
		h.drop(client)
	}
}

func (h *Hub) drop(client *Client) {
	clients, ok := h.viewers[client.token]
	if !ok || !clients[client] {
		return
	}
	delete(clients, client)
	if len(clients) == 0 {
		delete(h.viewers, client.token)
	}
	close(client.send)
	metrics.WebsocketViewers.Dec()
}

func (h *Hub) dropAll(token string) {
	for client := range h.viewers[token] {
		h.drop(client)
	}
}

// Register attaches client. When it returns the hub has recorded the client,
// so anything published afterwards reaches it.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		close(client.send)
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Viewers returns the number of connected viewers. It blocks until Run
// answers or ctx ends.
func (h *Hub) Viewers(ctx context.Context) int {
	reply := make(chan int, 1)
	select {
	case h.count <- reply:
	case <-ctx.Done():
		return 0
	case <-h.done:
		return 0
	}
	select {
	case n := <-reply:
		return n
	case <-ctx.Done():
		return 0
	}
}

func (h *Hub) publish(token string, client *Client, msg Message, revoke bool) {
	data, err := json.Marshal(msg)
	if err != nil {
		logger.Error("Failed to marshal viewer message", err, nil)
		return
	}

	select {
	case h.broadcast <- &broadcast{token: token, client: client, data: data, revoke: revoke}:
	case <-h.done:
	case <-time.After(time.Second):
		// Viewers reconcile on their next snapshot or reconnect.
		logger.Warn("Broadcast channel full, message dropped", map[string]interface{}{
			"share_token": sharelink.Redact(token),
			"type":        msg.Type,
		})
	}
}

// PublishSnapshot sends the new public view to everyone watching token.
func (h *Hub) PublishSnapshot(token string, view *model.PublicGiftMap) {
	h.publish(token, nil, Message{Type: MessageSnapshot, GiftMap: view}, false)
}

// PublishRevoked tells viewers the link is gone and disconnects them.
func (h *Hub) PublishRevoked(token string) {
	h.publish(token, nil, Message{Type: MessageRevoked}, true)
}

// SendSnapshot sends view to one registered client only.
func (h *Hub) SendSnapshot(client *Client, view *model.PublicGiftMap) {
	h.publish(client.token, client, Message{Type: MessageSnapshot, GiftMap: view}, false)
}

// SendRevoked tells one registered client the link is gone and disconnects it.
func (h *Hub) SendRevoked(client *Client) {
	h.publish(client.token, client, Message{Type: MessageRevoked}, true)
}

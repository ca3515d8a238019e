package websocket

import (
	"sync"

	"github.com/rs/zerolog"
)

// Broadcaster fans a strand event out to subscribed clients. Keeping this as
// an interface (rather than exposing *Hub directly) leaves room for a future
// Redis-backed broadcaster for horizontal scaling.
type Broadcaster interface {
	Broadcast(event *StrandEvent)
}

// Hub manages WebSocket connections and fans out strand events to clients
// subscribed by tag or kind.
type Hub struct {
	clients map[*Client]bool

	register chan *Client
	unregister chan *Client
	broadcast chan *StrandEvent

	byTag map[string]map[*Client]bool
	byKind map[string]map[*Client]bool

	log zerolog.Logger
	mu sync.RWMutex
}

// NewHub creates a new Hub instance.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]bool),
		register: make(chan *Client),
		unregister: make(chan *Client),
		broadcast: make(chan *StrandEvent, 256),
		byTag: make(map[string]map[*Client]bool),
		byKind: make(map[string]map[*Client]bool),
		log: log,
	}
}

// Run starts the hub's main event loop. Call this in a goroutine.
func (h *Hub) Run() {
	for {
		select {
			case client := <-h.register:
				h.registerClient(client)
			case client := <-h.unregister:
				h.unregisterClient(client)
			case event := <-h.broadcast:
				h.broadcastEvent(event)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client] = true
	h.log.Debug().Str("client_id", client.id).Int("total_clients", len(h.clients)).Msg("websocket client registered")
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.send)

	client.subs.mu.RLock()
	for tag := range client.subs.tags {
		if clients, ok := h.byTag[tag]; ok {
			delete(clients, client)
			if len(clients) == 0 {
				delete(h.byTag, tag)
			}
		}
	}
	for kind := range client.subs.kinds {
		if clients, ok := h.byKind[kind]; ok {
			delete(clients, client)
			if len(clients) == 0 {
				delete(h.byKind, kind)
			}
		}
	}
	client.subs.mu.RUnlock()

	h.log.Debug().Str("client_id", client.id).Int("total_clients", len(h.clients)).Msg("websocket client unregistered")
}

// Broadcast sends a strand event to every subscribed client. Implements the
// Broadcaster interface.
func (h *Hub) Broadcast(event *StrandEvent) {
	select {
		case h.broadcast <- event:
		default:
			h.log.Warn().Str("event_type", event.Type).Msg("hub broadcast channel full, dropping event")
	}
}

func (h *Hub) broadcastEvent(event *StrandEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	targets := make(map[*Client]bool)
	if clients, ok := h.byKind[string(event.Kind)]; ok {
		for client := range clients {
			targets[client] = true
		}
	}
	for _, tag := range event.Tags {
		if clients, ok := h.byTag[tag]; ok {
			for client := range clients {
				targets[client] = true
			}
		}
	}
	// A client with no subscriptions at all receives everything.
	for client := range h.clients {
		if client.subs.empty() {
			targets[client] = true
		}
	}

	for client := range targets {
		select {
			case client.send <- event:
			default:
				h.log.Warn().Str("client_id", client.id).Str("event_type", event.Type).Msg("client buffer full, dropping message")
		}
	}
}

// Subscribe adds a tag/kind subscription for a client. An empty tags/kind
// pair means "subscribe to everything".
func (h *Hub) Subscribe(client *Client, tags []string, kind string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client.subs.mu.Lock()
	defer client.subs.mu.Unlock()

	for _, tag := range tags {
		client.subs.tags[tag] = true
		if h.byTag[tag] == nil {
			h.byTag[tag] = make(map[*Client]bool)
		}
		h.byTag[tag][client] = true
	}
	if kind != "" {
		client.subs.kinds[kind] = true
		if h.byKind[kind] == nil {
			h.byKind[kind] = make(map[*Client]bool)
		}
		h.byKind[kind][client] = true
	}
}

// Unsubscribe removes a tag/kind subscription for a client.
func (h *Hub) Unsubscribe(client *Client, tags []string, kind string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client.subs.mu.Lock()
	defer client.subs.mu.Unlock()

	for _, tag := range tags {
		delete(client.subs.tags, tag)
		if clients, ok := h.byTag[tag]; ok {
			delete(clients, client)
			if len(clients) == 0 {
				delete(h.byTag, tag)
			}
		}
	}
	if kind != "" {
		delete(client.subs.kinds, kind)
		if clients, ok := h.byKind[kind]; ok {
			delete(clients, client)
			if len(clients) == 0 {
				delete(h.byKind, kind)
			}
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

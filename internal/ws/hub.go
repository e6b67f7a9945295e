package ws

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"

	syncpkg "github.com/iranverse/avatar-engine/internal/sync"
)

// Relay receives raw inbound channel messages for a session.
type Relay interface {
	HandleRaw(id uuid.UUID, raw []byte) error
}

type outbound struct {
	sessionID uuid.UUID
	payload   []byte
}

// Hub routes traffic between websocket clients and their creation
// sessions. One session can have several attached clients; every
// outbound payload goes to all of them.
type Hub struct {
	clients    map[*Client]bool
	sessions   map[uuid.UUID]map[*Client]bool
	send       chan outbound
	register   chan *Client
	unregister chan *Client
	relay      Relay
	mu         sync.RWMutex
}

func NewHub(relay Relay) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		sessions:   make(map[uuid.UUID]map[*Client]bool),
		send:       make(chan outbound, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		relay:      relay,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case out := <-h.send:
			h.deliver(out)
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client] = true

	if h.sessions[client.sessionID] == nil {
		h.sessions[client.sessionID] = make(map[*Client]bool)
	}
	h.sessions[client.sessionID][client] = true
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		delete(h.sessions[client.sessionID], client)

		if len(h.sessions[client.sessionID]) == 0 {
			delete(h.sessions, client.sessionID)
		}

		close(client.send)
	}
}

// deliver fans a payload out to the session's clients. It evicts
// clients whose send buffer is full, so it mutates the maps and needs
// the write lock.
func (h *Hub) deliver(out outbound) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := h.sessions[out.sessionID]
	if clients == nil {
		return
	}

	for client := range clients {
		select {
		case client.send <- out.payload:
		default:
			close(client.send)
			delete(h.clients, client)
			delete(h.sessions[out.sessionID], client)
		}
	}
}

// Send queues a payload for every client attached to the session.
// Implements the session controller's outbound sink.
func (h *Hub) Send(sessionID uuid.UUID, payload []byte) {
	select {
	case h.send <- outbound{sessionID: sessionID, payload: payload}:
	default:
	}
}

// Notify delivers a sync-worker outcome to the session's clients.
func (h *Hub) Notify(sessionID uuid.UUID, n syncpkg.Notification) {
	payload, err := json.Marshal(n)
	if err != nil {
		return
	}
	h.Send(sessionID, payload)
}

func (h *Hub) ConnectedClients(sessionID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.sessions[sessionID])
}

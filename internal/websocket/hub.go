package websocket

import (
	"encoding/json"
	"sync"
)

// BalanceUpdate is pushed to every connected session of a user after a
// settlement commits, so all tabs converge on the new balance split.
type BalanceUpdate struct {
	VerifiedBalance   string `json:"verified_balance"`
	UnverifiedBalance string `json:"unverified_balance"`
}

type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
	}
}

func (h *Hub) Register(userID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[userID] == nil {
		h.clients[userID] = make(map[*Client]struct{})
	}
	h.clients[userID][client] = struct{}{}
}

func (h *Hub) Unregister(userID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[userID] == nil {
		return
	}
	delete(h.clients[userID], client)
	if len(h.clients[userID]) == 0 {
		delete(h.clients, userID)
	}
}

// BroadcastBalance pushes an absolute balance snapshot to every session of a
// user. Snapshots supersede each other, so when a client's queue is full the
// oldest queued snapshot is dropped to make room for the newest one.
func (h *Hub) BroadcastBalance(userID string, update BalanceUpdate) {
	payload, _ := json.Marshal(update)
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients[userID] {
		select {
		case client.send <- payload:
			continue
		default:
		}
		select {
		case <-client.send:
		default:
		}
		select {
		case client.send <- payload:
		default:
		}
	}
}

package ws

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Eggplant203/Rock-Paper-Scissors-15/internal/app"
	"github.com/Eggplant203/Rock-Paper-Scissors-15/internal/protocol"

	"github.com/heroiclabs/nakama-common/runtime"
)

var ErrUnknownConnection = errors.New("unknown connection")

// Hub tracks live clients and the room channels they are subscribed to.
// It implements app.Gateway for the standalone server.
type Hub struct {
	logger runtime.Logger

	mu      sync.RWMutex
	clients map[string]*Client
	rooms   map[string]map[string]*Client // room id -> connection id -> client
}

// NewHub creates an empty hub.
func NewHub(logger runtime.Logger) *Hub {
	return &Hub{
		logger:  logger,
		clients: make(map[string]*Client),
		rooms:   make(map[string]map[string]*Client),
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.id] = c
}

// unregister forgets c and removes it from every room channel.
func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.clients, c.id)
	for roomID, members := range h.rooms {
		if _, ok := members[c.id]; ok {
			delete(members, c.id)
			if len(members) == 0 {
				delete(h.rooms, roomID)
			}
		}
	}
}

// Len reports the number of live clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// CloseAll disconnects every client.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.Close()
	}
}

func (h *Hub) JoinChannel(ctx context.Context, connectionID, roomID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[connectionID]
	if !ok {
		return fmt.Errorf("join room %s: %w: %s", roomID, ErrUnknownConnection, connectionID)
	}
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[string]*Client)
	}
	h.rooms[roomID][connectionID] = c
	return nil
}

func (h *Hub) LeaveChannel(ctx context.Context, connectionID, roomID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	members := h.rooms[roomID]
	delete(members, connectionID)
	if len(members) == 0 {
		delete(h.rooms, roomID)
	}
	return nil
}

// Dispatch queues ev on its recipients, or on every member of the room when it
// names none.
func (h *Hub) Dispatch(ctx context.Context, roomID string, ev app.Event) error {
	data, err := protocol.Encode(string(ev.Kind), ev.Payload)
	if err != nil {
		return err
	}

	for _, c := range h.recipients(roomID, ev.Recipients) {
		if !c.Send(data) {
			h.logger.Debug("Dispatch: %s dropped for %s", ev.Kind, c.id)
		}
	}
	return nil
}

func (h *Hub) recipients(roomID string, ids []string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(ids) == 0 {
		out := make([]*Client, 0, len(h.rooms[roomID]))
		for _, c := range h.rooms[roomID] {
			out = append(out, c)
		}
		return out
	}

	out := make([]*Client, 0, len(ids))
	for _, id := range ids {
		if c, ok := h.clients[id]; ok {
			out = append(out, c)
		}
	}
	return out
}

var _ app.Gateway = (*Hub)(nil)

package ws

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/playmatatu/billiards/internal/session"
)

// Hub tracks the clients watching each table and fans messages out to them.
type Hub struct {
	rooms      map[string]map[*Client]struct{} // tableID -> clients
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
}

// NewHub creates a new Hub. Call Run to start it.
func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run processes registrations until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			room, ok := h.rooms[client.tableID]
			if !ok {
				room = make(map[*Client]struct{})
				h.rooms[client.tableID] = room
			}
			room[client] = struct{}{}
			size := len(room)
			h.mu.Unlock()
			log.Printf("[WS] Client %s joined table %s (room_size=%d)", client.id, client.tableID, size)

		case client := <-h.unregister:
			h.mu.Lock()
			if room, ok := h.rooms[client.tableID]; ok {
				if _, ok := room[client]; ok {
					delete(room, client)
					close(client.send)
					if len(room) == 0 {
						delete(h.rooms, client.tableID)
					}
					log.Printf("[WS] Client %s left table %s", client.id, client.tableID)
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, room := range h.rooms {
		for c := range room {
			close(c.send)
		}
		delete(h.rooms, id)
	}
}

// join and leave give up once the hub has stopped.
func (h *Hub) join(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// RoomSize is the number of clients watching a table.
func (h *Hub) RoomSize(tableID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[tableID])
}

// BroadcastToTable sends a message to every client watching a table.
func (h *Hub) BroadcastToTable(tableID string, message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("[WS] Error marshaling message: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.rooms[tableID] {
		select {
		case client.send <- data:
		default:
			log.Printf("[WS] Send buffer full for client %s on table %s, dropping message", client.id, tableID)
		}
	}
}

// PublishFrame broadcasts a table frame to its room.
func (h *Hub) PublishFrame(f session.Frame) {
	h.BroadcastToTable(f.TableID, f)
}

// tableEventMessage is how a Redis table event reaches clients.
type tableEventMessage struct {
	Type  string             `json:"type"` // "table_event"
	Event session.TableEvent `json:"event"`
}

// BroadcastTableEvent relays a table event to the room of its table.
func (h *Hub) BroadcastTableEvent(ev session.TableEvent) {
	if h.RoomSize(ev.TableID) == 0 {
		return
	}
	h.BroadcastToTable(ev.TableID, tableEventMessage{Type: "table_event", Event: ev})
}

package rooms

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/smartwell-la/smartwell-platform/pkg/logging"
)

// Event is a message broadcast inside a room.
type Event struct {
	Type      string          `json:"type"`
	RoomID    string          `json:"room_id"`
	UserID    string          `json:"user_id,omitempty"`
	Role      string          `json:"role,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// Event types emitted by the hub.
const (
	EventJoined = "participant_joined"
	EventLeft   = "participant_left"
	EventSignal = "signal"
)

// Conn abstracts a websocket connection for testability.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Participant is one connected session member.
type Participant struct {
	UserID string
	Role   string
	RoomID string
	Send   chan []byte
	conn   Conn
	hub    *Hub
}

// Hub tracks room membership. A room exists while it has at least one
// participant and disappears when the last one leaves.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]map[*Participant]struct{}
	logger *logging.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *logging.Logger) *Hub {
	if logger == nil {
		logger = logging.Default()
	}
	return &Hub{rooms: make(map[string]map[*Participant]struct{}), logger: logger}
}

// Join registers a participant and announces them to the room.
func (h *Hub) Join(p *Participant) {
	h.mu.Lock()
	if h.rooms[p.RoomID] == nil {
		h.rooms[p.RoomID] = make(map[*Participant]struct{})
	}
	h.rooms[p.RoomID][p] = struct{}{}
	h.mu.Unlock()

	h.Broadcast(p.RoomID, Event{
		Type: EventJoined, RoomID: p.RoomID, UserID: p.UserID, Role: p.Role,
		Timestamp: time.Now().UTC(),
	})
}

// Leave removes a participant, closes their send channel and announces
// the departure. The room is deleted once empty.
func (h *Hub) Leave(p *Participant) {
	h.mu.Lock()
	participants, ok := h.rooms[p.RoomID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, member := participants[p]; !member {
		h.mu.Unlock()
		return
	}
	delete(participants, p)
	if len(participants) == 0 {
		delete(h.rooms, p.RoomID)
	}
	close(p.Send)
	h.mu.Unlock()

	h.Broadcast(p.RoomID, Event{
		Type: EventLeft, RoomID: p.RoomID, UserID: p.UserID, Role: p.Role,
		Timestamp: time.Now().UTC(),
	})
}

// Broadcast sends an event to every participant in the room. Slow
// consumers are skipped rather than blocking the room.
func (h *Hub) Broadcast(roomID string, event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("failed to marshal room event", "room_id", roomID, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for p := range h.rooms[roomID] {
		select {
		case p.Send <- data:
		default:
		}
	}
}

// Relay forwards a signaling payload from one participant to everyone
// else in the room.
func (h *Hub) Relay(from *Participant, payload json.RawMessage) {
	data, err := json.Marshal(Event{
		Type: EventSignal, RoomID: from.RoomID, UserID: from.UserID, Role: from.Role,
		Timestamp: time.Now().UTC(), Data: payload,
	})
	if err != nil {
		h.logger.Error("failed to marshal signal", "room_id", from.RoomID, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for p := range h.rooms[from.RoomID] {
		if p == from {
			continue
		}
		select {
		case p.Send <- data:
		default:
		}
	}
}

// RoomSize returns how many participants are in a room.
func (h *Hub) RoomSize(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// OpenRooms returns the number of rooms with at least one participant.
func (h *Hub) OpenRooms() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

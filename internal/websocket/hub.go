package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/dukerupert/moodtracker/internal/model"
)

const TypeMoodRecorded = "mood_recorded"

// Message is pushed to a user's open calendar pages.
type Message struct {
	Type         string `json:"type"`
	Date         string `json:"date"`
	Emoji        string `json:"emoji"`
	TextResponse string `json:"text_response"`
}

// Hub tracks live connections per user and fans messages out to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
	logger  *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
		logger:  logger,
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.userID]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[c.userID] = set
	}
	set[c] = struct{}{}
}

// Unregister removes a client from the hub and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.userID]
	if !ok {
		return
	}
	if _, ok := set[c]; ok {
		delete(set, c)
		close(c.send)
	}
	if len(set) == 0 {
		delete(h.clients, c.userID)
	}
}

// BroadcastTo sends msg to every connection belonging to userID. Slow
// clients with a full buffer miss the message.
func (h *Hub) BroadcastTo(userID string, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal broadcast", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients[userID] {
		select {
		case c.send <- data:
		default:
			h.logger.Warn("client buffer full, dropping message", "user_id", userID)
		}
	}
}

// MoodRecorded notifies the user's open calendars of a new or replaced entry.
func (h *Hub) MoodRecorded(userID string, e model.MoodEntry) {
	h.BroadcastTo(userID, Message{
		Type:         TypeMoodRecorded,
		Date:         e.EntryDate,
		Emoji:        e.Emoji,
		TextResponse: e.TextResponse,
	})
}

// ClientCount returns the number of connected clients across all users.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.clients {
		n += len(set)
	}
	return n
}

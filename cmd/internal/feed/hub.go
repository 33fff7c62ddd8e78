package feed

import (
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"sync"

	"huddle/cmd/internal/room"
)

// Hub owns per-room subscriber sets and fans inserted messages out to them.
// It is intentionally minimal: persistence lives behind room.Store, and the
// hub never blocks a writer.
type Hub struct {
	log *slog.Logger

	mu    sync.RWMutex
	rooms map[string]map[string]*Subscriber
}

// NewHub constructs a Hub instance.
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		log:   log,
		rooms: make(map[string]map[string]*Subscriber),
	}
}

// Subscribe registers a new subscriber for a room.
func (h *Hub) Subscribe(roomID string, queueSize int) *Subscriber {
	sub := newSubscriber(newSessionID(), roomID, queueSize)

	h.mu.Lock()
	set, ok := h.rooms[roomID]
	if !ok {
		set = make(map[string]*Subscriber)
		h.rooms[roomID] = set
	}
	set[sub.ID] = sub
	h.mu.Unlock()

	h.log.Info("feed.subscribe", "room_id", roomID, "session_id", sub.ID)
	return sub
}

// Unsubscribe removes a subscriber and signals its shutdown. Removal happens
// before Close so in-flight broadcasters never race a tearing-down session.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	if h == nil || sub == nil {
		return
	}

	h.mu.Lock()
	if set, ok := h.rooms[sub.RoomID]; ok {
		delete(set, sub.ID)
		if len(set) == 0 {
			delete(h.rooms, sub.RoomID)
		}
	}
	h.mu.Unlock()

	sub.Close()
	h.log.Info("feed.unsubscribe", "room_id", sub.RoomID, "session_id", sub.ID)
}

// PublishMessage fans a stored message out to the room's subscribers.
// Non-blocking: a full queue or a shutting-down subscriber drops the event.
func (h *Hub) PublishMessage(m room.Message) {
	if h == nil {
		return
	}
	ev := newMessageEvent(m)

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.rooms[m.RoomID] {
		if sub == nil {
			continue
		}

		select {
		case <-sub.Done():
			continue
		default:
		}

		select {
		case sub.Send <- ev:
		default:
			// Drop rather than block the write path.
		}
	}
}

// SubscriberCount reports current subscribers for a room.
func (h *Hub) SubscriberCount(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

func newSessionID() string {
	b := make([]byte, 10)
	if _, err := rand.Read(b); err != nil {
		return ""
	}
	return hex.EncodeToString(b)
}

package feed

import (
	"time"

	"huddle/cmd/internal/room"
)

// Event types pushed over the feed.
const (
	TypeMessageCreated = "message.created"
)

// Event is one feed frame.
type Event struct {
	Type    string          `json:"type"`
	At      time.Time       `json:"at"`
	Message *MessagePayload `json:"message,omitempty"`
}

// MessagePayload mirrors a stored message row.
type MessagePayload struct {
	ID                 string    `json:"id"`
	RoomID             string    `json:"room_id"`
	SenderDeviceID     *string   `json:"sender_device_id,omitempty"`
	SenderNameSnapshot string    `json:"sender_name_snapshot"`
	Kind               string    `json:"kind"`
	Body               *string   `json:"body,omitempty"`
	AttachmentID       *string   `json:"attachment_id,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

func newMessageEvent(m room.Message) Event {
	return Event{
		Type: TypeMessageCreated,
		At:   time.Now().UTC(),
		Message: &MessagePayload{
			ID:                 m.ID,
			RoomID:             m.RoomID,
			SenderDeviceID:     m.SenderDeviceID,
			SenderNameSnapshot: m.SenderNameSnapshot,
			Kind:               string(m.Kind),
			Body:               m.Body,
			AttachmentID:       m.AttachmentID,
			CreatedAt:          m.CreatedAt,
		},
	}
}

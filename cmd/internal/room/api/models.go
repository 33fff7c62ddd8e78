package roomapi

import (
	"time"

	"huddle/cmd/internal/room"
)

// ---- requests ----

type createRoomRequest struct {
	DeviceID    string  `json:"device_id"`
	DisplayName string  `json:"display_name"`
	RoomName    *string `json:"room_name,omitempty"`
}

type joinRoomRequest struct {
	DeviceID    string `json:"device_id"`
	DisplayName string `json:"display_name"`
	RoomID      string `json:"room_id"`
	Key         string `json:"key"`
}

type rotateKeyRequest struct {
	DeviceID string `json:"device_id"`
	RoomID   string `json:"room_id"`
}

type endRoomRequest struct {
	DeviceID string `json:"device_id"`
	RoomID   string `json:"room_id"`
}

type deleteMessageRequest struct {
	DeviceID  string `json:"device_id"`
	RoomID    string `json:"room_id"`
	MessageID string `json:"message_id"`
}

type sendMessageRequest struct {
	DeviceID     string  `json:"device_id"`
	RoomID       string  `json:"room_id"`
	Kind         string  `json:"kind,omitempty"`
	Body         *string `json:"body,omitempty"`
	AttachmentID *string `json:"attachment_id,omitempty"`
}

type listMessagesRequest struct {
	DeviceID string `json:"device_id"`
	RoomID   string `json:"room_id"`
	Limit    int    `json:"limit,omitempty"`
}

type signUploadRequest struct {
	Filename string `json:"filename"`
	Mime     string `json:"mime"`
}

// ---- responses ----

// roomResponse deliberately excludes the join key digest: rows leave this
// service without the one material a key-guesser could brute-force offline.
type roomResponse struct {
	ID            string     `json:"id"`
	Name          *string    `json:"name,omitempty"`
	OwnerDeviceID string     `json:"owner_device_id"`
	CreatedAt     time.Time  `json:"created_at"`
	LockedAt      *time.Time `json:"locked_at,omitempty"`
	ExpiresAt     time.Time  `json:"expires_at"`
}

type createRoomResponse struct {
	Room    roomResponse `json:"room"`
	JoinKey string       `json:"join_key"`
	Token   string       `json:"token"`
}

type joinRoomResponse struct {
	Room  roomResponse `json:"room"`
	Token string       `json:"token"`
}

type rotateKeyResponse struct {
	JoinKey string `json:"join_key"`
}

type successResponse struct {
	Success bool `json:"success"`
}

type messageResponse struct {
	ID                 string    `json:"id"`
	RoomID             string    `json:"room_id"`
	SenderDeviceID     *string   `json:"sender_device_id,omitempty"`
	SenderNameSnapshot string    `json:"sender_name_snapshot"`
	Kind               string    `json:"kind"`
	Body               *string   `json:"body,omitempty"`
	AttachmentID       *string   `json:"attachment_id,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

type listMessagesResponse struct {
	Messages []messageResponse `json:"messages"`
}

type signUploadResponse struct {
	Credential string    `json:"credential"`
	Path       string    `json:"path"`
	ExpiresAt  time.Time `json:"expires_at"`
}

func toRoomResponse(r room.Room) roomResponse {
	return roomResponse{
		ID:            r.ID,
		Name:          r.Name,
		OwnerDeviceID: r.OwnerDeviceID,
		CreatedAt:     r.CreatedAt,
		LockedAt:      r.LockedAt,
		ExpiresAt:     r.ExpiresAt,
	}
}

func toMessageResponse(m room.Message) messageResponse {
	return messageResponse{
		ID:                 m.ID,
		RoomID:             m.RoomID,
		SenderDeviceID:     m.SenderDeviceID,
		SenderNameSnapshot: m.SenderNameSnapshot,
		Kind:               string(m.Kind),
		Body:               m.Body,
		AttachmentID:       m.AttachmentID,
		CreatedAt:          m.CreatedAt,
	}
}

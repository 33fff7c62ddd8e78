package room

import (
	"context"
	"time"
)

// CreateRoomRecord is a normalized room insert payload.
type CreateRoomRecord struct {
	ID            string
	Name          *string
	OwnerDeviceID string
	JoinKeyDigest string
	CreatedAt     time.Time
	ExpiresAt     time.Time
}

// UpsertParticipantRecord describes a participant insert-or-refresh keyed by
// (room_id, device_id). The conflict target is the composite key: repeat
// upserts refresh DisplayName and LastSeenAt but preserve IsBanned and the
// original JoinedAt.
type UpsertParticipantRecord struct {
	RoomID      string
	DeviceID    string
	DisplayName string
	Now         time.Time
}

// InsertMessageRecord is a normalized message insert payload.
type InsertMessageRecord struct {
	ID                 string
	RoomID             string
	SenderDeviceID     *string
	SenderNameSnapshot string
	Kind               MessageKind
	Body               *string
	AttachmentID       *string
	CreatedAt          time.Time
}

// Store is the persistence boundary for rooms, participants, and messages.
//
// The store enforces no authorization of its own; the Service is the sole
// enforcement point for ownership and sender rules. Implementations must
// provide at least read-committed semantics and atomic composite-key upsert.
type Store interface {
	// CreateRoom inserts a new room row.
	CreateRoom(ctx context.Context, in CreateRoomRecord) (Room, error)

	// GetRoom loads a room by ID; ErrNotFound if absent.
	GetRoom(ctx context.Context, roomID string) (Room, error)

	// SetJoinKeyDigest overwrites the room's join key digest.
	// Concurrent rotations are last-write-wins.
	SetJoinKeyDigest(ctx context.Context, roomID, digest string) error

	// LockRoom sets locked_at if not already set. Locking an already-locked
	// room succeeds without side effect.
	LockRoom(ctx context.Context, roomID string, now time.Time) error

	// UpsertParticipant inserts or refreshes a participant and returns the
	// row as stored after the write (so a concurrently set ban is visible).
	UpsertParticipant(ctx context.Context, in UpsertParticipantRecord) (Participant, error)

	// GetParticipant loads a participant by composite key; ErrNotFound if absent.
	GetParticipant(ctx context.Context, roomID, deviceID string) (Participant, error)

	// InsertMessage inserts a message row.
	InsertMessage(ctx context.Context, in InsertMessageRecord) (Message, error)

	// GetMessage loads a message scoped to a room; ErrNotFound if absent.
	GetMessage(ctx context.Context, roomID, messageID string) (Message, error)

	// DeleteMessage removes a message scoped to a room; ErrNotFound if absent.
	DeleteMessage(ctx context.Context, roomID, messageID string) error

	// ListMessages returns up to limit messages for a room, oldest first.
	ListMessages(ctx context.Context, roomID string, limit int) ([]Message, error)
}

package room

import "time"

// Room is a short-lived, key-protected chat room.
type Room struct {
	ID            string
	Name          *string
	OwnerDeviceID string
	JoinKeyDigest string
	CreatedAt     time.Time
	LockedAt      *time.Time
	ExpiresAt     time.Time
}

// Locked reports whether the room has been terminally closed by its owner.
func (r Room) Locked() bool { return r.LockedAt != nil }

// Expired reports whether the room is past its expiry at now.
// Expiry is derived, never persisted as a flag.
func (r Room) Expired(now time.Time) bool { return !now.Before(r.ExpiresAt) }

// Joinable reports whether new joins are accepted at now.
// Expiry and lock gate joining only; owner administrative actions
// (lock, key rotation) remain available on expired rooms.
func (r Room) Joinable(now time.Time) bool { return !r.Locked() && !r.Expired(now) }

// Participant is a (room, device) pair with presence and ban state.
type Participant struct {
	RoomID      string
	DeviceID    string
	DisplayName string
	IsBanned    bool
	JoinedAt    time.Time
	LastSeenAt  time.Time
}

// MessageKind is the message payload kind.
type MessageKind string

const (
	KindText  MessageKind = "text"
	KindImage MessageKind = "image"
	KindVideo MessageKind = "video"
	KindFile  MessageKind = "file"
)

// validKind reports whether k is one of the known message kinds.
func validKind(k MessageKind) bool {
	switch k {
	case KindText, KindImage, KindVideo, KindFile:
		return true
	}
	return false
}

// Message is a room message row. SenderDeviceID is nullable in the schema;
// a message without a sender can never satisfy a sender-only check.
type Message struct {
	ID                 string
	RoomID             string
	SenderDeviceID     *string
	SenderNameSnapshot string
	Kind               MessageKind
	Body               *string
	AttachmentID       *string
	CreatedAt          time.Time
}

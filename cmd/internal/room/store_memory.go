package room

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// InMemoryStore is a dev fallback when no database is configured, and the
// backing store for unit tests. Semantics mirror PostgresStore, including
// the composite-key participant upsert.
type InMemoryStore struct {
	mu           sync.Mutex
	rooms        map[string]Room
	participants map[string]Participant // room_id + "\x00" + device_id
	messages     map[string][]Message   // room_id -> ordered by created_at
}

// NewInMemoryStore constructs an empty in-memory Store implementation.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		rooms:        make(map[string]Room),
		participants: make(map[string]Participant),
		messages:     make(map[string][]Message),
	}
}

func partKey(roomID, deviceID string) string {
	return roomID + "\x00" + deviceID
}

// CreateRoom inserts a new room row.
func (s *InMemoryStore) CreateRoom(ctx context.Context, in CreateRoomRecord) (Room, error) {
	if err := ctx.Err(); err != nil {
		return Room{}, err
	}
	if strings.TrimSpace(in.ID) == "" || strings.TrimSpace(in.OwnerDeviceID) == "" || strings.TrimSpace(in.JoinKeyDigest) == "" {
		return Room{}, OpError{Op: "room.store.CreateRoom", Kind: ErrInvalidInput}
	}

	rm := Room{
		ID:            in.ID,
		Name:          in.Name,
		OwnerDeviceID: in.OwnerDeviceID,
		JoinKeyDigest: in.JoinKeyDigest,
		CreatedAt:     in.CreatedAt,
		ExpiresAt:     in.ExpiresAt,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[in.ID] = rm
	return rm, nil
}

// GetRoom loads a room by ID.
func (s *InMemoryStore) GetRoom(ctx context.Context, roomID string) (Room, error) {
	if err := ctx.Err(); err != nil {
		return Room{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rm, ok := s.rooms[roomID]
	if !ok {
		return Room{}, OpError{Op: "room.store.GetRoom", Kind: ErrNotFound, Msg: "room"}
	}
	return rm, nil
}

// SetJoinKeyDigest overwrites the join key digest.
func (s *InMemoryStore) SetJoinKeyDigest(ctx context.Context, roomID, digest string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(digest) == "" {
		return OpError{Op: "room.store.SetJoinKeyDigest", Kind: ErrInvalidInput}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rm, ok := s.rooms[roomID]
	if !ok {
		return OpError{Op: "room.store.SetJoinKeyDigest", Kind: ErrNotFound, Msg: "room"}
	}
	rm.JoinKeyDigest = digest
	s.rooms[roomID] = rm
	return nil
}

// LockRoom sets locked_at once; re-locking is a no-op success.
func (s *InMemoryStore) LockRoom(ctx context.Context, roomID string, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rm, ok := s.rooms[roomID]
	if !ok {
		return OpError{Op: "room.store.LockRoom", Kind: ErrNotFound, Msg: "room"}
	}
	if rm.LockedAt == nil {
		t := now
		rm.LockedAt = &t
		s.rooms[roomID] = rm
	}
	return nil
}

// UpsertParticipant inserts or refreshes a participant on the composite key.
func (s *InMemoryStore) UpsertParticipant(ctx context.Context, in UpsertParticipantRecord) (Participant, error) {
	if err := ctx.Err(); err != nil {
		return Participant{}, err
	}
	if strings.TrimSpace(in.RoomID) == "" || strings.TrimSpace(in.DeviceID) == "" || strings.TrimSpace(in.DisplayName) == "" {
		return Participant{}, OpError{Op: "room.store.UpsertParticipant", Kind: ErrInvalidInput}
	}
	if in.Now.IsZero() {
		in.Now = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := partKey(in.RoomID, in.DeviceID)
	if p, ok := s.participants[key]; ok {
		// Conflict path: refresh name and presence, preserve ban and joined_at.
		p.DisplayName = in.DisplayName
		p.LastSeenAt = in.Now
		s.participants[key] = p
		return p, nil
	}

	p := Participant{
		RoomID:      in.RoomID,
		DeviceID:    in.DeviceID,
		DisplayName: in.DisplayName,
		JoinedAt:    in.Now,
		LastSeenAt:  in.Now,
	}
	s.participants[key] = p
	return p, nil
}

// GetParticipant loads a participant by composite key.
func (s *InMemoryStore) GetParticipant(ctx context.Context, roomID, deviceID string) (Participant, error) {
	if err := ctx.Err(); err != nil {
		return Participant{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.participants[partKey(roomID, deviceID)]
	if !ok {
		return Participant{}, OpError{Op: "room.store.GetParticipant", Kind: ErrNotFound, Msg: "participant"}
	}
	return p, nil
}

// SetBanned flips a participant's ban flag. No protocol operation sets bans;
// this exists for the external moderation path and for tests.
func (s *InMemoryStore) SetBanned(ctx context.Context, roomID, deviceID string, banned bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	key := partKey(roomID, deviceID)
	p, ok := s.participants[key]
	if !ok {
		return OpError{Op: "room.store.SetBanned", Kind: ErrNotFound, Msg: "participant"}
	}
	p.IsBanned = banned
	s.participants[key] = p
	return nil
}

// InsertMessage inserts a message row.
func (s *InMemoryStore) InsertMessage(ctx context.Context, in InsertMessageRecord) (Message, error) {
	if err := ctx.Err(); err != nil {
		return Message{}, err
	}
	if strings.TrimSpace(in.ID) == "" || strings.TrimSpace(in.RoomID) == "" || !validKind(in.Kind) {
		return Message{}, OpError{Op: "room.store.InsertMessage", Kind: ErrInvalidInput}
	}

	m := Message{
		ID:                 in.ID,
		RoomID:             in.RoomID,
		SenderDeviceID:     in.SenderDeviceID,
		SenderNameSnapshot: in.SenderNameSnapshot,
		Kind:               in.Kind,
		Body:               in.Body,
		AttachmentID:       in.AttachmentID,
		CreatedAt:          in.CreatedAt,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[in.RoomID] = append(s.messages[in.RoomID], m)
	sort.SliceStable(s.messages[in.RoomID], func(i, j int) bool {
		a, b := s.messages[in.RoomID][i], s.messages[in.RoomID][j]
		if a.CreatedAt.Equal(b.CreatedAt) {
			return a.ID < b.ID
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
	return m, nil
}

// GetMessage loads a message scoped to a room.
func (s *InMemoryStore) GetMessage(ctx context.Context, roomID, messageID string) (Message, error) {
	if err := ctx.Err(); err != nil {
		return Message{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.messages[roomID] {
		if m.ID == messageID {
			return m, nil
		}
	}
	return Message{}, OpError{Op: "room.store.GetMessage", Kind: ErrNotFound, Msg: "message"}
}

// DeleteMessage removes a message scoped to a room.
func (s *InMemoryStore) DeleteMessage(ctx context.Context, roomID, messageID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.messages[roomID]
	for i, m := range msgs {
		if m.ID == messageID {
			s.messages[roomID] = append(msgs[:i:i], msgs[i+1:]...)
			return nil
		}
	}
	return OpError{Op: "room.store.DeleteMessage", Kind: ErrNotFound, Msg: "message"}
}

// ListMessages returns up to limit messages, oldest first.
func (s *InMemoryStore) ListMessages(ctx context.Context, roomID string, limit int) ([]Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.messages[roomID]
	if len(msgs) > limit {
		msgs = msgs[:limit]
	}
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

package room

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists rooms, participants, and messages in PostgreSQL.
//
// It relies on the database for the protocol's only concurrency guarantees:
// read-committed visibility and ON CONFLICT upsert on the participant
// composite key.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// StoreOption configures PostgresStore.
type StoreOption func(*PostgresStore) error

// WithSchema sets the DB schema used by the store (default: "huddle").
func WithSchema(schema string) StoreOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return OpError{Op: "room.WithSchema", Kind: ErrInvalidInput, Msg: "empty schema"}
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool, opts ...StoreOption) (*PostgresStore, error) {
	st := &PostgresStore{pool: pool, schema: "huddle"}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, OpError{Op: "room.NewPostgresStore", Kind: ErrInvalidInput, Msg: "nil pool"}
	}
	return st, nil
}

func (s *PostgresStore) table(name string) string {
	return pgx.Identifier{s.schema, name}.Sanitize()
}

// CreateRoom inserts a new room row.
func (s *PostgresStore) CreateRoom(ctx context.Context, in CreateRoomRecord) (Room, error) {
	if err := ctx.Err(); err != nil {
		return Room{}, err
	}
	if strings.TrimSpace(in.ID) == "" || strings.TrimSpace(in.OwnerDeviceID) == "" || strings.TrimSpace(in.JoinKeyDigest) == "" {
		return Room{}, OpError{Op: "room.store.CreateRoom", Kind: ErrInvalidInput}
	}

	rooms := s.table("rooms")
	_, err := s.pool.Exec(ctx,
		`INSERT INTO `+rooms+` (
		     id, name, owner_device_id, join_key_digest, created_at, locked_at, expires_at
		   ) VALUES ($1, $2, $3, $4, $5, NULL, $6)`,
		in.ID,
		in.Name,
		in.OwnerDeviceID,
		in.JoinKeyDigest,
		in.CreatedAt,
		in.ExpiresAt,
	)
	if err != nil {
		return Room{}, err
	}

	return Room{
		ID:            in.ID,
		Name:          in.Name,
		OwnerDeviceID: in.OwnerDeviceID,
		JoinKeyDigest: in.JoinKeyDigest,
		CreatedAt:     in.CreatedAt,
		ExpiresAt:     in.ExpiresAt,
	}, nil
}

// GetRoom loads a room by ID.
func (s *PostgresStore) GetRoom(ctx context.Context, roomID string) (Room, error) {
	if err := ctx.Err(); err != nil {
		return Room{}, err
	}

	rooms := s.table("rooms")
	var out Room
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, owner_device_id, join_key_digest, created_at, locked_at, expires_at
		   FROM `+rooms+`
		  WHERE id = $1`,
		roomID,
	).Scan(
		&out.ID,
		&out.Name,
		&out.OwnerDeviceID,
		&out.JoinKeyDigest,
		&out.CreatedAt,
		&out.LockedAt,
		&out.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Room{}, OpError{Op: "room.store.GetRoom", Kind: ErrNotFound, Msg: "room"}
		}
		return Room{}, err
	}
	return out, nil
}

// SetJoinKeyDigest overwrites the join key digest (last-write-wins).
func (s *PostgresStore) SetJoinKeyDigest(ctx context.Context, roomID, digest string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(digest) == "" {
		return OpError{Op: "room.store.SetJoinKeyDigest", Kind: ErrInvalidInput}
	}

	rooms := s.table("rooms")
	tag, err := s.pool.Exec(ctx,
		`UPDATE `+rooms+` SET join_key_digest = $1 WHERE id = $2`,
		digest, roomID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return OpError{Op: "room.store.SetJoinKeyDigest", Kind: ErrNotFound, Msg: "room"}
	}
	return nil
}

// LockRoom sets locked_at once; re-locking is a no-op success.
func (s *PostgresStore) LockRoom(ctx context.Context, roomID string, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	rooms := s.table("rooms")
	tag, err := s.pool.Exec(ctx,
		`UPDATE `+rooms+` SET locked_at = COALESCE(locked_at, $1) WHERE id = $2`,
		now, roomID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return OpError{Op: "room.store.LockRoom", Kind: ErrNotFound, Msg: "room"}
	}
	return nil
}

// UpsertParticipant inserts or refreshes a participant on the composite key
// and returns the row as stored after the write, so a ban set by another
// writer is visible to the caller's subsequent check.
func (s *PostgresStore) UpsertParticipant(ctx context.Context, in UpsertParticipantRecord) (Participant, error) {
	if err := ctx.Err(); err != nil {
		return Participant{}, err
	}
	if strings.TrimSpace(in.RoomID) == "" || strings.TrimSpace(in.DeviceID) == "" || strings.TrimSpace(in.DisplayName) == "" {
		return Participant{}, OpError{Op: "room.store.UpsertParticipant", Kind: ErrInvalidInput}
	}
	if in.Now.IsZero() {
		in.Now = time.Now().UTC()
	}

	participants := s.table("room_participants")
	var out Participant
	err := s.pool.QueryRow(ctx,
		`INSERT INTO `+participants+` (
		     room_id, device_id, display_name, is_banned, joined_at, last_seen_at
		   ) VALUES ($1, $2, $3, FALSE, $4, $4)
		   ON CONFLICT (room_id, device_id) DO UPDATE
		      SET display_name = EXCLUDED.display_name,
		          last_seen_at = EXCLUDED.last_seen_at
		RETURNING room_id, device_id, display_name, is_banned, joined_at, last_seen_at`,
		in.RoomID,
		in.DeviceID,
		in.DisplayName,
		in.Now,
	).Scan(
		&out.RoomID,
		&out.DeviceID,
		&out.DisplayName,
		&out.IsBanned,
		&out.JoinedAt,
		&out.LastSeenAt,
	)
	if err != nil {
		return Participant{}, err
	}
	return out, nil
}

// GetParticipant loads a participant by composite key.
func (s *PostgresStore) GetParticipant(ctx context.Context, roomID, deviceID string) (Participant, error) {
	if err := ctx.Err(); err != nil {
		return Participant{}, err
	}

	participants := s.table("room_participants")
	var out Participant
	err := s.pool.QueryRow(ctx,
		`SELECT room_id, device_id, display_name, is_banned, joined_at, last_seen_at
		   FROM `+participants+`
		  WHERE room_id = $1 AND device_id = $2`,
		roomID, deviceID,
	).Scan(
		&out.RoomID,
		&out.DeviceID,
		&out.DisplayName,
		&out.IsBanned,
		&out.JoinedAt,
		&out.LastSeenAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Participant{}, OpError{Op: "room.store.GetParticipant", Kind: ErrNotFound, Msg: "participant"}
		}
		return Participant{}, err
	}
	return out, nil
}

// InsertMessage inserts a message row.
func (s *PostgresStore) InsertMessage(ctx context.Context, in InsertMessageRecord) (Message, error) {
	if err := ctx.Err(); err != nil {
		return Message{}, err
	}
	if strings.TrimSpace(in.ID) == "" || strings.TrimSpace(in.RoomID) == "" || !validKind(in.Kind) {
		return Message{}, OpError{Op: "room.store.InsertMessage", Kind: ErrInvalidInput}
	}

	messages := s.table("room_messages")
	_, err := s.pool.Exec(ctx,
		`INSERT INTO `+messages+` (
		     id, room_id, sender_device_id, sender_name_snapshot, kind, body, attachment_id, created_at
		   ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		in.ID,
		in.RoomID,
		in.SenderDeviceID,
		in.SenderNameSnapshot,
		string(in.Kind),
		in.Body,
		in.AttachmentID,
		in.CreatedAt,
	)
	if err != nil {
		return Message{}, err
	}

	return Message{
		ID:                 in.ID,
		RoomID:             in.RoomID,
		SenderDeviceID:     in.SenderDeviceID,
		SenderNameSnapshot: in.SenderNameSnapshot,
		Kind:               in.Kind,
		Body:               in.Body,
		AttachmentID:       in.AttachmentID,
		CreatedAt:          in.CreatedAt,
	}, nil
}

// GetMessage loads a message scoped to a room.
func (s *PostgresStore) GetMessage(ctx context.Context, roomID, messageID string) (Message, error) {
	if err := ctx.Err(); err != nil {
		return Message{}, err
	}

	messages := s.table("room_messages")
	var out Message
	var kind string
	err := s.pool.QueryRow(ctx,
		`SELECT id, room_id, sender_device_id, sender_name_snapshot, kind, body, attachment_id, created_at
		   FROM `+messages+`
		  WHERE id = $1 AND room_id = $2`,
		messageID, roomID,
	).Scan(
		&out.ID,
		&out.RoomID,
		&out.SenderDeviceID,
		&out.SenderNameSnapshot,
		&kind,
		&out.Body,
		&out.AttachmentID,
		&out.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Message{}, OpError{Op: "room.store.GetMessage", Kind: ErrNotFound, Msg: "message"}
		}
		return Message{}, err
	}
	out.Kind = MessageKind(kind)
	return out, nil
}

// DeleteMessage removes a message scoped to a room.
func (s *PostgresStore) DeleteMessage(ctx context.Context, roomID, messageID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	messages := s.table("room_messages")
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM `+messages+` WHERE id = $1 AND room_id = $2`,
		messageID, roomID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return OpError{Op: "room.store.DeleteMessage", Kind: ErrNotFound, Msg: "message"}
	}
	return nil
}

// ListMessages returns up to limit messages for a room, oldest first.
func (s *PostgresStore) ListMessages(ctx context.Context, roomID string, limit int) ([]Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	messages := s.table("room_messages")
	rows, err := s.pool.Query(ctx,
		`SELECT id, room_id, sender_device_id, sender_name_snapshot, kind, body, attachment_id, created_at
		   FROM `+messages+`
		  WHERE room_id = $1
		  ORDER BY created_at ASC, id ASC
		  LIMIT $2`,
		roomID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Message, 0, limit)
	for rows.Next() {
		var m Message
		var kind string
		if err := rows.Scan(
			&m.ID,
			&m.RoomID,
			&m.SenderDeviceID,
			&m.SenderNameSnapshot,
			&kind,
			&m.Body,
			&m.AttachmentID,
			&m.CreatedAt,
		); err != nil {
			return nil, err
		}
		m.Kind = MessageKind(kind)
		out = append(out, m)
	}
	return out, rows.Err()
}

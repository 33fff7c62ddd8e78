package room

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"huddle/cmd/internal/session"
	"huddle/cmd/security/joinkey"
)

const (
	defaultRoomTTL      = 24 * time.Hour
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
	maxDisplayNameLen   = 64
	maxRoomNameLen      = 128
	maxMessageBodyLen   = 8192
)

// MessagePublisher receives newly inserted messages for realtime delivery.
// Delivery is best-effort and must never fail the write path.
type MessagePublisher interface {
	PublishMessage(m Message)
}

// Service composes the protocol operations over a Store, the key manager,
// and the session token issuer.
type Service struct {
	log      *slog.Logger
	store    Store
	tokens   session.TokenIssuer
	keys     joinkey.Generator
	identity IdentityVerifier
	roomTTL  time.Duration
	feed     MessagePublisher
}

// Option configures the Service.
type Option func(*Service) error

// WithRoomTTL sets the default room expiry window.
func WithRoomTTL(ttl time.Duration) Option {
	return func(s *Service) error {
		if ttl <= 0 {
			return OpError{Op: "room.NewService", Kind: ErrInvalidInput, Msg: "non-positive room TTL"}
		}
		s.roomTTL = ttl
		return nil
	}
}

// WithKeyGenerator overrides the join key generator.
func WithKeyGenerator(g joinkey.Generator) Option {
	return func(s *Service) error {
		s.keys = g
		return nil
	}
}

// WithIdentityVerifier sets the caller identity trust strategy.
// Defaults to TrustedIdentity (self-asserted device identifiers).
func WithIdentityVerifier(v IdentityVerifier) Option {
	return func(s *Service) error {
		if v == nil {
			return OpError{Op: "room.NewService", Kind: ErrInvalidInput, Msg: "nil identity verifier"}
		}
		s.identity = v
		return nil
	}
}

// WithPublisher attaches a realtime message publisher.
func WithPublisher(p MessagePublisher) Option {
	return func(s *Service) error {
		s.feed = p
		return nil
	}
}

// NewService constructs a Service with safe defaults.
func NewService(log *slog.Logger, store Store, tokens session.TokenIssuer, opts ...Option) (*Service, error) {
	if log == nil {
		log = slog.Default()
	}
	if store == nil {
		return nil, OpError{Op: "room.NewService", Kind: ErrInvalidInput, Msg: "nil store"}
	}
	if tokens == nil {
		// Refusing to construct without a token issuer makes a missing
		// signing secret a startup failure rather than a per-request one.
		return nil, session.ErrConfig
	}

	s := &Service{
		log:      log,
		store:    store,
		tokens:   tokens,
		keys:     joinkey.NewGenerator(joinkey.DefaultKeyBytes),
		identity: TrustedIdentity{},
		roomTTL:  defaultRoomTTL,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// ---- CreateRoom ----

// CreateRoomInput describes room creation.
type CreateRoomInput struct {
	OwnerDeviceID string
	DisplayName   string
	RoomName      *string
	Now           time.Time
}

// CreateRoomResult carries the room, the plaintext join key (shown once,
// never persisted), and the owner's session token.
type CreateRoomResult struct {
	Room     Room
	JoinKey  string
	Token    string
	TokenExp time.Time
}

// CreateRoom creates an active room owned by the caller, registers the owner
// as its first participant, and issues the owner's session token.
func (s *Service) CreateRoom(ctx context.Context, in CreateRoomInput) (CreateRoomResult, error) {
	const op = "room.CreateRoom"

	if err := ctx.Err(); err != nil {
		return CreateRoomResult{}, err
	}

	owner := strings.TrimSpace(in.OwnerDeviceID)
	displayName := strings.TrimSpace(in.DisplayName)
	if owner == "" || displayName == "" {
		return CreateRoomResult{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "missing device_id or display_name"}
	}
	if len(displayName) > maxDisplayNameLen {
		return CreateRoomResult{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "display_name too long"}
	}
	name := trimPtr(in.RoomName)
	if name != nil && len(*name) > maxRoomNameLen {
		return CreateRoomResult{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "room_name too long"}
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	key, err := s.keys.NewKey()
	if err != nil {
		return CreateRoomResult{}, err
	}
	digest, err := joinkey.DigestHex(key)
	if err != nil {
		return CreateRoomResult{}, err
	}

	roomID, err := NewRoomID(now)
	if err != nil {
		return CreateRoomResult{}, err
	}

	rm, err := s.store.CreateRoom(ctx, CreateRoomRecord{
		ID:            roomID,
		Name:          name,
		OwnerDeviceID: owner,
		JoinKeyDigest: digest,
		CreatedAt:     now,
		ExpiresAt:     now.Add(s.roomTTL),
	})
	if err != nil {
		return CreateRoomResult{}, err
	}

	if _, err := s.store.UpsertParticipant(ctx, UpsertParticipantRecord{
		RoomID:      rm.ID,
		DeviceID:    owner,
		DisplayName: displayName,
		Now:         now,
	}); err != nil {
		return CreateRoomResult{}, err
	}

	token, exp, err := s.tokens.Issue(owner, now)
	if err != nil {
		return CreateRoomResult{}, err
	}

	s.log.Info("room.create", "room_id", rm.ID)

	return CreateRoomResult{Room: rm, JoinKey: key, Token: token, TokenExp: exp}, nil
}

// ---- JoinRoom ----

// JoinRoomInput describes a join attempt.
type JoinRoomInput struct {
	DeviceID    string
	DisplayName string
	RoomID      string
	Key         string
	Now         time.Time
}

// JoinRoomResult carries the room and the joiner's session token.
type JoinRoomResult struct {
	Room     Room
	Token    string
	TokenExp time.Time
}

// JoinRoom validates the room and key, gates on lifecycle state, registers
// the participant, enforces ban status, and issues a session token.
//
// The sequence is strictly ordered: room/key validity, then expiry/lock, then
// the participant upsert, then the ban check read back from the store, then
// token issuance. The ban check deliberately reads after the upsert so a ban
// set concurrently with a join is still honored.
func (s *Service) JoinRoom(ctx context.Context, in JoinRoomInput) (JoinRoomResult, error) {
	const op = "room.JoinRoom"

	if err := ctx.Err(); err != nil {
		return JoinRoomResult{}, err
	}

	device := strings.TrimSpace(in.DeviceID)
	displayName := strings.TrimSpace(in.DisplayName)
	roomID := strings.TrimSpace(in.RoomID)
	key := strings.TrimSpace(in.Key)
	if device == "" || displayName == "" || roomID == "" || key == "" {
		return JoinRoomResult{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "missing parameter"}
	}
	if len(displayName) > maxDisplayNameLen {
		return JoinRoomResult{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "display_name too long"}
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	rm, err := s.store.GetRoom(ctx, roomID)
	if err != nil {
		if IsNotFound(err) {
			// Same kind and message as a wrong key: never confirm room
			// existence to a key-guesser.
			return JoinRoomResult{}, OpError{Op: op, Kind: ErrInvalidRoomOrKey}
		}
		return JoinRoomResult{}, err
	}
	if !joinkey.Verify(key, rm.JoinKeyDigest) {
		return JoinRoomResult{}, OpError{Op: op, Kind: ErrInvalidRoomOrKey}
	}

	if rm.Expired(now) {
		return JoinRoomResult{}, OpError{Op: op, Kind: ErrExpired}
	}
	if rm.Locked() {
		return JoinRoomResult{}, OpError{Op: op, Kind: ErrLocked}
	}

	// Phase one: upsert the participant. This refreshes display_name and
	// last_seen_at even when the join is subsequently rejected for a ban.
	part, err := s.store.UpsertParticipant(ctx, UpsertParticipantRecord{
		RoomID:      rm.ID,
		DeviceID:    device,
		DisplayName: displayName,
		Now:         now,
	})
	if err != nil {
		return JoinRoomResult{}, err
	}

	// Phase two: ban check on the row as stored after the upsert. The upsert
	// side effects are NOT rolled back on rejection.
	if part.IsBanned {
		s.log.Info("room.join.banned", "room_id", rm.ID)
		return JoinRoomResult{}, OpError{Op: op, Kind: ErrBanned}
	}

	token, exp, err := s.tokens.Issue(device, now)
	if err != nil {
		return JoinRoomResult{}, err
	}

	s.log.Info("room.join", "room_id", rm.ID)

	return JoinRoomResult{Room: rm, Token: token, TokenExp: exp}, nil
}

// ---- RotateKey ----

// RotateKeyInput describes a join key rotation.
type RotateKeyInput struct {
	CallerDeviceID string
	BearerToken    string
	RoomID         string
	Now            time.Time
}

// RotateKey replaces the room's join key and returns the new plaintext key
// once. Owner only. Rotation does not check lock or expiry: an owner may
// rotate an ended or expired room. Concurrent rotations are last-write-wins.
func (s *Service) RotateKey(ctx context.Context, in RotateKeyInput) (string, error) {
	const op = "room.RotateKey"

	if err := ctx.Err(); err != nil {
		return "", err
	}

	roomID := strings.TrimSpace(in.RoomID)
	if roomID == "" {
		return "", OpError{Op: op, Kind: ErrInvalidInput, Msg: "missing room_id"}
	}
	if err := s.identity.VerifyCaller(ctx, in.CallerDeviceID, in.BearerToken); err != nil {
		return "", err
	}

	rm, err := s.store.GetRoom(ctx, roomID)
	if err != nil {
		return "", err
	}
	if err := RequireOwner(op, rm, strings.TrimSpace(in.CallerDeviceID)); err != nil {
		return "", err
	}

	key, err := s.keys.NewKey()
	if err != nil {
		return "", err
	}
	digest, err := joinkey.DigestHex(key)
	if err != nil {
		return "", err
	}

	if err := s.store.SetJoinKeyDigest(ctx, rm.ID, digest); err != nil {
		return "", err
	}

	s.log.Info("room.rotate_key", "room_id", rm.ID)

	return key, nil
}

// ---- EndRoom ----

// EndRoomInput describes an owner-triggered room lock.
type EndRoomInput struct {
	CallerDeviceID string
	BearerToken    string
	RoomID         string
	Now            time.Time
}

// EndRoom locks the room to new joins. Owner only, one-way, idempotent:
// ending an already-ended room succeeds without side effect. Expiry is not
// checked; an owner may lock an already-expired room.
func (s *Service) EndRoom(ctx context.Context, in EndRoomInput) error {
	const op = "room.EndRoom"

	if err := ctx.Err(); err != nil {
		return err
	}

	roomID := strings.TrimSpace(in.RoomID)
	if roomID == "" {
		return OpError{Op: op, Kind: ErrInvalidInput, Msg: "missing room_id"}
	}
	if err := s.identity.VerifyCaller(ctx, in.CallerDeviceID, in.BearerToken); err != nil {
		return err
	}

	rm, err := s.store.GetRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if err := RequireOwner(op, rm, strings.TrimSpace(in.CallerDeviceID)); err != nil {
		return err
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	if err := s.store.LockRoom(ctx, rm.ID, now); err != nil {
		return err
	}

	s.log.Info("room.end", "room_id", rm.ID)
	return nil
}

// ---- DeleteMessage ----

// DeleteMessageInput describes a sender-only message deletion.
type DeleteMessageInput struct {
	CallerDeviceID string
	BearerToken    string
	RoomID         string
	MessageID      string
}

// DeleteMessage removes a message. The store runs with elevated privilege
// and bypasses the data layer's declarative permissions, which makes this
// method the sole enforcement point for the sender-only rule: the
// RequireSender check must hold on every path that reaches the delete.
func (s *Service) DeleteMessage(ctx context.Context, in DeleteMessageInput) error {
	const op = "room.DeleteMessage"

	if err := ctx.Err(); err != nil {
		return err
	}

	roomID := strings.TrimSpace(in.RoomID)
	messageID := strings.TrimSpace(in.MessageID)
	if roomID == "" || messageID == "" {
		return OpError{Op: op, Kind: ErrInvalidInput, Msg: "missing parameter"}
	}
	if err := s.identity.VerifyCaller(ctx, in.CallerDeviceID, in.BearerToken); err != nil {
		return err
	}

	msg, err := s.store.GetMessage(ctx, roomID, messageID)
	if err != nil {
		return err
	}
	if err := RequireSender(op, msg, strings.TrimSpace(in.CallerDeviceID)); err != nil {
		return err
	}

	if err := s.store.DeleteMessage(ctx, roomID, messageID); err != nil {
		return err
	}

	s.log.Info("room.message.delete", "room_id", roomID, "message_id", messageID)
	return nil
}

// ---- SendMessage ----

// SendMessageInput describes a message post by a participant.
type SendMessageInput struct {
	SenderDeviceID string
	BearerToken    string
	RoomID         string
	Kind           MessageKind
	Body           *string
	AttachmentID   *string
	Now            time.Time
}

// SendMessage inserts a message row for a non-banned participant and
// publishes it to the realtime feed. The sender's current display name is
// snapshotted onto the row. Lock and expiry do not gate messaging; they
// close a room to new joins only.
func (s *Service) SendMessage(ctx context.Context, in SendMessageInput) (Message, error) {
	const op = "room.SendMessage"

	if err := ctx.Err(); err != nil {
		return Message{}, err
	}

	sender := strings.TrimSpace(in.SenderDeviceID)
	roomID := strings.TrimSpace(in.RoomID)
	if sender == "" || roomID == "" {
		return Message{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "missing parameter"}
	}
	if err := s.identity.VerifyCaller(ctx, sender, in.BearerToken); err != nil {
		return Message{}, err
	}

	kind := in.Kind
	if kind == "" {
		kind = KindText
	}
	if !validKind(kind) {
		return Message{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "unknown message kind"}
	}
	body := trimPtr(in.Body)
	if kind == KindText && body == nil {
		return Message{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "missing body"}
	}
	if body != nil && len(*body) > maxMessageBodyLen {
		return Message{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "body too long"}
	}
	if kind != KindText && in.AttachmentID == nil {
		return Message{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "missing attachment_id"}
	}

	if _, err := s.store.GetRoom(ctx, roomID); err != nil {
		return Message{}, err
	}

	part, err := s.store.GetParticipant(ctx, roomID, sender)
	if err != nil {
		if IsNotFound(err) {
			return Message{}, OpError{Op: op, Kind: ErrUnauthorized, Msg: "not a participant"}
		}
		return Message{}, err
	}
	if part.IsBanned {
		return Message{}, OpError{Op: op, Kind: ErrBanned}
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	msgID, err := NewMessageID(now)
	if err != nil {
		return Message{}, err
	}

	msg, err := s.store.InsertMessage(ctx, InsertMessageRecord{
		ID:                 msgID,
		RoomID:             roomID,
		SenderDeviceID:     &sender,
		SenderNameSnapshot: part.DisplayName,
		Kind:               kind,
		Body:               body,
		AttachmentID:       in.AttachmentID,
		CreatedAt:          now,
	})
	if err != nil {
		return Message{}, err
	}

	if s.feed != nil {
		s.feed.PublishMessage(msg)
	}

	return msg, nil
}

// ---- ListMessages ----

// ListMessagesInput describes a history query.
type ListMessagesInput struct {
	CallerDeviceID string
	BearerToken    string
	RoomID         string
	Limit          int
}

// ListMessages returns room history, oldest first, for a participant.
func (s *Service) ListMessages(ctx context.Context, in ListMessagesInput) ([]Message, error) {
	const op = "room.ListMessages"

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	caller := strings.TrimSpace(in.CallerDeviceID)
	roomID := strings.TrimSpace(in.RoomID)
	if caller == "" || roomID == "" {
		return nil, OpError{Op: op, Kind: ErrInvalidInput, Msg: "missing parameter"}
	}
	if err := s.identity.VerifyCaller(ctx, caller, in.BearerToken); err != nil {
		return nil, err
	}

	if _, err := s.store.GetRoom(ctx, roomID); err != nil {
		return nil, err
	}
	part, err := s.store.GetParticipant(ctx, roomID, caller)
	if err != nil {
		if IsNotFound(err) {
			return nil, OpError{Op: op, Kind: ErrUnauthorized, Msg: "not a participant"}
		}
		return nil, err
	}
	if part.IsBanned {
		return nil, OpError{Op: op, Kind: ErrBanned}
	}

	limit := in.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	return s.store.ListMessages(ctx, roomID, limit)
}

func trimPtr(v *string) *string {
	if v == nil {
		return nil
	}
	s := strings.TrimSpace(*v)
	if s == "" {
		return nil
	}
	return &s
}

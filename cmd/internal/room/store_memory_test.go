package room

import (
	"context"
	"testing"
	"time"
)

func seedRoom(t *testing.T, store *InMemoryStore, now time.Time) Room {
	t.Helper()

	rm, err := store.CreateRoom(context.Background(), CreateRoomRecord{
		ID:            "01TESTROOM0000000000000000",
		OwnerDeviceID: "A",
		JoinKeyDigest: "digest",
		CreatedAt:     now,
		ExpiresAt:     now.Add(24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	return rm
}

func TestInMemoryStore_LockIsOneWay(t *testing.T) {
	t.Parallel()

	store := NewInMemoryStore()
	now := time.Now().UTC()
	rm := seedRoom(t, store, now)
	ctx := context.Background()

	if err := store.LockRoom(ctx, rm.ID, now); err != nil {
		t.Fatalf("LockRoom: %v", err)
	}
	got, err := store.GetRoom(ctx, rm.ID)
	if err != nil {
		t.Fatalf("GetRoom: %v", err)
	}
	if got.LockedAt == nil || !got.LockedAt.Equal(now) {
		t.Fatalf("locked_at=%v want=%v", got.LockedAt, now)
	}

	// A second lock succeeds and does not move the timestamp.
	if err := store.LockRoom(ctx, rm.ID, now.Add(time.Hour)); err != nil {
		t.Fatalf("LockRoom (repeat): %v", err)
	}
	got, err = store.GetRoom(ctx, rm.ID)
	if err != nil {
		t.Fatalf("GetRoom: %v", err)
	}
	if !got.LockedAt.Equal(now) {
		t.Fatalf("repeat lock moved locked_at to %v", got.LockedAt)
	}
}

func TestInMemoryStore_UpsertConflictTarget(t *testing.T) {
	t.Parallel()

	store := NewInMemoryStore()
	now := time.Now().UTC()
	rm := seedRoom(t, store, now)
	ctx := context.Background()

	first, err := store.UpsertParticipant(ctx, UpsertParticipantRecord{
		RoomID: rm.ID, DeviceID: "B", DisplayName: "Bob", Now: now,
	})
	if err != nil {
		t.Fatalf("UpsertParticipant: %v", err)
	}
	if err := store.SetBanned(ctx, rm.ID, "B", true); err != nil {
		t.Fatalf("SetBanned: %v", err)
	}

	later := now.Add(time.Minute)
	second, err := store.UpsertParticipant(ctx, UpsertParticipantRecord{
		RoomID: rm.ID, DeviceID: "B", DisplayName: "Bobby", Now: later,
	})
	if err != nil {
		t.Fatalf("UpsertParticipant (conflict): %v", err)
	}

	if second.DisplayName != "Bobby" || !second.LastSeenAt.Equal(later) {
		t.Fatalf("conflict upsert must refresh name/presence: %+v", second)
	}
	if !second.JoinedAt.Equal(first.JoinedAt) {
		t.Fatalf("joined_at must be preserved: %v vs %v", second.JoinedAt, first.JoinedAt)
	}
	if !second.IsBanned {
		t.Fatalf("is_banned must be preserved and visible in the returned row")
	}

	// Same device in another room is a distinct participant.
	other, err := store.CreateRoom(ctx, CreateRoomRecord{
		ID: "01TESTROOM0000000000000001", OwnerDeviceID: "A", JoinKeyDigest: "d2",
		CreatedAt: now, ExpiresAt: now.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	p, err := store.UpsertParticipant(ctx, UpsertParticipantRecord{
		RoomID: other.ID, DeviceID: "B", DisplayName: "Bob", Now: later,
	})
	if err != nil {
		t.Fatalf("UpsertParticipant (other room): %v", err)
	}
	if p.IsBanned {
		t.Fatalf("ban is scoped to a room, not a device")
	}
}

func TestInMemoryStore_DeleteMessageScopedToRoom(t *testing.T) {
	t.Parallel()

	store := NewInMemoryStore()
	now := time.Now().UTC()
	rm := seedRoom(t, store, now)
	ctx := context.Background()

	sender := "B"
	body := "hello"
	if _, err := store.InsertMessage(ctx, InsertMessageRecord{
		ID: "01TESTMSG00000000000000000", RoomID: rm.ID, SenderDeviceID: &sender,
		SenderNameSnapshot: "Bob", Kind: KindText, Body: &body, CreatedAt: now,
	}); err != nil {
		t.Fatalf("InsertMessage: %v", err)
	}

	// The wrong room never sees the message.
	if err := store.DeleteMessage(ctx, "01TESTROOM0000000000000001", "01TESTMSG00000000000000000"); !IsNotFound(err) {
		t.Fatalf("cross-room delete: got %v", err)
	}
	if err := store.DeleteMessage(ctx, rm.ID, "01TESTMSG00000000000000000"); err != nil {
		t.Fatalf("DeleteMessage: %v", err)
	}
	if err := store.DeleteMessage(ctx, rm.ID, "01TESTMSG00000000000000000"); !IsNotFound(err) {
		t.Fatalf("second delete: got %v", err)
	}
}

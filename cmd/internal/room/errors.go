package room

import (
	"errors"
	"fmt"
)

// Sentinel error kinds. Every failure surfaced by this package wraps exactly
// one of these so callers can map it to a stable wire code.
var (
	// ErrInvalidInput reports a missing or malformed required field,
	// raised before any side effect.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound reports an absent room or message.
	ErrNotFound = errors.New("not found")

	// ErrInvalidRoomOrKey conflates "no such room" with "wrong key" on Join,
	// so a key-guesser cannot confirm a room's existence.
	ErrInvalidRoomOrKey = errors.New("invalid room or key")

	// ErrExpired reports a join attempt on a room past its expiry.
	ErrExpired = errors.New("room expired")

	// ErrLocked reports a join attempt on a room its owner has ended.
	ErrLocked = errors.New("room locked")

	// ErrBanned reports a join attempt by a banned participant.
	ErrBanned = errors.New("banned from this room")

	// ErrUnauthorized reports an ownership or sender mismatch.
	ErrUnauthorized = errors.New("not authorized")
)

// OpError is a typed operation error with a stable Op + Kind contract for
// callers and tests. Kind MUST be one of the sentinel kinds above; Msg may
// add human-readable context and must not include secrets.
type OpError struct {
	Op   string
	Kind error
	Msg  string
}

func (e OpError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %s", e.Op, e.Kind, e.Msg)
}

func (e OpError) Unwrap() error { return e.Kind }

// IsInvalidInput reports whether err represents ErrInvalidInput.
func IsInvalidInput(err error) bool { return errors.Is(err, ErrInvalidInput) }

// IsNotFound reports whether err represents ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsInvalidRoomOrKey reports whether err represents ErrInvalidRoomOrKey.
func IsInvalidRoomOrKey(err error) bool { return errors.Is(err, ErrInvalidRoomOrKey) }

// IsExpired reports whether err represents ErrExpired.
func IsExpired(err error) bool { return errors.Is(err, ErrExpired) }

// IsLocked reports whether err represents ErrLocked.
func IsLocked(err error) bool { return errors.Is(err, ErrLocked) }

// IsBanned reports whether err represents ErrBanned.
func IsBanned(err error) bool { return errors.Is(err, ErrBanned) }

// IsUnauthorized reports whether err represents ErrUnauthorized.
func IsUnauthorized(err error) bool { return errors.Is(err, ErrUnauthorized) }

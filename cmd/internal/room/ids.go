package room

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// newULID returns a new ULID string (26 chars).
// ULIDs are lexicographically sortable, which keeps room and message listings
// in creation order without a separate sequence.
func newULID(now time.Time) (string, error) {
	if now.IsZero() {
		now = time.Now().UTC()
	}

	id, err := ulid.New(ulid.Timestamp(now), rand.Reader)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// NewRoomID returns a fresh room identifier.
func NewRoomID(now time.Time) (string, error) { return newULID(now) }

// NewMessageID returns a fresh message identifier.
func NewMessageID(now time.Time) (string, error) { return newULID(now) }

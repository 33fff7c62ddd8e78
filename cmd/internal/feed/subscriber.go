package feed

import "sync"

// Subscriber represents one connected feed session.
//
// Send is intentionally NOT closed by the hub to keep broadcast panic-safe
// under concurrency; done signals goroutines to stop instead.
type Subscriber struct {
	ID     string
	RoomID string
	Send   chan Event

	done      chan struct{}
	closeOnce sync.Once
}

func newSubscriber(id, roomID string, queueSize int) *Subscriber {
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Subscriber{
		ID:     id,
		RoomID: roomID,
		Send:   make(chan Event, queueSize),
		done:   make(chan struct{}),
	}
}

// Done returns a channel that is closed when the subscriber is shutting down.
func (s *Subscriber) Done() <-chan struct{} {
	if s == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return s.done
}

// Close signals the subscriber goroutines to stop (idempotent).
// It does NOT close Send.
func (s *Subscriber) Close() {
	if s == nil {
		return
	}
	s.closeOnce.Do(func() {
		close(s.done)
	})
}

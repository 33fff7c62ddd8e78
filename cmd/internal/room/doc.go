// Package room implements the room access-control and ephemeral session
// protocol: room creation, key-gated joins, owner-only administration,
// sender-only message deletion, and the participant registry.
//
// All operations are short-lived, stateless request/response calls. The
// backing Store is the sole point of shared state; no in-process state is
// shared between invocations. Failures are terminal for the request and are
// never retried internally.
package room

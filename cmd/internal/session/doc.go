// Package session issues the bearer tokens that bind a device identifier to a
// room-scoped session.
//
// Tokens are HS256 JWTs signed with a secret shared with the downstream data
// layer's permission engine. The data layer verifies the signature and honors
// the audience and role claims when evaluating its declarative row-level
// permissions; this service itself treats issued tokens as opaque bearer
// artifacts and keeps no token registry. There is no revocation: a token
// remains valid for its full window regardless of later room lock, expiry, or
// participant ban.
package session

// Package joinkey generates and verifies human-shareable room join keys.
//
// It is the single source of truth for join-key digest behavior.
//
// Design goals:
// - Keys are short lowercase hex strings meant to be shared out-of-band (QR code, spoken).
// - Only the SHA-256 hex digest of a key is ever stored; the plaintext is shown once.
// - The digest is deliberately unsalted: the downstream data layer matches rooms
//   by exact digest equality, so the digest of a given key must be stable.
package joinkey

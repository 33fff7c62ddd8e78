package session

import "errors"

var (
	// ErrConfig is returned for invalid or missing configuration.
	// A missing signing secret must be a hard failure: an unsigned or
	// wrongly-signed token is indistinguishable from a forged one to the
	// consuming data layer.
	ErrConfig = errors.New("invalid session config")

	// ErrInvalidToken is returned when a token fails verification.
	ErrInvalidToken = errors.New("invalid token")
)

package joinkey

import "errors"

// Public, stable errors for callers.
var (
	ErrEmptyKey = errors.New("join key is empty")
)

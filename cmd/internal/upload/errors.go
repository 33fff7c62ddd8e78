package upload

import "errors"

var (
	// ErrConfig indicates invalid or missing upload signing configuration.
	ErrConfig = errors.New("upload: invalid configuration")

	// ErrInvalidPath indicates a filename that cannot become a storage path.
	ErrInvalidPath = errors.New("upload: invalid path")

	// ErrInvalidCredential indicates a credential that fails verification.
	ErrInvalidCredential = errors.New("upload: invalid credential")

	// ErrCredentialExpired indicates a well-formed credential past its window.
	ErrCredentialExpired = errors.New("upload: credential expired")
)

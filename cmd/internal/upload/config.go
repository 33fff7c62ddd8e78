package upload

import (
	"os"
	"strings"
	"time"
)

// Config defines runtime configuration for upload credential signing.
type Config struct {
	// Secret is the symmetric HMAC signing secret shared with the storage
	// tier's verifier.
	Secret string

	// TTL is the credential validity window.
	TTL time.Duration

	// Bucket is the storage bucket uploads land in.
	Bucket string
}

// DefaultConfig returns the default configuration minus the secret.
func DefaultConfig() Config {
	return Config{
		TTL:    15 * time.Minute,
		Bucket: "attachments",
	}
}

// LoadConfigFromEnv loads upload configuration from environment variables.
//
// Optional:
//   - HUDDLE_UPLOAD_SECRET (falls back to HUDDLE_JWT_SECRET)
//   - HUDDLE_UPLOAD_TTL (Go duration string)
//   - HUDDLE_UPLOAD_BUCKET
//
// Returns ErrConfig if no secret is available or a value is invalid.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := strings.TrimSpace(os.Getenv("HUDDLE_UPLOAD_TTL")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.TTL = d
	}

	if v := strings.TrimSpace(os.Getenv("HUDDLE_UPLOAD_BUCKET")); v != "" {
		cfg.Bucket = v
	}

	cfg.Secret = strings.TrimSpace(os.Getenv("HUDDLE_UPLOAD_SECRET"))
	if cfg.Secret == "" {
		// The original deployment reuses one project secret across
		// token signing and storage signing.
		cfg.Secret = strings.TrimSpace(os.Getenv("HUDDLE_JWT_SECRET"))
	}
	if cfg.Secret == "" {
		return Config{}, ErrConfig
	}

	return cfg, nil
}

package session

import (
	"os"
	"strings"
	"time"
)

// Config defines runtime configuration for session token issuance.
//
// It is intentionally explicit and environment-driven so that deployments can
// tune the validity window without code changes. The secret is shared with
// the data layer's permission engine and must match its verifier exactly.
type Config struct {
	// Secret is the symmetric HS256 signing secret.
	Secret string

	// TTL is the token validity window.
	TTL time.Duration

	// Audience is the "aud" claim expected by the data layer.
	Audience string

	// Role is the "role" claim marking the bearer as an authenticated
	// participant to the data layer's permission engine.
	Role string
}

// DefaultConfig returns the default configuration minus the secret,
// which has no safe default.
func DefaultConfig() Config {
	return Config{
		TTL:      30 * 24 * time.Hour,
		Audience: "authenticated",
		Role:     "authenticated",
	}
}

// LoadConfigFromEnv loads session configuration from environment variables.
//
// Required:
//   - HUDDLE_JWT_SECRET
//
// Optional:
//   - HUDDLE_SESSION_TTL (Go duration string)
//
// Returns ErrConfig if configuration is invalid.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := strings.TrimSpace(os.Getenv("HUDDLE_SESSION_TTL")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.TTL = d
	}

	cfg.Secret = strings.TrimSpace(os.Getenv("HUDDLE_JWT_SECRET"))
	if cfg.Secret == "" {
		return Config{}, ErrConfig
	}

	return cfg, nil
}

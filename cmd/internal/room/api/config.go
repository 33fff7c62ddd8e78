package roomapi

import (
	"os"
	"strconv"
	"strings"
)

// Config controls room API behavior.
type Config struct {
	// MaxBodyBytes bounds request body size.
	MaxBodyBytes int64

	// CORSOrigin is the Access-Control-Allow-Origin value. The legacy
	// deployment served browsers directly and allowed any origin.
	CORSOrigin string
}

// LoadConfigFromEnv loads API config from environment variables with safe defaults.
func LoadConfigFromEnv() Config {
	cfg := Config{
		MaxBodyBytes: envInt64("HUDDLE_MAX_BODY_BYTES", 1<<20), // 1 MiB
		CORSOrigin:   envString("HUDDLE_CORS_ORIGIN", "*"),
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	return cfg
}

func envString(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envInt64(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

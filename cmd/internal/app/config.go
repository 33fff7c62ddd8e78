package app

import "time"

// Identity modes for caller verification on owner/sender-gated operations.
const (
	IdentityModeTrusted = "trusted"
	IdentityModeToken   = "token"
)

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr string
	LogLevel string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	// If true:
	// - /readyz returns 503 unless DB is configured and reachable.
	ReadinessRequireDB bool

	// IdentityMode selects how callers of owner/sender-gated operations are
	// verified: "trusted" accepts the asserted device_id as-is, "token"
	// requires a bearer token whose subject matches it.
	IdentityMode string

	// RoomTTL is the room expiry window; zero means the service default.
	RoomTTL time.Duration

	// JoinKeyBytes is the join key entropy in bytes; zero means the
	// generator default.
	JoinKeyBytes int
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		HTTPAddr: EnvString("HUDDLE_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel: EnvString("HUDDLE_LOG_LEVEL", "info"),

		ReadHeaderTimeout: EnvDuration("HUDDLE_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("HUDDLE_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("HUDDLE_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("HUDDLE_HTTP_IDLE_TIMEOUT", 60*time.Second),

		MaxHeaderBytes: EnvInt("HUDDLE_HTTP_MAX_HEADER_BYTES", 1<<20),

		DatabaseURL: EnvString("HUDDLE_DATABASE_URL", ""),
		DBMaxConns:  EnvInt32("HUDDLE_DB_MAX_CONNS", 10),
		DBMinConns:  EnvInt32("HUDDLE_DB_MIN_CONNS", 0),

		ReadinessRequireDB: EnvBool("HUDDLE_READINESS_REQUIRE_DB", false),

		IdentityMode: EnvString("HUDDLE_IDENTITY_MODE", IdentityModeTrusted),

		RoomTTL:      EnvDuration("HUDDLE_ROOM_TTL", 0),
		JoinKeyBytes: EnvInt("HUDDLE_JOIN_KEY_BYTES", 0),
	}
}

package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the minimal identity envelope carried by a session token.
type Claims struct {
	DeviceID  string
	Role      string
	ExpiresAt time.Time
	IssuedAt  time.Time
}

// TokenIssuer mints and verifies session tokens.
//
// Verify is not called on the request path for issued tokens (the data layer
// does its own signature check); it exists for the token-bound identity mode
// and the realtime feed gate.
type TokenIssuer interface {
	Issue(deviceID string, now time.Time) (token string, exp time.Time, err error)
	Verify(token string, now time.Time) (Claims, error)
}

type sessionClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

type hs256Issuer struct {
	secret   []byte
	ttl      time.Duration
	audience string
	role     string
}

// NewHS256Issuer builds a TokenIssuer signing HS256 JWTs with cfg.Secret.
//
// A missing secret is ErrConfig at construction time, never a silent skip.
func NewHS256Issuer(cfg Config) (TokenIssuer, error) {
	if cfg.Secret == "" {
		return nil, ErrConfig
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultConfig().TTL
	}
	if cfg.Audience == "" {
		cfg.Audience = DefaultConfig().Audience
	}
	if cfg.Role == "" {
		cfg.Role = DefaultConfig().Role
	}

	return &hs256Issuer{
		secret:   []byte(cfg.Secret),
		ttl:      cfg.TTL,
		audience: cfg.Audience,
		role:     cfg.Role,
	}, nil
}

func (m *hs256Issuer) Issue(deviceID string, now time.Time) (string, time.Time, error) {
	if deviceID == "" {
		return "", time.Time{}, ErrInvalidToken
	}

	exp := now.Add(m.ttl)

	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   deviceID,
			Audience:  jwt.ClaimStrings{m.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Role: m.role,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

func (m *hs256Issuer) Verify(token string, now time.Time) (Claims, error) {
	var claims sessionClaims

	parsed, err := jwt.ParseWithClaims(token, &claims,
		func(*jwt.Token) (any, error) { return m.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(m.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil || !parsed.Valid {
		return Claims{}, ErrInvalidToken
	}
	if claims.Subject == "" || claims.Role != m.role {
		return Claims{}, ErrInvalidToken
	}

	out := Claims{
		DeviceID: claims.Subject,
		Role:     claims.Role,
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	return out, nil
}

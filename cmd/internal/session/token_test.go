package session

import (
	"errors"
	"testing"
	"time"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Secret = "test-secret-not-for-production"
	return cfg
}

func TestHS256_IssueAndVerify(t *testing.T) {
	t.Parallel()

	mgr, err := NewHS256Issuer(testConfig())
	if err != nil {
		t.Fatalf("NewHS256Issuer: %v", err)
	}

	now := time.Now().UTC()
	tok, exp, err := mgr.Issue("device-a", now)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if !exp.After(now) {
		t.Fatalf("expected exp after now")
	}
	if got, want := exp.Sub(now), 30*24*time.Hour; got != want {
		t.Fatalf("validity window=%v want=%v", got, want)
	}

	claims, err := mgr.Verify(tok, now.Add(1*time.Second))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.DeviceID != "device-a" {
		t.Fatalf("subject=%q want=%q", claims.DeviceID, "device-a")
	}
	if claims.Role != "authenticated" {
		t.Fatalf("role=%q want=%q", claims.Role, "authenticated")
	}
}

func TestHS256_RejectsExpired(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.TTL = time.Minute
	mgr, err := NewHS256Issuer(cfg)
	if err != nil {
		t.Fatalf("NewHS256Issuer: %v", err)
	}

	now := time.Now().UTC()
	tok, _, err := mgr.Issue("device-a", now)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if _, err := mgr.Verify(tok, now.Add(2*time.Minute)); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestHS256_RejectsWrongSecret(t *testing.T) {
	t.Parallel()

	mgr, err := NewHS256Issuer(testConfig())
	if err != nil {
		t.Fatalf("NewHS256Issuer: %v", err)
	}

	other := testConfig()
	other.Secret = "a-different-secret"
	otherMgr, err := NewHS256Issuer(other)
	if err != nil {
		t.Fatalf("NewHS256Issuer: %v", err)
	}

	now := time.Now().UTC()
	tok, _, err := mgr.Issue("device-a", now)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if _, err := otherMgr.Verify(tok, now); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken under wrong secret, got %v", err)
	}
}

func TestNewHS256Issuer_RequiresSecret(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	if _, err := NewHS256Issuer(cfg); !errors.Is(err, ErrConfig) {
		t.Fatalf("expected ErrConfig for missing secret, got %v", err)
	}
}

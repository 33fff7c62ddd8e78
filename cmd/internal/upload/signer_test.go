package upload

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func newTestSigner(t *testing.T) *Signer {
	t.Helper()
	s, err := NewSigner(Config{Secret: "test-secret-not-for-production", TTL: 15 * time.Minute, Bucket: "attachments"})
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	return s
}

func TestSignAndVerify(t *testing.T) {
	t.Parallel()

	s := newTestSigner(t)
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	cred, err := s.Sign("photo.jpg", "image/jpeg", now)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if !strings.HasPrefix(cred.Path, "attachments/") || !strings.HasSuffix(cred.Path, "-photo.jpg") {
		t.Fatalf("unexpected path %q", cred.Path)
	}
	if got, want := cred.ExpiresAt, now.Add(15*time.Minute); !got.Equal(want) {
		t.Fatalf("expiry=%v want=%v", got, want)
	}

	if err := s.Verify(cred.Token, cred.Path, "image/jpeg", now); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestVerify_Rejects(t *testing.T) {
	t.Parallel()

	s := newTestSigner(t)
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	cred, err := s.Sign("doc.pdf", "application/pdf", now)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	if err := s.Verify(cred.Token, cred.Path+"x", "application/pdf", now); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("tampered path: got %v", err)
	}
	if err := s.Verify(cred.Token, cred.Path, "text/html", now); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("tampered mime: got %v", err)
	}
	if err := s.Verify("garbage", cred.Path, "application/pdf", now); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("malformed token: got %v", err)
	}
	if err := s.Verify(cred.Token, cred.Path, "application/pdf", now.Add(time.Hour)); !errors.Is(err, ErrCredentialExpired) {
		t.Fatalf("expired: got %v", err)
	}

	other, err := NewSigner(Config{Secret: "a-different-secret"})
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	if err := other.Verify(cred.Token, cred.Path, "application/pdf", now); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("wrong secret: got %v", err)
	}
}

func TestSign_PathSanitization(t *testing.T) {
	t.Parallel()

	s := newTestSigner(t)
	now := time.Now().UTC()

	cred, err := s.Sign("../../etc/passwd", "text/plain", now)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if strings.Contains(cred.Path, "..") {
		t.Fatalf("traversal survived sanitization: %q", cred.Path)
	}
	if !strings.HasSuffix(cred.Path, "-passwd") {
		t.Fatalf("unexpected path %q", cred.Path)
	}

	cred, err = s.Sign(`C:\Users\x\cat.png`, "image/png", now)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if !strings.HasSuffix(cred.Path, "-cat.png") {
		t.Fatalf("backslash path not reduced to base name: %q", cred.Path)
	}

	for _, bad := range []string{"", ".", "..", "/", "   "} {
		if _, err := s.Sign(bad, "text/plain", now); !errors.Is(err, ErrInvalidPath) {
			t.Fatalf("Sign(%q): got %v want ErrInvalidPath", bad, err)
		}
	}
}

func TestSign_UniquePrefixes(t *testing.T) {
	t.Parallel()

	s := newTestSigner(t)
	now := time.Now().UTC()

	a, err := s.Sign("same.bin", "application/octet-stream", now)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	b, err := s.Sign("same.bin", "application/octet-stream", now)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if a.Path == b.Path {
		t.Fatalf("identical filenames produced identical paths: %q", a.Path)
	}
}

func TestNewSigner_RequiresSecret(t *testing.T) {
	t.Parallel()

	if _, err := NewSigner(Config{}); !errors.Is(err, ErrConfig) {
		t.Fatalf("got %v want ErrConfig", err)
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("HUDDLE_UPLOAD_SECRET", "")
	t.Setenv("HUDDLE_JWT_SECRET", "jwt-secret")
	t.Setenv("HUDDLE_UPLOAD_TTL", "5m")
	t.Setenv("HUDDLE_UPLOAD_BUCKET", "media")

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("LoadConfigFromEnv: %v", err)
	}
	if cfg.Secret != "jwt-secret" {
		t.Fatalf("secret fallback: got %q", cfg.Secret)
	}
	if cfg.TTL != 5*time.Minute {
		t.Fatalf("ttl: got %v", cfg.TTL)
	}
	if cfg.Bucket != "media" {
		t.Fatalf("bucket: got %q", cfg.Bucket)
	}

	t.Setenv("HUDDLE_JWT_SECRET", "")
	if _, err := LoadConfigFromEnv(); !errors.Is(err, ErrConfig) {
		t.Fatalf("no secret: got %v want ErrConfig", err)
	}

	t.Setenv("HUDDLE_JWT_SECRET", "jwt-secret")
	t.Setenv("HUDDLE_UPLOAD_TTL", "not-a-duration")
	if _, err := LoadConfigFromEnv(); !errors.Is(err, ErrConfig) {
		t.Fatalf("bad ttl: got %v want ErrConfig", err)
	}
}

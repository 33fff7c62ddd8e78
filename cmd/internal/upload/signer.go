package upload

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"
)

// Credential is a signed grant for one storage path. The client presents the
// token alongside the path when uploading; the storage tier recomputes the
// HMAC and checks the expiry.
type Credential struct {
	Token     string
	Path      string
	ExpiresAt time.Time
}

// Signer mints and verifies upload credentials.
type Signer struct {
	cfg Config
}

// NewSigner validates the configuration and constructs a Signer.
func NewSigner(cfg Config) (*Signer, error) {
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, ErrConfig
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultConfig().TTL
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		cfg.Bucket = DefaultConfig().Bucket
	}
	return &Signer{cfg: cfg}, nil
}

// Sign produces a credential for the given client filename. The storage path
// gets a random prefix so colliding filenames never overwrite each other.
// mime is carried for the storage tier's content-type enforcement and is
// covered by the signature.
func (s *Signer) Sign(filename, mime string, now time.Time) (Credential, error) {
	p, err := s.storagePath(filename)
	if err != nil {
		return Credential{}, err
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}
	exp := now.Add(s.cfg.TTL)

	mac := s.mac(p, strings.TrimSpace(mime), exp.Unix())
	token := fmt.Sprintf("%d.%s", exp.Unix(), mac)

	return Credential{Token: token, Path: p, ExpiresAt: exp}, nil
}

// Verify checks a credential for the given path and mime at the given time.
func (s *Signer) Verify(token, p, mime string, now time.Time) error {
	expPart, macPart, ok := strings.Cut(token, ".")
	if !ok {
		return ErrInvalidCredential
	}
	expUnix, err := strconv.ParseInt(expPart, 10, 64)
	if err != nil {
		return ErrInvalidCredential
	}

	want := s.mac(p, strings.TrimSpace(mime), expUnix)
	if !hmac.Equal([]byte(macPart), []byte(want)) {
		return ErrInvalidCredential
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}
	if !now.Before(time.Unix(expUnix, 0)) {
		return ErrCredentialExpired
	}
	return nil
}

func (s *Signer) mac(p, mime string, expUnix int64) string {
	h := hmac.New(sha256.New, []byte(s.cfg.Secret))
	fmt.Fprintf(h, "%s\n%s\n%d", p, mime, expUnix)
	return hex.EncodeToString(h.Sum(nil))
}

// storagePath turns a client filename into a bucket-relative path. The
// filename is reduced to its base name so clients cannot steer the prefix.
func (s *Signer) storagePath(filename string) (string, error) {
	name := path.Base(strings.TrimSpace(strings.ReplaceAll(filename, "\\", "/")))
	if name == "" || name == "." || name == ".." || name == "/" {
		return "", ErrInvalidPath
	}
	if strings.ContainsAny(name, "\x00\n") {
		return "", ErrInvalidPath
	}

	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", fmt.Errorf("upload: read random prefix: %w", err)
	}
	return fmt.Sprintf("%s/%s-%s", s.cfg.Bucket, hex.EncodeToString(buf[:]), name), nil
}

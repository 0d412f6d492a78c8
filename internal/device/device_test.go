package device

import (
	"errors"
	"testing"
	"time"

	"github.com/pinmehq/toybox/internal/database"
	"github.com/pinmehq/toybox/internal/store"
)

func setupProvisioner(t *testing.T) *Provisioner {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	issuer := NewTokenIssuer([]byte("test-secret"), time.Hour)
	return NewProvisioner(store.NewDeviceStore(db), issuer)
}

func TestIssueAndVerify(t *testing.T) {
	issuer := NewTokenIssuer([]byte("test-secret"), time.Hour)

	token, err := issuer.Issue("reader-1")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	got, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if got != "reader-1" {
		t.Errorf("Verify() = %q, want reader-1", got)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	token, err := NewTokenIssuer([]byte("secret-a"), time.Hour).Issue("reader-1")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if _, err := NewTokenIssuer([]byte("secret-b"), time.Hour).Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Verify() error = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	token, err := NewTokenIssuer([]byte("test-secret"), -time.Minute).Issue("reader-1")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if _, err := NewTokenIssuer([]byte("test-secret"), time.Hour).Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Verify() error = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	issuer := NewTokenIssuer([]byte("test-secret"), time.Hour)
	if _, err := issuer.Verify("not.a.token"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Verify() error = %v, want ErrInvalidToken", err)
	}
}

func TestProvisionFlow(t *testing.T) {
	p := setupProvisioner(t)

	dev, key, err := p.Register("user-1", "playroom reader")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if key == "" {
		t.Fatal("Register() returned empty provisioning key")
	}
	if dev.KeyHash == key {
		t.Error("provisioning key stored in plaintext")
	}

	token, err := p.IssueToken(dev.ID, key)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}

	got, err := p.Authenticate(token)
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if got.ID != dev.ID || got.UserID != "user-1" {
		t.Errorf("Authenticate() = %+v, want device %s", got, dev.ID)
	}
	if got.LastSeenAt == nil {
		t.Error("IssueToken() did not bump last seen")
	}
}

func TestIssueTokenRejectsWrongKey(t *testing.T) {
	p := setupProvisioner(t)

	dev, _, err := p.Register("user-1", "playroom reader")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if _, err := p.IssueToken(dev.ID, "wrong-key"); !errors.Is(err, ErrBadKey) {
		t.Errorf("IssueToken() error = %v, want ErrBadKey", err)
	}
	if _, err := p.IssueToken("no-such-device", "whatever"); !errors.Is(err, ErrBadKey) {
		t.Errorf("IssueToken() error = %v, want ErrBadKey", err)
	}
}

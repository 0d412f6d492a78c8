package localcache

import (
	"testing"

	"github.com/99designs/keyring"
)

func newTestCache() *Cache {
	return NewWithRing(keyring.NewArrayKeyring(nil))
}

func TestSetGet(t *testing.T) {
	c := newTestCache()

	if err := c.Set("k", "v"); err != nil {
		t.Fatalf("set: %v", err)
	}

	got, ok, err := c.Get("k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !ok {
		t.Fatal("expected key to be present")
	}
	if got != "v" {
		t.Errorf("value = %q, want %q", got, "v")
	}
}

func TestGetMissing(t *testing.T) {
	c := newTestCache()

	_, ok, err := c.Get("absent")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ok {
		t.Fatal("expected key to be absent")
	}
}

func TestDelete(t *testing.T) {
	c := newTestCache()

	if err := c.Set("k", "v"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := c.Delete("k"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	_, ok, err := c.Get("k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ok {
		t.Fatal("expected key to be gone after delete")
	}
}

func TestDeleteMissingIsNoop(t *testing.T) {
	c := newTestCache()
	if err := c.Delete("absent"); err != nil {
		t.Fatalf("delete missing: %v", err)
	}
}

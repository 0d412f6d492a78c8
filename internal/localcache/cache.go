package localcache

import (
	"errors"
	"fmt"

	"github.com/99designs/keyring"
)

const serviceName = "toybox"

// Cache is the secure local key-value store backing the settings fast path
// and the notification-history fallback. It wraps the OS keyring where one
// exists and an encrypted file backend otherwise.
type Cache struct {
	ring keyring.Keyring
}

// Open returns a Cache backed by the system keyring, falling back to an
// encrypted file store under fileDir.
func Open(fileDir, filePassword string) (*Cache, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  fileDir,
		FilePasswordFunc:         keyring.FixedStringPrompt(filePassword),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open keyring: %w", err)
	}
	return &Cache{ring: ring}, nil
}

// NewWithRing wraps an existing keyring. Tests pass keyring.NewArrayKeyring.
func NewWithRing(ring keyring.Keyring) *Cache {
	return &Cache{ring: ring}
}

// Get returns the value for key and whether it was present. Backend errors
// are reported as absence together with the error.
func (c *Cache) Get(key string) (string, bool, error) {
	item, err := c.ring.Get(key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %q: %w", key, err)
	}
	return string(item.Data), true, nil
}

func (c *Cache) Set(key, value string) error {
	err := c.ring.Set(keyring.Item{Key: key, Data: []byte(value)})
	if err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	return nil
}

func (c *Cache) Delete(key string) error {
	err := c.ring.Remove(key)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

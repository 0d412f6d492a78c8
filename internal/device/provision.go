package device

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/pinmehq/toybox/internal/model"
	"github.com/pinmehq/toybox/internal/store"
)

var ErrBadKey = errors.New("device key mismatch")

// Provisioner registers RFID reader devices and exchanges their
// provisioning keys for signed tokens. The key is shown once at
// registration; only its bcrypt hash is stored.
type Provisioner struct {
	devices *store.DeviceStore
	issuer  *TokenIssuer
}

func NewProvisioner(devices *store.DeviceStore, issuer *TokenIssuer) *Provisioner {
	return &Provisioner{devices: devices, issuer: issuer}
}

// Register creates a device row for the user and returns the one-time
// plaintext provisioning key alongside it.
func (p *Provisioner) Register(userID, name string) (*model.Device, string, error) {
	key, err := generateKey()
	if err != nil {
		return nil, "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("hash device key: %w", err)
	}

	dev, err := p.devices.Create(uuid.NewString(), userID, name, string(hash))
	if err != nil {
		return nil, "", err
	}
	return dev, key, nil
}

// IssueToken validates the provisioning key for a device and mints a
// token. The device's last-seen timestamp is bumped on success.
func (p *Provisioner) IssueToken(deviceID, key string) (string, error) {
	dev, err := p.devices.GetByID(deviceID)
	if err != nil {
		return "", err
	}
	if dev == nil {
		return "", ErrBadKey
	}
	if err := bcrypt.CompareHashAndPassword([]byte(dev.KeyHash), []byte(key)); err != nil {
		return "", ErrBadKey
	}
	if err := p.devices.TouchLastSeen(dev.ID); err != nil {
		return "", err
	}
	return p.issuer.Issue(dev.ID)
}

// Authenticate verifies a bearer token and resolves the device row it was
// minted for. Deleted devices are rejected even with a valid token.
func (p *Provisioner) Authenticate(token string) (*model.Device, error) {
	deviceID, err := p.issuer.Verify(token)
	if err != nil {
		return nil, err
	}
	dev, err := p.devices.GetByID(deviceID)
	if err != nil {
		return nil, err
	}
	if dev == nil {
		return nil, ErrInvalidToken
	}
	return dev, nil
}

func generateKey() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate device key: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

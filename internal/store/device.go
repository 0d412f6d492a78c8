package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/pinmehq/toybox/internal/model"
)

type DeviceStore struct {
	db *sql.DB
}

func NewDeviceStore(db *sql.DB) *DeviceStore {
	return &DeviceStore{db: db}
}

const deviceCols = `id, user_id, name, key_hash, created_at, last_seen_at`

func scanDevice(scanner interface{ Scan(...any) error }) (*model.Device, error) {
	var d model.Device
	var lastSeen sql.NullTime
	err := scanner.Scan(&d.ID, &d.UserID, &d.Name, &d.KeyHash, &d.CreatedAt, &lastSeen)
	if err != nil {
		return nil, err
	}
	if lastSeen.Valid {
		d.LastSeenAt = &lastSeen.Time
	}
	return &d, nil
}

func (s *DeviceStore) Create(id, userID, name, keyHash string) (*model.Device, error) {
	_, err := s.db.Exec(
		`INSERT INTO devices (id, user_id, name, key_hash, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, userID, name, keyHash, time.Now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert device: %w", err)
	}
	return s.GetByID(id)
}

func (s *DeviceStore) GetByID(id string) (*model.Device, error) {
	row := s.db.QueryRow(`SELECT `+deviceCols+` FROM devices WHERE id = ?`, id)
	d, err := scanDevice(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get device: %w", err)
	}
	return d, nil
}

func (s *DeviceStore) ListByUser(userID string) ([]model.Device, error) {
	rows, err := s.db.Query(`SELECT `+deviceCols+` FROM devices WHERE user_id = ? ORDER BY created_at ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	defer rows.Close()

	var devices []model.Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan device: %w", err)
		}
		devices = append(devices, *d)
	}
	return devices, rows.Err()
}

// TouchLastSeen stamps the device's last activity time.
func (s *DeviceStore) TouchLastSeen(id string) error {
	_, err := s.db.Exec(`UPDATE devices SET last_seen_at = ? WHERE id = ?`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("touch device: %w", err)
	}
	return nil
}

func (s *DeviceStore) Delete(id string) error {
	_, err := s.db.Exec(`DELETE FROM devices WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete device: %w", err)
	}
	return nil
}

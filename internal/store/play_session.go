package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/pinmehq/toybox/internal/model"
)

type PlaySessionStore struct {
	db *sql.DB
}

func NewPlaySessionStore(db *sql.DB) *PlaySessionStore {
	return &PlaySessionStore{db: db}
}

// RecordScan appends a scan for the toy at the given time.
func (s *PlaySessionStore) RecordScan(toyID string, at time.Time) error {
	_, err := s.db.Exec(
		`INSERT INTO play_sessions (toy_id, scan_time) VALUES (?, ?)`,
		toyID, at.UTC(),
	)
	if err != nil {
		return fmt.Errorf("record scan: %w", err)
	}
	return nil
}

// LastScanTime returns the most recent scan time for the toy, or nil when
// the toy has never been scanned.
func (s *PlaySessionStore) LastScanTime(toyID string) (*time.Time, error) {
	var t time.Time
	err := s.db.QueryRow(
		`SELECT scan_time FROM play_sessions WHERE toy_id = ? ORDER BY scan_time DESC LIMIT 1`,
		toyID,
	).Scan(&t)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last scan time: %w", err)
	}
	return &t, nil
}

// ListByToy returns scans for a toy, newest first, up to limit.
func (s *PlaySessionStore) ListByToy(toyID string, limit int) ([]model.PlaySession, error) {
	rows, err := s.db.Query(
		`SELECT id, toy_id, scan_time FROM play_sessions WHERE toy_id = ? ORDER BY scan_time DESC LIMIT ?`,
		toyID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list scans: %w", err)
	}
	defer rows.Close()

	var sessions []model.PlaySession
	for rows.Next() {
		var ps model.PlaySession
		if err := rows.Scan(&ps.ID, &ps.ToyID, &ps.ScanTime); err != nil {
			return nil, fmt.Errorf("scan play session: %w", err)
		}
		sessions = append(sessions, ps)
	}
	return sessions, rows.Err()
}

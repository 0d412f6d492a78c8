package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pinmehq/toybox/internal/model"
)

// HistoryStore is the append-only notification log. A row with a given
// source token is the durable record that that stage already fired.
type HistoryStore struct {
	db *sql.DB
}

func NewHistoryStore(db *sql.DB) *HistoryStore {
	return &HistoryStore{db: db}
}

// Record appends a fired notification.
func (s *HistoryStore) Record(title, body, source string) (*model.NotificationHistoryItem, error) {
	item := model.NotificationHistoryItem{
		ID:        uuid.NewString(),
		Title:     title,
		Body:      body,
		Source:    source,
		Timestamp: time.Now().UTC(),
	}
	_, err := s.db.Exec(
		`INSERT INTO notification_history (id, title, body, source, created_at) VALUES (?, ?, ?, ?, ?)`,
		item.ID, item.Title, item.Body, item.Source, item.Timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("record notification: %w", err)
	}
	return &item, nil
}

// Has reports whether any history item carries the given source token.
func (s *HistoryStore) Has(source string) (bool, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM notification_history WHERE source = ?`, source,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check notification source: %w", err)
	}
	return count > 0, nil
}

// List returns history items newest first, up to limit.
func (s *HistoryStore) List(limit int) ([]model.NotificationHistoryItem, error) {
	rows, err := s.db.Query(
		`SELECT id, title, body, source, created_at FROM notification_history
		 ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list notification history: %w", err)
	}
	defer rows.Close()

	var items []model.NotificationHistoryItem
	for rows.Next() {
		var it model.NotificationHistoryItem
		if err := rows.Scan(&it.ID, &it.Title, &it.Body, &it.Source, &it.Timestamp); err != nil {
			return nil, fmt.Errorf("scan history item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// Clear deletes the whole log. User-initiated only; engines never call this.
func (s *HistoryStore) Clear() error {
	_, err := s.db.Exec(`DELETE FROM notification_history`)
	if err != nil {
		return fmt.Errorf("clear notification history: %w", err)
	}
	return nil
}

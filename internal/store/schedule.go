package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/pinmehq/toybox/internal/model"
)

// ScheduleStore persists pending notifications for the dispatch loop.
type ScheduleStore struct {
	db *sql.DB
}

func NewScheduleStore(db *sql.DB) *ScheduleStore {
	return &ScheduleStore{db: db}
}

const scheduleCols = `id, title, body, type, toy_id, stage, push_enabled, inapp_enabled,
	fire_at, hour, minute, days, last_fired_on, created_at`

func scanScheduled(scanner interface{ Scan(...any) error }) (*model.ScheduledNotification, error) {
	var n model.ScheduledNotification
	err := scanner.Scan(
		&n.ID, &n.Title, &n.Body, &n.Type, &n.ToyID, &n.Stage, &n.PushEnabled, &n.InAppEnabled,
		&n.FireAt, &n.Hour, &n.Minute, &n.Days, &n.LastFiredOn, &n.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// Create inserts a pending notification.
func (s *ScheduleStore) Create(n model.ScheduledNotification) error {
	_, err := s.db.Exec(
		`INSERT INTO scheduled_notifications
		 (id, title, body, type, toy_id, stage, push_enabled, inapp_enabled, fire_at, hour, minute, days, last_fired_on, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.Title, n.Body, n.Type, n.ToyID, n.Stage, n.PushEnabled, n.InAppEnabled,
		n.FireAt, n.Hour, n.Minute, n.Days, n.LastFiredOn, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert scheduled notification: %w", err)
	}
	return nil
}

// List returns every pending notification.
func (s *ScheduleStore) List() ([]model.ScheduledNotification, error) {
	rows, err := s.db.Query(`SELECT ` + scheduleCols + ` FROM scheduled_notifications ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list scheduled notifications: %w", err)
	}
	defer rows.Close()
	return collectScheduled(rows)
}

// ListDue returns one-shot notifications whose fire time has passed.
func (s *ScheduleStore) ListDue(now time.Time) ([]model.ScheduledNotification, error) {
	rows, err := s.db.Query(
		`SELECT `+scheduleCols+` FROM scheduled_notifications
		 WHERE fire_at IS NOT NULL AND fire_at <= ? ORDER BY fire_at ASC`,
		now.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("list due notifications: %w", err)
	}
	defer rows.Close()
	return collectScheduled(rows)
}

// ListRecurring returns all hour/minute-of-day entries.
func (s *ScheduleStore) ListRecurring() ([]model.ScheduledNotification, error) {
	rows, err := s.db.Query(`SELECT ` + scheduleCols + ` FROM scheduled_notifications WHERE fire_at IS NULL`)
	if err != nil {
		return nil, fmt.Errorf("list recurring notifications: %w", err)
	}
	defer rows.Close()
	return collectScheduled(rows)
}

// MarkFired stamps a recurring entry with the day it last fired on,
// preventing a second delivery within the same day.
func (s *ScheduleStore) MarkFired(id, day string) error {
	_, err := s.db.Exec(`UPDATE scheduled_notifications SET last_fired_on = ? WHERE id = ?`, day, id)
	if err != nil {
		return fmt.Errorf("mark fired: %w", err)
	}
	return nil
}

func (s *ScheduleStore) Delete(id string) error {
	_, err := s.db.Exec(`DELETE FROM scheduled_notifications WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete scheduled notification: %w", err)
	}
	return nil
}

func collectScheduled(rows *sql.Rows) ([]model.ScheduledNotification, error) {
	var items []model.ScheduledNotification
	for rows.Next() {
		n, err := scanScheduled(rows)
		if err != nil {
			return nil, fmt.Errorf("scan scheduled notification: %w", err)
		}
		items = append(items, *n)
	}
	return items, rows.Err()
}

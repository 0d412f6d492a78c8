package store

import (
	"database/sql"
	"fmt"
	"time"
)

// ReminderSettingsRow is the raw remote settings row for one user. Columns
// are nullable so partial rows written by older clients still decode; the
// reminder package owns shape normalization and the dual-scheme merge for
// the long-play delivery methods (nested longplay_methods JSON vs the flat
// longplay_push/longplay_inapp columns).
type ReminderSettingsRow struct {
	UserID              string
	LongPlayEnabled     sql.NullBool
	LongPlayDurationMin sql.NullInt64
	LongPlayMethods     sql.NullString
	LongPlayPush        sql.NullBool
	LongPlayInApp       sql.NullBool
	IdleEnabled         sql.NullBool
	IdleDays            sql.NullInt64
	IdleSmartSuggest    sql.NullBool
	TidyEnabled         sql.NullBool
	TidyTime            sql.NullString
	TidyRepeat          sql.NullString
	TidyDNDStart        sql.NullString
	TidyDNDEnd          sql.NullString
	UpdatedAt           time.Time
}

type ReminderSettingsStore struct {
	db *sql.DB
}

func NewReminderSettingsStore(db *sql.DB) *ReminderSettingsStore {
	return &ReminderSettingsStore{db: db}
}

const settingsCols = `user_id, longplay_enabled, longplay_duration_min, longplay_methods,
	longplay_push, longplay_inapp, idle_enabled, idle_days, idle_smart_suggest,
	tidy_enabled, tidy_time, tidy_repeat, tidy_dnd_start, tidy_dnd_end, updated_at`

// Get returns the settings row for a user, or nil when none exists.
func (s *ReminderSettingsStore) Get(userID string) (*ReminderSettingsRow, error) {
	var r ReminderSettingsRow
	err := s.db.QueryRow(
		`SELECT `+settingsCols+` FROM reminder_settings WHERE user_id = ?`, userID,
	).Scan(
		&r.UserID, &r.LongPlayEnabled, &r.LongPlayDurationMin, &r.LongPlayMethods,
		&r.LongPlayPush, &r.LongPlayInApp, &r.IdleEnabled, &r.IdleDays, &r.IdleSmartSuggest,
		&r.TidyEnabled, &r.TidyTime, &r.TidyRepeat, &r.TidyDNDStart, &r.TidyDNDEnd, &r.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get reminder settings: %w", err)
	}
	return &r, nil
}

// UpsertLongPlay writes the long-play bundle for a user. Both the nested
// methods JSON and the flat method columns are written so older readers of
// either scheme stay consistent.
func (s *ReminderSettingsStore) UpsertLongPlay(userID string, enabled bool, durationMin int, methodsJSON string, push, inApp bool) error {
	_, err := s.db.Exec(
		`INSERT INTO reminder_settings (user_id, longplay_enabled, longplay_duration_min, longplay_methods, longplay_push, longplay_inapp, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
		   longplay_enabled = excluded.longplay_enabled,
		   longplay_duration_min = excluded.longplay_duration_min,
		   longplay_methods = excluded.longplay_methods,
		   longplay_push = excluded.longplay_push,
		   longplay_inapp = excluded.longplay_inapp,
		   updated_at = excluded.updated_at`,
		userID, enabled, durationMin, methodsJSON, push, inApp, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert longplay settings: %w", err)
	}
	return nil
}

// UpsertIdleToy writes the idle-toy bundle for a user.
func (s *ReminderSettingsStore) UpsertIdleToy(userID string, enabled bool, days int, smartSuggest bool) error {
	_, err := s.db.Exec(
		`INSERT INTO reminder_settings (user_id, idle_enabled, idle_days, idle_smart_suggest, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
		   idle_enabled = excluded.idle_enabled,
		   idle_days = excluded.idle_days,
		   idle_smart_suggest = excluded.idle_smart_suggest,
		   updated_at = excluded.updated_at`,
		userID, enabled, days, smartSuggest, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert idle settings: %w", err)
	}
	return nil
}

// UpsertTidying writes the tidy-up bundle for a user.
func (s *ReminderSettingsStore) UpsertTidying(userID string, enabled bool, timeOfDay, repeat, dndStart, dndEnd string) error {
	_, err := s.db.Exec(
		`INSERT INTO reminder_settings (user_id, tidy_enabled, tidy_time, tidy_repeat, tidy_dnd_start, tidy_dnd_end, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
		   tidy_enabled = excluded.tidy_enabled,
		   tidy_time = excluded.tidy_time,
		   tidy_repeat = excluded.tidy_repeat,
		   tidy_dnd_start = excluded.tidy_dnd_start,
		   tidy_dnd_end = excluded.tidy_dnd_end,
		   updated_at = excluded.updated_at`,
		userID, enabled, timeOfDay, repeat, dndStart, dndEnd, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert tidying settings: %w", err)
	}
	return nil
}

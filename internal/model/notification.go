package model

import (
	"database/sql"
	"time"
)

// NotificationHistoryItem is one fired notification. The Source field is the
// dedupe token: "<engine>:<toyID>:<stage>" for per-toy stages, or a bare
// engine name for engine-level notifications.
type NotificationHistoryItem struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}

// ScheduledNotification is a pending notification owned by the dispatch loop.
// One-shots carry FireAt; recurring entries carry Hour/Minute plus a
// 7-character day mask (index 0 = Sunday). LastFiredOn guards recurring
// entries against firing twice within the same day.
type ScheduledNotification struct {
	ID           string
	Title        string
	Body         string
	Type         string
	ToyID        string
	Stage        string
	PushEnabled  bool
	InAppEnabled bool
	FireAt       sql.NullTime
	Hour         sql.NullInt64
	Minute       sql.NullInt64
	Days         sql.NullString
	LastFiredOn  sql.NullString
	CreatedAt    time.Time
}

// Recurring reports whether the entry fires on an hour/minute schedule
// rather than at a single absolute time.
func (n ScheduledNotification) Recurring() bool {
	return !n.FireAt.Valid
}

type PushSubscription struct {
	ID         int64     `json:"id"`
	Endpoint   string    `json:"endpoint"`
	P256dhKey  string    `json:"p256dh_key"`
	AuthKey    string    `json:"auth_key"`
	DeviceName string    `json:"device_name"`
	CreatedAt  time.Time `json:"created_at"`
}

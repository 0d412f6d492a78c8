package notify

import (
	"context"
	"fmt"
	"time"
)

// Notification type tags. Each engine stamps its own type on everything it
// schedules so cancellation predicates can match by engine and toy.
const (
	TypeIdleToy  = "idleToy"
	TypeLongPlay = "longPlay"
	TypeTidyUp   = "tidyUp"
)

// Data is the routing tag attached to every notification. The scheduler
// tracks scheduled entries only by this tag for cancellation matching.
type Data struct {
	Type  string `json:"type"`
	ToyID string `json:"toyId,omitempty"`
	Stage string `json:"stage,omitempty"`
}

// Source derives the history dedupe token: "<type>:<toyId>:<stage>" for
// per-toy stages, or the bare type for engine-level notifications.
func (d Data) Source() string {
	if d.ToyID == "" {
		return d.Type
	}
	return fmt.Sprintf("%s:%s:%s", d.Type, d.ToyID, d.Stage)
}

// Channels selects delivery surfaces for a notification.
type Channels struct {
	Push  bool
	InApp bool
}

// AllChannels enables every delivery surface.
func AllChannels() Channels {
	return Channels{Push: true, InApp: true}
}

// Payload is one notification request handed to the scheduler.
type Payload struct {
	Title    string
	Body     string
	Data     Data
	Channels Channels
}

// Scheduler is the notification capability the reminder engines talk to:
// schedule-at-delay, schedule-recurring, cancel-matching, deliver-immediate.
// Scheduled entries persist independently of the callers' lifetimes.
type Scheduler interface {
	// ScheduleAt queues a one-shot notification after the given delay.
	ScheduleAt(ctx context.Context, delay time.Duration, p Payload) error
	// ScheduleRecurring queues an hour/minute-of-day notification. days is a
	// 7-character '0'/'1' mask with index 0 = Sunday.
	ScheduleRecurring(ctx context.Context, hour, minute int, days string, p Payload) error
	// CancelWhere removes every pending entry whose data tag matches.
	CancelWhere(ctx context.Context, match func(Data) bool) error
	// DeliverNow fires a notification immediately and records it in history.
	DeliverNow(ctx context.Context, p Payload) error
}

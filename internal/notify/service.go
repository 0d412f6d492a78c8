package notify

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pinmehq/toybox/internal/model"
	"github.com/pinmehq/toybox/internal/push"
	"github.com/pinmehq/toybox/internal/store"
)

// Broadcaster receives delivered notifications for in-app display.
// The websocket hub implements it.
type Broadcaster interface {
	NotificationDelivered(item model.NotificationHistoryItem)
}

// Service is the persistent Scheduler implementation: entries live in the
// scheduled_notifications table and a ticker loop delivers them, so pending
// reminders survive process restarts.
type Service struct {
	mu       sync.RWMutex
	schedule *store.ScheduleStore
	subs     *store.SubscriptionStore
	history  *store.HistoryStore
	pushSvc  *push.Service // nil when VAPID is not configured
	hub      Broadcaster   // nil when no in-app surface is attached
	logger   *slog.Logger
	interval time.Duration
	now      func() time.Time
	loc      *time.Location
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewService(schedule *store.ScheduleStore, subs *store.SubscriptionStore, history *store.HistoryStore, pushSvc *push.Service, hub Broadcaster, logger *slog.Logger) *Service {
	return &Service{
		schedule: schedule,
		subs:     subs,
		history:  history,
		pushSvc:  pushSvc,
		hub:      hub,
		logger:   logger,
		interval: 30 * time.Second,
		now:      time.Now,
		loc:      time.Local,
	}
}

// Start begins the dispatch loop.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.tick(ctx)
			}
		}
	}()
}

// Stop gracefully stops the dispatch loop. Pending entries stay persisted.
func (s *Service) Stop() {
	s.mu.RLock()
	cancel := s.cancel
	done := s.done
	s.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (s *Service) ScheduleAt(ctx context.Context, delay time.Duration, p Payload) error {
	n := s.rowFromPayload(p)
	n.FireAt = sql.NullTime{Time: s.now().UTC().Add(delay), Valid: true}
	return s.schedule.Create(n)
}

func (s *Service) ScheduleRecurring(ctx context.Context, hour, minute int, days string, p Payload) error {
	n := s.rowFromPayload(p)
	n.Hour = sql.NullInt64{Int64: int64(hour), Valid: true}
	n.Minute = sql.NullInt64{Int64: int64(minute), Valid: true}
	n.Days = sql.NullString{String: days, Valid: true}
	return s.schedule.Create(n)
}

func (s *Service) CancelWhere(ctx context.Context, match func(Data) bool) error {
	pending, err := s.schedule.List()
	if err != nil {
		return err
	}
	for _, n := range pending {
		if !match(Data{Type: n.Type, ToyID: n.ToyID, Stage: n.Stage}) {
			continue
		}
		if err := s.schedule.Delete(n.ID); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) DeliverNow(ctx context.Context, p Payload) error {
	s.deliver(p)
	return nil
}

// Pending returns every scheduled entry, for the reminder status view.
func (s *Service) Pending() ([]model.ScheduledNotification, error) {
	return s.schedule.List()
}

func (s *Service) rowFromPayload(p Payload) model.ScheduledNotification {
	return model.ScheduledNotification{
		ID:           uuid.NewString(),
		Title:        p.Title,
		Body:         p.Body,
		Type:         p.Data.Type,
		ToyID:        p.Data.ToyID,
		Stage:        p.Data.Stage,
		PushEnabled:  p.Channels.Push,
		InAppEnabled: p.Channels.InApp,
	}
}

func (s *Service) tick(ctx context.Context) {
	now := s.now()

	due, err := s.schedule.ListDue(now.UTC())
	if err != nil {
		s.logger.Error("list due notifications", "error", err)
	} else {
		for _, n := range due {
			s.deliver(payloadFromRow(n))
			if err := s.schedule.Delete(n.ID); err != nil {
				s.logger.Error("delete fired notification", "id", n.ID, "error", err)
			}
		}
	}

	recurring, err := s.schedule.ListRecurring()
	if err != nil {
		s.logger.Error("list recurring notifications", "error", err)
		return
	}
	// Recurring times are wall-clock: "20:00" means eight in the evening
	// where the toy box lives, not UTC.
	local := now.In(s.loc)
	today := local.Format("2006-01-02")
	for _, n := range recurring {
		if !recurringDueNow(n, local) {
			continue
		}
		if n.LastFiredOn.Valid && n.LastFiredOn.String == today {
			continue
		}
		s.deliver(payloadFromRow(n))
		if err := s.schedule.MarkFired(n.ID, today); err != nil {
			s.logger.Error("mark recurring fired", "id", n.ID, "error", err)
		}
	}
}

// recurringDueNow reports whether a recurring entry should fire in the
// current minute on the current weekday.
func recurringDueNow(n model.ScheduledNotification, now time.Time) bool {
	if !n.Hour.Valid || !n.Minute.Valid {
		return false
	}
	if int64(now.Hour()) != n.Hour.Int64 || int64(now.Minute()) != n.Minute.Int64 {
		return false
	}
	if !n.Days.Valid || len(n.Days.String) != 7 {
		return true
	}
	return n.Days.String[int(now.Weekday())] == '1'
}

func payloadFromRow(n model.ScheduledNotification) Payload {
	return Payload{
		Title: n.Title,
		Body:  n.Body,
		Data:  Data{Type: n.Type, ToyID: n.ToyID, Stage: n.Stage},
		Channels: Channels{
			Push:  n.PushEnabled,
			InApp: n.InAppEnabled,
		},
	}
}

// deliver fans a notification out to the configured surfaces and records it
// in history. A failed history write never blocks delivery; the accepted
// risk is a future duplicate.
func (s *Service) deliver(p Payload) {
	source := p.Data.Source()

	item, err := s.history.Record(p.Title, p.Body, source)
	if err != nil {
		s.logger.Error("record notification history", "source", source, "error", err)
		item = &model.NotificationHistoryItem{
			ID:        uuid.NewString(),
			Title:     p.Title,
			Body:      p.Body,
			Source:    source,
			Timestamp: s.now().UTC(),
		}
	}

	if p.Channels.InApp && s.hub != nil {
		s.hub.NotificationDelivered(*item)
	}

	if !p.Channels.Push || s.pushSvc == nil {
		return
	}
	subs, err := s.subs.List()
	if err != nil {
		s.logger.Error("list push subscriptions", "error", err)
		return
	}
	for _, sub := range subs {
		payload := push.Payload{Title: p.Title, Body: p.Body, Tag: source}
		if err := s.pushSvc.Send(&sub, payload); err != nil {
			if errors.Is(err, push.ErrExpired) {
				if err := s.subs.DeleteByEndpoint(sub.Endpoint); err != nil {
					s.logger.Error("delete expired subscription", "error", err)
				}
			} else {
				s.logger.Error("send push", "source", source, "error", err)
			}
		}
	}
}

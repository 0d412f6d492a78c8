package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/pinmehq/toybox/internal/events"
	"github.com/pinmehq/toybox/internal/model"
	"github.com/pinmehq/toybox/internal/notify"
	"github.com/pinmehq/toybox/internal/store"
)

const longPlayTitle = "Time for a break!"

// How far a toy's updated_at may lag behind "now" and still count as the
// moment the current play session started.
const updateFreshness = 60 * time.Second

// A last scan older than this is treated as stale: it belongs to a previous
// session, not the one that just started.
const scanStaleness = 600 * time.Second

// LongPlayMonitor watches toy status changes and schedules escalating break
// reminders while a toy is out of the box. Reminders are cancelled the
// moment the toy comes back. Scheduled entries persist in the notification
// store, so a monitor restart picks up where the previous run left off.
type LongPlayMonitor struct {
	toys     *store.ToyStore
	sessions *store.PlaySessionStore
	sched    notify.Scheduler
	idle     *IdleEngine
	settings *SettingsStore
	bus      *events.Bus
	logger   *slog.Logger
	now      func() time.Time

	mu      sync.Mutex
	running bool
	sub     *events.Subscription
	cancel  context.CancelFunc
	done    chan struct{}
	current model.LongPlaySettings
}

func NewLongPlayMonitor(toys *store.ToyStore, sessions *store.PlaySessionStore, sched notify.Scheduler, idle *IdleEngine, settings *SettingsStore, bus *events.Bus, logger *slog.Logger) *LongPlayMonitor {
	return &LongPlayMonitor{
		toys:     toys,
		sessions: sessions,
		sched:    sched,
		idle:     idle,
		settings: settings,
		bus:      bus,
		logger:   logger,
		now:      time.Now,
	}
}

// Start subscribes to toy changes and schedules the reminder ladder for
// every toy currently out of the box. Starting a disabled monitor or one
// that is already running is a no-op.
func (m *LongPlayMonitor) Start(ctx context.Context, settings model.LongPlaySettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !settings.Enabled {
		return nil
	}
	if m.running {
		m.current = settings
		return nil
	}

	m.current = settings
	m.sub = m.bus.Subscribe()

	// Recovery pass: toys already out when the monitor starts get their
	// ladder rebuilt from the recorded session start, not from now.
	out, err := m.toys.ListByStatus(model.ToyStatusOut)
	if err != nil {
		m.sub.Close()
		m.sub = nil
		return fmt.Errorf("list toys out of box: %w", err)
	}
	for _, toy := range out {
		if err := m.scheduleLadder(ctx, toy, settings); err != nil {
			m.logger.Error("long play recovery", "toy_id", toy.ID, "error", err)
		}
	}

	runCtx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})
	m.running = true

	go m.run(runCtx, m.sub, m.done)
	m.logger.Info("long play monitor started", "duration_min", settings.DurationMin)
	return nil
}

// Stop unsubscribes and halts the event loop. Reminders already scheduled
// stay in the store; disabling long-play entirely is the caller's job via
// CancelType.
func (m *LongPlayMonitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	done := m.done
	sub := m.sub
	m.sub = nil
	m.running = false
	m.mu.Unlock()

	// Wait outside the lock: the event loop takes it to read settings and
	// must be able to finish the change in flight before done closes.
	cancel()
	<-done
	sub.Close()
	m.logger.Info("long play monitor stopped")
}

// Running reports whether the monitor is consuming toy changes.
func (m *LongPlayMonitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// CancelType removes every pending long-play reminder for every toy.
func (m *LongPlayMonitor) CancelType(ctx context.Context) error {
	return m.sched.CancelWhere(ctx, func(d notify.Data) bool {
		return d.Type == notify.TypeLongPlay
	})
}

func (m *LongPlayMonitor) run(ctx context.Context, sub *events.Subscription, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case change, ok := <-sub.Changes():
			if !ok {
				return
			}
			if err := m.handleChange(ctx, change.Toy); err != nil {
				m.logger.Error("long play handle change", "toy_id", change.Toy.ID, "error", err)
			}
		}
	}
}

func (m *LongPlayMonitor) handleChange(ctx context.Context, toy model.Toy) error {
	m.mu.Lock()
	settings := m.current
	m.mu.Unlock()

	switch toy.Status {
	case model.ToyStatusOut:
		return m.scheduleLadder(ctx, toy, settings)
	case model.ToyStatusIn:
		return m.handleReturn(ctx, toy)
	default:
		return nil
	}
}

// sessionStart infers when the current play session began. The status row's
// updated_at is preferred when it is fresh and the last scan is stale or
// absent: a scan that old belongs to the previous session.
func (m *LongPlayMonitor) sessionStart(toy model.Toy) (time.Time, error) {
	last, err := m.sessions.LastScanTime(toy.ID)
	if err != nil {
		return time.Time{}, err
	}

	start := toy.UpdatedAt
	if last != nil {
		start = *last
	}
	now := m.now()
	if now.Sub(toy.UpdatedAt) <= updateFreshness && (last == nil || now.Sub(*last) > scanStaleness) {
		start = toy.UpdatedAt
	}
	return start, nil
}

// scheduleLadder replaces the toy's pending long-play reminders with the
// escalation ladder: the configured duration, two gentle follow-ups, and a
// day-long catch-all. Offsets already in the past are skipped rather than
// fired late.
func (m *LongPlayMonitor) scheduleLadder(ctx context.Context, toy model.Toy, settings model.LongPlaySettings) error {
	start, err := m.sessionStart(toy)
	if err != nil {
		return err
	}

	err = m.sched.CancelWhere(ctx, func(d notify.Data) bool {
		return d.Type == notify.TypeLongPlay && d.ToyID == toy.ID
	})
	if err != nil {
		return err
	}

	d := settings.DurationMin
	if d <= 0 {
		d = model.DefaultLongPlayMinutes
	}
	channels := notify.Channels{Push: settings.Methods.Push, InApp: settings.Methods.InApp}
	now := m.now()

	for _, offset := range []int{d, d + 5, d + 15, 24 * 60} {
		fireAt := start.Add(time.Duration(offset) * time.Minute)
		if !fireAt.After(now) {
			continue
		}
		p := notify.Payload{
			Title:    longPlayTitle,
			Body:     fmt.Sprintf("%s has been out for %d minutes. Time to take a break?", toy.Name, offset),
			Data:     notify.Data{Type: notify.TypeLongPlay, ToyID: toy.ID, Stage: strconv.Itoa(offset)},
			Channels: channels,
		}
		if err := m.sched.ScheduleAt(ctx, fireAt.Sub(now), p); err != nil {
			return err
		}
	}

	// A toy in active play is not idle: clear any pending idle reminders.
	return m.sched.CancelWhere(ctx, func(d notify.Data) bool {
		return d.Type == notify.TypeIdleToy && d.ToyID == toy.ID
	})
}

// handleReturn clears the toy's break ladder and re-arms its idle
// countdown when the idle engine is enabled.
func (m *LongPlayMonitor) handleReturn(ctx context.Context, toy model.Toy) error {
	err := m.sched.CancelWhere(ctx, func(d notify.Data) bool {
		return d.Type == notify.TypeLongPlay && d.ToyID == toy.ID
	})
	if err != nil {
		return err
	}

	idle := m.settings.LoadIdleToy(ctx)
	if !idle.Enabled {
		return nil
	}
	return m.idle.ScheduleForToy(ctx, toy, idle)
}

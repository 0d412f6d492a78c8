package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/pinmehq/toybox/internal/model"
	"github.com/pinmehq/toybox/internal/notify"
	"github.com/pinmehq/toybox/internal/store"
)

const idleTitle = "Toy misses you"

// IdleEngine is the pull-based idle-toy scanner. A scan walks every toy,
// computes days since last activity, and fires at most one notification per
// toy per pass, deduplicated against the notification history by stage
// label. The engine keeps no state of its own between passes.
type IdleEngine struct {
	mu       sync.Mutex
	toys     *store.ToyStore
	sessions *store.PlaySessionStore
	history  *store.HistoryStore
	sched    notify.Scheduler
	logger   *slog.Logger
	now      func() time.Time
}

func NewIdleEngine(toys *store.ToyStore, sessions *store.PlaySessionStore, history *store.HistoryStore, sched notify.Scheduler, logger *slog.Logger) *IdleEngine {
	return &IdleEngine{
		toys:     toys,
		sessions: sessions,
		history:  history,
		sched:    sched,
		logger:   logger,
		now:      time.Now,
	}
}

// RunScan evaluates every toy against the idle thresholds. Concurrent calls
// are serialized; a failure on one toy does not abort its siblings.
func (e *IdleEngine) RunScan(ctx context.Context, settings model.IdleToySettings) {
	if !settings.Enabled {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	toys, err := e.toys.List()
	if err != nil {
		e.logger.Error("idle scan: list toys", "error", err)
		return
	}

	for _, toy := range toys {
		if err := e.scanToy(ctx, toy, settings); err != nil {
			e.logger.Error("idle scan: toy failed", "toy_id", toy.ID, "error", err)
		}
	}
}

func (e *IdleEngine) scanToy(ctx context.Context, toy model.Toy, settings model.IdleToySettings) error {
	last, err := e.sessions.LastScanTime(toy.ID)
	if err != nil {
		return err
	}

	// Toys that were never scanned idle from their creation time, so a
	// brand-new toy is not flagged as idle for weeks immediately.
	lastActivity := toy.CreatedAt
	if last != nil {
		lastActivity = *last
	}
	daysSince := int(e.now().Sub(lastActivity) / (24 * time.Hour))

	if last == nil {
		data := notify.Data{Type: notify.TypeIdleToy, ToyID: toy.ID, Stage: "never"}
		neverSent, err := e.history.Has(data.Source())
		if err != nil {
			return err
		}
		if !neverSent {
			return e.scanNeverPlayed(ctx, toy, settings, daysSince)
		}
		// The one-time never stage has fired; from here the toy escalates
		// through the regular thresholds off its creation time.
	}
	return e.scanWithHistory(ctx, toy, settings, daysSince)
}

// neverThreshold is the never-played trigger: max(days, 7), or 7 when the
// configured days value is not positive.
func neverThreshold(days int) int {
	if days <= 0 {
		return 7
	}
	if days < 7 {
		return 7
	}
	return days
}

// scanNeverPlayed fires the one-time "never" stage. It never re-fires for a
// toy, no matter how many more days accumulate.
func (e *IdleEngine) scanNeverPlayed(ctx context.Context, toy model.Toy, settings model.IdleToySettings, daysSince int) error {
	if daysSince < neverThreshold(settings.Days) {
		return nil
	}

	data := notify.Data{Type: notify.TypeIdleToy, ToyID: toy.ID, Stage: "never"}
	return e.sched.DeliverNow(ctx, notify.Payload{
		Title:    idleTitle,
		Body:     fmt.Sprintf("%s has not been played with yet (no play history).", toy.Name),
		Data:     data,
		Channels: notify.AllChannels(),
	})
}

type idleCandidate struct {
	threshold int
	label     string
}

// idleCandidates builds the trigger set for a toy with scan history:
// every completed 30-day multiple, the configured days threshold, and a
// fixed 7-day threshold when it differs from the configured one. Sorted by
// threshold descending; ties keep insertion order, so a monthly stage wins
// over a user threshold that lands on the same day count.
func idleCandidates(daysSince, configuredDays int) []idleCandidate {
	var cands []idleCandidate
	for k := daysSince / 30; k >= 1; k-- {
		cands = append(cands, idleCandidate{threshold: 30 * k, label: fmt.Sprintf("month:%d", k)})
	}
	if configuredDays > 0 {
		cands = append(cands, idleCandidate{threshold: configuredDays, label: strconv.Itoa(configuredDays)})
	}
	if configuredDays != 7 {
		cands = append(cands, idleCandidate{threshold: 7, label: "7"})
	}
	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].threshold > cands[j].threshold
	})
	return cands
}

// scanWithHistory walks the candidate thresholds from highest to lowest and
// acts on the first one that daysSince has reached: already recorded means
// every lower threshold is considered satisfied and the walk stops;
// unrecorded means fire, record, stop.
func (e *IdleEngine) scanWithHistory(ctx context.Context, toy model.Toy, settings model.IdleToySettings, daysSince int) error {
	for _, c := range idleCandidates(daysSince, settings.Days) {
		if c.threshold > daysSince {
			continue
		}

		data := notify.Data{Type: notify.TypeIdleToy, ToyID: toy.ID, Stage: c.label}
		sent, err := e.history.Has(data.Source())
		if err != nil {
			return err
		}
		if sent {
			return nil
		}

		body := fmt.Sprintf("%s hasn't been played with for %d days. It misses you!", toy.Name, daysSince)
		if settings.SmartSuggest {
			body += " How about placing it on the play mat today?"
		}
		return e.sched.DeliverNow(ctx, notify.Payload{
			Title:    idleTitle,
			Body:     body,
			Data:     data,
			Channels: notify.AllChannels(),
		})
	}
	return nil
}

// ScheduleForToy replaces the toy's pending idle reminders with one-shots at
// the configured days, 7 days when distinct, and 30 days from now. Called
// when a toy returns to the box.
func (e *IdleEngine) ScheduleForToy(ctx context.Context, toy model.Toy, settings model.IdleToySettings) error {
	if !settings.Enabled {
		return nil
	}

	err := e.sched.CancelWhere(ctx, func(d notify.Data) bool {
		return d.Type == notify.TypeIdleToy && d.ToyID == toy.ID
	})
	if err != nil {
		return err
	}

	offsets := []idleCandidate{}
	if settings.Days > 0 {
		offsets = append(offsets, idleCandidate{threshold: settings.Days, label: strconv.Itoa(settings.Days)})
	}
	if settings.Days != 7 {
		offsets = append(offsets, idleCandidate{threshold: 7, label: "7"})
	}
	if settings.Days != 30 {
		offsets = append(offsets, idleCandidate{threshold: 30, label: "month:1"})
	}

	for _, o := range offsets {
		body := fmt.Sprintf("%s hasn't been played with for %d days. It misses you!", toy.Name, o.threshold)
		if settings.SmartSuggest {
			body += " How about placing it on the play mat today?"
		}
		p := notify.Payload{
			Title:    idleTitle,
			Body:     body,
			Data:     notify.Data{Type: notify.TypeIdleToy, ToyID: toy.ID, Stage: o.label},
			Channels: notify.AllChannels(),
		}
		if err := e.sched.ScheduleAt(ctx, time.Duration(o.threshold)*24*time.Hour, p); err != nil {
			return err
		}
	}
	return nil
}

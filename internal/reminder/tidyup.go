package reminder

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pinmehq/toybox/internal/model"
	"github.com/pinmehq/toybox/internal/notify"
)

const tidyUpTitle = "Time to tidy up toys!"

// TidyUpScheduler maintains the single recurring tidy-up reminder. Apply
// is declarative: each call replaces whatever schedule the previous call
// left behind.
type TidyUpScheduler struct {
	sched  notify.Scheduler
	logger *slog.Logger
}

func NewTidyUpScheduler(sched notify.Scheduler, logger *slog.Logger) *TidyUpScheduler {
	return &TidyUpScheduler{sched: sched, logger: logger}
}

// Apply reconciles the recurring schedule with the given settings. A fire
// time inside the do-not-disturb window is still scheduled, but the
// returned warning tells the caller to surface it. Disabled settings
// cancel without scheduling.
func (t *TidyUpScheduler) Apply(ctx context.Context, settings model.TidyingSettings) (warning string, err error) {
	err = t.sched.CancelWhere(ctx, func(d notify.Data) bool {
		return d.Type == notify.TypeTidyUp
	})
	if err != nil {
		return "", fmt.Errorf("cancel tidy up reminders: %w", err)
	}
	if !settings.Enabled {
		return "", nil
	}

	hour, minute, ok := ParseClock(settings.Time)
	if !ok {
		t.logger.Warn("unparseable tidy up time, using default", "time", settings.Time)
		hour, minute, _ = ParseClock(model.DefaultTidyTime)
	}

	p := notify.Payload{
		Title:    tidyUpTitle,
		Body:     "Tidy-up time! Let's put the toys back in their box.",
		Data:     notify.Data{Type: notify.TypeTidyUp},
		Channels: notify.AllChannels(),
	}
	if err := t.sched.ScheduleRecurring(ctx, hour, minute, RepeatMask(settings.Repeat), p); err != nil {
		return "", fmt.Errorf("schedule tidy up reminder: %w", err)
	}

	if WithinDND(fmt.Sprintf("%02d:%02d", hour, minute), settings.DNDStart, settings.DNDEnd) {
		warning = fmt.Sprintf("Reminder time %02d:%02d falls inside the do-not-disturb window (%s to %s).", hour, minute, settings.DNDStart, settings.DNDEnd)
	}
	return warning, nil
}

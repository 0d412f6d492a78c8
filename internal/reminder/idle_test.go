package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/pinmehq/toybox/internal/model"
	"github.com/pinmehq/toybox/internal/notify"
)

func setupIdle(t *testing.T) (*IdleEngine, *testEnv) {
	t.Helper()
	env := setupEnv(t)
	engine := NewIdleEngine(env.toys, env.sessions, env.history, env.svc, slog.Default())
	return engine, env
}

func (env *testEnv) createToy(t *testing.T, name string) *model.Toy {
	t.Helper()
	toy, err := env.toys.Create(name, nil, "", "toy box")
	if err != nil {
		t.Fatalf("create toy: %v", err)
	}
	return toy
}

func (env *testEnv) historySources(t *testing.T) []string {
	t.Helper()
	items, err := env.history.List(50)
	if err != nil {
		t.Fatalf("list history: %v", err)
	}
	sources := make([]string, len(items))
	for i, item := range items {
		sources[i] = item.Source
	}
	return sources
}

func TestIdleScanDisabledDoesNothing(t *testing.T) {
	engine, env := setupIdle(t)
	env.createToy(t, "Rex")
	engine.now = daysFromNow(100)

	engine.RunScan(context.Background(), model.IdleToySettings{Enabled: false, Days: 14})

	if got := env.historySources(t); len(got) != 0 {
		t.Errorf("history = %v, want empty", got)
	}
}

// daysFromNow returns a clock frozen the given number of days in the future.
func daysFromNow(days int) func() time.Time {
	at := time.Now().Add(time.Duration(days) * 24 * time.Hour)
	return func() time.Time { return at }
}

func TestNeverPlayedEscalation(t *testing.T) {
	engine, env := setupIdle(t)
	toy := env.createToy(t, "Rex")
	settings := model.IdleToySettings{Enabled: true, Days: 14}

	// Below the never threshold nothing fires.
	engine.now = daysFromNow(10)
	engine.RunScan(context.Background(), settings)
	if got := env.historySources(t); len(got) != 0 {
		t.Fatalf("history at day 10 = %v, want empty", got)
	}

	// The one-time never notification at max(days, 7).
	engine.now = daysFromNow(15)
	engine.RunScan(context.Background(), settings)
	want := fmt.Sprintf("idleToy:%s:never", toy.ID)
	if got := env.historySources(t); len(got) != 1 || got[0] != want {
		t.Fatalf("history after never scan = %v, want [%s]", got, want)
	}

	// With never recorded the toy escalates through the regular
	// thresholds off its creation time.
	engine.RunScan(context.Background(), settings)
	want14 := fmt.Sprintf("idleToy:%s:14", toy.ID)
	if got := env.historySources(t); len(got) != 2 || got[0] != want14 {
		t.Fatalf("history after second scan = %v, want newest %s", got, want14)
	}

	// Same threshold does not re-fire.
	engine.RunScan(context.Background(), settings)
	if got := env.historySources(t); len(got) != 2 {
		t.Fatalf("history after repeat scan = %v, want 2 entries", got)
	}

	// A month later the monthly stage takes over.
	engine.now = daysFromNow(31)
	engine.RunScan(context.Background(), settings)
	wantMonth := fmt.Sprintf("idleToy:%s:month:1", toy.ID)
	if got := env.historySources(t); len(got) != 3 || got[0] != wantMonth {
		t.Fatalf("history at day 31 = %v, want newest %s", got, wantMonth)
	}
}

func TestNeverThreshold(t *testing.T) {
	tests := []struct {
		days int
		want int
	}{
		{14, 14},
		{30, 30},
		{7, 7},
		{3, 7},
		{0, 7},
		{-1, 7},
	}
	for _, tt := range tests {
		if got := neverThreshold(tt.days); got != tt.want {
			t.Errorf("neverThreshold(%d) = %d, want %d", tt.days, got, tt.want)
		}
	}
}

func TestHighestThresholdWins(t *testing.T) {
	engine, env := setupIdle(t)
	toy := env.createToy(t, "Rex")
	if err := env.sessions.RecordScan(toy.ID, time.Now()); err != nil {
		t.Fatalf("record scan: %v", err)
	}
	engine.now = daysFromNow(95)

	engine.RunScan(context.Background(), model.IdleToySettings{Enabled: true, Days: 14})

	// 95 idle days crosses month:3 (90), month:2, month:1, 14 and 7;
	// only the highest threshold fires.
	want := fmt.Sprintf("idleToy:%s:month:3", toy.ID)
	if got := env.historySources(t); len(got) != 1 || got[0] != want {
		t.Fatalf("history = %v, want [%s]", got, want)
	}

	// The recorded stage satisfies everything below it.
	engine.RunScan(context.Background(), model.IdleToySettings{Enabled: true, Days: 14})
	if got := env.historySources(t); len(got) != 1 {
		t.Errorf("history after re-scan = %v, want 1 entry", got)
	}

	// The next monthly boundary fires again.
	engine.now = daysFromNow(125)
	engine.RunScan(context.Background(), model.IdleToySettings{Enabled: true, Days: 14})
	wantNext := fmt.Sprintf("idleToy:%s:month:4", toy.ID)
	if got := env.historySources(t); len(got) != 2 || got[0] != wantNext {
		t.Errorf("history at day 125 = %v, want newest %s", got, wantNext)
	}
}

func TestMonthlyStageWinsTie(t *testing.T) {
	// configured days == 30 lands exactly on month:1; the monthly label
	// wins the tie so later passes do not double-fire.
	cands := idleCandidates(35, 30)
	if len(cands) == 0 || cands[0].label != "month:1" {
		t.Fatalf("idleCandidates(35, 30) = %+v, want month:1 first", cands)
	}
}

func TestSmartSuggestAppendsHint(t *testing.T) {
	engine, env := setupIdle(t)
	toy := env.createToy(t, "Rex")
	if err := env.sessions.RecordScan(toy.ID, time.Now()); err != nil {
		t.Fatalf("record scan: %v", err)
	}
	engine.now = daysFromNow(20)

	engine.RunScan(context.Background(), model.IdleToySettings{Enabled: true, Days: 14, SmartSuggest: true})

	items, err := env.history.List(1)
	if err != nil || len(items) != 1 {
		t.Fatalf("list history: %v (%d items)", err, len(items))
	}
	if !strings.Contains(items[0].Body, "play mat") {
		t.Errorf("body = %q, want smart suggestion appended", items[0].Body)
	}
	if !strings.Contains(items[0].Body, toy.Name) {
		t.Errorf("body = %q, want toy name", items[0].Body)
	}
}

func TestScanFiresPerToy(t *testing.T) {
	engine, env := setupIdle(t)
	a := env.createToy(t, "Rex")
	b := env.createToy(t, "Teddy")
	engine.now = daysFromNow(20)

	engine.RunScan(context.Background(), model.IdleToySettings{Enabled: true, Days: 14})

	got := env.historySources(t)
	if len(got) != 2 {
		t.Fatalf("history = %v, want one entry per toy", got)
	}
	seen := map[string]bool{got[0]: true, got[1]: true}
	for _, toy := range []*model.Toy{a, b} {
		if !seen[fmt.Sprintf("idleToy:%s:never", toy.ID)] {
			t.Errorf("missing never notification for %s in %v", toy.Name, got)
		}
	}
}

func TestScheduleForToyReplacesPending(t *testing.T) {
	engine, env := setupIdle(t)
	toy := env.createToy(t, "Rex")
	settings := model.IdleToySettings{Enabled: true, Days: 14}

	if err := engine.ScheduleForToy(context.Background(), *toy, settings); err != nil {
		t.Fatalf("ScheduleForToy() error = %v", err)
	}
	if err := engine.ScheduleForToy(context.Background(), *toy, settings); err != nil {
		t.Fatalf("ScheduleForToy() again error = %v", err)
	}

	pending, err := env.svc.Pending()
	if err != nil {
		t.Fatalf("Pending() error = %v", err)
	}
	stages := map[string]bool{}
	for _, n := range pending {
		if n.Type != notify.TypeIdleToy || n.ToyID != toy.ID {
			t.Errorf("unexpected pending entry %+v", n)
		}
		stages[n.Stage] = true
	}
	if len(pending) != 3 || !stages["14"] || !stages["7"] || !stages["month:1"] {
		t.Errorf("pending stages = %v, want {14 7 month:1} exactly once each", stages)
	}
}

func TestScheduleForToyDisabled(t *testing.T) {
	engine, env := setupIdle(t)
	toy := env.createToy(t, "Rex")

	if err := engine.ScheduleForToy(context.Background(), *toy, model.IdleToySettings{Enabled: false, Days: 14}); err != nil {
		t.Fatalf("ScheduleForToy() error = %v", err)
	}
	if pending, _ := env.svc.Pending(); len(pending) != 0 {
		t.Errorf("pending = %v, want none for disabled settings", pending)
	}
}

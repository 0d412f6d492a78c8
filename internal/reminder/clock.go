package reminder

import (
	"strconv"
	"strings"

	"github.com/pinmehq/toybox/internal/model"
)

// ParseClock parses an "HH:MM" string. Out-of-range components are clamped
// into [0,23] and [0,59]; non-numeric input reports ok=false.
func ParseClock(s string) (hour, minute int, ok bool) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, false
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, false
	}
	return clamp(h, 0, 23), clamp(m, 0, 59), true
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// WithinDND reports whether the time-of-day t falls inside the [start, end)
// do-not-disturb window. A window whose start is later than its end wraps
// past midnight. Invalid or missing bounds disable the check.
func WithinDND(t, start, end string) bool {
	tm, ok := minutesOfDay(t)
	if !ok {
		return false
	}
	sm, ok := minutesOfDay(start)
	if !ok {
		return false
	}
	em, ok := minutesOfDay(end)
	if !ok {
		return false
	}
	if sm == em {
		return false
	}
	if sm < em {
		return tm >= sm && tm < em
	}
	// Overnight window: [start, 24:00) ∪ [00:00, end)
	return tm >= sm || tm < em
}

func minutesOfDay(s string) (int, bool) {
	h, m, ok := ParseClock(s)
	if !ok {
		return 0, false
	}
	return h*60 + m, true
}

// RepeatMask converts a repeat pattern into a 7-character '0'/'1' day mask
// with index 0 = Sunday. Unknown patterns fall back to daily.
func RepeatMask(repeat string) string {
	switch repeat {
	case model.RepeatDaily:
		return "1111111"
	case model.RepeatWeekdays:
		return "0111110"
	case model.RepeatWeekends:
		return "1000001"
	}
	if len(repeat) == 7 && strings.Trim(repeat, "01") == "" {
		return repeat
	}
	return "1111111"
}

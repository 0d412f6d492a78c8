package reminder

import "testing"

func TestParseClock(t *testing.T) {
	tests := []struct {
		in     string
		hour   int
		minute int
		ok     bool
	}{
		{"20:00", 20, 0, true},
		{"07:30", 7, 30, true},
		{"0:5", 0, 5, true},
		{" 09:15 ", 9, 15, true},
		{"25:00", 23, 0, true},
		{"12:99", 12, 59, true},
		{"-1:30", 0, 30, true},
		{"noon", 0, 0, false},
		{"12", 0, 0, false},
		{"ab:cd", 0, 0, false},
		{"", 0, 0, false},
	}
	for _, tt := range tests {
		h, m, ok := ParseClock(tt.in)
		if h != tt.hour || m != tt.minute || ok != tt.ok {
			t.Errorf("ParseClock(%q) = (%d, %d, %v), want (%d, %d, %v)", tt.in, h, m, ok, tt.hour, tt.minute, tt.ok)
		}
	}
}

func TestWithinDND(t *testing.T) {
	tests := []struct {
		name  string
		t     string
		start string
		end   string
		want  bool
	}{
		{"late evening inside overnight window", "23:30", "22:00", "07:00", true},
		{"midday outside overnight window", "12:00", "22:00", "07:00", false},
		{"early morning inside overnight window", "06:59", "22:00", "07:00", true},
		{"window end is exclusive", "07:00", "22:00", "07:00", false},
		{"window start is inclusive", "22:00", "22:00", "07:00", true},
		{"same-day window", "13:00", "12:00", "14:00", true},
		{"before same-day window", "11:59", "12:00", "14:00", false},
		{"zero-width window never matches", "22:00", "22:00", "22:00", false},
		{"unparseable bound disables check", "23:00", "bedtime", "07:00", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := WithinDND(tt.t, tt.start, tt.end); got != tt.want {
				t.Errorf("WithinDND(%q, %q, %q) = %v, want %v", tt.t, tt.start, tt.end, got, tt.want)
			}
		})
	}
}

func TestRepeatMask(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"daily", "1111111"},
		{"weekdays", "0111110"},
		{"weekends", "1000001"},
		{"0010100", "0010100"},
		{"sometimes", "1111111"},
		{"0010", "1111111"},
		{"", "1111111"},
	}
	for _, tt := range tests {
		if got := RepeatMask(tt.in); got != tt.want {
			t.Errorf("RepeatMask(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

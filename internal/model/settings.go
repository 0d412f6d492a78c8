package model

// Defaults applied when a settings bundle is missing or malformed.
const (
	DefaultLongPlayMinutes = 45
	DefaultIdleDays        = 14
	DefaultTidyTime        = "20:00"
	DefaultTidyRepeat      = RepeatDaily
	DefaultDNDStart        = "22:00"
	DefaultDNDEnd          = "07:00"
)

// Repeat patterns for the tidy-up reminder. Anything else is treated as a
// 7-character day bitmask of '0'/'1' with index 0 = Sunday.
const (
	RepeatDaily    = "daily"
	RepeatWeekdays = "weekdays"
	RepeatWeekends = "weekends"
)

// NotifyMethods selects delivery channels for long-play reminders.
type NotifyMethods struct {
	Push  bool `json:"push"`
	InApp bool `json:"inApp"`
}

type LongPlaySettings struct {
	Enabled     bool          `json:"enabled"`
	DurationMin int           `json:"durationMin"`
	Methods     NotifyMethods `json:"methods"`
}

type IdleToySettings struct {
	Enabled      bool `json:"enabled"`
	Days         int  `json:"days"`
	SmartSuggest bool `json:"smartSuggest"`
}

type TidyingSettings struct {
	Enabled  bool   `json:"enabled"`
	Time     string `json:"time"`
	Repeat   string `json:"repeat"`
	DNDStart string `json:"dndStart"`
	DNDEnd   string `json:"dndEnd"`
}

// DefaultLongPlaySettings returns the hard-coded long-play defaults.
func DefaultLongPlaySettings() LongPlaySettings {
	return LongPlaySettings{
		Enabled:     false,
		DurationMin: DefaultLongPlayMinutes,
		Methods:     NotifyMethods{Push: true, InApp: true},
	}
}

// DefaultIdleToySettings returns the hard-coded idle-toy defaults.
func DefaultIdleToySettings() IdleToySettings {
	return IdleToySettings{
		Enabled:      false,
		Days:         DefaultIdleDays,
		SmartSuggest: false,
	}
}

// DefaultTidyingSettings returns the hard-coded tidy-up defaults.
func DefaultTidyingSettings() TidyingSettings {
	return TidyingSettings{
		Enabled:  false,
		Time:     DefaultTidyTime,
		Repeat:   DefaultTidyRepeat,
		DNDStart: DefaultDNDStart,
		DNDEnd:   DefaultDNDEnd,
	}
}

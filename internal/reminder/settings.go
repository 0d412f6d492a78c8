package reminder

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"github.com/pinmehq/toybox/internal/auth"
	"github.com/pinmehq/toybox/internal/localcache"
	"github.com/pinmehq/toybox/internal/model"
	"github.com/pinmehq/toybox/internal/store"
)

// ErrNotLoggedIn is returned by the save operations when no user identity is
// attached to the request. The local cache is still written; only the remote
// upsert is skipped.
var ErrNotLoggedIn = errors.New("not_logged_in")

// Local cache slots, one per settings bundle.
const (
	keyLongPlay = "reminder_longplay_settings"
	keyIdleToy  = "reminder_idletoy_settings"
	keyTidying  = "smart_tidying_settings"
)

// SettingsStore resolves the three reminder settings bundles with
// local-cache + remote-override precedence. Loads never fail: every path
// degrades to the cached value or hard-coded defaults, and all I/O errors
// are logged rather than propagated.
type SettingsStore struct {
	cache  *localcache.Cache
	remote *store.ReminderSettingsStore
	logger *slog.Logger
}

func NewSettingsStore(cache *localcache.Cache, remote *store.ReminderSettingsStore, logger *slog.Logger) *SettingsStore {
	return &SettingsStore{cache: cache, remote: remote, logger: logger}
}

// LoadLongPlay returns the long-play bundle. Remote wins when the caller is
// authenticated and the row decodes; the winning value is written back into
// the local cache.
func (s *SettingsStore) LoadLongPlay(ctx context.Context) model.LongPlaySettings {
	out := model.DefaultLongPlaySettings()
	if raw, ok := s.cacheGet(keyLongPlay); ok {
		out = normalizeLongPlay(raw)
	}

	row := s.remoteRow(ctx)
	if row == nil {
		return out
	}
	if remote, ok := decodeLongPlayRow(row); ok {
		out = remote
		s.cachePut(keyLongPlay, out)
	}
	return out
}

// LoadIdleToy returns the idle-toy bundle with the same precedence rules.
func (s *SettingsStore) LoadIdleToy(ctx context.Context) model.IdleToySettings {
	out := model.DefaultIdleToySettings()
	if raw, ok := s.cacheGet(keyIdleToy); ok {
		out = normalizeIdleToy(raw)
	}

	row := s.remoteRow(ctx)
	if row == nil {
		return out
	}
	if remote, ok := decodeIdleToyRow(row); ok {
		out = remote
		s.cachePut(keyIdleToy, out)
	}
	return out
}

// LoadTidying returns the tidy-up bundle with the same precedence rules.
func (s *SettingsStore) LoadTidying(ctx context.Context) model.TidyingSettings {
	out := model.DefaultTidyingSettings()
	if raw, ok := s.cacheGet(keyTidying); ok {
		out = normalizeTidying(raw)
	}

	row := s.remoteRow(ctx)
	if row == nil {
		return out
	}
	if remote, ok := decodeTidyingRow(row); ok {
		out = remote
		s.cachePut(keyTidying, out)
	}
	return out
}

// SaveLongPlay writes the bundle locally, then upserts the remote row when
// authenticated. The local write is best-effort and never rolled back.
func (s *SettingsStore) SaveLongPlay(ctx context.Context, v model.LongPlaySettings) (remoteSaved bool, err error) {
	if v.DurationMin <= 0 {
		v.DurationMin = model.DefaultLongPlayMinutes
	}
	s.cachePut(keyLongPlay, v)

	uid := auth.UserID(ctx)
	if uid == "" {
		return false, ErrNotLoggedIn
	}
	methodsJSON, _ := json.Marshal(v.Methods)
	if err := s.remote.UpsertLongPlay(uid, v.Enabled, v.DurationMin, string(methodsJSON), v.Methods.Push, v.Methods.InApp); err != nil {
		return false, err
	}
	return true, nil
}

// SaveIdleToy writes the bundle locally, then remotely when authenticated.
func (s *SettingsStore) SaveIdleToy(ctx context.Context, v model.IdleToySettings) (remoteSaved bool, err error) {
	if v.Days <= 0 {
		v.Days = model.DefaultIdleDays
	}
	s.cachePut(keyIdleToy, v)

	uid := auth.UserID(ctx)
	if uid == "" {
		return false, ErrNotLoggedIn
	}
	if err := s.remote.UpsertIdleToy(uid, v.Enabled, v.Days, v.SmartSuggest); err != nil {
		return false, err
	}
	return true, nil
}

// SaveTidying writes the bundle locally, then remotely when authenticated.
func (s *SettingsStore) SaveTidying(ctx context.Context, v model.TidyingSettings) (remoteSaved bool, err error) {
	v = normalizeTidyingValue(v)
	s.cachePut(keyTidying, v)

	uid := auth.UserID(ctx)
	if uid == "" {
		return false, ErrNotLoggedIn
	}
	if err := s.remote.UpsertTidying(uid, v.Enabled, v.Time, v.Repeat, v.DNDStart, v.DNDEnd); err != nil {
		return false, err
	}
	return true, nil
}

// SyncLocalFromRemote pulls the combined remote row and overwrites every
// local cache slot for which the row carries a bundle. No-op when
// unauthenticated or when no remote row exists.
func (s *SettingsStore) SyncLocalFromRemote(ctx context.Context) {
	row := s.remoteRow(ctx)
	if row == nil {
		return
	}
	if v, ok := decodeLongPlayRow(row); ok {
		s.cachePut(keyLongPlay, v)
	}
	if v, ok := decodeIdleToyRow(row); ok {
		s.cachePut(keyIdleToy, v)
	}
	if v, ok := decodeTidyingRow(row); ok {
		s.cachePut(keyTidying, v)
	}
}

func (s *SettingsStore) remoteRow(ctx context.Context) *store.ReminderSettingsRow {
	uid := auth.UserID(ctx)
	if uid == "" {
		return nil
	}
	row, err := s.remote.Get(uid)
	if err != nil {
		s.logger.Warn("fetch remote settings", "user_id", uid, "error", err)
		return nil
	}
	return row
}

func (s *SettingsStore) cacheGet(key string) ([]byte, bool) {
	raw, ok, err := s.cache.Get(key)
	if err != nil {
		s.logger.Warn("read settings cache", "key", key, "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	return []byte(raw), true
}

func (s *SettingsStore) cachePut(key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		s.logger.Warn("encode settings", "key", key, "error", err)
		return
	}
	if err := s.cache.Set(key, string(raw)); err != nil {
		s.logger.Warn("write settings cache", "key", key, "error", err)
	}
}

// --- shape normalization (local cache values) ---

// flexInt tolerates historical caches that stored numbers as strings.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	n, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	*f = flexInt(n)
	return nil
}

func normalizeLongPlay(raw []byte) model.LongPlaySettings {
	out := model.DefaultLongPlaySettings()
	var w struct {
		Enabled     *bool                `json:"enabled"`
		DurationMin *flexInt             `json:"durationMin"`
		Methods     *model.NotifyMethods `json:"methods"`
	}
	if err := json.Unmarshal(raw, &w); err != nil {
		return out
	}
	if w.Enabled != nil {
		out.Enabled = *w.Enabled
	}
	if w.DurationMin != nil && int(*w.DurationMin) > 0 {
		out.DurationMin = int(*w.DurationMin)
	}
	if w.Methods != nil {
		out.Methods = *w.Methods
	}
	return out
}

func normalizeIdleToy(raw []byte) model.IdleToySettings {
	out := model.DefaultIdleToySettings()
	var w struct {
		Enabled      *bool    `json:"enabled"`
		Days         *flexInt `json:"days"`
		SmartSuggest *bool    `json:"smartSuggest"`
	}
	if err := json.Unmarshal(raw, &w); err != nil {
		return out
	}
	if w.Enabled != nil {
		out.Enabled = *w.Enabled
	}
	if w.Days != nil && int(*w.Days) > 0 {
		out.Days = int(*w.Days)
	}
	if w.SmartSuggest != nil {
		out.SmartSuggest = *w.SmartSuggest
	}
	return out
}

func normalizeTidying(raw []byte) model.TidyingSettings {
	out := model.DefaultTidyingSettings()
	var w struct {
		Enabled  *bool   `json:"enabled"`
		Time     *string `json:"time"`
		Repeat   *string `json:"repeat"`
		DNDStart *string `json:"dndStart"`
		DNDEnd   *string `json:"dndEnd"`
	}
	if err := json.Unmarshal(raw, &w); err != nil {
		return out
	}
	if w.Enabled != nil {
		out.Enabled = *w.Enabled
	}
	if w.Time != nil {
		out.Time = *w.Time
	}
	if w.Repeat != nil {
		out.Repeat = *w.Repeat
	}
	if w.DNDStart != nil {
		out.DNDStart = *w.DNDStart
	}
	if w.DNDEnd != nil {
		out.DNDEnd = *w.DNDEnd
	}
	return normalizeTidyingValue(out)
}

func normalizeTidyingValue(v model.TidyingSettings) model.TidyingSettings {
	if _, _, ok := ParseClock(v.Time); !ok {
		v.Time = model.DefaultTidyTime
	}
	if v.Repeat == "" {
		v.Repeat = model.DefaultTidyRepeat
	}
	return v
}

// --- remote row decoding ---

// decodeLongPlayRow decodes the long-play bundle from a remote row. ok is
// false when the row carries no long-play fields at all.
func decodeLongPlayRow(row *store.ReminderSettingsRow) (model.LongPlaySettings, bool) {
	present := row.LongPlayEnabled.Valid || row.LongPlayDurationMin.Valid ||
		row.LongPlayMethods.Valid || row.LongPlayPush.Valid || row.LongPlayInApp.Valid
	if !present {
		return model.LongPlaySettings{}, false
	}

	out := model.DefaultLongPlaySettings()
	if row.LongPlayEnabled.Valid {
		out.Enabled = row.LongPlayEnabled.Bool
	}
	if row.LongPlayDurationMin.Valid && row.LongPlayDurationMin.Int64 > 0 {
		out.DurationMin = int(row.LongPlayDurationMin.Int64)
	}
	out.Methods = decodeMethods(row)
	return out, true
}

// decodeMethods is the versioned decoder for the two historical remote
// schemes: the nested longplay_methods JSON object is tried first, and the
// flat longplay_push/longplay_inapp columns serve as the fallback when the
// nested form is absent.
func decodeMethods(row *store.ReminderSettingsRow) model.NotifyMethods {
	if row.LongPlayMethods.Valid && row.LongPlayMethods.String != "" {
		var m model.NotifyMethods
		if err := json.Unmarshal([]byte(row.LongPlayMethods.String), &m); err == nil {
			return m
		}
	}
	if row.LongPlayPush.Valid || row.LongPlayInApp.Valid {
		m := model.NotifyMethods{}
		if row.LongPlayPush.Valid {
			m.Push = row.LongPlayPush.Bool
		}
		if row.LongPlayInApp.Valid {
			m.InApp = row.LongPlayInApp.Bool
		}
		return m
	}
	return model.NotifyMethods{Push: true, InApp: true}
}

func decodeIdleToyRow(row *store.ReminderSettingsRow) (model.IdleToySettings, bool) {
	present := row.IdleEnabled.Valid || row.IdleDays.Valid || row.IdleSmartSuggest.Valid
	if !present {
		return model.IdleToySettings{}, false
	}

	out := model.DefaultIdleToySettings()
	if row.IdleEnabled.Valid {
		out.Enabled = row.IdleEnabled.Bool
	}
	if row.IdleDays.Valid && row.IdleDays.Int64 > 0 {
		out.Days = int(row.IdleDays.Int64)
	}
	if row.IdleSmartSuggest.Valid {
		out.SmartSuggest = row.IdleSmartSuggest.Bool
	}
	return out, true
}

func decodeTidyingRow(row *store.ReminderSettingsRow) (model.TidyingSettings, bool) {
	present := row.TidyEnabled.Valid || row.TidyTime.Valid || row.TidyRepeat.Valid ||
		row.TidyDNDStart.Valid || row.TidyDNDEnd.Valid
	if !present {
		return model.TidyingSettings{}, false
	}

	out := model.DefaultTidyingSettings()
	if row.TidyEnabled.Valid {
		out.Enabled = row.TidyEnabled.Bool
	}
	if row.TidyTime.Valid && row.TidyTime.String != "" {
		out.Time = row.TidyTime.String
	}
	if row.TidyRepeat.Valid && row.TidyRepeat.String != "" {
		out.Repeat = row.TidyRepeat.String
	}
	if row.TidyDNDStart.Valid {
		out.DNDStart = row.TidyDNDStart.String
	}
	if row.TidyDNDEnd.Valid {
		out.DNDEnd = row.TidyDNDEnd.String
	}
	return normalizeTidyingValue(out), true
}

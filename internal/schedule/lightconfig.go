package schedule

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// Mode selects how the controller interprets the schedule.
type Mode string

const (
	ModeDayNight  Mode = "dayNight"
	ModeScheduled Mode = "scheduled"
	ModeDemo      Mode = "demo"
)

// parseMode maps a stored mode string to a recognized Mode, falling back to
// the default. "schedule" is a legacy spelling of "scheduled" found in older
// persisted blobs.
func parseMode(s string) Mode {
	switch s {
	case string(ModeDayNight):
		return ModeDayNight
	case string(ModeScheduled), "schedule":
		return ModeScheduled
	case string(ModeDemo):
		return ModeDemo
	default:
		return ModeDayNight
	}
}

// Entry is one element of the unified brightnessSchedule array: an Item plus
// the canonical label of the slot it belongs to.
type Entry struct {
	Time           string `json:"time"`
	UnixTime       int64  `json:"unixTime"`
	WarmBrightness int    `json:"warmBrightness"`
	CoolBrightness int    `json:"coolBrightness"`
	Label          string `json:"label"`
}

// Response is the sole wire shape served to clients.
type Response struct {
	Mode               Mode    `json:"mode"`
	ServerTime         int64   `json:"serverTime"`
	BrightnessSchedule []Entry `json:"brightnessSchedule"`
}

// storedConfig is the persisted blob shape. Older blobs carried the named
// events as discrete top-level fields instead of the unified array; both are
// read, only the unified shape is ever written.
type storedConfig struct {
	Mode                 string  `json:"mode"`
	BrightnessSchedule   []Entry `json:"brightnessSchedule,omitempty"`
	Schedule             []Item  `json:"schedule,omitempty"`
	CachedTimezoneOffset *int    `json:"cachedTimezoneOffset,omitempty"`

	// Legacy flat shape.
	Sunrise            *Item `json:"sunrise,omitempty"`
	Sunset             *Item `json:"sunset,omitempty"`
	CivilTwilightBegin *Item `json:"civil_twilight_begin,omitempty"`
	CivilTwilightEnd   *Item `json:"civil_twilight_end,omitempty"`
	BedTime            *Item `json:"bed_time,omitempty"`
	NightTime          *Item `json:"night_time,omitempty"`
}

// Config is the schedule aggregate: a mode, an optional free-form item list
// and the six named slots. Each request builds a fresh Config from the
// persisted blob and discards it after responding.
type Config struct {
	Mode     Mode
	Schedule []Item

	slots map[Label]*Item
}

// NewConfig returns an empty aggregate with the default mode and no events.
func NewConfig() *Config {
	return &Config{
		Mode:  ModeDayNight,
		slots: make(map[Label]*Item),
	}
}

// FromStored parses a persisted blob into an aggregate plus the cached
// timezone offset stored alongside it. A missing or corrupt blob yields an
// empty aggregate: reads degrade, they do not fail.
func FromStored(data []byte) (*Config, *int) {
	cfg := NewConfig()
	if len(data) == 0 {
		return cfg, nil
	}

	var stored storedConfig
	if err := json.Unmarshal(data, &stored); err != nil {
		log.Warn().Err(err).Msg("Stored schedule config is corrupt, starting empty")
		return cfg, nil
	}

	cfg.Mode = parseMode(stored.Mode)
	cfg.Schedule = stored.Schedule

	if stored.BrightnessSchedule != nil {
		for _, entry := range stored.BrightnessSchedule {
			if !KnownLabel(entry.Label) {
				log.Debug().Str("label", entry.Label).Msg("Dropping schedule entry with unrecognized label")
				continue
			}
			cfg.slots[Label(entry.Label)] = &Item{
				Time:           entry.Time,
				UnixTime:       entry.UnixTime,
				WarmBrightness: entry.WarmBrightness,
				CoolBrightness: entry.CoolBrightness,
			}
		}
		return cfg, stored.CachedTimezoneOffset
	}

	// Legacy flat shape.
	for label, item := range map[Label]*Item{
		LabelSunrise:            stored.Sunrise,
		LabelSunset:             stored.Sunset,
		LabelCivilTwilightBegin: stored.CivilTwilightBegin,
		LabelCivilTwilightEnd:   stored.CivilTwilightEnd,
		LabelBedTime:            stored.BedTime,
		LabelNightTime:          stored.NightTime,
	} {
		if item != nil {
			cfg.slots[label] = item
		}
	}
	return cfg, stored.CachedTimezoneOffset
}

// Slot returns the named event, or nil when it was never computed.
func (c *Config) Slot(label Label) *Item {
	return c.slots[label]
}

// SetSlot replaces a named event wholesale.
func (c *Config) SetSlot(label Label, item *Item) {
	c.slots[label] = item
}

// UpdateDaylightTimes folds freshly computed daylight clocks into the four
// daylight slots. The sunset floor is enforced first; twilight end is
// rederived from the adjusted sunset only when the floor actually applied,
// otherwise the upstream-reported value stands.
func (c *Config) UpdateDaylightTimes(sunrise, sunset, twilightBegin, twilightEnd string, offsetSeconds int, now time.Time) error {
	adjustedSunset, floored := EnforceMinimumSunset(sunset, MinSunsetTime)
	endClock := twilightEnd
	endAnchor := AnchorToday
	if floored {
		endClock = DeriveTwilightEnd(adjustedSunset, TwilightEndOffsetMinutes)
		if minutesOfDay(endClock) < minutesOfDay(adjustedSunset) {
			// Derivation wrapped past midnight.
			endAnchor = AnchorTomorrow
		}
		log.Debug().
			Str("sunset", sunset).
			Str("adjusted_sunset", adjustedSunset).
			Str("twilight_end", endClock).
			Msg("Sunset floor applied")
	}

	updates := []struct {
		label  Label
		clock  string
		anchor DayAnchor
	}{
		{LabelCivilTwilightBegin, twilightBegin, AnchorToday},
		{LabelSunrise, sunrise, AnchorToday},
		{LabelSunset, adjustedSunset, AnchorToday},
		{LabelCivilTwilightEnd, endClock, endAnchor},
	}
	for _, u := range updates {
		defaults := defaultBrightness[u.label]
		item, err := mergeItemAt(c.slots[u.label], u.clock, offsetSeconds, u.anchor, defaults.warm, defaults.cool, now)
		if err != nil {
			return err
		}
		c.slots[u.label] = item
	}
	return nil
}

// UpdateSleepTimes ensures the bed and night slots exist and have current
// instants. The clock of an existing sleep event is user-owned and is never
// recomputed; only its instant is refreshed.
func (c *Config) UpdateSleepTimes(offsetSeconds int, now time.Time) error {
	if err := c.refreshSleepSlot(LabelBedTime, defaultBedTime, offsetSeconds, now); err != nil {
		return err
	}
	return c.refreshSleepSlot(LabelNightTime, defaultNightTime, offsetSeconds, now)
}

func (c *Config) refreshSleepSlot(label Label, defaultClock string, offsetSeconds int, now time.Time) error {
	defaults := defaultBrightness[label]
	existing := c.slots[label]

	clock := defaultClock
	if existing != nil && ValidClock(existing.Time) {
		clock = existing.Time
	}

	item, err := mergeItemAt(existing, clock, offsetSeconds, AnchorToday, defaults.warm, defaults.cool, now)
	if err != nil {
		return err
	}
	c.slots[label] = item
	return nil
}

// UpdateScheduleTimes refreshes the instants of the free-form item list under
// the given offset. Items with malformed clocks are left untouched.
func (c *Config) UpdateScheduleTimes(offsetSeconds int, now time.Time) {
	for i := range c.Schedule {
		instant, err := ToInstant(c.Schedule[i].Time, offsetSeconds, AnchorToday, now)
		if err != nil {
			log.Warn().Str("time", c.Schedule[i].Time).Msg("Skipping schedule item with malformed clock")
			continue
		}
		c.Schedule[i].UnixTime = instant
	}
}

// BrightnessSchedule collects the populated named slots into a single list
// sorted ascending by instant. Absent slots are omitted, never synthesized.
func (c *Config) BrightnessSchedule() []Entry {
	entries := lo.FilterMap(knownLabels, func(label Label, _ int) (Entry, bool) {
		item := c.slots[label]
		if item == nil {
			return Entry{}, false
		}
		return Entry{
			Time:           item.Time,
			UnixTime:       item.UnixTime,
			WarmBrightness: item.WarmBrightness,
			CoolBrightness: item.CoolBrightness,
			Label:          string(label),
		}, true
	})

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].UnixTime < entries[j].UnixTime
	})
	return entries
}

// WireResponse builds the response payload served to clients.
func (c *Config) WireResponse(now time.Time) Response {
	return Response{
		Mode:               c.Mode,
		ServerTime:         now.Unix(),
		BrightnessSchedule: c.BrightnessSchedule(),
	}
}

// Stored serializes the aggregate into the persisted blob shape, carrying the
// cached timezone offset alongside when one is known.
func (c *Config) Stored(cachedOffset *int) ([]byte, error) {
	return json.Marshal(storedConfig{
		Mode:                 string(c.Mode),
		BrightnessSchedule:   c.BrightnessSchedule(),
		Schedule:             c.Schedule,
		CachedTimezoneOffset: cachedOffset,
	})
}

package schedule

import "time"

// Item is a single timed brightness step: a wall-clock time, the absolute
// instant it resolves to under the last applied UTC offset, and the warm/cool
// channel levels.
type Item struct {
	Time           string `json:"time"`
	UnixTime       int64  `json:"unixTime"`
	WarmBrightness int    `json:"warmBrightness"`
	CoolBrightness int    `json:"coolBrightness"`
}

// brightness is a (warm, cool) channel pair.
type brightness struct {
	warm int
	cool int
}

// Default channel levels applied the first time a named event is computed.
var defaultBrightness = map[Label]brightness{
	LabelCivilTwilightBegin: {warm: 25, cool: 0},
	LabelSunrise:            {warm: 75, cool: 100},
	LabelSunset:             {warm: 75, cool: 100},
	LabelCivilTwilightEnd:   {warm: 100, cool: 0},
	LabelBedTime:            {warm: 100, cool: 0},
	LabelNightTime:          {warm: 25, cool: 0},
}

// Fixed clocks for the sleep events when no prior value exists. The clocks
// are user-owned once set, only their instants are ever recomputed.
const (
	defaultBedTime   = "23:00"
	defaultNightTime = "23:30"
)

// MergeItem folds a newly computed clock time into an existing item. The
// item's time and instant are refreshed; its brightness is carried forward
// untouched. When no item existed, one is created with the given defaults.
//
// A user who has hand-tuned brightness for an event must never see that value
// reset just because the computed clock time shifted day to day.
func MergeItem(existing *Item, newTime string, offsetSeconds, defaultWarm, defaultCool int, now time.Time) (*Item, error) {
	return mergeItemAt(existing, newTime, offsetSeconds, AnchorToday, defaultWarm, defaultCool, now)
}

// mergeItemAt is MergeItem with an explicit day anchor, for events whose
// derived clock wrapped past midnight.
func mergeItemAt(existing *Item, newTime string, offsetSeconds int, anchor DayAnchor, defaultWarm, defaultCool int, now time.Time) (*Item, error) {
	instant, err := ToInstant(newTime, offsetSeconds, anchor, now)
	if err != nil {
		return nil, err
	}

	item := &Item{
		Time:           newTime,
		UnixTime:       instant,
		WarmBrightness: defaultWarm,
		CoolBrightness: defaultCool,
	}
	if existing != nil {
		item.WarmBrightness = existing.WarmBrightness
		item.CoolBrightness = existing.CoolBrightness
	}
	return item, nil
}

// Package schedule implements the daily lighting schedule: clock conversion,
// event merging, sunset policy and the persisted/wire representations.
package schedule

import (
	"fmt"
	"time"
)

// DayAnchor selects which local calendar day a wall-clock time lands on.
type DayAnchor int

const (
	// AnchorToday resolves the clock on the current local date.
	AnchorToday DayAnchor = iota
	// AnchorTomorrow resolves the clock on the next local date.
	AnchorTomorrow
)

// ParseClock parses a strict zero-padded 24-hour "HH:MM" string. All four
// clock positions must be ASCII digits; whitespace and trailing garbage are
// rejected.
func ParseClock(clock string) (hour, minute int, err error) {
	if len(clock) != 5 || clock[2] != ':' {
		return 0, 0, fmt.Errorf("invalid clock %q: want HH:MM", clock)
	}
	for _, i := range []int{0, 1, 3, 4} {
		if clock[i] < '0' || clock[i] > '9' {
			return 0, 0, fmt.Errorf("invalid clock %q: want HH:MM", clock)
		}
	}
	hour = int(clock[0]-'0')*10 + int(clock[1]-'0')
	minute = int(clock[3]-'0')*10 + int(clock[4]-'0')
	if hour > 23 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid clock %q: out of range", clock)
	}
	return hour, minute, nil
}

// ValidClock reports whether clock is a well-formed 24-hour "HH:MM" string.
func ValidClock(clock string) bool {
	_, _, err := ParseClock(clock)
	return err == nil
}

// ToInstant converts a local wall-clock time to an absolute Unix timestamp.
// The clock is interpreted in the fixed zone implied by offsetSeconds, on the
// calendar date currently observed in that zone (not the server's own zone).
func ToInstant(clock string, offsetSeconds int, anchor DayAnchor, now time.Time) (int64, error) {
	hour, minute, err := ParseClock(clock)
	if err != nil {
		return 0, err
	}

	zone := time.FixedZone("", offsetSeconds)
	local := now.In(zone)

	day := local.Day()
	if anchor == AnchorTomorrow {
		day++
	}

	// time.Date normalizes day overflow at month boundaries.
	return time.Date(local.Year(), local.Month(), day, hour, minute, 0, 0, zone).Unix(), nil
}

// ParseAPITime converts the 12-hour clock-with-seconds format used by the
// daylight upstream ("4:41:25 PM") into 24-hour "HH:MM", discarding seconds.
func ParseAPITime(apiTime string) (string, error) {
	t, err := time.Parse("3:04:05 PM", apiTime)
	if err != nil {
		return "", fmt.Errorf("invalid api time %q: %w", apiTime, err)
	}
	return t.Format("15:04"), nil
}

// minutesOfDay returns the clock as minutes since midnight. The clock must
// already be validated.
func minutesOfDay(clock string) int {
	hour, minute, _ := ParseClock(clock)
	return hour*60 + minute
}

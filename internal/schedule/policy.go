package schedule

import "fmt"

const (
	// MinSunsetTime is the earliest the evening warm-down may begin,
	// regardless of how early true solar sunset falls in winter.
	MinSunsetTime = "19:30"

	// TwilightEndOffsetMinutes is how long after an artificially delayed
	// sunset the twilight-end event is placed.
	TwilightEndOffsetMinutes = 30
)

// EnforceMinimumSunset floors a sunset clock at the given minimum. Both
// clocks are compared as minutes since midnight. The second return reports
// whether the floor was applied; applying the floor to its own output is a
// no-op.
func EnforceMinimumSunset(sunset, floor string) (string, bool) {
	if minutesOfDay(sunset) < minutesOfDay(floor) {
		return floor, true
	}
	return sunset, false
}

// DeriveTwilightEnd places twilight end offsetMinutes after the adjusted
// sunset, wrapping past midnight. Callers use this only when the sunset floor
// was actually applied; otherwise the upstream-reported twilight end stands.
func DeriveTwilightEnd(adjustedSunset string, offsetMinutes int) string {
	total := (minutesOfDay(adjustedSunset) + offsetMinutes) % (24 * 60)
	if total < 0 {
		total += 24 * 60
	}
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

package geo

import (
	"time"

	"github.com/nathan-osman/go-sunrise"
	"github.com/rs/zerolog/log"
)

// civilTwilightElevation is the solar elevation bounding civil twilight.
const civilTwilightElevation = -6.0

// apiClockFormat matches the 12-hour clock strings the daylight upstream
// emits, so locally computed times flow through the same parsing path.
const apiClockFormat = "3:04:05 PM"

// ComputeDaylightTimes calculates sunrise, sunset and civil twilight locally
// from coordinates, for the calendar day currently observed in the zone
// implied by offsetSeconds. Used when the daylight upstream is unreachable
// but a geolocation is in hand. Returns nil at extreme latitudes where the
// sun does not cross the horizon that day.
func ComputeDaylightTimes(lat, lon float64, offsetSeconds int, now time.Time) *DaylightTimes {
	zone := time.FixedZone("", offsetSeconds)
	local := now.In(zone)

	rise, set := sunrise.SunriseSunset(lat, lon, local.Year(), local.Month(), local.Day())
	dawn, dusk := sunrise.TimeOfElevation(lat, lon, civilTwilightElevation, local.Year(), local.Month(), local.Day())

	if rise.IsZero() || set.IsZero() || dawn.IsZero() || dusk.IsZero() {
		log.Warn().
			Float64("lat", lat).
			Float64("lon", lon).
			Msg("No local sunrise/sunset for this date, skipping astro fallback")
		return nil
	}

	times := &DaylightTimes{
		Sunrise:            rise.In(zone).Format(apiClockFormat),
		Sunset:             set.In(zone).Format(apiClockFormat),
		CivilTwilightBegin: dawn.In(zone).Format(apiClockFormat),
		CivilTwilightEnd:   dusk.In(zone).Format(apiClockFormat),
	}

	log.Info().
		Str("sunrise", times.Sunrise).
		Str("sunset", times.Sunset).
		Msg("Daylight times computed locally")

	return times
}

package schedule

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/samber/lo"
)

// validWriteModes are the modes accepted from clients.
var validWriteModes = []string{string(ModeDayNight), string(ModeScheduled), string(ModeDemo)}

// ValidationError describes the first structural violation found in a write
// payload. Writes fail closed: nothing is stored when one is returned.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func validationErrorf(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// WritePayload is the accepted write shape: the read response minus
// serverTime. Pointer fields distinguish "absent" from zero values.
type WritePayload struct {
	Mode               *string      `json:"mode"`
	BrightnessSchedule []WriteEntry `json:"brightnessSchedule"`
}

// WriteEntry is one caller-supplied schedule entry.
type WriteEntry struct {
	Time           *string `json:"time"`
	UnixTime       *int64  `json:"unixTime"`
	WarmBrightness *int    `json:"warmBrightness"`
	CoolBrightness *int    `json:"coolBrightness"`
	Label          *string `json:"label"`
}

// ParseWritePayload decodes and validates a caller-supplied schedule,
// returning a ValidationError naming the first offending field or index.
func ParseWritePayload(body []byte) (*WritePayload, error) {
	var payload WritePayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, validationErrorf("invalid JSON payload: %v", err)
	}

	if payload.Mode == nil {
		return nil, validationErrorf("missing required field: mode")
	}
	if !lo.Contains(validWriteModes, *payload.Mode) {
		return nil, validationErrorf("invalid mode: %s, must be one of: %s",
			*payload.Mode, strings.Join(validWriteModes, ", "))
	}

	if payload.BrightnessSchedule == nil {
		return nil, validationErrorf("missing required field: brightnessSchedule")
	}

	for i, entry := range payload.BrightnessSchedule {
		if entry.Time == nil {
			return nil, validationErrorf("brightnessSchedule[%d] missing required field: time", i)
		}
		if !ValidClock(*entry.Time) {
			return nil, validationErrorf("brightnessSchedule[%d].time must be in HH:MM format", i)
		}
		if entry.WarmBrightness == nil || *entry.WarmBrightness < 0 || *entry.WarmBrightness > 100 {
			return nil, validationErrorf("brightnessSchedule[%d].warmBrightness must be an integer between 0 and 100", i)
		}
		if entry.CoolBrightness == nil || *entry.CoolBrightness < 0 || *entry.CoolBrightness > 100 {
			return nil, validationErrorf("brightnessSchedule[%d].coolBrightness must be an integer between 0 and 100", i)
		}
		if entry.Label == nil || *entry.Label == "" {
			return nil, validationErrorf("brightnessSchedule[%d].label must be a non-empty string", i)
		}
	}

	return &payload, nil
}

// ConfigFromWrite builds an aggregate from an already validated write
// payload. Entries with unrecognized labels are dropped here, exactly as they
// are on read.
func ConfigFromWrite(payload *WritePayload) *Config {
	cfg := NewConfig()
	cfg.Mode = parseMode(*payload.Mode)
	for _, entry := range payload.BrightnessSchedule {
		if !KnownLabel(*entry.Label) {
			continue
		}
		item := &Item{
			Time:           *entry.Time,
			WarmBrightness: *entry.WarmBrightness,
			CoolBrightness: *entry.CoolBrightness,
		}
		if entry.UnixTime != nil {
			item.UnixTime = *entry.UnixTime
		}
		cfg.slots[Label(*entry.Label)] = item
	}
	return cfg
}

package schedule

// Label identifies one of the six named schedule slots. The set is closed:
// entries carrying any other label are dropped on parse and never stored.
type Label string

const (
	LabelCivilTwilightBegin Label = "civil_twilight_begin"
	LabelSunrise            Label = "sunrise"
	LabelSunset             Label = "sunset"
	LabelCivilTwilightEnd   Label = "civil_twilight_end"
	LabelBedTime            Label = "bed_time"
	LabelNightTime          Label = "night_time"
)

// knownLabels lists the recognized slots in canonical day order. Output
// ordering is by instant, not by this list; the order here only makes
// iteration deterministic.
var knownLabels = []Label{
	LabelCivilTwilightBegin,
	LabelSunrise,
	LabelSunset,
	LabelCivilTwilightEnd,
	LabelBedTime,
	LabelNightTime,
}

// KnownLabel reports whether s names one of the six recognized slots.
func KnownLabel(s string) bool {
	for _, l := range knownLabels {
		if string(l) == s {
			return true
		}
	}
	return false
}

package types

import "fmt"

// Frequency is the sampling interval of a bar series, expressed in seconds.
// The numeric representation gives frequencies a total order: a finer
// frequency compares lower than a coarser one.
type Frequency int

const (
	FrequencySecond Frequency = 1
	FrequencyMinute Frequency = 60
	FrequencyHour   Frequency = 60 * 60
	FrequencyDay    Frequency = 24 * 60 * 60
	FrequencyWeek   Frequency = 7 * 24 * 60 * 60
	FrequencyMonth  Frequency = 30 * 24 * 60 * 60
	FrequencyYear   Frequency = 365 * 24 * 60 * 60
)

// Intraday reports whether the frequency is finer than one day.
func (f Frequency) Intraday() bool {
	return f < FrequencyDay
}

func (f Frequency) String() string {
	switch f {
	case FrequencySecond:
		return "second"
	case FrequencyMinute:
		return "minute"
	case FrequencyHour:
		return "hour"
	case FrequencyDay:
		return "day"
	case FrequencyWeek:
		return "week"
	case FrequencyMonth:
		return "month"
	case FrequencyYear:
		return "year"
	default:
		return fmt.Sprintf("frequency(%d)", int(f))
	}
}

// ParseFrequency converts a frequency name (as used by config files and the
// CLI) to a Frequency value.
func ParseFrequency(s string) (Frequency, error) {
	switch s {
	case "minute":
		return FrequencyMinute, nil
	case "hourly", "hour":
		return FrequencyHour, nil
	case "daily", "day":
		return FrequencyDay, nil
	case "weekly", "week":
		return FrequencyWeek, nil
	default:
		return 0, fmt.Errorf("unknown frequency %q", s)
	}
}

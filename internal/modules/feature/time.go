package feature

import (
	"strings"
	"time"
)

var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTimestamp coerces s to a time. Empty or unparseable input yields the zero time.
func ParseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Time-of-day bucket codes.
const (
	TimeOfDayMorning = 0
	TimeOfDayDay     = 1
	TimeOfDayEvening = 2
	TimeOfDayNight   = 3
	TimeOfDayUnknown = 4
)

func timeOfDay(hour int) int {
	switch {
	case hour >= 6 && hour < 12:
		return TimeOfDayMorning
	case hour >= 12 && hour < 18:
		return TimeOfDayDay
	case hour >= 18 && hour < 24:
		return TimeOfDayEvening
	default:
		return TimeOfDayNight
	}
}

// dayOfWeek numbers days Monday = 0 .. Sunday = 6.
func dayOfWeek(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

func isNight(hour int) bool { return hour >= 0 && hour <= 5 }

func isPeakHour(hour int) bool {
	return (hour >= 7 && hour <= 9) || (hour >= 17 && hour <= 20)
}

// Friday through Sunday.
func isWeekend(dow int) bool { return dow >= 4 }

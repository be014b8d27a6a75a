// Package calendar converts event timestamps and splits them into the parts stored in the time table.
// All values are in UTC. Week is the ISO-8601 week number and Weekday runs from 1 (Sunday) to 7 (Saturday).
package calendar

import "time"

// ToTimestamp converts epoch milliseconds to a UTC time truncated to whole seconds.
// Negative values round down so that -1ms is the second before the epoch.
func ToTimestamp(epochMillis int64) time.Time {
	secs := epochMillis / 1000
	if epochMillis%1000 < 0 {
		secs--
	}
	return time.Unix(secs, 0).UTC()
}

// TimeParts are the derived columns of a start time.
type TimeParts struct {
	Hour    int
	Day     int
	Week    int
	Month   int
	Year    int
	Weekday int
}

func NewTimeParts(t time.Time) TimeParts {
	t = t.UTC()
	_, week := t.ISOWeek()
	return TimeParts{
		Hour:    t.Hour(),
		Day:     t.Day(),
		Week:    week,
		Month:   int(t.Month()),
		Year:    t.Year(),
		Weekday: int(t.Weekday()) + 1,
	}
}

// Part names accepted by Get.
const (
	PartHour    = "hour"
	PartDay     = "day"
	PartWeek    = "week"
	PartMonth   = "month"
	PartYear    = "year"
	PartWeekday = "weekday"
)

// Get returns the named part and false if the name is unknown.
func (p TimeParts) Get(name string) (int, bool) {
	switch name {
	case PartHour:
		return p.Hour, true
	case PartDay:
		return p.Day, true
	case PartWeek:
		return p.Week, true
	case PartMonth:
		return p.Month, true
	case PartYear:
		return p.Year, true
	case PartWeekday:
		return p.Weekday, true
	}
	return 0, false
}

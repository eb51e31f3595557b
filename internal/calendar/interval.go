package calendar

import (
	"errors"
	"time"
)

// ErrInvalidRange is returned for ranges whose end does not follow the start.
var ErrInvalidRange = errors.New("calendar: range end must be after start")

// Interval is the half-open range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Valid reports whether the interval has positive length.
func (i Interval) Valid() bool {
	return !i.Start.IsZero() && !i.End.IsZero() && i.Start.Before(i.End)
}

// Duration returns End-Start.
func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// Overlaps reports whether the two intervals share any instant. Touching
// intervals do not overlap.
func (i Interval) Overlaps(other Interval) bool {
	return i.Start.Before(other.End) && other.Start.Before(i.End)
}

// Contains reports whether other lies fully within i.
func (i Interval) Contains(other Interval) bool {
	return !other.Start.Before(i.Start) && !other.End.After(i.End)
}

// ContainsInstant reports whether t falls inside [Start, End).
func (i Interval) ContainsInstant(t time.Time) bool {
	return !t.Before(i.Start) && t.Before(i.End)
}

// Intersect returns the overlapping part of both intervals.
func (i Interval) Intersect(other Interval) (Interval, bool) {
	start := i.Start
	if other.Start.After(start) {
		start = other.Start
	}
	end := i.End
	if other.End.Before(end) {
		end = other.End
	}
	if !start.Before(end) {
		return Interval{}, false
	}
	return Interval{Start: start, End: end}, true
}

// In converts both bounds to loc.
func (i Interval) In(loc *time.Location) Interval {
	return Interval{Start: i.Start.In(loc), End: i.End.In(loc)}
}

// StartOfDay truncates t to local midnight in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// StartOfWeek returns local midnight of the most recent weekStart on or
// before t.
func StartOfWeek(t time.Time, loc *time.Location, weekStart DayOfWeek) time.Time {
	if !weekStart.Valid() {
		weekStart = Monday
	}
	day := StartOfDay(t, loc)
	offset := (int(FromWeekday(day.Weekday())) - int(weekStart) + 7) % 7
	return day.AddDate(0, 0, -offset)
}

// DayRange is the local calendar day containing t.
func DayRange(t time.Time, loc *time.Location) Interval {
	start := StartOfDay(t, loc)
	return Interval{Start: start, End: start.AddDate(0, 0, 1)}
}

// WeekRange is the seven local days starting at the week containing t.
func WeekRange(t time.Time, loc *time.Location, weekStart DayOfWeek) Interval {
	start := StartOfWeek(t, loc, weekStart)
	return Interval{Start: start, End: start.AddDate(0, 0, 7)}
}

// Days lists the local midnights of every calendar day touched by r.
func Days(r Interval, loc *time.Location) []time.Time {
	if !r.Valid() {
		return nil
	}
	var days []time.Time
	for day := StartOfDay(r.Start, loc); day.Before(r.End); day = day.AddDate(0, 0, 1) {
		days = append(days, day)
	}
	return days
}

package recurrence

import (
	"errors"
	"sort"
	"time"

	"github.com/example/advising-portal/internal/calendar"
)

// WeeklyRule is a recurring availability block: every Day between Start and
// End local time.
type WeeklyRule struct {
	ID      string
	StaffID string
	Day     calendar.DayOfWeek
	Start   calendar.TimeOfDay
	End     calendar.TimeOfDay
}

// Occurrence represents a generated instance of a weekly rule.
type Occurrence struct {
	RuleID  string
	StaffID string
	Start   time.Time
	End     time.Time
}

// Interval returns the occurrence bounds.
func (o Occurrence) Interval() calendar.Interval {
	return calendar.Interval{Start: o.Start, End: o.End}
}

// Engine expands weekly rules into concrete occurrences.
type Engine struct {
	location *time.Location
}

// NewEngine constructs an Engine that anchors rules to wall-clock time in the
// provided location. If loc is nil, UTC is used.
func NewEngine(loc *time.Location) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	return &Engine{location: loc}
}

// Location returns the zone rules are anchored in.
func (e *Engine) Location() *time.Location {
	if e == nil || e.location == nil {
		return time.UTC
	}
	return e.location
}

// ErrInvalidWindow indicates the generation window is empty or unbounded.
var ErrInvalidWindow = errors.New("recurrence: generation window must have a positive length")

// ErrInvalidDuration indicates a rule whose end does not follow its start.
var ErrInvalidDuration = errors.New("recurrence: slot duration must be positive")

// ErrInvalidDay indicates a rule day outside 1..7.
var ErrInvalidDay = errors.New("recurrence: day of week must be between 1 and 7")

// Expand produces occurrences of rules that intersect window, clipped to it.
//
// The engine enforces the following semantics:
//   - Each occurrence is built from the calendar date in the engine's zone, so
//     daylight-saving transitions shift the absolute instant, not the wall time.
//   - Occurrences are returned sorted by start, then rule ID.
//   - Parts of an occurrence outside the window are dropped.
func (e *Engine) Expand(rules []WeeklyRule, window calendar.Interval) ([]Occurrence, error) {
	if !window.Valid() {
		return nil, ErrInvalidWindow
	}
	loc := e.Location()

	for _, rule := range rules {
		if !rule.Day.Valid() {
			return nil, ErrInvalidDay
		}
		if !rule.Start.Valid() || !rule.End.Valid() || rule.End <= rule.Start {
			return nil, ErrInvalidDuration
		}
	}

	byDay := make(map[calendar.DayOfWeek][]WeeklyRule, 7)
	for _, rule := range rules {
		byDay[rule.Day] = append(byDay[rule.Day], rule)
	}

	occurrences := make([]Occurrence, 0)
	for day := calendar.StartOfDay(window.Start, loc); day.Before(window.End); day = day.AddDate(0, 0, 1) {
		for _, rule := range byDay[calendar.FromWeekday(day.Weekday())] {
			occ := calendar.Interval{Start: rule.Start.On(day, loc), End: rule.End.On(day, loc)}
			clipped, ok := occ.Intersect(window)
			if !ok {
				continue
			}
			occurrences = append(occurrences, Occurrence{
				RuleID:  rule.ID,
				StaffID: rule.StaffID,
				Start:   clipped.Start.In(loc),
				End:     clipped.End.In(loc),
			})
		}
	}

	sort.SliceStable(occurrences, func(i, j int) bool {
		if occurrences[i].Start.Equal(occurrences[j].Start) {
			return occurrences[i].RuleID < occurrences[j].RuleID
		}
		return occurrences[i].Start.Before(occurrences[j].Start)
	})
	return occurrences, nil
}

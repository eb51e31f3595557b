// Package scheduler derives an advisor's bookable time from their weekly
// template, leave periods and active meetings, renders it into slot grids and
// guards new bookings against it.
package scheduler

import (
	"sort"
	"time"

	"github.com/example/advising-portal/internal/calendar"
	"github.com/example/advising-portal/internal/meeting"
	"github.com/example/advising-portal/internal/recurrence"
)

// Kind classifies a resolved interval.
type Kind int

const (
	KindOpen Kind = iota + 1
	KindLeave
	KindBooked
)

func (k Kind) String() string {
	switch k {
	case KindOpen:
		return "open"
	case KindLeave:
		return "leave"
	case KindBooked:
		return "booked"
	default:
		return "unknown"
	}
}

// MarshalText renders the lowercase name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Leave is a one-off absence of an advisor.
type Leave struct {
	ID      string
	StaffID string
	Start   time.Time
	End     time.Time
}

// Interval returns the leave bounds.
func (l Leave) Interval() calendar.Interval {
	return calendar.Interval{Start: l.Start, End: l.End}
}

// Booking is the slice of a meeting the resolver needs.
type Booking struct {
	MeetingID string
	StaffID   string
	Status    meeting.Status
	Start     time.Time
	End       time.Time
}

// Interval returns the booking bounds.
func (b Booking) Interval() calendar.Interval {
	return calendar.Interval{Start: b.Start, End: b.End}
}

// Snapshot is a consistent read of everything that shapes availability.
type Snapshot struct {
	Slots    []recurrence.WeeklyRule
	Leaves   []Leave
	Bookings []Booking
}

// Interval is one classified piece of resolved availability.
type Interval struct {
	Kind      Kind
	Start     time.Time
	End       time.Time
	MeetingID string
	LeaveID   string
}

// Span returns the interval bounds.
func (i Interval) Span() calendar.Interval {
	return calendar.Interval{Start: i.Start, End: i.End}
}

// Resolver is the single source of truth for advisor availability.
type Resolver struct {
	engine *recurrence.Engine
}

// NewResolver anchors weekly templates in loc (UTC when nil).
func NewResolver(loc *time.Location) *Resolver {
	return &Resolver{engine: recurrence.NewEngine(loc)}
}

// Location returns the zone weekly templates are anchored in.
func (r *Resolver) Location() *time.Location {
	return r.engine.Location()
}

// Resolve classifies the staff member's template time inside window.
//
// Template occurrences are merged, leave is carved out and reported as Leave,
// and active meetings inside the remaining Open time are reported as Booked.
// The output is sorted, non-overlapping and covers exactly the template time
// in the window. The only error is an invalid window.
func (r *Resolver) Resolve(staffID string, window calendar.Interval, snap Snapshot) ([]Interval, error) {
	if !window.Valid() {
		return nil, calendar.ErrInvalidRange
	}

	template, err := r.template(staffID, window, snap.Slots)
	if err != nil {
		return nil, err
	}
	if len(template) == 0 {
		return []Interval{}, nil
	}

	leaves := staffLeaves(staffID, window, snap.Leaves)
	bookings := activeBookings(staffID, window, snap.Bookings)

	out := make([]Interval, 0, len(template)*2)
	for _, block := range template {
		for _, piece := range subtractLeaves(block, leaves) {
			if piece.Kind != KindOpen {
				out = append(out, piece)
				continue
			}
			out = append(out, splitBookings(piece.Span(), bookings)...)
		}
	}
	return out, nil
}

func (r *Resolver) template(staffID string, window calendar.Interval, slots []recurrence.WeeklyRule) ([]calendar.Interval, error) {
	rules := make([]recurrence.WeeklyRule, 0, len(slots))
	for _, slot := range slots {
		if slot.StaffID != staffID || !slot.Day.Valid() || !slot.Start.Valid() || !slot.End.Valid() || slot.End <= slot.Start {
			continue
		}
		rules = append(rules, slot)
	}

	occurrences, err := r.engine.Expand(rules, window)
	if err != nil {
		return nil, err
	}

	merged := make([]calendar.Interval, 0, len(occurrences))
	for _, occ := range occurrences {
		current := occ.Interval()
		if n := len(merged); n > 0 && !current.Start.After(merged[n-1].End) {
			if current.End.After(merged[n-1].End) {
				merged[n-1].End = current.End
			}
			continue
		}
		merged = append(merged, current)
	}
	return merged, nil
}

func staffLeaves(staffID string, window calendar.Interval, leaves []Leave) []Leave {
	out := make([]Leave, 0, len(leaves))
	for _, leave := range leaves {
		if leave.StaffID != staffID || !leave.Interval().Valid() || !leave.Interval().Overlaps(window) {
			continue
		}
		out = append(out, leave)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Start.Equal(out[j].Start) {
			return out[i].ID < out[j].ID
		}
		return out[i].Start.Before(out[j].Start)
	})
	return out
}

func activeBookings(staffID string, window calendar.Interval, bookings []Booking) []Booking {
	out := make([]Booking, 0, len(bookings))
	for _, booking := range bookings {
		if booking.StaffID != staffID || !booking.Status.Active() || !booking.Interval().Valid() || !booking.Interval().Overlaps(window) {
			continue
		}
		out = append(out, booking)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Start.Equal(out[j].Start) {
			return out[i].MeetingID < out[j].MeetingID
		}
		return out[i].Start.Before(out[j].Start)
	})
	return out
}

// subtractLeaves walks the sorted leaves across block and emits the Open and
// Leave pieces in order.
func subtractLeaves(block calendar.Interval, leaves []Leave) []Interval {
	out := make([]Interval, 0, 1)
	cursor := block.Start
	for _, leave := range leaves {
		if !leave.End.After(cursor) || !leave.Start.Before(block.End) {
			continue
		}
		if leave.Start.After(cursor) {
			out = append(out, Interval{Kind: KindOpen, Start: cursor, End: leave.Start})
			cursor = leave.Start
		}
		end := minTime(leave.End, block.End)
		out = append(out, Interval{Kind: KindLeave, Start: cursor, End: end, LeaveID: leave.ID})
		cursor = end
		if !cursor.Before(block.End) {
			return out
		}
	}
	if cursor.Before(block.End) {
		out = append(out, Interval{Kind: KindOpen, Start: cursor, End: block.End})
	}
	return out
}

func splitBookings(open calendar.Interval, bookings []Booking) []Interval {
	out := make([]Interval, 0, 1)
	cursor := open.Start
	for _, booking := range bookings {
		if !booking.End.After(cursor) || !booking.Start.Before(open.End) {
			continue
		}
		if booking.Start.After(cursor) {
			out = append(out, Interval{Kind: KindOpen, Start: cursor, End: booking.Start})
			cursor = booking.Start
		}
		end := minTime(booking.End, open.End)
		out = append(out, Interval{Kind: KindBooked, Start: cursor, End: end, MeetingID: booking.MeetingID})
		cursor = end
		if !cursor.Before(open.End) {
			return out
		}
	}
	if cursor.Before(open.End) {
		out = append(out, Interval{Kind: KindOpen, Start: cursor, End: open.End})
	}
	return out
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

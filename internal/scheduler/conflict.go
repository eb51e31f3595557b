package scheduler

import (
	"fmt"

	"github.com/example/advising-portal/internal/calendar"
	"github.com/example/advising-portal/internal/meeting"
	"github.com/example/advising-portal/internal/recurrence"
)

// Conflict reasons surfaced to callers.
const (
	ReasonInvalidRange   = "end must be after start"
	ReasonBooked         = "slot already booked"
	ReasonBatchOverlap   = "overlaps another meeting in the same request"
	ReasonOnLeave        = "advisor is on leave"
	ReasonOutside        = "outside advisor availability"
	ReasonSlotOverlap    = "overlaps an existing weekly slot"
	ReasonLeaveOverlap   = "overlaps an existing leave"
	ReasonMeetingOverlap = "overlaps an active meeting"
)

// Conflict details why a proposed change cannot be applied.
type Conflict struct {
	// Index is the position of the offending item in a batch.
	Index     int
	Reason    string
	Detail    string
	Interval  calendar.Interval
	MeetingID string
	SlotID    string
	LeaveID   string
}

func (c Conflict) String() string {
	if c.Detail != "" {
		return fmt.Sprintf("item %d: %s (%s)", c.Index, c.Reason, c.Detail)
	}
	return fmt.Sprintf("item %d: %s", c.Index, c.Reason)
}

// Guard validates proposed meetings, slots and leaves against a snapshot.
type Guard struct {
	resolver *Resolver
}

// NewGuard wraps a resolver.
func NewGuard(resolver *Resolver) *Guard {
	return &Guard{resolver: resolver}
}

// CheckBooking requires proposed to fall entirely inside one Open interval.
// It returns every blocking piece it finds; an empty result means the
// booking is acceptable.
func (g *Guard) CheckBooking(staffID string, proposed calendar.Interval, snap Snapshot) []Conflict {
	if !proposed.Valid() {
		return []Conflict{{Reason: ReasonInvalidRange, Interval: proposed}}
	}

	loc := g.resolver.Location()
	window := calendar.Interval{
		Start: calendar.StartOfDay(proposed.Start, loc),
		End:   calendar.StartOfDay(proposed.End, loc).AddDate(0, 0, 1),
	}
	intervals, err := g.resolver.Resolve(staffID, window, snap)
	if err != nil {
		return []Conflict{{Reason: ReasonInvalidRange, Interval: proposed}}
	}

	var conflicts []Conflict
	cursor := proposed.Start
	for _, iv := range intervals {
		overlap, ok := iv.Span().Intersect(proposed)
		if !ok {
			continue
		}
		if overlap.Start.After(cursor) {
			conflicts = append(conflicts, Conflict{Reason: ReasonOutside, Interval: calendar.Interval{Start: cursor, End: overlap.Start}})
		}
		cursor = overlap.End
		switch iv.Kind {
		case KindOpen:
			if iv.Span().Contains(proposed) {
				return nil
			}
		case KindLeave:
			conflicts = append(conflicts, Conflict{Reason: ReasonOnLeave, Interval: overlap, LeaveID: iv.LeaveID})
		case KindBooked:
			reason := ReasonBooked
			if iv.MeetingID == "" {
				reason = ReasonBatchOverlap
			}
			conflicts = append(conflicts, Conflict{Reason: reason, Interval: overlap, MeetingID: iv.MeetingID})
		}
	}
	if cursor.Before(proposed.End) {
		conflicts = append(conflicts, Conflict{Reason: ReasonOutside, Interval: calendar.Interval{Start: cursor, End: proposed.End}})
	}
	if len(conflicts) == 0 {
		conflicts = append(conflicts, Conflict{Reason: ReasonOutside, Interval: proposed})
	}
	return conflicts
}

// CheckBookings validates a batch for one staff member as a unit. Items
// accepted earlier in the batch count as pending bookings for later ones.
func (g *Guard) CheckBookings(staffID string, proposals []calendar.Interval, snap Snapshot) []Conflict {
	working := snap
	working.Bookings = append(make([]Booking, 0, len(snap.Bookings)+len(proposals)), snap.Bookings...)

	var conflicts []Conflict
	for i, proposed := range proposals {
		found := g.CheckBooking(staffID, proposed, working)
		if len(found) > 0 {
			for _, c := range found {
				c.Index = i
				conflicts = append(conflicts, c)
			}
			continue
		}
		working.Bookings = append(working.Bookings, Booking{
			StaffID: staffID,
			Status:  meeting.StatusPending,
			Start:   proposed.Start,
			End:     proposed.End,
		})
	}
	return conflicts
}

// CheckWeeklySlots rejects proposed slots that overlap another slot of the
// same staff member on the same day, whether stored or earlier in the batch.
// A proposed slot with an ID is treated as an update and ignores itself.
func CheckWeeklySlots(existing, proposed []recurrence.WeeklyRule) []Conflict {
	var conflicts []Conflict
	for i, slot := range proposed {
		if !slot.Day.Valid() || !slot.Start.Valid() || !slot.End.Valid() || slot.End <= slot.Start {
			conflicts = append(conflicts, Conflict{Index: i, Reason: ReasonInvalidRange, Detail: describeSlot(slot), SlotID: slot.ID})
			continue
		}
		for _, other := range existing {
			if slot.ID != "" && other.ID == slot.ID {
				continue
			}
			if slotsOverlap(slot, other) {
				conflicts = append(conflicts, Conflict{Index: i, Reason: ReasonSlotOverlap, Detail: describeSlot(other), SlotID: other.ID})
			}
		}
		for j := 0; j < i; j++ {
			if slotsOverlap(slot, proposed[j]) {
				conflicts = append(conflicts, Conflict{Index: i, Reason: ReasonSlotOverlap, Detail: describeSlot(proposed[j]), SlotID: proposed[j].ID})
			}
		}
	}
	return conflicts
}

// CheckLeaves rejects proposed leaves that overlap stored leaves of the same
// staff member or each other. An ID match is treated as an update.
func CheckLeaves(existing, proposed []Leave) []Conflict {
	var conflicts []Conflict
	for i, leave := range proposed {
		if !leave.Interval().Valid() {
			conflicts = append(conflicts, Conflict{Index: i, Reason: ReasonInvalidRange, Interval: leave.Interval(), LeaveID: leave.ID})
			continue
		}
		for _, other := range existing {
			if leave.ID != "" && other.ID == leave.ID {
				continue
			}
			if other.StaffID == leave.StaffID && other.Interval().Overlaps(leave.Interval()) {
				conflicts = append(conflicts, Conflict{Index: i, Reason: ReasonLeaveOverlap, Interval: other.Interval(), LeaveID: other.ID})
			}
		}
		for j := 0; j < i; j++ {
			if proposed[j].StaffID == leave.StaffID && proposed[j].Interval().Overlaps(leave.Interval()) {
				conflicts = append(conflicts, Conflict{Index: i, Reason: ReasonLeaveOverlap, Interval: proposed[j].Interval(), LeaveID: proposed[j].ID})
			}
		}
	}
	return conflicts
}

// ActiveBookingsDuring returns the staff member's Pending and Confirmed
// bookings that overlap iv, ordered by start.
func ActiveBookingsDuring(staffID string, iv calendar.Interval, bookings []Booking) []Booking {
	if !iv.Valid() {
		return nil
	}
	return activeBookings(staffID, iv, bookings)
}

func slotsOverlap(a, b recurrence.WeeklyRule) bool {
	return a.StaffID == b.StaffID && a.Day == b.Day && a.Start < b.End && b.Start < a.End
}

func describeSlot(slot recurrence.WeeklyRule) string {
	return fmt.Sprintf("%s %s-%s", slot.Day, slot.Start, slot.End)
}

package scheduler

import (
	"math/rand"
	"testing"
	"time"

	"github.com/example/advising-portal/internal/calendar"
	"github.com/example/advising-portal/internal/meeting"
	"github.com/example/advising-portal/internal/recurrence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// monday is 2024-03-04.
var monday = time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC)

func at(day time.Time, clock string) time.Time {
	return calendar.MustTimeOfDay(clock).On(day, time.UTC)
}

func span(day time.Time, from, to string) calendar.Interval {
	return calendar.Interval{Start: at(day, from), End: at(day, to)}
}

func slot(id string, day calendar.DayOfWeek, from, to string) recurrence.WeeklyRule {
	return recurrence.WeeklyRule{
		ID:      id,
		StaffID: "staff-1",
		Day:     day,
		Start:   calendar.MustTimeOfDay(from),
		End:     calendar.MustTimeOfDay(to),
	}
}

func leave(id string, iv calendar.Interval) Leave {
	return Leave{ID: id, StaffID: "staff-1", Start: iv.Start, End: iv.End}
}

func booking(id string, status meeting.Status, iv calendar.Interval) Booking {
	return Booking{MeetingID: id, StaffID: "staff-1", Status: status, Start: iv.Start, End: iv.End}
}

func TestResolver_LeaveSplitsTemplate(t *testing.T) {
	t.Parallel()

	snap := Snapshot{
		Slots:  []recurrence.WeeklyRule{slot("mon", calendar.Monday, "09:00", "17:00")},
		Leaves: []Leave{leave("lunch", span(monday, "12:00", "13:00"))},
	}

	got, err := NewResolver(time.UTC).Resolve("staff-1", calendar.DayRange(monday, time.UTC), snap)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, Interval{Kind: KindOpen, Start: at(monday, "09:00"), End: at(monday, "12:00")}, got[0])
	assert.Equal(t, Interval{Kind: KindLeave, Start: at(monday, "12:00"), End: at(monday, "13:00"), LeaveID: "lunch"}, got[1])
	assert.Equal(t, Interval{Kind: KindOpen, Start: at(monday, "13:00"), End: at(monday, "17:00")}, got[2])
}

func TestResolver_ActiveMeetingsBecomeBooked(t *testing.T) {
	t.Parallel()

	snap := Snapshot{
		Slots: []recurrence.WeeklyRule{slot("mon", calendar.Monday, "09:00", "12:00")},
		Bookings: []Booking{
			booking("m-pending", meeting.StatusPending, span(monday, "10:00", "11:00")),
			booking("m-canceled", meeting.StatusStudentCanceled, span(monday, "09:00", "10:00")),
		},
	}

	got, err := NewResolver(time.UTC).Resolve("staff-1", calendar.DayRange(monday, time.UTC), snap)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, KindOpen, got[0].Kind)
	assert.Equal(t, Interval{Kind: KindBooked, Start: at(monday, "10:00"), End: at(monday, "11:00"), MeetingID: "m-pending"}, got[1])
	assert.Equal(t, KindOpen, got[2].Kind)
}

func TestResolver_MergesAdjacentSlotsAndFiltersStaff(t *testing.T) {
	t.Parallel()

	other := slot("other", calendar.Monday, "08:00", "20:00")
	other.StaffID = "staff-2"
	snap := Snapshot{
		Slots: []recurrence.WeeklyRule{
			slot("a", calendar.Monday, "09:00", "10:00"),
			slot("b", calendar.Monday, "10:00", "11:00"),
			other,
		},
	}

	got, err := NewResolver(time.UTC).Resolve("staff-1", calendar.DayRange(monday, time.UTC), snap)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, span(monday, "09:00", "11:00"), got[0].Span())
}

func TestResolver_LeaveCoveringWholeSlot(t *testing.T) {
	t.Parallel()

	snap := Snapshot{
		Slots:  []recurrence.WeeklyRule{slot("mon", calendar.Monday, "09:00", "11:00")},
		Leaves: []Leave{leave("sick", calendar.Interval{Start: monday, End: monday.AddDate(0, 0, 1)})},
	}

	got, err := NewResolver(time.UTC).Resolve("staff-1", calendar.DayRange(monday, time.UTC), snap)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, Interval{Kind: KindLeave, Start: at(monday, "09:00"), End: at(monday, "11:00"), LeaveID: "sick"}, got[0])
}

func TestResolver_EmptyAndInvalid(t *testing.T) {
	t.Parallel()

	resolver := NewResolver(nil)

	got, err := resolver.Resolve("staff-1", calendar.DayRange(monday, time.UTC), Snapshot{})
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = resolver.Resolve("staff-1", calendar.Interval{Start: monday, End: monday}, Snapshot{})
	assert.ErrorIs(t, err, calendar.ErrInvalidRange)
}

func TestResolver_OutputIsSortedDisjointAndDeterministic(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(42))
	resolver := NewResolver(time.UTC)
	week := calendar.WeekRange(monday, time.UTC, calendar.Monday)

	for round := 0; round < 50; round++ {
		var snap Snapshot
		for day := calendar.Sunday; day <= calendar.Saturday; day++ {
			start := 7*60 + rng.Intn(4)*60
			snap.Slots = append(snap.Slots, recurrence.WeeklyRule{
				ID: day.String(), StaffID: "staff-1", Day: day,
				Start: calendar.TimeOfDay(start), End: calendar.TimeOfDay(start + 60 + rng.Intn(8)*60),
			})
		}
		for i := 0; i < 6; i++ {
			start := week.Start.Add(time.Duration(rng.Intn(7*24*4)) * 15 * time.Minute)
			iv := calendar.Interval{Start: start, End: start.Add(time.Duration(1+rng.Intn(12)) * 15 * time.Minute)}
			if rng.Intn(2) == 0 {
				snap.Leaves = append(snap.Leaves, leave(string(rune('a'+i)), iv))
			} else {
				snap.Bookings = append(snap.Bookings, booking(string(rune('a'+i)), meeting.StatusConfirmed, iv))
			}
		}

		first, err := resolver.Resolve("staff-1", week, snap)
		require.NoError(t, err)
		second, err := resolver.Resolve("staff-1", week, snap)
		require.NoError(t, err)
		require.Equal(t, first, second)

		for i, iv := range first {
			require.True(t, iv.Start.Before(iv.End), "interval %d is empty", i)
			require.True(t, week.Contains(iv.Span()))
			if i > 0 {
				require.False(t, first[i-1].End.After(iv.Start), "intervals %d and %d overlap", i-1, i)
			}
		}
	}
}

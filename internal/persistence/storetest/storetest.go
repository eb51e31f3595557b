// Package storetest holds the behavioural checks every persistence.Store
// implementation must pass.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/advising-portal/internal/calendar"
	"github.com/example/advising-portal/internal/meeting"
	"github.com/example/advising-portal/internal/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty, migrated store. Cleanup is the factory's job.
type Factory func(t *testing.T) persistence.Store

var base = time.Date(2024, time.March, 4, 9, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

// Run executes the shared suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("weekly slots", func(t *testing.T) { testWeeklySlots(t, newStore(t)) })
	t.Run("leaves", func(t *testing.T) { testLeaves(t, newStore(t)) })
	t.Run("meetings", func(t *testing.T) { testMeetings(t, newStore(t)) })
	t.Run("meeting compare and set", func(t *testing.T) { testMeetingCompareAndSet(t, newStore(t)) })
	t.Run("ban counters", func(t *testing.T) { testBanCounters(t, newStore(t)) })
	t.Run("transactions roll back", func(t *testing.T) { testRollback(t, newStore(t)) })
}

func testWeeklySlots(t *testing.T, store persistence.Store) {
	ctx := context.Background()

	slots := []persistence.WeeklySlot{
		{ID: "slot-2", StaffID: "staff-1", DayOfWeek: calendar.Tuesday, StartTime: 9 * 60, EndTime: 12 * 60, CreatedAt: base, UpdatedAt: base},
		{ID: "slot-1", StaffID: "staff-1", DayOfWeek: calendar.Monday, StartTime: 13 * 60, EndTime: calendar.MinutesPerDay, CreatedAt: base, UpdatedAt: base},
		{ID: "slot-3", StaffID: "staff-2", DayOfWeek: calendar.Monday, StartTime: 9 * 60, EndTime: 10 * 60, CreatedAt: base, UpdatedAt: base},
	}
	for _, slot := range slots {
		require.NoError(t, store.CreateWeeklySlot(ctx, slot))
	}
	require.ErrorIs(t, store.CreateWeeklySlot(ctx, slots[0]), persistence.ErrDuplicate)

	listed, err := store.ListWeeklySlots(ctx, "staff-1")
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, "slot-1", listed[0].ID)
	assert.Equal(t, calendar.TimeOfDay(calendar.MinutesPerDay), listed[0].EndTime)
	assert.True(t, base.Equal(listed[0].CreatedAt))

	updated := slots[0]
	updated.StartTime = 8 * 60
	updated.UpdatedAt = base.Add(time.Hour)
	require.NoError(t, store.UpdateWeeklySlot(ctx, updated))

	fetched, err := store.GetWeeklySlot(ctx, "slot-2")
	require.NoError(t, err)
	assert.Equal(t, calendar.TimeOfDay(8*60), fetched.StartTime)
	assert.True(t, base.Add(time.Hour).Equal(fetched.UpdatedAt))

	require.NoError(t, store.DeleteWeeklySlot(ctx, "slot-2"))
	_, err = store.GetWeeklySlot(ctx, "slot-2")
	require.ErrorIs(t, err, persistence.ErrNotFound)
	require.ErrorIs(t, store.DeleteWeeklySlot(ctx, "slot-2"), persistence.ErrNotFound)
	require.ErrorIs(t, store.UpdateWeeklySlot(ctx, updated), persistence.ErrNotFound)
}

func testLeaves(t *testing.T, store persistence.Store) {
	ctx := context.Background()

	leaves := []persistence.LeavePeriod{
		{ID: "leave-1", StaffID: "staff-1", Start: base, End: base.Add(2 * time.Hour), Note: ptr("conference"), CreatedAt: base, UpdatedAt: base},
		{ID: "leave-2", StaffID: "staff-1", Start: base.AddDate(0, 0, 2), End: base.AddDate(0, 0, 3), CreatedAt: base, UpdatedAt: base},
		{ID: "leave-3", StaffID: "staff-2", Start: base, End: base.Add(time.Hour), CreatedAt: base, UpdatedAt: base},
	}
	for _, leave := range leaves {
		require.NoError(t, store.CreateLeave(ctx, leave))
	}

	all, err := store.ListLeaves(ctx, persistence.LeaveFilter{StaffID: "staff-1"})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "leave-1", all[0].ID)
	require.NotNil(t, all[0].Note)
	assert.Equal(t, "conference", *all[0].Note)
	assert.Nil(t, all[1].Note)

	// The window end touches leave-2's start and must not include it.
	windowed, err := store.ListLeaves(ctx, persistence.LeaveFilter{
		StaffID: "staff-1",
		From:    ptr(base.Add(time.Hour)),
		To:      ptr(base.AddDate(0, 0, 2)),
	})
	require.NoError(t, err)
	require.Len(t, windowed, 1)
	assert.Equal(t, "leave-1", windowed[0].ID)

	changed := leaves[0]
	changed.End = base.Add(3 * time.Hour)
	changed.Note = nil
	require.NoError(t, store.UpdateLeave(ctx, changed))
	fetched, err := store.GetLeave(ctx, "leave-1")
	require.NoError(t, err)
	assert.True(t, base.Add(3*time.Hour).Equal(fetched.End))
	assert.Nil(t, fetched.Note)

	require.NoError(t, store.DeleteLeave(ctx, "leave-1"))
	_, err = store.GetLeave(ctx, "leave-1")
	require.ErrorIs(t, err, persistence.ErrNotFound)
}

func newMeeting(id, staffID, studentID string, start time.Time, status meeting.Status) persistence.Meeting {
	return persistence.Meeting{
		ID:                id,
		StaffID:           staffID,
		StudentID:         studentID,
		Start:             start,
		End:               start.Add(time.Hour),
		Status:            status,
		TitleStudentIssue: "Course planning",
		ContentIssue:      "Which electives fit next term?",
		CheckInCode:       "AB12CD",
		CreatedAt:         base,
		UpdatedAt:         base,
	}
}

func testMeetings(t *testing.T, store persistence.Store) {
	ctx := context.Background()

	meetings := []persistence.Meeting{
		newMeeting("m-3", "staff-1", "student-1", base.Add(4*time.Hour), meeting.StatusConfirmed),
		newMeeting("m-1", "staff-1", "student-1", base, meeting.StatusPending),
		newMeeting("m-2", "staff-1", "student-2", base.Add(2*time.Hour), meeting.StatusStudentCanceled),
		newMeeting("m-4", "staff-2", "student-1", base, meeting.StatusPending),
	}
	for _, m := range meetings {
		require.NoError(t, store.CreateMeeting(ctx, m))
	}
	require.ErrorIs(t, store.CreateMeeting(ctx, meetings[0]), persistence.ErrDuplicate)

	fetched, err := store.GetMeeting(ctx, "m-1")
	require.NoError(t, err)
	assert.Equal(t, meeting.StatusPending, fetched.Status)
	assert.Equal(t, "AB12CD", fetched.CheckInCode)
	assert.Equal(t, "Course planning", fetched.TitleStudentIssue)
	assert.Nil(t, fetched.CompletedAt)

	page, total, err := store.ListMeetings(ctx, persistence.MeetingFilter{StaffID: "staff-1", Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, page, 2)
	assert.Equal(t, "m-1", page[0].ID)
	assert.Equal(t, "m-2", page[1].ID)

	page, total, err = store.ListMeetings(ctx, persistence.MeetingFilter{StaffID: "staff-1", Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, page, 1)
	assert.Equal(t, "m-3", page[0].ID)

	active, total, err := store.ListMeetings(ctx, persistence.MeetingFilter{
		StudentID: "student-1",
		Statuses:  []meeting.Status{meeting.StatusPending, meeting.StatusConfirmed},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, active, 3)

	windowed, _, err := store.ListMeetings(ctx, persistence.MeetingFilter{
		StaffID: "staff-1",
		From:    ptr(base.Add(time.Hour)),
		To:      ptr(base.Add(4 * time.Hour)),
	})
	require.NoError(t, err)
	require.Len(t, windowed, 1)
	assert.Equal(t, "m-2", windowed[0].ID)

	_, err = store.GetMeeting(ctx, "missing")
	require.ErrorIs(t, err, persistence.ErrNotFound)
}

func testMeetingCompareAndSet(t *testing.T, store persistence.Store) {
	ctx := context.Background()

	m := newMeeting("m-1", "staff-1", "student-1", base, meeting.StatusConfirmed)
	require.NoError(t, store.CreateMeeting(ctx, m))

	completedAt := base.Add(30 * time.Minute)
	m.Status = meeting.StatusCompleted
	m.CompletedAt = &completedAt
	m.Feedback = ptr("helpful")
	m.UpdatedAt = completedAt

	require.ErrorIs(t, store.UpdateMeeting(ctx, m, meeting.StatusPending), persistence.ErrStaleState)
	require.NoError(t, store.UpdateMeeting(ctx, m, meeting.StatusConfirmed))
	require.ErrorIs(t, store.UpdateMeeting(ctx, m, meeting.StatusConfirmed), persistence.ErrStaleState)

	missing := m
	missing.ID = "missing"
	require.ErrorIs(t, store.UpdateMeeting(ctx, missing, meeting.StatusConfirmed), persistence.ErrNotFound)

	fetched, err := store.GetMeeting(ctx, "m-1")
	require.NoError(t, err)
	assert.Equal(t, meeting.StatusCompleted, fetched.Status)
	require.NotNil(t, fetched.CompletedAt)
	assert.True(t, completedAt.Equal(*fetched.CompletedAt))
	require.NotNil(t, fetched.Feedback)
	assert.Equal(t, "helpful", *fetched.Feedback)
}

func testBanCounters(t *testing.T, store persistence.Store) {
	ctx := context.Background()

	_, err := store.GetBanCounter(ctx, "student-1")
	require.ErrorIs(t, err, persistence.ErrNotFound)

	for i := 1; i <= 3; i++ {
		counter, err := store.IncrementBanCounter(ctx, "student-1", 3, base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
		assert.Equal(t, i, counter.CurrentCount)
		assert.Equal(t, 3, counter.MaxAllowed)
	}

	counter, err := store.GetBanCounter(ctx, "student-1")
	require.NoError(t, err)
	assert.Equal(t, 3, counter.CurrentCount)
	assert.True(t, base.Add(3*time.Minute).Equal(counter.UpdatedAt))

	// The default only applies on creation.
	counter, err = store.IncrementBanCounter(ctx, "student-1", 10, base)
	require.NoError(t, err)
	assert.Equal(t, 4, counter.CurrentCount)
	assert.Equal(t, 3, counter.MaxAllowed)
}

func testRollback(t *testing.T, store persistence.Store) {
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.WithinTx(ctx, func(ctx context.Context, repos persistence.Repositories) error {
		require.NoError(t, repos.CreateWeeklySlot(ctx, persistence.WeeklySlot{
			ID: "slot-1", StaffID: "staff-1", DayOfWeek: calendar.Monday, StartTime: 540, EndTime: 600, CreatedAt: base, UpdatedAt: base,
		}))
		if _, err := repos.IncrementBanCounter(ctx, "student-1", 3, base); err != nil {
			return err
		}
		listed, err := repos.ListWeeklySlots(ctx, "staff-1")
		require.NoError(t, err)
		require.Len(t, listed, 1)
		return boom
	})
	require.ErrorIs(t, err, boom)

	listed, err := store.ListWeeklySlots(ctx, "staff-1")
	require.NoError(t, err)
	assert.Empty(t, listed)
	_, err = store.GetBanCounter(ctx, "student-1")
	require.ErrorIs(t, err, persistence.ErrNotFound)

	err = store.WithinTx(ctx, func(ctx context.Context, repos persistence.Repositories) error {
		return repos.CreateWeeklySlot(ctx, persistence.WeeklySlot{
			ID: "slot-1", StaffID: "staff-1", DayOfWeek: calendar.Monday, StartTime: 540, EndTime: 600, CreatedAt: base, UpdatedAt: base,
		})
	})
	require.NoError(t, err)
	listed, err = store.ListWeeklySlots(ctx, "staff-1")
	require.NoError(t, err)
	assert.Len(t, listed, 1)
}

package application_test

import (
	"context"
	"testing"
	"time"

	"github.com/example/advising-portal/internal/application"
	"github.com/example/advising-portal/internal/calendar"
	"github.com/example/advising-portal/internal/meeting"
	"github.com/example/advising-portal/internal/persistence"
	"github.com/example/advising-portal/internal/scheduler"
	"github.com/example/advising-portal/internal/testfixtures"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func slotInput(day calendar.DayOfWeek, start, end string) application.WeeklySlotInput {
	return application.WeeklySlotInput{
		DayOfWeek: day,
		StartTime: calendar.MustTimeOfDay(start),
		EndTime:   calendar.MustTimeOfDay(end),
	}
}

func TestCreateWeeklySlotsRejectsWholeBatchOnOverlap(t *testing.T) {
	services, _ := newServices(t)
	ctx := context.Background()
	testfixtures.Seed{Slots: []persistence.WeeklySlot{
		testfixtures.WeeklySlot("slot-tue", staffID, calendar.Tuesday, "10:00", "12:00"),
	}}.Apply(t, services.Store)

	_, err := services.Availability.CreateWeeklySlots(ctx, application.CreateWeeklySlotsParams{
		Principal: advisor,
		StaffID:   staffID,
		Slots: []application.WeeklySlotInput{
			slotInput(calendar.Tuesday, "08:00", "09:00"),
			slotInput(calendar.Tuesday, "09:00", "10:00"),
			slotInput(calendar.Tuesday, "11:00", "13:00"),
			slotInput(calendar.Tuesday, "13:00", "14:00"),
			slotInput(calendar.Tuesday, "14:00", "15:00"),
		},
	})

	var batch *application.PartialBatchError
	require.ErrorAs(t, err, &batch)
	assert.Equal(t, 5, batch.Total)
	require.Len(t, batch.Failures, 1)
	assert.Equal(t, 2, batch.Failures[0].Index)

	var conflict *application.ConflictError
	require.ErrorAs(t, batch.Failures[0].Err, &conflict)
	assert.Equal(t, scheduler.ReasonSlotOverlap, conflict.Reason)
	assert.Equal(t, "slot-tue", conflict.Conflicts[0].SlotID)

	slots, err := services.Availability.ListWeeklySlots(ctx, staffID)
	require.NoError(t, err)
	assert.Len(t, slots, 2, "only the seeded slots remain")
}

func TestCreateWeeklySlotsSplitsLongSlots(t *testing.T) {
	services, _ := newServices(t)

	slots, err := services.Availability.CreateWeeklySlots(context.Background(), application.CreateWeeklySlotsParams{
		Principal:   advisor,
		StaffID:     staffID,
		Slots:       []application.WeeklySlotInput{slotInput(calendar.Wednesday, "09:00", "10:15")},
		SplitLength: 30 * time.Minute,
	})
	require.NoError(t, err)

	require.Len(t, slots, 3)
	assert.Equal(t, calendar.MustTimeOfDay("09:00"), slots[0].StartTime)
	assert.Equal(t, calendar.MustTimeOfDay("09:30"), slots[1].StartTime)
	assert.Equal(t, calendar.MustTimeOfDay("10:00"), slots[2].StartTime)
	assert.Equal(t, calendar.MustTimeOfDay("10:15"), slots[2].EndTime)
	for _, slot := range slots {
		assert.Equal(t, calendar.Wednesday, slot.DayOfWeek)
	}
}

func TestCreateWeeklySlotsValidation(t *testing.T) {
	cases := []struct {
		name  string
		who   application.Principal
		slots []application.WeeklySlotInput
		check func(t *testing.T, err error)
	}{
		{
			name:  "other advisor",
			who:   application.Principal{UserID: "staff-2", Role: meeting.RoleAdvisor},
			slots: []application.WeeklySlotInput{slotInput(calendar.Tuesday, "09:00", "10:00")},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, application.ErrUnauthorized)
			},
		},
		{
			name:  "student",
			who:   student,
			slots: []application.WeeklySlotInput{slotInput(calendar.Tuesday, "09:00", "10:00")},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, application.ErrUnauthorized)
			},
		},
		{
			name: "empty batch",
			who:  advisor,
			check: func(t *testing.T, err error) {
				var vErr *application.ValidationError
				require.ErrorAs(t, err, &vErr)
				assert.Contains(t, vErr.FieldErrors, "slots")
			},
		},
		{
			name:  "reversed times",
			who:   advisor,
			slots: []application.WeeklySlotInput{slotInput(calendar.Tuesday, "10:00", "09:00")},
			check: func(t *testing.T, err error) {
				var vErr *application.ValidationError
				require.ErrorAs(t, err, &vErr)
				assert.Contains(t, vErr.FieldErrors, "end_time")
			},
		},
		{
			name: "bad day in batch",
			who:  advisor,
			slots: []application.WeeklySlotInput{
				slotInput(calendar.Tuesday, "09:00", "10:00"),
				slotInput(calendar.DayOfWeek(9), "09:00", "10:00"),
			},
			check: func(t *testing.T, err error) {
				var batch *application.PartialBatchError
				require.ErrorAs(t, err, &batch)
				require.Len(t, batch.Failures, 1)
				assert.Equal(t, 1, batch.Failures[0].Index)
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			services, _ := newServices(t)
			_, err := services.Availability.CreateWeeklySlots(context.Background(), application.CreateWeeklySlotsParams{
				Principal: tc.who,
				StaffID:   staffID,
				Slots:     tc.slots,
			})
			require.Error(t, err)
			tc.check(t, err)
		})
	}
}

func TestUpdateWeeklySlotRejectsOverlap(t *testing.T) {
	services, _ := newServices(t)
	ctx := context.Background()
	testfixtures.Seed{Slots: []persistence.WeeklySlot{
		testfixtures.WeeklySlot("slot-tue", staffID, calendar.Tuesday, "10:00", "12:00"),
	}}.Apply(t, services.Store)

	_, err := services.Availability.UpdateWeeklySlot(ctx, application.UpdateWeeklySlotParams{
		Principal: advisor,
		StaffID:   staffID,
		SlotID:    "slot-tue",
		Input:     slotInput(calendar.Monday, "16:00", "18:00"),
	})
	var conflict *application.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, scheduler.ReasonSlotOverlap, conflict.Reason)

	updated, err := services.Availability.UpdateWeeklySlot(ctx, application.UpdateWeeklySlotParams{
		Principal: advisor,
		StaffID:   staffID,
		SlotID:    "slot-tue",
		Input:     slotInput(calendar.Tuesday, "13:00", "15:00"),
	})
	require.NoError(t, err)
	assert.Equal(t, calendar.MustTimeOfDay("13:00"), updated.StartTime)

	_, err = services.Availability.UpdateWeeklySlot(ctx, application.UpdateWeeklySlotParams{
		Principal: advisor,
		StaffID:   staffID,
		SlotID:    "missing",
		Input:     slotInput(calendar.Tuesday, "13:00", "15:00"),
	})
	assert.ErrorIs(t, err, application.ErrNotFound)
}

func TestDeleteWeeklySlotKeepsMeetings(t *testing.T) {
	services, _ := newServices(t)
	ctx := context.Background()
	testfixtures.Seed{Meetings: []persistence.Meeting{
		testfixtures.Meeting("m-1", staffID, testfixtures.At(0, 10, 0), testfixtures.At(0, 11, 0), testfixtures.WithStatus(meeting.StatusConfirmed)),
	}}.Apply(t, services.Store)

	require.NoError(t, services.Availability.DeleteWeeklySlot(ctx, advisor, staffID, "slot-mon"))

	slots, err := services.Availability.ListWeeklySlots(ctx, staffID)
	require.NoError(t, err)
	assert.Empty(t, slots)

	stored, err := services.Store.GetMeeting(ctx, "m-1")
	require.NoError(t, err)
	assert.Equal(t, meeting.StatusConfirmed, stored.Status)

	err = services.Availability.DeleteWeeklySlot(ctx, advisor, staffID, "slot-mon")
	assert.ErrorIs(t, err, application.ErrNotFound)
}

func TestCreateLeavesOverMeetings(t *testing.T) {
	leave := application.LeaveInput{Start: testfixtures.At(0, 9, 0), End: testfixtures.At(0, 12, 0)}

	cases := []struct {
		name          string
		status        meeting.Status
		cancel        bool
		wantCancelled bool
		wantConflict  bool
	}{
		{name: "pending without flag", status: meeting.StatusPending, wantConflict: true},
		{name: "pending with flag", status: meeting.StatusPending, cancel: true, wantCancelled: true},
		{name: "confirmed with flag", status: meeting.StatusConfirmed, cancel: true, wantConflict: true},
		{name: "finished meeting ignored", status: meeting.StatusCompleted},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			services, _ := newServices(t)
			ctx := context.Background()
			testfixtures.Seed{Meetings: []persistence.Meeting{
				testfixtures.Meeting("m-1", staffID, testfixtures.At(0, 10, 0), testfixtures.At(0, 11, 0), testfixtures.WithStatus(tc.status)),
			}}.Apply(t, services.Store)

			result, err := services.Availability.CreateLeaves(ctx, application.CreateLeavesParams{
				Principal:         advisor,
				StaffID:           staffID,
				Leaves:            []application.LeaveInput{leave},
				CancelConflicting: tc.cancel,
			})

			stored, getErr := services.Store.GetMeeting(ctx, "m-1")
			require.NoError(t, getErr)

			if tc.wantConflict {
				var conflict *application.ConflictError
				require.ErrorAs(t, err, &conflict)
				assert.Equal(t, scheduler.ReasonMeetingOverlap, conflict.Reason)
				assert.Equal(t, "m-1", conflict.Conflicts[0].MeetingID)
				assert.Equal(t, tc.status, stored.Status)

				leaves, listErr := services.Availability.ListLeaves(ctx, advisor, staffID, nil, nil)
				require.NoError(t, listErr)
				assert.Empty(t, leaves)
				return
			}

			require.NoError(t, err)
			require.Len(t, result.Leaves, 1)
			if tc.wantCancelled {
				require.Len(t, result.Cancelled, 1)
				assert.Equal(t, meeting.StatusAdvisorCanceled, stored.Status)
				require.NotNil(t, stored.Note)
			} else {
				assert.Empty(t, result.Cancelled)
				assert.Equal(t, tc.status, stored.Status)
			}
		})
	}
}

func TestCreateLeavesRejectsOverlappingLeaves(t *testing.T) {
	services, _ := newServices(t)
	ctx := context.Background()
	testfixtures.Seed{Leaves: []persistence.LeavePeriod{
		testfixtures.Leave("leave-1", staffID, testfixtures.At(1, 0, 0), testfixtures.At(2, 0, 0)),
	}}.Apply(t, services.Store)

	_, err := services.Availability.CreateLeaves(ctx, application.CreateLeavesParams{
		Principal: advisor,
		StaffID:   staffID,
		Leaves: []application.LeaveInput{
			{Start: testfixtures.At(3, 0, 0), End: testfixtures.At(4, 0, 0)},
			{Start: testfixtures.At(1, 12, 0), End: testfixtures.At(1, 13, 0)},
		},
	})

	var batch *application.PartialBatchError
	require.ErrorAs(t, err, &batch)
	require.Len(t, batch.Failures, 1)
	assert.Equal(t, 1, batch.Failures[0].Index)

	leaves, err := services.Availability.ListLeaves(ctx, advisor, staffID, nil, nil)
	require.NoError(t, err)
	assert.Len(t, leaves, 1)
}

func TestLeaveLifecycle(t *testing.T) {
	services, _ := newServices(t)
	ctx := context.Background()
	note := "conference"

	created, err := services.Availability.CreateLeaves(ctx, application.CreateLeavesParams{
		Principal: advisor,
		StaffID:   staffID,
		Leaves:    []application.LeaveInput{{Start: testfixtures.At(1, 0, 0), End: testfixtures.At(2, 0, 0), Note: &note}},
	})
	require.NoError(t, err)
	leaveID := created.Leaves[0].ID

	updated, err := services.Availability.UpdateLeave(ctx, application.UpdateLeaveParams{
		Principal: advisor,
		StaffID:   staffID,
		LeaveID:   leaveID,
		Input:     application.LeaveInput{Start: testfixtures.At(1, 0, 0), End: testfixtures.At(3, 0, 0)},
	})
	require.NoError(t, err)
	assert.True(t, updated.Leaves[0].End.Equal(testfixtures.At(3, 0, 0)))

	_, err = services.Availability.ListLeaves(ctx, student, staffID, nil, nil)
	assert.ErrorIs(t, err, application.ErrUnauthorized)

	require.NoError(t, services.Availability.DeleteLeave(ctx, advisor, staffID, leaveID))
	err = services.Availability.DeleteLeave(ctx, advisor, staffID, leaveID)
	assert.ErrorIs(t, err, application.ErrNotFound)
}

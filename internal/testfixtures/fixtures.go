package testfixtures

import (
	"context"
	"testing"
	"time"

	"github.com/example/advising-portal/internal/calendar"
	"github.com/example/advising-portal/internal/meeting"
	"github.com/example/advising-portal/internal/persistence"
)

// referenceTime is the Friday before the fixture week, so every fixture
// meeting lies in the future of a default clock.
var referenceTime = time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// Monday is the first day of the fixture week, 2024-03-04 00:00 UTC.
func Monday() time.Time {
	return time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC)
}

// At returns hh:mm on the fixture Monday shifted by dayOffset days.
func At(dayOffset, hour, minute int) time.Time {
	return Monday().AddDate(0, 0, dayOffset).Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

// WeeklySlot builds a slot fixture from HH:MM bounds.
func WeeklySlot(id, staffID string, day calendar.DayOfWeek, start, end string) persistence.WeeklySlot {
	return persistence.WeeklySlot{
		ID:        id,
		StaffID:   staffID,
		DayOfWeek: day,
		StartTime: calendar.MustTimeOfDay(start),
		EndTime:   calendar.MustTimeOfDay(end),
		CreatedAt: referenceTime,
		UpdatedAt: referenceTime,
	}
}

// Leave builds a leave fixture.
func Leave(id, staffID string, start, end time.Time) persistence.LeavePeriod {
	return persistence.LeavePeriod{
		ID:        id,
		StaffID:   staffID,
		Start:     start,
		End:       end,
		CreatedAt: referenceTime,
		UpdatedAt: referenceTime,
	}
}

// MeetingOption configures a meeting fixture.
type MeetingOption func(*persistence.Meeting)

// WithStatus overrides the fixture status.
func WithStatus(status meeting.Status) MeetingOption {
	return func(m *persistence.Meeting) {
		m.Status = status
	}
}

// WithCheckInCode overrides the fixture check-in code.
func WithCheckInCode(code string) MeetingOption {
	return func(m *persistence.Meeting) {
		m.CheckInCode = code
	}
}

// WithStudent overrides the fixture student.
func WithStudent(studentID string) MeetingOption {
	return func(m *persistence.Meeting) {
		m.StudentID = studentID
	}
}

// Meeting builds a Pending meeting fixture with code "AB12CD".
func Meeting(id, staffID string, start, end time.Time, opts ...MeetingOption) persistence.Meeting {
	m := persistence.Meeting{
		ID:                id,
		StaffID:           staffID,
		StudentID:         "student-1",
		Start:             start,
		End:               end,
		Status:            meeting.StatusPending,
		TitleStudentIssue: "Course planning",
		CheckInCode:       "AB12CD",
		CreatedAt:         referenceTime,
		UpdatedAt:         referenceTime,
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// Seed holds records to insert before a test runs.
type Seed struct {
	Slots    []persistence.WeeklySlot
	Leaves   []persistence.LeavePeriod
	Meetings []persistence.Meeting
}

// Apply inserts the seed into store, failing the test on error.
func (s Seed) Apply(tb testing.TB, store persistence.Repositories) {
	tb.Helper()
	ctx := context.Background()
	for _, slot := range s.Slots {
		if err := store.CreateWeeklySlot(ctx, slot); err != nil {
			tb.Fatalf("seed weekly slot %s: %v", slot.ID, err)
		}
	}
	for _, leave := range s.Leaves {
		if err := store.CreateLeave(ctx, leave); err != nil {
			tb.Fatalf("seed leave %s: %v", leave.ID, err)
		}
	}
	for _, m := range s.Meetings {
		if err := store.CreateMeeting(ctx, m); err != nil {
			tb.Fatalf("seed meeting %s: %v", m.ID, err)
		}
	}
}

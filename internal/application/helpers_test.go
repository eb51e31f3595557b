package application_test

import (
	"testing"
	"time"

	"github.com/example/advising-portal/internal/application"
	"github.com/example/advising-portal/internal/calendar"
	"github.com/example/advising-portal/internal/meeting"
	"github.com/example/advising-portal/internal/persistence"
	"github.com/example/advising-portal/internal/testfixtures"
)

const (
	staffID   = "staff-1"
	studentID = "student-1"
)

var (
	advisor = application.Principal{UserID: staffID, Role: meeting.RoleAdvisor}
	student = application.Principal{UserID: studentID, Role: meeting.RoleStudent}
	system  = application.Principal{UserID: "scheduler", Role: meeting.RoleSystem}
)

// newServices wires services over an in-memory store seeded with a Monday
// 09:00-17:00 template for staff-1.
func newServices(t *testing.T, opts ...testfixtures.ServiceFactoryOption) (*testfixtures.Services, *testfixtures.Clock) {
	t.Helper()
	clock := testfixtures.NewClock(time.Time{})
	opts = append([]testfixtures.ServiceFactoryOption{
		testfixtures.WithClock(clock),
		testfixtures.WithIDGenerator(testfixtures.NewIDGenerator("id")),
	}, opts...)
	services := testfixtures.NewServiceFactory(opts...).NewServices(nil)
	testfixtures.Seed{
		Slots: []persistence.WeeklySlot{testfixtures.WeeklySlot("slot-mon", staffID, calendar.Monday, "09:00", "17:00")},
	}.Apply(t, services.Store)
	return services, clock
}

func booking(start, end time.Time) application.BookingInput {
	return application.BookingInput{
		StaffID:           staffID,
		Start:             start,
		End:               end,
		TitleStudentIssue: "Course planning",
	}
}

func transition(p application.Principal, id string) application.TransitionParams {
	return application.TransitionParams{Principal: p, MeetingID: id}
}

package application

import (
	"time"

	"github.com/example/advising-portal/internal/calendar"
	"github.com/example/advising-portal/internal/meeting"
	"github.com/example/advising-portal/internal/persistence"
)

// Principal represents the authenticated user invoking a service method.
type Principal struct {
	UserID string
	Role   meeting.Role
}

// isAdvisorFor reports whether p manages staffID's calendar. The system role
// acts for every advisor.
func (p Principal) isAdvisorFor(staffID string) bool {
	switch p.Role {
	case meeting.RoleSystem:
		return true
	case meeting.RoleAdvisor:
		return p.UserID == staffID
	}
	return false
}

// WeeklySlotInput captures caller provided weekly slot fields.
type WeeklySlotInput struct {
	DayOfWeek calendar.DayOfWeek `json:"day_of_week" validate:"required,min=1,max=7"`
	StartTime calendar.TimeOfDay `json:"start_time"`
	EndTime   calendar.TimeOfDay `json:"end_time" validate:"required"`
}

// LeaveInput captures caller provided leave fields.
type LeaveInput struct {
	Start time.Time `json:"start" validate:"required"`
	End   time.Time `json:"end" validate:"required,gtfield=Start"`
	Note  *string   `json:"note" validate:"omitempty,max=500"`
}

// BookingInput is one requested meeting.
type BookingInput struct {
	StaffID           string    `json:"staff_id" validate:"required,max=64"`
	StudentID         string    `json:"student_id" validate:"max=64"`
	Start             time.Time `json:"start" validate:"required"`
	End               time.Time `json:"end" validate:"required,gtfield=Start"`
	TitleStudentIssue string    `json:"title_student_issue" validate:"required,max=200"`
	ContentIssue      string    `json:"content_issue" validate:"max=4000"`
}

// CreateWeeklySlotsParams creates one or more weekly slots for a staff member atomically.
type CreateWeeklySlotsParams struct {
	Principal Principal
	StaffID   string
	Slots     []WeeklySlotInput
	// SplitLength, when positive, breaks each slot into chunks of at most this length.
	SplitLength time.Duration
}

// UpdateWeeklySlotParams replaces the times of an existing slot.
type UpdateWeeklySlotParams struct {
	Principal Principal
	StaffID   string
	SlotID    string
	Input     WeeklySlotInput
}

// CreateLeavesParams creates one or more leaves for a staff member atomically.
type CreateLeavesParams struct {
	Principal Principal
	StaffID   string
	Leaves    []LeaveInput
	// CancelConflicting advisor-cancels Pending meetings under the new leaves
	// instead of rejecting them.
	CancelConflicting bool
}

// UpdateLeaveParams replaces the bounds and note of an existing leave.
type UpdateLeaveParams struct {
	Principal         Principal
	StaffID           string
	LeaveID           string
	Input             LeaveInput
	CancelConflicting bool
}

// LeaveResult reports the created leaves and any meetings cancelled to make room.
type LeaveResult struct {
	Leaves    []persistence.LeavePeriod
	Cancelled []persistence.Meeting
}

// ListMeetingsParams filters and pages meetings.
type ListMeetingsParams struct {
	Principal Principal
	StaffID   string
	StudentID string
	Statuses  []meeting.Status
	From      *time.Time
	To        *time.Time
	Page      int
	PageSize  int
}

// MeetingPage is one page of a meeting listing.
type MeetingPage struct {
	Meetings []persistence.Meeting
	Total    int
	Page     int
	PageSize int
}

// TransitionParams carries a lifecycle action on one meeting.
type TransitionParams struct {
	Principal   Principal
	MeetingID   string
	Note        *string
	CheckInCode string
	Feedback    *string
	Suggestion  *string
}

// BanStatus describes a student's cancellation standing.
type BanStatus struct {
	StudentID      string
	CurrentCount   int
	MaxAllowed     int
	BookingAllowed bool
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

package persistence

import (
	"time"

	"github.com/example/advising-portal/internal/calendar"
	"github.com/example/advising-portal/internal/meeting"
)

// WeeklySlot is one recurring block of an advisor's weekly template.
type WeeklySlot struct {
	ID        string
	StaffID   string
	DayOfWeek calendar.DayOfWeek
	StartTime calendar.TimeOfDay
	EndTime   calendar.TimeOfDay
	CreatedAt time.Time
	UpdatedAt time.Time
}

// LeavePeriod is a dated absence that overrides the weekly template.
type LeavePeriod struct {
	ID        string
	StaffID   string
	Start     time.Time
	End       time.Time
	Note      *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Meeting is an advising appointment between a staff member and a student.
type Meeting struct {
	ID                    string
	StaffID               string
	StudentID             string
	Start                 time.Time
	End                   time.Time
	Status                meeting.Status
	TitleStudentIssue     string
	ContentIssue          string
	Note                  *string
	Feedback              *string
	SuggestionFromAdvisor *string
	CheckInCode           string
	CompletedAt           *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// BanCounter tracks a student's cancellations.
type BanCounter struct {
	StudentID    string
	CurrentCount int
	MaxAllowed   int
	UpdatedAt    time.Time
}

// MeetingFilter narrows meeting queries. From/To select meetings overlapping
// the half-open window; a zero Limit means no limit.
type MeetingFilter struct {
	StaffID   string
	StudentID string
	Statuses  []meeting.Status
	From      *time.Time
	To        *time.Time
	Limit     int
	Offset    int
}

// LeaveFilter narrows leave queries to one staff member and an optional window.
type LeaveFilter struct {
	StaffID string
	From    *time.Time
	To      *time.Time
}

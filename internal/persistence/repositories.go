package persistence

import (
	"context"
	"time"

	"github.com/example/advising-portal/internal/meeting"
)

// SlotRepository stores weekly availability slots.
type SlotRepository interface {
	CreateWeeklySlot(ctx context.Context, slot WeeklySlot) error
	UpdateWeeklySlot(ctx context.Context, slot WeeklySlot) error
	GetWeeklySlot(ctx context.Context, id string) (WeeklySlot, error)
	ListWeeklySlots(ctx context.Context, staffID string) ([]WeeklySlot, error)
	DeleteWeeklySlot(ctx context.Context, id string) error
}

// LeaveRepository stores leave periods.
type LeaveRepository interface {
	CreateLeave(ctx context.Context, leave LeavePeriod) error
	UpdateLeave(ctx context.Context, leave LeavePeriod) error
	GetLeave(ctx context.Context, id string) (LeavePeriod, error)
	ListLeaves(ctx context.Context, filter LeaveFilter) ([]LeavePeriod, error)
	DeleteLeave(ctx context.Context, id string) error
}

// MeetingRepository stores meetings. Meetings are never deleted.
type MeetingRepository interface {
	CreateMeeting(ctx context.Context, m Meeting) error
	GetMeeting(ctx context.Context, id string) (Meeting, error)
	// ListMeetings returns one page ordered by start then ID, plus the total
	// number of matches ignoring Limit and Offset.
	ListMeetings(ctx context.Context, filter MeetingFilter) ([]Meeting, int, error)
	// UpdateMeeting writes m only if the stored status still equals expected.
	// It returns ErrStaleState when the status moved and ErrNotFound when the
	// meeting does not exist.
	UpdateMeeting(ctx context.Context, m Meeting, expected meeting.Status) error
}

// BanCounterRepository stores per-student cancellation counters.
type BanCounterRepository interface {
	GetBanCounter(ctx context.Context, studentID string) (BanCounter, error)
	// IncrementBanCounter adds one to the counter, creating it with
	// defaultMax when it does not exist yet.
	IncrementBanCounter(ctx context.Context, studentID string, defaultMax int, at time.Time) (BanCounter, error)
}

// Repositories groups every repository a unit of work can touch.
type Repositories interface {
	SlotRepository
	LeaveRepository
	MeetingRepository
	BanCounterRepository
}

// Store is a Repositories implementation with transactions.
type Store interface {
	Repositories
	// WithinTx runs fn against repositories bound to one transaction. The
	// transaction commits when fn returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
	Close() error
}

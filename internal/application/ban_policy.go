package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/advising-portal/internal/meeting"
	"github.com/example/advising-portal/internal/persistence"
)

// DefaultMaxCancellations is the ban threshold given to new counters.
const DefaultMaxCancellations = 3

// BanPolicy gates bookings on a student's cancellation count.
type BanPolicy struct {
	bans       persistence.BanCounterRepository
	defaultMax int
	now        func() time.Time
}

// NewBanPolicy uses defaultMax for students without a stored counter.
func NewBanPolicy(bans persistence.BanCounterRepository, defaultMax int, now func() time.Time) *BanPolicy {
	if defaultMax <= 0 {
		defaultMax = DefaultMaxCancellations
	}
	if now == nil {
		now = time.Now
	}
	return &BanPolicy{bans: bans, defaultMax: defaultMax, now: now}
}

// within returns a copy of the policy bound to a transaction's repositories.
func (p *BanPolicy) within(bans persistence.BanCounterRepository) *BanPolicy {
	clone := *p
	clone.bans = bans
	return &clone
}

// Status reports the student's current standing. Students who never
// cancelled have a zero count.
func (p *BanPolicy) Status(ctx context.Context, studentID string) (BanStatus, error) {
	counter, err := p.bans.GetBanCounter(ctx, studentID)
	if errors.Is(err, persistence.ErrNotFound) {
		return BanStatus{StudentID: studentID, MaxAllowed: p.defaultMax, BookingAllowed: true}, nil
	}
	if err != nil {
		return BanStatus{}, fmt.Errorf("load ban counter: %w", err)
	}
	return BanStatus{
		StudentID:      studentID,
		CurrentCount:   counter.CurrentCount,
		MaxAllowed:     counter.MaxAllowed,
		BookingAllowed: counter.CurrentCount < counter.MaxAllowed,
	}, nil
}

// IsBookingAllowed is false once the count reaches the maximum.
func (p *BanPolicy) IsBookingAllowed(ctx context.Context, studentID string) (bool, error) {
	status, err := p.Status(ctx, studentID)
	if err != nil {
		return false, err
	}
	return status.BookingAllowed, nil
}

// ensureAllowed returns BanLimitExceededError for a blocked student.
func (p *BanPolicy) ensureAllowed(ctx context.Context, studentID string) error {
	status, err := p.Status(ctx, studentID)
	if err != nil {
		return err
	}
	if !status.BookingAllowed {
		return &BanLimitExceededError{
			StudentID:    studentID,
			CurrentCount: status.CurrentCount,
			MaxAllowed:   status.MaxAllowed,
		}
	}
	return nil
}

// RecordCancellation increments the student's counter. There is no decrement.
func (p *BanPolicy) RecordCancellation(ctx context.Context, studentID string) (persistence.BanCounter, error) {
	counter, err := p.bans.IncrementBanCounter(ctx, studentID, p.defaultMax, p.now())
	if err != nil {
		return persistence.BanCounter{}, fmt.Errorf("increment ban counter: %w", err)
	}
	return counter, nil
}

// BanService exposes a student's cancellation standing.
type BanService struct {
	policy *BanPolicy
}

// NewBanService wraps policy.
func NewBanService(policy *BanPolicy) *BanService {
	return &BanService{policy: policy}
}

// Status returns the standing of studentID. Students may only see their own.
func (s *BanService) Status(ctx context.Context, principal Principal, studentID string) (BanStatus, error) {
	switch principal.Role {
	case meeting.RoleUnknown:
		return BanStatus{}, ErrUnauthorized
	case meeting.RoleStudent:
		if principal.UserID != studentID {
			return BanStatus{}, ErrUnauthorized
		}
	}
	return s.policy.Status(ctx, studentID)
}

package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/advising-portal/internal/meeting"
	"github.com/example/advising-portal/internal/persistence"
	"go.uber.org/zap"
)

// MeetingService drives meetings through the lifecycle state machine.
type MeetingService struct {
	deps Deps
	bans *BanPolicy
}

// NewMeetingService wires dependencies for meeting operations.
func NewMeetingService(deps Deps, bans *BanPolicy) *MeetingService {
	deps = deps.withDefaults()
	if bans == nil {
		bans = NewBanPolicy(deps.Store, DefaultMaxCancellations, deps.Now)
	}
	return &MeetingService{deps: deps, bans: bans}
}

func (s *MeetingService) loggerWith(ctx context.Context, operation string, fields ...zap.Field) *zap.Logger {
	return serviceLogger(ctx, s.deps.Logger, "MeetingService", operation, fields...)
}

// Get returns a meeting visible to the principal.
func (s *MeetingService) Get(ctx context.Context, principal Principal, id string) (persistence.Meeting, error) {
	m, err := s.deps.Store.GetMeeting(ctx, id)
	if err != nil {
		return persistence.Meeting{}, mapRepoError("meeting", id, err)
	}
	if !participates(principal, m) {
		return persistence.Meeting{}, ErrUnauthorized
	}
	return m, nil
}

// List pages meetings. Advisors see their own calendar and students their
// own bookings regardless of the requested filter.
func (s *MeetingService) List(ctx context.Context, params ListMeetingsParams) (MeetingPage, error) {
	filter := persistence.MeetingFilter{
		StaffID:   params.StaffID,
		StudentID: params.StudentID,
		Statuses:  params.Statuses,
		From:      params.From,
		To:        params.To,
	}
	switch params.Principal.Role {
	case meeting.RoleAdvisor:
		if filter.StaffID != "" && filter.StaffID != params.Principal.UserID {
			return MeetingPage{}, ErrUnauthorized
		}
		filter.StaffID = params.Principal.UserID
	case meeting.RoleStudent:
		if filter.StudentID != "" && filter.StudentID != params.Principal.UserID {
			return MeetingPage{}, ErrUnauthorized
		}
		filter.StudentID = params.Principal.UserID
	case meeting.RoleSystem:
	default:
		return MeetingPage{}, ErrUnauthorized
	}

	vErr := &ValidationError{}
	for _, status := range params.Statuses {
		if !status.Valid() {
			vErr.add("status", fmt.Sprintf("unknown status %d", int(status)))
		}
	}
	if params.Page < 0 {
		vErr.add("page", "must be positive")
	}
	if params.PageSize < 0 || params.PageSize > maxPageSize {
		vErr.add("page_size", fmt.Sprintf("must be between 1 and %d", maxPageSize))
	}
	if vErr.HasErrors() {
		return MeetingPage{}, vErr
	}

	page, size := params.Page, params.PageSize
	if page == 0 {
		page = 1
	}
	if size == 0 {
		size = defaultPageSize
	}
	filter.Limit = size
	filter.Offset = (page - 1) * size

	meetings, total, err := s.deps.Store.ListMeetings(ctx, filter)
	if err != nil {
		return MeetingPage{}, fmt.Errorf("list meetings: %w", err)
	}
	return MeetingPage{Meetings: meetings, Total: total, Page: page, PageSize: size}, nil
}

// Confirm accepts a Pending meeting (advisor).
func (s *MeetingService) Confirm(ctx context.Context, params TransitionParams) (persistence.Meeting, error) {
	return s.transition(ctx, "Confirm", meeting.ActionConfirm, params)
}

// CancelPending declines a Pending meeting (advisor).
func (s *MeetingService) CancelPending(ctx context.Context, params TransitionParams) (persistence.Meeting, error) {
	return s.transition(ctx, "CancelPending", meeting.ActionAdvisorCancel, params)
}

// CancelByStudent withdraws a Pending or Confirmed meeting and counts
// against the student's cancellation limit.
func (s *MeetingService) CancelByStudent(ctx context.Context, params TransitionParams) (persistence.Meeting, error) {
	return s.transition(ctx, "CancelByStudent", meeting.ActionStudentCancel, params)
}

// Cancel dispatches to the cancellation available to the principal's role.
func (s *MeetingService) Cancel(ctx context.Context, params TransitionParams) (persistence.Meeting, error) {
	if params.Principal.Role == meeting.RoleStudent {
		return s.CancelByStudent(ctx, params)
	}
	return s.CancelPending(ctx, params)
}

// Complete finishes a Confirmed meeting when the advisor presents the
// student's check-in code.
func (s *MeetingService) Complete(ctx context.Context, params TransitionParams) (persistence.Meeting, error) {
	return s.transition(ctx, "Complete", meeting.ActionComplete, params)
}

// ReportAdvisorMissed records that the advisor did not attend (student).
func (s *MeetingService) ReportAdvisorMissed(ctx context.Context, params TransitionParams) (persistence.Meeting, error) {
	return s.transition(ctx, "ReportAdvisorMissed", meeting.ActionReportAdvisorMissed, params)
}

// SendFeedback stores the student's feedback on a finished meeting.
func (s *MeetingService) SendFeedback(ctx context.Context, params TransitionParams) (persistence.Meeting, error) {
	if params.Feedback == nil && params.Suggestion == nil {
		return persistence.Meeting{}, &ValidationError{FieldErrors: map[string]string{"feedback": "feedback or suggestion_from_advisor is required"}}
	}
	return s.transition(ctx, "SendFeedback", meeting.ActionFeedback, params)
}

func (s *MeetingService) transition(ctx context.Context, operation string, action meeting.Action, params TransitionParams) (updated persistence.Meeting, err error) {
	logger := s.loggerWith(ctx, operation,
		zap.String("meeting_id", params.MeetingID),
		zap.String("principal_id", params.Principal.UserID),
		zap.Stringer("role", params.Principal.Role),
	)
	var from meeting.Status
	defer func() {
		logResult(logger, err, "meeting transition rejected", "meeting transitioned",
			zap.Stringer("from", from),
			zap.Stringer("to", updated.Status),
		)
	}()

	current, err := s.deps.Store.GetMeeting(ctx, params.MeetingID)
	if err != nil {
		return persistence.Meeting{}, mapRepoError("meeting", params.MeetingID, err)
	}
	if !participates(params.Principal, current) {
		return persistence.Meeting{}, ErrUnauthorized
	}

	var students []string
	if action == meeting.ActionStudentCancel {
		students = []string{current.StudentID}
	}
	unlock, err := s.deps.lockParticipants(ctx, []string{current.StaffID}, students)
	if err != nil {
		return persistence.Meeting{}, err
	}
	defer unlock()

	err = s.deps.Store.WithinTx(ctx, func(ctx context.Context, repos persistence.Repositories) error {
		var applyErr error
		updated, from, applyErr = s.apply(ctx, repos, params.MeetingID, meeting.Request{
			Action:      action,
			Role:        params.Principal.Role,
			CheckInCode: params.CheckInCode,
			Note:        params.Note,
			Feedback:    params.Feedback,
			Suggestion:  params.Suggestion,
			At:          s.deps.Now(),
		})
		return applyErr
	})
	if err != nil {
		return persistence.Meeting{}, err
	}

	s.deps.Cache.InvalidateStaff(updated.StaffID)
	return updated, nil
}

// apply loads the meeting inside a transaction, runs the state machine and
// persists the outcome with a status compare-and-set.
func (s *MeetingService) apply(ctx context.Context, repos persistence.Repositories, id string, req meeting.Request) (persistence.Meeting, meeting.Status, error) {
	m, err := repos.GetMeeting(ctx, id)
	if err != nil {
		return persistence.Meeting{}, 0, mapRepoError("meeting", id, err)
	}

	out, err := meeting.Apply(meeting.State{Status: m.Status, CheckInCode: m.CheckInCode, End: m.End}, req)
	if err != nil {
		return persistence.Meeting{}, m.Status, err
	}

	m.Status = out.To
	if out.Note != nil {
		m.Note = out.Note
	}
	if out.Feedback != nil {
		m.Feedback = out.Feedback
	}
	if out.Suggestion != nil {
		m.SuggestionFromAdvisor = out.Suggestion
	}
	if out.CompletedAt != nil {
		m.CompletedAt = out.CompletedAt
	}
	m.UpdatedAt = req.At

	if err := repos.UpdateMeeting(ctx, m, out.From); err != nil {
		return persistence.Meeting{}, out.From, mapRepoError("meeting", id, err)
	}
	if out.IncrementBan {
		if _, err := s.bans.within(repos).RecordCancellation(ctx, m.StudentID); err != nil {
			return persistence.Meeting{}, out.From, err
		}
	}
	return m, out.From, nil
}

// MarkOverdue moves every Confirmed meeting that ended at or before now to
// Overdue and returns how many were changed. Meetings that changed state in
// the meantime are skipped.
func (s *MeetingService) MarkOverdue(ctx context.Context, now time.Time) (marked int, err error) {
	logger := s.loggerWith(ctx, "MarkOverdue", zap.Time("now", now))
	defer func() {
		logResult(logger, err, "overdue sweep failed", "overdue sweep finished", zap.Int("marked", marked))
	}()

	candidates, _, err := s.deps.Store.ListMeetings(ctx, persistence.MeetingFilter{
		Statuses: []meeting.Status{meeting.StatusConfirmed},
		To:       &now,
	})
	if err != nil {
		return 0, fmt.Errorf("list confirmed meetings: %w", err)
	}

	var errs []error
	for _, candidate := range candidates {
		if candidate.End.After(now) {
			continue
		}
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		changed, err := s.markOverdue(ctx, candidate, now)
		if err != nil {
			errs = append(errs, fmt.Errorf("meeting %s: %w", candidate.ID, err))
			continue
		}
		if changed {
			marked++
		}
	}
	return marked, errors.Join(errs...)
}

func (s *MeetingService) markOverdue(ctx context.Context, candidate persistence.Meeting, now time.Time) (bool, error) {
	unlock, err := s.deps.lockStaff(ctx, candidate.StaffID)
	if err != nil {
		return false, err
	}
	defer unlock()

	err = s.deps.Store.WithinTx(ctx, func(ctx context.Context, repos persistence.Repositories) error {
		_, _, err := s.apply(ctx, repos, candidate.ID, meeting.Request{
			Action: meeting.ActionMarkOverdue,
			Role:   meeting.RoleSystem,
			At:     now,
		})
		return err
	})

	var tErr *InvalidTransitionError
	if errors.As(err, &tErr) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	s.deps.Cache.InvalidateStaff(candidate.StaffID)
	return true, nil
}

// participates reports whether principal is a party to m.
func participates(principal Principal, m persistence.Meeting) bool {
	switch principal.Role {
	case meeting.RoleSystem:
		return true
	case meeting.RoleAdvisor:
		return principal.UserID == m.StaffID
	case meeting.RoleStudent:
		return principal.UserID == m.StudentID
	}
	return false
}

package application

import (
	"context"
	"fmt"
	"time"

	"github.com/example/advising-portal/internal/calendar"
	"github.com/example/advising-portal/internal/meeting"
	"github.com/example/advising-portal/internal/persistence"
	"github.com/example/advising-portal/internal/recurrence"
	"github.com/example/advising-portal/internal/scheduler"
	"go.uber.org/zap"
)

const leaveCancellationNote = "cancelled: advisor on leave"

// AvailabilityService manages an advisor's weekly template and leaves.
type AvailabilityService struct {
	deps Deps
}

// NewAvailabilityService wires dependencies for slot and leave operations.
func NewAvailabilityService(deps Deps) *AvailabilityService {
	return &AvailabilityService{deps: deps.withDefaults()}
}

func (s *AvailabilityService) loggerWith(ctx context.Context, operation string, fields ...zap.Field) *zap.Logger {
	return serviceLogger(ctx, s.deps.Logger, "AvailabilityService", operation, fields...)
}

// ListWeeklySlots returns the staff member's template ordered by day and start.
func (s *AvailabilityService) ListWeeklySlots(ctx context.Context, staffID string) ([]persistence.WeeklySlot, error) {
	slots, err := s.deps.Store.ListWeeklySlots(ctx, staffID)
	if err != nil {
		return nil, fmt.Errorf("list weekly slots: %w", err)
	}
	return slots, nil
}

// CreateWeeklySlots validates and stores a batch of slots. Either every slot
// is created or none is.
func (s *AvailabilityService) CreateWeeklySlots(ctx context.Context, params CreateWeeklySlotsParams) (slots []persistence.WeeklySlot, err error) {
	logger := s.loggerWith(ctx, "CreateWeeklySlots",
		zap.String("staff_id", params.StaffID),
		zap.Int("requested", len(params.Slots)),
	)
	defer func() {
		logResult(logger, err, "failed to create weekly slots", "weekly slots created", zap.Int("created", len(slots)))
	}()

	if !params.Principal.isAdvisorFor(params.StaffID) {
		return nil, ErrUnauthorized
	}
	if len(params.Slots) == 0 {
		return nil, &ValidationError{FieldErrors: map[string]string{"slots": "at least one slot is required"}}
	}

	batch := len(params.Slots) > 1
	var (
		rules    []recurrence.WeeklyRule
		origins  []int
		failures []BatchFailure
	)
	for i, input := range params.Slots {
		vErr := validateSlotInput(input)
		if vErr.HasErrors() {
			failures = append(failures, BatchFailure{Index: i, Err: vErr})
			continue
		}
		rule := recurrence.WeeklyRule{StaffID: params.StaffID, Day: input.DayOfWeek, Start: input.StartTime, End: input.EndTime}
		for _, chunk := range scheduler.SplitWeeklySlots([]recurrence.WeeklyRule{rule}, params.SplitLength) {
			rules = append(rules, chunk)
			origins = append(origins, i)
		}
	}
	if len(failures) > 0 {
		return nil, batchError(batch, len(params.Slots), failures)
	}

	unlock, err := s.deps.lockStaff(ctx, params.StaffID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	now := s.deps.Now()
	err = s.deps.Store.WithinTx(ctx, func(ctx context.Context, repos persistence.Repositories) error {
		existing, err := repos.ListWeeklySlots(ctx, params.StaffID)
		if err != nil {
			return fmt.Errorf("list weekly slots: %w", err)
		}
		existingRules := make([]recurrence.WeeklyRule, len(existing))
		for i, slot := range existing {
			existingRules[i] = toRule(slot)
		}

		if conflicts := scheduler.CheckWeeklySlots(existingRules, rules); len(conflicts) > 0 {
			for i := range conflicts {
				conflicts[i].Index = origins[conflicts[i].Index]
			}
			return conflictError(batch, len(params.Slots), conflicts)
		}

		slots = make([]persistence.WeeklySlot, 0, len(rules))
		for _, rule := range rules {
			slot := persistence.WeeklySlot{
				ID:        s.deps.IDGenerator(),
				StaffID:   params.StaffID,
				DayOfWeek: rule.Day,
				StartTime: rule.Start,
				EndTime:   rule.End,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := repos.CreateWeeklySlot(ctx, slot); err != nil {
				return mapRepoError("weekly slot", slot.ID, err)
			}
			slots = append(slots, slot)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.deps.Cache.InvalidateStaff(params.StaffID)
	return slots, nil
}

// UpdateWeeklySlot replaces a slot's day and times.
func (s *AvailabilityService) UpdateWeeklySlot(ctx context.Context, params UpdateWeeklySlotParams) (slot persistence.WeeklySlot, err error) {
	logger := s.loggerWith(ctx, "UpdateWeeklySlot",
		zap.String("staff_id", params.StaffID),
		zap.String("slot_id", params.SlotID),
	)
	defer func() {
		logResult(logger, err, "failed to update weekly slot", "weekly slot updated")
	}()

	if !params.Principal.isAdvisorFor(params.StaffID) {
		return persistence.WeeklySlot{}, ErrUnauthorized
	}
	if vErr := validateSlotInput(params.Input); vErr.HasErrors() {
		return persistence.WeeklySlot{}, vErr
	}

	unlock, err := s.deps.lockStaff(ctx, params.StaffID)
	if err != nil {
		return persistence.WeeklySlot{}, err
	}
	defer unlock()

	err = s.deps.Store.WithinTx(ctx, func(ctx context.Context, repos persistence.Repositories) error {
		current, err := repos.GetWeeklySlot(ctx, params.SlotID)
		if err != nil {
			return mapRepoError("weekly slot", params.SlotID, err)
		}
		if current.StaffID != params.StaffID {
			return &NotFoundError{Resource: "weekly slot", ID: params.SlotID}
		}

		existing, err := repos.ListWeeklySlots(ctx, params.StaffID)
		if err != nil {
			return fmt.Errorf("list weekly slots: %w", err)
		}
		existingRules := make([]recurrence.WeeklyRule, len(existing))
		for i, other := range existing {
			existingRules[i] = toRule(other)
		}

		slot = current
		slot.DayOfWeek = params.Input.DayOfWeek
		slot.StartTime = params.Input.StartTime
		slot.EndTime = params.Input.EndTime
		slot.UpdatedAt = s.deps.Now()

		if conflicts := scheduler.CheckWeeklySlots(existingRules, []recurrence.WeeklyRule{toRule(slot)}); len(conflicts) > 0 {
			return &ConflictError{Reason: conflicts[0].Reason, Conflicts: conflicts}
		}
		return mapRepoError("weekly slot", slot.ID, repos.UpdateWeeklySlot(ctx, slot))
	})
	if err != nil {
		return persistence.WeeklySlot{}, err
	}

	s.deps.Cache.InvalidateStaff(params.StaffID)
	return slot, nil
}

// DeleteWeeklySlot removes a slot. Existing meetings are left untouched.
func (s *AvailabilityService) DeleteWeeklySlot(ctx context.Context, principal Principal, staffID, slotID string) (err error) {
	logger := s.loggerWith(ctx, "DeleteWeeklySlot", zap.String("staff_id", staffID), zap.String("slot_id", slotID))
	defer func() {
		logResult(logger, err, "failed to delete weekly slot", "weekly slot deleted")
	}()

	if !principal.isAdvisorFor(staffID) {
		return ErrUnauthorized
	}

	unlock, err := s.deps.lockStaff(ctx, staffID)
	if err != nil {
		return err
	}
	defer unlock()

	err = s.deps.Store.WithinTx(ctx, func(ctx context.Context, repos persistence.Repositories) error {
		current, err := repos.GetWeeklySlot(ctx, slotID)
		if err != nil {
			return mapRepoError("weekly slot", slotID, err)
		}
		if current.StaffID != staffID {
			return &NotFoundError{Resource: "weekly slot", ID: slotID}
		}
		return mapRepoError("weekly slot", slotID, repos.DeleteWeeklySlot(ctx, slotID))
	})
	if err != nil {
		return err
	}

	s.deps.Cache.InvalidateStaff(staffID)
	return nil
}

// ListLeaves returns the staff member's leaves overlapping [from, to).
func (s *AvailabilityService) ListLeaves(ctx context.Context, principal Principal, staffID string, from, to *time.Time) ([]persistence.LeavePeriod, error) {
	if !principal.isAdvisorFor(staffID) {
		return nil, ErrUnauthorized
	}
	leaves, err := s.deps.Store.ListLeaves(ctx, persistence.LeaveFilter{StaffID: staffID, From: from, To: to})
	if err != nil {
		return nil, fmt.Errorf("list leaves: %w", err)
	}
	return leaves, nil
}

// CreateLeaves validates and stores a batch of leaves. Leaves may not overlap
// each other or active meetings; with CancelConflicting, Pending meetings
// under a new leave are advisor-cancelled in the same transaction.
func (s *AvailabilityService) CreateLeaves(ctx context.Context, params CreateLeavesParams) (result LeaveResult, err error) {
	logger := s.loggerWith(ctx, "CreateLeaves",
		zap.String("staff_id", params.StaffID),
		zap.Int("requested", len(params.Leaves)),
		zap.Bool("cancel_conflicting", params.CancelConflicting),
	)
	defer func() {
		logResult(logger, err, "failed to create leaves", "leaves created",
			zap.Int("created", len(result.Leaves)),
			zap.Int("cancelled_meetings", len(result.Cancelled)),
		)
	}()

	if !params.Principal.isAdvisorFor(params.StaffID) {
		return LeaveResult{}, ErrUnauthorized
	}
	if len(params.Leaves) == 0 {
		return LeaveResult{}, &ValidationError{FieldErrors: map[string]string{"leaves": "at least one leave is required"}}
	}

	batch := len(params.Leaves) > 1
	var failures []BatchFailure
	proposed := make([]scheduler.Leave, len(params.Leaves))
	for i, input := range params.Leaves {
		if vErr := validateLeaveInput(input); vErr.HasErrors() {
			failures = append(failures, BatchFailure{Index: i, Err: vErr})
			continue
		}
		proposed[i] = scheduler.Leave{StaffID: params.StaffID, Start: input.Start, End: input.End}
	}
	if len(failures) > 0 {
		return LeaveResult{}, batchError(batch, len(params.Leaves), failures)
	}

	unlock, err := s.deps.lockStaff(ctx, params.StaffID)
	if err != nil {
		return LeaveResult{}, err
	}
	defer unlock()

	now := s.deps.Now()
	err = s.deps.Store.WithinTx(ctx, func(ctx context.Context, repos persistence.Repositories) error {
		cancelled, err := s.guardLeaves(ctx, repos, params.StaffID, proposed, params.CancelConflicting, batch)
		if err != nil {
			return err
		}

		leaves := make([]persistence.LeavePeriod, 0, len(params.Leaves))
		for _, input := range params.Leaves {
			leave := persistence.LeavePeriod{
				ID:        s.deps.IDGenerator(),
				StaffID:   params.StaffID,
				Start:     input.Start,
				End:       input.End,
				Note:      input.Note,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := repos.CreateLeave(ctx, leave); err != nil {
				return mapRepoError("leave", leave.ID, err)
			}
			leaves = append(leaves, leave)
		}
		result = LeaveResult{Leaves: leaves, Cancelled: cancelled}
		return nil
	})
	if err != nil {
		return LeaveResult{}, err
	}

	s.deps.Cache.InvalidateStaff(params.StaffID)
	return result, nil
}

// UpdateLeave replaces a leave's bounds and note under the same rules as creation.
func (s *AvailabilityService) UpdateLeave(ctx context.Context, params UpdateLeaveParams) (result LeaveResult, err error) {
	logger := s.loggerWith(ctx, "UpdateLeave",
		zap.String("staff_id", params.StaffID),
		zap.String("leave_id", params.LeaveID),
	)
	defer func() {
		logResult(logger, err, "failed to update leave", "leave updated", zap.Int("cancelled_meetings", len(result.Cancelled)))
	}()

	if !params.Principal.isAdvisorFor(params.StaffID) {
		return LeaveResult{}, ErrUnauthorized
	}
	if vErr := validateLeaveInput(params.Input); vErr.HasErrors() {
		return LeaveResult{}, vErr
	}

	unlock, err := s.deps.lockStaff(ctx, params.StaffID)
	if err != nil {
		return LeaveResult{}, err
	}
	defer unlock()

	err = s.deps.Store.WithinTx(ctx, func(ctx context.Context, repos persistence.Repositories) error {
		current, err := repos.GetLeave(ctx, params.LeaveID)
		if err != nil {
			return mapRepoError("leave", params.LeaveID, err)
		}
		if current.StaffID != params.StaffID {
			return &NotFoundError{Resource: "leave", ID: params.LeaveID}
		}

		updated := current
		updated.Start = params.Input.Start
		updated.End = params.Input.End
		updated.Note = params.Input.Note
		updated.UpdatedAt = s.deps.Now()

		cancelled, err := s.guardLeaves(ctx, repos, params.StaffID, []scheduler.Leave{toLeave(updated)}, params.CancelConflicting, false)
		if err != nil {
			return err
		}
		if err := repos.UpdateLeave(ctx, updated); err != nil {
			return mapRepoError("leave", updated.ID, err)
		}
		result = LeaveResult{Leaves: []persistence.LeavePeriod{updated}, Cancelled: cancelled}
		return nil
	})
	if err != nil {
		return LeaveResult{}, err
	}

	s.deps.Cache.InvalidateStaff(params.StaffID)
	return result, nil
}

// DeleteLeave removes a leave, reopening the template beneath it.
func (s *AvailabilityService) DeleteLeave(ctx context.Context, principal Principal, staffID, leaveID string) (err error) {
	logger := s.loggerWith(ctx, "DeleteLeave", zap.String("staff_id", staffID), zap.String("leave_id", leaveID))
	defer func() {
		logResult(logger, err, "failed to delete leave", "leave deleted")
	}()

	if !principal.isAdvisorFor(staffID) {
		return ErrUnauthorized
	}

	unlock, err := s.deps.lockStaff(ctx, staffID)
	if err != nil {
		return err
	}
	defer unlock()

	err = s.deps.Store.WithinTx(ctx, func(ctx context.Context, repos persistence.Repositories) error {
		current, err := repos.GetLeave(ctx, leaveID)
		if err != nil {
			return mapRepoError("leave", leaveID, err)
		}
		if current.StaffID != staffID {
			return &NotFoundError{Resource: "leave", ID: leaveID}
		}
		return mapRepoError("leave", leaveID, repos.DeleteLeave(ctx, leaveID))
	})
	if err != nil {
		return err
	}

	s.deps.Cache.InvalidateStaff(staffID)
	return nil
}

// guardLeaves checks proposed against stored leaves and active meetings and,
// when allowed, cancels Pending meetings they cover. It returns the
// cancelled meetings.
func (s *AvailabilityService) guardLeaves(ctx context.Context, repos persistence.Repositories, staffID string, proposed []scheduler.Leave, cancelConflicting, batch bool) ([]persistence.Meeting, error) {
	window := proposed[0].Interval()
	for _, leave := range proposed[1:] {
		if leave.Start.Before(window.Start) {
			window.Start = leave.Start
		}
		if leave.End.After(window.End) {
			window.End = leave.End
		}
	}

	stored, err := repos.ListLeaves(ctx, persistence.LeaveFilter{StaffID: staffID, From: &window.Start, To: &window.End})
	if err != nil {
		return nil, fmt.Errorf("list leaves: %w", err)
	}
	existing := make([]scheduler.Leave, len(stored))
	for i, leave := range stored {
		existing[i] = toLeave(leave)
	}
	conflicts := scheduler.CheckLeaves(existing, proposed)

	active, _, err := repos.ListMeetings(ctx, persistence.MeetingFilter{
		StaffID:  staffID,
		Statuses: []meeting.Status{meeting.StatusPending, meeting.StatusConfirmed},
		From:     &window.Start,
		To:       &window.End,
	})
	if err != nil {
		return nil, fmt.Errorf("list meetings: %w", err)
	}
	byID := make(map[string]persistence.Meeting, len(active))
	bookings := make([]scheduler.Booking, len(active))
	for i, m := range active {
		byID[m.ID] = m
		bookings[i] = toBooking(m)
	}

	var toCancel []persistence.Meeting
	seen := make(map[string]struct{})
	for i, leave := range proposed {
		for _, b := range scheduler.ActiveBookingsDuring(staffID, leave.Interval(), bookings) {
			if b.Status == meeting.StatusPending && cancelConflicting {
				if _, dup := seen[b.MeetingID]; !dup {
					seen[b.MeetingID] = struct{}{}
					toCancel = append(toCancel, byID[b.MeetingID])
				}
				continue
			}
			conflicts = append(conflicts, scheduler.Conflict{
				Index:     i,
				Reason:    scheduler.ReasonMeetingOverlap,
				Detail:    b.Status.String(),
				Interval:  b.Interval(),
				MeetingID: b.MeetingID,
			})
		}
	}
	if len(conflicts) > 0 {
		return nil, conflictError(batch, len(proposed), conflicts)
	}

	now := s.deps.Now()
	note := leaveCancellationNote
	cancelled := make([]persistence.Meeting, 0, len(toCancel))
	for _, m := range toCancel {
		out, err := meeting.Apply(
			meeting.State{Status: m.Status, CheckInCode: m.CheckInCode, End: m.End},
			meeting.Request{Action: meeting.ActionAdvisorCancel, Role: meeting.RoleAdvisor, Note: &note, At: now},
		)
		if err != nil {
			return nil, err
		}
		m.Status = out.To
		m.Note = out.Note
		m.UpdatedAt = now
		if err := repos.UpdateMeeting(ctx, m, out.From); err != nil {
			return nil, mapRepoError("meeting", m.ID, err)
		}
		cancelled = append(cancelled, m)
	}
	return cancelled, nil
}

func validateSlotInput(input WeeklySlotInput) *ValidationError {
	vErr := &ValidationError{}
	validateStruct(input, vErr)
	if !input.StartTime.Valid() {
		vErr.add("start_time", "must be between 00:00 and 24:00")
	}
	if !input.EndTime.Valid() {
		vErr.add("end_time", "must be between 00:00 and 24:00")
	}
	if input.EndTime <= input.StartTime {
		vErr.add("end_time", "must be after start_time")
	}
	if input.DayOfWeek != 0 && !input.DayOfWeek.Valid() {
		vErr.add("day_of_week", "must be between 1 (Sunday) and 7 (Saturday)")
	}
	return vErr
}

func validateLeaveInput(input LeaveInput) *ValidationError {
	vErr := &ValidationError{}
	validateStruct(input, vErr)
	if !(calendar.Interval{Start: input.Start, End: input.End}).Valid() {
		vErr.add("end", "must be after start")
	}
	return vErr
}

// batchError wraps item failures. A single-item request returns its failure
// directly.
func batchError(batch bool, total int, failures []BatchFailure) error {
	if !batch && len(failures) == 1 {
		return failures[0].Err
	}
	return &PartialBatchError{Total: total, Failures: failures}
}

func conflictError(batch bool, total int, conflicts []scheduler.Conflict) error {
	if !batch {
		return &ConflictError{Reason: conflicts[0].Reason, Conflicts: conflicts}
	}
	return conflictsToBatch(total, conflicts)
}


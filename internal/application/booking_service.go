package application

import (
	"context"
	"crypto/rand"
	"fmt"
	"sort"
	"strings"

	"github.com/example/advising-portal/internal/calendar"
	"github.com/example/advising-portal/internal/meeting"
	"github.com/example/advising-portal/internal/persistence"
	"github.com/example/advising-portal/internal/scheduler"
	"go.uber.org/zap"
)

// checkInAlphabet omits glyphs that are easy to confuse when read aloud (0/O, 1/I/L).
const (
	checkInAlphabet   = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
	checkInCodeLength = 6
)

// BookingService creates Pending meetings after ban and availability checks.
type BookingService struct {
	deps  Deps
	bans  *BanPolicy
	guard *scheduler.Guard
	code  func() (string, error)
}

// NewBookingService wires dependencies for booking operations.
func NewBookingService(deps Deps, bans *BanPolicy) *BookingService {
	deps = deps.withDefaults()
	if bans == nil {
		bans = NewBanPolicy(deps.Store, DefaultMaxCancellations, deps.Now)
	}
	return &BookingService{
		deps:  deps,
		bans:  bans,
		guard: scheduler.NewGuard(deps.Resolver),
		code:  newCheckInCode,
	}
}

func (s *BookingService) loggerWith(ctx context.Context, operation string, fields ...zap.Field) *zap.Logger {
	return serviceLogger(ctx, s.deps.Logger, "BookingService", operation, fields...)
}

// Book requests a single meeting.
func (s *BookingService) Book(ctx context.Context, principal Principal, input BookingInput) (persistence.Meeting, error) {
	meetings, err := s.book(ctx, "Book", principal, []BookingInput{input}, false)
	if err != nil {
		return persistence.Meeting{}, err
	}
	return meetings[0], nil
}

// BookBatch requests several meetings as a unit. If any item fails, nothing
// is created and a PartialBatchError lists every failing item.
func (s *BookingService) BookBatch(ctx context.Context, principal Principal, inputs []BookingInput) ([]persistence.Meeting, error) {
	return s.book(ctx, "BookBatch", principal, inputs, true)
}

func (s *BookingService) book(ctx context.Context, operation string, principal Principal, inputs []BookingInput, batch bool) (meetings []persistence.Meeting, err error) {
	logger := s.loggerWith(ctx, operation,
		zap.String("principal_id", principal.UserID),
		zap.Int("requested", len(inputs)),
	)
	defer func() {
		ids := make([]string, len(meetings))
		for i, m := range meetings {
			ids[i] = m.ID
		}
		logResult(logger, err, "booking rejected", "meetings booked", zap.Strings("meeting_ids", ids))
	}()

	if len(inputs) == 0 {
		return nil, &ValidationError{FieldErrors: map[string]string{"meetings": "at least one meeting is required"}}
	}

	items := make([]BookingInput, len(inputs))
	var failures []BatchFailure
	for i, input := range inputs {
		input.StaffID = strings.TrimSpace(input.StaffID)
		input.TitleStudentIssue = strings.TrimSpace(input.TitleStudentIssue)
		if input.StudentID == "" && principal.Role == meeting.RoleStudent {
			input.StudentID = principal.UserID
		}
		if !s.mayBookFor(principal, input.StudentID) {
			return nil, ErrUnauthorized
		}
		if vErr := s.validate(input); vErr.HasErrors() {
			failures = append(failures, BatchFailure{Index: i, Err: vErr})
		}
		items[i] = input
	}
	if len(failures) > 0 {
		return nil, batchError(batch, len(inputs), failures)
	}

	// Blocked students are rejected before availability is consulted.
	students := make([]string, len(items))
	for i, item := range items {
		students[i] = item.StudentID
	}
	students = uniqueStrings(students)
	for _, studentID := range students {
		if err := s.bans.ensureAllowed(ctx, studentID); err != nil {
			return nil, err
		}
	}

	byStaff := make(map[string][]int)
	for i, item := range items {
		byStaff[item.StaffID] = append(byStaff[item.StaffID], i)
	}
	staffIDs := make([]string, 0, len(byStaff))
	for staffID := range byStaff {
		staffIDs = append(staffIDs, staffID)
	}
	sort.Strings(staffIDs)

	// Student keys serialize this booking against the students' own
	// cancellations on other advisors' calendars.
	unlock, err := s.deps.lockParticipants(ctx, staffIDs, students)
	if err != nil {
		return nil, err
	}
	defer unlock()

	loc := s.deps.Resolver.Location()
	err = s.deps.Store.WithinTx(ctx, func(ctx context.Context, repos persistence.Repositories) error {
		txBans := s.bans.within(repos)
		for _, studentID := range students {
			if err := txBans.ensureAllowed(ctx, studentID); err != nil {
				return err
			}
		}

		var conflicts []scheduler.Conflict
		for _, staffID := range staffIDs {
			indexes := byStaff[staffID]
			proposals := make([]calendar.Interval, len(indexes))
			window := calendar.Interval{}
			for j, idx := range indexes {
				iv := calendar.Interval{Start: items[idx].Start, End: items[idx].End}
				proposals[j] = iv
				days := dayWindow(iv, loc)
				if window.Start.IsZero() || days.Start.Before(window.Start) {
					window.Start = days.Start
				}
				if days.End.After(window.End) {
					window.End = days.End
				}
			}

			snap, err := loadSnapshot(ctx, repos, staffID, window)
			if err != nil {
				return err
			}
			for _, c := range s.guard.CheckBookings(staffID, proposals, snap) {
				c.Index = indexes[c.Index]
				conflicts = append(conflicts, c)
			}
		}
		if len(conflicts) > 0 {
			sort.SliceStable(conflicts, func(a, b int) bool { return conflicts[a].Index < conflicts[b].Index })
			return conflictError(batch, len(items), conflicts)
		}

		now := s.deps.Now()
		meetings = make([]persistence.Meeting, 0, len(items))
		for _, item := range items {
			code, err := s.code()
			if err != nil {
				return fmt.Errorf("generate check-in code: %w", err)
			}
			m := persistence.Meeting{
				ID:                s.deps.IDGenerator(),
				StaffID:           item.StaffID,
				StudentID:         item.StudentID,
				Start:             item.Start,
				End:               item.End,
				Status:            meeting.StatusPending,
				TitleStudentIssue: item.TitleStudentIssue,
				ContentIssue:      item.ContentIssue,
				CheckInCode:       code,
				CreatedAt:         now,
				UpdatedAt:         now,
			}
			if err := repos.CreateMeeting(ctx, m); err != nil {
				return mapRepoError("meeting", m.ID, err)
			}
			meetings = append(meetings, m)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.deps.Cache.InvalidateStaff(staffIDs...)
	return meetings, nil
}

// mayBookFor allows students to book for themselves and the system role for anyone.
func (s *BookingService) mayBookFor(principal Principal, studentID string) bool {
	switch principal.Role {
	case meeting.RoleSystem:
		return true
	case meeting.RoleStudent:
		return studentID == principal.UserID
	}
	return false
}

func (s *BookingService) validate(input BookingInput) *ValidationError {
	vErr := &ValidationError{}
	validateStruct(input, vErr)
	if input.StudentID == "" {
		vErr.add("student_id", "is required")
	}
	if !(calendar.Interval{Start: input.Start, End: input.End}).Valid() {
		vErr.add("end", "must be after start")
	}
	if !input.Start.IsZero() && input.Start.Before(s.deps.Now()) {
		vErr.add("start", "must not be in the past")
	}
	return vErr
}

func newCheckInCode() (string, error) {
	buf := make([]byte, checkInCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = checkInAlphabet[int(b)%len(checkInAlphabet)]
	}
	return string(buf), nil
}

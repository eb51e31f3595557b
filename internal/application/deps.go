package application

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/example/advising-portal/internal/calendar"
	"github.com/example/advising-portal/internal/lock"
	"github.com/example/advising-portal/internal/meeting"
	"github.com/example/advising-portal/internal/persistence"
	"github.com/example/advising-portal/internal/recurrence"
	"github.com/example/advising-portal/internal/scheduler"
	"go.uber.org/zap"
)

// DefaultLockTimeout bounds how long a mutation waits for a staff lock.
const DefaultLockTimeout = 5 * time.Second

// reasonBusy is reported when a staff lock cannot be acquired in time.
const reasonBusy = "advisor calendar is busy, try again"

// Deps bundles collaborators shared by the services.
type Deps struct {
	Store       persistence.Store
	Locker      lock.Locker
	LockTimeout time.Duration
	Resolver    *scheduler.Resolver
	Cache       *CalendarCache
	IDGenerator func() string
	Now         func() time.Time
	Logger      *zap.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Locker == nil {
		d.Locker = lock.NewKeyedMutex()
	}
	if d.LockTimeout <= 0 {
		d.LockTimeout = DefaultLockTimeout
	}
	if d.Resolver == nil {
		d.Resolver = scheduler.NewResolver(time.UTC)
	}
	if d.IDGenerator == nil {
		d.IDGenerator = func() string { return "" }
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	d.Logger = defaultLogger(d.Logger)
	return d
}

// lockStaff acquires the locks of every listed staff member in sorted order
// so that overlapping multi-staff requests cannot deadlock.
func (d Deps) lockStaff(ctx context.Context, staffIDs ...string) (func(), error) {
	return d.lockParticipants(ctx, staffIDs, nil)
}

// lockParticipants locks staff keys in sorted order followed by student keys
// in sorted order. Every caller takes staff keys first.
func (d Deps) lockParticipants(ctx context.Context, staffIDs, studentIDs []string) (func(), error) {
	keys := sortedKeys(staffIDs, lock.StaffKey)
	keys = append(keys, sortedKeys(studentIDs, lock.StudentKey)...)

	lockCtx, cancel := context.WithTimeout(ctx, d.LockTimeout)
	defer cancel()

	unlocks := make([]lock.Unlock, 0, len(keys))
	release := func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}
	for _, key := range keys {
		unlock, err := d.Locker.Lock(lockCtx, key)
		if err != nil {
			release()
			if errors.Is(err, lock.ErrTimeout) {
				return nil, &ConflictError{Reason: reasonBusy}
			}
			return nil, fmt.Errorf("lock %s: %w", key, err)
		}
		unlocks = append(unlocks, unlock)
	}
	return release, nil
}

func sortedKeys(ids []string, key func(string) string) []string {
	ids = uniqueStrings(ids)
	sort.Strings(ids)
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = key(id)
	}
	return keys
}

// loadSnapshot reads everything shaping staffID's availability in window.
func loadSnapshot(ctx context.Context, repos persistence.Repositories, staffID string, window calendar.Interval) (scheduler.Snapshot, error) {
	slots, err := repos.ListWeeklySlots(ctx, staffID)
	if err != nil {
		return scheduler.Snapshot{}, fmt.Errorf("list weekly slots: %w", err)
	}
	leaves, err := repos.ListLeaves(ctx, persistence.LeaveFilter{StaffID: staffID, From: &window.Start, To: &window.End})
	if err != nil {
		return scheduler.Snapshot{}, fmt.Errorf("list leaves: %w", err)
	}
	meetings, _, err := repos.ListMeetings(ctx, persistence.MeetingFilter{
		StaffID:  staffID,
		Statuses: []meeting.Status{meeting.StatusPending, meeting.StatusConfirmed},
		From:     &window.Start,
		To:       &window.End,
	})
	if err != nil {
		return scheduler.Snapshot{}, fmt.Errorf("list meetings: %w", err)
	}

	snap := scheduler.Snapshot{
		Slots:    make([]recurrence.WeeklyRule, len(slots)),
		Leaves:   make([]scheduler.Leave, len(leaves)),
		Bookings: make([]scheduler.Booking, len(meetings)),
	}
	for i, slot := range slots {
		snap.Slots[i] = toRule(slot)
	}
	for i, leave := range leaves {
		snap.Leaves[i] = toLeave(leave)
	}
	for i, m := range meetings {
		snap.Bookings[i] = toBooking(m)
	}
	return snap, nil
}

// dayWindow widens iv to whole local days so the resolver sees complete slots.
func dayWindow(iv calendar.Interval, loc *time.Location) calendar.Interval {
	return calendar.Interval{
		Start: calendar.StartOfDay(iv.Start, loc),
		End:   calendar.StartOfDay(iv.End, loc).AddDate(0, 0, 1),
	}
}

func toRule(slot persistence.WeeklySlot) recurrence.WeeklyRule {
	return recurrence.WeeklyRule{
		ID:      slot.ID,
		StaffID: slot.StaffID,
		Day:     slot.DayOfWeek,
		Start:   slot.StartTime,
		End:     slot.EndTime,
	}
}

func toLeave(leave persistence.LeavePeriod) scheduler.Leave {
	return scheduler.Leave{ID: leave.ID, StaffID: leave.StaffID, Start: leave.Start, End: leave.End}
}

func toBooking(m persistence.Meeting) scheduler.Booking {
	return scheduler.Booking{MeetingID: m.ID, StaffID: m.StaffID, Status: m.Status, Start: m.Start, End: m.End}
}

func mapRepoError(resource, id string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrNotFound):
		return &NotFoundError{Resource: resource, ID: id}
	case errors.Is(err, persistence.ErrStaleState):
		return &ConflictError{Reason: fmt.Sprintf("%s %s was changed concurrently", resource, id)}
	case errors.Is(err, persistence.ErrDuplicate):
		return &ConflictError{Reason: fmt.Sprintf("%s %s already exists", resource, id)}
	}
	return err
}

func uniqueStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
